package http

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

// CachingMiddleware sets Cache-Control on GET responses that did not set one.
// Trip data is user-editable, so clients must revalidate it (ETag makes
// that a cheap 304).
func CachingMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		err := c.Next()

		if c.Method() != fiber.MethodGet {
			return err
		}
		if c.GetRespHeader(fiber.HeaderCacheControl) != "" {
			return err
		}

		path := c.Path()
		var ttl string

		switch {
		case path == "/health" || path == "/ready" || path == "/metrics":
			ttl = "no-cache"

		case path == "/trips" || strings.HasPrefix(path, "/trips/"):
			ttl = "private, no-cache"

		case strings.HasPrefix(path, "/docs"):
			ttl = "public, max-age=3600"
		}

		if ttl != "" {
			c.Set(fiber.HeaderCacheControl, ttl)
		}

		return err
	}
}
