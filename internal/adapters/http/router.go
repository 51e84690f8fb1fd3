package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/fiber/v2/middleware/timeout"
	"github.com/gofiber/websocket/v2"

	"github.com/samirrijal/tripplanner/internal/pkg/metrics"
)

// RequestTimeout bounds every trip and city request.
const RequestTimeout = 15 * time.Second

// SetupRoutes registers all REST, GraphQL, and WebSocket routes.
func SetupRoutes(app *fiber.App, deps *Dependencies) {
	// Prometheus metrics
	app.Use(metrics.Middleware())
	app.Get("/metrics", metrics.Handler())

	// Response compression (gzip)
	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))

	// Request ID
	app.Use(requestid.New())

	// Propagate request ID into slog context
	app.Use(RequestIDLogMiddleware())

	// Access logs (structured HTTP request logging)
	app.Use(AccessLogMiddleware())

	// Rate limiting: 120 requests per minute per IP
	app.Use(limiter.New(limiter.Config{
		Max:        120,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return newError(c, fiber.StatusTooManyRequests, "Too many requests", nil)
		},
	}))

	// Security headers + API version
	app.Use(func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Set("X-API-Version", "1.0.0")
		return c.Next()
	})

	// ETag for conditional caching
	app.Use(ETagMiddleware())

	// Default Cache-Control headers
	app.Use(CachingMiddleware())

	// Health & readiness (no timeout, fast internal checks)
	app.Get("/health", HealthHandler(deps))
	app.Get("/ready", ReadyHandler(deps))

	// Trips
	app.Get("/trips", timeout.NewWithContext(ListTripsHandler(deps), RequestTimeout))
	app.Post("/trips", timeout.NewWithContext(CreateTripHandler(deps), RequestTimeout))
	app.Get("/trips/:id", timeout.NewWithContext(GetTripHandler(deps), RequestTimeout))
	app.Put("/trips/:id", timeout.NewWithContext(UpdateTripHandler(deps), RequestTimeout))
	app.Delete("/trips/:id", timeout.NewWithContext(DeleteTripHandler(deps), RequestTimeout))
	app.Get("/trips/:id/itinerary", timeout.NewWithContext(ItineraryHandler(deps), RequestTimeout))

	// City autocomplete
	app.Get("/cities/autocomplete", timeout.NewWithContext(CityAutocompleteHandler(deps), RequestTimeout))

	// GraphQL
	app.Post("/graphql", timeout.NewWithContext(GraphQLHandler(deps), RequestTimeout))

	// API documentation (Swagger UI)
	SetupDocs(app)

	// WebSocket
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws", websocket.New(WebSocketHandler(deps.NATS)))
}
