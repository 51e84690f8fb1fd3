package ports

import (
	"context"
	"errors"

	"github.com/samirrijal/tripplanner/internal/core/domain"
)

// ErrCacheMiss is returned by CacheService.Get for absent keys.
var ErrCacheMiss = errors.New("cache miss")

// EventPublisher publishes domain events to a message broker.
type EventPublisher interface {
	PublishTripEvent(ctx context.Context, event domain.TripEvent) error
}

// CacheService provides read-through caching.
type CacheService interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttlSeconds int) error
	Delete(ctx context.Context, key string) error
	// Incr atomically increments the integer stored at key (absent counts
	// as 0) and returns the new value. The key does not expire.
	Incr(ctx context.Context, key string) (int64, error)
}

// CityDirectory looks up cities by name prefix.
type CityDirectory interface {
	Search(ctx context.Context, prefix string) ([]domain.CitySuggestion, error)
}
