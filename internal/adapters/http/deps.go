package http

import (
	"github.com/nats-io/nats.go"

	"github.com/samirrijal/tripplanner/internal/adapters/postgres"
	"github.com/samirrijal/tripplanner/internal/adapters/valkey"
	"github.com/samirrijal/tripplanner/internal/core/usecases"
)

// Dependencies holds all services needed by HTTP handlers.
// NATS and Cache are optional.
type Dependencies struct {
	Trips  *usecases.TripService
	Cities *usecases.CityService
	NATS   *nats.Conn
	DB     *postgres.DB
	Cache  *valkey.Cache
}
