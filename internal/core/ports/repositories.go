package ports

import (
	"context"

	"github.com/samirrijal/tripplanner/internal/core/domain"
)

// TripRepository persists trips together with their waypoints.
//
// Create must write the trip and every waypoint atomically. GetByID, Update
// and Delete return domain.ErrTripNotFound for unknown identifiers.
type TripRepository interface {
	Create(ctx context.Context, trip domain.NewTrip) (int64, error)
	GetByID(ctx context.Context, id int64) (*domain.Trip, error)
	List(ctx context.Context) ([]domain.TripSummary, error)
	Update(ctx context.Context, id int64, name string) error
	Delete(ctx context.Context, id int64) error
}
