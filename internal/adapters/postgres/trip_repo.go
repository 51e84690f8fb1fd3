package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/samirrijal/tripplanner/internal/core/domain"
)

// TripRepo implements ports.TripRepository.
type TripRepo struct {
	db *DB
}

func NewTripRepo(db *DB) *TripRepo {
	return &TripRepo{db: db}
}

// Create writes the trip row and all of its waypoints in one transaction.
// If any insert fails nothing is committed.
func (r *TripRepo) Create(ctx context.Context, trip domain.NewTrip) (int64, error) {
	var id int64
	err := WithTx(ctx, r.db.Pool, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, `
			INSERT INTO trips (name) VALUES ($1)
			RETURNING id
		`, trip.Name).Scan(&id); err != nil {
			return fmt.Errorf("insert trip: %w", err)
		}

		for i, wp := range trip.Waypoints {
			if _, err := tx.Exec(ctx, `
				INSERT INTO waypoints (
					trip_id, position,
					origin_name, origin_country_code, origin_longitude, origin_latitude,
					destination_name, destination_country_code, destination_longitude, destination_latitude,
					date
				) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			`, id, i,
				wp.Origin.Name, wp.Origin.CountryCode, wp.Origin.Longitude, wp.Origin.Latitude,
				wp.Destination.Name, wp.Destination.CountryCode, wp.Destination.Longitude, wp.Destination.Latitude,
				wp.Time(),
			); err != nil {
				return fmt.Errorf("insert waypoint %d: %w", i, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// GetByID reads a trip and its waypoints in submission order.
func (r *TripRepo) GetByID(ctx context.Context, id int64) (*domain.Trip, error) {
	t := &domain.Trip{}
	err := r.db.Pool.QueryRow(ctx, `
		SELECT id, name
		FROM trips WHERE id = $1
	`, id).Scan(&t.ID, &t.Name)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrTripNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select trip: %w", err)
	}

	rows, err := r.db.Pool.Query(ctx, `
		SELECT origin_name, origin_country_code, origin_longitude, origin_latitude,
		       destination_name, destination_country_code, destination_longitude, destination_latitude,
		       date
		FROM waypoints WHERE trip_id = $1
		ORDER BY position, id
	`, id)
	if err != nil {
		return nil, fmt.Errorf("select waypoints: %w", err)
	}
	defer rows.Close()

	t.Waypoints = make([]domain.Waypoint, 0)
	for rows.Next() {
		var (
			wp   domain.Waypoint
			date time.Time
		)
		if err := rows.Scan(
			&wp.Origin.Name, &wp.Origin.CountryCode, &wp.Origin.Longitude, &wp.Origin.Latitude,
			&wp.Destination.Name, &wp.Destination.CountryCode, &wp.Destination.Longitude, &wp.Destination.Latitude,
			&date,
		); err != nil {
			return nil, fmt.Errorf("scan waypoint: %w", err)
		}
		wp.Date = date.Unix()
		t.Waypoints = append(t.Waypoints, wp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read waypoints: %w", err)
	}
	return t, nil
}

// List returns every trip ordered by id, without waypoints.
func (r *TripRepo) List(ctx context.Context) ([]domain.TripSummary, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT id, name
		FROM trips ORDER BY id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("select trips: %w", err)
	}
	defer rows.Close()

	trips := make([]domain.TripSummary, 0)
	for rows.Next() {
		var s domain.TripSummary
		if err := rows.Scan(&s.ID, &s.Name); err != nil {
			return nil, fmt.Errorf("scan trip: %w", err)
		}
		trips = append(trips, s)
	}
	return trips, rows.Err()
}

// Update renames a trip. Waypoints are left untouched.
func (r *TripRepo) Update(ctx context.Context, id int64, name string) error {
	tag, err := r.db.Pool.Exec(ctx, `
		UPDATE trips SET name = $1
		WHERE id = $2
	`, name, id)
	if err != nil {
		return fmt.Errorf("update trip: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrTripNotFound
	}
	return nil
}

// Delete removes a trip; its waypoints go with it through ON DELETE CASCADE.
func (r *TripRepo) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Pool.Exec(ctx, `
		DELETE FROM trips
		WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("delete trip: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrTripNotFound
	}
	return nil
}
