package usecases

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/samirrijal/tripplanner/internal/core/domain"
	"github.com/samirrijal/tripplanner/internal/core/ports"
	"github.com/samirrijal/tripplanner/internal/core/validation"
	"github.com/samirrijal/tripplanner/internal/pkg/geospatial"
	"github.com/samirrijal/tripplanner/internal/pkg/logging"
	"github.com/samirrijal/tripplanner/internal/pkg/metrics"
	"github.com/samirrijal/tripplanner/internal/pkg/telemetry"
)

const tripCacheTTL = 600 // 10 min

// TripService validates, stores and serves trips.
//
// Cached trips are keyed by a per-trip version that every committed
// mutation increments. A read fills the entry for the version it observed
// before reading the store, so a fill racing a mutation lands under a
// version no later read will look up.
type TripService struct {
	trips  ports.TripRepository
	cache  ports.CacheService
	events ports.EventPublisher
	tracer trace.Tracer
	now    func() time.Time

	mu sync.Mutex
	// trips whose version bump failed; the cache is bypassed until the
	// deadline, after which every entry that could be stale has expired.
	unversioned map[int64]time.Time
}

// NewTripService creates a new TripService. cache and events may be nil.
func NewTripService(trips ports.TripRepository, cache ports.CacheService, events ports.EventPublisher) *TripService {
	return &TripService{
		trips:  trips,
		cache:  cache,
		events: events,
		tracer: telemetry.Tracer(),
		now:    time.Now,

		unversioned: make(map[int64]time.Time),
	}
}

func tripCacheKey(id, version int64) string {
	return "trips:id:" + strconv.FormatInt(id, 10) + ":v" + strconv.FormatInt(version, 10)
}

func tripVersionKey(id int64) string {
	return "trips:ver:" + strconv.FormatInt(id, 10)
}

// Create validates p and stores the trip. A rejected payload yields a
// *domain.ValidationError and the store is never touched.
func (s *TripService) Create(ctx context.Context, p validation.TripPayload) (int64, error) {
	ctx, span := s.tracer.Start(ctx, telemetry.SpanTripCreate)
	defer span.End()

	trip, errs := validation.ParseTrip(p)
	if len(errs) > 0 {
		recordValidationFailures(errs)
		span.SetStatus(codes.Error, "validation failed")
		return 0, &domain.ValidationError{Details: errs}
	}
	span.SetAttributes(attribute.Int(telemetry.AttrWaypointCount, len(trip.Waypoints)))

	start := time.Now()
	id, err := s.trips.Create(ctx, trip)
	metrics.ObserveStore("create", start)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "store failed")
		return 0, fmt.Errorf("create trip: %w", err)
	}
	span.SetAttributes(attribute.Int64(telemetry.AttrTripID, id))

	metrics.TripsMutated.WithLabelValues(domain.TripCreated).Inc()
	s.publish(ctx, domain.TripCreated, id, trip.Name)
	return id, nil
}

// Get returns a trip with its waypoints in submission order.
func (s *TripService) Get(ctx context.Context, id int64) (*domain.Trip, error) {
	ctx, span := s.tracer.Start(ctx, telemetry.SpanTripGet,
		trace.WithAttributes(attribute.Int64(telemetry.AttrTripID, id)))
	defer span.End()

	version, cached := s.cacheVersion(ctx, id)
	if cached {
		if data, err := s.cache.Get(ctx, tripCacheKey(id, version)); err == nil {
			var trip domain.Trip
			if err := json.Unmarshal(data, &trip); err == nil {
				metrics.CacheHits.WithLabelValues("trip").Inc()
				span.SetAttributes(attribute.Bool(telemetry.AttrCacheHit, true))
				return &trip, nil
			}
		} else if !errors.Is(err, ports.ErrCacheMiss) {
			logging.FromContext(ctx).Warn("trip cache read failed", "trip_id", id, "error", err)
		}
		metrics.CacheMisses.WithLabelValues("trip").Inc()
	}
	span.SetAttributes(attribute.Bool(telemetry.AttrCacheHit, false))

	start := time.Now()
	trip, err := s.trips.GetByID(ctx, id)
	metrics.ObserveStore("get", start)
	if err != nil {
		if !errors.Is(err, domain.ErrTripNotFound) {
			span.RecordError(err)
			span.SetStatus(codes.Error, "store failed")
		}
		return nil, fmt.Errorf("get trip %d: %w", id, err)
	}

	if cached {
		if data, err := json.Marshal(trip); err == nil {
			_ = s.cache.Set(ctx, tripCacheKey(id, version), data, tripCacheTTL)
		}
	}

	return trip, nil
}

// List returns every trip as {id, name}, oldest first.
func (s *TripService) List(ctx context.Context) ([]domain.TripSummary, error) {
	ctx, span := s.tracer.Start(ctx, telemetry.SpanTripList)
	defer span.End()

	start := time.Now()
	trips, err := s.trips.List(ctx)
	metrics.ObserveStore("list", start)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "store failed")
		return nil, fmt.Errorf("list trips: %w", err)
	}
	return trips, nil
}

// Rename changes the name of an existing trip.
func (s *TripService) Rename(ctx context.Context, id int64, name string) error {
	ctx, span := s.tracer.Start(ctx, telemetry.SpanTripRename,
		trace.WithAttributes(attribute.Int64(telemetry.AttrTripID, id)))
	defer span.End()

	if errs := validation.ValidateName(name); len(errs) > 0 {
		recordValidationFailures(errs)
		span.SetStatus(codes.Error, "validation failed")
		return &domain.ValidationError{Details: errs}
	}

	start := time.Now()
	err := s.trips.Update(ctx, id, name)
	metrics.ObserveStore("update", start)
	if err != nil {
		return fmt.Errorf("rename trip %d: %w", id, err)
	}

	s.invalidate(ctx, id)
	metrics.TripsMutated.WithLabelValues(domain.TripUpdated).Inc()
	s.publish(ctx, domain.TripUpdated, id, name)
	return nil
}

// Delete removes a trip and its waypoints.
func (s *TripService) Delete(ctx context.Context, id int64) error {
	ctx, span := s.tracer.Start(ctx, telemetry.SpanTripDelete,
		trace.WithAttributes(attribute.Int64(telemetry.AttrTripID, id)))
	defer span.End()

	start := time.Now()
	err := s.trips.Delete(ctx, id)
	metrics.ObserveStore("delete", start)
	if err != nil {
		return fmt.Errorf("delete trip %d: %w", id, err)
	}

	s.invalidate(ctx, id)
	metrics.TripsMutated.WithLabelValues(domain.TripDeleted).Inc()
	s.publish(ctx, domain.TripDeleted, id, "")
	return nil
}

// Itinerary returns the map view of a trip: per-leg great-circle distances,
// the bounding box of all cities and the path through them in travel order.
func (s *TripService) Itinerary(ctx context.Context, id int64) (*domain.Itinerary, error) {
	ctx, span := s.tracer.Start(ctx, telemetry.SpanTripItinerary,
		trace.WithAttributes(attribute.Int64(telemetry.AttrTripID, id)))
	defer span.End()

	trip, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return BuildItinerary(trip), nil
}

// BuildItinerary derives the itinerary of trip. Consecutive duplicate
// points (destination of one leg equal to the origin of the next) appear
// once in the path.
func BuildItinerary(trip *domain.Trip) *domain.Itinerary {
	it := &domain.Itinerary{
		TripID: trip.ID,
		Name:   trip.Name,
		Legs:   make([]domain.ItineraryLeg, 0, len(trip.Waypoints)),
		Path:   domain.GeoLineString{Coordinates: []domain.GeoPoint{}},
	}

	for _, wp := range trip.Waypoints {
		from, to := wp.Origin.Point(), wp.Destination.Point()
		d := geospatial.DistanceKm(from, to)
		it.Legs = append(it.Legs, domain.ItineraryLeg{Waypoint: wp, DistanceKm: d})
		it.TotalDistanceKm += d

		for _, p := range []domain.GeoPoint{from, to} {
			n := len(it.Path.Coordinates)
			if n == 0 || it.Path.Coordinates[n-1] != p {
				it.Path.Coordinates = append(it.Path.Coordinates, p)
			}
		}
	}
	it.Bounds = geospatial.BoundsOf(it.Path.Coordinates)

	if n := len(trip.Waypoints); n > 0 {
		first, last := trip.Waypoints[0].Time(), trip.Waypoints[n-1].Time()
		it.StartsAt, it.EndsAt = &first, &last
	}
	return it
}

// cacheVersion returns the current cache version of a trip. ok is false
// when the cache must not be used for this read.
func (s *TripService) cacheVersion(ctx context.Context, id int64) (version int64, ok bool) {
	if s.cache == nil {
		return 0, false
	}
	if s.isUnversioned(id) && !s.invalidate(ctx, id) {
		return 0, false
	}

	data, err := s.cache.Get(ctx, tripVersionKey(id))
	if errors.Is(err, ports.ErrCacheMiss) {
		return 0, true
	}
	if err != nil {
		logging.FromContext(ctx).Warn("trip cache version read failed", "trip_id", id, "error", err)
		return 0, false
	}
	version, err = strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		logging.FromContext(ctx).Warn("trip cache version corrupt", "trip_id", id, "error", err)
		return 0, false
	}
	return version, true
}

// invalidate moves the trip to a new cache version. On failure the trip
// bypasses the cache until a later bump succeeds or the TTL has passed.
func (s *TripService) invalidate(ctx context.Context, id int64) bool {
	if s.cache == nil {
		return true
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.cache.Incr(ctx, tripVersionKey(id)); err != nil {
		metrics.CacheInvalidationErrors.Inc()
		logging.FromContext(ctx).Warn("trip cache invalidation failed", "trip_id", id, "error", err)
		s.unversioned[id] = s.now().Add(tripCacheTTL * time.Second)
		return false
	}
	delete(s.unversioned, id)
	return true
}

func (s *TripService) isUnversioned(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	deadline, ok := s.unversioned[id]
	if !ok {
		return false
	}
	if !s.now().Before(deadline) {
		delete(s.unversioned, id)
		return false
	}
	return true
}

// publish is best effort: the mutation is already committed.
func (s *TripService) publish(ctx context.Context, kind string, id int64, name string) {
	if s.events == nil {
		return
	}
	event := domain.TripEvent{Type: kind, TripID: id, Name: name, OccurredAt: s.now().UTC()}
	if err := s.events.PublishTripEvent(ctx, event); err != nil {
		metrics.EventPublishErrors.Inc()
		logging.FromContext(ctx).Warn("trip event publish failed",
			"trip_id", id, "type", kind, "error", err)
	}
}

func recordValidationFailures(errs []domain.FieldError) {
	for _, fe := range errs {
		metrics.ValidationFailures.WithLabelValues(fe.Message).Inc()
	}
}
