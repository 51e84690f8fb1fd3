package usecases_test

import (
	"context"
	"strconv"
	"sync"

	"github.com/samirrijal/tripplanner/internal/core/domain"
	"github.com/samirrijal/tripplanner/internal/core/ports"
)

// --- Mock TripRepository ---

type mockTripRepo struct {
	createFn  func(ctx context.Context, trip domain.NewTrip) (int64, error)
	getByIDFn func(ctx context.Context, id int64) (*domain.Trip, error)
	listFn    func(ctx context.Context) ([]domain.TripSummary, error)
	updateFn  func(ctx context.Context, id int64, name string) error
	deleteFn  func(ctx context.Context, id int64) error

	creates, gets int
}

func (m *mockTripRepo) Create(ctx context.Context, trip domain.NewTrip) (int64, error) {
	m.creates++
	if m.createFn != nil {
		return m.createFn(ctx, trip)
	}
	return 1, nil
}

func (m *mockTripRepo) GetByID(ctx context.Context, id int64) (*domain.Trip, error) {
	m.gets++
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, domain.ErrTripNotFound
}

func (m *mockTripRepo) List(ctx context.Context) ([]domain.TripSummary, error) {
	if m.listFn != nil {
		return m.listFn(ctx)
	}
	return []domain.TripSummary{}, nil
}

func (m *mockTripRepo) Update(ctx context.Context, id int64, name string) error {
	if m.updateFn != nil {
		return m.updateFn(ctx, id, name)
	}
	return nil
}

func (m *mockTripRepo) Delete(ctx context.Context, id int64) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return nil
}

// --- In-memory CacheService ---

type memCache struct {
	mu      sync.Mutex
	data    map[string][]byte
	ttls    map[string]int
	deletes []string
	incrErr error
}

func newMemCache() *memCache {
	return &memCache{data: map[string][]byte{}, ttls: map[string]int{}}
}

func (c *memCache) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	if !ok {
		return nil, ports.ErrCacheMiss
	}
	return v, nil
}

func (c *memCache) Set(_ context.Context, key string, value []byte, ttl int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	c.ttls[key] = ttl
	return nil
}

func (c *memCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	c.deletes = append(c.deletes, key)
	return nil
}

func (c *memCache) Incr(_ context.Context, key string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.incrErr != nil {
		return 0, c.incrErr
	}
	n, _ := strconv.ParseInt(string(c.data[key]), 10, 64)
	n++
	c.data[key] = []byte(strconv.FormatInt(n, 10))
	return n, nil
}

func (c *memCache) failIncr(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.incrErr = err
}

// --- Recording EventPublisher ---

type recordingPublisher struct {
	events []domain.TripEvent
	err    error
}

func (p *recordingPublisher) PublishTripEvent(_ context.Context, e domain.TripEvent) error {
	p.events = append(p.events, e)
	return p.err
}

// --- Mock CityDirectory ---

type mockDirectory struct {
	searchFn func(ctx context.Context, prefix string) ([]domain.CitySuggestion, error)
	calls    []string
}

func (m *mockDirectory) Search(ctx context.Context, prefix string) ([]domain.CitySuggestion, error) {
	m.calls = append(m.calls, prefix)
	if m.searchFn != nil {
		return m.searchFn(ctx, prefix)
	}
	return nil, nil
}
