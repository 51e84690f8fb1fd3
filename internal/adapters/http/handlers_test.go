package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/gofiber/fiber/v2"

	handler "github.com/samirrijal/tripplanner/internal/adapters/http"
	"github.com/samirrijal/tripplanner/internal/core/domain"
	"github.com/samirrijal/tripplanner/internal/core/usecases"
)

// ---- In-memory TripRepository ----

type memTripRepo struct {
	mu     sync.Mutex
	nextID int64
	trips  map[int64]domain.Trip

	// failWith makes every call fail, simulating an unreachable database.
	failWith error
}

func newMemTripRepo() *memTripRepo {
	return &memTripRepo{trips: map[int64]domain.Trip{}}
}

func (r *memTripRepo) Create(ctx context.Context, t domain.NewTrip) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return 0, r.failWith
	}
	r.nextID++
	wps := append([]domain.Waypoint{}, t.Waypoints...)
	r.trips[r.nextID] = domain.Trip{ID: r.nextID, Name: t.Name, Waypoints: wps}
	return r.nextID, nil
}

func (r *memTripRepo) GetByID(ctx context.Context, id int64) (*domain.Trip, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return nil, r.failWith
	}
	t, ok := r.trips[id]
	if !ok {
		return nil, domain.ErrTripNotFound
	}
	return &t, nil
}

func (r *memTripRepo) List(ctx context.Context) ([]domain.TripSummary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return nil, r.failWith
	}
	out := make([]domain.TripSummary, 0, len(r.trips))
	for _, t := range r.trips {
		out = append(out, domain.TripSummary{ID: t.ID, Name: t.Name})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memTripRepo) Update(ctx context.Context, id int64, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return r.failWith
	}
	t, ok := r.trips[id]
	if !ok {
		return domain.ErrTripNotFound
	}
	t.Name = name
	r.trips[id] = t
	return nil
}

func (r *memTripRepo) Delete(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return r.failWith
	}
	if _, ok := r.trips[id]; !ok {
		return domain.ErrTripNotFound
	}
	delete(r.trips, id)
	return nil
}

// ---- Mock CityDirectory ----

type mockDirectory struct {
	searchFn func(ctx context.Context, prefix string) ([]domain.CitySuggestion, error)
}

func (m *mockDirectory) Search(ctx context.Context, prefix string) ([]domain.CitySuggestion, error) {
	if m.searchFn != nil {
		return m.searchFn(ctx, prefix)
	}
	return nil, nil
}

// ---- Test helpers ----

func setupApp(deps *handler.Dependencies) *fiber.App {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler:          handler.ErrorHandler,
	})
	handler.SetupRoutes(app, deps)
	return app
}

func makeDeps(repo *memTripRepo, opts ...func(*handler.Dependencies)) *handler.Dependencies {
	d := &handler.Dependencies{
		Trips:  usecases.NewTripService(repo, nil, nil),
		Cities: usecases.NewCityService(&mockDirectory{}, nil),
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

func readBody(t *testing.T, body io.Reader) []byte {
	t.Helper()
	b, err := io.ReadAll(body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return b
}

func doJSON(t *testing.T, app *fiber.App, method, path, body string) (int, []byte) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	return resp.StatusCode, readBody(t, resp.Body)
}

func doRaw(t *testing.T, app *fiber.App, body string) (int, []byte) {
	t.Helper()
	return doJSON(t, app, "POST", "/graphql", body)
}

type apiError struct {
	Error   string              `json:"error"`
	Details []domain.FieldError `json:"details"`
}

func decodeError(t *testing.T, body []byte) apiError {
	t.Helper()
	var e apiError
	if err := json.Unmarshal(body, &e); err != nil {
		t.Fatalf("decode error body %q: %v", body, err)
	}
	return e
}

const japanTrip = `{
	"name": "Japan",
	"waypoints": [{
		"origin": {"name": "Madrid", "countryCode": "ES", "latitude": 40.4168, "longitude": -3.7038},
		"destination": {"name": "Tokyo", "countryCode": "JP", "latitude": 35.6762, "longitude": 139.6503},
		"date": 1741820400
	}]
}`

// ---- Scenario tests ----

func TestCreateAndGetTrip(t *testing.T) {
	app := setupApp(makeDeps(newMemTripRepo()))

	status, body := doJSON(t, app, "POST", "/trips", japanTrip)
	if status != 201 {
		t.Fatalf("expected 201, got %d: %s", status, body)
	}
	var created struct {
		Message string `json:"message"`
		TripID  int64  `json:"tripId"`
	}
	if err := json.Unmarshal(body, &created); err != nil {
		t.Fatal(err)
	}
	if created.TripID <= 0 || created.Message != "Trip created successfully" {
		t.Fatalf("unexpected create response: %s", body)
	}

	status, body = doJSON(t, app, "GET", "/trips/1", "")
	if status != 200 {
		t.Fatalf("expected 200, got %d: %s", status, body)
	}
	var trip domain.Trip
	if err := json.Unmarshal(body, &trip); err != nil {
		t.Fatal(err)
	}
	if trip.ID != created.TripID || trip.Name != "Japan" {
		t.Errorf("unexpected trip: %+v", trip)
	}
	if len(trip.Waypoints) != 1 || trip.Waypoints[0].Date != 1741820400 {
		t.Fatalf("unexpected waypoints: %+v", trip.Waypoints)
	}
	if trip.Waypoints[0].Origin.Name != "Madrid" || trip.Waypoints[0].Destination.CountryCode != "JP" {
		t.Errorf("cities not round-tripped: %+v", trip.Waypoints[0])
	}
}

func TestCreateTrip_EmptyWaypoints(t *testing.T) {
	repo := newMemTripRepo()
	app := setupApp(makeDeps(repo))

	status, body := doJSON(t, app, "POST", "/trips", `{"name":"Weekend","waypoints":[]}`)
	if status != 400 {
		t.Fatalf("expected 400, got %d", status)
	}
	e := decodeError(t, body)
	if e.Error != "Validation error" {
		t.Errorf("unexpected error %q", e.Error)
	}
	if len(e.Details) != 1 || e.Details[0] != (domain.FieldError{Field: "waypoints", Message: "Cannot be empty"}) {
		t.Errorf("unexpected details: %+v", e.Details)
	}
	if len(repo.trips) != 0 {
		t.Error("nothing must be stored")
	}
}

func TestCreateTrip_DecreasingDates(t *testing.T) {
	app := setupApp(makeDeps(newMemTripRepo()))

	payload := `{"name":"Back in time","waypoints":[
		{"origin":{"name":"Madrid"},"destination":{"name":"Paris"},"date":1744840800},
		{"origin":{"name":"Paris"},"destination":{"name":"Rome"},"date":1741820400}
	]}`
	status, body := doJSON(t, app, "POST", "/trips", payload)
	if status != 400 {
		t.Fatalf("expected 400, got %d", status)
	}
	e := decodeError(t, body)
	want := domain.FieldError{
		Field:   "waypoints[1].date",
		Message: "The date cannot be earlier than the date of the previous waypoint.",
	}
	if len(e.Details) != 1 || e.Details[0] != want {
		t.Errorf("unexpected details: %+v", e.Details)
	}
}

func TestCreateTrip_MissingEverything(t *testing.T) {
	app := setupApp(makeDeps(newMemTripRepo()))

	status, body := doJSON(t, app, "POST", "/trips", `{}`)
	if status != 400 {
		t.Fatalf("expected 400, got %d", status)
	}
	e := decodeError(t, body)
	if len(e.Details) != 2 || e.Details[0].Field != "name" || e.Details[1].Field != "waypoints" {
		t.Errorf("unexpected details: %+v", e.Details)
	}
}

func TestCreateTrip_MalformedJSON(t *testing.T) {
	app := setupApp(makeDeps(newMemTripRepo()))

	status, body := doJSON(t, app, "POST", "/trips", `{"name":`)
	if status != 400 {
		t.Fatalf("expected 400, got %d", status)
	}
	if e := decodeError(t, body); e.Error != "Invalid request body" {
		t.Errorf("unexpected error %q", e.Error)
	}
}

func TestGetTrip_NotFound(t *testing.T) {
	app := setupApp(makeDeps(newMemTripRepo()))

	status, body := doJSON(t, app, "GET", "/trips/999", "")
	if status != 404 {
		t.Fatalf("expected 404, got %d", status)
	}
	if e := decodeError(t, body); e.Error != "Trip Not Found" {
		t.Errorf("unexpected error %q", e.Error)
	}
}

func TestGetTrip_InvalidID(t *testing.T) {
	app := setupApp(makeDeps(newMemTripRepo()))

	for _, path := range []string{"/trips/abc", "/trips/0", "/trips/-3"} {
		if status, _ := doJSON(t, app, "GET", path, ""); status != 400 {
			t.Errorf("%s: expected 400, got %d", path, status)
		}
	}
}

func TestDeleteTrip(t *testing.T) {
	repo := newMemTripRepo()
	app := setupApp(makeDeps(repo))

	if status, _ := doJSON(t, app, "POST", "/trips", japanTrip); status != 201 {
		t.Fatalf("create failed: %d", status)
	}

	status, body := doJSON(t, app, "DELETE", "/trips/1", "")
	if status != 204 {
		t.Fatalf("expected 204, got %d", status)
	}
	if len(body) != 0 {
		t.Errorf("expected empty body, got %q", body)
	}

	if status, _ := doJSON(t, app, "GET", "/trips/1", ""); status != 404 {
		t.Errorf("expected 404 after delete, got %d", status)
	}
	if status, _ := doJSON(t, app, "DELETE", "/trips/1", ""); status != 404 {
		t.Errorf("expected 404 on second delete, got %d", status)
	}
}

func TestUpdateTrip(t *testing.T) {
	app := setupApp(makeDeps(newMemTripRepo()))
	doJSON(t, app, "POST", "/trips", japanTrip)

	status, body := doJSON(t, app, "PUT", "/trips/1", `{"name":"Japan 2025"}`)
	if status != 200 {
		t.Fatalf("expected 200, got %d: %s", status, body)
	}
	if string(body) != "Trip modified with ID: 1" {
		t.Errorf("unexpected body %q", body)
	}

	_, body = doJSON(t, app, "GET", "/trips/1", "")
	var trip domain.Trip
	_ = json.Unmarshal(body, &trip)
	if trip.Name != "Japan 2025" || len(trip.Waypoints) != 1 {
		t.Errorf("rename must only touch the name: %+v", trip)
	}
}

func TestUpdateTrip_Errors(t *testing.T) {
	app := setupApp(makeDeps(newMemTripRepo()))
	doJSON(t, app, "POST", "/trips", japanTrip)

	tests := []struct {
		name   string
		path   string
		body   string
		status int
		errMsg string
	}{
		{"missing trip", "/trips/42", `{"name":"x"}`, 404, "Trip Not Found"},
		{"empty name", "/trips/1", `{"name":""}`, 400, "Validation error"},
		{"non-string name", "/trips/1", `{"name":7}`, 400, "Validation error"},
		{"bad body", "/trips/1", `nope`, 400, "Invalid request body"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := doJSON(t, app, "PUT", tt.path, tt.body)
			if status != tt.status {
				t.Fatalf("expected %d, got %d", tt.status, status)
			}
			if e := decodeError(t, body); e.Error != tt.errMsg {
				t.Errorf("expected %q, got %q", tt.errMsg, e.Error)
			}
		})
	}
}

func TestListTrips(t *testing.T) {
	app := setupApp(makeDeps(newMemTripRepo()))

	status, body := doJSON(t, app, "GET", "/trips", "")
	if status != 200 || strings.TrimSpace(string(body)) != "[]" {
		t.Fatalf("expected empty list, got %d %s", status, body)
	}

	doJSON(t, app, "POST", "/trips", japanTrip)
	doJSON(t, app, "POST", "/trips", strings.Replace(japanTrip, "Japan", "Tokyo again", 1))

	_, body = doJSON(t, app, "GET", "/trips", "")
	var list []domain.TripSummary
	if err := json.Unmarshal(body, &list); err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 || list[0].Name != "Japan" || list[1].Name != "Tokyo again" {
		t.Errorf("unexpected list: %+v", list)
	}
}

func TestStorageFailure_DoesNotLeak(t *testing.T) {
	repo := newMemTripRepo()
	repo.failWith = errors.New(`pq: password authentication failed for user "trips"`)
	app := setupApp(makeDeps(repo))

	for _, tc := range []struct{ method, path, body string }{
		{"GET", "/trips", ""},
		{"POST", "/trips", japanTrip},
		{"GET", "/trips/1", ""},
		{"PUT", "/trips/1", `{"name":"x"}`},
		{"DELETE", "/trips/1", ""},
	} {
		status, body := doJSON(t, app, tc.method, tc.path, tc.body)
		if status != 500 {
			t.Errorf("%s %s: expected 500, got %d", tc.method, tc.path, status)
		}
		if bytes.Contains(body, []byte("password")) {
			t.Errorf("%s %s: internal error leaked: %s", tc.method, tc.path, body)
		}
		if e := decodeError(t, body); e.Error != "Internal server error" {
			t.Errorf("%s %s: unexpected error %q", tc.method, tc.path, e.Error)
		}
	}
}

func TestItinerary(t *testing.T) {
	app := setupApp(makeDeps(newMemTripRepo()))
	doJSON(t, app, "POST", "/trips", japanTrip)

	status, body := doJSON(t, app, "GET", "/trips/1/itinerary", "")
	if status != 200 {
		t.Fatalf("expected 200, got %d: %s", status, body)
	}
	var it domain.Itinerary
	if err := json.Unmarshal(body, &it); err != nil {
		t.Fatal(err)
	}
	if it.TripID != 1 || len(it.Legs) != 1 || len(it.Path.Coordinates) != 2 {
		t.Errorf("unexpected itinerary: %+v", it)
	}
	if it.TotalDistanceKm < 10700 || it.TotalDistanceKm > 10800 {
		t.Errorf("Madrid→Tokyo distance off: %.1f", it.TotalDistanceKm)
	}

	if status, _ := doJSON(t, app, "GET", "/trips/2/itinerary", ""); status != 404 {
		t.Errorf("expected 404 for missing trip, got %d", status)
	}
}

// ---- Cities ----

func TestCityAutocomplete(t *testing.T) {
	deps := makeDeps(newMemTripRepo(), func(d *handler.Dependencies) {
		d.Cities = usecases.NewCityService(&mockDirectory{
			searchFn: func(ctx context.Context, prefix string) ([]domain.CitySuggestion, error) {
				return []domain.CitySuggestion{
					{City: domain.City{Name: "Madrid", CountryCode: "ES", Latitude: 40.4, Longitude: -3.7}, Country: "Spain"},
				}, nil
			},
		}, nil)
	})
	app := setupApp(deps)

	status, body := doJSON(t, app, "GET", "/cities/autocomplete?q=Mad", "")
	if status != 200 {
		t.Fatalf("expected 200, got %d", status)
	}
	var cities []domain.CitySuggestion
	if err := json.Unmarshal(body, &cities); err != nil {
		t.Fatal(err)
	}
	if len(cities) != 1 || cities[0].Name != "Madrid" || cities[0].Country != "Spain" {
		t.Errorf("unexpected cities: %+v", cities)
	}
}

func TestCityAutocomplete_UpstreamFailure(t *testing.T) {
	deps := makeDeps(newMemTripRepo(), func(d *handler.Dependencies) {
		d.Cities = usecases.NewCityService(&mockDirectory{
			searchFn: func(ctx context.Context, prefix string) ([]domain.CitySuggestion, error) {
				return nil, errors.New("dial tcp: i/o timeout")
			},
		}, nil)
	})
	app := setupApp(deps)

	status, body := doJSON(t, app, "GET", "/cities/autocomplete?q=Tok", "")
	if status != 502 {
		t.Fatalf("expected 502, got %d", status)
	}
	if e := decodeError(t, body); e.Error != "City lookup failed" {
		t.Errorf("unexpected error %q", e.Error)
	}
}

// ---- System ----

func TestHealth_Returns200(t *testing.T) {
	app := setupApp(makeDeps(newMemTripRepo()))

	status, body := doJSON(t, app, "GET", "/health", "")
	if status != 200 {
		t.Fatalf("expected 200, got %d", status)
	}
	var result map[string]interface{}
	_ = json.Unmarshal(body, &result)
	if result["status"] != "healthy" {
		t.Errorf("expected healthy, got %v", result["status"])
	}
}

func TestReady_NoDB(t *testing.T) {
	app := setupApp(makeDeps(newMemTripRepo()))

	if status, _ := doJSON(t, app, "GET", "/ready", ""); status != 503 {
		t.Fatalf("expected 503 without a database, got %d", status)
	}
}

func TestUnknownRoute_JSONError(t *testing.T) {
	app := setupApp(makeDeps(newMemTripRepo()))

	status, body := doJSON(t, app, "GET", "/nope", "")
	if status != 404 {
		t.Fatalf("expected 404, got %d", status)
	}
	if e := decodeError(t, body); e.Error == "" {
		t.Errorf("expected JSON error body, got %s", body)
	}
}

func TestAPIVersionHeader(t *testing.T) {
	app := setupApp(makeDeps(newMemTripRepo()))

	resp, err := app.Test(httptest.NewRequest("GET", "/health", nil), -1)
	if err != nil {
		t.Fatal(err)
	}
	if v := resp.Header.Get("X-API-Version"); v != "1.0.0" {
		t.Errorf("expected X-API-Version 1.0.0, got %q", v)
	}
	if resp.Header.Get("X-Request-Id") == "" {
		t.Error("expected a request id header")
	}
}

func TestETag_NotModified(t *testing.T) {
	app := setupApp(makeDeps(newMemTripRepo()))
	doJSON(t, app, "POST", "/trips", japanTrip)

	resp, err := app.Test(httptest.NewRequest("GET", "/trips/1", nil), -1)
	if err != nil {
		t.Fatal(err)
	}
	etag := resp.Header.Get("ETag")
	if etag == "" {
		t.Fatal("expected ETag header")
	}
	if cc := resp.Header.Get("Cache-Control"); cc != "private, no-cache" {
		t.Errorf("unexpected Cache-Control %q", cc)
	}

	req := httptest.NewRequest("GET", "/trips/1", nil)
	req.Header.Set("If-None-Match", etag)
	resp, err = app.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 304 {
		t.Errorf("expected 304, got %d", resp.StatusCode)
	}
}

func TestDocs(t *testing.T) {
	app := setupApp(makeDeps(newMemTripRepo()))

	status, body := doJSON(t, app, "GET", "/docs/openapi.yaml", "")
	if status != 200 || !bytes.HasPrefix(body, []byte("openapi: 3")) {
		t.Errorf("unexpected openapi response %d %.40q", status, body)
	}
	if status, _ := doJSON(t, app, "GET", "/docs", ""); status != 200 {
		t.Errorf("expected 200 for swagger ui, got %d", status)
	}
}
