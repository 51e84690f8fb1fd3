package domain

import (
	"time"
)

// City is a named geographic point. Waypoints store two of them flattened
// into scalar columns.
type City struct {
	Name        string  `json:"name"`
	CountryCode string  `json:"countryCode"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
}

// Point returns the city's coordinates.
func (c City) Point() GeoPoint {
	return GeoPoint{Lat: c.Latitude, Lon: c.Longitude}
}

// Waypoint is one origin→destination leg of a trip.
// Date is a Unix timestamp in seconds.
type Waypoint struct {
	Origin      City  `json:"origin"`
	Destination City  `json:"destination"`
	Date        int64 `json:"date"`
}

// Time returns the waypoint date as a UTC time.
func (w Waypoint) Time() time.Time {
	return time.Unix(w.Date, 0).UTC()
}

// Trip is a named, ordered collection of waypoints.
type Trip struct {
	ID        int64      `json:"id"`
	Name      string     `json:"name"`
	Waypoints []Waypoint `json:"waypoints"`
}

// NewTrip is a trip that passed validation and has not been stored yet.
// Only the validation package produces values of this type from user input.
type NewTrip struct {
	Name      string
	Waypoints []Waypoint
}

// TripSummary is the list representation of a trip.
type TripSummary struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// TripEvent types.
const (
	TripCreated = "created"
	TripUpdated = "updated"
	TripDeleted = "deleted"
)

// TripEvent is published after a trip mutation has been committed.
type TripEvent struct {
	Type       string    `json:"type"`
	TripID     int64     `json:"trip_id"`
	Name       string    `json:"name,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// CitySuggestion is an autocomplete result.
type CitySuggestion struct {
	City
	Country string `json:"country"`
	Region  string `json:"region,omitempty"`
}

// ItineraryLeg is a waypoint with its great-circle length.
type ItineraryLeg struct {
	Waypoint
	DistanceKm float64 `json:"distanceKm"`
}

// Itinerary is the map-ready view of a trip: legs with distances,
// the overall bounding box and the path through every city in order.
type Itinerary struct {
	TripID          int64          `json:"tripId"`
	Name            string         `json:"name"`
	Legs            []ItineraryLeg `json:"legs"`
	TotalDistanceKm float64        `json:"totalDistanceKm"`
	Bounds          Bounds         `json:"bounds"`
	Path            GeoLineString  `json:"path"`
	StartsAt        *time.Time     `json:"startsAt,omitempty"`
	EndsAt          *time.Time     `json:"endsAt,omitempty"`
}
