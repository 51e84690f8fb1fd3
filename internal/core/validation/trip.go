// Package validation turns untrusted trip payloads into domain.NewTrip values.
// It is the only place where user input crosses into the validated domain
// types, and it never performs I/O.
package validation

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/samirrijal/tripplanner/internal/core/domain"
)

const (
	MsgEmpty      = "Cannot be empty"
	MsgDateOrder  = "The date cannot be earlier than the date of the previous waypoint."
	MsgCoordinate = "Must be a valid coordinate"
	MsgTimestamp  = "Must be a Unix timestamp in seconds"
	MsgCity       = "Must be an object with a city name"
)

// Storable date range: 0001-01-01T00:00:00Z to 9999-12-31T23:59:59Z.
const (
	minUnixSeconds = -62135596800
	maxUnixSeconds = 253402300799
)

// TripPayload is a trip as it arrives from a client: decoded JSON or
// GraphQL arguments with no type guarantees.
type TripPayload struct {
	Name      any `json:"name"`
	Waypoints any `json:"waypoints"`
}

// ValidateTrip returns the field errors for p in the order the checks ran.
// An empty result means p is valid.
func ValidateTrip(p TripPayload) []domain.FieldError {
	_, errs := ParseTrip(p)
	return errs
}

// ParseTrip validates p and converts it to a domain.NewTrip. The returned
// trip must only be used when the error list is empty.
//
// Emptiness checks for every waypoint run first, then a second pass flags
// each waypoint whose date precedes the previous one. Equal consecutive
// dates are accepted.
func ParseTrip(p TripPayload) (domain.NewTrip, []domain.FieldError) {
	var (
		trip domain.NewTrip
		errs []domain.FieldError
	)

	name, ok := p.Name.(string)
	if !ok || name == "" {
		errs = append(errs, fieldError("name", MsgEmpty))
	}
	trip.Name = name

	items, ok := p.Waypoints.([]any)
	if !ok || len(items) == 0 {
		// An empty list never also reports per-waypoint errors.
		errs = append(errs, fieldError("waypoints", MsgEmpty))
		return trip, errs
	}

	trip.Waypoints = make([]domain.Waypoint, len(items))
	dates := make([]*float64, len(items))

	for i, item := range items {
		obj, _ := item.(map[string]any)
		path := fmt.Sprintf("waypoints[%d]", i)

		origin, cityErrs := parseCity(obj["origin"], path+".origin")
		errs = append(errs, cityErrs...)

		destination, cityErrs := parseCity(obj["destination"], path+".destination")
		errs = append(errs, cityErrs...)

		date, comparable, dateErr := parseDate(obj["date"], path+".date")
		if dateErr != nil {
			errs = append(errs, *dateErr)
		}
		if comparable {
			d := date
			dates[i] = &d
		}

		trip.Waypoints[i] = domain.Waypoint{
			Origin:      origin,
			Destination: destination,
			Date:        int64(date),
		}
	}

	for i := 1; i < len(items); i++ {
		prev, cur := dates[i-1], dates[i]
		if prev != nil && cur != nil && *prev > *cur {
			errs = append(errs, fieldError(fmt.Sprintf("waypoints[%d].date", i), MsgDateOrder))
		}
	}

	return trip, errs
}

// ValidateName applies the trip name rule on its own, for renames.
func ValidateName(name string) []domain.FieldError {
	if name == "" {
		return []domain.FieldError{fieldError("name", MsgEmpty)}
	}
	return nil
}

// parseCity requires an object with a non-empty name. Coordinates are
// optional but must be in range when present.
func parseCity(v any, path string) (domain.City, []domain.FieldError) {
	obj, ok := v.(map[string]any)
	if !ok {
		if unset(v) {
			return domain.City{}, []domain.FieldError{fieldError(path, MsgEmpty)}
		}
		return domain.City{}, []domain.FieldError{fieldError(path, MsgCity)}
	}
	name, _ := obj["name"].(string)
	if name == "" {
		return domain.City{}, []domain.FieldError{fieldError(path, MsgEmpty)}
	}

	city := domain.City{Name: name}
	city.CountryCode, _ = obj["countryCode"].(string)

	var errs []domain.FieldError
	if lat, present, ok := coordinate(obj, "latitude", 90); !ok {
		errs = append(errs, fieldError(path+".latitude", MsgCoordinate))
	} else if present {
		city.Latitude = lat
	}
	if lon, present, ok := coordinate(obj, "longitude", 180); !ok {
		errs = append(errs, fieldError(path+".longitude", MsgCoordinate))
	} else if present {
		city.Longitude = lon
	}
	return city, errs
}

// coordinate reads obj[key]. A missing or null value is fine; anything else
// must be a number within ±limit.
func coordinate(obj map[string]any, key string, limit float64) (value float64, present, ok bool) {
	raw, exists := obj[key]
	if !exists || raw == nil {
		return 0, false, true
	}
	f, isNum := number(raw)
	if !isNum || math.IsNaN(f) || f < -limit || f > limit {
		return 0, true, false
	}
	return f, true, true
}

// parseDate reports the numeric date and whether it can take part in the
// ordering check. Zero counts as unset but is still comparable.
func parseDate(v any, path string) (float64, bool, *domain.FieldError) {
	f, ok := number(v)
	if !ok {
		msg := MsgTimestamp
		if unset(v) {
			msg = MsgEmpty
		}
		fe := fieldError(path, msg)
		return 0, false, &fe
	}
	if f == 0 {
		fe := fieldError(path, MsgEmpty)
		return 0, true, &fe
	}
	if f != math.Trunc(f) || f < minUnixSeconds || f > maxUnixSeconds {
		fe := fieldError(path, MsgTimestamp)
		return f, true, &fe
	}
	return f, true, nil
}

// unset reports values a client sends for "nothing": absent, null, false
// or the empty string.
func unset(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return x == ""
	case bool:
		return !x
	default:
		return false
	}
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

func fieldError(field, message string) domain.FieldError {
	return domain.FieldError{Field: field, Message: message}
}
