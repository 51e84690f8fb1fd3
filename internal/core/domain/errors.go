package domain

import (
	"errors"
	"fmt"
)

// ErrTripNotFound is returned when an identifier does not resolve to a trip.
var ErrTripNotFound = errors.New("trip not found")

// FieldError identifies a single validation failure. Field uses path
// notation for nested values, e.g. "waypoints[1].date".
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError carries every field error found in a rejected payload.
type ValidationError struct {
	Details []FieldError
}

func (e *ValidationError) Error() string {
	if len(e.Details) == 1 {
		return fmt.Sprintf("validation error: %s: %s", e.Details[0].Field, e.Details[0].Message)
	}
	return fmt.Sprintf("validation error: %d fields", len(e.Details))
}
