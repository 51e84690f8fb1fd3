package http

import (
	"encoding/json"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/tripplanner/internal/core/validation"
)

type createdResponse struct {
	Message string `json:"message"`
	TripID  int64  `json:"tripId"`
}

type renameRequest struct {
	Name any `json:"name"`
}

// tripID parses the :id route parameter. Only positive integers are ids.
func tripID(c *fiber.Ctx) (int64, bool) {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// ListTripsHandler returns every trip as {id, name}.
func ListTripsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		trips, err := deps.Trips.List(c.UserContext())
		if err != nil {
			return errInternal(c, err)
		}
		return c.JSON(trips)
	}
}

// CreateTripHandler validates and stores a new trip.
func CreateTripHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var payload validation.TripPayload
		if err := json.Unmarshal(c.Body(), &payload); err != nil {
			return errBadRequest(c, msgInvalidBody)
		}

		id, err := deps.Trips.Create(c.UserContext(), payload)
		if err != nil {
			return writeError(c, err)
		}

		c.Location("/trips/" + strconv.FormatInt(id, 10))
		return c.Status(fiber.StatusCreated).JSON(createdResponse{
			Message: "Trip created successfully",
			TripID:  id,
		})
	}
}

// GetTripHandler returns a trip with its waypoints.
func GetTripHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := tripID(c)
		if !ok {
			return errBadRequest(c, msgInvalidID)
		}
		trip, err := deps.Trips.Get(c.UserContext(), id)
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(trip)
	}
}

// UpdateTripHandler renames a trip.
func UpdateTripHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := tripID(c)
		if !ok {
			return errBadRequest(c, msgInvalidID)
		}

		var req renameRequest
		if err := json.Unmarshal(c.Body(), &req); err != nil {
			return errBadRequest(c, msgInvalidBody)
		}
		// Non-string names fall through as "" and fail validation.
		name, _ := req.Name.(string)

		if err := deps.Trips.Rename(c.UserContext(), id, name); err != nil {
			return writeError(c, err)
		}
		return c.SendString("Trip modified with ID: " + strconv.FormatInt(id, 10))
	}
}

// DeleteTripHandler removes a trip and its waypoints.
func DeleteTripHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := tripID(c)
		if !ok {
			return errBadRequest(c, msgInvalidID)
		}
		if err := deps.Trips.Delete(c.UserContext(), id); err != nil {
			return writeError(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// ItineraryHandler returns leg distances, bounds and the path of a trip.
func ItineraryHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := tripID(c)
		if !ok {
			return errBadRequest(c, msgInvalidID)
		}
		it, err := deps.Trips.Itinerary(c.UserContext(), id)
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(it)
	}
}

// CityAutocompleteHandler suggests cities for the q prefix.
func CityAutocompleteHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		q := c.Query("q")
		if len(q) > 100 {
			return errBadRequest(c, "query too long (max 100 characters)")
		}
		cities, err := deps.Cities.Autocomplete(c.UserContext(), q)
		if err != nil {
			return errBadGateway(c, msgCityLookup, err)
		}
		c.Set(fiber.HeaderCacheControl, "public, max-age=3600")
		return c.JSON(cities)
	}
}
