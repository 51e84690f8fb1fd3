package http

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"
	"github.com/graphql-go/graphql/language/ast"

	"github.com/samirrijal/tripplanner/internal/core/domain"
	"github.com/samirrijal/tripplanner/internal/core/validation"
	"github.com/samirrijal/tripplanner/internal/pkg/logging"
)

// timestampScalar carries Unix seconds. Int is 32-bit in GraphQL.
var timestampScalar = graphql.NewScalar(graphql.ScalarConfig{
	Name:        "Timestamp",
	Description: "Unix time in seconds",
	Serialize: func(value interface{}) interface{} {
		switch v := value.(type) {
		case int64:
			return v
		case time.Time:
			return v.Unix()
		case *time.Time:
			if v == nil {
				return nil
			}
			return v.Unix()
		}
		return nil
	},
	// Fractional values pass through so validation can report them.
	ParseValue: func(value interface{}) interface{} {
		switch v := value.(type) {
		case float64:
			return v
		case int:
			return int64(v)
		case int64:
			return v
		}
		return nil
	},
	ParseLiteral: func(valueAST ast.Value) interface{} {
		switch v := valueAST.(type) {
		case *ast.IntValue:
			if n, err := strconv.ParseInt(v.Value, 10, 64); err == nil {
				return n
			}
		case *ast.FloatValue:
			if f, err := strconv.ParseFloat(v.Value, 64); err == nil {
				return f
			}
		}
		return nil
	},
})

// validationGQLError exposes field errors under extensions.details.
type validationGQLError struct {
	details []domain.FieldError
}

func (e *validationGQLError) Error() string { return msgValidation }

func (e *validationGQLError) Extensions() map[string]interface{} {
	return map[string]interface{}{"details": e.details}
}

// gqlError maps service errors the same way the REST handlers do.
func gqlError(ctx context.Context, err error) error {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		return &validationGQLError{details: verr.Details}
	case errors.Is(err, domain.ErrTripNotFound):
		return errors.New(msgNotFound)
	default:
		logging.FromContext(ctx).Error("graphql resolver failed", "error", err)
		return errors.New(msgInternal)
	}
}

func waypointMap(wp domain.Waypoint) map[string]interface{} {
	return map[string]interface{}{
		"origin":      wp.Origin,
		"destination": wp.Destination,
		"date":        wp.Date,
	}
}

// buildSchema creates the GraphQL schema wired to our services.
func buildSchema(deps *Dependencies) (graphql.Schema, error) {
	geoPointType := graphql.NewObject(graphql.ObjectConfig{
		Name: "GeoPoint",
		Fields: graphql.Fields{
			"lat": &graphql.Field{Type: graphql.Float},
			"lon": &graphql.Field{Type: graphql.Float},
		},
	})

	boundsType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Bounds",
		Fields: graphql.Fields{
			"min_lat": &graphql.Field{Type: graphql.Float},
			"min_lon": &graphql.Field{Type: graphql.Float},
			"max_lat": &graphql.Field{Type: graphql.Float},
			"max_lon": &graphql.Field{Type: graphql.Float},
		},
	})

	cityType := graphql.NewObject(graphql.ObjectConfig{
		Name: "City",
		Fields: graphql.Fields{
			"name":        &graphql.Field{Type: graphql.String},
			"countryCode": &graphql.Field{Type: graphql.String},
			"latitude":    &graphql.Field{Type: graphql.Float},
			"longitude":   &graphql.Field{Type: graphql.Float},
		},
	})

	waypointType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Waypoint",
		Fields: graphql.Fields{
			"origin":      &graphql.Field{Type: cityType},
			"destination": &graphql.Field{Type: cityType},
			"date":        &graphql.Field{Type: timestampScalar},
		},
	})

	tripType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Trip",
		Fields: graphql.Fields{
			"id":   &graphql.Field{Type: graphql.Int},
			"name": &graphql.Field{Type: graphql.String},
			"waypoints": &graphql.Field{
				Type: graphql.NewList(waypointType),
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					trip, ok := p.Source.(*domain.Trip)
					if !ok {
						return nil, nil
					}
					out := make([]map[string]interface{}, 0, len(trip.Waypoints))
					for _, wp := range trip.Waypoints {
						out = append(out, waypointMap(wp))
					}
					return out, nil
				},
			},
		},
	})

	tripSummaryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "TripSummary",
		Fields: graphql.Fields{
			"id":   &graphql.Field{Type: graphql.Int},
			"name": &graphql.Field{Type: graphql.String},
		},
	})

	legType := graphql.NewObject(graphql.ObjectConfig{
		Name: "ItineraryLeg",
		Fields: graphql.Fields{
			"origin":      &graphql.Field{Type: cityType},
			"destination": &graphql.Field{Type: cityType},
			"date":        &graphql.Field{Type: timestampScalar},
			"distanceKm":  &graphql.Field{Type: graphql.Float},
		},
	})

	itineraryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Itinerary",
		Fields: graphql.Fields{
			"tripId":          &graphql.Field{Type: graphql.Int},
			"name":            &graphql.Field{Type: graphql.String},
			"totalDistanceKm": &graphql.Field{Type: graphql.Float},
			"bounds":          &graphql.Field{Type: boundsType},
			"startsAt":        &graphql.Field{Type: timestampScalar},
			"endsAt":          &graphql.Field{Type: timestampScalar},
			"legs": &graphql.Field{
				Type: graphql.NewList(legType),
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					it, ok := p.Source.(*domain.Itinerary)
					if !ok {
						return nil, nil
					}
					out := make([]map[string]interface{}, 0, len(it.Legs))
					for _, leg := range it.Legs {
						m := waypointMap(leg.Waypoint)
						m["distanceKm"] = leg.DistanceKm
						out = append(out, m)
					}
					return out, nil
				},
			},
			"path": &graphql.Field{
				Type: graphql.NewList(geoPointType),
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					if it, ok := p.Source.(*domain.Itinerary); ok {
						return it.Path.Coordinates, nil
					}
					return nil, nil
				},
			},
		},
	})

	cityInput := graphql.NewInputObject(graphql.InputObjectConfig{
		Name: "CityInput",
		Fields: graphql.InputObjectConfigFieldMap{
			"name":        &graphql.InputObjectFieldConfig{Type: graphql.String},
			"countryCode": &graphql.InputObjectFieldConfig{Type: graphql.String},
			"latitude":    &graphql.InputObjectFieldConfig{Type: graphql.Float},
			"longitude":   &graphql.InputObjectFieldConfig{Type: graphql.Float},
		},
	})

	waypointInput := graphql.NewInputObject(graphql.InputObjectConfig{
		Name: "WaypointInput",
		Fields: graphql.InputObjectConfigFieldMap{
			"origin":      &graphql.InputObjectFieldConfig{Type: cityInput},
			"destination": &graphql.InputObjectFieldConfig{Type: cityInput},
			"date":        &graphql.InputObjectFieldConfig{Type: timestampScalar},
		},
	})

	idArgs := graphql.FieldConfigArgument{
		"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Int)},
	}

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"trips": &graphql.Field{
				Type:        graphql.NewList(tripSummaryType),
				Description: "List all trips",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					trips, err := deps.Trips.List(p.Context)
					if err != nil {
						return nil, gqlError(p.Context, err)
					}
					return trips, nil
				},
			},
			"trip": &graphql.Field{
				Type:        tripType,
				Description: "Get a trip with its waypoints",
				Args:        idArgs,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					trip, err := deps.Trips.Get(p.Context, int64(p.Args["id"].(int)))
					if err != nil {
						return nil, gqlError(p.Context, err)
					}
					return trip, nil
				},
			},
			"itinerary": &graphql.Field{
				Type:        itineraryType,
				Description: "Leg distances, bounds and path of a trip",
				Args:        idArgs,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					it, err := deps.Trips.Itinerary(p.Context, int64(p.Args["id"].(int)))
					if err != nil {
						return nil, gqlError(p.Context, err)
					}
					return it, nil
				},
			},
		},
	})

	mutationType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Mutation",
		Fields: graphql.Fields{
			"createTrip": &graphql.Field{
				Type:        graphql.Int,
				Description: "Create a trip; returns its id",
				Args: graphql.FieldConfigArgument{
					"name":      &graphql.ArgumentConfig{Type: graphql.String},
					"waypoints": &graphql.ArgumentConfig{Type: graphql.NewList(waypointInput)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					id, err := deps.Trips.Create(p.Context, validation.TripPayload{
						Name:      p.Args["name"],
						Waypoints: p.Args["waypoints"],
					})
					if err != nil {
						return nil, gqlError(p.Context, err)
					}
					return id, nil
				},
			},
			"renameTrip": &graphql.Field{
				Type:        tripSummaryType,
				Description: "Rename a trip",
				Args: graphql.FieldConfigArgument{
					"id":   &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Int)},
					"name": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					id := int64(p.Args["id"].(int))
					name := p.Args["name"].(string)
					if err := deps.Trips.Rename(p.Context, id, name); err != nil {
						return nil, gqlError(p.Context, err)
					}
					return domain.TripSummary{ID: id, Name: name}, nil
				},
			},
			"deleteTrip": &graphql.Field{
				Type:        graphql.Boolean,
				Description: "Delete a trip and its waypoints",
				Args:        idArgs,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					if err := deps.Trips.Delete(p.Context, int64(p.Args["id"].(int))); err != nil {
						return nil, gqlError(p.Context, err)
					}
					return true, nil
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{
		Query:    queryType,
		Mutation: mutationType,
	})
}

// GraphQLHandler serves the GraphQL endpoint.
func GraphQLHandler(deps *Dependencies) fiber.Handler {
	schema, err := buildSchema(deps)
	if err != nil {
		// This would be a programming error in the schema definition
		panic("graphql schema build: " + err.Error())
	}

	type gqlRequest struct {
		Query         string                 `json:"query"`
		OperationName string                 `json:"operationName"`
		Variables     map[string]interface{} `json:"variables"`
	}

	return func(c *fiber.Ctx) error {
		var req gqlRequest
		if err := c.BodyParser(&req); err != nil || req.Query == "" {
			return errBadRequest(c, msgInvalidBody)
		}

		result := graphql.Do(graphql.Params{
			Schema:         schema,
			RequestString:  req.Query,
			VariableValues: req.Variables,
			OperationName:  req.OperationName,
			Context:        c.UserContext(),
		})

		return c.JSON(result)
	}
}
