package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"

	"github.com/samirrijal/mylocation/internal/core/domain"
)

// buildSchema creates the GraphQL schema wired to our services. Field
// names follow the JSON tags of the domain types, which graphql-go's
// default resolver reads.
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

	coordinatesType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Coordinates",
		Fields: graphql.Fields{
			"latitude":  &graphql.Field{Type: graphql.Float},
			"longitude": &graphql.Field{Type: graphql.Float},
			"accuracy":  &graphql.Field{Type: graphql.Float, Description: "Accuracy radius in meters"},
		},
	})

	fixType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Fix",
		Fields: graphql.Fields{
			"device_id":   &graphql.Field{Type: graphql.String},
			"time":        &graphql.Field{Type: graphql.DateTime},
			"coordinates": &graphql.Field{Type: coordinatesType},
			"source":      &graphql.Field{Type: graphql.String},
		},
	})

	viewportType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Viewport",
		Fields: graphql.Fields{
			"center": &graphql.Field{Type: geoPointType},
			"zoom":   &graphql.Field{Type: graphql.Int},
			"width":  &graphql.Field{Type: graphql.Int},
			"height": &graphql.Field{Type: graphql.Int},
		},
	})

	pixelType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Pixel",
		Fields: graphql.Fields{
			"x": &graphql.Field{Type: graphql.Float},
			"y": &graphql.Field{Type: graphql.Float},
		},
	})

	rectType := graphql.NewObject(graphql.ObjectConfig{
		Name: "PixelRect",
		Fields: graphql.Fields{
			"left":   &graphql.Field{Type: graphql.Float},
			"top":    &graphql.Field{Type: graphql.Float},
			"width":  &graphql.Field{Type: graphql.Float},
			"height": &graphql.Field{Type: graphql.Float},
		},
	})

	markerType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Marker",
		Fields: graphql.Fields{
			"position": &graphql.Field{Type: geoPointType},
			"pixel":    &graphql.Field{Type: pixelType},
			"visible":  &graphql.Field{Type: graphql.Boolean},
			"tile":     &graphql.Field{Type: graphql.String},
		},
	})

	elementType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Element",
		Fields: graphql.Fields{
			"pane": &graphql.Field{
				Type: graphql.String,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return string(p.Source.(domain.ElementState).Pane), nil
				},
			},
			"classes": &graphql.Field{Type: graphql.NewList(graphql.String)},
			"rect":    &graphql.Field{Type: rectType},
			"mounted": &graphql.Field{Type: graphql.Boolean},
		},
	})

	frameType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Frame",
		Fields: graphql.Fields{
			"session_id": &graphql.Field{Type: graphql.String},
			"seq": &graphql.Field{
				Type: graphql.Int,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return int(p.Source.(*domain.Frame).Seq), nil
				},
			},
			"time":     &graphql.Field{Type: graphql.DateTime},
			"viewport": &graphql.Field{Type: viewportType},
			"bounds":   &graphql.Field{Type: boundsType},
			"markers":  &graphql.Field{Type: graphql.NewList(markerType)},
			"elements": &graphql.Field{Type: graphql.NewList(elementType)},
		},
	})

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"latestFix": &graphql.Field{
				Type:        fixType,
				Description: "Most recent fix of a device",
				Args: graphql.FieldConfigArgument{
					"device": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					fix, err := deps.Fixes.Latest(p.Context, p.Args["device"].(string))
					if errors.Is(err, domain.ErrNotFound) {
						return nil, nil
					}
					return fix, err
				},
			},
			"fixes": &graphql.Field{
				Type:        graphql.NewList(fixType),
				Description: "Recent fixes of a device, newest first",
				Args: graphql.FieldConfigArgument{
					"device": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"limit":  &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 20},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Fixes.History(p.Context, p.Args["device"].(string), 0, p.Args["limit"].(int))
				},
			},
			"frame": &graphql.Field{
				Type:        frameType,
				Description: "Current scene of an overlay session",
				Args: graphql.FieldConfigArgument{
					"session": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Sessions.Frame(p.Context, p.Args["session"].(string))
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{
		Query: queryType,
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
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}

		result := graphql.Do(graphql.Params{
			Schema:         schema,
			RequestString:  req.Query,
			VariableValues: req.Variables,
			OperationName:  req.OperationName,
			Context:        c.UserContext(),
		})
		if result.HasErrors() {
			LoggerFromCtx(c.UserContext()).Warn("graphql errors", "errors", len(result.Errors))
		}

		return c.JSON(result)
	}
}
