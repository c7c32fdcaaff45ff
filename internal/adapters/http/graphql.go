package http

import (
	"math"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"
	"github.com/graphql-go/graphql/language/ast"

	"github.com/samirrijal/breadcrumbs/internal/core/domain"
)

// seqScalar carries sequence numbers and watermarks, which outgrow the
// 32-bit GraphQL Int. It accepts integer literals, strings, and JSON
// numbers up to 2^53 in variables.
var seqScalar = graphql.NewScalar(graphql.ScalarConfig{
	Name:         "Seq",
	Description:  "Unsigned 64-bit sequence number",
	Serialize:    serializeSeq,
	ParseValue:   parseSeq,
	ParseLiteral: parseSeqLiteral,
})

func serializeSeq(v interface{}) interface{} {
	if x, ok := v.(uint64); ok {
		return x
	}
	return nil
}

func parseSeqLiteral(v ast.Value) interface{} {
	switch x := v.(type) {
	case *ast.IntValue:
		return parseSeq(x.Value)
	case *ast.StringValue:
		return parseSeq(x.Value)
	}
	return nil
}

func parseSeq(v interface{}) interface{} {
	switch x := v.(type) {
	case string:
		n, err := strconv.ParseUint(x, 10, 64)
		if err != nil {
			return nil
		}
		return n
	case float64:
		if x < 0 || x > 1<<53 || x != math.Trunc(x) {
			return nil
		}
		return uint64(x)
	case int:
		if x < 0 {
			return nil
		}
		return uint64(x)
	}
	return nil
}

// seqArg returns the Seq argument name, or 0 when it was not given.
func seqArg(args map[string]interface{}, name string) uint64 {
	v, _ := args[name].(uint64)
	return v
}

// buildSchema creates the GraphQL schema wired to the trail service.
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

	pointType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Breadcrumb",
		Fields: graphql.Fields{
			"seq":  &graphql.Field{Type: seqScalar},
			"lat":  &graphql.Field{Type: graphql.Float},
			"lon":  &graphql.Field{Type: graphql.Float},
			"time": &graphql.Field{Type: graphql.DateTime},
		},
	})

	segmentType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Segment",
		Fields: graphql.Fields{
			"seq":  &graphql.Field{Type: seqScalar},
			"from": &graphql.Field{Type: pointType},
			"to":   &graphql.Field{Type: pointType},
		},
	})

	statusType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Trail",
		Fields: graphql.Fields{
			"session_id":   &graphql.Field{Type: graphql.String},
			"state":        &graphql.Field{Type: graphql.String},
			"watermark":    &graphql.Field{Type: seqScalar},
			"points":       &graphql.Field{Type: graphql.Int},
			"segments":     &graphql.Field{Type: graphql.Int},
			"index_height": &graphql.Field{Type: graphql.Int},
		},
	})

	receiptType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Receipt",
		Fields: graphql.Fields{
			"seq":      &graphql.Field{Type: seqScalar},
			"retained": &graphql.Field{Type: graphql.Boolean},
		},
	})

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"trail": &graphql.Field{
				Type:        statusType,
				Description: "Current session, state and sizes",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Trail.Status(p.Context), nil
				},
			},
			"extent": &graphql.Field{
				Type:        boundsType,
				Description: "Rectangle covering the whole trail; null when empty",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					b, ok := deps.Trail.Extent(p.Context)
					if !ok {
						return nil, nil
					}
					return b, nil
				},
			},
			"segments": &graphql.Field{
				Type:        graphql.NewList(segmentType),
				Description: "Segments crossing a viewport, newer than since",
				Args: graphql.FieldConfigArgument{
					"min_lat": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"min_lon": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"max_lat": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"max_lon": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"since":   &graphql.ArgumentConfig{Type: seqScalar},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					view := domain.Bounds{
						MinLat: p.Args["min_lat"].(float64),
						MinLon: p.Args["min_lon"].(float64),
						MaxLat: p.Args["max_lat"].(float64),
						MaxLon: p.Args["max_lon"].(float64),
					}
					page, err := deps.Trail.VisibleSegments(p.Context, view, seqArg(p.Args, "since"))
					if err != nil {
						return nil, err
					}
					return page.Segments, nil
				},
			},
			"points": &graphql.Field{
				Type:        graphql.NewList(pointType),
				Description: "Retained points newer than since",
				Args: graphql.FieldConfigArgument{
					"since": &graphql.ArgumentConfig{Type: seqScalar},
					"limit": &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 500},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					limit := p.Args["limit"].(int)
					page, err := deps.Trail.Points(p.Context, seqArg(p.Args, "since"), limit)
					if err != nil {
						return nil, err
					}
					return page.Points, nil
				},
			},
			"path": &graphql.Field{
				Type:        graphql.NewList(geoPointType),
				Description: "Simplified overview polyline (tolerance in degrees)",
				Args: graphql.FieldConfigArgument{
					"tolerance": &graphql.ArgumentConfig{Type: graphql.Float, DefaultValue: 0.0},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Trail.OverviewPath(p.Context, p.Args["tolerance"].(float64))
				},
			},
		},
	})

	mutationType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Mutation",
		Fields: graphql.Fields{
			"addSample": &graphql.Field{
				Type:        receiptType,
				Description: "Feed one position fix into the trail",
				Args: graphql.FieldConfigArgument{
					"lat":  &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"lon":  &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"time": &graphql.ArgumentConfig{Type: graphql.DateTime},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					sample := domain.Sample{
						Lat: p.Args["lat"].(float64),
						Lon: p.Args["lon"].(float64),
					}
					if ts, ok := p.Args["time"].(time.Time); ok {
						sample.Time = ts
					}
					return deps.Trail.AddSample(p.Context, sample)
				},
			},
			"reset": &graphql.Field{
				Type:        statusType,
				Description: "Clear the trail and start a new session",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Trail.Reset(p.Context), nil
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
		if err := c.BodyParser(&req); err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "invalid request body"})
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
