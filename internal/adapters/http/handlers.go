package http

import (
	"errors"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/breadcrumbs/internal/core/domain"
	"github.com/samirrijal/breadcrumbs/internal/core/usecases"
)

var validate = validator.New()

// sampleRequest is the body of POST /v1/samples. Range checks are left to
// the trail so HTTP and NATS producers are judged alike.
type sampleRequest struct {
	Lat      *float64   `json:"lat" validate:"required"`
	Lon      *float64   `json:"lon" validate:"required"`
	Time     *time.Time `json:"time"`
	SourceID string     `json:"source_id" validate:"omitempty,max=64"`
}

// AddSampleHandler feeds one position fix into the trail.
func AddSampleHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req sampleRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		if err := validate.Struct(req); err != nil {
			return errBadRequest(c, err.Error())
		}

		sample := domain.Sample{SourceID: req.SourceID, Lat: *req.Lat, Lon: *req.Lon}
		if req.Time != nil {
			sample.Time = *req.Time
		}

		receipt, err := deps.Trail.AddSample(c.UserContext(), sample)
		if errors.Is(err, domain.ErrInvalidSample) {
			return errInvalidSample(c, err.Error())
		}
		if err != nil {
			return errInternal(c, err.Error())
		}

		status := fiber.StatusOK
		if receipt.Retained {
			status = fiber.StatusCreated
		}
		return c.Status(status).JSON(receipt)
	}
}

// VisibleSegmentsHandler returns the segments crossing a lat/lon viewport,
// optionally only those newer than the since watermark. The viewport is
// either min_lat/min_lon/max_lat/max_lon or lat/lon/radius (meters).
func VisibleSegmentsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		since, err := queryUint(c, "since")
		if err != nil {
			return errBadRequest(c, "since must be a non-negative integer")
		}

		var page *usecases.SegmentPage
		if c.Query("radius") != "" {
			var center domain.GeoPoint
			var radius float64
			if err := parseFloats(c, map[string]*float64{"lat": &center.Lat, "lon": &center.Lon, "radius": &radius}); err != nil {
				return errBadRequest(c, "lat, lon and radius must be numbers")
			}
			page, err = deps.Trail.SegmentsNear(c.UserContext(), center, radius, since)
		} else {
			var view domain.Bounds
			if err := parseFloats(c, map[string]*float64{
				"min_lat": &view.MinLat,
				"min_lon": &view.MinLon,
				"max_lat": &view.MaxLat,
				"max_lon": &view.MaxLon,
			}); err != nil {
				return errBadRequest(c, "min_lat, min_lon, max_lat and max_lon are required numbers")
			}
			page, err = deps.Trail.VisibleSegments(c.UserContext(), view, since)
		}
		if errors.Is(err, domain.ErrInvalidBounds) || errors.Is(err, domain.ErrInvalidArgument) {
			return errBadRequest(c, err.Error())
		}
		if err != nil {
			return errInternal(c, err.Error())
		}
		return c.JSON(page)
	}
}

// ExtentHandler returns the rectangle covering the whole trail, or 204 when
// there is nothing to cover.
func ExtentHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		extent, ok := deps.Trail.Extent(c.UserContext())
		if !ok {
			return c.SendStatus(fiber.StatusNoContent)
		}
		st := deps.Trail.Status(c.UserContext())
		return c.JSON(fiber.Map{
			"session_id": st.SessionID,
			"watermark":  st.Watermark,
			"extent":     extent,
		})
	}
}

// PointsHandler pages through retained points in sequence order.
func PointsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		since, err := queryUint(c, "since")
		if err != nil {
			return errBadRequest(c, "since must be a non-negative integer")
		}
		limit := c.QueryInt("limit", 500)
		if limit <= 0 || limit > 5000 {
			limit = 500
		}

		page, err := deps.Trail.Points(c.UserContext(), since, limit)
		if err != nil {
			return errInternal(c, err.Error())
		}

		cur := Cursor{Since: since, Next: page.Next, Limit: limit, HasMore: page.HasMore}
		SetCursorLinkHeaders(c, cur)
		return c.JSON(fiber.Map{
			"session_id": page.SessionID,
			"watermark":  page.Watermark,
			"data":       page.Points,
			"cursor":     cur,
		})
	}
}

// PathHandler returns the whole trail as a simplified polyline for low zoom
// levels. tolerance is in degrees.
func PathHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		tolerance := 0.0
		if raw := c.Query("tolerance"); raw != "" {
			v, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return errBadRequest(c, "tolerance must be a number")
			}
			tolerance = v
		}

		path, err := deps.Trail.OverviewPath(c.UserContext(), tolerance)
		if errors.Is(err, domain.ErrInvalidArgument) {
			return errBadRequest(c, err.Error())
		}
		if err != nil {
			return errInternal(c, err.Error())
		}
		return c.JSON(fiber.Map{"points": path, "tolerance": tolerance})
	}
}

// TrailStatusHandler describes the current session.
func TrailStatusHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(deps.Trail.Status(c.UserContext()))
	}
}

// ResetTrailHandler clears the trail and starts a new session.
func ResetTrailHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		st := deps.Trail.Reset(c.UserContext())
		LoggerFromCtx(c.UserContext()).Info("trail reset via api", "session", st.SessionID)
		return c.JSON(st)
	}
}

func parseFloats(c *fiber.Ctx, dst map[string]*float64) error {
	for name, p := range dst {
		v, err := strconv.ParseFloat(c.Query(name), 64)
		if err != nil {
			return err
		}
		*p = v
	}
	return nil
}

func queryUint(c *fiber.Ctx, name string) (uint64, error) {
	raw := c.Query(name)
	if raw == "" {
		return 0, nil
	}
	return strconv.ParseUint(raw, 10, 64)
}
