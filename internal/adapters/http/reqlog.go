package http

import (
	"context"
	"log/slog"

	"github.com/gofiber/fiber/v2"
)

type ctxKey string

const (
	requestIDKey ctxKey = "request_id"
	loggerKey    ctxKey = "logger"
)

// RequestIDLogMiddleware puts a request-scoped *slog.Logger into the user
// context. It carries the Fiber request ID and the trail session the request
// was served against, so a line logged during a reset names the old session.
func RequestIDLogMiddleware(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var attrs []any
		ctx := c.UserContext()

		if rid, ok := c.Locals("requestid").(string); ok && rid != "" {
			attrs = append(attrs, "request_id", rid)
			ctx = context.WithValue(ctx, requestIDKey, rid)
		}
		if deps != nil && deps.Trail != nil {
			attrs = append(attrs, "session", deps.Trail.Trail().Snapshot().SessionID)
		}
		if len(attrs) == 0 {
			return c.Next()
		}

		ctx = context.WithValue(ctx, loggerKey, slog.Default().With(attrs...))
		c.SetUserContext(ctx)
		return c.Next()
	}
}

// LoggerFromCtx extracts the per-request slog.Logger from a context.
// Falls back to the default logger if none is set.
func LoggerFromCtx(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey).(*slog.Logger); ok {
		return l
	}
	return slog.Default()
}
