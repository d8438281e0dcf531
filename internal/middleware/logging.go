package middleware

import (
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/horizon-treasury/horizon/internal/actor"
	"github.com/horizon-treasury/horizon/internal/envelope"
)

// RequestLogger emits one structured log line per request with the trace id
// and the acting principal when one is known.
func RequestLogger(logger *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		attrs := []any{
			slog.String("method", c.Method()),
			slog.String("path", c.Path()),
			slog.Int("status", c.Response().StatusCode()),
			slog.Duration("duration", time.Since(start)),
		}
		if traceID, ok := c.Locals(envelope.TraceIDKey).(string); ok && traceID != "" {
			attrs = append(attrs, slog.String("trace_id", traceID))
		}
		if who, ok := c.Locals(ActorKey).(actor.Actor); ok && who.ID != "" {
			attrs = append(attrs, slog.String("actor_id", who.ID))
		}

		if err != nil {
			attrs = append(attrs, slog.Any("error", err))
			logger.Error("request completed", attrs...)
			return err
		}
		logger.Info("request completed", attrs...)
		return nil
	}
}
