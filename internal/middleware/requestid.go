package middleware

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/horizon-treasury/horizon/internal/envelope"
)

const requestIDHeader = "X-Request-ID"

// RequestID ensures each request carries a stable trace identifier. The same
// id rides on the response header and inside every envelope body.
func RequestID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		traceID := c.Get(requestIDHeader)
		if traceID == "" {
			traceID = uuid.NewString()
		}
		c.Set(requestIDHeader, traceID)
		c.Locals(envelope.TraceIDKey, traceID)
		return c.Next()
	}
}
