package envelope

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// Code is the closed set of error codes exposed to callers.
type Code string

const (
	CodeValidation              Code = "VALIDATION_ERROR"
	CodeUnauthorized            Code = "UNAUTHORIZED"
	CodeForbidden               Code = "FORBIDDEN"
	CodeNotFound                Code = "NOT_FOUND"
	CodePolicyBlocked           Code = "POLICY_BLOCKED"
	CodeConflict                Code = "CONFLICT"
	CodeWebhookSignatureInvalid Code = "WEBHOOK_SIGNATURE_INVALID"
	CodeInternal                Code = "INTERNAL"
)

// TraceIDKey is the fiber local under which the per-request trace id lives.
const TraceIDKey = "trace_id"

// Error is a caller-visible failure carrying an envelope code. Internal
// detail never rides on this type; it goes to the log sink instead.
type Error struct {
	Code    Code
	Message string
	Details any
}

func (e *Error) Error() string {
	return string(e.Code) + ": " + e.Message
}

// NewError builds an envelope error for the given code.
func NewError(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WithDetails attaches structured detail (e.g. policy reason codes).
func (e *Error) WithDetails(details any) *Error {
	e.Details = details
	return e
}

type successBody struct {
	Data    any    `json:"data"`
	TraceID string `json:"traceId"`
}

type errorBody struct {
	Error   errorInfo `json:"error"`
	TraceID string    `json:"traceId"`
}

type errorInfo struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// TraceID returns the request trace id, minting one if middleware has not.
func TraceID(c *fiber.Ctx) string {
	if id, ok := c.Locals(TraceIDKey).(string); ok && id != "" {
		return id
	}
	return uuid.NewString()
}

// JSON writes a success envelope.
func JSON(c *fiber.Ctx, status int, data any) error {
	return c.Status(status).JSON(successBody{Data: data, TraceID: TraceID(c)})
}

// ErrorHandler converts any handler error into the error envelope. Wire it
// as the fiber app ErrorHandler so every route shares the same contract.
func ErrorHandler(c *fiber.Ctx, err error) error {
	var env *Error
	if errors.As(err, &env) {
		return c.Status(statusFor(env.Code)).JSON(errorBody{
			Error:   errorInfo{Code: env.Code, Message: env.Message, Details: env.Details},
			TraceID: TraceID(c),
		})
	}

	var fe *fiber.Error
	if errors.As(err, &fe) {
		code := codeForStatus(fe.Code)
		return c.Status(fe.Code).JSON(errorBody{
			Error:   errorInfo{Code: code, Message: fe.Message},
			TraceID: TraceID(c),
		})
	}

	// Unknown failure: generic INTERNAL only, detail stays server-side.
	return c.Status(http.StatusInternalServerError).JSON(errorBody{
		Error:   errorInfo{Code: CodeInternal, Message: "internal error"},
		TraceID: TraceID(c),
	})
}

func statusFor(code Code) int {
	switch code {
	case CodeValidation:
		return http.StatusBadRequest
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodePolicyBlocked:
		return http.StatusUnprocessableEntity
	case CodeConflict:
		return http.StatusConflict
	case CodeWebhookSignatureInvalid:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

func codeForStatus(status int) Code {
	switch status {
	case http.StatusBadRequest:
		return CodeValidation
	case http.StatusUnauthorized:
		return CodeUnauthorized
	case http.StatusForbidden:
		return CodeForbidden
	case http.StatusNotFound:
		return CodeNotFound
	case http.StatusConflict:
		return CodeConflict
	default:
		return CodeInternal
	}
}
