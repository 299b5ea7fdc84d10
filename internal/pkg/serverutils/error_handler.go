package serverutils

import (
	"errors"

	"studymate-be/pkg/apperr"

	"github.com/gofiber/fiber/v2"
)

// StatusFor maps an error kind to its HTTP status.
func StatusFor(err error) int {
	var fe *fiber.Error
	var ve *ValidationError
	switch {
	case errors.As(err, &fe):
		return fe.Code
	case errors.As(err, &ve):
		return fiber.StatusBadRequest
	case errors.Is(err, apperr.ErrInvalidInput):
		return fiber.StatusBadRequest
	case errors.Is(err, apperr.ErrUnsupportedFormat):
		return fiber.StatusUnsupportedMediaType
	case errors.Is(err, apperr.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, apperr.ErrProvider):
		return fiber.StatusBadGateway
	case errors.Is(err, apperr.ErrTierUnavailable):
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}

// ErrorHandler renders errors returned by handlers as an ErrorResponse envelope.
func ErrorHandler(ctx *fiber.Ctx, err error) error {
	code := StatusFor(err)
	message := err.Error()
	switch code {
	case fiber.StatusInternalServerError:
		message = "Internal server error"
	case fiber.StatusServiceUnavailable:
		message = "Storage temporarily unavailable, try again"
	}
	res := ErrorResponse(code, message)
	var ve *ValidationError
	if errors.As(err, &ve) {
		res.Errors = ve.Fields
	}
	return ctx.Status(code).JSON(res)
}

// ErrorHandlerMiddleware applies ErrorHandler to anything the downstream chain returns.
func ErrorHandlerMiddleware() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		if err := ctx.Next(); err != nil {
			return ErrorHandler(ctx, err)
		}
		return nil
	}
}
