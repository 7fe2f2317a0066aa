package handlers

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/gofiber/fiber/v2"

	applog "shopforge/internal/log"
	"shopforge/internal/services"
)

// ErrorHandler renders every failure as {"error": "..."}. Unexpected errors are
// logged and reported as a generic 500.
func ErrorHandler(c *fiber.Ctx, err error) error {
	status, msg := fiber.StatusInternalServerError, "internal server error"

	var fe *fiber.Error
	var se *services.Error
	switch {
	case errors.As(err, &fe):
		status, msg = fe.Code, fe.Message
	case errors.As(err, &se):
		msg = se.Msg
		switch {
		case errors.Is(se.Kind, services.ErrInvalidArgument),
			errors.Is(se.Kind, services.ErrConflict),
			errors.Is(se.Kind, services.ErrSecurity):
			status = fiber.StatusBadRequest
		case errors.Is(se.Kind, services.ErrNotFound):
			status = fiber.StatusNotFound
		default:
			applog.Error(c, "upstream.error", err, nil)
		}
	case errors.Is(err, context.DeadlineExceeded):
		status, msg = fiber.StatusServiceUnavailable, "request timed out"
		applog.Error(c, "request.timeout", err, nil)
	default:
		applog.Error(c, "server.error", err, nil)
	}
	return c.Status(status).JSON(fiber.Map{"error": msg})
}

func badRequest(msg string) error {
	return &services.Error{Kind: services.ErrInvalidArgument, Msg: msg}
}

// bindJSON decodes the request body into v.
func bindJSON(c *fiber.Ctx, v any) error {
	body := c.Body()
	if len(body) == 0 {
		return badRequest("request body is required")
	}
	if err := json.Unmarshal(body, v); err != nil {
		applog.Security(c, "validation.fail", map[string]any{"field": "body"})
		return badRequest("invalid JSON body")
	}
	return nil
}
