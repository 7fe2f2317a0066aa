package handlers

import (
	"context"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	applog "shopforge/internal/log"
)

// Timeout bounds every downstream call made with c.UserContext(). A zero
// duration disables it.
func Timeout(d time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if d <= 0 {
			return c.Next()
		}
		ctx, cancel := context.WithTimeout(c.UserContext(), d)
		defer cancel()
		c.SetUserContext(ctx)
		return c.Next()
	}
}

// BodyLimit rejects bodies above max bytes, except on paths under one of skip.
// The app-wide limit stays at the upload size.
func BodyLimit(max int, skip ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		for _, prefix := range skip {
			if strings.HasPrefix(c.Path(), prefix) {
				return c.Next()
			}
		}
		if len(c.Body()) > max {
			applog.Security(c, "body.too_large", map[string]any{"size": len(c.Body()), "max": max})
			return fiber.NewError(fiber.StatusRequestEntityTooLarge, "request body too large")
		}
		return c.Next()
	}
}
