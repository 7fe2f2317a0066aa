package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"

	"shopforge/internal/config"
	applog "shopforge/internal/log"
	"shopforge/internal/metrics"
)

// jsonBodyLimit applies to every route except uploads.
const jsonBodyLimit = 1 << 20

// NewApp assembles the middleware stack and the route table.
func NewApp(d *Deps, cfg config.Config) (*fiber.App, error) {
	app := fiber.New(fiber.Config{
		AppName:      "shopforge",
		Immutable:    true,
		ErrorHandler: ErrorHandler,
		BodyLimit:    cfg.MaxUploadBytes*maxUploadFiles + jsonBodyLimit,
	})

	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(logger.New(logger.Config{Output: applog.Writer()}))
	app.Use(helmet.New())
	app.Use(metrics.Middleware())
	app.Use(Timeout(cfg.RequestTimeout))
	app.Use(BodyLimit(jsonBodyLimit, "/api/upload/"))

	if err := Register(app, Routes(d)); err != nil {
		return nil, err
	}

	app.Use(func(c *fiber.Ctx) error {
		return fiber.NewError(fiber.StatusNotFound, "route not found")
	})
	return app, nil
}
