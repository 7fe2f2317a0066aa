package handlers

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	applog "shopforge/internal/log"
)

// Route binds one method and path pattern to its handler chain.
type Route struct {
	Method     string
	Path       string
	Middleware []fiber.Handler
	Handler    fiber.Handler
}

var (
	allowedMethods = map[string]bool{
		fiber.MethodGet:    true,
		fiber.MethodPost:   true,
		fiber.MethodPut:    true,
		fiber.MethodDelete: true,
	}
	rePath  = regexp.MustCompile(`^/([A-Za-z0-9_.-]+|:[A-Za-z][A-Za-z0-9]*|\*)(/([A-Za-z0-9_.-]+|:[A-Za-z][A-Za-z0-9]*|\*))*$`)
	reParam = regexp.MustCompile(`:[A-Za-z][A-Za-z0-9]*`)
)

func rateLimit(name string, max int) fiber.Handler {
	return limiter.New(limiter.Config{
		Max:        max,
		Expiration: time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP() + "|" + name
		},
		LimitReached: func(c *fiber.Ctx) error {
			applog.Security(c, "rate."+name+".hit", nil)
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"error": "rate limit exceeded, retry soon"})
		},
	})
}

// Routes is the complete route table of the API.
func Routes(d *Deps) []Route {
	public := rateLimit("storefront", d.PublicRateLimit)
	pay := rateLimit("payment", d.PaymentRateLimit)

	return []Route{
		{Method: "GET", Path: "/api", Handler: func(c *fiber.Ctx) error {
			return c.JSON(fiber.Map{"message": "shopforge API", "version": d.Version})
		}},
		{Method: "GET", Path: "/healthz", Handler: func(c *fiber.Ctx) error {
			return c.JSON(fiber.Map{"ok": true})
		}},
		{Method: "GET", Path: "/metrics", Handler: adaptor.HTTPHandler(promhttp.Handler())},

		{Method: "GET", Path: "/api/stores", Handler: d.StoreHandler.List},
		{Method: "POST", Path: "/api/stores", Handler: d.StoreHandler.Create},
		{Method: "GET", Path: "/api/stores/:id", Handler: d.StoreHandler.Get},
		{Method: "PUT", Path: "/api/stores/:id", Handler: d.StoreHandler.Update},
		{Method: "DELETE", Path: "/api/stores/:id", Handler: d.StoreHandler.Delete},

		{Method: "GET", Path: "/api/products/:storeId", Handler: d.ProductHandler.List},
		{Method: "POST", Path: "/api/products/:storeId", Handler: d.ProductHandler.Create},
		{Method: "GET", Path: "/api/products/:storeId/product/:itemId", Handler: d.ProductHandler.Get},
		{Method: "PUT", Path: "/api/products/:storeId/product/:itemId", Handler: d.ProductHandler.Update},
		{Method: "DELETE", Path: "/api/products/:storeId/product/:itemId", Handler: d.ProductHandler.Delete},

		{Method: "GET", Path: "/api/orders/:storeId", Handler: d.OrderHandler.List},
		{Method: "POST", Path: "/api/orders/:storeId", Middleware: []fiber.Handler{public}, Handler: d.OrderHandler.Create},
		{Method: "GET", Path: "/api/orders/:storeId/order/:itemId", Handler: d.OrderHandler.Get},
		{Method: "PUT", Path: "/api/orders/:storeId/order/:itemId", Handler: d.OrderHandler.UpdateStatus},

		{Method: "GET", Path: "/api/analytics/:storeId", Handler: d.AnalyticsHandler.Get},
		{Method: "GET", Path: "/api/storefront/:slug", Middleware: []fiber.Handler{public}, Handler: d.StorefrontHandler.Get},

		{Method: "POST", Path: "/api/payment/create-order", Middleware: []fiber.Handler{pay}, Handler: d.PaymentHandler.CreateOrder},
		{Method: "POST", Path: "/api/payment/verify", Middleware: []fiber.Handler{pay}, Handler: d.PaymentHandler.Verify},

		{Method: "POST", Path: "/api/upload/:storeId", Handler: d.UploadHandler.Upload},
		{Method: "GET", Path: "/media/*", Handler: d.MediaHandler.Serve},
	}
}

// Register validates the whole table before adding any route, so a bad table
// fails startup instead of shadowing a route at runtime.
func Register(r fiber.Router, routes []Route) error {
	var errs []error
	seen := make(map[string]int, len(routes))
	for i, rt := range routes {
		method := strings.ToUpper(rt.Method)
		switch {
		case !allowedMethods[method]:
			errs = append(errs, fmt.Errorf("route %d: unsupported method %q", i, rt.Method))
		case !rePath.MatchString(rt.Path):
			errs = append(errs, fmt.Errorf("route %d: invalid path %q", i, rt.Path))
		case rt.Handler == nil:
			errs = append(errs, fmt.Errorf("route %d: %s %s has no handler", i, method, rt.Path))
		}
		for j, m := range rt.Middleware {
			if m == nil {
				errs = append(errs, fmt.Errorf("route %d: %s %s middleware %d is nil", i, method, rt.Path, j))
			}
		}
		// parameter names do not distinguish routes
		key := method + " " + reParam.ReplaceAllString(rt.Path, ":")
		if prev, dup := seen[key]; dup {
			errs = append(errs, fmt.Errorf("route %d: %s %s duplicates route %d", i, method, rt.Path, prev))
		} else {
			seen[key] = i
		}
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}

	for _, rt := range routes {
		chain := append(append([]fiber.Handler{}, rt.Middleware...), rt.Handler)
		r.Add(strings.ToUpper(rt.Method), rt.Path, chain...)
	}
	return nil
}
