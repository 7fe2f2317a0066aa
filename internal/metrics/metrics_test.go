package metrics

import (
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiddleware_CountsByRoutePattern(t *testing.T) {
	app := fiber.New()
	app.Use(Middleware())
	app.Get("/api/stores/:id", func(c *fiber.Ctx) error { return c.SendString("ok") })
	app.Get("/boom", func(c *fiber.Ctx) error { return fiber.NewError(fiber.StatusTeapot, "nope") })

	before := testutil.ToFloat64(RequestsTotal.WithLabelValues("GET", "/api/stores/:id", "200"))
	for _, id := range []string{"a", "b"} {
		resp, err := app.Test(httptest.NewRequest("GET", "/api/stores/"+id, nil))
		require.NoError(t, err)
		assert.Equal(t, 200, resp.StatusCode)
	}
	after := testutil.ToFloat64(RequestsTotal.WithLabelValues("GET", "/api/stores/:id", "200"))
	assert.Equal(t, before+2, after)

	resp, err := app.Test(httptest.NewRequest("GET", "/boom", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusTeapot, resp.StatusCode)
	assert.Equal(t, 1.0, testutil.ToFloat64(RequestsTotal.WithLabelValues("GET", "/boom", "418")))
}

func TestMiddleware_MixedMethodsKeepDistinctLabels(t *testing.T) {
	app := fiber.New()
	app.Use(Middleware())
	app.Get("/mixed/a", func(c *fiber.Ctx) error { return c.SendString("a") })
	app.Post("/mixed/b", func(c *fiber.Ctx) error { return c.SendString("b") })
	app.Delete("/mixed/c", func(c *fiber.Ctx) error { return c.SendString("c") })

	for i := 0; i < 20; i++ {
		for _, r := range []struct{ method, path string }{
			{"GET", "/mixed/a"}, {"POST", "/mixed/b"}, {"DELETE", "/mixed/c"},
		} {
			resp, err := app.Test(httptest.NewRequest(r.method, r.path, nil))
			require.NoError(t, err)
			require.Equal(t, 200, resp.StatusCode)
		}
	}

	assert.Equal(t, 20.0, testutil.ToFloat64(RequestsTotal.WithLabelValues("GET", "/mixed/a", "200")))
	assert.Equal(t, 20.0, testutil.ToFloat64(RequestsTotal.WithLabelValues("POST", "/mixed/b", "200")))
	assert.Equal(t, 20.0, testutil.ToFloat64(RequestsTotal.WithLabelValues("DELETE", "/mixed/c", "200")))

	families, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != "http_requests_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			labels := map[string]string{}
			for _, lp := range m.GetLabel() {
				labels[lp.GetName()] = lp.GetValue()
			}
			switch labels["route"] {
			case "/mixed/a":
				assert.Equal(t, "GET", labels["method"])
			case "/mixed/b":
				assert.Equal(t, "POST", labels["method"])
			case "/mixed/c":
				assert.Equal(t, "DELETE", labels["method"])
			}
		}
	}
}
