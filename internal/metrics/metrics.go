// Package metrics holds the Prometheus collectors exposed on /metrics.
package metrics

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	OrdersCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "orders_created_total",
			Help: "Orders persisted by the order engine",
		},
	)

	OrderStatusChanges = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "order_status_changes_total",
			Help: "Merchant status updates by target status",
		},
		[]string{"status"},
	)

	// OrderTotalOverrides counts orders whose caller total differed from the item sum.
	OrderTotalOverrides = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "order_total_mismatch_total",
			Help: "Orders whose supplied total differed from the calculated total",
		},
	)

	// PaymentVerifications by result: paid, replay, bad_signature, conflict, not_found.
	PaymentVerifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_verifications_total",
			Help: "Payment verification attempts by result",
		},
		[]string{"result"},
	)

	GatewayRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_gateway_requests_total",
			Help: "Payment gateway calls by outcome",
		},
		[]string{"outcome"},
	)

	// CircuitBreakerState tracks breaker state (0=closed, 1=open, 2=half-open).
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
		},
		[]string{"circuit_name"},
	)
)

// Middleware records request count and latency per route pattern. Errors are
// rendered through the app's ErrorHandler first so the final status is counted.
func Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		if err := c.Next(); err != nil {
			if herr := c.App().Config().ErrorHandler(c, err); herr != nil {
				_ = c.SendStatus(fiber.StatusInternalServerError)
			}
		}

		route := "unmatched"
		if r := c.Route(); r != nil && r.Path != "" && r.Path != "/" {
			route = r.Path
		}
		status := strconv.Itoa(c.Response().StatusCode())
		// label values outlive the request; fasthttp reuses the method bytes
		method := utils.CopyString(c.Method())

		RequestsTotal.WithLabelValues(method, route, status).Inc()
		RequestDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
		return nil
	}
}
