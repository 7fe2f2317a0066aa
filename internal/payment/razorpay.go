package payment

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"shopforge/internal/metrics"
)

const DefaultTimeout = 10 * time.Second

// Razorpay creates orders through the Razorpay REST API. Calls are never
// retried; the breaker fails fast while the gateway is unhealthy.
type Razorpay struct {
	client  *resty.Client
	breaker *gobreaker.CircuitBreaker
}

func NewRazorpay(baseURL, keyID, keySecret string, timeout time.Duration) *Razorpay {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	client := resty.New().
		SetBaseURL(baseURL).
		SetBasicAuth(keyID, keySecret).
		SetTransport(otelhttp.NewTransport(http.DefaultTransport)).
		SetTimeout(timeout).
		SetRetryCount(0).
		SetHeader("Content-Type", "application/json")
	return &Razorpay{client: client, breaker: newBreaker("razorpay")}
}

type createOrderBody struct {
	Amount         int64             `json:"amount"`
	Currency       string            `json:"currency"`
	Receipt        string            `json:"receipt"`
	PaymentCapture int               `json:"payment_capture"`
	Notes          map[string]string `json:"notes,omitempty"`
}

type apiError struct {
	Error struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"error"`
}

// CreateOrder opens a gateway order with auto-capture enabled.
func (r *Razorpay) CreateOrder(ctx context.Context, req OrderRequest) (RemoteOrder, error) {
	body := createOrderBody{
		Amount:         MinorUnits(req.Amount),
		Currency:       req.Currency,
		Receipt:        req.Receipt,
		PaymentCapture: 1,
		Notes:          req.Notes,
	}

	// Only transport failures and 5xx count against the breaker; a 4xx is the caller's fault.
	res, err := r.breaker.Execute(func() (interface{}, error) {
		resp, err := r.client.R().
			SetContext(ctx).
			SetBody(body).
			Post("/orders")
		if err != nil {
			return nil, &Error{Description: "payment gateway unreachable"}
		}
		if resp.StatusCode() >= http.StatusInternalServerError {
			return nil, &Error{Status: resp.StatusCode(), Description: describe(resp.Body(), "payment gateway unavailable")}
		}
		return resp, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.GatewayRequests.WithLabelValues("circuit_open").Inc()
			return nil, &Error{Description: "payment gateway temporarily unavailable"}
		}
		metrics.GatewayRequests.WithLabelValues("error").Inc()
		return nil, err
	}

	resp := res.(*resty.Response)
	if resp.IsError() {
		metrics.GatewayRequests.WithLabelValues("rejected").Inc()
		return nil, &Error{Status: resp.StatusCode(), Description: describe(resp.Body(), "payment gateway rejected the request")}
	}

	var order RemoteOrder
	if err := json.Unmarshal(resp.Body(), &order); err != nil {
		metrics.GatewayRequests.WithLabelValues("error").Inc()
		return nil, &Error{Status: resp.StatusCode(), Description: "malformed payment gateway response"}
	}
	metrics.GatewayRequests.WithLabelValues("ok").Inc()
	return order, nil
}

func describe(body []byte, fallback string) string {
	var e apiError
	if json.Unmarshal(body, &e) == nil && e.Error.Description != "" {
		return e.Error.Description
	}
	return fallback
}
