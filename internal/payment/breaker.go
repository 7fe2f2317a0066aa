package payment

import (
	"time"

	"github.com/sony/gobreaker"

	applog "shopforge/internal/log"
	"shopforge/internal/metrics"
)

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateOpen:
		return 1
	case gobreaker.StateHalfOpen:
		return 2
	default:
		return 0
	}
}

// newBreaker trips when at least 60% of 5+ calls in the window failed.
func newBreaker(name string) *gobreaker.CircuitBreaker {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    30 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 5 && ratio >= 0.6
		},
		OnStateChange: func(cbName string, from, to gobreaker.State) {
			metrics.CircuitBreakerState.WithLabelValues(cbName).Set(stateValue(to))
			applog.L().WithFields(map[string]any{
				"circuit": cbName,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("payment.circuit.state_changed")
		},
	})
	metrics.CircuitBreakerState.WithLabelValues(name).Set(0)
	return cb
}
