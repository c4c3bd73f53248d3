package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"appsuite/internal/resilience"
)

var circuitBreakerState = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "circuit_breaker_state",
		Help: "Circuit breaker state (0 closed, 1 open, 2 half-open)",
	},
	[]string{"breaker"},
)

// TrackBreaker exports cb's state as a gauge.
func TrackBreaker(cb *resilience.CircuitBreaker, name string) {
	circuitBreakerState.WithLabelValues(name).Set(float64(cb.State()))
	cb.OnStateChange(func(_ string, s resilience.State) {
		circuitBreakerState.WithLabelValues(name).Set(float64(s))
	})
}
