package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	PartiesHosted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "watchparty_parties_hosted_total",
			Help: "Number of parties hosted by this client",
		},
	)
	PartiesJoined = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "watchparty_parties_joined_total",
			Help: "Number of parties joined by this client",
		},
	)
	PartiesLeft = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "watchparty_parties_left_total",
			Help: "Number of parties left, by local role",
		},
		[]string{"role"},
	)
	PartiesEnded = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "watchparty_parties_ended_total",
			Help: "Number of parties ended remotely by their host",
		},
	)
	RemoteWrites = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "watchparty_remote_writes_total",
			Help: "Remote store mutations by operation and outcome",
		},
		[]string{"op", "status"}, // status: success, error, dropped
	)
	RemoteApplied = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "watchparty_remote_state_applied_total",
			Help: "Remote playback state applied to the local player, by field",
		},
		[]string{"field"},
	)
	EventsDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "watchparty_events_dropped_total",
			Help: "Events dropped because the consumer was not keeping up",
		},
	)
	CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "watchparty_circuit_breaker_state",
			Help: "Writer circuit breaker state (0 closed, 1 half-open, 2 open)",
		},
		[]string{"name"},
	)
)

var registerOnce sync.Once

// InitMetrics registers the metrics with the default registry. Safe to call more than once.
func InitMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			PartiesHosted,
			PartiesJoined,
			PartiesLeft,
			PartiesEnded,
			RemoteWrites,
			RemoteApplied,
			EventsDropped,
			CircuitBreakerState,
		)
	})
}

func Handler() http.Handler {
	return promhttp.Handler()
}
