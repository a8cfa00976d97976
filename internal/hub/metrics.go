package hub

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the relay's prometheus instruments.
// A Hub without metrics registers into a private registry.
type Metrics struct {
	Sessions     prometheus.Gauge
	Joins        prometheus.Counter
	Relayed      *prometheus.CounterVec
	Dropped      *prometheus.CounterVec
	CompileLocks *prometheus.CounterVec
	LocksHeld    prometheus.Gauge
}

// NewMetrics creates and registers the relay metrics on reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)

	return &Metrics{
		Sessions: f.NewGauge(prometheus.GaugeOpts{
			Name: "soco_relay_sessions",
			Help: "Open relay connections, joined or not",
		}),
		Joins: f.NewCounter(prometheus.CounterOpts{
			Name: "soco_relay_joins_total",
			Help: "JOIN messages accepted",
		}),
		Relayed: f.NewCounterVec(prometheus.CounterOpts{
			Name: "soco_relay_messages_relayed_total",
			Help: "Inbound messages fanned out to peers, by tag",
		}, []string{"tag"}),
		Dropped: f.NewCounterVec(prometheus.CounterOpts{
			Name: "soco_relay_messages_dropped_total",
			Help: "Inbound lines dropped, by reason",
		}, []string{"reason"}),
		CompileLocks: f.NewCounterVec(prometheus.CounterOpts{
			Name: "soco_relay_compile_lock_events_total",
			Help: "Compile lock outcomes: granted, denied, released, ignored, reclaimed",
		}, []string{"result"}),
		LocksHeld: f.NewGauge(prometheus.GaugeOpts{
			Name: "soco_relay_compile_locks_held",
			Help: "Compile locks currently held",
		}),
	}
}
