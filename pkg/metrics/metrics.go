package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collectors for the voice session engine. Reporting only; nothing in the
// session control flow reads these.
var (
	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "lexaid_voice_active_sessions",
		Help: "Number of currently active voice sessions.",
	})

	FlushesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lexaid_voice_flushes_total",
		Help: "Total audio buffer flushes processed.",
	})

	DroppedFlushesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lexaid_voice_dropped_flushes_total",
		Help: "Flushes dropped due to adapter timeout or failure.",
	})

	EmergenciesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lexaid_voice_emergencies_total",
		Help: "Emergency dispatches (at most one per session).",
	})

	AdapterFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lexaid_voice_adapter_failures_total",
		Help: "Adapter call failures by adapter name.",
	}, []string{"adapter"})

	TurnLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "lexaid_voice_turn_latency_seconds",
		Help:    "Latency from completed turn to ai-response emission.",
		Buckets: prometheus.DefBuckets,
	})
)
