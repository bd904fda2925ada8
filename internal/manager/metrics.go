package manager

import "github.com/prometheus/client_golang/prometheus"

var (
	sessionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "codegend",
			Subsystem: "sessions",
			Name:      "active",
			Help:      "Generation sessions currently streaming",
		},
	)

	sessionsFinished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "codegend",
			Subsystem: "sessions",
			Name:      "finished_total",
			Help:      "Finished generation sessions by phase and outcome",
		},
		[]string{"phase", "outcome"},
	)

	tokensRelayed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "codegend",
			Subsystem: "sessions",
			Name:      "tokens_relayed_total",
			Help:      "Tokens relayed to clients",
		},
	)

	backendErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "codegend",
			Subsystem: "backend",
			Name:      "errors_total",
			Help:      "Backend stream failures by kind",
		},
		[]string{"kind"},
	)
)

func init() {
	prometheus.MustRegister(sessionsActive, sessionsFinished, tokensRelayed, backendErrors)
}
