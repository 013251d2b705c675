// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	UpdatesProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_updates_processed_total",
			Help: "Total number of chat updates processed",
		},
		[]string{"kind"},
	)

	UpdatesFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_updates_failed_total",
			Help: "Total number of chat updates that ended in error",
		},
		[]string{"kind", "error_code"},
	)

	ApplicationsSubmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_applications_submitted_total",
			Help: "Total number of completed applications by team",
		},
		[]string{"team"},
	)

	DecisionsRecorded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_decisions_recorded_total",
			Help: "Total number of reviewer decisions by verdict",
		},
		[]string{"verdict"},
	)

	RelayForwards = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_relay_forwards_total",
			Help: "Total number of relayed messages by direction",
		},
		[]string{"direction"},
	)

	BroadcastDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_broadcast_deliveries_total",
			Help: "Total number of broadcast deliveries by outcome",
		},
		[]string{"outcome"},
	)

	StoreSaveDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "bot_store_save_duration_seconds",
			Help: "Duration of store persistence in seconds",
		},
		[]string{"collection"},
	)

	SessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "bot_sessions_active",
			Help: "Number of in-flight conversation sessions",
		},
	)
)
