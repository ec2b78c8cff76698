package syncer

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// roundsTotal counts sync rounds by result (ok, partial, failed, discarded).
	roundsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "triplesync_sync_rounds_total",
		Help: "Sync rounds by result",
	}, []string{"result"})

	// roundDuration tracks sync round latency.
	roundDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "triplesync_sync_round_duration_seconds",
		Help:    "Sync round duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
	})

	// operationsPushed counts operations acknowledged by the relay.
	operationsPushed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "triplesync_sync_operations_pushed_total",
		Help: "Operations pushed and acknowledged",
	})

	// triplesPulled counts triples received from the relay.
	triplesPulled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "triplesync_sync_triples_pulled_total",
		Help: "Triples pulled from the relay",
	})

	// connectAttempts counts dials by result.
	connectAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "triplesync_sync_connect_attempts_total",
		Help: "Relay connection attempts by result",
	}, []string{"result"})
)
