package relay

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// sessionsActive tracks connected sessions.
	sessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "triplesync_relay_sessions_active",
		Help: "Connected replica sessions",
	})

	// requestsTotal counts protocol requests by type and result.
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "triplesync_relay_requests_total",
		Help: "Protocol requests handled by type and result",
	}, []string{"type", "result"})

	// requestDuration tracks backend latency per request type.
	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "triplesync_relay_request_duration_seconds",
		Help:    "Request handling duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.0001, 2, 14),
	}, []string{"type"})

	// registersChanged counts registers changed by pushes.
	registersChanged = promauto.NewCounter(prometheus.CounterOpts{
		Name: "triplesync_relay_registers_changed_total",
		Help: "Registers changed by pushed operations",
	})

	// notifiesSent counts notify frames fanned out.
	notifiesSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "triplesync_relay_notifies_total",
		Help: "Notify frames sent to sessions",
	})
)
