// internal/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Deletion reasons for SessionsDeleted.
const (
	ReasonEmpty  = "empty"
	ReasonReaped = "reaped"
)

var (
	SessionsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lobby_sessions_created_total",
		Help: "Sessions created by join-by-game",
	})

	JoinsAccepted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lobby_joins_accepted_total",
		Help: "Player rows inserted by join",
	})

	JoinsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lobby_joins_rejected_total",
		Help: "Joins rejected before or at insert",
	}, []string{"reason"})

	SessionsDeleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lobby_sessions_deleted_total",
		Help: "Sessions deleted, by reason",
	}, []string{"reason"})

	CountdownsScheduled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lobby_countdowns_scheduled_total",
		Help: "Auto-start countdowns scheduled",
	})

	AutoStartsFired = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lobby_autostarts_fired_total",
		Help: "Countdowns whose re-check flipped the session to playing",
	})

	SweepDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "lobby_reaper_sweep_seconds",
		Help:    "Duration of inactivity sweeps",
		Buckets: prometheus.ExponentialBuckets(0.005, 2, 10),
	})

	LiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "lobby_ws_connections",
		Help: "Open lobby websocket connections",
	})
)
