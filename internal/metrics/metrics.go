// Package metrics declares the Prometheus instruments of the matchmaking engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "vibecall"

var (
	QueueSize = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace, Name: "queue_size",
		Help: "Users currently waiting in the queue.",
	})

	LiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace, Name: "live_sessions",
		Help: "Sessions that have not reached CLOSED.",
	})

	PairsFormed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace, Name: "pairs_formed_total",
		Help: "Pairs that reached ACTIVE.",
	})

	ProvisioningFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace, Name: "provisioning_failures_total",
		Help: "Pairings rolled back because the room or credentials could not be provisioned.",
	})

	SessionsResolved = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Name: "sessions_resolved_total",
		Help: "Resolved sessions by cause and result.",
	}, []string{"cause", "result"})

	Evictions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Name: "presence_evictions_total",
		Help: "Participants removed for missing heartbeats.",
	}, []string{"kind"})

	NotificationsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace, Name: "notifications_dropped_total",
		Help: "Notifications dropped because a buffer was full.",
	})

	TimeToPair = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace, Name: "time_to_pair_seconds",
		Help:    "Time users spent in the queue before being paired.",
		Buckets: prometheus.ExponentialBuckets(1, 2, 10),
	})
)
