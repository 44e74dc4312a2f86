// Package metrics holds the Prometheus collectors shared by the application
// and the HTTP adapter.
package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "osmpanel"

var (
	// AuthFlows counts finished authorization flows by outcome
	// (authorized|failed|canceled).
	AuthFlows = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "auth_flows_total",
		Help:      "Finished OAuth authorization flows by outcome.",
	}, []string{"outcome"})

	// SyncSequences counts session sync sequences by result
	// (ok|degraded|unauthenticated|error).
	SyncSequences = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sync_sequences_total",
		Help:      "Session sync sequences by result.",
	}, []string{"result"})

	// SyncDuration observes how long each sync sequence took, degraded ones included.
	SyncDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "sync_duration_seconds",
		Help:      "Duration of session sync sequences.",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	})

	// AchievementUnlocks counts appended achievement rank records.
	AchievementUnlocks = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "achievement_unlocks_total",
		Help:      "Achievement rank records appended.",
	})

	// LinkUnlocks counts appended link unlock records.
	LinkUnlocks = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "link_unlocks_total",
		Help:      "Link records appended.",
	})

	HTTPRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "HTTP API requests by method, route and status.",
	}, []string{"method", "route", "status"})
)

// Register registers all collectors on reg (or the default registerer if nil).
// Collectors that are already registered are skipped.
func Register(reg prometheus.Registerer) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	for _, c := range []prometheus.Collector{
		AuthFlows,
		SyncSequences,
		SyncDuration,
		AchievementUnlocks,
		LinkUnlocks,
		HTTPRequests,
	} {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if !errors.As(err, &are) {
				return err
			}
		}
	}
	return nil
}
