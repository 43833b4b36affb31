// Package observability holds the Prometheus collectors shared across packages.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "running_club"

var (
	activityPersistGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "persistence",
		Name:      "last_activity_persisted_timestamp_seconds",
		Help:      "Unix timestamp of the most recent activity written to Postgres.",
	})
	syncRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "sync",
		Name:      "runs_total",
		Help:      "Activity sync runs partitioned by outcome.",
	}, []string{"outcome"})
	syncActivities = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "sync",
		Name:      "activities_total",
		Help:      "Activities seen during sync partitioned by result (created, skipped, failed).",
	}, []string{"result"})
	syncDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "sync",
		Name:      "duration_seconds",
		Help:      "Wall time of a full customer sync.",
		Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10),
	})
	matchesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "matching",
		Name:      "matches_total",
		Help:      "Activities linked to a training day.",
	})
	tokenRefreshes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "strava",
		Name:      "token_refreshes_total",
		Help:      "Access token refresh attempts partitioned by outcome.",
	}, []string{"outcome"})
	upstreamDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "strava",
		Name:      "request_duration_seconds",
		Help:      "Latency of Strava API calls by operation and status class.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"operation", "status"})
	webhookEvents = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "webhook",
		Name:      "events_total",
		Help:      "Strava webhook deliveries partitioned by intake status.",
	}, []string{"status"})
)

func init() {
	prometheus.MustRegister(
		activityPersistGauge,
		syncRuns,
		syncActivities,
		syncDuration,
		matchesTotal,
		tokenRefreshes,
		upstreamDuration,
		webhookEvents,
	)
}

// RecordActivityPersisted updates the persistence watermark gauge.
func RecordActivityPersisted(ts time.Time) {
	if ts.IsZero() {
		return
	}
	activityPersistGauge.Set(float64(ts.Unix()))
}

// RecordSyncRun records one sync attempt.
func RecordSyncRun(outcome string, elapsed time.Duration) {
	syncRuns.WithLabelValues(outcome).Inc()
	syncDuration.Observe(elapsed.Seconds())
}

// RecordSyncedActivities adds to the per-result activity counters.
func RecordSyncedActivities(created, skipped, failed int) {
	syncActivities.WithLabelValues("created").Add(float64(created))
	syncActivities.WithLabelValues("skipped").Add(float64(skipped))
	syncActivities.WithLabelValues("failed").Add(float64(failed))
}

// RecordMatch counts a successful activity to training day link.
func RecordMatch() {
	matchesTotal.Inc()
}

// RecordTokenRefresh counts a refresh attempt.
func RecordTokenRefresh(outcome string) {
	tokenRefreshes.WithLabelValues(outcome).Inc()
}

// ObserveUpstream records the latency of a Strava call.
func ObserveUpstream(operation, status string, elapsed time.Duration) {
	upstreamDuration.WithLabelValues(operation, status).Observe(elapsed.Seconds())
}

// RecordWebhookEvent counts a webhook delivery by intake status.
func RecordWebhookEvent(status string) {
	webhookEvents.WithLabelValues(status).Inc()
}

// Collectors exposed for tests.
var (
	MatchesCollector        prometheus.Counter     = matchesTotal
	WebhookEventsCollector  *prometheus.CounterVec = webhookEvents
	TokenRefreshesCollector *prometheus.CounterVec = tokenRefreshes
	SyncRunsCollector       *prometheus.CounterVec = syncRuns
)
