package outbox

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	dlqEntriesCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "running_club",
		Subsystem: "dlq",
		Name:      "entries_handled_total",
		Help:      "DLQ entries handled by the replay loop, labeled by outcome.",
	}, []string{"outcome", "topic", "event_type"})

	dlqBacklogGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "running_club",
		Subsystem: "dlq",
		Name:      "queued_messages",
		Help:      "Entries remaining in the DLQ that are not quarantined.",
	})
)

func init() {
	prometheus.MustRegister(dlqEntriesCounter, dlqBacklogGauge)
}

func recordDLQ(outcome string, entry dlqEntry) {
	dlqEntriesCounter.WithLabelValues(outcome, entry.Topic, entry.EventType).Inc()
}

func updateBacklogGauge(ctx context.Context, pool *pgxpool.Pool) {
	var count int
	if err := pool.QueryRow(ctx, `SELECT COUNT(*) FROM outbox_dlq WHERE quarantined_at IS NULL`).Scan(&count); err != nil {
		return
	}
	dlqBacklogGauge.Set(float64(count))
}
