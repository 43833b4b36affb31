// Package scheduler triggers periodic activity syncs for every connected customer.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/jpvieirapereira/running-club-backend/internal/activitysync"
	"github.com/jpvieirapereira/running-club-backend/internal/domain"
)

// Syncer runs a customer sync. activitysync.Engine satisfies it.
type Syncer interface {
	SyncActivities(ctx context.Context, customerID string, after *time.Time) (activitysync.SyncResult, error)
}

// DefaultOverlap is how far before the last sync a pass starts listing again. Strava lists
// by start time, so an activity recorded before the last sync but uploaded after it is only
// seen through this overlap.
const DefaultOverlap = 72 * time.Hour

// Runner syncs every customer with a stored connection, resuming shortly before the last sync.
type Runner struct {
	connections domain.ConnectionStore
	syncer      Syncer
	timeout     time.Duration
	overlap     time.Duration
	logger      *log.Logger
	cron        *cron.Cron
}

// Option customises a Runner.
type Option func(*Runner)

// WithLogger overrides the default logger.
func WithLogger(logger *log.Logger) Option {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithCustomerTimeout bounds each customer's sync.
func WithCustomerTimeout(d time.Duration) Option {
	return func(r *Runner) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithOverlap overrides DefaultOverlap. Zero resumes exactly at the last sync.
func WithOverlap(d time.Duration) Option {
	return func(r *Runner) {
		if d >= 0 {
			r.overlap = d
		}
	}
}

// NewRunner constructs a Runner.
func NewRunner(connections domain.ConnectionStore, syncer Syncer, opts ...Option) *Runner {
	r := &Runner{
		connections: connections,
		syncer:      syncer,
		timeout:     5 * time.Minute,
		overlap:     DefaultOverlap,
		logger:      log.New(log.Writer(), "[scheduler] ", log.LstdFlags|log.Lshortfile),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RunOnce syncs customers one after another. A failing customer does not stop the pass; all
// failures are returned joined.
func (r *Runner) RunOnce(ctx context.Context) error {
	ids, err := r.connections.ListCustomerIDs(ctx)
	if err != nil {
		return fmt.Errorf("list connected customers: %w", err)
	}

	var errs error
	for _, id := range ids {
		if ctx.Err() != nil {
			return errors.Join(errs, ctx.Err())
		}
		if err := r.syncCustomer(ctx, id); err != nil {
			errs = errors.Join(errs, fmt.Errorf("customer %s: %w", id, err))
		}
	}
	return errs
}

func (r *Runner) syncCustomer(ctx context.Context, customerID string) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	conn, err := r.connections.Get(ctx, customerID)
	if err != nil {
		return err
	}
	if conn == nil {
		return nil
	}

	res, err := r.syncer.SyncActivities(ctx, customerID, r.resumeFrom(conn.LastSyncAt))
	if err != nil {
		return err
	}
	r.logger.Printf("customer %s: synced=%d matched=%d errors=%d", customerID, res.SyncedCount, res.MatchedCount, res.ErrorCount)
	return nil
}

func (r *Runner) resumeFrom(lastSync *time.Time) *time.Time {
	if lastSync == nil {
		return nil
	}
	after := lastSync.Add(-r.overlap)
	return &after
}

// Start schedules RunOnce on spec (standard cron syntax or descriptors such as "@every 6h").
// Runs never overlap. Stop with Stop.
func (r *Runner) Start(ctx context.Context, spec string) error {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc(spec, func() {
		r.logger.Printf("starting scheduled sync")
		if err := r.RunOnce(ctx); err != nil {
			r.logger.Printf("scheduled sync: %v", err)
		}
	}); err != nil {
		return fmt.Errorf("parse schedule %q: %w", spec, err)
	}
	r.cron = c
	c.Start()
	return nil
}

// Stop halts the schedule and waits for a running pass to finish.
func (r *Runner) Stop() {
	if r.cron == nil {
		return
	}
	<-r.cron.Stop().Done()
}
