// Package activitysync imports Strava activities and links them to training days.
package activitysync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/jpvieirapereira/running-club-backend/internal/domain"
	"github.com/jpvieirapereira/running-club-backend/internal/keylock"
	"github.com/jpvieirapereira/running-club-backend/internal/observability"
)

// ActivitySource lists and fetches activities from Strava.
type ActivitySource interface {
	ListActivities(ctx context.Context, accessToken string, after time.Time, page, perPage int) ([]json.RawMessage, error)
	GetActivity(ctx context.Context, accessToken string, activityID int64) (json.RawMessage, error)
}

// TokenKeeper returns a connection whose access token is good for the refresh buffer.
type TokenKeeper interface {
	EnsureFresh(ctx context.Context, conn domain.StravaConnection) (domain.StravaConnection, error)
}

// SyncResult summarises one sync run.
type SyncResult struct {
	SyncedCount  int
	MatchedCount int
	ErrorCount   int
	Activities   []domain.Activity
}

// Engine runs customer syncs. Syncs of the same customer never overlap.
type Engine struct {
	customers   domain.CustomerRepository
	connections domain.ConnectionStore
	activities  domain.ActivityRepository
	source      ActivitySource
	tokens      TokenKeeper
	matcher     *Matcher
	locks       *keylock.Map
	now         func() time.Time
	perPage     int
	maxPages    int
	lookback    time.Duration
	logger      *log.Logger
}

// Option customises an Engine.
type Option func(*Engine)

// WithLogger overrides the default logger.
func WithLogger(logger *log.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithClock overrides time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithPaging sets the Strava page size and the maximum pages read per sync.
func WithPaging(perPage, maxPages int) Option {
	return func(e *Engine) {
		if perPage > 0 {
			e.perPage = perPage
		}
		if maxPages > 0 {
			e.maxPages = maxPages
		}
	}
}

// WithLookback sets the window used when the caller passes no start time.
func WithLookback(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.lookback = d
		}
	}
}

// NewEngine constructs an Engine.
func NewEngine(
	customers domain.CustomerRepository,
	connections domain.ConnectionStore,
	activities domain.ActivityRepository,
	source ActivitySource,
	tokens TokenKeeper,
	matcher *Matcher,
	opts ...Option,
) *Engine {
	e := &Engine{
		customers:   customers,
		connections: connections,
		activities:  activities,
		source:      source,
		tokens:      tokens,
		matcher:     matcher,
		locks:       keylock.New(),
		now:         time.Now,
		perPage:     50,
		maxPages:    10,
		lookback:    30 * 24 * time.Hour,
		logger:      log.New(log.Writer(), "[sync] ", log.LstdFlags|log.Lshortfile),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// SyncActivities imports every activity started after `after` (default: the lookback window)
// that is not stored yet, then matches the customer's unmatched activities. Per-activity
// failures are counted in ErrorCount; lookup, refresh and listing failures abort the run.
func (e *Engine) SyncActivities(ctx context.Context, customerID string, after *time.Time) (SyncResult, error) {
	started := e.now()
	unlock := e.locks.Lock(customerID)
	defer unlock()

	result, err := e.syncLocked(ctx, customerID, after)
	outcome := "success"
	if err != nil {
		outcome = outcomeLabel(err)
	}
	observability.RecordSyncRun(outcome, e.now().Sub(started))
	return result, err
}

func (e *Engine) syncLocked(ctx context.Context, customerID string, after *time.Time) (SyncResult, error) {
	conn, err := e.connectionFor(ctx, customerID)
	if err != nil {
		return SyncResult{}, err
	}

	since := e.now().Add(-e.lookback)
	if after != nil {
		since = *after
	}

	var (
		result  SyncResult
		skipped int
	)
	for page := 1; page <= e.maxPages; page++ {
		items, err := e.source.ListActivities(ctx, conn.AccessToken, since, page, e.perPage)
		if err != nil {
			return SyncResult{}, fmt.Errorf("list activities page %d: %w", page, err)
		}
		for _, raw := range items {
			created, err := e.importOne(ctx, customerID, raw)
			switch {
			case err != nil:
				result.ErrorCount++
				e.logger.Printf("customer %s: skipping activity: %v", customerID, err)
			case created == nil:
				skipped++
			default:
				result.SyncedCount++
				result.Activities = append(result.Activities, *created)
			}
		}
		if len(items) < e.perPage {
			break
		}
	}
	observability.RecordSyncedActivities(result.SyncedCount, skipped, result.ErrorCount)

	syncedAt := e.now().UTC()
	if err := e.customers.UpdateLastSync(ctx, customerID, syncedAt); err != nil {
		e.logger.Printf("customer %s: update last sync: %v", customerID, err)
	}
	if err := e.connections.UpdateLastSync(ctx, customerID, syncedAt); err != nil {
		e.logger.Printf("customer %s: update connection last sync: %v", customerID, err)
	}

	matched, err := e.matcher.MatchUnmatched(ctx, customerID)
	if err != nil {
		e.logger.Printf("customer %s: matching finished with errors: %v", customerID, err)
	}
	result.MatchedCount = matched
	return result, nil
}

// importOne stores a new activity. It returns nil, nil when the activity already exists;
// known ids are skipped before the payload is validated.
func (e *Engine) importOne(ctx context.Context, customerID string, raw json.RawMessage) (*domain.Activity, error) {
	var ref struct {
		ID int64 `json:"id"`
	}
	if err := json.Unmarshal(raw, &ref); err == nil && ref.ID > 0 {
		existing, err := e.activities.GetByExternalID(ctx, customerID, ref.ID)
		if err != nil {
			return nil, fmt.Errorf("lookup activity %d: %w", ref.ID, err)
		}
		if existing != nil {
			return nil, nil
		}
	}

	activity, err := MapActivity(raw, customerID)
	if err != nil {
		return nil, err
	}

	activity.ID = uuid.NewString()
	if err := e.activities.Create(ctx, activity); err != nil {
		if errors.Is(err, domain.ErrDuplicateActivity) {
			return nil, nil
		}
		return nil, fmt.Errorf("store activity %d: %w", activity.ExternalID, err)
	}
	return &activity, nil
}

// SyncSingleActivity fetches one activity's detail. A stored activity is updated in place
// keeping its id and match state; a new one is stored and matched on its own.
func (e *Engine) SyncSingleActivity(ctx context.Context, externalID int64, customerID string) (*domain.Activity, error) {
	unlock := e.locks.Lock(customerID)
	defer unlock()

	conn, err := e.connectionFor(ctx, customerID)
	if err != nil {
		return nil, err
	}
	raw, err := e.source.GetActivity(ctx, conn.AccessToken, externalID)
	if err != nil {
		return nil, fmt.Errorf("get activity %d: %w", externalID, err)
	}
	fresh, err := MapActivity(raw, customerID)
	if err != nil {
		return nil, err
	}

	existing, err := e.activities.GetByExternalID(ctx, customerID, fresh.ExternalID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return e.refreshExisting(ctx, *existing, fresh)
	}

	fresh.ID = uuid.NewString()
	if err := e.activities.Create(ctx, fresh); err != nil {
		if errors.Is(err, domain.ErrDuplicateActivity) {
			stored, getErr := e.activities.GetByExternalID(ctx, customerID, fresh.ExternalID)
			if getErr != nil || stored == nil {
				return nil, errors.Join(err, getErr)
			}
			return e.refreshExisting(ctx, *stored, fresh)
		}
		return nil, err
	}
	observability.RecordSyncedActivities(1, 0, 0)

	if _, err := e.matcher.MatchSingle(ctx, &fresh); err != nil {
		e.logger.Printf("customer %s: match activity %s: %v", customerID, fresh.ID, err)
	}
	return &fresh, nil
}

func (e *Engine) refreshExisting(ctx context.Context, existing, fresh domain.Activity) (*domain.Activity, error) {
	fresh.ID = existing.ID
	fresh.CreatedAt = existing.CreatedAt
	fresh.TrainingDayID = existing.TrainingDayID
	fresh.MatchStatus = existing.MatchStatus
	if err := e.activities.Update(ctx, fresh); err != nil {
		return nil, err
	}
	return &fresh, nil
}

// connectionFor resolves a usable connection for customerID, refreshing tokens when needed.
func (e *Engine) connectionFor(ctx context.Context, customerID string) (domain.StravaConnection, error) {
	customer, err := e.customers.Get(ctx, customerID)
	if err != nil {
		return domain.StravaConnection{}, err
	}
	if customer == nil {
		return domain.StravaConnection{}, domain.ErrCustomerNotFound
	}
	if !customer.IsStravaConnected() {
		return domain.StravaConnection{}, domain.ErrNotConnected
	}
	conn, err := e.connections.Get(ctx, customerID)
	if err != nil {
		return domain.StravaConnection{}, err
	}
	if conn == nil {
		return domain.StravaConnection{}, domain.ErrConnectionInconsistent
	}
	return e.tokens.EnsureFresh(ctx, *conn)
}

func outcomeLabel(err error) string {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrNotConnected):
		return "not_connected"
	case errors.Is(err, domain.ErrConnectionInconsistent):
		return "connection_inconsistent"
	case errors.Is(err, domain.ErrRefreshFailed):
		return "refresh_failed"
	case errors.Is(err, domain.ErrUpstreamUnavailable):
		return "upstream_unavailable"
	}
	return "error"
}
