package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jpvieirapereira/running-club-backend/internal/activitysync"
	"github.com/jpvieirapereira/running-club-backend/internal/domain"
	"github.com/jpvieirapereira/running-club-backend/internal/persistence/memory"
)

type recordingSyncer struct {
	mu    sync.Mutex
	fail  map[string]error
	after map[string]*time.Time
}

func (s *recordingSyncer) SyncActivities(_ context.Context, customerID string, after *time.Time) (activitysync.SyncResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.after == nil {
		s.after = map[string]*time.Time{}
	}
	s.after[customerID] = after
	if err := s.fail[customerID]; err != nil {
		return activitysync.SyncResult{}, err
	}
	return activitysync.SyncResult{SyncedCount: 1}, nil
}

func seedConnections(t *testing.T, lastSync time.Time) *memory.ConnectionStore {
	t.Helper()
	ctx := context.Background()
	store := memory.NewConnectionStore()
	for i, id := range []string{"cust-1", "cust-2"} {
		require.NoError(t, store.Save(ctx, domain.StravaConnection{
			CustomerID: id, AthleteID: int64(100 + i), AccessToken: "a", RefreshToken: "r",
			ExpiresAt: time.Now().Add(time.Hour), ConnectedAt: time.Now(),
		}))
	}
	require.NoError(t, store.UpdateLastSync(ctx, "cust-1", lastSync))
	return store
}

func TestRunOnceResumesFromLastSync(t *testing.T) {
	last := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	syncer := &recordingSyncer{}
	r := NewRunner(seedConnections(t, last), syncer, WithLogger(log.New(io.Discard, "", 0)))

	require.NoError(t, r.RunOnce(context.Background()))

	require.Len(t, syncer.after, 2)
	require.NotNil(t, syncer.after["cust-1"])
	require.True(t, syncer.after["cust-1"].Equal(last.Add(-DefaultOverlap)))
	require.Nil(t, syncer.after["cust-2"])
}

func TestRunOnceWithoutOverlapResumesAtLastSync(t *testing.T) {
	last := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	syncer := &recordingSyncer{}
	r := NewRunner(seedConnections(t, last), syncer, WithOverlap(0), WithLogger(log.New(io.Discard, "", 0)))

	require.NoError(t, r.RunOnce(context.Background()))
	require.True(t, syncer.after["cust-1"].Equal(last))
}

// startFilteredSource lists activities whose start_date is after the requested time, the way
// Strava's athlete activity listing does.
type startFilteredSource struct {
	mu         sync.Mutex
	activities []json.RawMessage
}

func (s *startFilteredSource) add(id int64, start time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activities = append(s.activities, json.RawMessage(fmt.Sprintf(
		`{"id":%d,"name":"Run %d","type":"Run","start_date":%q,"distance":5000,"moving_time":1500,"elapsed_time":1600}`,
		id, id, start.Format(time.RFC3339))))
}

func (s *startFilteredSource) ListActivities(_ context.Context, _ string, after time.Time, page, _ int) ([]json.RawMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if page > 1 {
		return nil, nil
	}
	var out []json.RawMessage
	for _, raw := range s.activities {
		var head struct {
			StartDate time.Time `json:"start_date"`
		}
		if err := json.Unmarshal(raw, &head); err != nil {
			return nil, err
		}
		if head.StartDate.After(after) {
			out = append(out, raw)
		}
	}
	return out, nil
}

func (s *startFilteredSource) GetActivity(context.Context, string, int64) (json.RawMessage, error) {
	return nil, domain.ErrNotFound
}

type passthroughTokens struct{}

func (passthroughTokens) EnsureFresh(_ context.Context, conn domain.StravaConnection) (domain.StravaConnection, error) {
	return conn, nil
}

func TestRunOnceImportsActivityUploadedAfterLastSync(t *testing.T) {
	ctx := context.Background()
	quiet := log.New(io.Discard, "", 0)
	morning := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	clock := morning.Add(8 * time.Hour)

	athleteID := int64(9001)
	connectedAt := morning.Add(-24 * time.Hour)
	customers := memory.NewCustomerRepository(domain.Customer{
		ID: "cust-1", Name: "Runner", StravaAthleteID: &athleteID, StravaConnectedAt: &connectedAt,
	})
	connections := memory.NewConnectionStore()
	require.NoError(t, connections.Save(ctx, domain.StravaConnection{
		CustomerID: "cust-1", AthleteID: athleteID, AccessToken: "a", RefreshToken: "r",
		ExpiresAt: morning.Add(48 * time.Hour), Scope: "read,activity:read", ConnectedAt: connectedAt,
	}))
	activities := memory.NewActivityRepository()
	source := &startFilteredSource{}
	matcher := activitysync.NewMatcher(activities, memory.NewTrainingPlanRepository(), activitysync.WithMatcherLogger(quiet))
	engine := activitysync.NewEngine(customers, connections, activities, source, passthroughTokens{}, matcher,
		activitysync.WithClock(func() time.Time { return clock }), activitysync.WithLogger(quiet))
	r := NewRunner(connections, engine, WithLogger(quiet))

	source.add(1, morning.Add(6*time.Hour))
	require.NoError(t, r.RunOnce(ctx))

	// Recorded at 07:00, uploaded after the 08:00 pass.
	source.add(2, morning.Add(7*time.Hour))
	clock = morning.Add(12 * time.Hour)
	require.NoError(t, r.RunOnce(ctx))

	for _, id := range []int64{1, 2} {
		stored, err := activities.GetByExternalID(ctx, "cust-1", id)
		require.NoError(t, err)
		require.NotNil(t, stored, "activity %d", id)
	}
	all, _, err := activities.ListByCustomer(ctx, "cust-1", domain.ActivityFilter{Limit: 10})
	require.NoError(t, err)
	require.Len(t, all, 2)
}

func TestRunOnceContinuesPastFailures(t *testing.T) {
	syncer := &recordingSyncer{fail: map[string]error{"cust-1": domain.ErrRefreshFailed}}
	r := NewRunner(seedConnections(t, time.Now()), syncer, WithLogger(log.New(io.Discard, "", 0)))

	err := r.RunOnce(context.Background())
	require.ErrorIs(t, err, domain.ErrRefreshFailed)
	require.ErrorContains(t, err, "customer cust-1")
	require.Len(t, syncer.after, 2)
}

func TestStartRejectsBadSchedule(t *testing.T) {
	r := NewRunner(memory.NewConnectionStore(), &recordingSyncer{})
	err := r.Start(context.Background(), "not a schedule")
	require.Error(t, err)
	r.Stop()
}

func TestRunOnceStopsOnCancelledContext(t *testing.T) {
	syncer := &recordingSyncer{}
	r := NewRunner(seedConnections(t, time.Now()), syncer, WithLogger(log.New(io.Discard, "", 0)))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := r.RunOnce(ctx)
	require.True(t, errors.Is(err, context.Canceled))
	require.Empty(t, syncer.after)
}
