package activitysync

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jpvieirapereira/running-club-backend/internal/domain"
	"github.com/jpvieirapereira/running-club-backend/internal/persistence/memory"
)

var fixedNow = time.Date(2024, 3, 20, 12, 0, 0, 0, time.UTC)

type listCall struct {
	token   string
	after   time.Time
	page    int
	perPage int
}

type fakeSource struct {
	mu      sync.Mutex
	pages   map[int][]json.RawMessage
	details map[int64]json.RawMessage
	listErr error
	calls   []listCall
}

func (f *fakeSource) ListActivities(ctx context.Context, accessToken string, after time.Time, page, perPage int) ([]json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, listCall{token: accessToken, after: after, page: page, perPage: perPage})
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.pages[page], nil
}

func (f *fakeSource) GetActivity(ctx context.Context, accessToken string, activityID int64) (json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	raw, ok := f.details[activityID]
	if !ok {
		return nil, fmt.Errorf("%w: activity %d", domain.ErrUpstreamUnavailable, activityID)
	}
	return raw, nil
}

type fakeTokens struct {
	err error
}

func (f fakeTokens) EnsureFresh(ctx context.Context, conn domain.StravaConnection) (domain.StravaConnection, error) {
	if f.err != nil {
		return domain.StravaConnection{}, f.err
	}
	return conn, nil
}

type fixture struct {
	customers   *memory.CustomerRepository
	connections *memory.ConnectionStore
	activities  *memory.ActivityRepository
	plans       *memory.TrainingPlanRepository
	source      *fakeSource
	engine      *Engine
}

func quietLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

// newFixture seeds a connected customer "cust-1" coached by "coach-1".
func newFixture(t *testing.T, tokens TokenKeeper, opts ...Option) *fixture {
	t.Helper()
	athleteID := int64(9001)
	connectedAt := fixedNow.Add(-48 * time.Hour)
	coach := "coach-1"
	f := &fixture{
		customers: memory.NewCustomerRepository(domain.Customer{
			ID:                "cust-1",
			CoachID:           &coach,
			Name:              "Runner",
			StravaAthleteID:   &athleteID,
			StravaConnectedAt: &connectedAt,
		}),
		connections: memory.NewConnectionStore(),
		activities:  memory.NewActivityRepository(),
		plans:       memory.NewTrainingPlanRepository(),
		source:      &fakeSource{pages: map[int][]json.RawMessage{}, details: map[int64]json.RawMessage{}},
	}
	require.NoError(t, f.connections.Save(context.Background(), domain.StravaConnection{
		CustomerID:   "cust-1",
		AthleteID:    athleteID,
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
		ExpiresAt:    fixedNow.Add(6 * time.Hour),
		Scope:        "read,activity:read",
		ConnectedAt:  connectedAt,
	}))
	if tokens == nil {
		tokens = fakeTokens{}
	}
	matcher := NewMatcher(f.activities, f.plans, WithMatcherLogger(quietLogger()))
	base := []Option{WithClock(func() time.Time { return fixedNow }), WithLogger(quietLogger())}
	f.engine = NewEngine(f.customers, f.connections, f.activities, f.source, tokens, matcher, append(base, opts...)...)
	return f
}

func rawActivity(id int64, start string) json.RawMessage {
	return json.RawMessage(fmt.Sprintf(`{"id":%d,"name":"Run %d","type":"Run","start_date":%q,"distance":5000,"moving_time":1500,"elapsed_time":1600}`, id, id, start))
}

func (f *fixture) addPlan(t *testing.T, id string, start time.Time, days ...domain.TrainingDay) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, f.plans.CreatePlan(ctx, domain.TrainingPlan{
		ID:         id,
		CoachID:    "coach-1",
		CustomerID: "cust-1",
		Name:       "Plan " + id,
		StartDate:  start,
		EndDate:    start.AddDate(0, 1, 0),
		IsActive:   true,
	}))
	for _, d := range days {
		d.PlanID = id
		require.NoError(t, f.plans.CreateDay(ctx, d))
	}
}

func (f *fixture) storeActivity(t *testing.T, a domain.Activity) domain.Activity {
	t.Helper()
	if a.CustomerID == "" {
		a.CustomerID = "cust-1"
	}
	if a.MatchStatus == "" {
		a.MatchStatus = domain.MatchStatusUnmatched
	}
	require.NoError(t, f.activities.Create(context.Background(), a))
	stored, err := f.activities.GetByExternalID(context.Background(), a.CustomerID, a.ExternalID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	return *stored
}

func day(id string, date time.Time, order int) domain.TrainingDay {
	return domain.TrainingDay{ID: id, Date: date, TrainingType: "easy", DayOrder: order}
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
