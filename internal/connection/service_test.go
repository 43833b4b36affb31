package connection

import (
	"context"
	"errors"
	"io"
	"log"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jpvieirapereira/running-club-backend/internal/domain"
	"github.com/jpvieirapereira/running-club-backend/internal/persistence/memory"
	"github.com/jpvieirapereira/running-club-backend/internal/strava"
)

var now = time.Date(2024, 3, 20, 12, 0, 0, 0, time.UTC)

type fakeTokens struct {
	refreshes   int32
	refreshErr  error
	exchangeErr error
	deauthErr   error
	deauthed    []string
	mu          sync.Mutex
}

func (f *fakeTokens) AuthorizationURL(state, scope string) string {
	return "https://strava.test/oauth/authorize?state=" + state + "&scope=" + scope
}

func (f *fakeTokens) ExchangeCode(ctx context.Context, code string) (*strava.Token, error) {
	if f.exchangeErr != nil {
		return nil, f.exchangeErr
	}
	return &strava.Token{
		AccessToken:  "access-" + code,
		RefreshToken: "refresh-" + code,
		ExpiresAt:    now.Add(6 * time.Hour).Unix(),
		Athlete:      &strava.Athlete{ID: 9001},
	}, nil
}

func (f *fakeTokens) RefreshToken(ctx context.Context, refreshToken string) (*strava.Token, error) {
	n := atomic.AddInt32(&f.refreshes, 1)
	if f.refreshErr != nil {
		return nil, f.refreshErr
	}
	return &strava.Token{
		AccessToken:  "access-rotated",
		RefreshToken: refreshToken + "-r" + string(rune('0'+n)),
		ExpiresAt:    now.Add(6 * time.Hour).Unix(),
	}, nil
}

func (f *fakeTokens) Deauthorize(ctx context.Context, accessToken string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deauthed = append(f.deauthed, accessToken)
	return f.deauthErr
}

func newService(t *testing.T, tokens *fakeTokens) (*Service, *memory.CustomerRepository, *memory.ConnectionStore) {
	t.Helper()
	customers := memory.NewCustomerRepository(domain.Customer{ID: "cust-1", Name: "Runner"})
	connections := memory.NewConnectionStore()
	svc := NewService(customers, connections, tokens,
		WithClock(func() time.Time { return now }),
		WithLogger(log.New(io.Discard, "", 0)),
	)
	return svc, customers, connections
}

func connect(t *testing.T, svc *Service) domain.StravaConnection {
	t.Helper()
	conn, err := svc.Connect(context.Background(), "cust-1", "abc", "")
	require.NoError(t, err)
	return conn
}

func TestConnectBindsAthlete(t *testing.T) {
	svc, customers, connections := newService(t, &fakeTokens{})
	ctx := context.Background()

	conn := connect(t, svc)
	require.Equal(t, int64(9001), conn.AthleteID)
	require.Equal(t, "access-abc", conn.AccessToken)
	require.Equal(t, strava.DefaultScope, conn.Scope)

	c, err := customers.Get(ctx, "cust-1")
	require.NoError(t, err)
	require.True(t, c.IsStravaConnected())
	require.Equal(t, now, *c.StravaConnectedAt)

	byAthlete, err := connections.GetByAthleteID(ctx, 9001)
	require.NoError(t, err)
	require.Equal(t, "cust-1", byAthlete.CustomerID)
}

func TestConnectRejectsBadInput(t *testing.T) {
	svc, _, _ := newService(t, &fakeTokens{})
	ctx := context.Background()

	_, err := svc.Connect(ctx, "cust-1", "", "")
	require.ErrorIs(t, err, domain.ErrValidationFailed)

	_, err = svc.Connect(ctx, "cust-1", "abc", "read,profile:read_all")
	require.ErrorIs(t, err, domain.ErrValidationFailed)

	_, err = svc.Connect(ctx, "nobody", "abc", "")
	require.ErrorIs(t, err, domain.ErrCustomerNotFound)
}

func TestConnectPropagatesExchangeFailure(t *testing.T) {
	svc, customers, _ := newService(t, &fakeTokens{exchangeErr: domain.ErrUpstreamUnavailable})
	_, err := svc.Connect(context.Background(), "cust-1", "abc", "")
	require.ErrorIs(t, err, domain.ErrUpstreamUnavailable)

	c, _ := customers.Get(context.Background(), "cust-1")
	require.False(t, c.IsStravaConnected())
}

func TestAuthorizationURLCarriesCustomer(t *testing.T) {
	svc, _, _ := newService(t, &fakeTokens{})
	u, err := svc.AuthorizationURL(context.Background(), "cust-1")
	require.NoError(t, err)
	require.Contains(t, u, "state=cust-1")

	_, err = svc.AuthorizationURL(context.Background(), "nobody")
	require.ErrorIs(t, err, domain.ErrCustomerNotFound)
}

func TestEnsureFreshLeavesValidTokenAlone(t *testing.T) {
	tokens := &fakeTokens{}
	svc, _, _ := newService(t, tokens)
	conn := connect(t, svc)

	got, err := svc.EnsureFresh(context.Background(), conn)
	require.NoError(t, err)
	require.Equal(t, conn.AccessToken, got.AccessToken)
	require.Zero(t, atomic.LoadInt32(&tokens.refreshes))
}

func TestEnsureFreshRefreshesInsideBuffer(t *testing.T) {
	tokens := &fakeTokens{}
	svc, _, connections := newService(t, tokens)
	ctx := context.Background()
	conn := connect(t, svc)
	conn.ExpiresAt = now.Add(30 * time.Minute)
	require.NoError(t, connections.Save(ctx, conn))

	got, err := svc.EnsureFresh(ctx, conn)
	require.NoError(t, err)
	require.Equal(t, "access-rotated", got.AccessToken)
	require.Equal(t, "refresh-abc-r1", got.RefreshToken)

	stored, err := connections.Get(ctx, "cust-1")
	require.NoError(t, err)
	require.Equal(t, "refresh-abc-r1", stored.RefreshToken)
	require.Equal(t, conn.AthleteID, stored.AthleteID)
}

func TestEnsureFreshRefreshesOnceUnderContention(t *testing.T) {
	tokens := &fakeTokens{}
	svc, _, connections := newService(t, tokens)
	ctx := context.Background()
	conn := connect(t, svc)
	conn.ExpiresAt = now.Add(-time.Minute)
	require.NoError(t, connections.Save(ctx, conn))

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.EnsureFresh(ctx, conn)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}
	require.Equal(t, int32(1), atomic.LoadInt32(&tokens.refreshes))
}

func TestEnsureFreshFailures(t *testing.T) {
	ctx := context.Background()

	t.Run("upstream rejects refresh", func(t *testing.T) {
		tokens := &fakeTokens{refreshErr: &strava.APIError{StatusCode: 400, Message: "invalid refresh token"}}
		svc, _, connections := newService(t, tokens)
		conn := connect(t, svc)
		conn.ExpiresAt = now
		require.NoError(t, connections.Save(ctx, conn))

		_, err := svc.EnsureFresh(ctx, conn)
		require.ErrorIs(t, err, domain.ErrRefreshFailed)
		var apiErr *strava.APIError
		require.True(t, errors.As(err, &apiErr))
	})

	t.Run("refresh fails while token still valid", func(t *testing.T) {
		tokens := &fakeTokens{refreshErr: domain.ErrUpstreamUnavailable}
		svc, _, connections := newService(t, tokens)
		conn := connect(t, svc)
		conn.ExpiresAt = now.Add(10 * time.Minute)
		require.NoError(t, connections.Save(ctx, conn))

		got, err := svc.EnsureFresh(ctx, conn)
		require.NoError(t, err)
		require.Equal(t, conn.AccessToken, got.AccessToken)
		require.Equal(t, conn.ExpiresAt, got.ExpiresAt)
		require.Equal(t, int32(1), atomic.LoadInt32(&tokens.refreshes))
	})

	t.Run("forced refresh fails while token still valid", func(t *testing.T) {
		tokens := &fakeTokens{refreshErr: domain.ErrUpstreamUnavailable}
		svc, _, _ := newService(t, tokens)
		connect(t, svc)

		_, err := svc.Refresh(ctx, "cust-1")
		require.ErrorIs(t, err, domain.ErrRefreshFailed)
	})

	t.Run("grant vanished", func(t *testing.T) {
		svc, _, connections := newService(t, &fakeTokens{})
		conn := connect(t, svc)
		conn.ExpiresAt = now
		require.NoError(t, connections.Delete(ctx, "cust-1"))

		_, err := svc.EnsureFresh(ctx, conn)
		require.ErrorIs(t, err, domain.ErrConnectionInconsistent)
	})
}

func TestRefreshForcesRotation(t *testing.T) {
	tokens := &fakeTokens{}
	svc, _, _ := newService(t, tokens)
	ctx := context.Background()
	connect(t, svc)

	got, err := svc.Refresh(ctx, "cust-1")
	require.NoError(t, err)
	require.Equal(t, "access-rotated", got.AccessToken)
	require.Equal(t, int32(1), atomic.LoadInt32(&tokens.refreshes))
}

func TestRefreshRequiresConnection(t *testing.T) {
	svc, _, _ := newService(t, &fakeTokens{})
	_, err := svc.Refresh(context.Background(), "cust-1")
	require.ErrorIs(t, err, domain.ErrNotConnected)
}

func TestStatus(t *testing.T) {
	svc, _, _ := newService(t, &fakeTokens{})
	ctx := context.Background()

	st, err := svc.Status(ctx, "cust-1")
	require.NoError(t, err)
	require.False(t, st.Connected)
	require.Nil(t, st.ExpiresAt)

	connect(t, svc)
	st, err = svc.Status(ctx, "cust-1")
	require.NoError(t, err)
	require.True(t, st.Connected)
	require.Equal(t, int64(9001), *st.AthleteID)
	require.Equal(t, now.Add(6*time.Hour), st.ExpiresAt.UTC())
}

func TestDisconnect(t *testing.T) {
	tokens := &fakeTokens{deauthErr: domain.ErrUpstreamUnavailable}
	svc, customers, connections := newService(t, tokens)
	ctx := context.Background()
	connect(t, svc)

	require.NoError(t, svc.Disconnect(ctx, "cust-1"))
	require.Equal(t, []string{"access-abc"}, tokens.deauthed)

	c, _ := customers.Get(ctx, "cust-1")
	require.False(t, c.IsStravaConnected())
	require.Nil(t, c.StravaConnectedAt)

	conn, err := connections.Get(ctx, "cust-1")
	require.NoError(t, err)
	require.Nil(t, conn)

	require.ErrorIs(t, svc.Disconnect(ctx, "cust-1"), domain.ErrNotConnected)
}
