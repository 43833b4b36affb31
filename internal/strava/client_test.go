package strava

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jpvieirapereira/running-club-backend/internal/domain"
)

func newTestClient(t *testing.T, handler http.Handler, mutate func(*Config)) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	cfg := Config{
		ClientID:     "123",
		ClientSecret: "shh",
		RedirectURL:  "http://localhost/callback",
		APIURL:       srv.URL + "/api/v3",
		OAuthURL:     srv.URL + "/oauth",
		Timeout:      2 * time.Second,
		MaxRetries:   2,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	return NewClient(cfg, WithRetryDelay(time.Millisecond, 5*time.Millisecond))
}

func TestAuthorizationURL(t *testing.T) {
	c := NewClient(Config{ClientID: "123", RedirectURL: "http://localhost/cb", OAuthURL: "https://www.strava.com/oauth/"})
	raw := c.AuthorizationURL("cust-1", "")

	u, err := url.Parse(raw)
	require.NoError(t, err)
	require.Equal(t, "/oauth/authorize", u.Path)
	q := u.Query()
	require.Equal(t, "123", q.Get("client_id"))
	require.Equal(t, "code", q.Get("response_type"))
	require.Equal(t, DefaultScope, q.Get("scope"))
	require.Equal(t, "cust-1", q.Get("state"))
	require.Equal(t, "http://localhost/cb", q.Get("redirect_uri"))
}

func TestExchangeCode(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/token", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, r.ParseForm())
		require.Equal(t, "authorization_code", r.PostForm.Get("grant_type"))
		require.Equal(t, "the-code", r.PostForm.Get("code"))
		require.Equal(t, "shh", r.PostForm.Get("client_secret"))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "at",
			"refresh_token": "rt",
			"expires_at":    1700000000,
			"athlete":       map[string]any{"id": 777},
		})
	})
	c := newTestClient(t, mux, nil)

	tok, err := c.ExchangeCode(context.Background(), "the-code")
	require.NoError(t, err)
	require.Equal(t, "at", tok.AccessToken)
	require.Equal(t, int64(777), tok.Athlete.ID)
	require.Equal(t, time.Unix(1700000000, 0).UTC(), tok.Expiry())
}

func TestRefreshTokenKeepsOldRefreshTokenWhenNotRotated(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		require.Equal(t, "refresh_token", r.PostForm.Get("grant_type"))
		_ = json.NewEncoder(w).Encode(map[string]any{"access_token": "at2", "expires_at": 1700003600})
	})
	c := newTestClient(t, mux, nil)

	tok, err := c.RefreshToken(context.Background(), "rt1")
	require.NoError(t, err)
	require.Equal(t, "at2", tok.AccessToken)
	require.Equal(t, "rt1", tok.RefreshToken)
}

func TestListActivitiesSendsPagingAndAuth(t *testing.T) {
	after := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v3/athlete/activities", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer at", r.Header.Get("Authorization"))
		require.Equal(t, "1704067200", r.URL.Query().Get("after"))
		require.Equal(t, "2", r.URL.Query().Get("page"))
		require.Equal(t, "50", r.URL.Query().Get("per_page"))
		_, _ = w.Write([]byte(`[{"id":1},{"id":"broken"}]`))
	})
	c := newTestClient(t, mux, nil)

	items, err := c.ListActivities(context.Background(), "at", after, 2, 50)
	require.NoError(t, err)
	require.Len(t, items, 2)
	require.JSONEq(t, `{"id":"broken"}`, string(items[1]))
}

func TestRetriesRateLimitThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v3/activities/9", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "true", r.URL.Query().Get("include_all_efforts"))
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`{"id":9}`))
	})
	c := newTestClient(t, mux, nil)

	raw, err := c.GetActivity(context.Background(), "at", 9)
	require.NoError(t, err)
	require.JSONEq(t, `{"id":9}`, string(raw))
	require.Equal(t, int32(2), calls.Load())
}

func TestNon2xxIsUpstreamUnavailable(t *testing.T) {
	var calls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v3/activities/9", func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"message":"upstream down"}`))
	})
	mux.HandleFunc("/api/v3/activities/10", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"message":"Record Not Found","errors":[{"resource":"Activity","field":"id","code":"invalid"}]}`))
	})
	c := newTestClient(t, mux, nil)

	_, err := c.GetActivity(context.Background(), "at", 9)
	require.ErrorIs(t, err, domain.ErrUpstreamUnavailable)
	require.Equal(t, int32(3), calls.Load())

	_, err = c.GetActivity(context.Background(), "at", 10)
	require.ErrorIs(t, err, domain.ErrUpstreamUnavailable)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	require.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	require.Contains(t, apiErr.Message, "Activity.id invalid")
}

func TestTimeoutIsUpstreamUnavailable(t *testing.T) {
	block := make(chan struct{})
	t.Cleanup(func() { close(block) })
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v3/athlete/activities", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-block:
		case <-r.Context().Done():
		}
	})
	c := newTestClient(t, mux, func(cfg *Config) {
		cfg.Timeout = 50 * time.Millisecond
		cfg.MaxRetries = 0
	})

	_, err := c.ListActivities(context.Background(), "at", time.Now(), 1, 50)
	require.ErrorIs(t, err, domain.ErrUpstreamUnavailable)
}

func TestPushSubscriptions(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v3/push_subscriptions", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			require.NoError(t, r.ParseForm())
			require.Equal(t, "http://cb", r.PostForm.Get("callback_url"))
			require.Equal(t, "verify", r.PostForm.Get("verify_token"))
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"id":55}`))
		case http.MethodGet:
			require.Equal(t, "123", r.URL.Query().Get("client_id"))
			_, _ = w.Write([]byte(`[{"id":55,"callback_url":"http://cb"}]`))
		}
	})
	mux.HandleFunc("/api/v3/push_subscriptions/55", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodDelete, r.Method)
		w.WriteHeader(http.StatusNoContent)
	})
	c := newTestClient(t, mux, nil)
	ctx := context.Background()

	id, err := c.CreatePushSubscription(ctx, "http://cb", "verify")
	require.NoError(t, err)
	require.Equal(t, int64(55), id)

	subs, err := c.ListPushSubscriptions(ctx)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	require.Equal(t, "http://cb", subs[0].CallbackURL)

	require.NoError(t, c.DeletePushSubscription(ctx, 55))
}
