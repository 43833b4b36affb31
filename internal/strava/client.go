// Package strava talks to the Strava OAuth and REST APIs.
package strava

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/jpvieirapereira/running-club-backend/internal/domain"
	"github.com/jpvieirapereira/running-club-backend/internal/observability"
)

const (
	// DefaultScope is requested when the caller does not ask for anything else.
	DefaultScope = "read,activity:read"

	maxBodyBytes = 10 << 20
)

// Config describes the OAuth application and endpoints.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	APIURL       string // e.g. https://www.strava.com/api/v3
	OAuthURL     string // e.g. https://www.strava.com/oauth
	Timeout      time.Duration
	MaxRetries   int
}

// Client is a Strava API client. Every call is bounded by the HTTP client timeout and the
// caller's context.
type Client struct {
	cfg        Config
	httpClient *http.Client
	baseDelay  time.Duration
	maxDelay   time.Duration
	logger     *log.Logger
}

// Option customises the client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithRetryDelay overrides the backoff window used for 429 and 5xx answers.
func WithRetryDelay(base, ceiling time.Duration) Option {
	return func(c *Client) {
		c.baseDelay = base
		c.maxDelay = ceiling
	}
}

// WithLogger overrides the default logger.
func WithLogger(logger *log.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient constructs a Client.
func NewClient(cfg Config, opts ...Option) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	cfg.APIURL = strings.TrimRight(cfg.APIURL, "/")
	cfg.OAuthURL = strings.TrimRight(cfg.OAuthURL, "/")
	c := &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseDelay:  500 * time.Millisecond,
		maxDelay:   15 * time.Second,
		logger:     log.New(log.Writer(), "[strava] ", log.LstdFlags|log.Lshortfile),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// APIError is a non-2xx answer from Strava. It matches domain.ErrUpstreamUnavailable.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("strava http %d: %s", e.StatusCode, e.Message)
}

// Is makes every API error an upstream failure for errors.Is.
func (e *APIError) Is(target error) bool {
	return target == domain.ErrUpstreamUnavailable
}

// Athlete is the subset of the athlete profile returned with tokens.
type Athlete struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	FirstName string `json:"firstname"`
	LastName  string `json:"lastname"`
}

// Token is the OAuth token response.
type Token struct {
	TokenType    string   `json:"token_type"`
	AccessToken  string   `json:"access_token"`
	RefreshToken string   `json:"refresh_token"`
	ExpiresAt    int64    `json:"expires_at"`
	ExpiresIn    int64    `json:"expires_in"`
	Athlete      *Athlete `json:"athlete,omitempty"`
}

// Expiry converts ExpiresAt to a time.
func (t Token) Expiry() time.Time {
	return time.Unix(t.ExpiresAt, 0).UTC()
}

// AuthorizationURL builds the consent URL. state carries the customer id through the redirect.
func (c *Client) AuthorizationURL(state, scope string) string {
	if scope == "" {
		scope = DefaultScope
	}
	q := url.Values{}
	q.Set("client_id", c.cfg.ClientID)
	q.Set("redirect_uri", c.cfg.RedirectURL)
	q.Set("response_type", "code")
	q.Set("approval_prompt", "auto")
	q.Set("scope", scope)
	q.Set("state", state)
	return c.cfg.OAuthURL + "/authorize?" + q.Encode()
}

// ExchangeCode trades an authorization code for tokens.
func (c *Client) ExchangeCode(ctx context.Context, code string) (*Token, error) {
	form := c.clientForm()
	form.Set("code", code)
	form.Set("grant_type", "authorization_code")

	var tok Token
	if err := c.do(ctx, "exchange_code", http.MethodPost, c.cfg.OAuthURL+"/token", "", form, &tok); err != nil {
		return nil, err
	}
	if tok.AccessToken == "" || tok.Athlete == nil || tok.Athlete.ID == 0 {
		return nil, fmt.Errorf("%w: token response missing access token or athlete", domain.ErrUpstreamUnavailable)
	}
	return &tok, nil
}

// RefreshToken exchanges a refresh token for a fresh access token. Strava may rotate the
// refresh token; callers must store the returned one.
func (c *Client) RefreshToken(ctx context.Context, refreshToken string) (*Token, error) {
	form := c.clientForm()
	form.Set("refresh_token", refreshToken)
	form.Set("grant_type", "refresh_token")

	var tok Token
	if err := c.do(ctx, "refresh_token", http.MethodPost, c.cfg.OAuthURL+"/token", "", form, &tok); err != nil {
		return nil, err
	}
	if tok.AccessToken == "" {
		return nil, fmt.Errorf("%w: refresh response missing access token", domain.ErrUpstreamUnavailable)
	}
	if tok.RefreshToken == "" {
		tok.RefreshToken = refreshToken
	}
	return &tok, nil
}

// Deauthorize revokes the application's access for the token owner.
func (c *Client) Deauthorize(ctx context.Context, accessToken string) error {
	return c.do(ctx, "deauthorize", http.MethodPost, c.cfg.OAuthURL+"/deauthorize", accessToken, url.Values{}, nil)
}

// ListActivities returns one page of the athlete's activities started after the given time.
// Items are returned undecoded so a malformed entry only fails its own mapping.
func (c *Client) ListActivities(ctx context.Context, accessToken string, after time.Time, page, perPage int) ([]json.RawMessage, error) {
	q := url.Values{}
	q.Set("after", strconv.FormatInt(after.Unix(), 10))
	q.Set("page", strconv.Itoa(page))
	q.Set("per_page", strconv.Itoa(perPage))

	var out []json.RawMessage
	if err := c.do(ctx, "list_activities", http.MethodGet, c.cfg.APIURL+"/athlete/activities?"+q.Encode(), accessToken, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetActivity fetches the detailed representation of one activity.
func (c *Client) GetActivity(ctx context.Context, accessToken string, activityID int64) (json.RawMessage, error) {
	endpoint := fmt.Sprintf("%s/activities/%d?include_all_efforts=true", c.cfg.APIURL, activityID)
	var out json.RawMessage
	if err := c.do(ctx, "get_activity", http.MethodGet, endpoint, accessToken, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) clientForm() url.Values {
	form := url.Values{}
	form.Set("client_id", c.cfg.ClientID)
	form.Set("client_secret", c.cfg.ClientSecret)
	return form
}

// do sends one logical request, retrying 429 and 5xx answers up to MaxRetries times.
func (c *Client) do(ctx context.Context, op, method, endpoint, accessToken string, form url.Values, out any) error {
	for attempt := 0; ; attempt++ {
		var body io.Reader
		if form != nil {
			body = strings.NewReader(form.Encode())
		}
		req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
		if err != nil {
			return err
		}
		req.Header.Set("Accept", "application/json")
		if form != nil {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}
		if accessToken != "" {
			req.Header.Set("Authorization", "Bearer "+accessToken)
		}

		started := time.Now()
		resp, err := c.httpClient.Do(req)
		if err != nil {
			observability.ObserveUpstream(op, "error", time.Since(started))
			if ctx.Err() == nil && attempt < c.cfg.MaxRetries {
				if waitErr := waitWithContext(ctx, c.retryDelay(attempt+1, "")); waitErr != nil {
					return fmt.Errorf("%w: %s: %w", domain.ErrUpstreamUnavailable, op, waitErr)
				}
				continue
			}
			return fmt.Errorf("%w: %s: %w", domain.ErrUpstreamUnavailable, op, err)
		}
		payload, readErr := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		_ = resp.Body.Close()
		observability.ObserveUpstream(op, statusClass(resp.StatusCode), time.Since(started))
		if readErr != nil {
			return fmt.Errorf("%w: %s: read body: %w", domain.ErrUpstreamUnavailable, op, readErr)
		}

		if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
			if out == nil || len(payload) == 0 {
				return nil
			}
			if err := json.Unmarshal(payload, out); err != nil {
				return fmt.Errorf("%w: %s: decode: %w", domain.ErrUpstreamUnavailable, op, err)
			}
			return nil
		}

		retryable := resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
		if retryable && attempt < c.cfg.MaxRetries {
			c.logger.Printf("%s: status %d, retrying (attempt %d)", op, resp.StatusCode, attempt+1)
			if waitErr := waitWithContext(ctx, c.retryDelay(attempt+1, resp.Header.Get("Retry-After"))); waitErr != nil {
				return fmt.Errorf("%w: %s: %w", domain.ErrUpstreamUnavailable, op, waitErr)
			}
			continue
		}
		return &APIError{StatusCode: resp.StatusCode, Message: errorMessage(payload)}
	}
}

func errorMessage(payload []byte) string {
	var body struct {
		Message string `json:"message"`
		Errors  []struct {
			Resource string `json:"resource"`
			Field    string `json:"field"`
			Code     string `json:"code"`
		} `json:"errors"`
	}
	if err := json.Unmarshal(payload, &body); err != nil || body.Message == "" {
		msg := strings.TrimSpace(string(payload))
		if len(msg) > 200 {
			msg = msg[:200]
		}
		return msg
	}
	parts := []string{body.Message}
	for _, e := range body.Errors {
		parts = append(parts, fmt.Sprintf("%s.%s %s", e.Resource, e.Field, e.Code))
	}
	return strings.Join(parts, "; ")
}

func statusClass(code int) string {
	return strconv.Itoa(code/100) + "xx"
}

func (c *Client) retryDelay(attempt int, retryAfterHeader string) time.Duration {
	if retryAfter := parseRetryAfter(retryAfterHeader); retryAfter > 0 {
		return min(retryAfter, c.maxDelay)
	}
	delay := c.baseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= c.maxDelay {
			return c.maxDelay
		}
	}
	return min(delay, c.maxDelay)
}

func parseRetryAfter(header string) time.Duration {
	header = strings.TrimSpace(header)
	if header == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(header); err == nil && seconds >= 0 {
		return time.Duration(seconds) * time.Second
	}
	if ts, err := time.Parse(time.RFC1123, header); err == nil {
		if delta := time.Until(ts); delta > 0 {
			return delta
		}
	}
	return 0
}

func waitWithContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
