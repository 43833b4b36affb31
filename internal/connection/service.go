// Package connection manages the Strava OAuth grant of each customer.
package connection

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/jpvieirapereira/running-club-backend/internal/domain"
	"github.com/jpvieirapereira/running-club-backend/internal/keylock"
	"github.com/jpvieirapereira/running-club-backend/internal/observability"
	"github.com/jpvieirapereira/running-club-backend/internal/strava"
)

// TokenSource is the OAuth side of the Strava API.
type TokenSource interface {
	AuthorizationURL(state, scope string) string
	ExchangeCode(ctx context.Context, code string) (*strava.Token, error)
	RefreshToken(ctx context.Context, refreshToken string) (*strava.Token, error)
	Deauthorize(ctx context.Context, accessToken string) error
}

// Status describes a customer's connection for display.
type Status struct {
	Connected   bool
	AthleteID   *int64
	Scope       string
	ConnectedAt *time.Time
	LastSyncAt  *time.Time
	ExpiresAt   *time.Time
}

// Service connects, refreshes and disconnects Strava accounts.
//
// Refreshes of one customer are serialized: the record is reloaded under the lock so a
// rotated refresh token is never used twice.
type Service struct {
	customers   domain.CustomerRepository
	connections domain.ConnectionStore
	tokens      TokenSource
	buffer      time.Duration
	now         func() time.Time
	logger      *log.Logger
	locks       *keylock.Map
}

// Option customises the Service.
type Option func(*Service)

// WithRefreshBuffer overrides domain.DefaultRefreshBuffer.
func WithRefreshBuffer(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.buffer = d
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger overrides the default logger.
func WithLogger(logger *log.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewService constructs a Service.
func NewService(customers domain.CustomerRepository, connections domain.ConnectionStore, tokens TokenSource, opts ...Option) *Service {
	s := &Service{
		customers:   customers,
		connections: connections,
		tokens:      tokens,
		buffer:      domain.DefaultRefreshBuffer,
		now:         time.Now,
		logger:      log.New(log.Writer(), "[connection] ", log.LstdFlags|log.Lshortfile),
		locks:       keylock.New(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AuthorizationURL returns the consent URL for customerID.
func (s *Service) AuthorizationURL(ctx context.Context, customerID string) (string, error) {
	if _, err := s.customer(ctx, customerID); err != nil {
		return "", err
	}
	return s.tokens.AuthorizationURL(customerID, strava.DefaultScope), nil
}

// Connect exchanges an authorization code and binds the Strava athlete to the customer.
func (s *Service) Connect(ctx context.Context, customerID, code, scope string) (domain.StravaConnection, error) {
	if strings.TrimSpace(code) == "" {
		return domain.StravaConnection{}, fmt.Errorf("%w: authorization code is required", domain.ErrValidationFailed)
	}
	if scope == "" {
		scope = strava.DefaultScope
	}
	if !grantsActivityRead(scope) {
		return domain.StravaConnection{}, fmt.Errorf("%w: scope %q does not grant activity access", domain.ErrValidationFailed, scope)
	}
	customer, err := s.customer(ctx, customerID)
	if err != nil {
		return domain.StravaConnection{}, err
	}

	tok, err := s.tokens.ExchangeCode(ctx, code)
	if err != nil {
		return domain.StravaConnection{}, fmt.Errorf("exchange code: %w", err)
	}
	if tok.Athlete == nil {
		return domain.StravaConnection{}, fmt.Errorf("%w: token response has no athlete", domain.ErrUpstreamUnavailable)
	}

	now := s.now().UTC()
	conn := domain.StravaConnection{
		CustomerID:   customerID,
		AthleteID:    tok.Athlete.ID,
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresAt:    tok.Expiry(),
		Scope:        scope,
		ConnectedAt:  now,
	}
	if err := s.connections.Save(ctx, conn); err != nil {
		return domain.StravaConnection{}, fmt.Errorf("store connection: %w", err)
	}

	athleteID := tok.Athlete.ID
	customer.StravaAthleteID = &athleteID
	customer.StravaConnectedAt = &now
	if err := s.customers.Save(ctx, *customer); err != nil {
		return domain.StravaConnection{}, fmt.Errorf("bind athlete: %w", err)
	}
	s.logger.Printf("customer %s connected strava athlete %d", customerID, athleteID)
	return conn, nil
}

// Status reports the connection state of customerID.
func (s *Service) Status(ctx context.Context, customerID string) (Status, error) {
	customer, err := s.customer(ctx, customerID)
	if err != nil {
		return Status{}, err
	}
	st := Status{
		Connected:   customer.IsStravaConnected(),
		AthleteID:   customer.StravaAthleteID,
		ConnectedAt: customer.StravaConnectedAt,
		LastSyncAt:  customer.StravaLastSync,
	}
	conn, err := s.connections.Get(ctx, customerID)
	if err != nil {
		return Status{}, err
	}
	if conn != nil {
		expires := conn.ExpiresAt
		st.ExpiresAt = &expires
		st.Scope = conn.Scope
	}
	return st, nil
}

// Disconnect revokes access at Strava (best effort), clears the customer binding and deletes
// the stored grant. Imported activities stay.
func (s *Service) Disconnect(ctx context.Context, customerID string) error {
	customer, err := s.customer(ctx, customerID)
	if err != nil {
		return err
	}
	conn, err := s.connections.Get(ctx, customerID)
	if err != nil {
		return err
	}
	if conn == nil && !customer.IsStravaConnected() {
		return domain.ErrNotConnected
	}

	if conn != nil {
		if err := s.tokens.Deauthorize(ctx, conn.AccessToken); err != nil {
			s.logger.Printf("customer %s: deauthorize failed, continuing: %v", customerID, err)
		}
	}

	customer.StravaAthleteID = nil
	customer.StravaConnectedAt = nil
	if err := s.customers.Save(ctx, *customer); err != nil {
		return fmt.Errorf("clear athlete binding: %w", err)
	}
	if err := s.connections.Delete(ctx, customerID); err != nil {
		return fmt.Errorf("delete connection: %w", err)
	}
	s.logger.Printf("customer %s disconnected strava", customerID)
	return nil
}

// Refresh rotates the customer's access token now, regardless of its expiry.
func (s *Service) Refresh(ctx context.Context, customerID string) (domain.StravaConnection, error) {
	customer, err := s.customer(ctx, customerID)
	if err != nil {
		return domain.StravaConnection{}, err
	}
	if !customer.IsStravaConnected() {
		return domain.StravaConnection{}, domain.ErrNotConnected
	}
	return s.refresh(ctx, customerID, true)
}

// EnsureFresh returns conn unchanged while its token is outside the refresh buffer and a
// refreshed copy otherwise. A failed refresh only fails the call once the token has
// actually expired; inside the buffer the still-valid token is returned.
func (s *Service) EnsureFresh(ctx context.Context, conn domain.StravaConnection) (domain.StravaConnection, error) {
	if !conn.NeedsRefresh(s.now(), s.buffer) {
		return conn, nil
	}
	return s.refresh(ctx, conn.CustomerID, false)
}

func (s *Service) refresh(ctx context.Context, customerID string, force bool) (domain.StravaConnection, error) {
	unlock := s.locks.Lock(customerID)
	defer unlock()

	current, err := s.connections.Get(ctx, customerID)
	if err != nil {
		return domain.StravaConnection{}, err
	}
	if current == nil {
		return domain.StravaConnection{}, domain.ErrConnectionInconsistent
	}
	if !force && !current.NeedsRefresh(s.now(), s.buffer) {
		return *current, nil
	}

	tok, err := s.tokens.RefreshToken(ctx, current.RefreshToken)
	if err != nil {
		observability.RecordTokenRefresh("failure")
		if !force && !current.IsExpired(s.now()) {
			s.logger.Printf("customer %s: refresh failed, token still valid until %s: %v",
				customerID, current.ExpiresAt.Format(time.RFC3339), err)
			return *current, nil
		}
		return domain.StravaConnection{}, fmt.Errorf("%w: %w", domain.ErrRefreshFailed, err)
	}

	updated := *current
	updated.AccessToken = tok.AccessToken
	updated.RefreshToken = tok.RefreshToken
	updated.ExpiresAt = tok.Expiry()
	if err := s.connections.Save(ctx, updated); err != nil {
		observability.RecordTokenRefresh("failure")
		return domain.StravaConnection{}, fmt.Errorf("%w: store refreshed token: %w", domain.ErrRefreshFailed, err)
	}
	observability.RecordTokenRefresh("success")
	return updated, nil
}

func (s *Service) customer(ctx context.Context, customerID string) (*domain.Customer, error) {
	c, err := s.customers.Get(ctx, customerID)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, domain.ErrCustomerNotFound
	}
	return c, nil
}

func grantsActivityRead(scope string) bool {
	for _, part := range strings.Split(scope, ",") {
		switch strings.TrimSpace(part) {
		case "activity:read", "activity:read_all":
			return true
		}
	}
	return false
}
