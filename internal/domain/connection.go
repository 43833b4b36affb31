package domain

import (
	"context"
	"time"
)

// DefaultRefreshBuffer is how early an access token is rotated before it expires.
const DefaultRefreshBuffer = time.Hour

// StravaConnection holds the OAuth grant for one customer.
type StravaConnection struct {
	CustomerID   string
	AthleteID    int64
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	Scope        string
	ConnectedAt  time.Time
	LastSyncAt   *time.Time
}

// NeedsRefresh reports whether the access token expires within buffer of now.
func (c StravaConnection) NeedsRefresh(now time.Time, buffer time.Duration) bool {
	return !now.Add(buffer).Before(c.ExpiresAt)
}

// IsExpired reports whether the access token is already past its expiry.
func (c StravaConnection) IsExpired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

// ConnectionStore persists Strava connections keyed by customer and indexed by athlete.
type ConnectionStore interface {
	Get(ctx context.Context, customerID string) (*StravaConnection, error)
	GetByAthleteID(ctx context.Context, athleteID int64) (*StravaConnection, error)
	Save(ctx context.Context, conn StravaConnection) error
	Delete(ctx context.Context, customerID string) error
	UpdateLastSync(ctx context.Context, customerID string, at time.Time) error
	ListCustomerIDs(ctx context.Context) ([]string, error)
}
