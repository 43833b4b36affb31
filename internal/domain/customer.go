package domain

import (
	"context"
	"time"
)

// Customer is the athlete side of a coaching relationship.
type Customer struct {
	ID                string
	CoachID           *string
	Name              string
	StravaAthleteID   *int64
	StravaConnectedAt *time.Time
	StravaLastSync    *time.Time
}

// IsStravaConnected reports whether an athlete id is bound to the customer.
func (c Customer) IsStravaConnected() bool {
	return c.StravaAthleteID != nil
}

// CoachedBy reports whether coachID coaches this customer.
func (c Customer) CoachedBy(coachID string) bool {
	return c.CoachID != nil && *c.CoachID == coachID
}

// CustomerRepository exposes the customer fields this service reads and writes.
type CustomerRepository interface {
	Get(ctx context.Context, customerID string) (*Customer, error)
	Save(ctx context.Context, customer Customer) error
	UpdateLastSync(ctx context.Context, customerID string, at time.Time) error
}
