package activitysync

import (
	"context"
	"fmt"
	"time"

	"github.com/jpvieirapereira/running-club-backend/internal/domain"
)

const (
	// DefaultListLimit applies when a listing asks for no limit.
	DefaultListLimit = 50
	// MaxListLimit caps a single page.
	MaxListLimit = 200
	// MaxCalendarWindow caps the span of a calendar listing.
	MaxCalendarWindow = 92 * 24 * time.Hour
)

// ListActivities returns the customer's activities visible to principal.
func (e *Engine) ListActivities(ctx context.Context, principal domain.Principal, customerID string, filter domain.ActivityFilter) ([]domain.Activity, *domain.Cursor, error) {
	if err := e.authorize(ctx, principal, customerID); err != nil {
		return nil, nil, err
	}
	switch {
	case filter.Limit == 0:
		filter.Limit = DefaultListLimit
	case filter.Limit < 0 || filter.Limit > MaxListLimit:
		return nil, nil, fmt.Errorf("%w: limit must be between 1 and %d", domain.ErrValidationFailed, MaxListLimit)
	}
	if filter.MatchStatus != "" && !filter.MatchStatus.Valid() {
		return nil, nil, fmt.Errorf("%w: unknown match status %q", domain.ErrValidationFailed, filter.MatchStatus)
	}
	if filter.From != nil && filter.To != nil && filter.To.Before(*filter.From) {
		return nil, nil, fmt.Errorf("%w: end date before start date", domain.ErrValidationFailed)
	}
	return e.activities.ListByCustomer(ctx, customerID, filter)
}

// ActivitiesBetween returns every activity the customer started within [from, to], oldest
// first. It backs calendar views, so the window is bounded instead of paged.
func (e *Engine) ActivitiesBetween(ctx context.Context, principal domain.Principal, customerID string, from, to time.Time) ([]domain.Activity, error) {
	if err := e.authorize(ctx, principal, customerID); err != nil {
		return nil, err
	}
	switch {
	case from.IsZero() || to.IsZero():
		return nil, fmt.Errorf("%w: start and end date are required", domain.ErrValidationFailed)
	case to.Before(from):
		return nil, fmt.Errorf("%w: end date before start date", domain.ErrValidationFailed)
	case to.Sub(from) > MaxCalendarWindow:
		return nil, fmt.Errorf("%w: window exceeds %d days", domain.ErrValidationFailed, int(MaxCalendarWindow.Hours()/24))
	}
	return e.activities.ListByDateRange(ctx, customerID, from, to)
}

// GetActivity returns one activity if principal owns it or coaches its owner.
func (e *Engine) GetActivity(ctx context.Context, principal domain.Principal, activityID string) (*domain.Activity, error) {
	a, err := e.activities.Get(ctx, activityID)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, domain.ErrActivityNotFound
	}
	if err := e.authorize(ctx, principal, a.CustomerID); err != nil {
		return nil, err
	}
	return a, nil
}

// UnmatchActivity clears the activity's training day.
func (e *Engine) UnmatchActivity(ctx context.Context, principal domain.Principal, activityID string) (*domain.Activity, error) {
	a, err := e.GetActivity(ctx, principal, activityID)
	if err != nil {
		return nil, err
	}
	if err := e.matcher.Unmatch(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// IgnoreActivity excludes the activity from automatic matching.
func (e *Engine) IgnoreActivity(ctx context.Context, principal domain.Principal, activityID string) (*domain.Activity, error) {
	a, err := e.GetActivity(ctx, principal, activityID)
	if err != nil {
		return nil, err
	}
	if err := e.matcher.Ignore(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// DeleteActivity removes the activity, releasing its training day first.
func (e *Engine) DeleteActivity(ctx context.Context, principal domain.Principal, activityID string) error {
	a, err := e.GetActivity(ctx, principal, activityID)
	if err != nil {
		return err
	}
	if principal.Role == domain.RoleCoach {
		return fmt.Errorf("%w: coaches cannot delete athlete activities", domain.ErrForbidden)
	}
	if a.IsMatched() {
		if err := e.matcher.Unmatch(ctx, a); err != nil {
			return err
		}
	}
	return e.activities.Delete(ctx, a.ID)
}

func (e *Engine) authorize(ctx context.Context, principal domain.Principal, customerID string) error {
	customer, err := e.customers.Get(ctx, customerID)
	if err != nil {
		return err
	}
	if customer == nil {
		return domain.ErrCustomerNotFound
	}
	if !principal.CanAccessCustomer(*customer) {
		return fmt.Errorf("%w: activity belongs to another customer", domain.ErrForbidden)
	}
	return nil
}
