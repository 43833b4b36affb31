package activitysync

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/jpvieirapereira/running-club-backend/internal/domain"
	"github.com/jpvieirapereira/running-club-backend/internal/observability"
)

// Matcher links activities to training days by calendar date.
//
// Plans and days are visited in the order the lookup returns them; the first unclaimed day on
// the activity's UTC date wins. Matching is greedy and never revisits earlier decisions.
type Matcher struct {
	activities domain.ActivityRepository
	plans      domain.TrainingPlanLookup
	logger     *log.Logger
}

// MatcherOption customises a Matcher.
type MatcherOption func(*Matcher)

// WithMatcherLogger overrides the default logger.
func WithMatcherLogger(logger *log.Logger) MatcherOption {
	return func(m *Matcher) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// NewMatcher constructs a Matcher.
func NewMatcher(activities domain.ActivityRepository, plans domain.TrainingPlanLookup, opts ...MatcherOption) *Matcher {
	m := &Matcher{
		activities: activities,
		plans:      plans,
		logger:     log.New(log.Writer(), "[matcher] ", log.LstdFlags|log.Lshortfile),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// MatchUnmatched tries every unmatched activity of the customer, oldest first, and returns
// how many were linked. Per-activity failures are joined into the returned error.
func (m *Matcher) MatchUnmatched(ctx context.Context, customerID string) (int, error) {
	pending, err := m.activities.ListUnmatched(ctx, customerID)
	if err != nil {
		return 0, fmt.Errorf("list unmatched: %w", err)
	}
	if len(pending) == 0 {
		return 0, nil
	}

	candidates, err := m.loadDays(ctx, customerID)
	if err != nil {
		return 0, err
	}

	matched := 0
	var errs error
	for i := range pending {
		ok, err := m.matchAgainst(ctx, &pending[i], candidates)
		if err != nil {
			m.logger.Printf("match activity %s: %v", pending[i].ID, err)
			errs = errors.Join(errs, err)
			continue
		}
		if ok {
			matched++
		}
	}
	return matched, errs
}

// MatchSingle links a as soon as an eligible day is found. It returns false when the
// activity is not unmatched or no day is free on its date.
func (m *Matcher) MatchSingle(ctx context.Context, a *domain.Activity) (bool, error) {
	if a.MatchStatus != domain.MatchStatusUnmatched {
		return false, nil
	}
	candidates, err := m.loadDays(ctx, a.CustomerID)
	if err != nil {
		return false, err
	}
	return m.matchAgainst(ctx, a, candidates)
}

// Unmatch clears the activity's training day and frees the day for other activities.
func (m *Matcher) Unmatch(ctx context.Context, a *domain.Activity) error {
	dayID := a.TrainingDayID
	a.Unmatch()
	return m.persistAndRelease(ctx, a, dayID)
}

// Ignore excludes the activity from future sweeps, freeing any claimed day.
func (m *Matcher) Ignore(ctx context.Context, a *domain.Activity) error {
	dayID := a.TrainingDayID
	a.Ignore()
	return m.persistAndRelease(ctx, a, dayID)
}

func (m *Matcher) persistAndRelease(ctx context.Context, a *domain.Activity, dayID *string) error {
	if err := m.activities.Update(ctx, *a); err != nil {
		return err
	}
	if dayID == nil {
		return nil
	}
	if err := m.plans.ReleaseTrainingDay(ctx, *dayID, a.ID); err != nil {
		return fmt.Errorf("release training day %s: %w", *dayID, err)
	}
	return nil
}

// loadDays flattens plans and days in lookup order.
func (m *Matcher) loadDays(ctx context.Context, customerID string) ([]domain.TrainingDay, error) {
	plans, err := m.plans.ListPlansByCustomer(ctx, customerID)
	if err != nil {
		return nil, fmt.Errorf("list plans: %w", err)
	}
	var out []domain.TrainingDay
	for _, plan := range plans {
		days, err := m.plans.ListDaysByPlan(ctx, plan.ID)
		if err != nil {
			return nil, fmt.Errorf("list days of plan %s: %w", plan.ID, err)
		}
		out = append(out, days...)
	}
	return out, nil
}

// matchAgainst walks candidates and claims the first free day on the activity's date. A
// successful claim is recorded in candidates so later activities in the same sweep skip it.
func (m *Matcher) matchAgainst(ctx context.Context, a *domain.Activity, candidates []domain.TrainingDay) (bool, error) {
	for i := range candidates {
		day := &candidates[i]
		if day.IsClaimed() || !domain.SameCivilDate(day.Date, a.StartDate) {
			continue
		}
		claimed, err := m.plans.ClaimTrainingDay(ctx, day.ID, a.ID)
		if err != nil {
			return false, fmt.Errorf("claim training day %s: %w", day.ID, err)
		}
		if !claimed {
			taken := ""
			day.MatchedActivityID = &taken
			continue
		}

		a.MatchTo(day.ID)
		if err := m.activities.Update(ctx, *a); err != nil {
			a.Unmatch()
			if relErr := m.plans.ReleaseTrainingDay(ctx, day.ID, a.ID); relErr != nil {
				err = errors.Join(err, relErr)
			}
			return false, fmt.Errorf("persist match: %w", err)
		}
		holder := a.ID
		day.MatchedActivityID = &holder
		observability.RecordMatch()
		return true, nil
	}
	return false, nil
}
