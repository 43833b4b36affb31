// Package memory provides in-process repositories for local development and tests.
package memory

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jpvieirapereira/running-club-backend/internal/domain"
)

type activityKey struct {
	customerID string
	externalID int64
}

// ActivityRepository stores activities in memory.
type ActivityRepository struct {
	mu         sync.RWMutex
	activities map[string]domain.Activity
	byExternal map[activityKey]string
}

// NewActivityRepository constructs an empty repository.
func NewActivityRepository() *ActivityRepository {
	return &ActivityRepository{
		activities: make(map[string]domain.Activity),
		byExternal: make(map[activityKey]string),
	}
}

// Create implements domain.ActivityRepository.
func (r *ActivityRepository) Create(ctx context.Context, activity domain.Activity) error {
	if err := activity.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	key := activityKey{activity.CustomerID, activity.ExternalID}
	if _, exists := r.byExternal[key]; exists {
		return domain.ErrDuplicateActivity
	}
	if activity.ID == "" {
		activity.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if activity.CreatedAt.IsZero() {
		activity.CreatedAt = now
	}
	activity.UpdatedAt = now
	r.activities[activity.ID] = cloneActivity(activity)
	r.byExternal[key] = activity.ID
	return nil
}

// Update implements domain.ActivityRepository.
func (r *ActivityRepository) Update(ctx context.Context, activity domain.Activity) error {
	if err := activity.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.activities[activity.ID]
	if !ok {
		return domain.ErrActivityNotFound
	}
	activity.CreatedAt = current.CreatedAt
	activity.UpdatedAt = time.Now().UTC()
	r.activities[activity.ID] = cloneActivity(activity)
	return nil
}

// Get implements domain.ActivityRepository.
func (r *ActivityRepository) Get(ctx context.Context, activityID string) (*domain.Activity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.activities[activityID]
	if !ok {
		return nil, nil
	}
	out := cloneActivity(a)
	return &out, nil
}

// GetByExternalID implements domain.ActivityRepository.
func (r *ActivityRepository) GetByExternalID(ctx context.Context, customerID string, externalID int64) (*domain.Activity, error) {
	r.mu.RLock()
	id, ok := r.byExternal[activityKey{customerID, externalID}]
	r.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	return r.Get(ctx, id)
}

// ListByCustomer returns activities newest first.
func (r *ActivityRepository) ListByCustomer(ctx context.Context, customerID string, filter domain.ActivityFilter) ([]domain.Activity, *domain.Cursor, error) {
	all := r.collect(customerID, func(a domain.Activity) bool {
		if filter.From != nil && a.StartDate.Before(*filter.From) {
			return false
		}
		if filter.To != nil && a.StartDate.After(*filter.To) {
			return false
		}
		if filter.MatchStatus != "" && a.MatchStatus != filter.MatchStatus {
			return false
		}
		if c := filter.Cursor; c != nil {
			if a.StartDate.After(c.StartDate) || (a.StartDate.Equal(c.StartDate) && a.ID >= c.ID) {
				return false
			}
		}
		return true
	})
	sort.Slice(all, func(i, j int) bool {
		if !all[i].StartDate.Equal(all[j].StartDate) {
			return all[i].StartDate.After(all[j].StartDate)
		}
		return all[i].ID > all[j].ID
	})

	limit := filter.Limit
	if limit <= 0 || limit > len(all) {
		return all, nil, nil
	}
	page := all[:limit]
	if len(all) == limit {
		return page, nil, nil
	}
	last := page[len(page)-1]
	return page, &domain.Cursor{StartDate: last.StartDate, ID: last.ID}, nil
}

// ListByDateRange returns activities started within [from, to], oldest first.
func (r *ActivityRepository) ListByDateRange(ctx context.Context, customerID string, from, to time.Time) ([]domain.Activity, error) {
	out := r.collect(customerID, func(a domain.Activity) bool {
		return !a.StartDate.Before(from) && !a.StartDate.After(to)
	})
	sortOldestFirst(out)
	return out, nil
}

// ListUnmatched returns unmatched activities oldest first. Ignored activities are excluded.
func (r *ActivityRepository) ListUnmatched(ctx context.Context, customerID string) ([]domain.Activity, error) {
	out := r.collect(customerID, func(a domain.Activity) bool {
		return a.MatchStatus == domain.MatchStatusUnmatched
	})
	sortOldestFirst(out)
	return out, nil
}

// Delete implements domain.ActivityRepository.
func (r *ActivityRepository) Delete(ctx context.Context, activityID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.activities[activityID]
	if !ok {
		return domain.ErrActivityNotFound
	}
	delete(r.activities, activityID)
	delete(r.byExternal, activityKey{a.CustomerID, a.ExternalID})
	return nil
}

func (r *ActivityRepository) collect(customerID string, keep func(domain.Activity) bool) []domain.Activity {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Activity, 0)
	for _, a := range r.activities {
		if a.CustomerID == customerID && keep(a) {
			out = append(out, cloneActivity(a))
		}
	}
	return out
}

func sortOldestFirst(items []domain.Activity) {
	sort.Slice(items, func(i, j int) bool {
		if !items[i].StartDate.Equal(items[j].StartDate) {
			return items[i].StartDate.Before(items[j].StartDate)
		}
		return items[i].ID < items[j].ID
	})
}

func cloneActivity(a domain.Activity) domain.Activity {
	a.Photos = slices.Clone(a.Photos)
	a.Splits = slices.Clone(a.Splits)
	a.Laps = slices.Clone(a.Laps)
	a.HeartrateZones = slices.Clone(a.HeartrateZones)
	if a.TrainingDayID != nil {
		id := *a.TrainingDayID
		a.TrainingDayID = &id
	}
	return a
}
