package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jpvieirapereira/running-club-backend/internal/domain"
)

// TrainingPlanRepository keeps plans and days in memory.
type TrainingPlanRepository struct {
	mu    sync.RWMutex
	plans map[string]domain.TrainingPlan
	days  map[string]domain.TrainingDay
}

// NewTrainingPlanRepository constructs an empty repository.
func NewTrainingPlanRepository() *TrainingPlanRepository {
	return &TrainingPlanRepository{
		plans: make(map[string]domain.TrainingPlan),
		days:  make(map[string]domain.TrainingDay),
	}
}

// CreatePlan implements domain.TrainingPlanRepository.
func (r *TrainingPlanRepository) CreatePlan(ctx context.Context, plan domain.TrainingPlan) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now().UTC()
	if plan.CreatedAt.IsZero() {
		plan.CreatedAt = now
	}
	plan.UpdatedAt = now
	r.plans[plan.ID] = plan
	return nil
}

// GetPlan implements domain.TrainingPlanRepository.
func (r *TrainingPlanRepository) GetPlan(ctx context.Context, planID string) (*domain.TrainingPlan, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.plans[planID]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

// ListPlansByCustomer returns plans ordered by start date then id.
func (r *TrainingPlanRepository) ListPlansByCustomer(ctx context.Context, customerID string) ([]domain.TrainingPlan, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.TrainingPlan, 0)
	for _, p := range r.plans {
		if p.CustomerID == customerID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartDate.Equal(out[j].StartDate) {
			return out[i].StartDate.Before(out[j].StartDate)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// CreateDay implements domain.TrainingPlanRepository.
func (r *TrainingPlanRepository) CreateDay(ctx context.Context, day domain.TrainingDay) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.plans[day.PlanID]; !ok {
		return domain.ErrTrainingPlanNotFound
	}
	day.Date = domain.CivilDate(day.Date)
	r.days[day.ID] = day
	return nil
}

// GetDay implements domain.TrainingPlanRepository.
func (r *TrainingPlanRepository) GetDay(ctx context.Context, dayID string) (*domain.TrainingDay, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.days[dayID]
	if !ok {
		return nil, nil
	}
	return &d, nil
}

// GetPlanByDayID implements domain.TrainingPlanRepository.
func (r *TrainingPlanRepository) GetPlanByDayID(ctx context.Context, dayID string) (*domain.TrainingPlan, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.days[dayID]
	if !ok {
		return nil, nil
	}
	p, ok := r.plans[d.PlanID]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

// ListDaysByPlan returns days ordered by date, day order, then id.
func (r *TrainingPlanRepository) ListDaysByPlan(ctx context.Context, planID string) ([]domain.TrainingDay, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.TrainingDay, 0)
	for _, d := range r.days {
		if d.PlanID == planID {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		if out[i].DayOrder != out[j].DayOrder {
			return out[i].DayOrder < out[j].DayOrder
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// UpdateDay replaces the scheduling fields of a day. The match pointer is left untouched.
func (r *TrainingPlanRepository) UpdateDay(ctx context.Context, day domain.TrainingDay) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.days[day.ID]
	if !ok {
		return domain.ErrTrainingDayNotFound
	}
	day.PlanID = current.PlanID
	day.MatchedActivityID = current.MatchedActivityID
	day.Date = domain.CivilDate(day.Date)
	r.days[day.ID] = day
	return nil
}

// DeleteDay implements domain.TrainingPlanRepository.
func (r *TrainingPlanRepository) DeleteDay(ctx context.Context, dayID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.days[dayID]; !ok {
		return domain.ErrTrainingDayNotFound
	}
	delete(r.days, dayID)
	return nil
}

// ClaimTrainingDay implements domain.TrainingPlanLookup.
func (r *TrainingPlanRepository) ClaimTrainingDay(ctx context.Context, dayID, activityID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.days[dayID]
	if !ok {
		return false, domain.ErrTrainingDayNotFound
	}
	if d.MatchedActivityID != nil {
		return false, nil
	}
	id := activityID
	d.MatchedActivityID = &id
	r.days[dayID] = d
	return true, nil
}

// ReleaseTrainingDay implements domain.TrainingPlanLookup.
func (r *TrainingPlanRepository) ReleaseTrainingDay(ctx context.Context, dayID, activityID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.days[dayID]
	if !ok || d.MatchedActivityID == nil || *d.MatchedActivityID != activityID {
		return nil
	}
	d.MatchedActivityID = nil
	r.days[dayID] = d
	return nil
}
