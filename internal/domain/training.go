package domain

import (
	"context"
	"time"
)

// TrainingPlan groups scheduled days for one customer.
type TrainingPlan struct {
	ID              string
	CoachID         string
	CustomerID      string
	Name            string
	Description     string
	SuccessCriteria string
	StartDate       time.Time
	EndDate         time.Time
	IsActive        bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// TrainingDay is a single scheduled session inside a plan.
type TrainingDay struct {
	ID                string
	PlanID            string
	Date              time.Time // civil date, UTC midnight
	TrainingType      string
	Zone              string
	Terrain           string
	DistanceKm        *float64
	WorkoutDetails    string
	DayOrder          int
	MatchedActivityID *string
}

// IsClaimed reports whether an activity already holds the day.
func (d TrainingDay) IsClaimed() bool {
	return d.MatchedActivityID != nil
}

// CivilDate truncates t to its UTC calendar date.
func CivilDate(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// SameCivilDate compares the UTC calendar dates of a and b.
func SameCivilDate(a, b time.Time) bool {
	return CivilDate(a).Equal(CivilDate(b))
}

// TrainingPlanLookup is the read and claim surface the matcher depends on.
//
// Plans come back ordered by (start date, id) and days by (date, day order, id); the matcher
// takes the first eligible day in that order.
type TrainingPlanLookup interface {
	ListPlansByCustomer(ctx context.Context, customerID string) ([]TrainingPlan, error)
	ListDaysByPlan(ctx context.Context, planID string) ([]TrainingDay, error)
	// ClaimTrainingDay sets the day's matched activity only if it is currently empty.
	ClaimTrainingDay(ctx context.Context, dayID, activityID string) (bool, error)
	// ReleaseTrainingDay clears the day's matched activity if activityID holds it.
	ReleaseTrainingDay(ctx context.Context, dayID, activityID string) error
}

// TrainingPlanRepository adds the write side used by coaches.
type TrainingPlanRepository interface {
	TrainingPlanLookup
	CreatePlan(ctx context.Context, plan TrainingPlan) error
	GetPlan(ctx context.Context, planID string) (*TrainingPlan, error)
	CreateDay(ctx context.Context, day TrainingDay) error
	GetDay(ctx context.Context, dayID string) (*TrainingDay, error)
	GetPlanByDayID(ctx context.Context, dayID string) (*TrainingPlan, error)
	UpdateDay(ctx context.Context, day TrainingDay) error
	DeleteDay(ctx context.Context, dayID string) error
}
