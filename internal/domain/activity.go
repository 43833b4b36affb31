package domain

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// MatchStatus tracks whether an activity is linked to a training day.
type MatchStatus string

const (
	MatchStatusMatched   MatchStatus = "matched"
	MatchStatusUnmatched MatchStatus = "unmatched"
	MatchStatusIgnored   MatchStatus = "ignored"
)

// Valid reports whether s is a known status.
func (s MatchStatus) Valid() bool {
	switch s {
	case MatchStatusMatched, MatchStatusUnmatched, MatchStatusIgnored:
		return true
	}
	return false
}

// Activity is a workout imported from Strava and owned by one customer.
//
// MatchStatus and TrainingDayID move together: the only way to change either is through
// MatchTo, Unmatch and Ignore.
type Activity struct {
	ID           string
	CustomerID   string
	ExternalID   int64
	Name         string
	ActivityType string
	StartDate    time.Time
	Distance     float64 // meters
	MovingTime   int     // seconds
	ElapsedTime  int     // seconds

	TotalElevationGain *float64
	AverageSpeed       *float64
	MaxSpeed           *float64
	AverageHeartrate   *float64
	MaxHeartrate       *float64
	Calories           *float64
	SufferScore        *float64
	HeartrateZones     json.RawMessage
	Splits             []json.RawMessage
	Laps               []json.RawMessage

	KudosCount       int
	CommentCount     int
	AchievementCount int
	Photos           []string
	MapPolyline      *string

	TrainingDayID *string
	MatchStatus   MatchStatus

	CreatedAt time.Time
	UpdatedAt time.Time
}

// MatchTo links the activity to a training day.
func (a *Activity) MatchTo(trainingDayID string) {
	id := trainingDayID
	a.TrainingDayID = &id
	a.MatchStatus = MatchStatusMatched
}

// Unmatch clears the training day link.
func (a *Activity) Unmatch() {
	a.TrainingDayID = nil
	a.MatchStatus = MatchStatusUnmatched
}

// Ignore excludes the activity from automatic matching.
func (a *Activity) Ignore() {
	a.TrainingDayID = nil
	a.MatchStatus = MatchStatusIgnored
}

// IsMatched reports whether the activity holds a training day.
func (a Activity) IsMatched() bool {
	return a.MatchStatus == MatchStatusMatched && a.TrainingDayID != nil
}

// PaceMinPerKm returns moving minutes per kilometer, or nil when distance or time is zero.
func (a Activity) PaceMinPerKm() *float64 {
	if a.Distance <= 0 || a.MovingTime <= 0 {
		return nil
	}
	pace := (float64(a.MovingTime) / 60) / (a.Distance / 1000)
	return &pace
}

// Validate checks the invariants repositories rely on.
func (a Activity) Validate() error {
	switch {
	case a.CustomerID == "":
		return fmt.Errorf("%w: customer id is required", ErrValidationFailed)
	case a.ExternalID <= 0:
		return fmt.Errorf("%w: external id must be positive", ErrValidationFailed)
	case a.StartDate.IsZero():
		return fmt.Errorf("%w: start date is required", ErrValidationFailed)
	case a.Distance < 0:
		return fmt.Errorf("%w: distance must not be negative", ErrValidationFailed)
	case a.MovingTime < 0 || a.ElapsedTime < 0:
		return fmt.Errorf("%w: durations must not be negative", ErrValidationFailed)
	case a.MovingTime > 0 && a.ElapsedTime > 0 && a.MovingTime > a.ElapsedTime:
		return fmt.Errorf("%w: moving time exceeds elapsed time", ErrValidationFailed)
	case !a.MatchStatus.Valid():
		return fmt.Errorf("%w: unknown match status %q", ErrValidationFailed, a.MatchStatus)
	case (a.MatchStatus == MatchStatusMatched) != (a.TrainingDayID != nil):
		return fmt.Errorf("%w: match status %s inconsistent with training day", ErrValidationFailed, a.MatchStatus)
	}
	return nil
}

// Cursor models the pagination token.
type Cursor struct {
	StartDate time.Time
	ID        string
}

// ActivityFilter narrows customer activity listings. Zero values mean no restriction.
type ActivityFilter struct {
	From        *time.Time
	To          *time.Time
	MatchStatus MatchStatus
	Cursor      *Cursor
	Limit       int
}

// ActivityRepository captures persistence operations. Lookups return nil, nil on a miss.
type ActivityRepository interface {
	Create(ctx context.Context, activity Activity) error
	Update(ctx context.Context, activity Activity) error
	Get(ctx context.Context, activityID string) (*Activity, error)
	GetByExternalID(ctx context.Context, customerID string, externalID int64) (*Activity, error)
	ListByCustomer(ctx context.Context, customerID string, filter ActivityFilter) ([]Activity, *Cursor, error)
	ListByDateRange(ctx context.Context, customerID string, from, to time.Time) ([]Activity, error)
	ListUnmatched(ctx context.Context, customerID string) ([]Activity, error)
	Delete(ctx context.Context, activityID string) error
}
