// Package events defines shared cross-service event payloads.
package events

import "time"

// ActivitySynced is emitted when a Strava activity is imported for the first time.
type ActivitySynced struct {
	ActivityID   string    `json:"activity_id"`
	CustomerID   string    `json:"customer_id"`
	ExternalID   int64     `json:"external_id"`
	ActivityType string    `json:"activity_type"`
	StartDate    time.Time `json:"start_date"`
	DistanceM    float64   `json:"distance_m"`
	MovingTimeS  int       `json:"moving_time_s"`
	Source       string    `json:"source"`
}

// ActivityUpdated tracks detail refreshes and match transitions of an imported activity.
type ActivityUpdated struct {
	ActivityID    string    `json:"activity_id"`
	CustomerID    string    `json:"customer_id"`
	ExternalID    int64     `json:"external_id"`
	MatchStatus   string    `json:"match_status"`
	TrainingDayID *string   `json:"training_day_id,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}
