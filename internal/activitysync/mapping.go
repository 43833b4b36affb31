package activitysync

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jpvieirapereira/running-club-backend/internal/domain"
)

const (
	defaultActivityName = "Untitled"
	defaultActivityType = "Run"
	primaryPhotoSize    = "600"
)

// stravaActivity is the subset of the Strava activity representation we keep.
type stravaActivity struct {
	ID                 *int64            `json:"id"`
	Name               *string           `json:"name"`
	Type               *string           `json:"type"`
	SportType          *string           `json:"sport_type"`
	StartDate          *string           `json:"start_date"`
	Distance           *float64          `json:"distance"`
	MovingTime         *int              `json:"moving_time"`
	ElapsedTime        *int              `json:"elapsed_time"`
	TotalElevationGain *float64          `json:"total_elevation_gain"`
	AverageSpeed       *float64          `json:"average_speed"`
	MaxSpeed           *float64          `json:"max_speed"`
	AverageHeartrate   *float64          `json:"average_heartrate"`
	MaxHeartrate       *float64          `json:"max_heartrate"`
	Calories           *float64          `json:"calories"`
	SufferScore        *float64          `json:"suffer_score"`
	HeartrateZones     json.RawMessage   `json:"heartrate_zones"`
	SplitsMetric       []json.RawMessage `json:"splits_metric"`
	Laps               []json.RawMessage `json:"laps"`
	KudosCount         *int              `json:"kudos_count"`
	CommentCount       *int              `json:"comment_count"`
	AchievementCount   *int              `json:"achievement_count"`
	Photos             *struct {
		Primary *struct {
			URLs map[string]string `json:"urls"`
		} `json:"primary"`
	} `json:"photos"`
	Map *struct {
		SummaryPolyline *string `json:"summary_polyline"`
	} `json:"map"`
}

// MapActivity converts one raw Strava activity into a domain activity owned by customerID.
// The result is unmatched and carries no ID; malformed payloads fail with
// domain.ErrValidationFailed.
func MapActivity(raw json.RawMessage, customerID string) (domain.Activity, error) {
	var p stravaActivity
	if err := json.Unmarshal(raw, &p); err != nil {
		return domain.Activity{}, fmt.Errorf("%w: decode activity: %v", domain.ErrValidationFailed, err)
	}
	if p.ID == nil || *p.ID <= 0 {
		return domain.Activity{}, fmt.Errorf("%w: activity id missing", domain.ErrValidationFailed)
	}
	if p.StartDate == nil {
		return domain.Activity{}, fmt.Errorf("%w: activity %d has no start_date", domain.ErrValidationFailed, *p.ID)
	}
	start, err := time.Parse(time.RFC3339, *p.StartDate)
	if err != nil {
		return domain.Activity{}, fmt.Errorf("%w: activity %d start_date: %v", domain.ErrValidationFailed, *p.ID, err)
	}

	a := domain.Activity{
		CustomerID:         customerID,
		ExternalID:         *p.ID,
		Name:               stringOr(p.Name, defaultActivityName),
		ActivityType:       stringOr(p.Type, stringOr(p.SportType, defaultActivityType)),
		StartDate:          start.UTC(),
		Distance:           valueOr(p.Distance, 0),
		MovingTime:         valueOr(p.MovingTime, 0),
		ElapsedTime:        valueOr(p.ElapsedTime, 0),
		TotalElevationGain: p.TotalElevationGain,
		AverageSpeed:       p.AverageSpeed,
		MaxSpeed:           p.MaxSpeed,
		AverageHeartrate:   p.AverageHeartrate,
		MaxHeartrate:       p.MaxHeartrate,
		Calories:           p.Calories,
		SufferScore:        p.SufferScore,
		HeartrateZones:     nonNull(p.HeartrateZones),
		Splits:             p.SplitsMetric,
		Laps:               p.Laps,
		KudosCount:         valueOr(p.KudosCount, 0),
		CommentCount:       valueOr(p.CommentCount, 0),
		AchievementCount:   valueOr(p.AchievementCount, 0),
		MatchStatus:        domain.MatchStatusUnmatched,
	}
	if p.Photos != nil && p.Photos.Primary != nil {
		if u := p.Photos.Primary.URLs[primaryPhotoSize]; u != "" {
			a.Photos = []string{u}
		}
	}
	if p.Map != nil && p.Map.SummaryPolyline != nil && *p.Map.SummaryPolyline != "" {
		a.MapPolyline = p.Map.SummaryPolyline
	}

	if err := a.Validate(); err != nil {
		return domain.Activity{}, err
	}
	return a, nil
}

func stringOr(v *string, fallback string) string {
	if v == nil || *v == "" {
		return fallback
	}
	return *v
}

func valueOr[T any](v *T, fallback T) T {
	if v == nil {
		return fallback
	}
	return *v
}

func nonNull(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil
	}
	return raw
}
