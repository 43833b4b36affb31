package api

import (
	"encoding/json"
	"time"

	"github.com/jpvieirapereira/running-club-backend/internal/connection"
	"github.com/jpvieirapereira/running-club-backend/internal/domain"
	"github.com/jpvieirapereira/running-club-backend/internal/strava"
)

// ActivityView exposes full details about an imported activity.
type ActivityView struct {
	ID                 string            `json:"id"`
	CustomerID         string            `json:"customer_id"`
	StravaActivityID   int64             `json:"strava_activity_id"`
	Name               string            `json:"name"`
	ActivityType       string            `json:"activity_type"`
	StartDate          time.Time         `json:"start_date"`
	Distance           float64           `json:"distance"`
	MovingTime         int               `json:"moving_time"`
	ElapsedTime        int               `json:"elapsed_time"`
	PaceMinPerKm       *float64          `json:"pace_min_per_km,omitempty"`
	TotalElevationGain *float64          `json:"total_elevation_gain,omitempty"`
	AverageSpeed       *float64          `json:"average_speed,omitempty"`
	MaxSpeed           *float64          `json:"max_speed,omitempty"`
	AverageHeartrate   *float64          `json:"average_heartrate,omitempty"`
	MaxHeartrate       *float64          `json:"max_heartrate,omitempty"`
	Calories           *float64          `json:"calories,omitempty"`
	SufferScore        *float64          `json:"suffer_score,omitempty"`
	HeartrateZones     json.RawMessage   `json:"heartrate_zones,omitempty"`
	Splits             []json.RawMessage `json:"splits,omitempty"`
	Laps               []json.RawMessage `json:"laps,omitempty"`
	KudosCount         int               `json:"kudos_count"`
	CommentCount       int               `json:"comment_count"`
	AchievementCount   int               `json:"achievement_count"`
	Photos             []string          `json:"photos,omitempty"`
	MapPolyline        *string           `json:"map_polyline,omitempty"`
	TrainingDayID      *string           `json:"training_day_id"`
	MatchStatus        string            `json:"match_status"`
	CreatedAt          time.Time         `json:"created_at"`
	UpdatedAt          time.Time         `json:"updated_at"`
}

// ListActivitiesResponse packages list results.
type ListActivitiesResponse struct {
	Items      []ActivityView `json:"items"`
	NextCursor string         `json:"next_cursor,omitempty"`
}

// SyncResponse reports a bulk sync.
type SyncResponse struct {
	SyncedCount  int    `json:"synced_count"`
	MatchedCount int    `json:"matched_count"`
	ErrorCount   int    `json:"error_count"`
	Message      string `json:"message"`
}

// ConnectResponse carries the Strava consent URL.
type ConnectResponse struct {
	AuthorizationURL string `json:"authorization_url"`
	Instructions     string `json:"instructions"`
}

// ConnectionStatusView describes the caller's Strava connection.
type ConnectionStatusView struct {
	IsConnected bool       `json:"is_connected"`
	AthleteID   *int64     `json:"athlete_id"`
	Scope       string     `json:"scope,omitempty"`
	ConnectedAt *time.Time `json:"connected_at"`
	LastSyncAt  *time.Time `json:"last_sync_at"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
}

// PlanRequest is the payload for POST /v1/training-plans.
type PlanRequest struct {
	CustomerID      string `json:"customer_id"`
	Name            string `json:"name"`
	Description     string `json:"description"`
	SuccessCriteria string `json:"success_criteria"`
	StartDate       string `json:"start_date"`
	EndDate         string `json:"end_date"`
}

// DayRequest is the payload for creating or replacing a training day.
type DayRequest struct {
	Date           string   `json:"date"`
	TrainingType   string   `json:"training_type"`
	Zone           string   `json:"zone"`
	Terrain        string   `json:"terrain"`
	DistanceKm     *float64 `json:"distance_km"`
	WorkoutDetails string   `json:"workout_details"`
	DayOrder       int      `json:"day_order"`
}

// PlanView exposes a plan with its days.
type PlanView struct {
	ID              string    `json:"id"`
	CoachID         string    `json:"coach_id"`
	CustomerID      string    `json:"customer_id"`
	Name            string    `json:"name"`
	Description     string    `json:"description,omitempty"`
	SuccessCriteria string    `json:"success_criteria,omitempty"`
	StartDate       string    `json:"start_date"`
	EndDate         string    `json:"end_date"`
	IsActive        bool      `json:"is_active"`
	Days            []DayView `json:"days"`
}

// DayView exposes one training day.
type DayView struct {
	ID                string   `json:"id"`
	PlanID            string   `json:"plan_id"`
	Date              string   `json:"date"`
	TrainingType      string   `json:"training_type"`
	Zone              string   `json:"zone,omitempty"`
	Terrain           string   `json:"terrain,omitempty"`
	DistanceKm        *float64 `json:"distance_km,omitempty"`
	WorkoutDetails    string   `json:"workout_details,omitempty"`
	DayOrder          int      `json:"day_order"`
	MatchedActivityID *string  `json:"matched_activity_id"`
}

// SubscriptionView exposes a Strava push subscription.
type SubscriptionView struct {
	ID          int64  `json:"id"`
	CallbackURL string `json:"callback_url"`
}

func toActivityView(a domain.Activity) ActivityView {
	return ActivityView{
		ID:                 a.ID,
		CustomerID:         a.CustomerID,
		StravaActivityID:   a.ExternalID,
		Name:               a.Name,
		ActivityType:       a.ActivityType,
		StartDate:          a.StartDate,
		Distance:           a.Distance,
		MovingTime:         a.MovingTime,
		ElapsedTime:        a.ElapsedTime,
		PaceMinPerKm:       a.PaceMinPerKm(),
		TotalElevationGain: a.TotalElevationGain,
		AverageSpeed:       a.AverageSpeed,
		MaxSpeed:           a.MaxSpeed,
		AverageHeartrate:   a.AverageHeartrate,
		MaxHeartrate:       a.MaxHeartrate,
		Calories:           a.Calories,
		SufferScore:        a.SufferScore,
		HeartrateZones:     a.HeartrateZones,
		Splits:             a.Splits,
		Laps:               a.Laps,
		KudosCount:         a.KudosCount,
		CommentCount:       a.CommentCount,
		AchievementCount:   a.AchievementCount,
		Photos:             a.Photos,
		MapPolyline:        a.MapPolyline,
		TrainingDayID:      a.TrainingDayID,
		MatchStatus:        string(a.MatchStatus),
		CreatedAt:          a.CreatedAt,
		UpdatedAt:          a.UpdatedAt,
	}
}

func toStatusView(st connection.Status) ConnectionStatusView {
	return ConnectionStatusView{
		IsConnected: st.Connected,
		AthleteID:   st.AthleteID,
		Scope:       st.Scope,
		ConnectedAt: st.ConnectedAt,
		LastSyncAt:  st.LastSyncAt,
		ExpiresAt:   st.ExpiresAt,
	}
}

func toDayView(d domain.TrainingDay) DayView {
	return DayView{
		ID:                d.ID,
		PlanID:            d.PlanID,
		Date:              d.Date.Format(time.DateOnly),
		TrainingType:      d.TrainingType,
		Zone:              d.Zone,
		Terrain:           d.Terrain,
		DistanceKm:        d.DistanceKm,
		WorkoutDetails:    d.WorkoutDetails,
		DayOrder:          d.DayOrder,
		MatchedActivityID: d.MatchedActivityID,
	}
}

func toPlanView(p domain.TrainingPlan, days []domain.TrainingDay) PlanView {
	view := PlanView{
		ID:              p.ID,
		CoachID:         p.CoachID,
		CustomerID:      p.CustomerID,
		Name:            p.Name,
		Description:     p.Description,
		SuccessCriteria: p.SuccessCriteria,
		StartDate:       p.StartDate.Format(time.DateOnly),
		EndDate:         p.EndDate.Format(time.DateOnly),
		IsActive:        p.IsActive,
		Days:            make([]DayView, 0, len(days)),
	}
	for _, d := range days {
		view.Days = append(view.Days, toDayView(d))
	}
	return view
}

func toSubscriptionView(s strava.PushSubscription) SubscriptionView {
	return SubscriptionView{ID: s.ID, CallbackURL: s.CallbackURL}
}
