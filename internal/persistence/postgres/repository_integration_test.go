//go:build integration

package postgres

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/jpvieirapereira/running-club-backend/internal/domain"
	"github.com/jpvieirapereira/running-club-backend/internal/testsupport"
)

func TestRepositoriesRoundTrip(t *testing.T) {
	ctx := context.Background()
	pool := testsupport.StartPostgres(ctx, t)

	customers := NewCustomerRepository(pool)
	connections := NewConnectionStore(pool)
	plans := NewTrainingPlanRepository(pool)
	activities := NewActivityRepository(pool)

	coachID := "coach-" + uuid.NewString()
	customerID := "cust-" + uuid.NewString()
	athleteID := int64(4242)
	require.NoError(t, customers.Save(ctx, domain.Customer{ID: customerID, CoachID: &coachID, Name: "Ana", StravaAthleteID: &athleteID}))

	require.NoError(t, connections.Save(ctx, domain.StravaConnection{
		CustomerID:   customerID,
		AthleteID:    athleteID,
		AccessToken:  "at",
		RefreshToken: "rt",
		ExpiresAt:    time.Now().Add(6 * time.Hour).UTC().Truncate(time.Second),
		Scope:        "read,activity:read",
		ConnectedAt:  time.Now().UTC().Truncate(time.Second),
	}))
	byAthlete, err := connections.GetByAthleteID(ctx, athleteID)
	require.NoError(t, err)
	require.NotNil(t, byAthlete)
	require.Equal(t, customerID, byAthlete.CustomerID)

	planID := uuid.NewString()
	day := time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)
	require.NoError(t, plans.CreatePlan(ctx, domain.TrainingPlan{
		ID: planID, CoachID: coachID, CustomerID: customerID, Name: "Base", StartDate: day, EndDate: day.AddDate(0, 1, 0), IsActive: true,
	}))
	dayID := uuid.NewString()
	require.NoError(t, plans.CreateDay(ctx, domain.TrainingDay{ID: dayID, PlanID: planID, Date: day, TrainingType: "easy"}))

	owner, err := plans.GetPlanByDayID(ctx, dayID)
	require.NoError(t, err)
	require.Equal(t, planID, owner.ID)

	elev := 12.5
	activity := domain.Activity{
		ID:                 uuid.NewString(),
		CustomerID:         customerID,
		ExternalID:         99,
		Name:               "Morning Run",
		ActivityType:       "Run",
		StartDate:          day.Add(7 * time.Hour),
		Distance:           10000,
		MovingTime:         3000,
		ElapsedTime:        3100,
		TotalElevationGain: &elev,
		Splits:             []json.RawMessage{json.RawMessage(`{"split":1}`)},
		Photos:             []string{"https://photo/600.jpg"},
		MatchStatus:        domain.MatchStatusUnmatched,
	}
	require.NoError(t, activities.Create(ctx, activity))
	require.ErrorIs(t, activities.Create(ctx, domain.Activity{
		ID: uuid.NewString(), CustomerID: customerID, ExternalID: 99, Name: "dup", ActivityType: "Run",
		StartDate: activity.StartDate, MatchStatus: domain.MatchStatusUnmatched,
	}), domain.ErrDuplicateActivity)

	claimed, err := plans.ClaimTrainingDay(ctx, dayID, activity.ID)
	require.NoError(t, err)
	require.True(t, claimed)
	again, err := plans.ClaimTrainingDay(ctx, dayID, uuid.NewString())
	require.NoError(t, err)
	require.False(t, again)

	activity.MatchTo(dayID)
	require.NoError(t, activities.Update(ctx, activity))

	stored, err := activities.GetByExternalID(ctx, customerID, 99)
	require.NoError(t, err)
	require.NotNil(t, stored)
	require.Equal(t, domain.MatchStatusMatched, stored.MatchStatus)
	require.Equal(t, dayID, *stored.TrainingDayID)
	require.InDelta(t, 12.5, *stored.TotalElevationGain, 1e-9)
	require.Len(t, stored.Splits, 1)
	require.Equal(t, []string{"https://photo/600.jpg"}, stored.Photos)

	unmatched, err := activities.ListUnmatched(ctx, customerID)
	require.NoError(t, err)
	require.Empty(t, unmatched)

	var outboxRows int
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM outbox WHERE aggregate_id=$1`, activity.ID).Scan(&outboxRows))
	require.Equal(t, 2, outboxRows)

	page, cursor, err := activities.ListByCustomer(ctx, customerID, domain.ActivityFilter{Limit: 10, MatchStatus: domain.MatchStatusMatched})
	require.NoError(t, err)
	require.Len(t, page, 1)
	require.Nil(t, cursor)
}
