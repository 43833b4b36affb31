package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestConnectionNeedsRefreshBoundaries(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		name    string
		expires time.Time
		want    bool
	}{
		{"well ahead", now.Add(2 * time.Hour), false},
		{"exactly at buffer", now.Add(DefaultRefreshBuffer), true},
		{"one second past buffer", now.Add(DefaultRefreshBuffer + time.Second), false},
		{"already expired", now.Add(-time.Minute), true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			conn := StravaConnection{ExpiresAt: tc.expires}
			require.Equal(t, tc.want, conn.NeedsRefresh(now, DefaultRefreshBuffer))
		})
	}
}

func TestConnectionIsExpired(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	require.True(t, StravaConnection{ExpiresAt: now}.IsExpired(now))
	require.False(t, StravaConnection{ExpiresAt: now.Add(time.Second)}.IsExpired(now))
}

func TestActivityMatchTransitionsKeepInvariant(t *testing.T) {
	a := Activity{
		CustomerID:  "c1",
		ExternalID:  42,
		StartDate:   time.Now(),
		MatchStatus: MatchStatusUnmatched,
	}
	require.NoError(t, a.Validate())

	a.MatchTo("day-1")
	require.True(t, a.IsMatched())
	require.NoError(t, a.Validate())

	a.Ignore()
	require.Nil(t, a.TrainingDayID)
	require.Equal(t, MatchStatusIgnored, a.MatchStatus)
	require.NoError(t, a.Validate())

	a.Unmatch()
	require.Equal(t, MatchStatusUnmatched, a.MatchStatus)

	a.MatchStatus = MatchStatusMatched
	require.ErrorIs(t, a.Validate(), ErrValidationFailed)
}

func TestActivityPace(t *testing.T) {
	a := Activity{Distance: 10000, MovingTime: 3000}
	pace := a.PaceMinPerKm()
	require.NotNil(t, pace)
	require.InDelta(t, 5.0, *pace, 1e-9)

	require.Nil(t, Activity{Distance: 0, MovingTime: 3000}.PaceMinPerKm())
}

func TestNotFoundErrorsShareParent(t *testing.T) {
	for _, err := range []error{ErrCustomerNotFound, ErrActivityNotFound, ErrConnectionNotFound, ErrTrainingDayNotFound} {
		require.True(t, errors.Is(err, ErrNotFound), err.Error())
	}
	require.False(t, errors.Is(ErrCustomerNotFound, ErrActivityNotFound))
}

func TestPrincipalAccess(t *testing.T) {
	coach := "coach-1"
	customer := Customer{ID: "cust-1", CoachID: &coach}

	require.True(t, Principal{ID: "cust-1", Role: RoleCustomer}.CanAccessCustomer(customer))
	require.False(t, Principal{ID: "cust-2", Role: RoleCustomer}.CanAccessCustomer(customer))
	require.True(t, Principal{ID: "coach-1", Role: RoleCoach}.CanAccessCustomer(customer))
	require.False(t, Principal{ID: "coach-2", Role: RoleCoach}.CanAccessCustomer(customer))
	require.True(t, Principal{ID: "root", Role: RoleAdmin}.CanAccessCustomer(customer))
}

func TestSameCivilDateUsesUTC(t *testing.T) {
	loc := time.FixedZone("UTC-5", -5*3600)
	late := time.Date(2024, 3, 9, 22, 0, 0, 0, loc) // 2024-03-10 03:00 UTC
	require.True(t, SameCivilDate(late, time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)))
}
