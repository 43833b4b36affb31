package activitysync

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jpvieirapereira/running-club-backend/internal/domain"
)

var (
	owner    = domain.Principal{ID: "cust-1", Role: domain.RoleCustomer}
	theCoach = domain.Principal{ID: "coach-1", Role: domain.RoleCoach}
	stranger = domain.Principal{ID: "cust-9", Role: domain.RoleCustomer}
)

func TestListActivitiesAuthorization(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.storeActivity(t, domain.Activity{ExternalID: 1, StartDate: date(2024, 3, 10)})

	for _, p := range []domain.Principal{owner, theCoach, {ID: "root", Role: domain.RoleAdmin}} {
		items, _, err := f.engine.ListActivities(ctx, p, "cust-1", domain.ActivityFilter{})
		require.NoError(t, err)
		require.Len(t, items, 1)
	}

	_, _, err := f.engine.ListActivities(ctx, stranger, "cust-1", domain.ActivityFilter{})
	require.ErrorIs(t, err, domain.ErrForbidden)

	_, _, err = f.engine.ListActivities(ctx, owner, "missing", domain.ActivityFilter{})
	require.ErrorIs(t, err, domain.ErrCustomerNotFound)
}

func TestListActivitiesValidatesFilter(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	from := date(2024, 3, 10)
	to := from.Add(-time.Hour)

	cases := map[string]domain.ActivityFilter{
		"limit too big":  {Limit: MaxListLimit + 1},
		"negative limit": {Limit: -1},
		"bad status":     {MatchStatus: "pending"},
		"inverted range": {From: &from, To: &to},
	}
	for name, filter := range cases {
		t.Run(name, func(t *testing.T) {
			_, _, err := f.engine.ListActivities(ctx, owner, "cust-1", filter)
			require.ErrorIs(t, err, domain.ErrValidationFailed)
		})
	}
}

func TestActivitiesBetween(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.storeActivity(t, domain.Activity{ID: "a-3", ExternalID: 3, StartDate: date(2024, 3, 12).Add(7 * time.Hour)})
	f.storeActivity(t, domain.Activity{ID: "a-1", ExternalID: 1, StartDate: date(2024, 3, 10).Add(7 * time.Hour)})
	f.storeActivity(t, domain.Activity{ID: "a-9", ExternalID: 9, StartDate: date(2024, 4, 20)})

	items, err := f.engine.ActivitiesBetween(ctx, theCoach, "cust-1", date(2024, 3, 1), date(2024, 3, 31))
	require.NoError(t, err)
	require.Len(t, items, 2)
	require.Equal(t, int64(1), items[0].ExternalID)
	require.Equal(t, int64(3), items[1].ExternalID)

	_, err = f.engine.ActivitiesBetween(ctx, stranger, "cust-1", date(2024, 3, 1), date(2024, 3, 31))
	require.ErrorIs(t, err, domain.ErrForbidden)

	_, err = f.engine.ActivitiesBetween(ctx, owner, "cust-1", date(2024, 3, 31), date(2024, 3, 1))
	require.ErrorIs(t, err, domain.ErrValidationFailed)

	_, err = f.engine.ActivitiesBetween(ctx, owner, "cust-1", date(2024, 1, 1), date(2024, 6, 1))
	require.ErrorIs(t, err, domain.ErrValidationFailed)
}

func TestGetActivity(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	a := f.storeActivity(t, domain.Activity{ExternalID: 1, StartDate: date(2024, 3, 10)})

	got, err := f.engine.GetActivity(ctx, theCoach, a.ID)
	require.NoError(t, err)
	require.Equal(t, a.ID, got.ID)

	_, err = f.engine.GetActivity(ctx, stranger, a.ID)
	require.ErrorIs(t, err, domain.ErrForbidden)

	_, err = f.engine.GetActivity(ctx, owner, "missing")
	require.ErrorIs(t, err, domain.ErrActivityNotFound)
}

func TestIgnoreActivityFreesDay(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.addPlan(t, "plan-a", date(2024, 3, 1), day("d", date(2024, 3, 10), 0))
	a := f.storeActivity(t, domain.Activity{ExternalID: 1, StartDate: date(2024, 3, 10).Add(8 * time.Hour)})
	_, err := f.engine.matcher.MatchUnmatched(ctx, "cust-1")
	require.NoError(t, err)

	ignored, err := f.engine.IgnoreActivity(ctx, owner, a.ID)
	require.NoError(t, err)
	require.Equal(t, domain.MatchStatusIgnored, ignored.MatchStatus)

	d, _ := f.plans.GetDay(ctx, "d")
	require.False(t, d.IsClaimed())

	matched, err := f.engine.matcher.MatchUnmatched(ctx, "cust-1")
	require.NoError(t, err)
	require.Zero(t, matched)

	unmatched, err := f.engine.UnmatchActivity(ctx, owner, a.ID)
	require.NoError(t, err)
	require.Equal(t, domain.MatchStatusUnmatched, unmatched.MatchStatus)
}

func TestDeleteActivity(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.addPlan(t, "plan-a", date(2024, 3, 1), day("d", date(2024, 3, 10), 0))
	a := f.storeActivity(t, domain.Activity{ExternalID: 1, StartDate: date(2024, 3, 10).Add(8 * time.Hour)})
	_, err := f.engine.matcher.MatchUnmatched(ctx, "cust-1")
	require.NoError(t, err)

	err = f.engine.DeleteActivity(ctx, theCoach, a.ID)
	require.ErrorIs(t, err, domain.ErrForbidden)

	require.NoError(t, f.engine.DeleteActivity(ctx, owner, a.ID))
	got, err := f.activities.Get(ctx, a.ID)
	require.NoError(t, err)
	require.Nil(t, got)

	d, _ := f.plans.GetDay(ctx, "d")
	require.False(t, d.IsClaimed())
}
