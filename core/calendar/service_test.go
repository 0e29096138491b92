package calendar_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkabenga/presencia/core"
	"github.com/mkabenga/presencia/core/calendar"
	inmemdb "github.com/mkabenga/presencia/storage/database/inmem"
)

var ctx = context.Background()

func newService(t *testing.T) *calendar.Service {
	t.Helper()
	return calendar.NewService(inmemdb.NewCalendarRepository(inmemdb.NewDB()))
}

func createDay(t *testing.T, svc *calendar.Service, date string, kind calendar.Kind, affects *bool) calendar.SpecialDay {
	t.Helper()
	nd := calendar.NewSpecialDay{Date: date, Kind: kind, Description: "some day", AffectsAttendance: affects}
	require.NoError(t, nd.Validate(core.Validate))
	d, err := svc.Create(ctx, nd, uuid.NewString())
	require.NoError(t, err)
	return d
}

func boolPtr(v bool) *bool { return &v }

func TestService_Create(t *testing.T) {
	svc := newService(t)

	d := createDay(t, svc, "2025-08-06", calendar.KindHoliday, nil)
	assert.Equal(t, time.Date(2025, 8, 6, 0, 0, 0, 0, time.UTC), d.Date)
	assert.True(t, d.AffectsAttendance, "affects attendance by default")

	t.Run("duplicate date", func(t *testing.T) {
		nd := calendar.NewSpecialDay{Date: "2025-08-06", Kind: calendar.KindNoClasses, Description: "again"}
		require.NoError(t, nd.Validate(core.Validate))
		_, err := svc.Create(ctx, nd, uuid.NewString())
		var vErr *core.ValidationError
		assert.ErrorAs(t, err, &vErr)
	})

	t.Run("invalid payload", func(t *testing.T) {
		nd := calendar.NewSpecialDay{Date: "06/08/2025", Kind: "LOL", Description: ""}
		assert.Error(t, nd.Validate(core.Validate))
	})
}

func TestService_CheckDate(t *testing.T) {
	svc := newService(t)

	createDay(t, svc, "2025-08-06", calendar.KindHoliday, nil)
	createDay(t, svc, "2025-08-07", calendar.KindNoClasses, boolPtr(false))

	t.Run("affecting day blocks", func(t *testing.T) {
		err := svc.CheckDate(ctx, time.Date(2025, 8, 6, 15, 4, 5, 0, time.UTC))
		var blocked *calendar.BlockedError
		require.ErrorAs(t, err, &blocked)
		assert.Equal(t, calendar.KindHoliday, blocked.Kind)
	})

	t.Run("non-affecting day passes", func(t *testing.T) {
		assert.NoError(t, svc.CheckDate(ctx, time.Date(2025, 8, 7, 9, 0, 0, 0, time.UTC)))
	})

	t.Run("ordinary day passes", func(t *testing.T) {
		assert.NoError(t, svc.CheckDate(ctx, time.Date(2025, 8, 8, 9, 0, 0, 0, time.UTC)))
	})

	ok, err := svc.IsSpecialDay(ctx, time.Date(2025, 8, 6, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.IsSpecialDay(ctx, time.Date(2025, 8, 7, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestService_SpecialDaysInRange(t *testing.T) {
	svc := newService(t)

	createDay(t, svc, "2025-08-06", calendar.KindHoliday, nil)
	createDay(t, svc, "2025-08-20", calendar.KindSuspended, nil)
	createDay(t, svc, "2025-09-01", calendar.KindHoliday, nil)
	createDay(t, svc, "2025-08-10", calendar.KindNoClasses, boolPtr(false)) // not affecting

	days, err := svc.SpecialDaysInRange(ctx,
		time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 8, 31, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, days, 2)
	assert.Equal(t, time.Date(2025, 8, 6, 0, 0, 0, 0, time.UTC), days[0].Date)
	assert.Equal(t, time.Date(2025, 8, 20, 0, 0, 0, 0, time.UTC), days[1].Date)
}

func TestService_Delete(t *testing.T) {
	svc := newService(t)
	d := createDay(t, svc, "2025-08-06", calendar.KindHoliday, nil)

	require.NoError(t, svc.Delete(ctx, d.ID))
	assert.NoError(t, svc.CheckDate(ctx, d.Date))
}
