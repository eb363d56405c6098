package schedule_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/briefkit/pkg/schedule"
)

func TestSpecValidate(t *testing.T) {
	t.Parallel()

	t.Run("valid daily", func(t *testing.T) {
		t.Parallel()

		spec := schedule.Spec{Timezone: "Europe/Berlin", Cadence: schedule.CadenceDaily, Hour: 7, Minute: 30}
		require.NoError(t, spec.Validate())
	})

	t.Run("valid weekly", func(t *testing.T) {
		t.Parallel()

		spec := schedule.Spec{Cadence: schedule.CadenceWeekly, Hour: 0, Minute: 0, Weekday: time.Friday}
		require.NoError(t, spec.Validate())
	})

	t.Run("unknown cadence", func(t *testing.T) {
		t.Parallel()

		spec := schedule.Spec{Cadence: "monthly", Hour: 7}
		assert.ErrorIs(t, spec.Validate(), schedule.ErrInvalidCadence)
	})

	t.Run("hour out of range", func(t *testing.T) {
		t.Parallel()

		spec := schedule.Spec{Cadence: schedule.CadenceDaily, Hour: 24}
		assert.ErrorIs(t, spec.Validate(), schedule.ErrInvalidTimeOfDay)
	})

	t.Run("minute out of range", func(t *testing.T) {
		t.Parallel()

		spec := schedule.Spec{Cadence: schedule.CadenceDaily, Hour: 7, Minute: 60}
		assert.ErrorIs(t, spec.Validate(), schedule.ErrInvalidTimeOfDay)
	})

	t.Run("weekday out of range", func(t *testing.T) {
		t.Parallel()

		spec := schedule.Spec{Cadence: schedule.CadenceWeekly, Hour: 7, Weekday: 7}
		assert.ErrorIs(t, spec.Validate(), schedule.ErrInvalidWeekday)
	})
}

func TestSpecString(t *testing.T) {
	t.Parallel()

	daily := schedule.Spec{Timezone: "UTC", Cadence: schedule.CadenceDaily, Hour: 7, Minute: 5}
	assert.Equal(t, "daily at 07:05 (UTC)", daily.String())

	weekly := schedule.Spec{Timezone: "Europe/Berlin", Cadence: schedule.CadenceWeekly, Hour: 9, Minute: 0, Weekday: time.Monday}
	assert.Equal(t, "weekly on Monday at 09:00 (Europe/Berlin)", weekly.String())
}
