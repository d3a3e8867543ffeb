package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicore/scheduler-api/internal/model"
)

func workingWeek() map[int]*model.WeeklySchedule {
	weekly := make(map[int]*model.WeeklySchedule)
	for wd := 0; wd <= 6; wd++ {
		row := &model.WeeklySchedule{Weekday: wd, Morning: true, Evening: true}
		row.Normalize()
		weekly[wd] = row
	}
	return weekly
}

func testSnapshot() *Snapshot {
	return &Snapshot{
		Weekly: workingWeek(),
		Timing: model.DefaultShiftTimingConfig(),
	}
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestResolveWorkingDay(t *testing.T) {
	snap := testSnapshot()

	day := snap.Resolve(date(2025, time.March, 3)) // Monday
	require.False(t, day.IsOff)
	require.Len(t, day.Windows, 2)

	assert.Equal(t, model.ShiftMorning, day.Windows[0].Period)
	assert.Equal(t, model.ClockMinutes(6*60), day.Windows[0].Start)
	assert.Equal(t, model.ClockMinutes(14*60), day.Windows[0].End)
	assert.Equal(t, model.ShiftEvening, day.Windows[1].Period)
}

func TestResolveNotScheduledDay(t *testing.T) {
	snap := testSnapshot()
	off := &model.WeeklySchedule{Weekday: 0}
	off.Normalize()
	snap.Weekly[0] = off

	day := snap.Resolve(date(2025, time.March, 2)) // Sunday
	assert.True(t, day.IsOff)
	assert.Equal(t, "not scheduled", day.Reason)
	assert.Empty(t, day.Windows)
}

func TestResolveHolidayBeatsEverything(t *testing.T) {
	snap := testSnapshot()
	snap.Holidays = []*model.HolidayOverride{{Month: 1, Day: 1, Name: "New Year"}}
	reason := "vacation"
	snap.TimeOff = []*model.TimeOff{{
		StartDate: date(2025, time.January, 1),
		EndDate:   date(2025, time.January, 5),
		Reason:    &reason,
		Status:    model.TimeOffStatusActive,
	}}

	day := snap.Resolve(date(2025, time.January, 1))
	require.True(t, day.IsOff)
	assert.Equal(t, "holiday: New Year", day.Reason)

	// The next covered day falls back to the time-off reason.
	day = snap.Resolve(date(2025, time.January, 2))
	require.True(t, day.IsOff)
	assert.Equal(t, "vacation", day.Reason)
}

func TestResolveHolidayRecursYearly(t *testing.T) {
	snap := testSnapshot()
	snap.Holidays = []*model.HolidayOverride{{Month: 12, Day: 25, Name: "Christmas"}}

	assert.True(t, snap.Resolve(date(2025, time.December, 25)).IsOff)
	assert.True(t, snap.Resolve(date(2026, time.December, 25)).IsOff)
	assert.False(t, snap.Resolve(date(2025, time.December, 24)).IsOff)
}

func TestResolveTimeOffBoundsInclusive(t *testing.T) {
	snap := testSnapshot()
	snap.TimeOff = []*model.TimeOff{{
		StartDate: date(2025, time.June, 10),
		EndDate:   date(2025, time.June, 12),
		Status:    model.TimeOffStatusActive,
	}}

	assert.False(t, snap.Resolve(date(2025, time.June, 9)).IsOff)
	assert.True(t, snap.Resolve(date(2025, time.June, 10)).IsOff)
	assert.True(t, snap.Resolve(date(2025, time.June, 12)).IsOff)
	assert.False(t, snap.Resolve(date(2025, time.June, 13)).IsOff)
}

func TestResolveCancelledTimeOffIgnored(t *testing.T) {
	snap := testSnapshot()
	snap.TimeOff = []*model.TimeOff{{
		StartDate: date(2025, time.June, 10),
		EndDate:   date(2025, time.June, 12),
		Status:    model.TimeOffStatusCancelled,
	}}

	assert.False(t, snap.Resolve(date(2025, time.June, 11)).IsOff)
}

func TestResolveNonContiguousShifts(t *testing.T) {
	snap := testSnapshot()
	row := &model.WeeklySchedule{Weekday: 1, Morning: true, Night: true}
	row.Normalize()
	snap.Weekly[1] = row

	day := snap.Resolve(date(2025, time.March, 3)) // Monday
	require.Len(t, day.Windows, 2)
	assert.Equal(t, model.ShiftMorning, day.Windows[0].Period)
	assert.Equal(t, model.ShiftNight, day.Windows[1].Period)
	// Disjoint windows: the gap between 14:00 and 22:00 stays empty.
	assert.Less(t, day.Windows[0].End, day.Windows[1].Start)
}

func TestResolveNightWindowWrapsPastMidnight(t *testing.T) {
	snap := testSnapshot()
	row := &model.WeeklySchedule{Weekday: 5, Night: true}
	row.Normalize()
	snap.Weekly[5] = row

	day := snap.Resolve(date(2025, time.March, 7)) // Friday
	require.False(t, day.IsOff)
	require.Len(t, day.Windows, 1)

	window := day.Windows[0]
	assert.Equal(t, model.ClockMinutes(22*60), window.Start)
	assert.Equal(t, model.ClockMinutes(30*60), window.End)
	assert.Equal(t, "30:00", window.End.String())
}

func TestResolveRangeCoversInclusiveBounds(t *testing.T) {
	snap := testSnapshot()
	days := snap.ResolveRange(date(2025, time.March, 3), date(2025, time.March, 9))
	require.Len(t, days, 7)
	assert.Equal(t, date(2025, time.March, 3), days[0].Date)
	assert.Equal(t, date(2025, time.March, 9), days[6].Date)
}

func TestNormalizeDerivesIsWorking(t *testing.T) {
	row := &model.WeeklySchedule{Weekday: 2, Evening: true}
	row.Normalize()
	assert.True(t, row.IsWorking)

	row.Evening = false
	row.Normalize()
	assert.False(t, row.IsWorking)
}
