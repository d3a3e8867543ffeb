package schedule

import (
	"fmt"
	"time"

	"github.com/clinicore/scheduler-api/internal/model"
)

// Snapshot is everything resolution needs for one doctor, loaded once
// and applied to any number of dates.
type Snapshot struct {
	Weekly   map[int]*model.WeeklySchedule
	Timing   *model.ShiftTimingConfig
	TimeOff  []*model.TimeOff
	Holidays []*model.HolidayOverride
}

// Resolve computes the doctor's availability for a single calendar date.
// Precedence: holiday override, then time off, then the weekly pattern.
func (s *Snapshot) Resolve(date time.Time) *model.ResolvedDay {
	day := &model.ResolvedDay{Date: date}

	for _, h := range s.Holidays {
		if h.Matches(date) {
			day.IsOff = true
			day.Reason = fmt.Sprintf("holiday: %s", h.Name)
			return day
		}
	}

	for _, t := range s.TimeOff {
		if t.Status == model.TimeOffStatusActive && t.Covers(date) {
			day.IsOff = true
			day.Reason = "time off"
			if t.Reason != nil && *t.Reason != "" {
				day.Reason = *t.Reason
			}
			return day
		}
	}

	weekly, ok := s.Weekly[int(date.Weekday())]
	if !ok || !weekly.IsWorking {
		day.IsOff = true
		day.Reason = "not scheduled"
		return day
	}

	// Enabled periods may be non-contiguous; each yields its own window.
	for _, period := range weekly.ActivePeriods() {
		day.Windows = append(day.Windows, s.Timing.Window(period))
	}
	if len(day.Windows) == 0 {
		day.IsOff = true
		day.Reason = "not scheduled"
	}
	return day
}

// ResolveRange resolves every date in [from, to] inclusive.
func (s *Snapshot) ResolveRange(from, to time.Time) []*model.ResolvedDay {
	var days []*model.ResolvedDay
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		days = append(days, s.Resolve(d))
	}
	return days
}
