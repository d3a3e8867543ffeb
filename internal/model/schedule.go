package model

import (
	"time"

	"github.com/google/uuid"
)

type ShiftPeriod string

const (
	ShiftMorning ShiftPeriod = "morning"
	ShiftEvening ShiftPeriod = "evening"
	ShiftNight   ShiftPeriod = "night"
)

// ShiftPeriods lists the periods in generation order.
var ShiftPeriods = []ShiftPeriod{ShiftMorning, ShiftEvening, ShiftNight}

// ShiftWindow is one contiguous generation window on a single date.
// End may exceed 24:00 when the window wraps past midnight; the window
// belongs to the date it begins on.
type ShiftWindow struct {
	Period ShiftPeriod  `json:"period"`
	Start  ClockMinutes `json:"start"`
	End    ClockMinutes `json:"end"`
}

// ShiftTimingConfig holds the boundaries of the three shift windows.
// It is stored per hospital with an optional per-doctor override.
type ShiftTimingConfig struct {
	HospitalID   uuid.UUID    `db:"hospital_id" json:"hospital_id"`
	DoctorID     *uuid.UUID   `db:"doctor_id" json:"doctor_id,omitempty"`
	MorningStart ClockMinutes `db:"morning_start" json:"morning_start"`
	MorningEnd   ClockMinutes `db:"morning_end" json:"morning_end"`
	EveningStart ClockMinutes `db:"evening_start" json:"evening_start"`
	EveningEnd   ClockMinutes `db:"evening_end" json:"evening_end"`
	NightStart   ClockMinutes `db:"night_start" json:"night_start"`
	NightEnd     ClockMinutes `db:"night_end" json:"night_end"`
}

// DefaultShiftTimingConfig returns the platform defaults: morning
// 06:00-14:00, evening 14:00-22:00, night 22:00-06:00 next day.
func DefaultShiftTimingConfig() *ShiftTimingConfig {
	return &ShiftTimingConfig{
		MorningStart: 6 * 60,
		MorningEnd:   14 * 60,
		EveningStart: 14 * 60,
		EveningEnd:   22 * 60,
		NightStart:   22 * 60,
		NightEnd:     6 * 60,
	}
}

// Window returns the configured window for a period. A night window
// whose end is at or before its start is treated as wrapping into the
// next day and its end is unwrapped past 24:00.
func (c *ShiftTimingConfig) Window(p ShiftPeriod) ShiftWindow {
	var start, end ClockMinutes
	switch p {
	case ShiftMorning:
		start, end = c.MorningStart, c.MorningEnd
	case ShiftEvening:
		start, end = c.EveningStart, c.EveningEnd
	case ShiftNight:
		start, end = c.NightStart, c.NightEnd
	}
	if end <= start {
		end += MinutesPerDay
	}
	return ShiftWindow{Period: p, Start: start, End: end}
}

// WeeklySchedule is one doctor's recurring pattern for one weekday
// (0=Sunday .. 6=Saturday). The shift flags are the canonical source;
// IsWorking is derived and kept consistent by Normalize.
type WeeklySchedule struct {
	ID        uuid.UUID `db:"id" json:"id"`
	DoctorID  uuid.UUID `db:"doctor_id" json:"doctor_id"`
	Weekday   int       `db:"weekday" json:"weekday"`
	IsWorking bool      `db:"is_working" json:"is_working"`
	Morning   bool      `db:"morning" json:"morning"`
	Evening   bool      `db:"evening" json:"evening"`
	Night     bool      `db:"night" json:"night"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Normalize enforces the invariant that IsWorking is true iff at least
// one shift flag is set.
func (w *WeeklySchedule) Normalize() {
	w.IsWorking = w.Morning || w.Evening || w.Night
}

// ActivePeriods returns the enabled periods in generation order. The
// result may be non-contiguous (e.g. morning and night without evening),
// yielding disjoint generation windows for the day.
func (w *WeeklySchedule) ActivePeriods() []ShiftPeriod {
	var periods []ShiftPeriod
	if w.Morning {
		periods = append(periods, ShiftMorning)
	}
	if w.Evening {
		periods = append(periods, ShiftEvening)
	}
	if w.Night {
		periods = append(periods, ShiftNight)
	}
	return periods
}

type TimeOffStatus string

const (
	TimeOffStatusActive    TimeOffStatus = "active"
	TimeOffStatusCancelled TimeOffStatus = "cancelled"
)

// TimeOff is a doctor-specific inclusive date range with no availability.
// Ranges from distinct records may overlap; the union counts as off.
type TimeOff struct {
	ID        uuid.UUID     `db:"id" json:"id"`
	DoctorID  uuid.UUID     `db:"doctor_id" json:"doctor_id"`
	StartDate time.Time     `db:"start_date" json:"start_date"`
	EndDate   time.Time     `db:"end_date" json:"end_date"`
	Reason    *string       `db:"reason" json:"reason,omitempty"`
	Status    TimeOffStatus `db:"status" json:"status"`
	CreatedAt time.Time     `db:"created_at" json:"created_at"`
}

// Covers reports whether the given calendar date falls inside the range.
func (t *TimeOff) Covers(date time.Time) bool {
	return !date.Before(t.StartDate) && !date.After(t.EndDate)
}

// HolidayOverride suppresses slot generation hospital-wide on a
// recurring month/day regardless of doctor schedules.
type HolidayOverride struct {
	ID         uuid.UUID `db:"id" json:"id"`
	HospitalID uuid.UUID `db:"hospital_id" json:"hospital_id"`
	Month      int       `db:"month" json:"month"`
	Day        int       `db:"day" json:"day"`
	Name       string    `db:"name" json:"name"`
}

func (h *HolidayOverride) Matches(date time.Time) bool {
	return int(date.Month()) == h.Month && date.Day() == h.Day
}

// ResolvedDay is the Schedule Resolver output for one doctor and date.
type ResolvedDay struct {
	Date    time.Time     `json:"date"`
	IsOff   bool          `json:"is_off"`
	Reason  string        `json:"reason,omitempty"`
	Windows []ShiftWindow `json:"windows"`
}

// Doctor carries the profile attributes the engine needs; identity and
// account management live outside this service.
type Doctor struct {
	ID              uuid.UUID `db:"id" json:"id"`
	HospitalID      uuid.UUID `db:"hospital_id" json:"hospital_id"`
	Name            string    `db:"name" json:"name"`
	Specialty       string    `db:"specialty" json:"specialty"`
	SlotDurationMin int       `db:"slot_duration_min" json:"slot_duration_min"`
}

// Hospital provides the timezone authority for all date/time math.
type Hospital struct {
	ID       uuid.UUID `db:"id" json:"id"`
	Name     string    `db:"name" json:"name"`
	Timezone string    `db:"timezone" json:"timezone"`
}

func (h *Hospital) Location() (*time.Location, error) {
	if h.Timezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(h.Timezone)
}

// DoctorScheduleView is the GetDoctorSchedule response: the weekly rows
// plus the shift timing that maps flags to concrete windows.
type DoctorScheduleView struct {
	Schedules   []*WeeklySchedule  `json:"schedules"`
	ShiftTiming *ShiftTimingConfig `json:"shift_timing_config"`
}

type WeeklyScheduleInput struct {
	Weekday int  `json:"weekday" binding:"min=0,max=6"`
	Morning bool `json:"morning"`
	Evening bool `json:"evening"`
	Night   bool `json:"night"`
}

type SetScheduleRequest struct {
	Schedules   []WeeklyScheduleInput `json:"schedules" binding:"required,dive"`
	ShiftTiming *ShiftTimingConfig    `json:"shift_timing_config,omitempty"`
}

type AddTimeOffRequest struct {
	StartDate string `json:"start_date" binding:"required"`
	EndDate   string `json:"end_date" binding:"required"`
	Reason    string `json:"reason" binding:"max=500"`
}

// TimeOffResult reports the created range plus the appointments that had
// to be cancelled because their dates fell inside it.
type TimeOffResult struct {
	TimeOff               *TimeOff       `json:"time_off"`
	CancelledAppointments []*Appointment `json:"cancelled_appointments"`
}
