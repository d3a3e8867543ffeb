package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/clinicore/scheduler-api/internal/model"
)

// All repository interfaces in one file.
type (
	// DoctorRepository resolves doctor profile attributes; doctor account
	// management lives outside this service.
	DoctorRepository interface {
		Get(ctx context.Context, id uuid.UUID) (*model.Doctor, error)
	}

	HospitalRepository interface {
		Get(ctx context.Context, id uuid.UUID) (*model.Hospital, error)
	}

	// ScheduleRepository stores the weekly pattern, shift timing config,
	// time off and holiday overrides that feed the resolver.
	ScheduleRepository interface {
		ListWeekly(ctx context.Context, doctorID uuid.UUID) ([]*model.WeeklySchedule, error)
		ReplaceWeekly(ctx context.Context, doctorID uuid.UUID, rows []*model.WeeklySchedule) error
		GetShiftTiming(ctx context.Context, hospitalID uuid.UUID, doctorID uuid.UUID) (*model.ShiftTimingConfig, error)
		SetShiftTiming(ctx context.Context, cfg *model.ShiftTimingConfig) error
		ListTimeOff(ctx context.Context, doctorID uuid.UUID) ([]*model.TimeOff, error)
		CreateTimeOff(ctx context.Context, timeOff *model.TimeOff) error
		DeleteTimeOff(ctx context.Context, id uuid.UUID) error
		ListHolidays(ctx context.Context, hospitalID uuid.UUID) ([]*model.HolidayOverride, error)
	}

	SlotRepository interface {
		// CreateDay inserts a full day of slots, serialized per
		// (doctor, date) so concurrent generation cannot interleave.
		// Returns false without inserting when the date already has slots.
		CreateDay(ctx context.Context, doctorID uuid.UUID, date time.Time, slots []*model.Slot) (bool, error)
		Get(ctx context.Context, id uuid.UUID) (*model.Slot, error)
		ListByDate(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]*model.Slot, error)
		// Book atomically flips the slot from AVAILABLE to BOOKED and
		// inserts the appointment in one transaction. Returns
		// SLOT_UNAVAILABLE when the conditional update matches no row.
		Book(ctx context.Context, slotID uuid.UUID, appt *model.Appointment) error
		// SetStatus performs a conditional status transition and reports
		// whether a row was updated.
		SetStatus(ctx context.Context, slotID uuid.UUID, from, to model.SlotStatus) (bool, error)
		// CountByDay aggregates live slot counts per date over [from, to].
		CountByDay(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]*model.CalendarDaySummary, error)
	}

	AppointmentRepository interface {
		Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error)
		// Cancel transitions the appointment to CANCELLED and frees its
		// slot back to AVAILABLE in one transaction.
		Cancel(ctx context.Context, id uuid.UUID, reason string, byTimeOff bool) error
		// CancelForTimeOff cancels every non-terminal appointment for the
		// doctor in [from, to], freeing slots, and returns those affected.
		CancelForTimeOff(ctx context.Context, doctorID uuid.UUID, from, to time.Time, reason string) ([]*model.Appointment, error)
		ListCancelledByTimeOff(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]*model.Appointment, error)
	}

	QueueRepository interface {
		// CheckIn assigns the next queue number for (doctor, date) and
		// inserts the entry; assignment is serialized so concurrent
		// check-ins never share a number. A linked appointment moves to
		// CHECKED_IN in the same transaction.
		CheckIn(ctx context.Context, entry *model.QueueEntry) error
		Get(ctx context.Context, id uuid.UUID) (*model.QueueEntry, error)
		// ClaimNext atomically selects the next WAITING entry (priority
		// desc, queue number asc) and moves it to WITH_DOCTOR, failing
		// with DOCTOR_BUSY when a consultation is already in progress.
		ClaimNext(ctx context.Context, doctorID uuid.UUID, date time.Time) (*model.QueueEntry, error)
		// Finish applies a terminal transition and updates the linked
		// appointment in the same transaction.
		Finish(ctx context.Context, id uuid.UUID, status model.QueueStatus) (*model.QueueEntry, error)
		ListForDay(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]*model.QueueEntry, error)
	}

	OutboxRepository interface {
		Create(ctx context.Context, event *model.OutboxEvent) error
		// GetPendingEvents atomically claims up to limit pending events,
		// moving them to PROCESSING so concurrent workers never receive
		// the same event.
		GetPendingEvents(ctx context.Context, limit int) ([]*model.OutboxEvent, error)
		MarkProcessed(ctx context.Context, id uuid.UUID) error
		MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error
	}
)
