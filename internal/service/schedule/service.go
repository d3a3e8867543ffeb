package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	cache "github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"

	"github.com/clinicore/scheduler-api/internal/model"
	"github.com/clinicore/scheduler-api/internal/repository"
	"github.com/clinicore/scheduler-api/internal/service/event"
	apperr "github.com/clinicore/scheduler-api/pkg/errors"
)

// Service owns weekly patterns, shift timing, time off and resolution.
type Service struct {
	doctorRepo   repository.DoctorRepository
	scheduleRepo repository.ScheduleRepository
	apptRepo     repository.AppointmentRepository
	emitter      *event.Emitter
	snapshots    *cache.Cache
	logger       zerolog.Logger
}

func NewService(
	doctorRepo repository.DoctorRepository,
	scheduleRepo repository.ScheduleRepository,
	apptRepo repository.AppointmentRepository,
	emitter *event.Emitter,
	cacheTTL time.Duration,
	logger zerolog.Logger,
) *Service {
	return &Service{
		doctorRepo:   doctorRepo,
		scheduleRepo: scheduleRepo,
		apptRepo:     apptRepo,
		emitter:      emitter,
		snapshots:    cache.New(cacheTTL, 2*cacheTTL),
		logger:       logger.With().Str("component", "schedule_service").Logger(),
	}
}

func snapshotKey(doctorID uuid.UUID) string { return "snapshot:" + doctorID.String() }

// LoadSnapshot returns the resolver inputs for a doctor, served from
// cache within the configured TTL. Writes invalidate eagerly.
func (s *Service) LoadSnapshot(ctx context.Context, doctorID uuid.UUID) (*Snapshot, error) {
	if cached, ok := s.snapshots.Get(snapshotKey(doctorID)); ok {
		return cached.(*Snapshot), nil
	}

	doctor, err := s.doctorRepo.Get(ctx, doctorID)
	if err != nil {
		return nil, err
	}

	weekly, err := s.scheduleRepo.ListWeekly(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	timing, err := s.scheduleRepo.GetShiftTiming(ctx, doctor.HospitalID, doctorID)
	if err != nil {
		return nil, err
	}
	timeOff, err := s.scheduleRepo.ListTimeOff(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	holidays, err := s.scheduleRepo.ListHolidays(ctx, doctor.HospitalID)
	if err != nil {
		return nil, err
	}

	byWeekday := make(map[int]*model.WeeklySchedule, len(weekly))
	for _, row := range weekly {
		byWeekday[row.Weekday] = row
	}

	snapshot := &Snapshot{
		Weekly:   byWeekday,
		Timing:   timing,
		TimeOff:  timeOff,
		Holidays: holidays,
	}
	s.snapshots.SetDefault(snapshotKey(doctorID), snapshot)
	return snapshot, nil
}

func (s *Service) invalidate(doctorID uuid.UUID) {
	s.snapshots.Delete(snapshotKey(doctorID))
}

// ResolveRange resolves [from, to] inclusive for a doctor.
func (s *Service) ResolveRange(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]*model.ResolvedDay, error) {
	snapshot, err := s.LoadSnapshot(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	return snapshot.ResolveRange(from, to), nil
}

func (s *Service) GetDoctorSchedule(ctx context.Context, doctorID uuid.UUID) (*model.DoctorScheduleView, error) {
	doctor, err := s.doctorRepo.Get(ctx, doctorID)
	if err != nil {
		return nil, err
	}

	weekly, err := s.scheduleRepo.ListWeekly(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	timing, err := s.scheduleRepo.GetShiftTiming(ctx, doctor.HospitalID, doctorID)
	if err != nil {
		return nil, err
	}

	return &model.DoctorScheduleView{
		Schedules:   weekly,
		ShiftTiming: timing,
	}, nil
}

// SetSchedule replaces the doctor's full weekly pattern and optionally
// the shift timing config.
func (s *Service) SetSchedule(ctx context.Context, doctorID uuid.UUID, req *model.SetScheduleRequest) error {
	doctor, err := s.doctorRepo.Get(ctx, doctorID)
	if err != nil {
		return err
	}

	seen := make(map[int]bool, len(req.Schedules))
	rows := make([]*model.WeeklySchedule, 0, len(req.Schedules))
	for _, in := range req.Schedules {
		if in.Weekday < 0 || in.Weekday > 6 {
			return apperr.Validation(fmt.Sprintf("weekday %d out of range", in.Weekday))
		}
		if seen[in.Weekday] {
			return apperr.Validation(fmt.Sprintf("duplicate weekday %d", in.Weekday))
		}
		seen[in.Weekday] = true

		row := &model.WeeklySchedule{
			DoctorID: doctorID,
			Weekday:  in.Weekday,
			Morning:  in.Morning,
			Evening:  in.Evening,
			Night:    in.Night,
		}
		row.Normalize()
		rows = append(rows, row)
	}

	if err := s.scheduleRepo.ReplaceWeekly(ctx, doctorID, rows); err != nil {
		return err
	}

	if req.ShiftTiming != nil {
		if err := validateShiftTiming(req.ShiftTiming); err != nil {
			return err
		}
		req.ShiftTiming.HospitalID = doctor.HospitalID
		req.ShiftTiming.DoctorID = &doctorID
		if err := s.scheduleRepo.SetShiftTiming(ctx, req.ShiftTiming); err != nil {
			return err
		}
	}

	s.invalidate(doctorID)
	s.logger.Info().Str("doctor_id", doctorID.String()).Int("days", len(rows)).Msg("weekly schedule replaced")
	return nil
}

func validateShiftTiming(cfg *model.ShiftTimingConfig) error {
	if cfg.MorningEnd <= cfg.MorningStart {
		return apperr.Validation("morning shift must end after it starts")
	}
	if cfg.EveningEnd <= cfg.EveningStart {
		return apperr.Validation("evening shift must end after it starts")
	}
	// Night may wrap past midnight, so equal or inverted boundaries are
	// legal there.
	return nil
}

// AddTimeOff records the range and cancels every appointment that falls
// inside it, freeing the slots for potential unblocking later.
func (s *Service) AddTimeOff(ctx context.Context, doctorID uuid.UUID, req *model.AddTimeOffRequest) (*model.TimeOffResult, error) {
	if _, err := s.doctorRepo.Get(ctx, doctorID); err != nil {
		return nil, err
	}

	start, err := model.ParseDate(req.StartDate)
	if err != nil {
		return nil, apperr.Validation(err.Error())
	}
	end, err := model.ParseDate(req.EndDate)
	if err != nil {
		return nil, apperr.Validation(err.Error())
	}
	if end.Before(start) {
		return nil, apperr.Validation("end_date must not precede start_date")
	}

	timeOff := &model.TimeOff{
		DoctorID:  doctorID,
		StartDate: start,
		EndDate:   end,
		Status:    model.TimeOffStatusActive,
	}
	if req.Reason != "" {
		timeOff.Reason = &req.Reason
	}

	if err := s.scheduleRepo.CreateTimeOff(ctx, timeOff); err != nil {
		return nil, err
	}

	reason := "doctor time off"
	if req.Reason != "" {
		reason = req.Reason
	}
	cancelled, err := s.apptRepo.CancelForTimeOff(ctx, doctorID, start, end, reason)
	if err != nil {
		return nil, err
	}

	s.invalidate(doctorID)
	s.emitter.EmitAsync(ctx, model.EventTimeOffAdded, timeOff)
	for _, appt := range cancelled {
		s.emitter.EmitAsync(ctx, model.EventAppointmentCancelled, appt)
	}

	s.logger.Info().
		Str("doctor_id", doctorID.String()).
		Str("start", req.StartDate).
		Str("end", req.EndDate).
		Int("cancelled_appointments", len(cancelled)).
		Msg("time off added")

	return &model.TimeOffResult{TimeOff: timeOff, CancelledAppointments: cancelled}, nil
}

func (s *Service) RemoveTimeOff(ctx context.Context, doctorID, timeOffID uuid.UUID) error {
	if err := s.scheduleRepo.DeleteTimeOff(ctx, timeOffID); err != nil {
		return err
	}
	s.invalidate(doctorID)
	return nil
}

func (s *Service) ListTimeOff(ctx context.Context, doctorID uuid.UUID) ([]*model.TimeOff, error) {
	return s.scheduleRepo.ListTimeOff(ctx, doctorID)
}
