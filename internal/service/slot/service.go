package slot

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinicore/scheduler-api/internal/model"
	"github.com/clinicore/scheduler-api/internal/repository"
	"github.com/clinicore/scheduler-api/internal/service/event"
	apperr "github.com/clinicore/scheduler-api/pkg/errors"
	"github.com/clinicore/scheduler-api/pkg/metrics"
)

// Resolver supplies per-date availability; implemented by the schedule
// service.
type Resolver interface {
	ResolveRange(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]*model.ResolvedDay, error)
}

type Service struct {
	slotRepo   repository.SlotRepository
	apptRepo   repository.AppointmentRepository
	doctorRepo repository.DoctorRepository
	resolver   Resolver
	emitter    *event.Emitter
	metrics    *metrics.Metrics
	logger     zerolog.Logger

	maxGenerateDays int
}

func NewService(
	slotRepo repository.SlotRepository,
	apptRepo repository.AppointmentRepository,
	doctorRepo repository.DoctorRepository,
	resolver Resolver,
	emitter *event.Emitter,
	m *metrics.Metrics,
	maxGenerateDays int,
	logger zerolog.Logger,
) *Service {
	if maxGenerateDays <= 0 {
		maxGenerateDays = 90
	}
	return &Service{
		slotRepo:        slotRepo,
		apptRepo:        apptRepo,
		doctorRepo:      doctorRepo,
		resolver:        resolver,
		emitter:         emitter,
		metrics:         m,
		maxGenerateDays: maxGenerateDays,
		logger:          logger.With().Str("component", "slot_service").Logger(),
	}
}

// Generate materializes slots for every resolvable date in the range.
// Dates that are off or already populated are skipped, which makes the
// call safe to repeat.
func (s *Service) Generate(ctx context.Context, doctorID uuid.UUID, req *model.GenerateSlotsRequest) (*model.GenerateResult, error) {
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
	if days := int(end.Sub(start).Hours()/24) + 1; days > s.maxGenerateDays {
		return nil, apperr.Validation(fmt.Sprintf("range exceeds %d days", s.maxGenerateDays))
	}

	doctor, err := s.doctorRepo.Get(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	duration := doctor.SlotDurationMin
	if duration <= 0 {
		return nil, apperr.Validation("doctor has no slot duration configured")
	}

	days, err := s.resolver.ResolveRange(ctx, doctorID, start, end)
	if err != nil {
		return nil, err
	}

	result := &model.GenerateResult{}
	for _, day := range days {
		if day.IsOff {
			result.SlotsSkipped++
			continue
		}

		slots := buildSlots(doctor, day, duration)
		if len(slots) == 0 {
			result.SlotsSkipped++
			continue
		}
		created, err := s.slotRepo.CreateDay(ctx, doctorID, day.Date, slots)
		if err != nil {
			return nil, err
		}
		if !created {
			result.SlotsSkipped++
			continue
		}
		result.SlotsGenerated += len(slots)
	}

	if s.metrics != nil {
		s.metrics.SlotsGenerated.Add(float64(result.SlotsGenerated))
		s.metrics.DatesSkipped.Add(float64(result.SlotsSkipped))
	}
	s.emitter.EmitAsync(ctx, model.EventSlotsGenerated, map[string]interface{}{
		"doctor_id":       doctorID,
		"start_date":      req.StartDate,
		"end_date":        req.EndDate,
		"slots_generated": result.SlotsGenerated,
		"slots_skipped":   result.SlotsSkipped,
	})

	s.logger.Info().
		Str("doctor_id", doctorID.String()).
		Int("generated", result.SlotsGenerated).
		Int("skipped", result.SlotsSkipped).
		Msg("slot generation finished")
	return result, nil
}

// buildSlots cuts each window into fixed-duration slots. A trailing
// remainder shorter than the duration still becomes a slot so no window
// time is wasted.
func buildSlots(doctor *model.Doctor, day *model.ResolvedDay, duration int) []*model.Slot {
	now := time.Now()
	var slots []*model.Slot
	for _, window := range day.Windows {
		for start := window.Start; start < window.End; start += model.ClockMinutes(duration) {
			end := start + model.ClockMinutes(duration)
			if end > window.End {
				end = window.End
			}
			slots = append(slots, &model.Slot{
				ID:          uuid.New(),
				DoctorID:    doctor.ID,
				HospitalID:  doctor.HospitalID,
				Date:        day.Date,
				StartMin:    start,
				EndMin:      end,
				DurationMin: int(end - start),
				Period:      window.Period,
				Status:      model.SlotStatusAvailable,
				CreatedAt:   now,
				UpdatedAt:   now,
			})
		}
	}
	return slots
}

// GetSlotsForDate returns the day view: slots grouped by period plus any
// appointments that were cancelled by time off over this date.
func (s *Service) GetSlotsForDate(ctx context.Context, doctorID uuid.UUID, dateStr string) (*model.DaySlots, error) {
	date, err := model.ParseDate(dateStr)
	if err != nil {
		return nil, apperr.Validation(err.Error())
	}

	slots, err := s.slotRepo.ListByDate(ctx, doctorID, date)
	if err != nil {
		return nil, err
	}

	view := &model.DaySlots{
		Date:                  dateStr,
		Morning:               []*model.Slot{},
		Evening:               []*model.Slot{},
		Night:                 []*model.Slot{},
		CancelledAppointments: []*model.Appointment{},
	}

	for _, sl := range slots {
		switch sl.Period {
		case model.ShiftMorning:
			view.Morning = append(view.Morning, sl)
		case model.ShiftEvening:
			view.Evening = append(view.Evening, sl)
		case model.ShiftNight:
			view.Night = append(view.Night, sl)
		}
		view.Stats.Total++
		switch sl.Status {
		case model.SlotStatusAvailable:
			view.Stats.Available++
		case model.SlotStatusBooked:
			view.Stats.Booked++
		case model.SlotStatusBlocked:
			view.Stats.Blocked++
		}
	}

	days, err := s.resolver.ResolveRange(ctx, doctorID, date, date)
	if err != nil {
		return nil, err
	}
	if len(days) == 1 && days[0].IsOff {
		view.IsTimeOff = true
		view.TimeOffReason = days[0].Reason
	}

	cancelled, err := s.apptRepo.ListCancelledByTimeOff(ctx, doctorID, date)
	if err != nil {
		return nil, err
	}
	view.CancelledAppointments = cancelled
	return view, nil
}

// Book places an appointment on an available slot. Losing a race for
// the slot surfaces as SLOT_UNAVAILABLE, never as a double booking.
func (s *Service) Book(ctx context.Context, slotID uuid.UUID, req *model.BookSlotRequest) (*model.Appointment, error) {
	sl, err := s.slotRepo.Get(ctx, slotID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	appt := &model.Appointment{
		ID:             uuid.New(),
		SlotID:         sl.ID,
		DoctorID:       sl.DoctorID,
		HospitalID:     sl.HospitalID,
		PatientID:      req.PatientID,
		Date:           sl.Date,
		StartMin:       sl.StartMin,
		EndMin:         sl.EndMin,
		Status:         model.AppointmentStatusScheduled,
		ReasonForVisit: req.ReasonForVisit,
		Notes:          req.Notes,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.slotRepo.Book(ctx, slotID, appt); err != nil {
		if s.metrics != nil && apperr.Is(err, apperr.CodeSlotUnavailable) {
			s.metrics.BookingConflicts.Inc()
		}
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.Bookings.Inc()
	}
	s.emitter.EmitAsync(ctx, model.EventSlotBooked, appt)

	s.logger.Info().
		Str("slot_id", slotID.String()).
		Str("appointment_id", appt.ID.String()).
		Msg("slot booked")
	return appt, nil
}

// CancelAppointment frees the slot so it can be booked again.
func (s *Service) CancelAppointment(ctx context.Context, appointmentID uuid.UUID, reason string) error {
	if err := s.apptRepo.Cancel(ctx, appointmentID, reason, false); err != nil {
		return err
	}
	if s.metrics != nil {
		s.metrics.Cancellations.WithLabelValues("manual").Inc()
	}
	s.emitter.EmitAsync(ctx, model.EventAppointmentCancelled, map[string]interface{}{
		"appointment_id": appointmentID,
		"reason":         reason,
	})
	return nil
}

func (s *Service) GetAppointment(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	return s.apptRepo.Get(ctx, id)
}

// Block takes an available slot out of circulation.
func (s *Service) Block(ctx context.Context, slotID uuid.UUID) error {
	ok, err := s.slotRepo.SetStatus(ctx, slotID, model.SlotStatusAvailable, model.SlotStatusBlocked)
	if err != nil {
		return err
	}
	if !ok {
		return s.transitionError(ctx, slotID, "block")
	}
	s.emitter.EmitAsync(ctx, model.EventSlotBlocked, map[string]interface{}{"slot_id": slotID})
	return nil
}

// Unblock returns a blocked slot to circulation.
func (s *Service) Unblock(ctx context.Context, slotID uuid.UUID) error {
	ok, err := s.slotRepo.SetStatus(ctx, slotID, model.SlotStatusBlocked, model.SlotStatusAvailable)
	if err != nil {
		return err
	}
	if !ok {
		return s.transitionError(ctx, slotID, "unblock")
	}
	s.emitter.EmitAsync(ctx, model.EventSlotUnblocked, map[string]interface{}{"slot_id": slotID})
	return nil
}

func (s *Service) transitionError(ctx context.Context, slotID uuid.UUID, op string) error {
	sl, err := s.slotRepo.Get(ctx, slotID)
	if err != nil {
		return err
	}
	return apperr.InvalidTransition(fmt.Sprintf("cannot %s slot in status %s", op, sl.Status))
}
