package queue

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinicore/scheduler-api/internal/model"
	"github.com/clinicore/scheduler-api/internal/repository"
	"github.com/clinicore/scheduler-api/internal/service/event"
	apperr "github.com/clinicore/scheduler-api/pkg/errors"
	"github.com/clinicore/scheduler-api/pkg/metrics"
)

// Service runs the live daily queue for each doctor.
type Service struct {
	queueRepo    repository.QueueRepository
	apptRepo     repository.AppointmentRepository
	doctorRepo   repository.DoctorRepository
	hospitalRepo repository.HospitalRepository
	emitter      *event.Emitter
	metrics      *metrics.Metrics
	logger       zerolog.Logger
}

func NewService(
	queueRepo repository.QueueRepository,
	apptRepo repository.AppointmentRepository,
	doctorRepo repository.DoctorRepository,
	hospitalRepo repository.HospitalRepository,
	emitter *event.Emitter,
	m *metrics.Metrics,
	logger zerolog.Logger,
) *Service {
	return &Service{
		queueRepo:    queueRepo,
		apptRepo:     apptRepo,
		doctorRepo:   doctorRepo,
		hospitalRepo: hospitalRepo,
		emitter:      emitter,
		metrics:      m,
		logger:       logger.With().Str("component", "queue_service").Logger(),
	}
}

// CheckIn assigns the next queue number and adds the patient to today's
// queue. Booked patients reference their appointment; walk-ins pass
// name and patient id directly.
func (s *Service) CheckIn(ctx context.Context, doctorID uuid.UUID, req *model.CheckInRequest) (*model.QueueEntry, error) {
	doctor, err := s.doctorRepo.Get(ctx, doctorID)
	if err != nil {
		return nil, err
	}

	priority := req.Priority
	if priority == "" {
		priority = model.QueuePriorityNormal
	}
	if !priority.Valid() {
		return nil, apperr.Validation("priority must be NORMAL, URGENT or EMERGENCY")
	}

	date, err := s.queueDate(ctx, doctor, req.Date)
	if err != nil {
		return nil, err
	}

	entry := &model.QueueEntry{
		ID:          uuid.New(),
		DoctorID:    doctorID,
		HospitalID:  doctor.HospitalID,
		Date:        date,
		PatientName: req.PatientName,
		Priority:    priority,
		Status:      model.QueueStatusWaiting,
		CheckedInAt: time.Now(),
	}

	if req.AppointmentID != nil {
		appt, err := s.apptRepo.Get(ctx, *req.AppointmentID)
		if err != nil {
			return nil, err
		}
		if appt.DoctorID != doctorID {
			return nil, apperr.Validation("appointment belongs to a different doctor")
		}
		if appt.Status.IsTerminal() {
			return nil, apperr.InvalidTransition("appointment is already closed")
		}
		entry.AppointmentID = &appt.ID
		entry.PatientID = &appt.PatientID
	} else {
		if req.PatientName == "" && req.PatientID == nil {
			return nil, apperr.Validation("walk-in check-in requires patient_name or patient_id")
		}
		entry.PatientID = req.PatientID
	}

	if err := s.queueRepo.CheckIn(ctx, entry); err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.QueueCheckIns.WithLabelValues(string(priority)).Inc()
	}
	s.emitter.EmitAsync(ctx, model.EventQueueCheckedIn, entry)

	s.logger.Info().
		Str("doctor_id", doctorID.String()).
		Int("queue_number", entry.QueueNumber).
		Str("priority", string(priority)).
		Msg("patient checked in")
	return entry, nil
}

// queueDate resolves the target queue day, defaulting to today in the
// hospital's timezone.
func (s *Service) queueDate(ctx context.Context, doctor *model.Doctor, dateStr string) (time.Time, error) {
	if dateStr != "" {
		date, err := model.ParseDate(dateStr)
		if err != nil {
			return time.Time{}, apperr.Validation(err.Error())
		}
		return date, nil
	}

	hospital, err := s.hospitalRepo.Get(ctx, doctor.HospitalID)
	if err != nil {
		return time.Time{}, err
	}
	loc, err := hospital.Location()
	if err != nil {
		return time.Time{}, apperr.Validation("hospital has an invalid timezone")
	}
	return model.DateOf(time.Now(), loc), nil
}

// CallNext moves the highest-priority waiting patient to the doctor.
// Fails with DOCTOR_BUSY while a consultation is in progress.
func (s *Service) CallNext(ctx context.Context, doctorID uuid.UUID, dateStr string) (*model.QueueEntry, error) {
	doctor, err := s.doctorRepo.Get(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	date, err := s.queueDate(ctx, doctor, dateStr)
	if err != nil {
		return nil, err
	}

	entry, err := s.queueRepo.ClaimNext(ctx, doctorID, date)
	if err != nil {
		return nil, err
	}

	if s.metrics != nil && entry.StartedAt != nil {
		s.metrics.QueueWaitTime.Observe(entry.StartedAt.Sub(entry.CheckedInAt).Seconds())
	}
	s.emitter.EmitAsync(ctx, model.EventQueueCalled, entry)

	s.logger.Info().
		Str("doctor_id", doctorID.String()).
		Int("queue_number", entry.QueueNumber).
		Msg("patient called")
	return entry, nil
}

// Complete closes the active consultation.
func (s *Service) Complete(ctx context.Context, entryID uuid.UUID) (*model.QueueEntry, error) {
	return s.finish(ctx, entryID, model.QueueStatusCompleted)
}

// NoShow marks the called patient as absent.
func (s *Service) NoShow(ctx context.Context, entryID uuid.UUID) (*model.QueueEntry, error) {
	return s.finish(ctx, entryID, model.QueueStatusNoShow)
}

// Leave removes a waiting patient who gave up their place.
func (s *Service) Leave(ctx context.Context, entryID uuid.UUID) (*model.QueueEntry, error) {
	return s.finish(ctx, entryID, model.QueueStatusLeft)
}

func (s *Service) finish(ctx context.Context, entryID uuid.UUID, status model.QueueStatus) (*model.QueueEntry, error) {
	entry, err := s.queueRepo.Finish(ctx, entryID, status)
	if err != nil {
		return nil, err
	}
	s.emitter.EmitAsync(ctx, model.EventQueueFinished, entry)
	return entry, nil
}

// DailyQueue builds the live view: the entry with the doctor, the
// waiting line in call order, and the day's finished history. When
// patientID is given, the view also reports whether that patient is
// currently checked in.
func (s *Service) DailyQueue(ctx context.Context, doctorID uuid.UUID, dateStr string, patientID *uuid.UUID) (*model.DailyQueue, error) {
	doctor, err := s.doctorRepo.Get(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	date, err := s.queueDate(ctx, doctor, dateStr)
	if err != nil {
		return nil, err
	}

	entries, err := s.queueRepo.ListForDay(ctx, doctorID, date)
	if err != nil {
		return nil, err
	}

	view := &model.DailyQueue{
		Date:     model.FormatDate(date),
		Waiting:  []*model.QueueEntry{},
		Finished: []*model.QueueEntry{},
	}

	checkedIn := false
	var waitTotal time.Duration
	var waitCount int
	for _, e := range entries {
		if patientID != nil && e.PatientID != nil && *e.PatientID == *patientID && !e.Status.IsTerminal() {
			checkedIn = true
		}
		view.Stats.Total++
		switch e.Status {
		case model.QueueStatusWithDoctor:
			view.WithDoctor = e
		case model.QueueStatusWaiting:
			view.Waiting = append(view.Waiting, e)
			view.Stats.Waiting++
		case model.QueueStatusCompleted:
			view.Finished = append(view.Finished, e)
			view.Stats.Completed++
		case model.QueueStatusNoShow:
			view.Finished = append(view.Finished, e)
			view.Stats.NoShow++
		case model.QueueStatusLeft:
			view.Finished = append(view.Finished, e)
			view.Stats.Left++
		}
		if e.StartedAt != nil {
			waitTotal += e.StartedAt.Sub(e.CheckedInAt)
			waitCount++
		}
	}
	if waitCount > 0 {
		view.Stats.AvgWaitSeconds = waitTotal.Seconds() / float64(waitCount)
	}
	if patientID != nil {
		view.IsCheckedIn = &checkedIn
	}
	return view, nil
}
