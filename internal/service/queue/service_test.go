package queue

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicore/scheduler-api/internal/model"
	"github.com/clinicore/scheduler-api/internal/service/event"
	apperr "github.com/clinicore/scheduler-api/pkg/errors"
)

type fakeApptRepo struct {
	mu    sync.Mutex
	appts map[uuid.UUID]*model.Appointment
}

func (r *fakeApptRepo) Get(_ context.Context, id uuid.UUID) (*model.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	appt, ok := r.appts[id]
	if !ok {
		return nil, apperr.NotFound("appointment")
	}
	copied := *appt
	return &copied, nil
}

func (r *fakeApptRepo) Cancel(_ context.Context, _ uuid.UUID, _ string, _ bool) error { return nil }

func (r *fakeApptRepo) CancelForTimeOff(_ context.Context, _ uuid.UUID, _, _ time.Time, _ string) ([]*model.Appointment, error) {
	return nil, nil
}

func (r *fakeApptRepo) ListCancelledByTimeOff(_ context.Context, _ uuid.UUID, _ time.Time) ([]*model.Appointment, error) {
	return nil, nil
}

func (r *fakeApptRepo) setStatus(id uuid.UUID, status model.AppointmentStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if appt, ok := r.appts[id]; ok && !appt.Status.IsTerminal() {
		appt.Status = status
	}
}

func (r *fakeApptRepo) status(id uuid.UUID) model.AppointmentStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.appts[id].Status
}

// fakeQueueRepo mirrors the storage contracts: serialized number
// assignment, single active consultation, appointment kept in step.
type fakeQueueRepo struct {
	mu      sync.Mutex
	entries map[uuid.UUID]*model.QueueEntry
	appts   *fakeApptRepo
}

func (r *fakeQueueRepo) CheckIn(_ context.Context, entry *model.QueueEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	next := 1
	for _, e := range r.entries {
		if e.DoctorID == entry.DoctorID && e.Date.Equal(entry.Date) && e.QueueNumber >= next {
			next = e.QueueNumber + 1
		}
	}
	entry.QueueNumber = next
	copied := *entry
	r.entries[entry.ID] = &copied
	if entry.AppointmentID != nil {
		r.appts.setStatus(*entry.AppointmentID, model.AppointmentStatusCheckedIn)
	}
	return nil
}

func (r *fakeQueueRepo) Get(_ context.Context, id uuid.UUID) (*model.QueueEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok {
		return nil, apperr.NotFound("queue entry")
	}
	copied := *e
	return &copied, nil
}

func (r *fakeQueueRepo) ClaimNext(_ context.Context, doctorID uuid.UUID, date time.Time) (*model.QueueEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var next *model.QueueEntry
	for _, e := range r.entries {
		if e.DoctorID != doctorID || !e.Date.Equal(date) {
			continue
		}
		if e.Status == model.QueueStatusWithDoctor {
			return nil, apperr.DoctorBusy("a consultation is already in progress")
		}
		if e.Status != model.QueueStatusWaiting {
			continue
		}
		if next == nil ||
			e.Priority.Rank() > next.Priority.Rank() ||
			(e.Priority.Rank() == next.Priority.Rank() && e.QueueNumber < next.QueueNumber) {
			next = e
		}
	}
	if next == nil {
		return nil, apperr.NotFound("waiting queue entry")
	}

	now := time.Now()
	next.Status = model.QueueStatusWithDoctor
	next.StartedAt = &now
	if next.AppointmentID != nil {
		r.appts.setStatus(*next.AppointmentID, model.AppointmentStatusInProgress)
	}
	copied := *next
	return &copied, nil
}

func (r *fakeQueueRepo) Finish(_ context.Context, id uuid.UUID, status model.QueueStatus) (*model.QueueEntry, error) {
	var requiredFrom model.QueueStatus
	var apptStatus model.AppointmentStatus
	switch status {
	case model.QueueStatusCompleted:
		requiredFrom, apptStatus = model.QueueStatusWithDoctor, model.AppointmentStatusCompleted
	case model.QueueStatusNoShow:
		requiredFrom, apptStatus = model.QueueStatusWithDoctor, model.AppointmentStatusNoShow
	case model.QueueStatusLeft:
		requiredFrom = model.QueueStatusWaiting
	default:
		return nil, apperr.InvalidTransition("not a terminal queue status")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok {
		return nil, apperr.NotFound("queue entry")
	}
	if e.Status != requiredFrom {
		return nil, apperr.InvalidTransition("queue entry is not in the required state")
	}
	now := time.Now()
	e.Status = status
	e.CompletedAt = &now
	if e.AppointmentID != nil && apptStatus != "" {
		r.appts.setStatus(*e.AppointmentID, apptStatus)
	}
	copied := *e
	return &copied, nil
}

func (r *fakeQueueRepo) ListForDay(_ context.Context, doctorID uuid.UUID, date time.Time) ([]*model.QueueEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.QueueEntry
	for _, e := range r.entries {
		if e.DoctorID == doctorID && e.Date.Equal(date) {
			copied := *e
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority.Rank() != out[j].Priority.Rank() {
			return out[i].Priority.Rank() > out[j].Priority.Rank()
		}
		return out[i].QueueNumber < out[j].QueueNumber
	})
	return out, nil
}

type fakeDoctorRepo struct{ doctor *model.Doctor }

func (r *fakeDoctorRepo) Get(_ context.Context, id uuid.UUID) (*model.Doctor, error) {
	if r.doctor == nil || r.doctor.ID != id {
		return nil, apperr.NotFound("doctor")
	}
	return r.doctor, nil
}

type fakeHospitalRepo struct{ hospital *model.Hospital }

func (r *fakeHospitalRepo) Get(_ context.Context, id uuid.UUID) (*model.Hospital, error) {
	if r.hospital == nil || r.hospital.ID != id {
		return nil, apperr.NotFound("hospital")
	}
	return r.hospital, nil
}

type fakeOutboxRepo struct {
	mu     sync.Mutex
	events []*model.OutboxEvent
}

func (r *fakeOutboxRepo) Create(_ context.Context, ev *model.OutboxEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *fakeOutboxRepo) GetPendingEvents(_ context.Context, _ int) ([]*model.OutboxEvent, error) {
	return nil, nil
}
func (r *fakeOutboxRepo) MarkProcessed(_ context.Context, _ uuid.UUID) error     { return nil }
func (r *fakeOutboxRepo) MarkFailed(_ context.Context, _ uuid.UUID, _ string) error { return nil }

type fixture struct {
	svc    *Service
	doctor *model.Doctor
	appts  *fakeApptRepo
	queue  *fakeQueueRepo
}

const testDate = "2025-03-03"

func newFixture(t *testing.T) *fixture {
	t.Helper()
	hospital := &model.Hospital{ID: uuid.New(), Name: "Central Clinic", Timezone: "UTC"}
	doctor := &model.Doctor{ID: uuid.New(), HospitalID: hospital.ID, Name: "Dr. Osei", SlotDurationMin: 30}
	appts := &fakeApptRepo{appts: make(map[uuid.UUID]*model.Appointment)}
	queueRepo := &fakeQueueRepo{entries: make(map[uuid.UUID]*model.QueueEntry), appts: appts}
	svc := NewService(
		queueRepo,
		appts,
		&fakeDoctorRepo{doctor: doctor},
		&fakeHospitalRepo{hospital: hospital},
		event.NewEmitter(&fakeOutboxRepo{}, zerolog.Nop()),
		nil,
		zerolog.Nop(),
	)
	return &fixture{svc: svc, doctor: doctor, appts: appts, queue: queueRepo}
}

func (f *fixture) checkIn(t *testing.T, name string, priority model.QueuePriority) *model.QueueEntry {
	t.Helper()
	entry, err := f.svc.CheckIn(context.Background(), f.doctor.ID, &model.CheckInRequest{
		PatientName: name,
		Priority:    priority,
		Date:        testDate,
	})
	require.NoError(t, err)
	return entry
}

func TestCheckInAssignsSequentialNumbers(t *testing.T) {
	f := newFixture(t)

	first := f.checkIn(t, "Ana", "")
	second := f.checkIn(t, "Ben", "")
	third := f.checkIn(t, "Cleo", "")

	assert.Equal(t, 1, first.QueueNumber)
	assert.Equal(t, 2, second.QueueNumber)
	assert.Equal(t, 3, third.QueueNumber)
	assert.Equal(t, model.QueuePriorityNormal, first.Priority)
	assert.Equal(t, model.QueueStatusWaiting, first.Status)
}

func TestCheckInValidation(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.CheckIn(context.Background(), f.doctor.ID, &model.CheckInRequest{
		PatientName: "Ana",
		Priority:    "CRITICAL",
		Date:        testDate,
	})
	assert.True(t, apperr.Is(err, apperr.CodeValidation))

	_, err = f.svc.CheckIn(context.Background(), f.doctor.ID, &model.CheckInRequest{Date: testDate})
	assert.True(t, apperr.Is(err, apperr.CodeValidation))
}

func TestCheckInLinksAppointment(t *testing.T) {
	f := newFixture(t)
	apptID := uuid.New()
	patientID := uuid.New()
	f.appts.appts[apptID] = &model.Appointment{
		ID:        apptID,
		DoctorID:  f.doctor.ID,
		PatientID: patientID,
		Status:    model.AppointmentStatusScheduled,
	}

	entry, err := f.svc.CheckIn(context.Background(), f.doctor.ID, &model.CheckInRequest{
		AppointmentID: &apptID,
		Date:          testDate,
	})
	require.NoError(t, err)
	require.NotNil(t, entry.AppointmentID)
	assert.Equal(t, apptID, *entry.AppointmentID)
	require.NotNil(t, entry.PatientID)
	assert.Equal(t, patientID, *entry.PatientID)
	assert.Equal(t, model.AppointmentStatusCheckedIn, f.appts.status(apptID))
}

func TestCheckInRejectsForeignOrClosedAppointment(t *testing.T) {
	f := newFixture(t)
	foreignID := uuid.New()
	f.appts.appts[foreignID] = &model.Appointment{
		ID:       foreignID,
		DoctorID: uuid.New(),
		Status:   model.AppointmentStatusScheduled,
	}
	closedID := uuid.New()
	f.appts.appts[closedID] = &model.Appointment{
		ID:       closedID,
		DoctorID: f.doctor.ID,
		Status:   model.AppointmentStatusCancelled,
	}

	_, err := f.svc.CheckIn(context.Background(), f.doctor.ID, &model.CheckInRequest{
		AppointmentID: &foreignID,
		Date:          testDate,
	})
	assert.True(t, apperr.Is(err, apperr.CodeValidation))

	_, err = f.svc.CheckIn(context.Background(), f.doctor.ID, &model.CheckInRequest{
		AppointmentID: &closedID,
		Date:          testDate,
	})
	assert.True(t, apperr.Is(err, apperr.CodeInvalidTransition))
}

func TestCallNextPrefersPriorityThenArrival(t *testing.T) {
	f := newFixture(t)
	f.checkIn(t, "Ana", "")
	f.checkIn(t, "Ben", "")
	f.checkIn(t, "Cleo", "")
	emergency := f.checkIn(t, "Dora", model.QueuePriorityEmergency)
	assert.Equal(t, 4, emergency.QueueNumber)

	// The emergency jumps the line despite the highest number.
	called, err := f.svc.CallNext(context.Background(), f.doctor.ID, testDate)
	require.NoError(t, err)
	assert.Equal(t, "Dora", called.PatientName)
	assert.Equal(t, model.QueueStatusWithDoctor, called.Status)
	require.NotNil(t, called.StartedAt)

	_, err = f.svc.Complete(context.Background(), called.ID)
	require.NoError(t, err)

	// Equal priorities go in arrival order.
	called, err = f.svc.CallNext(context.Background(), f.doctor.ID, testDate)
	require.NoError(t, err)
	assert.Equal(t, "Ana", called.PatientName)
}

func TestCallNextWhileBusyRejected(t *testing.T) {
	f := newFixture(t)
	f.checkIn(t, "Ana", "")
	f.checkIn(t, "Ben", "")

	_, err := f.svc.CallNext(context.Background(), f.doctor.ID, testDate)
	require.NoError(t, err)

	_, err = f.svc.CallNext(context.Background(), f.doctor.ID, testDate)
	assert.True(t, apperr.Is(err, apperr.CodeDoctorBusy))
}

func TestCallNextEmptyQueue(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.CallNext(context.Background(), f.doctor.ID, testDate)
	assert.True(t, apperr.Is(err, apperr.CodeNotFound))
}

func TestFinishTransitions(t *testing.T) {
	f := newFixture(t)
	waiting := f.checkIn(t, "Ana", "")

	// Complete and NoShow require WITH_DOCTOR.
	_, err := f.svc.Complete(context.Background(), waiting.ID)
	assert.True(t, apperr.Is(err, apperr.CodeInvalidTransition))
	_, err = f.svc.NoShow(context.Background(), waiting.ID)
	assert.True(t, apperr.Is(err, apperr.CodeInvalidTransition))

	// Leave requires WAITING.
	left, err := f.svc.Leave(context.Background(), waiting.ID)
	require.NoError(t, err)
	assert.Equal(t, model.QueueStatusLeft, left.Status)
	require.NotNil(t, left.CompletedAt)

	// Terminal entries accept nothing further.
	_, err = f.svc.Leave(context.Background(), waiting.ID)
	assert.True(t, apperr.Is(err, apperr.CodeInvalidTransition))
}

func TestCompleteUpdatesLinkedAppointment(t *testing.T) {
	f := newFixture(t)
	apptID := uuid.New()
	f.appts.appts[apptID] = &model.Appointment{
		ID:        apptID,
		DoctorID:  f.doctor.ID,
		PatientID: uuid.New(),
		Status:    model.AppointmentStatusScheduled,
	}

	_, err := f.svc.CheckIn(context.Background(), f.doctor.ID, &model.CheckInRequest{
		AppointmentID: &apptID,
		Date:          testDate,
	})
	require.NoError(t, err)

	called, err := f.svc.CallNext(context.Background(), f.doctor.ID, testDate)
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusInProgress, f.appts.status(apptID))

	_, err = f.svc.Complete(context.Background(), called.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusCompleted, f.appts.status(apptID))
}

func TestDailyQueueView(t *testing.T) {
	f := newFixture(t)
	f.checkIn(t, "Ana", "")
	f.checkIn(t, "Ben", model.QueuePriorityUrgent)
	f.checkIn(t, "Cleo", "")
	leaver := f.checkIn(t, "Dan", "")

	called, err := f.svc.CallNext(context.Background(), f.doctor.ID, testDate)
	require.NoError(t, err)
	assert.Equal(t, "Ben", called.PatientName)
	_, err = f.svc.Complete(context.Background(), called.ID)
	require.NoError(t, err)

	called, err = f.svc.CallNext(context.Background(), f.doctor.ID, testDate)
	require.NoError(t, err)
	_, err = f.svc.Leave(context.Background(), leaver.ID)
	require.NoError(t, err)

	view, err := f.svc.DailyQueue(context.Background(), f.doctor.ID, testDate, nil)
	require.NoError(t, err)
	assert.Equal(t, testDate, view.Date)
	assert.Nil(t, view.IsCheckedIn)
	require.NotNil(t, view.WithDoctor)
	assert.Equal(t, "Ana", view.WithDoctor.PatientName)
	require.Len(t, view.Waiting, 1)
	assert.Equal(t, "Cleo", view.Waiting[0].PatientName)
	assert.Len(t, view.Finished, 2)

	assert.Equal(t, 4, view.Stats.Total)
	assert.Equal(t, 1, view.Stats.Waiting)
	assert.Equal(t, 1, view.Stats.Completed)
	assert.Equal(t, 1, view.Stats.Left)
	assert.GreaterOrEqual(t, view.Stats.AvgWaitSeconds, float64(0))
}

func TestDailyQueueReportsPatientCheckInStatus(t *testing.T) {
	f := newFixture(t)
	patientID := uuid.New()
	entry, err := f.svc.CheckIn(context.Background(), f.doctor.ID, &model.CheckInRequest{
		PatientID: &patientID,
		Date:      testDate,
	})
	require.NoError(t, err)

	view, err := f.svc.DailyQueue(context.Background(), f.doctor.ID, testDate, &patientID)
	require.NoError(t, err)
	require.NotNil(t, view.IsCheckedIn)
	assert.True(t, *view.IsCheckedIn)

	// An unknown patient is reported as not checked in.
	otherID := uuid.New()
	view, err = f.svc.DailyQueue(context.Background(), f.doctor.ID, testDate, &otherID)
	require.NoError(t, err)
	require.NotNil(t, view.IsCheckedIn)
	assert.False(t, *view.IsCheckedIn)

	// Leaving the queue clears the flag.
	_, err = f.svc.Leave(context.Background(), entry.ID)
	require.NoError(t, err)
	view, err = f.svc.DailyQueue(context.Background(), f.doctor.ID, testDate, &patientID)
	require.NoError(t, err)
	require.NotNil(t, view.IsCheckedIn)
	assert.False(t, *view.IsCheckedIn)
}

func TestConcurrentCheckInsGetUniqueNumbers(t *testing.T) {
	f := newFixture(t)

	const patients = 20
	var wg sync.WaitGroup
	entries := make([]*model.QueueEntry, patients)
	for i := 0; i < patients; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			entry, err := f.svc.CheckIn(context.Background(), f.doctor.ID, &model.CheckInRequest{
				PatientName: "patient",
				Date:        testDate,
			})
			assert.NoError(t, err)
			entries[i] = entry
		}(i)
	}
	wg.Wait()

	seen := make(map[int]bool, patients)
	for _, entry := range entries {
		require.NotNil(t, entry)
		assert.False(t, seen[entry.QueueNumber], "queue number %d assigned twice", entry.QueueNumber)
		seen[entry.QueueNumber] = true
	}
	assert.Len(t, seen, patients)
}
