package slot

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

// store backs the slot and appointment fakes with the same locked maps
// so cross-entity contracts (booking, freeing) stay atomic like the
// real transactions.
type store struct {
	mu    sync.Mutex
	slots map[uuid.UUID]*model.Slot
	appts map[uuid.UUID]*model.Appointment
}

func newStore() *store {
	return &store{
		slots: make(map[uuid.UUID]*model.Slot),
		appts: make(map[uuid.UUID]*model.Appointment),
	}
}

type fakeSlotRepo struct{ s *store }

func (r *fakeSlotRepo) CreateDay(_ context.Context, doctorID uuid.UUID, date time.Time, slots []*model.Slot) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, sl := range r.s.slots {
		if sl.DoctorID == doctorID && sl.Date.Equal(date) {
			return false, nil
		}
	}
	for _, sl := range slots {
		copied := *sl
		r.s.slots[sl.ID] = &copied
	}
	return true, nil
}

func (r *fakeSlotRepo) Get(_ context.Context, id uuid.UUID) (*model.Slot, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sl, ok := r.s.slots[id]
	if !ok {
		return nil, apperr.NotFound("slot")
	}
	copied := *sl
	return &copied, nil
}

func (r *fakeSlotRepo) ListByDate(_ context.Context, doctorID uuid.UUID, date time.Time) ([]*model.Slot, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*model.Slot
	for _, sl := range r.s.slots {
		if sl.DoctorID == doctorID && sl.Date.Equal(date) {
			copied := *sl
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartMin < out[j].StartMin })
	return out, nil
}

func (r *fakeSlotRepo) Book(_ context.Context, slotID uuid.UUID, appt *model.Appointment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sl, ok := r.s.slots[slotID]
	if !ok {
		return apperr.NotFound("slot")
	}
	if sl.Status != model.SlotStatusAvailable {
		return apperr.SlotUnavailable("slot is not available")
	}
	sl.Status = model.SlotStatusBooked
	sl.AppointmentID = &appt.ID
	sl.PatientID = &appt.PatientID
	copied := *appt
	r.s.appts[appt.ID] = &copied
	return nil
}

func (r *fakeSlotRepo) SetStatus(_ context.Context, slotID uuid.UUID, from, to model.SlotStatus) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sl, ok := r.s.slots[slotID]
	if !ok || sl.Status != from {
		return false, nil
	}
	sl.Status = to
	return true, nil
}

func (r *fakeSlotRepo) CountByDay(_ context.Context, doctorID uuid.UUID, from, to time.Time) ([]*model.CalendarDaySummary, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	byDate := make(map[string]*model.CalendarDaySummary)
	for _, sl := range r.s.slots {
		if sl.DoctorID != doctorID || sl.Date.Before(from) || sl.Date.After(to) {
			continue
		}
		key := model.FormatDate(sl.Date)
		c, ok := byDate[key]
		if !ok {
			c = &model.CalendarDaySummary{Date: key}
			byDate[key] = c
		}
		switch sl.Status {
		case model.SlotStatusAvailable:
			c.AvailableCount++
		case model.SlotStatusBooked:
			c.BookedCount++
		}
	}
	var out []*model.CalendarDaySummary
	for _, c := range byDate {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out, nil
}

type fakeApptRepo struct{ s *store }

func (r *fakeApptRepo) Get(_ context.Context, id uuid.UUID) (*model.Appointment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	appt, ok := r.s.appts[id]
	if !ok {
		return nil, apperr.NotFound("appointment")
	}
	copied := *appt
	return &copied, nil
}

func (r *fakeApptRepo) Cancel(_ context.Context, id uuid.UUID, reason string, byTimeOff bool) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	appt, ok := r.s.appts[id]
	if !ok {
		return apperr.NotFound("appointment")
	}
	if appt.Status.IsTerminal() {
		return apperr.InvalidTransition("appointment cannot be cancelled in its current state")
	}
	appt.Status = model.AppointmentStatusCancelled
	appt.CancelReason = &reason
	appt.CancelledByTimeOff = byTimeOff
	if sl, ok := r.s.slots[appt.SlotID]; ok {
		sl.Status = model.SlotStatusAvailable
		sl.AppointmentID = nil
		sl.PatientID = nil
	}
	return nil
}

func (r *fakeApptRepo) CancelForTimeOff(_ context.Context, doctorID uuid.UUID, from, to time.Time, reason string) ([]*model.Appointment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var affected []*model.Appointment
	for _, appt := range r.s.appts {
		if appt.DoctorID != doctorID || appt.Status.IsTerminal() {
			continue
		}
		if appt.Date.Before(from) || appt.Date.After(to) {
			continue
		}
		appt.Status = model.AppointmentStatusCancelled
		appt.CancelReason = &reason
		appt.CancelledByTimeOff = true
		if sl, ok := r.s.slots[appt.SlotID]; ok {
			sl.Status = model.SlotStatusAvailable
			sl.AppointmentID = nil
			sl.PatientID = nil
		}
		copied := *appt
		affected = append(affected, &copied)
	}
	return affected, nil
}

func (r *fakeApptRepo) ListCancelledByTimeOff(_ context.Context, doctorID uuid.UUID, date time.Time) ([]*model.Appointment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*model.Appointment
	for _, appt := range r.s.appts {
		if appt.DoctorID == doctorID && appt.Date.Equal(date) && appt.CancelledByTimeOff {
			copied := *appt
			out = append(out, &copied)
		}
	}
	return out, nil
}

type fakeDoctorRepo struct{ doctor *model.Doctor }

func (r *fakeDoctorRepo) Get(_ context.Context, id uuid.UUID) (*model.Doctor, error) {
	if r.doctor == nil || r.doctor.ID != id {
		return nil, apperr.NotFound("doctor")
	}
	return r.doctor, nil
}

type fakeResolver struct {
	days map[string]*model.ResolvedDay
}

func (r *fakeResolver) ResolveRange(_ context.Context, _ uuid.UUID, from, to time.Time) ([]*model.ResolvedDay, error) {
	var out []*model.ResolvedDay
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		if day, ok := r.days[model.FormatDate(d)]; ok {
			out = append(out, day)
			continue
		}
		out = append(out, &model.ResolvedDay{Date: d, IsOff: true, Reason: "not scheduled"})
	}
	return out, nil
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

func (r *fakeOutboxRepo) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.EventType
	}
	return out
}

type fixture struct {
	svc      *Service
	store    *store
	doctor   *model.Doctor
	resolver *fakeResolver
	outbox   *fakeOutboxRepo
}

func newFixture(t *testing.T, slotDuration int) *fixture {
	t.Helper()
	doctor := &model.Doctor{
		ID:              uuid.New(),
		HospitalID:      uuid.New(),
		Name:            "Dr. Rivera",
		SlotDurationMin: slotDuration,
	}
	s := newStore()
	resolver := &fakeResolver{days: make(map[string]*model.ResolvedDay)}
	outbox := &fakeOutboxRepo{}
	svc := NewService(
		&fakeSlotRepo{s: s},
		&fakeApptRepo{s: s},
		&fakeDoctorRepo{doctor: doctor},
		resolver,
		event.NewEmitter(outbox, zerolog.Nop()),
		nil,
		90,
		zerolog.Nop(),
	)
	return &fixture{svc: svc, store: s, doctor: doctor, resolver: resolver, outbox: outbox}
}

func (f *fixture) workingDay(dateStr string, windows ...model.ShiftWindow) {
	date, _ := model.ParseDate(dateStr)
	f.resolver.days[dateStr] = &model.ResolvedDay{Date: date, Windows: windows}
}

func morning() model.ShiftWindow {
	return model.ShiftWindow{Period: model.ShiftMorning, Start: 6 * 60, End: 14 * 60}
}

func TestGenerateFullMorningShift(t *testing.T) {
	f := newFixture(t, 30)
	f.workingDay("2025-03-03", morning())

	result, err := f.svc.Generate(context.Background(), f.doctor.ID, &model.GenerateSlotsRequest{
		StartDate: "2025-03-03",
		EndDate:   "2025-03-03",
	})
	require.NoError(t, err)
	assert.Equal(t, 16, result.SlotsGenerated)
	assert.Equal(t, 0, result.SlotsSkipped)

	date, _ := model.ParseDate("2025-03-03")
	slots, err := f.svc.slotRepo.ListByDate(context.Background(), f.doctor.ID, date)
	require.NoError(t, err)
	require.Len(t, slots, 16)
	assert.Equal(t, model.ClockMinutes(6*60), slots[0].StartMin)
	assert.Equal(t, model.ClockMinutes(6*60+30), slots[0].EndMin)
	assert.Equal(t, model.ShiftMorning, slots[0].Period)
	assert.Equal(t, model.SlotStatusAvailable, slots[0].Status)
	assert.Equal(t, model.ClockMinutes(14*60), slots[15].EndMin)
	assert.Contains(t, f.outbox.types(), model.EventSlotsGenerated)
}

func TestGenerateIsIdempotent(t *testing.T) {
	f := newFixture(t, 30)
	f.workingDay("2025-03-03", morning())

	req := &model.GenerateSlotsRequest{StartDate: "2025-03-03", EndDate: "2025-03-03"}
	first, err := f.svc.Generate(context.Background(), f.doctor.ID, req)
	require.NoError(t, err)
	assert.Equal(t, 16, first.SlotsGenerated)

	second, err := f.svc.Generate(context.Background(), f.doctor.ID, req)
	require.NoError(t, err)
	assert.Equal(t, 0, second.SlotsGenerated)
	assert.Equal(t, 1, second.SlotsSkipped)
}

func TestConcurrentGenerateFillsDayOnce(t *testing.T) {
	f := newFixture(t, 30)
	f.workingDay("2025-03-03", morning())
	req := &model.GenerateSlotsRequest{StartDate: "2025-03-03", EndDate: "2025-03-03"}

	const callers = 8
	var wg sync.WaitGroup
	results := make([]*model.GenerateResult, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = f.svc.Generate(context.Background(), f.doctor.ID, req)
		}(i)
	}
	wg.Wait()

	total := 0
	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		total += results[i].SlotsGenerated
	}
	// Exactly one caller materializes the day; everyone else skips it.
	assert.Equal(t, 16, total)

	date, _ := model.ParseDate("2025-03-03")
	slots, err := f.svc.slotRepo.ListByDate(context.Background(), f.doctor.ID, date)
	require.NoError(t, err)
	assert.Len(t, slots, 16)
}

func TestGenerateSkipsOffDays(t *testing.T) {
	f := newFixture(t, 30)
	f.workingDay("2025-03-03", morning())
	// 2025-03-04 has no resolver entry and counts as off.

	result, err := f.svc.Generate(context.Background(), f.doctor.ID, &model.GenerateSlotsRequest{
		StartDate: "2025-03-03",
		EndDate:   "2025-03-04",
	})
	require.NoError(t, err)
	assert.Equal(t, 16, result.SlotsGenerated)
	assert.Equal(t, 1, result.SlotsSkipped)
}

func TestGenerateKeepsTrailingShortSlot(t *testing.T) {
	f := newFixture(t, 30)
	f.workingDay("2025-03-03", model.ShiftWindow{Period: model.ShiftMorning, Start: 6 * 60, End: 7*60 + 10})

	result, err := f.svc.Generate(context.Background(), f.doctor.ID, &model.GenerateSlotsRequest{
		StartDate: "2025-03-03",
		EndDate:   "2025-03-03",
	})
	require.NoError(t, err)
	assert.Equal(t, 3, result.SlotsGenerated)

	date, _ := model.ParseDate("2025-03-03")
	slots, _ := f.svc.slotRepo.ListByDate(context.Background(), f.doctor.ID, date)
	require.Len(t, slots, 3)
	last := slots[2]
	assert.Equal(t, model.ClockMinutes(7*60), last.StartMin)
	assert.Equal(t, model.ClockMinutes(7*60+10), last.EndMin)
	assert.Equal(t, 10, last.DurationMin)
}

func TestGenerateNightSlotsStayOnStartDate(t *testing.T) {
	f := newFixture(t, 60)
	f.workingDay("2025-03-07", model.ShiftWindow{Period: model.ShiftNight, Start: 22 * 60, End: 30 * 60})

	result, err := f.svc.Generate(context.Background(), f.doctor.ID, &model.GenerateSlotsRequest{
		StartDate: "2025-03-07",
		EndDate:   "2025-03-07",
	})
	require.NoError(t, err)
	assert.Equal(t, 8, result.SlotsGenerated)

	date, _ := model.ParseDate("2025-03-07")
	slots, _ := f.svc.slotRepo.ListByDate(context.Background(), f.doctor.ID, date)
	last := slots[len(slots)-1]
	assert.Equal(t, date, last.Date)
	assert.Equal(t, model.ClockMinutes(29*60), last.StartMin)
	assert.Equal(t, "29:00", last.StartMin.String())
}

func TestGenerateValidatesRange(t *testing.T) {
	f := newFixture(t, 30)

	_, err := f.svc.Generate(context.Background(), f.doctor.ID, &model.GenerateSlotsRequest{
		StartDate: "2025-03-10",
		EndDate:   "2025-03-03",
	})
	assert.True(t, apperr.Is(err, apperr.CodeValidation))

	_, err = f.svc.Generate(context.Background(), f.doctor.ID, &model.GenerateSlotsRequest{
		StartDate: "2025-01-01",
		EndDate:   "2026-01-01",
	})
	assert.True(t, apperr.Is(err, apperr.CodeValidation))

	_, err = f.svc.Generate(context.Background(), f.doctor.ID, &model.GenerateSlotsRequest{
		StartDate: "not-a-date",
		EndDate:   "2025-03-03",
	})
	assert.True(t, apperr.Is(err, apperr.CodeValidation))
}

func (f *fixture) generateOneDay(t *testing.T) []*model.Slot {
	t.Helper()
	f.workingDay("2025-03-03", morning())
	_, err := f.svc.Generate(context.Background(), f.doctor.ID, &model.GenerateSlotsRequest{
		StartDate: "2025-03-03",
		EndDate:   "2025-03-03",
	})
	require.NoError(t, err)
	date, _ := model.ParseDate("2025-03-03")
	slots, err := f.svc.slotRepo.ListByDate(context.Background(), f.doctor.ID, date)
	require.NoError(t, err)
	return slots
}

func TestBookCancelRebook(t *testing.T) {
	f := newFixture(t, 30)
	slots := f.generateOneDay(t)
	slotID := slots[0].ID
	patientID := uuid.New()

	appt, err := f.svc.Book(context.Background(), slotID, &model.BookSlotRequest{PatientID: patientID})
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusScheduled, appt.Status)
	assert.Equal(t, slots[0].StartMin, appt.StartMin)

	booked, _ := f.svc.slotRepo.Get(context.Background(), slotID)
	assert.Equal(t, model.SlotStatusBooked, booked.Status)
	require.NotNil(t, booked.AppointmentID)
	assert.Equal(t, appt.ID, *booked.AppointmentID)

	// Second booking on the same slot loses.
	_, err = f.svc.Book(context.Background(), slotID, &model.BookSlotRequest{PatientID: uuid.New()})
	assert.True(t, apperr.Is(err, apperr.CodeSlotUnavailable))

	require.NoError(t, f.svc.CancelAppointment(context.Background(), appt.ID, "patient request"))
	freed, _ := f.svc.slotRepo.Get(context.Background(), slotID)
	assert.Equal(t, model.SlotStatusAvailable, freed.Status)
	assert.Nil(t, freed.AppointmentID)

	cancelled, _ := f.svc.GetAppointment(context.Background(), appt.ID)
	assert.Equal(t, model.AppointmentStatusCancelled, cancelled.Status)

	// The freed slot is bookable again.
	_, err = f.svc.Book(context.Background(), slotID, &model.BookSlotRequest{PatientID: uuid.New()})
	assert.NoError(t, err)
}

func TestCancelTerminalAppointmentRejected(t *testing.T) {
	f := newFixture(t, 30)
	slots := f.generateOneDay(t)

	appt, err := f.svc.Book(context.Background(), slots[0].ID, &model.BookSlotRequest{PatientID: uuid.New()})
	require.NoError(t, err)
	require.NoError(t, f.svc.CancelAppointment(context.Background(), appt.ID, "first"))

	err = f.svc.CancelAppointment(context.Background(), appt.ID, "second")
	assert.True(t, apperr.Is(err, apperr.CodeInvalidTransition))
}

func TestConcurrentBookingHasOneWinner(t *testing.T) {
	f := newFixture(t, 30)
	slots := f.generateOneDay(t)
	slotID := slots[0].ID

	const contenders = 16
	var wg sync.WaitGroup
	errs := make([]error, contenders)
	for i := 0; i < contenders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.Book(context.Background(), slotID, &model.BookSlotRequest{PatientID: uuid.New()})
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, err := range errs {
		if err == nil {
			winners++
		} else {
			assert.True(t, apperr.Is(err, apperr.CodeSlotUnavailable))
		}
	}
	assert.Equal(t, 1, winners)
}

func TestBlockUnblockLifecycle(t *testing.T) {
	f := newFixture(t, 30)
	slots := f.generateOneDay(t)
	slotID := slots[0].ID

	require.NoError(t, f.svc.Block(context.Background(), slotID))
	blocked, _ := f.svc.slotRepo.Get(context.Background(), slotID)
	assert.Equal(t, model.SlotStatusBlocked, blocked.Status)

	// Blocked slots cannot be booked.
	_, err := f.svc.Book(context.Background(), slotID, &model.BookSlotRequest{PatientID: uuid.New()})
	assert.True(t, apperr.Is(err, apperr.CodeSlotUnavailable))

	// Blocking twice is an invalid transition.
	err = f.svc.Block(context.Background(), slotID)
	assert.True(t, apperr.Is(err, apperr.CodeInvalidTransition))

	require.NoError(t, f.svc.Unblock(context.Background(), slotID))
	available, _ := f.svc.slotRepo.Get(context.Background(), slotID)
	assert.Equal(t, model.SlotStatusAvailable, available.Status)
}

func TestBlockBookedSlotRejected(t *testing.T) {
	f := newFixture(t, 30)
	slots := f.generateOneDay(t)
	_, err := f.svc.Book(context.Background(), slots[0].ID, &model.BookSlotRequest{PatientID: uuid.New()})
	require.NoError(t, err)

	err = f.svc.Block(context.Background(), slots[0].ID)
	assert.True(t, apperr.Is(err, apperr.CodeInvalidTransition))
}

func TestGetSlotsForDateView(t *testing.T) {
	f := newFixture(t, 30)
	f.workingDay("2025-03-03", morning(), model.ShiftWindow{Period: model.ShiftEvening, Start: 14 * 60, End: 22 * 60})
	_, err := f.svc.Generate(context.Background(), f.doctor.ID, &model.GenerateSlotsRequest{
		StartDate: "2025-03-03",
		EndDate:   "2025-03-03",
	})
	require.NoError(t, err)

	date, _ := model.ParseDate("2025-03-03")
	slots, _ := f.svc.slotRepo.ListByDate(context.Background(), f.doctor.ID, date)
	_, err = f.svc.Book(context.Background(), slots[0].ID, &model.BookSlotRequest{PatientID: uuid.New()})
	require.NoError(t, err)
	require.NoError(t, f.svc.Block(context.Background(), slots[1].ID))

	view, err := f.svc.GetSlotsForDate(context.Background(), f.doctor.ID, "2025-03-03")
	require.NoError(t, err)
	assert.False(t, view.IsTimeOff)
	assert.Len(t, view.Morning, 16)
	assert.Len(t, view.Evening, 16)
	assert.Empty(t, view.Night)
	assert.Equal(t, 32, view.Stats.Total)
	assert.Equal(t, 30, view.Stats.Available)
	assert.Equal(t, 1, view.Stats.Booked)
	assert.Equal(t, 1, view.Stats.Blocked)
}

func TestGetSlotsForDateReportsTimeOff(t *testing.T) {
	f := newFixture(t, 30)
	date, _ := model.ParseDate("2025-06-10")
	f.resolver.days["2025-06-10"] = &model.ResolvedDay{Date: date, IsOff: true, Reason: "vacation"}

	// A cancelled-by-time-off appointment shows up in the day view.
	f.store.appts[uuid.New()] = &model.Appointment{
		ID:                 uuid.New(),
		DoctorID:           f.doctor.ID,
		Date:               date,
		Status:             model.AppointmentStatusCancelled,
		CancelledByTimeOff: true,
	}

	view, err := f.svc.GetSlotsForDate(context.Background(), f.doctor.ID, "2025-06-10")
	require.NoError(t, err)
	assert.True(t, view.IsTimeOff)
	assert.Equal(t, "vacation", view.TimeOffReason)
	assert.Len(t, view.CancelledAppointments, 1)
}
