package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/clinicore/scheduler-api/internal/model"
	apperr "github.com/clinicore/scheduler-api/pkg/errors"
)

// CreateDay inserts a full day of slots under the same per-(doctor, date)
// advisory lock the queue repository uses, so the populated check and the
// insert form one atomic step. Concurrent generation for the same date
// leaves exactly one day of slots.
func (r *slotRepository) CreateDay(ctx context.Context, doctorID uuid.UUID, date time.Time, slots []*model.Slot) (bool, error) {
	if len(slots) == 0 {
		return false, nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin generation transaction: %w", err)
	}
	defer tx.Rollback()

	key := doctorID.String() + ":" + date.Format("2006-01-02")
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, key); err != nil {
		return false, fmt.Errorf("failed to acquire generation lock: %w", err)
	}

	var exists bool
	if err := tx.GetContext(ctx, &exists, `
		SELECT EXISTS (SELECT 1 FROM slots WHERE doctor_id = $1 AND date = $2)
	`, doctorID, date); err != nil {
		return false, fmt.Errorf("failed to check slots for date: %w", err)
	}
	if exists {
		return false, tx.Commit()
	}

	query := `
		INSERT INTO slots (
			id, doctor_id, hospital_id, date, start_min, end_min,
			duration_min, period, status, created_at, updated_at
		) VALUES (
			:id, :doctor_id, :hospital_id, :date, :start_min, :end_min,
			:duration_min, :period, :status, :created_at, :updated_at
		)
	`
	now := time.Now()
	for _, s := range slots {
		if s.ID == uuid.Nil {
			s.ID = uuid.New()
		}
		s.CreatedAt = now
		s.UpdatedAt = now
	}
	if _, err := tx.NamedExecContext(ctx, query, slots); err != nil {
		return false, fmt.Errorf("failed to create slots: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit generation: %w", err)
	}
	return true, nil
}

func (r *slotRepository) Get(ctx context.Context, id uuid.UUID) (*model.Slot, error) {
	query := `
		SELECT id, doctor_id, hospital_id, date, start_min, end_min,
			   duration_min, period, status, appointment_id, patient_id,
			   created_at, updated_at
		FROM slots
		WHERE id = $1
	`
	var slot model.Slot
	if err := r.db.GetContext(ctx, &slot, query, id); err != nil {
		if isNoRows(err) {
			return nil, apperr.NotFound("slot")
		}
		return nil, fmt.Errorf("failed to get slot: %w", err)
	}
	return &slot, nil
}

func (r *slotRepository) ListByDate(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]*model.Slot, error) {
	query := `
		SELECT id, doctor_id, hospital_id, date, start_min, end_min,
			   duration_min, period, status, appointment_id, patient_id,
			   created_at, updated_at
		FROM slots
		WHERE doctor_id = $1 AND date = $2
		ORDER BY start_min ASC
	`
	var slots []*model.Slot
	if err := r.db.SelectContext(ctx, &slots, query, doctorID, date); err != nil {
		return nil, fmt.Errorf("failed to list slots: %w", err)
	}
	return slots, nil
}

// Book is the single point of booking exclusivity: the conditional
// update only matches an AVAILABLE row, so under concurrent requests at
// most one caller sees RowsAffected == 1.
func (r *slotRepository) Book(ctx context.Context, slotID uuid.UUID, appt *model.Appointment) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin booking transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now()
	res, err := tx.ExecContext(ctx, `
		UPDATE slots
		SET status = $1, appointment_id = $2, patient_id = $3, updated_at = $4
		WHERE id = $5 AND status = $6
	`, model.SlotStatusBooked, appt.ID, appt.PatientID, now, slotID, model.SlotStatusAvailable)
	if err != nil {
		return fmt.Errorf("failed to book slot: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return apperr.SlotUnavailable("slot is not available for booking")
	}

	appt.CreatedAt = now
	appt.UpdatedAt = now
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO appointments (
			id, slot_id, doctor_id, hospital_id, patient_id, date,
			start_min, end_min, status, reason_for_visit, notes,
			cancelled_by_time_off, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`, appt.ID, appt.SlotID, appt.DoctorID, appt.HospitalID, appt.PatientID,
		appt.Date, appt.StartMin, appt.EndMin, appt.Status,
		appt.ReasonForVisit, appt.Notes, appt.CancelledByTimeOff,
		appt.CreatedAt, appt.UpdatedAt); err != nil {
		return fmt.Errorf("failed to create appointment: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit booking: %w", err)
	}
	return nil
}

func (r *slotRepository) SetStatus(ctx context.Context, slotID uuid.UUID, from, to model.SlotStatus) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE slots
		SET status = $1, updated_at = $2
		WHERE id = $3 AND status = $4
	`, to, time.Now(), slotID, from)
	if err != nil {
		return false, fmt.Errorf("failed to update slot status: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows > 0, nil
}

func (r *slotRepository) CountByDay(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]*model.CalendarDaySummary, error) {
	query := `
		SELECT to_char(date, 'YYYY-MM-DD') AS date,
			   TRUE AS has_slots,
			   COUNT(*) FILTER (WHERE status = 'AVAILABLE') AS available_count,
			   COUNT(*) FILTER (WHERE status = 'BOOKED') AS booked_count
		FROM slots
		WHERE doctor_id = $1 AND date BETWEEN $2 AND $3
		GROUP BY date
		ORDER BY date ASC
	`
	var summaries []*model.CalendarDaySummary
	if err := r.db.SelectContext(ctx, &summaries, query, doctorID, from, to); err != nil {
		return nil, fmt.Errorf("failed to aggregate calendar: %w", err)
	}
	return summaries, nil
}
