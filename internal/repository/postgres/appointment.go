package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/clinicore/scheduler-api/internal/model"
	apperr "github.com/clinicore/scheduler-api/pkg/errors"
)

const appointmentColumns = `
	id, slot_id, doctor_id, hospital_id, patient_id, date,
	start_min, end_min, status, reason_for_visit, notes,
	cancel_reason, cancelled_by_time_off, created_at, updated_at
`

func (r *appointmentRepository) Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments WHERE id = $1`
	var appt model.Appointment
	if err := r.db.GetContext(ctx, &appt, query, id); err != nil {
		if isNoRows(err) {
			return nil, apperr.NotFound("appointment")
		}
		return nil, fmt.Errorf("failed to get appointment: %w", err)
	}
	return &appt, nil
}

// Cancel transitions the appointment and frees its slot in one
// transaction, so a reader never observes a cancelled appointment still
// holding a BOOKED slot.
func (r *appointmentRepository) Cancel(ctx context.Context, id uuid.UUID, reason string, byTimeOff bool) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin cancel transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now()
	var slotID uuid.UUID
	err = tx.GetContext(ctx, &slotID, `
		UPDATE appointments
		SET status = $1, cancel_reason = $2, cancelled_by_time_off = $3, updated_at = $4
		WHERE id = $5 AND status NOT IN ('COMPLETED', 'CANCELLED', 'NO_SHOW')
		RETURNING slot_id
	`, model.AppointmentStatusCancelled, reason, byTimeOff, now, id)
	if err != nil {
		if isNoRows(err) {
			return apperr.InvalidTransition("appointment cannot be cancelled in its current state")
		}
		return fmt.Errorf("failed to cancel appointment: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE slots
		SET status = $1, appointment_id = NULL, patient_id = NULL, updated_at = $2
		WHERE id = $3
	`, model.SlotStatusAvailable, now, slotID); err != nil {
		return fmt.Errorf("failed to free slot: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit cancel: %w", err)
	}
	return nil
}

func (r *appointmentRepository) CancelForTimeOff(ctx context.Context, doctorID uuid.UUID, from, to time.Time, reason string) ([]*model.Appointment, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin time-off cancel transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now()
	var affected []*model.Appointment
	err = tx.SelectContext(ctx, &affected, `
		UPDATE appointments
		SET status = 'CANCELLED', cancel_reason = $1, cancelled_by_time_off = TRUE, updated_at = $2
		WHERE doctor_id = $3
		  AND date BETWEEN $4 AND $5
		  AND status NOT IN ('COMPLETED', 'CANCELLED', 'NO_SHOW')
		RETURNING `+appointmentColumns+`
	`, reason, now, doctorID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to cancel appointments for time off: %w", err)
	}

	for _, appt := range affected {
		if _, err := tx.ExecContext(ctx, `
			UPDATE slots
			SET status = $1, appointment_id = NULL, patient_id = NULL, updated_at = $2
			WHERE id = $3
		`, model.SlotStatusAvailable, now, appt.SlotID); err != nil {
			return nil, fmt.Errorf("failed to free slot: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit time-off cancel: %w", err)
	}
	return affected, nil
}

func (r *appointmentRepository) ListCancelledByTimeOff(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]*model.Appointment, error) {
	query := `
		SELECT ` + appointmentColumns + `
		FROM appointments
		WHERE doctor_id = $1 AND date = $2 AND cancelled_by_time_off = TRUE
		ORDER BY start_min ASC
	`
	var appts []*model.Appointment
	if err := r.db.SelectContext(ctx, &appts, query, doctorID, date); err != nil {
		return nil, fmt.Errorf("failed to list cancelled appointments: %w", err)
	}
	return appts, nil
}
