package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/clinicore/scheduler-api/internal/model"
	apperr "github.com/clinicore/scheduler-api/pkg/errors"
)

const queueColumns = `
	id, doctor_id, hospital_id, date, queue_number, appointment_id,
	patient_id, patient_name, priority, status, checked_in_at,
	started_at, completed_at
`

// call-next ordering: priority rank descending, then arrival order.
const queuePriorityRank = `
	CASE priority
		WHEN 'EMERGENCY' THEN 3
		WHEN 'URGENT' THEN 2
		ELSE 1
	END
`

func (r *queueRepository) CheckIn(ctx context.Context, entry *model.QueueEntry) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin check-in transaction: %w", err)
	}
	defer tx.Rollback()

	key := entry.DoctorID.String() + ":" + entry.Date.Format("2006-01-02")
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, key); err != nil {
		return fmt.Errorf("failed to acquire queue lock: %w", err)
	}

	var next int
	if err := tx.GetContext(ctx, &next, `
		SELECT COALESCE(MAX(queue_number), 0) + 1
		FROM queue_entries
		WHERE doctor_id = $1 AND date = $2
	`, entry.DoctorID, entry.Date); err != nil {
		return fmt.Errorf("failed to compute queue number: %w", err)
	}
	entry.QueueNumber = next

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO queue_entries (
			id, doctor_id, hospital_id, date, queue_number, appointment_id,
			patient_id, patient_name, priority, status, checked_in_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, entry.ID, entry.DoctorID, entry.HospitalID, entry.Date, entry.QueueNumber,
		entry.AppointmentID, entry.PatientID, entry.PatientName,
		entry.Priority, entry.Status, entry.CheckedInAt); err != nil {
		return fmt.Errorf("failed to create queue entry: %w", err)
	}

	if entry.AppointmentID != nil {
		if _, err := tx.ExecContext(ctx, `
			UPDATE appointments
			SET status = $1, updated_at = $2
			WHERE id = $3 AND status IN ('SCHEDULED', 'CONFIRMED')
		`, model.AppointmentStatusCheckedIn, time.Now(), *entry.AppointmentID); err != nil {
			return fmt.Errorf("failed to check in appointment: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit check-in: %w", err)
	}
	return nil
}

func (r *queueRepository) Get(ctx context.Context, id uuid.UUID) (*model.QueueEntry, error) {
	query := `SELECT ` + queueColumns + ` FROM queue_entries WHERE id = $1`
	var entry model.QueueEntry
	if err := r.db.GetContext(ctx, &entry, query, id); err != nil {
		if isNoRows(err) {
			return nil, apperr.NotFound("queue entry")
		}
		return nil, fmt.Errorf("failed to get queue entry: %w", err)
	}
	return &entry, nil
}

// ClaimNext enforces the single-active-consultation invariant: the busy
// check and the claim happen under the same advisory lock.
func (r *queueRepository) ClaimNext(ctx context.Context, doctorID uuid.UUID, date time.Time) (*model.QueueEntry, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin call-next transaction: %w", err)
	}
	defer tx.Rollback()

	key := doctorID.String() + ":" + date.Format("2006-01-02")
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, key); err != nil {
		return nil, fmt.Errorf("failed to acquire queue lock: %w", err)
	}

	var busy bool
	if err := tx.GetContext(ctx, &busy, `
		SELECT EXISTS (
			SELECT 1 FROM queue_entries
			WHERE doctor_id = $1 AND date = $2 AND status = 'WITH_DOCTOR'
		)
	`, doctorID, date); err != nil {
		return nil, fmt.Errorf("failed to check doctor status: %w", err)
	}
	if busy {
		return nil, apperr.DoctorBusy("a consultation is already in progress")
	}

	now := time.Now()
	var entry model.QueueEntry
	err = tx.GetContext(ctx, &entry, `
		UPDATE queue_entries
		SET status = 'WITH_DOCTOR', started_at = $1
		WHERE id = (
			SELECT id FROM queue_entries
			WHERE doctor_id = $2 AND date = $3 AND status = 'WAITING'
			ORDER BY `+queuePriorityRank+` DESC, queue_number ASC
			LIMIT 1
		)
		RETURNING `+queueColumns+`
	`, now, doctorID, date)
	if err != nil {
		if isNoRows(err) {
			return nil, apperr.NotFound("waiting queue entry")
		}
		return nil, fmt.Errorf("failed to claim next queue entry: %w", err)
	}

	if entry.AppointmentID != nil {
		if _, err := tx.ExecContext(ctx, `
			UPDATE appointments
			SET status = $1, updated_at = $2
			WHERE id = $3 AND status NOT IN ('COMPLETED', 'CANCELLED', 'NO_SHOW')
		`, model.AppointmentStatusInProgress, now, *entry.AppointmentID); err != nil {
			return nil, fmt.Errorf("failed to start appointment: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit call-next: %w", err)
	}
	return &entry, nil
}

// Finish applies a terminal queue transition and keeps the linked
// appointment causally in step inside the same transaction.
func (r *queueRepository) Finish(ctx context.Context, id uuid.UUID, status model.QueueStatus) (*model.QueueEntry, error) {
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
		return nil, apperr.InvalidTransition(fmt.Sprintf("%s is not a terminal queue status", status))
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin finish transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now()
	var entry model.QueueEntry
	err = tx.GetContext(ctx, &entry, `
		UPDATE queue_entries
		SET status = $1, completed_at = $2
		WHERE id = $3 AND status = $4
		RETURNING `+queueColumns+`
	`, status, now, id, requiredFrom)
	if err != nil {
		if isNoRows(err) {
			if _, getErr := r.Get(ctx, id); getErr != nil {
				return nil, getErr
			}
			return nil, apperr.InvalidTransition(fmt.Sprintf("queue entry must be %s", requiredFrom))
		}
		return nil, fmt.Errorf("failed to finish queue entry: %w", err)
	}

	if entry.AppointmentID != nil && apptStatus != "" {
		if _, err := tx.ExecContext(ctx, `
			UPDATE appointments
			SET status = $1, updated_at = $2
			WHERE id = $3 AND status NOT IN ('COMPLETED', 'CANCELLED', 'NO_SHOW')
		`, apptStatus, now, *entry.AppointmentID); err != nil {
			return nil, fmt.Errorf("failed to finish appointment: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit finish: %w", err)
	}
	return &entry, nil
}

func (r *queueRepository) ListForDay(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]*model.QueueEntry, error) {
	query := `
		SELECT ` + queueColumns + `
		FROM queue_entries
		WHERE doctor_id = $1 AND date = $2
		ORDER BY ` + queuePriorityRank + ` DESC, queue_number ASC
	`
	var entries []*model.QueueEntry
	if err := r.db.SelectContext(ctx, &entries, query, doctorID, date); err != nil {
		return nil, fmt.Errorf("failed to list queue entries: %w", err)
	}
	return entries, nil
}
