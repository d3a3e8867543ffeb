package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/clinicore/scheduler-api/internal/model"
	apperr "github.com/clinicore/scheduler-api/pkg/errors"
)

func (r *scheduleRepository) ListWeekly(ctx context.Context, doctorID uuid.UUID) ([]*model.WeeklySchedule, error) {
	query := `
		SELECT id, doctor_id, weekday, is_working, morning, evening, night, updated_at
		FROM weekly_schedules
		WHERE doctor_id = $1
		ORDER BY weekday ASC
	`
	var rows []*model.WeeklySchedule
	if err := r.db.SelectContext(ctx, &rows, query, doctorID); err != nil {
		return nil, fmt.Errorf("failed to list weekly schedule: %w", err)
	}
	return rows, nil
}

// ReplaceWeekly swaps the doctor's full seven-row pattern in one
// transaction so readers never see a partial week.
func (r *scheduleRepository) ReplaceWeekly(ctx context.Context, doctorID uuid.UUID, rows []*model.WeeklySchedule) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin schedule transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM weekly_schedules WHERE doctor_id = $1`, doctorID); err != nil {
		return fmt.Errorf("failed to clear weekly schedule: %w", err)
	}

	now := time.Now()
	for _, row := range rows {
		if row.ID == uuid.Nil {
			row.ID = uuid.New()
		}
		row.DoctorID = doctorID
		row.UpdatedAt = now
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO weekly_schedules (
				id, doctor_id, weekday, is_working, morning, evening, night, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`, row.ID, row.DoctorID, row.Weekday, row.IsWorking,
			row.Morning, row.Evening, row.Night, row.UpdatedAt); err != nil {
			return fmt.Errorf("failed to insert weekly schedule row: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit weekly schedule: %w", err)
	}
	return nil
}

// GetShiftTiming prefers the doctor-specific config, falls back to the
// hospital's, then to platform defaults.
func (r *scheduleRepository) GetShiftTiming(ctx context.Context, hospitalID uuid.UUID, doctorID uuid.UUID) (*model.ShiftTimingConfig, error) {
	query := `
		SELECT hospital_id, doctor_id, morning_start, morning_end,
			   evening_start, evening_end, night_start, night_end
		FROM shift_timing_configs
		WHERE hospital_id = $1 AND (doctor_id = $2 OR doctor_id IS NULL)
		ORDER BY doctor_id NULLS LAST
		LIMIT 1
	`
	var cfg model.ShiftTimingConfig
	if err := r.db.GetContext(ctx, &cfg, query, hospitalID, doctorID); err != nil {
		if isNoRows(err) {
			def := model.DefaultShiftTimingConfig()
			def.HospitalID = hospitalID
			return def, nil
		}
		return nil, fmt.Errorf("failed to get shift timing config: %w", err)
	}
	return &cfg, nil
}

func (r *scheduleRepository) SetShiftTiming(ctx context.Context, cfg *model.ShiftTimingConfig) error {
	query := `
		INSERT INTO shift_timing_configs (
			hospital_id, doctor_id, morning_start, morning_end,
			evening_start, evening_end, night_start, night_end
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (hospital_id, doctor_id) DO UPDATE SET
			morning_start = EXCLUDED.morning_start,
			morning_end = EXCLUDED.morning_end,
			evening_start = EXCLUDED.evening_start,
			evening_end = EXCLUDED.evening_end,
			night_start = EXCLUDED.night_start,
			night_end = EXCLUDED.night_end
	`
	if _, err := r.db.ExecContext(ctx, query,
		cfg.HospitalID, cfg.DoctorID,
		cfg.MorningStart, cfg.MorningEnd,
		cfg.EveningStart, cfg.EveningEnd,
		cfg.NightStart, cfg.NightEnd); err != nil {
		return fmt.Errorf("failed to set shift timing config: %w", err)
	}
	return nil
}

func (r *scheduleRepository) ListTimeOff(ctx context.Context, doctorID uuid.UUID) ([]*model.TimeOff, error) {
	query := `
		SELECT id, doctor_id, start_date, end_date, reason, status, created_at
		FROM time_off
		WHERE doctor_id = $1 AND status = $2
		ORDER BY start_date ASC
	`
	var ranges []*model.TimeOff
	if err := r.db.SelectContext(ctx, &ranges, query, doctorID, model.TimeOffStatusActive); err != nil {
		return nil, fmt.Errorf("failed to list time off: %w", err)
	}
	return ranges, nil
}

func (r *scheduleRepository) CreateTimeOff(ctx context.Context, timeOff *model.TimeOff) error {
	if timeOff.ID == uuid.Nil {
		timeOff.ID = uuid.New()
	}
	timeOff.CreatedAt = time.Now()
	query := `
		INSERT INTO time_off (id, doctor_id, start_date, end_date, reason, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	if _, err := r.db.ExecContext(ctx, query,
		timeOff.ID, timeOff.DoctorID, timeOff.StartDate, timeOff.EndDate,
		timeOff.Reason, timeOff.Status, timeOff.CreatedAt); err != nil {
		return fmt.Errorf("failed to create time off: %w", err)
	}
	return nil
}

func (r *scheduleRepository) DeleteTimeOff(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE time_off SET status = $1 WHERE id = $2 AND status = $3
	`, model.TimeOffStatusCancelled, id, model.TimeOffStatusActive)
	if err != nil {
		return fmt.Errorf("failed to delete time off: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return apperr.NotFound("time off")
	}
	return nil
}

func (r *scheduleRepository) ListHolidays(ctx context.Context, hospitalID uuid.UUID) ([]*model.HolidayOverride, error) {
	query := `
		SELECT id, hospital_id, month, day, name
		FROM holiday_overrides
		WHERE hospital_id = $1
		ORDER BY month ASC, day ASC
	`
	var holidays []*model.HolidayOverride
	if err := r.db.SelectContext(ctx, &holidays, query, hospitalID); err != nil {
		return nil, fmt.Errorf("failed to list holidays: %w", err)
	}
	return holidays, nil
}
