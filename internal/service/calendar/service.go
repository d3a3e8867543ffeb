package calendar

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinicore/scheduler-api/internal/model"
	"github.com/clinicore/scheduler-api/internal/repository"
	apperr "github.com/clinicore/scheduler-api/pkg/errors"
)

// Service aggregates live slot state into month views. Summaries are
// recomputed from slots on every read, so bookings and cancellations
// are visible immediately.
type Service struct {
	slotRepo   repository.SlotRepository
	doctorRepo repository.DoctorRepository
	logger     zerolog.Logger
}

func NewService(slotRepo repository.SlotRepository, doctorRepo repository.DoctorRepository, logger zerolog.Logger) *Service {
	return &Service{
		slotRepo:   slotRepo,
		doctorRepo: doctorRepo,
		logger:     logger.With().Str("component", "calendar_service").Logger(),
	}
}

// MonthSummary returns one entry per calendar day of the month. Days
// without generated slots report HasSlots=false with zero counts.
func (s *Service) MonthSummary(ctx context.Context, doctorID uuid.UUID, year, month int) ([]*model.CalendarDaySummary, error) {
	if month < 1 || month > 12 {
		return nil, apperr.Validation("month must be between 1 and 12")
	}
	if year < 2000 || year > 2200 {
		return nil, apperr.Validation("year out of range")
	}
	if _, err := s.doctorRepo.Get(ctx, doctorID); err != nil {
		return nil, err
	}

	first := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(0, 1, -1)

	counts, err := s.slotRepo.CountByDay(ctx, doctorID, first, last)
	if err != nil {
		return nil, err
	}

	byDate := make(map[string]*model.CalendarDaySummary, len(counts))
	for _, c := range counts {
		byDate[c.Date] = c
	}

	days := make([]*model.CalendarDaySummary, 0, last.Day())
	for d := first; !d.After(last); d = d.AddDate(0, 0, 1) {
		key := model.FormatDate(d)
		if c, ok := byDate[key]; ok {
			c.HasSlots = true
			days = append(days, c)
			continue
		}
		days = append(days, &model.CalendarDaySummary{Date: key})
	}
	return days, nil
}
