package event

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinicore/scheduler-api/internal/model"
	"github.com/clinicore/scheduler-api/internal/repository"
)

// Emitter records domain events in the transactional outbox. Publishing
// to the broker happens asynchronously in the worker.
type Emitter struct {
	outboxRepo repository.OutboxRepository
	logger     zerolog.Logger
}

func NewEmitter(outboxRepo repository.OutboxRepository, logger zerolog.Logger) *Emitter {
	return &Emitter{
		outboxRepo: outboxRepo,
		logger:     logger.With().Str("component", "event_emitter").Logger(),
	}
}

func (e *Emitter) Emit(ctx context.Context, eventType string, payload interface{}) error {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal event payload: %w", err)
	}

	event := &model.OutboxEvent{
		ID:        uuid.New(),
		EventType: eventType,
		Payload:   payloadJSON,
		Status:    model.OutboxStatusPending,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}

	if err := e.outboxRepo.Create(ctx, event); err != nil {
		return fmt.Errorf("failed to create outbox event: %w", err)
	}

	e.logger.Debug().
		Str("event_type", eventType).
		Str("event_id", event.ID.String()).
		Msg("event queued")
	return nil
}

// EmitAsync queues an event and only logs on failure. Used where the
// triggering operation must not fail because the event could not be
// recorded.
func (e *Emitter) EmitAsync(ctx context.Context, eventType string, payload interface{}) {
	if err := e.Emit(ctx, eventType, payload); err != nil {
		e.logger.Error().Err(err).Str("event_type", eventType).Msg("failed to queue event")
	}
}
