package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type OutboxStatus string

const (
	OutboxStatusPending    OutboxStatus = "PENDING"
	OutboxStatusProcessing OutboxStatus = "PROCESSING"
	OutboxStatusProcessed  OutboxStatus = "PROCESSED"
	OutboxStatusFailed     OutboxStatus = "FAILED"
)

// Domain event types emitted through the outbox.
const (
	EventSlotsGenerated       = "slots.generated"
	EventSlotBooked           = "slot.booked"
	EventSlotBlocked          = "slot.blocked"
	EventSlotUnblocked        = "slot.unblocked"
	EventAppointmentCancelled = "appointment.cancelled"
	EventTimeOffAdded         = "timeoff.added"
	EventQueueCheckedIn       = "queue.checked_in"
	EventQueueCalled          = "queue.called"
	EventQueueFinished        = "queue.finished"
)

// OutboxEvent is a transactional-outbox row: written alongside the state
// change that produced it, published asynchronously by the worker.
type OutboxEvent struct {
	ID           uuid.UUID       `db:"id" json:"id"`
	EventType    string          `db:"event_type" json:"event_type"`
	Payload      json.RawMessage `db:"payload" json:"payload"`
	Status       OutboxStatus    `db:"status" json:"status"`
	ErrorMessage *string         `db:"error_message" json:"error_message,omitempty"`
	RetryCount   int             `db:"retry_count" json:"retry_count"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time       `db:"updated_at" json:"updated_at"`
	ProcessedAt  *time.Time      `db:"processed_at" json:"processed_at,omitempty"`
}
