package model

import (
	"time"

	"github.com/google/uuid"
)

type QueuePriority string

const (
	QueuePriorityNormal    QueuePriority = "NORMAL"
	QueuePriorityUrgent    QueuePriority = "URGENT"
	QueuePriorityEmergency QueuePriority = "EMERGENCY"
)

// Rank orders priorities for call-next selection; higher goes first.
func (p QueuePriority) Rank() int {
	switch p {
	case QueuePriorityEmergency:
		return 3
	case QueuePriorityUrgent:
		return 2
	default:
		return 1
	}
}

func (p QueuePriority) Valid() bool {
	switch p {
	case QueuePriorityNormal, QueuePriorityUrgent, QueuePriorityEmergency:
		return true
	}
	return false
}

type QueueStatus string

const (
	QueueStatusWaiting    QueueStatus = "WAITING"
	QueueStatusWithDoctor QueueStatus = "WITH_DOCTOR"
	QueueStatusCompleted  QueueStatus = "COMPLETED"
	QueueStatusNoShow     QueueStatus = "NO_SHOW"
	QueueStatusLeft       QueueStatus = "LEFT"
)

func (s QueueStatus) IsTerminal() bool {
	return s == QueueStatusCompleted || s == QueueStatusNoShow || s == QueueStatusLeft
}

// QueueEntry is a patient's position in a doctor's live daily queue.
// Queue numbers are assigned per (doctor, date) starting at 1 and never
// reused. AppointmentID is nil for walk-ins.
type QueueEntry struct {
	ID            uuid.UUID     `db:"id" json:"id"`
	DoctorID      uuid.UUID     `db:"doctor_id" json:"doctor_id"`
	HospitalID    uuid.UUID     `db:"hospital_id" json:"hospital_id"`
	Date          time.Time     `db:"date" json:"date"`
	QueueNumber   int           `db:"queue_number" json:"queue_number"`
	AppointmentID *uuid.UUID    `db:"appointment_id" json:"appointment_id,omitempty"`
	PatientID     *uuid.UUID    `db:"patient_id" json:"patient_id,omitempty"`
	PatientName   string        `db:"patient_name" json:"patient_name,omitempty"`
	Priority      QueuePriority `db:"priority" json:"priority"`
	Status        QueueStatus   `db:"status" json:"status"`
	CheckedInAt   time.Time     `db:"checked_in_at" json:"checked_in_at"`
	StartedAt     *time.Time    `db:"started_at" json:"started_at,omitempty"`
	CompletedAt   *time.Time    `db:"completed_at" json:"completed_at,omitempty"`
}

type CheckInRequest struct {
	AppointmentID *uuid.UUID    `json:"appointment_id,omitempty"`
	PatientID     *uuid.UUID    `json:"patient_id,omitempty"`
	PatientName   string        `json:"patient_name,omitempty" binding:"max=200"`
	Priority      QueuePriority `json:"priority,omitempty"`
	Date          string        `json:"date,omitempty"`
}

type QueueStats struct {
	Total          int     `json:"total"`
	Waiting        int     `json:"waiting"`
	Completed      int     `json:"completed"`
	NoShow         int     `json:"no_show"`
	Left           int     `json:"left"`
	AvgWaitSeconds float64 `json:"avg_wait_seconds"`
}

// DailyQueue is the live view for one doctor and date: at most one entry
// with the doctor, the waiting line in call order, and the day's history.
// IsCheckedIn is set only when the caller asked about a specific patient
// and reports whether that patient holds a non-terminal entry.
type DailyQueue struct {
	Date        string        `json:"date"`
	IsCheckedIn *bool         `json:"is_checked_in,omitempty"`
	WithDoctor  *QueueEntry   `json:"with_doctor,omitempty"`
	Waiting     []*QueueEntry `json:"waiting"`
	Finished    []*QueueEntry `json:"finished"`
	Stats       QueueStats    `json:"stats"`
}
