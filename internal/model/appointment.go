package model

import (
	"time"

	"github.com/google/uuid"
)

type AppointmentStatus string

const (
	AppointmentStatusScheduled  AppointmentStatus = "SCHEDULED"
	AppointmentStatusConfirmed  AppointmentStatus = "CONFIRMED"
	AppointmentStatusCheckedIn  AppointmentStatus = "CHECKED_IN"
	AppointmentStatusInProgress AppointmentStatus = "IN_PROGRESS"
	AppointmentStatusCompleted  AppointmentStatus = "COMPLETED"
	AppointmentStatusCancelled  AppointmentStatus = "CANCELLED"
	AppointmentStatusNoShow     AppointmentStatus = "NO_SHOW"
)

// IsTerminal reports whether no further transitions are allowed.
func (s AppointmentStatus) IsTerminal() bool {
	return s == AppointmentStatusCompleted || s == AppointmentStatusCancelled || s == AppointmentStatusNoShow
}

// Appointment is created only by booking an AVAILABLE slot (1:1). It is
// never physically deleted: cancellation frees the slot but keeps the
// appointment as history.
type Appointment struct {
	ID                 uuid.UUID         `db:"id" json:"id"`
	SlotID             uuid.UUID         `db:"slot_id" json:"slot_id"`
	DoctorID           uuid.UUID         `db:"doctor_id" json:"doctor_id"`
	HospitalID         uuid.UUID         `db:"hospital_id" json:"hospital_id"`
	PatientID          uuid.UUID         `db:"patient_id" json:"patient_id"`
	Date               time.Time         `db:"date" json:"date"`
	StartMin           ClockMinutes      `db:"start_min" json:"start_time"`
	EndMin             ClockMinutes      `db:"end_min" json:"end_time"`
	Status             AppointmentStatus `db:"status" json:"status"`
	ReasonForVisit     string            `db:"reason_for_visit" json:"reason_for_visit,omitempty"`
	Notes              string            `db:"notes" json:"notes,omitempty"`
	CancelReason       *string           `db:"cancel_reason" json:"cancel_reason,omitempty"`
	CancelledByTimeOff bool              `db:"cancelled_by_time_off" json:"cancelled_by_time_off"`
	CreatedAt          time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time         `db:"updated_at" json:"updated_at"`
}
