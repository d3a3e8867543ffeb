package model

import (
	"time"

	"github.com/google/uuid"
)

type SlotStatus string

const (
	SlotStatusAvailable SlotStatus = "AVAILABLE"
	SlotStatusBooked    SlotStatus = "BOOKED"
	SlotStatusBlocked   SlotStatus = "BLOCKED"
)

// Slot is a single bookable time window for one doctor on one date.
// StartMin/EndMin are minutes since midnight of Date; EndMin may exceed
// 24:00 for night slots that run past midnight. Invariant:
// EndMin-StartMin == DurationMin, and slots for the same doctor/date
// never overlap.
type Slot struct {
	ID            uuid.UUID    `db:"id" json:"id"`
	DoctorID      uuid.UUID    `db:"doctor_id" json:"doctor_id"`
	HospitalID    uuid.UUID    `db:"hospital_id" json:"hospital_id"`
	Date          time.Time    `db:"date" json:"date"`
	StartMin      ClockMinutes `db:"start_min" json:"start_time"`
	EndMin        ClockMinutes `db:"end_min" json:"end_time"`
	DurationMin   int          `db:"duration_min" json:"duration_min"`
	Period        ShiftPeriod  `db:"period" json:"period"`
	Status        SlotStatus   `db:"status" json:"status"`
	AppointmentID *uuid.UUID   `db:"appointment_id" json:"appointment_id,omitempty"`
	PatientID     *uuid.UUID   `db:"patient_id" json:"patient_id,omitempty"`
	CreatedAt     time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time    `db:"updated_at" json:"updated_at"`
}

// GenerateResult reports one Generate call: slots created plus dates
// skipped because they were already populated or resolved as off.
type GenerateResult struct {
	SlotsGenerated int `json:"slots_generated"`
	SlotsSkipped   int `json:"slots_skipped"`
}

type SlotStats struct {
	Total     int `json:"total"`
	Available int `json:"available"`
	Booked    int `json:"booked"`
	Blocked   int `json:"blocked"`
}

// DaySlots is the GetSlotsForDate view: slots grouped by period, counts,
// and any appointments disrupted by time off over this date.
type DaySlots struct {
	Date                  string         `json:"date"`
	IsTimeOff             bool           `json:"is_time_off"`
	TimeOffReason         string         `json:"time_off_reason,omitempty"`
	Morning               []*Slot        `json:"morning"`
	Evening               []*Slot        `json:"evening"`
	Night                 []*Slot        `json:"night"`
	Stats                 SlotStats      `json:"stats"`
	CancelledAppointments []*Appointment `json:"cancelled_appointments"`
}

type GenerateSlotsRequest struct {
	StartDate string `json:"start_date" binding:"required"`
	EndDate   string `json:"end_date" binding:"required"`
}

type BookSlotRequest struct {
	PatientID      uuid.UUID `json:"patient_id" binding:"required"`
	ReasonForVisit string    `json:"reason_for_visit" binding:"max=500"`
	Notes          string    `json:"notes" binding:"max=1000"`
}
