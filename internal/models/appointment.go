package models

import "time"

// AppointmentStatus enumerates the appointment lifecycle.
type AppointmentStatus string

const (
	AppointmentBooked    AppointmentStatus = "BOOKED"
	AppointmentCompleted AppointmentStatus = "COMPLETED"
	AppointmentCancelled AppointmentStatus = "CANCELLED"
)

// Appointment represents a booked slot for a doctor and patient. Date is the
// calendar day (YYYY-MM-DD) and Time the slot start (HH:MM); together with
// doctor_id they are unique among non-cancelled rows.
type Appointment struct {
	ID        string            `db:"id" json:"id"`
	DoctorID  string            `db:"doctor_id" json:"doctor_id"`
	PatientID string            `db:"patient_id" json:"patient_id"`
	Date      string            `db:"date" json:"date"`
	Time      string            `db:"time" json:"time"`
	Status    AppointmentStatus `db:"status" json:"status"`
	Notes     *string           `db:"notes" json:"notes,omitempty"`
	CreatedAt time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt time.Time         `db:"updated_at" json:"updated_at"`
}

// CreateAppointmentRequest is the payload for booking a slot.
type CreateAppointmentRequest struct {
	DoctorID  string  `json:"doctor_id" validate:"required,uuid4"`
	PatientID string  `json:"patient_id" validate:"required,uuid4"`
	Date      string  `json:"date" validate:"required"`
	Time      string  `json:"time" validate:"required"`
	Notes     *string `json:"notes,omitempty"`
}

// AppointmentFilter describes query params for listing appointments.
type AppointmentFilter struct {
	DoctorID  string
	PatientID string
	Date      string
	Status    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
