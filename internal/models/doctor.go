package models

import (
	"time"

	"github.com/klinikgo/klinik-api/internal/availability"
)

// Doctor represents a practicing doctor together with the weekly schedule
// window used for slot generation.
type Doctor struct {
	ID          string    `db:"id" json:"id"`
	Email       string    `db:"email" json:"email"`
	FullName    string    `db:"full_name" json:"full_name"`
	Phone       *string   `db:"phone" json:"phone,omitempty"`
	Specialty   *string   `db:"specialty" json:"specialty,omitempty"`
	DayFrom     int       `db:"day_from" json:"day_from"`
	DayTo       int       `db:"day_to" json:"day_to"`
	WorkStart   string    `db:"work_start" json:"work_start"`
	WorkEnd     string    `db:"work_end" json:"work_end"`
	SlotMinutes int       `db:"slot_minutes" json:"slot_minutes"`
	Active      bool      `db:"active" json:"active"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// WeeklyWindow projects the schedule columns into the availability engine's
// input shape.
func (d Doctor) WeeklyWindow() availability.WeeklyWindow {
	return availability.WeeklyWindow{
		FromWeekday: d.DayFrom,
		ToWeekday:   d.DayTo,
		FromTime:    d.WorkStart,
		ToTime:      d.WorkEnd,
		SlotMinutes: d.SlotMinutes,
	}
}

// CreateDoctorRequest is the payload for registering a doctor.
type CreateDoctorRequest struct {
	Email       string  `json:"email" validate:"required,email"`
	FullName    string  `json:"full_name" validate:"required,min=3"`
	Phone       *string `json:"phone,omitempty"`
	Specialty   *string `json:"specialty,omitempty"`
	DayFrom     int     `json:"day_from" validate:"min=0,max=6"`
	DayTo       int     `json:"day_to" validate:"min=0,max=6"`
	WorkStart   string  `json:"work_start" validate:"required"`
	WorkEnd     string  `json:"work_end" validate:"required"`
	SlotMinutes int     `json:"slot_minutes" validate:"omitempty,min=5,max=240"`
}

// UpdateDoctorRequest is the payload for updating a doctor.
type UpdateDoctorRequest struct {
	Email       string  `json:"email" validate:"required,email"`
	FullName    string  `json:"full_name" validate:"required,min=3"`
	Phone       *string `json:"phone,omitempty"`
	Specialty   *string `json:"specialty,omitempty"`
	DayFrom     int     `json:"day_from" validate:"min=0,max=6"`
	DayTo       int     `json:"day_to" validate:"min=0,max=6"`
	WorkStart   string  `json:"work_start" validate:"required"`
	WorkEnd     string  `json:"work_end" validate:"required"`
	SlotMinutes int     `json:"slot_minutes" validate:"omitempty,min=5,max=240"`
	Active      *bool   `json:"active,omitempty"`
}

// DoctorFilter captures filtering criteria for listing doctors.
type DoctorFilter struct {
	Active    *bool
	Specialty string
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
