package models

import "time"

// Patient represents a registered patient record.
type Patient struct {
	ID          string     `db:"id" json:"id"`
	FullName    string     `db:"full_name" json:"full_name"`
	Email       *string    `db:"email" json:"email,omitempty"`
	Phone       *string    `db:"phone" json:"phone,omitempty"`
	BirthDate   *time.Time `db:"birth_date" json:"birth_date,omitempty"`
	Address     *string    `db:"address" json:"address,omitempty"`
	MedicalNote *string    `db:"medical_note" json:"medical_note,omitempty"`
	Active      bool       `db:"active" json:"active"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}

// CreatePatientRequest is the payload for registering a patient.
type CreatePatientRequest struct {
	FullName    string     `json:"full_name" validate:"required,min=3"`
	Email       *string    `json:"email,omitempty" validate:"omitempty,email"`
	Phone       *string    `json:"phone,omitempty"`
	BirthDate   *time.Time `json:"birth_date,omitempty"`
	Address     *string    `json:"address,omitempty"`
	MedicalNote *string    `json:"medical_note,omitempty"`
}

// UpdatePatientRequest is the payload for updating a patient.
type UpdatePatientRequest struct {
	FullName    string     `json:"full_name" validate:"required,min=3"`
	Email       *string    `json:"email,omitempty" validate:"omitempty,email"`
	Phone       *string    `json:"phone,omitempty"`
	BirthDate   *time.Time `json:"birth_date,omitempty"`
	Address     *string    `json:"address,omitempty"`
	MedicalNote *string    `json:"medical_note,omitempty"`
	Active      *bool      `json:"active,omitempty"`
}

// PatientFilter captures filtering criteria for listing patients.
type PatientFilter struct {
	Active    *bool
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
