package models

import "github.com/klinikgo/klinik-api/internal/availability"

// DoctorDayAvailability is the API payload for a single day of slots.
type DoctorDayAvailability struct {
	DoctorID string              `json:"doctor_id"`
	Date     string              `json:"date"`
	Slots    []availability.Slot `json:"slots"`
}

// DoctorRangeAvailability is the API payload for a multi-day availability query.
type DoctorRangeAvailability struct {
	DoctorID string                  `json:"doctor_id"`
	FromDate string                  `json:"from_date"`
	ToDate   string                  `json:"to_date"`
	Days     []availability.DaySlots `json:"days"`
}
