package models

import "time"

// DashboardSummary aggregates headline clinic numbers for the admin landing page.
type DashboardSummary struct {
	Date                 string          `json:"date"`
	AppointmentsToday    int             `json:"appointments_today"`
	AppointmentsThisWeek int             `json:"appointments_this_week"`
	CancelledThisWeek    int             `json:"cancelled_this_week"`
	ActiveDoctors        int             `json:"active_doctors"`
	ActivePatients       int             `json:"active_patients"`
	DoctorUtilization    []DoctorDayLoad `json:"doctor_utilization"`
	UpcomingAppointments []Appointment   `json:"upcoming_appointments"`
	GeneratedAt          time.Time       `json:"generated_at"`
}

// DoctorDayLoad reports booked versus total slots for one doctor on one day.
type DoctorDayLoad struct {
	DoctorID   string  `json:"doctor_id"`
	DoctorName string  `json:"doctor_name"`
	Booked     int     `json:"booked"`
	Capacity   int     `json:"capacity"`
	LoadRatio  float64 `json:"load_ratio"`
}
