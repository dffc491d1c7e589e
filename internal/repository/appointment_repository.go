package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/klinikgo/klinik-api/internal/availability"
	"github.com/klinikgo/klinik-api/internal/models"
)

// ErrDuplicateSlot reports a violation of the partial unique index on
// (doctor_id, date, time) among non-cancelled appointments.
var ErrDuplicateSlot = fmt.Errorf("appointment slot already taken")

// AppointmentRepository manages persistence for appointments.
type AppointmentRepository struct {
	db *sqlx.DB
}

// NewAppointmentRepository constructs an AppointmentRepository.
func NewAppointmentRepository(db *sqlx.DB) *AppointmentRepository {
	return &AppointmentRepository{db: db}
}

const appointmentColumns = "id, doctor_id, patient_id, date, time, status, notes, created_at, updated_at"

// List returns appointments matching the provided filters with a total count.
func (r *AppointmentRepository) List(ctx context.Context, filter models.AppointmentFilter) ([]models.Appointment, int, error) {
	baseQuery := "FROM appointments WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.DoctorID != "" {
		conditions = append(conditions, fmt.Sprintf("doctor_id = $%d", len(args)+1))
		args = append(args, filter.DoctorID)
	}
	if filter.PatientID != "" {
		conditions = append(conditions, fmt.Sprintf("patient_id = $%d", len(args)+1))
		args = append(args, filter.PatientID)
	}
	if filter.Date != "" {
		conditions = append(conditions, fmt.Sprintf("date = $%d", len(args)+1))
		args = append(args, filter.Date)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}

	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
	}

	sortBy := filter.SortBy
	allowedSorts := map[string]bool{
		"date":       true,
		"time":       true,
		"created_at": true,
	}
	if sortBy == "" || !allowedSorts[sortBy] {
		sortBy = "date"
	}
	sortOrder := strings.ToUpper(filter.SortOrder)
	if sortOrder != "ASC" && sortOrder != "DESC" {
		sortOrder = "DESC"
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	query := fmt.Sprintf("SELECT %s %s ORDER BY %s %s, time %s LIMIT %d OFFSET %d", appointmentColumns, baseQuery, sortBy, sortOrder, sortOrder, pageSize, offset)

	var appointments []models.Appointment
	if err := r.db.SelectContext(ctx, &appointments, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list appointments: %w", err)
	}

	countQuery := "SELECT COUNT(*) " + baseQuery
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count appointments: %w", err)
	}
	return appointments, total, nil
}

// FindByID fetches an appointment by identifier.
func (r *AppointmentRepository) FindByID(ctx context.Context, id string) (*models.Appointment, error) {
	query := fmt.Sprintf("SELECT %s FROM appointments WHERE id = $1 LIMIT 1", appointmentColumns)
	var appointment models.Appointment
	if err := r.db.GetContext(ctx, &appointment, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find appointment by id: %w", err)
	}
	return &appointment, nil
}

// BookedSlots returns the occupied slots for a doctor within an inclusive
// date range, excluding cancelled appointments. The rows feed the
// availability engine directly.
func (r *AppointmentRepository) BookedSlots(ctx context.Context, doctorID, fromDate, toDate string) ([]availability.BookedSlot, error) {
	const query = `SELECT date, time FROM appointments
        WHERE doctor_id = $1 AND date >= $2 AND date <= $3 AND status <> $4
        ORDER BY date, time`
	var slots []availability.BookedSlot
	if err := r.db.SelectContext(ctx, &slots, query, doctorID, fromDate, toDate, models.AppointmentCancelled); err != nil {
		return nil, fmt.Errorf("booked slots: %w", err)
	}
	return slots, nil
}

// Create inserts a new appointment. A concurrent booking of the same slot
// trips the partial unique index and is surfaced as ErrDuplicateSlot.
func (r *AppointmentRepository) Create(ctx context.Context, appointment *models.Appointment) error {
	if appointment.ID == "" {
		appointment.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if appointment.CreatedAt.IsZero() {
		appointment.CreatedAt = now
	}
	appointment.UpdatedAt = now
	const query = `INSERT INTO appointments (id, doctor_id, patient_id, date, time, status, notes, created_at, updated_at)
        VALUES (:id, :doctor_id, :patient_id, :date, :time, :status, :notes, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, appointment); err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return ErrDuplicateSlot
		}
		return fmt.Errorf("create appointment: %w", err)
	}
	return nil
}

// UpdateStatus transitions an appointment to the given status.
func (r *AppointmentRepository) UpdateStatus(ctx context.Context, id string, status models.AppointmentStatus) error {
	const query = `UPDATE appointments SET status = $2, updated_at = $3 WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id, status, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update appointment status: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// CountByDateRange counts non-cancelled appointments between two dates inclusive.
func (r *AppointmentRepository) CountByDateRange(ctx context.Context, fromDate, toDate string) (int, error) {
	const query = `SELECT COUNT(*) FROM appointments WHERE date >= $1 AND date <= $2 AND status <> $3`
	var total int
	if err := r.db.GetContext(ctx, &total, query, fromDate, toDate, models.AppointmentCancelled); err != nil {
		return 0, fmt.Errorf("count appointments by range: %w", err)
	}
	return total, nil
}

// CountByStatusRange counts appointments in one status between two dates inclusive.
func (r *AppointmentRepository) CountByStatusRange(ctx context.Context, status models.AppointmentStatus, fromDate, toDate string) (int, error) {
	const query = `SELECT COUNT(*) FROM appointments WHERE date >= $1 AND date <= $2 AND status = $3`
	var total int
	if err := r.db.GetContext(ctx, &total, query, fromDate, toDate, status); err != nil {
		return 0, fmt.Errorf("count appointments by status: %w", err)
	}
	return total, nil
}

// Upcoming returns the next booked appointments starting from the given date.
func (r *AppointmentRepository) Upcoming(ctx context.Context, fromDate string, limit int) ([]models.Appointment, error) {
	if limit <= 0 || limit > 50 {
		limit = 10
	}
	query := fmt.Sprintf(`SELECT %s FROM appointments WHERE date >= $1 AND status = $2 ORDER BY date, time LIMIT %d`, appointmentColumns, limit)
	var appointments []models.Appointment
	if err := r.db.SelectContext(ctx, &appointments, query, fromDate, models.AppointmentBooked); err != nil {
		return nil, fmt.Errorf("upcoming appointments: %w", err)
	}
	return appointments, nil
}

// ListByRange returns non-cancelled appointments in a date range, optionally
// restricted to one doctor. Used by report generation.
func (r *AppointmentRepository) ListByRange(ctx context.Context, doctorID *string, fromDate, toDate string) ([]models.Appointment, error) {
	query := fmt.Sprintf("SELECT %s FROM appointments WHERE date >= $1 AND date <= $2 AND status <> $3", appointmentColumns)
	args := []interface{}{fromDate, toDate, models.AppointmentCancelled}
	if doctorID != nil && *doctorID != "" {
		query += fmt.Sprintf(" AND doctor_id = $%d", len(args)+1)
		args = append(args, *doctorID)
	}
	query += " ORDER BY date, time"
	var appointments []models.Appointment
	if err := r.db.SelectContext(ctx, &appointments, query, args...); err != nil {
		return nil, fmt.Errorf("list appointments by range: %w", err)
	}
	return appointments, nil
}
