package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/klinikgo/klinik-api/internal/availability"
	"github.com/klinikgo/klinik-api/internal/models"
	"github.com/klinikgo/klinik-api/internal/repository"
	appErrors "github.com/klinikgo/klinik-api/pkg/errors"
)

type appointmentRepository interface {
	List(ctx context.Context, filter models.AppointmentFilter) ([]models.Appointment, int, error)
	FindByID(ctx context.Context, id string) (*models.Appointment, error)
	BookedSlots(ctx context.Context, doctorID, fromDate, toDate string) ([]availability.BookedSlot, error)
	Create(ctx context.Context, appointment *models.Appointment) error
	UpdateStatus(ctx context.Context, id string, status models.AppointmentStatus) error
}

type appointmentPatientRepository interface {
	FindByID(ctx context.Context, id string) (*models.Patient, error)
}

type availabilityInvalidator interface {
	Invalidate(ctx context.Context, doctorID string)
}

// AppointmentService handles booking and lifecycle of appointments.
type AppointmentService struct {
	appointments appointmentRepository
	doctors      availabilityDoctorRepository
	patients     appointmentPatientRepository
	invalidator  availabilityInvalidator
	validator    *validator.Validate
	logger       *zap.Logger
	metrics      *MetricsService
}

// WithMetrics attaches Prometheus instrumentation.
func (s *AppointmentService) WithMetrics(metrics *MetricsService) *AppointmentService {
	s.metrics = metrics
	return s
}

// NewAppointmentService constructs an AppointmentService.
func NewAppointmentService(appointments appointmentRepository, doctors availabilityDoctorRepository, patients appointmentPatientRepository, invalidator availabilityInvalidator, validate *validator.Validate, logger *zap.Logger) *AppointmentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &AppointmentService{
		appointments: appointments,
		doctors:      doctors,
		patients:     patients,
		invalidator:  invalidator,
		validator:    validate,
		logger:       logger,
	}
}

// Book creates an appointment after revalidating the slot against the
// doctor's schedule and current bookings. A lost race on the same slot is
// caught by the unique index and reported as a conflict.
func (s *AppointmentService) Book(ctx context.Context, req models.CreateAppointmentRequest) (*models.Appointment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid appointment payload")
	}

	doctor, err := s.doctors.FindByID(ctx, req.DoctorID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "doctor not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load doctor")
	}
	if !doctor.Active {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "doctor not found")
	}

	patient, err := s.patients.FindByID(ctx, req.PatientID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "patient not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load patient")
	}
	if !patient.Active {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "patient not found")
	}

	requestedTime, err := availability.NormalizeClock(req.Time)
	if err != nil {
		return nil, mapEngineError(err)
	}

	booked, err := s.appointments.BookedSlots(ctx, req.DoctorID, req.Date, req.Date)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load booked slots")
	}

	slots, err := availability.ComputeSlots(doctor.WeeklyWindow(), req.Date, booked)
	if err != nil {
		return nil, mapEngineError(err)
	}

	var slot *availability.Slot
	for i := range slots {
		if slots[i].Time == requestedTime {
			slot = &slots[i]
			break
		}
	}
	if slot == nil {
		s.metrics.RecordBooking("rejected")
		return nil, appErrors.Clone(appErrors.ErrValidation, "requested time is outside the doctor's schedule")
	}
	if !slot.Available {
		s.metrics.RecordBooking("conflict")
		return nil, appErrors.Clone(appErrors.ErrSlotUnavailable, "slot is already booked")
	}

	appointment := &models.Appointment{
		DoctorID:  req.DoctorID,
		PatientID: req.PatientID,
		Date:      req.Date,
		Time:      requestedTime,
		Status:    models.AppointmentBooked,
		Notes:     req.Notes,
	}
	if err := s.appointments.Create(ctx, appointment); err != nil {
		if errors.Is(err, repository.ErrDuplicateSlot) {
			s.metrics.RecordBooking("conflict")
			return nil, appErrors.Clone(appErrors.ErrSlotUnavailable, "slot is already booked")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create appointment")
	}

	s.metrics.RecordBooking("booked")
	if s.invalidator != nil {
		s.invalidator.Invalidate(ctx, req.DoctorID)
	}
	return appointment, nil
}

// Get returns one appointment by identifier.
func (s *AppointmentService) Get(ctx context.Context, id string) (*models.Appointment, error) {
	appointment, err := s.appointments.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "appointment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load appointment")
	}
	return appointment, nil
}

// List returns appointments with pagination metadata.
func (s *AppointmentService) List(ctx context.Context, filter models.AppointmentFilter) ([]models.Appointment, *models.Pagination, error) {
	appointments, total, err := s.appointments.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list appointments")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	return appointments, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

// Cancel transitions an appointment to cancelled and frees the slot.
func (s *AppointmentService) Cancel(ctx context.Context, id string) error {
	return s.transition(ctx, id, models.AppointmentCancelled, "appointment already completed")
}

// Complete marks a booked appointment as completed.
func (s *AppointmentService) Complete(ctx context.Context, id string) error {
	return s.transition(ctx, id, models.AppointmentCompleted, "appointment is not booked")
}

func (s *AppointmentService) transition(ctx context.Context, id string, target models.AppointmentStatus, conflictMsg string) error {
	appointment, err := s.appointments.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "appointment not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load appointment")
	}

	if appointment.Status != models.AppointmentBooked {
		return appErrors.Clone(appErrors.ErrConflict, conflictMsg)
	}

	if err := s.appointments.UpdateStatus(ctx, id, target); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "appointment not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update appointment")
	}

	if target == models.AppointmentCancelled && s.invalidator != nil {
		s.invalidator.Invalidate(ctx, appointment.DoctorID)
	}
	return nil
}
