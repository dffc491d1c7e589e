package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/klinikgo/klinik-api/internal/availability"
	"github.com/klinikgo/klinik-api/internal/models"
	"github.com/klinikgo/klinik-api/internal/repository"
	appErrors "github.com/klinikgo/klinik-api/pkg/errors"
)

type mockAppointmentRepo struct {
	booked     []availability.BookedSlot
	byID       *models.Appointment
	created    []*models.Appointment
	createErr  error
	statusLog  map[string]models.AppointmentStatus
	listResult []models.Appointment
}

func (m *mockAppointmentRepo) List(ctx context.Context, filter models.AppointmentFilter) ([]models.Appointment, int, error) {
	return m.listResult, len(m.listResult), nil
}

func (m *mockAppointmentRepo) FindByID(ctx context.Context, id string) (*models.Appointment, error) {
	if m.byID == nil {
		return nil, sql.ErrNoRows
	}
	return m.byID, nil
}

func (m *mockAppointmentRepo) BookedSlots(ctx context.Context, doctorID, fromDate, toDate string) ([]availability.BookedSlot, error) {
	return m.booked, nil
}

func (m *mockAppointmentRepo) Create(ctx context.Context, appointment *models.Appointment) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.created = append(m.created, appointment)
	return nil
}

func (m *mockAppointmentRepo) UpdateStatus(ctx context.Context, id string, status models.AppointmentStatus) error {
	if m.statusLog == nil {
		m.statusLog = make(map[string]models.AppointmentStatus)
	}
	m.statusLog[id] = status
	return nil
}

type mockPatientRepo struct {
	patient *models.Patient
	err     error
}

func (m *mockPatientRepo) FindByID(ctx context.Context, id string) (*models.Patient, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.patient, nil
}

type recordingInvalidator struct {
	doctorIDs []string
}

func (r *recordingInvalidator) Invalidate(ctx context.Context, doctorID string) {
	r.doctorIDs = append(r.doctorIDs, doctorID)
}

func bookingFixture() (*mockAppointmentRepo, *mockAvailabilityDoctorRepo, *mockPatientRepo, *recordingInvalidator, models.CreateAppointmentRequest) {
	doctorID := uuid.NewString()
	patientID := uuid.NewString()
	doctor := weekdayDoctor()
	doctor.ID = doctorID
	appointments := &mockAppointmentRepo{}
	doctors := &mockAvailabilityDoctorRepo{doctor: doctor}
	patients := &mockPatientRepo{patient: &models.Patient{ID: patientID, FullName: "Pat", Active: true}}
	invalidator := &recordingInvalidator{}
	req := models.CreateAppointmentRequest{
		DoctorID:  doctorID,
		PatientID: patientID,
		Date:      "2025-06-09",
		Time:      "09:00",
	}
	return appointments, doctors, patients, invalidator, req
}

func TestAppointmentServiceBookSuccess(t *testing.T) {
	appointments, doctors, patients, invalidator, req := bookingFixture()
	svc := NewAppointmentService(appointments, doctors, patients, invalidator, validator.New(), zap.NewNop())

	appointment, err := svc.Book(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, models.AppointmentBooked, appointment.Status)
	assert.Equal(t, "09:00", appointment.Time)
	require.Len(t, appointments.created, 1)
	assert.Equal(t, []string{req.DoctorID}, invalidator.doctorIDs)
}

func TestAppointmentServiceBookTruncatesSeconds(t *testing.T) {
	appointments, doctors, patients, invalidator, req := bookingFixture()
	req.Time = "09:00:45"
	svc := NewAppointmentService(appointments, doctors, patients, invalidator, validator.New(), zap.NewNop())

	appointment, err := svc.Book(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "09:00", appointment.Time)
}

func TestAppointmentServiceBookOccupiedSlot(t *testing.T) {
	appointments, doctors, patients, invalidator, req := bookingFixture()
	appointments.booked = []availability.BookedSlot{{Date: req.Date, Time: req.Time}}
	svc := NewAppointmentService(appointments, doctors, patients, invalidator, validator.New(), zap.NewNop())

	_, err := svc.Book(context.Background(), req)
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrSlotUnavailable.Code, appErr.Code)
	assert.Empty(t, appointments.created)
}

func TestAppointmentServiceBookOffGridTime(t *testing.T) {
	appointments, doctors, patients, invalidator, req := bookingFixture()
	req.Time = "09:30"
	svc := NewAppointmentService(appointments, doctors, patients, invalidator, validator.New(), zap.NewNop())

	_, err := svc.Book(context.Background(), req)
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestAppointmentServiceBookOffDay(t *testing.T) {
	appointments, doctors, patients, invalidator, req := bookingFixture()
	req.Date = "2025-06-08"
	svc := NewAppointmentService(appointments, doctors, patients, invalidator, validator.New(), zap.NewNop())

	_, err := svc.Book(context.Background(), req)
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestAppointmentServiceBookLostRace(t *testing.T) {
	appointments, doctors, patients, invalidator, req := bookingFixture()
	appointments.createErr = repository.ErrDuplicateSlot
	svc := NewAppointmentService(appointments, doctors, patients, invalidator, validator.New(), zap.NewNop())

	_, err := svc.Book(context.Background(), req)
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrSlotUnavailable.Code, appErr.Code)
}

func TestAppointmentServiceBookInactivePatient(t *testing.T) {
	appointments, doctors, patients, invalidator, req := bookingFixture()
	patients.patient.Active = false
	svc := NewAppointmentService(appointments, doctors, patients, invalidator, validator.New(), zap.NewNop())

	_, err := svc.Book(context.Background(), req)
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

func TestAppointmentServiceCancel(t *testing.T) {
	appointments, doctors, patients, invalidator, _ := bookingFixture()
	appointments.byID = &models.Appointment{ID: "a1", DoctorID: "d1", Status: models.AppointmentBooked}
	svc := NewAppointmentService(appointments, doctors, patients, invalidator, validator.New(), zap.NewNop())

	require.NoError(t, svc.Cancel(context.Background(), "a1"))
	assert.Equal(t, models.AppointmentCancelled, appointments.statusLog["a1"])
	assert.Equal(t, []string{"d1"}, invalidator.doctorIDs)
}

func TestAppointmentServiceCancelAlreadyCancelled(t *testing.T) {
	appointments, doctors, patients, invalidator, _ := bookingFixture()
	appointments.byID = &models.Appointment{ID: "a1", Status: models.AppointmentCancelled}
	svc := NewAppointmentService(appointments, doctors, patients, invalidator, validator.New(), zap.NewNop())

	err := svc.Cancel(context.Background(), "a1")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
}

func TestAppointmentServiceCompleteNotFound(t *testing.T) {
	appointments, doctors, patients, invalidator, _ := bookingFixture()
	svc := NewAppointmentService(appointments, doctors, patients, invalidator, validator.New(), zap.NewNop())

	err := svc.Complete(context.Background(), "missing")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}
