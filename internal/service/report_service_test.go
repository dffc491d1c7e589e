package service

import (
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/klinikgo/klinik-api/internal/availability"
	"github.com/klinikgo/klinik-api/internal/models"
	appErrors "github.com/klinikgo/klinik-api/pkg/errors"
	"github.com/klinikgo/klinik-api/pkg/jobs"
	"github.com/klinikgo/klinik-api/pkg/storage"
)

type mockReportJobRepo struct {
	jobs map[string]*models.ReportJob
}

func (m *mockReportJobRepo) Create(ctx context.Context, job *models.ReportJob) error {
	if m.jobs == nil {
		m.jobs = make(map[string]*models.ReportJob)
	}
	if job.ID == "" {
		job.ID = "job-1"
	}
	m.jobs[job.ID] = job
	return nil
}

func (m *mockReportJobRepo) FindByID(ctx context.Context, id string) (*models.ReportJob, error) {
	job, ok := m.jobs[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return job, nil
}

func (m *mockReportJobRepo) MarkProcessing(ctx context.Context, id string) error {
	m.jobs[id].Status = models.ReportStatusProcessing
	return nil
}

func (m *mockReportJobRepo) MarkFinished(ctx context.Context, id, resultURL string, finishedAt time.Time) error {
	job := m.jobs[id]
	job.Status = models.ReportStatusFinished
	job.ResultURL = &resultURL
	job.FinishedAt = &finishedAt
	return nil
}

func (m *mockReportJobRepo) MarkFailed(ctx context.Context, id, message string, finishedAt time.Time) error {
	job := m.jobs[id]
	job.Status = models.ReportStatusFailed
	job.ErrorMessage = &message
	job.FinishedAt = &finishedAt
	return nil
}

func (m *mockReportJobRepo) ListByUser(ctx context.Context, userID string, limit int) ([]models.ReportJob, error) {
	var out []models.ReportJob
	for _, job := range m.jobs {
		if job.CreatedBy == userID {
			out = append(out, *job)
		}
	}
	return out, nil
}

type mockReportAppointmentRepo struct {
	appointments []models.Appointment
	booked       []availability.BookedSlot
}

func (m *mockReportAppointmentRepo) ListByRange(ctx context.Context, doctorID *string, fromDate, toDate string) ([]models.Appointment, error) {
	return m.appointments, nil
}

func (m *mockReportAppointmentRepo) BookedSlots(ctx context.Context, doctorID, fromDate, toDate string) ([]availability.BookedSlot, error) {
	return m.booked, nil
}

type mockReportDoctorRepo struct {
	doctors []models.Doctor
}

func (m *mockReportDoctorRepo) List(ctx context.Context, filter models.DoctorFilter) ([]models.Doctor, int, error) {
	return m.doctors, len(m.doctors), nil
}

func (m *mockReportDoctorRepo) FindByID(ctx context.Context, id string) (*models.Doctor, error) {
	for i := range m.doctors {
		if m.doctors[i].ID == id {
			return &m.doctors[i], nil
		}
	}
	return nil, sql.ErrNoRows
}

func newReportFixture(t *testing.T, appointments *mockReportAppointmentRepo, doctors *mockReportDoctorRepo) (*ReportService, *mockReportJobRepo) {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("test-secret", time.Hour)
	repo := &mockReportJobRepo{}
	svc := NewReportService(repo, appointments, doctors, store, signer, validator.New(), zap.NewNop(), jobs.QueueConfig{Workers: 1})
	return svc, repo
}

func TestReportServiceEnqueueValidation(t *testing.T) {
	svc, _ := newReportFixture(t, &mockReportAppointmentRepo{}, &mockReportDoctorRepo{})

	_, err := svc.Enqueue(context.Background(), "u1", CreateReportRequest{
		Type:     models.ReportTypeAppointments,
		Format:   models.ReportFormatCSV,
		DateFrom: "2025-06-31",
		DateTo:   "2025-07-01",
	})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrInvalidDate.Code, appErr.Code)

	_, err = svc.Enqueue(context.Background(), "u1", CreateReportRequest{
		Type:     models.ReportTypeAppointments,
		Format:   models.ReportFormatCSV,
		DateFrom: "2025-06-10",
		DateTo:   "2025-06-01",
	})
	require.Error(t, err)
	appErr = appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrInvalidDate.Code, appErr.Code)
}

func TestReportServiceProcessAppointmentsCSV(t *testing.T) {
	appointments := &mockReportAppointmentRepo{appointments: []models.Appointment{
		{ID: "a1", DoctorID: "d1", PatientID: "p1", Date: "2025-06-09", Time: "09:00", Status: models.AppointmentBooked},
	}}
	svc, repo := newReportFixture(t, appointments, &mockReportDoctorRepo{})

	job := &models.ReportJob{
		ID:   "job-csv",
		Type: models.ReportTypeAppointments,
		Params: models.ReportJobParams{
			DateFrom: "2025-06-09",
			DateTo:   "2025-06-09",
			Format:   models.ReportFormatCSV,
		},
		CreatedBy: "u1",
	}
	require.NoError(t, repo.Create(context.Background(), job))

	require.NoError(t, svc.process(context.Background(), jobs.Job{ID: job.ID}))
	assert.Equal(t, models.ReportStatusFinished, repo.jobs[job.ID].Status)
	require.NotNil(t, repo.jobs[job.ID].ResultURL)

	relPath, err := svc.Download(*repo.jobs[job.ID].ResultURL)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(relPath, ".csv"))
}

func TestReportServiceProcessUtilizationPDF(t *testing.T) {
	doctor := *weekdayDoctor()
	appointments := &mockReportAppointmentRepo{booked: []availability.BookedSlot{{Date: "2025-06-09", Time: "09:00"}}}
	svc, repo := newReportFixture(t, appointments, &mockReportDoctorRepo{doctors: []models.Doctor{doctor}})

	job := &models.ReportJob{
		ID:   "job-pdf",
		Type: models.ReportTypeUtilization,
		Params: models.ReportJobParams{
			DateFrom: "2025-06-09",
			DateTo:   "2025-06-10",
			Format:   models.ReportFormatPDF,
		},
		CreatedBy: "u1",
	}
	require.NoError(t, repo.Create(context.Background(), job))

	require.NoError(t, svc.process(context.Background(), jobs.Job{ID: job.ID}))
	assert.Equal(t, models.ReportStatusFinished, repo.jobs[job.ID].Status)
}

func TestReportServiceGetForeignJob(t *testing.T) {
	svc, repo := newReportFixture(t, &mockReportAppointmentRepo{}, &mockReportDoctorRepo{})
	require.NoError(t, repo.Create(context.Background(), &models.ReportJob{ID: "job-x", CreatedBy: "owner"}))

	_, err := svc.Get(context.Background(), "intruder", "job-x", false)
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)

	job, err := svc.Get(context.Background(), "intruder", "job-x", true)
	require.NoError(t, err)
	assert.Equal(t, "job-x", job.ID)
}

func TestReportServiceDownloadTamperedToken(t *testing.T) {
	svc, _ := newReportFixture(t, &mockReportAppointmentRepo{}, &mockReportDoctorRepo{})

	_, err := svc.Download("not-a-valid-token")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
}
