package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/klinikgo/klinik-api/internal/models"
	appErrors "github.com/klinikgo/klinik-api/pkg/errors"
)

type mockDoctorRepo struct {
	doctors     map[string]*models.Doctor
	emailExists bool
	created     []*models.Doctor
	updated     []*models.Doctor
	deactivated []string
}

func (m *mockDoctorRepo) List(ctx context.Context, filter models.DoctorFilter) ([]models.Doctor, int, error) {
	var out []models.Doctor
	for _, d := range m.doctors {
		out = append(out, *d)
	}
	return out, len(out), nil
}

func (m *mockDoctorRepo) FindByID(ctx context.Context, id string) (*models.Doctor, error) {
	d, ok := m.doctors[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return d, nil
}

func (m *mockDoctorRepo) ExistsByEmail(ctx context.Context, email, excludeID string) (bool, error) {
	return m.emailExists, nil
}

func (m *mockDoctorRepo) Create(ctx context.Context, doctor *models.Doctor) error {
	m.created = append(m.created, doctor)
	return nil
}

func (m *mockDoctorRepo) Update(ctx context.Context, doctor *models.Doctor) error {
	m.updated = append(m.updated, doctor)
	return nil
}

func (m *mockDoctorRepo) Deactivate(ctx context.Context, id string) error {
	m.deactivated = append(m.deactivated, id)
	return nil
}

func validDoctorRequest() models.CreateDoctorRequest {
	return models.CreateDoctorRequest{
		Email:       "dr@example.com",
		FullName:    "Dr. Siti",
		DayFrom:     1,
		DayTo:       5,
		WorkStart:   "08:00",
		WorkEnd:     "16:00",
		SlotMinutes: 30,
	}
}

func TestDoctorServiceCreate(t *testing.T) {
	repo := &mockDoctorRepo{doctors: map[string]*models.Doctor{}}
	svc := NewDoctorService(repo, nil, validator.New(), zap.NewNop(), 60)

	doctor, err := svc.Create(context.Background(), validDoctorRequest())
	require.NoError(t, err)
	assert.True(t, doctor.Active)
	assert.Equal(t, 30, doctor.SlotMinutes)
	require.Len(t, repo.created, 1)
}

func TestDoctorServiceCreateDefaultSlotMinutes(t *testing.T) {
	repo := &mockDoctorRepo{doctors: map[string]*models.Doctor{}}
	svc := NewDoctorService(repo, nil, validator.New(), zap.NewNop(), 45)

	req := validDoctorRequest()
	req.SlotMinutes = 0
	doctor, err := svc.Create(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 45, doctor.SlotMinutes)
}

func TestDoctorServiceCreateInvalidWindow(t *testing.T) {
	repo := &mockDoctorRepo{doctors: map[string]*models.Doctor{}}
	svc := NewDoctorService(repo, nil, validator.New(), zap.NewNop(), 60)

	req := validDoctorRequest()
	req.WorkStart = "16:00"
	req.WorkEnd = "08:00"
	_, err := svc.Create(context.Background(), req)
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrInvalidSchedule.Code, appErr.Code)
	assert.Empty(t, repo.created)
}

func TestDoctorServiceCreateDuplicateEmail(t *testing.T) {
	repo := &mockDoctorRepo{doctors: map[string]*models.Doctor{}, emailExists: true}
	svc := NewDoctorService(repo, nil, validator.New(), zap.NewNop(), 60)

	_, err := svc.Create(context.Background(), validDoctorRequest())
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
}

func TestDoctorServiceUpdateScheduleInvalidates(t *testing.T) {
	doctor := weekdayDoctor()
	repo := &mockDoctorRepo{doctors: map[string]*models.Doctor{doctor.ID: doctor}}
	invalidator := &recordingInvalidator{}
	svc := NewDoctorService(repo, invalidator, validator.New(), zap.NewNop(), 60)

	updated, err := svc.Update(context.Background(), doctor.ID, models.UpdateDoctorRequest{
		Email:       "dr@example.com",
		FullName:    "Dr. A",
		DayFrom:     1,
		DayTo:       5,
		WorkStart:   "09:00",
		WorkEnd:     "17:00",
		SlotMinutes: 30,
	})
	require.NoError(t, err)
	assert.Equal(t, "09:00", updated.WorkStart)
	assert.Equal(t, []string{doctor.ID}, invalidator.doctorIDs)
}

func TestDoctorServiceUpdateNotFound(t *testing.T) {
	repo := &mockDoctorRepo{doctors: map[string]*models.Doctor{}}
	svc := NewDoctorService(repo, nil, validator.New(), zap.NewNop(), 60)

	_, err := svc.Update(context.Background(), "missing", models.UpdateDoctorRequest{
		Email:     "dr@example.com",
		FullName:  "Dr. A",
		DayFrom:   1,
		DayTo:     5,
		WorkStart: "08:00",
		WorkEnd:   "16:00",
	})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

func TestDoctorServiceDeactivate(t *testing.T) {
	doctor := weekdayDoctor()
	repo := &mockDoctorRepo{doctors: map[string]*models.Doctor{doctor.ID: doctor}}
	invalidator := &recordingInvalidator{}
	svc := NewDoctorService(repo, invalidator, validator.New(), zap.NewNop(), 60)

	require.NoError(t, svc.Deactivate(context.Background(), doctor.ID))
	assert.Equal(t, []string{doctor.ID}, repo.deactivated)
	assert.Equal(t, []string{doctor.ID}, invalidator.doctorIDs)
}
