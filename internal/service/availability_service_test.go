package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/klinikgo/klinik-api/internal/availability"
	"github.com/klinikgo/klinik-api/internal/models"
	appErrors "github.com/klinikgo/klinik-api/pkg/errors"
)

type mockAvailabilityDoctorRepo struct {
	doctor *models.Doctor
	err    error
}

func (m *mockAvailabilityDoctorRepo) FindByID(ctx context.Context, id string) (*models.Doctor, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.doctor, nil
}

type mockAvailabilityAppointmentRepo struct {
	slots []availability.BookedSlot
	err   error
	calls int
}

func (m *mockAvailabilityAppointmentRepo) BookedSlots(ctx context.Context, doctorID, fromDate, toDate string) ([]availability.BookedSlot, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.slots, nil
}

// weekdayDoctor works Monday through Friday, 08:00 to 10:00, hourly slots.
func weekdayDoctor() *models.Doctor {
	return &models.Doctor{
		ID:          "d1",
		FullName:    "Dr. A",
		DayFrom:     1,
		DayTo:       5,
		WorkStart:   "08:00",
		WorkEnd:     "10:00",
		SlotMinutes: 60,
		Active:      true,
	}
}

func TestAvailabilityServiceGetDaySlots(t *testing.T) {
	doctors := &mockAvailabilityDoctorRepo{doctor: weekdayDoctor()}
	appointments := &mockAvailabilityAppointmentRepo{slots: []availability.BookedSlot{{Date: "2025-06-09", Time: "09:00"}}}
	svc := NewAvailabilityService(doctors, appointments, nil, zap.NewNop(), AvailabilityConfig{})

	// 2025-06-09 is a Monday.
	res, err := svc.GetDaySlots(context.Background(), "d1", "2025-06-09")
	require.NoError(t, err)
	require.Len(t, res.Slots, 3)
	assert.Equal(t, availability.Slot{Time: "08:00", Available: true}, res.Slots[0])
	assert.Equal(t, availability.Slot{Time: "09:00", Available: false}, res.Slots[1])
	assert.Equal(t, availability.Slot{Time: "10:00", Available: true}, res.Slots[2])
}

func TestAvailabilityServiceGetDaySlotsOffDay(t *testing.T) {
	doctors := &mockAvailabilityDoctorRepo{doctor: weekdayDoctor()}
	appointments := &mockAvailabilityAppointmentRepo{}
	svc := NewAvailabilityService(doctors, appointments, nil, zap.NewNop(), AvailabilityConfig{})

	// 2025-06-08 is a Sunday, outside the Monday through Friday window.
	res, err := svc.GetDaySlots(context.Background(), "d1", "2025-06-08")
	require.NoError(t, err)
	assert.Empty(t, res.Slots)
}

func TestAvailabilityServiceGetDaySlotsDoctorNotFound(t *testing.T) {
	doctors := &mockAvailabilityDoctorRepo{err: sql.ErrNoRows}
	svc := NewAvailabilityService(doctors, &mockAvailabilityAppointmentRepo{}, nil, zap.NewNop(), AvailabilityConfig{})

	_, err := svc.GetDaySlots(context.Background(), "missing", "2025-06-09")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

func TestAvailabilityServiceGetDaySlotsInactiveDoctor(t *testing.T) {
	doctor := weekdayDoctor()
	doctor.Active = false
	doctors := &mockAvailabilityDoctorRepo{doctor: doctor}
	svc := NewAvailabilityService(doctors, &mockAvailabilityAppointmentRepo{}, nil, zap.NewNop(), AvailabilityConfig{})

	_, err := svc.GetDaySlots(context.Background(), "d1", "2025-06-09")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

func TestAvailabilityServiceGetDaySlotsInvalidDate(t *testing.T) {
	doctors := &mockAvailabilityDoctorRepo{doctor: weekdayDoctor()}
	svc := NewAvailabilityService(doctors, &mockAvailabilityAppointmentRepo{}, nil, zap.NewNop(), AvailabilityConfig{})

	_, err := svc.GetDaySlots(context.Background(), "d1", "2025-13-40")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrInvalidDate.Code, appErr.Code)
}

func TestAvailabilityServiceGetDaySlotsInvalidSchedule(t *testing.T) {
	doctor := weekdayDoctor()
	doctor.SlotMinutes = 0
	doctors := &mockAvailabilityDoctorRepo{doctor: doctor}
	svc := NewAvailabilityService(doctors, &mockAvailabilityAppointmentRepo{}, nil, zap.NewNop(), AvailabilityConfig{})

	_, err := svc.GetDaySlots(context.Background(), "d1", "2025-06-09")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrInvalidSchedule.Code, appErr.Code)
}

func TestAvailabilityServiceGetRangeSlots(t *testing.T) {
	doctors := &mockAvailabilityDoctorRepo{doctor: weekdayDoctor()}
	appointments := &mockAvailabilityAppointmentRepo{}
	svc := NewAvailabilityService(doctors, appointments, nil, zap.NewNop(), AvailabilityConfig{MaxRangeDays: 7})

	// Sunday through Tuesday: the Sunday entry is present with zero slots.
	res, err := svc.GetRangeSlots(context.Background(), "d1", "2025-06-08", "2025-06-10")
	require.NoError(t, err)
	require.Len(t, res.Days, 3)
	assert.Equal(t, "2025-06-08", res.Days[0].Date)
	assert.Empty(t, res.Days[0].Slots)
	assert.Len(t, res.Days[1].Slots, 3)
	assert.Len(t, res.Days[2].Slots, 3)
}

func TestAvailabilityServiceGetRangeSlotsTooWide(t *testing.T) {
	doctors := &mockAvailabilityDoctorRepo{doctor: weekdayDoctor()}
	svc := NewAvailabilityService(doctors, &mockAvailabilityAppointmentRepo{}, nil, zap.NewNop(), AvailabilityConfig{MaxRangeDays: 7})

	_, err := svc.GetRangeSlots(context.Background(), "d1", "2025-06-01", "2025-06-30")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrInvalidDate.Code, appErr.Code)
}

type mapCache struct {
	values map[string][]byte
}

func (c *mapCache) Get(ctx context.Context, key string, dest interface{}) error {
	raw, ok := c.values[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (c *mapCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if c.values == nil {
		c.values = make(map[string][]byte)
	}
	c.values[key] = raw
	return nil
}

func (c *mapCache) DeleteByPattern(ctx context.Context, pattern string) error {
	c.values = make(map[string][]byte)
	return nil
}

func TestAvailabilityServiceDayCacheHit(t *testing.T) {
	doctors := &mockAvailabilityDoctorRepo{doctor: weekdayDoctor()}
	appointments := &mockAvailabilityAppointmentRepo{}
	cache := &mapCache{}
	svc := NewAvailabilityService(doctors, appointments, cache, zap.NewNop(), AvailabilityConfig{CacheTTL: time.Minute})

	first, err := svc.GetDaySlots(context.Background(), "d1", "2025-06-09")
	require.NoError(t, err)
	second, err := svc.GetDaySlots(context.Background(), "d1", "2025-06-09")
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, appointments.calls)

	svc.Invalidate(context.Background(), "d1")
	_, err = svc.GetDaySlots(context.Background(), "d1", "2025-06-09")
	require.NoError(t, err)
	assert.Equal(t, 2, appointments.calls)
}
