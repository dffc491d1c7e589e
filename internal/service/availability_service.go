package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/klinikgo/klinik-api/internal/availability"
	"github.com/klinikgo/klinik-api/internal/models"
	appErrors "github.com/klinikgo/klinik-api/pkg/errors"
)

type availabilityDoctorRepository interface {
	FindByID(ctx context.Context, id string) (*models.Doctor, error)
}

type availabilityAppointmentRepository interface {
	BookedSlots(ctx context.Context, doctorID, fromDate, toDate string) ([]availability.BookedSlot, error)
}

type availabilityCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// AvailabilityConfig bounds availability queries.
type AvailabilityConfig struct {
	MaxRangeDays int
	CacheTTL     time.Duration
}

// AvailabilityService computes bookable slots for doctors from their weekly
// schedule window and existing appointments.
type AvailabilityService struct {
	doctors      availabilityDoctorRepository
	appointments availabilityAppointmentRepository
	cache        availabilityCache
	logger       *zap.Logger
	metrics      *MetricsService
	config       AvailabilityConfig
}

// WithMetrics attaches Prometheus instrumentation.
func (s *AvailabilityService) WithMetrics(metrics *MetricsService) *AvailabilityService {
	s.metrics = metrics
	return s
}

// NewAvailabilityService constructs an AvailabilityService.
func NewAvailabilityService(doctors availabilityDoctorRepository, appointments availabilityAppointmentRepository, cache availabilityCache, logger *zap.Logger, config AvailabilityConfig) *AvailabilityService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.MaxRangeDays <= 0 {
		config.MaxRangeDays = 31
	}
	return &AvailabilityService{doctors: doctors, appointments: appointments, cache: cache, logger: logger, config: config}
}

// GetDaySlots returns the slot grid for one doctor on one date.
func (s *AvailabilityService) GetDaySlots(ctx context.Context, doctorID, date string) (*models.DoctorDayAvailability, error) {
	doctor, err := s.loadDoctor(ctx, doctorID)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		var cached models.DoctorDayAvailability
		key := availabilityCacheKey(doctorID, date, date)
		if err := s.cache.Get(ctx, key, &cached); err == nil {
			s.metrics.RecordCacheOperation(true)
			return &cached, nil
		}
		s.metrics.RecordCacheOperation(false)
	}

	booked, err := s.appointments.BookedSlots(ctx, doctorID, date, date)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load booked slots")
	}

	started := time.Now()
	slots, err := availability.ComputeSlots(doctor.WeeklyWindow(), date, booked)
	s.metrics.ObserveSlotComputation(time.Since(started))
	if err != nil {
		return nil, mapEngineError(err)
	}

	result := &models.DoctorDayAvailability{DoctorID: doctorID, Date: date, Slots: slots}
	s.storeCache(ctx, availabilityCacheKey(doctorID, date, date), result)
	return result, nil
}

// GetRangeSlots returns slot grids for every date in an inclusive range.
func (s *AvailabilityService) GetRangeSlots(ctx context.Context, doctorID, fromDate, toDate string) (*models.DoctorRangeAvailability, error) {
	doctor, err := s.loadDoctor(ctx, doctorID)
	if err != nil {
		return nil, err
	}

	from, err := availability.ParseDate(fromDate)
	if err != nil {
		return nil, mapEngineError(err)
	}
	to, err := availability.ParseDate(toDate)
	if err != nil {
		return nil, mapEngineError(err)
	}
	if span := int(to.Sub(from).Hours()/24) + 1; span > s.config.MaxRangeDays {
		return nil, appErrors.Clone(appErrors.ErrInvalidDate, fmt.Sprintf("date range exceeds %d days", s.config.MaxRangeDays))
	}

	if s.cache != nil {
		var cached models.DoctorRangeAvailability
		key := availabilityCacheKey(doctorID, fromDate, toDate)
		if err := s.cache.Get(ctx, key, &cached); err == nil {
			s.metrics.RecordCacheOperation(true)
			return &cached, nil
		}
		s.metrics.RecordCacheOperation(false)
	}

	booked, err := s.appointments.BookedSlots(ctx, doctorID, fromDate, toDate)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load booked slots")
	}

	started := time.Now()
	days, err := availability.ComputeRange(doctor.WeeklyWindow(), fromDate, toDate, booked)
	s.metrics.ObserveSlotComputation(time.Since(started))
	if err != nil {
		return nil, mapEngineError(err)
	}

	result := &models.DoctorRangeAvailability{DoctorID: doctorID, FromDate: fromDate, ToDate: toDate, Days: days}
	s.storeCache(ctx, availabilityCacheKey(doctorID, fromDate, toDate), result)
	return result, nil
}

// Invalidate drops cached availability for a doctor after a booking change.
func (s *AvailabilityService) Invalidate(ctx context.Context, doctorID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteByPattern(ctx, fmt.Sprintf("availability:%s:*", doctorID)); err != nil {
		s.logger.Warn("failed to invalidate availability cache", zap.String("doctor_id", doctorID), zap.Error(err))
	}
}

func (s *AvailabilityService) loadDoctor(ctx context.Context, doctorID string) (*models.Doctor, error) {
	doctor, err := s.doctors.FindByID(ctx, doctorID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "doctor not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load doctor")
	}
	if !doctor.Active {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "doctor not found")
	}
	return doctor, nil
}

func (s *AvailabilityService) storeCache(ctx context.Context, key string, value interface{}) {
	if s.cache == nil || s.config.CacheTTL <= 0 {
		return
	}
	if err := s.cache.Set(ctx, key, value, s.config.CacheTTL); err != nil {
		s.logger.Warn("failed to cache availability", zap.String("key", key), zap.Error(err))
	}
}

func availabilityCacheKey(doctorID, fromDate, toDate string) string {
	return fmt.Sprintf("availability:%s:%s:%s", doctorID, fromDate, toDate)
}

// mapEngineError converts availability engine failures to API errors.
func mapEngineError(err error) error {
	switch {
	case availability.IsInvalidDate(err):
		return appErrors.Wrap(err, appErrors.ErrInvalidDate.Code, appErrors.ErrInvalidDate.Status, err.Error())
	case availability.IsInvalidConfig(err):
		return appErrors.Wrap(err, appErrors.ErrInvalidSchedule.Code, appErrors.ErrInvalidSchedule.Status, err.Error())
	default:
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "availability computation failed")
	}
}
