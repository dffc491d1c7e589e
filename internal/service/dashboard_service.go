package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/klinikgo/klinik-api/internal/availability"
	"github.com/klinikgo/klinik-api/internal/models"
	appErrors "github.com/klinikgo/klinik-api/pkg/errors"
)

type dashboardDoctorRepository interface {
	List(ctx context.Context, filter models.DoctorFilter) ([]models.Doctor, int, error)
	CountActive(ctx context.Context) (int, error)
}

type dashboardPatientRepository interface {
	CountActive(ctx context.Context) (int, error)
}

type dashboardAppointmentRepository interface {
	BookedSlots(ctx context.Context, doctorID, fromDate, toDate string) ([]availability.BookedSlot, error)
	CountByDateRange(ctx context.Context, fromDate, toDate string) (int, error)
	CountByStatusRange(ctx context.Context, status models.AppointmentStatus, fromDate, toDate string) (int, error)
	Upcoming(ctx context.Context, fromDate string, limit int) ([]models.Appointment, error)
}

// DashboardConfig tunes dashboard behaviour.
type DashboardConfig struct {
	CacheTTL      time.Duration
	UpcomingLimit int
}

// DashboardService composes the admin landing page summary.
type DashboardService struct {
	doctors      dashboardDoctorRepository
	patients     dashboardPatientRepository
	appointments dashboardAppointmentRepository
	cache        availabilityCache
	logger       *zap.Logger
	now          func() time.Time
	cfg          DashboardConfig
}

// NewDashboardService constructs a DashboardService.
func NewDashboardService(doctors dashboardDoctorRepository, patients dashboardPatientRepository, appointments dashboardAppointmentRepository, cache availabilityCache, logger *zap.Logger, cfg DashboardConfig) *DashboardService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.UpcomingLimit <= 0 {
		cfg.UpcomingLimit = 10
	}
	return &DashboardService{
		doctors:      doctors,
		patients:     patients,
		appointments: appointments,
		cache:        cache,
		logger:       logger,
		now:          func() time.Time { return time.Now().UTC() },
		cfg:          cfg,
	}
}

// Summary builds today's clinic overview, cached when Redis is configured.
func (s *DashboardService) Summary(ctx context.Context) (*models.DashboardSummary, error) {
	today := s.now().Format(availability.DateLayout)
	cacheKey := "dashboard:summary:" + today

	if s.cache != nil {
		var cached models.DashboardSummary
		if err := s.cache.Get(ctx, cacheKey, &cached); err == nil {
			return &cached, nil
		}
	}

	weekStart, weekEnd := s.weekBounds()

	appointmentsToday, err := s.appointments.CountByDateRange(ctx, today, today)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count today's appointments")
	}
	appointmentsWeek, err := s.appointments.CountByDateRange(ctx, weekStart, weekEnd)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count weekly appointments")
	}
	cancelledWeek, err := s.appointments.CountByStatusRange(ctx, models.AppointmentCancelled, weekStart, weekEnd)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count cancellations")
	}
	activeDoctors, err := s.doctors.CountActive(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count doctors")
	}
	activePatients, err := s.patients.CountActive(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count patients")
	}

	utilization, err := s.doctorUtilization(ctx, today)
	if err != nil {
		return nil, err
	}

	upcoming, err := s.appointments.Upcoming(ctx, today, s.cfg.UpcomingLimit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load upcoming appointments")
	}

	summary := &models.DashboardSummary{
		Date:                 today,
		AppointmentsToday:    appointmentsToday,
		AppointmentsThisWeek: appointmentsWeek,
		CancelledThisWeek:    cancelledWeek,
		ActiveDoctors:        activeDoctors,
		ActivePatients:       activePatients,
		DoctorUtilization:    utilization,
		UpcomingAppointments: upcoming,
		GeneratedAt:          s.now(),
	}

	if s.cache != nil && s.cfg.CacheTTL > 0 {
		if err := s.cache.Set(ctx, cacheKey, summary, s.cfg.CacheTTL); err != nil {
			s.logger.Warn("failed to cache dashboard summary", zap.Error(err))
		}
	}
	return summary, nil
}

// doctorUtilization computes booked versus capacity per active doctor for the
// given date. Doctors with an invalid schedule window are skipped, not fatal.
func (s *DashboardService) doctorUtilization(ctx context.Context, date string) ([]models.DoctorDayLoad, error) {
	active := true
	doctors, _, err := s.doctors.List(ctx, models.DoctorFilter{Active: &active, PageSize: 100})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list doctors")
	}

	loads := make([]models.DoctorDayLoad, 0, len(doctors))
	for _, doctor := range doctors {
		booked, err := s.appointments.BookedSlots(ctx, doctor.ID, date, date)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load booked slots")
		}
		slots, err := availability.ComputeSlots(doctor.WeeklyWindow(), date, booked)
		if err != nil {
			s.logger.Warn("skipping doctor with invalid schedule",
				zap.String("doctor_id", doctor.ID), zap.Error(err))
			continue
		}
		load := models.DoctorDayLoad{DoctorID: doctor.ID, DoctorName: doctor.FullName, Capacity: len(slots)}
		for _, slot := range slots {
			if !slot.Available {
				load.Booked++
			}
		}
		if load.Capacity > 0 {
			load.LoadRatio = float64(load.Booked) / float64(load.Capacity)
		}
		loads = append(loads, load)
	}
	return loads, nil
}

// weekBounds returns the Sunday through Saturday range containing today.
func (s *DashboardService) weekBounds() (string, string) {
	now := s.now()
	day, _ := availability.ParseDate(now.Format(availability.DateLayout))
	start := availability.AddDays(day, -availability.Weekday(day))
	end := availability.AddDays(start, 6)
	return availability.FormatDate(start), availability.FormatDate(end)
}
