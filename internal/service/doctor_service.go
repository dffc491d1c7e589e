package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/klinikgo/klinik-api/internal/availability"
	"github.com/klinikgo/klinik-api/internal/models"
	appErrors "github.com/klinikgo/klinik-api/pkg/errors"
)

type doctorRepository interface {
	List(ctx context.Context, filter models.DoctorFilter) ([]models.Doctor, int, error)
	FindByID(ctx context.Context, id string) (*models.Doctor, error)
	ExistsByEmail(ctx context.Context, email, excludeID string) (bool, error)
	Create(ctx context.Context, doctor *models.Doctor) error
	Update(ctx context.Context, doctor *models.Doctor) error
	Deactivate(ctx context.Context, id string) error
}

// DoctorService manages doctor records and their schedule windows.
type DoctorService struct {
	repo        doctorRepository
	invalidator availabilityInvalidator
	validator   *validator.Validate
	logger      *zap.Logger
	defaultSlot int
}

// NewDoctorService constructs a DoctorService. defaultSlotMinutes fills in
// the slot interval when a create request omits it.
func NewDoctorService(repo doctorRepository, invalidator availabilityInvalidator, validate *validator.Validate, logger *zap.Logger, defaultSlotMinutes int) *DoctorService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if defaultSlotMinutes <= 0 {
		defaultSlotMinutes = 60
	}
	return &DoctorService{repo: repo, invalidator: invalidator, validator: validate, logger: logger, defaultSlot: defaultSlotMinutes}
}

// List returns doctors with pagination metadata.
func (s *DoctorService) List(ctx context.Context, filter models.DoctorFilter) ([]models.Doctor, *models.Pagination, error) {
	doctors, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list doctors")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	return doctors, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

// Get returns one doctor by identifier.
func (s *DoctorService) Get(ctx context.Context, id string) (*models.Doctor, error) {
	doctor, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "doctor not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load doctor")
	}
	return doctor, nil
}

// Create registers a doctor after validating the schedule window.
func (s *DoctorService) Create(ctx context.Context, req models.CreateDoctorRequest) (*models.Doctor, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid doctor payload")
	}

	slotMinutes := req.SlotMinutes
	if slotMinutes == 0 {
		slotMinutes = s.defaultSlot
	}
	window := availability.WeeklyWindow{
		FromWeekday: req.DayFrom,
		ToWeekday:   req.DayTo,
		FromTime:    req.WorkStart,
		ToTime:      req.WorkEnd,
		SlotMinutes: slotMinutes,
	}
	if err := availability.ValidateWindow(window); err != nil {
		return nil, mapEngineError(err)
	}

	exists, err := s.repo.ExistsByEmail(ctx, req.Email, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check doctor email")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "a doctor with this email already exists")
	}

	doctor := &models.Doctor{
		Email:       req.Email,
		FullName:    req.FullName,
		Phone:       req.Phone,
		Specialty:   req.Specialty,
		DayFrom:     req.DayFrom,
		DayTo:       req.DayTo,
		WorkStart:   req.WorkStart,
		WorkEnd:     req.WorkEnd,
		SlotMinutes: slotMinutes,
		Active:      true,
	}
	if err := s.repo.Create(ctx, doctor); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create doctor")
	}
	return doctor, nil
}

// Update modifies a doctor and drops cached availability when the schedule
// window changed.
func (s *DoctorService) Update(ctx context.Context, id string, req models.UpdateDoctorRequest) (*models.Doctor, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid doctor payload")
	}

	doctor, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	slotMinutes := req.SlotMinutes
	if slotMinutes == 0 {
		slotMinutes = doctor.SlotMinutes
	}
	window := availability.WeeklyWindow{
		FromWeekday: req.DayFrom,
		ToWeekday:   req.DayTo,
		FromTime:    req.WorkStart,
		ToTime:      req.WorkEnd,
		SlotMinutes: slotMinutes,
	}
	if err := availability.ValidateWindow(window); err != nil {
		return nil, mapEngineError(err)
	}

	exists, err := s.repo.ExistsByEmail(ctx, req.Email, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check doctor email")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "a doctor with this email already exists")
	}

	scheduleChanged := doctor.DayFrom != req.DayFrom || doctor.DayTo != req.DayTo ||
		doctor.WorkStart != req.WorkStart || doctor.WorkEnd != req.WorkEnd || doctor.SlotMinutes != slotMinutes

	doctor.Email = req.Email
	doctor.FullName = req.FullName
	doctor.Phone = req.Phone
	doctor.Specialty = req.Specialty
	doctor.DayFrom = req.DayFrom
	doctor.DayTo = req.DayTo
	doctor.WorkStart = req.WorkStart
	doctor.WorkEnd = req.WorkEnd
	doctor.SlotMinutes = slotMinutes
	if req.Active != nil {
		doctor.Active = *req.Active
	}

	if err := s.repo.Update(ctx, doctor); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update doctor")
	}

	if scheduleChanged && s.invalidator != nil {
		s.invalidator.Invalidate(ctx, id)
	}
	return doctor, nil
}

// Deactivate retires a doctor from scheduling.
func (s *DoctorService) Deactivate(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.repo.Deactivate(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to deactivate doctor")
	}
	if s.invalidator != nil {
		s.invalidator.Invalidate(ctx, id)
	}
	return nil
}
