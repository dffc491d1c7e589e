package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/klinikgo/klinik-api/internal/availability"
	"github.com/klinikgo/klinik-api/internal/models"
	appErrors "github.com/klinikgo/klinik-api/pkg/errors"
	"github.com/klinikgo/klinik-api/pkg/export"
	"github.com/klinikgo/klinik-api/pkg/jobs"
	"github.com/klinikgo/klinik-api/pkg/storage"
)

type reportJobRepository interface {
	Create(ctx context.Context, job *models.ReportJob) error
	FindByID(ctx context.Context, id string) (*models.ReportJob, error)
	MarkProcessing(ctx context.Context, id string) error
	MarkFinished(ctx context.Context, id, resultURL string, finishedAt time.Time) error
	MarkFailed(ctx context.Context, id, message string, finishedAt time.Time) error
	ListByUser(ctx context.Context, userID string, limit int) ([]models.ReportJob, error)
}

type reportAppointmentRepository interface {
	ListByRange(ctx context.Context, doctorID *string, fromDate, toDate string) ([]models.Appointment, error)
	BookedSlots(ctx context.Context, doctorID, fromDate, toDate string) ([]availability.BookedSlot, error)
}

type reportDoctorRepository interface {
	List(ctx context.Context, filter models.DoctorFilter) ([]models.Doctor, int, error)
	FindByID(ctx context.Context, id string) (*models.Doctor, error)
}

// CreateReportRequest is the payload for queuing a report.
type CreateReportRequest struct {
	Type     models.ReportType   `json:"type" validate:"required,oneof=appointments utilization"`
	Format   models.ReportFormat `json:"format" validate:"required,oneof=csv pdf"`
	DoctorID *string             `json:"doctor_id,omitempty" validate:"omitempty,uuid4"`
	DateFrom string              `json:"date_from" validate:"required"`
	DateTo   string              `json:"date_to" validate:"required"`
}

// ReportService queues and renders clinic reports in the background.
type ReportService struct {
	jobsRepo     reportJobRepository
	appointments reportAppointmentRepository
	doctors      reportDoctorRepository
	csv          *export.CSVExporter
	pdf          *export.PDFExporter
	store        *storage.LocalStorage
	signer       *storage.SignedURLSigner
	queue        *jobs.Queue
	validator    *validator.Validate
	logger       *zap.Logger
}

// NewReportService constructs a ReportService and its worker queue. Start
// must be called before enqueuing reports.
func NewReportService(jobsRepo reportJobRepository, appointments reportAppointmentRepository, doctors reportDoctorRepository, store *storage.LocalStorage, signer *storage.SignedURLSigner, validate *validator.Validate, logger *zap.Logger, queueCfg jobs.QueueConfig) *ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	s := &ReportService{
		jobsRepo:     jobsRepo,
		appointments: appointments,
		doctors:      doctors,
		csv:          export.NewCSVExporter(),
		pdf:          export.NewPDFExporter(),
		store:        store,
		signer:       signer,
		validator:    validate,
		logger:       logger,
	}
	queueCfg.Logger = logger
	s.queue = jobs.NewQueue("reports", s.process, queueCfg)
	return s
}

// Start launches the background workers.
func (s *ReportService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the queue and stops the workers.
func (s *ReportService) Stop() {
	s.queue.Stop()
}

// Enqueue validates the request, persists a queued job and dispatches it.
func (s *ReportService) Enqueue(ctx context.Context, userID string, req CreateReportRequest) (*models.ReportJob, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid report payload")
	}

	from, err := availability.ParseDate(req.DateFrom)
	if err != nil {
		return nil, mapEngineError(err)
	}
	to, err := availability.ParseDate(req.DateTo)
	if err != nil {
		return nil, mapEngineError(err)
	}
	if to.Before(from) {
		return nil, appErrors.Clone(appErrors.ErrInvalidDate, "date_to precedes date_from")
	}

	if req.DoctorID != nil {
		if _, err := s.doctors.FindByID(ctx, *req.DoctorID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "doctor not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load doctor")
		}
	}

	job := &models.ReportJob{
		Type: req.Type,
		Params: models.ReportJobParams{
			DoctorID: req.DoctorID,
			DateFrom: req.DateFrom,
			DateTo:   req.DateTo,
			Format:   req.Format,
		},
		Status:    models.ReportStatusQueued,
		CreatedBy: userID,
	}
	if err := s.jobsRepo.Create(ctx, job); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist report job")
	}

	if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: string(job.Type)}); err != nil {
		now := time.Now().UTC()
		if markErr := s.jobsRepo.MarkFailed(ctx, job.ID, "queue is full", now); markErr != nil {
			s.logger.Error("failed to mark overflowed job", zap.String("job_id", job.ID), zap.Error(markErr))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "report queue is full")
	}
	return job, nil
}

// Get returns a report job visible to the requesting user.
func (s *ReportService) Get(ctx context.Context, userID, jobID string, isAdmin bool) (*models.ReportJob, error) {
	job, err := s.jobsRepo.FindByID(ctx, jobID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "report job not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load report job")
	}
	if !isAdmin && job.CreatedBy != userID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "report belongs to another user")
	}
	return job, nil
}

// List returns the caller's recent report jobs.
func (s *ReportService) List(ctx context.Context, userID string, limit int) ([]models.ReportJob, error) {
	reports, err := s.jobsRepo.ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list report jobs")
	}
	return reports, nil
}

// Download resolves a signed token to a stored report file.
func (s *ReportService) Download(token string) (string, error) {
	_, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrForbidden.Code, appErrors.ErrForbidden.Status, "invalid or expired download token")
	}
	return relPath, nil
}

// Open resolves a signed token and opens the underlying report file.
func (s *ReportService) Open(token string) (*os.File, string, error) {
	relPath, err := s.Download(token)
	if err != nil {
		return nil, "", err
	}
	file, err := s.store.Open(relPath)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "report file not found")
	}
	return file, relPath, nil
}

// process runs inside the worker pool and renders one report job.
func (s *ReportService) process(ctx context.Context, job jobs.Job) error {
	stored, err := s.jobsRepo.FindByID(ctx, job.ID)
	if err != nil {
		return fmt.Errorf("load report job %s: %w", job.ID, err)
	}
	if err := s.jobsRepo.MarkProcessing(ctx, stored.ID); err != nil {
		s.logger.Warn("failed to mark report processing", zap.String("job_id", stored.ID), zap.Error(err))
	}

	dataset, title, err := s.buildDataset(ctx, stored)
	if err != nil {
		s.fail(ctx, stored.ID, err)
		return err
	}

	var payload []byte
	var ext string
	switch stored.Params.Format {
	case models.ReportFormatPDF:
		payload, err = s.pdf.Render(dataset, title)
		ext = "pdf"
	default:
		payload, err = s.csv.Render(dataset)
		ext = "csv"
	}
	if err != nil {
		s.fail(ctx, stored.ID, err)
		return err
	}

	filename := fmt.Sprintf("%s-%s.%s", stored.Type, stored.ID, ext)
	relPath, err := s.store.Save(filename, payload)
	if err != nil {
		s.fail(ctx, stored.ID, err)
		return err
	}

	url, _, err := s.signer.Generate(stored.ID, relPath)
	if err != nil {
		s.fail(ctx, stored.ID, err)
		return err
	}

	if err := s.jobsRepo.MarkFinished(ctx, stored.ID, url, time.Now().UTC()); err != nil {
		return fmt.Errorf("mark report finished: %w", err)
	}
	s.logger.Info("report rendered",
		zap.String("job_id", stored.ID),
		zap.String("type", string(stored.Type)),
		zap.String("file", relPath))
	return nil
}

func (s *ReportService) fail(ctx context.Context, jobID string, cause error) {
	if err := s.jobsRepo.MarkFailed(ctx, jobID, cause.Error(), time.Now().UTC()); err != nil {
		s.logger.Error("failed to mark report failed", zap.String("job_id", jobID), zap.Error(err))
	}
}

func (s *ReportService) buildDataset(ctx context.Context, job *models.ReportJob) (export.Dataset, string, error) {
	switch job.Type {
	case models.ReportTypeUtilization:
		return s.utilizationDataset(ctx, job.Params)
	default:
		return s.appointmentsDataset(ctx, job.Params)
	}
}

func (s *ReportService) appointmentsDataset(ctx context.Context, params models.ReportJobParams) (export.Dataset, string, error) {
	appointments, err := s.appointments.ListByRange(ctx, params.DoctorID, params.DateFrom, params.DateTo)
	if err != nil {
		return export.Dataset{}, "", err
	}

	dataset := export.Dataset{
		Headers: []string{"date", "time", "doctor_id", "patient_id", "status"},
		Rows:    make([]map[string]string, 0, len(appointments)),
	}
	for _, a := range appointments {
		dataset.Rows = append(dataset.Rows, map[string]string{
			"date":       a.Date,
			"time":       a.Time,
			"doctor_id":  a.DoctorID,
			"patient_id": a.PatientID,
			"status":     string(a.Status),
		})
	}
	title := fmt.Sprintf("Appointments %s to %s", params.DateFrom, params.DateTo)
	return dataset, title, nil
}

// utilizationDataset aggregates booked versus capacity per doctor per day.
func (s *ReportService) utilizationDataset(ctx context.Context, params models.ReportJobParams) (export.Dataset, string, error) {
	var doctors []models.Doctor
	if params.DoctorID != nil {
		doctor, err := s.doctors.FindByID(ctx, *params.DoctorID)
		if err != nil {
			return export.Dataset{}, "", err
		}
		doctors = []models.Doctor{*doctor}
	} else {
		active := true
		all, _, err := s.doctors.List(ctx, models.DoctorFilter{Active: &active, PageSize: 100})
		if err != nil {
			return export.Dataset{}, "", err
		}
		doctors = all
	}

	dataset := export.Dataset{Headers: []string{"date", "doctor", "capacity", "booked"}}
	for _, doctor := range doctors {
		booked, err := s.appointments.BookedSlots(ctx, doctor.ID, params.DateFrom, params.DateTo)
		if err != nil {
			return export.Dataset{}, "", err
		}
		days, err := availability.ComputeRange(doctor.WeeklyWindow(), params.DateFrom, params.DateTo, booked)
		if err != nil {
			s.logger.Warn("skipping doctor with invalid schedule",
				zap.String("doctor_id", doctor.ID), zap.Error(err))
			continue
		}
		for _, day := range days {
			if len(day.Slots) == 0 {
				continue
			}
			taken := 0
			for _, slot := range day.Slots {
				if !slot.Available {
					taken++
				}
			}
			dataset.Rows = append(dataset.Rows, map[string]string{
				"date":     day.Date,
				"doctor":   doctor.FullName,
				"capacity": fmt.Sprintf("%d", len(day.Slots)),
				"booked":   fmt.Sprintf("%d", taken),
			})
		}
	}
	title := fmt.Sprintf("Doctor utilization %s to %s", params.DateFrom, params.DateTo)
	return dataset, title, nil
}
