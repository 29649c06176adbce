package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/parroquia-tools/turnos-api/internal/dto"
	"github.com/parroquia-tools/turnos-api/internal/models"
	appErrors "github.com/parroquia-tools/turnos-api/pkg/errors"
	"github.com/parroquia-tools/turnos-api/pkg/export"
	"github.com/parroquia-tools/turnos-api/pkg/jobs"
	"github.com/parroquia-tools/turnos-api/pkg/storage"
)

type exportJobStore interface {
	Create(ctx context.Context, job *models.ExportJob) error
	FindByID(ctx context.Context, id string) (*models.ExportJob, error)
	UpdateProgress(ctx context.Context, id string, status models.ExportStatus, progress int) error
	MarkFinished(ctx context.Context, id, resultURL string, finishedAt time.Time) error
	MarkFailed(ctx context.Context, id, message string, finishedAt time.Time) error
	ListBySchedule(ctx context.Context, scheduleID string) ([]models.ExportJob, error)
	ListQueued(ctx context.Context, limit int) ([]models.ExportJob, error)
}

type exportScheduleReader interface {
	FindByID(ctx context.Context, id string) (*models.Schedule, error)
}

type jobDispatcher interface {
	Enqueue(job jobs.Job) error
}

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// ExportServiceConfig tunes export behaviour.
type ExportServiceConfig struct {
	APIPrefix       string
	ResultTTL       time.Duration
	CleanupInterval time.Duration
	MaxRetries      int
}

// ExportResult captures successful generation metadata.
type ExportResult struct {
	RelativePath string
	Token        string
	URL          string
	Format       models.ExportFormat
	ExpiresAt    time.Time
}

// ExportDownload aggregates resolved download data.
type ExportDownload struct {
	File      *os.File
	Filename  string
	Format    models.ExportFormat
	ExpiresAt time.Time
}

// ExportService turns a stored schedule into a downloadable CSV or PDF
// sheet. Requests are queued, rendered by a background worker and served
// back through short-lived signed download tokens.
type ExportService struct {
	repo      exportJobStore
	schedules exportScheduleReader
	details   reportAssignmentReader
	queue     jobDispatcher
	storage   fileStorage
	csv       csvRenderer
	pdf       pdfRenderer
	signer    *storage.SignedURLSigner
	validator *validator.Validate
	logger    *zap.Logger
	cfg       ExportServiceConfig
}

// NewExportService constructs an ExportService.
func NewExportService(
	repo exportJobStore,
	schedules exportScheduleReader,
	details reportAssignmentReader,
	queue jobDispatcher,
	fs fileStorage,
	signer *storage.SignedURLSigner,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg ExportServiceConfig,
) *ExportService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	return &ExportService{
		repo:      repo,
		schedules: schedules,
		details:   details,
		queue:     queue,
		storage:   fs,
		csv:       export.NewCSVExporter(),
		pdf:       export.NewPDFExporter(),
		signer:    signer,
		validator: validate,
		logger:    logger,
		cfg:       cfg,
	}
}

// CreateJob persists a queued export for the schedule and hands it to the
// worker queue.
func (s *ExportService) CreateJob(ctx context.Context, scheduleID string, req dto.ExportScheduleRequest, actorID string) (*dto.ExportJobResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid export payload")
	}
	format := models.ExportFormat(strings.ToLower(req.Format))
	if format != models.ExportFormatCSV && format != models.ExportFormatPDF {
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}
	if _, err := s.schedules.FindByID(ctx, scheduleID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "schedule not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load schedule")
	}

	job := &models.ExportJob{
		ScheduleID: scheduleID,
		Params:     models.ExportJobParams{Format: format},
		Status:     models.ExportStatusQueued,
		Progress:   0,
		CreatedBy:  actorID,
	}
	if err := s.repo.Create(ctx, job); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create export job")
	}
	if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: string(format)}); err != nil {
		now := time.Now().UTC()
		_ = s.repo.MarkFailed(ctx, job.ID, "failed to enqueue job", now)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue export job")
	}
	return &dto.ExportJobResponse{ID: job.ID, Status: string(job.Status), Progress: job.Progress}, nil
}

// GetStatus exposes job metadata, enforcing ownership for member accounts.
func (s *ExportService) GetStatus(ctx context.Context, id, actorID string, role models.UserRole) (*dto.ExportStatusResponse, error) {
	job, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "export job not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load export job")
	}
	if role == models.RoleMember && job.CreatedBy != actorID {
		return nil, appErrors.ErrForbidden
	}
	return exportStatusView(job), nil
}

// ListBySchedule returns a schedule's export jobs, newest first.
func (s *ExportService) ListBySchedule(ctx context.Context, scheduleID string) ([]dto.ExportStatusResponse, error) {
	records, err := s.repo.ListBySchedule(ctx, scheduleID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list export jobs")
	}
	views := make([]dto.ExportStatusResponse, 0, len(records))
	for i := range records {
		views = append(views, *exportStatusView(&records[i]))
	}
	return views, nil
}

// ResolveDownload validates a token and opens the stored export file.
func (s *ExportService) ResolveDownload(ctx context.Context, token string) (*ExportDownload, error) {
	jobID, relPath, expiresAt, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "invalid or expired download token")
	}
	job, err := s.repo.FindByID(ctx, jobID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "export job not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load export job")
	}
	if job.ResultURL == nil || !strings.HasSuffix(*job.ResultURL, token) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "token mismatch")
	}
	if job.Status != models.ExportStatusFinished {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "export not ready")
	}
	file, err := s.storage.Open(relPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open export file")
	}
	return &ExportDownload{
		File:      file,
		Filename:  strings.TrimPrefix(relPath, "./"),
		Format:    job.Params.Format,
		ExpiresAt: expiresAt,
	}, nil
}

// Generate renders one export job and stores the file. It is invoked by
// the queue worker, never by request handlers.
func (s *ExportService) Generate(ctx context.Context, job *models.ExportJob) (*ExportResult, error) {
	if job == nil {
		return nil, fmt.Errorf("job nil")
	}
	schedule, err := s.schedules.FindByID(ctx, job.ScheduleID)
	if err != nil {
		return nil, fmt.Errorf("load schedule: %w", err)
	}
	rows, err := s.details.ListBySchedule(ctx, job.ScheduleID)
	if err != nil {
		return nil, fmt.Errorf("load assignments: %w", err)
	}
	dataset := scheduleDataset(rows)
	title := fmt.Sprintf("Turnos %s", schedule.Name)

	var payload []byte
	switch job.Params.Format {
	case models.ExportFormatCSV:
		payload, err = s.csv.Render(dataset)
	case models.ExportFormatPDF:
		payload, err = s.pdf.Render(dataset, title)
	default:
		err = fmt.Errorf("unsupported format %s", job.Params.Format)
	}
	if err != nil {
		return nil, err
	}

	filename := exportFilename(schedule, job.Params.Format)
	relPath, err := s.storage.Save(filename, payload)
	if err != nil {
		return nil, err
	}
	token, expiresAt, err := s.signer.Generate(job.ID, relPath)
	if err != nil {
		return nil, err
	}
	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	if prefix == "" {
		prefix = "/api/v1"
	}
	return &ExportResult{
		RelativePath: relPath,
		Token:        token,
		URL:          fmt.Sprintf("%s/exports/download/%s", prefix, token),
		Format:       job.Params.Format,
		ExpiresAt:    expiresAt,
	}, nil
}

// RecoverPendingJobs replays queued jobs after a process restart.
func (s *ExportService) RecoverPendingJobs(ctx context.Context) {
	pending, err := s.repo.ListQueued(ctx, 50)
	if err != nil {
		s.logger.Warn("failed to recover queued export jobs", zap.Error(err))
		return
	}
	for _, job := range pending {
		if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: string(job.Params.Format)}); err != nil {
			s.logger.Warn("failed to requeue pending export", zap.String("job_id", job.ID), zap.Error(err))
		}
	}
}

// StartCleanup boots a goroutine that purges expired export files.
func (s *ExportService) StartCleanup(ctx context.Context) {
	if s.cfg.CleanupInterval <= 0 {
		return
	}
	ticker := time.NewTicker(s.cfg.CleanupInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				removed, err := s.storage.CleanupOlderThan(s.cfg.ResultTTL)
				if err != nil {
					s.logger.Warn("export cleanup failed", zap.Error(err))
					continue
				}
				if len(removed) > 0 {
					s.logger.Info("expired exports removed", zap.Int("count", len(removed)))
				}
			}
		}
	}()
}

func exportStatusView(job *models.ExportJob) *dto.ExportStatusResponse {
	resp := &dto.ExportStatusResponse{
		ID:       job.ID,
		Status:   string(job.Status),
		Progress: job.Progress,
	}
	if job.ResultURL != nil {
		resp.ResultURL = job.ResultURL
	}
	if job.ErrorMessage != nil && *job.ErrorMessage != "" {
		resp.Error = job.ErrorMessage
	}
	return resp
}

func scheduleDataset(rows []models.AssignmentDetail) export.Dataset {
	dataRows := make([]map[string]string, 0, len(rows))
	for i := range rows {
		row := &rows[i]
		person := ""
		if row.PersonName != nil {
			person = *row.PersonName
		}
		position := fmt.Sprintf("%d", row.Position)
		if row.PositionName != nil && *row.PositionName != "" {
			position = *row.PositionName
		}
		dataRows = append(dataRows, map[string]string{
			"Fecha":    row.ServiceDate.Format("2006-01-02"),
			"Puesto":   row.JobName,
			"Posición": position,
			"Persona":  person,
		})
	}
	return export.Dataset{
		Headers: []string{"Fecha", "Puesto", "Posición", "Persona"},
		Rows:    dataRows,
	}
}

func exportFilename(schedule *models.Schedule, format models.ExportFormat) string {
	timestamp := time.Now().UTC().Format("20060102_150405")
	return fmt.Sprintf("turnos_%d-%02d_%s.%s", schedule.Year, schedule.Month, timestamp, format)
}

// ExportWorker bridges queue jobs to ExportService.
type ExportWorker struct {
	repo       exportJobStore
	generator  exportGenerator
	logger     *zap.Logger
	maxRetries int
}

type exportGenerator interface {
	Generate(ctx context.Context, job *models.ExportJob) (*ExportResult, error)
}

// NewExportWorker constructs a worker.
func NewExportWorker(repo exportJobStore, generator exportGenerator, maxRetries int, logger *zap.Logger) *ExportWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &ExportWorker{
		repo:       repo,
		generator:  generator,
		logger:     logger,
		maxRetries: maxRetries,
	}
}

// Handle processes one queue job. Failures before the retry budget is
// spent requeue the record; the final failure is persisted.
func (w *ExportWorker) Handle(ctx context.Context, job jobs.Job) error {
	record, err := w.repo.FindByID(ctx, job.ID)
	if err != nil {
		return err
	}
	if err := w.repo.UpdateProgress(ctx, job.ID, models.ExportStatusProcessing, 10); err != nil {
		return err
	}
	result, err := w.generator.Generate(ctx, record)
	if err != nil {
		if job.Attempt >= w.maxRetries {
			if markErr := w.repo.MarkFailed(ctx, job.ID, err.Error(), time.Now().UTC()); markErr != nil {
				w.logger.Warn("failed to mark export failed", zap.String("job_id", job.ID), zap.Error(markErr))
			}
		} else {
			if resetErr := w.repo.UpdateProgress(ctx, job.ID, models.ExportStatusQueued, 0); resetErr != nil {
				w.logger.Warn("failed to requeue export", zap.String("job_id", job.ID), zap.Error(resetErr))
			}
		}
		return err
	}
	if err := w.repo.MarkFinished(ctx, job.ID, result.URL, time.Now().UTC()); err != nil {
		w.logger.Warn("failed to mark export finished", zap.String("job_id", job.ID), zap.Error(err))
		return err
	}
	return nil
}
