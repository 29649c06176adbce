package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parroquia-tools/turnos-api/internal/dto"
	"github.com/parroquia-tools/turnos-api/internal/models"
	appErrors "github.com/parroquia-tools/turnos-api/pkg/errors"
	"github.com/parroquia-tools/turnos-api/pkg/jobs"
	"github.com/parroquia-tools/turnos-api/pkg/storage"
)

type exportJobRepoStub struct {
	records     map[string]*models.ExportJob
	seq         int
	statusTrace []models.ExportStatus
}

func newExportJobRepoStub() *exportJobRepoStub {
	return &exportJobRepoStub{records: make(map[string]*models.ExportJob)}
}

func (s *exportJobRepoStub) Create(ctx context.Context, job *models.ExportJob) error {
	s.seq++
	if job.ID == "" {
		job.ID = fmt.Sprintf("e%d", s.seq)
	}
	job.CreatedAt = time.Now().UTC()
	copied := *job
	s.records[job.ID] = &copied
	return nil
}

func (s *exportJobRepoStub) FindByID(ctx context.Context, id string) (*models.ExportJob, error) {
	job, ok := s.records[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return job, nil
}

func (s *exportJobRepoStub) UpdateProgress(ctx context.Context, id string, status models.ExportStatus, progress int) error {
	job, ok := s.records[id]
	if !ok {
		return sql.ErrNoRows
	}
	job.Status = status
	job.Progress = progress
	s.statusTrace = append(s.statusTrace, status)
	return nil
}

func (s *exportJobRepoStub) MarkFinished(ctx context.Context, id, resultURL string, finishedAt time.Time) error {
	job, ok := s.records[id]
	if !ok {
		return sql.ErrNoRows
	}
	job.Status = models.ExportStatusFinished
	job.Progress = 100
	job.ResultURL = &resultURL
	job.FinishedAt = &finishedAt
	s.statusTrace = append(s.statusTrace, models.ExportStatusFinished)
	return nil
}

func (s *exportJobRepoStub) MarkFailed(ctx context.Context, id, message string, finishedAt time.Time) error {
	job, ok := s.records[id]
	if !ok {
		return sql.ErrNoRows
	}
	job.Status = models.ExportStatusFailed
	job.ErrorMessage = &message
	job.FinishedAt = &finishedAt
	s.statusTrace = append(s.statusTrace, models.ExportStatusFailed)
	return nil
}

func (s *exportJobRepoStub) ListBySchedule(ctx context.Context, scheduleID string) ([]models.ExportJob, error) {
	out := make([]models.ExportJob, 0)
	for _, job := range s.records {
		if job.ScheduleID == scheduleID {
			out = append(out, *job)
		}
	}
	return out, nil
}

func (s *exportJobRepoStub) ListQueued(ctx context.Context, limit int) ([]models.ExportJob, error) {
	out := make([]models.ExportJob, 0)
	for _, job := range s.records {
		if job.Status == models.ExportStatusQueued && len(out) < limit {
			out = append(out, *job)
		}
	}
	return out, nil
}

type exportSchedStub struct {
	schedules map[string]models.Schedule
}

func (s exportSchedStub) FindByID(ctx context.Context, id string) (*models.Schedule, error) {
	sched, ok := s.schedules[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &sched, nil
}

type queueSpy struct {
	enqueued []jobs.Job
	err      error
}

func (q *queueSpy) Enqueue(job jobs.Job) error {
	if q.err != nil {
		return q.err
	}
	q.enqueued = append(q.enqueued, job)
	return nil
}

type exportFixture struct {
	svc    *ExportService
	repo   *exportJobRepoStub
	queue  *queueSpy
	fs     *storage.LocalStorage
	signer *storage.SignedURLSigner
}

func newExportFixture(t *testing.T) *exportFixture {
	t.Helper()
	repo := newExportJobRepoStub()
	queue := &queueSpy{}
	fs, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("export-test-secret", time.Hour)
	schedules := exportSchedStub{schedules: map[string]models.Schedule{
		"s1": publishedSchedule("s1"),
	}}
	details := reportAssignmentsStub{details: fixtureDetails("s1", true)}
	svc := NewExportService(repo, schedules, details, queue, fs, signer, nil, nil, ExportServiceConfig{
		APIPrefix:  "/api/v1",
		ResultTTL:  time.Hour,
		MaxRetries: 2,
	})
	return &exportFixture{svc: svc, repo: repo, queue: queue, fs: fs, signer: signer}
}

func TestExportServiceCreateJobEnqueues(t *testing.T) {
	f := newExportFixture(t)

	resp, err := f.svc.CreateJob(context.Background(), "s1", dto.ExportScheduleRequest{Format: "CSV"}, "u1")
	require.NoError(t, err)
	assert.Equal(t, "QUEUED", resp.Status)
	assert.Equal(t, 0, resp.Progress)

	require.Len(t, f.queue.enqueued, 1)
	assert.Equal(t, resp.ID, f.queue.enqueued[0].ID)
	assert.Equal(t, "csv", f.queue.enqueued[0].Type)

	stored, err := f.repo.FindByID(context.Background(), resp.ID)
	require.NoError(t, err)
	assert.Equal(t, "u1", stored.CreatedBy)
	assert.Equal(t, models.ExportFormatCSV, stored.Params.Format)
}

func TestExportServiceCreateJobRejectsFormat(t *testing.T) {
	f := newExportFixture(t)

	_, err := f.svc.CreateJob(context.Background(), "s1", dto.ExportScheduleRequest{Format: "xlsx"}, "u1")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	assert.Empty(t, f.queue.enqueued)
}

func TestExportServiceCreateJobUnknownSchedule(t *testing.T) {
	f := newExportFixture(t)

	_, err := f.svc.CreateJob(context.Background(), "ghost", dto.ExportScheduleRequest{Format: "pdf"}, "u1")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
	assert.Empty(t, f.queue.enqueued)
}

func TestExportServiceCreateJobEnqueueFailure(t *testing.T) {
	f := newExportFixture(t)
	f.queue.err = errors.New("queue stopped")

	_, err := f.svc.CreateJob(context.Background(), "s1", dto.ExportScheduleRequest{Format: "csv"}, "u1")
	require.Error(t, err)

	// The persisted record is marked failed so it is not replayed on restart.
	records, listErr := f.repo.ListBySchedule(context.Background(), "s1")
	require.NoError(t, listErr)
	require.Len(t, records, 1)
	assert.Equal(t, models.ExportStatusFailed, records[0].Status)
}

func TestExportServiceGetStatusOwnership(t *testing.T) {
	f := newExportFixture(t)
	resp, err := f.svc.CreateJob(context.Background(), "s1", dto.ExportScheduleRequest{Format: "csv"}, "u1")
	require.NoError(t, err)

	_, err = f.svc.GetStatus(context.Background(), resp.ID, "u2", models.RoleMember)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	own, err := f.svc.GetStatus(context.Background(), resp.ID, "u1", models.RoleMember)
	require.NoError(t, err)
	assert.Equal(t, "QUEUED", own.Status)

	staff, err := f.svc.GetStatus(context.Background(), resp.ID, "u2", models.RoleCoordinator)
	require.NoError(t, err)
	assert.Equal(t, resp.ID, staff.ID)
}

func TestExportServiceGetStatusUnknown(t *testing.T) {
	f := newExportFixture(t)

	_, err := f.svc.GetStatus(context.Background(), "ghost", "u1", models.RoleAdmin)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestExportServiceGenerateWritesCSV(t *testing.T) {
	f := newExportFixture(t)
	job := &models.ExportJob{ID: "e1", ScheduleID: "s1", Params: models.ExportJobParams{Format: models.ExportFormatCSV}}

	result, err := f.svc.Generate(context.Background(), job)
	require.NoError(t, err)
	assert.Equal(t, models.ExportFormatCSV, result.Format)
	assert.True(t, strings.HasPrefix(result.URL, "/api/v1/exports/download/"), result.URL)
	assert.True(t, strings.HasPrefix(result.RelativePath, "turnos_2026-02_"), result.RelativePath)
	assert.True(t, strings.HasSuffix(result.RelativePath, ".csv"), result.RelativePath)

	file, err := f.fs.Open(result.RelativePath)
	require.NoError(t, err)
	defer file.Close() //nolint:errcheck
	content, err := io.ReadAll(file)
	require.NoError(t, err)
	text := string(content)
	assert.Contains(t, text, "Fecha,Puesto")
	assert.Contains(t, text, "2026-02-01,Monaguillos,Monaguillo 1,Niño1 García")
	assert.Contains(t, text, "Lectores,Lector,Niño3 García")
}

func TestExportServiceResolveDownload(t *testing.T) {
	f := newExportFixture(t)
	job := &models.ExportJob{ScheduleID: "s1", Params: models.ExportJobParams{Format: models.ExportFormatCSV}, Status: models.ExportStatusQueued, CreatedBy: "u1"}
	require.NoError(t, f.repo.Create(context.Background(), job))

	stored, err := f.repo.FindByID(context.Background(), job.ID)
	require.NoError(t, err)
	result, err := f.svc.Generate(context.Background(), stored)
	require.NoError(t, err)
	require.NoError(t, f.repo.MarkFinished(context.Background(), job.ID, result.URL, time.Now().UTC()))

	download, err := f.svc.ResolveDownload(context.Background(), result.Token)
	require.NoError(t, err)
	defer download.File.Close() //nolint:errcheck
	assert.Equal(t, models.ExportFormatCSV, download.Format)
	assert.Equal(t, result.RelativePath, download.Filename)

	content, err := io.ReadAll(download.File)
	require.NoError(t, err)
	assert.Contains(t, string(content), "Fecha,Puesto")
}

func TestExportServiceResolveDownloadTamperedToken(t *testing.T) {
	f := newExportFixture(t)
	token, _, err := f.signer.Generate("e1", "turnos_2026-02_x.csv")
	require.NoError(t, err)

	_, err = f.svc.ResolveDownload(context.Background(), token+"x")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestExportServiceResolveDownloadNotReady(t *testing.T) {
	f := newExportFixture(t)
	job := &models.ExportJob{ScheduleID: "s1", Params: models.ExportJobParams{Format: models.ExportFormatCSV}, Status: models.ExportStatusQueued}
	require.NoError(t, f.repo.Create(context.Background(), job))

	token, _, err := f.signer.Generate(job.ID, "turnos_2026-02_x.csv")
	require.NoError(t, err)
	url := "/api/v1/exports/download/" + token
	stored, err := f.repo.FindByID(context.Background(), job.ID)
	require.NoError(t, err)
	stored.ResultURL = &url

	_, err = f.svc.ResolveDownload(context.Background(), token)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestExportServiceRecoverPendingJobs(t *testing.T) {
	f := newExportFixture(t)
	queued := &models.ExportJob{ScheduleID: "s1", Params: models.ExportJobParams{Format: models.ExportFormatPDF}, Status: models.ExportStatusQueued}
	done := &models.ExportJob{ScheduleID: "s1", Params: models.ExportJobParams{Format: models.ExportFormatCSV}, Status: models.ExportStatusFinished}
	require.NoError(t, f.repo.Create(context.Background(), queued))
	require.NoError(t, f.repo.Create(context.Background(), done))

	f.svc.RecoverPendingJobs(context.Background())

	require.Len(t, f.queue.enqueued, 1)
	assert.Equal(t, queued.ID, f.queue.enqueued[0].ID)
	assert.Equal(t, "pdf", f.queue.enqueued[0].Type)
}

type generatorStub struct {
	result *ExportResult
	err    error
	calls  int
}

func (g *generatorStub) Generate(ctx context.Context, job *models.ExportJob) (*ExportResult, error) {
	g.calls++
	if g.err != nil {
		return nil, g.err
	}
	return g.result, nil
}

func TestExportWorkerHandleSuccess(t *testing.T) {
	repo := newExportJobRepoStub()
	job := &models.ExportJob{ScheduleID: "s1", Params: models.ExportJobParams{Format: models.ExportFormatCSV}, Status: models.ExportStatusQueued}
	require.NoError(t, repo.Create(context.Background(), job))

	gen := &generatorStub{result: &ExportResult{URL: "/api/v1/exports/download/tok"}}
	worker := NewExportWorker(repo, gen, 2, nil)

	err := worker.Handle(context.Background(), jobs.Job{ID: job.ID, Attempt: 1})
	require.NoError(t, err)
	assert.Equal(t, 1, gen.calls)

	stored, err := repo.FindByID(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ExportStatusFinished, stored.Status)
	require.NotNil(t, stored.ResultURL)
	assert.Equal(t, "/api/v1/exports/download/tok", *stored.ResultURL)
	assert.Equal(t, []models.ExportStatus{models.ExportStatusProcessing, models.ExportStatusFinished}, repo.statusTrace)
}

func TestExportWorkerRequeuesBeforeBudget(t *testing.T) {
	repo := newExportJobRepoStub()
	job := &models.ExportJob{ScheduleID: "s1", Params: models.ExportJobParams{Format: models.ExportFormatCSV}, Status: models.ExportStatusQueued}
	require.NoError(t, repo.Create(context.Background(), job))

	gen := &generatorStub{err: errors.New("render failed")}
	worker := NewExportWorker(repo, gen, 3, nil)

	err := worker.Handle(context.Background(), jobs.Job{ID: job.ID, Attempt: 1})
	require.Error(t, err)

	stored, findErr := repo.FindByID(context.Background(), job.ID)
	require.NoError(t, findErr)
	assert.Equal(t, models.ExportStatusQueued, stored.Status)
	assert.Equal(t, 0, stored.Progress)
	assert.Nil(t, stored.ErrorMessage)
}

func TestExportWorkerMarksFailedAtBudget(t *testing.T) {
	repo := newExportJobRepoStub()
	job := &models.ExportJob{ScheduleID: "s1", Params: models.ExportJobParams{Format: models.ExportFormatCSV}, Status: models.ExportStatusQueued}
	require.NoError(t, repo.Create(context.Background(), job))

	gen := &generatorStub{err: errors.New("render failed")}
	worker := NewExportWorker(repo, gen, 3, nil)

	err := worker.Handle(context.Background(), jobs.Job{ID: job.ID, Attempt: 3})
	require.Error(t, err)

	stored, findErr := repo.FindByID(context.Background(), job.ID)
	require.NoError(t, findErr)
	assert.Equal(t, models.ExportStatusFailed, stored.Status)
	require.NotNil(t, stored.ErrorMessage)
	assert.Contains(t, *stored.ErrorMessage, "render failed")
}
