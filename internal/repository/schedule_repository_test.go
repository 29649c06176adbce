package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parroquia-tools/turnos-api/internal/models"
)

func newScheduleRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestScheduleRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newScheduleRepoMock(t)
	defer cleanup()
	repo := NewScheduleRepository(db)

	mock.ExpectExec("INSERT INTO schedules").
		WithArgs(sqlmock.AnyArg(), 2026, 1, "Enero 2026", string(models.ScheduleDraft), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	schedule := &models.Schedule{Year: 2026, Month: 1, Name: "Enero 2026"}
	err := repo.Create(context.Background(), nil, schedule)
	require.NoError(t, err)
	assert.NotEmpty(t, schedule.ID)
	assert.Equal(t, models.ScheduleDraft, schedule.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduleRepositoryFindByYearMonth(t *testing.T) {
	db, mock, cleanup := newScheduleRepoMock(t)
	defer cleanup()
	repo := NewScheduleRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "year", "month", "name", "status", "created_at", "updated_at"}).
		AddRow("sch-1", 2026, 1, "Enero 2026", string(models.SchedulePublished), now, now)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, year, month, name, status, created_at, updated_at FROM schedules WHERE year = $1 AND month = $2 LIMIT 1")).
		WithArgs(2026, 1).
		WillReturnRows(rows)

	schedule, err := repo.FindByYearMonth(context.Background(), 2026, 1)
	require.NoError(t, err)
	assert.Equal(t, "sch-1", schedule.ID)
	assert.Equal(t, models.SchedulePublished, schedule.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduleRepositoryList(t *testing.T) {
	db, mock, cleanup := newScheduleRepoMock(t)
	defer cleanup()
	repo := NewScheduleRepository(db)

	now := time.Now()
	year := 2026
	status := models.ScheduleDraft
	rows := sqlmock.NewRows([]string{"id", "year", "month", "name", "status", "created_at", "updated_at"}).
		AddRow("sch-2", 2026, 2, "Febrero 2026", string(models.ScheduleDraft), now, now)
	mock.ExpectQuery(regexp.QuoteMeta("FROM schedules WHERE 1=1 AND year = $1 AND status = $2 ORDER BY year DESC, month DESC")).
		WithArgs(2026, status).
		WillReturnRows(rows)

	schedules, err := repo.List(context.Background(), models.ScheduleFilter{Year: &year, Status: &status})
	require.NoError(t, err)
	assert.Len(t, schedules, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduleRepositoryUpdateStatusNotFound(t *testing.T) {
	db, mock, cleanup := newScheduleRepoMock(t)
	defer cleanup()
	repo := NewScheduleRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE schedules SET status = $2, updated_at = $3 WHERE id = $1")).
		WithArgs("missing", models.SchedulePublished, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateStatus(context.Background(), nil, "missing", models.SchedulePublished)
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduleRepositoryDelete(t *testing.T) {
	db, mock, cleanup := newScheduleRepoMock(t)
	defer cleanup()
	repo := NewScheduleRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM schedules WHERE id = $1")).
		WithArgs("sch-1").
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, repo.Delete(context.Background(), nil, "sch-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduleRepositoryServiceDates(t *testing.T) {
	db, mock, cleanup := newScheduleRepoMock(t)
	defer cleanup()
	repo := NewScheduleRepository(db)

	first := time.Date(2026, 1, 4, 0, 0, 0, 0, time.UTC)
	second := time.Date(2026, 1, 11, 0, 0, 0, 0, time.UTC)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO service_dates (id, schedule_id, service_date) VALUES ($1, $2, $3)")).
		WithArgs(sqlmock.AnyArg(), "sch-1", first).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO service_dates (id, schedule_id, service_date) VALUES ($1, $2, $3)")).
		WithArgs(sqlmock.AnyArg(), "sch-1", second).
		WillReturnResult(sqlmock.NewResult(1, 1))

	dates := []models.ServiceDate{
		{ScheduleID: "sch-1", Date: first},
		{ScheduleID: "sch-1", Date: second},
	}
	require.NoError(t, repo.CreateServiceDates(context.Background(), nil, dates))
	assert.NotEmpty(t, dates[0].ID)
	assert.NotEmpty(t, dates[1].ID)

	rows := sqlmock.NewRows([]string{"id", "schedule_id", "service_date"}).
		AddRow(dates[0].ID, "sch-1", first).
		AddRow(dates[1].ID, "sch-1", second)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, schedule_id, service_date FROM service_dates WHERE schedule_id = $1 ORDER BY service_date ASC")).
		WithArgs("sch-1").
		WillReturnRows(rows)

	listed, err := repo.ListServiceDates(context.Background(), "sch-1")
	require.NoError(t, err)
	assert.Len(t, listed, 2)
	assert.NoError(t, mock.ExpectationsWereMet())
}
