package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parroquia-tools/turnos-api/internal/models"
)

func newHistoryMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestHistoryRepositoryBulkCreateDerivesWeek(t *testing.T) {
	db, mock, cleanup := newHistoryMock(t)
	defer cleanup()
	repo := NewHistoryRepository(db)

	mock.ExpectExec("INSERT INTO assignment_history").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	entries := []models.AssignmentHistory{
		{PersonID: "p-1", JobID: "job-1", ServiceDate: time.Date(2026, 1, 4, 0, 0, 0, 0, time.UTC), Position: 1},
	}
	err := repo.BulkCreate(context.Background(), nil, entries)
	require.NoError(t, err)
	assert.NotEmpty(t, entries[0].ID)
	assert.Equal(t, 2026, entries[0].Year)
	assert.Equal(t, 1, entries[0].WeekNumber)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHistoryRepositoryListByYear(t *testing.T) {
	db, mock, cleanup := newHistoryMock(t)
	defer cleanup()
	repo := NewHistoryRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "person_id", "job_id", "service_date", "year", "week_number", "position", "created_at"}).
		AddRow("h-1", "p-1", "job-1", time.Date(2026, 1, 4, 0, 0, 0, 0, time.UTC), 2026, 1, 1, now)
	mock.ExpectQuery(regexp.QuoteMeta("FROM assignment_history WHERE year = $1 ORDER BY service_date ASC, person_id ASC")).
		WithArgs(2026).
		WillReturnRows(rows)

	entries, err := repo.ListByYear(context.Background(), 2026)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHistoryRepositoryListByPersonLimit(t *testing.T) {
	db, mock, cleanup := newHistoryMock(t)
	defer cleanup()
	repo := NewHistoryRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "person_id", "job_id", "service_date", "year", "week_number", "position", "created_at"}).
		AddRow("h-2", "p-1", "job-1", time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC), 2026, 5, 2, now)
	mock.ExpectQuery(regexp.QuoteMeta("FROM assignment_history WHERE person_id = $1 ORDER BY service_date DESC LIMIT $2")).
		WithArgs("p-1", 5).
		WillReturnRows(rows)

	entries, err := repo.ListByPerson(context.Background(), "p-1", 5)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHistoryRepositoryDeleteByServiceDates(t *testing.T) {
	db, mock, cleanup := newHistoryMock(t)
	defer cleanup()
	repo := NewHistoryRepository(db)

	date := time.Date(2026, 1, 4, 0, 0, 0, 0, time.UTC)
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM assignment_history WHERE service_date = $1")).
		WithArgs(date).
		WillReturnResult(sqlmock.NewResult(0, 4))

	err := repo.DeleteByServiceDates(context.Background(), nil, []time.Time{date})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
