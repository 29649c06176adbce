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

func newAssignmentMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func assignmentDetailRows() *sqlmock.Rows {
	now := time.Now()
	personID := "p-1"
	positionName := "Monaguillo 1"
	personName := "Lucia Moreno"
	return sqlmock.NewRows([]string{"id", "service_date_id", "job_id", "position", "person_id", "position_name", "manual_override", "created_at", "updated_at", "schedule_id", "service_date", "job_name", "person_name"}).
		AddRow("a-1", "sd-1", "job-1", 1, personID, positionName, false, now, now, "sch-1", time.Date(2026, 1, 4, 0, 0, 0, 0, time.UTC), "Monaguillos", personName).
		AddRow("a-2", "sd-1", "job-1", 2, nil, "Monaguillo 2", false, now, now, "sch-1", time.Date(2026, 1, 4, 0, 0, 0, 0, time.UTC), "Monaguillos", nil)
}

func TestAssignmentRepositoryBulkCreate(t *testing.T) {
	db, mock, cleanup := newAssignmentMock(t)
	defer cleanup()
	repo := NewAssignmentRepository(db)

	mock.ExpectExec("INSERT INTO assignments").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO assignments").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	personID := "p-1"
	assignments := []models.Assignment{
		{ServiceDateID: "sd-1", JobID: "job-1", Position: 1, PersonID: &personID},
		{ServiceDateID: "sd-1", JobID: "job-1", Position: 2},
	}
	err := repo.BulkCreate(context.Background(), nil, assignments)
	require.NoError(t, err)
	assert.NotEmpty(t, assignments[0].ID)
	assert.NotEmpty(t, assignments[1].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAssignmentRepositoryListBySchedule(t *testing.T) {
	db, mock, cleanup := newAssignmentMock(t)
	defer cleanup()
	repo := NewAssignmentRepository(db)

	mock.ExpectQuery("SELECT a.id, a.service_date_id, .+ FROM assignments a").
		WithArgs("sch-1").
		WillReturnRows(assignmentDetailRows())

	details, err := repo.ListBySchedule(context.Background(), "sch-1")
	require.NoError(t, err)
	require.Len(t, details, 2)
	assert.Equal(t, "Monaguillos", details[0].JobName)
	require.NotNil(t, details[0].PersonID)
	assert.Equal(t, "p-1", *details[0].PersonID)
	assert.Nil(t, details[1].PersonID)
	assert.Nil(t, details[1].PersonName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAssignmentRepositoryListByPerson(t *testing.T) {
	db, mock, cleanup := newAssignmentMock(t)
	defer cleanup()
	repo := NewAssignmentRepository(db)

	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery("JOIN schedules s ON s.id = sd.schedule_id").
		WithArgs("p-1", models.SchedulePublished, from).
		WillReturnRows(assignmentDetailRows())

	details, err := repo.ListByPerson(context.Background(), "p-1", from)
	require.NoError(t, err)
	assert.Len(t, details, 2)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAssignmentRepositoryUpdatePerson(t *testing.T) {
	db, mock, cleanup := newAssignmentMock(t)
	defer cleanup()
	repo := NewAssignmentRepository(db)

	personID := "p-2"
	mock.ExpectExec(regexp.QuoteMeta("UPDATE assignments SET person_id = $2, manual_override = $3, updated_at = $4 WHERE id = $1")).
		WithArgs("a-1", &personID, true, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, repo.UpdatePerson(context.Background(), nil, "a-1", &personID, true))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAssignmentRepositoryUpdatePersonNotFound(t *testing.T) {
	db, mock, cleanup := newAssignmentMock(t)
	defer cleanup()
	repo := NewAssignmentRepository(db)

	mock.ExpectExec("UPDATE assignments SET person_id").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdatePerson(context.Background(), nil, "missing", nil, true)
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}
