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

func newSiblingMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestSiblingRepositoryListAttachesMembers(t *testing.T) {
	db, mock, cleanup := newSiblingMock(t)
	defer cleanup()
	repo := NewSiblingRepository(db)

	now := time.Now()
	groups := sqlmock.NewRows([]string{"id", "name", "pairing_rule", "created_at", "updated_at"}).
		AddRow("g-1", "Moreno", string(models.PairTogether), now, now).
		AddRow("g-2", "Perez", string(models.PairSeparate), now, now)
	mock.ExpectQuery(regexp.QuoteMeta("FROM sibling_groups ORDER BY name ASC, id ASC")).
		WillReturnRows(groups)
	members := sqlmock.NewRows([]string{"group_id", "person_id"}).
		AddRow("g-1", "p-1").
		AddRow("g-1", "p-2").
		AddRow("g-2", "p-3")
	mock.ExpectQuery(regexp.QuoteMeta("SELECT group_id, person_id FROM sibling_group_members WHERE group_id = ANY($1)")).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(members)

	list, err := repo.List(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, []string{"p-1", "p-2"}, list[0].MemberIDs)
	assert.Equal(t, []string{"p-3"}, list[1].MemberIDs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSiblingRepositoryCreateAndReplaceMembers(t *testing.T) {
	db, mock, cleanup := newSiblingMock(t)
	defer cleanup()
	repo := NewSiblingRepository(db)

	mock.ExpectExec("INSERT INTO sibling_groups").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	group := &models.SiblingGroup{Name: "Moreno", PairingRule: models.PairSeparate}
	require.NoError(t, repo.Create(context.Background(), nil, group))
	assert.NotEmpty(t, group.ID)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM sibling_group_members WHERE group_id = $1")).
		WithArgs(group.ID).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO sibling_group_members (group_id, person_id) VALUES ($1, $2)")).
		WithArgs(group.ID, "p-1").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO sibling_group_members (group_id, person_id) VALUES ($1, $2)")).
		WithArgs(group.ID, "p-2").
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, repo.ReplaceMembers(context.Background(), nil, group.ID, []string{"p-1", "p-2"}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSiblingRepositoryDeleteNotFound(t *testing.T) {
	db, mock, cleanup := newSiblingMock(t)
	defer cleanup()
	repo := NewSiblingRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM sibling_group_members WHERE group_id = $1")).
		WithArgs("missing").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM sibling_groups WHERE id = $1")).
		WithArgs("missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Delete(context.Background(), nil, "missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}
