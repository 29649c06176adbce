package service

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
)

// txProvider begins sqlx transactions. *sqlx.DB satisfies it; tests swap in
// sqlmock-backed providers.
type txProvider interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}
