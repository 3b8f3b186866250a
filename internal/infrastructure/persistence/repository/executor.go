// Package repository contains the sqlite implementations of the port
// interfaces. Repositories join the transaction carried in the context, so
// the same instance works inside and outside transactions.
package repository

import (
	"context"
	"database/sql"

	"github.com/millworks/backoffice/pkg/database"
)

// executor interface covers both *sql.DB and *sql.Tx
type executor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// getExecutor returns the context's transaction when present, the pool
// otherwise
func getExecutor(ctx context.Context, db *sql.DB) executor {
	if tx, ok := database.TxFrom(ctx); ok {
		return tx
	}
	return db
}
