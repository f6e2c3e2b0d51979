package core

import (
	"context"
	"database/sql"
)

// Querier is the statement surface shared by a Database and an open
// Transaction, so read paths can run inside or outside a snapshot.
type Querier interface {
	// Query executes a statement that returns rows.
	Query(ctx context.Context, query string, args ...interface{}) (Rows, error)

	// Exec executes a statement that returns no rows.
	Exec(ctx context.Context, query string, args ...interface{}) (Result, error)
}

// Database is the relational store holding the logical tables.
type Database interface {
	Querier

	// BeginTx starts a transaction. A nil opts uses the driver defaults.
	BeginTx(ctx context.Context, opts *sql.TxOptions) (Transaction, error)

	// Ping verifies the store is reachable.
	Ping(ctx context.Context) error

	// Close releases the connection pool.
	Close() error
}

// Transaction is an open store transaction.
type Transaction interface {
	Querier

	Commit() error
	Rollback() error
}

// Rows is a forward-only cursor over a result set.
type Rows interface {
	Next() bool
	Scan(dest ...interface{}) error
	Close() error
	Err() error
}

// Result describes the outcome of an Exec.
type Result interface {
	LastInsertId() (int64, error)
	RowsAffected() (int64, error)
}
