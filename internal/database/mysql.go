package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/rzpsarthak13/transferdesk/internal/core"
)

// MySQLConfig holds what NewMySQLDatabase needs to open the pool.
type MySQLConfig struct {
	Host              string
	Port              int
	Database          string
	Username          string
	Password          string
	MaxOpenConns      int
	MaxIdleConns      int
	ConnMaxLifetime   time.Duration
	ConnMaxIdleTime   time.Duration
	ConnectionTimeout time.Duration
}

// DSN renders the driver connection string.
//
// clientFoundRows makes UPDATE report matched rows instead of changed rows,
// so rewriting a record with identical values is not mistaken for a miss.
func (c MySQLConfig) DSN() string {
	cfg := mysql.NewConfig()
	cfg.User = c.Username
	cfg.Passwd = c.Password
	cfg.Net = "tcp"
	cfg.Addr = fmt.Sprintf("%s:%d", c.Host, c.Port)
	cfg.DBName = c.Database
	cfg.ParseTime = true
	cfg.ClientFoundRows = true
	cfg.Timeout = c.ConnectionTimeout
	cfg.Params = map[string]string{"charset": "utf8mb4"}
	return cfg.FormatDSN()
}

// MySQLDatabase implements the core.Database interface using MySQL.
type MySQLDatabase struct {
	db     *sql.DB
	closed atomic.Bool
	logger zerolog.Logger
}

// NewMySQLDatabase opens the pool and pings it once.
func NewMySQLDatabase(cfg MySQLConfig) (*MySQLDatabase, error) {
	db, err := sql.Open("mysql", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	timeout := cfg.ConnectionTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", Classify(err))
	}

	return NewMySQLDatabaseFromDB(db), nil
}

// NewMySQLDatabaseFromDB wraps an already opened pool.
func NewMySQLDatabaseFromDB(db *sql.DB) *MySQLDatabase {
	return &MySQLDatabase{
		db:     db,
		logger: log.With().Str("component", "mysql").Logger(),
	}
}

// Query executes a SELECT query and returns rows.
func (m *MySQLDatabase) Query(ctx context.Context, query string, args ...interface{}) (core.Rows, error) {
	if m.closed.Load() {
		return nil, fmt.Errorf("database is closed")
	}
	start := time.Now()
	rows, err := m.db.QueryContext(ctx, query, args...)
	observeQuery("query", start, err)
	if err != nil {
		m.logger.Error().Err(err).Str("sql", compact(query)).Msg("query failed")
		return nil, fmt.Errorf("failed to execute query: %w", Classify(err))
	}
	m.logger.Debug().Str("sql", compact(query)).Interface("args", args).Dur("took", time.Since(start)).Msg("query")
	return &mysqlRows{rows: rows}, nil
}

// Exec executes a non-query statement and returns a result.
func (m *MySQLDatabase) Exec(ctx context.Context, query string, args ...interface{}) (core.Result, error) {
	if m.closed.Load() {
		return nil, fmt.Errorf("database is closed")
	}
	start := time.Now()
	result, err := m.db.ExecContext(ctx, query, args...)
	observeQuery("exec", start, err)
	if err != nil {
		m.logger.Error().Err(err).Str("sql", compact(query)).Msg("exec failed")
		return nil, fmt.Errorf("failed to execute statement: %w", Classify(err))
	}
	m.logger.Debug().Str("sql", compact(query)).Dur("took", time.Since(start)).Msg("exec")
	return result, nil
}

// BeginTx starts a new transaction.
func (m *MySQLDatabase) BeginTx(ctx context.Context, opts *sql.TxOptions) (core.Transaction, error) {
	if m.closed.Load() {
		return nil, fmt.Errorf("database is closed")
	}
	tx, err := m.db.BeginTx(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", Classify(err))
	}
	return &mysqlTransaction{tx: tx}, nil
}

// Ping verifies the pool can reach the server.
func (m *MySQLDatabase) Ping(ctx context.Context) error {
	if err := m.db.PingContext(ctx); err != nil {
		return Classify(err)
	}
	return nil
}

// GetSchema reads the column layout of a table from INFORMATION_SCHEMA.
// An empty schemaName selects the connection's default database.
func (m *MySQLDatabase) GetSchema(ctx context.Context, schemaName, tableName string) (*core.Schema, error) {
	rows, err := m.Query(ctx, columnsQuery, schemaName, tableName)
	if err != nil {
		return nil, fmt.Errorf("failed to query columns: %w", err)
	}
	defer rows.Close()
	return ScanSchema(tableName, rows)
}

const columnsQuery = `
		SELECT COLUMN_NAME, DATA_TYPE, IS_NULLABLE
		FROM INFORMATION_SCHEMA.COLUMNS
		WHERE TABLE_SCHEMA = COALESCE(NULLIF(?, ''), DATABASE()) AND TABLE_NAME = ?
		ORDER BY ORDINAL_POSITION
	`

// ColumnsQuery is the catalog query used by GetSchema. Arguments are the
// schema name override (may be empty) and the table name.
func ColumnsQuery() string { return columnsQuery }

// ScanSchema builds a core.Schema from rows shaped like ColumnsQuery.
func ScanSchema(tableName string, rows core.Rows) (*core.Schema, error) {
	schema := &core.Schema{TableName: tableName}
	for rows.Next() {
		var colName, dataType, isNullable string
		if err := rows.Scan(&colName, &dataType, &isNullable); err != nil {
			return nil, fmt.Errorf("failed to scan column: %w", err)
		}
		schema.Columns = append(schema.Columns, core.Column{
			Name:     colName,
			Type:     strings.ToLower(dataType),
			Nullable: isNullable == "YES",
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating columns: %w", Classify(err))
	}
	return schema, nil
}

// Close closes the database connection.
func (m *MySQLDatabase) Close() error {
	if m.closed.Swap(true) {
		return nil
	}
	return m.db.Close()
}

func compact(query string) string {
	return strings.Join(strings.Fields(query), " ")
}

// mysqlRows wraps sql.Rows to implement core.Rows.
type mysqlRows struct {
	rows *sql.Rows
}

func (r *mysqlRows) Next() bool {
	return r.rows.Next()
}

func (r *mysqlRows) Scan(dest ...interface{}) error {
	return r.rows.Scan(dest...)
}

func (r *mysqlRows) Close() error {
	return r.rows.Close()
}

func (r *mysqlRows) Err() error {
	return r.rows.Err()
}

// mysqlTransaction wraps sql.Tx to implement core.Transaction.
type mysqlTransaction struct {
	tx *sql.Tx
}

func (t *mysqlTransaction) Commit() error {
	return t.tx.Commit()
}

func (t *mysqlTransaction) Rollback() error {
	return t.tx.Rollback()
}

func (t *mysqlTransaction) Query(ctx context.Context, query string, args ...interface{}) (core.Rows, error) {
	start := time.Now()
	rows, err := t.tx.QueryContext(ctx, query, args...)
	observeQuery("query", start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", Classify(err))
	}
	return &mysqlRows{rows: rows}, nil
}

func (t *mysqlTransaction) Exec(ctx context.Context, query string, args ...interface{}) (core.Result, error) {
	start := time.Now()
	result, err := t.tx.ExecContext(ctx, query, args...)
	observeQuery("exec", start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to execute statement: %w", Classify(err))
	}
	return result, nil
}
