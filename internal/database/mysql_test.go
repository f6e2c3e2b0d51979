package database

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"

	"github.com/rzpsarthak13/transferdesk/internal/core"
)

func newMockDatabase(t *testing.T) (*MySQLDatabase, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewMySQLDatabaseFromDB(db), mock
}

func TestGetSchema_ReadsColumnsInOrder(t *testing.T) {
	m, mock := newMockDatabase(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM INFORMATION_SCHEMA.COLUMNS")).
		WithArgs("", "data").
		WillReturnRows(sqlmock.NewRows([]string{"COLUMN_NAME", "DATA_TYPE", "IS_NULLABLE"}).
			AddRow("A/A", "int", "NO").
			AddRow("THE_DATE", "DATE", "YES").
			AddRow("FROM", "varchar", "YES"))

	schema, err := m.GetSchema(context.Background(), "", "data")
	if err != nil {
		t.Fatalf("GetSchema() error = %v", err)
	}
	if schema.TableName != "data" {
		t.Errorf("TableName = %q, want %q", schema.TableName, "data")
	}
	if len(schema.Columns) != 3 {
		t.Fatalf("len(Columns) = %d, want 3", len(schema.Columns))
	}
	col, ok := schema.Column("THE_DATE")
	if !ok {
		t.Fatal("Column(THE_DATE) missing")
	}
	if col.Type != "date" {
		t.Errorf("THE_DATE type = %q, want lower-cased %q", col.Type, "date")
	}
	if !col.Nullable {
		t.Error("THE_DATE should be nullable")
	}
	if first := schema.Columns[0]; first.Name != "A/A" || first.Nullable {
		t.Errorf("Columns[0] = %+v, want non-null A/A", first)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestGetSchema_PassesSchemaOverride(t *testing.T) {
	m, mock := newMockDatabase(t)

	mock.ExpectQuery(regexp.QuoteMeta("COALESCE(NULLIF(?, ''), DATABASE())")).
		WithArgs("legacy_db", "prices").
		WillReturnRows(sqlmock.NewRows([]string{"COLUMN_NAME", "DATA_TYPE", "IS_NULLABLE"}))

	schema, err := m.GetSchema(context.Background(), "legacy_db", "prices")
	if err != nil {
		t.Fatalf("GetSchema() error = %v", err)
	}
	if len(schema.Columns) != 0 {
		t.Errorf("len(Columns) = %d, want 0", len(schema.Columns))
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestQuery_ClassifiesAccessDenied(t *testing.T) {
	m, mock := newMockDatabase(t)

	mock.ExpectQuery("SELECT 1").
		WillReturnError(&mysql.MySQLError{Number: 1045, Message: "Access denied"})

	_, err := m.Query(context.Background(), "SELECT 1")
	if !errors.Is(err, core.ErrUnavailable) {
		t.Fatalf("Query() error = %v, want ErrUnavailable", err)
	}
}

func TestExec_StatementErrorIsNotUnavailable(t *testing.T) {
	m, mock := newMockDatabase(t)

	mock.ExpectExec("DELETE FROM data").
		WillReturnError(&mysql.MySQLError{Number: 1064, Message: "syntax"})

	_, err := m.Exec(context.Background(), "DELETE FROM data WHERE x = ?", 1)
	if err == nil {
		t.Fatal("Exec() error = nil, want error")
	}
	if errors.Is(err, core.ErrUnavailable) {
		t.Errorf("Exec() error = %v, should not be ErrUnavailable", err)
	}
}

func TestClose_IsIdempotent(t *testing.T) {
	m, mock := newMockDatabase(t)
	mock.ExpectClose()

	if err := m.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := m.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	if _, err := m.Query(context.Background(), "SELECT 1"); err == nil {
		t.Error("Query() after Close() should fail")
	}
}

func TestMySQLConfig_DSN(t *testing.T) {
	dsn := MySQLConfig{
		Host:              "db",
		Port:              3306,
		Database:          "versa",
		Username:          "app",
		Password:          "secret",
		ConnectionTimeout: 5 * time.Second,
	}.DSN()

	for _, want := range []string{"app:secret@tcp(db:3306)/versa", "parseTime=true", "clientFoundRows=true", "timeout=5s"} {
		if !strings.Contains(dsn, want) {
			t.Errorf("DSN() = %q, missing %q", dsn, want)
		}
	}
}
