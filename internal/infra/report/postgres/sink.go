// Package postgres publishes the evaluated roster into a Postgres report table
// through the pgx database/sql driver.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver

	"studentrecords/internal/core"
	"studentrecords/internal/infra/report"
)

const (
	defaultDriver = "pgx"
	defaultDSN    = "postgres://localhost/studentrecords?sslmode=disable"
)

const schema = `CREATE TABLE IF NOT EXISTS student_report (
	student_id INTEGER PRIMARY KEY,
	name TEXT NOT NULL,
	class_name TEXT NOT NULL,
	marks INTEGER NOT NULL,
	gender TEXT NOT NULL,
	age INTEGER NOT NULL,
	status TEXT NOT NULL,
	rank INTEGER,
	addresses JSONB NOT NULL,
	published_at TIMESTAMPTZ NOT NULL
)`

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

// Sink writes rosters to Postgres.
type Sink struct {
	db  *sql.DB
	now func() time.Time
}

// Open connects using dsn (falls back to a local default) and ensures the
// report table exists.
func Open(ctx context.Context, dsn string) (*Sink, error) {
	if dsn == "" {
		dsn = defaultDSN
	}
	openMu.Lock()
	db, err := sqlOpen(defaultDriver, dsn)
	openMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create report table: %w", err)
	}
	return &Sink{db: db, now: func() time.Time { return time.Now().UTC() }}, nil
}

// Name implements core.RosterSink.
func (s *Sink) Name() string { return "postgres_report" }

// Close releases the connection pool.
func (s *Sink) Close() error { return s.db.Close() }

// Publish truncates the report table and inserts roster in one transaction.
func (s *Sink) Publish(ctx context.Context, roster []core.StudentRecord) error {
	rows, err := report.Rows(roster)
	if err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "TRUNCATE TABLE "+report.Table); err != nil {
		return fmt.Errorf("truncate report: %w", err)
	}
	placeholders := make([]string, len(report.Columns))
	for i := range placeholders {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	insert := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", report.Table,
		strings.Join(report.Columns, ", "), strings.Join(placeholders, ", "))
	publishedAt := s.now()
	for _, row := range rows {
		if _, err := tx.ExecContext(ctx, insert, row.Args(publishedAt)...); err != nil {
			return fmt.Errorf("insert student %d: %w", row.StudentID, err)
		}
	}
	return tx.Commit()
}
