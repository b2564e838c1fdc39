// Package sqlite publishes the evaluated roster into a SQLite report table.
// The table is replaced on every publish; nothing is read back into the
// engine.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // pure go sqlite driver

	"studentrecords/internal/core"
	"studentrecords/internal/infra/report"
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
	addresses TEXT NOT NULL,
	published_at TEXT NOT NULL
)`

// Sink writes rosters to a SQLite database file.
type Sink struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

// Open creates (or reuses) the database at path and ensures the report table.
func Open(path string) (*Sink, error) {
	if path == "" {
		path = "studentrecords.db"
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create report table: %w", err)
	}
	return &Sink{db: db, path: path, now: func() time.Time { return time.Now().UTC() }}, nil
}

// Name implements core.RosterSink.
func (s *Sink) Name() string { return "sqlite_report" }

// Path returns the database file.
func (s *Sink) Path() string { return s.path }

// DB exposes the handle for inspection.
func (s *Sink) DB() *sql.DB { return s.db }

// Close releases the database.
func (s *Sink) Close() error { return s.db.Close() }

// Publish replaces the report table contents with roster in one transaction.
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

	if _, err := tx.ExecContext(ctx, `DELETE FROM student_report`); err != nil {
		return fmt.Errorf("clear report: %w", err)
	}
	insert := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", report.Table,
		strings.Join(report.Columns, ", "),
		strings.TrimSuffix(strings.Repeat("?, ", len(report.Columns)), ", "))
	stmt, err := tx.PrepareContext(ctx, insert)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	publishedAt := s.now().Format(time.RFC3339)
	for _, row := range rows {
		if _, err := stmt.ExecContext(ctx, row.Args(publishedAt)...); err != nil {
			return fmt.Errorf("insert student %d: %w", row.StudentID, err)
		}
	}
	return tx.Commit()
}
