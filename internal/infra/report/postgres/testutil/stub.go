// Package testutil provides an in-memory database/sql driver that understands
// the handful of statements issued by the postgres report sink.
package testutil

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"io"
	"regexp"
	"strings"
	"sync/atomic"
)

var driverSeq atomic.Int64

// StubConn records statements and keeps inserted rows per table.
type StubConn struct {
	Execs      []string
	Tables     map[string][]map[string]any
	Created    []string
	FailPing   bool
	FailBegin  bool
	FailCommit bool
	// FailInsertAfter fails the Nth insert (1-based) when positive.
	FailInsertAfter int
	Committed       int
	RolledBack      int

	inserts int
	pending map[string][]map[string]any
}

// NewStubDB registers a fresh driver and returns a handle bound to it.
func NewStubDB() (*sql.DB, *StubConn) {
	conn := &StubConn{Tables: make(map[string][]map[string]any)}
	name := fmt.Sprintf("stubreport%d", driverSeq.Add(1))
	sql.Register(name, &stubDriver{conn: conn})
	db, err := sql.Open(name, "stub")
	if err != nil {
		panic(err)
	}
	db.SetMaxOpenConns(1)
	return db, conn
}

type stubDriver struct {
	conn *StubConn
}

func (d *stubDriver) Open(string) (driver.Conn, error) { return d.conn, nil }

// Prepare implements driver.Conn.
func (c *StubConn) Prepare(string) (driver.Stmt, error) { return nil, fmt.Errorf("not implemented") }

// Close implements driver.Conn.
func (c *StubConn) Close() error { return nil }

// Begin implements driver.Conn.
func (c *StubConn) Begin() (driver.Tx, error) {
	return c.BeginTx(context.Background(), driver.TxOptions{})
}

// Ping implements driver.Pinger.
func (c *StubConn) Ping(context.Context) error {
	if c.FailPing {
		return fmt.Errorf("ping fail")
	}
	return nil
}

// BeginTx implements driver.ConnBeginTx. Writes inside the transaction are
// staged and only become visible in Tables on commit.
func (c *StubConn) BeginTx(context.Context, driver.TxOptions) (driver.Tx, error) {
	if c.FailBegin {
		return nil, fmt.Errorf("begin fail")
	}
	c.pending = make(map[string][]map[string]any, len(c.Tables))
	for table, rows := range c.Tables {
		c.pending[table] = append([]map[string]any(nil), rows...)
	}
	return &stubTx{conn: c}, nil
}

func (c *StubConn) target() map[string][]map[string]any {
	if c.pending != nil {
		return c.pending
	}
	return c.Tables
}

// ExecContext implements driver.ExecerContext.
func (c *StubConn) ExecContext(_ context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	c.Execs = append(c.Execs, query)
	upper := strings.ToUpper(strings.TrimSpace(query))
	switch {
	case strings.HasPrefix(upper, "CREATE TABLE"):
		c.Created = append(c.Created, query)
		return driver.RowsAffected(0), nil
	case strings.HasPrefix(upper, "TRUNCATE TABLE"):
		table := strings.ToLower(strings.TrimSpace(strings.TrimSpace(query)[len("TRUNCATE TABLE"):]))
		delete(c.target(), table)
		return driver.RowsAffected(0), nil
	case strings.HasPrefix(upper, "INSERT INTO"):
		c.inserts++
		if c.FailInsertAfter > 0 && c.inserts >= c.FailInsertAfter {
			return nil, fmt.Errorf("insert fail")
		}
		table, cols, err := parseInsert(query)
		if err != nil {
			return nil, err
		}
		if len(cols) != len(args) {
			return nil, fmt.Errorf("column/arg mismatch for %s", table)
		}
		row := make(map[string]any, len(cols))
		for i, col := range cols {
			row[col] = args[i].Value
		}
		tables := c.target()
		tables[table] = append(tables[table], row)
		return driver.RowsAffected(1), nil
	}
	return nil, fmt.Errorf("unsupported statement: %s", query)
}

// QueryContext implements driver.QueryerContext for "SELECT cols FROM table".
func (c *StubConn) QueryContext(_ context.Context, query string, _ []driver.NamedValue) (driver.Rows, error) {
	table, cols, err := parseSelect(query)
	if err != nil {
		return nil, err
	}
	stored := c.target()[table]
	values := make([][]driver.Value, 0, len(stored))
	for _, row := range stored {
		vals := make([]driver.Value, len(cols))
		for i, col := range cols {
			vals[i] = row[col]
		}
		values = append(values, vals)
	}
	return &stubRows{cols: cols, rows: values}, nil
}

type stubTx struct {
	conn *StubConn
}

func (t *stubTx) Commit() error {
	if t.conn.FailCommit {
		t.conn.pending = nil
		return fmt.Errorf("commit fail")
	}
	t.conn.Tables = t.conn.pending
	t.conn.pending = nil
	t.conn.Committed++
	return nil
}

func (t *stubTx) Rollback() error {
	t.conn.pending = nil
	t.conn.RolledBack++
	return nil
}

type stubRows struct {
	cols []string
	rows [][]driver.Value
	idx  int
}

func (r *stubRows) Columns() []string { return r.cols }
func (r *stubRows) Close() error      { return nil }

func (r *stubRows) Next(dest []driver.Value) error {
	if r.idx >= len(r.rows) {
		return io.EOF
	}
	copy(dest, r.rows[r.idx])
	r.idx++
	return nil
}

var (
	insertRe = regexp.MustCompile(`(?is)^\s*insert\s+into\s+(\w+)\s*\(([^)]*)\)`)
	selectRe = regexp.MustCompile(`(?is)^\s*select\s+(.+?)\s+from\s+(\w+)`)
)

func parseInsert(query string) (string, []string, error) {
	m := insertRe.FindStringSubmatch(query)
	if m == nil {
		return "", nil, fmt.Errorf("cannot parse insert: %s", query)
	}
	return strings.ToLower(m[1]), columns(m[2]), nil
}

func parseSelect(query string) (string, []string, error) {
	m := selectRe.FindStringSubmatch(query)
	if m == nil {
		return "", nil, fmt.Errorf("cannot parse select: %s", query)
	}
	return strings.ToLower(m[2]), columns(m[1]), nil
}

func columns(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		out = append(out, strings.ToLower(strings.TrimSpace(part)))
	}
	return out
}
