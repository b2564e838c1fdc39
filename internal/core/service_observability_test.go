package core

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"expvar"
	"strings"
	"testing"
	"time"

	"studentrecords/pkg/domain"
)

type captureAuditRecorder struct {
	entries []AuditEntry
}

func (c *captureAuditRecorder) Record(_ context.Context, entry AuditEntry) {
	c.entries = append(c.entries, entry)
}

func (c *captureAuditRecorder) has(op string, status AuditStatus, predicate func(AuditEntry) bool) bool {
	for _, entry := range c.entries {
		if entry.Operation == op && entry.Status == status {
			if predicate == nil || predicate(entry) {
				return true
			}
		}
	}
	return false
}

type metricsCall struct {
	op      string
	success bool
}

type captureMetricsRecorder struct {
	calls []metricsCall
}

func (c *captureMetricsRecorder) Observe(_ context.Context, op string, success bool, _ time.Duration) {
	c.calls = append(c.calls, metricsCall{op: op, success: success})
}

func (c *captureMetricsRecorder) has(op string, success bool) bool {
	for _, call := range c.calls {
		if call.op == op && call.success == success {
			return true
		}
	}
	return false
}

type logLine struct {
	level string
	msg   string
	args  []any
}

type captureLogger struct {
	lines []logLine
}

func (l *captureLogger) Debug(msg string, args ...any) { l.add("debug", msg, args) }
func (l *captureLogger) Info(msg string, args ...any)  { l.add("info", msg, args) }
func (l *captureLogger) Warn(msg string, args ...any)  { l.add("warn", msg, args) }
func (l *captureLogger) Error(msg string, args ...any) { l.add("error", msg, args) }

func (l *captureLogger) add(level, msg string, args []any) {
	l.lines = append(l.lines, logLine{level: level, msg: msg, args: args})
}

func (l *captureLogger) has(level, msg string) bool {
	for _, line := range l.lines {
		if line.level == level && line.msg == msg {
			return true
		}
	}
	return false
}

func TestServiceObservabilityOnMutations(t *testing.T) {
	ctx := context.Background()
	audit := &captureAuditRecorder{}
	metrics := &captureMetricsRecorder{}
	logger := &captureLogger{}
	tracer := NewJSONTracer(nil)

	svc := NewInMemoryService(nil,
		WithAuditRecorder(audit),
		WithMetricsRecorder(metrics),
		WithLogger(logger),
		WithTracer(tracer),
	)

	if _, err := svc.CreateClass(ctx, domain.Class{ID: 1, Name: "A"}); err != nil {
		t.Fatalf("create class: %v", err)
	}
	if !audit.has("create_class", AuditStatusSuccess, func(e AuditEntry) bool { return e.EntityID == 1 }) {
		t.Fatalf("expected audit entry for create_class")
	}

	if _, err := svc.CreateClass(ctx, domain.Class{ID: 1, Name: "A"}); err == nil {
		t.Fatalf("expected duplicate class error")
	}
	if !audit.has("create_class", AuditStatusError, nil) {
		t.Fatalf("expected audit error entry for duplicate class")
	}
	if !metrics.has("create_class", false) {
		t.Fatalf("expected failed metrics entry for create_class")
	}
	if !logger.has("error", "operation failed") {
		t.Fatalf("expected error log for failed operation")
	}

	res, err := svc.InsertStudent(ctx, domain.Student{ID: 3, Name: "old", ClassID: 1, Age: 22}, nil)
	if err != nil || res.OK {
		t.Fatalf("expected rejection, got %+v, %v", res, err)
	}
	if !audit.has("insert_student", AuditStatusRejected, func(e AuditEntry) bool { return e.Reason == res.Reason }) {
		t.Fatalf("expected rejected audit entry")
	}
	if !metrics.has("insert_student", true) {
		t.Fatalf("rejections are expected outcomes and should record success")
	}
	if !logger.has("info", "student rejected") {
		t.Fatalf("expected info log for rejection")
	}

	if _, err := svc.DeleteStudent(ctx, 99); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if !audit.has("delete_student", AuditStatusRejected, func(e AuditEntry) bool { return e.Reason == "student 99 not found" }) {
		t.Fatalf("expected rejected audit entry for missing student")
	}

	var ops []string
	for _, entry := range tracer.Entries() {
		ops = append(ops, entry.Operation)
	}
	if got := strings.Join(ops, ","); got != "create_class,create_class,insert_student,delete_student" {
		t.Fatalf("unexpected spans %q", got)
	}
}

func TestServiceAuditTimestampsUseClock(t *testing.T) {
	fixed := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	audit := &captureAuditRecorder{}
	svc := NewInMemoryService(nil, WithClock(ClockFunc(func() time.Time { return fixed })), WithAuditRecorder(audit))
	if _, err := svc.CreateClass(context.Background(), domain.Class{ID: 1, Name: "A"}); err != nil {
		t.Fatalf("create class: %v", err)
	}
	if len(audit.entries) != 1 || !audit.entries[0].Timestamp.Equal(fixed) || audit.entries[0].Duration != 0 {
		t.Fatalf("unexpected audit entries %+v", audit.entries)
	}
}

func TestNilOptionsKeepDefaults(t *testing.T) {
	svc := NewInMemoryService(nil, WithLogger(nil), WithClock(nil), WithMetricsRecorder(nil), WithTracer(nil), WithAuditRecorder(nil))
	if svc.logger == nil || svc.clock == nil || svc.metrics == nil || svc.tracer == nil || svc.audit == nil {
		t.Fatalf("nil options should keep defaults")
	}
	if got := svc.admission.Rules(); strings.Join(got, ",") != "admission_age,class_reference,record_identity" {
		t.Fatalf("unexpected admission rules %v", got)
	}
}

func TestExpvarMetricsRecorder(t *testing.T) {
	rec := NewExpvarMetricsRecorder("")
	rec.Observe(context.Background(), "insert_student", true, 2*time.Millisecond)
	rec.Observe(context.Background(), "insert_student", false, time.Millisecond)
	rec.Observe(context.Background(), "", true, time.Millisecond)

	snap := rec.Snapshot()
	stats := snap.Operations["insert_student"]
	if stats.Success != 1 || stats.Errors != 1 || stats.TotalMS != 3 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	if len(snap.Operations) != 1 {
		t.Fatalf("empty operation should be ignored, got %+v", snap.Operations)
	}
	if expvar.Get(rec.Name()) == nil {
		t.Fatalf("expected expvar %s to be published", rec.Name())
	}
}

func TestJSONTracerWritesLines(t *testing.T) {
	var buf bytes.Buffer
	tracer := NewJSONTracer(&buf)
	_, span := tracer.Start(context.Background(), "evaluate_all")
	span.End(errors.New("boom"))

	var entry JSONTraceEntry
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode trace line: %v", err)
	}
	if entry.Operation != "evaluate_all" || entry.Status != "error" || entry.Error != "boom" || entry.SpanID == "" {
		t.Fatalf("unexpected entry %+v", entry)
	}
}

func TestLogAuditRecorderLevels(t *testing.T) {
	logger := &captureLogger{}
	rec := LogAuditRecorder{Logger: logger}
	rec.Record(context.Background(), AuditEntry{Operation: "insert_student", Status: AuditStatusRejected, Reason: "too old"})
	rec.Record(context.Background(), AuditEntry{Operation: "delete_student", Status: AuditStatusError, Reason: "boom"})
	rec.Record(context.Background(), AuditEntry{Operation: "create_class", Status: AuditStatusSuccess})
	LogAuditRecorder{}.Record(context.Background(), AuditEntry{Operation: "ignored"})

	if len(logger.lines) != 3 || logger.lines[0].level != "info" || logger.lines[1].level != "warn" || logger.lines[2].level != "debug" {
		t.Fatalf("unexpected log lines %+v", logger.lines)
	}
}
