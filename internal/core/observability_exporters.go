package core

import (
	"context"
	"encoding/json"
	"expvar"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

var expvarSeq atomic.Uint64

// OperationStats aggregates one operation's outcomes.
type OperationStats struct {
	Success int64   `json:"success"`
	Errors  int64   `json:"errors"`
	TotalMS float64 `json:"total_ms"`
}

// ExpvarMetricsSnapshot is a point-in-time copy of an ExpvarMetricsRecorder.
type ExpvarMetricsSnapshot struct {
	Operations map[string]OperationStats `json:"operations"`
	RecordedAt time.Time                 `json:"recorded_at"`
}

// ExpvarMetricsRecorder keeps per-operation counters in an expvar.Map so they
// appear under /debug/vars when the expvar handler is mounted.
type ExpvarMetricsRecorder struct {
	name string
	ops  *expvar.Map
}

// NewExpvarMetricsRecorder publishes a recorder under name. An empty name
// yields a unique generated one.
func NewExpvarMetricsRecorder(name string) *ExpvarMetricsRecorder {
	if name == "" {
		name = fmt.Sprintf("studentrecords_operations_%d", expvarSeq.Add(1))
	}
	return &ExpvarMetricsRecorder{name: name, ops: expvar.NewMap(name)}
}

// Name returns the expvar export name.
func (r *ExpvarMetricsRecorder) Name() string { return r.name }

// Observe implements MetricsRecorder.
func (r *ExpvarMetricsRecorder) Observe(_ context.Context, operation string, success bool, duration time.Duration) {
	if operation == "" {
		return
	}
	outcome := "errors"
	if success {
		outcome = "success"
	}
	r.ops.Add(operation+"."+outcome, 1)
	r.ops.AddFloat(operation+".total_ms", float64(duration)/float64(time.Millisecond))
}

// Snapshot folds the flat expvar keys back into per-operation stats.
func (r *ExpvarMetricsRecorder) Snapshot() ExpvarMetricsSnapshot {
	snap := ExpvarMetricsSnapshot{Operations: make(map[string]OperationStats), RecordedAt: time.Now().UTC()}
	r.ops.Do(func(kv expvar.KeyValue) {
		op, field := splitMetricKey(kv.Key)
		stats := snap.Operations[op]
		switch v := kv.Value.(type) {
		case *expvar.Int:
			if field == "success" {
				stats.Success = v.Value()
			} else {
				stats.Errors = v.Value()
			}
		case *expvar.Float:
			stats.TotalMS = v.Value()
		}
		snap.Operations[op] = stats
	})
	return snap
}

func splitMetricKey(key string) (string, string) {
	for i := len(key) - 1; i >= 0; i-- {
		if key[i] == '.' {
			return key[:i], key[i+1:]
		}
	}
	return key, ""
}

// JSONTraceEntry is one finished span.
type JSONTraceEntry struct {
	SpanID     string    `json:"span_id"`
	Operation  string    `json:"operation"`
	Status     string    `json:"status"`
	DurationMS float64   `json:"duration_ms"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
}

// JSONTraceTracer writes finished spans as JSON lines and keeps them for
// inspection.
type JSONTraceTracer struct {
	clock   Clock
	mu      sync.Mutex
	entries []JSONTraceEntry
	enc     *json.Encoder
}

// NewJSONTracer writes to w; a nil writer only retains spans.
func NewJSONTracer(w io.Writer) *JSONTraceTracer {
	t := &JSONTraceTracer{clock: systemClock()}
	if w != nil {
		t.enc = json.NewEncoder(w)
	}
	return t
}

// Entries returns the spans finished so far.
func (t *JSONTraceTracer) Entries() []JSONTraceEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]JSONTraceEntry(nil), t.entries...)
}

// Start implements Tracer.
func (t *JSONTraceTracer) Start(ctx context.Context, operation string) (context.Context, TraceSpan) {
	return ctx, &jsonTraceSpan{tracer: t, id: uuid.NewString(), operation: operation, started: t.clock.Now()}
}

type jsonTraceSpan struct {
	tracer    *JSONTraceTracer
	id        string
	operation string
	started   time.Time
}

func (s *jsonTraceSpan) End(err error) {
	entry := JSONTraceEntry{
		SpanID:     s.id,
		Operation:  s.operation,
		Status:     "ok",
		DurationMS: float64(s.tracer.clock.Now().Sub(s.started)) / float64(time.Millisecond),
		StartedAt:  s.started,
	}
	if err != nil {
		entry.Status = "error"
		entry.Error = err.Error()
	}
	s.tracer.mu.Lock()
	defer s.tracer.mu.Unlock()
	s.tracer.entries = append(s.tracer.entries, entry)
	if s.tracer.enc != nil {
		_ = s.tracer.enc.Encode(entry)
	}
}

// LogAuditRecorder writes audit entries to a Logger: successes at debug,
// rejections at info and errors at warn.
type LogAuditRecorder struct {
	Logger Logger
}

// Record implements AuditRecorder.
func (r LogAuditRecorder) Record(_ context.Context, entry AuditEntry) {
	if r.Logger == nil {
		return
	}
	args := []any{
		"operation", entry.Operation,
		"entity", entry.Entity,
		"entity_id", entry.EntityID,
		"status", entry.Status,
	}
	if entry.Reason != "" {
		args = append(args, "reason", entry.Reason)
	}
	switch entry.Status {
	case AuditStatusError:
		r.Logger.Warn("audit", args...)
	case AuditStatusRejected:
		r.Logger.Info("audit", args...)
	default:
		r.Logger.Debug("audit", args...)
	}
}
