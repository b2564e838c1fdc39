package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"studentrecords/internal/infra/persistence/memory"
)

// Service exposes the validated mutation, evaluation and query operations of
// the student-records engine.
type Service struct {
	store     PersistentStore
	admission *RulesEngine
	clock     Clock
	logger    Logger
	metrics   MetricsRecorder
	tracer    Tracer
	audit     AuditRecorder
	ageLimit  int
	passMark  int
}

// Option customizes a Service.
type Option func(*Service)

// WithClock overrides the time source.
func WithClock(clock Clock) Option {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithLogger installs a structured logger.
func WithLogger(logger Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetricsRecorder installs a metrics recorder.
func WithMetricsRecorder(metrics MetricsRecorder) Option {
	return func(s *Service) {
		if metrics != nil {
			s.metrics = metrics
		}
	}
}

// WithTracer installs a tracer.
func WithTracer(tracer Tracer) Option {
	return func(s *Service) {
		if tracer != nil {
			s.tracer = tracer
		}
	}
}

// WithAuditRecorder installs an audit recorder for mutations.
func WithAuditRecorder(audit AuditRecorder) Option {
	return func(s *Service) {
		if audit != nil {
			s.audit = audit
		}
	}
}

// WithAdmissionAgeLimit sets the oldest admissible age used by the default
// admission rules.
func WithAdmissionAgeLimit(limit int) Option {
	return func(s *Service) { s.ageLimit = limit }
}

// WithPassMark sets the lowest passing mark.
func WithPassMark(mark int) Option {
	return func(s *Service) { s.passMark = mark }
}

// WithAdmissionRules replaces the admission engine entirely.
func WithAdmissionRules(engine *RulesEngine) Option {
	return func(s *Service) { s.admission = engine }
}

// NewService constructs a service backed by the supplied store.
func NewService(store PersistentStore, opts ...Option) *Service {
	s := &Service{
		store:    store,
		clock:    systemClock(),
		logger:   noopLogger{},
		metrics:  noopMetrics{},
		tracer:   noopTracer{},
		audit:    noopAudit{},
		ageLimit: DefaultAdmissionAgeLimit,
		passMark: DefaultPassMark,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.admission == nil {
		s.admission = NewAdmissionRulesEngine(s.ageLimit)
	}
	return s
}

// NewInMemoryService creates a service over a fresh in-memory store. A nil
// engine selects NewDefaultRulesEngine.
func NewInMemoryService(engine *RulesEngine, opts ...Option) *Service {
	if engine == nil {
		engine = NewDefaultRulesEngine()
	}
	return NewService(memory.NewStore(engine), opts...)
}

// Store returns the underlying store.
func (s *Service) Store() PersistentStore {
	return s.store
}

// MutationResult reports the outcome of an insert or delete. Rejections are
// ordinary outcomes and carry OK=false with a populated Reason.
type MutationResult struct {
	OK           bool
	Reason       string
	ClassDeleted bool
}

// ErrNotFound is returned when a referenced record is absent.
type ErrNotFound struct {
	Entity EntityType
	ID     int
}

func (e ErrNotFound) Error() string {
	return fmt.Sprintf("%s %d not found", e.Entity, e.ID)
}

// rejection aborts a transaction because an admission rule blocked it.
type rejection struct {
	violation Violation
}

func (r rejection) Error() string { return r.violation.Message }

// run wraps an operation with tracing, metrics and logging.
func (s *Service) run(ctx context.Context, operation string, fn func(context.Context) error) (err error) {
	ctx, span := s.tracer.Start(ctx, operation)
	started := s.clock.Now()
	defer func() {
		elapsed := s.clock.Now().Sub(started)
		span.End(err)
		s.metrics.Observe(ctx, operation, err == nil, elapsed)
		if err != nil {
			s.logger.Error("operation failed", "operation", operation, "duration", elapsed, "error", err)
			return
		}
		s.logger.Debug("operation completed", "operation", operation, "duration", elapsed)
	}()
	return fn(ctx)
}

func (s *Service) recordAudit(ctx context.Context, entry AuditEntry, started time.Time, err error) {
	entry.Timestamp = s.clock.Now()
	entry.Duration = entry.Timestamp.Sub(started)
	if err != nil {
		entry.Status = AuditStatusError
		entry.Reason = err.Error()
	}
	s.audit.Record(ctx, entry)
}

// CreateClass stores a class directly. Used by bootstrap loaders.
func (s *Service) CreateClass(ctx context.Context, class Class) (Class, error) {
	var created Class
	started := s.clock.Now()
	err := s.run(ctx, "create_class", func(ctx context.Context) error {
		_, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
			var err error
			created, err = tx.CreateClass(class)
			return err
		})
		return err
	})
	s.recordAudit(ctx, AuditEntry{Operation: "create_class", Entity: EntityClass, Action: ActionCreate, EntityID: class.ID, Status: AuditStatusSuccess}, started, err)
	return created, err
}

// InsertStudent admits a student together with its addresses. Admission rules
// are checked in precedence order and the first failure becomes the reason; on
// success the student and every address commit atomically. Status and rank
// supplied by the caller are discarded.
func (s *Service) InsertStudent(ctx context.Context, student Student, addresses []Address) (MutationResult, error) {
	candidate := student
	candidate.Status = StatusUnevaluated
	candidate.Rank = nil

	var result MutationResult
	started := s.clock.Now()
	err := s.run(ctx, "insert_student", func(ctx context.Context) error {
		_, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
			proposed := make([]Change, 0, 1+len(addresses))
			proposed = append(proposed, Change{Entity: EntityStudent, Action: ActionCreate, After: candidate})
			for _, a := range addresses {
				proposed = append(proposed, Change{Entity: EntityAddress, Action: ActionCreate, After: a})
			}
			res, err := s.admission.Evaluate(ctx, tx.Snapshot(), proposed)
			if err != nil {
				return err
			}
			if v, blocked := res.FirstBlocking(); blocked {
				return rejection{violation: v}
			}
			if _, err := tx.CreateStudent(candidate); err != nil {
				return err
			}
			for _, a := range addresses {
				if _, err := tx.CreateAddress(a); err != nil {
					return err
				}
			}
			return nil
		})
		var rej rejection
		if errors.As(err, &rej) {
			result = MutationResult{Reason: rej.violation.Message}
			return nil
		}
		if err != nil {
			return err
		}
		result = MutationResult{OK: true, Reason: fmt.Sprintf("student %d inserted", candidate.ID)}
		return nil
	})

	entry := AuditEntry{Operation: "insert_student", Entity: EntityStudent, Action: ActionCreate, EntityID: candidate.ID, Status: AuditStatusSuccess}
	if err == nil && !result.OK {
		entry.Status = AuditStatusRejected
		entry.Reason = result.Reason
		s.logger.Info("student rejected", "student_id", candidate.ID, "reason", result.Reason)
	}
	s.recordAudit(ctx, entry, started, err)
	if err != nil {
		return MutationResult{}, err
	}
	return result, nil
}

// DeleteStudent removes a student and its addresses, then removes the class if
// no remaining student references it.
func (s *Service) DeleteStudent(ctx context.Context, id int) (MutationResult, error) {
	var result MutationResult
	started := s.clock.Now()
	err := s.run(ctx, "delete_student", func(ctx context.Context) error {
		_, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
			result = MutationResult{}
			current, ok := tx.FindStudent(id)
			if !ok {
				return ErrNotFound{Entity: EntityStudent, ID: id}
			}
			if err := tx.DeleteStudent(id); err != nil {
				return err
			}
			result.OK = true
			result.Reason = fmt.Sprintf("student %d and related addresses deleted", id)
			// The emptiness check must observe the post-delete student set.
			if tx.CountClassStudents(current.ClassID) > 0 {
				return nil
			}
			if _, exists := tx.FindClass(current.ClassID); !exists {
				return nil
			}
			if err := tx.DeleteClass(current.ClassID); err != nil {
				return err
			}
			result.ClassDeleted = true
			result.Reason = fmt.Sprintf("student %d and related addresses deleted; class %d deleted (now empty)", id, current.ClassID)
			return nil
		})
		var notFound ErrNotFound
		if errors.As(err, &notFound) {
			result = MutationResult{Reason: fmt.Sprintf("student %d not found", id)}
			return nil
		}
		return err
	})

	entry := AuditEntry{Operation: "delete_student", Entity: EntityStudent, Action: ActionDelete, EntityID: id, Status: AuditStatusSuccess, Reason: result.Reason}
	if err == nil && !result.OK {
		entry.Status = AuditStatusRejected
	}
	s.recordAudit(ctx, entry, started, err)
	if err != nil {
		return MutationResult{}, err
	}
	return result, nil
}
