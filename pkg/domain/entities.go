// Package domain defines the student-records entities, value types, and
// rule evaluation primitives shared by the store and the service layer.
package domain

import "fmt"

// EntityType identifies the type of record stored in the domain.
type EntityType string

// Supported entity type identifiers used in Change records and violations.
const (
	// EntityClass identifies a class record.
	EntityClass EntityType = "class"
	// EntityStudent identifies a student record.
	EntityStudent EntityType = "student"
	// EntityAddress identifies an address record.
	EntityAddress EntityType = "address"
)

// Status captures the evaluation outcome of a student.
type Status string

// Evaluation statuses. Inserts always start Unevaluated.
const (
	StatusUnevaluated Status = "Unevaluated"
	StatusPass        Status = "Pass"
	StatusFail        Status = "Fail"
)

// Severity captures rule outcomes.
type Severity string

// Rule evaluation severities determine commit behavior and logging.
const (
	// SeverityBlock blocks transaction commit.
	SeverityBlock Severity = "block"
	// SeverityWarn logs a warning but allows commit.
	SeverityWarn Severity = "warn"
	SeverityLog  Severity = "log"
)

// Class groups students. Classes are immutable once created.
type Class struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// Student is a single admitted student. Status and Rank are owned by evaluation.
type Student struct {
	ID      int    `json:"id"`
	Name    string `json:"name"`
	ClassID int    `json:"class_id"`
	Marks   int    `json:"marks"`
	Gender  string `json:"gender"`
	Age     int    `json:"age"`
	Status  Status `json:"status"`
	Rank    *int   `json:"rank,omitempty"`
}

// RankValue returns the assigned rank and whether one is defined.
func (s Student) RankValue() (int, bool) {
	if s.Rank == nil {
		return 0, false
	}
	return *s.Rank, true
}

// Address belongs to exactly one student.
type Address struct {
	ID        int    `json:"id"`
	PinCode   string `json:"pin_code"`
	City      string `json:"city"`
	StudentID int    `json:"student_id"`
}

// Change describes a mutation applied to an entity during a transaction.
type Change struct {
	Entity EntityType
	Action Action
	Before any
	After  any
}

// Action indicates the type of modification performed.
type Action string

// Change actions enumerate supported mutations captured by transactions.
const (
	// ActionCreate indicates an entity was created.
	ActionCreate Action = "create"
	// ActionUpdate indicates an entity was updated.
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Violation reports a failed rule evaluation.
type Violation struct {
	Rule     string
	Severity Severity
	Message  string
	Entity   EntityType
	EntityID int
}

// Result aggregates violations from the rules engine.
type Result struct {
	Violations []Violation
}

// Merge appends violations from another result.
func (r *Result) Merge(other Result) {
	if len(other.Violations) == 0 {
		return
	}
	r.Violations = append(r.Violations, other.Violations...)
}

// HasBlocking returns true if the result contains blocking violations.
func (r Result) HasBlocking() bool {
	_, ok := r.FirstBlocking()
	return ok
}

// FirstBlocking returns the earliest blocking violation in evaluation order.
func (r Result) FirstBlocking() (Violation, bool) {
	for _, v := range r.Violations {
		if v.Severity == SeverityBlock {
			return v, true
		}
	}
	return Violation{}, false
}

// RuleViolationError is returned when blocking violations are present.
type RuleViolationError struct {
	Result Result
}

func (e RuleViolationError) Error() string {
	if v, ok := e.Result.FirstBlocking(); ok {
		return fmt.Sprintf("transaction blocked by rule %s: %s", v.Rule, v.Message)
	}
	return "transaction blocked by rules"
}
