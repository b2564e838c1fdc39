package domain

import (
	"context"
	"errors"
	"testing"
)

type staticRule struct {
	name string
	res  Result
	err  error
}

func (r staticRule) Name() string { return r.name }

func (r staticRule) Evaluate(context.Context, RuleView, []Change) (Result, error) {
	return r.res, r.err
}

func TestResultFirstBlockingKeepsOrder(t *testing.T) {
	res := Result{Violations: []Violation{
		{Rule: "warn", Severity: SeverityWarn, Message: "w"},
		{Rule: "first", Severity: SeverityBlock, Message: "a"},
		{Rule: "second", Severity: SeverityBlock, Message: "b"},
	}}
	v, ok := res.FirstBlocking()
	if !ok || v.Rule != "first" {
		t.Fatalf("expected first blocking violation, got %+v", v)
	}
	if !res.HasBlocking() {
		t.Fatalf("expected blocking result")
	}
	if (Result{Violations: []Violation{{Severity: SeverityLog}}}).HasBlocking() {
		t.Fatalf("log severity must not block")
	}
}

func TestRuleViolationErrorMessage(t *testing.T) {
	err := RuleViolationError{Result: Result{Violations: []Violation{{Rule: "admission_age", Severity: SeverityBlock, Message: "too old"}}}}
	if got := err.Error(); got != "transaction blocked by rule admission_age: too old" {
		t.Fatalf("unexpected message %q", got)
	}
	if got := (RuleViolationError{}).Error(); got != "transaction blocked by rules" {
		t.Fatalf("unexpected empty message %q", got)
	}
}

func TestRulesEngineEvaluatesInRegistrationOrder(t *testing.T) {
	engine := NewRulesEngine()
	engine.Register(staticRule{name: "a", res: Result{Violations: []Violation{{Rule: "a", Severity: SeverityBlock}}}})
	engine.Register(staticRule{name: "b", res: Result{Violations: []Violation{{Rule: "b", Severity: SeverityBlock}}}})

	res, err := engine.Evaluate(context.Background(), nil, nil)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if len(res.Violations) != 2 || res.Violations[0].Rule != "a" {
		t.Fatalf("unexpected violations %+v", res.Violations)
	}
	if names := engine.Rules(); len(names) != 2 || names[0] != "a" || names[1] != "b" {
		t.Fatalf("unexpected rule names %v", names)
	}
}

func TestRulesEngineStopsOnErrorAndCancellation(t *testing.T) {
	boom := errors.New("boom")
	engine := NewRulesEngine()
	engine.Register(staticRule{name: "fails", err: boom})
	if _, err := engine.Evaluate(context.Background(), nil, nil); !errors.Is(err, boom) {
		t.Fatalf("expected rule error, got %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := engine.Evaluate(ctx, nil, nil); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
}

func TestStudentRankValue(t *testing.T) {
	if _, ok := (Student{}).RankValue(); ok {
		t.Fatalf("unranked student reported a rank")
	}
	rank := 3
	if got, ok := (Student{Rank: &rank}).RankValue(); !ok || got != 3 {
		t.Fatalf("expected rank 3, got %d", got)
	}
}
