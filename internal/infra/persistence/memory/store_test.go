package memory

import (
	"context"
	"errors"
	"strings"
	"testing"

	"studentrecords/pkg/domain"
)

type blockStudentsRule struct{}

func (blockStudentsRule) Name() string { return "block_students" }

func (blockStudentsRule) Evaluate(_ context.Context, view domain.RuleView, _ []domain.Change) (domain.Result, error) {
	if len(view.ListStudents()) > 1 {
		return domain.Result{Violations: []domain.Violation{{Rule: "block_students", Severity: domain.SeverityBlock, Message: "too many"}}}, nil
	}
	return domain.Result{}, nil
}

func seedStore(t *testing.T, store *Store) {
	t.Helper()
	_, err := store.RunInTransaction(context.Background(), func(tx Transaction) error {
		if _, err := tx.CreateClass(Class{ID: 1, Name: "A"}); err != nil {
			return err
		}
		if _, err := tx.CreateStudent(Student{ID: 1, Name: "stud1", ClassID: 1, Marks: 88}); err != nil {
			return err
		}
		if _, err := tx.CreateAddress(Address{ID: 1, PinCode: "452002", City: "indore", StudentID: 1}); err != nil {
			return err
		}
		_, err := tx.CreateAddress(Address{ID: 2, PinCode: "422002", City: "delhi", StudentID: 1})
		return err
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
}

func TestRunInTransactionCommitsAndIndexes(t *testing.T) {
	store := NewStore(nil)
	seedStore(t, store)

	if got := len(store.ListClasses()); got != 1 {
		t.Fatalf("expected 1 class, got %d", got)
	}
	err := store.View(context.Background(), func(view TransactionView) error {
		addresses := view.StudentAddresses(1)
		if len(addresses) != 2 || addresses[0].ID != 1 || addresses[1].ID != 2 {
			t.Fatalf("unexpected addresses %+v", addresses)
		}
		if _, ok := view.FindAddress(2); !ok {
			t.Fatalf("address 2 missing")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
}

func TestRunInTransactionRollsBackOnError(t *testing.T) {
	store := NewStore(nil)
	seedStore(t, store)
	boom := errors.New("boom")

	_, err := store.RunInTransaction(context.Background(), func(tx Transaction) error {
		if err := tx.DeleteStudent(1); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if _, ok := store.GetStudent(1); !ok {
		t.Fatalf("failed transaction must not commit the delete")
	}
	if got := len(store.ListAddresses()); got != 2 {
		t.Fatalf("addresses changed after rollback: %d", got)
	}
}

func TestRunInTransactionBlockingRule(t *testing.T) {
	engine := domain.NewRulesEngine()
	engine.Register(blockStudentsRule{})
	store := NewStore(engine)
	seedStore(t, store)

	_, err := store.RunInTransaction(context.Background(), func(tx Transaction) error {
		_, err := tx.CreateStudent(Student{ID: 2, Name: "stud2", ClassID: 1})
		return err
	})
	var violation domain.RuleViolationError
	if !errors.As(err, &violation) {
		t.Fatalf("expected rule violation, got %v", err)
	}
	if !strings.Contains(violation.Error(), "block_students") {
		t.Fatalf("unexpected violation message %q", violation.Error())
	}
	if got := len(store.ListStudents()); got != 1 {
		t.Fatalf("blocked transaction committed: %d students", got)
	}
	if store.RulesEngine() != engine {
		t.Fatalf("expected configured engine")
	}
}

func TestTransactionGuards(t *testing.T) {
	store := NewStore(nil)
	seedStore(t, store)

	cases := []struct {
		name string
		fn   func(tx Transaction) error
		want string
	}{
		{name: "duplicate class", fn: func(tx Transaction) error { _, err := tx.CreateClass(Class{ID: 1}); return err }, want: "class 1 already exists"},
		{name: "duplicate student", fn: func(tx Transaction) error { _, err := tx.CreateStudent(Student{ID: 1, ClassID: 1}); return err }, want: "student 1 already exists"},
		{name: "duplicate address", fn: func(tx Transaction) error {
			_, err := tx.CreateAddress(Address{ID: 1, StudentID: 1})
			return err
		}, want: "address 1 already exists"},
		{name: "orphan address", fn: func(tx Transaction) error {
			_, err := tx.CreateAddress(Address{ID: 9, StudentID: 9})
			return err
		}, want: "address 9 references missing student 9"},
		{name: "class still referenced", fn: func(tx Transaction) error { return tx.DeleteClass(1) }, want: "class 1 still has 1 students"},
		{name: "missing class", fn: func(tx Transaction) error { return tx.DeleteClass(5) }, want: "class 5 not found"},
		{name: "missing student delete", fn: func(tx Transaction) error { return tx.DeleteStudent(5) }, want: "student 5 not found"},
		{name: "missing student update", fn: func(tx Transaction) error {
			_, err := tx.UpdateStudent(5, func(*Student) error { return nil })
			return err
		}, want: "student 5 not found"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := store.RunInTransaction(context.Background(), tc.fn)
			if err == nil || err.Error() != tc.want {
				t.Fatalf("want %q, got %v", tc.want, err)
			}
		})
	}
}

func TestDeleteStudentCascadesAndFreesClass(t *testing.T) {
	store := NewStore(nil)
	seedStore(t, store)

	_, err := store.RunInTransaction(context.Background(), func(tx Transaction) error {
		if err := tx.DeleteStudent(1); err != nil {
			return err
		}
		if n := tx.CountClassStudents(1); n != 0 {
			t.Fatalf("expected empty class, got %d", n)
		}
		return tx.DeleteClass(1)
	})
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(store.ListClasses()) != 0 || len(store.ListStudents()) != 0 || len(store.ListAddresses()) != 0 {
		t.Fatalf("expected empty store, got %+v", store.ExportState())
	}
}

func TestUpdateStudentKeepsIdentity(t *testing.T) {
	store := NewStore(nil)
	seedStore(t, store)

	_, err := store.RunInTransaction(context.Background(), func(tx Transaction) error {
		_, err := tx.UpdateStudent(1, func(st *Student) error {
			rank := 1
			st.ID = 99
			st.ClassID = 42
			st.Status = domain.StatusPass
			st.Rank = &rank
			return nil
		})
		return err
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	st, ok := store.GetStudent(1)
	if !ok || st.ClassID != 1 || st.Status != domain.StatusPass {
		t.Fatalf("unexpected student %+v", st)
	}

	*st.Rank = 7
	again, _ := store.GetStudent(1)
	if *again.Rank != 1 {
		t.Fatalf("returned student must not alias stored rank")
	}
}

func TestViewIsIsolatedFromWriters(t *testing.T) {
	store := NewStore(nil)
	seedStore(t, store)

	err := store.View(context.Background(), func(view TransactionView) error {
		if _, err := store.RunInTransaction(context.Background(), func(tx Transaction) error {
			return tx.DeleteStudent(1)
		}); err != nil {
			t.Fatalf("delete during view: %v", err)
		}
		if _, ok := view.FindStudent(1); !ok {
			t.Fatalf("view must keep its snapshot")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
}

func TestCancelledContext(t *testing.T) {
	store := NewStore(nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := store.RunInTransaction(ctx, func(Transaction) error { return nil }); !errors.Is(err, context.Canceled) {
		t.Fatalf("transaction: expected cancellation, got %v", err)
	}
	if err := store.View(ctx, func(TransactionView) error { return nil }); !errors.Is(err, context.Canceled) {
		t.Fatalf("view: expected cancellation, got %v", err)
	}
}

func TestImportStateDropsDanglingRecords(t *testing.T) {
	store := NewStore(nil)
	store.ImportState(Snapshot{
		Classes:   []Class{{ID: 1, Name: "A"}, {ID: 1, Name: "dup"}},
		Students:  []Student{{ID: 1, ClassID: 1}, {ID: 2, ClassID: 9}},
		Addresses: []Address{{ID: 1, StudentID: 1}, {ID: 2, StudentID: 2}},
	})
	snap := store.ExportState()
	if len(snap.Classes) != 1 || snap.Classes[0].Name != "A" {
		t.Fatalf("unexpected classes %+v", snap.Classes)
	}
	if len(snap.Students) != 1 || len(snap.Addresses) != 1 {
		t.Fatalf("dangling records survived: %+v", snap)
	}
}
