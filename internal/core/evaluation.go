package core

import (
	"context"
	"slices"
	"time"

	"studentrecords/pkg/pagination"
)

// DefaultPassMark is the lowest passing mark.
const DefaultPassMark = 50

// Evaluation summarizes one EvaluateAll run.
type Evaluation struct {
	Evaluated   int
	Passed      int
	Failed      int
	EvaluatedAt time.Time
}

// rankOrder sorts by marks descending, then name and id ascending. Only marks
// influence rank values; the remaining keys make iteration deterministic.
var rankOrder = pagination.By(func(s Student) int { return s.Marks }).Reverse().
	Then(pagination.By(func(s Student) string { return s.Name })).
	Then(pagination.By(func(s Student) int { return s.ID }))

// StatusFor maps marks to a pass/fail status.
func StatusFor(marks, passMark int) Status {
	if marks >= passMark {
		return StatusPass
	}
	return StatusFail
}

// RankStudents returns copies of students in rank order with competition
// ranks assigned: equal marks share a rank and the next distinct mark ranks at
// one plus the number of students strictly ahead.
func RankStudents(students []Student) []Student {
	sorted := slices.Clone(students)
	slices.SortStableFunc(sorted, rankOrder)

	lastMarks, lastRank := 0, 0
	for i := range sorted {
		if i == 0 || sorted[i].Marks != lastMarks {
			lastMarks = sorted[i].Marks
			lastRank = i + 1
		}
		rank := lastRank
		sorted[i].Rank = &rank
	}
	return sorted
}

// EvaluateAll recomputes status and rank for every student in one transaction,
// overwriting any earlier values.
func (s *Service) EvaluateAll(ctx context.Context) (Evaluation, error) {
	var eval Evaluation
	err := s.run(ctx, "evaluate_all", func(ctx context.Context) error {
		_, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
			eval = Evaluation{}
			for _, ranked := range RankStudents(tx.Snapshot().ListStudents()) {
				status := StatusFor(ranked.Marks, s.passMark)
				rank := *ranked.Rank
				if _, err := tx.UpdateStudent(ranked.ID, func(st *Student) error {
					st.Status = status
					st.Rank = &rank
					return nil
				}); err != nil {
					return err
				}
				eval.Evaluated++
				if status == StatusPass {
					eval.Passed++
				} else {
					eval.Failed++
				}
			}
			return nil
		})
		return err
	})
	if err != nil {
		return Evaluation{}, err
	}
	eval.EvaluatedAt = s.clock.Now()
	s.logger.Info("students evaluated", "evaluated", eval.Evaluated, "passed", eval.Passed, "failed", eval.Failed)
	return eval, nil
}
