package core

import (
	"context"
	"fmt"

	"studentrecords/pkg/domain"
)

// NewClassReferenceRule rejects students whose class does not exist.
func NewClassReferenceRule() domain.Rule {
	return classReferenceRule{}
}

type classReferenceRule struct{}

func (classReferenceRule) Name() string { return "class_reference" }

func (r classReferenceRule) Evaluate(_ context.Context, view domain.RuleView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	for _, st := range createdStudents(changes) {
		if _, ok := view.FindClass(st.ClassID); ok {
			continue
		}
		res.Violations = append(res.Violations, domain.Violation{
			Rule:     r.Name(),
			Severity: domain.SeverityBlock,
			Message:  fmt.Sprintf("student %d not inserted: class %d does not exist", st.ID, st.ClassID),
			Entity:   domain.EntityStudent,
			EntityID: st.ID,
		})
	}
	return res, nil
}
