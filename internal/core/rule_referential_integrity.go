package core

import (
	"context"
	"fmt"

	"studentrecords/pkg/domain"
)

// NewReferentialIntegrityRule blocks commits that would leave a student without
// its class or an address without its student.
func NewReferentialIntegrityRule() domain.Rule {
	return referentialIntegrityRule{}
}

type referentialIntegrityRule struct{}

func (referentialIntegrityRule) Name() string { return "referential_integrity" }

func (r referentialIntegrityRule) Evaluate(_ context.Context, view domain.RuleView, _ []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	for _, st := range view.ListStudents() {
		if _, ok := view.FindClass(st.ClassID); ok {
			continue
		}
		res.Violations = append(res.Violations, domain.Violation{
			Rule:     r.Name(),
			Severity: domain.SeverityBlock,
			Message:  fmt.Sprintf("student %d references missing class %d", st.ID, st.ClassID),
			Entity:   domain.EntityStudent,
			EntityID: st.ID,
		})
	}
	for _, a := range view.ListAddresses() {
		if _, ok := view.FindStudent(a.StudentID); ok {
			continue
		}
		res.Violations = append(res.Violations, domain.Violation{
			Rule:     r.Name(),
			Severity: domain.SeverityBlock,
			Message:  fmt.Sprintf("address %d references missing student %d", a.ID, a.StudentID),
			Entity:   domain.EntityAddress,
			EntityID: a.ID,
		})
	}
	return res, nil
}
