package core

import (
	"context"
	"fmt"

	"studentrecords/pkg/domain"
)

// NewAdmissionAgeRule rejects students older than limit. There is no minimum.
func NewAdmissionAgeRule(limit int) domain.Rule {
	return admissionAgeRule{limit: limit}
}

type admissionAgeRule struct {
	limit int
}

func (admissionAgeRule) Name() string { return "admission_age" }

func (r admissionAgeRule) Evaluate(_ context.Context, _ domain.RuleView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	for _, st := range createdStudents(changes) {
		if st.Age <= r.limit {
			continue
		}
		res.Violations = append(res.Violations, domain.Violation{
			Rule:     r.Name(),
			Severity: domain.SeverityBlock,
			Message:  fmt.Sprintf("student %d not inserted: age %d exceeds admission limit %d", st.ID, st.Age, r.limit),
			Entity:   domain.EntityStudent,
			EntityID: st.ID,
		})
	}
	return res, nil
}
