package core

import (
	"context"
	"fmt"

	"studentrecords/pkg/domain"
)

// NewRecordIdentityRule rejects inserts that would overwrite existing records or
// attach addresses to a different student than the one being inserted.
func NewRecordIdentityRule() domain.Rule {
	return recordIdentityRule{}
}

type recordIdentityRule struct{}

func (recordIdentityRule) Name() string { return "record_identity" }

func (r recordIdentityRule) Evaluate(_ context.Context, view domain.RuleView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	block := func(studentID int, entity domain.EntityType, format string, args ...any) {
		res.Violations = append(res.Violations, domain.Violation{
			Rule:     r.Name(),
			Severity: domain.SeverityBlock,
			Message:  fmt.Sprintf("student %d not inserted: ", studentID) + fmt.Sprintf(format, args...),
			Entity:   entity,
			EntityID: studentID,
		})
	}

	students := createdStudents(changes)
	owners := make(map[int]struct{}, len(students))
	for _, st := range students {
		owners[st.ID] = struct{}{}
		if _, exists := view.FindStudent(st.ID); exists {
			block(st.ID, domain.EntityStudent, "id already exists")
		}
	}

	// Addresses are inserted together with exactly one student; report them
	// against that student.
	var owner int
	if len(students) > 0 {
		owner = students[0].ID
	}
	seen := make(map[int]struct{})
	for _, a := range createdAddresses(changes) {
		if _, ok := owners[a.StudentID]; !ok {
			block(owner, domain.EntityAddress, "address %d belongs to student %d", a.ID, a.StudentID)
			continue
		}
		_, dup := seen[a.ID]
		_, exists := view.FindAddress(a.ID)
		if dup || exists {
			block(a.StudentID, domain.EntityAddress, "address %d already exists", a.ID)
			continue
		}
		seen[a.ID] = struct{}{}
	}
	return res, nil
}
