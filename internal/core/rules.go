package core

import "studentrecords/pkg/domain"

// DefaultAdmissionAgeLimit is the oldest age admitted by default.
const DefaultAdmissionAgeLimit = 20

// NewRulesEngine constructs an empty engine.
func NewRulesEngine() *RulesEngine {
	return domain.NewRulesEngine()
}

// NewDefaultRulesEngine builds the store-level engine evaluated after every
// transaction, before commit.
func NewDefaultRulesEngine() *RulesEngine {
	engine := domain.NewRulesEngine()
	engine.Register(NewReferentialIntegrityRule())
	return engine
}

// NewAdmissionRulesEngine builds the engine consulted before a student is
// inserted. Registration order is the precedence order of rejection reasons.
func NewAdmissionRulesEngine(ageLimit int) *RulesEngine {
	engine := domain.NewRulesEngine()
	engine.Register(NewAdmissionAgeRule(ageLimit))
	engine.Register(NewClassReferenceRule())
	engine.Register(NewRecordIdentityRule())
	return engine
}

// createdStudents extracts the students proposed for creation.
func createdStudents(changes []Change) []Student {
	var out []Student
	for _, change := range changes {
		if change.Entity != EntityStudent || change.Action != ActionCreate {
			continue
		}
		if st, ok := change.After.(Student); ok {
			out = append(out, st)
		}
	}
	return out
}

// createdAddresses extracts the addresses proposed for creation.
func createdAddresses(changes []Change) []Address {
	var out []Address
	for _, change := range changes {
		if change.Entity != EntityAddress || change.Action != ActionCreate {
			continue
		}
		if a, ok := change.After.(Address); ok {
			out = append(out, a)
		}
	}
	return out
}
