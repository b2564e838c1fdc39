package core

import "studentrecords/pkg/domain"

type (
	EntityType         = domain.EntityType
	Severity           = domain.Severity
	Status             = domain.Status
	Class              = domain.Class
	Student            = domain.Student
	Address            = domain.Address
	Change             = domain.Change
	Action             = domain.Action
	Violation          = domain.Violation
	Result             = domain.Result
	RulesEngine        = domain.RulesEngine
	RuleViolationError = domain.RuleViolationError
	Transaction        = domain.Transaction
	TransactionView    = domain.TransactionView
	PersistentStore    = domain.PersistentStore
)

const (
	EntityClass   = domain.EntityClass
	EntityStudent = domain.EntityStudent
	EntityAddress = domain.EntityAddress
)

const (
	StatusUnevaluated = domain.StatusUnevaluated
	StatusPass        = domain.StatusPass
	StatusFail        = domain.StatusFail
)

const (
	SeverityBlock = domain.SeverityBlock
	SeverityWarn  = domain.SeverityWarn
	SeverityLog   = domain.SeverityLog
)

const (
	ActionCreate = domain.ActionCreate
	ActionUpdate = domain.ActionUpdate
	ActionDelete = domain.ActionDelete
)
