package domain

import "context"

// Transaction exposes the domain operations that a store implementation must
// support within an atomic scope.
type Transaction interface {
	Snapshot() TransactionView
	CreateClass(Class) (Class, error)
	DeleteClass(id int) error
	CreateStudent(Student) (Student, error)
	UpdateStudent(id int, mutator func(*Student) error) (Student, error)
	// DeleteStudent removes the student together with every address it owns.
	DeleteStudent(id int) error
	CreateAddress(Address) (Address, error)
	FindClass(id int) (Class, bool)
	FindStudent(id int) (Student, bool)
	CountClassStudents(classID int) int
}

// TransactionView provides read-only access to snapshot data.
type TransactionView interface {
	RuleView
	StudentAddresses(studentID int) []Address
}

// PersistentStore is the minimal abstraction over record stores used by the
// service layer.
type PersistentStore interface {
	RunInTransaction(ctx context.Context, fn func(Transaction) error) (Result, error)
	View(ctx context.Context, fn func(TransactionView) error) error
	GetClass(id int) (Class, bool)
	ListClasses() []Class
	GetStudent(id int) (Student, bool)
	ListStudents() []Student
	ListAddresses() []Address
}
