// Package memory provides the in-memory transactional record store backing the
// student-records service.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"studentrecords/pkg/domain"
)

// Compile-time contract assertion ensuring memory.Store adheres to the domain persistence interface.
var _ domain.PersistentStore = (*Store)(nil)

type (
	// Class aliases domain.Class for in-memory persistence operations.
	Class = domain.Class
	// Student aliases domain.Student.
	Student = domain.Student
	// Address aliases domain.Address.
	Address = domain.Address
	// Change aliases domain.Change captured in transactions.
	Change = domain.Change
	// Result aliases domain.Result summarizing rule evaluation.
	Result = domain.Result
	// RulesEngine aliases domain.RulesEngine used to evaluate rules.
	RulesEngine = domain.RulesEngine
	// Transaction aliases domain.Transaction representing a mutable unit of work.
	Transaction = domain.Transaction
	// TransactionView aliases domain.TransactionView providing read-only state.
	TransactionView = domain.TransactionView
)

// memoryState holds the three collections plus the indexes used for joins and
// cascades. The order slices record insertion order so listings are stable.
type memoryState struct {
	classes          map[int]Class
	students         map[int]Student
	addresses        map[int]Address
	classStudents    map[int]map[int]struct{}
	studentAddresses map[int][]int
	classOrder       []int
	studentOrder     []int
	addressOrder     []int
}

// Snapshot captures a point-in-time clone of the store state in insertion order.
type Snapshot struct {
	Classes   []Class   `json:"classes"`
	Students  []Student `json:"students"`
	Addresses []Address `json:"addresses"`
}

func newMemoryState() memoryState {
	return memoryState{
		classes:          make(map[int]Class),
		students:         make(map[int]Student),
		addresses:        make(map[int]Address),
		classStudents:    make(map[int]map[int]struct{}),
		studentAddresses: make(map[int][]int),
	}
}

func (s memoryState) clone() memoryState {
	cloned := memoryState{
		classes:          make(map[int]Class, len(s.classes)),
		students:         make(map[int]Student, len(s.students)),
		addresses:        make(map[int]Address, len(s.addresses)),
		classStudents:    make(map[int]map[int]struct{}, len(s.classStudents)),
		studentAddresses: make(map[int][]int, len(s.studentAddresses)),
		classOrder:       slices.Clone(s.classOrder),
		studentOrder:     slices.Clone(s.studentOrder),
		addressOrder:     slices.Clone(s.addressOrder),
	}
	for k, v := range s.classes {
		cloned.classes[k] = v
	}
	for k, v := range s.students {
		cloned.students[k] = cloneStudent(v)
	}
	for k, v := range s.addresses {
		cloned.addresses[k] = v
	}
	for classID, members := range s.classStudents {
		cp := make(map[int]struct{}, len(members))
		for id := range members {
			cp[id] = struct{}{}
		}
		cloned.classStudents[classID] = cp
	}
	for studentID, ids := range s.studentAddresses {
		cloned.studentAddresses[studentID] = slices.Clone(ids)
	}
	return cloned
}

func cloneStudent(s Student) Student {
	cp := s
	if s.Rank != nil {
		r := *s.Rank
		cp.Rank = &r
	}
	return cp
}

func snapshotFromMemoryState(state memoryState) Snapshot {
	snap := Snapshot{
		Classes:   make([]Class, 0, len(state.classOrder)),
		Students:  make([]Student, 0, len(state.studentOrder)),
		Addresses: make([]Address, 0, len(state.addressOrder)),
	}
	for _, id := range state.classOrder {
		snap.Classes = append(snap.Classes, state.classes[id])
	}
	for _, id := range state.studentOrder {
		snap.Students = append(snap.Students, cloneStudent(state.students[id]))
	}
	for _, id := range state.addressOrder {
		snap.Addresses = append(snap.Addresses, state.addresses[id])
	}
	return snap
}

// memoryStateFromSnapshot rebuilds state and indexes. Records whose foreign keys
// do not resolve are dropped so the indexes never point at missing rows.
func memoryStateFromSnapshot(snap Snapshot) memoryState {
	state := newMemoryState()
	for _, c := range snap.Classes {
		if _, dup := state.classes[c.ID]; dup {
			continue
		}
		state.putClass(c)
	}
	for _, st := range snap.Students {
		if _, ok := state.classes[st.ClassID]; !ok {
			continue
		}
		if _, dup := state.students[st.ID]; dup {
			continue
		}
		state.putStudent(cloneStudent(st))
	}
	for _, a := range snap.Addresses {
		if _, ok := state.students[a.StudentID]; !ok {
			continue
		}
		if _, dup := state.addresses[a.ID]; dup {
			continue
		}
		state.putAddress(a)
	}
	return state
}

func (s *memoryState) putClass(c Class) {
	s.classes[c.ID] = c
	s.classOrder = append(s.classOrder, c.ID)
}

func (s *memoryState) putStudent(st Student) {
	s.students[st.ID] = st
	s.studentOrder = append(s.studentOrder, st.ID)
	members, ok := s.classStudents[st.ClassID]
	if !ok {
		members = make(map[int]struct{})
		s.classStudents[st.ClassID] = members
	}
	members[st.ID] = struct{}{}
}

func (s *memoryState) putAddress(a Address) {
	s.addresses[a.ID] = a
	s.addressOrder = append(s.addressOrder, a.ID)
	s.studentAddresses[a.StudentID] = append(s.studentAddresses[a.StudentID], a.ID)
}

func (s *memoryState) addressesOf(studentID int) []Address {
	ids := s.studentAddresses[studentID]
	out := make([]Address, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.addresses[id])
	}
	return out
}

func removeID(order []int, id int) []int {
	if i := slices.Index(order, id); i >= 0 {
		return slices.Delete(order, i, i+1)
	}
	return order
}

// Store provides an in-memory transactional store. Writers are serialized by
// the lock and operate on a cloned state that replaces the committed state only
// when the transaction function and every blocking rule succeed.
type Store struct {
	mu     sync.RWMutex
	state  memoryState
	engine *RulesEngine
}

// NewStore constructs an in-memory store backed by the provided rules engine.
func NewStore(engine *RulesEngine) *Store {
	if engine == nil {
		engine = domain.NewRulesEngine()
	}
	return &Store{
		state:  newMemoryState(),
		engine: engine,
	}
}

// ExportState clones the current store state.
func (s *Store) ExportState() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return snapshotFromMemoryState(s.state)
}

// ImportState replaces the store state with the provided snapshot.
func (s *Store) ImportState(snapshot Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = memoryStateFromSnapshot(snapshot)
}

// RulesEngine exposes the currently configured engine.
func (s *Store) RulesEngine() *RulesEngine {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine
}

type transaction struct {
	state   memoryState
	changes []Change
}

type transactionView struct {
	state *memoryState
}

func newTransactionView(state *memoryState) TransactionView {
	return transactionView{state: state}
}

// ListClasses returns all classes in insertion order.
func (v transactionView) ListClasses() []Class {
	out := make([]Class, 0, len(v.state.classOrder))
	for _, id := range v.state.classOrder {
		out = append(out, v.state.classes[id])
	}
	return out
}

// ListStudents returns all students in insertion order.
func (v transactionView) ListStudents() []Student {
	out := make([]Student, 0, len(v.state.studentOrder))
	for _, id := range v.state.studentOrder {
		out = append(out, cloneStudent(v.state.students[id]))
	}
	return out
}

// ListAddresses returns all addresses in insertion order.
func (v transactionView) ListAddresses() []Address {
	out := make([]Address, 0, len(v.state.addressOrder))
	for _, id := range v.state.addressOrder {
		out = append(out, v.state.addresses[id])
	}
	return out
}

// FindClass retrieves a class by ID from the snapshot.
func (v transactionView) FindClass(id int) (Class, bool) {
	c, ok := v.state.classes[id]
	return c, ok
}

// FindStudent retrieves a student by ID from the snapshot.
func (v transactionView) FindStudent(id int) (Student, bool) {
	st, ok := v.state.students[id]
	if !ok {
		return Student{}, false
	}
	return cloneStudent(st), true
}

// FindAddress retrieves an address by ID from the snapshot.
func (v transactionView) FindAddress(id int) (Address, bool) {
	a, ok := v.state.addresses[id]
	return a, ok
}

// StudentAddresses returns the addresses owned by a student in insertion order.
func (v transactionView) StudentAddresses(studentID int) []Address {
	return v.state.addressesOf(studentID)
}

// RunInTransaction executes fn within a transactional copy of the store state.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx Transaction) error) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &transaction{state: s.state.clone()}
	if err := fn(tx); err != nil {
		return Result{}, err
	}

	var result Result
	if s.engine != nil {
		res, err := s.engine.Evaluate(ctx, newTransactionView(&tx.state), tx.changes)
		if err != nil {
			return Result{}, err
		}
		result = res
		if res.HasBlocking() {
			return res, domain.RuleViolationError{Result: res}
		}
	}

	s.state = tx.state
	return result, nil
}

// View executes fn against a read-only snapshot of the store state.
func (s *Store) View(ctx context.Context, fn func(TransactionView) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	snapshot := s.state.clone()
	s.mu.RUnlock()
	return fn(newTransactionView(&snapshot))
}

func (tx *transaction) recordChange(change Change) {
	tx.changes = append(tx.changes, change)
}

// Snapshot returns a read-only view over the transactional state.
func (tx *transaction) Snapshot() TransactionView {
	return newTransactionView(&tx.state)
}

// FindClass exposes class lookup within the transaction scope.
func (tx *transaction) FindClass(id int) (Class, bool) {
	c, ok := tx.state.classes[id]
	return c, ok
}

// FindStudent exposes student lookup within the transaction scope.
func (tx *transaction) FindStudent(id int) (Student, bool) {
	st, ok := tx.state.students[id]
	if !ok {
		return Student{}, false
	}
	return cloneStudent(st), true
}

// CountClassStudents reports how many students currently reference the class.
func (tx *transaction) CountClassStudents(classID int) int {
	return len(tx.state.classStudents[classID])
}

// CreateClass stores a new class within the transaction.
func (tx *transaction) CreateClass(c Class) (Class, error) {
	if _, exists := tx.state.classes[c.ID]; exists {
		return Class{}, fmt.Errorf("class %d already exists", c.ID)
	}
	tx.state.putClass(c)
	tx.recordChange(Change{Entity: domain.EntityClass, Action: domain.ActionCreate, After: c})
	return c, nil
}

// DeleteClass removes a class. Classes still referenced by students cannot be removed.
func (tx *transaction) DeleteClass(id int) error {
	current, ok := tx.state.classes[id]
	if !ok {
		return fmt.Errorf("class %d not found", id)
	}
	if count := len(tx.state.classStudents[id]); count > 0 {
		return fmt.Errorf("class %d still has %d students", id, count)
	}
	delete(tx.state.classes, id)
	delete(tx.state.classStudents, id)
	tx.state.classOrder = removeID(tx.state.classOrder, id)
	tx.recordChange(Change{Entity: domain.EntityClass, Action: domain.ActionDelete, Before: current})
	return nil
}

// CreateStudent stores a new student. Referential checks are left to the rules
// engine so that rejections surface as violations rather than store errors.
func (tx *transaction) CreateStudent(st Student) (Student, error) {
	if _, exists := tx.state.students[st.ID]; exists {
		return Student{}, fmt.Errorf("student %d already exists", st.ID)
	}
	st = cloneStudent(st)
	tx.state.putStudent(st)
	tx.recordChange(Change{Entity: domain.EntityStudent, Action: domain.ActionCreate, After: cloneStudent(st)})
	return cloneStudent(st), nil
}

// UpdateStudent mutates a student using the provided mutator. The id and class
// reference are immutable.
func (tx *transaction) UpdateStudent(id int, mutator func(*Student) error) (Student, error) {
	current, ok := tx.state.students[id]
	if !ok {
		return Student{}, fmt.Errorf("student %d not found", id)
	}
	before := cloneStudent(current)
	if err := mutator(&current); err != nil {
		return Student{}, err
	}
	current.ID = id
	current.ClassID = before.ClassID
	tx.state.students[id] = cloneStudent(current)
	tx.recordChange(Change{Entity: domain.EntityStudent, Action: domain.ActionUpdate, Before: before, After: cloneStudent(current)})
	return cloneStudent(current), nil
}

// DeleteStudent removes a student and cascades to the addresses it owns.
func (tx *transaction) DeleteStudent(id int) error {
	current, ok := tx.state.students[id]
	if !ok {
		return fmt.Errorf("student %d not found", id)
	}
	for _, addressID := range tx.state.studentAddresses[id] {
		addr := tx.state.addresses[addressID]
		delete(tx.state.addresses, addressID)
		tx.state.addressOrder = removeID(tx.state.addressOrder, addressID)
		tx.recordChange(Change{Entity: domain.EntityAddress, Action: domain.ActionDelete, Before: addr})
	}
	delete(tx.state.studentAddresses, id)
	delete(tx.state.students, id)
	tx.state.studentOrder = removeID(tx.state.studentOrder, id)
	if members, ok := tx.state.classStudents[current.ClassID]; ok {
		delete(members, id)
		if len(members) == 0 {
			delete(tx.state.classStudents, current.ClassID)
		}
	}
	tx.recordChange(Change{Entity: domain.EntityStudent, Action: domain.ActionDelete, Before: cloneStudent(current)})
	return nil
}

// CreateAddress stores an address for a student present in the transaction.
func (tx *transaction) CreateAddress(a Address) (Address, error) {
	if _, exists := tx.state.addresses[a.ID]; exists {
		return Address{}, fmt.Errorf("address %d already exists", a.ID)
	}
	if _, ok := tx.state.students[a.StudentID]; !ok {
		return Address{}, fmt.Errorf("address %d references missing student %d", a.ID, a.StudentID)
	}
	tx.state.putAddress(a)
	tx.recordChange(Change{Entity: domain.EntityAddress, Action: domain.ActionCreate, After: a})
	return a, nil
}

// Read helpers ---------------------------------------------------------------

// GetClass retrieves a class by ID from committed state.
func (s *Store) GetClass(id int) (Class, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.state.classes[id]
	return c, ok
}

// ListClasses returns all classes from committed state.
func (s *Store) ListClasses() []Class {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return newTransactionView(&s.state).ListClasses()
}

// GetStudent retrieves a student by ID from committed state.
func (s *Store) GetStudent(id int) (Student, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.state.students[id]
	if !ok {
		return Student{}, false
	}
	return cloneStudent(st), true
}

// ListStudents returns all students from committed state.
func (s *Store) ListStudents() []Student {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return newTransactionView(&s.state).ListStudents()
}

// ListAddresses returns all addresses from committed state.
func (s *Store) ListAddresses() []Address {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return newTransactionView(&s.state).ListAddresses()
}
