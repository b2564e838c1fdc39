package core

import (
	"context"
	"strings"
)

// StudentFilter selects students. Empty strings and nil pointers impose no
// constraint; all set fields must match.
type StudentFilter struct {
	Gender    string
	ClassName string
	PinCode   string
	City      string
	Age       *int
	MinAge    *int
	MaxAge    *int
	Status    *Status
}

// Matches reports whether record satisfies every constraint in f.
func (f StudentFilter) Matches(record StudentRecord) bool {
	if f.Gender != "" && !strings.EqualFold(record.Gender, f.Gender) {
		return false
	}
	if f.ClassName != "" && !strings.EqualFold(record.ClassName, f.ClassName) {
		return false
	}
	if f.Age != nil && record.Age != *f.Age {
		return false
	}
	if f.MinAge != nil && record.Age < *f.MinAge {
		return false
	}
	if f.MaxAge != nil && record.Age > *f.MaxAge {
		return false
	}
	if f.Status != nil && record.Status != *f.Status {
		return false
	}
	if f.PinCode != "" && !anyAddress(record.Addresses, func(a Address) bool { return a.PinCode == f.PinCode }) {
		return false
	}
	if f.City != "" && !anyAddress(record.Addresses, func(a Address) bool { return strings.EqualFold(a.City, f.City) }) {
		return false
	}
	return true
}

func anyAddress(addresses []Address, pred func(Address) bool) bool {
	for _, a := range addresses {
		if pred(a) {
			return true
		}
	}
	return false
}

// FindStudents returns the records matching filter in insertion order.
func (s *Service) FindStudents(ctx context.Context, filter StudentFilter) ([]StudentRecord, error) {
	var out []StudentRecord
	err := s.run(ctx, "find_students", func(ctx context.Context) error {
		return s.store.View(ctx, func(view TransactionView) error {
			out = []StudentRecord{}
			for _, st := range view.ListStudents() {
				record := buildRecord(view, st)
				if filter.Matches(record) {
					out = append(out, record)
				}
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ListStudents returns every student record.
func (s *Service) ListStudents(ctx context.Context) ([]StudentRecord, error) {
	return s.FindStudents(ctx, StudentFilter{})
}

// ListClasses returns every class in creation order.
func (s *Service) ListClasses(ctx context.Context) ([]Class, error) {
	var out []Class
	err := s.run(ctx, "list_classes", func(ctx context.Context) error {
		return s.store.View(ctx, func(view TransactionView) error {
			out = view.ListClasses()
			return nil
		})
	})
	return out, err
}

// FindByPincode returns students with an address at pin.
func (s *Service) FindByPincode(ctx context.Context, pin string) ([]StudentRecord, error) {
	return s.FindStudents(ctx, StudentFilter{PinCode: pin})
}

// FindByCity returns students with an address in city, optionally restricted
// to gender.
func (s *Service) FindByCity(ctx context.Context, city, gender string) ([]StudentRecord, error) {
	return s.FindStudents(ctx, StudentFilter{City: city, Gender: gender})
}

// FindByClass returns the students of the named class.
func (s *Service) FindByClass(ctx context.Context, className string) ([]StudentRecord, error) {
	return s.FindStudents(ctx, StudentFilter{ClassName: className})
}

// PassedStudents returns students whose last evaluation passed.
func (s *Service) PassedStudents(ctx context.Context) ([]StudentRecord, error) {
	status := StatusPass
	return s.FindStudents(ctx, StudentFilter{Status: &status})
}

// FailedStudents returns students whose last evaluation failed, optionally
// restricted to gender.
func (s *Service) FailedStudents(ctx context.Context, gender string) ([]StudentRecord, error) {
	status := StatusFail
	return s.FindStudents(ctx, StudentFilter{Status: &status, Gender: gender})
}
