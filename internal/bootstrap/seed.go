// Package bootstrap seeds a service with classes, students and addresses,
// either from the built-in sample set or from a JSON seed file.
package bootstrap

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"studentrecords/internal/core"
)

// Seed is the on-disk shape of a seed file. Addresses are matched to students
// through student_id.
type Seed struct {
	Classes   []SeedClass   `json:"classes" validate:"dive"`
	Students  []SeedStudent `json:"students" validate:"dive"`
	Addresses []SeedAddress `json:"addresses" validate:"dive"`
}

// SeedClass describes one class.
type SeedClass struct {
	ID   int    `json:"id" validate:"gt=0"`
	Name string `json:"name" validate:"required"`
}

// SeedStudent describes one student. Status and rank are never seeded.
type SeedStudent struct {
	ID      int    `json:"id" validate:"gt=0"`
	Name    string `json:"name" validate:"required"`
	ClassID int    `json:"class_id" validate:"gt=0"`
	Marks   int    `json:"marks" validate:"gte=0"`
	Gender  string `json:"gender" validate:"required,oneof=M F m f"`
	Age     int    `json:"age" validate:"gte=0"`
}

// SeedAddress describes one address.
type SeedAddress struct {
	ID        int    `json:"id" validate:"gt=0"`
	PinCode   string `json:"pin_code" validate:"required,numeric"`
	City      string `json:"city" validate:"required"`
	StudentID int    `json:"student_id" validate:"gt=0"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the shape of every record. Business rules such as the
// admission age are left to the service.
func (s Seed) Validate() error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate seed: %w", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
	}
	return fmt.Errorf("invalid seed: %s", strings.Join(msgs, "; "))
}

func (c SeedClass) class() core.Class {
	return core.Class{ID: c.ID, Name: c.Name}
}

func (s SeedStudent) student() core.Student {
	return core.Student{ID: s.ID, Name: s.Name, ClassID: s.ClassID, Marks: s.Marks, Gender: s.Gender, Age: s.Age}
}

func (a SeedAddress) address() core.Address {
	return core.Address{ID: a.ID, PinCode: a.PinCode, City: a.City, StudentID: a.StudentID}
}

// Sample returns the built-in demo data set. Students aged over twenty are
// included on purpose and are rejected by the default admission rules.
func Sample() Seed {
	return Seed{
		Classes: []SeedClass{
			{ID: 1, Name: "A"},
			{ID: 2, Name: "B"},
			{ID: 3, Name: "C"},
			{ID: 4, Name: "D"},
		},
		Students: []SeedStudent{
			{ID: 1, Name: "stud1", ClassID: 1, Marks: 88, Gender: "F", Age: 10},
			{ID: 2, Name: "stud2", ClassID: 1, Marks: 70, Gender: "F", Age: 11},
			{ID: 3, Name: "stud3", ClassID: 2, Marks: 88, Gender: "M", Age: 22},
			{ID: 4, Name: "stud4", ClassID: 2, Marks: 55, Gender: "M", Age: 33},
			{ID: 5, Name: "stud5", ClassID: 1, Marks: 30, Gender: "F", Age: 44},
			{ID: 6, Name: "stud6", ClassID: 3, Marks: 30, Gender: "F", Age: 33},
			{ID: 7, Name: "stud6", ClassID: 3, Marks: 10, Gender: "F", Age: 22},
			{ID: 8, Name: "stud6", ClassID: 3, Marks: 0, Gender: "M", Age: 11},
		},
		Addresses: []SeedAddress{
			{ID: 1, PinCode: "452002", City: "indore", StudentID: 1},
			{ID: 2, PinCode: "422002", City: "delhi", StudentID: 1},
			{ID: 3, PinCode: "442002", City: "indore", StudentID: 2},
			{ID: 4, PinCode: "462002", City: "delhi", StudentID: 3},
			{ID: 5, PinCode: "472002", City: "indore", StudentID: 4},
			{ID: 6, PinCode: "452002", City: "indore", StudentID: 5},
			{ID: 7, PinCode: "452002", City: "delhi", StudentID: 5},
			{ID: 8, PinCode: "482002", City: "mumbai", StudentID: 6},
			{ID: 9, PinCode: "482002", City: "bhopal", StudentID: 7},
			{ID: 10, PinCode: "482002", City: "indore", StudentID: 8},
		},
	}
}
