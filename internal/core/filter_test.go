package core_test

import (
	"context"
	"errors"
	"testing"

	"studentrecords/internal/core"
	"studentrecords/pkg/domain"
	"studentrecords/pkg/pagination"
)

func newFilterService(t *testing.T) *core.Service {
	t.Helper()
	svc := newClassService(t, core.WithAdmissionAgeLimit(50))
	mustInsert(t, svc, domain.Student{ID: 1, Name: "stud1", ClassID: 1, Marks: 88, Gender: "F", Age: 10},
		domain.Address{ID: 1, PinCode: "452002", City: "indore", StudentID: 1},
		domain.Address{ID: 2, PinCode: "422002", City: "delhi", StudentID: 1})
	mustInsert(t, svc, domain.Student{ID: 2, Name: "stud2", ClassID: 1, Marks: 70, Gender: "F", Age: 11},
		domain.Address{ID: 3, PinCode: "442002", City: "indore", StudentID: 2})
	mustInsert(t, svc, domain.Student{ID: 3, Name: "stud3", ClassID: 2, Marks: 88, Gender: "M", Age: 22},
		domain.Address{ID: 4, PinCode: "462002", City: "Delhi", StudentID: 3})
	mustInsert(t, svc, domain.Student{ID: 6, Name: "stud6", ClassID: 3, Marks: 30, Gender: "F", Age: 33},
		domain.Address{ID: 8, PinCode: "482002", City: "mumbai", StudentID: 6})
	mustInsert(t, svc, domain.Student{ID: 7, Name: "stud7", ClassID: 3, Marks: 10, Gender: "f", Age: 22})
	if _, err := svc.EvaluateAll(context.Background()); err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	return svc
}

func recordIDs(records []core.StudentRecord) []int {
	ids := make([]int, 0, len(records))
	for _, r := range records {
		ids = append(ids, r.ID)
	}
	return ids
}

func sameIDs(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestFindStudentsFilters(t *testing.T) {
	svc := newFilterService(t)
	ctx := context.Background()
	pass := domain.StatusPass
	minAge, maxAge, age := 11, 30, 22

	cases := []struct {
		name   string
		filter core.StudentFilter
		want   []int
	}{
		{name: "no constraints", filter: core.StudentFilter{}, want: []int{1, 2, 3, 6, 7}},
		{name: "gender ignores case", filter: core.StudentFilter{Gender: "F"}, want: []int{1, 2, 6, 7}},
		{name: "class name", filter: core.StudentFilter{ClassName: "c"}, want: []int{6, 7}},
		{name: "pin code any address", filter: core.StudentFilter{PinCode: "422002"}, want: []int{1}},
		{name: "city ignores case", filter: core.StudentFilter{City: "DELHI"}, want: []int{1, 3}},
		{name: "student without addresses never matches city", filter: core.StudentFilter{City: "mumbai", Gender: "f"}, want: []int{6}},
		{name: "exact age", filter: core.StudentFilter{Age: &age}, want: []int{3, 7}},
		{name: "age range", filter: core.StudentFilter{MinAge: &minAge, MaxAge: &maxAge}, want: []int{2, 3, 7}},
		{name: "status and gender", filter: core.StudentFilter{Status: &pass, Gender: "M"}, want: []int{3}},
		{name: "no match", filter: core.StudentFilter{ClassName: "D"}, want: []int{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := svc.FindStudents(ctx, tc.filter)
			if err != nil {
				t.Fatalf("find: %v", err)
			}
			if ids := recordIDs(got); !sameIDs(ids, tc.want) {
				t.Fatalf("want %v, got %v", tc.want, ids)
			}
		})
	}
}

func TestConvenienceQueries(t *testing.T) {
	svc := newFilterService(t)
	ctx := context.Background()

	check := func(name string, records []core.StudentRecord, err error, want []int) {
		t.Helper()
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if ids := recordIDs(records); !sameIDs(ids, want) {
			t.Fatalf("%s: want %v, got %v", name, want, ids)
		}
	}

	records, err := svc.FindByPincode(ctx, "482002")
	check("by pincode", records, err, []int{6})
	records, err = svc.FindByCity(ctx, "indore", "F")
	check("by city", records, err, []int{1, 2})
	records, err = svc.FindByClass(ctx, "A")
	check("by class", records, err, []int{1, 2})
	records, err = svc.PassedStudents(ctx)
	check("passed", records, err, []int{1, 2, 3})
	records, err = svc.FailedStudents(ctx, "F")
	check("failed female", records, err, []int{6, 7})
	records, err = svc.ListStudents(ctx)
	check("all", records, err, []int{1, 2, 3, 6, 7})
}

func TestStudentRecordJoinsClassAndAddresses(t *testing.T) {
	svc := newFilterService(t)
	records, err := svc.FindByPincode(context.Background(), "452002")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected one record, got %d", len(records))
	}
	r := records[0]
	if r.ClassName != "A" {
		t.Fatalf("expected class A, got %q", r.ClassName)
	}
	if len(r.Addresses) != 2 || r.Addresses[0].City != "indore" || r.Addresses[1].City != "delhi" {
		t.Fatalf("unexpected addresses: %+v", r.Addresses)
	}
}

func TestStudentOrderingPaginatesRecords(t *testing.T) {
	svc := newFilterService(t)
	females, err := svc.FindStudents(context.Background(), core.StudentFilter{Gender: "F"})
	if err != nil {
		t.Fatalf("find: %v", err)
	}

	page, err := core.StudentOrdering.Paginate(females, pagination.Bound(1), pagination.Bound(2), "", true)
	if err != nil {
		t.Fatalf("default order: %v", err)
	}
	if ids := recordIDs(page); !sameIDs(ids, []int{1, 2}) {
		t.Fatalf("default order: got %v", ids)
	}

	page, err = core.StudentOrdering.Paginate(females, nil, pagination.Bound(3), "marks", false)
	if err != nil {
		t.Fatalf("by marks: %v", err)
	}
	if ids := recordIDs(page); !sameIDs(ids, []int{1, 2, 6}) {
		t.Fatalf("by marks desc: got %v", ids)
	}

	page, err = core.StudentOrdering.Paginate(females, pagination.Bound(2), nil, "rank", true)
	if err != nil {
		t.Fatalf("by rank: %v", err)
	}
	if ids := recordIDs(page); !sameIDs(ids, []int{2, 6, 7}) {
		t.Fatalf("by rank: got %v", ids)
	}

	if _, err := core.StudentOrdering.Paginate(females, nil, nil, "shoe_size", true); !errors.Is(err, pagination.ErrUnknownSortKey) {
		t.Fatalf("expected unknown sort key error, got %v", err)
	}
}
