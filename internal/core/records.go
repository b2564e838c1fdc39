package core

import (
	"math"
	"strings"

	"studentrecords/pkg/pagination"
)

// MissingClassName is rendered when a student's class cannot be resolved.
const MissingClassName = "N/A"

// StudentRecord is a student joined with its class name and addresses at query
// time.
type StudentRecord struct {
	Student
	ClassName string    `json:"class_name"`
	Addresses []Address `json:"addresses"`
}

// buildRecord joins a student with its class and addresses from view.
func buildRecord(view TransactionView, st Student) StudentRecord {
	name := MissingClassName
	if class, ok := view.FindClass(st.ClassID); ok {
		name = class.Name
	}
	addresses := view.StudentAddresses(st.ID)
	if addresses == nil {
		addresses = []Address{}
	}
	return StudentRecord{Student: st, ClassName: name, Addresses: addresses}
}

// rankKey places unranked students after every ranked one.
func rankKey(r StudentRecord) int {
	if rank, ok := r.RankValue(); ok {
		return rank
	}
	return math.MaxInt
}

// StudentOrdering registers the sort keys accepted by record pagination.
var StudentOrdering = pagination.Ordering[StudentRecord]{
	"id":    pagination.By(func(r StudentRecord) int { return r.ID }),
	"name":  pagination.By(func(r StudentRecord) string { return r.Name }),
	"marks": pagination.By(func(r StudentRecord) int { return r.Marks }),
	"age":   pagination.By(func(r StudentRecord) int { return r.Age }),
	"rank":  pagination.By(rankKey),
	"class": pagination.By(func(r StudentRecord) string { return strings.ToLower(r.ClassName) }),
}
