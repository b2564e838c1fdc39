// Package report flattens the evaluated roster into the student_report table
// shape shared by the SQL roster sinks.
package report

import (
	"encoding/json"
	"fmt"

	"studentrecords/internal/core"
)

// Table is the report table name.
const Table = "student_report"

// Columns lists the report columns in insert order.
var Columns = []string{"student_id", "name", "class_name", "marks", "gender", "age", "status", "rank", "addresses", "published_at"}

// Row is one flattened roster entry. Rank is nil for unevaluated students and
// Addresses holds a JSON array.
type Row struct {
	StudentID int
	Name      string
	ClassName string
	Marks     int
	Gender    string
	Age       int
	Status    string
	Rank      *int
	Addresses string
}

type addressJSON struct {
	PinCode string `json:"pin_code"`
	City    string `json:"city"`
}

// Rows flattens roster preserving order.
func Rows(roster []core.StudentRecord) ([]Row, error) {
	out := make([]Row, 0, len(roster))
	for _, r := range roster {
		addresses := make([]addressJSON, 0, len(r.Addresses))
		for _, a := range r.Addresses {
			addresses = append(addresses, addressJSON{PinCode: a.PinCode, City: a.City})
		}
		raw, err := json.Marshal(addresses)
		if err != nil {
			return nil, fmt.Errorf("encode addresses of student %d: %w", r.ID, err)
		}
		row := Row{
			StudentID: r.ID,
			Name:      r.Name,
			ClassName: r.ClassName,
			Marks:     r.Marks,
			Gender:    r.Gender,
			Age:       r.Age,
			Status:    string(r.Status),
			Addresses: string(raw),
		}
		if rank, ok := r.RankValue(); ok {
			row.Rank = &rank
		}
		out = append(out, row)
	}
	return out, nil
}

// Args returns the row values in Columns order, followed by publishedAt.
func (r Row) Args(publishedAt any) []any {
	var rank any
	if r.Rank != nil {
		rank = int64(*r.Rank)
	}
	return []any{int64(r.StudentID), r.Name, r.ClassName, int64(r.Marks), r.Gender, int64(r.Age), r.Status, rank, r.Addresses, publishedAt}
}
