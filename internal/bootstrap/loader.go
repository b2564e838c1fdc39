package bootstrap

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"

	"studentrecords/internal/core"
)

// Rejection records a student the service refused to admit.
type Rejection struct {
	StudentID int
	Reason    string
}

// Report summarizes a load.
type Report struct {
	Classes  int
	Inserted []int
	Rejected []Rejection
	// Messages holds every mutation reason in load order.
	Messages []string
}

// LoadSample loads the built-in sample data set.
func LoadSample(ctx context.Context, svc *core.Service, logger core.Logger) (Report, error) {
	return Load(ctx, svc, Sample(), logger)
}

// LoadFile decodes a JSON seed file and loads it.
func LoadFile(ctx context.Context, svc *core.Service, path string, logger core.Logger) (Report, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Report{}, fmt.Errorf("read seed %s: %w", path, err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	var seed Seed
	if err := dec.Decode(&seed); err != nil {
		return Report{}, fmt.Errorf("decode seed %s: %w", path, err)
	}
	return Load(ctx, svc, seed, logger)
}

// Load validates seed, creates its classes and inserts each student with the
// addresses that reference it. Rejected students are reported, not returned
// as errors.
func Load(ctx context.Context, svc *core.Service, seed Seed, logger core.Logger) (Report, error) {
	if logger == nil {
		logger = discard{}
	}
	if err := seed.Validate(); err != nil {
		return Report{}, err
	}
	var report Report
	for _, c := range seed.Classes {
		if _, err := svc.CreateClass(ctx, c.class()); err != nil {
			return report, fmt.Errorf("create class %d: %w", c.ID, err)
		}
		report.Classes++
	}

	byStudent := make(map[int][]core.Address, len(seed.Students))
	for _, a := range seed.Addresses {
		byStudent[a.StudentID] = append(byStudent[a.StudentID], a.address())
	}
	for _, st := range seed.Students {
		res, err := svc.InsertStudent(ctx, st.student(), byStudent[st.ID])
		if err != nil {
			return report, fmt.Errorf("insert student %d: %w", st.ID, err)
		}
		report.Messages = append(report.Messages, res.Reason)
		if res.OK {
			report.Inserted = append(report.Inserted, st.ID)
			logger.Info("seed student inserted", "student_id", st.ID)
			continue
		}
		report.Rejected = append(report.Rejected, Rejection{StudentID: st.ID, Reason: res.Reason})
		logger.Warn("seed student rejected", "student_id", st.ID, "reason", res.Reason)
	}
	logger.Info("seed loaded", "classes", report.Classes, "inserted", len(report.Inserted), "rejected", len(report.Rejected))
	return report, nil
}

type discard struct{}

func (discard) Debug(string, ...any) {}
func (discard) Info(string, ...any)  {}
func (discard) Warn(string, ...any)  {}
func (discard) Error(string, ...any) {}
