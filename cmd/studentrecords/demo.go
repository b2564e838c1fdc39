package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"studentrecords/internal/bootstrap"
	"studentrecords/internal/core"
	"studentrecords/pkg/pagination"
)

func runDemo(ctx context.Context, svc *core.Service, seedFile string, logger *slog.Logger, out io.Writer) error {
	p := &printer{w: out}

	if seedFile == "" {
		p.line("=== Loading sample data (age > 20 will be rejected) ===")
	} else {
		p.line("=== Loading seed file " + seedFile + " ===")
	}
	report, err := loadSeed(ctx, svc, seedFile, logger)
	if err != nil {
		return err
	}
	for _, msg := range report.Messages {
		p.line(msg)
	}

	p.line("")
	p.line("=== Evaluate pass/fail and ranks ===")
	if _, err := svc.EvaluateAll(ctx); err != nil {
		return err
	}
	all, err := svc.ListStudents(ctx)
	if err != nil {
		return err
	}
	p.line("All students (post validation):")
	p.records(all)
	p.line("")

	queries := []struct {
		title string
		fn    func(context.Context) ([]core.StudentRecord, error)
	}{
		{"== Find students by pincode=482002 ==", func(ctx context.Context) ([]core.StudentRecord, error) { return svc.FindByPincode(ctx, "482002") }},
		{"== Find students by city=indore, filter gender=F ==", func(ctx context.Context) ([]core.StudentRecord, error) { return svc.FindByCity(ctx, "indore", "F") }},
		{"== Passed students (no filters) ==", svc.PassedStudents},
		{"== Failed students (filters: gender=F) ==", func(ctx context.Context) ([]core.StudentRecord, error) { return svc.FailedStudents(ctx, "F") }},
	}
	for _, q := range queries {
		records, err := q.fn(ctx)
		if err != nil {
			return err
		}
		p.line(q.title)
		p.records(records)
		p.line("")
	}

	p.line("== Pagination examples ==")
	female, err := svc.FindStudents(ctx, core.StudentFilter{Gender: "F"})
	if err != nil {
		return err
	}
	pages := []struct {
		label     string
		key       string
		ascending bool
	}{
		{"default order", "", true},
		{"ordered by name", "name", true},
		{"ordered by marks desc", "marks", false},
	}
	for _, pg := range pages {
		page, err := core.StudentOrdering.Paginate(female, pagination.Bound(1), pagination.Bound(2), pg.key, pg.ascending)
		if err != nil {
			return err
		}
		p.line(fmt.Sprintf("Female students records 1-2 (%s): %s", pg.label, ids(page)))
	}

	p.line("")
	p.line("== Delete student with id=1 ==")
	res, err := svc.DeleteStudent(ctx, 1)
	if err != nil {
		return err
	}
	p.line(res.Reason)
	if _, err := svc.EvaluateAll(ctx); err != nil {
		return err
	}
	classes, err := svc.ListClasses(ctx)
	if err != nil {
		return err
	}
	names := make([]string, 0, len(classes))
	for _, c := range classes {
		names = append(names, c.Name)
	}
	remaining, err := svc.ListStudents(ctx)
	if err != nil {
		return err
	}
	p.line("Classes after deletion: [" + strings.Join(names, ", ") + "]")
	p.line("Students after deletion: " + ids(remaining))
	return p.err
}

func loadSeed(ctx context.Context, svc *core.Service, seedFile string, logger *slog.Logger) (bootstrap.Report, error) {
	if seedFile == "" {
		return bootstrap.LoadSample(ctx, svc, logger)
	}
	return bootstrap.LoadFile(ctx, svc, seedFile, logger)
}

// printer keeps the first write error so the demo can report it once.
type printer struct {
	w   io.Writer
	err error
}

func (p *printer) line(s string) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintln(p.w, s)
}

func (p *printer) records(records []core.StudentRecord) {
	for _, r := range records {
		p.line(formatRecord(r))
	}
}

func formatRecord(r core.StudentRecord) string {
	rank := "-"
	if v, ok := r.RankValue(); ok {
		rank = strconv.Itoa(v)
	}
	addrs := make([]string, 0, len(r.Addresses))
	for _, a := range r.Addresses {
		addrs = append(addrs, fmt.Sprintf("{pin=%s, city=%s}", a.PinCode, a.City))
	}
	return fmt.Sprintf("{id=%d, name='%s', class='%s', marks=%d, gender='%s', age=%d, status=%s, rank=%s, addresses=[%s]}",
		r.ID, r.Name, r.ClassName, r.Marks, r.Gender, r.Age, r.Status, rank, strings.Join(addrs, ", "))
}

func ids(records []core.StudentRecord) string {
	parts := make([]string, 0, len(records))
	for _, r := range records {
		parts = append(parts, strconv.Itoa(r.ID))
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
