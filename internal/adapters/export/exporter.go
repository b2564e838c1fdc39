// Package export renders the evaluated roster into downloadable artifacts
// (JSON, CSV, XLSX) and stores them in a blob store.
package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	blob "studentrecords/internal/blob/core"
	"studentrecords/internal/core"
)

// Format names an artifact encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// SheetName is the worksheet holding the roster in XLSX exports.
const SheetName = "Roster"

var contentTypes = map[Format]string{
	FormatJSON: "application/json",
	FormatCSV:  "text/csv",
	FormatXLSX: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
}

// Columns is the header row of tabular exports.
var Columns = []string{"id", "name", "class", "marks", "gender", "age", "status", "rank", "addresses"}

// Artifact describes one stored export.
type Artifact struct {
	ID          string    `json:"id"`
	Key         string    `json:"key"`
	Format      Format    `json:"format"`
	ContentType string    `json:"content_type"`
	SizeBytes   int64     `json:"size_bytes"`
	Students    int       `json:"students"`
	CreatedAt   time.Time `json:"created_at"`
}

// Exporter is a core.RosterSink writing one artifact per configured format.
type Exporter struct {
	store   blob.Store
	formats []Format
	prefix  string
	newID   func() string
	now     func() time.Time
}

// Option customizes an Exporter.
type Option func(*Exporter)

// WithPrefix sets the key prefix (default "rosters").
func WithPrefix(prefix string) Option {
	return func(e *Exporter) { e.prefix = strings.Trim(prefix, "/") }
}

// WithIDGenerator overrides artifact id generation.
func WithIDGenerator(fn func() string) Option {
	return func(e *Exporter) {
		if fn != nil {
			e.newID = fn
		}
	}
}

// WithClock overrides artifact timestamps.
func WithClock(fn func() time.Time) Option {
	return func(e *Exporter) {
		if fn != nil {
			e.now = fn
		}
	}
}

// New builds an exporter. Unknown formats are rejected; duplicates collapse.
func New(store blob.Store, formats []Format, opts ...Option) (*Exporter, error) {
	if store == nil {
		return nil, errors.New("export: blob store required")
	}
	if len(formats) == 0 {
		formats = []Format{FormatJSON, FormatCSV, FormatXLSX}
	}
	seen := make(map[Format]struct{}, len(formats))
	unique := make([]Format, 0, len(formats))
	for _, f := range formats {
		if _, ok := contentTypes[f]; !ok {
			return nil, fmt.Errorf("export: unsupported format %q", f)
		}
		if _, dup := seen[f]; dup {
			continue
		}
		seen[f] = struct{}{}
		unique = append(unique, f)
	}
	e := &Exporter{
		store:   store,
		formats: unique,
		prefix:  "rosters",
		newID:   uuid.NewString,
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Name implements core.RosterSink.
func (e *Exporter) Name() string { return "export" }

// Publish implements core.RosterSink.
func (e *Exporter) Publish(ctx context.Context, roster []core.StudentRecord) error {
	_, err := e.Export(ctx, roster)
	return err
}

// Export renders and stores roster in every configured format.
func (e *Exporter) Export(ctx context.Context, roster []core.StudentRecord) ([]Artifact, error) {
	artifacts := make([]Artifact, 0, len(e.formats))
	for _, format := range e.formats {
		payload, err := Render(format, roster)
		if err != nil {
			return artifacts, err
		}
		id := e.newID()
		key := fmt.Sprintf("%s/%s.%s", e.prefix, id, format)
		info, err := e.store.Put(ctx, key, bytes.NewReader(payload), blob.PutOptions{
			ContentType: contentTypes[format],
			Metadata:    map[string]string{"format": string(format), "students": strconv.Itoa(len(roster))},
		})
		if err != nil {
			return artifacts, fmt.Errorf("store %s export: %w", format, err)
		}
		artifacts = append(artifacts, Artifact{
			ID:          id,
			Key:         info.Key,
			Format:      format,
			ContentType: contentTypes[format],
			SizeBytes:   int64(len(payload)),
			Students:    len(roster),
			CreatedAt:   e.now(),
		})
	}
	return artifacts, nil
}

// Render encodes roster in format.
func Render(format Format, roster []core.StudentRecord) ([]byte, error) {
	switch format {
	case FormatJSON:
		payload, err := json.Marshal(roster)
		if err != nil {
			return nil, fmt.Errorf("marshal json: %w", err)
		}
		return payload, nil
	case FormatCSV:
		return renderCSV(roster)
	case FormatXLSX:
		return renderXLSX(roster)
	default:
		return nil, fmt.Errorf("unsupported export format %s", format)
	}
}

func renderCSV(roster []core.StudentRecord) ([]byte, error) {
	buf := &bytes.Buffer{}
	w := csv.NewWriter(buf)
	if err := w.Write(Columns); err != nil {
		return nil, err
	}
	for _, r := range roster {
		if err := w.Write(row(r)); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func renderXLSX(roster []core.StudentRecord) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()
	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return nil, err
	}
	if err := writeSheetRow(f, 1, Columns); err != nil {
		return nil, err
	}
	for i, r := range roster {
		if err := writeSheetRow(f, i+2, row(r)); err != nil {
			return nil, err
		}
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write xlsx: %w", err)
	}
	return buf.Bytes(), nil
}

func writeSheetRow(f *excelize.File, rowNum int, values []string) error {
	cell, err := excelize.CoordinatesToCellName(1, rowNum)
	if err != nil {
		return err
	}
	cells := make([]any, len(values))
	for i, v := range values {
		cells[i] = v
	}
	return f.SetSheetRow(SheetName, cell, &cells)
}

func row(r core.StudentRecord) []string {
	rank := ""
	if v, ok := r.RankValue(); ok {
		rank = strconv.Itoa(v)
	}
	addresses := make([]string, 0, len(r.Addresses))
	for _, a := range r.Addresses {
		addresses = append(addresses, a.PinCode+" "+a.City)
	}
	return []string{
		strconv.Itoa(r.ID),
		r.Name,
		r.ClassName,
		strconv.Itoa(r.Marks),
		r.Gender,
		strconv.Itoa(r.Age),
		string(r.Status),
		rank,
		strings.Join(addresses, "; "),
	}
}
