package core_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"studentrecords/internal/core"
)

type captureSink struct {
	name    string
	err     error
	rosters [][]core.StudentRecord
}

func (s *captureSink) Name() string { return s.name }

func (s *captureSink) Publish(_ context.Context, roster []core.StudentRecord) error {
	s.rosters = append(s.rosters, roster)
	return s.err
}

func TestPublishRosterDeliversRankOrder(t *testing.T) {
	svc := newFilterService(t)
	sink := &captureSink{name: "capture"}
	if err := svc.PublishRoster(context.Background(), sink); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if len(sink.rosters) != 1 {
		t.Fatalf("expected one publish, got %d", len(sink.rosters))
	}
	if ids := recordIDs(sink.rosters[0]); !sameIDs(ids, []int{1, 3, 2, 6, 7}) {
		t.Fatalf("unexpected roster order %v", ids)
	}
}

func TestPublishRosterJoinsSinkFailures(t *testing.T) {
	svc := newFilterService(t)
	boom := errors.New("boom")
	failing := &captureSink{name: "failing", err: boom}
	healthy := &captureSink{name: "healthy"}

	err := svc.PublishRoster(context.Background(), failing, healthy)
	if !errors.Is(err, boom) {
		t.Fatalf("expected joined sink error, got %v", err)
	}
	if !strings.Contains(err.Error(), "publish roster to failing") {
		t.Fatalf("expected sink name in error, got %v", err)
	}
	if len(healthy.rosters) != 1 {
		t.Fatalf("healthy sink should still receive the roster")
	}
}
