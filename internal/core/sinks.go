package core

import (
	"context"
	"errors"
	"fmt"
	"slices"
)

// RosterSink receives the evaluated roster in rank order.
type RosterSink interface {
	Name() string
	Publish(ctx context.Context, roster []StudentRecord) error
}

// Roster returns every student record in rank order. Unranked students follow
// ranked ones in insertion order.
func (s *Service) Roster(ctx context.Context) ([]StudentRecord, error) {
	var records []StudentRecord
	err := s.run(ctx, "roster", func(ctx context.Context) error {
		var err error
		if records, err = s.ListStudents(ctx); err != nil {
			return err
		}
		slices.SortStableFunc(records, StudentOrdering["rank"])
		return nil
	})
	return records, err
}

// PublishRoster hands the current roster to every sink. Every sink is attempted
// and failures are joined.
func (s *Service) PublishRoster(ctx context.Context, sinks ...RosterSink) error {
	return s.run(ctx, "publish_roster", func(ctx context.Context) error {
		roster, err := s.Roster(ctx)
		if err != nil {
			return err
		}
		var errs []error
		for _, sink := range sinks {
			if err := sink.Publish(ctx, roster); err != nil {
				errs = append(errs, fmt.Errorf("publish roster to %s: %w", sink.Name(), err))
				continue
			}
			s.logger.Info("roster published", "sink", sink.Name(), "students", len(roster))
		}
		return errors.Join(errs...)
	})
}
