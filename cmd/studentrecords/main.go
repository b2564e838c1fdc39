// Command studentrecords loads a seed data set, evaluates it and walks through
// the query, pagination and delete operations, printing each result. The
// evaluated roster is then published to every configured sink.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"studentrecords/internal/adapters/export"
	"studentrecords/internal/blob"
	"studentrecords/internal/config"
	"studentrecords/internal/core"
	leaderboard "studentrecords/internal/infra/leaderboard/redis"
	pgreport "studentrecords/internal/infra/report/postgres"
	sqlitereport "studentrecords/internal/infra/report/sqlite"
)

var exitFunc = os.Exit

func main() {
	code := cli(os.Args[1:], os.Stdout, os.Stderr)
	exitFunc(code)
}

func cli(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("studentrecords", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var envFile, seedFile string
	fs.StringVar(&envFile, "env", "", "optional .env file to load before reading the environment")
	fs.StringVar(&seedFile, "seed", "", "JSON seed file (defaults to the built-in sample data)")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	var envFiles []string
	if envFile != "" {
		envFiles = append(envFiles, envFile)
	}
	cfg, err := config.Load(envFiles...)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "configuration error: %v\n", err)
		return 1
	}
	if seedFile != "" {
		cfg.SeedFile = seedFile
	}
	logger, err := newLogger(cfg, stderr)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "configuration error: %v\n", err)
		return 1
	}
	if err := run(context.Background(), cfg, logger, stdout, stderr); err != nil {
		logger.Error("studentrecords failed", "error", err)
		return 1
	}
	return 0
}

func newLogger(cfg config.Config, w io.Writer) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		return nil, fmt.Errorf("log level %q: %w", cfg.LogLevel, err)
	}
	opts := &slog.HandlerOptions{Level: level}
	switch strings.ToLower(cfg.LogFormat) {
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	case "", "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("unknown log format %q", cfg.LogFormat)
	}
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger, stdout, stderr io.Writer) (err error) {
	opts := []core.Option{
		core.WithLogger(logger),
		core.WithAuditRecorder(core.LogAuditRecorder{Logger: logger}),
		core.WithAdmissionAgeLimit(cfg.MaxAdmissionAge),
		core.WithPassMark(cfg.PassMark),
	}
	if logger.Enabled(ctx, slog.LevelDebug) {
		opts = append(opts, core.WithTracer(core.NewJSONTracer(stderr)))
	}
	metrics, report, err := newMetrics(cfg)
	if err != nil {
		return err
	}
	if metrics != nil {
		opts = append(opts, core.WithMetricsRecorder(metrics))
	}
	svc := core.NewInMemoryService(nil, opts...)

	sinks, closeSinks, err := openSinks(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := closeSinks(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	if err := runDemo(ctx, svc, cfg.SeedFile, logger, stdout); err != nil {
		return err
	}
	if len(sinks) > 0 {
		if err := svc.PublishRoster(ctx, sinks...); err != nil {
			return err
		}
	}
	if report != nil {
		report(logger)
	}
	return nil
}

// newMetrics returns the configured recorder and a function that logs its
// final state.
func newMetrics(cfg config.Config) (core.MetricsRecorder, func(*slog.Logger), error) {
	switch cfg.Metrics {
	case "", config.MetricsNone:
		return nil, nil, nil
	case config.MetricsExpvar:
		rec := core.NewExpvarMetricsRecorder("")
		return rec, func(l *slog.Logger) {
			for op, stats := range rec.Snapshot().Operations {
				l.Info("operation metrics", "operation", op, "success", stats.Success, "errors", stats.Errors, "total_ms", stats.TotalMS)
			}
		}, nil
	case config.MetricsPrometheus:
		reg := prometheus.NewRegistry()
		rec, err := core.NewPrometheusMetricsRecorder(reg, "studentrecords")
		if err != nil {
			return nil, nil, err
		}
		return rec, func(l *slog.Logger) {
			families, err := reg.Gather()
			if err != nil {
				l.Warn("gather metrics", "error", err)
				return
			}
			for _, mf := range families {
				l.Info("metric family", "name", mf.GetName(), "series", len(mf.GetMetric()))
			}
		}, nil
	default:
		return nil, nil, fmt.Errorf("unknown metrics backend %q", cfg.Metrics)
	}
}

type closer func() error

func openSinks(ctx context.Context, cfg config.Config) ([]core.RosterSink, func() error, error) {
	var (
		sinks   []core.RosterSink
		closers []closer
	)
	closeAll := func() error {
		var errs []error
		for i := len(closers) - 1; i >= 0; i-- {
			errs = append(errs, closers[i]())
		}
		return errors.Join(errs...)
	}
	fail := func(err error) ([]core.RosterSink, func() error, error) {
		_ = closeAll()
		return nil, nil, err
	}

	switch cfg.Report.Driver {
	case "", config.ReportNone:
	case config.ReportSQLite:
		sink, err := sqlitereport.Open(cfg.Report.SQLitePath)
		if err != nil {
			return fail(err)
		}
		sinks = append(sinks, sink)
		closers = append(closers, sink.Close)
	case config.ReportPostgres:
		sink, err := pgreport.Open(ctx, cfg.Report.PostgresDSN)
		if err != nil {
			return fail(err)
		}
		sinks = append(sinks, sink)
		closers = append(closers, sink.Close)
	default:
		return fail(fmt.Errorf("unknown report driver %q", cfg.Report.Driver))
	}

	store, err := blob.Open(ctx, cfg.Blob)
	if err != nil {
		return fail(err)
	}
	if store != nil {
		formats := make([]export.Format, 0, len(cfg.ExportFormats))
		for _, f := range cfg.ExportFormats {
			formats = append(formats, export.Format(f))
		}
		exporter, err := export.New(store, formats)
		if err != nil {
			return fail(err)
		}
		sinks = append(sinks, exporter)
	}

	if cfg.Redis.Addr != "" {
		board, err := leaderboard.Dial(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.Key)
		if err != nil {
			return fail(err)
		}
		sinks = append(sinks, board)
		closers = append(closers, board.Close)
	}
	return sinks, closeAll, nil
}
