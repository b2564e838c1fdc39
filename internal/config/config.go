// Package config reads runtime settings from the environment, optionally
// seeded from a .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const envPrefix = "STUDENTRECORDS_"

// Report sink drivers.
const (
	ReportNone     = "none"
	ReportSQLite   = "sqlite"
	ReportPostgres = "postgres"
)

// Metrics backends.
const (
	MetricsNone       = "none"
	MetricsExpvar     = "expvar"
	MetricsPrometheus = "prometheus"
)

// BlobNone disables artifact export.
const BlobNone = "none"

// Config is the resolved runtime configuration.
type Config struct {
	LogLevel        string
	LogFormat       string
	MaxAdmissionAge int
	PassMark        int
	SeedFile        string
	Metrics         string
	Report          Report
	Blob            Blob
	ExportFormats   []string
	Redis           Redis
}

// Report selects the SQL roster sink.
type Report struct {
	Driver      string
	SQLitePath  string
	PostgresDSN string
}

// Blob selects the artifact store used by exports.
type Blob struct {
	Driver            string
	FSRoot            string
	S3Bucket          string
	S3Region          string
	S3Endpoint        string
	S3AccessKeyID     string
	S3SecretAccessKey string
	S3PathStyle       bool
}

// Redis configures the leaderboard sink. An empty Addr disables it.
type Redis struct {
	Addr     string
	Password string
	DB       int
	Key      string
}

// Default returns the configuration used when no variables are set.
func Default() Config {
	return Config{
		LogLevel:        "info",
		LogFormat:       "text",
		MaxAdmissionAge: 20,
		PassMark:        50,
		Metrics:         MetricsNone,
		Report:          Report{Driver: ReportNone, SQLitePath: "studentrecords.db"},
		Blob:            Blob{Driver: BlobNone, FSRoot: "./exports", S3Region: "us-east-1"},
		ExportFormats:   []string{"json", "csv", "xlsx"},
		Redis:           Redis{Key: "studentrecords:leaderboard"},
	}
}

// Load reads .env files (".env" when none are named) without overriding
// variables already set, then resolves the environment.
func Load(envFiles ...string) (Config, error) {
	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load env file: %w", err)
	}
	return FromEnv(os.LookupEnv)
}

// FromEnv resolves configuration through lookup.
func FromEnv(lookup func(string) (string, bool)) (Config, error) {
	cfg := Default()
	r := reader{lookup: lookup}

	r.str("LOG_LEVEL", &cfg.LogLevel)
	r.str("LOG_FORMAT", &cfg.LogFormat)
	r.integer("MAX_ADMISSION_AGE", &cfg.MaxAdmissionAge)
	r.integer("PASS_MARK", &cfg.PassMark)
	r.str("SEED_FILE", &cfg.SeedFile)
	r.str("METRICS", &cfg.Metrics)

	r.str("REPORT_DRIVER", &cfg.Report.Driver)
	r.str("SQLITE_PATH", &cfg.Report.SQLitePath)
	r.str("POSTGRES_DSN", &cfg.Report.PostgresDSN)

	r.str("BLOB_DRIVER", &cfg.Blob.Driver)
	r.str("BLOB_FS_ROOT", &cfg.Blob.FSRoot)
	r.str("BLOB_S3_BUCKET", &cfg.Blob.S3Bucket)
	r.str("BLOB_S3_REGION", &cfg.Blob.S3Region)
	r.str("BLOB_S3_ENDPOINT", &cfg.Blob.S3Endpoint)
	r.str("BLOB_S3_ACCESS_KEY_ID", &cfg.Blob.S3AccessKeyID)
	r.str("BLOB_S3_SECRET_ACCESS_KEY", &cfg.Blob.S3SecretAccessKey)
	r.boolean("BLOB_S3_PATH_STYLE", &cfg.Blob.S3PathStyle)

	if raw, ok := r.get("EXPORT_FORMATS"); ok {
		cfg.ExportFormats = splitList(raw)
	}

	r.str("REDIS_ADDR", &cfg.Redis.Addr)
	r.str("REDIS_PASSWORD", &cfg.Redis.Password)
	r.integer("REDIS_DB", &cfg.Redis.DB)
	r.str("REDIS_KEY", &cfg.Redis.Key)

	if err := errors.Join(r.errs...); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

// Validate checks driver names and their required companions.
func (c Config) Validate() error {
	var errs []error
	if c.MaxAdmissionAge < 0 {
		errs = append(errs, fmt.Errorf("%sMAX_ADMISSION_AGE must not be negative", envPrefix))
	}
	switch c.Metrics {
	case MetricsNone, MetricsExpvar, MetricsPrometheus:
	default:
		errs = append(errs, fmt.Errorf("unknown metrics backend %q", c.Metrics))
	}
	switch c.Report.Driver {
	case ReportNone, ReportSQLite:
	case ReportPostgres:
		if c.Report.PostgresDSN == "" {
			errs = append(errs, fmt.Errorf("%sPOSTGRES_DSN required for postgres report driver", envPrefix))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown report driver %q", c.Report.Driver))
	}
	switch c.Blob.Driver {
	case BlobNone, "memory", "fs":
	case "s3":
		if c.Blob.S3Bucket == "" {
			errs = append(errs, fmt.Errorf("%sBLOB_S3_BUCKET required for s3 blob driver", envPrefix))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown blob driver %q", c.Blob.Driver))
	}
	for _, format := range c.ExportFormats {
		switch format {
		case "json", "csv", "xlsx":
		default:
			errs = append(errs, fmt.Errorf("unknown export format %q", format))
		}
	}
	return errors.Join(errs...)
}

type reader struct {
	lookup func(string) (string, bool)
	errs   []error
}

func (r *reader) get(name string) (string, bool) {
	v, ok := r.lookup(envPrefix + name)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

func (r *reader) str(name string, dst *string) {
	if v, ok := r.get(name); ok {
		*dst = v
	}
}

func (r *reader) integer(name string, dst *int) {
	v, ok := r.get(name)
	if !ok {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s%s: %w", envPrefix, name, err))
		return
	}
	*dst = n
}

func (r *reader) boolean(name string, dst *bool) {
	v, ok := r.get(name)
	if !ok {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s%s: %w", envPrefix, name, err))
		return
	}
	*dst = b
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.ToLower(strings.TrimSpace(part)); part != "" {
			out = append(out, part)
		}
	}
	return out
}
