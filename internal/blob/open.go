// Package blob selects the artifact store configured for roster exports.
package blob

import (
	"context"
	"fmt"

	"studentrecords/internal/blob/core"
	"studentrecords/internal/config"
	"studentrecords/internal/infra/blob/fs"
	"studentrecords/internal/infra/blob/memory"
	"studentrecords/internal/infra/blob/s3"
)

// Open builds the store named by cfg.Driver. The "none" driver yields a nil
// store and no error.
func Open(ctx context.Context, cfg config.Blob) (core.Store, error) {
	switch core.Driver(cfg.Driver) {
	case core.DriverMemory:
		return memory.New(), nil
	case core.DriverFilesystem:
		return fs.New(cfg.FSRoot)
	case core.DriverS3:
		return s3.New(ctx, s3.Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
			PathStyle:       cfg.S3PathStyle,
		})
	case "", config.BlobNone:
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown blob driver %q", cfg.Driver)
	}
}
