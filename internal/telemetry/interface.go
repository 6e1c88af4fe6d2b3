package telemetry

import (
	"context"

	"codeberg.org/mutker/perfwatch/internal/sample"
)

// Collector archives collected samples to durable storage.
type Collector interface {
	Record(ctx context.Context, s sample.Sample) error
	Close() error
}

// Repository defines the storage backend for the archive.
type Repository interface {
	Store(ctx context.Context, s sample.Sample) error
	Close() error
}
