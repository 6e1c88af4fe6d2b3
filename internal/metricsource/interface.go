package metricsource

import (
	"context"

	"codeberg.org/mutker/perfwatch/internal/sample"
)

// Source provides point-in-time access to raw OS counters. Reads are
// snapshots; a metric the host does not expose (or that the current
// privilege level hides) degrades to an unavailable reading rather than
// failing the whole snapshot.
type Source interface {
	// ReadSystemMetrics captures the system-wide metric set. Individual
	// subsystem reads may fail or time out; the affected metrics come
	// back unavailable and the rest of the snapshot is still usable.
	ReadSystemMetrics(ctx context.Context) sample.SystemMetrics

	// ListProcesses returns a snapshot of running processes.
	ListProcesses(ctx context.Context) ([]ProcessInfo, error)

	// ReadProcessIO returns per-process I/O throughput in MB/s keyed by
	// process name. Processes without an established counter baseline
	// are absent from the map.
	ReadProcessIO(ctx context.Context) map[string]float64

	// Close releases any OS handles held by the source.
	Close() error
}

// ProcessInfo is one entry from a process snapshot.
type ProcessInfo struct {
	Name        string
	User        string
	CPUPercent  float64
	MemoryBytes uint64
}
