package metricsource

import "codeberg.org/mutker/perfwatch/internal/errors"

const (
	// Collection Errors
	ErrProcessSnapshot = errors.ErrorCode("metricsource_process_snapshot_failed")

	// GPU Errors
	ErrGPUInitFailed = errors.ErrorCode("metricsource_gpu_init_failed")
	ErrGPUShutdown   = errors.ErrorCode("metricsource_gpu_shutdown_failed")
)
