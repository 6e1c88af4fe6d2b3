package sampler

import "codeberg.org/mutker/perfwatch/internal/errors"

const (
	// Configuration Errors
	ErrInvalidInterval = errors.ErrInvalidInterval
	ErrInvalidDuration = errors.ErrInvalidDuration
	ErrInvalidTopCount = errors.ErrInvalidTopCount

	// Operation Errors
	ErrNotIdle = errors.ErrorCode("sampler_not_idle")
)
