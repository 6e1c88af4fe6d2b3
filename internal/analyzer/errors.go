package analyzer

import "codeberg.org/mutker/perfwatch/internal/errors"

const (
	// Input Errors
	ErrEmptySeries = errors.ErrEmptySeries
)
