package recorder

import "codeberg.org/mutker/perfwatch/internal/errors"

const (
	// Storage Errors
	ErrOpenLog  = errors.ErrorCode("recorder_open_log_failed")
	ErrWriteRow = errors.ErrRecorderWrite
	ErrCloseLog = errors.ErrorCode("recorder_close_log_failed")

	// Parse Errors
	ErrParseLog      = errors.ErrorCode("recorder_parse_log_failed")
	ErrHeaderMissing = errors.ErrorCode("recorder_header_missing")
)
