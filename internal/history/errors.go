package history

import "codeberg.org/mutker/battmon/internal/errors"

const (
	// ErrPersistFailed is a non-fatal I/O failure writing the history
	// file; sampling continues.
	ErrPersistFailed = errors.ErrorCode("history_persist_failed")
	ErrLoadFailed    = errors.ErrorCode("history_load_failed")
)
