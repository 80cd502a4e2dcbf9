package repository

import "errors"

// Sentinel errors shared by every backend so services never depend on
// driver-specific errors.
var (
	// ErrNotFound reports a missing record.
	ErrNotFound = errors.New("record not found")
	// ErrVersionConflict reports an optimistic-concurrency failure: the
	// record's version moved between read and write.
	ErrVersionConflict = errors.New("version conflict")
	// ErrDuplicate reports a uniqueness violation.
	ErrDuplicate = errors.New("duplicate record")
)
