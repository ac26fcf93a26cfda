// Package apperr holds the sentinel errors shared across the engine.
package apperr

import "errors"

var (
	// ErrNotFound reports that a note, folder, or profile does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict reports a concurrent modification (stale order, duplicate move).
	ErrConflict = errors.New("conflict")

	// ErrAlreadyExists reports a name collision on create or rename.
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidPath reports a path outside the notes root or otherwise malformed.
	ErrInvalidPath = errors.New("invalid path")

	// ErrResyncRequired reports that incremental change processing cannot
	// reconcile the cache and a full reload is needed. It is a signal, not a
	// failure: callers fall back to Load.
	ErrResyncRequired = errors.New("resync required")
)
