package model

import "errors"

var (
	// ErrNotFound is returned when a directory entry, ledger entry or local document is not found
	ErrNotFound = errors.New("not found")
	// ErrBadRevision is returned when a revision string cannot be parsed as "<generation>-<token>"
	ErrBadRevision = errors.New("malformed revision")
	// ErrBackendUnavailable is returned when the backend application cannot be reached on a read path
	ErrBackendUnavailable = errors.New("backend unavailable")
	// ErrBackendWriteFailed is returned when the backend application rejects or fails a write batch
	ErrBackendWriteFailed = errors.New("backend write failed")
	// ErrUnauthorized is returned when the backend refuses the passed-through credentials
	ErrUnauthorized = errors.New("unauthorized")
)
