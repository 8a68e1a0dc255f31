package dao

import "errors"

// Common, reusable DAO errors.  Using sentinel variables allows callers to
// reliably detect error conditions via errors.Is/As instead of brittle string
// comparisons.

var (
	// ErrNotFound is returned when the requested entity does not exist in the
	// underlying storage.
	ErrNotFound = errors.New("dao: not found")

	// ErrInvalidID indicates that the supplied ID/key is empty or otherwise
	// invalid.
	ErrInvalidID = errors.New("dao: invalid id")

	// ErrNilEntity is returned when the caller attempts to persist a nil
	// pointer.
	ErrNilEntity = errors.New("dao: nil entity")

	// ErrConflict is returned when an atomic claim is lost to a concurrent
	// claimant - the record has already moved out of the expected status.
	// Callers treat it as a no-op, not a failure.
	ErrConflict = errors.New("dao: claim conflict")

	// ErrInvalidPayload is returned when a record misses required fields at
	// creation time. Such records are rejected synchronously, never persisted.
	ErrInvalidPayload = errors.New("dao: invalid payload")

	// ErrPermissionDenied is returned when the backing storage is not
	// writable.
	ErrPermissionDenied = errors.New("dao: permission denied")

	// ErrMalformedRecord indicates a persisted record whose header block
	// failed schema validation. Such records are left untouched on disk.
	ErrMalformedRecord = errors.New("dao: malformed record")
)
