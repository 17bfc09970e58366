package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrSyncInProgress indicates a mirror run is already active for the account.
	ErrSyncInProgress = errors.New("sync in progress")

	// ErrNoCredentials indicates the account has no credentials configured.
	ErrNoCredentials = errors.New("no credentials configured")

	// ErrCredentialExhausted indicates every credential in the rotation
	// failed for one call. Fatal for that call; the session is marked failed.
	ErrCredentialExhausted = errors.New("all credentials exhausted")

	// ErrLocalStoreUnavailable indicates the embedded store could not be
	// opened. The system degrades to direct-only mode: no offline capability,
	// but mirroring still works while the backend is reachable.
	ErrLocalStoreUnavailable = errors.New("local store unavailable")

	// ErrBackendUnavailable indicates the system of record is unreachable.
	// Mutations land in the outbox instead of failing.
	ErrBackendUnavailable = errors.New("backend unavailable")

	// ErrFlusherStopped indicates the flush coordinator has been shut down.
	ErrFlusherStopped = errors.New("flusher stopped")
)
