package domain

import "time"

// Snapshot is an append-only marker recording the record counts captured by
// one backup run. The latest snapshot's timestamp is the lower time bound of
// the next incremental pull.
type Snapshot struct {
	// ID is a generated unique identifier.
	ID string

	// OwnerID scopes the snapshot to a shop account.
	OwnerID string

	// CreatedAt is when the snapshot was taken.
	CreatedAt time.Time

	// Counts maps each collection to the number of records captured.
	Counts map[Collection]int

	// Notes is free-form operator text.
	Notes string
}

// Meta entry keys. Meta entries are singleton key-value rows and the single
// source of truth for where the next incremental pull resumes.
const (
	MetaLastBackupAt = "lastBackupAt"
	MetaLastSyncAt   = "lastSyncAt"
)
