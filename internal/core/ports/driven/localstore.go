package driven

import (
	"context"

	"github.com/storefront-labs/shopmirror/internal/core/domain"
)

// RecordStore is the embedded multi-collection store for mirrored records.
// Implementations declare each collection's primary key and secondary
// indexes once; schema upgrades append indexes, never repurpose them.
type RecordStore interface {
	// PutOverwrite blindly upserts records by primary key. Used for
	// collections where the latest poll is always authoritative.
	PutOverwrite(ctx context.Context, collection domain.Collection, records []domain.Record) error

	// PutMerge upserts with field-level, timestamp-gated merge semantics
	// (domain.MergeRecords). Incoming records older than the stored row are
	// silently discarded. Safe for two independent producers writing the
	// same collection out of order.
	PutMerge(ctx context.Context, collection domain.Collection, records []domain.Record) error

	// Get retrieves a record by primary key. domain.ErrNotFound if absent.
	Get(ctx context.Context, collection domain.Collection, key string) (*domain.Record, error)

	// ScanAll returns every record in a collection.
	ScanAll(ctx context.Context, collection domain.Collection) ([]domain.Record, error)

	// ScanByOwner returns records owned by the given account.
	ScanByOwner(ctx context.Context, collection domain.Collection, ownerID string) ([]domain.Record, error)

	// ScanByParent returns child records of the given parent key.
	ScanByParent(ctx context.Context, collection domain.Collection, parentKey string) ([]domain.Record, error)

	// ScanByStatus returns records with the given status.
	ScanByStatus(ctx context.Context, collection domain.Collection, status string) ([]domain.Record, error)

	// ClearByOwner deletes rows owned by ownerID from the given record
	// collections. Outbox, snapshots and meta entries are never touched.
	ClearByOwner(ctx context.Context, ownerID string, collections []domain.Collection) error
}

// OutboxStore persists queued mutations awaiting backend confirmation.
type OutboxStore interface {
	// Enqueue appends an item and assigns its ID.
	Enqueue(ctx context.Context, item *domain.QueueItem) error

	// Pending returns queued items in enqueue order. An empty ownerID
	// returns all items.
	Pending(ctx context.Context, ownerID string) ([]domain.QueueItem, error)

	// Delete removes the items with the given ids.
	Delete(ctx context.Context, ids []int64) error

	// MarkAttempt increments the attempt counter for the given ids.
	MarkAttempt(ctx context.Context, ids []int64) error
}

// SnapshotStore persists backup markers.
type SnapshotStore interface {
	// Save appends a snapshot.
	Save(ctx context.Context, snap domain.Snapshot) error

	// List returns snapshots for an owner, newest first.
	List(ctx context.Context, ownerID string) ([]domain.Snapshot, error)

	// Latest returns the newest snapshot for an owner.
	// domain.ErrNotFound if none exist.
	Latest(ctx context.Context, ownerID string) (*domain.Snapshot, error)
}

// MetaStore persists singleton key-value rows (last sync timestamp, active
// credential index). Entries survive process restarts.
type MetaStore interface {
	// Get retrieves a meta value. domain.ErrNotFound if absent.
	Get(ctx context.Context, key string) (string, error)

	// Set stores or replaces a meta value.
	Set(ctx context.Context, key, value string) error
}

// CredentialStore persists per-account credential lists and usage logs.
type CredentialStore interface {
	// GetSet returns the credential set for an account, including the
	// persisted active index. domain.ErrNoCredentials if the list is empty.
	GetSet(ctx context.Context, accountID string) (*domain.CredentialSet, error)

	// SaveSet stores or replaces the credential list for an account.
	SaveSet(ctx context.Context, set domain.CredentialSet) error

	// SetActiveIndex durably persists the rotation position.
	SetActiveIndex(ctx context.Context, accountID string, index int) error

	// RecordUsage appends a usage entry. Failures are non-fatal to callers.
	RecordUsage(ctx context.Context, entry domain.UsageEntry) error

	// SaveSession stores or updates session aggregates.
	SaveSession(ctx context.Context, session domain.SyncSession) error
}
