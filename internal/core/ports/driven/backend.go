package driven

import (
	"context"
	"time"

	"github.com/storefront-labs/shopmirror/internal/core/domain"
)

// Backend is the system of record: the authoritative remote store the local
// replica eventually reconciles against.
type Backend interface {
	// UpsertRecords writes records by primary key.
	UpsertRecords(ctx context.Context, collection domain.Collection, records []domain.Record) error

	// FetchSince returns records for an owner modified at or after since.
	// Used for the initial and periodic incremental pull.
	FetchSince(ctx context.Context, collection domain.Collection, ownerID string, since time.Time) ([]domain.Record, error)

	// FlushBatch submits queued mutations in one batch and returns a
	// per-item verdict. Callers must remove only acknowledged items.
	FlushBatch(ctx context.Context, items []domain.QueueItem) ([]domain.FlushResult, error)

	// Ping reports whether the backend is currently reachable.
	Ping(ctx context.Context) error
}
