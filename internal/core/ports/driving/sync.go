package driving

import "context"

// MirrorOrchestrator coordinates one full mirror run for a shop account:
// collect, extract, diff, merge locally and write through to the backend.
type MirrorOrchestrator interface {
	// Mirror runs the pipeline for one account. wanted caps the number of
	// top-level items collected; zero means no cap.
	Mirror(ctx context.Context, accountID string, wanted int) error

	// Status returns the mirror status for an account.
	Status(ctx context.Context, accountID string) (*MirrorStatus, error)

	// Hydrate pulls records modified since the last sync from the system of
	// record into the local replica.
	Hydrate(ctx context.Context, accountID string) error
}

// MirrorStatus represents the current state of a mirror run.
type MirrorStatus struct {
	// AccountID identifies the account.
	AccountID string

	// Running indicates if a run is currently in progress.
	Running bool

	// ItemsCollected is the count of upstream items fetched so far.
	ItemsCollected int

	// RecordsWritten is the count of records written locally.
	RecordsWritten int

	// Queued is the count of mutations routed to the outbox.
	Queued int

	// ErrorCount is the number of absorbed errors.
	ErrorCount int
}
