package domain

import "time"

// Queue operations. The backend flush endpoint understands exactly these.
const (
	OpUpsert = "upsert"
	OpDelete = "delete"
)

// QueueItem is one locally applied mutation that could not be confirmed by
// the system of record. Items are created when a direct backend write fails
// and destroyed only when the backend acknowledges that specific id.
type QueueItem struct {
	// ID is assigned by the local store on enqueue.
	ID int64

	// OwnerID scopes the item to a shop account.
	OwnerID string

	// Collection is the target collection at the backend.
	Collection Collection

	// Operation is OpUpsert or OpDelete.
	Operation string

	// Key is the primary key value the operation applies to.
	Key string

	// Payload is the record payload for upserts. Nil for deletes.
	Payload map[string]any

	// EnqueuedAt is when the item entered the outbox.
	EnqueuedAt time.Time

	// Attempts counts flush submissions that did not acknowledge this item.
	Attempts int
}

// FlushResult is the backend's verdict on one submitted queue item.
type FlushResult struct {
	ID    int64
	OK    bool
	Error string
}

// FlushStats summarises one outbox drain.
type FlushStats struct {
	Submitted int
	Acked     int
	Failed    int
}
