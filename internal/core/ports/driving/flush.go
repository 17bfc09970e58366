package driving

import (
	"context"
	"time"

	"github.com/storefront-labs/shopmirror/internal/core/domain"
)

// Reachability is the externally observed state of the system of record.
type Reachability string

const (
	// ReachabilityChecking means no probe has completed yet.
	ReachabilityChecking Reachability = "checking"

	// ReachabilityHealthy means the last probe succeeded.
	ReachabilityHealthy Reachability = "healthy"

	// ReachabilityOffline means the last probe failed.
	ReachabilityOffline Reachability = "offline"
)

// FlushCoordinator owns the outbox drain loop. Automatic flushes run only
// while the backend is healthy; manual flushes are always allowed and may
// simply fail, leaving items queued.
type FlushCoordinator interface {
	// Enqueue appends a mutation to the outbox.
	Enqueue(ctx context.Context, item *domain.QueueItem) error

	// Flush drains the outbox now. A flush already in flight is joined
	// rather than duplicated. Returns how many items were acknowledged.
	Flush(ctx context.Context) (domain.FlushStats, error)

	// RequestFlush schedules a debounced flush. Repeated requests within
	// the window coalesce into one batch.
	RequestFlush(after time.Duration)

	// Reachability returns the current backend reachability state.
	Reachability() Reachability
}
