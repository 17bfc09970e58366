package services

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/storefront-labs/shopmirror/internal/core/domain"
	"github.com/storefront-labs/shopmirror/internal/core/ports/driven"
	"github.com/storefront-labs/shopmirror/internal/core/ports/driving"
	"github.com/storefront-labs/shopmirror/internal/logger"
	"github.com/storefront-labs/shopmirror/internal/metrics"
)

// Ensure Flusher implements the interface.
var _ driving.FlushCoordinator = (*Flusher)(nil)

const (
	// DefaultDebounce coalesces a burst of local edits into one batch.
	DefaultDebounce = 500 * time.Millisecond

	// DefaultPingInterval is the reachability probe cadence while healthy.
	DefaultPingInterval = 15 * time.Second

	// maxPingInterval caps probe backoff while offline.
	maxPingInterval = 2 * time.Minute
)

// flushOp is the single-slot in-flight handle. A flush requested while one
// is running attaches to the same op instead of starting a duplicate
// submission.
type flushOp struct {
	done  chan struct{}
	stats domain.FlushStats
	err   error
}

// Flusher drains the outbox: pending mutations are batched, submitted to the
// backend, and only acknowledged entries are deleted. Failed entries remain
// queued with payload and attempt count untouched. Automatic flushes fire
// only while the backend is healthy; manual Flush calls are always allowed.
type Flusher struct {
	outbox  driven.OutboxStore
	backend driven.Backend
	ownerID string

	debounce     time.Duration
	pingInterval time.Duration

	mu       sync.Mutex
	inflight *flushOp
	timer    *time.Timer
	state    driving.Reachability
	stopped  bool

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// FlusherOption configures a Flusher.
type FlusherOption func(*Flusher)

// WithDebounce overrides the flush debounce window.
func WithDebounce(d time.Duration) FlusherOption {
	return func(f *Flusher) { f.debounce = d }
}

// WithPingInterval overrides the reachability probe cadence.
func WithPingInterval(d time.Duration) FlusherOption {
	return func(f *Flusher) { f.pingInterval = d }
}

// WithOwnerScope restricts draining to one account's queue items.
func WithOwnerScope(ownerID string) FlusherOption {
	return func(f *Flusher) { f.ownerID = ownerID }
}

// NewFlusher creates a flush coordinator. Call Start to begin reachability
// monitoring and Stop to shut it down.
func NewFlusher(outbox driven.OutboxStore, backend driven.Backend, opts ...FlusherOption) *Flusher {
	f := &Flusher{
		outbox:       outbox,
		backend:      backend,
		debounce:     DefaultDebounce,
		pingInterval: DefaultPingInterval,
		state:        driving.ReachabilityChecking,
		stopCh:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Enqueue appends a mutation to the outbox and, if the backend is currently
// healthy, schedules a debounced flush so the item does not linger.
func (f *Flusher) Enqueue(ctx context.Context, item *domain.QueueItem) error {
	if item.EnqueuedAt.IsZero() {
		item.EnqueuedAt = time.Now().UTC()
	}
	if err := f.outbox.Enqueue(ctx, item); err != nil {
		return fmt.Errorf("enqueue: %w", err)
	}
	logger.Debug("Queued %s %s/%s as item %d", item.Operation, item.Collection, item.Key, item.ID)

	if f.Reachability() == driving.ReachabilityHealthy {
		f.RequestFlush(f.debounce)
	}
	return nil
}

// Flush drains the outbox now. If a flush is already in flight, this call
// attaches to it and returns its result rather than submitting a second
// batch.
func (f *Flusher) Flush(ctx context.Context) (domain.FlushStats, error) {
	f.mu.Lock()
	if f.stopped {
		f.mu.Unlock()
		return domain.FlushStats{}, domain.ErrFlusherStopped
	}
	if op := f.inflight; op != nil {
		f.mu.Unlock()
		select {
		case <-op.done:
			return op.stats, op.err
		case <-ctx.Done():
			return domain.FlushStats{}, ctx.Err()
		}
	}
	op := &flushOp{done: make(chan struct{})}
	f.inflight = op
	f.mu.Unlock()

	op.stats, op.err = f.drain(ctx)

	f.mu.Lock()
	f.inflight = nil
	f.mu.Unlock()
	close(op.done)

	return op.stats, op.err
}

// drain performs one batch submission.
func (f *Flusher) drain(ctx context.Context) (domain.FlushStats, error) {
	var stats domain.FlushStats

	if f.backend == nil {
		return stats, domain.ErrBackendUnavailable
	}

	pending, err := f.outbox.Pending(ctx, f.ownerID)
	if err != nil {
		return stats, fmt.Errorf("read outbox: %w", err)
	}
	if len(pending) == 0 {
		metrics.OutboxBacklog.Set(0)
		return stats, nil
	}
	stats.Submitted = len(pending)

	started := time.Now()
	results, err := f.backend.FlushBatch(ctx, pending)
	metrics.FlushDuration.Observe(time.Since(started).Seconds())
	if err != nil {
		metrics.FlushBatches.WithLabelValues("failed").Inc()
		f.setState(driving.ReachabilityOffline)
		return stats, fmt.Errorf("flush batch: %w", err)
	}

	acked := make([]int64, 0, len(results))
	for _, res := range results {
		if res.OK {
			acked = append(acked, res.ID)
		} else if res.Error != "" {
			logger.Debug("Item %d rejected: %s", res.ID, res.Error)
		}
	}
	stats.Acked = len(acked)
	stats.Failed = stats.Submitted - stats.Acked

	if len(acked) > 0 {
		if err := f.outbox.Delete(ctx, acked); err != nil {
			return stats, fmt.Errorf("delete acknowledged: %w", err)
		}
	}

	outcome := "full"
	if stats.Failed > 0 {
		outcome = "partial"
	}
	metrics.FlushBatches.WithLabelValues(outcome).Inc()
	metrics.OutboxBacklog.Set(float64(stats.Failed))
	logger.Info("Flushed outbox: %d/%d synced", stats.Acked, stats.Submitted)
	return stats, nil
}

// RequestFlush schedules a debounced automatic flush. Requests arriving
// while one is already scheduled coalesce into that single batch. The
// scheduled flush only fires while the backend is healthy.
func (f *Flusher) RequestFlush(after time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.stopped || f.timer != nil {
		return
	}
	f.timer = time.AfterFunc(after, func() {
		f.mu.Lock()
		f.timer = nil
		state := f.state
		f.mu.Unlock()

		if state != driving.ReachabilityHealthy {
			return
		}
		if _, err := f.Flush(context.Background()); err != nil {
			logger.Warn("Scheduled flush failed: %v", err)
		}
	})
}

// Reachability returns the current backend reachability state.
func (f *Flusher) Reachability() driving.Reachability {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *Flusher) setState(state driving.Reachability) {
	f.mu.Lock()
	prev := f.state
	f.state = state
	f.mu.Unlock()

	if state == driving.ReachabilityHealthy {
		metrics.BackendHealthy.Set(1)
	} else {
		metrics.BackendHealthy.Set(0)
	}
	if prev != state {
		logger.Info("Backend reachability: %s -> %s", prev, state)
	}
	// Backend reachable, whether for the first time or again after an
	// outage: drain whatever queued up in the meantime.
	if prev != driving.ReachabilityHealthy && state == driving.ReachabilityHealthy {
		f.RequestFlush(0)
	}
}

// Start begins the periodic reachability probe. Probe cadence backs off
// with jitter while the backend stays offline.
func (f *Flusher) Start(ctx context.Context) {
	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		interval := f.pingInterval
		for {
			f.probe(ctx)
			if f.Reachability() == driving.ReachabilityHealthy {
				interval = f.pingInterval
				f.drainBacklog(ctx)
			} else {
				interval = nextBackoff(interval)
			}
			select {
			case <-ctx.Done():
				return
			case <-f.stopCh:
				return
			case <-time.After(interval):
			}
		}
	}()
}

// Stop shuts down the coordinator. Pending debounced flushes are cancelled;
// queued items stay in the outbox for the next process.
func (f *Flusher) Stop() {
	f.mu.Lock()
	if f.stopped {
		f.mu.Unlock()
		return
	}
	f.stopped = true
	if f.timer != nil {
		f.timer.Stop()
		f.timer = nil
	}
	f.mu.Unlock()

	close(f.stopCh)
	f.wg.Wait()
}

// drainBacklog schedules a flush when items are waiting. This is the
// periodic trigger: a backlog inherited from a previous process has no
// Enqueue call to schedule its drain, so each healthy probe tick checks.
func (f *Flusher) drainBacklog(ctx context.Context) {
	pending, err := f.outbox.Pending(ctx, f.ownerID)
	if err != nil {
		logger.Debug("Backlog check failed: %v", err)
		return
	}
	if len(pending) > 0 {
		f.RequestFlush(0)
	}
}

func (f *Flusher) probe(ctx context.Context) {
	if f.backend == nil {
		f.setState(driving.ReachabilityOffline)
		return
	}
	probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := f.backend.Ping(probeCtx); err != nil {
		f.setState(driving.ReachabilityOffline)
		return
	}
	f.setState(driving.ReachabilityHealthy)
}

// nextBackoff doubles the interval with +/-20% jitter, capped.
func nextBackoff(current time.Duration) time.Duration {
	next := current * 2
	if next > maxPingInterval {
		next = maxPingInterval
	}
	jitter := time.Duration((rand.Float64()*0.4 - 0.2) * float64(next))
	return next + jitter
}
