package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/storefront-labs/shopmirror/internal/core/domain"
	"github.com/storefront-labs/shopmirror/internal/core/ports/driven"
	"github.com/storefront-labs/shopmirror/internal/logger"
	"github.com/storefront-labs/shopmirror/internal/metrics"
)

// RemoteCall executes one upstream request with the given credential.
// The rotation client decides which credential to hand it.
type RemoteCall func(ctx context.Context, cred domain.Credential) (*driven.Page, error)

// Classifier maps an upstream error to a failure kind. The upstream API has
// no typed error codes, so adapters supply status/message heuristics.
type Classifier func(err error) domain.FailureKind

// FailoverFunc is invoked before each rotation step so collaborators can
// react (status indicators, metrics) before the next attempt.
type FailoverFunc func(f domain.Failover)

// RotationClient executes upstream calls with credential failover. Each
// account owns an ordered credential list; the active index is durably
// persisted so a later process resumes from the last-known-good credential
// rather than retrying the primary first.
type RotationClient struct {
	accountID  string
	creds      driven.CredentialStore
	classify   Classifier
	onFailover FailoverFunc

	mu      sync.Mutex
	session *domain.SyncSession
}

// NewRotationClient creates a rotation client for one account. classify is
// required; onFailover may be nil.
func NewRotationClient(
	accountID string,
	creds driven.CredentialStore,
	classify Classifier,
	onFailover FailoverFunc,
) *RotationClient {
	return &RotationClient{
		accountID:  accountID,
		creds:      creds,
		classify:   classify,
		onFailover: onFailover,
	}
}

// StartSession begins aggregate bookkeeping for one collection run.
func (c *RotationClient) StartSession() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.session = &domain.SyncSession{
		ID:        uuid.NewString(),
		AccountID: c.accountID,
		StartedAt: time.Now().UTC(),
	}
}

// EndSession closes the current session and writes its aggregates.
// Failure to write the session log is non-fatal and only logged.
func (c *RotationClient) EndSession(ctx context.Context, failed bool) {
	c.mu.Lock()
	session := c.session
	c.session = nil
	c.mu.Unlock()

	if session == nil {
		return
	}
	session.EndedAt = time.Now().UTC()
	session.Failed = failed

	if err := c.creds.SaveSession(ctx, *session); err != nil {
		logger.Warn("Failed to save session %s: %v", session.ID, err)
	}
}

// Call executes fn with credential failover. Attempt order starts at the
// persisted active index and wraps through every credential; each index is
// tried exactly once per call. Only quota and invalid-credential failures
// rotate; network and unknown failures abort immediately. On success the
// working index is persisted, including index 0, which heals a prior
// rotation once the primary recovers.
func (c *RotationClient) Call(ctx context.Context, action string, fn RemoteCall) (*driven.Page, error) {
	set, err := c.creds.GetSet(ctx, c.accountID)
	if err != nil {
		return nil, fmt.Errorf("load credentials: %w", err)
	}
	total := len(set.Credentials)
	if total == 0 {
		return nil, domain.ErrNoCredentials
	}

	start := set.ActiveIndex
	if start < 0 || start >= total {
		start = 0
	}
	c.noteCall()

	var lastErr error
	for attempt := 0; attempt < total; attempt++ {
		idx := (start + attempt) % total
		c.noteAttempt()

		page, callErr := fn(ctx, set.Credentials[idx])
		if callErr == nil {
			c.recordUsage(ctx, action, idx, len(page.Items), true)
			c.noteSuccess(len(page.Items))
			if idx != set.ActiveIndex {
				if err := c.creds.SetActiveIndex(ctx, c.accountID, idx); err != nil {
					logger.Warn("Failed to persist active credential %d: %v", idx, err)
				}
			}
			return page, nil
		}

		lastErr = callErr
		kind := c.classify(callErr)
		c.recordUsage(ctx, action, idx, 0, false)
		logger.Debug("Call %s failed on credential %d: %s: %v", action, idx, kind, callErr)

		if !kind.Rotatable() {
			return nil, callErr
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		metrics.CredentialRotations.WithLabelValues(string(kind)).Inc()
		if attempt+1 < total {
			next := (idx + 1) % total
			if c.onFailover != nil {
				c.onFailover(domain.Failover{FromIndex: idx, ToIndex: next, Kind: kind})
			}
		}
	}

	return nil, fmt.Errorf("%w: %w", domain.ErrCredentialExhausted, lastErr)
}

// recordUsage writes one usage entry. Failures are only logged.
func (c *RotationClient) recordUsage(ctx context.Context, action string, index, count int, ok bool) {
	entry := domain.UsageEntry{
		AccountID:       c.accountID,
		Action:          action,
		CredentialIndex: index,
		ItemCount:       count,
		OK:              ok,
		At:              time.Now().UTC(),
	}
	if err := c.creds.RecordUsage(ctx, entry); err != nil {
		logger.Warn("Failed to record usage for %s: %v", action, err)
	}
}

func (c *RotationClient) noteCall() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session != nil {
		c.session.Calls++
	}
}

func (c *RotationClient) noteAttempt() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session != nil {
		c.session.CredentialsUsed++
	}
}

func (c *RotationClient) noteSuccess(items int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session != nil {
		c.session.Items += items
	}
}
