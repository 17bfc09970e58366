package services

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/storefront-labs/shopmirror/internal/core/domain"
)

// ContentHash returns the deterministic hash used for change detection.
func ContentHash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// DiffChange compares new content against an existing change log and returns
// the next log. If nothing changed, the existing log is returned with only
// LastSeenAt refreshed and changed reports false: no version bump, no new
// history entry. Otherwise a new history entry is appended, the version is
// incremented and timestamps are stamped. History is append-only and the
// version is monotonically increasing.
//
// For deletions the history entry records "[deleted]", Current is cleared
// and the last live value stays in History.
func DiffChange(existing *domain.ChangeLog, content string, status domain.ChangeStatus, now time.Time) (*domain.ChangeLog, bool) {
	if status == domain.ChangeDeleted {
		return diffDeleted(existing, now)
	}

	hash := ContentHash(content)
	if existing != nil && existing.Status == domain.ChangeUpdated && existing.Hash == hash {
		next := existing.Clone()
		next.LastSeenAt = now
		return &next, false
	}

	var next domain.ChangeLog
	if existing != nil {
		next = existing.Clone()
	}
	next.Version++
	next.History = append(next.History, domain.HistoryEntry(next.Version, content))
	next.Hash = hash
	next.Status = domain.ChangeUpdated
	next.Current = content
	next.UpdatedAt = now
	next.DeletedAt = time.Time{}
	next.LastSeenAt = now
	return &next, true
}

func diffDeleted(existing *domain.ChangeLog, now time.Time) (*domain.ChangeLog, bool) {
	if existing != nil && existing.Status == domain.ChangeDeleted {
		return existing, false
	}

	var next domain.ChangeLog
	if existing != nil {
		next = existing.Clone()
	}
	next.Version++
	next.History = append(next.History, domain.HistoryEntry(next.Version, domain.DeletedPlaceholder))
	next.Hash = ""
	next.Status = domain.ChangeDeleted
	next.Current = ""
	next.DeletedAt = now
	return &next, true
}

// DetectDeletions finds silent deletions: previously recorded child records
// whose keys are absent from the freshly polled recent window while still
// inside it. The upstream list API emits no deletion events, so absence is
// the only signal. The window is a heuristic: if it is smaller than the
// platform's propagation delay, false positives are possible, which is why
// its size is a configuration tunable.
//
// An empty window response yields no deletions: it is indistinguishable from
// a failed or truncated poll.
func DetectDeletions(recorded []domain.Record, window []domain.RawItem) []domain.Record {
	if len(window) == 0 {
		return nil
	}

	present := make(map[string]struct{}, len(window))
	oldest := window[0].PostedAt
	for _, item := range window {
		present[item.Key] = struct{}{}
		if item.PostedAt.Before(oldest) {
			oldest = item.PostedAt
		}
	}

	var deleted []domain.Record
	for _, rec := range recorded {
		if rec.Change.IsDeleted() {
			continue
		}
		if rec.UpdatedAt.Before(oldest) {
			// Outside the polled window; absence proves nothing.
			continue
		}
		if _, ok := present[rec.Key]; !ok {
			deleted = append(deleted, rec)
		}
	}
	return deleted
}
