package domain

import (
	"fmt"
	"time"
)

// ChangeStatus marks how a tracked record last changed.
type ChangeStatus string

const (
	// ChangeUpdated indicates the record content was created or edited.
	ChangeUpdated ChangeStatus = "updated"

	// ChangeDeleted indicates the record disappeared upstream.
	ChangeDeleted ChangeStatus = "deleted"
)

// DeletedPlaceholder is recorded in history entries for deletions.
const DeletedPlaceholder = "[deleted]"

// ChangeLog tracks the edit and deletion history of one upstream record
// across repeated polls. Upstream list APIs emit no explicit edit or delete
// events, so the hash is the only way to notice a silent change.
type ChangeLog struct {
	// Hash is the content hash of Current.
	Hash string

	// Status is the last observed change kind.
	Status ChangeStatus

	// History is the append-only list of version entries, oldest first.
	// Each entry has the form "version:{n} {content}".
	History []string

	// Version increases by one per recorded change. Never decreases.
	Version int

	// UpdatedAt is when the last edit was recorded.
	UpdatedAt time.Time

	// DeletedAt is when the deletion was recorded. Zero while live.
	DeletedAt time.Time

	// LastSeenAt is when the record was last present in a poll response.
	LastSeenAt time.Time

	// Current is the latest live content. Empty once deleted; the last
	// live value is still retained in History.
	Current string
}

// Clone returns a copy with its own History slice.
func (c ChangeLog) Clone() ChangeLog {
	out := c
	if c.History != nil {
		out.History = make([]string, len(c.History))
		copy(out.History, c.History)
	}
	return out
}

// HistoryEntry formats a version history line.
func HistoryEntry(version int, content string) string {
	return fmt.Sprintf("version:%d %s", version, content)
}

// IsDeleted reports whether the tracked record was last seen as deleted.
func (c *ChangeLog) IsDeleted() bool {
	return c != nil && c.Status == ChangeDeleted
}
