package domain

import "time"

// ItemKind distinguishes top-level items from embedded children.
type ItemKind int

const (
	// ItemPost is a top-level upstream item.
	ItemPost ItemKind = iota

	// ItemComment is a child item (a comment under a post).
	ItemComment
)

// RawItem is the canonical shape of one upstream item after the adapter
// boundary has normalised the platform's shape-varying payloads. Everything
// downstream of the upstream adapter works with this one shape.
type RawItem struct {
	// Key is the platform's stable identifier for the item.
	Key string

	// Kind is the item kind.
	Kind ItemKind

	// ParentKey is set for comments: the key of the post they belong to.
	ParentKey string

	// AuthorKey identifies the item author at the platform.
	AuthorKey string

	// AuthorName is the display name, copied forward onto children so the
	// admin screens can render them without a join.
	AuthorName string

	// Text is the item body.
	Text string

	// Media holds attachment URLs, already normalised to a flat list.
	Media []string

	// ParentAuthor carries the parent post's author key on flattened
	// children, so display code needs no join back to the parent.
	ParentAuthor string

	// PostedAt is the platform timestamp for the item.
	PostedAt time.Time

	// Children holds the platform's embedded recent-comment preview for a
	// post. The collector flattens these into independent records.
	Children []RawItem
}

// ChildKey derives the synthetic composite key for an embedded child that
// has no stable identifier of its own: parent key plus child timestamp.
func ChildKey(parentKey string, postedAt time.Time) string {
	return parentKey + ":" + postedAt.UTC().Format("20060102T150405.000")
}
