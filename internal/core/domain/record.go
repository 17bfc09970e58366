package domain

import "time"

// Collection identifies a named record collection in the local store.
type Collection string

const (
	// CollectionPosts holds mirrored upstream posts.
	CollectionPosts Collection = "posts"

	// CollectionProducts holds product records derived from post text.
	CollectionProducts Collection = "products"

	// CollectionOrders holds order records derived from comments.
	CollectionOrders Collection = "orders"
)

// RecordCollections returns the collections that hold mirrored records.
// Outbox, snapshots and meta entries are deliberately excluded: owner-scoped
// clearing must never destroy queued mutations or backup markers.
func RecordCollections() []Collection {
	return []Collection{CollectionPosts, CollectionProducts, CollectionOrders}
}

// Record is the canonical shape for one mirrored upstream item.
// Posts, products and orders all share this shape; collection-specific
// payload lives in Fields.
type Record struct {
	// Key is the stable external identifier (primary key within a collection).
	Key string

	// OwnerID identifies the shop account this record belongs to.
	OwnerID string

	// ParentKey links a child record (e.g. an order comment) to its parent post.
	// Empty for top-level records.
	ParentKey string

	// Status is a coarse lifecycle marker ("active", "deleted", ...).
	Status string

	// UpdatedAt is the upstream last-modified timestamp. It gates merge writes:
	// an incoming record older than the stored one is discarded.
	UpdatedAt time.Time

	// Fields holds the record payload as key-value pairs.
	Fields map[string]any

	// Change tracks edit/deletion history across polls. Nil for collections
	// that do not need version tracking.
	Change *ChangeLog
}

// Clone returns a deep-enough copy of the record. Fields is copied one level
// deep; nested values are shared.
func (r Record) Clone() Record {
	out := r
	if r.Fields != nil {
		out.Fields = make(map[string]any, len(r.Fields))
		for k, v := range r.Fields {
			out.Fields[k] = v
		}
	}
	if r.Change != nil {
		c := r.Change.Clone()
		out.Change = &c
	}
	return out
}

// MergeRecords applies incoming over existing with last-write-wins semantics
// gated by UpdatedAt. If incoming is older than existing, existing is returned
// unchanged and merged reports false. Otherwise incoming fields are shallow
// merged over existing ones; fields absent from incoming never erase stored
// values. The operation is commutative and idempotent under fixed timestamps,
// which lets two independent producers write the same collection safely.
func MergeRecords(existing, incoming Record) (merged Record, applied bool) {
	if incoming.UpdatedAt.Before(existing.UpdatedAt) {
		return existing, false
	}

	out := existing.Clone()
	out.UpdatedAt = incoming.UpdatedAt
	if incoming.OwnerID != "" {
		out.OwnerID = incoming.OwnerID
	}
	if incoming.ParentKey != "" {
		out.ParentKey = incoming.ParentKey
	}
	if incoming.Status != "" {
		out.Status = incoming.Status
	}
	if incoming.Change != nil {
		c := incoming.Change.Clone()
		out.Change = &c
	}
	if out.Fields == nil && incoming.Fields != nil {
		out.Fields = make(map[string]any, len(incoming.Fields))
	}
	for k, v := range incoming.Fields {
		out.Fields[k] = v
	}
	return out, true
}
