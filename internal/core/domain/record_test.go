package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergeRecords(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("older incoming record is discarded", func(t *testing.T) {
		existing := Record{Key: "p1", UpdatedAt: base, Fields: map[string]any{"text": "new"}}
		incoming := Record{Key: "p1", UpdatedAt: base.Add(-time.Hour), Fields: map[string]any{"text": "old"}}

		merged, applied := MergeRecords(existing, incoming)

		assert.False(t, applied)
		assert.Equal(t, "new", merged.Fields["text"])
		assert.Equal(t, base, merged.UpdatedAt)
	})

	t.Run("newer incoming fields win", func(t *testing.T) {
		existing := Record{Key: "p1", UpdatedAt: base, Fields: map[string]any{"text": "old", "likes": 3}}
		incoming := Record{Key: "p1", UpdatedAt: base.Add(time.Hour), Fields: map[string]any{"text": "edited"}}

		merged, applied := MergeRecords(existing, incoming)

		require.True(t, applied)
		assert.Equal(t, "edited", merged.Fields["text"])
		assert.Equal(t, base.Add(time.Hour), merged.UpdatedAt)
	})

	t.Run("absent fields never erase stored values", func(t *testing.T) {
		existing := Record{Key: "p1", UpdatedAt: base, Fields: map[string]any{"text": "body", "media": []string{"a.jpg"}}}
		incoming := Record{Key: "p1", UpdatedAt: base.Add(time.Minute), Fields: map[string]any{"text": "body"}}

		merged, applied := MergeRecords(existing, incoming)

		require.True(t, applied)
		assert.Equal(t, []string{"a.jpg"}, merged.Fields["media"])
	})

	t.Run("merge is idempotent", func(t *testing.T) {
		existing := Record{Key: "p1", UpdatedAt: base, Fields: map[string]any{"text": "a"}}
		incoming := Record{Key: "p1", UpdatedAt: base.Add(time.Minute), Fields: map[string]any{"text": "b", "extra": 1}}

		once, applied := MergeRecords(existing, incoming)
		require.True(t, applied)
		twice, applied := MergeRecords(once, incoming)
		require.True(t, applied)

		assert.Equal(t, once.Fields, twice.Fields)
		assert.Equal(t, once.UpdatedAt, twice.UpdatedAt)
	})

	t.Run("full records converge regardless of arrival order", func(t *testing.T) {
		a := Record{Key: "p1", UpdatedAt: base, Status: "active", Fields: map[string]any{"text": "v1", "likes": 1}}
		b := Record{Key: "p1", UpdatedAt: base.Add(time.Minute), Status: "active", Fields: map[string]any{"text": "v2", "likes": 2}}

		ab, _ := MergeRecords(a, b)
		ba, _ := MergeRecords(b, a)

		assert.Equal(t, ab.Fields, ba.Fields)
		assert.Equal(t, ab.UpdatedAt, ba.UpdatedAt)
	})

	t.Run("equal timestamps apply incoming", func(t *testing.T) {
		existing := Record{Key: "p1", UpdatedAt: base, Fields: map[string]any{"text": "a"}}
		incoming := Record{Key: "p1", UpdatedAt: base, Fields: map[string]any{"text": "b"}}

		merged, applied := MergeRecords(existing, incoming)

		assert.True(t, applied)
		assert.Equal(t, "b", merged.Fields["text"])
	})
}

func TestRecordClone(t *testing.T) {
	t.Run("clone does not share fields map", func(t *testing.T) {
		rec := Record{Key: "p1", Fields: map[string]any{"text": "a"}}

		clone := rec.Clone()
		clone.Fields["text"] = "changed"

		assert.Equal(t, "a", rec.Fields["text"])
	})

	t.Run("clone copies change log history", func(t *testing.T) {
		rec := Record{
			Key:    "p1",
			Change: &ChangeLog{Version: 2, History: []string{"version:1 a", "version:2 b"}},
		}

		clone := rec.Clone()
		clone.Change.History[0] = "mutated"

		assert.Equal(t, "version:1 a", rec.Change.History[0])
	})
}

func TestChildKey(t *testing.T) {
	posted := time.Date(2026, 3, 1, 9, 30, 15, 250*int(time.Millisecond), time.UTC)

	assert.Equal(t, "post-1:20260301T093015.250", ChildKey("post-1", posted))
}

func TestChangeLog(t *testing.T) {
	t.Run("history entry format", func(t *testing.T) {
		assert.Equal(t, "version:3 hello", HistoryEntry(3, "hello"))
	})

	t.Run("nil change log is not deleted", func(t *testing.T) {
		var c *ChangeLog
		assert.False(t, c.IsDeleted())
	})

	t.Run("deleted status reports deleted", func(t *testing.T) {
		c := &ChangeLog{Status: ChangeDeleted}
		assert.True(t, c.IsDeleted())
	})
}

func TestFailureKindRotatable(t *testing.T) {
	assert.True(t, FailureQuotaExceeded.Rotatable())
	assert.True(t, FailureInvalidCredential.Rotatable())
	assert.False(t, FailureNetwork.Rotatable())
	assert.False(t, FailureUnknown.Rotatable())
}
