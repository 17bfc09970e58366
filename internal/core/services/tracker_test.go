package services

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storefront-labs/shopmirror/internal/core/domain"
)

func TestDiffChange(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("first observation creates version one", func(t *testing.T) {
		change, changed := DiffChange(nil, "hello", domain.ChangeUpdated, now)

		require.True(t, changed)
		assert.Equal(t, 1, change.Version)
		assert.Equal(t, []string{"version:1 hello"}, change.History)
		assert.Equal(t, "hello", change.Current)
		assert.Equal(t, ContentHash("hello"), change.Hash)
		assert.Equal(t, domain.ChangeUpdated, change.Status)
	})

	t.Run("unchanged content only refreshes last seen", func(t *testing.T) {
		first, _ := DiffChange(nil, "hello", domain.ChangeUpdated, now)

		later := now.Add(time.Hour)
		second, changed := DiffChange(first, "hello", domain.ChangeUpdated, later)

		assert.False(t, changed)
		assert.Equal(t, 1, second.Version)
		assert.Len(t, second.History, 1)
		assert.Equal(t, later, second.LastSeenAt)
		assert.Equal(t, now, second.UpdatedAt, "edit timestamp untouched")
	})

	t.Run("k edits produce k history entries", func(t *testing.T) {
		var change *domain.ChangeLog
		const k = 5
		for i := 1; i <= k; i++ {
			content := fmt.Sprintf("edit %d", i)
			next, changed := DiffChange(change, content, domain.ChangeUpdated, now.Add(time.Duration(i)*time.Minute))
			require.True(t, changed)
			change = next
		}

		assert.Equal(t, k, change.Version)
		require.Len(t, change.History, k)
		assert.Equal(t, "version:1 edit 1", change.History[0])
		assert.Equal(t, "version:5 edit 5", change.History[k-1])
		assert.Equal(t, "edit 5", change.Current)
	})

	t.Run("deletion appends placeholder and clears current", func(t *testing.T) {
		live, _ := DiffChange(nil, "hello", domain.ChangeUpdated, now)

		deletedAt := now.Add(time.Hour)
		deleted, changed := DiffChange(live, "", domain.ChangeDeleted, deletedAt)

		require.True(t, changed)
		assert.Equal(t, 2, deleted.Version)
		assert.Equal(t, []string{"version:1 hello", "version:2 [deleted]"}, deleted.History)
		assert.Empty(t, deleted.Current)
		assert.Empty(t, deleted.Hash)
		assert.Equal(t, deletedAt, deleted.DeletedAt)
		assert.True(t, deleted.IsDeleted())
	})

	t.Run("repeated deletion is a no-op", func(t *testing.T) {
		live, _ := DiffChange(nil, "hello", domain.ChangeUpdated, now)
		once, _ := DiffChange(live, "", domain.ChangeDeleted, now.Add(time.Hour))

		twice, changed := DiffChange(once, "", domain.ChangeDeleted, now.Add(2*time.Hour))

		assert.False(t, changed)
		assert.Equal(t, 2, twice.Version)
		assert.Len(t, twice.History, 2)
	})

	t.Run("edit after deletion resurrects with a new version", func(t *testing.T) {
		live, _ := DiffChange(nil, "hello", domain.ChangeUpdated, now)
		deleted, _ := DiffChange(live, "", domain.ChangeDeleted, now.Add(time.Hour))

		back, changed := DiffChange(deleted, "hello", domain.ChangeUpdated, now.Add(2*time.Hour))

		require.True(t, changed)
		assert.Equal(t, 3, back.Version)
		assert.True(t, back.DeletedAt.IsZero())
		assert.Equal(t, "hello", back.Current)
	})

	t.Run("three poll scenario", func(t *testing.T) {
		// Poll 1: two items appear. Poll 2: one edited, one unchanged.
		// Poll 3: the unchanged one disappears.
		a1, _ := DiffChange(nil, "item a", domain.ChangeUpdated, now)
		b1, _ := DiffChange(nil, "item b", domain.ChangeUpdated, now)

		poll2 := now.Add(time.Hour)
		a2, aChanged := DiffChange(a1, "item a, edited", domain.ChangeUpdated, poll2)
		b2, bChanged := DiffChange(b1, "item b", domain.ChangeUpdated, poll2)
		assert.True(t, aChanged)
		assert.False(t, bChanged)

		poll3 := now.Add(2 * time.Hour)
		b3, deleted := DiffChange(b2, "", domain.ChangeDeleted, poll3)
		require.True(t, deleted)

		assert.Equal(t, 2, a2.Version)
		assert.Equal(t, []string{"version:1 item b", "version:2 [deleted]"}, b3.History)
	})
}

func TestContentHash(t *testing.T) {
	t.Run("deterministic", func(t *testing.T) {
		assert.Equal(t, ContentHash("hello"), ContentHash("hello"))
	})

	t.Run("distinct content hashes differently", func(t *testing.T) {
		assert.NotEqual(t, ContentHash("hello"), ContentHash("hello "))
	})
}

func TestDetectDeletions(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	record := func(key string, updatedAt time.Time) domain.Record {
		return domain.Record{
			Key:       key,
			UpdatedAt: updatedAt,
			Change:    &domain.ChangeLog{Status: domain.ChangeUpdated},
		}
	}
	item := func(key string, postedAt time.Time) domain.RawItem {
		return domain.RawItem{Key: key, Kind: domain.ItemComment, PostedAt: postedAt}
	}

	t.Run("absent record inside the window is deleted", func(t *testing.T) {
		recorded := []domain.Record{
			record("c1", now),
			record("c2", now.Add(time.Minute)),
		}
		window := []domain.RawItem{item("c1", now)}

		deleted := DetectDeletions(recorded, window)

		require.Len(t, deleted, 1)
		assert.Equal(t, "c2", deleted[0].Key)
	})

	t.Run("records older than the window are not flagged", func(t *testing.T) {
		recorded := []domain.Record{
			record("ancient", now.Add(-48*time.Hour)),
		}
		window := []domain.RawItem{item("c1", now)}

		assert.Empty(t, DetectDeletions(recorded, window))
	})

	t.Run("empty window proves nothing", func(t *testing.T) {
		recorded := []domain.Record{record("c1", now)}

		assert.Empty(t, DetectDeletions(recorded, nil))
	})

	t.Run("already deleted records are skipped", func(t *testing.T) {
		gone := record("c1", now)
		gone.Change = &domain.ChangeLog{Status: domain.ChangeDeleted}
		window := []domain.RawItem{item("other", now)}

		assert.Empty(t, DetectDeletions([]domain.Record{gone}, window))
	})

	t.Run("present records are never flagged", func(t *testing.T) {
		recorded := []domain.Record{record("c1", now)}
		window := []domain.RawItem{item("c1", now)}

		assert.Empty(t, DetectDeletions(recorded, window))
	})
}
