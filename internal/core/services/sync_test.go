package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storefront-labs/shopmirror/internal/adapters/driven/storage/memory"
	"github.com/storefront-labs/shopmirror/internal/core/domain"
	"github.com/storefront-labs/shopmirror/internal/core/ports/driven"
)

// mirrorFixture bundles the in-memory collaborators for one orchestrator.
type mirrorFixture struct {
	records   *memory.RecordStore
	outbox    *memory.OutboxStore
	snapshots *memory.SnapshotStore
	meta      *memory.MetaStore
	creds     *memory.CredentialStore
	upstream  *scriptedUpstream
	backend   *fakeBackend
	flusher   *Flusher
	service   *MirrorService
}

func newMirrorFixture(t *testing.T, upstream *scriptedUpstream) *mirrorFixture {
	t.Helper()
	fx := &mirrorFixture{
		records:   memory.NewRecordStore(),
		outbox:    memory.NewOutboxStore(),
		snapshots: memory.NewSnapshotStore(),
		meta:      memory.NewMetaStore(),
		creds:     memory.NewCredentialStore(),
		upstream:  upstream,
		backend:   &fakeBackend{},
	}
	seedCredentials(t, fx.creds, "acct", 2, 0)
	fx.flusher = NewFlusher(fx.outbox, fx.backend)
	fx.service = NewMirrorService(
		fx.records, fx.snapshots, fx.meta, fx.creds,
		fx.upstream, nil, fx.backend, fx.flusher,
		testClassifier, WithPageRate(10000),
	)
	return fx
}

func postWithComments(key, text string, postedAt time.Time, comments ...domain.RawItem) domain.RawItem {
	return domain.RawItem{
		Key:       key,
		Kind:      domain.ItemPost,
		AuthorKey: "author-1",
		Text:      text,
		PostedAt:  postedAt,
		Children:  comments,
	}
}

func comment(key, text string, postedAt time.Time) domain.RawItem {
	return domain.RawItem{Key: key, Text: text, PostedAt: postedAt}
}

func TestMirrorService_Mirror(t *testing.T) {
	ctx := context.Background()
	posted := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	t.Run("posts and comments land in their collections", func(t *testing.T) {
		upstream := &scriptedUpstream{pages: map[string]*driven.Page{
			"": {Items: []domain.RawItem{
				postWithComments("post-1", "two for sale", posted,
					comment("c-1", "take one", posted.Add(time.Minute))),
			}},
		}}
		fx := newMirrorFixture(t, upstream)

		require.NoError(t, fx.service.Mirror(ctx, "acct", 0))

		posts, err := fx.records.ScanByOwner(ctx, domain.CollectionPosts, "acct")
		require.NoError(t, err)
		require.Len(t, posts, 1)
		assert.Equal(t, "two for sale", posts[0].Fields["text"])
		require.NotNil(t, posts[0].Change)
		assert.Equal(t, 1, posts[0].Change.Version)

		orders, err := fx.records.ScanByParent(ctx, domain.CollectionOrders, "post-1")
		require.NoError(t, err)
		require.Len(t, orders, 1)
		assert.Equal(t, "c-1", orders[0].Key)
		assert.Equal(t, "author-1", orders[0].Fields["parent_author"])
	})

	t.Run("writes queue while the backend is unconfirmed", func(t *testing.T) {
		upstream := &scriptedUpstream{pages: map[string]*driven.Page{
			"": {Items: []domain.RawItem{postWithComments("post-1", "hello", posted)}},
		}}
		fx := newMirrorFixture(t, upstream)

		// Reachability is still "checking": no direct backend writes.
		require.NoError(t, fx.service.Mirror(ctx, "acct", 0))

		pending, err := fx.outbox.Pending(ctx, "acct")
		require.NoError(t, err)
		require.Len(t, pending, 1)
		assert.Equal(t, domain.OpUpsert, pending[0].Operation)
		assert.Equal(t, "post-1", pending[0].Key)

		// A manual flush drains the queue once the backend answers.
		stats, err := fx.flusher.Flush(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, stats.Acked)

		pending, err = fx.outbox.Pending(ctx, "acct")
		require.NoError(t, err)
		assert.Empty(t, pending)
	})

	t.Run("no configured backend still queues every mutation", func(t *testing.T) {
		upstream := &scriptedUpstream{pages: map[string]*driven.Page{
			"": {Items: []domain.RawItem{postWithComments("post-1", "hello", posted)}},
		}}
		fx := newMirrorFixture(t, upstream)
		// Production wiring when no database URL is set: no backend, but the
		// flusher still fronts the outbox.
		fx.service = NewMirrorService(
			fx.records, fx.snapshots, fx.meta, fx.creds,
			fx.upstream, nil, nil, NewFlusher(fx.outbox, nil),
			testClassifier, WithPageRate(10000),
		)

		require.NoError(t, fx.service.Mirror(ctx, "acct", 0))

		_, err := fx.records.Get(ctx, domain.CollectionPosts, "post-1")
		require.NoError(t, err, "record lands in the local replica")

		pending, err := fx.outbox.Pending(ctx, "acct")
		require.NoError(t, err)
		assert.NotEmpty(t, pending, "mutations wait in the outbox for a later process")
	})

	t.Run("second unchanged poll bumps no versions", func(t *testing.T) {
		upstream := &scriptedUpstream{pages: map[string]*driven.Page{
			"": {Items: []domain.RawItem{postWithComments("post-1", "stable", posted)}},
		}}
		fx := newMirrorFixture(t, upstream)

		require.NoError(t, fx.service.Mirror(ctx, "acct", 0))
		require.NoError(t, fx.service.Mirror(ctx, "acct", 0))

		rec, err := fx.records.Get(ctx, domain.CollectionPosts, "post-1")
		require.NoError(t, err)
		assert.Equal(t, 1, rec.Change.Version)
		assert.Len(t, rec.Change.History, 1)
	})

	t.Run("edited post gains a version", func(t *testing.T) {
		upstream := &scriptedUpstream{pages: map[string]*driven.Page{
			"": {Items: []domain.RawItem{postWithComments("post-1", "first", posted)}},
		}}
		fx := newMirrorFixture(t, upstream)
		require.NoError(t, fx.service.Mirror(ctx, "acct", 0))

		upstream.pages[""] = &driven.Page{Items: []domain.RawItem{
			postWithComments("post-1", "first, edited", posted.Add(time.Hour)),
		}}
		require.NoError(t, fx.service.Mirror(ctx, "acct", 0))

		rec, err := fx.records.Get(ctx, domain.CollectionPosts, "post-1")
		require.NoError(t, err)
		assert.Equal(t, 2, rec.Change.Version)
		assert.Equal(t, []string{"version:1 first", "version:2 first, edited"}, rec.Change.History)
	})

	t.Run("comment missing from the next window is marked deleted", func(t *testing.T) {
		upstream := &scriptedUpstream{pages: map[string]*driven.Page{
			"": {Items: []domain.RawItem{
				postWithComments("post-1", "selling", posted,
					comment("c-1", "take one", posted.Add(time.Minute)),
					comment("c-2", "take two", posted.Add(2*time.Minute))),
			}},
		}}
		fx := newMirrorFixture(t, upstream)
		require.NoError(t, fx.service.Mirror(ctx, "acct", 0))

		// Next poll: c-2 has vanished while the window still reaches back
		// past its timestamp. c-1 scrolling out would prove nothing; a
		// newer comment going missing does.
		upstream.pages[""] = &driven.Page{Items: []domain.RawItem{
			postWithComments("post-1", "selling", posted,
				comment("c-1", "take one", posted.Add(time.Minute))),
		}}
		require.NoError(t, fx.service.Mirror(ctx, "acct", 0))

		rec, err := fx.records.Get(ctx, domain.CollectionOrders, "c-2")
		require.NoError(t, err)
		require.NotNil(t, rec.Change)
		assert.True(t, rec.Change.IsDeleted())
		assert.Contains(t, rec.Change.History, "version:2 [deleted]")

		kept, err := fx.records.Get(ctx, domain.CollectionOrders, "c-1")
		require.NoError(t, err)
		assert.False(t, kept.Change.IsDeleted())
	})

	t.Run("empty preview triggers a direct comment poll", func(t *testing.T) {
		upstream := &scriptedUpstream{pages: map[string]*driven.Page{
			"": {Items: []domain.RawItem{
				postWithComments("post-1", "selling", posted,
					comment("c-1", "take one", posted.Add(time.Minute))),
			}},
		}}
		fx := newMirrorFixture(t, upstream)
		require.NoError(t, fx.service.Mirror(ctx, "acct", 0))

		// Next poll carries no preview at all. The direct comment poll
		// reaches back to the thread start and no longer sees c-1.
		upstream.pages[""] = &driven.Page{Items: []domain.RawItem{
			postWithComments("post-1", "selling", posted),
		}}
		upstream.children = map[string]*driven.Page{
			"post-1": {Items: []domain.RawItem{
				comment("c-other", "still here", posted.Add(30*time.Second)),
			}},
		}
		require.NoError(t, fx.service.Mirror(ctx, "acct", 0))

		rec, err := fx.records.Get(ctx, domain.CollectionOrders, "c-1")
		require.NoError(t, err)
		require.NotNil(t, rec.Change)
		assert.True(t, rec.Change.IsDeleted())
	})

	t.Run("first backup clears stale rows, later runs do not", func(t *testing.T) {
		upstream := &scriptedUpstream{pages: map[string]*driven.Page{
			"": {Items: []domain.RawItem{postWithComments("post-1", "fresh", posted)}},
		}}
		fx := newMirrorFixture(t, upstream)

		// Stale row from an earlier install.
		stale := domain.Record{Key: "stale", OwnerID: "acct", UpdatedAt: posted}
		require.NoError(t, fx.records.PutOverwrite(ctx, domain.CollectionPosts, []domain.Record{stale}))

		require.NoError(t, fx.service.Mirror(ctx, "acct", 0))

		_, err := fx.records.Get(ctx, domain.CollectionPosts, "stale")
		assert.ErrorIs(t, err, domain.ErrNotFound)

		// A row written between runs survives the second mirror.
		kept := domain.Record{Key: "kept", OwnerID: "acct", UpdatedAt: posted}
		require.NoError(t, fx.records.PutOverwrite(ctx, domain.CollectionPosts, []domain.Record{kept}))
		require.NoError(t, fx.service.Mirror(ctx, "acct", 0))

		_, err = fx.records.Get(ctx, domain.CollectionPosts, "kept")
		assert.NoError(t, err)
	})

	t.Run("run records a snapshot and advances sync markers", func(t *testing.T) {
		upstream := &scriptedUpstream{pages: map[string]*driven.Page{
			"": {Items: []domain.RawItem{postWithComments("post-1", "hello", posted)}},
		}}
		fx := newMirrorFixture(t, upstream)

		require.NoError(t, fx.service.Mirror(ctx, "acct", 0))

		snaps, err := fx.snapshots.List(ctx, "acct")
		require.NoError(t, err)
		require.Len(t, snaps, 1)
		assert.Equal(t, 1, snaps[0].Counts[domain.CollectionPosts])

		_, err = fx.meta.Get(ctx, "lastBackupAt:acct")
		assert.NoError(t, err)
		_, err = fx.meta.Get(ctx, "lastSyncAt:acct")
		assert.NoError(t, err)
	})

	t.Run("status is idle when no run is active", func(t *testing.T) {
		fx := newMirrorFixture(t, &scriptedUpstream{})

		status, err := fx.service.Status(ctx, "acct")

		require.NoError(t, err)
		assert.False(t, status.Running)
		assert.Equal(t, "acct", status.AccountID)
	})
}

func TestMirrorService_Hydrate(t *testing.T) {
	ctx := context.Background()
	posted := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	t.Run("merges backend records into the replica", func(t *testing.T) {
		fx := newMirrorFixture(t, &scriptedUpstream{})
		fx.backend.fetchSince = []domain.Record{
			{Key: "post-9", OwnerID: "acct", UpdatedAt: posted, Fields: map[string]any{"text": "remote"}},
		}

		require.NoError(t, fx.service.Hydrate(ctx, "acct"))

		rec, err := fx.records.Get(ctx, domain.CollectionPosts, "post-9")
		require.NoError(t, err)
		assert.Equal(t, "remote", rec.Fields["text"])
	})

	t.Run("older backend rows never clobber newer local state", func(t *testing.T) {
		fx := newMirrorFixture(t, &scriptedUpstream{})
		local := domain.Record{Key: "post-1", OwnerID: "acct", UpdatedAt: posted.Add(time.Hour), Fields: map[string]any{"text": "local newer"}}
		require.NoError(t, fx.records.PutOverwrite(ctx, domain.CollectionPosts, []domain.Record{local}))

		fx.backend.fetchSince = []domain.Record{
			{Key: "post-1", OwnerID: "acct", UpdatedAt: posted, Fields: map[string]any{"text": "remote older"}},
		}
		require.NoError(t, fx.service.Hydrate(ctx, "acct"))

		rec, err := fx.records.Get(ctx, domain.CollectionPosts, "post-1")
		require.NoError(t, err)
		assert.Equal(t, "local newer", rec.Fields["text"])
	})
}
