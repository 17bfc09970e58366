package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/storefront-labs/shopmirror/internal/core/domain"
	"github.com/storefront-labs/shopmirror/internal/core/ports/driven"
	"github.com/storefront-labs/shopmirror/internal/core/ports/driving"
	"github.com/storefront-labs/shopmirror/internal/logger"
)

// Ensure MirrorService implements the interface.
var _ driving.MirrorOrchestrator = (*MirrorService)(nil)

// MirrorService coordinates one mirror run: collect upstream items, extract
// product records, diff against prior state, merge into the local store and
// write through to the system of record, queueing for later when it is
// unreachable.
type MirrorService struct {
	records   driven.RecordStore
	snapshots driven.SnapshotStore
	meta      driven.MetaStore
	creds     driven.CredentialStore
	upstream  driven.Upstream
	extractor driven.Extractor
	backend   driven.Backend
	flusher   driving.FlushCoordinator
	classify  Classifier

	collectorOpts []CollectorOption

	// Status tracking
	mu     sync.RWMutex
	active map[string]*driving.MirrorStatus
}

// NewMirrorService creates a mirror orchestrator. records, snapshots and
// meta may be nil when the local store is unavailable; the service then
// degrades to direct-only mode (no offline capability, no change tracking
// against prior local state).
func NewMirrorService(
	records driven.RecordStore,
	snapshots driven.SnapshotStore,
	meta driven.MetaStore,
	creds driven.CredentialStore,
	upstream driven.Upstream,
	extractor driven.Extractor,
	backend driven.Backend,
	flusher driving.FlushCoordinator,
	classify Classifier,
	collectorOpts ...CollectorOption,
) *MirrorService {
	return &MirrorService{
		records:       records,
		snapshots:     snapshots,
		meta:          meta,
		creds:         creds,
		upstream:      upstream,
		extractor:     extractor,
		backend:       backend,
		flusher:       flusher,
		classify:      classify,
		collectorOpts: collectorOpts,
		active:        make(map[string]*driving.MirrorStatus),
	}
}

// Mirror runs the pipeline for one account.
//
//nolint:gocyclo // Orchestration function with necessary sequential steps
func (s *MirrorService) Mirror(ctx context.Context, accountID string, wanted int) error {
	status, err := s.begin(accountID)
	if err != nil {
		return err
	}
	defer s.clearStatus(accountID)

	rotation := NewRotationClient(accountID, s.creds, s.classify, func(f domain.Failover) {
		logger.Info("Credential failover %d -> %d (%s)", f.FromIndex, f.ToIndex, f.Kind)
	})
	collector := NewCollector(rotation, s.upstream, s.collectorOpts...)

	rotation.StartSession()
	failed := false
	defer func() { rotation.EndSession(ctx, failed) }()

	logger.Info("Starting mirror for account %s", accountID)

	items, err := collector.Collect(ctx, wanted)
	if err != nil {
		failed = true
		return fmt.Errorf("collect: %w", err)
	}
	status.ItemsCollected = len(items)

	if err := s.ensureCleanSlate(ctx, accountID); err != nil {
		failed = true
		return err
	}

	now := time.Now().UTC()
	posts, orders := s.buildRecords(ctx, accountID, items, now)
	products := s.extractProducts(ctx, accountID, items, status)
	orders = append(orders, s.detectOrderDeletions(ctx, collector, items, now)...)

	counts := map[domain.Collection]int{
		domain.CollectionPosts:    len(posts),
		domain.CollectionProducts: len(products),
		domain.CollectionOrders:   len(orders),
	}
	s.writeRecords(ctx, domain.CollectionPosts, posts, status)
	s.writeRecords(ctx, domain.CollectionProducts, products, status)
	s.writeRecords(ctx, domain.CollectionOrders, orders, status)

	s.finishRun(ctx, accountID, now, counts)

	logger.Info("Mirror complete: %d items, %d records, %d queued, %d errors",
		status.ItemsCollected, status.RecordsWritten, status.Queued, status.ErrorCount)
	status.Running = false
	return nil
}

// Status returns the mirror status for an account.
func (s *MirrorService) Status(_ context.Context, accountID string) (*driving.MirrorStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if status, ok := s.active[accountID]; ok {
		// Return a copy to avoid race conditions
		copied := *status
		return &copied, nil
	}

	// Not running - return idle status
	return &driving.MirrorStatus{AccountID: accountID}, nil
}

// begin registers an active run, rejecting concurrent runs per account.
func (s *MirrorService) begin(accountID string) (*driving.MirrorStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.active[accountID]; ok && st.Running {
		return nil, domain.ErrSyncInProgress
	}
	status := &driving.MirrorStatus{AccountID: accountID, Running: true}
	s.active[accountID] = status
	return status, nil
}

func (s *MirrorService) clearStatus(accountID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.active, accountID)
}

// ensureCleanSlate clears the account's record collections exactly once, on
// the first-ever backup, so a re-seed never mixes with stale rows. Outbox,
// snapshots and meta entries survive.
func (s *MirrorService) ensureCleanSlate(ctx context.Context, accountID string) error {
	if s.records == nil || s.meta == nil {
		return nil
	}
	_, err := s.meta.Get(ctx, ownerMetaKey(domain.MetaLastBackupAt, accountID))
	if err == nil {
		return nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("read backup marker: %w", err)
	}

	logger.Info("First backup for %s: clearing record collections", accountID)
	if err := s.records.ClearByOwner(ctx, accountID, domain.RecordCollections()); err != nil {
		return fmt.Errorf("clear by owner: %w", err)
	}
	return nil
}

// buildRecords turns collected items into post and order records, diffing
// each against prior local state so unchanged items produce no new version.
func (s *MirrorService) buildRecords(
	ctx context.Context,
	accountID string,
	items []domain.RawItem,
	now time.Time,
) (posts, orders []domain.Record) {
	for _, item := range items {
		collection := domain.CollectionPosts
		if item.Kind == domain.ItemComment {
			collection = domain.CollectionOrders
		}

		rec := recordFromItem(accountID, item)
		rec.Change, _ = DiffChange(s.priorChange(ctx, collection, item.Key), item.Text, domain.ChangeUpdated, now)

		if item.Kind == domain.ItemComment {
			orders = append(orders, rec)
		} else {
			posts = append(posts, rec)
		}
	}
	return posts, orders
}

// extractProducts runs the extraction collaborator over post text. The
// collaborator is fallible and possibly slow; failures degrade to "no
// structured record produced" and are never propagated.
func (s *MirrorService) extractProducts(
	ctx context.Context,
	accountID string,
	items []domain.RawItem,
	status *driving.MirrorStatus,
) []domain.Record {
	if s.extractor == nil {
		return nil
	}

	var products []domain.Record
	for _, item := range items {
		if item.Kind != domain.ItemPost || item.Text == "" {
			continue
		}
		extracted, err := s.extractor.Extract(ctx, item.Text, item.PostedAt)
		if err != nil {
			status.ErrorCount++
			logger.Debug("Extraction failed for %s: %v", item.Key, err)
			continue
		}
		for i, product := range extracted {
			if product.Key == "" {
				product.Key = fmt.Sprintf("%s:product:%d", item.Key, i)
			}
			product.OwnerID = accountID
			product.ParentKey = item.Key
			if product.UpdatedAt.IsZero() {
				product.UpdatedAt = item.PostedAt
			}
			products = append(products, product)
		}
	}
	return products
}

// detectOrderDeletions treats the embedded recent-comment previews as the
// polled window and produces deletion diffs for recorded orders that have
// vanished from it. A post whose preview carried no comments at all gets its
// comment list polled directly, so a truncated preview is not mistaken for a
// mass deletion.
func (s *MirrorService) detectOrderDeletions(
	ctx context.Context,
	collector *Collector,
	items []domain.RawItem,
	now time.Time,
) []domain.Record {
	if s.records == nil {
		return nil
	}

	windows := make(map[string][]domain.RawItem)
	var postKeys []string
	for _, item := range items {
		switch {
		case item.Kind == domain.ItemPost:
			postKeys = append(postKeys, item.Key)
		case item.Kind == domain.ItemComment && item.ParentKey != "":
			windows[item.ParentKey] = append(windows[item.ParentKey], item)
		}
	}

	var deleted []domain.Record
	for _, parentKey := range postKeys {
		recorded, err := s.records.ScanByParent(ctx, domain.CollectionOrders, parentKey)
		if err != nil {
			logger.Debug("Scan orders for %s failed: %v", parentKey, err)
			continue
		}
		if len(recorded) == 0 {
			continue
		}
		window := windows[parentKey]
		if len(window) == 0 && collector != nil {
			window, err = collector.CollectChildren(ctx, parentKey, 0)
			if err != nil {
				logger.Debug("Refresh comments for %s failed: %v", parentKey, err)
				continue
			}
		}
		for _, rec := range DetectDeletions(recorded, window) {
			rec.Change, _ = DiffChange(rec.Change, "", domain.ChangeDeleted, now)
			rec.Status = string(domain.ChangeDeleted)
			rec.UpdatedAt = now
			deleted = append(deleted, rec)
		}
	}
	return deleted
}

// writeRecords merges records locally and writes them through to the system
// of record. When the backend is unreachable the mutations land in the
// outbox instead; a later flush drains them.
func (s *MirrorService) writeRecords(
	ctx context.Context,
	collection domain.Collection,
	records []domain.Record,
	status *driving.MirrorStatus,
) {
	if len(records) == 0 {
		return
	}

	if s.records != nil {
		if err := s.records.PutMerge(ctx, collection, records); err != nil {
			status.ErrorCount++
			logger.Warn("Local merge into %s failed: %v", collection, err)
		} else {
			status.RecordsWritten += len(records)
		}
	}

	direct := s.backend != nil && (s.flusher == nil || s.flusher.Reachability() == driving.ReachabilityHealthy)
	if direct {
		err := s.backend.UpsertRecords(ctx, collection, records)
		if err == nil {
			return
		}
		logger.Warn("Direct write to %s failed, queueing: %v", collection, err)
	}

	if s.flusher == nil {
		status.ErrorCount++
		return
	}
	for _, rec := range records {
		item := &domain.QueueItem{
			OwnerID:    rec.OwnerID,
			Collection: collection,
			Operation:  domain.OpUpsert,
			Key:        rec.Key,
			Payload:    recordPayload(rec),
		}
		if err := s.flusher.Enqueue(ctx, item); err != nil {
			status.ErrorCount++
			logger.Warn("Enqueue %s/%s failed: %v", collection, rec.Key, err)
			continue
		}
		status.Queued++
	}
}

// finishRun records the snapshot marker and advances the sync bookkeeping
// that bounds the next incremental pull.
func (s *MirrorService) finishRun(ctx context.Context, accountID string, now time.Time, counts map[domain.Collection]int) {
	if s.snapshots != nil {
		snap := domain.Snapshot{
			ID:        uuid.NewString(),
			OwnerID:   accountID,
			CreatedAt: now,
			Counts:    counts,
		}
		if err := s.snapshots.Save(ctx, snap); err != nil {
			logger.Warn("Failed to save snapshot: %v", err)
		}
	}
	if s.meta != nil {
		stamp := now.Format(time.RFC3339Nano)
		if err := s.meta.Set(ctx, ownerMetaKey(domain.MetaLastBackupAt, accountID), stamp); err != nil {
			logger.Warn("Failed to set backup marker: %v", err)
		}
		if err := s.meta.Set(ctx, ownerMetaKey(domain.MetaLastSyncAt, accountID), stamp); err != nil {
			logger.Warn("Failed to set sync marker: %v", err)
		}
	}
}

// Hydrate pulls records modified since the last sync from the system of
// record into the local replica. Used on startup and after reconnect to
// catch up on writes made by other producers.
func (s *MirrorService) Hydrate(ctx context.Context, accountID string) error {
	if s.records == nil || s.backend == nil {
		return nil
	}

	since := time.Time{}
	if s.meta != nil {
		if stamp, err := s.meta.Get(ctx, ownerMetaKey(domain.MetaLastSyncAt, accountID)); err == nil {
			if t, perr := time.Parse(time.RFC3339Nano, stamp); perr == nil {
				since = t
			}
		}
	}

	for _, collection := range domain.RecordCollections() {
		records, err := s.backend.FetchSince(ctx, collection, accountID, since)
		if err != nil {
			return fmt.Errorf("fetch %s: %w", collection, err)
		}
		if len(records) == 0 {
			continue
		}
		if err := s.records.PutMerge(ctx, collection, records); err != nil {
			return fmt.Errorf("merge %s: %w", collection, err)
		}
		logger.Debug("Hydrated %d records into %s", len(records), collection)
	}
	return nil
}

// priorChange loads the existing change log for a key, if any.
func (s *MirrorService) priorChange(ctx context.Context, collection domain.Collection, key string) *domain.ChangeLog {
	if s.records == nil {
		return nil
	}
	rec, err := s.records.Get(ctx, collection, key)
	if err != nil {
		return nil
	}
	return rec.Change
}

// recordFromItem maps a normalised upstream item onto a record.
func recordFromItem(accountID string, item domain.RawItem) domain.Record {
	fields := map[string]any{
		"text":        item.Text,
		"author_key":  item.AuthorKey,
		"author_name": item.AuthorName,
		"posted_at":   item.PostedAt.Format(time.RFC3339Nano),
	}
	if len(item.Media) > 0 {
		fields["media"] = item.Media
	}
	if item.ParentAuthor != "" {
		fields["parent_author"] = item.ParentAuthor
	}
	return domain.Record{
		Key:       item.Key,
		OwnerID:   accountID,
		ParentKey: item.ParentKey,
		Status:    "active",
		UpdatedAt: item.PostedAt,
		Fields:    fields,
	}
}

// recordPayload flattens a record into the payload shape the flush endpoint
// accepts.
func recordPayload(rec domain.Record) map[string]any {
	payload := make(map[string]any, len(rec.Fields)+4)
	for k, v := range rec.Fields {
		payload[k] = v
	}
	payload["key"] = rec.Key
	payload["owner_id"] = rec.OwnerID
	payload["status"] = rec.Status
	payload["updated_at"] = rec.UpdatedAt.Format(time.RFC3339Nano)
	if rec.ParentKey != "" {
		payload["parent_key"] = rec.ParentKey
	}
	return payload
}

func ownerMetaKey(key, accountID string) string {
	return key + ":" + accountID
}
