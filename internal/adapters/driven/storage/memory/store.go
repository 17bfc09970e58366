// Package memory provides in-memory implementations of the local store
// ports. Used in tests and as the fallback replica when the SQLite store
// cannot be opened.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/storefront-labs/shopmirror/internal/core/domain"
	"github.com/storefront-labs/shopmirror/internal/core/ports/driven"
)

// RecordStore is an in-memory implementation of driven.RecordStore.
type RecordStore struct {
	mu      sync.RWMutex
	records map[domain.Collection]map[string]domain.Record
}

var _ driven.RecordStore = (*RecordStore)(nil)

// NewRecordStore creates an empty in-memory record store.
func NewRecordStore() *RecordStore {
	return &RecordStore{
		records: make(map[domain.Collection]map[string]domain.Record),
	}
}

func (s *RecordStore) collection(c domain.Collection) map[string]domain.Record {
	if s.records[c] == nil {
		s.records[c] = make(map[string]domain.Record)
	}
	return s.records[c]
}

// PutOverwrite blindly upserts records by primary key.
func (s *RecordStore) PutOverwrite(_ context.Context, collection domain.Collection, records []domain.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	bucket := s.collection(collection)
	for _, rec := range records {
		bucket[rec.Key] = rec.Clone()
	}
	return nil
}

// PutMerge upserts with timestamp-gated shallow merge semantics.
func (s *RecordStore) PutMerge(_ context.Context, collection domain.Collection, records []domain.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	bucket := s.collection(collection)
	for _, rec := range records {
		existing, ok := bucket[rec.Key]
		if !ok {
			bucket[rec.Key] = rec.Clone()
			continue
		}
		merged, applied := domain.MergeRecords(existing, rec)
		if !applied {
			continue
		}
		bucket[rec.Key] = merged.Clone()
	}
	return nil
}

// Get retrieves a record by primary key.
func (s *RecordStore) Get(_ context.Context, collection domain.Collection, key string) (*domain.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[collection][key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	clone := rec.Clone()
	return &clone, nil
}

// ScanAll returns every record in a collection.
func (s *RecordStore) ScanAll(_ context.Context, collection domain.Collection) ([]domain.Record, error) {
	return s.scan(collection, func(domain.Record) bool { return true }), nil
}

// ScanByOwner returns records owned by the given account.
func (s *RecordStore) ScanByOwner(_ context.Context, collection domain.Collection, ownerID string) ([]domain.Record, error) {
	return s.scan(collection, func(r domain.Record) bool { return r.OwnerID == ownerID }), nil
}

// ScanByParent returns child records of the given parent key.
func (s *RecordStore) ScanByParent(_ context.Context, collection domain.Collection, parentKey string) ([]domain.Record, error) {
	return s.scan(collection, func(r domain.Record) bool { return r.ParentKey == parentKey }), nil
}

// ScanByStatus returns records with the given status.
func (s *RecordStore) ScanByStatus(_ context.Context, collection domain.Collection, status string) ([]domain.Record, error) {
	return s.scan(collection, func(r domain.Record) bool { return r.Status == status }), nil
}

// ClearByOwner deletes an owner's rows from the given collections.
func (s *RecordStore) ClearByOwner(_ context.Context, ownerID string, collections []domain.Collection) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, collection := range collections {
		bucket := s.records[collection]
		for key, rec := range bucket {
			if rec.OwnerID == ownerID {
				delete(bucket, key)
			}
		}
	}
	return nil
}

func (s *RecordStore) scan(collection domain.Collection, keep func(domain.Record) bool) []domain.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Record
	for _, rec := range s.records[collection] {
		if keep(rec) {
			out = append(out, rec.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// OutboxStore is an in-memory implementation of driven.OutboxStore.
type OutboxStore struct {
	mu     sync.Mutex
	nextID int64
	items  []domain.QueueItem
}

var _ driven.OutboxStore = (*OutboxStore)(nil)

// NewOutboxStore creates an empty in-memory outbox.
func NewOutboxStore() *OutboxStore {
	return &OutboxStore{nextID: 1}
}

// Enqueue appends an item and assigns its ID.
func (s *OutboxStore) Enqueue(_ context.Context, item *domain.QueueItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	item.ID = s.nextID
	s.nextID++
	if item.EnqueuedAt.IsZero() {
		item.EnqueuedAt = time.Now().UTC()
	}
	s.items = append(s.items, *item)
	return nil
}

// Pending returns queued items in enqueue order.
func (s *OutboxStore) Pending(_ context.Context, ownerID string) ([]domain.QueueItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.QueueItem
	for _, item := range s.items {
		if ownerID == "" || item.OwnerID == ownerID {
			out = append(out, item)
		}
	}
	return out, nil
}

// Delete removes the items with the given ids.
func (s *OutboxStore) Delete(_ context.Context, ids []int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	drop := make(map[int64]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}
	kept := s.items[:0]
	for _, item := range s.items {
		if !drop[item.ID] {
			kept = append(kept, item)
		}
	}
	s.items = kept
	return nil
}

// MarkAttempt increments the attempt counter for the given ids.
func (s *OutboxStore) MarkAttempt(_ context.Context, ids []int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	mark := make(map[int64]bool, len(ids))
	for _, id := range ids {
		mark[id] = true
	}
	for i := range s.items {
		if mark[s.items[i].ID] {
			s.items[i].Attempts++
		}
	}
	return nil
}

// SnapshotStore is an in-memory implementation of driven.SnapshotStore.
type SnapshotStore struct {
	mu    sync.Mutex
	snaps []domain.Snapshot
}

var _ driven.SnapshotStore = (*SnapshotStore)(nil)

// NewSnapshotStore creates an empty in-memory snapshot store.
func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{}
}

// Save appends a snapshot.
func (s *SnapshotStore) Save(_ context.Context, snap domain.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snaps = append(s.snaps, snap)
	return nil
}

// List returns snapshots for an owner, newest first.
func (s *SnapshotStore) List(_ context.Context, ownerID string) ([]domain.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.Snapshot
	for _, snap := range s.snaps {
		if snap.OwnerID == ownerID {
			out = append(out, snap)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// Latest returns the newest snapshot for an owner.
func (s *SnapshotStore) Latest(ctx context.Context, ownerID string) (*domain.Snapshot, error) {
	snaps, err := s.List(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if len(snaps) == 0 {
		return nil, domain.ErrNotFound
	}
	return &snaps[0], nil
}

// MetaStore is an in-memory implementation of driven.MetaStore.
type MetaStore struct {
	mu     sync.RWMutex
	values map[string]string
}

var _ driven.MetaStore = (*MetaStore)(nil)

// NewMetaStore creates an empty in-memory meta store.
func NewMetaStore() *MetaStore {
	return &MetaStore{values: make(map[string]string)}
}

// Get retrieves a meta value.
func (s *MetaStore) Get(_ context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	value, ok := s.values[key]
	if !ok {
		return "", domain.ErrNotFound
	}
	return value, nil
}

// Set stores or replaces a meta value.
func (s *MetaStore) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}

// CredentialStore is an in-memory implementation of driven.CredentialStore.
type CredentialStore struct {
	mu       sync.Mutex
	sets     map[string]domain.CredentialSet
	usage    []domain.UsageEntry
	sessions map[string]domain.SyncSession
}

var _ driven.CredentialStore = (*CredentialStore)(nil)

// NewCredentialStore creates an empty in-memory credential store.
func NewCredentialStore() *CredentialStore {
	return &CredentialStore{
		sets:     make(map[string]domain.CredentialSet),
		sessions: make(map[string]domain.SyncSession),
	}
}

// GetSet returns the credential set for an account.
func (s *CredentialStore) GetSet(_ context.Context, accountID string) (*domain.CredentialSet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	set, ok := s.sets[accountID]
	if !ok || len(set.Credentials) == 0 {
		return nil, domain.ErrNoCredentials
	}
	out := set
	out.Credentials = append([]domain.Credential(nil), set.Credentials...)
	return &out, nil
}

// SaveSet stores or replaces the credential list for an account.
func (s *CredentialStore) SaveSet(_ context.Context, set domain.CredentialSet) error {
	if set.AccountID == "" {
		return domain.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	set.Credentials = append([]domain.Credential(nil), set.Credentials...)
	set.UpdatedAt = time.Now().UTC()
	s.sets[set.AccountID] = set
	return nil
}

// SetActiveIndex durably persists the rotation position.
func (s *CredentialStore) SetActiveIndex(_ context.Context, accountID string, index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	set, ok := s.sets[accountID]
	if !ok {
		return domain.ErrNoCredentials
	}
	set.ActiveIndex = index
	set.UpdatedAt = time.Now().UTC()
	s.sets[accountID] = set
	return nil
}

// RecordUsage appends a usage entry.
func (s *CredentialStore) RecordUsage(_ context.Context, entry domain.UsageEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.usage = append(s.usage, entry)
	return nil
}

// Usage returns a copy of all recorded usage entries.
func (s *CredentialStore) Usage() []domain.UsageEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.UsageEntry(nil), s.usage...)
}

// SaveSession stores or updates session aggregates.
func (s *CredentialStore) SaveSession(_ context.Context, session domain.SyncSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ID] = session
	return nil
}

// Sessions returns a copy of all saved sessions.
func (s *CredentialStore) Sessions() []domain.SyncSession {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.SyncSession, 0, len(s.sessions))
	for _, session := range s.sessions {
		out = append(out, session)
	}
	return out
}
