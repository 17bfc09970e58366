package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/storefront-labs/shopmirror/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/storefront-labs/shopmirror/internal/core/domain"
	"github.com/storefront-labs/shopmirror/internal/core/ports/driven"
)

// jsonNull is the JSON representation of null.
const jsonNull = "null"

// Store is a unified SQLite-based local replica that provides access to
// all local store interfaces through wrapper types.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore creates a new SQLite store at the specified data directory.
// If dataDir is empty, defaults to ~/.shopmirror/data/mirror.db.
// Callers should treat an error as domain.ErrLocalStoreUnavailable and
// degrade to direct-only mode rather than failing outright.
func NewStore(dataDir string) (*Store, error) {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".shopmirror", "data")
	}

	// Ensure directory exists
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "mirror.db")

	// Open database with WAL mode for better concurrency
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{
		db:   db,
		path: dbPath,
	}

	// Run migrations
	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// RecordStore returns a RecordStore interface backed by this store.
func (s *Store) RecordStore() driven.RecordStore {
	return &recordStore{store: s}
}

// OutboxStore returns an OutboxStore interface backed by this store.
func (s *Store) OutboxStore() driven.OutboxStore {
	return &outboxStore{store: s}
}

// SnapshotStore returns a SnapshotStore interface backed by this store.
func (s *Store) SnapshotStore() driven.SnapshotStore {
	return &snapshotStore{store: s}
}

// MetaStore returns a MetaStore interface backed by this store.
func (s *Store) MetaStore() driven.MetaStore {
	return &metaStore{store: s}
}

// CredentialStore returns a CredentialStore interface backed by this store.
func (s *Store) CredentialStore() driven.CredentialStore {
	return &credentialStore{store: s}
}

// migrate runs all pending migrations.
func (s *Store) migrate(fsys embed.FS) error {
	// Ensure schema_migrations table exists
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	// Get current version
	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	// Find all up migrations
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	// Sort and run migrations
	var upFiles []string
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasSuffix(name, ".up.sql") {
			upFiles = append(upFiles, name)
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		// Extract version number (e.g., "001_initial.up.sql" -> 1)
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue // Skip files that don't match pattern
		}

		if version <= currentVersion {
			continue // Already applied
		}

		// Read and execute migration
		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}

		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}

		if _, err := s.db.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
	}

	return nil
}

// ==================== Record Store ====================

// recordStore implements driven.RecordStore.
type recordStore struct {
	store *Store
}

var _ driven.RecordStore = (*recordStore)(nil)

// PutOverwrite blindly upserts records by primary key.
func (s *recordStore) PutOverwrite(ctx context.Context, collection domain.Collection, records []domain.Record) error {
	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	for _, rec := range records {
		if err := upsertRecord(ctx, tx, collection, rec); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// PutMerge upserts with timestamp-gated shallow merge semantics. Each
// incoming record is merged over the stored row via domain.MergeRecords;
// rows older than the stored one are silently discarded.
func (s *recordStore) PutMerge(ctx context.Context, collection domain.Collection, records []domain.Record) error {
	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	for _, rec := range records {
		existing, err := getRecordTx(ctx, tx, collection, rec.Key)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return err
		}

		next := rec
		if existing != nil {
			merged, applied := domain.MergeRecords(*existing, rec)
			if !applied {
				continue // Incoming is older than stored; expected, not an error.
			}
			next = merged
		}

		if err := upsertRecord(ctx, tx, collection, next); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// Get retrieves a record by primary key.
func (s *recordStore) Get(ctx context.Context, collection domain.Collection, key string) (*domain.Record, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT key, owner_id, parent_key, status, updated_at, fields, change
		FROM records WHERE collection = ? AND key = ?
	`, string(collection), key)

	return scanRecordRow(row)
}

// ScanAll returns every record in a collection.
func (s *recordStore) ScanAll(ctx context.Context, collection domain.Collection) ([]domain.Record, error) {
	return s.scan(ctx, `
		SELECT key, owner_id, parent_key, status, updated_at, fields, change
		FROM records WHERE collection = ?
	`, string(collection))
}

// ScanByOwner returns records owned by the given account.
func (s *recordStore) ScanByOwner(ctx context.Context, collection domain.Collection, ownerID string) ([]domain.Record, error) {
	return s.scan(ctx, `
		SELECT key, owner_id, parent_key, status, updated_at, fields, change
		FROM records WHERE collection = ? AND owner_id = ?
	`, string(collection), ownerID)
}

// ScanByParent returns child records of the given parent key.
func (s *recordStore) ScanByParent(ctx context.Context, collection domain.Collection, parentKey string) ([]domain.Record, error) {
	return s.scan(ctx, `
		SELECT key, owner_id, parent_key, status, updated_at, fields, change
		FROM records WHERE collection = ? AND parent_key = ?
	`, string(collection), parentKey)
}

// ScanByStatus returns records with the given status.
func (s *recordStore) ScanByStatus(ctx context.Context, collection domain.Collection, status string) ([]domain.Record, error) {
	return s.scan(ctx, `
		SELECT key, owner_id, parent_key, status, updated_at, fields, change
		FROM records WHERE collection = ? AND status = ?
	`, string(collection), status)
}

// ClearByOwner deletes an owner's rows from the given record collections.
// Outbox, snapshots and meta rows live in other tables and are untouched.
func (s *recordStore) ClearByOwner(ctx context.Context, ownerID string, collections []domain.Collection) error {
	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	for _, collection := range collections {
		if _, err := tx.ExecContext(ctx,
			"DELETE FROM records WHERE collection = ? AND owner_id = ?",
			string(collection), ownerID); err != nil {
			return fmt.Errorf("clearing %s: %w", collection, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

func (s *recordStore) scan(ctx context.Context, query string, args ...any) ([]domain.Record, error) {
	rows, err := s.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying records: %w", err)
	}
	defer rows.Close()

	var records []domain.Record //nolint:prealloc // size unknown from query
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating records: %w", err)
	}

	return records, nil
}

// upsertRecord writes one record inside a transaction.
func upsertRecord(ctx context.Context, tx *sql.Tx, collection domain.Collection, rec domain.Record) error {
	fieldsJSON, err := json.Marshal(rec.Fields)
	if err != nil {
		return fmt.Errorf("marshalling fields: %w", err)
	}
	changeJSON, err := json.Marshal(rec.Change)
	if err != nil {
		return fmt.Errorf("marshalling change log: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO records (collection, key, owner_id, parent_key, status, updated_at, fields, change)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(collection, key) DO UPDATE SET
			owner_id = excluded.owner_id,
			parent_key = excluded.parent_key,
			status = excluded.status,
			updated_at = excluded.updated_at,
			fields = excluded.fields,
			change = excluded.change
	`, string(collection), rec.Key, rec.OwnerID, rec.ParentKey, rec.Status,
		rec.UpdatedAt.UTC(), string(fieldsJSON), string(changeJSON))

	if err != nil {
		return fmt.Errorf("saving record: %w", err)
	}
	return nil
}

// getRecordTx reads one record inside a transaction.
func getRecordTx(ctx context.Context, tx *sql.Tx, collection domain.Collection, key string) (*domain.Record, error) {
	row := tx.QueryRowContext(ctx, `
		SELECT key, owner_id, parent_key, status, updated_at, fields, change
		FROM records WHERE collection = ? AND key = ?
	`, string(collection), key)

	return scanRecordRow(row)
}

// rowScanner covers *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecordFrom(scanner rowScanner) (*domain.Record, error) {
	var rec domain.Record
	var updatedAt sql.NullTime
	var fieldsJSON string
	var changeJSON sql.NullString

	if err := scanner.Scan(&rec.Key, &rec.OwnerID, &rec.ParentKey, &rec.Status,
		&updatedAt, &fieldsJSON, &changeJSON); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning record: %w", err)
	}

	if updatedAt.Valid {
		rec.UpdatedAt = updatedAt.Time.UTC()
	}
	if fieldsJSON != "" && fieldsJSON != jsonNull {
		if err := json.Unmarshal([]byte(fieldsJSON), &rec.Fields); err != nil {
			return nil, fmt.Errorf("unmarshalling fields: %w", err)
		}
	}
	if changeJSON.Valid && changeJSON.String != jsonNull && changeJSON.String != "" {
		var change domain.ChangeLog
		if err := json.Unmarshal([]byte(changeJSON.String), &change); err != nil {
			return nil, fmt.Errorf("unmarshalling change log: %w", err)
		}
		rec.Change = &change
	}

	return &rec, nil
}

func scanRecord(rows *sql.Rows) (*domain.Record, error) {
	return scanRecordFrom(rows)
}

func scanRecordRow(row *sql.Row) (*domain.Record, error) {
	return scanRecordFrom(row)
}

// ==================== Outbox Store ====================

// outboxStore implements driven.OutboxStore.
type outboxStore struct {
	store *Store
}

var _ driven.OutboxStore = (*outboxStore)(nil)

// Enqueue appends an item and assigns its ID.
func (s *outboxStore) Enqueue(ctx context.Context, item *domain.QueueItem) error {
	payloadJSON, err := json.Marshal(item.Payload)
	if err != nil {
		return fmt.Errorf("marshalling payload: %w", err)
	}

	if item.EnqueuedAt.IsZero() {
		item.EnqueuedAt = time.Now().UTC()
	}

	res, err := s.store.db.ExecContext(ctx, `
		INSERT INTO outbox (owner_id, collection, operation, key, payload, enqueued_at, attempts)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, item.OwnerID, string(item.Collection), item.Operation, item.Key,
		string(payloadJSON), item.EnqueuedAt.UTC(), item.Attempts)
	if err != nil {
		return fmt.Errorf("enqueueing item: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading item id: %w", err)
	}
	item.ID = id
	return nil
}

// Pending returns queued items in enqueue order.
func (s *outboxStore) Pending(ctx context.Context, ownerID string) ([]domain.QueueItem, error) {
	query := `
		SELECT id, owner_id, collection, operation, key, payload, enqueued_at, attempts
		FROM outbox ORDER BY id
	`
	args := []any{}
	if ownerID != "" {
		query = `
			SELECT id, owner_id, collection, operation, key, payload, enqueued_at, attempts
			FROM outbox WHERE owner_id = ? ORDER BY id
		`
		args = append(args, ownerID)
	}

	rows, err := s.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying outbox: %w", err)
	}
	defer rows.Close()

	var items []domain.QueueItem //nolint:prealloc // size unknown from query
	for rows.Next() {
		var item domain.QueueItem
		var collection string
		var payloadJSON sql.NullString
		var enqueuedAt sql.NullTime
		if err := rows.Scan(&item.ID, &item.OwnerID, &collection, &item.Operation,
			&item.Key, &payloadJSON, &enqueuedAt, &item.Attempts); err != nil {
			return nil, fmt.Errorf("scanning outbox item: %w", err)
		}
		item.Collection = domain.Collection(collection)
		if enqueuedAt.Valid {
			item.EnqueuedAt = enqueuedAt.Time.UTC()
		}
		if payloadJSON.Valid && payloadJSON.String != jsonNull && payloadJSON.String != "" {
			if err := json.Unmarshal([]byte(payloadJSON.String), &item.Payload); err != nil {
				return nil, fmt.Errorf("unmarshalling payload: %w", err)
			}
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating outbox: %w", err)
	}

	return items, nil
}

// Delete removes the items with the given ids.
func (s *outboxStore) Delete(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}

	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	_, err := s.store.db.ExecContext(ctx,
		"DELETE FROM outbox WHERE id IN ("+placeholders+")", args...)
	if err != nil {
		return fmt.Errorf("deleting outbox items: %w", err)
	}
	return nil
}

// MarkAttempt increments the attempt counter for the given ids.
func (s *outboxStore) MarkAttempt(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}

	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	_, err := s.store.db.ExecContext(ctx,
		"UPDATE outbox SET attempts = attempts + 1 WHERE id IN ("+placeholders+")", args...)
	if err != nil {
		return fmt.Errorf("marking attempts: %w", err)
	}
	return nil
}

// ==================== Snapshot Store ====================

// snapshotStore implements driven.SnapshotStore.
type snapshotStore struct {
	store *Store
}

var _ driven.SnapshotStore = (*snapshotStore)(nil)

// Save appends a snapshot.
func (s *snapshotStore) Save(ctx context.Context, snap domain.Snapshot) error {
	countsJSON, err := json.Marshal(snap.Counts)
	if err != nil {
		return fmt.Errorf("marshalling counts: %w", err)
	}

	_, err = s.store.db.ExecContext(ctx, `
		INSERT INTO snapshots (id, owner_id, created_at, counts, notes)
		VALUES (?, ?, ?, ?, ?)
	`, snap.ID, snap.OwnerID, snap.CreatedAt.UTC(), string(countsJSON), snap.Notes)
	if err != nil {
		return fmt.Errorf("saving snapshot: %w", err)
	}
	return nil
}

// List returns snapshots for an owner, newest first.
func (s *snapshotStore) List(ctx context.Context, ownerID string) ([]domain.Snapshot, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT id, owner_id, created_at, counts, notes
		FROM snapshots WHERE owner_id = ? ORDER BY created_at DESC
	`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("querying snapshots: %w", err)
	}
	defer rows.Close()

	var snaps []domain.Snapshot //nolint:prealloc // size unknown from query
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		snaps = append(snaps, *snap)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating snapshots: %w", err)
	}

	return snaps, nil
}

// Latest returns the newest snapshot for an owner.
func (s *snapshotStore) Latest(ctx context.Context, ownerID string) (*domain.Snapshot, error) {
	snaps, err := s.List(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if len(snaps) == 0 {
		return nil, domain.ErrNotFound
	}
	return &snaps[0], nil
}

func scanSnapshot(rows *sql.Rows) (*domain.Snapshot, error) {
	var snap domain.Snapshot
	var createdAt sql.NullTime
	var countsJSON string

	if err := rows.Scan(&snap.ID, &snap.OwnerID, &createdAt, &countsJSON, &snap.Notes); err != nil {
		return nil, fmt.Errorf("scanning snapshot: %w", err)
	}
	if createdAt.Valid {
		snap.CreatedAt = createdAt.Time.UTC()
	}
	if countsJSON != "" && countsJSON != jsonNull {
		if err := json.Unmarshal([]byte(countsJSON), &snap.Counts); err != nil {
			return nil, fmt.Errorf("unmarshalling counts: %w", err)
		}
	}
	return &snap, nil
}

// ==================== Meta Store ====================

// metaStore implements driven.MetaStore.
type metaStore struct {
	store *Store
}

var _ driven.MetaStore = (*metaStore)(nil)

// Get retrieves a meta value.
func (s *metaStore) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := s.store.db.QueryRowContext(ctx,
		"SELECT value FROM meta WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", domain.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("reading meta %s: %w", key, err)
	}
	return value, nil
}

// Set stores or replaces a meta value.
func (s *metaStore) Set(ctx context.Context, key, value string) error {
	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO meta (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("writing meta %s: %w", key, err)
	}
	return nil
}

// ==================== Credential Store ====================

// credentialStore implements driven.CredentialStore.
type credentialStore struct {
	store *Store
}

var _ driven.CredentialStore = (*credentialStore)(nil)

// GetSet returns the credential set for an account.
func (s *credentialStore) GetSet(ctx context.Context, accountID string) (*domain.CredentialSet, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT account_id, tokens, active_index, updated_at
		FROM credentials WHERE account_id = ?
	`, accountID)

	var set domain.CredentialSet
	var tokensJSON string
	var updatedAt sql.NullTime
	if err := row.Scan(&set.AccountID, &tokensJSON, &set.ActiveIndex, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNoCredentials
		}
		return nil, fmt.Errorf("scanning credentials: %w", err)
	}

	if err := json.Unmarshal([]byte(tokensJSON), &set.Credentials); err != nil {
		return nil, fmt.Errorf("unmarshalling tokens: %w", err)
	}
	if len(set.Credentials) == 0 {
		return nil, domain.ErrNoCredentials
	}
	if updatedAt.Valid {
		set.UpdatedAt = updatedAt.Time.UTC()
	}
	return &set, nil
}

// SaveSet stores or replaces the credential list for an account.
func (s *credentialStore) SaveSet(ctx context.Context, set domain.CredentialSet) error {
	if set.AccountID == "" {
		return domain.ErrInvalidInput
	}

	tokensJSON, err := json.Marshal(set.Credentials)
	if err != nil {
		return fmt.Errorf("marshalling tokens: %w", err)
	}

	_, err = s.store.db.ExecContext(ctx, `
		INSERT INTO credentials (account_id, tokens, active_index, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(account_id) DO UPDATE SET
			tokens = excluded.tokens,
			active_index = excluded.active_index,
			updated_at = excluded.updated_at
	`, set.AccountID, string(tokensJSON), set.ActiveIndex, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("saving credentials: %w", err)
	}
	return nil
}

// SetActiveIndex durably persists the rotation position.
func (s *credentialStore) SetActiveIndex(ctx context.Context, accountID string, index int) error {
	res, err := s.store.db.ExecContext(ctx, `
		UPDATE credentials SET active_index = ?, updated_at = ? WHERE account_id = ?
	`, index, time.Now().UTC(), accountID)
	if err != nil {
		return fmt.Errorf("persisting active index: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.ErrNoCredentials
	}
	return nil
}

// RecordUsage appends a usage entry.
func (s *credentialStore) RecordUsage(ctx context.Context, entry domain.UsageEntry) error {
	ok := 0
	if entry.OK {
		ok = 1
	}
	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO credential_usage (account_id, action, credential_index, item_count, ok, at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, entry.AccountID, entry.Action, entry.CredentialIndex, entry.ItemCount, ok, entry.At.UTC())
	if err != nil {
		return fmt.Errorf("recording usage: %w", err)
	}
	return nil
}

// SaveSession stores or updates session aggregates.
func (s *credentialStore) SaveSession(ctx context.Context, session domain.SyncSession) error {
	failed := 0
	if session.Failed {
		failed = 1
	}
	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO sync_sessions (id, account_id, started_at, ended_at, calls, items, credentials_used, failed)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			ended_at = excluded.ended_at,
			calls = excluded.calls,
			items = excluded.items,
			credentials_used = excluded.credentials_used,
			failed = excluded.failed
	`, session.ID, session.AccountID, session.StartedAt.UTC(), session.EndedAt.UTC(),
		session.Calls, session.Items, session.CredentialsUsed, failed)
	if err != nil {
		return fmt.Errorf("saving session: %w", err)
	}
	return nil
}
