// Package postgres implements the system-of-record backend on top of a
// PostgreSQL connection pool.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/storefront-labs/shopmirror/internal/core/domain"
	"github.com/storefront-labs/shopmirror/internal/core/ports/driven"
)

// Backend is a PostgreSQL implementation of driven.Backend. Records live in
// a single mirror_records table keyed by (collection, key).
type Backend struct {
	pool *pgxpool.Pool
}

var _ driven.Backend = (*Backend)(nil)

// New creates a Backend from a connection string and verifies connectivity.
func New(ctx context.Context, connString string) (*Backend, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parsing postgres config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("creating postgres pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}

	b := &Backend{pool: pool}
	if err := b.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return b, nil
}

// Close releases the connection pool.
func (b *Backend) Close() {
	b.pool.Close()
}

func (b *Backend) ensureSchema(ctx context.Context) error {
	_, err := b.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS mirror_records (
			collection TEXT NOT NULL,
			key TEXT NOT NULL,
			owner_id TEXT NOT NULL,
			parent_key TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT '',
			updated_at TIMESTAMPTZ NOT NULL,
			fields JSONB,
			change JSONB,
			PRIMARY KEY (collection, key)
		);
		CREATE INDEX IF NOT EXISTS idx_mirror_records_owner
			ON mirror_records (collection, owner_id, updated_at);
	`)
	if err != nil {
		return fmt.Errorf("ensuring schema: %w", err)
	}
	return nil
}

// UpsertRecords writes records by primary key in one transaction.
func (b *Backend) UpsertRecords(ctx context.Context, collection domain.Collection, records []domain.Record) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := b.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrBackendUnavailable, err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	for _, rec := range records {
		if err := upsertTx(ctx, tx, collection, rec); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing upsert: %w", err)
	}
	return nil
}

// FetchSince returns records for an owner modified at or after since.
func (b *Backend) FetchSince(ctx context.Context, collection domain.Collection, ownerID string, since time.Time) ([]domain.Record, error) {
	rows, err := b.pool.Query(ctx, `
		SELECT key, owner_id, parent_key, status, updated_at, fields, change
		FROM mirror_records
		WHERE collection = $1 AND owner_id = $2 AND updated_at >= $3
		ORDER BY updated_at ASC
	`, string(collection), ownerID, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("querying records: %w", err)
	}
	defer rows.Close()

	var records []domain.Record
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

// FlushBatch applies queued mutations one by one and returns a per-item
// verdict. A connection-level failure aborts the batch; items not yet
// attempted carry no result and stay queued.
func (b *Backend) FlushBatch(ctx context.Context, items []domain.QueueItem) ([]domain.FlushResult, error) {
	results := make([]domain.FlushResult, 0, len(items))

	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		err := b.applyItem(ctx, item)
		if err != nil && isConnectionErr(err) {
			return results, fmt.Errorf("%w: %w", domain.ErrBackendUnavailable, err)
		}

		result := domain.FlushResult{ID: item.ID, OK: err == nil}
		if err != nil {
			result.Error = err.Error()
		}
		results = append(results, result)
	}

	return results, nil
}

// Ping reports whether the backend is currently reachable.
func (b *Backend) Ping(ctx context.Context) error {
	if err := b.pool.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrBackendUnavailable, err)
	}
	return nil
}

func (b *Backend) applyItem(ctx context.Context, item domain.QueueItem) error {
	switch item.Operation {
	case domain.OpUpsert:
		rec, err := recordFromPayload(item)
		if err != nil {
			return err
		}
		tx, err := b.pool.Begin(ctx)
		if err != nil {
			return err
		}
		defer tx.Rollback(ctx) //nolint:errcheck
		if err := upsertTx(ctx, tx, item.Collection, *rec); err != nil {
			return err
		}
		return tx.Commit(ctx)

	case domain.OpDelete:
		_, err := b.pool.Exec(ctx,
			"DELETE FROM mirror_records WHERE collection = $1 AND key = $2",
			string(item.Collection), item.Key)
		return err

	default:
		return fmt.Errorf("%w: unknown operation %q", domain.ErrInvalidInput, item.Operation)
	}
}

func upsertTx(ctx context.Context, tx pgx.Tx, collection domain.Collection, rec domain.Record) error {
	fieldsJSON, err := json.Marshal(rec.Fields)
	if err != nil {
		return fmt.Errorf("marshalling fields: %w", err)
	}
	changeJSON, err := json.Marshal(rec.Change)
	if err != nil {
		return fmt.Errorf("marshalling change log: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO mirror_records (collection, key, owner_id, parent_key, status, updated_at, fields, change)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (collection, key) DO UPDATE SET
			owner_id = EXCLUDED.owner_id,
			parent_key = EXCLUDED.parent_key,
			status = EXCLUDED.status,
			updated_at = EXCLUDED.updated_at,
			fields = EXCLUDED.fields,
			change = EXCLUDED.change
		WHERE mirror_records.updated_at <= EXCLUDED.updated_at
	`, string(collection), rec.Key, rec.OwnerID, rec.ParentKey, rec.Status,
		rec.UpdatedAt.UTC(), fieldsJSON, changeJSON)
	if err != nil {
		return fmt.Errorf("upserting record: %w", err)
	}
	return nil
}

func scanRecord(rows pgx.Rows) (*domain.Record, error) {
	var rec domain.Record
	var fieldsJSON, changeJSON []byte

	if err := rows.Scan(&rec.Key, &rec.OwnerID, &rec.ParentKey, &rec.Status,
		&rec.UpdatedAt, &fieldsJSON, &changeJSON); err != nil {
		return nil, fmt.Errorf("scanning record: %w", err)
	}
	rec.UpdatedAt = rec.UpdatedAt.UTC()

	if len(fieldsJSON) > 0 {
		if err := json.Unmarshal(fieldsJSON, &rec.Fields); err != nil {
			return nil, fmt.Errorf("unmarshalling fields: %w", err)
		}
	}
	if len(changeJSON) > 0 && string(changeJSON) != "null" {
		var change domain.ChangeLog
		if err := json.Unmarshal(changeJSON, &change); err != nil {
			return nil, fmt.Errorf("unmarshalling change log: %w", err)
		}
		rec.Change = &change
	}
	return &rec, nil
}

// recordFromPayload rebuilds a record from the flat payload shape queued
// items carry: key, owner_id, status, parent_key and updated_at at the top
// level, everything else is record fields.
func recordFromPayload(item domain.QueueItem) (*domain.Record, error) {
	rec := domain.Record{
		Key:     item.Key,
		OwnerID: item.OwnerID,
	}

	fields := make(map[string]any, len(item.Payload))
	for k, v := range item.Payload {
		switch k {
		case "key":
			if s, ok := v.(string); ok && s != "" {
				rec.Key = s
			}
		case "owner_id":
			if s, ok := v.(string); ok && s != "" {
				rec.OwnerID = s
			}
		case "parent_key":
			rec.ParentKey, _ = v.(string)
		case "status":
			rec.Status, _ = v.(string)
		case "updated_at":
			s, ok := v.(string)
			if !ok {
				return nil, fmt.Errorf("%w: updated_at is not a string", domain.ErrInvalidInput)
			}
			t, err := time.Parse(time.RFC3339Nano, s)
			if err != nil {
				return nil, fmt.Errorf("%w: parsing updated_at: %v", domain.ErrInvalidInput, err)
			}
			rec.UpdatedAt = t
		default:
			fields[k] = v
		}
	}
	rec.Fields = fields

	if rec.Key == "" {
		return nil, fmt.Errorf("%w: payload has no key", domain.ErrInvalidInput)
	}
	return &rec, nil
}

// isConnectionErr distinguishes transport failures from per-row rejections.
func isConnectionErr(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	var pgErr *pgconn.PgError
	return !errors.As(err, &pgErr) && err != nil
}
