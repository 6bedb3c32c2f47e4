package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/vortexa-io/annvec/internal/encoding"
)

// Disk is a SQLite-backed append-only log: put appends (or updates in
// place), delete marks a tombstone, and Compact reclaims tombstoned rows,
// per §4.3. DSN tuning is carried verbatim from the teacher's store
// initialization.
type Disk struct {
	mu   sync.RWMutex
	path string
	db   *sql.DB
}

// NewDisk creates a Disk backend backed by the SQLite file at path. Call
// Init before use.
func NewDisk(path string) *Disk {
	return &Disk{path: path}
}

// Init opens the database, applies the teacher's WAL/synchronous/
// busy_timeout/cache_size tuning, and creates the records table.
func (d *Disk) Init(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_cache_size=-2000", d.path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("storage: open database: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(2 * time.Hour)

	if _, err := db.ExecContext(ctx, `PRAGMA foreign_keys = ON;`); err != nil {
		return fmt.Errorf("storage: enable foreign keys: %w", err)
	}

	const schema = `
	CREATE TABLE IF NOT EXISTS records (
		id TEXT PRIMARY KEY,
		vector BLOB NOT NULL,
		metadata TEXT,
		deleted INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_records_deleted ON records(deleted);
	`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("storage: create tables: %w", err)
	}

	d.db = db
	return nil
}

func encodeMetadata(m map[string]interface{}) ([]byte, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

func decodeMetadata(data []byte) (map[string]interface{}, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("storage: decode metadata: %w", err)
	}
	return m, nil
}

// Get returns the record stored under id, or ErrNotFound if absent or
// tombstoned.
func (d *Disk) Get(ctx context.Context, id string) (Record, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	row := d.db.QueryRowContext(ctx, `SELECT vector, metadata FROM records WHERE id = ? AND deleted = 0`, id)
	var vecBlob, metaBlob []byte
	if err := row.Scan(&vecBlob, &metaBlob); err != nil {
		if err == sql.ErrNoRows {
			return Record{}, ErrNotFound
		}
		return Record{}, fmt.Errorf("storage: get %q: %w", id, err)
	}

	vector, err := encoding.DecodeVector64(vecBlob)
	if err != nil {
		return Record{}, fmt.Errorf("storage: decode vector for %q: %w", id, err)
	}
	metadata, err := decodeMetadata(metaBlob)
	if err != nil {
		return Record{}, err
	}
	return Record{ID: id, Vector: vector, Metadata: metadata}, nil
}

// Put inserts rec, or revives/overwrites an existing (possibly tombstoned)
// row in place so insertion order is preserved across updates.
func (d *Disk) Put(ctx context.Context, rec Record) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	vecBlob, err := encoding.EncodeVector64(rec.Vector)
	if err != nil {
		return fmt.Errorf("storage: encode vector for %q: %w", rec.ID, err)
	}
	metaBlob, err := encodeMetadata(rec.Metadata)
	if err != nil {
		return fmt.Errorf("storage: encode metadata for %q: %w", rec.ID, err)
	}

	_, err = d.db.ExecContext(ctx, `
		INSERT INTO records (id, vector, metadata, deleted) VALUES (?, ?, ?, 0)
		ON CONFLICT(id) DO UPDATE SET vector = excluded.vector, metadata = excluded.metadata, deleted = 0
	`, rec.ID, vecBlob, metaBlob)
	if err != nil {
		return fmt.Errorf("storage: put %q: %w", rec.ID, err)
	}
	return nil
}

// Delete tombstones id. The row is physically removed only by Compact.
func (d *Disk) Delete(ctx context.Context, id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	res, err := d.db.ExecContext(ctx, `UPDATE records SET deleted = 1 WHERE id = ? AND deleted = 0`, id)
	if err != nil {
		return fmt.Errorf("storage: delete %q: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("storage: delete %q: %w", id, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Contains reports whether id is stored and not tombstoned.
func (d *Disk) Contains(ctx context.Context, id string) (bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var exists int
	err := d.db.QueryRowContext(ctx, `SELECT 1 FROM records WHERE id = ? AND deleted = 0`, id).Scan(&exists)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("storage: contains %q: %w", id, err)
	}
	return true, nil
}

// ListIDsInOrder returns every live ID in insertion (rowid) order.
func (d *Disk) ListIDsInOrder(ctx context.Context) ([]string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	rows, err := d.db.QueryContext(ctx, `SELECT id FROM records WHERE deleted = 0 ORDER BY rowid ASC`)
	if err != nil {
		return nil, fmt.Errorf("storage: list ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("storage: scan id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ScanPage returns up to pageSize live records starting after cursor (the
// rowid of the last-returned row; empty means start at the beginning).
func (d *Disk) ScanPage(ctx context.Context, pageSize int, cursor string) (Page, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	afterRowID := int64(0)
	if cursor != "" {
		v, err := strconv.ParseInt(cursor, 10, 64)
		if err != nil {
			return Page{}, fmt.Errorf("storage: invalid cursor %q", cursor)
		}
		afterRowID = v
	}

	rows, err := d.db.QueryContext(ctx, `
		SELECT rowid, id, vector, metadata FROM records
		WHERE deleted = 0 AND rowid > ? ORDER BY rowid ASC LIMIT ?
	`, afterRowID, pageSize+1)
	if err != nil {
		return Page{}, fmt.Errorf("storage: scan page: %w", err)
	}
	defer rows.Close()

	type fetched struct {
		rowID  int64
		record Record
	}
	var all []fetched
	for rows.Next() {
		var rowID int64
		var id string
		var vecBlob, metaBlob []byte
		if err := rows.Scan(&rowID, &id, &vecBlob, &metaBlob); err != nil {
			return Page{}, fmt.Errorf("storage: scan row: %w", err)
		}
		vector, err := encoding.DecodeVector64(vecBlob)
		if err != nil {
			return Page{}, fmt.Errorf("storage: decode vector for %q: %w", id, err)
		}
		metadata, err := decodeMetadata(metaBlob)
		if err != nil {
			return Page{}, err
		}
		all = append(all, fetched{rowID: rowID, record: Record{ID: id, Vector: vector, Metadata: metadata}})
	}
	if err := rows.Err(); err != nil {
		return Page{}, err
	}

	hasMore := len(all) > pageSize
	if hasMore {
		all = all[:pageSize]
	}

	items := make([]Record, len(all))
	for i, f := range all {
		items[i] = f.record
	}

	page := Page{Items: items, HasMore: hasMore}
	if hasMore {
		page.NextCursor = strconv.FormatInt(all[len(all)-1].rowID, 10)
	}
	return page, nil
}

// Stats reports live record count, backend type, and the database file path.
func (d *Disk) Stats(ctx context.Context) (map[string]interface{}, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var count int
	if err := d.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM records WHERE deleted = 0`).Scan(&count); err != nil {
		return nil, fmt.Errorf("storage: stats: %w", err)
	}
	var tombstones int
	if err := d.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM records WHERE deleted = 1`).Scan(&tombstones); err != nil {
		return nil, fmt.Errorf("storage: stats: %w", err)
	}

	return map[string]interface{}{
		"type":         "disk",
		"vector_count": count,
		"tombstones":   tombstones,
		"path":         d.path,
	}, nil
}

// Compact physically removes tombstoned rows and reclaims file space via
// VACUUM. Optional per §4.3; callers run it periodically, not automatically.
func (d *Disk) Compact(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, err := d.db.ExecContext(ctx, `DELETE FROM records WHERE deleted = 1`); err != nil {
		return fmt.Errorf("storage: compact delete: %w", err)
	}
	if _, err := d.db.ExecContext(ctx, `VACUUM`); err != nil {
		return fmt.Errorf("storage: compact vacuum: %w", err)
	}
	return nil
}

// Close closes the underlying database handle.
func (d *Disk) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.db == nil {
		return nil
	}
	return d.db.Close()
}
