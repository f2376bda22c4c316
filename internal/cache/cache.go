// Package cache is the persistent document cache behind the archive loader.
// Documents (the index and one document per year) are stored as
// zstd-compressed blobs in a SQLite database and never expire.
package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/klauspost/compress/zstd"
	_ "modernc.org/sqlite"

	"github.com/asheshgoplani/archive-deck/internal/archive"
)

// SchemaVersion tracks the current database schema version.
// Bump this when adding migrations.
const SchemaVersion = 1

// Body encodings stored alongside each document.
const (
	encodingIdentity = "identity"
	encodingZstd     = "zstd"
)

// ErrMiss is returned by Get when no document is stored under the key. It
// wraps archive.ErrCacheMiss so the loader can tell it from a read failure.
var ErrMiss = fmt.Errorf("cache: miss: %w", archive.ErrCacheMiss)

// Options configures a DB.
type Options struct {
	// Compress stores new documents zstd-compressed. Reads handle both encodings.
	Compress bool
}

// DB wraps a SQLite database holding cached documents.
// Safe for concurrent use; concurrent processes are serialised by WAL mode
// plus busy timeout.
type DB struct {
	db       *sql.DB
	compress bool
	enc      *zstd.Encoder
	dec      *zstd.Decoder
}

// Stats summarises cache contents.
type Stats struct {
	Documents   int
	StoredBytes int64
	RawBytes    int64
	Oldest      time.Time
	Newest      time.Time
}

// Open creates or opens the cache database at dbPath and applies migrations.
func Open(dbPath string, opts Options) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o700); err != nil {
		return nil, fmt.Errorf("cache: mkdir: %w", err)
	}

	// Pragmas go in the DSN so every pooled connection gets them.
	dsn := dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("cache: open: %w", err)
	}
	// Write-behind puts come from many goroutines; one connection keeps
	// SQLite from reporting SQLITE_BUSY inside this process.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("cache: ping: %w", err)
	}

	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("cache: zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		enc.Close()
		db.Close()
		return nil, fmt.Errorf("cache: zstd decoder: %w", err)
	}

	c := &DB{db: db, compress: opts.Compress, enc: enc, dec: dec}
	if err := c.Migrate(); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

// Close checkpoints WAL and closes the database.
func (c *DB) Close() error {
	_, _ = c.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	c.enc.Close()
	c.dec.Close()
	return c.db.Close()
}

// Migrate creates tables if they don't exist and records the schema version.
func (c *DB) Migrate() error {
	tx, err := c.db.Begin()
	if err != nil {
		return fmt.Errorf("cache: begin migrate: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS metadata (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)
	`); err != nil {
		return fmt.Errorf("cache: create metadata: %w", err)
	}

	if _, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS documents (
			key       TEXT PRIMARY KEY,
			body      BLOB NOT NULL,
			encoding  TEXT NOT NULL DEFAULT 'identity',
			raw_size  INTEGER NOT NULL,
			stored_at INTEGER NOT NULL
		)
	`); err != nil {
		return fmt.Errorf("cache: create documents: %w", err)
	}

	if _, err := tx.Exec(`
		INSERT OR REPLACE INTO metadata (key, value) VALUES ('schema_version', ?)
	`, strconv.Itoa(SchemaVersion)); err != nil {
		return fmt.Errorf("cache: set schema version: %w", err)
	}

	return tx.Commit()
}

// SchemaVersion returns the version recorded in the metadata table.
func (c *DB) SchemaVersion() (int, error) {
	var v string
	if err := c.db.QueryRow(`SELECT value FROM metadata WHERE key = 'schema_version'`).Scan(&v); err != nil {
		return 0, err
	}
	return strconv.Atoi(v)
}

// Get returns the document stored under key, or ErrMiss.
func (c *DB) Get(ctx context.Context, key string) ([]byte, error) {
	var body []byte
	var encoding string
	err := c.db.QueryRowContext(ctx,
		`SELECT body, encoding FROM documents WHERE key = ?`, key,
	).Scan(&body, &encoding)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, fmt.Errorf("cache: get %s: %w", key, err)
	}

	switch encoding {
	case encodingZstd:
		out, err := c.dec.DecodeAll(body, nil)
		if err != nil {
			return nil, fmt.Errorf("cache: decode %s: %w", key, err)
		}
		return out, nil
	case encodingIdentity:
		return body, nil
	default:
		return nil, fmt.Errorf("cache: %s: unknown encoding %q", key, encoding)
	}
}

// Put stores doc under key, replacing any previous document.
func (c *DB) Put(ctx context.Context, key string, doc []byte) error {
	body, encoding := doc, encodingIdentity
	if c.compress {
		body, encoding = c.enc.EncodeAll(doc, make([]byte, 0, len(doc)/4)), encodingZstd
	}
	_, err := c.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO documents (key, body, encoding, raw_size, stored_at)
		VALUES (?, ?, ?, ?, ?)
	`, key, body, encoding, len(doc), time.Now().Unix())
	if err != nil {
		return fmt.Errorf("cache: put %s: %w", key, err)
	}
	return nil
}

// Delete removes one document. Deleting a missing key is not an error.
func (c *DB) Delete(ctx context.Context, key string) error {
	_, err := c.db.ExecContext(ctx, `DELETE FROM documents WHERE key = ?`, key)
	return err
}

// Clear drops every document and returns how many were removed.
func (c *DB) Clear(ctx context.Context) (int64, error) {
	res, err := c.db.ExecContext(ctx, `DELETE FROM documents`)
	if err != nil {
		return 0, fmt.Errorf("cache: clear: %w", err)
	}
	return res.RowsAffected()
}

// Keys returns every stored key in ascending order.
func (c *DB) Keys(ctx context.Context) ([]string, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT key FROM documents ORDER BY key`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// Stats reports document count and sizes.
func (c *DB) Stats(ctx context.Context) (Stats, error) {
	var s Stats
	var oldest, newest sql.NullInt64
	err := c.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(LENGTH(body)), 0), COALESCE(SUM(raw_size), 0),
			MIN(stored_at), MAX(stored_at)
		FROM documents
	`).Scan(&s.Documents, &s.StoredBytes, &s.RawBytes, &oldest, &newest)
	if err != nil {
		return Stats{}, fmt.Errorf("cache: stats: %w", err)
	}
	if oldest.Valid {
		s.Oldest = time.Unix(oldest.Int64, 0)
	}
	if newest.Valid {
		s.Newest = time.Unix(newest.Int64, 0)
	}
	return s, nil
}
