/*
Copyright © 2025 Floodgate Authors.

Released under MIT license.
*/

// Package sqlstore provides a floodgate.Store implementation backed by a libsql
// (SQLite-compatible) database. It fits single-node deployments that need
// admission state to survive restarts, and Turso-hosted databases when the
// state must be shared.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/floodgate/floodgate"
)

const driverName = "libsql"

const (
	listBlacklist = "blacklist"
	listWhitelist = "whitelist"
)

// A key is on at most one list: the primary key on listed(key) makes
// the blacklist and the whitelist mutually exclusive by construction.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS records (
		key TEXT PRIMARY KEY,
		request_count INTEGER NOT NULL DEFAULT 0,
		window_expiry_ms INTEGER NOT NULL,
		block_count INTEGER NOT NULL DEFAULT 0
	);`,
	`CREATE INDEX IF NOT EXISTS idx_records_window_expiry ON records(window_expiry_ms);`,
	`CREATE TABLE IF NOT EXISTS listed (
		key TEXT PRIMARY KEY,
		list TEXT NOT NULL
	);`,
	`CREATE INDEX IF NOT EXISTS idx_listed_list ON listed(list);`,
}

// Opts represents options for Store.
type Opts struct {
	// AuthToken is attached to remote DSNs (libsql://, https://) as the authToken
	// query parameter. Ignored for local files and in-memory databases.
	AuthToken string
}

// Store is a libsql-backed implementation of the floodgate.Store interface.
// Window expiry is persisted with millisecond precision.
type Store struct {
	db *sql.DB
}

var _ floodgate.Store = (*Store)(nil)

// Open connects to the database at the given DSN, creates the schema when it
// does not exist yet, and returns a ready to use store.
//
// The DSN may be a plain file path, a file: URI, ":memory:", or a remote
// libsql:// URL.
func Open(ctx context.Context, dsn string) (*Store, error) {
	return OpenWithOpts(ctx, dsn, Opts{})
}

// OpenWithOpts is a more configurable version of Open.
func OpenWithOpts(ctx context.Context, dsn string, opts Opts) (*Store, error) {
	normalized, err := normalizeDSN(dsn, opts.AuthToken)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open(driverName, normalized)
	if err != nil {
		return nil, fmt.Errorf("open libsql database: %w", err)
	}
	if normalized == ":memory:" {
		// Each new connection to :memory: opens a distinct database.
		db.SetMaxOpenConns(1)
	}
	if err = db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping libsql database: %w", err)
	}
	for _, stmt := range schemaStatements {
		if _, err = db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("create schema: %w", err)
		}
	}
	return &Store{db: db}, nil
}

// Close releases the database resources.
func (s *Store) Close() error {
	return s.db.Close()
}

// GetRecord returns the stored record or nil, nil when the key has none.
func (s *Store) GetRecord(ctx context.Context, key string) (*floodgate.Record, error) {
	var (
		requestCount int
		windowExpiry int64
		blockCount   int
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT request_count, window_expiry_ms, block_count FROM records WHERE key = ?`, key,
	).Scan(&requestCount, &windowExpiry, &blockCount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, floodgate.NewStoreUnavailableError("getRecord", key, err)
	}
	return &floodgate.Record{
		Key:          key,
		RequestCount: requestCount,
		WindowExpiry: time.UnixMilli(windowExpiry).UTC(),
		BlockCount:   blockCount,
	}, nil
}

// SaveRecord upserts the record.
func (s *Store) SaveRecord(ctx context.Context, rec *floodgate.Record) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO records (key, request_count, window_expiry_ms, block_count)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			request_count = excluded.request_count,
			window_expiry_ms = excluded.window_expiry_ms,
			block_count = excluded.block_count
	`, rec.Key, rec.RequestCount, rec.WindowExpiry.UnixMilli(), rec.BlockCount)
	if err != nil {
		return floodgate.NewStoreUnavailableError("saveRecord", rec.Key, err)
	}
	return nil
}

// IsBlacklisted reports whether the key is blacklisted.
func (s *Store) IsBlacklisted(ctx context.Context, key string) (bool, error) {
	return s.isListed(ctx, "isBlacklisted", key, listBlacklist)
}

// IsWhitelisted reports whether the key is whitelisted.
func (s *Store) IsWhitelisted(ctx context.Context, key string) (bool, error) {
	return s.isListed(ctx, "isWhitelisted", key, listWhitelist)
}

// Blacklist adds the key to the blacklist removing it from the whitelist.
// The window record is deleted in the same transaction when deleteRecord is true.
func (s *Store) Blacklist(ctx context.Context, key string, deleteRecord bool) error {
	return s.setListed(ctx, "blacklist", key, listBlacklist, deleteRecord)
}

// RemoveBlacklist removes the key from the blacklist.
func (s *Store) RemoveBlacklist(ctx context.Context, key string) error {
	return s.removeListed(ctx, "removeBlacklist", key, listBlacklist)
}

// Whitelist adds the key to the whitelist removing it from the blacklist.
// The window record is deleted in the same transaction when deleteRecord is true.
func (s *Store) Whitelist(ctx context.Context, key string, deleteRecord bool) error {
	return s.setListed(ctx, "whitelist", key, listWhitelist, deleteRecord)
}

// RemoveWhitelist removes the key from the whitelist.
func (s *Store) RemoveWhitelist(ctx context.Context, key string) error {
	return s.removeListed(ctx, "removeWhitelist", key, listWhitelist)
}

// ListBlacklisted returns all blacklisted keys in lexicographic order.
func (s *Store) ListBlacklisted(ctx context.Context) ([]string, error) {
	return s.listKeys(ctx, "listBlacklisted", listBlacklist)
}

// ListWhitelisted returns all whitelisted keys in lexicographic order.
func (s *Store) ListWhitelisted(ctx context.Context) ([]string, error) {
	return s.listKeys(ctx, "listWhitelisted", listWhitelist)
}

// DeleteExpiredRecords deletes all records with the window expired at olderThan or earlier
// and returns the number of deleted records.
func (s *Store) DeleteExpiredRecords(ctx context.Context, olderThan time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM records WHERE window_expiry_ms <= ?`, olderThan.UnixMilli())
	if err != nil {
		return 0, floodgate.NewStoreUnavailableError("deleteExpiredRecords", "", err)
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, floodgate.NewStoreUnavailableError("deleteExpiredRecords", "", err)
	}
	return deleted, nil
}

func (s *Store) isListed(ctx context.Context, op, key, list string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM listed WHERE key = ? AND list = ?`, key, list).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, floodgate.NewStoreUnavailableError(op, key, err)
	}
	return true, nil
}

func (s *Store) setListed(ctx context.Context, op, key, list string, deleteRecord bool) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return floodgate.NewStoreUnavailableError(op, key, err)
	}
	defer func() { _ = tx.Rollback() }()
	_, err = tx.ExecContext(ctx, `
		INSERT INTO listed (key, list) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET list = excluded.list
	`, key, list)
	if err != nil {
		return floodgate.NewStoreUnavailableError(op, key, err)
	}
	if deleteRecord {
		if _, err = tx.ExecContext(ctx, `DELETE FROM records WHERE key = ?`, key); err != nil {
			return floodgate.NewStoreUnavailableError(op, key, err)
		}
	}
	if err = tx.Commit(); err != nil {
		return floodgate.NewStoreUnavailableError(op, key, err)
	}
	return nil
}

func (s *Store) removeListed(ctx context.Context, op, key, list string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM listed WHERE key = ? AND list = ?`, key, list)
	if err != nil {
		return floodgate.NewStoreUnavailableError(op, key, err)
	}
	return nil
}

func (s *Store) listKeys(ctx context.Context, op, list string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT key FROM listed WHERE list = ? ORDER BY key`, list)
	if err != nil {
		return nil, floodgate.NewStoreUnavailableError(op, "", err)
	}
	defer func() { _ = rows.Close() }()
	var keys []string
	for rows.Next() {
		var key string
		if err = rows.Scan(&key); err != nil {
			return nil, floodgate.NewStoreUnavailableError(op, "", err)
		}
		keys = append(keys, key)
	}
	if err = rows.Err(); err != nil {
		return nil, floodgate.NewStoreUnavailableError(op, "", err)
	}
	return keys, nil
}

func normalizeDSN(dsn, authToken string) (string, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return "", errors.New("database DSN is required")
	}
	if dsn == ":memory:" {
		return dsn, nil
	}
	if strings.Contains(dsn, "://") {
		return addAuthToken(dsn, authToken)
	}
	path := strings.TrimPrefix(dsn, "file:")
	if err := ensureDir(path); err != nil {
		return "", err
	}
	return "file:" + filepath.Clean(path), nil
}

func addAuthToken(dsn, token string) (string, error) {
	if token == "" {
		return dsn, nil
	}
	parsed, err := url.Parse(dsn)
	if err != nil {
		return "", fmt.Errorf("invalid database DSN: %w", err)
	}
	query := parsed.Query()
	if query.Get("authToken") == "" {
		query.Set("authToken", token)
		parsed.RawQuery = query.Encode()
	}
	return parsed.String(), nil
}

func ensureDir(path string) error {
	dir := filepath.Dir(filepath.Clean(path))
	if dir == "." || dir == string(filepath.Separator) {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create database directory: %w", err)
	}
	return nil
}
