/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	applog "blockviewer/internal/log"
	"blockviewer/internal/version"

	_ "modernc.org/sqlite"
)

const (
	// DirName is the cache subdirectory under the user cache dir.
	DirName = "blockviewer"
	// FileName is the database file name.
	FileName = "blocks.sqlite"

	schemaVersion = 1
)

// DefaultPath returns <user cache dir>/blockviewer/blocks.sqlite.
func DefaultPath() (string, error) {
	dir, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("user cache dir: %w", err)
	}
	return filepath.Join(dir, DirName, FileName), nil
}

// Store is the sqlite block cache. It is safe for concurrent use.
type Store struct {
	db       *sql.DB
	path     string
	maxBytes int64
	now      func() time.Time
	log      *slog.Logger
}

// Stats summarizes the cache contents.
type Stats struct {
	Rows  int
	Bytes int64
}

// Open opens or creates the store at path. maxBytes > 0 caps the total
// payload size; every Put evicts least recently used rows past the cap.
func Open(ctx context.Context, path string, maxBytes int64) (*Store, error) {
	l := applog.WithOperation(applog.WithComponent("storage"), "open").With(slog.String("path", path))
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("cache path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		l.Error("create cache dir failed", slog.Any("err", err))
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	dsn := fmt.Sprintf("file:%s?cache=shared&_pragma=busy_timeout(5000)", filepath.ToSlash(path))
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		l.Error("sqlite open failed", slog.Any("err", err))
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL;"); err != nil {
		_ = db.Close()
		l.Error("enable WAL failed", slog.Any("err", err))
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	if err := ensureSchema(ctx, db); err != nil {
		_ = db.Close()
		l.Error("ensure schema failed", slog.Any("err", err))
		return nil, err
	}
	l.Debug("block cache ready")
	return &Store{db: db, path: path, maxBytes: maxBytes, now: time.Now, log: l}, nil
}

func ensureSchema(ctx context.Context, db *sql.DB) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS version (
			id          INTEGER PRIMARY KEY CHECK(id=1),
			schema      INTEGER NOT NULL,
			app         TEXT,
			created_at  TEXT NOT NULL,
			updated_at  TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS blocks (
			id           INTEGER PRIMARY KEY,
			payload      BLOB    NOT NULL,
			size         INTEGER NOT NULL DEFAULT 0,
			updated_at   TEXT    NOT NULL,
			last_access  INTEGER NOT NULL DEFAULT 0
		);`,
		`CREATE INDEX IF NOT EXISTS idx_blocks_access ON blocks(last_access);`,
	}
	for _, q := range ddl {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}
	now := time.Now().UTC().Format(time.RFC3339)
	var cur int
	err := db.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&cur)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if _, err := db.ExecContext(ctx, `INSERT INTO version (id, schema, app, created_at, updated_at) VALUES(1, ?, ?, ?, ?)`,
			schemaVersion, version.String(), now, now); err != nil {
			return fmt.Errorf("insert version: %w", err)
		}
	case err != nil:
		return fmt.Errorf("read version: %w", err)
	default:
		if _, err := db.ExecContext(ctx, `UPDATE version SET app=?, updated_at=? WHERE id=1`, version.String(), now); err != nil {
			return fmt.Errorf("update version: %w", err)
		}
	}
	return nil
}

func (s *Store) Path() string { return s.path }

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

// Get returns the payload cached for id and marks it recently used. A miss
// returns ok == false and no error.
func (s *Store) Get(ctx context.Context, id int64) (payload []byte, ok bool, err error) {
	err = s.db.QueryRowContext(ctx, `SELECT payload FROM blocks WHERE id=?`, id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("query block %d: %w", id, err)
	}
	_, _ = s.db.ExecContext(ctx, `UPDATE blocks SET last_access=? WHERE id=?`, s.tick(), id)
	return payload, true, nil
}

// Put upserts the payload for id and enforces the size cap.
func (s *Store) Put(ctx context.Context, id int64, payload []byte) error {
	if payload == nil {
		return fmt.Errorf("put block %d: empty payload", id)
	}
	updated := s.now().UTC().Format(time.RFC3339)
	_, err := s.db.ExecContext(ctx, `INSERT INTO blocks(id,payload,size,updated_at,last_access)
		VALUES(?,?,?,?,?)
		ON CONFLICT(id) DO UPDATE SET payload=excluded.payload, size=excluded.size, updated_at=excluded.updated_at, last_access=excluded.last_access`,
		id, payload, len(payload), updated, s.tick())
	if err != nil {
		return fmt.Errorf("upsert block %d: %w", id, err)
	}
	if s.maxBytes > 0 {
		if _, err := s.EvictToFit(ctx, s.maxBytes); err != nil {
			return err
		}
	}
	return nil
}

// Delete drops id from the cache.
func (s *Store) Delete(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM blocks WHERE id=?`, id); err != nil {
		return fmt.Errorf("delete block %d: %w", id, err)
	}
	return nil
}

// Clear drops every cached block.
func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM blocks`); err != nil {
		return fmt.Errorf("clear blocks: %w", err)
	}
	return nil
}

// EvictToFit deletes least recently used rows until the total payload size
// is at most capBytes. It returns the number of rows deleted.
func (s *Store) EvictToFit(ctx context.Context, capBytes int64) (int, error) {
	var total int64
	if err := s.db.QueryRowContext(ctx, `SELECT COALESCE(SUM(size),0) FROM blocks`).Scan(&total); err != nil {
		return 0, fmt.Errorf("sum blocks size: %w", err)
	}
	if total <= capBytes {
		return 0, nil
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id, size FROM blocks ORDER BY last_access ASC, id ASC`)
	if err != nil {
		return 0, fmt.Errorf("select victims: %w", err)
	}
	victims := make([]any, 0, 16)
	cur := total
	for rows.Next() {
		var id, sz int64
		if err := rows.Scan(&id, &sz); err != nil {
			_ = rows.Close()
			return 0, err
		}
		victims = append(victims, id)
		cur -= sz
		if cur <= capBytes {
			break
		}
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return 0, err
	}
	// the cursor must be closed before writing on the single connection
	if err := rows.Close(); err != nil {
		return 0, err
	}
	if len(victims) == 0 {
		return 0, nil
	}
	q := `DELETE FROM blocks WHERE id IN (?` + strings.Repeat(",?", len(victims)-1) + `)`
	if _, err := s.db.ExecContext(ctx, q, victims...); err != nil {
		return 0, fmt.Errorf("evict delete: %w", err)
	}
	s.log.Debug("evicted blocks", slog.Int("rows", len(victims)), slog.Int64("cap", capBytes))
	return len(victims), nil
}

// Stats returns the row count and total payload bytes.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*), COALESCE(SUM(size),0) FROM blocks`).Scan(&st.Rows, &st.Bytes); err != nil {
		return Stats{}, fmt.Errorf("block stats: %w", err)
	}
	return st, nil
}

// Total returns the total payload bytes.
func (s *Store) Total(ctx context.Context) (int64, error) {
	st, err := s.Stats(ctx)
	return st.Bytes, err
}

func (s *Store) tick() int64 { return s.now().UnixNano() }
