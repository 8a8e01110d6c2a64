// Package session persists the edits log and session settings and restores
// them on start-up.
package session

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"regexp"
	"sync"

	"github.com/rotisserie/eris"
)

// Storage is a key/value store of JSON blobs. Get returns nil, nil for a
// missing key.
type Storage interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// MemoryStorage keeps values in process memory.
type MemoryStorage struct {
	mu     sync.RWMutex
	values map[string][]byte
}

// NewMemoryStorage creates an empty in-memory store.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{values: make(map[string][]byte)}
}

func (m *MemoryStorage) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), v...), nil
}

func (m *MemoryStorage) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = append([]byte(nil), value...)
	return nil
}

func (m *MemoryStorage) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}

func (m *MemoryStorage) Close() error { return nil }

// FileStorage writes one JSON file per key under a directory.
type FileStorage struct {
	dir string
	mu  sync.Mutex
}

var unsafeKey = regexp.MustCompile(`[^a-zA-Z0-9_.-]`)

// NewFileStorage creates the directory if needed.
func NewFileStorage(dir string) (*FileStorage, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, eris.Wrap(err, "session: create storage directory")
	}
	return &FileStorage{dir: dir}, nil
}

func (s *FileStorage) path(key string) string {
	return filepath.Join(s.dir, unsafeKey.ReplaceAllString(key, "_")+".json")
}

func (s *FileStorage) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := os.ReadFile(s.path(key))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "session: read %s", key)
	}
	return data, nil
}

// Set writes through a temporary file so a crash never leaves a torn value.
func (s *FileStorage) Set(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tmp := s.path(key) + ".tmp"
	if err := os.WriteFile(tmp, value, 0644); err != nil {
		return eris.Wrapf(err, "session: write %s", key)
	}
	if err := os.Rename(tmp, s.path(key)); err != nil {
		return eris.Wrapf(err, "session: commit %s", key)
	}
	return nil
}

func (s *FileStorage) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(s.path(key)); err != nil && !os.IsNotExist(err) {
		return eris.Wrapf(err, "session: delete %s", key)
	}
	return nil
}

func (s *FileStorage) Close() error { return nil }

// SQLStorage keeps values in a single table of a duckdb or sqlite database.
type SQLStorage struct {
	db *sql.DB
}

const sqlMigration = `
CREATE TABLE IF NOT EXISTS session_values (
	name       TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
)`

// NewSQLStorage wraps an open database and creates the table.
func NewSQLStorage(ctx context.Context, db *sql.DB) (*SQLStorage, error) {
	if _, err := db.ExecContext(ctx, sqlMigration); err != nil {
		return nil, eris.Wrap(err, "session: migrate")
	}
	return &SQLStorage{db: db}, nil
}

func (s *SQLStorage) Get(ctx context.Context, key string) ([]byte, error) {
	var v string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM session_values WHERE name = ?`, key).Scan(&v)
	if eris.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "session: select %s", key)
	}
	return []byte(v), nil
}

func (s *SQLStorage) Set(ctx context.Context, key string, value []byte) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO session_values (name, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
ON CONFLICT (name) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, string(value))
	return eris.Wrapf(err, "session: upsert %s", key)
}

func (s *SQLStorage) Delete(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM session_values WHERE name = ?`, key)
	return eris.Wrapf(err, "session: delete %s", key)
}

func (s *SQLStorage) Close() error {
	return s.db.Close()
}
