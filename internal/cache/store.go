package cache

import (
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/intentest/intentest/internal/model"
)

//go:embed schema.sql
var schemaSQL string

// Store persists locator cache entries in SQLite so resolutions survive
// across runs against unchanged pages.
type Store struct {
	db *sql.DB
}

// PersistedEntry is one row loaded from the store.
type PersistedEntry struct {
	Key       string
	Locator   model.ElementLocator
	ExpiresAt time.Time
}

// OpenStore creates or opens the cache database at path. WAL mode keeps
// reads concurrent with writes; the pool is capped at a single
// connection because SQLite allows one writer at a time.
func OpenStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to cache database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply cache schema: %w", err)
	}

	return &Store{db: db}, nil
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Load returns every unexpired entry and prunes the rest.
func (s *Store) Load() ([]PersistedEntry, error) {
	now := time.Now().Unix()
	if _, err := s.db.Exec(`DELETE FROM locators WHERE expires_at <= ?`, now); err != nil {
		return nil, fmt.Errorf("failed to prune expired locators: %w", err)
	}

	rows, err := s.db.Query(`SELECT cache_key, locator, expires_at FROM locators`)
	if err != nil {
		return nil, fmt.Errorf("failed to load locators: %w", err)
	}
	defer rows.Close()

	var entries []PersistedEntry
	for rows.Next() {
		var (
			key     string
			payload string
			expires int64
		)
		if err := rows.Scan(&key, &payload, &expires); err != nil {
			return nil, fmt.Errorf("failed to scan locator row: %w", err)
		}
		var locator model.ElementLocator
		if err := json.Unmarshal([]byte(payload), &locator); err != nil {
			// Rows written by an older build are dropped, not fatal.
			continue
		}
		entries = append(entries, PersistedEntry{
			Key:       key,
			Locator:   locator,
			ExpiresAt: time.Unix(expires, 0),
		})
	}
	return entries, rows.Err()
}

// Upsert writes or replaces one entry.
func (s *Store) Upsert(key string, locator model.ElementLocator, expiresAt time.Time) error {
	payload, err := json.Marshal(locator)
	if err != nil {
		return fmt.Errorf("failed to encode locator: %w", err)
	}
	_, err = s.db.Exec(
		`INSERT INTO locators (cache_key, locator, expires_at) VALUES (?, ?, ?)
		 ON CONFLICT(cache_key) DO UPDATE SET locator = excluded.locator, expires_at = excluded.expires_at`,
		key, string(payload), expiresAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert locator: %w", err)
	}
	return nil
}

// Delete removes one entry.
func (s *Store) Delete(key string) error {
	if _, err := s.db.Exec(`DELETE FROM locators WHERE cache_key = ?`, key); err != nil {
		return fmt.Errorf("failed to delete locator: %w", err)
	}
	return nil
}

// Clear removes every entry.
func (s *Store) Clear() error {
	if _, err := s.db.Exec(`DELETE FROM locators`); err != nil {
		return fmt.Errorf("failed to clear locators: %w", err)
	}
	return nil
}
