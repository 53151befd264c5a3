// Package store provides data persistence implementations.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"neo-dashboard/internal/models"
)

// SQLiteStore implements DataStore using SQLite.
type SQLiteStore struct {
	db        *sql.DB
	mu        sync.RWMutex
	syncTimes map[string]time.Time
}

// NewSQLiteStore creates a new SQLite-based data store.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	store := &SQLiteStore{
		db:        db,
		syncTimes: make(map[string]time.Time),
	}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// initSchema creates all required tables and indexes.
func (s *SQLiteStore) initSchema() error {
	schema := `
	-- Watchlist rows, position tracks display order
	CREATE TABLE IF NOT EXISTS watchlist (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		symbol TEXT NOT NULL,
		token TEXT NOT NULL,
		segment TEXT NOT NULL,
		position INTEGER NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(token, segment)
	);

	-- User settings key-value store
	CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	-- Sync metadata
	CREATE TABLE IF NOT EXISTS sync_meta (
		data_type TEXT PRIMARY KEY,
		last_sync DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_watchlist_position ON watchlist(position);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SaveWatchlist replaces the persisted watchlist with the given rows,
// preserving their order.
func (s *SQLiteStore) SaveWatchlist(ctx context.Context, entries []models.WatchlistEntry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM watchlist"); err != nil {
		return fmt.Errorf("failed to clear watchlist: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO watchlist (symbol, token, segment, position)
		VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, entry := range entries {
		if _, err := stmt.ExecContext(ctx, entry.Symbol, entry.Token, string(entry.Segment), i); err != nil {
			return fmt.Errorf("failed to save watchlist row %s: %w", entry.Symbol, err)
		}
	}

	return tx.Commit()
}

// LoadWatchlist returns the persisted watchlist in display order.
// Live quote fields are not persisted; they refill from streaming.
func (s *SQLiteStore) LoadWatchlist(ctx context.Context) ([]models.WatchlistEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT symbol, token, segment FROM watchlist ORDER BY position ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query watchlist: %w", err)
	}
	defer rows.Close()

	var entries []models.WatchlistEntry
	for rows.Next() {
		var entry models.WatchlistEntry
		var segment string
		if err := rows.Scan(&entry.Symbol, &entry.Token, &segment); err != nil {
			return nil, fmt.Errorf("failed to scan watchlist row: %w", err)
		}
		entry.Segment = models.ExchangeSegment(segment)
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// GetSetting returns a setting value, empty string when unset.
func (s *SQLiteStore) GetSetting(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		"SELECT value FROM settings WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get setting %s: %w", key, err)
	}
	return value, nil
}

// SetSetting stores a setting value.
func (s *SQLiteStore) SetSetting(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO settings (key, value, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`,
		key, value)
	if err != nil {
		return fmt.Errorf("failed to set setting %s: %w", key, err)
	}
	return nil
}

// GetLastSync returns the last sync time for a data type.
func (s *SQLiteStore) GetLastSync(dataType string) time.Time {
	s.mu.RLock()
	if t, ok := s.syncTimes[dataType]; ok {
		s.mu.RUnlock()
		return t
	}
	s.mu.RUnlock()

	var t time.Time
	err := s.db.QueryRow(
		"SELECT last_sync FROM sync_meta WHERE data_type = ?", dataType).Scan(&t)
	if err != nil {
		return time.Time{}
	}

	s.mu.Lock()
	s.syncTimes[dataType] = t
	s.mu.Unlock()
	return t
}

// SetLastSync records the last sync time for a data type.
func (s *SQLiteStore) SetLastSync(dataType string, t time.Time) error {
	_, err := s.db.Exec(`
		INSERT INTO sync_meta (data_type, last_sync)
		VALUES (?, ?)
		ON CONFLICT(data_type) DO UPDATE SET last_sync = excluded.last_sync`,
		dataType, t)
	if err != nil {
		return fmt.Errorf("failed to set last sync for %s: %w", dataType, err)
	}

	s.mu.Lock()
	s.syncTimes[dataType] = t
	s.mu.Unlock()
	return nil
}
