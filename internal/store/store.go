// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"time"

	"neo-dashboard/internal/models"
)

// DataStore defines the interface for local persistence: the saved
// watchlist, user settings, and sync bookkeeping.
type DataStore interface {
	// Watchlist
	SaveWatchlist(ctx context.Context, entries []models.WatchlistEntry) error
	LoadWatchlist(ctx context.Context) ([]models.WatchlistEntry, error)

	// Settings
	GetSetting(ctx context.Context, key string) (string, error)
	SetSetting(ctx context.Context, key, value string) error

	// Sync
	GetLastSync(dataType string) time.Time
	SetLastSync(dataType string, t time.Time) error

	// Lifecycle
	Close() error
}
