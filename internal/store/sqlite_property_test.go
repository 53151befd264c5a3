package store

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"neo-dashboard/internal/models"
)

// Property: for any watchlist, saving and reloading produces the same
// rows in the same order (round-trip consistency).
func TestProperty_WatchlistRoundTripConsistency(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "watchlist_property.db")

	store, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	defer store.Close()

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	segments := models.Segments()

	properties.Property("Watchlist round-trip: save then load preserves rows and order", prop.ForAll(
		func(count int, segIdx int) bool {
			ctx := context.Background()

			entries := make([]models.WatchlistEntry, count)
			for i := range entries {
				entries[i] = models.WatchlistEntry{
					Symbol:  fmt.Sprintf("SYM%03d-EQ", i),
					Token:   fmt.Sprintf("%d", 1000+i),
					Segment: segments[(segIdx+i)%len(segments)],
				}
			}

			if err := store.SaveWatchlist(ctx, entries); err != nil {
				t.Logf("Failed to save watchlist: %v", err)
				return false
			}

			loaded, err := store.LoadWatchlist(ctx)
			if err != nil {
				t.Logf("Failed to load watchlist: %v", err)
				return false
			}

			if len(loaded) != len(entries) {
				t.Logf("Loaded %d rows, want %d", len(loaded), len(entries))
				return false
			}
			for i := range entries {
				if loaded[i].Symbol != entries[i].Symbol ||
					loaded[i].Token != entries[i].Token ||
					loaded[i].Segment != entries[i].Segment {
					t.Logf("Row %d mismatch: %+v != %+v", i, loaded[i], entries[i])
					return false
				}
			}
			return true
		},
		gen.IntRange(0, 30),
		gen.IntRange(0, 5),
	))

	properties.TestingRun(t)
}

func TestSettingsRoundTrip(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "settings.db")
	store, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	defer store.Close()

	ctx := context.Background()

	if v, err := store.GetSetting(ctx, "theme"); err != nil || v != "" {
		t.Fatalf("unset setting = (%q, %v), want empty", v, err)
	}
	if err := store.SetSetting(ctx, "theme", "dark"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := store.SetSetting(ctx, "theme", "light"); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	if v, err := store.GetSetting(ctx, "theme"); err != nil || v != "light" {
		t.Fatalf("setting = (%q, %v), want light", v, err)
	}
}

func TestLastSyncRoundTrip(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "sync.db")
	store, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	defer store.Close()

	if !store.GetLastSync("master").IsZero() {
		t.Fatal("unset sync time should be zero")
	}

	now := time.Now().Truncate(time.Second)
	if err := store.SetLastSync("master", now); err != nil {
		t.Fatalf("set last sync: %v", err)
	}
	if got := store.GetLastSync("master"); !got.Equal(now) {
		t.Fatalf("last sync = %v, want %v", got, now)
	}
}
