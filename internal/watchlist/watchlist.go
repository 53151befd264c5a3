// Package watchlist keeps the ordered set of instruments the user is
// tracking and reconciles it against streaming quote updates.
package watchlist

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	apperrors "neo-dashboard/internal/errors"
	"neo-dashboard/internal/models"
)

// Direction classifies a price tick relative to the previously shown
// price.
type Direction int

const (
	Unchanged Direction = iota
	Up
	Down
)

func (d Direction) String() string {
	switch d {
	case Up:
		return "up"
	case Down:
		return "down"
	default:
		return "unchanged"
	}
}

// Subscriber receives the full desired instrument set after every
// membership change. Implementations are expected to make the live
// subscription match the given set exactly.
type Subscriber interface {
	Subscribe(ctx context.Context, refs []models.InstrumentRef) error
}

type entryKey struct {
	token   string
	segment models.ExchangeSegment
}

// Reconciler owns the watchlist rows. All mutation goes through its
// methods and is serialized by a single mutex; reads hand out copies.
type Reconciler struct {
	sub    Subscriber
	logger zerolog.Logger

	mu      sync.Mutex
	entries []models.WatchlistEntry
	keys    map[entryKey]int
	tokens  map[string]int
}

// New creates an empty Reconciler. sub may be nil, in which case
// membership changes skip the resubscription step.
func New(sub Subscriber, logger zerolog.Logger) *Reconciler {
	return &Reconciler{
		sub:    sub,
		logger: logger.With().Str("component", "watchlist").Logger(),
		keys:   make(map[entryKey]int),
		tokens: make(map[string]int),
	}
}

// Add appends an instrument to the watchlist. An instrument already
// present, identified by (token, segment), is rejected with
// ErrDuplicateEntry and the list is left untouched.
func (r *Reconciler) Add(ctx context.Context, entry models.WatchlistEntry) error {
	r.mu.Lock()
	key := entryKey{entry.Token, entry.Segment}
	if _, dup := r.keys[key]; dup {
		r.mu.Unlock()
		return fmt.Errorf("%s: %w", entry.Symbol, apperrors.ErrDuplicateEntry)
	}
	r.entries = append(r.entries, entry)
	r.reindex()
	refs := r.refsLocked()
	r.mu.Unlock()

	r.logger.Info().Str("symbol", entry.Symbol).Str("token", entry.Token).Msg("watchlist add")
	return r.resubscribe(ctx, refs)
}

// Remove deletes the row at the given zero-based position.
func (r *Reconciler) Remove(ctx context.Context, row int) error {
	r.mu.Lock()
	if row < 0 || row >= len(r.entries) {
		r.mu.Unlock()
		return fmt.Errorf("row %d: %w", row, apperrors.ErrRowOutOfRange)
	}
	removed := r.entries[row]
	r.entries = append(r.entries[:row], r.entries[row+1:]...)
	r.reindex()
	refs := r.refsLocked()
	r.mu.Unlock()

	r.logger.Info().Str("symbol", removed.Symbol).Str("token", removed.Token).Msg("watchlist remove")
	return r.resubscribe(ctx, refs)
}

// Load replaces the whole list, used when restoring a persisted
// watchlist at startup. Duplicates in the input are dropped, first
// occurrence wins.
func (r *Reconciler) Load(ctx context.Context, entries []models.WatchlistEntry) error {
	r.mu.Lock()
	r.entries = r.entries[:0]
	seen := make(map[entryKey]struct{}, len(entries))
	for _, e := range entries {
		key := entryKey{e.Token, e.Segment}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		r.entries = append(r.entries, e)
	}
	r.reindex()
	refs := r.refsLocked()
	r.mu.Unlock()

	return r.resubscribe(ctx, refs)
}

// ApplyUpdate merges a quote into the matching row. Only fields the
// quote actually carries overwrite the row; everything else keeps its
// last value. The returned Direction compares the new price with the
// row's previous one (absent previous counts as 0). Quotes for tokens
// not on the list are ignored.
func (r *Reconciler) ApplyUpdate(q models.Quote) (Direction, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx, ok := r.tokens[q.Token]
	if !ok {
		return Unchanged, false
	}
	entry := &r.entries[idx]

	dir := Unchanged
	if q.LastPrice != nil {
		prior := 0.0
		if entry.LastPrice != nil {
			prior = *entry.LastPrice
		}
		switch {
		case *q.LastPrice > prior:
			dir = Up
		case *q.LastPrice < prior:
			dir = Down
		}
		entry.LastPrice = q.LastPrice
	}
	if q.Change != nil {
		entry.Change = q.Change
	}
	if q.PercentChange != nil {
		entry.PercentChange = q.PercentChange
	}
	return dir, true
}

// Snapshot returns a copy of the rows in display order.
func (r *Reconciler) Snapshot() []models.WatchlistEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.WatchlistEntry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Refs returns the (token, segment) pairs of every row, in order.
func (r *Reconciler) Refs() []models.InstrumentRef {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.refsLocked()
}

// Len reports the number of rows.
func (r *Reconciler) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

func (r *Reconciler) refsLocked() []models.InstrumentRef {
	refs := make([]models.InstrumentRef, len(r.entries))
	for i, e := range r.entries {
		refs[i] = models.InstrumentRef{Token: e.Token, Segment: e.Segment}
	}
	return refs
}

// reindex rebuilds both lookup maps after any membership change.
// When one token appears under multiple segments, updates land on the
// earliest row.
func (r *Reconciler) reindex() {
	r.keys = make(map[entryKey]int, len(r.entries))
	r.tokens = make(map[string]int, len(r.entries))
	for i, e := range r.entries {
		r.keys[entryKey{e.Token, e.Segment}] = i
		if _, ok := r.tokens[e.Token]; !ok {
			r.tokens[e.Token] = i
		}
	}
}

func (r *Reconciler) resubscribe(ctx context.Context, refs []models.InstrumentRef) error {
	if r.sub == nil {
		return nil
	}
	if err := r.sub.Subscribe(ctx, refs); err != nil {
		r.logger.Warn().Err(err).Int("instruments", len(refs)).Msg("resubscription failed")
		return apperrors.NewTransportError("resubscribe", err)
	}
	return nil
}
