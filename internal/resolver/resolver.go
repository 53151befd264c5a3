// Package resolver turns partial symbol text into ranked candidate
// lists, debouncing rapid keystrokes so only the final query in a
// burst does any work.
package resolver

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"neo-dashboard/internal/master"
	"neo-dashboard/internal/models"
)

const (
	// DefaultDebounce is how long a query must sit unchanged before
	// it runs.
	DefaultDebounce = 500 * time.Millisecond

	// DefaultLimit caps the candidates returned per query.
	DefaultLimit = 50

	// MinQueryLength is the shortest query worth matching.
	MinQueryLength = 2
)

// Rank filters symbols against a case-insensitive substring query and
// orders the matches in two tiers: symbols whose name starts with the
// query come first, other symbols containing it follow. Relative
// input order is preserved inside each tier. At most limit results
// are returned; limit <= 0 means DefaultLimit.
func Rank(symbols []string, query string, limit int) []string {
	if limit <= 0 {
		limit = DefaultLimit
	}
	q := strings.ToUpper(strings.TrimSpace(query))
	if len(q) < MinQueryLength {
		return nil
	}

	var prefix, contains []string
	for _, sym := range symbols {
		upper := strings.ToUpper(sym)
		switch {
		case strings.HasPrefix(upper, q):
			prefix = append(prefix, sym)
		case strings.Contains(upper, q):
			contains = append(contains, sym)
		}
		if len(prefix) >= limit {
			break
		}
	}

	out := prefix
	for _, sym := range contains {
		if len(out) >= limit {
			break
		}
		out = append(out, sym)
	}
	return out
}

// pendingQuery tracks the debounce timer and generation counter for
// one search source.
type pendingQuery struct {
	timer *time.Timer
	seq   uint64
}

// Resolver schedules debounced symbol searches against the instrument
// master cache. Each source key (one per input widget or client) gets
// its own debounce window; a new query for a source cancels whatever
// that source had pending.
type Resolver struct {
	cache    *master.Cache
	debounce time.Duration
	limit    int
	logger   zerolog.Logger

	mu      sync.Mutex
	pending map[string]*pendingQuery
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithDebounce overrides the debounce interval.
func WithDebounce(d time.Duration) Option {
	return func(r *Resolver) {
		if d > 0 {
			r.debounce = d
		}
	}
}

// WithLimit overrides the per-query result cap.
func WithLimit(n int) Option {
	return func(r *Resolver) {
		if n > 0 {
			r.limit = n
		}
	}
}

// New creates a Resolver over the given instrument master cache.
func New(cache *master.Cache, logger zerolog.Logger, opts ...Option) *Resolver {
	r := &Resolver{
		cache:    cache,
		debounce: DefaultDebounce,
		limit:    DefaultLimit,
		logger:   logger.With().Str("component", "resolver").Logger(),
		pending:  make(map[string]*pendingQuery),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Search schedules a debounced query for the source key. When the
// debounce window elapses without a newer query for the same source,
// deliver is invoked with the ranked candidates. Queries under
// MinQueryLength cancel any pending search and deliver nothing. If
// the segment's master is not loaded yet, a load is kicked off and
// deliver receives an empty list; re-running the query after the load
// settles returns real results.
func (r *Resolver) Search(source string, segment models.ExchangeSegment, query string, deliver func([]string)) {
	r.mu.Lock()
	defer r.mu.Unlock()

	pq, ok := r.pending[source]
	if !ok {
		pq = &pendingQuery{}
		r.pending[source] = pq
	}
	if pq.timer != nil {
		pq.timer.Stop()
		pq.timer = nil
	}
	pq.seq++

	if len(strings.TrimSpace(query)) < MinQueryLength {
		return
	}

	seq := pq.seq
	pq.timer = time.AfterFunc(r.debounce, func() {
		r.run(source, seq, segment, query, deliver)
	})
}

// Cancel drops any pending query for the source.
func (r *Resolver) Cancel(source string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if pq, ok := r.pending[source]; ok {
		if pq.timer != nil {
			pq.timer.Stop()
			pq.timer = nil
		}
		pq.seq++
	}
}

func (r *Resolver) run(source string, seq uint64, segment models.ExchangeSegment, query string, deliver func([]string)) {
	state, _ := r.cache.EnsureLoaded(context.Background(), segment)

	var results []string
	if state == master.StateLoaded {
		results = Rank(r.cache.Symbols(segment), query, r.limit)
	}

	r.mu.Lock()
	pq, ok := r.pending[source]
	stale := !ok || pq.seq != seq
	r.mu.Unlock()
	if stale {
		return
	}

	r.logger.Debug().
		Str("source", source).
		Str("segment", string(segment)).
		Str("query", query).
		Int("results", len(results)).
		Msg("search resolved")
	deliver(results)
}

// ResolveSync runs a query immediately, waiting for the segment's
// master to load first. Used by one-shot callers that have no
// keystroke stream to debounce.
func (r *Resolver) ResolveSync(ctx context.Context, segment models.ExchangeSegment, query string) ([]string, error) {
	if len(strings.TrimSpace(query)) < MinQueryLength {
		return nil, nil
	}

	state, done := r.cache.EnsureLoaded(ctx, segment)
	if state != master.StateLoaded {
		select {
		case <-done:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return Rank(r.cache.Symbols(segment), query, r.limit), nil
}
