package resolver

import (
	"context"
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"neo-dashboard/internal/broker"
	"neo-dashboard/internal/master"
	"neo-dashboard/internal/models"
)

type staticSource struct {
	symbols []string
	calls   int32
}

func (s *staticSource) FetchInstrumentMaster(ctx context.Context, segment models.ExchangeSegment) (*broker.ScripMaster, error) {
	atomic.AddInt32(&s.calls, 1)
	rows := make([]map[string]any, len(s.symbols))
	for i, sym := range s.symbols {
		rows[i] = map[string]any{"pTrdSymbol": sym}
	}
	return &broker.ScripMaster{Rows: rows}, nil
}

func newLoadedResolver(t *testing.T, symbols []string, opts ...Option) *Resolver {
	t.Helper()
	cache := master.NewCache(&staticSource{symbols: symbols}, zerolog.Nop())
	_, done := cache.EnsureLoaded(context.Background(), models.NSECash)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("master load did not settle")
	}
	return New(cache, zerolog.Nop(), opts...)
}

func TestRankPrefixBeforeContains(t *testing.T) {
	symbols := []string{"ANIFTY", "NIFTYBANK", "XNIFTY", "NIFTY50"}
	got := Rank(symbols, "NIFTY", 0)
	want := []string{"NIFTYBANK", "NIFTY50", "ANIFTY", "XNIFTY"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Rank = %v, want %v", got, want)
	}
}

func TestRankCaseInsensitive(t *testing.T) {
	symbols := []string{"Reliance-EQ", "RELINFRA-EQ", "GMRINFRA-EQ"}
	got := Rank(symbols, "reli", 0)
	want := []string{"Reliance-EQ", "RELINFRA-EQ"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Rank = %v, want %v", got, want)
	}
}

func TestRankShortQueryReturnsNothing(t *testing.T) {
	if got := Rank([]string{"A", "AB", "ABC"}, "A", 0); got != nil {
		t.Fatalf("Rank with 1-char query = %v, want nil", got)
	}
	if got := Rank([]string{"ABC"}, "  ", 0); got != nil {
		t.Fatalf("Rank with blank query = %v, want nil", got)
	}
}

func TestRankHonorsLimit(t *testing.T) {
	var symbols []string
	for i := 0; i < 80; i++ {
		symbols = append(symbols, fmt.Sprintf("TCS%02d", i))
	}
	got := Rank(symbols, "TCS", 0)
	if len(got) != DefaultLimit {
		t.Fatalf("len = %d, want %d", len(got), DefaultLimit)
	}
	got = Rank(symbols, "TCS", 5)
	if len(got) != 5 {
		t.Fatalf("len = %d, want 5", len(got))
	}
}

func TestRankPreservesInputOrderWithinTier(t *testing.T) {
	symbols := []string{"SBIN-EQ", "SBICARD-EQ", "SBILIFE-EQ"}
	got := Rank(symbols, "SBI", 0)
	if !reflect.DeepEqual(got, symbols) {
		t.Fatalf("Rank = %v, want input order %v", got, symbols)
	}
}

func TestSearchDebounceCollapsesBurst(t *testing.T) {
	r := newLoadedResolver(t, []string{"RELIANCE-EQ", "RELINFRA-EQ"},
		WithDebounce(30*time.Millisecond))

	var mu sync.Mutex
	var deliveries [][]string
	deliver := func(results []string) {
		mu.Lock()
		deliveries = append(deliveries, results)
		mu.Unlock()
	}

	// Five rapid keystrokes; only the last query should run.
	for _, q := range []string{"RE", "REL", "RELI", "RELIA", "RELIAN"} {
		r.Search("widget-1", models.NSECash, q, deliver)
		time.Sleep(5 * time.Millisecond)
	}
	time.Sleep(100 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if len(deliveries) != 1 {
		t.Fatalf("deliveries = %d, want 1", len(deliveries))
	}
	if !reflect.DeepEqual(deliveries[0], []string{"RELIANCE-EQ"}) {
		t.Fatalf("delivered %v, want [RELIANCE-EQ]", deliveries[0])
	}
}

func TestSearchShortQueryCancelsPending(t *testing.T) {
	r := newLoadedResolver(t, []string{"ITC-EQ"},
		WithDebounce(30*time.Millisecond))

	var delivered atomic.Int32
	deliver := func([]string) { delivered.Add(1) }

	r.Search("widget-1", models.NSECash, "ITC", deliver)
	r.Search("widget-1", models.NSECash, "I", deliver)
	time.Sleep(100 * time.Millisecond)

	if n := delivered.Load(); n != 0 {
		t.Fatalf("deliveries = %d, want 0 after short query cancel", n)
	}
}

func TestSearchSourcesAreIndependent(t *testing.T) {
	r := newLoadedResolver(t, []string{"TCS-EQ", "INFY-EQ"},
		WithDebounce(20*time.Millisecond))

	var mu sync.Mutex
	got := make(map[string][]string)
	deliverFor := func(key string) func([]string) {
		return func(results []string) {
			mu.Lock()
			got[key] = results
			mu.Unlock()
		}
	}

	r.Search("widget-1", models.NSECash, "TCS", deliverFor("widget-1"))
	r.Search("widget-2", models.NSECash, "INFY", deliverFor("widget-2"))
	time.Sleep(100 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if !reflect.DeepEqual(got["widget-1"], []string{"TCS-EQ"}) {
		t.Errorf("widget-1 = %v", got["widget-1"])
	}
	if !reflect.DeepEqual(got["widget-2"], []string{"INFY-EQ"}) {
		t.Errorf("widget-2 = %v", got["widget-2"])
	}
}

func TestSearchUnloadedSegmentDeliversEmptyAndTriggersLoad(t *testing.T) {
	src := &staticSource{symbols: []string{"GOLDM24SEPFUT"}}
	cache := master.NewCache(src, zerolog.Nop())
	r := New(cache, zerolog.Nop(), WithDebounce(10*time.Millisecond))

	var mu sync.Mutex
	var deliveries [][]string
	r.Search("widget-1", models.CommodityFO, "GOLD", func(results []string) {
		mu.Lock()
		deliveries = append(deliveries, results)
		mu.Unlock()
	})
	time.Sleep(100 * time.Millisecond)

	mu.Lock()
	if len(deliveries) != 1 || len(deliveries[0]) != 0 {
		mu.Unlock()
		t.Fatalf("deliveries = %v, want one empty delivery", deliveries)
	}
	mu.Unlock()

	if atomic.LoadInt32(&src.calls) == 0 {
		t.Fatal("search on unloaded segment did not trigger a load")
	}
}

func TestResolveSyncWaitsForLoad(t *testing.T) {
	src := &staticSource{symbols: []string{"SILVERM24SEPFUT", "GOLDM24SEPFUT"}}
	cache := master.NewCache(src, zerolog.Nop())
	r := New(cache, zerolog.Nop())

	got, err := r.ResolveSync(context.Background(), models.CommodityFO, "GOLD")
	if err != nil {
		t.Fatalf("ResolveSync: %v", err)
	}
	if !reflect.DeepEqual(got, []string{"GOLDM24SEPFUT"}) {
		t.Fatalf("ResolveSync = %v", got)
	}
}
