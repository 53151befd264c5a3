package master

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"neo-dashboard/internal/broker"
	"neo-dashboard/internal/models"
)

type fakeSource struct {
	mu     sync.Mutex
	calls  int32
	master *broker.ScripMaster
	err    error
	delay  time.Duration
}

func (f *fakeSource) FetchInstrumentMaster(ctx context.Context, segment models.ExchangeSegment) (*broker.ScripMaster, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.master, nil
}

func inlineMaster(rows ...map[string]any) *broker.ScripMaster {
	return &broker.ScripMaster{Rows: rows}
}

func waitLoaded(t *testing.T, done <-chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("load did not settle in time")
	}
}

func TestEnsureLoadedPopulatesSegment(t *testing.T) {
	src := &fakeSource{master: inlineMaster(
		map[string]any{"pTrdSymbol": "RELIANCE-EQ", "lLotSize": "1"},
		map[string]any{"pTrdSymbol": "INFY-EQ", "lLotSize": "1"},
	)}
	cache := NewCache(src, zerolog.Nop())

	state, done := cache.EnsureLoaded(context.Background(), models.NSECash)
	if state != StateLoading {
		t.Fatalf("state = %v, want loading", state)
	}
	waitLoaded(t, done)

	if got := cache.State(models.NSECash); got != StateLoaded {
		t.Fatalf("state after load = %v, want loaded", got)
	}
	symbols := cache.Symbols(models.NSECash)
	if len(symbols) != 2 {
		t.Fatalf("symbols = %v, want 2 entries", symbols)
	}
	if symbols[0] != "INFY-EQ" || symbols[1] != "RELIANCE-EQ" {
		t.Fatalf("symbols not sorted: %v", symbols)
	}
}

func TestEnsureLoadedIsIdempotent(t *testing.T) {
	src := &fakeSource{master: inlineMaster(
		map[string]any{"pTrdSymbol": "SBIN-EQ"},
	)}
	cache := NewCache(src, zerolog.Nop())

	_, done := cache.EnsureLoaded(context.Background(), models.NSECash)
	waitLoaded(t, done)

	for i := 0; i < 5; i++ {
		state, done := cache.EnsureLoaded(context.Background(), models.NSECash)
		if state != StateLoaded {
			t.Fatalf("call %d: state = %v, want loaded", i, state)
		}
		waitLoaded(t, done)
	}
	if calls := atomic.LoadInt32(&src.calls); calls != 1 {
		t.Fatalf("source called %d times, want 1", calls)
	}
}

func TestEnsureLoadedSingleFlight(t *testing.T) {
	src := &fakeSource{
		master: inlineMaster(map[string]any{"pTrdSymbol": "TCS-EQ"}),
		delay:  50 * time.Millisecond,
	}
	cache := NewCache(src, zerolog.Nop())

	var wg sync.WaitGroup
	dones := make([]<-chan struct{}, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, dones[i] = cache.EnsureLoaded(context.Background(), models.NSEFO)
		}(i)
	}
	wg.Wait()
	for _, done := range dones {
		waitLoaded(t, done)
	}

	if calls := atomic.LoadInt32(&src.calls); calls != 1 {
		t.Fatalf("source called %d times under concurrent access, want 1", calls)
	}
}

func TestSegmentsAreIndependent(t *testing.T) {
	src := &fakeSource{master: inlineMaster(
		map[string]any{"pTrdSymbol": "NIFTY24SEPFUT", "lLotSize": "25"},
	)}
	cache := NewCache(src, zerolog.Nop())

	_, done := cache.EnsureLoaded(context.Background(), models.NSEFO)
	waitLoaded(t, done)

	if got := cache.State(models.BSECash); got != StateAbsent {
		t.Fatalf("untouched segment state = %v, want absent", got)
	}
	if got := cache.Symbols(models.BSECash); got != nil {
		t.Fatalf("untouched segment symbols = %v, want nil", got)
	}
}

func TestFailedLoadIsRetryable(t *testing.T) {
	src := &fakeSource{err: context.DeadlineExceeded}
	cache := NewCache(src, zerolog.Nop())

	_, done := cache.EnsureLoaded(context.Background(), models.NSECash)
	waitLoaded(t, done)

	if got := cache.State(models.NSECash); got != StateAbsent {
		t.Fatalf("state after failure = %v, want absent", got)
	}

	// Swap in a working response; the next call must retry.
	src.mu.Lock()
	src.err = nil
	src.master = inlineMaster(map[string]any{"pTrdSymbol": "HDFCBANK-EQ"})
	src.mu.Unlock()

	_, done = cache.EnsureLoaded(context.Background(), models.NSECash)
	waitLoaded(t, done)
	if got := cache.State(models.NSECash); got != StateLoaded {
		t.Fatalf("state after retry = %v, want loaded", got)
	}
	if calls := atomic.LoadInt32(&src.calls); calls != 2 {
		t.Fatalf("source called %d times, want 2", calls)
	}
}

func TestLotSizeDefaultsToOne(t *testing.T) {
	src := &fakeSource{master: inlineMaster(
		map[string]any{"pTrdSymbol": "BANKNIFTY24SEPFUT", "lLotSize": "15"},
		map[string]any{"pTrdSymbol": "RELIANCE-EQ"},
	)}
	cache := NewCache(src, zerolog.Nop())

	_, done := cache.EnsureLoaded(context.Background(), models.NSEFO)
	waitLoaded(t, done)

	if got := cache.LotSizeFor(models.NSEFO, "BANKNIFTY24SEPFUT"); got != 15 {
		t.Errorf("lot size = %d, want 15", got)
	}
	// Lookup is case-insensitive.
	if got := cache.LotSizeFor(models.NSEFO, "banknifty24sepfut"); got != 15 {
		t.Errorf("case-insensitive lot size = %d, want 15", got)
	}
	if got := cache.LotSizeFor(models.NSEFO, "RELIANCE-EQ"); got != 1 {
		t.Errorf("missing lot size = %d, want 1", got)
	}
	if got := cache.LotSizeFor(models.NSEFO, "UNKNOWN"); got != 1 {
		t.Errorf("unknown symbol lot size = %d, want 1", got)
	}
	if got := cache.LotSizeFor(models.CommodityFO, "GOLDM24SEPFUT"); got != 1 {
		t.Errorf("unloaded segment lot size = %d, want 1", got)
	}
}

func TestLoadFromFileURL(t *testing.T) {
	csv := "pSymbol,pTrdSymbol,lLotSize\n11536,TCS-EQ,1\n2885,RELIANCE-EQ,1\n11536,TCS-EQ,1\n"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(csv))
	}))
	defer srv.Close()

	src := &fakeSource{master: &broker.ScripMaster{URL: srv.URL}}
	cache := NewCache(src, zerolog.Nop())

	_, done := cache.EnsureLoaded(context.Background(), models.NSECash)
	waitLoaded(t, done)

	symbols := cache.Symbols(models.NSECash)
	if len(symbols) != 2 {
		t.Fatalf("symbols = %v, want duplicates collapsed to 2", symbols)
	}
	if symbols[0] != "RELIANCE-EQ" || symbols[1] != "TCS-EQ" {
		t.Fatalf("symbols = %v", symbols)
	}
}

func TestStatusCallback(t *testing.T) {
	src := &fakeSource{master: inlineMaster(map[string]any{"pTrdSymbol": "ITC-EQ"})}
	cache := NewCache(src, zerolog.Nop())

	var mu sync.Mutex
	var messages []string
	cache.OnStatus(func(seg models.ExchangeSegment, msg string) {
		mu.Lock()
		messages = append(messages, msg)
		mu.Unlock()
	})

	_, done := cache.EnsureLoaded(context.Background(), models.NSECash)
	waitLoaded(t, done)

	mu.Lock()
	defer mu.Unlock()
	if len(messages) < 2 {
		t.Fatalf("messages = %v, want load start and completion", messages)
	}
}
