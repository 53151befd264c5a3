// Package master maintains the per-segment instrument master cache:
// tradable symbols and lot sizes, loaded lazily and kept for the
// lifetime of the process.
package master

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/rs/zerolog"

	"neo-dashboard/internal/broker"
	"neo-dashboard/internal/fields"
	"neo-dashboard/internal/models"
)

// State describes the load state of one segment's partition.
type State int

const (
	StateAbsent State = iota
	StateLoading
	StateLoaded
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateLoaded:
		return "loaded"
	default:
		return "absent"
	}
}

var (
	aliasMasterSymbol = fields.Alias{"pTrdSymbol", "pSymbol", "pSymbolName", "trading_symbol"}
	aliasMasterLot    = fields.Alias{"lLotSize", "iLotSize", "iBoardLotQty", "lot_size"}
)

// masterRow maps the columns of a delimited scrip master file. Column
// names vary across segments; the first populated candidate wins.
type masterRow struct {
	TrdSymbol   string `csv:"pTrdSymbol"`
	Symbol      string `csv:"pSymbol"`
	SymbolName  string `csv:"pSymbolName"`
	LotSize     string `csv:"lLotSize"`
	AltLotSize  string `csv:"iLotSize"`
	BoardLotQty string `csv:"iBoardLotQty"`
}

type segmentData struct {
	state   State
	done    chan struct{}
	symbols []string
	lots    map[string]int
}

// StatusFunc receives human-readable load progress messages.
type StatusFunc func(segment models.ExchangeSegment, message string)

// Source supplies raw scrip master data for a segment.
type Source interface {
	FetchInstrumentMaster(ctx context.Context, segment models.ExchangeSegment) (*broker.ScripMaster, error)
}

// Cache is the in-memory instrument master, partitioned by exchange
// segment. Each partition loads at most once per process; a failed
// load leaves the partition absent so a later call can retry.
type Cache struct {
	source     Source
	httpClient *http.Client
	logger     zerolog.Logger
	onStatus   StatusFunc

	mu       sync.Mutex
	segments map[models.ExchangeSegment]*segmentData
}

// NewCache creates an empty instrument master cache.
func NewCache(source Source, logger zerolog.Logger) *Cache {
	return &Cache{
		source:     source,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		logger:     logger.With().Str("component", "master").Logger(),
		segments:   make(map[models.ExchangeSegment]*segmentData),
	}
}

// OnStatus registers a progress callback. Must be set before the
// first load.
func (c *Cache) OnStatus(fn StatusFunc) {
	c.onStatus = fn
}

// EnsureLoaded kicks off a load for the segment unless one already
// happened or is underway. It returns the partition's state at call
// time plus a channel that closes when the in-flight load settles
// (already closed for a loaded partition). Callers that only need the
// side effect can ignore both.
func (c *Cache) EnsureLoaded(ctx context.Context, segment models.ExchangeSegment) (State, <-chan struct{}) {
	c.mu.Lock()
	sd, ok := c.segments[segment]
	if ok && sd.state != StateAbsent {
		state, done := sd.state, sd.done
		c.mu.Unlock()
		return state, done
	}

	sd = &segmentData{state: StateLoading, done: make(chan struct{})}
	c.segments[segment] = sd
	c.mu.Unlock()

	go c.load(ctx, segment, sd)
	return StateLoading, sd.done
}

// State reports the partition state without triggering a load.
func (c *Cache) State(segment models.ExchangeSegment) State {
	c.mu.Lock()
	defer c.mu.Unlock()
	if sd, ok := c.segments[segment]; ok {
		return sd.state
	}
	return StateAbsent
}

// Symbols returns the sorted, de-duplicated symbol list for a loaded
// segment, or nil when the partition is not loaded. The returned
// slice is shared; callers must not mutate it.
func (c *Cache) Symbols(segment models.ExchangeSegment) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if sd, ok := c.segments[segment]; ok && sd.state == StateLoaded {
		return sd.symbols
	}
	return nil
}

// LotSizeFor answers the lot size for a symbol, falling back to 1 for
// unknown symbols or unloaded segments. It never triggers a load.
func (c *Cache) LotSizeFor(segment models.ExchangeSegment, symbol string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if sd, ok := c.segments[segment]; ok && sd.state == StateLoaded {
		if lot, ok := sd.lots[strings.ToUpper(symbol)]; ok && lot > 0 {
			return lot
		}
	}
	return 1
}

func (c *Cache) status(segment models.ExchangeSegment, format string, args ...any) {
	if c.onStatus != nil {
		c.onStatus(segment, fmt.Sprintf(format, args...))
	}
}

func (c *Cache) load(ctx context.Context, segment models.ExchangeSegment, sd *segmentData) {
	c.status(segment, "Loading instruments for %s...", segment)
	started := time.Now()

	records, err := c.fetch(ctx, segment)
	if err != nil {
		c.logger.Warn().Err(err).Str("segment", string(segment)).Msg("instrument master load failed")
		c.status(segment, "Failed to load %s: %v", segment, err)

		c.mu.Lock()
		delete(c.segments, segment)
		c.mu.Unlock()
		close(sd.done)
		return
	}

	symbols := make([]string, 0, len(records))
	lots := make(map[string]int, len(records))
	seen := make(map[string]struct{}, len(records))
	for _, rec := range records {
		if rec.Symbol == "" {
			continue
		}
		upper := strings.ToUpper(rec.Symbol)
		if _, dup := seen[upper]; !dup {
			seen[upper] = struct{}{}
			symbols = append(symbols, rec.Symbol)
		}
		if rec.LotSize > 0 {
			lots[upper] = rec.LotSize
		}
	}
	sort.Strings(symbols)

	c.mu.Lock()
	sd.symbols = symbols
	sd.lots = lots
	sd.state = StateLoaded
	c.mu.Unlock()
	close(sd.done)

	c.logger.Info().
		Str("segment", string(segment)).
		Int("symbols", len(symbols)).
		Dur("took", time.Since(started)).
		Msg("instrument master loaded")
	c.status(segment, "Loaded %d instruments for %s", len(symbols), segment)
}

func (c *Cache) fetch(ctx context.Context, segment models.ExchangeSegment) ([]models.InstrumentRecord, error) {
	sm, err := c.source.FetchInstrumentMaster(ctx, segment)
	if err != nil {
		return nil, err
	}
	if sm.URL != "" {
		return c.fetchFile(ctx, sm.URL)
	}
	return parseRows(sm.Rows), nil
}

// fetchFile downloads and parses a delimited scrip master file.
func (c *Cache) fetchFile(ctx context.Context, fileURL string) ([]models.InstrumentRecord, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("scrip master file: status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	return parseCSV(body)
}

func parseCSV(data []byte) ([]models.InstrumentRecord, error) {
	var rows []*masterRow
	if err := gocsv.UnmarshalBytes(data, &rows); err != nil {
		return nil, fmt.Errorf("parsing scrip master: %w", err)
	}

	records := make([]models.InstrumentRecord, 0, len(rows))
	for _, row := range rows {
		symbol := firstNonEmpty(row.TrdSymbol, row.Symbol, row.SymbolName)
		if symbol == "" {
			continue
		}
		lot := 1
		if raw := firstNonEmpty(row.LotSize, row.AltLotSize, row.BoardLotQty); raw != "" {
			if v, ok := fields.Coerce(raw); ok && int(v) > 0 {
				lot = int(v)
			}
		}
		records = append(records, models.InstrumentRecord{Symbol: symbol, LotSize: lot})
	}
	return records, nil
}

// parseRows handles the inline-row master response shape.
func parseRows(rows []map[string]any) []models.InstrumentRecord {
	records := make([]models.InstrumentRecord, 0, len(rows))
	for _, row := range rows {
		symbol := aliasMasterSymbol.StringOr(row, "")
		if symbol == "" {
			continue
		}
		lot := aliasMasterLot.IntOr(row, 1)
		if lot <= 0 {
			lot = 1
		}
		records = append(records, models.InstrumentRecord{Symbol: symbol, LotSize: lot})
	}
	return records
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
