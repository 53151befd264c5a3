// Package positions turns raw broker position rows into the derived
// per-instrument views shown on the dashboard, and drives position
// exits.
package positions

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"neo-dashboard/internal/broker"
	apperrors "neo-dashboard/internal/errors"
	"neo-dashboard/internal/fields"
	"neo-dashboard/internal/models"
	"neo-dashboard/internal/quotes"
)

var (
	aliasSymbol  = fields.Alias{"trdSym", "trading_symbol", "sym"}
	aliasSegment = fields.Alias{"exSeg", "exchange_segment"}
	aliasProduct = fields.Alias{"prod", "product"}
	aliasToken   = fields.Alias{"tok", "instrument_token", "token"}

	aliasFLBuyQty  = fields.Alias{"flBuyQty", "buy_quantity"}
	aliasFLSellQty = fields.Alias{"flSellQty", "sell_quantity"}
	aliasCFBuyQty  = fields.Alias{"cfBuyQty"}
	aliasCFSellQty = fields.Alias{"cfSellQty"}
	aliasBuyAmt    = fields.Alias{"buyAmt", "buy_amount"}
	aliasSellAmt   = fields.Alias{"sellAmt", "sell_amount"}
	aliasCFBuyAmt  = fields.Alias{"cfBuyAmt"}
	aliasCFSellAmt = fields.Alias{"cfSellAmt"}
)

// Aggregate is one instrument's raw position totals: fresh (fl) and
// carry-forward (cf) quantities plus traded values, as reported by
// the broker.
type Aggregate struct {
	Symbol  string
	Segment models.ExchangeSegment
	Product string
	Token   string

	FreshBuyQty    int
	FreshSellQty   int
	CarryBuyQty    int
	CarrySellQty   int
	BuyValue       float64
	SellValue      float64
	CarryBuyValue  float64
	CarrySellValue float64
}

// ParseAggregate extracts an Aggregate from one raw broker row.
// Missing or unparsable numeric fields count as zero; a missing
// segment defaults to the NSE cash segment.
func ParseAggregate(row map[string]any) Aggregate {
	segment := models.ExchangeSegment(aliasSegment.StringOr(row, string(models.NSECash)))
	return Aggregate{
		Symbol:  aliasSymbol.StringOr(row, ""),
		Segment: segment,
		Product: aliasProduct.StringOr(row, ""),
		Token:   aliasToken.StringOr(row, ""),

		FreshBuyQty:    aliasFLBuyQty.IntOr(row, 0),
		FreshSellQty:   aliasFLSellQty.IntOr(row, 0),
		CarryBuyQty:    aliasCFBuyQty.IntOr(row, 0),
		CarrySellQty:   aliasCFSellQty.IntOr(row, 0),
		BuyValue:       aliasBuyAmt.FloatOr(row, 0),
		SellValue:      aliasSellAmt.FloatOr(row, 0),
		CarryBuyValue:  aliasCFBuyAmt.FloatOr(row, 0),
		CarrySellValue: aliasCFSellAmt.FloatOr(row, 0),
	}
}

// Compute derives the position view from an aggregate and the
// instrument's last traded price. The whole view is recomputed from
// scratch; nothing is carried over from a previous refresh.
//
// P&L uses the difference of total traded values plus the open
// quantity marked at the last price. For open positions this treats
// realized and unrealized profit together, matching the broker's own
// day P&L figure.
func Compute(a Aggregate, ltp float64) models.PositionView {
	totalBuyQty := a.FreshBuyQty + a.CarryBuyQty
	totalSellQty := a.FreshSellQty + a.CarrySellQty
	totalBuyVal := a.BuyValue + a.CarryBuyValue
	totalSellVal := a.SellValue + a.CarrySellValue

	netQty := totalBuyQty - totalSellQty

	var avg float64
	switch {
	case netQty > 0 && totalBuyQty > 0:
		avg = totalBuyVal / float64(totalBuyQty)
	case netQty < 0 && totalSellQty > 0:
		avg = totalSellVal / float64(totalSellQty)
	}

	pnl := (totalSellVal - totalBuyVal) + float64(netQty)*ltp

	return models.PositionView{
		Symbol:          a.Symbol,
		Segment:         a.Segment,
		Token:           a.Token,
		Product:         a.Product,
		NetQuantity:     netQty,
		AveragePrice:    avg,
		LastTradedPrice: ltp,
		PnL:             pnl,
	}
}

// Gateway is the broker surface the position service needs.
type Gateway interface {
	FetchPositions(ctx context.Context) (any, error)
	FetchQuotes(ctx context.Context, refs []models.InstrumentRef) (any, error)
	PlaceOrder(ctx context.Context, order *models.Order) (*broker.OrderResult, error)
}

// Service fetches, prices, and exits positions.
type Service struct {
	gw     Gateway
	logger zerolog.Logger
}

// NewService creates a position service over the given gateway.
func NewService(gw Gateway, logger zerolog.Logger) *Service {
	return &Service{
		gw:     gw,
		logger: logger.With().Str("component", "positions").Logger(),
	}
}

// Refresh fetches the day's positions and recomputes every view with
// fresh last traded prices. A quote fetch failure degrades to views
// with zero LTP rather than failing the refresh.
func (s *Service) Refresh(ctx context.Context) ([]models.PositionView, error) {
	raw, err := s.gw.FetchPositions(ctx)
	if err != nil {
		return nil, err
	}

	rows := extractRows(raw)
	aggregates := make([]Aggregate, 0, len(rows))
	for _, row := range rows {
		agg := ParseAggregate(row)
		if agg.Symbol == "" && agg.Token == "" {
			continue
		}
		aggregates = append(aggregates, agg)
	}

	prices := s.fetchPrices(ctx, aggregates)

	views := make([]models.PositionView, 0, len(aggregates))
	for _, agg := range aggregates {
		views = append(views, Compute(agg, prices[agg.Token]))
	}
	return views, nil
}

func (s *Service) fetchPrices(ctx context.Context, aggregates []Aggregate) map[string]float64 {
	prices := make(map[string]float64)

	var refs []models.InstrumentRef
	seen := make(map[string]struct{})
	for _, agg := range aggregates {
		if agg.Token == "" {
			continue
		}
		if _, dup := seen[agg.Token]; dup {
			continue
		}
		seen[agg.Token] = struct{}{}
		refs = append(refs, models.InstrumentRef{Token: agg.Token, Segment: agg.Segment})
	}
	if len(refs) == 0 {
		return prices
	}

	raw, err := s.gw.FetchQuotes(ctx, refs)
	if err != nil {
		s.logger.Warn().Err(err).Msg("quote fetch failed, positions shown without LTP")
		return prices
	}
	for _, q := range quotes.Normalize(raw) {
		if q.LastPrice != nil {
			prices[q.Token] = *q.LastPrice
		}
	}
	return prices
}

// Exit flattens one open position with an opposite market order.
// A flat position is a no-op.
func (s *Service) Exit(ctx context.Context, view models.PositionView) (*broker.OrderResult, error) {
	if view.NetQuantity == 0 {
		return nil, nil
	}

	side := models.TransactionSell
	qty := view.NetQuantity
	if qty < 0 {
		side = models.TransactionBuy
		qty = -qty
	}

	order := &models.Order{
		Segment:  view.Segment,
		Symbol:   view.Symbol,
		Token:    view.Token,
		Side:     side,
		Type:     models.OrderTypeMarket,
		Product:  models.ProductType(view.Product),
		Quantity: qty,
		Validity: "DAY",
	}

	result, err := s.gw.PlaceOrder(ctx, order)
	if err != nil {
		return nil, fmt.Errorf("exiting %s: %w", view.Symbol, err)
	}
	s.logger.Info().
		Str("symbol", view.Symbol).
		Str("side", string(side)).
		Int("quantity", qty).
		Str("order_id", result.OrderID).
		Msg("position exit placed")
	return result, nil
}

// CloseAll exits every open position, continuing past individual
// failures. The summary reports how many exits succeeded and which
// failed.
func (s *Service) CloseAll(ctx context.Context, views []models.PositionView) *apperrors.BatchSummary {
	summary := &apperrors.BatchSummary{}
	for _, view := range views {
		if view.NetQuantity == 0 {
			continue
		}
		_, err := s.Exit(ctx, view)
		summary.Add(err)
	}
	return summary
}

// extractRows accepts the position payload shapes the broker emits:
// a bare list or a {"data": [...]} wrapper.
func extractRows(raw any) []map[string]any {
	payload := raw
	if m, ok := raw.(map[string]any); ok {
		if data, exists := m["data"]; exists {
			payload = data
		}
	}
	list, ok := payload.([]any)
	if !ok {
		return nil
	}
	rows := make([]map[string]any, 0, len(list))
	for _, item := range list {
		if row, ok := item.(map[string]any); ok {
			rows = append(rows, row)
		}
	}
	return rows
}
