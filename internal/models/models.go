// Package models provides domain models for the dashboard engine.
package models

// ExchangeSegment identifies a broker trading venue partition.
// The instrument master, quotes and streaming subscriptions are all
// keyed by (token, segment) pairs using these identifiers.
type ExchangeSegment string

const (
	NSECash     ExchangeSegment = "nse_cm"
	BSECash     ExchangeSegment = "bse_cm"
	NSEFO       ExchangeSegment = "nse_fo"
	BSEFO       ExchangeSegment = "bse_fo"
	CurrencyFO  ExchangeSegment = "cde_fo"
	CommodityFO ExchangeSegment = "mcx_fo"
)

// Segments lists all known exchange segments.
func Segments() []ExchangeSegment {
	return []ExchangeSegment{NSECash, BSECash, NSEFO, BSEFO, CurrencyFO, CommodityFO}
}

// TransactionType represents the side of an order.
type TransactionType string

const (
	TransactionBuy  TransactionType = "B"
	TransactionSell TransactionType = "S"
)

// OrderType represents the type of an order.
type OrderType string

const (
	OrderTypeMarket    OrderType = "MKT"
	OrderTypeLimit     OrderType = "L"
	OrderTypeStopLoss  OrderType = "SL"
	OrderTypeStopLossM OrderType = "SL-M"
)

// ProductType represents the product type of an order.
type ProductType string

const (
	ProductMIS  ProductType = "MIS"  // Intraday
	ProductCNC  ProductType = "CNC"  // Delivery
	ProductNRML ProductType = "NRML" // F&O Normal
)

// InstrumentRecord is one row of a loaded instrument master: the
// trading symbol and its minimum tradeable lot size.
type InstrumentRecord struct {
	Symbol  string
	LotSize int
}

// InstrumentRef identifies an instrument for quote requests and
// streaming subscriptions. Token is opaque to this engine.
type InstrumentRef struct {
	Token   string
	Segment ExchangeSegment
}

// Quote is the canonical normalized quote record. Pointer fields
// distinguish "no data" from "value 0": an absent field stays nil so
// consumers never clobber known values with defaults.
type Quote struct {
	Token         string
	Symbol        string
	LastPrice     *float64
	Change        *float64
	PercentChange *float64
	Open          *float64
	High          *float64
	Low           *float64
	Close         *float64
}

// WatchlistEntry is one tracked instrument. Uniquely identified by
// (Token, Segment); price fields are nil until the first quote or
// push update arrives.
type WatchlistEntry struct {
	Symbol        string          `json:"symbol"`
	Token         string          `json:"token"`
	Segment       ExchangeSegment `json:"segment"`
	LastPrice     *float64        `json:"ltp,omitempty"`
	Change        *float64        `json:"change,omitempty"`
	PercentChange *float64        `json:"p_change,omitempty"`
}

// Order represents an order request to the broker.
type Order struct {
	Segment      ExchangeSegment
	Symbol       string
	Token        string
	Side         TransactionType
	Type         OrderType
	Product      ProductType
	Quantity     int
	Price        float64
	TriggerPrice float64
	Validity     string
	AMO          bool
}

// OrderRow is a normalized order-book row.
type OrderRow struct {
	OrderID  string
	Symbol   string
	Side     string
	Status   string
	Quantity int
	Price    float64
}

// PositionView is the derived per-instrument position state shown to
// the user. Recomputed in full on every refresh; never patched
// incrementally.
type PositionView struct {
	Symbol          string
	Segment         ExchangeSegment
	Token           string
	Product         string
	NetQuantity     int
	AveragePrice    float64
	LastTradedPrice float64
	PnL             float64
}

// Side reports the directional label for the position: BUY for net
// long, SELL for net short, CLOSED when flat.
func (v PositionView) Side() string {
	switch {
	case v.NetQuantity > 0:
		return "BUY"
	case v.NetQuantity < 0:
		return "SELL"
	default:
		return "CLOSED"
	}
}
