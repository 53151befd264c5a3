package trading

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"neo-dashboard/internal/broker"
	apperrors "neo-dashboard/internal/errors"
	"neo-dashboard/internal/master"
	"neo-dashboard/internal/models"
)

type fakeGateway struct {
	placed    []*models.Order
	modified  []string
	cancelled []string
	orderBook any
	placeErr  error
}

func (g *fakeGateway) PlaceOrder(ctx context.Context, order *models.Order) (*broker.OrderResult, error) {
	if g.placeErr != nil {
		return nil, g.placeErr
	}
	copied := *order
	g.placed = append(g.placed, &copied)
	return &broker.OrderResult{OrderID: "240001", Status: "Ok"}, nil
}

func (g *fakeGateway) ModifyOrder(ctx context.Context, orderID string, order *models.Order) (*broker.OrderResult, error) {
	g.modified = append(g.modified, orderID)
	return &broker.OrderResult{OrderID: orderID, Status: "Ok"}, nil
}

func (g *fakeGateway) CancelOrder(ctx context.Context, orderID string) (*broker.OrderResult, error) {
	g.cancelled = append(g.cancelled, orderID)
	return &broker.OrderResult{OrderID: orderID, Status: "Ok"}, nil
}

func (g *fakeGateway) FetchOrders(ctx context.Context) (any, error) {
	return g.orderBook, nil
}

type lotSource struct {
	rows []map[string]any
}

func (s *lotSource) FetchInstrumentMaster(ctx context.Context, segment models.ExchangeSegment) (*broker.ScripMaster, error) {
	return &broker.ScripMaster{Rows: s.rows}, nil
}

func newLoadedService(t *testing.T, gw *fakeGateway, segment models.ExchangeSegment, rows []map[string]any) *OrderService {
	t.Helper()
	cache := master.NewCache(&lotSource{rows: rows}, zerolog.Nop())
	_, done := cache.EnsureLoaded(context.Background(), segment)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("master load did not settle")
	}
	return NewOrderService(gw, cache, zerolog.Nop())
}

func marketOrder(symbol string, qty int) *models.Order {
	return &models.Order{
		Segment:  models.NSEFO,
		Symbol:   symbol,
		Side:     models.TransactionBuy,
		Type:     models.OrderTypeMarket,
		Product:  models.ProductMIS,
		Quantity: qty,
		Validity: "DAY",
	}
}

func TestValidateRejectsBadOrders(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*models.Order)
	}{
		{"missing symbol", func(o *models.Order) { o.Symbol = "" }},
		{"bad side", func(o *models.Order) { o.Side = "X" }},
		{"zero quantity", func(o *models.Order) { o.Quantity = 0 }},
		{"limit without price", func(o *models.Order) { o.Type = models.OrderTypeLimit; o.Price = 0 }},
		{"stop-loss without trigger", func(o *models.Order) { o.Type = models.OrderTypeStopLoss; o.TriggerPrice = 0 }},
		{"unknown type", func(o *models.Order) { o.Type = "IOC" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			order := marketOrder("NIFTY25SEP24500CE", 1)
			tc.mutate(order)
			if err := Validate(order); err == nil {
				t.Fatal("Validate accepted a bad order")
			}
		})
	}
}

func TestValidateAcceptsWellFormedOrders(t *testing.T) {
	if err := Validate(marketOrder("RELIANCE-EQ", 10)); err != nil {
		t.Fatalf("Validate(market) = %v", err)
	}
	limit := marketOrder("RELIANCE-EQ", 10)
	limit.Type = models.OrderTypeLimit
	limit.Price = 2950.5
	if err := Validate(limit); err != nil {
		t.Fatalf("Validate(limit) = %v", err)
	}
}

func TestPlaceCorrectsQuantityToLotSize(t *testing.T) {
	gw := &fakeGateway{}
	svc := newLoadedService(t, gw, models.NSEFO, []map[string]any{
		{"pTrdSymbol": "NIFTY25SEP24500CE", "lLotSize": 25},
	})

	if _, err := svc.Place(context.Background(), marketOrder("NIFTY25SEP24500CE", 1)); err != nil {
		t.Fatalf("Place = %v", err)
	}
	if got := gw.placed[0].Quantity; got != 25 {
		t.Fatalf("placed quantity = %d, want 25", got)
	}
}

func TestPlaceKeepsExplicitQuantity(t *testing.T) {
	gw := &fakeGateway{}
	svc := newLoadedService(t, gw, models.NSEFO, []map[string]any{
		{"pTrdSymbol": "NIFTY25SEP24500CE", "lLotSize": 25},
	})

	order := marketOrder("NIFTY25SEP24500CE", 50)
	if _, err := svc.Place(context.Background(), order); err != nil {
		t.Fatalf("Place = %v", err)
	}
	if got := gw.placed[0].Quantity; got != 50 {
		t.Fatalf("placed quantity = %d, want 50", got)
	}
}

func TestPlaceLeavesEquityQuantityAlone(t *testing.T) {
	gw := &fakeGateway{}
	svc := newLoadedService(t, gw, models.NSEFO, []map[string]any{
		{"pTrdSymbol": "RELIANCE-EQ", "lLotSize": 1},
	})

	if _, err := svc.Place(context.Background(), marketOrder("RELIANCE-EQ", 1)); err != nil {
		t.Fatalf("Place = %v", err)
	}
	if got := gw.placed[0].Quantity; got != 1 {
		t.Fatalf("placed quantity = %d, want 1", got)
	}
}

func TestPlaceWrapsGatewayFailure(t *testing.T) {
	gw := &fakeGateway{placeErr: errors.New("gateway down")}
	svc := NewOrderService(gw, nil, zerolog.Nop())

	_, err := svc.Place(context.Background(), marketOrder("RELIANCE-EQ", 10))
	if err == nil {
		t.Fatal("Place succeeded against a failing gateway")
	}
	var oe *apperrors.OrderError
	if !errors.As(err, &oe) {
		t.Fatalf("error %T is not an OrderError", err)
	}
	if oe.Action != "place" || oe.Symbol != "RELIANCE-EQ" {
		t.Fatalf("OrderError = %+v", oe)
	}
}

func TestModifyAndCancelRouteOrderID(t *testing.T) {
	gw := &fakeGateway{}
	svc := NewOrderService(gw, nil, zerolog.Nop())

	limit := marketOrder("RELIANCE-EQ", 10)
	limit.Type = models.OrderTypeLimit
	limit.Price = 2900
	if _, err := svc.Modify(context.Background(), "240007", limit); err != nil {
		t.Fatalf("Modify = %v", err)
	}
	if _, err := svc.Cancel(context.Background(), "240007"); err != nil {
		t.Fatalf("Cancel = %v", err)
	}
	if len(gw.modified) != 1 || gw.modified[0] != "240007" {
		t.Fatalf("modified = %v", gw.modified)
	}
	if len(gw.cancelled) != 1 || gw.cancelled[0] != "240007" {
		t.Fatalf("cancelled = %v", gw.cancelled)
	}
}

func TestListNormalizesOrderBook(t *testing.T) {
	gw := &fakeGateway{orderBook: map[string]any{
		"data": []any{
			map[string]any{
				"nOrdNo": "240001",
				"trdSym": "RELIANCE-EQ",
				"trnsTp": "B",
				"ordSt":  "complete",
				"qty":    float64(10),
				"prc":    "2950.50",
			},
			map[string]any{
				"order_id":         "240002",
				"trading_symbol":   "TCS-EQ",
				"transaction_type": "S",
				"status":           "rejected",
				"quantity":         "5",
				"price":            float64(4100),
			},
		},
	}}
	svc := NewOrderService(gw, nil, zerolog.Nop())

	rows, err := svc.List(context.Background())
	if err != nil {
		t.Fatalf("List = %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("len(rows) = %d, want 2", len(rows))
	}
	first := models.OrderRow{OrderID: "240001", Symbol: "RELIANCE-EQ", Side: "B", Status: "complete", Quantity: 10, Price: 2950.5}
	if rows[0] != first {
		t.Fatalf("rows[0] = %+v, want %+v", rows[0], first)
	}
	if rows[1].OrderID != "240002" || rows[1].Quantity != 5 || rows[1].Price != 4100 {
		t.Fatalf("rows[1] = %+v", rows[1])
	}
}

func TestParseOrderRowsToleratesBareList(t *testing.T) {
	rows := ParseOrderRows([]any{
		map[string]any{"nOrdNo": "1", "trdSym": "SBIN-EQ"},
		"not a row",
	})
	if len(rows) != 1 || rows[0].Symbol != "SBIN-EQ" {
		t.Fatalf("rows = %+v", rows)
	}
	if got := ParseOrderRows("garbage"); got != nil {
		t.Fatalf("ParseOrderRows(garbage) = %v", got)
	}
}
