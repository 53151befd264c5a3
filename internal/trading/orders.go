// Package trading validates and routes order operations.
package trading

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"neo-dashboard/internal/broker"
	apperrors "neo-dashboard/internal/errors"
	"neo-dashboard/internal/fields"
	"neo-dashboard/internal/master"
	"neo-dashboard/internal/models"
)

var (
	aliasOrderID     = fields.Alias{"nOrdNo", "order_id", "id"}
	aliasOrderSymbol = fields.Alias{"trdSym", "trading_symbol", "sym"}
	aliasOrderSide   = fields.Alias{"trnsTp", "transaction_type"}
	aliasOrderStatus = fields.Alias{"ordSt", "status"}
	aliasOrderQty    = fields.Alias{"qty", "quantity"}
	aliasOrderPrice  = fields.Alias{"prc", "price"}
)

// Gateway is the broker surface order operations need.
type Gateway interface {
	PlaceOrder(ctx context.Context, order *models.Order) (*broker.OrderResult, error)
	ModifyOrder(ctx context.Context, orderID string, order *models.Order) (*broker.OrderResult, error)
	CancelOrder(ctx context.Context, orderID string) (*broker.OrderResult, error)
	FetchOrders(ctx context.Context) (any, error)
}

// OrderService validates orders, corrects quantities to contract lot
// sizes, and forwards them to the broker.
type OrderService struct {
	gw     Gateway
	master *master.Cache
	logger zerolog.Logger
}

// NewOrderService creates an order service.
func NewOrderService(gw Gateway, cache *master.Cache, logger zerolog.Logger) *OrderService {
	return &OrderService{
		gw:     gw,
		master: cache,
		logger: logger.With().Str("component", "trading").Logger(),
	}
}

// Validate checks an order for obvious mistakes before it reaches the
// broker.
func Validate(order *models.Order) error {
	if order.Symbol == "" {
		return fmt.Errorf("order needs a trading symbol")
	}
	if order.Side != models.TransactionBuy && order.Side != models.TransactionSell {
		return fmt.Errorf("side must be %s or %s", models.TransactionBuy, models.TransactionSell)
	}
	if order.Quantity < 1 {
		return fmt.Errorf("quantity must be at least 1")
	}
	switch order.Type {
	case models.OrderTypeMarket:
	case models.OrderTypeLimit:
		if order.Price <= 0 {
			return fmt.Errorf("limit orders need a price")
		}
	case models.OrderTypeStopLoss, models.OrderTypeStopLossM:
		if order.TriggerPrice <= 0 {
			return fmt.Errorf("stop-loss orders need a trigger price")
		}
	default:
		return fmt.Errorf("unknown order type %q", order.Type)
	}
	return nil
}

// NormalizeQuantity maps an untouched quantity of 1 on a lot-traded
// contract to one lot. Lookup never triggers a master load; an
// unloaded segment leaves the quantity alone.
func (s *OrderService) NormalizeQuantity(order *models.Order) int {
	if order.Quantity != 1 || s.master == nil {
		return order.Quantity
	}
	if lot := s.master.LotSizeFor(order.Segment, order.Symbol); lot > 1 {
		return lot
	}
	return order.Quantity
}

// Place validates, lot-corrects, and places an order.
func (s *OrderService) Place(ctx context.Context, order *models.Order) (*broker.OrderResult, error) {
	if err := Validate(order); err != nil {
		return nil, err
	}
	order.Quantity = s.NormalizeQuantity(order)

	result, err := s.gw.PlaceOrder(ctx, order)
	if err != nil {
		return nil, apperrors.NewOrderError("", order.Symbol, "place", err)
	}
	s.logger.Info().
		Str("symbol", order.Symbol).
		Str("side", string(order.Side)).
		Int("quantity", order.Quantity).
		Str("order_id", result.OrderID).
		Msg("order placed")
	return result, nil
}

// Modify validates and modifies an open order.
func (s *OrderService) Modify(ctx context.Context, orderID string, order *models.Order) (*broker.OrderResult, error) {
	if err := Validate(order); err != nil {
		return nil, err
	}
	result, err := s.gw.ModifyOrder(ctx, orderID, order)
	if err != nil {
		return nil, apperrors.NewOrderError(orderID, order.Symbol, "modify", err)
	}
	s.logger.Info().Str("order_id", orderID).Msg("order modified")
	return result, nil
}

// Cancel cancels an open order.
func (s *OrderService) Cancel(ctx context.Context, orderID string) (*broker.OrderResult, error) {
	result, err := s.gw.CancelOrder(ctx, orderID)
	if err != nil {
		return nil, apperrors.NewOrderError(orderID, "", "cancel", err)
	}
	s.logger.Info().Str("order_id", orderID).Msg("order cancelled")
	return result, nil
}

// List fetches and normalizes the order book.
func (s *OrderService) List(ctx context.Context) ([]models.OrderRow, error) {
	raw, err := s.gw.FetchOrders(ctx)
	if err != nil {
		return nil, err
	}
	return ParseOrderRows(raw), nil
}

// ParseOrderRows normalizes the order book payload, tolerating the
// same response wrappers as the quote endpoints.
func ParseOrderRows(raw any) []models.OrderRow {
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

	rows := make([]models.OrderRow, 0, len(list))
	for _, item := range list {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		rows = append(rows, models.OrderRow{
			OrderID:  aliasOrderID.StringOr(m, ""),
			Symbol:   aliasOrderSymbol.StringOr(m, ""),
			Side:     aliasOrderSide.StringOr(m, ""),
			Status:   aliasOrderStatus.StringOr(m, ""),
			Quantity: aliasOrderQty.IntOr(m, 0),
			Price:    aliasOrderPrice.FloatOr(m, 0),
		})
	}
	return rows
}
