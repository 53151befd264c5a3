// Package broker provides broker integration interfaces and implementations.
package broker

import (
	"context"

	"neo-dashboard/internal/models"
)

// ScripMaster is the result of a master-retrieval call. The broker
// returns either a URL to a delimited master file or the instrument
// rows inline; exactly one of the fields is set.
type ScripMaster struct {
	URL  string
	Rows []map[string]any
}

// OrderResult represents the result of an order operation.
type OrderResult struct {
	OrderID string
	Status  string
	Message string
}

// Broker defines the capability set consumed from the brokerage API.
// Shape-variable responses (quotes, orders, positions, limits) are
// returned as decoded JSON and normalized downstream.
type Broker interface {
	// Authentication
	Login(ctx context.Context) error
	Logout(ctx context.Context) error
	IsAuthenticated() bool

	// Instrument master & search
	FetchInstrumentMaster(ctx context.Context, segment models.ExchangeSegment) (*ScripMaster, error)
	SearchInstruments(ctx context.Context, segment models.ExchangeSegment, query string) ([]map[string]any, error)

	// Market data
	FetchQuotes(ctx context.Context, refs []models.InstrumentRef) (any, error)

	// Orders
	PlaceOrder(ctx context.Context, order *models.Order) (*OrderResult, error)
	ModifyOrder(ctx context.Context, orderID string, order *models.Order) (*OrderResult, error)
	CancelOrder(ctx context.Context, orderID string) (*OrderResult, error)
	FetchOrders(ctx context.Context) (any, error)

	// Account
	FetchPositions(ctx context.Context) (any, error)
	FetchLimits(ctx context.Context) (any, error)

	// Streaming. Level-triggered: always called with the full desired
	// set of instruments, never a delta.
	Subscribe(ctx context.Context, refs []models.InstrumentRef) error
}
