package marketdatav1

import (
	"context"

	bookv1 "github.com/openspot/matching-core/internal/domain/book/v1"
	orderv1 "github.com/openspot/matching-core/internal/domain/order/v1"
)

// Usecase is the read-only query surface over the book and the ledger.
//
//go:generate mockgen -source interface.go -destination=mock/interface_mock.go -package=marketdatav1_mock
type Usecase interface {
	// OrderBook returns up to levels price levels per side, best first.
	// A non-positive levels falls back to the configured default.
	OrderBook(ctx context.Context, levels int) (*bookv1.Depth, error)
	// GetOrder returns the current ledger state of an order.
	GetOrder(ctx context.Context, orderID string) (*orderv1.Order, error)
	// RecentTrades returns the latest trades, newest first.
	RecentTrades(ctx context.Context, limit int) ([]orderv1.Trade, error)
	// DetailedTrades returns the latest trades with both order legs joined.
	DetailedTrades(ctx context.Context, limit int) ([]orderv1.DetailedTrade, error)
}
