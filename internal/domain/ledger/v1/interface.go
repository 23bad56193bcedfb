package ledgerv1

import (
	"context"

	"github.com/shopspring/decimal"

	orderv1 "github.com/openspot/matching-core/internal/domain/order/v1"
)

// Repository defines the durable order and trade store.
//
//go:generate mockgen -source interface.go -destination=mock/interface_mock.go -package=ledgerv1_mock
type Repository interface {
	// InsertOpenOrder persists a brand new order in status open with zero
	// filled quantity and returns it with its id and timestamps assigned.
	InsertOpenOrder(ctx context.Context, order *orderv1.Order) (*orderv1.Order, error)
	// CreateTrade persists one execution and returns it with its id assigned.
	CreateTrade(ctx context.Context, trade *orderv1.Trade) (*orderv1.Trade, error)
	// UpdateOrderStatus sets the status and filled quantity of an order and
	// returns the updated row. Writing the values already stored succeeds
	// unchanged, which keeps replays harmless.
	UpdateOrderStatus(ctx context.Context, orderID string, status orderv1.Status, filledQuantity decimal.Decimal) (*orderv1.Order, error)
	// GetOrder returns the order with the given id.
	GetOrder(ctx context.Context, orderID string) (*orderv1.Order, error)
	// RecentTrades returns the latest trades, newest first.
	RecentTrades(ctx context.Context, limit int) ([]orderv1.Trade, error)
	// DetailedTrades returns the latest trades joined with both order legs,
	// newest first.
	DetailedTrades(ctx context.Context, limit int) ([]orderv1.DetailedTrade, error)
	// CountResting returns how many orders sit in a resting status
	// (open or partially filled).
	CountResting(ctx context.Context) (int64, error)

	// Tx runs fn with a transaction embedded in its context. Repository calls
	// made through that context join the transaction and commit or roll back
	// together.
	Tx(ctx context.Context, fn func(ctx context.Context) error) error
}
