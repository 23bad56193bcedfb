package streamv1

import (
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"

	orderv1 "github.com/openspot/matching-core/internal/domain/order/v1"
)

// Kind distinguishes the event types on the market data stream.
type Kind string

const (
	// KindNewTrade announces one execution.
	KindNewTrade Kind = "new_trade"
	// KindOrderUpdate announces an order status change.
	KindOrderUpdate Kind = "order_update"
	// KindBookDelta announces the new aggregate quantity of a price level.
	KindBookDelta Kind = "orderbook_delta"
)

// Event is the envelope broadcast to stream subscribers. Exactly one payload
// field is set, matching Kind.
type Event struct {
	ID   string    `json:"id"`
	Kind Kind      `json:"kind"`
	At   time.Time `json:"at"`

	Trade *orderv1.Trade `json:"trade,omitempty"`
	Order *OrderUpdate   `json:"order,omitempty"`
	Delta *BookDelta     `json:"delta,omitempty"`
}

// OrderUpdate is the order_update payload.
type OrderUpdate struct {
	OrderID        string          `json:"order_id"`
	Status         orderv1.Status  `json:"status"`
	FilledQuantity decimal.Decimal `json:"filled_quantity"`
}

// BookDelta is the orderbook_delta payload. NewQuantity zero means the level
// is gone.
type BookDelta struct {
	Side        orderv1.Side    `json:"side"`
	Price       decimal.Decimal `json:"price"`
	NewQuantity decimal.Decimal `json:"new_quantity"`
}

// NewTradeEvent wraps an execution for the stream.
func NewTradeEvent(trade *orderv1.Trade) Event {
	return Event{
		ID:    ulid.Make().String(),
		Kind:  KindNewTrade,
		At:    time.Now().UTC(),
		Trade: trade,
	}
}

// NewOrderUpdateEvent wraps an order status change for the stream.
func NewOrderUpdateEvent(orderID string, status orderv1.Status, filledQuantity decimal.Decimal) Event {
	return Event{
		ID:   ulid.Make().String(),
		Kind: KindOrderUpdate,
		At:   time.Now().UTC(),
		Order: &OrderUpdate{
			OrderID:        orderID,
			Status:         status,
			FilledQuantity: filledQuantity,
		},
	}
}

// NewBookDeltaEvent wraps a price level change for the stream.
func NewBookDeltaEvent(side orderv1.Side, price, newQuantity decimal.Decimal) Event {
	return Event{
		ID:   ulid.Make().String(),
		Kind: KindBookDelta,
		At:   time.Now().UTC(),
		Delta: &BookDelta{
			Side:        side,
			Price:       price,
			NewQuantity: newQuantity,
		},
	}
}
