package bookv1

import (
	"time"

	"github.com/shopspring/decimal"

	orderv1 "github.com/openspot/matching-core/internal/domain/order/v1"
)

// RestingOrder is the in-memory form of an order sitting on the book.
type RestingOrder struct {
	OrderID     string
	ClientID    string
	Side        orderv1.Side
	Price       decimal.Decimal
	Remaining   decimal.Decimal
	FilledTotal decimal.Decimal
	CreatedAt   time.Time
}

// DepthLevel is one price level aggregated across its resting orders.
// Cumulative is the running sum of quantity from the best price down to
// this level within the returned window.
type DepthLevel struct {
	Price      decimal.Decimal `json:"price"`
	Quantity   decimal.Decimal `json:"quantity"`
	Cumulative decimal.Decimal `json:"cumulative"`
	Orders     int             `json:"orders"`
}

// Depth is the two-sided ladder view of the book, best prices first.
type Depth struct {
	Instrument string       `json:"instrument"`
	Bids       []DepthLevel `json:"bids"`
	Asks       []DepthLevel `json:"asks"`
}
