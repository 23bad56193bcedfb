package orderv1

import (
	"time"

	"github.com/shopspring/decimal"
)

// Scale is the number of fractional digits kept on every price and quantity.
const Scale = 8

// Normalize truncates d to the canonical scale.
func Normalize(d decimal.Decimal) decimal.Decimal {
	return d.Truncate(Scale)
}

// Side represents which side of the book an order belongs to.
type Side string

const (
	// SideBuy represents a bid.
	SideBuy Side = "buy"
	// SideSell represents an ask.
	SideSell Side = "sell"
)

// Valid reports whether the side is one of the known values.
func (s Side) Valid() bool {
	return s == SideBuy || s == SideSell
}

// Opposite returns the other side of the book.
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// Type represents the pricing mode of an order.
type Type string

const (
	// TypeLimit represents an order with a price bound that may rest on the book.
	TypeLimit Type = "limit"
	// TypeMarket represents an order that takes whatever liquidity is available.
	TypeMarket Type = "market"
)

// Valid reports whether the type is one of the known values.
func (t Type) Valid() bool {
	return t == TypeLimit || t == TypeMarket
}

// Status represents the lifecycle state of an order.
type Status string

const (
	// StatusOpen represents an order resting on the book with no fills yet.
	StatusOpen Status = "open"
	// StatusPartiallyFilled represents an order with some quantity executed.
	StatusPartiallyFilled Status = "partially_filled"
	// StatusFilled represents an order whose quantity is fully executed.
	StatusFilled Status = "filled"
	// StatusCancelled represents an order removed before completion.
	StatusCancelled Status = "cancelled"
	// StatusRejected represents an order refused without touching the book.
	StatusRejected Status = "rejected"
)

// Terminal reports whether no further status transitions are allowed.
func (s Status) Terminal() bool {
	switch s {
	case StatusFilled, StatusCancelled, StatusRejected:
		return true
	default:
		return false
	}
}

// Order represents a single order in the ledger.
type Order struct {
	ID             string              `json:"id"`
	ClientID       string              `json:"client_id"`
	Instrument     string              `json:"instrument"`
	Side           Side                `json:"side"`
	Type           Type                `json:"type"`
	Price          decimal.NullDecimal `json:"price"`
	Quantity       decimal.Decimal     `json:"quantity"`
	FilledQuantity decimal.Decimal     `json:"filled_quantity"`
	Status         Status              `json:"status"`
	CreatedAt      time.Time           `json:"created_at"`
	UpdatedAt      time.Time           `json:"updated_at"`
}

// Remaining returns the quantity still waiting to execute.
func (o *Order) Remaining() decimal.Decimal {
	return o.Quantity.Sub(o.FilledQuantity)
}

// LimitPrice returns the price bound of a limit order.
// Market orders carry no price and return the zero decimal.
func (o *Order) LimitPrice() decimal.Decimal {
	if !o.Price.Valid {
		return decimal.Decimal{}
	}
	return o.Price.Decimal
}

// Trade represents a single execution between a resting maker and a taker.
type Trade struct {
	ID          string          `json:"id"`
	Instrument  string          `json:"instrument"`
	Price       decimal.Decimal `json:"price"`
	Quantity    decimal.Decimal `json:"quantity"`
	BuyOrderID  string          `json:"buy_order_id"`
	SellOrderID string          `json:"sell_order_id"`
	TakerSide   Side            `json:"taker_side"`
	ExecutedAt  time.Time       `json:"executed_at"`
}

// NewTrade builds the trade for an execution at the maker's resting price.
// The maker and taker sit on opposite sides, so the buy and sell legs are
// assigned from the taker's side.
func NewTrade(instrument string, takerID, makerID string, takerSide Side, price, qty decimal.Decimal) *Trade {
	t := &Trade{
		Instrument: instrument,
		Price:      price,
		Quantity:   qty,
		TakerSide:  takerSide,
		ExecutedAt: time.Now().UTC(),
	}

	if takerSide == SideBuy {
		t.BuyOrderID = takerID
		t.SellOrderID = makerID
	} else {
		t.BuyOrderID = makerID
		t.SellOrderID = takerID
	}

	return t
}

// DetailedTrade is a trade joined with both of its order legs.
type DetailedTrade struct {
	Trade
	BuyClientID   string `json:"buy_client_id"`
	SellClientID  string `json:"sell_client_id"`
	BuyOrderType  Type   `json:"buy_order_type"`
	SellOrderType Type   `json:"sell_order_type"`
}

// Submission is a client request to place a new order.
type Submission struct {
	IdempotencyKey string              `json:"idempotency_key" validate:"required"`
	ClientID       string              `json:"client_id" validate:"required"`
	Side           Side                `json:"side" validate:"required,oneof=buy sell"`
	Type           Type                `json:"type" validate:"required,oneof=limit market"`
	Price          decimal.NullDecimal `json:"price"`
	Quantity       decimal.Decimal     `json:"quantity" validate:"required"`
}
