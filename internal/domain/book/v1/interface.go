package bookv1

import (
	"github.com/shopspring/decimal"

	orderv1 "github.com/openspot/matching-core/internal/domain/order/v1"
	snapshotv1 "github.com/openspot/matching-core/internal/domain/snapshot/v1"
)

// Book defines the single-instrument price-time priority order book.
// Level operations address the side the level lives on; only BestOpposite
// looks across the book from the taker's point of view.
//
//go:generate mockgen -source interface.go -destination=mock/interface_mock.go -package=bookv1_mock
type Book interface {
	// BestOpposite returns the best price opposite the taker: the lowest ask
	// for a buyer, the highest bid for a seller.
	BestOpposite(taker orderv1.Side) (decimal.Decimal, bool)
	// PopOldestAt removes and returns the order at the head of the level's
	// FIFO queue. An emptied level is removed from the price index.
	PopOldestAt(side orderv1.Side, price decimal.Decimal) (*RestingOrder, bool)
	// PushFrontAt returns a partially filled order to the head of its level,
	// recreating the level if it was removed.
	PushFrontAt(side orderv1.Side, price decimal.Decimal, ro *RestingOrder)
	// AppendAt adds a new resting order to the tail of its level, creating
	// the level if needed.
	AppendAt(side orderv1.Side, price decimal.Decimal, ro *RestingOrder)
	// Remove deletes the order with the given id wherever it rests.
	Remove(orderID string) (*RestingOrder, bool)
	// Fetch returns a copy of the resting order with the given id.
	Fetch(orderID string) (*RestingOrder, bool)
	// LevelQuantity returns the total quantity resting at a level, zero once
	// the level is gone.
	LevelQuantity(side orderv1.Side, price decimal.Decimal) decimal.Decimal

	// Depth returns up to levels price levels per side, asks ascending and
	// bids descending.
	Depth(levels int) *Depth

	// CreateSnapshot captures every resting order in priority order.
	CreateSnapshot() *snapshotv1.Snapshot
	// RestoreSnapshot replaces the book contents with the snapshot's orders.
	RestoreSnapshot(snapshot *snapshotv1.Snapshot) error

	AskCount() int
	BidCount() int
	Len() int
}
