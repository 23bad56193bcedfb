package book

import (
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	bookv1 "github.com/openspot/matching-core/internal/domain/book/v1"
	orderv1 "github.com/openspot/matching-core/internal/domain/order/v1"
	snapshotv1 "github.com/openspot/matching-core/internal/domain/snapshot/v1"
	"github.com/openspot/matching-core/pkg/errors"
	"github.com/openspot/matching-core/pkg/logger"
)

// Book is the in-memory order book for a single instrument. Each side keeps
// a red-black price index whose levels queue resting orders in arrival
// order, plus a shared id map for O(1) lookups and cancels.
//
// The engine goroutine is the only writer. Depth, Fetch and CreateSnapshot
// take read locks and may observe states in the middle of a matching step.
type Book struct {
	mu         sync.RWMutex
	instrument string
	asks       *levelTree
	bids       *levelTree
	orders     map[string]*entry
	askOrders  int
	bidOrders  int
	logger     logger.Interface
}

var _ bookv1.Book = (*Book)(nil)

// NewBook creates an empty book for one instrument.
func NewBook(instrument string, log logger.Interface) *Book {
	return &Book{
		instrument: instrument,
		asks:       newLevelTree(),
		bids:       newLevelTree(),
		orders:     make(map[string]*entry),
		logger:     log,
	}
}

// BestOpposite returns the best price the taker can trade against: the
// lowest ask for a buyer, the highest bid for a seller. An indexed price
// with an empty queue is an orphan; it is cleaned up and skipped rather
// than aborting the match.
func (b *Book) BestOpposite(taker orderv1.Side) (decimal.Decimal, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	side := taker.Opposite()
	tree := b.sideTree(side)
	best := tree.max
	if side == orderv1.SideSell {
		best = tree.min
	}

	for lvl := best(); lvl != nil; lvl = best() {
		if lvl.empty() {
			b.logger.Warn("removing orphan price level",
				logger.NewField("side", side),
				logger.NewField("price", lvl.price.String()),
			)
			tree.remove(lvl.price)
			continue
		}
		return lvl.price, true
	}
	return decimal.Decimal{}, false
}

// PopOldestAt removes and returns the order at the head of the level's FIFO
// queue. The level is dropped from the price index once it empties.
func (b *Book) PopOldestAt(side orderv1.Side, price decimal.Decimal) (*bookv1.RestingOrder, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	tree := b.sideTree(side)
	lvl := tree.find(price)
	if lvl == nil {
		return nil, false
	}

	e := lvl.dequeue()
	if e == nil {
		b.logger.Warn("removing orphan price level",
			logger.NewField("side", side),
			logger.NewField("price", price.String()),
		)
		tree.remove(price)
		return nil, false
	}

	if _, ok := b.orders[e.ro.OrderID]; ok {
		delete(b.orders, e.ro.OrderID)
	} else {
		b.logger.Warn("resting order was missing from the id map",
			logger.NewField("order_id", e.ro.OrderID),
		)
	}
	b.addSide(side, -1)

	if lvl.empty() {
		tree.remove(price)
	}
	return e.ro, true
}

// PushFrontAt returns a partially filled maker to the head of its level so
// it keeps its time priority, recreating the level if it was removed.
func (b *Book) PushFrontAt(side orderv1.Side, price decimal.Decimal, ro *bookv1.RestingOrder) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.insert(side, price, ro, true)
}

// AppendAt adds a new resting order to the tail of its level, creating the
// level if needed.
func (b *Book) AppendAt(side orderv1.Side, price decimal.Decimal, ro *bookv1.RestingOrder) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.insert(side, price, ro, false)
}

// Remove deletes the order with the given id wherever it rests.
func (b *Book) Remove(orderID string) (*bookv1.RestingOrder, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	e, ok := b.orders[orderID]
	if !ok {
		return nil, false
	}
	if e.level == nil {
		b.logger.Warn("resting order had no price level, cleaning id map",
			logger.NewField("order_id", orderID),
		)
	}
	b.removeEntry(e)
	return e.ro, true
}

// Fetch returns a copy of the resting order with the given id.
func (b *Book) Fetch(orderID string) (*bookv1.RestingOrder, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	e, ok := b.orders[orderID]
	if !ok {
		return nil, false
	}
	ro := *e.ro
	return &ro, true
}

// LevelQuantity returns the total quantity resting at a level, zero once
// the level is gone.
func (b *Book) LevelQuantity(side orderv1.Side, price decimal.Decimal) decimal.Decimal {
	b.mu.RLock()
	defer b.mu.RUnlock()

	lvl := b.sideTree(side).find(price)
	if lvl == nil {
		return decimal.Zero
	}
	return lvl.totalQty
}

// Depth returns up to levels price levels per side, asks ascending and bids
// descending, each carrying the running sum of quantity within the window.
// levels <= 0 returns every level.
func (b *Book) Depth(levels int) *bookv1.Depth {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return &bookv1.Depth{
		Instrument: b.instrument,
		Bids:       collectLevels(b.bids.descend, levels, b.bids.len()),
		Asks:       collectLevels(b.asks.ascend, levels, b.asks.len()),
	}
}

// CreateSnapshot captures every resting order, best prices first and FIFO
// within each level, so restoring by straight append reproduces the book.
func (b *Book) CreateSnapshot() *snapshotv1.Snapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()

	snap := &snapshotv1.Snapshot{
		Instrument: b.instrument,
		JobOffset:  0, // stamped by the engine before persisting
		Asks:       make([]snapshotv1.BookOrder, 0, b.askOrders),
		Bids:       make([]snapshotv1.BookOrder, 0, b.bidOrders),
		TakenAt:    time.Now().UTC(),
	}
	b.asks.ascend(func(lvl *level) bool {
		snap.Asks = appendLevelOrders(snap.Asks, lvl)
		return true
	})
	b.bids.descend(func(lvl *level) bool {
		snap.Bids = appendLevelOrders(snap.Bids, lvl)
		return true
	})
	return snap
}

// RestoreSnapshot replaces the book contents with the snapshot's orders.
func (b *Book) RestoreSnapshot(snapshot *snapshotv1.Snapshot) error {
	if snapshot == nil {
		return errors.NewErrorDetails("snapshot cannot be nil", string(errors.ValidationError), "snapshot")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if snapshot.Instrument != "" && snapshot.Instrument != b.instrument {
		return errors.NewErrorDetails(
			fmt.Sprintf("snapshot instrument %s does not match book instrument %s", snapshot.Instrument, b.instrument),
			string(errors.InvariantViolation),
			"instrument",
		)
	}

	b.asks.clear()
	b.bids.clear()
	b.orders = make(map[string]*entry)
	b.askOrders = 0
	b.bidOrders = 0

	for _, bo := range snapshot.Asks {
		if err := b.restoreOrder(orderv1.SideSell, bo); err != nil {
			return err
		}
	}
	for _, bo := range snapshot.Bids {
		if err := b.restoreOrder(orderv1.SideBuy, bo); err != nil {
			return err
		}
	}
	return nil
}

// AskCount returns the number of resting sell orders.
func (b *Book) AskCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.askOrders
}

// BidCount returns the number of resting buy orders.
func (b *Book) BidCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.bidOrders
}

// Len returns the total number of resting orders.
func (b *Book) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.orders)
}

func (b *Book) sideTree(side orderv1.Side) *levelTree {
	if side == orderv1.SideBuy {
		return b.bids
	}
	return b.asks
}

// insert places ro into its level and the id map. Caller holds the lock.
// A duplicate id is replaced so the book never seats one order twice.
func (b *Book) insert(side orderv1.Side, price decimal.Decimal, ro *bookv1.RestingOrder, front bool) {
	if prev, ok := b.orders[ro.OrderID]; ok {
		b.logger.Warn("replacing duplicate resting order",
			logger.NewField("order_id", ro.OrderID),
		)
		b.removeEntry(prev)
	}

	lvl := b.sideTree(side).upsert(price)
	e := &entry{ro: ro}
	if front {
		lvl.pushFront(e)
	} else {
		lvl.enqueue(e)
	}
	b.orders[ro.OrderID] = e
	b.addSide(side, 1)
}

// removeEntry unlinks e from its level and the id map. Caller holds the lock.
func (b *Book) removeEntry(e *entry) {
	if lvl := e.level; lvl != nil {
		lvl.unlink(e)
		if lvl.empty() {
			b.sideTree(e.ro.Side).remove(lvl.price)
		}
	}
	delete(b.orders, e.ro.OrderID)
	b.addSide(e.ro.Side, -1)
}

func (b *Book) restoreOrder(side orderv1.Side, bo snapshotv1.BookOrder) error {
	if _, ok := b.orders[bo.OrderID]; ok {
		return errors.NewErrorDetails(
			fmt.Sprintf("duplicate order %s in snapshot", bo.OrderID),
			string(errors.InvariantViolation),
			"order_id",
		)
	}

	ro := &bookv1.RestingOrder{
		OrderID:     bo.OrderID,
		ClientID:    bo.ClientID,
		Side:        side,
		Price:       bo.Price,
		Remaining:   bo.Remaining,
		FilledTotal: bo.FilledTotal,
		CreatedAt:   bo.CreatedAt,
	}
	e := &entry{ro: ro}
	b.sideTree(side).upsert(bo.Price).enqueue(e)
	b.orders[bo.OrderID] = e
	b.addSide(side, 1)
	return nil
}

func (b *Book) addSide(side orderv1.Side, delta int) {
	if side == orderv1.SideBuy {
		b.bidOrders += delta
		if b.bidOrders < 0 {
			b.bidOrders = 0
		}
	} else {
		b.askOrders += delta
		if b.askOrders < 0 {
			b.askOrders = 0
		}
	}
}

func collectLevels(walk func(func(*level) bool), levels, sideLevels int) []bookv1.DepthLevel {
	capHint := sideLevels
	if levels > 0 && levels < capHint {
		capHint = levels
	}

	out := make([]bookv1.DepthLevel, 0, capHint)
	cumulative := decimal.Zero
	walk(func(lvl *level) bool {
		if !lvl.totalQty.IsPositive() {
			return true
		}
		cumulative = cumulative.Add(lvl.totalQty)
		out = append(out, bookv1.DepthLevel{
			Price:      lvl.price,
			Quantity:   lvl.totalQty,
			Cumulative: cumulative,
			Orders:     lvl.count,
		})
		return levels <= 0 || len(out) < levels
	})
	return out
}

func appendLevelOrders(dst []snapshotv1.BookOrder, lvl *level) []snapshotv1.BookOrder {
	for e := lvl.head; e != nil; e = e.next {
		dst = append(dst, snapshotv1.BookOrder{
			OrderID:     e.ro.OrderID,
			ClientID:    e.ro.ClientID,
			Price:       lvl.price,
			Remaining:   e.ro.Remaining,
			FilledTotal: e.ro.FilledTotal,
			CreatedAt:   e.ro.CreatedAt,
		})
	}
	return dst
}
