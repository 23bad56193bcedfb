package book

import (
	"github.com/shopspring/decimal"

	bookv1 "github.com/openspot/matching-core/internal/domain/book/v1"
)

// entry is a resting order's seat in its level's FIFO queue. The book's
// id map points at entries so removal by id stays O(1).
type entry struct {
	ro    *bookv1.RestingOrder
	level *level
	prev  *entry
	next  *entry
}

// level holds all resting orders at one price in arrival order.
type level struct {
	price    decimal.Decimal
	head     *entry
	tail     *entry
	totalQty decimal.Decimal
	count    int
}

func newLevel(price decimal.Decimal) *level {
	return &level{
		price:    price,
		totalQty: decimal.Zero,
	}
}

// enqueue appends at the tail, the youngest position in the queue.
func (lvl *level) enqueue(e *entry) {
	if lvl.head == nil {
		lvl.head = e
		lvl.tail = e
	} else {
		lvl.tail.next = e
		e.prev = lvl.tail
		lvl.tail = e
	}
	e.level = lvl
	lvl.totalQty = lvl.totalQty.Add(e.ro.Remaining)
	lvl.count++
}

// pushFront inserts at the head, ahead of every queued order.
func (lvl *level) pushFront(e *entry) {
	if lvl.head == nil {
		lvl.head = e
		lvl.tail = e
	} else {
		lvl.head.prev = e
		e.next = lvl.head
		lvl.head = e
	}
	e.level = lvl
	lvl.totalQty = lvl.totalQty.Add(e.ro.Remaining)
	lvl.count++
}

// dequeue removes and returns the oldest entry, nil on an empty level.
func (lvl *level) dequeue() *entry {
	if lvl.head == nil {
		return nil
	}
	e := lvl.head
	lvl.head = e.next
	if lvl.head != nil {
		lvl.head.prev = nil
	} else {
		lvl.tail = nil
	}
	e.next, e.prev = nil, nil
	e.level = nil
	lvl.totalQty = lvl.totalQty.Sub(e.ro.Remaining)
	lvl.count--
	return e
}

// unlink removes an entry from anywhere in the queue.
func (lvl *level) unlink(e *entry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		lvl.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		lvl.tail = e.prev
	}
	e.next, e.prev = nil, nil
	e.level = nil
	lvl.totalQty = lvl.totalQty.Sub(e.ro.Remaining)
	lvl.count--
	if lvl.totalQty.IsNegative() {
		lvl.totalQty = decimal.Zero
	}
}

func (lvl *level) empty() bool {
	return lvl.count == 0
}
