package snapshotv1

import (
	"time"

	"github.com/shopspring/decimal"
)

// Snapshot represents the engine state at a job boundary: the full book plus
// the stream offset of the last applied job.
type Snapshot struct {
	Instrument string      `json:"instrument"`
	JobOffset  int64       `json:"job_offset"`
	Asks       []BookOrder `json:"asks"`
	Bids       []BookOrder `json:"bids"`
	TakenAt    time.Time   `json:"taken_at"`
}

// BookOrder is a resting order flattened for the snapshot payload. Each side
// is serialized in price-then-FIFO priority order, so restoring by straight
// append reproduces the exact book.
type BookOrder struct {
	OrderID     string          `json:"order_id"`
	ClientID    string          `json:"client_id"`
	Price       decimal.Decimal `json:"price"`
	Remaining   decimal.Decimal `json:"remaining"`
	FilledTotal decimal.Decimal `json:"filled_total"`
	CreatedAt   time.Time       `json:"created_at"`
}
