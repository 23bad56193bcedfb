package engine

import (
	"context"
	"fmt"

	jobstreamv1 "github.com/openspot/matching-core/internal/domain/jobstream/v1"
	orderv1 "github.com/openspot/matching-core/internal/domain/order/v1"
	streamv1 "github.com/openspot/matching-core/internal/domain/stream/v1"
	"github.com/openspot/matching-core/pkg/errors"
	"github.com/openspot/matching-core/pkg/logger"
)

// applyCancel removes a resting order. The ledger row is authoritative for
// side and price; the cancelled status is written before the book changes,
// so a crash in between leaves a terminal row still resting, which the next
// touch of that level cleans up.
func (e *Engine) applyCancel(ctx context.Context, job *jobstreamv1.Job) error {
	resting, ok := e.book.Fetch(job.OrderID)
	if !ok {
		e.logger.InfoContext(ctx, fmt.Sprintf("Cancel for order %s is a no-op, nothing rests", job.OrderID))
		return nil
	}

	row, err := e.ledger.GetOrder(ctx, job.OrderID)
	if err != nil {
		return err
	}
	if row == nil {
		return errors.NewErrorDetails(
			fmt.Sprintf("order %s rests on the book but has no ledger row", job.OrderID),
			string(errors.InvariantViolation),
			"order_id",
		)
	}

	side := row.Side
	price := resting.Price
	if row.Price.Valid {
		price = row.Price.Decimal
	}

	if row.Status.Terminal() {
		e.book.Remove(job.OrderID)
		e.logger.Warn("removed terminal order still resting on the book",
			logger.Field{Key: "order_id", Value: job.OrderID},
			logger.Field{Key: "status", Value: row.Status},
		)
		e.publish(ctx, streamv1.NewBookDeltaEvent(side, price, e.book.LevelQuantity(side, price)))
		return nil
	}

	if _, err := e.ledger.UpdateOrderStatus(ctx, job.OrderID, orderv1.StatusCancelled, row.FilledQuantity); err != nil {
		return err
	}

	e.book.Remove(job.OrderID)

	e.logger.InfoContext(ctx, fmt.Sprintf("Cancelled order %s with %s filled", job.OrderID, row.FilledQuantity.String()))

	e.publish(ctx,
		streamv1.NewBookDeltaEvent(side, price, e.book.LevelQuantity(side, price)),
		streamv1.NewOrderUpdateEvent(job.OrderID, orderv1.StatusCancelled, row.FilledQuantity),
	)

	return nil
}
