package engine

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	bookv1 "github.com/openspot/matching-core/internal/domain/book/v1"
	jobstreamv1 "github.com/openspot/matching-core/internal/domain/jobstream/v1"
	orderv1 "github.com/openspot/matching-core/internal/domain/order/v1"
	streamv1 "github.com/openspot/matching-core/internal/domain/stream/v1"
	"github.com/openspot/matching-core/pkg/config"
	"github.com/openspot/matching-core/pkg/errors"
	"github.com/openspot/matching-core/pkg/logger"
)

// crosses reports whether a limit price reaches the best opposite price.
func crosses(side orderv1.Side, limit, best decimal.Decimal) bool {
	if side == orderv1.SideBuy {
		return limit.GreaterThanOrEqual(best)
	}
	return limit.LessThanOrEqual(best)
}

// applySubmit matches one submitted order against the book. The taker's
// progress is read back from the ledger first, so a replayed job resumes
// from its durable fill instead of matching from zero.
func (e *Engine) applySubmit(ctx context.Context, job *jobstreamv1.Job) error {
	if job.Order == nil {
		return errors.NewErrorDetails(
			fmt.Sprintf("submit job at offset %d carries no order", job.Offset),
			string(errors.InvariantViolation),
			"order",
		)
	}

	row, err := e.ledger.GetOrder(ctx, job.Order.ID)
	if err != nil {
		return err
	}
	if row == nil {
		return errors.NewErrorDetails(
			fmt.Sprintf("order %s from the stream does not exist in the ledger", job.Order.ID),
			string(errors.InvariantViolation),
			"order_id",
		)
	}

	if row.Status.Terminal() {
		e.logger.InfoContext(ctx, fmt.Sprintf("Order %s is already %s, skipping replayed submit", row.ID, row.Status))
		return nil
	}
	if _, resting := e.book.Fetch(row.ID); resting {
		e.logger.InfoContext(ctx, fmt.Sprintf("Order %s already rests on the book, skipping replayed submit", row.ID))
		return nil
	}

	taker := *row
	eps := e.options.MatchEpsilon
	fills := 0

	for taker.Remaining().GreaterThan(eps) {
		best, ok := e.book.BestOpposite(taker.Side)
		if !ok {
			break
		}
		if taker.Type == orderv1.TypeLimit && !crosses(taker.Side, taker.LimitPrice(), best) {
			break
		}

		maker, ok := e.book.PopOldestAt(taker.Side.Opposite(), best)
		if !ok {
			// Orphan level, already cleaned by the pop. Query again.
			continue
		}

		matched, err := e.tradeStep(ctx, &taker, maker, best)
		if err != nil {
			return err
		}
		if matched {
			fills++
		}
	}

	return e.settleTaker(ctx, &taker, fills)
}

// tradeStep executes one trade between the taker and a popped maker at the
// maker's resting price. The trade row and both order updates commit in one
// transaction, so each iteration is atomically durable and a retried job
// resumes exactly where the last commit left it.
func (e *Engine) tradeStep(ctx context.Context, taker *orderv1.Order, maker *bookv1.RestingOrder, price decimal.Decimal) (bool, error) {
	eps := e.options.MatchEpsilon
	tradeQty := decimal.Min(taker.Remaining(), maker.Remaining)
	if tradeQty.LessThanOrEqual(eps) {
		return false, e.retireDustMaker(ctx, maker)
	}

	newTakerFilled := taker.FilledQuantity.Add(tradeQty)
	takerStatus := orderv1.StatusPartiallyFilled
	if taker.Quantity.Sub(newTakerFilled).LessThanOrEqual(eps) {
		takerStatus = orderv1.StatusFilled
	}

	makerRemaining := maker.Remaining.Sub(tradeQty)
	makerFilled := maker.FilledTotal.Add(tradeQty)
	makerStatus := orderv1.StatusPartiallyFilled
	if makerRemaining.LessThanOrEqual(eps) {
		makerStatus = orderv1.StatusFilled
	}

	trade := orderv1.NewTrade(e.instrument, taker.ID, maker.OrderID, taker.Side, price, tradeQty)
	makerSide := maker.Side

	err := e.ledger.Tx(ctx, func(txCtx context.Context) error {
		persisted, err := e.ledger.CreateTrade(txCtx, trade)
		if err != nil {
			return err
		}
		trade = persisted

		if _, err := e.ledger.UpdateOrderStatus(txCtx, maker.OrderID, makerStatus, makerFilled); err != nil {
			return err
		}
		_, err = e.ledger.UpdateOrderStatus(txCtx, taker.ID, takerStatus, newTakerFilled)
		return err
	})
	if err != nil {
		// The maker was popped optimistically. Put it back at the front so
		// the book is unchanged when the job retries.
		e.book.PushFrontAt(makerSide, maker.Price, maker)
		return false, err
	}

	taker.FilledQuantity = newTakerFilled
	taker.Status = takerStatus
	maker.Remaining = makerRemaining
	maker.FilledTotal = makerFilled
	if makerStatus != orderv1.StatusFilled {
		e.book.PushFrontAt(makerSide, maker.Price, maker)
	}

	e.logger.Debug("trade executed",
		logger.Field{Key: "trade_id", Value: trade.ID},
		logger.Field{Key: "price", Value: trade.Price.String()},
		logger.Field{Key: "quantity", Value: trade.Quantity.String()},
		logger.Field{Key: "taker_id", Value: taker.ID},
		logger.Field{Key: "maker_id", Value: maker.OrderID},
	)

	e.publish(ctx,
		streamv1.NewTradeEvent(trade),
		streamv1.NewBookDeltaEvent(makerSide, price, e.book.LevelQuantity(makerSide, price)),
		streamv1.NewOrderUpdateEvent(maker.OrderID, makerStatus, makerFilled),
		streamv1.NewOrderUpdateEvent(taker.ID, taker.Status, taker.FilledQuantity),
	)

	return true, nil
}

// retireDustMaker closes out a maker whose remainder is at or below the
// epsilon. Pushing it back would hand the next iteration the same head
// order forever.
func (e *Engine) retireDustMaker(ctx context.Context, maker *bookv1.RestingOrder) error {
	if _, err := e.ledger.UpdateOrderStatus(ctx, maker.OrderID, orderv1.StatusFilled, maker.FilledTotal); err != nil {
		e.book.PushFrontAt(maker.Side, maker.Price, maker)
		return err
	}

	e.logger.Warn("retired maker with dust remainder",
		logger.Field{Key: "order_id", Value: maker.OrderID},
		logger.Field{Key: "remaining", Value: maker.Remaining.String()},
	)

	e.publish(ctx,
		streamv1.NewBookDeltaEvent(maker.Side, maker.Price, e.book.LevelQuantity(maker.Side, maker.Price)),
		streamv1.NewOrderUpdateEvent(maker.OrderID, orderv1.StatusFilled, maker.FilledTotal),
	)

	return nil
}

// settleTaker finishes the submit once the matching loop stops. A fully
// consumed taker needs no further write, its closing trade already recorded
// the filled status. A market remainder terminates, a limit remainder rests.
func (e *Engine) settleTaker(ctx context.Context, taker *orderv1.Order, fills int) error {
	eps := e.options.MatchEpsilon

	if taker.Remaining().LessThanOrEqual(eps) {
		// The closing trade normally records the filled status already. A
		// sub-epsilon remainder without one, possible after an epsilon
		// change, still has to be closed out here.
		if taker.Status != orderv1.StatusFilled {
			if _, err := e.ledger.UpdateOrderStatus(ctx, taker.ID, orderv1.StatusFilled, taker.FilledQuantity); err != nil {
				return err
			}
			taker.Status = orderv1.StatusFilled
			e.publish(ctx, streamv1.NewOrderUpdateEvent(taker.ID, orderv1.StatusFilled, taker.FilledQuantity))
		}
		e.logger.InfoContext(ctx, fmt.Sprintf("Order %s filled after %d trades", taker.ID, fills))
		return nil
	}

	if taker.Type == orderv1.TypeMarket {
		status := orderv1.StatusPartiallyFilled
		if fills == 0 && e.options.EmptyBookMarketPolicy == config.EmptyBookPolicyReject {
			status = orderv1.StatusRejected
		}

		if _, err := e.ledger.UpdateOrderStatus(ctx, taker.ID, status, taker.FilledQuantity); err != nil {
			return err
		}

		e.logger.InfoContext(ctx, fmt.Sprintf("Market order %s ran out of liquidity, closing as %s", taker.ID, status),
			logger.Field{Key: "filled_quantity", Value: taker.FilledQuantity.String()},
		)
		e.publish(ctx, streamv1.NewOrderUpdateEvent(taker.ID, status, taker.FilledQuantity))
		return nil
	}

	// Limit remainder rests at the tail of its level. The ledger already
	// holds the right row: open from intake when nothing matched, and the
	// last trade's transaction wrote partially_filled otherwise.
	price := taker.LimitPrice()
	e.book.AppendAt(taker.Side, price, &bookv1.RestingOrder{
		OrderID:     taker.ID,
		ClientID:    taker.ClientID,
		Side:        taker.Side,
		Price:       price,
		Remaining:   taker.Remaining(),
		FilledTotal: taker.FilledQuantity,
		CreatedAt:   taker.CreatedAt,
	})

	e.logger.InfoContext(ctx, fmt.Sprintf("Order %s resting at %s with %s remaining", taker.ID, price.String(), taker.Remaining().String()))

	e.publish(ctx,
		streamv1.NewBookDeltaEvent(taker.Side, price, e.book.LevelQuantity(taker.Side, price)),
		streamv1.NewOrderUpdateEvent(taker.ID, taker.Status, taker.FilledQuantity),
	)

	return nil
}
