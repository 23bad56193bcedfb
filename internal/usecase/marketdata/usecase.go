package marketdata

import (
	"context"
	"fmt"

	bookv1 "github.com/openspot/matching-core/internal/domain/book/v1"
	ledgerv1 "github.com/openspot/matching-core/internal/domain/ledger/v1"
	marketdatav1 "github.com/openspot/matching-core/internal/domain/marketdata/v1"
	orderv1 "github.com/openspot/matching-core/internal/domain/order/v1"
	"github.com/openspot/matching-core/pkg/errors"
	"github.com/openspot/matching-core/pkg/logger"
)

// maxTradesLimit bounds how many trades one query may ask for.
const maxTradesLimit = 500

// Usecase serves the read side: depth from the live book, orders and trades
// from the ledger. It never writes.
type Usecase struct {
	book        bookv1.Book
	ledger      ledgerv1.Repository
	priceLevels int
	tradesLimit int
	logger      logger.Interface
}

var _ marketdatav1.Usecase = (*Usecase)(nil)

// NewUsecase creates a market data usecase with the configured window
// defaults.
func NewUsecase(
	book bookv1.Book,
	ledger ledgerv1.Repository,
	priceLevels int,
	tradesLimit int,
	log logger.Interface,
) *Usecase {
	return &Usecase{
		book:        book,
		ledger:      ledger,
		priceLevels: priceLevels,
		tradesLimit: tradesLimit,
		logger:      log,
	}
}

// OrderBook returns up to levels price levels per side, best first.
func (u *Usecase) OrderBook(_ context.Context, levels int) (*bookv1.Depth, error) {
	if levels <= 0 {
		levels = u.priceLevels
	}
	return u.book.Depth(levels), nil
}

// GetOrder returns the ledger state of one order.
func (u *Usecase) GetOrder(ctx context.Context, orderID string) (*orderv1.Order, error) {
	order, err := u.ledger.GetOrder(ctx, orderID)
	if err != nil {
		u.logger.ErrorContext(ctx, err, logger.Field{
			Key:   "order_id",
			Value: orderID,
		})
		return nil, err
	}
	if order == nil {
		return nil, errors.NewErrorDetails(
			fmt.Sprintf("order %s does not exist", orderID),
			string(errors.OrderNotFound),
			"order_id",
		)
	}
	return order, nil
}

// RecentTrades returns the latest trades, newest first.
func (u *Usecase) RecentTrades(ctx context.Context, limit int) ([]orderv1.Trade, error) {
	trades, err := u.ledger.RecentTrades(ctx, u.clampTrades(limit))
	if err != nil {
		u.logger.ErrorContext(ctx, err, logger.Field{
			Key:   "limit",
			Value: limit,
		})
		return nil, err
	}
	return trades, nil
}

// DetailedTrades returns the latest trades with both order legs joined.
func (u *Usecase) DetailedTrades(ctx context.Context, limit int) ([]orderv1.DetailedTrade, error) {
	trades, err := u.ledger.DetailedTrades(ctx, u.clampTrades(limit))
	if err != nil {
		u.logger.ErrorContext(ctx, err, logger.Field{
			Key:   "limit",
			Value: limit,
		})
		return nil, err
	}
	return trades, nil
}

func (u *Usecase) clampTrades(limit int) int {
	if limit <= 0 {
		return u.tradesLimit
	}
	if limit > maxTradesLimit {
		return maxTradesLimit
	}
	return limit
}
