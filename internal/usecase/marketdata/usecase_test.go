package marketdata

import (
	"context"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	bookv1 "github.com/openspot/matching-core/internal/domain/book/v1"
	ledgerv1_mock "github.com/openspot/matching-core/internal/domain/ledger/v1/mock"
	orderv1 "github.com/openspot/matching-core/internal/domain/order/v1"
	"github.com/openspot/matching-core/internal/usecase/book"
	"github.com/openspot/matching-core/pkg/errors"
	"github.com/openspot/matching-core/pkg/logger"
)

func newTestUsecase(t *testing.T) (*Usecase, *ledgerv1_mock.MockRepository, *book.Book) {
	t.Helper()

	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)

	log, err := logger.NewLogger()
	require.NoError(t, err)
	ledger := ledgerv1_mock.NewMockRepository(ctrl)
	liveBook := book.NewBook("BTC-USD", log)

	return NewUsecase(liveBook, ledger, 2, 50, log), ledger, liveBook
}

func appendOrder(b *book.Book, id string, side orderv1.Side, price, remaining string) {
	p := decimal.RequireFromString(price)
	b.AppendAt(side, p, &bookv1.RestingOrder{
		OrderID:   id,
		ClientID:  "client-" + id,
		Side:      side,
		Price:     p,
		Remaining: decimal.RequireFromString(remaining),
		CreatedAt: time.Now().UTC(),
	})
}

func TestUsecase_OrderBook(t *testing.T) {
	ctx := context.Background()

	// Test 1: an explicit window is honored per side.
	t.Run("returns the requested window", func(t *testing.T) {
		uc, _, liveBook := newTestUsecase(t)
		appendOrder(liveBook, "ask-1", orderv1.SideSell, "101", "3")
		appendOrder(liveBook, "ask-2", orderv1.SideSell, "102", "5")
		appendOrder(liveBook, "bid-1", orderv1.SideBuy, "99", "2")

		depth, err := uc.OrderBook(ctx, 1)
		require.NoError(t, err)
		require.Len(t, depth.Asks, 1)
		require.Len(t, depth.Bids, 1)
		assert.True(t, depth.Asks[0].Price.Equal(decimal.RequireFromString("101")))
		assert.True(t, depth.Bids[0].Price.Equal(decimal.RequireFromString("99")))
	})

	// Test 2: a non-positive window falls back to the configured default.
	t.Run("falls back to the default window", func(t *testing.T) {
		uc, _, liveBook := newTestUsecase(t)
		appendOrder(liveBook, "ask-1", orderv1.SideSell, "101", "3")
		appendOrder(liveBook, "ask-2", orderv1.SideSell, "102", "5")
		appendOrder(liveBook, "ask-3", orderv1.SideSell, "103", "1")

		depth, err := uc.OrderBook(ctx, 0)
		require.NoError(t, err)
		assert.Len(t, depth.Asks, 2)
	})

	// Test 3: an empty book comes back with empty sides, not an error.
	t.Run("empty book", func(t *testing.T) {
		uc, _, _ := newTestUsecase(t)

		depth, err := uc.OrderBook(ctx, 10)
		require.NoError(t, err)
		assert.Empty(t, depth.Asks)
		assert.Empty(t, depth.Bids)
	})
}

func TestUsecase_GetOrder(t *testing.T) {
	ctx := context.Background()

	t.Run("returns the stored order", func(t *testing.T) {
		uc, ledger, _ := newTestUsecase(t)
		ledger.EXPECT().
			GetOrder(gomock.Any(), "order-1").
			Return(&orderv1.Order{ID: "order-1", Status: orderv1.StatusFilled}, nil)

		order, err := uc.GetOrder(ctx, "order-1")
		require.NoError(t, err)
		assert.Equal(t, orderv1.StatusFilled, order.Status)
	})

	t.Run("unknown order", func(t *testing.T) {
		uc, ledger, _ := newTestUsecase(t)
		ledger.EXPECT().GetOrder(gomock.Any(), "order-404").Return(nil, nil)

		order, err := uc.GetOrder(ctx, "order-404")
		require.Error(t, err)
		assert.True(t, errors.ErrorCodeEquals(err, string(errors.OrderNotFound)))
		assert.Nil(t, order)
	})

	t.Run("ledger fault passes through", func(t *testing.T) {
		uc, ledger, _ := newTestUsecase(t)
		ledger.EXPECT().
			GetOrder(gomock.Any(), "order-1").
			Return(nil, errors.NewTracer("order_get_error"))

		_, err := uc.GetOrder(ctx, "order-1")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "order_get_error")
	})
}

func TestUsecase_RecentTrades(t *testing.T) {
	ctx := context.Background()
	sample := []orderv1.Trade{{
		ID:         "trade-1",
		Instrument: "BTC-USD",
		Price:      decimal.RequireFromString("100"),
		Quantity:   decimal.RequireFromString("2"),
		ExecutedAt: time.Now().UTC(),
	}}

	t.Run("defaults the limit", func(t *testing.T) {
		uc, ledger, _ := newTestUsecase(t)
		ledger.EXPECT().RecentTrades(gomock.Any(), 50).Return(sample, nil)

		trades, err := uc.RecentTrades(ctx, 0)
		require.NoError(t, err)
		require.Len(t, trades, 1)
		assert.Equal(t, "trade-1", trades[0].ID)
	})

	t.Run("caps an oversized limit", func(t *testing.T) {
		uc, ledger, _ := newTestUsecase(t)
		ledger.EXPECT().RecentTrades(gomock.Any(), 500).Return(nil, nil)

		_, err := uc.RecentTrades(ctx, 9999)
		require.NoError(t, err)
	})

	t.Run("passes an explicit limit", func(t *testing.T) {
		uc, ledger, _ := newTestUsecase(t)
		ledger.EXPECT().RecentTrades(gomock.Any(), 7).Return(nil, nil)

		_, err := uc.RecentTrades(ctx, 7)
		require.NoError(t, err)
	})

	t.Run("ledger fault passes through", func(t *testing.T) {
		uc, ledger, _ := newTestUsecase(t)
		ledger.EXPECT().
			RecentTrades(gomock.Any(), 50).
			Return(nil, errors.NewTracer("trade_list_error"))

		_, err := uc.RecentTrades(ctx, 0)
		require.Error(t, err)
	})
}

func TestUsecase_DetailedTrades(t *testing.T) {
	ctx := context.Background()

	t.Run("returns joined legs with the default limit", func(t *testing.T) {
		uc, ledger, _ := newTestUsecase(t)
		ledger.EXPECT().
			DetailedTrades(gomock.Any(), 50).
			Return([]orderv1.DetailedTrade{{
				Trade:        orderv1.Trade{ID: "trade-1"},
				BuyClientID:  "alice",
				SellClientID: "bob",
			}}, nil)

		trades, err := uc.DetailedTrades(ctx, 0)
		require.NoError(t, err)
		require.Len(t, trades, 1)
		assert.Equal(t, "alice", trades[0].BuyClientID)
		assert.Equal(t, "bob", trades[0].SellClientID)
	})

	t.Run("caps an oversized limit", func(t *testing.T) {
		uc, ledger, _ := newTestUsecase(t)
		ledger.EXPECT().DetailedTrades(gomock.Any(), 500).Return(nil, nil)

		_, err := uc.DetailedTrades(ctx, 600)
		require.NoError(t, err)
	})
}
