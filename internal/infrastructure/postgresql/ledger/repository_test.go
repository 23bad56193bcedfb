package ledger

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	orderv1 "github.com/openspot/matching-core/internal/domain/order/v1"
	"github.com/openspot/matching-core/pkg/errors"
	"github.com/openspot/matching-core/pkg/logger"
	"github.com/openspot/matching-core/pkg/postgresql"
	mockPg "github.com/openspot/matching-core/pkg/postgresql/mock"
)

func newTestLogger(t *testing.T) logger.Interface {
	t.Helper()
	log, err := logger.NewLogger()
	require.NoError(t, err)
	return log
}

func newTestRepository(t *testing.T) (*Repository, *mockPg.MockPostgreSQLClient) {
	t.Helper()

	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)

	pg := mockPg.NewMockPostgreSQLClient(ctrl)
	return NewRepository(pg, newTestLogger(t)), pg
}

func TestLedger_InsertOpenOrder(t *testing.T) {
	ctx := context.Background()

	draft := func() *orderv1.Order {
		return &orderv1.Order{
			ClientID:   "alice",
			Instrument: "BTC-USD",
			Side:       orderv1.SideBuy,
			Type:       orderv1.TypeLimit,
			Price:      decimal.NewNullDecimal(decimal.RequireFromString("100.5")),
			Quantity:   decimal.RequireFromString("3"),
		}
	}

	// Test 1: the row is written with a minted id, open status and zero fill.
	t.Run("success", func(t *testing.T) {
		repo, pg := newTestRepository(t)

		pg.EXPECT().
			Exec(gomock.Any(), gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
				assert.Contains(t, sql, "INSERT INTO orders")
				require.Len(t, args, 11)
				assert.Len(t, args[0].(string), 26)
				assert.Equal(t, "alice", args[1])
				assert.True(t, args[7].(decimal.Decimal).IsZero())
				assert.Equal(t, orderv1.StatusOpen, args[8])
				return pgconn.CommandTag{}, nil
			})

		persisted, err := repo.InsertOpenOrder(ctx, draft())
		require.NoError(t, err)
		assert.Len(t, persisted.ID, 26)
		assert.Equal(t, orderv1.StatusOpen, persisted.Status)
		assert.True(t, persisted.FilledQuantity.IsZero())
		assert.False(t, persisted.CreatedAt.IsZero())
		assert.True(t, persisted.Quantity.Equal(decimal.RequireFromString("3")))
	})

	// Test 2: two inserts never share an id.
	t.Run("ids are unique", func(t *testing.T) {
		repo, pg := newTestRepository(t)

		pg.EXPECT().
			Exec(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(pgconn.CommandTag{}, nil).
			Times(2)

		first, err := repo.InsertOpenOrder(ctx, draft())
		require.NoError(t, err)
		second, err := repo.InsertOpenOrder(ctx, draft())
		require.NoError(t, err)
		assert.NotEqual(t, first.ID, second.ID)
	})

	// Test 3: a write fault surfaces as an error.
	t.Run("error", func(t *testing.T) {
		repo, pg := newTestRepository(t)

		pg.EXPECT().
			Exec(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(pgconn.CommandTag{}, stderrors.New("connection refused"))

		persisted, err := repo.InsertOpenOrder(ctx, draft())
		require.Error(t, err)
		assert.Nil(t, persisted)
	})
}

func TestLedger_CreateTrade(t *testing.T) {
	ctx := context.Background()

	draft := func() *orderv1.Trade {
		return orderv1.NewTrade("BTC-USD", "taker-1", "maker-1", orderv1.SideBuy,
			decimal.RequireFromString("100.5"), decimal.RequireFromString("2"))
	}

	t.Run("success", func(t *testing.T) {
		repo, pg := newTestRepository(t)

		pg.EXPECT().
			Exec(gomock.Any(), gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
				assert.Contains(t, sql, "INSERT INTO trades")
				require.Len(t, args, 8)
				assert.Len(t, args[0].(string), 26)
				assert.Equal(t, "taker-1", args[4])
				assert.Equal(t, "maker-1", args[5])
				assert.Equal(t, orderv1.SideBuy, args[6])
				return pgconn.CommandTag{}, nil
			})

		persisted, err := repo.CreateTrade(ctx, draft())
		require.NoError(t, err)
		assert.Len(t, persisted.ID, 26)
		assert.True(t, persisted.Price.Equal(decimal.RequireFromString("100.5")))
	})

	t.Run("error", func(t *testing.T) {
		repo, pg := newTestRepository(t)

		pg.EXPECT().
			Exec(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(pgconn.CommandTag{}, stderrors.New("connection refused"))

		persisted, err := repo.CreateTrade(ctx, draft())
		require.Error(t, err)
		assert.Nil(t, persisted)
	})
}

func TestLedger_UpdateOrderStatus(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()

	testCases := []struct {
		name     string
		mockFn   func(pg *mockPg.MockPostgreSQLClient, row *mockPg.MockRowInterface)
		assertFn func(t *testing.T, order *orderv1.Order, err error)
	}{
		{
			name: "success",
			mockFn: func(pg *mockPg.MockPostgreSQLClient, row *mockPg.MockRowInterface) {
				pg.EXPECT().
					QueryRow(gomock.Any(), gomock.Any(), orderv1.StatusFilled, gomock.Any(), gomock.Any(), "order-1").
					Return(row)

				row.EXPECT().
					Scan(gomock.Any()).
					DoAndReturn(func(dest ...any) error {
						*dest[0].(*string) = "order-1"
						*dest[1].(*string) = "alice"
						*dest[2].(*string) = "BTC-USD"
						*dest[3].(*orderv1.Side) = orderv1.SideBuy
						*dest[4].(*orderv1.Type) = orderv1.TypeLimit
						*dest[5].(*decimal.NullDecimal) = decimal.NewNullDecimal(decimal.RequireFromString("100.5"))
						*dest[6].(*decimal.Decimal) = decimal.RequireFromString("3")
						*dest[7].(*decimal.Decimal) = decimal.RequireFromString("3")
						*dest[8].(*orderv1.Status) = orderv1.StatusFilled
						*dest[9].(*time.Time) = now
						*dest[10].(*time.Time) = now
						return nil
					})
			},
			assertFn: func(t *testing.T, order *orderv1.Order, err error) {
				require.NoError(t, err)
				assert.Equal(t, orderv1.StatusFilled, order.Status)
				assert.True(t, order.FilledQuantity.Equal(decimal.RequireFromString("3")))
			},
		},
		{
			name: "missing row is an invariant breach",
			mockFn: func(pg *mockPg.MockPostgreSQLClient, row *mockPg.MockRowInterface) {
				pg.EXPECT().
					QueryRow(gomock.Any(), gomock.Any(), orderv1.StatusFilled, gomock.Any(), gomock.Any(), "order-1").
					Return(row)

				row.EXPECT().Scan(gomock.Any()).Return(pgx.ErrNoRows)
			},
			assertFn: func(t *testing.T, order *orderv1.Order, err error) {
				require.Error(t, err)
				assert.True(t, errors.ErrorCodeEquals(err, string(errors.InvariantViolation)))
				assert.Nil(t, order)
			},
		},
		{
			name: "query fault",
			mockFn: func(pg *mockPg.MockPostgreSQLClient, row *mockPg.MockRowInterface) {
				pg.EXPECT().
					QueryRow(gomock.Any(), gomock.Any(), orderv1.StatusFilled, gomock.Any(), gomock.Any(), "order-1").
					Return(row)

				row.EXPECT().Scan(gomock.Any()).Return(stderrors.New("connection refused"))
			},
			assertFn: func(t *testing.T, order *orderv1.Order, err error) {
				require.Error(t, err)
				assert.False(t, errors.ErrorCodeEquals(err, string(errors.InvariantViolation)))
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			pg := mockPg.NewMockPostgreSQLClient(ctrl)
			row := mockPg.NewMockRowInterface(ctrl)
			repo := NewRepository(pg, newTestLogger(t))

			tc.mockFn(pg, row)

			order, err := repo.UpdateOrderStatus(ctx, "order-1", orderv1.StatusFilled, decimal.RequireFromString("3"))
			tc.assertFn(t, order, err)
		})
	}
}

func TestLedger_GetOrder(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()

	testCases := []struct {
		name     string
		mockFn   func(pg *mockPg.MockPostgreSQLClient, row *mockPg.MockRowInterface)
		assertFn func(t *testing.T, order *orderv1.Order, err error)
	}{
		{
			name: "success",
			mockFn: func(pg *mockPg.MockPostgreSQLClient, row *mockPg.MockRowInterface) {
				pg.EXPECT().QueryRow(gomock.Any(), gomock.Any(), "order-1").Return(row)

				row.EXPECT().
					Scan(gomock.Any()).
					DoAndReturn(func(dest ...any) error {
						*dest[0].(*string) = "order-1"
						*dest[1].(*string) = "alice"
						*dest[2].(*string) = "BTC-USD"
						*dest[3].(*orderv1.Side) = orderv1.SideSell
						*dest[4].(*orderv1.Type) = orderv1.TypeMarket
						*dest[6].(*decimal.Decimal) = decimal.RequireFromString("2")
						*dest[7].(*decimal.Decimal) = decimal.Zero
						*dest[8].(*orderv1.Status) = orderv1.StatusOpen
						*dest[9].(*time.Time) = now
						*dest[10].(*time.Time) = now
						return nil
					})
			},
			assertFn: func(t *testing.T, order *orderv1.Order, err error) {
				require.NoError(t, err)
				assert.Equal(t, "order-1", order.ID)
				assert.Equal(t, orderv1.TypeMarket, order.Type)
				assert.False(t, order.Price.Valid)
			},
		},
		{
			name: "no rows means no order and no error",
			mockFn: func(pg *mockPg.MockPostgreSQLClient, row *mockPg.MockRowInterface) {
				pg.EXPECT().QueryRow(gomock.Any(), gomock.Any(), "order-1").Return(row)
				row.EXPECT().Scan(gomock.Any()).Return(pgx.ErrNoRows)
			},
			assertFn: func(t *testing.T, order *orderv1.Order, err error) {
				require.NoError(t, err)
				assert.Nil(t, order)
			},
		},
		{
			name: "query fault",
			mockFn: func(pg *mockPg.MockPostgreSQLClient, row *mockPg.MockRowInterface) {
				pg.EXPECT().QueryRow(gomock.Any(), gomock.Any(), "order-1").Return(row)
				row.EXPECT().Scan(gomock.Any()).Return(stderrors.New("connection refused"))
			},
			assertFn: func(t *testing.T, order *orderv1.Order, err error) {
				require.Error(t, err)
				assert.Nil(t, order)
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			pg := mockPg.NewMockPostgreSQLClient(ctrl)
			row := mockPg.NewMockRowInterface(ctrl)
			repo := NewRepository(pg, newTestLogger(t))

			tc.mockFn(pg, row)

			order, err := repo.GetOrder(ctx, "order-1")
			tc.assertFn(t, order, err)
		})
	}
}

func TestLedger_RecentTrades(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()

	fillTrade := func(id string) func(dest ...any) error {
		return func(dest ...any) error {
			*dest[0].(*string) = id
			*dest[1].(*string) = "BTC-USD"
			*dest[2].(*decimal.Decimal) = decimal.RequireFromString("100")
			*dest[3].(*decimal.Decimal) = decimal.RequireFromString("1")
			*dest[4].(*string) = "buy-1"
			*dest[5].(*string) = "sell-1"
			*dest[6].(*orderv1.Side) = orderv1.SideBuy
			*dest[7].(*time.Time) = now
			return nil
		}
	}

	t.Run("success", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		pg := mockPg.NewMockPostgreSQLClient(ctrl)
		rows := mockPg.NewMockRowsInterface(ctrl)
		repo := NewRepository(pg, newTestLogger(t))

		pg.EXPECT().Query(gomock.Any(), gomock.Any(), 2).Return(rows, nil)
		rows.EXPECT().Next().Return(true)
		rows.EXPECT().Scan(gomock.Any()).DoAndReturn(fillTrade("trade-2"))
		rows.EXPECT().Next().Return(true)
		rows.EXPECT().Scan(gomock.Any()).DoAndReturn(fillTrade("trade-1"))
		rows.EXPECT().Next().Return(false)
		rows.EXPECT().Err().Return(nil)
		rows.EXPECT().Close()

		trades, err := repo.RecentTrades(ctx, 2)
		require.NoError(t, err)
		require.Len(t, trades, 2)
		assert.Equal(t, "trade-2", trades[0].ID)
		assert.Equal(t, "trade-1", trades[1].ID)
	})

	t.Run("query fault", func(t *testing.T) {
		repo, pg := newTestRepository(t)

		pg.EXPECT().Query(gomock.Any(), gomock.Any(), 2).Return(nil, stderrors.New("connection refused"))

		trades, err := repo.RecentTrades(ctx, 2)
		require.Error(t, err)
		assert.Nil(t, trades)
	})

	t.Run("scan fault", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		pg := mockPg.NewMockPostgreSQLClient(ctrl)
		rows := mockPg.NewMockRowsInterface(ctrl)
		repo := NewRepository(pg, newTestLogger(t))

		pg.EXPECT().Query(gomock.Any(), gomock.Any(), 2).Return(rows, nil)
		rows.EXPECT().Next().Return(true)
		rows.EXPECT().Scan(gomock.Any()).Return(stderrors.New("bad row"))
		rows.EXPECT().Close()

		_, err := repo.RecentTrades(ctx, 2)
		require.Error(t, err)
	})
}

func TestLedger_DetailedTrades(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()

	t.Run("success", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		pg := mockPg.NewMockPostgreSQLClient(ctrl)
		rows := mockPg.NewMockRowsInterface(ctrl)
		repo := NewRepository(pg, newTestLogger(t))

		pg.EXPECT().
			Query(gomock.Any(), gomock.Any(), 1).
			DoAndReturn(func(_ context.Context, sql string, _ ...any) (postgresql.RowsInterface, error) {
				assert.Contains(t, sql, "JOIN orders")
				return rows, nil
			})
		rows.EXPECT().Next().Return(true)
		rows.EXPECT().
			Scan(gomock.Any()).
			DoAndReturn(func(dest ...any) error {
				*dest[0].(*string) = "trade-1"
				*dest[1].(*string) = "BTC-USD"
				*dest[2].(*decimal.Decimal) = decimal.RequireFromString("100")
				*dest[3].(*decimal.Decimal) = decimal.RequireFromString("1")
				*dest[4].(*string) = "buy-1"
				*dest[5].(*string) = "sell-1"
				*dest[6].(*orderv1.Side) = orderv1.SideSell
				*dest[7].(*time.Time) = now
				*dest[8].(*string) = "alice"
				*dest[9].(*string) = "bob"
				*dest[10].(*orderv1.Type) = orderv1.TypeLimit
				*dest[11].(*orderv1.Type) = orderv1.TypeMarket
				return nil
			})
		rows.EXPECT().Next().Return(false)
		rows.EXPECT().Err().Return(nil)
		rows.EXPECT().Close()

		trades, err := repo.DetailedTrades(ctx, 1)
		require.NoError(t, err)
		require.Len(t, trades, 1)
		assert.Equal(t, "alice", trades[0].BuyClientID)
		assert.Equal(t, "bob", trades[0].SellClientID)
		assert.Equal(t, orderv1.TypeMarket, trades[0].SellOrderType)
	})

	t.Run("query fault", func(t *testing.T) {
		repo, pg := newTestRepository(t)

		pg.EXPECT().Query(gomock.Any(), gomock.Any(), 1).Return(nil, stderrors.New("connection refused"))

		_, err := repo.DetailedTrades(ctx, 1)
		require.Error(t, err)
	})
}

func TestLedger_CountResting(t *testing.T) {
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		pg := mockPg.NewMockPostgreSQLClient(ctrl)
		row := mockPg.NewMockRowInterface(ctrl)
		repo := NewRepository(pg, newTestLogger(t))

		pg.EXPECT().
			QueryRow(gomock.Any(), gomock.Any(), orderv1.StatusOpen, orderv1.StatusPartiallyFilled).
			Return(row)
		row.EXPECT().
			Scan(gomock.Any()).
			DoAndReturn(func(dest ...any) error {
				*dest[0].(*int64) = 3
				return nil
			})

		count, err := repo.CountResting(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(3), count)
	})

	t.Run("query fault", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		pg := mockPg.NewMockPostgreSQLClient(ctrl)
		row := mockPg.NewMockRowInterface(ctrl)
		repo := NewRepository(pg, newTestLogger(t))

		pg.EXPECT().
			QueryRow(gomock.Any(), gomock.Any(), orderv1.StatusOpen, orderv1.StatusPartiallyFilled).
			Return(row)
		row.EXPECT().Scan(gomock.Any()).Return(stderrors.New("connection refused"))

		count, err := repo.CountResting(ctx)
		require.Error(t, err)
		assert.Zero(t, count)
	})
}
