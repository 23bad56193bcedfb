package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"

	ledgerv1 "github.com/openspot/matching-core/internal/domain/ledger/v1"
	orderv1 "github.com/openspot/matching-core/internal/domain/order/v1"
	"github.com/openspot/matching-core/pkg/errors"
	"github.com/openspot/matching-core/pkg/logger"
	"github.com/openspot/matching-core/pkg/postgresql"
)

// Repository is the Postgres-backed orders and trades ledger.
type Repository struct {
	db     postgresql.PostgreSQLClient
	logger logger.Interface
}

var _ ledgerv1.Repository = (*Repository)(nil)

// NewRepository creates a new ledger repository.
func NewRepository(db postgresql.PostgreSQLClient, log logger.Interface) *Repository {
	return &Repository{
		db:     db,
		logger: log,
	}
}

// InsertOpenOrder persists a new order in status open with a freshly minted
// id and returns the stored row.
func (r *Repository) InsertOpenOrder(ctx context.Context, order *orderv1.Order) (*orderv1.Order, error) {
	query := `INSERT INTO orders (` + orderColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	persisted := *order
	persisted.ID = ulid.Make().String()
	persisted.FilledQuantity = decimal.Zero
	persisted.Status = orderv1.StatusOpen
	persisted.CreatedAt = time.Now().UTC()
	persisted.UpdatedAt = persisted.CreatedAt

	cmd, err := r.exec(ctx, query,
		persisted.ID,
		persisted.ClientID,
		persisted.Instrument,
		persisted.Side,
		persisted.Type,
		persisted.Price,
		persisted.Quantity,
		persisted.FilledQuantity,
		persisted.Status,
		persisted.CreatedAt,
		persisted.UpdatedAt,
	)
	if err != nil {
		return nil, errors.TracerFromError(err)
	}

	r.logger.Info("Inserted order", logger.Field{
		Key:   "commandTag",
		Value: cmd.String(),
	}, logger.Field{
		Key:   "order_id",
		Value: persisted.ID,
	})

	return &persisted, nil
}

// CreateTrade persists one execution with a freshly minted id.
func (r *Repository) CreateTrade(ctx context.Context, trade *orderv1.Trade) (*orderv1.Trade, error) {
	query := `INSERT INTO trades (` + tradeColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	persisted := *trade
	persisted.ID = ulid.Make().String()

	cmd, err := r.exec(ctx, query,
		persisted.ID,
		persisted.Instrument,
		persisted.Price,
		persisted.Quantity,
		persisted.BuyOrderID,
		persisted.SellOrderID,
		persisted.TakerSide,
		persisted.ExecutedAt,
	)
	if err != nil {
		return nil, errors.TracerFromError(err)
	}

	r.logger.Info("Inserted trade", logger.Field{
		Key:   "commandTag",
		Value: cmd.String(),
	}, logger.Field{
		Key:   "trade_id",
		Value: persisted.ID,
	})

	return &persisted, nil
}

// UpdateOrderStatus sets the status and filled quantity of an order and
// returns the updated row. Re-writing the stored values is harmless, so a
// replayed job settles on the same row.
func (r *Repository) UpdateOrderStatus(ctx context.Context, orderID string, status orderv1.Status, filledQuantity decimal.Decimal) (*orderv1.Order, error) {
	query := `UPDATE orders SET status = $1, filled_quantity = $2, updated_at = $3 WHERE id = $4 RETURNING ` + orderColumns

	order, err := scanOrder(r.queryRow(ctx, query, status, filledQuantity, time.Now().UTC(), orderID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, errors.NewErrorDetails(
				fmt.Sprintf("order %s vanished during a status update", orderID),
				string(errors.InvariantViolation),
				"order_id",
			)
		}
		return nil, errors.TracerFromError(err)
	}

	return order, nil
}

// GetOrder returns the order with the given id, or nil when it does not
// exist.
func (r *Repository) GetOrder(ctx context.Context, orderID string) (*orderv1.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	order, err := scanOrder(r.queryRow(ctx, query, orderID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, errors.TracerFromError(err)
	}

	return order, nil
}

// RecentTrades returns the latest trades, newest first.
func (r *Repository) RecentTrades(ctx context.Context, limit int) ([]orderv1.Trade, error) {
	query := `SELECT ` + tradeColumns + ` FROM trades ORDER BY executed_at DESC, id DESC LIMIT $1`

	rows, err := r.query(ctx, query, limit)
	if err != nil {
		return nil, errors.TracerFromError(err)
	}
	defer rows.Close()

	trades := []orderv1.Trade{}
	for rows.Next() {
		trade, err := scanTrade(rows)
		if err != nil {
			return nil, errors.TracerFromError(err)
		}
		trades = append(trades, *trade)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.TracerFromError(err)
	}

	return trades, nil
}

// DetailedTrades returns the latest trades joined with both order legs,
// newest first.
func (r *Repository) DetailedTrades(ctx context.Context, limit int) ([]orderv1.DetailedTrade, error) {
	query := `SELECT t.id, t.instrument, t.price, t.quantity, t.buy_order_id, t.sell_order_id, t.taker_side, t.executed_at,
		ob.client_id, os.client_id, ob.type, os.type
		FROM trades t
		JOIN orders ob ON ob.id = t.buy_order_id
		JOIN orders os ON os.id = t.sell_order_id
		ORDER BY t.executed_at DESC, t.id DESC LIMIT $1`

	rows, err := r.query(ctx, query, limit)
	if err != nil {
		return nil, errors.TracerFromError(err)
	}
	defer rows.Close()

	trades := []orderv1.DetailedTrade{}
	for rows.Next() {
		trade, err := scanDetailedTrade(rows)
		if err != nil {
			return nil, errors.TracerFromError(err)
		}
		trades = append(trades, *trade)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.TracerFromError(err)
	}

	return trades, nil
}

// CountResting returns how many orders sit in a resting status.
func (r *Repository) CountResting(ctx context.Context) (int64, error) {
	query := `SELECT COUNT(*) FROM orders WHERE status IN ($1, $2)`

	var count int64
	err := r.queryRow(ctx, query, orderv1.StatusOpen, orderv1.StatusPartiallyFilled).Scan(&count)
	if err != nil {
		return 0, errors.TracerFromError(err)
	}

	return count, nil
}

// Tx runs fn with a transaction embedded in its context. Every repository
// call made through that context joins the transaction.
func (r *Repository) Tx(ctx context.Context, fn func(ctx context.Context) error) error {
	return postgresql.WithTx(ctx, r.db, fn)
}

// exec routes through the context transaction when one is present.
func (r *Repository) exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	if tx, ok := postgresql.GetTx(ctx); ok {
		return tx.Exec(ctx, query, args...)
	}
	return r.db.Exec(ctx, query, args...)
}

func (r *Repository) queryRow(ctx context.Context, query string, args ...any) pgx.Row {
	if tx, ok := postgresql.GetTx(ctx); ok {
		return tx.QueryRow(ctx, query, args...)
	}
	return r.db.QueryRow(ctx, query, args...)
}

func (r *Repository) query(ctx context.Context, query string, args ...any) (postgresql.RowsInterface, error) {
	if tx, ok := postgresql.GetTx(ctx); ok {
		rows, err := tx.Query(ctx, query, args...)
		if err != nil {
			return nil, err
		}
		return postgresql.NewRowsWrapper(rows), nil
	}
	return r.db.Query(ctx, query, args...)
}
