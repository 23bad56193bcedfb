package ledger

import (
	orderv1 "github.com/openspot/matching-core/internal/domain/order/v1"
)

// Column lists shared by every order and trade query so the scan helpers
// stay in sync with the selects.
const (
	orderColumns = "id, client_id, instrument, side, type, price, quantity, filled_quantity, status, created_at, updated_at"
	tradeColumns = "id, instrument, price, quantity, buy_order_id, sell_order_id, taker_side, executed_at"
)

// rowScanner is the part of pgx.Row and postgresql.RowsInterface the scan
// helpers need.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*orderv1.Order, error) {
	var order orderv1.Order
	err := row.Scan(
		&order.ID,
		&order.ClientID,
		&order.Instrument,
		&order.Side,
		&order.Type,
		&order.Price,
		&order.Quantity,
		&order.FilledQuantity,
		&order.Status,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func scanTrade(row rowScanner) (*orderv1.Trade, error) {
	var trade orderv1.Trade
	err := row.Scan(
		&trade.ID,
		&trade.Instrument,
		&trade.Price,
		&trade.Quantity,
		&trade.BuyOrderID,
		&trade.SellOrderID,
		&trade.TakerSide,
		&trade.ExecutedAt,
	)
	if err != nil {
		return nil, err
	}
	return &trade, nil
}

func scanDetailedTrade(row rowScanner) (*orderv1.DetailedTrade, error) {
	var trade orderv1.DetailedTrade
	err := row.Scan(
		&trade.ID,
		&trade.Instrument,
		&trade.Price,
		&trade.Quantity,
		&trade.BuyOrderID,
		&trade.SellOrderID,
		&trade.TakerSide,
		&trade.ExecutedAt,
		&trade.BuyClientID,
		&trade.SellClientID,
		&trade.BuyOrderType,
		&trade.SellOrderType,
	)
	if err != nil {
		return nil, err
	}
	return &trade, nil
}
