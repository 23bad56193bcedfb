package jobstreamv1

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	orderv1 "github.com/openspot/matching-core/internal/domain/order/v1"
)

func TestJobWireFormat(t *testing.T) {
	t.Run("submit job carries the full order snapshot", func(t *testing.T) {
		order := &orderv1.Order{
			ID:       "01ARZ3NDEKTSV4RRFFQ69G5FAV",
			ClientID: "alice",
			Side:     orderv1.SideBuy,
			Type:     orderv1.TypeLimit,
			Price:    decimal.NewNullDecimal(decimal.RequireFromString("101.5")),
			Quantity: decimal.RequireFromString("2"),
			Status:   orderv1.StatusOpen,
		}

		job := NewSubmitJob(order)
		data, err := job.Encode()
		require.NoError(t, err)

		var wire map[string]any
		require.NoError(t, json.Unmarshal(data, &wire))
		assert.Equal(t, "submit", wire["kind"])
		assert.Equal(t, order.ID, wire["order_id"])
		require.Contains(t, wire, "order")
		embedded := wire["order"].(map[string]any)
		assert.Equal(t, "alice", embedded["client_id"])
		assert.Equal(t, "buy", embedded["side"])

		decoded, err := DecodeJob(data)
		require.NoError(t, err)
		assert.Equal(t, KindSubmit, decoded.Kind)
		require.NotNil(t, decoded.Order)
		assert.True(t, decoded.Order.Quantity.Equal(order.Quantity))
		assert.True(t, decoded.Order.Price.Decimal.Equal(order.Price.Decimal))
	})

	t.Run("cancel job carries only the order id", func(t *testing.T) {
		job := NewCancelJob("01ARZ3NDEKTSV4RRFFQ69G5FAV")
		data, err := job.Encode()
		require.NoError(t, err)

		var wire map[string]any
		require.NoError(t, json.Unmarshal(data, &wire))
		assert.Equal(t, "cancel", wire["kind"])
		assert.NotContains(t, wire, "order")

		decoded, err := DecodeJob(data)
		require.NoError(t, err)
		assert.Equal(t, KindCancel, decoded.Kind)
		assert.Nil(t, decoded.Order)
		assert.Equal(t, "01ARZ3NDEKTSV4RRFFQ69G5FAV", decoded.OrderID)
	})

	t.Run("the stream offset never travels on the wire", func(t *testing.T) {
		job := NewCancelJob("some-order")
		job.Offset = 77

		data, err := job.Encode()
		require.NoError(t, err)

		var wire map[string]any
		require.NoError(t, json.Unmarshal(data, &wire))
		assert.NotContains(t, wire, "offset")

		decoded, err := DecodeJob(data)
		require.NoError(t, err)
		assert.Equal(t, int64(0), decoded.Offset)
	})

	t.Run("garbage fails to decode", func(t *testing.T) {
		_, err := DecodeJob([]byte("{broken"))
		assert.Error(t, err)
	})
}
