package jobstreamv1

import (
	"encoding/json"
	"time"

	orderv1 "github.com/openspot/matching-core/internal/domain/order/v1"
)

// Kind distinguishes the job types flowing through the stream.
type Kind string

const (
	// KindSubmit carries a freshly persisted open order into the engine.
	KindSubmit Kind = "submit"
	// KindCancel asks the engine to remove a resting order.
	KindCancel Kind = "cancel"
)

// Job is one unit of work consumed by the engine, in stream order.
type Job struct {
	Kind       Kind           `json:"kind"`
	Order      *orderv1.Order `json:"order,omitempty"`
	OrderID    string         `json:"order_id,omitempty"`
	EnqueuedAt time.Time      `json:"enqueued_at"`

	// Offset is the stream position, attached by the reader.
	Offset int64 `json:"-"`
}

// NewSubmitJob wraps a persisted open order for the engine.
func NewSubmitJob(order *orderv1.Order) *Job {
	return &Job{
		Kind:       KindSubmit,
		Order:      order,
		OrderID:    order.ID,
		EnqueuedAt: time.Now().UTC(),
	}
}

// NewCancelJob asks the engine to cancel the given order.
func NewCancelJob(orderID string) *Job {
	return &Job{
		Kind:       KindCancel,
		OrderID:    orderID,
		EnqueuedAt: time.Now().UTC(),
	}
}

// Encode serializes the job for the wire.
func (j *Job) Encode() ([]byte, error) {
	return json.Marshal(j)
}

// DecodeJob parses a job from its wire form.
func DecodeJob(data []byte) (*Job, error) {
	var job Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, err
	}
	return &job, nil
}
