package jobstream

import (
	"context"

	"github.com/segmentio/kafka-go"

	jobstreamv1 "github.com/openspot/matching-core/internal/domain/jobstream/v1"
	"github.com/openspot/matching-core/pkg/config"
	"github.com/openspot/matching-core/pkg/logger"
)

// Reader consumes jobs from the single-partition job topic in offset order.
// It joins no consumer group and never commits: the applied offset inside
// the book snapshot is the only progress record, and the engine seeks the
// reader past it at boot.
type Reader struct {
	kafkaReader *kafka.Reader
	logger      logger.Interface
}

var _ jobstreamv1.Reader = (*Reader)(nil)

// NewReader creates a reader pinned to the configured partition. A fresh
// boot starts from the earliest retained job.
func NewReader(cfg config.KafkaConfig, log logger.Interface) *Reader {
	kafkaReader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		Topic:       cfg.Topic,
		Partition:   cfg.Partition,
		MinBytes:    1,
		MaxBytes:    10e6,
		StartOffset: kafka.FirstOffset,
	})

	return &Reader{
		kafkaReader: kafkaReader,
		logger:      log,
	}
}

// SetOffset seeks the reader to the given stream offset.
func (r *Reader) SetOffset(offset int64) error {
	if err := r.kafkaReader.SetOffset(offset); err != nil {
		r.logError(err, "SetOffset")
		return err
	}
	return nil
}

// Fetch blocks until the next job is available and returns it with its
// stream offset attached.
func (r *Reader) Fetch(ctx context.Context) (*jobstreamv1.Job, error) {
	msg, err := r.kafkaReader.ReadMessage(ctx)
	if err != nil {
		r.logError(err, "ReadMessage")
		return nil, err
	}

	job, err := jobstreamv1.DecodeJob(msg.Value)
	if err != nil {
		r.logError(err, "DecodeJob")
		return nil, err
	}
	job.Offset = msg.Offset

	r.logger.Debug("job fetched",
		logger.Field{Key: "kind", Value: job.Kind},
		logger.Field{Key: "order_id", Value: job.OrderID},
		logger.Field{Key: "offset", Value: job.Offset},
	)

	return job, nil
}

// Close closes the underlying kafka reader.
func (r *Reader) Close() error {
	if err := r.kafkaReader.Close(); err != nil {
		r.logError(err, "Close")
		return err
	}
	return nil
}

func (r *Reader) logError(err error, operation string) {
	r.logger.Error(err,
		logger.Field{Key: "error", Value: err.Error()},
		logger.Field{Key: "operation", Value: operation},
	)
}
