package jobstream

import (
	"context"

	"github.com/segmentio/kafka-go"

	jobstreamv1 "github.com/openspot/matching-core/internal/domain/jobstream/v1"
	"github.com/openspot/matching-core/pkg/config"
	"github.com/openspot/matching-core/pkg/errors"
	"github.com/openspot/matching-core/pkg/logger"
)

// Writer appends jobs to the job topic. The topic has a single partition,
// so append order is consumption order.
type Writer struct {
	kafkaWriter *kafka.Writer
	logger      logger.Interface
}

var _ jobstreamv1.Writer = (*Writer)(nil)

// NewWriter creates a writer for the job topic.
func NewWriter(cfg config.KafkaConfig, log logger.Interface) *Writer {
	kafkaWriter := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireOne,
	}

	return &Writer{
		kafkaWriter: kafkaWriter,
		logger:      log,
	}
}

// Enqueue appends jobs to the stream in the given order.
func (w *Writer) Enqueue(ctx context.Context, jobs ...*jobstreamv1.Job) error {
	if len(jobs) == 0 {
		return nil
	}

	msgs := make([]kafka.Message, 0, len(jobs))
	for _, job := range jobs {
		value, err := job.Encode()
		if err != nil {
			w.logger.ErrorContext(ctx, err, logger.Field{
				Key:   "order_id",
				Value: job.OrderID,
			})
			return errors.NewTracer("job_encode_error").Wrap(err)
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(job.OrderID),
			Value: value,
			Time:  job.EnqueuedAt,
		})
	}

	if err := w.kafkaWriter.WriteMessages(ctx, msgs...); err != nil {
		w.logger.ErrorContext(ctx, err, logger.Field{
			Key:   "jobs",
			Value: len(msgs),
		})
		return errors.NewTracer("job_enqueue_error").Wrap(err)
	}

	return nil
}

// Close closes the underlying kafka writer.
func (w *Writer) Close() error {
	return w.kafkaWriter.Close()
}
