package intake

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	idempotencyv1 "github.com/openspot/matching-core/internal/domain/idempotency/v1"
	jobstreamv1 "github.com/openspot/matching-core/internal/domain/jobstream/v1"
	ledgerv1 "github.com/openspot/matching-core/internal/domain/ledger/v1"
	orderv1 "github.com/openspot/matching-core/internal/domain/order/v1"
	"github.com/openspot/matching-core/pkg/errors"
	"github.com/openspot/matching-core/pkg/logger"
)

var validate = validator.New()

func init() {
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}

// Service accepts client submissions and cancel requests. It never touches
// the book: accepted work is persisted and handed to the job stream, and the
// engine alone decides what happens on the book.
type Service struct {
	ledger     ledgerv1.Repository
	gate       idempotencyv1.Gate
	jobs       jobstreamv1.Writer
	instrument string
	logger     logger.Interface
}

// NewService creates a new intake service for one instrument.
func NewService(
	ledger ledgerv1.Repository,
	gate idempotencyv1.Gate,
	jobs jobstreamv1.Writer,
	instrument string,
	log logger.Interface,
) *Service {
	return &Service{
		ledger:     ledger,
		gate:       gate,
		jobs:       jobs,
		instrument: instrument,
		logger:     log,
	}
}

// Submit validates a submission, claims its idempotency key, persists the
// order open and enqueues it for the engine. The key stays claimed even when
// a later step fails, so a retry of the same submission reports a duplicate.
func (s *Service) Submit(ctx context.Context, sub orderv1.Submission) (*orderv1.Order, error) {
	if details := s.validateSubmission(&sub); details != nil {
		return nil, details
	}

	claimed, err := s.gate.Claim(ctx, sub.IdempotencyKey)
	if err != nil {
		s.logger.ErrorContext(ctx, err, logger.Field{
			Key:   "idempotency_key",
			Value: sub.IdempotencyKey,
		})
		return nil, errors.NewErrorDetails(
			"idempotency gate is unavailable",
			string(errors.CacheError),
			"idempotency_key",
		)
	}
	if !claimed {
		return nil, errors.NewErrorDetails(
			fmt.Sprintf("submission %s was already accepted", sub.IdempotencyKey),
			string(errors.DuplicateSubmission),
			"idempotency_key",
		)
	}

	order := &orderv1.Order{
		ClientID:   sub.ClientID,
		Instrument: s.instrument,
		Side:       sub.Side,
		Type:       sub.Type,
		Price:      sub.Price,
		Quantity:   sub.Quantity,
	}

	persisted, err := s.ledger.InsertOpenOrder(ctx, order)
	if err != nil {
		s.logger.ErrorContext(ctx, err,
			logger.Field{Key: "client_id", Value: sub.ClientID},
			logger.Field{Key: "idempotency_key", Value: sub.IdempotencyKey},
		)
		return nil, errors.NewErrorDetails(
			"could not persist the order",
			string(errors.StorageError),
			"",
		)
	}

	if err := s.jobs.Enqueue(ctx, jobstreamv1.NewSubmitJob(persisted)); err != nil {
		s.logger.ErrorContext(ctx, err, logger.Field{
			Key:   "order_id",
			Value: persisted.ID,
		})
		return nil, errors.NewErrorDetails(
			fmt.Sprintf("order %s was accepted but could not be queued", persisted.ID),
			string(errors.QueueError),
			"",
		)
	}

	s.logger.InfoContext(ctx, fmt.Sprintf("Accepted %s %s order %s", persisted.Side, persisted.Type, persisted.ID),
		logger.Field{Key: "client_id", Value: persisted.ClientID},
		logger.Field{Key: "quantity", Value: persisted.Quantity.String()},
	)

	return persisted, nil
}

// Cancel enqueues a cancel request for a non-terminal order and returns the
// order as currently stored. The resting quantity may still execute before
// the engine reaches the request.
func (s *Service) Cancel(ctx context.Context, orderID string) (*orderv1.Order, error) {
	order, err := s.ledger.GetOrder(ctx, orderID)
	if err != nil {
		s.logger.ErrorContext(ctx, err, logger.Field{
			Key:   "order_id",
			Value: orderID,
		})
		return nil, errors.NewErrorDetails(
			"could not load the order",
			string(errors.StorageError),
			"order_id",
		)
	}
	if order == nil {
		return nil, errors.NewErrorDetails(
			fmt.Sprintf("order %s does not exist", orderID),
			string(errors.OrderNotFound),
			"order_id",
		)
	}
	if order.Status.Terminal() {
		return nil, errors.NewErrorDetails(
			fmt.Sprintf("order %s is already %s", orderID, order.Status),
			string(errors.OrderConflict),
			"order_id",
		)
	}

	if err := s.jobs.Enqueue(ctx, jobstreamv1.NewCancelJob(orderID)); err != nil {
		s.logger.ErrorContext(ctx, err, logger.Field{
			Key:   "order_id",
			Value: orderID,
		})
		return nil, errors.NewErrorDetails(
			fmt.Sprintf("cancel for order %s could not be queued", orderID),
			string(errors.QueueError),
			"",
		)
	}

	return order, nil
}

// validateSubmission normalizes the decimal fields in place and rejects
// anything the engine would refuse to match.
func (s *Service) validateSubmission(sub *orderv1.Submission) *errors.ErrorDetails {
	if err := validate.Struct(sub); err != nil {
		if fields, ok := err.(validator.ValidationErrors); ok && len(fields) > 0 {
			fe := fields[0]
			return errors.NewErrorDetails(
				fmt.Sprintf("submission field %s failed on the %s rule", fe.Field(), fe.Tag()),
				string(errors.ValidationError),
				fe.Field(),
			)
		}
		return errors.NewErrorDetails(err.Error(), string(errors.ValidationError), "")
	}

	sub.Quantity = orderv1.Normalize(sub.Quantity)
	if sub.Price.Valid {
		sub.Price.Decimal = orderv1.Normalize(sub.Price.Decimal)
	}

	if !sub.Quantity.IsPositive() {
		return errors.NewErrorDetails(
			"quantity must be positive",
			string(errors.ValidationError),
			"quantity",
		)
	}

	switch sub.Type {
	case orderv1.TypeLimit:
		if !sub.Price.Valid || !sub.Price.Decimal.IsPositive() {
			return errors.NewErrorDetails(
				"limit orders require a positive price",
				string(errors.ValidationError),
				"price",
			)
		}
	case orderv1.TypeMarket:
		if sub.Price.Valid {
			return errors.NewErrorDetails(
				"market orders cannot carry a price",
				string(errors.ValidationError),
				"price",
			)
		}
	}

	return nil
}
