package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	bookv1 "github.com/openspot/matching-core/internal/domain/book/v1"
	jobstreamv1 "github.com/openspot/matching-core/internal/domain/jobstream/v1"
	ledgerv1 "github.com/openspot/matching-core/internal/domain/ledger/v1"
	snapshotv1 "github.com/openspot/matching-core/internal/domain/snapshot/v1"
	streamv1 "github.com/openspot/matching-core/internal/domain/stream/v1"
	"github.com/openspot/matching-core/pkg/config"
	"github.com/openspot/matching-core/pkg/errors"
	"github.com/openspot/matching-core/pkg/logger"
)

// Engine owns the book and applies jobs from the stream one at a time.
// All book writes happen on the processor goroutine; ordering across jobs
// follows from that single consumer.
type Engine struct {
	book      bookv1.Book
	ledger    ledgerv1.Repository
	reader    jobstreamv1.Reader
	snapshots snapshotv1.Store
	events    streamv1.Publisher
	logger    logger.Interface

	instrument string
	options    *Options

	// stepMu marks job boundaries: the processor holds it for a whole job,
	// the snapshot manager takes it to capture the book between jobs.
	stepMu sync.Mutex

	mu                 sync.RWMutex
	appliedOffset      int64
	lastSnapshotOffset int64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates an engine from the environment config. The book is owned by a
// single goroutine, so any queue concurrency other than 1 is refused.
func New(
	book bookv1.Book,
	ledger ledgerv1.Repository,
	reader jobstreamv1.Reader,
	snapshots snapshotv1.Store,
	events streamv1.Publisher,
	log logger.Interface,
	cfg *config.Config,
) (*Engine, error) {
	if cfg.Engine.QueueConcurrency != 1 {
		return nil, errors.NewErrorDetails(
			fmt.Sprintf("queue concurrency is fixed at 1, got %d", cfg.Engine.QueueConcurrency),
			string(errors.ConfigError),
			"queue_concurrency",
		)
	}

	options, err := OptionsFromConfig(cfg)
	if err != nil {
		return nil, err
	}

	return NewWithOptions(book, ledger, reader, snapshots, events, log, cfg.Instrument, options), nil
}

// NewWithOptions creates an engine with explicit options.
func NewWithOptions(
	book bookv1.Book,
	ledger ledgerv1.Repository,
	reader jobstreamv1.Reader,
	snapshots snapshotv1.Store,
	events streamv1.Publisher,
	log logger.Interface,
	instrument string,
	options *Options,
) *Engine {
	if options == nil {
		options = DefaultEngineOptions()
	}

	return &Engine{
		book:      book,
		ledger:    ledger,
		reader:    reader,
		snapshots: snapshots,
		events:    events,
		logger:    log,

		instrument: instrument,
		options:    options,

		appliedOffset:      -1,
		lastSnapshotOffset: -1,
	}
}

// Start restores the book and launches the processor and snapshot
// goroutines.
func (e *Engine) Start(ctx context.Context) error {
	e.ctx, e.cancel = context.WithCancel(ctx)

	if err := e.bootstrap(e.ctx); err != nil {
		e.cancel()
		return err
	}

	e.wg.Add(2)
	go e.runJobProcessor()
	go e.runSnapshotManager()

	e.logger.Info("Matching engine started", logger.Field{
		Key:   "instrument",
		Value: e.instrument,
	})

	return nil
}

// Stop cancels the goroutines, waits them out within ctx, and persists a
// final snapshot so the next boot resumes where this one stopped.
func (e *Engine) Stop(ctx context.Context) error {
	if e.cancel != nil {
		e.cancel()
	}

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		e.logger.Warn("Engine stop timeout exceeded")
		return ctx.Err()
	}

	if applied := e.AppliedOffset(); applied >= 0 && applied != e.LastSnapshotOffset() {
		e.storeSnapshot(ctx)
	}

	e.logger.Info("Matching engine stopped")
	return nil
}

// bootstrap restores the book before any job is consumed. Without a
// snapshot, a ledger that still holds resting orders means the book state
// was lost; serving an empty book against it would fabricate liquidity, so
// boot refuses until the state is rebuilt externally.
func (e *Engine) bootstrap(ctx context.Context) error {
	snapshot, err := e.snapshots.LoadStore(ctx)
	if err != nil {
		return err
	}

	if snapshot != nil {
		if err := e.book.RestoreSnapshot(snapshot); err != nil {
			return err
		}

		e.mu.Lock()
		e.appliedOffset = snapshot.JobOffset
		e.lastSnapshotOffset = snapshot.JobOffset
		e.mu.Unlock()

		if err := e.reader.SetOffset(snapshot.JobOffset + 1); err != nil {
			return err
		}

		e.logger.Info("Book restored from snapshot", logger.Field{
			Key:   "job_offset",
			Value: snapshot.JobOffset,
		}, logger.Field{
			Key:   "resting_orders",
			Value: e.book.Len(),
		})
		return nil
	}

	resting, err := e.ledger.CountResting(ctx)
	if err != nil {
		return err
	}
	if resting > 0 {
		return errors.NewErrorDetails(
			fmt.Sprintf("ledger holds %d resting orders but there is no book snapshot to restore", resting),
			string(errors.InvariantViolation),
			"",
		)
	}

	// Fresh system: the reader stays at the topic head it was created with.
	e.logger.Info("Starting with an empty book", logger.Field{
		Key:   "instrument",
		Value: e.instrument,
	})
	return nil
}

// runJobProcessor is the single consumer of the job stream.
func (e *Engine) runJobProcessor() {
	defer e.wg.Done()

	e.logger.Info("Starting job processor", logger.Field{
		Key:   "instrument",
		Value: e.instrument,
	})

	for {
		select {
		case <-e.ctx.Done():
			e.logger.Info("Job processor shutting down")
			e.reader.Close()
			return
		default:
			job, err := e.reader.Fetch(e.ctx)
			if err != nil {
				if e.ctx.Err() != nil {
					continue
				}
				e.logger.ErrorContext(e.ctx, err, logger.Field{
					Key:   "action",
					Value: "fetch_job",
				})
				time.Sleep(100 * time.Millisecond)
				continue
			}

			e.applyJob(job)
		}
	}
}

// applyJob dispatches one job, retrying retryable faults with capped
// exponential backoff. An invariant violation aborts the job instead: the
// state needs out-of-band investigation and a retry would only repeat it.
// The applied offset advances only once the job is finished, so a shutdown
// mid-retry leaves the job for the next boot.
func (e *Engine) applyJob(job *jobstreamv1.Job) {
	e.stepMu.Lock()
	defer e.stepMu.Unlock()

	for attempt := 0; ; attempt++ {
		err := e.dispatch(e.ctx, job)
		if err == nil {
			break
		}

		if errors.ErrorCodeEquals(err, string(errors.InvariantViolation)) {
			e.logger.ErrorContext(e.ctx, err,
				logger.Field{Key: "action", Value: "apply_job"},
				logger.Field{Key: "kind", Value: job.Kind},
				logger.Field{Key: "order_id", Value: job.OrderID},
				logger.Field{Key: "offset", Value: job.Offset},
			)
			break
		}

		if e.ctx.Err() != nil {
			return
		}

		delay := e.retryDelay(attempt)
		e.logger.WarnContext(e.ctx, "job failed, retrying",
			logger.Field{Key: "error", Value: err.Error()},
			logger.Field{Key: "kind", Value: job.Kind},
			logger.Field{Key: "order_id", Value: job.OrderID},
			logger.Field{Key: "offset", Value: job.Offset},
			logger.Field{Key: "attempt", Value: attempt + 1},
			logger.Field{Key: "delay", Value: delay.String()},
		)

		select {
		case <-e.ctx.Done():
			return
		case <-time.After(delay):
		}
	}

	e.setAppliedOffset(job.Offset)
}

func (e *Engine) dispatch(ctx context.Context, job *jobstreamv1.Job) error {
	switch job.Kind {
	case jobstreamv1.KindSubmit:
		return e.applySubmit(ctx, job)
	case jobstreamv1.KindCancel:
		return e.applyCancel(ctx, job)
	default:
		e.logger.Warn("skipping job of unknown kind",
			logger.Field{Key: "kind", Value: job.Kind},
			logger.Field{Key: "offset", Value: job.Offset},
		)
		return nil
	}
}

// retryDelay doubles per attempt from the base, capped at the max.
func (e *Engine) retryDelay(attempt int) time.Duration {
	delay := e.options.RetryBaseDelay
	for i := 0; i < attempt && delay < e.options.RetryMaxDelay; i++ {
		delay *= 2
	}
	if delay > e.options.RetryMaxDelay {
		delay = e.options.RetryMaxDelay
	}
	return delay
}

// runSnapshotManager persists the book periodically once enough jobs have
// been applied since the last snapshot.
func (e *Engine) runSnapshotManager() {
	defer e.wg.Done()

	ticker := time.NewTicker(e.options.SnapshotInterval)
	defer ticker.Stop()

	e.logger.Info("Starting snapshot manager")

	for {
		select {
		case <-e.ctx.Done():
			e.logger.Info("Snapshot manager shutting down")
			return
		case <-ticker.C:
			if e.shouldSnapshot() {
				e.storeSnapshot(e.ctx)
			}
		}
	}
}

func (e *Engine) shouldSnapshot() bool {
	e.mu.RLock()
	applied := e.appliedOffset
	last := e.lastSnapshotOffset
	e.mu.RUnlock()

	if applied < 0 {
		return false
	}
	return applied-last >= e.options.SnapshotOffsetDelta
}

// storeSnapshot captures the book at a job boundary and persists it. The
// capture happens under stepMu so the offset and the book agree; the store
// call runs outside it to keep the matcher moving.
func (e *Engine) storeSnapshot(ctx context.Context) {
	e.stepMu.Lock()
	snapshot := e.book.CreateSnapshot()
	snapshot.JobOffset = e.AppliedOffset()
	e.stepMu.Unlock()

	if err := e.snapshots.Store(ctx, snapshot); err != nil {
		e.logger.ErrorContext(ctx, err, logger.Field{
			Key:   "action",
			Value: "store_snapshot",
		})
		return
	}

	e.setLastSnapshotOffset(snapshot.JobOffset)
	e.logger.Info("Snapshot stored", logger.Field{
		Key:   "instrument",
		Value: e.instrument,
	}, logger.Field{
		Key:   "job_offset",
		Value: snapshot.JobOffset,
	})
}

// publish pushes events to subscribers. Delivery never fails a step.
func (e *Engine) publish(ctx context.Context, events ...streamv1.Event) {
	if err := e.events.Publish(ctx, events...); err != nil {
		e.logger.Warn("event publish failed", logger.Field{
			Key:   "error",
			Value: err.Error(),
		})
	}
}

// AppliedOffset returns the offset of the last fully applied job.
func (e *Engine) AppliedOffset() int64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.appliedOffset
}

// LastSnapshotOffset returns the applied offset of the last stored snapshot.
func (e *Engine) LastSnapshotOffset() int64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.lastSnapshotOffset
}

func (e *Engine) setAppliedOffset(offset int64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.appliedOffset = offset
}

func (e *Engine) setLastSnapshotOffset(offset int64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.lastSnapshotOffset = offset
}
