package broadcast

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/oklog/ulid/v2"

	streamv1 "github.com/openspot/matching-core/internal/domain/stream/v1"
	"github.com/openspot/matching-core/pkg/logger"
)

const defaultBuffer = 256

// Hub fans events out to in-process subscribers. Delivery is at most once
// per subscriber: a full buffer drops the event instead of blocking the
// engine, and the drop count is reported when the subscriber leaves.
type Hub struct {
	mu     sync.RWMutex
	subs   map[string]*Subscription
	logger logger.Interface
	closed bool
}

var _ streamv1.Publisher = (*Hub)(nil)

// Subscription is one subscriber's buffered event feed.
type Subscription struct {
	ID string
	C  <-chan streamv1.Event

	ch      chan streamv1.Event
	dropped int64
}

// Dropped returns how many events this subscriber has missed so far.
func (s *Subscription) Dropped() int64 {
	return atomic.LoadInt64(&s.dropped)
}

// NewHub creates an empty hub.
func NewHub(log logger.Interface) *Hub {
	return &Hub{
		subs:   make(map[string]*Subscription),
		logger: log,
	}
}

// Subscribe registers a new subscriber with the given buffer size. A closed
// hub hands back a subscription whose channel is already closed.
func (h *Hub) Subscribe(buffer int) *Subscription {
	if buffer <= 0 {
		buffer = defaultBuffer
	}

	ch := make(chan streamv1.Event, buffer)
	sub := &Subscription{
		ID: ulid.Make().String(),
		C:  ch,
		ch: ch,
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		close(ch)
		return sub
	}
	h.subs[sub.ID] = sub
	return sub
}

// Unsubscribe removes the subscriber, closes its channel and logs how many
// events it missed.
func (h *Hub) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}

	h.mu.Lock()
	registered := false
	if _, ok := h.subs[sub.ID]; ok {
		delete(h.subs, sub.ID)
		close(sub.ch)
		registered = true
	}
	h.mu.Unlock()

	if registered {
		h.logger.Info("stream subscriber left",
			logger.Field{Key: "subscription_id", Value: sub.ID},
			logger.Field{Key: "events_dropped", Value: sub.Dropped()},
		)
	}
}

// Publish offers every event to every subscriber without ever blocking.
func (h *Hub) Publish(_ context.Context, events ...streamv1.Event) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.closed {
		return nil
	}

	for _, ev := range events {
		for _, sub := range h.subs {
			select {
			case sub.ch <- ev:
			default:
				atomic.AddInt64(&sub.dropped, 1)
			}
		}
	}
	return nil
}

// Close shuts the hub down and closes every subscriber channel.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true

	for id, sub := range h.subs {
		close(sub.ch)
		delete(h.subs, id)
	}
}
