// Package eventbus delivers poll results to any number of subscribers.
//
// Publish is serialized, so every subscriber sees events in publish order. Each handler
// runs isolated: a returned error or a panic is reported as a *SubscriberError and never
// reaches the publisher or the other subscribers.
package eventbus

import (
	"errors"
	"fmt"
	"sync"

	"upbitwatch/internal/upbit/model"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Handler consumes one update event.
type Handler func(model.UpdateEvent) error

// ErrLagging is reported when an async subscriber's queue is full and an event is dropped for it.
var ErrLagging = errors.New("subscriber queue full, event dropped")

// SubscriberError wraps a failure of a single subscriber.
type SubscriberError struct {
	Subscriber string
	ID         uuid.UUID
	Cycle      uint64
	Err        error
}

func (e *SubscriberError) Error() string {
	return fmt.Sprintf("subscriber %s (cycle %d): %v", e.Subscriber, e.Cycle, e.Err)
}

func (e *SubscriberError) Unwrap() error { return e.Err }

// Subscription is the handle returned by Subscribe.
type Subscription struct {
	ID   uuid.UUID
	Name string
}

type subscriber struct {
	Subscription
	handler Handler

	// async only
	mu     sync.Mutex
	queue  chan model.UpdateEvent
	closed bool
	done   chan struct{}
}

type Bus struct {
	mu      sync.RWMutex
	subs    map[uuid.UUID]*subscriber
	order   []uuid.UUID
	last    *model.UpdateEvent
	closed  bool
	onError func(error)
	logger  *zap.Logger

	// guards publishing and pending
	pubMu      sync.Mutex
	publishing bool
	pending    []model.UpdateEvent
}

type Option func(*Bus)

// WithErrorHandler sets the callback receiving every *SubscriberError.
func WithErrorHandler(fn func(error)) Option {
	return func(b *Bus) { b.onError = fn }
}

func WithLogger(logger *zap.Logger) Option {
	return func(b *Bus) {
		if logger != nil {
			b.logger = logger
		}
	}
}

func New(opts ...Option) *Bus {
	b := &Bus{
		subs:   make(map[uuid.UUID]*subscriber),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe registers h to be called synchronously from Publish.
func (b *Bus) Subscribe(name string, h Handler) Subscription {
	return b.add(&subscriber{
		Subscription: Subscription{ID: uuid.New(), Name: name},
		handler:      h,
	})
}

// SubscribeAsync registers h on its own goroutine behind a queue of the given size.
// When the queue is full the event is dropped for this subscriber and ErrLagging is reported.
func (b *Bus) SubscribeAsync(name string, h Handler, buffer int) Subscription {
	if buffer < 1 {
		buffer = 1
	}
	s := &subscriber{
		Subscription: Subscription{ID: uuid.New(), Name: name},
		handler:      h,
		queue:        make(chan model.UpdateEvent, buffer),
		done:         make(chan struct{}),
	}
	go func() {
		defer close(s.done)
		for ev := range s.queue {
			b.invoke(s, ev)
		}
	}()
	return b.add(s)
}

func (b *Bus) add(s *subscriber) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		s.stop()
		return s.Subscription
	}
	b.subs[s.ID] = s
	b.order = append(b.order, s.ID)
	b.logger.Info("subscribed", zap.String("subscriber", s.Name), zap.String("id", s.ID.String()))
	return s.Subscription
}

// Unsubscribe removes the subscription. It reports false when it was not registered.
// An async subscriber finishes the events already queued for it.
func (b *Bus) Unsubscribe(sub Subscription) bool {
	b.mu.Lock()
	s, ok := b.subs[sub.ID]
	if ok {
		delete(b.subs, sub.ID)
		for i, id := range b.order {
			if id == sub.ID {
				b.order = append(b.order[:i], b.order[i+1:]...)
				break
			}
		}
	}
	b.mu.Unlock()

	if !ok {
		return false
	}
	s.stop()
	b.logger.Info("unsubscribed", zap.String("subscriber", s.Name), zap.String("id", s.ID.String()))
	return true
}

// Publish delivers ev to every current subscriber and records it as the last event.
// A Publish issued while another one is delivering, including from inside a handler,
// is queued and delivered by the running call once it finishes.
func (b *Bus) Publish(ev model.UpdateEvent) {
	b.pubMu.Lock()
	if b.publishing {
		b.pending = append(b.pending, ev)
		b.pubMu.Unlock()
		return
	}
	b.publishing = true
	b.pubMu.Unlock()

	for {
		b.deliver(ev)

		b.pubMu.Lock()
		if len(b.pending) == 0 {
			b.publishing = false
			b.pubMu.Unlock()
			return
		}
		ev = b.pending[0]
		b.pending = b.pending[1:]
		b.pubMu.Unlock()
	}
}

func (b *Bus) deliver(ev model.UpdateEvent) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.last = &ev
	targets := make([]*subscriber, 0, len(b.order))
	for _, id := range b.order {
		targets = append(targets, b.subs[id])
	}
	b.mu.Unlock()

	for _, s := range targets {
		if s.queue == nil {
			b.invoke(s, ev)
			continue
		}
		if !s.enqueue(ev) {
			b.report(s, ev.Cycle, ErrLagging)
		}
	}
}

// Last returns the most recently published event.
func (b *Bus) Last() (model.UpdateEvent, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.last == nil {
		return model.UpdateEvent{}, false
	}
	return *b.last, true
}

func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close drops every subscription and waits for async subscribers to drain. Later publishes are ignored.
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	subs := b.subs
	b.subs = make(map[uuid.UUID]*subscriber)
	b.order = nil
	b.mu.Unlock()

	for _, s := range subs {
		s.stop()
	}
	for _, s := range subs {
		if s.done != nil {
			<-s.done
		}
	}
}

func (b *Bus) invoke(s *subscriber, ev model.UpdateEvent) {
	defer func() {
		if r := recover(); r != nil {
			b.report(s, ev.Cycle, fmt.Errorf("panic: %v", r))
		}
	}()
	if err := s.handler(ev); err != nil {
		b.report(s, ev.Cycle, err)
	}
}

func (b *Bus) report(s *subscriber, cycle uint64, err error) {
	serr := &SubscriberError{Subscriber: s.Name, ID: s.ID, Cycle: cycle, Err: err}
	b.logger.Warn("subscriber failed",
		zap.String("subscriber", s.Name),
		zap.Uint64("cycle", cycle),
		zap.Error(err),
	)
	if b.onError != nil {
		b.onError(serr)
	}
}

func (s *subscriber) enqueue(ev model.UpdateEvent) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return true
	}
	select {
	case s.queue <- ev:
		return true
	default:
		return false
	}
}

func (s *subscriber) stop() {
	if s.queue == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.queue)
	}
}
