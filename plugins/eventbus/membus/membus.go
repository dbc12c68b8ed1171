// Package membus provides an in-memory implementation of eventbus.EventBus.
package membus

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"runtime/debug"
	"sync"

	"github.com/dpup/taskhub/errors"
	"github.com/dpup/taskhub/logging"
	"github.com/dpup/taskhub/plugins/eventbus"
)

const (
	defaultWorkers = 100
	jobBuffer      = 500
)

// Option configures the bus.
type Option func(*Bus)

// WithWorkerPool sets the number of worker goroutines for processing events.
// Default is 100 workers. Set to 0 to use unbounded goroutines.
func WithWorkerPool(size int) Option {
	return func(b *Bus) {
		b.workers = size
	}
}

// New returns a new in-memory EventBus.
func New(ctx context.Context, opts ...Option) eventbus.EventBus {
	b := &Bus{
		baseCtx: logging.With(ctx, logging.FromContext(ctx).Named("eventbus")),
		topics:  map[string]*topic{},
		workers: defaultWorkers,
		jobs:    make(chan job, jobBuffer),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Bus is an in-memory implementation of EventBus. Broadcast and queue
// subscriptions for the same topic name are tracked independently.
type Bus struct {
	baseCtx context.Context
	topics  map[string]*topic

	mu sync.Mutex
	wg sync.WaitGroup

	jobs    chan job
	workers int
	started bool
}

// topic holds the subscriptions for a single topic name. next indexes into
// queue for round-robin delivery.
type topic struct {
	broadcast []eventbus.Handler
	queue     []eventbus.Handler
	next      uint64
}

type job struct {
	ctx     context.Context
	handler eventbus.Handler
	msg     *eventbus.Message
}

// Subscribe registers a handler for broadcast messages.
func (b *Bus) Subscribe(name string, handler eventbus.Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	t := b.topic(name)
	t.broadcast = append(t.broadcast, handler)
}

// SubscribeQueue registers a handler for queue messages.
func (b *Bus) SubscribeQueue(name string, handler eventbus.Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	t := b.topic(name)
	t.queue = append(t.queue, handler)
}

// Publish sends a message to all broadcast subscribers of the topic.
func (b *Bus) Publish(name string, data any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ensureStarted()

	t := b.topic(name)
	for _, handler := range t.broadcast {
		b.dispatch(name, handler, data)
	}
}

// Enqueue sends a message to one queue subscriber, selected round-robin.
func (b *Bus) Enqueue(name string, data any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ensureStarted()

	t := b.topic(name)
	if len(t.queue) == 0 {
		return
	}
	handler := t.queue[t.next%uint64(len(t.queue))]
	t.next++
	b.dispatch(name, handler, data)
}

// Shutdown closes the job channel and waits for all workers to finish.
func (b *Bus) Shutdown(ctx context.Context) error {
	b.mu.Lock()
	if b.started && b.workers > 0 {
		close(b.jobs)
	}
	b.mu.Unlock()

	return b.Wait(ctx)
}

// Wait blocks until all pending messages are processed.
func (b *Bus) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		defer close(done)
		b.wg.Wait()
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return errors.New("eventbus: timeout waiting for handlers to finish")
	}
}

// topic returns the state for name, creating it if needed. Callers must hold
// the mutex.
func (b *Bus) topic(name string) *topic {
	t, ok := b.topics[name]
	if !ok {
		t = &topic{}
		b.topics[name] = t
	}
	return t
}

// dispatch hands a single message to a handler, either via the worker pool or
// on a fresh goroutine when the pool is disabled. Callers must hold the mutex.
func (b *Bus) dispatch(name string, handler eventbus.Handler, data any) {
	ctx := logging.With(b.baseCtx, logging.FromContext(b.baseCtx).Named(name))
	msg := eventbus.NewMessage(newMessageID(), name, data)

	b.wg.Add(1)
	if b.workers == 0 {
		go b.execute(ctx, handler, msg)
		return
	}
	b.jobs <- job{ctx: ctx, handler: handler, msg: msg}
}

// ensureStarted lazily spins up the worker pool on first publish. Callers
// must hold the mutex.
func (b *Bus) ensureStarted() {
	if b.started {
		return
	}
	b.started = true
	for range b.workers {
		go func() {
			for job := range b.jobs {
				b.execute(job.ctx, job.handler, job.msg)
			}
		}()
	}
}

func (b *Bus) execute(ctx context.Context, handler eventbus.Handler, msg *eventbus.Message) {
	defer func() {
		if r := recover(); r != nil {
			logging.Errorw(ctx, "eventbus: recovered from panic",
				"error", r, "error.stack_trace", string(debug.Stack()))
		}
		b.wg.Done()
	}()
	if err := handler(ctx, msg); err != nil {
		logging.Errorw(ctx, "eventbus: handler error", "error", err, "message_id", msg.ID)
	}
}

func newMessageID() string {
	var buf [16]byte
	rand.Read(buf[:])
	return hex.EncodeToString(buf[:])
}
