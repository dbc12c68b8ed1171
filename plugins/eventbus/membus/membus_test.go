package membus

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/dpup/taskhub/logging"
	"github.com/dpup/taskhub/plugins/eventbus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBus_BasicPubSub(t *testing.T) {
	bus := New(logging.EnsureLogger(t.Context()))

	var called bool
	bus.Subscribe("topic", func(ctx context.Context, msg *eventbus.Message) error {
		assert.Equal(t, "hello", msg.Data)
		called = true
		return nil
	})

	bus.Publish("topic", "hello")

	assert.Eventually(t, func() bool { return called },
		time.Millisecond*10,
		time.Millisecond,
		"subscriber should have been called")
}

func TestBus_MultipleSubscribers(t *testing.T) {
	bus := New(logging.EnsureLogger(t.Context()))

	var called []int
	var mu sync.Mutex
	for i := range 10 {
		bus.Subscribe("topic", func(ctx context.Context, msg *eventbus.Message) error {
			mu.Lock()
			defer mu.Unlock()
			assert.Equal(t, "hello", msg.Data)
			called = append(called, i)
			return nil
		})
	}

	bus.Publish("topic", "hello")

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		slices.Sort(called) // Execution order isn't guaranteed.
		return len(called) == 10
	},
		time.Millisecond*10,
		time.Millisecond,
		"subscribers should have been called")
}

func TestBus_Wait(t *testing.T) {
	bus := New(logging.EnsureLogger(t.Context()))

	var called bool
	bus.Subscribe("topic", func(ctx context.Context, msg *eventbus.Message) error {
		assert.Equal(t, "hello", msg.Data)
		time.Sleep(time.Millisecond * 50)
		called = true
		return nil
	})

	bus.Publish("topic", "hello")

	require.NoError(t, bus.Wait(logging.EnsureLogger(t.Context())))
	assert.True(t, called, "subscriber should have been called")
}

func TestBus_WaitTimeout(t *testing.T) {
	bus := New(logging.EnsureLogger(t.Context()))

	var called bool
	bus.Subscribe("topic", func(ctx context.Context, msg *eventbus.Message) error {
		assert.Equal(t, "hello", msg.Data)
		time.Sleep(time.Millisecond * 50)
		called = true
		return nil
	})

	bus.Publish("topic", "hello")

	ctx, cancel := context.WithTimeout(t.Context(), time.Millisecond)
	defer cancel()

	require.Error(t, bus.Wait(ctx))
	assert.False(t, called, "subscriber should not have been called yet")
}

func TestBus_SubscriberError(t *testing.T) {
	ctx := logging.With(t.Context(), logging.NewNopLogger())
	bus := New(ctx)

	bus.Subscribe("topic", func(ctx context.Context, msg *eventbus.Message) error {
		return errors.New("subscriber error")
	})

	bus.Publish("topic", "hello")
	assert.NoError(t, bus.Wait(ctx))
}

func TestBus_SubscriberPanic(t *testing.T) {
	ctx := logging.With(t.Context(), logging.NewNopLogger())
	bus := New(ctx)

	bus.Subscribe("topic", func(ctx context.Context, msg *eventbus.Message) error {
		panic("subscriber panic")
	})

	bus.Publish("topic", "hello")
	assert.NoError(t, bus.Wait(ctx), "panic should be recovered")
}

func TestBus_QueueRoundRobin(t *testing.T) {
	bus := New(logging.EnsureLogger(t.Context()))

	var mu sync.Mutex
	counts := make([]int, 3)
	for i := range 3 {
		bus.SubscribeQueue("work", func(ctx context.Context, msg *eventbus.Message) error {
			mu.Lock()
			defer mu.Unlock()
			counts[i]++
			return nil
		})
	}

	for range 9 {
		bus.Enqueue("work", "job")
	}

	require.NoError(t, bus.Wait(t.Context()))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{3, 3, 3}, counts, "work should be distributed evenly")
}

func TestBus_NoSubscribers(t *testing.T) {
	bus := New(logging.EnsureLogger(t.Context()))

	assert.NotPanics(t, func() {
		bus.Publish("empty", "hello")
		bus.Enqueue("empty", "hello")
	})
	require.NoError(t, bus.Wait(t.Context()))
}

func TestBus_Shutdown(t *testing.T) {
	bus := New(logging.EnsureLogger(t.Context()))

	var called bool
	bus.Subscribe("topic", func(ctx context.Context, msg *eventbus.Message) error {
		called = true
		return nil
	})

	bus.Publish("topic", "hello")
	require.NoError(t, bus.Shutdown(t.Context()))
	assert.True(t, called)
}
