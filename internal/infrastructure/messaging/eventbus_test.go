package messaging

import (
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecolearn-hub/ecolearn-backend/internal/domain/shared"
)

func newSyncBus() *InMemoryEventBus {
	return NewInMemoryEventBus(InMemoryEventBusConfig{AsyncMode: false})
}

func TestInMemoryBusRoutesByEventType(t *testing.T) {
	bus := newSyncBus()

	var xpEvents, levelEvents []shared.Event
	require.NoError(t, bus.Subscribe(shared.EventXPAwarded, func(e shared.Event) error {
		xpEvents = append(xpEvents, e)
		return nil
	}))
	require.NoError(t, bus.Subscribe(shared.EventLevelUp, func(e shared.Event) error {
		levelEvents = append(levelEvents, e)
		return nil
	}))

	require.NoError(t, bus.Publish(shared.NewXPAwardedEvent("greta", 30, 30, "lesson")))

	assert.Len(t, xpEvents, 1)
	assert.Empty(t, levelEvents)
	assert.Equal(t, shared.EventXPAwarded, xpEvents[0].EventType())
}

func TestInMemoryBusSubscribeAll(t *testing.T) {
	bus := newSyncBus()

	var seen []shared.EventType
	require.NoError(t, bus.SubscribeAll(func(e shared.Event) error {
		seen = append(seen, e.EventType())
		return nil
	}))

	require.NoError(t, bus.Publish(shared.NewXPAwardedEvent("greta", 30, 30, "lesson")))
	require.NoError(t, bus.Publish(shared.NewLevelUpEvent("greta", 1, 2)))

	assert.Equal(t, []shared.EventType{shared.EventXPAwarded, shared.EventLevelUp}, seen)
}

func TestInMemoryBusHandlerErrorDoesNotStopOthers(t *testing.T) {
	bus := newSyncBus()

	var called bool
	require.NoError(t, bus.Subscribe(shared.EventXPAwarded, func(e shared.Event) error {
		return assert.AnError
	}))
	require.NoError(t, bus.Subscribe(shared.EventXPAwarded, func(e shared.Event) error {
		called = true
		return nil
	}))

	// Publish не возвращает ошибки обработчиков, они только логируются.
	require.NoError(t, bus.Publish(shared.NewXPAwardedEvent("greta", 30, 30, "lesson")))
	assert.True(t, called)
}

func TestInMemoryBusAsyncDelivery(t *testing.T) {
	bus := NewInMemoryEventBus(InMemoryEventBusConfig{AsyncMode: true, WorkerPoolSize: 4})

	var mu sync.Mutex
	count := 0
	require.NoError(t, bus.SubscribeAll(func(e shared.Event) error {
		mu.Lock()
		count++
		mu.Unlock()
		return nil
	}))

	for i := 0; i < 10; i++ {
		require.NoError(t, bus.Publish(shared.NewXPAwardedEvent("greta", 10, int64(10*(i+1)), "quiz")))
	}

	// Close дожидается всех запущенных обработчиков.
	require.NoError(t, bus.Close())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 10, count)
}

func TestInMemoryBusRejectsNilValues(t *testing.T) {
	bus := newSyncBus()

	assert.ErrorIs(t, bus.Publish(nil), ErrNilEvent)
	assert.ErrorIs(t, bus.Subscribe(shared.EventXPAwarded, nil), ErrNilHandler)
	assert.ErrorIs(t, bus.SubscribeAll(nil), ErrNilHandler)
}

func TestInMemoryBusClosed(t *testing.T) {
	bus := newSyncBus()
	require.NoError(t, bus.Close())
	require.NoError(t, bus.Close())

	err := bus.Publish(shared.NewLevelUpEvent("greta", 1, 2))
	assert.ErrorIs(t, err, ErrEventBusClosed)
}

func TestDispatcherRoutesToNamedHandler(t *testing.T) {
	bus := newSyncBus()
	dispatcher := NewDispatcher(DispatcherConfig{EventBus: bus})
	defer dispatcher.Stop()

	var got shared.Event
	require.NoError(t, dispatcher.Register(shared.EventRankSyncFailed, "resync", func(e shared.Event) error {
		got = e
		return nil
	}))
	require.NoError(t, dispatcher.Start())

	require.NoError(t, bus.Publish(shared.NewRankSyncFailedEvent("greta", 100, "redis down")))

	require.NotNil(t, got)
	assert.Equal(t, shared.EventRankSyncFailed, got.EventType())
	assert.Equal(t, 0, dispatcher.DeadLetterQueue().Size())
}

func TestDispatcherRetriesUntilSuccess(t *testing.T) {
	dispatcher := NewDispatcher(DispatcherConfig{
		EventBus: newSyncBus(),
		RetryConfig: RetryConfig{
			MaxRetries:        3,
			InitialBackoff:    time.Millisecond,
			MaxBackoff:        5 * time.Millisecond,
			BackoffMultiplier: 2.0,
		},
	})
	defer dispatcher.Stop()

	attempts := 0
	require.NoError(t, dispatcher.Register(shared.EventRankSyncFailed, "flaky", func(e shared.Event) error {
		attempts++
		if attempts < 3 {
			return assert.AnError
		}
		return nil
	}))

	err := dispatcher.Dispatch(shared.NewRankSyncFailedEvent("greta", 100, "redis down"))
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, 0, dispatcher.DeadLetterQueue().Size())
}

func TestDispatcherDeadLettersExhaustedEvents(t *testing.T) {
	dispatcher := NewDispatcher(DispatcherConfig{
		EventBus: newSyncBus(),
		RetryConfig: RetryConfig{
			MaxRetries:        2,
			InitialBackoff:    time.Millisecond,
			MaxBackoff:        5 * time.Millisecond,
			BackoffMultiplier: 2.0,
		},
	})
	defer dispatcher.Stop()

	attempts := 0
	require.NoError(t, dispatcher.Register(shared.EventRankSyncFailed, "broken", func(e shared.Event) error {
		attempts++
		return assert.AnError
	}))

	err := dispatcher.Dispatch(shared.NewRankSyncFailedEvent("greta", 100, "redis down"))
	require.Error(t, err)
	assert.Equal(t, 3, attempts)

	entries := dispatcher.DeadLetterQueue().Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "broken", entries[0].HandlerName)
	assert.Equal(t, 3, entries[0].Attempts)
	assert.Equal(t, shared.EventRankSyncFailed, entries[0].Event.EventType())
}

func TestDispatcherMiddlewareOrder(t *testing.T) {
	dispatcher := NewDispatcher(DispatcherConfig{EventBus: newSyncBus()})
	defer dispatcher.Stop()

	var order []string
	mw := func(name string) Middleware {
		return func(next shared.EventHandler) shared.EventHandler {
			return func(e shared.Event) error {
				order = append(order, name)
				return next(e)
			}
		}
	}
	dispatcher.Use(mw("outer"))
	dispatcher.Use(mw("inner"))

	require.NoError(t, dispatcher.Register(shared.EventLevelUp, "probe", func(e shared.Event) error {
		order = append(order, "handler")
		return nil
	}))

	require.NoError(t, dispatcher.Dispatch(shared.NewLevelUpEvent("greta", 1, 2)))
	assert.Equal(t, []string{"outer", "inner", "handler"}, order)
}

func TestRecoveryMiddlewareConvertsPanic(t *testing.T) {
	dispatcher := NewDispatcher(DispatcherConfig{
		EventBus: newSyncBus(),
		RetryConfig: RetryConfig{
			MaxRetries:        1,
			InitialBackoff:    time.Millisecond,
			MaxBackoff:        time.Millisecond,
			BackoffMultiplier: 1.0,
		},
	})
	defer dispatcher.Stop()
	dispatcher.Use(RecoveryMiddleware(slog.Default()))

	require.NoError(t, dispatcher.Register(shared.EventLevelUp, "panicky", func(e shared.Event) error {
		panic("boom")
	}))

	err := dispatcher.Dispatch(shared.NewLevelUpEvent("greta", 1, 2))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panic")
}

func TestDeadLetterQueueBoundedAndPop(t *testing.T) {
	q := NewDeadLetterQueue(2)

	q.Add(DeadLetterEntry{HandlerName: "a"})
	q.Add(DeadLetterEntry{HandlerName: "b"})
	q.Add(DeadLetterEntry{HandlerName: "c"})

	assert.Equal(t, 2, q.Size())

	entry, ok := q.Pop()
	require.True(t, ok)
	assert.Equal(t, "b", entry.HandlerName)

	entry, ok = q.Pop()
	require.True(t, ok)
	assert.Equal(t, "c", entry.HandlerName)

	_, ok = q.Pop()
	assert.False(t, ok)
}
