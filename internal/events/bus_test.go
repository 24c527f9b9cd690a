package events

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestBus_PublishDeliversInOrder(t *testing.T) {
	bus := NewBus(zaptest.NewLogger(t), 16)

	var mu sync.Mutex
	var got []EventType
	bus.SubscribeFunc(EconomyCreated, func(_ context.Context, e Event) error {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, e.Type())
		return nil
	})
	bus.SubscribeFunc(TokensBought, func(_ context.Context, e Event) error {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, e.Type())
		return nil
	})

	now := time.Now()
	require.NoError(t, bus.Publish(EconomyCreatedEvent{BaseEvent: BaseEvent{EventType: EconomyCreated, EventTime: now}}))
	require.NoError(t, bus.Publish(TradeEvent{BaseEvent: BaseEvent{EventType: TokensBought, EventTime: now}}))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, bus.Shutdown(ctx))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []EventType{EconomyCreated, TokensBought}, got)
}

func TestBus_PublishSyncJoinsErrors(t *testing.T) {
	bus := NewBus(zaptest.NewLogger(t), 1)
	defer bus.Shutdown(context.Background())

	boom := errors.New("boom")
	bus.SubscribeFunc(TokensSold, func(context.Context, Event) error { return boom })

	err := bus.PublishSync(context.Background(), TradeEvent{BaseEvent: BaseEvent{EventType: TokensSold}})
	assert.ErrorIs(t, err, boom)

	assert.NoError(t, bus.PublishSync(context.Background(), TradeEvent{BaseEvent: BaseEvent{EventType: TokensBought}}))
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := NewBus(zaptest.NewLogger(t), 1)
	defer bus.Shutdown(context.Background())

	calls := 0
	sub := bus.SubscribeFunc(TokensBought, func(context.Context, Event) error {
		calls++
		return nil
	})
	require.NoError(t, bus.PublishSync(context.Background(), TradeEvent{BaseEvent: BaseEvent{EventType: TokensBought}}))
	sub.Unsubscribe()
	require.NoError(t, bus.PublishSync(context.Background(), TradeEvent{BaseEvent: BaseEvent{EventType: TokensBought}}))

	assert.Equal(t, 1, calls)
	assert.Empty(t, bus.Stats().Handlers)
}

func TestBus_HandlersRunInSubscriptionOrder(t *testing.T) {
	bus := NewBus(zaptest.NewLogger(t), 1)
	defer bus.Shutdown(context.Background())

	var got []int
	for i := 0; i < 5; i++ {
		i := i
		bus.SubscribeFunc(TokensBought, func(context.Context, Event) error {
			got = append(got, i)
			return nil
		})
	}
	require.NoError(t, bus.PublishSync(context.Background(), TradeEvent{BaseEvent: BaseEvent{EventType: TokensBought}}))
	assert.Equal(t, []int{0, 1, 2, 3, 4}, got)
	assert.Equal(t, map[string]int{string(TokensBought): 5}, bus.Stats().Handlers)
}

func TestBus_QueueFullDropsAndCounts(t *testing.T) {
	bus := NewBus(zaptest.NewLogger(t), 1)

	started := make(chan struct{}, 1)
	release := make(chan struct{})
	bus.SubscribeFunc(TokensBought, func(context.Context, Event) error {
		select {
		case started <- struct{}{}:
		default:
		}
		<-release
		return nil
	})
	bus.SubscribeFunc(TokensBought, func(context.Context, Event) error { return errors.New("boom") })

	ev := TradeEvent{BaseEvent: BaseEvent{EventType: TokensBought}}
	require.NoError(t, bus.Publish(ev))
	<-started
	require.NoError(t, bus.Publish(ev))
	assert.ErrorIs(t, bus.Publish(ev), ErrQueueFull)

	close(release)
	require.NoError(t, bus.Shutdown(context.Background()))

	stats := bus.Stats()
	assert.Equal(t, 1, stats.Capacity)
	assert.Equal(t, 0, stats.Pending)
	assert.Equal(t, uint64(2), stats.Published)
	assert.Equal(t, uint64(2), stats.Delivered)
	assert.Equal(t, uint64(2), stats.Failed)
	assert.Equal(t, uint64(1), stats.Dropped)
}

func TestBus_PublishAfterShutdown(t *testing.T) {
	bus := NewBus(zaptest.NewLogger(t), 1)
	require.NoError(t, bus.Shutdown(context.Background()))
	assert.ErrorIs(t, bus.Publish(TradeEvent{BaseEvent: BaseEvent{EventType: TokensBought}}), ErrBusClosed)
	assert.NoError(t, bus.Shutdown(context.Background()))
}

func TestBus_ShutdownDeliversEveryAcceptedEvent(t *testing.T) {
	bus := NewBus(zaptest.NewLogger(t), 64)

	var handled atomic.Uint64
	bus.SubscribeFunc(TokensBought, func(context.Context, Event) error {
		handled.Add(1)
		return nil
	})

	var accepted atomic.Uint64
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			for j := 0; j < 200; j++ {
				err := bus.Publish(TradeEvent{BaseEvent: BaseEvent{EventType: TokensBought}})
				if err == nil {
					accepted.Add(1)
					continue
				}
				if errors.Is(err, ErrBusClosed) {
					return
				}
				assert.ErrorIs(t, err, ErrQueueFull)
			}
		}()
	}

	close(start)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, bus.Shutdown(ctx))
	wg.Wait()

	assert.ErrorIs(t, bus.Publish(TradeEvent{BaseEvent: BaseEvent{EventType: TokensBought}}), ErrBusClosed)
	stats := bus.Stats()
	assert.Equal(t, 0, stats.Pending)
	assert.Equal(t, accepted.Load(), stats.Published)
	assert.Equal(t, accepted.Load(), handled.Load())
	assert.Equal(t, stats.Published, stats.Delivered)
}

func TestTradeEvent_Side(t *testing.T) {
	assert.Equal(t, "buy", TradeEvent{BaseEvent: BaseEvent{EventType: TokensBought}}.Side())
	assert.Equal(t, "sell", TradeEvent{BaseEvent: BaseEvent{EventType: TokensSold}}.Side())
}
