package events

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DaDevFox/task-systems/feeding-core/internal/domain"
)

func newTestBus() *EventBus {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return NewEventBus("feeding-test", logger)
}

func TestPublishDeliversToSubscribers(t *testing.T) {
	bus := newTestBus()

	var mu sync.Mutex
	var got []*Event
	handler := func(ctx context.Context, event *Event) error {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, event)
		return nil
	}
	bus.Subscribe(StockDepleted, handler)
	bus.Subscribe(StockDepleted, handler)

	bus.Publish(context.Background(), StockDepleted, StockChangedPayload{SKU: domain.NewSKUKey("Rat", "Large")})
	bus.Wait()

	require.Len(t, got, 2)
	assert.Equal(t, got[0].ID, got[1].ID, "one event fanned out to both handlers")
	assert.Equal(t, "feeding-test", got[0].SourceService)
	payload, ok := got[0].Payload.(StockChangedPayload)
	require.True(t, ok)
	assert.Equal(t, "Rat/Large", payload.SKU.String())
}

func TestPublishWithoutSubscribers(t *testing.T) {
	bus := newTestBus()
	bus.Publish(context.Background(), FeedingRecorded, FeedingRecordedPayload{})
	bus.Wait()
}

func TestHandlerErrorsDoNotAffectOthers(t *testing.T) {
	bus := newTestBus()

	var calls atomic.Int32
	bus.Subscribe(ReminderDispatched, func(ctx context.Context, event *Event) error {
		calls.Add(1)
		return errors.New("handler failed")
	})
	bus.Subscribe(ReminderDispatched, func(ctx context.Context, event *Event) error {
		calls.Add(1)
		return nil
	})

	bus.Publish(context.Background(), ReminderDispatched, ReminderDispatchedPayload{AnimalID: "a1"})
	bus.Wait()

	assert.Equal(t, int32(2), calls.Load())
}

func TestHandlersOutliveCancelledPublisher(t *testing.T) {
	bus := newTestBus()

	var handlerErr error
	bus.Subscribe(FeedingRecorded, func(ctx context.Context, event *Event) error {
		handlerErr = ctx.Err()
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	bus.Publish(ctx, FeedingRecorded, FeedingRecordedPayload{AnimalID: "a1"})
	cancel()
	bus.Wait()

	assert.NoError(t, handlerErr)
}
