package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/DaDevFox/task-systems/feeding-core/internal/domain"
	"github.com/DaDevFox/task-systems/feeding-core/internal/events"
	"github.com/DaDevFox/task-systems/feeding-core/internal/prediction"
	"github.com/DaDevFox/task-systems/feeding-core/internal/repository"
	"github.com/DaDevFox/task-systems/feeding-core/internal/testsupport"
)

const (
	testAnimalID = "monty"
	testSpecies  = "Ball Python"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock(t *testing.T, date string) *testClock {
	return &testClock{now: mustDate(t, date).Add(9 * time.Hour)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(t *testing.T, date string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = mustDate(t, date).Add(9 * time.Hour)
}

func mustDate(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := domain.ParseDate(s)
	require.NoError(t, err)
	return d
}

func strPtr(s string) *string { return &s }

type testServices struct {
	store     repository.Store
	feeding   *FeedingService
	inventory *InventoryService
	bus       *events.EventBus
	clock     *testClock
}

// setupTestServices wires both services over store with a pinned clock.
func setupTestServices(t *testing.T, store repository.Store, today string) *testServices {
	t.Helper()
	logger := testsupport.Logger()
	bus := events.NewEventBus("feeding-test", logger)
	clock := newTestClock(t, today)

	feeding := NewFeedingService(store, bus, prediction.DefaultTable(), logger)
	feeding.SetClock(clock.Now)
	inventory := NewInventoryService(store, bus, logger)
	inventory.SetClock(clock.Now)

	t.Cleanup(bus.Wait)
	return &testServices{store: store, feeding: feeding, inventory: inventory, bus: bus, clock: clock}
}

func setupMemoryServices(t *testing.T, today string) *testServices {
	return setupTestServices(t, testsupport.NewStore(t, repository.DatabaseTypeMemory), today)
}

func (ts *testServices) addAnimal(t *testing.T, id, species string) {
	t.Helper()
	_, err := ts.feeding.PutAnimal(context.Background(), &domain.Animal{ID: id, Name: id, Species: species})
	require.NoError(t, err)
}

func (ts *testServices) addStock(t *testing.T, foodType, foodSize string, qty int) {
	t.Helper()
	_, err := ts.inventory.AddStock(context.Background(), domain.LineItem{FoodType: foodType, FoodSize: foodSize, Quantity: qty}, "")
	require.NoError(t, err)
}

func (ts *testServices) reminderWithNext(t *testing.T, animalID string, interval int, lastFed string, food ...string) *domain.FeedingReminder {
	t.Helper()
	ctx := context.Background()
	req := SetReminderRequest{IntervalDays: interval}
	if len(food) == 2 {
		req.FoodType, req.FoodSize = strPtr(food[0]), strPtr(food[1])
	}
	_, err := ts.feeding.SetReminder(ctx, animalID, req)
	require.NoError(t, err)

	r, err := ts.feeding.RecordFeeding(ctx, animalID, lastFed)
	require.NoError(t, err)
	require.NotNil(t, r)
	return r
}
