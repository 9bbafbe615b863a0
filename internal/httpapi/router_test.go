package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DaDevFox/task-systems/feeding-core/internal/domain"
	"github.com/DaDevFox/task-systems/feeding-core/internal/events"
	"github.com/DaDevFox/task-systems/feeding-core/internal/prediction"
	"github.com/DaDevFox/task-systems/feeding-core/internal/repository"
	"github.com/DaDevFox/task-systems/feeding-core/internal/scheduler"
	"github.com/DaDevFox/task-systems/feeding-core/internal/service"
	"github.com/DaDevFox/task-systems/feeding-core/internal/testsupport"
)

var testNow = time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC)

type stubChecker struct {
	calls int
	err   error
}

func (c *stubChecker) RunScheduledCheck(_ context.Context, now time.Time) (*scheduler.CheckResult, error) {
	c.calls++
	return &scheduler.CheckResult{RunAt: now, Sent: 2}, c.err
}

func newTestServer(t *testing.T, checker Checker) *httptest.Server {
	t.Helper()
	store := testsupport.NewStore(t, repository.DatabaseTypeMemory)
	logger := testsupport.Logger()
	bus := events.NewEventBus("httpapi-test", logger)
	t.Cleanup(bus.Wait)

	clock := func() time.Time { return testNow }
	feeding := service.NewFeedingService(store, bus, prediction.DefaultTable(), logger)
	feeding.SetClock(clock)
	inventory := service.NewInventoryService(store, bus, logger)
	inventory.SetClock(clock)

	opts := Options{Feeding: feeding, Inventory: inventory, Logger: logger, Now: clock}
	if checker != nil {
		opts.Checker = checker
	}
	srv := httptest.NewServer(NewRouter(opts))
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, srv *httptest.Server, method, path, body string) (int, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body == "" {
		reader = bytes.NewReader(nil)
	} else {
		reader = bytes.NewReader([]byte(body))
	}
	req, err := http.NewRequest(method, srv.URL+path, reader)
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, buf.Bytes()
}

func decodeBody[T any](t *testing.T, data []byte) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(data, &v), string(data))
	return v
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, nil)
	status, body := do(t, srv, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", string(body))
}

func TestAnimalReminderLifecycle(t *testing.T) {
	srv := newTestServer(t, nil)

	status, body := do(t, srv, http.MethodPut, "/animals/monty", `{"name":"Monty","species":"Ball Python","date_of_birth":"2020-05-01"}`)
	require.Equal(t, http.StatusOK, status, string(body))

	status, body = do(t, srv, http.MethodPut, "/animals/monty/reminder", `{"interval_days":7,"food_type":"Rat","food_size":"Large"}`)
	require.Equal(t, http.StatusOK, status, string(body))
	reminder := decodeBody[domain.FeedingReminder](t, body)
	assert.Nil(t, reminder.NextFeedingDate)

	status, body = do(t, srv, http.MethodPost, "/animals/monty/reminder/fed", `{"date":"2024-01-05"}`)
	require.Equal(t, http.StatusOK, status, string(body))
	fed := decodeBody[reminderResponse](t, body)
	require.NotNil(t, fed.Reminder)
	assert.Equal(t, "2024-01-12", domain.FormatDate(fed.Reminder.NextFeedingDate))

	status, body = do(t, srv, http.MethodPatch, "/animals/monty/reminder", `{"interval_days":10,"food_size":null}`)
	require.Equal(t, http.StatusOK, status, string(body))
	reminder = decodeBody[domain.FeedingReminder](t, body)
	assert.Equal(t, "2024-01-15", domain.FormatDate(reminder.NextFeedingDate))
	assert.Nil(t, reminder.FoodSize)

	status, body = do(t, srv, http.MethodGet, "/animals/monty/prediction", "")
	require.Equal(t, http.StatusOK, status, string(body))
	p := decodeBody[prediction.Prediction](t, body)
	assert.Equal(t, prediction.AgeAdult, p.AgeCategory)

	status, _ = do(t, srv, http.MethodDelete, "/animals/monty/reminder", "")
	assert.Equal(t, http.StatusNoContent, status)

	status, body = do(t, srv, http.MethodGet, "/animals/monty/reminder", "")
	require.Equal(t, http.StatusOK, status)
	assert.False(t, decodeBody[domain.FeedingReminder](t, body).Active)
}

func TestErrorMapping(t *testing.T) {
	srv := newTestServer(t, nil)
	do(t, srv, http.MethodPut, "/animals/monty", `{"name":"Monty","species":"Ball Python"}`)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		status int
	}{
		{"interval below minimum", http.MethodPut, "/animals/monty/reminder", `{"interval_days":0}`, http.StatusBadRequest},
		{"unknown field", http.MethodPut, "/animals/monty/reminder", `{"interval_days":7,"colour":"red"}`, http.StatusBadRequest},
		{"malformed json", http.MethodPost, "/feedings", `{`, http.StatusBadRequest},
		{"unknown animal", http.MethodGet, "/animals/ghost/prediction", "", http.StatusNotFound},
		{"missing reminder", http.MethodGet, "/animals/monty/reminder", "", http.StatusNotFound},
		{"bad days_ahead", http.MethodGet, "/reminders/due?days_ahead=soon", "", http.StatusBadRequest},
		{"negative days_ahead", http.MethodGet, "/reminders/due?days_ahead=-1", "", http.StatusBadRequest},
		{"debit unknown sku", http.MethodPost, "/inventory/Rat/Large/debit", `{"quantity":1}`, http.StatusNotFound},
		{"bad since", http.MethodGet, "/inventory/Rat/Large/transactions?since=yesterday", "", http.StatusBadRequest},
		{"half a sku", http.MethodGet, "/inventory/forecast?food_type=Rat", "", http.StatusBadRequest},
		{"scheduler disabled", http.MethodPost, "/reminders/check", "", http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := do(t, srv, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, status, string(body))
			assert.NotEmpty(t, decodeBody[errorResponse](t, body).Error)
		})
	}
}

func TestLogFeedingDebitsStock(t *testing.T) {
	srv := newTestServer(t, nil)
	do(t, srv, http.MethodPut, "/animals/monty", `{"name":"Monty","species":"Ball Python"}`)
	do(t, srv, http.MethodPut, "/animals/monty/reminder", `{"interval_days":7,"food_type":"Rat","food_size":"Large"}`)

	status, body := do(t, srv, http.MethodPost, "/inventory/stock", `{"food_type":"Rat","food_size":"Large","quantity":5,"cost_per_unit":"3.50"}`)
	require.Equal(t, http.StatusCreated, status, string(body))

	status, body = do(t, srv, http.MethodPost, "/feedings", `{"animal_id":"monty","feeding_date":"2024-01-09","food_type":"Rat","food_size":"Large","quantity":2,"from_inventory":true}`)
	require.Equal(t, http.StatusCreated, status, string(body))
	result := decodeBody[service.LogFeedingResult](t, body)
	require.NotNil(t, result.Debit)
	assert.Equal(t, 3, result.Debit.SKU.Quantity)
	assert.Equal(t, "2024-01-16", domain.FormatDate(result.Reminder.NextFeedingDate))

	status, body = do(t, srv, http.MethodGet, "/inventory/rat/large/transactions", "")
	require.Equal(t, http.StatusOK, status, string(body))
	txns := decodeBody[[]domain.InventoryTransaction](t, body)
	require.Len(t, txns, 2)
	// the debit carries the feeding date, a day before the purchase
	assert.Equal(t, domain.TransactionFeeding, txns[0].Type)
	assert.Equal(t, -2, txns[0].Delta)
	assert.Equal(t, domain.TransactionPurchase, txns[1].Type)

	status, body = do(t, srv, http.MethodGet, "/inventory/Rat/Large", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 3, decodeBody[domain.InventorySKU](t, body).Quantity)
}

func TestDueForecastAndShoppingList(t *testing.T) {
	srv := newTestServer(t, nil)
	do(t, srv, http.MethodPut, "/animals/monty", `{"name":"Monty","species":"Ball Python"}`)
	do(t, srv, http.MethodPut, "/animals/monty/reminder", `{"interval_days":7,"food_type":"Rat","food_size":"Large"}`)
	do(t, srv, http.MethodPost, "/animals/monty/reminder/fed", `{"date":"2024-01-01"}`)
	do(t, srv, http.MethodPost, "/inventory/stock", `{"food_type":"Rat","food_size":"Large","quantity":1}`)

	status, body := do(t, srv, http.MethodGet, "/reminders/due", "")
	require.Equal(t, http.StatusOK, status, string(body))
	due := decodeBody[service.DueList](t, body)
	require.Len(t, due.Overdue, 1)
	assert.Equal(t, -2, due.Overdue[0].DaysUntil)

	status, body = do(t, srv, http.MethodGet, "/inventory/forecast?food_type=Rat&food_size=Large", "")
	require.Equal(t, http.StatusOK, status, string(body))
	forecasts := decodeBody[[]prediction.Forecast](t, body)
	require.Len(t, forecasts, 1)
	assert.Equal(t, prediction.StockUnknown, forecasts[0].Status)

	status, body = do(t, srv, http.MethodGet, "/inventory/shopping-list?horizon_days=14", "")
	require.Equal(t, http.StatusOK, status, string(body))
	list := decodeBody[service.ShoppingList](t, body)
	require.Len(t, list.Entries, 1)
	// due today, then the 17th and 24th
	assert.Equal(t, 3, list.Entries[0].Needed)
	assert.Equal(t, 2, list.Entries[0].Shortage)
}

func TestImportReceiptPlainText(t *testing.T) {
	srv := newTestServer(t, nil)

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/inventory/receipts", strings.NewReader("Reptile Depot\nLarge Rat x4 $14.00\n"))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "text/plain")
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	status, body := do(t, srv, http.MethodGet, "/inventory", "")
	require.Equal(t, http.StatusOK, status)
	skus := decodeBody[[]domain.InventorySKU](t, body)
	require.Len(t, skus, 1)
	assert.Equal(t, 4, skus[0].Quantity)
	assert.Equal(t, "Reptile Depot", skus[0].Supplier)

	status, _ = do(t, srv, http.MethodPost, "/inventory/receipts", `{"text":"nothing edible here"}`)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestRunCheck(t *testing.T) {
	checker := &stubChecker{}
	srv := newTestServer(t, checker)

	status, body := do(t, srv, http.MethodPost, "/reminders/check", "")
	require.Equal(t, http.StatusOK, status, string(body))
	assert.Equal(t, 1, checker.calls)
	assert.Equal(t, 2, decodeBody[scheduler.CheckResult](t, body).Sent)

	checker.err = errors.New("store offline")
	status, body = do(t, srv, http.MethodPost, "/reminders/check", "")
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "internal error", decodeBody[errorResponse](t, body).Error)
}
