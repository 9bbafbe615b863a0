package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/DaDevFox/task-systems/feeding-core/internal/domain"
	"github.com/DaDevFox/task-systems/feeding-core/internal/events"
	"github.com/DaDevFox/task-systems/feeding-core/internal/prediction"
	"github.com/DaDevFox/task-systems/feeding-core/internal/receipt"
	"github.com/DaDevFox/task-systems/feeding-core/internal/repository"
)

// InventoryService maintains the food ledger and its derived reports.
type InventoryService struct {
	store        repository.Store
	eventBus     *events.EventBus
	logger       *logrus.Logger
	lookbackDays int
	now          func() time.Time
}

// NewInventoryService creates a new inventory service instance
func NewInventoryService(
	store repository.Store,
	eventBus *events.EventBus,
	logger *logrus.Logger,
) *InventoryService {
	return &InventoryService{
		store:        store,
		eventBus:     eventBus,
		logger:       logger,
		lookbackDays: prediction.DefaultLookbackDays,
		now:          time.Now,
	}
}

// SetClock replaces the time source, e.g. to pin the configured timezone.
func (s *InventoryService) SetClock(now func() time.Time) {
	s.now = now
}

// SetLookbackDays changes the default consumption window.
func (s *InventoryService) SetLookbackDays(days int) {
	if days > 0 {
		s.lookbackDays = days
	}
}

// AddStock records a purchase, creating the SKU on first use.
func (s *InventoryService) AddStock(ctx context.Context, item domain.LineItem, notes string) (*StockMovement, error) {
	if err := item.Validate(); err != nil {
		return nil, err
	}

	now := s.now()
	var movement *StockMovement
	err := s.store.Update(ctx, func(tx repository.Tx) error {
		var err error
		movement, err = stockTx(tx, item, now, now, notes)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to add stock for %s: %w", item.SKU(), err)
	}

	s.logMovement(movement, "stock added")
	publishMovement(ctx, s.eventBus, events.StockAdded, movement)
	return movement, nil
}

// ImportResult is the outcome of stocking a parsed receipt.
type ImportResult struct {
	Receipt   *receipt.Receipt `json:"receipt"`
	Movements []*StockMovement `json:"movements"`
}

// ImportReceipt parses receipt text and stocks every recognised line in one
// unit of work. Purchases are dated with the receipt date when it parses.
func (s *InventoryService) ImportReceipt(ctx context.Context, text string) (*ImportResult, error) {
	parsed := receipt.Parse(text)
	items := parsed.LineItems()
	if len(items) == 0 {
		return nil, domain.NewValidationError("receipt", "no food items recognised")
	}
	for _, item := range items {
		if err := item.Validate(); err != nil {
			return nil, err
		}
	}

	now := s.now()
	purchased := now
	if parsed.Date != nil {
		purchased = *parsed.Date
	}
	notes := "receipt import"
	if parsed.Supplier != "" {
		notes = "receipt import: " + parsed.Supplier
	}

	var movements []*StockMovement
	err := s.store.Update(ctx, func(tx repository.Tx) error {
		movements = movements[:0]
		for _, item := range items {
			m, err := stockTx(tx, item, purchased, now, notes)
			if err != nil {
				return err
			}
			movements = append(movements, m)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to import receipt: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"supplier": parsed.Supplier,
		"items":    len(movements),
	}).Info("receipt imported")
	for _, m := range movements {
		publishMovement(ctx, s.eventBus, events.StockAdded, m)
	}
	return &ImportResult{Receipt: parsed, Movements: movements}, nil
}

// Debit removes quantity from a SKU, flooring the balance at zero. The ledger
// records the requested amount.
func (s *InventoryService) Debit(ctx context.Context, key domain.SKUKey, quantity int, feedingEventID string) (*StockMovement, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}
	if quantity <= 0 {
		return nil, domain.NewValidationError("quantity", "must be at least 1")
	}
	return s.move(ctx, key, -quantity, domain.TransactionFeeding, feedingEventID, "", events.StockDebited)
}

// Adjust applies a manual correction with the same clamping rule as Debit.
func (s *InventoryService) Adjust(ctx context.Context, key domain.SKUKey, delta int, notes string) (*StockMovement, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}
	if delta == 0 {
		return nil, domain.NewValidationError("delta", "must not be zero")
	}
	eventType := events.StockAdded
	if delta < 0 {
		eventType = events.StockDebited
	}
	return s.move(ctx, key, delta, domain.TransactionAdjustment, "", notes, eventType)
}

func (s *InventoryService) move(ctx context.Context, key domain.SKUKey, delta int, txnType domain.TransactionType, feedingEventID, notes string, eventType events.EventType) (*StockMovement, error) {
	now := s.now()
	var movement *StockMovement
	err := s.store.Update(ctx, func(tx repository.Tx) error {
		var err error
		movement, err = applyMovement(tx, key, delta, txnType, now, now, feedingEventID, notes)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to apply %s of %d to %s: %w", txnType, delta, key, err)
	}

	s.logMovement(movement, "stock moved")
	publishMovement(ctx, s.eventBus, eventType, movement)
	return movement, nil
}

func (s *InventoryService) logMovement(m *StockMovement, msg string) {
	entry := s.logger.WithFields(logrus.Fields{
		"sku":      m.SKU.Key.String(),
		"type":     m.Transaction.Type,
		"delta":    m.Transaction.Delta,
		"quantity": m.SKU.Quantity,
	})
	if m.Clamped {
		entry.Warn(msg + " (clamped at zero)")
		return
	}
	entry.Info(msg)
}

// GetSKU returns one SKU's balance.
func (s *InventoryService) GetSKU(ctx context.Context, key domain.SKUKey) (*domain.InventorySKU, error) {
	var sku *domain.InventorySKU
	err := s.store.View(ctx, func(tx repository.Tx) error {
		var err error
		sku, err = tx.GetSKU(key)
		return err
	})
	return sku, err
}

// ListStock returns every SKU ordered by key.
func (s *InventoryService) ListStock(ctx context.Context) ([]*domain.InventorySKU, error) {
	var skus []*domain.InventorySKU
	err := s.store.View(ctx, func(tx repository.Tx) error {
		var err error
		skus, err = tx.ListSKUs()
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list stock: %w", err)
	}
	return skus, nil
}

// ListTransactions returns a SKU's ledger on or after since, oldest first.
func (s *InventoryService) ListTransactions(ctx context.Context, key domain.SKUKey, since time.Time) ([]*domain.InventoryTransaction, error) {
	var txns []*domain.InventoryTransaction
	err := s.store.View(ctx, func(tx repository.Tx) error {
		if _, err := tx.GetSKU(key); err != nil {
			return err
		}
		var err error
		txns, err = tx.ListTransactions(key, since)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions for %s: %w", key, err)
	}
	return txns, nil
}

// GetForecast projects consumption for one SKU, or for every SKU when key is
// nil. A non-positive lookback uses the configured default.
func (s *InventoryService) GetForecast(ctx context.Context, key *domain.SKUKey, lookbackDays int, today time.Time) ([]prediction.Forecast, error) {
	if lookbackDays <= 0 {
		lookbackDays = s.lookbackDays
	}

	var forecasts []prediction.Forecast
	err := s.store.View(ctx, func(tx repository.Tx) error {
		var skus []*domain.InventorySKU
		if key != nil {
			sku, err := tx.GetSKU(*key)
			if err != nil {
				return err
			}
			skus = []*domain.InventorySKU{sku}
		} else {
			var err error
			if skus, err = tx.ListSKUs(); err != nil {
				return err
			}
		}

		forecasts = make([]prediction.Forecast, 0, len(skus))
		for _, sku := range skus {
			f, err := forecastTx(tx, sku, lookbackDays, today)
			if err != nil {
				return err
			}
			forecasts = append(forecasts, f)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to forecast consumption: %w", err)
	}

	sort.SliceStable(forecasts, func(i, j int) bool {
		return forecasts[i].SKU.Normalized() < forecasts[j].SKU.Normalized()
	})
	return forecasts, nil
}

func forecastTx(tx repository.Tx, sku *domain.InventorySKU, lookbackDays int, today time.Time) (prediction.Forecast, error) {
	since := domain.AddDays(today, -lookbackDays)
	txns, err := tx.ListTransactions(sku.Key, since)
	if err != nil {
		return prediction.Forecast{}, err
	}
	values := make([]domain.InventoryTransaction, 0, len(txns))
	for _, t := range txns {
		values = append(values, *t)
	}
	return prediction.ForecastConsumption(sku.Key, sku.Quantity, values, lookbackDays, today), nil
}
