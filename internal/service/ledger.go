package service

import (
	"time"

	"github.com/google/uuid"

	"github.com/DaDevFox/task-systems/feeding-core/internal/domain"
	"github.com/DaDevFox/task-systems/feeding-core/internal/events"
	"github.com/DaDevFox/task-systems/feeding-core/internal/repository"
)

// StockMovement is the committed outcome of one ledger operation.
type StockMovement struct {
	SKU              *domain.InventorySKU         `json:"sku"`
	Transaction      *domain.InventoryTransaction `json:"transaction"`
	PreviousQuantity int                          `json:"previous_quantity"`
	Clamped          bool                         `json:"clamped"`
}

func (m *StockMovement) payload() events.StockChangedPayload {
	return events.StockChangedPayload{
		SKU:              m.SKU.Key,
		TransactionType:  m.Transaction.Type,
		Requested:        m.Transaction.Delta,
		PreviousQuantity: m.PreviousQuantity,
		NewQuantity:      m.SKU.Quantity,
		Clamped:          m.Clamped,
		FeedingEventID:   m.Transaction.FeedingEventID,
	}
}

// depleted reports whether this movement is the one that emptied the SKU.
func (m *StockMovement) depleted() bool {
	return m.PreviousQuantity > 0 && m.SKU.Quantity == 0
}

// applyMovement is the read-then-clamp-then-write step shared by every ledger
// operation. The SKU must already exist.
func applyMovement(tx repository.Tx, key domain.SKUKey, delta int, txnType domain.TransactionType, date, now time.Time, feedingEventID, notes string) (*StockMovement, error) {
	sku, err := tx.GetSKU(key)
	if err != nil {
		return nil, err
	}

	previous := sku.Quantity
	clamped := sku.ApplyDelta(delta)
	sku.UpdatedAt = now
	if err := tx.PutSKU(sku); err != nil {
		return nil, err
	}

	txn := &domain.InventoryTransaction{
		SKU:            sku.Key,
		Delta:          delta,
		Type:           txnType,
		Date:           domain.DateOf(date),
		FeedingEventID: feedingEventID,
		Notes:          notes,
		CreatedAt:      now,
	}
	if err := tx.AppendTransaction(txn); err != nil {
		return nil, err
	}

	return &StockMovement{SKU: sku, Transaction: txn, PreviousQuantity: previous, Clamped: clamped}, nil
}

// stockTx adds a purchased line item, creating the SKU on first use.
func stockTx(tx repository.Tx, item domain.LineItem, date, now time.Time, notes string) (*StockMovement, error) {
	key := item.SKU()
	sku, err := tx.GetSKU(key)
	switch {
	case domain.IsNotFound(err):
		sku = &domain.InventorySKU{Key: key, CreatedAt: now}
	case err != nil:
		return nil, err
	}

	previous := sku.Quantity
	sku.ApplyDelta(item.Quantity)
	if item.CostPerUnit != nil {
		cost := *item.CostPerUnit
		sku.UnitCost = &cost
	}
	if item.Supplier != "" {
		sku.Supplier = item.Supplier
	}
	if item.ExpiryDate != nil {
		expiry := domain.DateOf(*item.ExpiryDate)
		sku.ExpiryDate = &expiry
	}
	sku.UpdatedAt = now
	if err := tx.PutSKU(sku); err != nil {
		return nil, err
	}

	txn := &domain.InventoryTransaction{
		SKU:       sku.Key,
		Delta:     item.Quantity,
		Type:      domain.TransactionPurchase,
		Date:      domain.DateOf(date),
		Notes:     notes,
		CreatedAt: now,
	}
	if err := tx.AppendTransaction(txn); err != nil {
		return nil, err
	}

	return &StockMovement{SKU: sku, Transaction: txn, PreviousQuantity: previous}, nil
}

func newID() string {
	return uuid.New().String()
}
