package domain

import (
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// SKUKey identifies a consumable food by type and size, e.g. Rat/Large.
type SKUKey struct {
	FoodType string `json:"food_type"`
	FoodSize string `json:"food_size"`
}

// NewSKUKey trims surrounding whitespace from both parts.
func NewSKUKey(foodType, foodSize string) SKUKey {
	return SKUKey{FoodType: strings.TrimSpace(foodType), FoodSize: strings.TrimSpace(foodSize)}
}

// Normalized is the case-insensitive identity used for storage and grouping.
// Each half is escaped so a separator inside a name cannot merge two SKUs.
func (k SKUKey) Normalized() string {
	return url.QueryEscape(strings.ToLower(k.FoodType)) + "|" + url.QueryEscape(strings.ToLower(k.FoodSize))
}

func (k SKUKey) String() string {
	return k.FoodType + "/" + k.FoodSize
}

// Validate requires both halves of the key.
func (k SKUKey) Validate() error {
	if strings.TrimSpace(k.FoodType) == "" {
		return NewValidationError("food_type", "is required")
	}
	if strings.TrimSpace(k.FoodSize) == "" {
		return NewValidationError("food_size", "is required")
	}
	return nil
}

// InventorySKU holds the on-hand balance for one food SKU. Quantity is never
// negative and only changes through ledger transactions.
type InventorySKU struct {
	Key        SKUKey           `json:"key"`
	Quantity   int              `json:"quantity"`
	UnitCost   *decimal.Decimal `json:"unit_cost,omitempty"`
	Supplier   string           `json:"supplier,omitempty"`
	ExpiryDate *time.Time       `json:"expiry_date,omitempty"`
	CreatedAt  time.Time        `json:"created_at"`
	UpdatedAt  time.Time        `json:"updated_at"`
}

// ApplyDelta adds delta to the balance, flooring at zero. It reports whether
// the floor was hit.
func (s *InventorySKU) ApplyDelta(delta int) (clamped bool) {
	next := s.Quantity + delta
	if next < 0 {
		next = 0
		clamped = true
	}
	s.Quantity = next
	return clamped
}

// IsEmpty checks if the SKU has no stock
func (s *InventorySKU) IsEmpty() bool {
	return s.Quantity <= 0
}

// TransactionType classifies ledger entries.
type TransactionType string

const (
	TransactionPurchase   TransactionType = "purchase"
	TransactionFeeding    TransactionType = "feeding"
	TransactionAdjustment TransactionType = "adjustment"
)

// InventoryTransaction is an append-only ledger entry. Delta is the requested
// change, recorded verbatim even when the balance was clamped at zero.
type InventoryTransaction struct {
	ID             string          `json:"id"`
	SKU            SKUKey          `json:"sku"`
	Delta          int             `json:"delta"`
	Type           TransactionType `json:"type"`
	Date           time.Time       `json:"date"`
	FeedingEventID string          `json:"feeding_event_id,omitempty"`
	Notes          string          `json:"notes,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

// Consumed is the quantity a negative delta removed.
func (t *InventoryTransaction) Consumed() int {
	if t.Delta < 0 {
		return -t.Delta
	}
	return 0
}

// LineItem is one parsed purchase line, from a receipt or manual entry.
type LineItem struct {
	FoodType    string           `json:"food_type"`
	FoodSize    string           `json:"food_size"`
	Quantity    int              `json:"quantity"`
	CostPerUnit *decimal.Decimal `json:"cost_per_unit,omitempty"`
	Supplier    string           `json:"supplier,omitempty"`
	ExpiryDate  *time.Time       `json:"expiry_date,omitempty"`
}

// SKU returns the key the line item stocks.
func (l LineItem) SKU() SKUKey {
	return NewSKUKey(l.FoodType, l.FoodSize)
}

// Validate rejects unusable purchase lines.
func (l LineItem) Validate() error {
	if err := l.SKU().Validate(); err != nil {
		return err
	}
	if l.Quantity < 1 {
		return NewValidationError("quantity", "must be at least 1")
	}
	if l.CostPerUnit != nil && l.CostPerUnit.IsNegative() {
		return NewValidationError("cost_per_unit", "cannot be negative")
	}
	return nil
}
