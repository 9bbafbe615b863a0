package domain

import (
	"testing"
)

func TestInventorySKUApplyDelta(t *testing.T) {
	tests := []struct {
		name          string
		start         int
		delta         int
		expected      int
		expectClamped bool
	}{
		{name: "purchase increments", start: 5, delta: 10, expected: 15},
		{name: "debit within balance", start: 20, delta: -5, expected: 15},
		{name: "debit to exactly zero", start: 5, delta: -5, expected: 0},
		{name: "debit past zero clamps", start: 20, delta: -25, expected: 0, expectClamped: true},
		{name: "debit on empty clamps", start: 0, delta: -1, expected: 0, expectClamped: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sku := &InventorySKU{Quantity: tt.start}
			clamped := sku.ApplyDelta(tt.delta)
			if sku.Quantity != tt.expected {
				t.Errorf("ApplyDelta() quantity = %d, expected %d", sku.Quantity, tt.expected)
			}
			if clamped != tt.expectClamped {
				t.Errorf("ApplyDelta() clamped = %v, expected %v", clamped, tt.expectClamped)
			}
		})
	}
}

func TestInventorySKUIsEmpty(t *testing.T) {
	if !(&InventorySKU{Quantity: 0}).IsEmpty() {
		t.Error("zero quantity should be empty")
	}
	if (&InventorySKU{Quantity: 3}).IsEmpty() {
		t.Error("positive quantity should not be empty")
	}
}

func TestSKUKeyNormalized(t *testing.T) {
	a := NewSKUKey(" Rat ", "Large")
	b := NewSKUKey("rat", "LARGE")

	if a.Normalized() != b.Normalized() {
		t.Errorf("expected %q and %q to normalise equally", a.Normalized(), b.Normalized())
	}
	if a.String() != "Rat/Large" {
		t.Errorf("String() = %q, expected Rat/Large", a.String())
	}
}

func TestSKUKeyNormalizedKeepsHalvesApart(t *testing.T) {
	tests := []struct {
		name string
		a, b SKUKey
	}{
		{name: "separator in type vs size", a: NewSKUKey("Rat|Large", "Frozen"), b: NewSKUKey("Rat", "Large|Frozen")},
		{name: "escaped separator spelled out", a: NewSKUKey("Rat%7CLarge", "Frozen"), b: NewSKUKey("Rat|Large", "Frozen")},
		{name: "empty halves", a: NewSKUKey("|", ""), b: NewSKUKey("", "|")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.a.Normalized() == tt.b.Normalized() {
				t.Errorf("%s and %s both normalise to %q", tt.a, tt.b, tt.a.Normalized())
			}
		})
	}

	if got := NewSKUKey("Rat", "Large").Normalized(); got != "rat|large" {
		t.Errorf("Normalized() = %q, expected rat|large", got)
	}
}

func TestSKUKeyValidate(t *testing.T) {
	if err := NewSKUKey("Rat", "").Validate(); !IsValidation(err) {
		t.Errorf("expected validation error for missing size, got %v", err)
	}
	if err := NewSKUKey("", "Large").Validate(); !IsValidation(err) {
		t.Errorf("expected validation error for missing type, got %v", err)
	}
	if err := NewSKUKey("Rat", "Large").Validate(); err != nil {
		t.Errorf("expected valid key, got %v", err)
	}
}

func TestTransactionConsumed(t *testing.T) {
	debit := &InventoryTransaction{Delta: -25, Type: TransactionFeeding}
	if debit.Consumed() != 25 {
		t.Errorf("Consumed() = %d, expected 25", debit.Consumed())
	}
	purchase := &InventoryTransaction{Delta: 10, Type: TransactionPurchase}
	if purchase.Consumed() != 0 {
		t.Errorf("Consumed() = %d, expected 0", purchase.Consumed())
	}
}

func TestLineItemValidate(t *testing.T) {
	if err := (LineItem{FoodType: "Mouse", FoodSize: "Adult", Quantity: 0}).Validate(); !IsValidation(err) {
		t.Errorf("expected validation error for zero quantity, got %v", err)
	}
	if err := (LineItem{FoodType: "Mouse", FoodSize: "Adult", Quantity: 4}).Validate(); err != nil {
		t.Errorf("expected valid line item, got %v", err)
	}
}
