package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/DaDevFox/task-systems/feeding-core/internal/domain"
	"github.com/DaDevFox/task-systems/feeding-core/internal/prediction"
	"github.com/DaDevFox/task-systems/feeding-core/internal/repository"
)

// DefaultHorizonDays is the shopping-list window used when none is given.
const DefaultHorizonDays = 14

// Contribution is one animal's share of a shopping-list entry.
type Contribution struct {
	AnimalID           string `json:"animal_id"`
	AnimalName         string `json:"animal_name"`
	Feedings           int    `json:"feedings"`
	QuantityPerFeeding int    `json:"quantity_per_feeding"`
	Needed             int    `json:"needed"`
}

// ShoppingListEntry is the projected need for one SKU.
type ShoppingListEntry struct {
	SKU               domain.SKUKey          `json:"sku"`
	Needed            int                    `json:"needed"`
	InStock           int                    `json:"in_stock"`
	Shortage          int                    `json:"shortage"`
	ForecastStatus    prediction.StockStatus `json:"forecast_status"`
	SuggestedOrderQty int                    `json:"suggested_order_qty"`
	UnitCost          *decimal.Decimal       `json:"unit_cost,omitempty"`
	EstimatedCost     *decimal.Decimal       `json:"estimated_cost,omitempty"`
	Contributors      []Contribution         `json:"contributors"`
}

// ShoppingList ranks SKUs by how far stock falls short of the horizon's needs.
type ShoppingList struct {
	HorizonDays    int                 `json:"horizon_days"`
	From           time.Time           `json:"from"`
	To             time.Time           `json:"to"`
	Entries        []ShoppingListEntry `json:"entries"`
	EstimatedTotal *decimal.Decimal    `json:"estimated_total,omitempty"`
}

// FeedingsInWindow counts feedings from max(today, next) stepping by interval
// through end inclusive. A reminder without a next date is due today.
func FeedingsInWindow(next *time.Time, intervalDays int, today, end time.Time) int {
	if intervalDays < 1 {
		return 0
	}
	today, end = domain.DateOf(today), domain.DateOf(end)
	start := today
	if next != nil && domain.DateOf(*next).After(today) {
		start = domain.DateOf(*next)
	}

	count := 0
	for d := start; !d.After(end); d = domain.AddDays(d, intervalDays) {
		count++
	}
	return count
}

// GetShoppingList projects food needs over horizonDays from today and nets
// them against current stock.
func (s *InventoryService) GetShoppingList(ctx context.Context, horizonDays int, today time.Time) (*ShoppingList, error) {
	if horizonDays < 0 {
		return nil, domain.NewValidationError("horizon_days", "cannot be negative")
	}

	today = domain.DateOf(today)
	list := &ShoppingList{
		HorizonDays: horizonDays,
		From:        today,
		To:          domain.AddDays(today, horizonDays),
		Entries:     []ShoppingListEntry{},
	}

	err := s.store.View(ctx, func(tx repository.Tx) error {
		reminders, err := tx.ListReminders(true)
		if err != nil {
			return err
		}

		byKey := make(map[string]*ShoppingListEntry)
		var order []string
		for _, r := range reminders {
			key, ok := r.FoodSKU()
			if !ok {
				continue
			}
			feedings := FeedingsInWindow(r.NextFeedingDate, r.IntervalDays, today, list.To)
			if feedings == 0 {
				continue
			}

			qty := r.QuantityPerFeeding
			if qty < 1 {
				qty = domain.DefaultQuantityPerFeeding
			}

			name := r.AnimalID
			animal, err := tx.GetAnimal(r.AnimalID)
			switch {
			case err == nil:
				name = animal.DisplayName()
			case !domain.IsNotFound(err):
				return err
			}

			norm := key.Normalized()
			entry, seen := byKey[norm]
			if !seen {
				entry = &ShoppingListEntry{SKU: key}
				byKey[norm] = entry
				order = append(order, norm)
			}
			entry.Needed += feedings * qty
			entry.Contributors = append(entry.Contributors, Contribution{
				AnimalID:           r.AnimalID,
				AnimalName:         name,
				Feedings:           feedings,
				QuantityPerFeeding: qty,
				Needed:             feedings * qty,
			})
		}

		for _, norm := range order {
			entry := byKey[norm]
			entry.ForecastStatus = prediction.StockUnknown

			sku, err := tx.GetSKU(entry.SKU)
			switch {
			case err == nil:
				entry.SKU = sku.Key
				entry.InStock = sku.Quantity
				f, err := forecastTx(tx, sku, s.lookbackDays, today)
				if err != nil {
					return err
				}
				entry.ForecastStatus = f.Status
				entry.SuggestedOrderQty = f.SuggestedOrderQty
				if sku.UnitCost != nil {
					cost := *sku.UnitCost
					entry.UnitCost = &cost
				}
			case !domain.IsNotFound(err):
				return err
			}

			if entry.Needed > entry.InStock {
				entry.Shortage = entry.Needed - entry.InStock
			}
			if entry.SuggestedOrderQty < entry.Shortage {
				entry.SuggestedOrderQty = entry.Shortage
			}
			if entry.UnitCost != nil {
				est := entry.UnitCost.Mul(decimal.NewFromInt(int64(entry.Shortage)))
				entry.EstimatedCost = &est
			}

			sort.Slice(entry.Contributors, func(i, j int) bool {
				return entry.Contributors[i].AnimalID < entry.Contributors[j].AnimalID
			})
			list.Entries = append(list.Entries, *entry)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build shopping list: %w", err)
	}

	sort.SliceStable(list.Entries, func(i, j int) bool {
		a, b := list.Entries[i], list.Entries[j]
		if a.Shortage != b.Shortage {
			return a.Shortage > b.Shortage
		}
		return a.SKU.Normalized() < b.SKU.Normalized()
	})

	var total *decimal.Decimal
	for _, e := range list.Entries {
		if e.EstimatedCost == nil {
			continue
		}
		if total == nil {
			zero := decimal.Zero
			total = &zero
		}
		sum := total.Add(*e.EstimatedCost)
		total = &sum
	}
	list.EstimatedTotal = total
	return list, nil
}
