package prediction

import (
	"math"
	"time"

	"github.com/DaDevFox/task-systems/feeding-core/internal/domain"
)

const (
	// DefaultLookbackDays is the consumption window used when none is given.
	DefaultLookbackDays = 30

	criticalDays      = 7
	lowDays           = 14
	reorderCoverDays  = 14
	orderCoverDays    = 30
	minimumOrderUnits = 10
)

type StockStatus string

const (
	StockCritical StockStatus = "critical"
	StockLow      StockStatus = "low"
	StockGood     StockStatus = "good"
	StockUnknown  StockStatus = "unknown"
)

// Forecast is the derived consumption outlook for one SKU.
type Forecast struct {
	SKU               domain.SKUKey `json:"sku"`
	CurrentQuantity   int           `json:"current_quantity"`
	LookbackDays      int           `json:"lookback_days"`
	TotalConsumed     int           `json:"total_consumed"`
	DailyRate         float64       `json:"daily_rate"`
	DaysRemaining     *float64      `json:"days_remaining,omitempty"`
	DepletionDate     *time.Time    `json:"depletion_date,omitempty"`
	Status            StockStatus   `json:"status"`
	NeedsReorder      bool          `json:"needs_reorder"`
	SuggestedOrderQty int           `json:"suggested_order_qty"`
}

// ForecastConsumption derives a daily rate from feeding transactions dated
// within lookbackDays of today and projects when stock runs out.
func ForecastConsumption(sku domain.SKUKey, currentQty int, txns []domain.InventoryTransaction, lookbackDays int, today time.Time) Forecast {
	if lookbackDays <= 0 {
		lookbackDays = DefaultLookbackDays
	}
	today = domain.DateOf(today)
	windowStart := domain.AddDays(today, -lookbackDays)

	f := Forecast{
		SKU:             sku,
		CurrentQuantity: currentQty,
		LookbackDays:    lookbackDays,
		Status:          StockUnknown,
	}

	var first, last time.Time
	points := 0
	for _, txn := range txns {
		if txn.Type != domain.TransactionFeeding {
			continue
		}
		d := domain.DateOf(txn.Date)
		if d.Before(windowStart) || d.After(today) {
			continue
		}
		f.TotalConsumed += txn.Consumed()
		if points == 0 || d.Before(first) {
			first = d
		}
		if points == 0 || d.After(last) {
			last = d
		}
		points++
	}

	if points > 0 {
		span := domain.DaysBetween(first, last) + 1
		f.DailyRate = float64(f.TotalConsumed) / float64(span)
	}

	f.NeedsReorder = float64(currentQty) <= f.DailyRate*reorderCoverDays
	f.SuggestedOrderQty = int(math.RoundToEven(f.DailyRate * orderCoverDays))
	if f.SuggestedOrderQty < minimumOrderUnits {
		f.SuggestedOrderQty = minimumOrderUnits
	}

	if f.DailyRate <= 0 {
		return f
	}

	remaining := float64(currentQty) / f.DailyRate
	depletion := domain.AddDays(today, int(remaining))
	f.DaysRemaining = &remaining
	f.DepletionDate = &depletion

	switch {
	case remaining <= criticalDays:
		f.Status = StockCritical
	case remaining <= lowDays:
		f.Status = StockLow
	default:
		f.Status = StockGood
	}
	return f
}
