package domain

import (
	"strings"
	"time"
)

// Animal is the slice of the external animal record the engine reads.
type Animal struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Species     string     `json:"species"`
	DateOfBirth *time.Time `json:"date_of_birth,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// DisplayName falls back to the ID for unnamed animals.
func (a *Animal) DisplayName() string {
	if strings.TrimSpace(a.Name) == "" {
		return a.ID
	}
	return a.Name
}

// Validate checks the fields the engine depends on.
func (a *Animal) Validate() error {
	if strings.TrimSpace(a.ID) == "" {
		return NewValidationError("animal_id", "is required")
	}
	if strings.TrimSpace(a.Species) == "" {
		return NewValidationError("species", "is required")
	}
	return nil
}

// FeedingEvent is an immutable feeding log entry.
type FeedingEvent struct {
	ID          string    `json:"id"`
	AnimalID    string    `json:"animal_id"`
	FeedingDate time.Time `json:"feeding_date"`
	FoodType    string    `json:"food_type"`
	FoodSize    string    `json:"food_size,omitempty"`
	Quantity    int       `json:"quantity"`
	Ate         bool      `json:"ate"`
	SKU         *SKUKey   `json:"sku,omitempty"`
	Notes       string    `json:"notes,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Validate rejects events missing required feeding fields.
func (e *FeedingEvent) Validate() error {
	switch {
	case strings.TrimSpace(e.AnimalID) == "":
		return NewValidationError("animal_id", "is required")
	case strings.TrimSpace(e.FoodType) == "":
		return NewValidationError("food_type", "is required")
	case e.Quantity < 1:
		return NewValidationError("quantity", "must be at least 1")
	}
	return nil
}

// FeedingReminder is the operator-set feeding cadence for one animal.
// NextFeedingDate is derived: it always equals LastFedDate + IntervalDays when
// both are known and is never edited on its own.
type FeedingReminder struct {
	ID                 string     `json:"id"`
	AnimalID           string     `json:"animal_id"`
	IntervalDays       int        `json:"interval_days"`
	FoodType           *string    `json:"food_type,omitempty"`
	FoodSize           *string    `json:"food_size,omitempty"`
	QuantityPerFeeding int        `json:"quantity_per_feeding"`
	LastFedDate        *time.Time `json:"last_fed_date,omitempty"`
	NextFeedingDate    *time.Time `json:"next_feeding_date,omitempty"`
	Active             bool       `json:"active"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// DefaultQuantityPerFeeding applies when no quantity preference is set.
const DefaultQuantityPerFeeding = 1

// ValidateInterval enforces the one-day minimum cadence.
func ValidateInterval(days int) error {
	if days < 1 {
		return NewValidationError("interval_days", "must be at least 1 day")
	}
	return nil
}

// Validate checks reminder invariants.
func (r *FeedingReminder) Validate() error {
	if strings.TrimSpace(r.AnimalID) == "" {
		return NewValidationError("animal_id", "is required")
	}
	if err := ValidateInterval(r.IntervalDays); err != nil {
		return err
	}
	if r.QuantityPerFeeding < 1 {
		return NewValidationError("quantity_per_feeding", "must be at least 1")
	}
	return nil
}

// MarkFed records a feeding on date using the reminder's current interval.
func (r *FeedingReminder) MarkFed(date time.Time) {
	d := DateOf(date)
	r.LastFedDate = &d
	r.recomputeNext()
}

// SetInterval changes the cadence and keeps the next date consistent.
func (r *FeedingReminder) SetInterval(days int) error {
	if err := ValidateInterval(days); err != nil {
		return err
	}
	r.IntervalDays = days
	r.recomputeNext()
	return nil
}

func (r *FeedingReminder) recomputeNext() {
	if r.LastFedDate == nil {
		r.NextFeedingDate = nil
		return
	}
	next := AddDays(*r.LastFedDate, r.IntervalDays)
	r.NextFeedingDate = &next
}

// FoodSKU returns the SKU the reminder feeds from, if both food type and size
// are set.
func (r *FeedingReminder) FoodSKU() (SKUKey, bool) {
	if r.FoodType == nil || r.FoodSize == nil {
		return SKUKey{}, false
	}
	if strings.TrimSpace(*r.FoodType) == "" || strings.TrimSpace(*r.FoodSize) == "" {
		return SKUKey{}, false
	}
	return NewSKUKey(*r.FoodType, *r.FoodSize), true
}

// FoodDescription renders the food preference for messages, e.g. "Large Rat".
func (r *FeedingReminder) FoodDescription() string {
	foodType := "food"
	if r.FoodType != nil && strings.TrimSpace(*r.FoodType) != "" {
		foodType = strings.TrimSpace(*r.FoodType)
	}
	if r.FoodSize != nil && strings.TrimSpace(*r.FoodSize) != "" {
		return strings.TrimSpace(*r.FoodSize) + " " + foodType
	}
	return foodType
}
