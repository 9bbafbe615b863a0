package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := ParseDate(s)
	require.NoError(t, err)
	return d
}

func strPtr(s string) *string { return &s }

func TestReminderMarkFedKeepsNextDateInvariant(t *testing.T) {
	r := &FeedingReminder{AnimalID: "a1", IntervalDays: 7, QuantityPerFeeding: 1, Active: true}
	assert.Nil(t, r.NextFeedingDate, "a new reminder has no next date until a feeding is recorded")

	for _, fed := range []string{"2024-01-01", "2024-01-09", "2024-02-28"} {
		r.MarkFed(date(t, fed))
		require.NotNil(t, r.LastFedDate)
		require.NotNil(t, r.NextFeedingDate)
		assert.Equal(t, AddDays(*r.LastFedDate, r.IntervalDays), *r.NextFeedingDate)
	}

	assert.Equal(t, "2024-03-06", r.NextFeedingDate.Format(DateLayout))
}

func TestReminderMarkFedDropsTimeOfDay(t *testing.T) {
	r := &FeedingReminder{AnimalID: "a1", IntervalDays: 14}
	r.MarkFed(time.Date(2024, 1, 1, 21, 30, 0, 0, time.UTC))

	assert.Equal(t, "2024-01-01", r.LastFedDate.Format(DateLayout))
	assert.Equal(t, "2024-01-15", r.NextFeedingDate.Format(DateLayout))
	assert.Zero(t, r.LastFedDate.Hour())
}

func TestReminderSetInterval(t *testing.T) {
	r := &FeedingReminder{AnimalID: "a1", IntervalDays: 7}
	r.MarkFed(date(t, "2024-01-01"))

	require.NoError(t, r.SetInterval(10))
	assert.Equal(t, "2024-01-11", r.NextFeedingDate.Format(DateLayout))

	err := r.SetInterval(0)
	require.Error(t, err)
	assert.True(t, IsValidation(err))
	assert.Equal(t, 10, r.IntervalDays, "rejected interval must not mutate the reminder")
}

func TestReminderValidate(t *testing.T) {
	tests := []struct {
		name    string
		r       FeedingReminder
		wantErr bool
	}{
		{name: "valid", r: FeedingReminder{AnimalID: "a", IntervalDays: 1, QuantityPerFeeding: 1}},
		{name: "missing animal", r: FeedingReminder{IntervalDays: 7, QuantityPerFeeding: 1}, wantErr: true},
		{name: "zero interval", r: FeedingReminder{AnimalID: "a", IntervalDays: 0, QuantityPerFeeding: 1}, wantErr: true},
		{name: "negative interval", r: FeedingReminder{AnimalID: "a", IntervalDays: -3, QuantityPerFeeding: 1}, wantErr: true},
		{name: "zero quantity", r: FeedingReminder{AnimalID: "a", IntervalDays: 7}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.r.Validate()
			if tt.wantErr {
				assert.True(t, IsValidation(err), "expected validation error, got %v", err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestReminderFoodSKU(t *testing.T) {
	r := &FeedingReminder{FoodType: strPtr("Rat")}
	_, ok := r.FoodSKU()
	assert.False(t, ok, "size missing means no SKU")

	r.FoodSize = strPtr("Large")
	key, ok := r.FoodSKU()
	require.True(t, ok)
	assert.Equal(t, "Rat/Large", key.String())
}

func TestReminderFoodDescription(t *testing.T) {
	assert.Equal(t, "food", (&FeedingReminder{}).FoodDescription())
	assert.Equal(t, "Mouse", (&FeedingReminder{FoodType: strPtr("Mouse")}).FoodDescription())
	assert.Equal(t, "Large Rat", (&FeedingReminder{FoodType: strPtr("Rat"), FoodSize: strPtr("Large")}).FoodDescription())
}

func TestFeedingEventValidate(t *testing.T) {
	ev := &FeedingEvent{AnimalID: "a", FoodType: "Rat", Quantity: 1}
	assert.NoError(t, ev.Validate())

	ev.FoodType = ""
	assert.True(t, IsValidation(ev.Validate()))

	ev.FoodType = "Rat"
	ev.Quantity = 0
	assert.True(t, IsValidation(ev.Validate()))
}

func TestAnimalDisplayName(t *testing.T) {
	assert.Equal(t, "Monty", (&Animal{ID: "a1", Name: "Monty"}).DisplayName())
	assert.Equal(t, "a1", (&Animal{ID: "a1"}).DisplayName())
}
