package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/DaDevFox/task-systems/feeding-core/internal/domain"
	"github.com/DaDevFox/task-systems/feeding-core/internal/events"
	"github.com/DaDevFox/task-systems/feeding-core/internal/prediction"
	"github.com/DaDevFox/task-systems/feeding-core/internal/repository"
)

// FeedingService owns reminders, feeding events and next-feeding predictions.
type FeedingService struct {
	store    repository.Store
	eventBus *events.EventBus
	table    *prediction.Table
	logger   *logrus.Logger
	now      func() time.Time
}

// NewFeedingService creates a new feeding service instance
func NewFeedingService(
	store repository.Store,
	eventBus *events.EventBus,
	table *prediction.Table,
	logger *logrus.Logger,
) *FeedingService {
	if table == nil {
		table = prediction.DefaultTable()
	}
	return &FeedingService{
		store:    store,
		eventBus: eventBus,
		table:    table,
		logger:   logger,
		now:      time.Now,
	}
}

// SetClock replaces the time source, e.g. to pin the configured timezone.
func (s *FeedingService) SetClock(now func() time.Time) {
	s.now = now
}

// PutAnimal registers or refreshes the animal record the engine reads.
func (s *FeedingService) PutAnimal(ctx context.Context, animal *domain.Animal) (*domain.Animal, error) {
	if err := animal.Validate(); err != nil {
		return nil, err
	}

	now := s.now()
	err := s.store.Update(ctx, func(tx repository.Tx) error {
		existing, err := tx.GetAnimal(animal.ID)
		switch {
		case err == nil:
			animal.CreatedAt = existing.CreatedAt
		case domain.IsNotFound(err):
			animal.CreatedAt = now
		default:
			return err
		}
		animal.UpdatedAt = now
		return tx.PutAnimal(animal)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to save animal %s: %w", animal.ID, err)
	}

	s.logger.WithFields(logrus.Fields{
		"animal_id": animal.ID,
		"species":   animal.Species,
	}).Debug("animal saved")
	return animal, nil
}

// PredictNextFeeding builds the recommendation for an animal from its most
// recent feedings, falling back to the reminder's last-fed date.
func (s *FeedingService) PredictNextFeeding(ctx context.Context, animalID string) (*prediction.Prediction, error) {
	var in prediction.PredictionInput
	err := s.store.View(ctx, func(tx repository.Tx) error {
		animal, err := tx.GetAnimal(animalID)
		if err != nil {
			return err
		}
		in.Species = animal.Species
		in.BirthDate = animal.DateOfBirth

		recent, err := tx.RecentFeedings(animalID, prediction.MaxHistory)
		if err != nil {
			return err
		}
		in.History = make([]time.Time, 0, len(recent))
		for _, ev := range recent {
			in.History = append(in.History, ev.FeedingDate)
		}

		if len(recent) == 0 {
			reminder, err := tx.GetReminder(animalID)
			switch {
			case err == nil:
				in.LastFed = reminder.LastFedDate
			case !domain.IsNotFound(err):
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load feeding history for %s: %w", animalID, err)
	}

	p := prediction.PredictNextFeeding(s.table, in, s.now())
	return &p, nil
}

// SetReminderRequest configures an animal's feeding cadence.
type SetReminderRequest struct {
	IntervalDays       int     `json:"interval_days"`
	FoodType           *string `json:"food_type,omitempty"`
	FoodSize           *string `json:"food_size,omitempty"`
	QuantityPerFeeding int     `json:"quantity_per_feeding,omitempty"`
}

// SetReminder upserts the single reminder for an animal and reactivates it.
// A new reminder has no next feeding date until a feeding is recorded.
func (s *FeedingService) SetReminder(ctx context.Context, animalID string, req SetReminderRequest) (*domain.FeedingReminder, error) {
	if err := domain.ValidateInterval(req.IntervalDays); err != nil {
		return nil, err
	}
	qty := req.QuantityPerFeeding
	if qty == 0 {
		qty = domain.DefaultQuantityPerFeeding
	}
	if qty < 1 {
		return nil, domain.NewValidationError("quantity_per_feeding", "must be at least 1")
	}

	now := s.now()
	var saved *domain.FeedingReminder
	err := s.store.Update(ctx, func(tx repository.Tx) error {
		if _, err := tx.GetAnimal(animalID); err != nil {
			return err
		}

		reminder, err := tx.GetReminder(animalID)
		switch {
		case domain.IsNotFound(err):
			reminder = &domain.FeedingReminder{AnimalID: animalID, CreatedAt: now}
		case err != nil:
			return err
		}

		reminder.FoodType = trimmed(req.FoodType)
		reminder.FoodSize = trimmed(req.FoodSize)
		reminder.QuantityPerFeeding = qty
		reminder.Active = true
		reminder.UpdatedAt = now
		if err := reminder.SetInterval(req.IntervalDays); err != nil {
			return err
		}
		if err := tx.PutReminder(reminder); err != nil {
			return err
		}
		saved = reminder
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to set reminder for %s: %w", animalID, err)
	}

	s.logger.WithFields(logrus.Fields{
		"animal_id":         animalID,
		"interval_days":     saved.IntervalDays,
		"next_feeding_date": domain.FormatDate(saved.NextFeedingDate),
	}).Info("feeding reminder set")
	return saved, nil
}

// ReminderPatch is a partial reminder update. Absent fields are left alone;
// explicit nulls clear food preferences and reset the quantity to its default.
type ReminderPatch struct {
	IntervalDays       domain.Optional[int]    `json:"interval_days"`
	FoodType           domain.Optional[string] `json:"food_type"`
	FoodSize           domain.Optional[string] `json:"food_size"`
	QuantityPerFeeding domain.Optional[int]    `json:"quantity_per_feeding"`
	Active             domain.Optional[bool]   `json:"active"`
}

func (p ReminderPatch) validate() error {
	if p.IntervalDays.Set {
		if !p.IntervalDays.Valid {
			return domain.NewValidationError("interval_days", "cannot be cleared")
		}
		if err := domain.ValidateInterval(p.IntervalDays.Value); err != nil {
			return err
		}
	}
	if p.QuantityPerFeeding.Set && p.QuantityPerFeeding.Valid && p.QuantityPerFeeding.Value < 1 {
		return domain.NewValidationError("quantity_per_feeding", "must be at least 1")
	}
	if p.Active.Set && !p.Active.Valid {
		return domain.NewValidationError("active", "cannot be cleared")
	}
	return nil
}

// UpdateReminder applies a partial update to an existing reminder.
func (s *FeedingService) UpdateReminder(ctx context.Context, animalID string, patch ReminderPatch) (*domain.FeedingReminder, error) {
	if err := patch.validate(); err != nil {
		return nil, err
	}

	now := s.now()
	var saved *domain.FeedingReminder
	err := s.store.Update(ctx, func(tx repository.Tx) error {
		reminder, err := tx.GetReminder(animalID)
		if err != nil {
			return err
		}

		if patch.FoodType.Set {
			reminder.FoodType = optionalString(patch.FoodType)
		}
		if patch.FoodSize.Set {
			reminder.FoodSize = optionalString(patch.FoodSize)
		}
		if patch.QuantityPerFeeding.Set {
			reminder.QuantityPerFeeding = domain.DefaultQuantityPerFeeding
			if patch.QuantityPerFeeding.Valid {
				reminder.QuantityPerFeeding = patch.QuantityPerFeeding.Value
			}
		}
		if patch.Active.Set {
			reminder.Active = patch.Active.Value
		}
		if patch.IntervalDays.Set {
			if err := reminder.SetInterval(patch.IntervalDays.Value); err != nil {
				return err
			}
		}
		reminder.UpdatedAt = now

		if err := tx.PutReminder(reminder); err != nil {
			return err
		}
		saved = reminder
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update reminder for %s: %w", animalID, err)
	}
	return saved, nil
}

// GetReminder returns the animal's reminder, active or not.
func (s *FeedingService) GetReminder(ctx context.Context, animalID string) (*domain.FeedingReminder, error) {
	var reminder *domain.FeedingReminder
	err := s.store.View(ctx, func(tx repository.Tx) error {
		var err error
		reminder, err = tx.GetReminder(animalID)
		return err
	})
	return reminder, err
}

// Deactivate soft-disables an animal's reminder. History is kept.
func (s *FeedingService) Deactivate(ctx context.Context, animalID string) error {
	now := s.now()
	err := s.store.Update(ctx, func(tx repository.Tx) error {
		reminder, err := tx.GetReminder(animalID)
		if err != nil {
			return err
		}
		reminder.Active = false
		reminder.UpdatedAt = now
		return tx.PutReminder(reminder)
	})
	if err != nil {
		return fmt.Errorf("failed to deactivate reminder for %s: %w", animalID, err)
	}

	s.logger.WithField("animal_id", animalID).Info("feeding reminder deactivated")
	return nil
}

// RecordFeeding moves an active reminder forward from the given feeding date
// using the reminder's own interval. It returns nil when the animal has no
// active reminder.
func (s *FeedingService) RecordFeeding(ctx context.Context, animalID, rawDate string) (*domain.FeedingReminder, error) {
	fedOn := s.feedingDate(animalID, rawDate)

	var saved *domain.FeedingReminder
	err := s.store.Update(ctx, func(tx repository.Tx) error {
		saved = nil
		reminder, err := markReminderFed(tx, animalID, fedOn, s.now())
		if err != nil {
			return err
		}
		saved = reminder
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to record feeding for %s: %w", animalID, err)
	}
	return saved, nil
}

// feedingDate parses a feeding date leniently. Unparseable input falls back
// to today and is logged so bad upstream data stays visible.
func (s *FeedingService) feedingDate(animalID, raw string) time.Time {
	if d, ok := domain.ParseFeedingDate(raw); ok {
		return d
	}
	today := domain.DateOf(s.now())
	s.logger.WithFields(logrus.Fields{
		"animal_id": animalID,
		"raw_date":  raw,
		"fallback":  today.Format(domain.DateLayout),
	}).Warn("unrecognised feeding date, using today")
	return today
}

func markReminderFed(tx repository.Tx, animalID string, fedOn, now time.Time) (*domain.FeedingReminder, error) {
	reminder, err := tx.GetReminder(animalID)
	if domain.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !reminder.Active {
		return nil, nil
	}

	reminder.MarkFed(fedOn)
	reminder.UpdatedAt = now
	if err := tx.PutReminder(reminder); err != nil {
		return nil, err
	}
	return reminder, nil
}

// LogFeedingRequest is a complete feeding event as entered by an operator.
type LogFeedingRequest struct {
	AnimalID    string `json:"animal_id"`
	FeedingDate string `json:"feeding_date"`
	FoodType    string `json:"food_type"`
	FoodSize    string `json:"food_size,omitempty"`
	Quantity    int    `json:"quantity,omitempty"`
	Ate         *bool  `json:"ate,omitempty"`
	// FromInventory debits the food SKU when set.
	FromInventory bool   `json:"from_inventory,omitempty"`
	Notes         string `json:"notes,omitempty"`
}

// LogFeedingResult reports everything a feeding event changed.
type LogFeedingResult struct {
	Event    *domain.FeedingEvent    `json:"event"`
	Reminder *domain.FeedingReminder `json:"reminder,omitempty"`
	Debit    *StockMovement          `json:"debit,omitempty"`
	// DebitError explains why a requested debit was skipped.
	DebitError string `json:"debit_error,omitempty"`
}

// LogFeeding stores a feeding event, advances the reminder and debits
// inventory in one unit of work. A missing SKU does not fail the feeding; the
// event is kept without a stock reference.
func (s *FeedingService) LogFeeding(ctx context.Context, req LogFeedingRequest) (*LogFeedingResult, error) {
	qty := req.Quantity
	if qty == 0 {
		qty = 1
	}
	ate := true
	if req.Ate != nil {
		ate = *req.Ate
	}
	event := &domain.FeedingEvent{
		AnimalID: strings.TrimSpace(req.AnimalID),
		FoodType: strings.TrimSpace(req.FoodType),
		FoodSize: strings.TrimSpace(req.FoodSize),
		Quantity: qty,
		Ate:      ate,
		Notes:    req.Notes,
	}
	if err := event.Validate(); err != nil {
		return nil, err
	}
	if req.FromInventory && event.FoodSize == "" {
		return nil, domain.NewValidationError("food_size", "is required to debit inventory")
	}
	event.FeedingDate = s.feedingDate(event.AnimalID, req.FeedingDate)

	now := s.now()
	var result *LogFeedingResult
	err := s.store.Update(ctx, func(tx repository.Tx) error {
		// the unit of work may be retried; start from a clean event each time
		ev := *event
		ev.ID, ev.SKU, ev.CreatedAt = "", nil, now
		result = &LogFeedingResult{Event: &ev}

		if _, err := tx.GetAnimal(ev.AnimalID); err != nil {
			return err
		}

		if req.FromInventory {
			key := domain.NewSKUKey(ev.FoodType, ev.FoodSize)
			// reserve the event id so the ledger entry can reference it
			ev.ID = newID()
			movement, err := applyMovement(tx, key, -ev.Quantity, domain.TransactionFeeding, ev.FeedingDate, now, ev.ID, "")
			switch {
			case err == nil:
				result.Debit = movement
				ev.SKU = &movement.SKU.Key
			case domain.IsNotFound(err):
				result.DebitError = err.Error()
			default:
				return err
			}
		}

		if err := tx.AddFeeding(&ev); err != nil {
			return err
		}

		reminder, err := markReminderFed(tx, ev.AnimalID, ev.FeedingDate, now)
		if err != nil {
			return err
		}
		result.Reminder = reminder
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to log feeding for %s: %w", event.AnimalID, err)
	}

	fields := logrus.Fields{
		"animal_id":    result.Event.AnimalID,
		"feeding_date": result.Event.FeedingDate.Format(domain.DateLayout),
		"food":         result.Event.FoodType,
		"quantity":     result.Event.Quantity,
	}
	if result.Reminder != nil {
		fields["next_feeding_date"] = domain.FormatDate(result.Reminder.NextFeedingDate)
	}
	if result.DebitError != "" {
		s.logger.WithFields(fields).WithField("debit_error", result.DebitError).Warn("feeding logged without inventory debit")
	} else {
		s.logger.WithFields(fields).Info("feeding logged")
	}

	s.publishFeeding(ctx, result)
	return result, nil
}

func (s *FeedingService) publishFeeding(ctx context.Context, result *LogFeedingResult) {
	if s.eventBus == nil {
		return
	}
	payload := events.FeedingRecordedPayload{
		AnimalID:       result.Event.AnimalID,
		FeedingEventID: result.Event.ID,
		FeedingDate:    result.Event.FeedingDate,
		SKU:            result.Event.SKU,
		Debited:        result.Debit != nil,
	}
	if result.Reminder != nil {
		payload.NextFeedingDate = result.Reminder.NextFeedingDate
	}
	s.eventBus.Publish(ctx, events.FeedingRecorded, payload)

	if result.Debit != nil {
		publishMovement(ctx, s.eventBus, events.StockDebited, result.Debit)
	}
}

func publishMovement(ctx context.Context, bus *events.EventBus, eventType events.EventType, m *StockMovement) {
	if bus == nil {
		return
	}
	bus.Publish(ctx, eventType, m.payload())
	if m.depleted() {
		bus.Publish(ctx, events.StockDepleted, m.payload())
	}
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

func optionalString(o domain.Optional[string]) *string {
	if !o.Valid {
		return nil
	}
	return trimmed(&o.Value)
}
