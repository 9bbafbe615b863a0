package repository

import (
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/DaDevFox/task-systems/feeding-core/internal/domain"
)

const (
	animalPrefix   = "animal:"
	feedingPrefix  = "feeding:"  // feeding:animal_id:yyyymmdd:created_nanos:id
	reminderPrefix = "reminder:" // reminder:animal_id
	skuPrefix      = "sku:"      // sku:normalized_key
	txnPrefix      = "txn:"      // txn:normalized_key:yyyymmdd:created_nanos:id

	keyDateLayout = "20060102"
)

var (
	errKeyNotFound = errors.New("key not found")
	errReadOnly    = errors.New("write attempted in a read-only transaction")
)

// kv is the minimal surface an engine provides inside one transaction.
// scan visits keys with the prefix in ascending byte order.
type kv interface {
	get(key string) ([]byte, error)
	set(key string, value []byte) error
	scan(prefix string, fn func(key string, value []byte) error) error
}

// segment escapes an identifier so it cannot introduce a key separator.
func segment(id string) string {
	return url.QueryEscape(id)
}

func orderedSuffix(date, created time.Time, id string) string {
	return fmt.Sprintf("%s:%020d:%s", domain.DateOf(date).Format(keyDateLayout), created.UnixNano(), segment(id))
}

// codecTx implements Tx as JSON documents over any kv engine.
type codecTx struct {
	kv kv
}

func newTx(store kv) Tx {
	return &codecTx{kv: store}
}

func (t *codecTx) load(key string, out any, kind, id string) error {
	data, err := t.kv.get(key)
	if err != nil {
		if errors.Is(err, errKeyNotFound) {
			return &domain.NotFoundError{Kind: kind, ID: id}
		}
		return errors.Wrapf(err, "failed to read %s", key)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return errors.Wrapf(err, "failed to decode %s", key)
	}
	return nil
}

func (t *codecTx) store(key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return errors.Wrapf(err, "failed to encode %s", key)
	}
	return errors.Wrapf(t.kv.set(key, data), "failed to write %s", key)
}

func scanAll[T any](t *codecTx, prefix string, keep func(*T) bool) ([]*T, error) {
	var out []*T
	err := t.kv.scan(prefix, func(key string, value []byte) error {
		v := new(T)
		if err := json.Unmarshal(value, v); err != nil {
			return errors.Wrapf(err, "failed to decode %s", key)
		}
		if keep == nil || keep(v) {
			out = append(out, v)
		}
		return nil
	})
	return out, err
}

func (t *codecTx) GetAnimal(id string) (*domain.Animal, error) {
	animal := &domain.Animal{}
	if err := t.load(animalPrefix+segment(id), animal, domain.KindAnimal, id); err != nil {
		return nil, err
	}
	return animal, nil
}

func (t *codecTx) PutAnimal(animal *domain.Animal) error {
	return t.store(animalPrefix+segment(animal.ID), animal)
}

func (t *codecTx) ListAnimals() ([]*domain.Animal, error) {
	return scanAll[domain.Animal](t, animalPrefix, nil)
}

func (t *codecTx) AddFeeding(event *domain.FeedingEvent) error {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}
	key := feedingPrefix + segment(event.AnimalID) + ":" + orderedSuffix(event.FeedingDate, event.CreatedAt, event.ID)
	return t.store(key, event)
}

func (t *codecTx) RecentFeedings(animalID string, limit int) ([]*domain.FeedingEvent, error) {
	events, err := scanAll[domain.FeedingEvent](t, feedingPrefix+segment(animalID)+":", nil)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(events)-1; i < j; i, j = i+1, j-1 {
		events[i], events[j] = events[j], events[i]
	}
	if limit > 0 && len(events) > limit {
		events = events[:limit]
	}
	return events, nil
}

func (t *codecTx) GetReminder(animalID string) (*domain.FeedingReminder, error) {
	reminder := &domain.FeedingReminder{}
	if err := t.load(reminderPrefix+segment(animalID), reminder, domain.KindReminder, animalID); err != nil {
		return nil, err
	}
	return reminder, nil
}

func (t *codecTx) PutReminder(reminder *domain.FeedingReminder) error {
	if reminder.ID == "" {
		reminder.ID = uuid.New().String()
	}
	return t.store(reminderPrefix+segment(reminder.AnimalID), reminder)
}

func (t *codecTx) ListReminders(activeOnly bool) ([]*domain.FeedingReminder, error) {
	var keep func(*domain.FeedingReminder) bool
	if activeOnly {
		keep = func(r *domain.FeedingReminder) bool { return r.Active }
	}
	return scanAll(t, reminderPrefix, keep)
}

func (t *codecTx) GetSKU(key domain.SKUKey) (*domain.InventorySKU, error) {
	sku := &domain.InventorySKU{}
	if err := t.load(skuPrefix+segment(key.Normalized()), sku, domain.KindSKU, key.String()); err != nil {
		return nil, err
	}
	return sku, nil
}

func (t *codecTx) PutSKU(sku *domain.InventorySKU) error {
	if sku.Quantity < 0 {
		return errors.Errorf("refusing to store negative quantity %d for %s", sku.Quantity, sku.Key)
	}
	return t.store(skuPrefix+segment(sku.Key.Normalized()), sku)
}

func (t *codecTx) ListSKUs() ([]*domain.InventorySKU, error) {
	return scanAll[domain.InventorySKU](t, skuPrefix, nil)
}

func (t *codecTx) AppendTransaction(txn *domain.InventoryTransaction) error {
	if txn.ID == "" {
		txn.ID = uuid.New().String()
	}
	if txn.CreatedAt.IsZero() {
		txn.CreatedAt = time.Now()
	}
	key := txnPrefix + segment(txn.SKU.Normalized()) + ":" + orderedSuffix(txn.Date, txn.CreatedAt, txn.ID)
	return t.store(key, txn)
}

func (t *codecTx) ListTransactions(key domain.SKUKey, since time.Time) ([]*domain.InventoryTransaction, error) {
	var keep func(*domain.InventoryTransaction) bool
	if !since.IsZero() {
		from := domain.DateOf(since)
		keep = func(txn *domain.InventoryTransaction) bool { return !domain.DateOf(txn.Date).Before(from) }
	}
	return scanAll(t, txnPrefix+segment(key.Normalized())+":", keep)
}
