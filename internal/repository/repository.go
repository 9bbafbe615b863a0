package repository

import (
	"context"
	"time"

	"github.com/DaDevFox/task-systems/feeding-core/internal/domain"
)

// Store is the persistence collaborator. Every read or write happens inside a
// unit of work: View for read-only access, Update for an atomic read-modify-
// write. Update serialises conflicting writers; engines retry or lock as
// needed so fn may run more than once and must not have side effects outside
// the Tx.
type Store interface {
	View(ctx context.Context, fn func(Tx) error) error
	Update(ctx context.Context, fn func(Tx) error) error
	Close() error
}

// Tx exposes typed access to the engine's records within one unit of work.
// Lookups of missing records return *domain.NotFoundError.
type Tx interface {
	GetAnimal(id string) (*domain.Animal, error)
	PutAnimal(animal *domain.Animal) error
	ListAnimals() ([]*domain.Animal, error)

	AddFeeding(event *domain.FeedingEvent) error
	// RecentFeedings returns up to limit events for the animal, most recent
	// feeding date first. A limit <= 0 returns all of them.
	RecentFeedings(animalID string, limit int) ([]*domain.FeedingEvent, error)

	GetReminder(animalID string) (*domain.FeedingReminder, error)
	PutReminder(reminder *domain.FeedingReminder) error
	ListReminders(activeOnly bool) ([]*domain.FeedingReminder, error)

	GetSKU(key domain.SKUKey) (*domain.InventorySKU, error)
	PutSKU(sku *domain.InventorySKU) error
	ListSKUs() ([]*domain.InventorySKU, error)

	// AppendTransaction adds a ledger entry. Entries are never updated.
	AppendTransaction(txn *domain.InventoryTransaction) error
	// ListTransactions returns the SKU's ledger dated on or after since, in
	// date then insertion order. A zero since returns the whole ledger.
	ListTransactions(key domain.SKUKey, since time.Time) ([]*domain.InventoryTransaction, error)
}
