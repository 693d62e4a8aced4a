package domain

import (
	"context"
	"time"
)

// ProductCache caches normalized records by barcode
type ProductCache interface {
	Get(ctx context.Context, barcode string) (NutritionRecord, error)
	Set(ctx context.Context, barcode string, record NutritionRecord, ttl time.Duration) error
	Delete(ctx context.Context, barcode string) error
}

// CatalogClient defines the interface for interacting with the remote product catalog
type CatalogClient interface {
	Lookup(ctx context.Context, barcode string) (*RawProductPayload, error)
	Search(ctx context.Context, pageSize int) ([]RawProductPayload, error)
}

// RecordStore persists a user's nutrition records, keyed by barcode inside a collection.
type RecordStore interface {
	Add(ctx context.Context, userID string, collection Collection, record NutritionRecord) error
	List(ctx context.Context, userID string, collection Collection) ([]NutritionRecord, error)
	Delete(ctx context.Context, userID string, collection Collection, barcode string) error
}

// MoodStore persists the mood a user reported per date.
type MoodStore interface {
	SetMood(ctx context.Context, userID string, mood MoodRecord) error
	ListMoods(ctx context.Context, userID string) ([]MoodRecord, error)
}

// CatalogStore persists the shared, user-independent product catalog.
type CatalogStore interface {
	IsEmpty(ctx context.Context) (bool, error)
	// PutBatch writes all records or none of them.
	PutBatch(ctx context.Context, records []NutritionRecord) error
	Get(ctx context.Context, barcode string) (NutritionRecord, error)
	List(ctx context.Context, limit int) ([]NutritionRecord, error)
}

// Locker hands out named leases. AcquireLock returns ErrLockHeld when another
// owner holds an unexpired lease on the resource.
type Locker interface {
	AcquireLock(ctx context.Context, resource, owner string, ttl time.Duration) (Lock, error)
}

// Lock is an acquired lease.
type Lock interface {
	Release(ctx context.Context) error
}

// Store bundles every persistence concern a backend provides.
type Store interface {
	RecordStore
	MoodStore
	Catalog() CatalogStore
	Locker
	Close() error
}
