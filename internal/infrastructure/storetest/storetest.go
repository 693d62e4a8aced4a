// Package storetest is a conformance suite every domain.Store backend runs
// from its own tests.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moodbite/backend/internal/domain"
)

// Factory returns a fresh, empty store. The suite closes it.
type Factory func(t *testing.T) domain.Store

// Run executes the conformance suite against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Run("records", func(t *testing.T) { testRecords(t, newStore) })
	t.Run("moods", func(t *testing.T) { testMoods(t, newStore) })
	t.Run("catalog", func(t *testing.T) { testCatalog(t, newStore) })
	t.Run("locks", func(t *testing.T) { testLocks(t, newStore) })
}

func open(t *testing.T, newStore Factory) domain.Store {
	t.Helper()
	store := newStore(t)
	t.Cleanup(func() { store.Close() })
	return store
}

func sampleRecord(barcode, name string) domain.NutritionRecord {
	return domain.NutritionRecord{
		Barcode:       barcode,
		ProductName:   name,
		EnergyKj:      1046,
		EnergyKcal:    250,
		Carbohydrates: 30.5,
		Sugars:        12.25,
		Fat:           9,
		Proteins:      4.5,
		ScanDate:      "2024-03-05",
	}
}

func testRecords(t *testing.T, newStore Factory) {
	ctx := context.Background()

	t.Run("add then list round-trips", func(t *testing.T) {
		store := open(t, newStore)
		record := sampleRecord("123", "Granola")

		require.NoError(t, store.Add(ctx, "alice", domain.CollectionScanned, record))

		got, err := store.List(ctx, "alice", domain.CollectionScanned)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, record, got[0])
	})

	t.Run("list of unknown user is empty", func(t *testing.T) {
		store := open(t, newStore)

		got, err := store.List(ctx, "nobody", domain.CollectionScanned)
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("add with same barcode overwrites", func(t *testing.T) {
		store := open(t, newStore)

		require.NoError(t, store.Add(ctx, "alice", domain.CollectionScanned, sampleRecord("123", "Old name")))
		require.NoError(t, store.Add(ctx, "alice", domain.CollectionScanned, sampleRecord("123", "New name")))

		got, err := store.List(ctx, "alice", domain.CollectionScanned)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "New name", got[0].ProductName)
	})

	t.Run("delete is idempotent", func(t *testing.T) {
		store := open(t, newStore)
		require.NoError(t, store.Add(ctx, "alice", domain.CollectionScanned, sampleRecord("123", "Granola")))
		require.NoError(t, store.Add(ctx, "alice", domain.CollectionScanned, sampleRecord("456", "Juice")))

		require.NoError(t, store.Delete(ctx, "alice", domain.CollectionScanned, "123"))
		require.NoError(t, store.Delete(ctx, "alice", domain.CollectionScanned, "123"))
		require.NoError(t, store.Delete(ctx, "alice", domain.CollectionScanned, "never-added"))

		got, err := store.List(ctx, "alice", domain.CollectionScanned)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "456", got[0].Barcode)
	})

	t.Run("users and collections are isolated", func(t *testing.T) {
		store := open(t, newStore)
		require.NoError(t, store.Add(ctx, "alice", domain.CollectionScanned, sampleRecord("1", "A")))
		require.NoError(t, store.Add(ctx, "alice", domain.CollectionDiet, sampleRecord("2", "B")))
		require.NoError(t, store.Add(ctx, "bob", domain.CollectionScanned, sampleRecord("3", "C")))

		scanned, err := store.List(ctx, "alice", domain.CollectionScanned)
		require.NoError(t, err)
		diet, err := store.List(ctx, "alice", domain.CollectionDiet)
		require.NoError(t, err)
		bob, err := store.List(ctx, "bob", domain.CollectionScanned)
		require.NoError(t, err)

		require.Len(t, scanned, 1)
		require.Len(t, diet, 1)
		require.Len(t, bob, 1)
		assert.Equal(t, "1", scanned[0].Barcode)
		assert.Equal(t, "2", diet[0].Barcode)
		assert.Equal(t, "3", bob[0].Barcode)
	})

	t.Run("rejects invalid input", func(t *testing.T) {
		store := open(t, newStore)

		err := store.Add(ctx, "", domain.CollectionScanned, sampleRecord("1", "A"))
		assert.ErrorIs(t, err, domain.ErrInvalidRequest)

		err = store.Add(ctx, "alice", domain.CollectionScanned, sampleRecord("", "A"))
		assert.ErrorIs(t, err, domain.ErrInvalidRequest)

		negative := sampleRecord("1", "A")
		negative.Sugars = -1
		err = store.Add(ctx, "alice", domain.CollectionScanned, negative)
		assert.ErrorIs(t, err, domain.ErrInvalidRequest)

		err = store.Add(ctx, "alice", domain.Collection("pantry"), sampleRecord("1", "A"))
		assert.ErrorIs(t, err, domain.ErrInvalidRequest)

		_, err = store.List(ctx, "", domain.CollectionScanned)
		assert.ErrorIs(t, err, domain.ErrInvalidRequest)

		err = store.Delete(ctx, "alice", domain.CollectionScanned, "")
		assert.ErrorIs(t, err, domain.ErrInvalidRequest)
	})
}

func testMoods(t *testing.T, newStore Factory) {
	ctx := context.Background()
	store := open(t, newStore)

	require.NoError(t, store.SetMood(ctx, "alice", domain.MoodRecord{Date: "2024-03-05", Mood: domain.MoodBad}))
	require.NoError(t, store.SetMood(ctx, "alice", domain.MoodRecord{Date: "2024-03-05", Mood: domain.MoodGood}))
	require.NoError(t, store.SetMood(ctx, "alice", domain.MoodRecord{Date: "2024-03-06", Mood: "Sleepy"}))
	require.NoError(t, store.SetMood(ctx, "bob", domain.MoodRecord{Date: "2024-03-05", Mood: domain.MoodRegular}))

	moods, err := store.ListMoods(ctx, "alice")
	require.NoError(t, err)

	byDate := map[string]string{}
	for _, m := range moods {
		byDate[m.Date] = m.Mood
	}
	assert.Equal(t, map[string]string{"2024-03-05": domain.MoodGood, "2024-03-06": "Sleepy"}, byDate)

	err = store.SetMood(ctx, "alice", domain.MoodRecord{Date: "", Mood: domain.MoodGood})
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)
}

func testCatalog(t *testing.T, newStore Factory) {
	ctx := context.Background()

	t.Run("batch write and read", func(t *testing.T) {
		store := open(t, newStore)
		catalog := store.Catalog()

		empty, err := catalog.IsEmpty(ctx)
		require.NoError(t, err)
		assert.True(t, empty)

		batch := []domain.NutritionRecord{sampleRecord("1", "A"), sampleRecord("2", "B"), sampleRecord("3", "C")}
		require.NoError(t, catalog.PutBatch(ctx, batch))

		empty, err = catalog.IsEmpty(ctx)
		require.NoError(t, err)
		assert.False(t, empty)

		got, err := catalog.Get(ctx, "2")
		require.NoError(t, err)
		assert.Equal(t, batch[1], got)

		_, err = catalog.Get(ctx, "missing")
		assert.ErrorIs(t, err, domain.ErrProductNotFound)

		all, err := catalog.List(ctx, 10)
		require.NoError(t, err)
		assert.Len(t, all, 3)

		limited, err := catalog.List(ctx, 2)
		require.NoError(t, err)
		assert.Len(t, limited, 2)
	})

	t.Run("batch is all or nothing", func(t *testing.T) {
		store := open(t, newStore)
		catalog := store.Catalog()

		batch := []domain.NutritionRecord{sampleRecord("1", "A"), sampleRecord("", "broken")}
		err := catalog.PutBatch(ctx, batch)
		assert.ErrorIs(t, err, domain.ErrInvalidRequest)

		empty, err := catalog.IsEmpty(ctx)
		require.NoError(t, err)
		assert.True(t, empty)
	})

	t.Run("batch repeating a barcode is rejected whole", func(t *testing.T) {
		store := open(t, newStore)
		catalog := store.Catalog()

		batch := []domain.NutritionRecord{sampleRecord("1", "A"), sampleRecord("2", "B"), sampleRecord("1", "A again")}
		err := catalog.PutBatch(ctx, batch)
		assert.ErrorIs(t, err, domain.ErrInvalidRequest)

		empty, err := catalog.IsEmpty(ctx)
		require.NoError(t, err)
		assert.True(t, empty)
	})

	t.Run("empty batch is a no-op", func(t *testing.T) {
		store := open(t, newStore)

		require.NoError(t, store.Catalog().PutBatch(ctx, nil))

		empty, err := store.Catalog().IsEmpty(ctx)
		require.NoError(t, err)
		assert.True(t, empty)
	})
}

func testLocks(t *testing.T, newStore Factory) {
	ctx := context.Background()
	store := open(t, newStore)

	lock, err := store.AcquireLock(ctx, "catalog-seed", "owner-a", time.Minute)
	require.NoError(t, err)

	_, err = store.AcquireLock(ctx, "catalog-seed", "owner-b", time.Minute)
	assert.ErrorIs(t, err, domain.ErrLockHeld)

	other, err := store.AcquireLock(ctx, "other-resource", "owner-b", time.Minute)
	require.NoError(t, err)
	require.NoError(t, other.Release(ctx))

	require.NoError(t, lock.Release(ctx))
	require.NoError(t, lock.Release(ctx))

	relock, err := store.AcquireLock(ctx, "catalog-seed", "owner-b", 20*time.Millisecond)
	require.NoError(t, err)

	time.Sleep(60 * time.Millisecond)

	taken, err := store.AcquireLock(ctx, "catalog-seed", "owner-c", time.Minute)
	require.NoError(t, err, "expired lease should be taken over")

	// releasing the expired lease must not drop the new owner's lease
	require.NoError(t, relock.Release(ctx))
	_, err = store.AcquireLock(ctx, "catalog-seed", "owner-d", time.Minute)
	assert.ErrorIs(t, err, domain.ErrLockHeld)

	require.NoError(t, taken.Release(ctx))
}
