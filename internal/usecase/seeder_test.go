package usecase

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moodbite/backend/internal/domain"
	"github.com/moodbite/backend/internal/infrastructure/memstore"
)

type sleepRecorder struct {
	delays []time.Duration
}

func (r *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	r.delays = append(r.delays, d)
	return ctx.Err()
}

func searchResults(codes ...string) []domain.RawProductPayload {
	results := make([]domain.RawProductPayload, 0, len(codes))
	for _, code := range codes {
		results = append(results, *payload(code, "Product "+code, 5))
	}
	return results
}

func newTestSeeder(client domain.CatalogClient, store domain.Store, config SeederConfig) (*Seeder, *sleepRecorder) {
	seeder := NewSeeder(client, store, nil, nil, config)
	recorder := &sleepRecorder{}
	seeder.sleep = recorder.sleep
	return seeder, recorder
}

func TestNewSeeder_Defaults(t *testing.T) {
	seeder := NewSeeder(NewMockCatalogClient(), memstore.New(), nil, nil, SeederConfig{PageSize: 500})

	assert.Equal(t, MaxSeedPageSize, seeder.config.PageSize)
	assert.Equal(t, DefaultSeedMaxAttempts, seeder.config.MaxAttempts)
	assert.Equal(t, DefaultSeedFetchTimeout, seeder.config.FetchTimeout)
	assert.Equal(t, DefaultSeedLockTTL, seeder.config.LockTTL)
	assert.NotEmpty(t, seeder.owner)
}

func TestSeeder_RetriesThenSucceeds(t *testing.T) {
	client := NewMockCatalogClient()
	client.searchErrors = []error{
		fmt.Errorf("%w: connection reset", domain.ErrCatalogTransport),
		fmt.Errorf("%w: timeout", domain.ErrCatalogTransport),
	}
	client.searchResult = searchResults("1", "2", "3")
	store := newCountingStore(memstore.New())

	seeder, sleeps := newTestSeeder(client, store, SeederConfig{
		PageSize:    100,
		MaxAttempts: 3,
		RetryDelay:  3 * time.Second,
	})

	report, err := seeder.SeedIfEmpty(context.Background())
	require.NoError(t, err)

	assert.Equal(t, SeedSeeded, report.Outcome)
	assert.Equal(t, 3, report.Attempts)
	assert.Equal(t, 3, report.Written)
	assert.Equal(t, 3, client.searchCalls)
	assert.Equal(t, []int{100, 100, 100}, client.pageSizes)
	assert.Equal(t, []time.Duration{3 * time.Second, 3 * time.Second}, sleeps.delays)
	assert.Equal(t, 1, store.catalog.batches)

	record, err := store.Catalog().Get(context.Background(), "2")
	require.NoError(t, err)
	assert.Equal(t, "Product 2", record.ProductName)
}

func TestSeeder_GivesUpAfterMaxAttempts(t *testing.T) {
	client := NewMockCatalogClient()
	client.searchErrors = []error{domain.ErrCatalogTransport, domain.ErrCatalogTransport, domain.ErrCatalogTransport}
	store := newCountingStore(memstore.New())

	seeder, sleeps := newTestSeeder(client, store, SeederConfig{MaxAttempts: 3, RetryDelay: time.Second})

	report, err := seeder.SeedIfEmpty(context.Background())
	require.NoError(t, err, "giving up is not fatal")

	assert.Equal(t, SeedGaveUp, report.Outcome)
	assert.Equal(t, 3, report.Attempts)
	assert.Len(t, sleeps.delays, 2)
	assert.Zero(t, store.catalog.batches)

	empty, err := store.Catalog().IsEmpty(context.Background())
	require.NoError(t, err)
	assert.True(t, empty)
}

func TestSeeder_SkipsPopulatedCatalog(t *testing.T) {
	client := NewMockCatalogClient()
	store := newCountingStore(memstore.New())
	require.NoError(t, store.Catalog().PutBatch(context.Background(), []domain.NutritionRecord{{Barcode: "1"}}))
	store.catalog.batches = 0

	seeder, _ := newTestSeeder(client, store, SeederConfig{})

	report, err := seeder.SeedIfEmpty(context.Background())
	require.NoError(t, err)

	assert.Equal(t, SeedSkipped, report.Outcome)
	assert.Zero(t, client.searchCalls)
	assert.Zero(t, store.catalog.batches)
}

func TestSeeder_SkipsPayloadsWithoutCode(t *testing.T) {
	client := NewMockCatalogClient()
	client.searchResult = append(searchResults("1"), domain.RawProductPayload{Product: &domain.RawProduct{}})

	seeder, _ := newTestSeeder(client, memstore.New(), SeederConfig{})

	report, err := seeder.SeedIfEmpty(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Written)
	assert.Equal(t, 1, report.Skipped)
}

func TestSeeder_StoreErrorsAreReturned(t *testing.T) {
	t.Run("emptiness check", func(t *testing.T) {
		store := newCountingStore(memstore.New())
		store.catalog.isEmpty = fmt.Errorf("%w: table missing", domain.ErrStore)
		seeder, _ := newTestSeeder(NewMockCatalogClient(), store, SeederConfig{})

		_, err := seeder.SeedIfEmpty(context.Background())
		assert.ErrorIs(t, err, domain.ErrStore)
	})

	t.Run("batch write is not retried", func(t *testing.T) {
		client := NewMockCatalogClient()
		client.searchResult = searchResults("1")
		store := newCountingStore(memstore.New())
		store.catalog.putError = fmt.Errorf("%w: write rejected", domain.ErrStore)
		seeder, _ := newTestSeeder(client, store, SeederConfig{})

		_, err := seeder.SeedIfEmpty(context.Background())
		assert.ErrorIs(t, err, domain.ErrStore)
		assert.Equal(t, 1, store.catalog.batches)
		assert.Equal(t, 1, client.searchCalls)
	})
}

func TestSeeder_NonTransportFetchErrorStopsRetrying(t *testing.T) {
	client := NewMockCatalogClient()
	client.searchErrors = []error{domain.ErrInvalidRequest}
	seeder, sleeps := newTestSeeder(client, memstore.New(), SeederConfig{})

	report, err := seeder.SeedIfEmpty(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInvalidRequest))
	assert.Equal(t, 1, report.Attempts)
	assert.Equal(t, 1, client.searchCalls)
	assert.Empty(t, sleeps.delays)
}

func TestSeeder_DeduplicatesBarcodes(t *testing.T) {
	client := NewMockCatalogClient()
	client.searchResult = searchResults("1", "2", "1", " 1")
	client.searchResult[3].Product.ProductName = strPtr("Latest")
	store := newCountingStore(memstore.New())
	seeder, _ := newTestSeeder(client, store, SeederConfig{})

	report, err := seeder.SeedIfEmpty(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SeedSeeded, report.Outcome)
	assert.Equal(t, 2, report.Written)
	assert.Equal(t, 2, report.Skipped)

	require.Len(t, store.catalog.lastBatch, 2)
	assert.Equal(t, "1", store.catalog.lastBatch[0].Barcode)
	assert.Equal(t, "Latest", store.catalog.lastBatch[0].ProductName)
	assert.Equal(t, "2", store.catalog.lastBatch[1].Barcode)
}

func TestSeeder_CancelledWhileWaiting(t *testing.T) {
	client := NewMockCatalogClient()
	client.searchErrors = []error{domain.ErrCatalogTransport, domain.ErrCatalogTransport}
	seeder, _ := newTestSeeder(client, memstore.New(), SeederConfig{})

	ctx, cancel := context.WithCancel(context.Background())
	seeder.sleep = func(context.Context, time.Duration) error {
		cancel()
		return context.Canceled
	}

	_, err := seeder.SeedIfEmpty(ctx)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, 1, client.searchCalls)
}

func TestSeeder_Lock(t *testing.T) {
	ctx := context.Background()

	t.Run("reports locked when another seeder holds the lock", func(t *testing.T) {
		store := memstore.New()
		held, err := store.AcquireLock(ctx, SeedLockResource, "other-instance", time.Minute)
		require.NoError(t, err)
		defer held.Release(ctx)

		client := NewMockCatalogClient()
		seeder, _ := newTestSeeder(client, store, SeederConfig{UseLock: true})

		report, err := seeder.SeedIfEmpty(ctx)
		require.NoError(t, err)
		assert.Equal(t, SeedLocked, report.Outcome)
		assert.Zero(t, client.searchCalls)
	})

	t.Run("releases the lock after seeding", func(t *testing.T) {
		store := memstore.New()
		client := NewMockCatalogClient()
		client.searchResult = searchResults("1")
		seeder, _ := newTestSeeder(client, store, SeederConfig{UseLock: true})

		report, err := seeder.SeedIfEmpty(ctx)
		require.NoError(t, err)
		assert.Equal(t, SeedSeeded, report.Outcome)

		lock, err := store.AcquireLock(ctx, SeedLockResource, "next", time.Minute)
		require.NoError(t, err)
		require.NoError(t, lock.Release(ctx))
	})

	t.Run("lock is ignored unless enabled", func(t *testing.T) {
		store := memstore.New()
		held, err := store.AcquireLock(ctx, SeedLockResource, "other-instance", time.Minute)
		require.NoError(t, err)
		defer held.Release(ctx)

		client := NewMockCatalogClient()
		client.searchResult = searchResults("1")
		seeder, _ := newTestSeeder(client, store, SeederConfig{})

		report, err := seeder.SeedIfEmpty(ctx)
		require.NoError(t, err)
		assert.Equal(t, SeedSeeded, report.Outcome)
	})
}
