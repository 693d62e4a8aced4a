package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/moodbite/backend/internal/domain"
	"github.com/moodbite/backend/internal/infrastructure/memstore"
)

func newTestScanService(cache domain.ProductCache, client domain.CatalogClient, store domain.Store, feed *ChangeFeed) *ScanService {
	svc := NewScanService(cache, client, store, feed, nil, nil, ScanServiceConfig{})
	svc.now = func() time.Time { return time.Date(2024, 3, 5, 18, 30, 0, 0, time.UTC) }
	return svc
}

func TestNewScanService(t *testing.T) {
	t.Run("creates service with default values", func(t *testing.T) {
		svc := NewScanService(nil, NewMockCatalogClient(), memstore.New(), nil, nil, nil, ScanServiceConfig{})
		if svc.cacheTTL != 24*time.Hour {
			t.Errorf("cacheTTL = %v, want 24h", svc.cacheTTL)
		}
	})

	t.Run("creates service with custom values", func(t *testing.T) {
		svc := NewScanService(nil, NewMockCatalogClient(), memstore.New(), nil, nil, nil, ScanServiceConfig{CacheTTL: time.Hour})
		if svc.cacheTTL != time.Hour {
			t.Errorf("cacheTTL = %v, want 1h", svc.cacheTTL)
		}
	})
}

func TestScanService_Lookup(t *testing.T) {
	ctx := context.Background()

	t.Run("returns error for empty barcode", func(t *testing.T) {
		client := NewMockCatalogClient()
		svc := newTestScanService(nil, client, memstore.New(), nil)

		_, err := svc.Lookup(ctx, "")
		if !errors.Is(err, domain.ErrInvalidRequest) {
			t.Errorf("error = %v, want ErrInvalidRequest", err)
		}
		if client.lookupCalls != 0 {
			t.Errorf("lookupCalls = %d, want 0", client.lookupCalls)
		}
	})

	t.Run("returns cached record on cache hit", func(t *testing.T) {
		cache := NewMockProductCache()
		cache.data["123"] = domain.NutritionRecord{Barcode: "123", ProductName: "Cached"}
		client := NewMockCatalogClient()
		svc := newTestScanService(cache, client, memstore.New(), nil)

		record, err := svc.Lookup(ctx, "123")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if record.ProductName != "Cached" {
			t.Errorf("ProductName = %q, want Cached", record.ProductName)
		}
		if client.lookupCalls != 0 {
			t.Errorf("lookupCalls = %d, want 0", client.lookupCalls)
		}
	})

	t.Run("normalizes and caches on cache miss", func(t *testing.T) {
		cache := NewMockProductCache()
		client := NewMockCatalogClient()
		client.payloads["123"] = payload("123", "Granola", 12.5)
		svc := newTestScanService(cache, client, memstore.New(), nil)

		record, err := svc.Lookup(ctx, "123")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if record.ProductName != "Granola" || record.Sugars != 12.5 || record.EnergyKcal != 120 {
			t.Errorf("record = %+v", record)
		}
		if record.Fat != 0 {
			t.Errorf("Fat = %v, want default 0", record.Fat)
		}
		if !cache.setCalled {
			t.Error("expected cache.Set to be called")
		}
	})

	t.Run("propagates not found", func(t *testing.T) {
		svc := newTestScanService(nil, NewMockCatalogClient(), memstore.New(), nil)

		_, err := svc.Lookup(ctx, "999")
		if !errors.Is(err, domain.ErrProductNotFound) {
			t.Errorf("error = %v, want ErrProductNotFound", err)
		}
	})

	t.Run("propagates transport errors", func(t *testing.T) {
		client := NewMockCatalogClient()
		client.lookupError = domain.ErrCatalogTransport
		svc := newTestScanService(nil, client, memstore.New(), nil)

		_, err := svc.Lookup(ctx, "123")
		if !errors.Is(err, domain.ErrCatalogTransport) {
			t.Errorf("error = %v, want ErrCatalogTransport", err)
		}
	})

	t.Run("falls through to the catalog on cache failure", func(t *testing.T) {
		cache := NewMockProductCache()
		cache.getError = errors.New("cache down")
		client := NewMockCatalogClient()
		client.payloads["123"] = payload("123", "Granola", 1)
		svc := newTestScanService(cache, client, memstore.New(), nil)

		if _, err := svc.Lookup(ctx, "123"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if client.lookupCalls != 1 {
			t.Errorf("lookupCalls = %d, want 1", client.lookupCalls)
		}
	})
}

func TestScanService_Scan(t *testing.T) {
	ctx := context.Background()

	t.Run("keys the record by the scanned barcode", func(t *testing.T) {
		client := NewMockCatalogClient()
		client.payloads["737628064502"] = payload("0737628064502", "Rice Noodles", 2)
		store := memstore.New()
		svc := newTestScanService(nil, client, store, nil)

		record, err := svc.Scan(ctx, "alice", domain.CollectionScanned, "737628064502", "2024-03-05")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if record.Barcode != "737628064502" {
			t.Errorf("Barcode = %q, want 737628064502", record.Barcode)
		}

		if err := svc.Delete(ctx, "alice", domain.CollectionScanned, "737628064502"); err != nil {
			t.Fatalf("Delete() error = %v", err)
		}
		records, err := svc.List(ctx, "alice", domain.CollectionScanned)
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		if len(records) != 0 {
			t.Errorf("records after delete = %+v, want none", records)
		}
	})

	t.Run("stores record stamped with today", func(t *testing.T) {
		client := NewMockCatalogClient()
		client.payloads["123"] = payload("123", "Granola", 12.5)
		store := memstore.New()
		feed := NewChangeFeed()
		svc := newTestScanService(nil, client, store, feed)

		record, err := svc.Scan(ctx, "alice", domain.CollectionScanned, "123", "")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if record.ScanDate != "2024-03-05" {
			t.Errorf("ScanDate = %q, want 2024-03-05", record.ScanDate)
		}

		stored, err := store.List(ctx, "alice", domain.CollectionScanned)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(stored) != 1 || stored[0] != record {
			t.Errorf("stored = %+v, want [%+v]", stored, record)
		}
		if got := feed.For("alice").Get().Sequence; got != 1 {
			t.Errorf("feed sequence = %d, want 1", got)
		}
	})

	t.Run("keeps explicit scan date", func(t *testing.T) {
		client := NewMockCatalogClient()
		client.payloads["123"] = payload("123", "Granola", 1)
		svc := newTestScanService(nil, client, memstore.New(), nil)

		record, err := svc.Scan(ctx, "alice", domain.CollectionDiet, "123", "2023-12-01")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if record.ScanDate != "2023-12-01" {
			t.Errorf("ScanDate = %q, want 2023-12-01", record.ScanDate)
		}
	})

	t.Run("rejects malformed scan date", func(t *testing.T) {
		client := NewMockCatalogClient()
		client.payloads["123"] = payload("123", "Granola", 1)
		svc := newTestScanService(nil, client, memstore.New(), nil)

		_, err := svc.Scan(ctx, "alice", domain.CollectionDiet, "123", "yesterday")
		if !errors.Is(err, domain.ErrInvalidRequest) {
			t.Errorf("error = %v, want ErrInvalidRequest", err)
		}
	})

	t.Run("rejects unknown collection before lookup", func(t *testing.T) {
		client := NewMockCatalogClient()
		svc := newTestScanService(nil, client, memstore.New(), nil)

		_, err := svc.Scan(ctx, "alice", domain.Collection("pantry"), "123", "")
		if !errors.Is(err, domain.ErrInvalidRequest) {
			t.Errorf("error = %v, want ErrInvalidRequest", err)
		}
		if client.lookupCalls != 0 {
			t.Errorf("lookupCalls = %d, want 0", client.lookupCalls)
		}
	})

	t.Run("does not persist when lookup fails", func(t *testing.T) {
		store := memstore.New()
		feed := NewChangeFeed()
		svc := newTestScanService(nil, NewMockCatalogClient(), store, feed)

		_, err := svc.Scan(ctx, "alice", domain.CollectionScanned, "404", "")
		if !errors.Is(err, domain.ErrProductNotFound) {
			t.Errorf("error = %v, want ErrProductNotFound", err)
		}
		stored, _ := store.List(ctx, "alice", domain.CollectionScanned)
		if len(stored) != 0 {
			t.Errorf("stored %d records, want 0", len(stored))
		}
		if got := feed.For("alice").Get().Sequence; got != 0 {
			t.Errorf("feed sequence = %d, want 0", got)
		}
	})

	t.Run("surfaces store errors", func(t *testing.T) {
		client := NewMockCatalogClient()
		client.payloads["123"] = payload("123", "Granola", 1)
		store := &failingStore{Store: memstore.New(), err: domain.ErrStore}
		svc := newTestScanService(nil, client, store, nil)

		_, err := svc.Scan(ctx, "alice", domain.CollectionScanned, "123", "")
		if !errors.Is(err, domain.ErrStore) {
			t.Errorf("error = %v, want ErrStore", err)
		}
	})
}

func TestScanService_DeleteAndMoods(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	feed := NewChangeFeed()
	svc := newTestScanService(nil, NewMockCatalogClient(), store, feed)

	if err := svc.Add(ctx, "alice", domain.CollectionDiet, domain.NutritionRecord{Barcode: "1", ProductName: "A"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := svc.Delete(ctx, "alice", domain.CollectionDiet, "1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := svc.Delete(ctx, "alice", domain.CollectionDiet, "1"); err != nil {
		t.Errorf("second delete error = %v, want nil", err)
	}

	if err := svc.SetMood(ctx, "alice", "2024-03-05", domain.MoodGood); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	moods, err := svc.ListMoods(ctx, "alice")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(moods) != 1 || moods[0].Mood != domain.MoodGood {
		t.Errorf("moods = %+v", moods)
	}

	last := feed.For("alice").Get()
	if last.Sequence != 4 || last.Kind != ChangeMoods {
		t.Errorf("last change = %+v, want sequence 4 of kind moods", last)
	}
}

func TestScanService_CatalogRecord(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	if err := store.Catalog().PutBatch(ctx, []domain.NutritionRecord{{Barcode: "1", ProductName: "A"}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	svc := newTestScanService(nil, NewMockCatalogClient(), store, nil)

	record, err := svc.CatalogRecord(ctx, "1")
	if err != nil || record.ProductName != "A" {
		t.Errorf("CatalogRecord = %+v, %v", record, err)
	}

	if _, err := svc.CatalogRecord(ctx, "2"); !errors.Is(err, domain.ErrProductNotFound) {
		t.Errorf("error = %v, want ErrProductNotFound", err)
	}
	if _, err := svc.CatalogRecord(ctx, ""); !errors.Is(err, domain.ErrInvalidRequest) {
		t.Errorf("error = %v, want ErrInvalidRequest", err)
	}
}
