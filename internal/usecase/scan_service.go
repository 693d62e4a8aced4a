package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/moodbite/backend/internal/domain"
	"github.com/moodbite/backend/internal/infrastructure/observability"
	"github.com/moodbite/backend/internal/infrastructure/openfoodfacts"
)

// ScanServiceConfig holds configuration for the scan service
type ScanServiceConfig struct {
	CacheTTL time.Duration
}

// ScanService resolves barcodes into nutrition records and keeps the
// per-user collections.
type ScanService struct {
	cache   domain.ProductCache
	catalog domain.CatalogClient
	store   domain.Store
	feed    *ChangeFeed
	logger  *zap.Logger
	metrics *observability.Collector
	now     func() time.Time

	cacheTTL time.Duration
}

// NewScanService creates a new scan service with dependencies.
// cache, feed and metrics may be nil.
func NewScanService(
	cache domain.ProductCache,
	catalog domain.CatalogClient,
	store domain.Store,
	feed *ChangeFeed,
	logger *zap.Logger,
	metrics *observability.Collector,
	config ScanServiceConfig,
) *ScanService {
	if logger == nil {
		logger = zap.NewNop()
	}

	cacheTTL := config.CacheTTL
	if cacheTTL == 0 {
		cacheTTL = 24 * time.Hour
	}

	return &ScanService{
		cache:    cache,
		catalog:  catalog,
		store:    store,
		feed:     feed,
		logger:   logger.Named("scan"),
		metrics:  metrics,
		now:      time.Now,
		cacheTTL: cacheTTL,
	}
}

// Lookup resolves a barcode into a normalized record without persisting it.
// Flow: check cache -> remote lookup -> normalize -> cache -> return
func (s *ScanService) Lookup(ctx context.Context, barcode string) (domain.NutritionRecord, error) {
	if barcode == "" {
		return domain.NutritionRecord{}, fmt.Errorf("%w: barcode is required", domain.ErrInvalidRequest)
	}

	if record, ok := s.getFromCache(ctx, barcode); ok {
		return record, nil
	}

	payload, err := s.catalog.Lookup(ctx, barcode)
	if err != nil {
		return domain.NutritionRecord{}, err
	}

	// Records are keyed by the scanned barcode even when the catalog
	// answers with a canonicalized code (UPC-A padded to EAN-13).
	record := openfoodfacts.Normalize(*payload)
	record.Barcode = barcode

	if s.cache != nil {
		if err := s.cache.Set(ctx, barcode, record, s.cacheTTL); err != nil {
			s.logger.Warn("failed to cache product", zap.String("barcode", barcode), zap.Error(err))
		}
	}
	return record, nil
}

func (s *ScanService) getFromCache(ctx context.Context, barcode string) (domain.NutritionRecord, bool) {
	if s.cache == nil {
		return domain.NutritionRecord{}, false
	}

	record, err := s.cache.Get(ctx, barcode)
	if err != nil {
		if !errors.Is(err, domain.ErrCacheMiss) {
			s.logger.Warn("cache read failed", zap.String("barcode", barcode), zap.Error(err))
		}
		s.metrics.ObserveCache(false)
		return domain.NutritionRecord{}, false
	}

	s.metrics.ObserveCache(true)
	return record, true
}

// Scan looks up a barcode and stores the record in the user's collection,
// stamped with scanDate (yyyy-MM-dd) or today's date when empty.
func (s *ScanService) Scan(ctx context.Context, userID string, collection domain.Collection, barcode, scanDate string) (domain.NutritionRecord, error) {
	if err := domain.ValidateScope(userID, collection); err != nil {
		return domain.NutritionRecord{}, err
	}
	if scanDate == "" {
		scanDate = s.now().Format(domain.ScanDateLayout)
	} else if _, err := time.Parse(domain.ScanDateLayout, scanDate); err != nil {
		return domain.NutritionRecord{}, fmt.Errorf("%w: scan date %q is not yyyy-MM-dd", domain.ErrInvalidRequest, scanDate)
	}

	record, err := s.Lookup(ctx, barcode)
	if err != nil {
		return domain.NutritionRecord{}, err
	}
	record = record.WithScanDate(scanDate)

	if err := s.Add(ctx, userID, collection, record); err != nil {
		return domain.NutritionRecord{}, err
	}

	s.logger.Info("product scanned",
		zap.String("userID", userID),
		zap.String("collection", string(collection)),
		zap.String("barcode", record.Barcode),
		zap.String("scanDate", record.ScanDate),
	)
	return record, nil
}

// Add stores an already-resolved record.
func (s *ScanService) Add(ctx context.Context, userID string, collection domain.Collection, record domain.NutritionRecord) error {
	err := s.store.Add(ctx, userID, collection, record)
	s.metrics.ObserveStore("add", err)
	if err != nil {
		return err
	}
	s.feed.Publish(userID, ChangeRecords)
	return nil
}

// List returns the records of a user's collection in store order.
func (s *ScanService) List(ctx context.Context, userID string, collection domain.Collection) ([]domain.NutritionRecord, error) {
	records, err := s.store.List(ctx, userID, collection)
	s.metrics.ObserveStore("list", err)
	return records, err
}

// Delete removes a record; deleting a missing barcode succeeds.
func (s *ScanService) Delete(ctx context.Context, userID string, collection domain.Collection, barcode string) error {
	err := s.store.Delete(ctx, userID, collection, barcode)
	s.metrics.ObserveStore("delete", err)
	if err != nil {
		return err
	}
	s.feed.Publish(userID, ChangeRecords)
	return nil
}

// CatalogRecord reads a product from the shared catalog.
func (s *ScanService) CatalogRecord(ctx context.Context, barcode string) (domain.NutritionRecord, error) {
	if barcode == "" {
		return domain.NutritionRecord{}, fmt.Errorf("%w: barcode is required", domain.ErrInvalidRequest)
	}
	record, err := s.store.Catalog().Get(ctx, barcode)
	if !errors.Is(err, domain.ErrProductNotFound) {
		s.metrics.ObserveStore("catalog_get", err)
	}
	return record, err
}

// SetMood records the user's mood for a date (yyyy-MM-dd or dd-MM-yyyy).
func (s *ScanService) SetMood(ctx context.Context, userID, date, mood string) error {
	err := s.store.SetMood(ctx, userID, domain.MoodRecord{Date: date, Mood: mood})
	s.metrics.ObserveStore("set_mood", err)
	if err != nil {
		return err
	}
	s.feed.Publish(userID, ChangeMoods)
	return nil
}

// ListMoods returns every mood the user recorded.
func (s *ScanService) ListMoods(ctx context.Context, userID string) ([]domain.MoodRecord, error) {
	moods, err := s.store.ListMoods(ctx, userID)
	s.metrics.ObserveStore("list_moods", err)
	return moods, err
}
