package usecase

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/moodbite/backend/internal/domain"
	"github.com/moodbite/backend/internal/infrastructure/observability"
	"github.com/moodbite/backend/internal/infrastructure/openfoodfacts"
)

// SeedLockResource is the lock name seeders contend on.
const SeedLockResource = "catalog-seed"

// Seeder defaults.
const (
	DefaultSeedPageSize     = 100
	MaxSeedPageSize         = 100
	DefaultSeedMaxAttempts  = 3
	DefaultSeedRetryDelay   = 3 * time.Second
	DefaultSeedFetchTimeout = 60 * time.Second
	DefaultSeedLockTTL      = 5 * time.Minute
)

// SeedOutcome describes how a seeding run ended.
type SeedOutcome string

const (
	// SeedSeeded means a batch was written to an empty catalog
	SeedSeeded SeedOutcome = "seeded"
	// SeedSkipped means the catalog already had records
	SeedSkipped SeedOutcome = "skipped"
	// SeedGaveUp means every fetch attempt failed; the catalog stays empty
	SeedGaveUp SeedOutcome = "gave_up"
	// SeedLocked means another seeder holds the seed lock
	SeedLocked SeedOutcome = "locked"
)

// SeedReport summarizes a seeding run.
type SeedReport struct {
	Outcome  SeedOutcome `json:"outcome"`
	Attempts int         `json:"attempts"`
	Written  int         `json:"written"`
	Skipped  int         `json:"skipped"`
}

// SeederConfig holds configuration for the catalog seeder
type SeederConfig struct {
	PageSize     int
	MaxAttempts  int
	RetryDelay   time.Duration
	FetchTimeout time.Duration
	UseLock      bool
	LockTTL      time.Duration
}

// Seeder populates the shared catalog from the remote search endpoint.
type Seeder struct {
	client  domain.CatalogClient
	store   domain.Store
	logger  *zap.Logger
	metrics *observability.Collector
	config  SeederConfig
	owner   string

	sleep func(ctx context.Context, d time.Duration) error
}

// NewSeeder creates a seeder. Zero config values take the package defaults.
func NewSeeder(client domain.CatalogClient, store domain.Store, logger *zap.Logger, metrics *observability.Collector, config SeederConfig) *Seeder {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.PageSize <= 0 {
		config.PageSize = DefaultSeedPageSize
	}
	if config.PageSize > MaxSeedPageSize {
		config.PageSize = MaxSeedPageSize
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = DefaultSeedMaxAttempts
	}
	if config.RetryDelay < 0 {
		config.RetryDelay = 0
	}
	if config.FetchTimeout <= 0 {
		config.FetchTimeout = DefaultSeedFetchTimeout
	}
	if config.LockTTL <= 0 {
		config.LockTTL = DefaultSeedLockTTL
	}

	owner := uuid.NewString()
	if host, err := os.Hostname(); err == nil {
		owner = host + "/" + owner
	}

	return &Seeder{
		client:  client,
		store:   store,
		logger:  logger.Named("seeder"),
		metrics: metrics,
		config:  config,
		owner:   owner,
		sleep:   sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// SeedIfEmpty writes one page of catalog products when the catalog is empty.
// Exhausted transport retries are reported as SeedGaveUp with a nil error;
// store failures and other fetch errors are returned.
func (s *Seeder) SeedIfEmpty(ctx context.Context) (SeedReport, error) {
	if s.config.UseLock {
		lock, err := s.store.AcquireLock(ctx, SeedLockResource, s.owner, s.config.LockTTL)
		if err != nil {
			if errors.Is(err, domain.ErrLockHeld) {
				s.logger.Info("catalog seed already running elsewhere")
				return s.finish(SeedReport{Outcome: SeedLocked}), nil
			}
			return SeedReport{}, err
		}
		defer func() {
			if err := lock.Release(context.WithoutCancel(ctx)); err != nil {
				s.logger.Warn("failed to release seed lock", zap.Error(err))
			}
		}()
	}

	catalog := s.store.Catalog()
	empty, err := catalog.IsEmpty(ctx)
	s.metrics.ObserveStore("catalog_is_empty", err)
	if err != nil {
		return SeedReport{}, err
	}
	if !empty {
		s.logger.Info("catalog already populated, skipping seed")
		return s.finish(SeedReport{Outcome: SeedSkipped}), nil
	}

	payloads, attempts, err := s.fetchWithRetry(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return SeedReport{Attempts: attempts}, ctx.Err()
		}
		if !errors.Is(err, domain.ErrCatalogTransport) {
			return SeedReport{Attempts: attempts}, fmt.Errorf("fetch catalog page: %w", err)
		}
		s.logger.Error("giving up on catalog seed",
			zap.Int("attempts", attempts),
			zap.Error(err),
		)
		return s.finish(SeedReport{Outcome: SeedGaveUp, Attempts: attempts}), nil
	}

	records, skipped := normalizePage(payloads)

	err = catalog.PutBatch(ctx, records)
	s.metrics.ObserveStore("catalog_put_batch", err)
	if err != nil {
		return SeedReport{Attempts: attempts}, fmt.Errorf("write catalog batch: %w", err)
	}

	s.logger.Info("catalog seeded",
		zap.Int("written", len(records)),
		zap.Int("skipped", skipped),
		zap.Int("attempts", attempts),
	)
	return s.finish(SeedReport{
		Outcome:  SeedSeeded,
		Attempts: attempts,
		Written:  len(records),
		Skipped:  skipped,
	}), nil
}

// normalizePage converts a search page into catalog records keyed by barcode.
// Payloads without a code are skipped; a repeated barcode keeps its last
// occurrence at the position of the first and counts the rest as skipped.
func normalizePage(payloads []domain.RawProductPayload) ([]domain.NutritionRecord, int) {
	records := make([]domain.NutritionRecord, 0, len(payloads))
	index := make(map[string]int, len(payloads))
	skipped := 0
	for _, p := range payloads {
		record := openfoodfacts.Normalize(p)
		if record.Barcode == "" {
			skipped++
			continue
		}
		if i, ok := index[record.Barcode]; ok {
			records[i] = record
			skipped++
			continue
		}
		index[record.Barcode] = len(records)
		records = append(records, record)
	}
	return records, skipped
}

// fetchWithRetry retries transport failures only; any other error ends the loop.
func (s *Seeder) fetchWithRetry(ctx context.Context) ([]domain.RawProductPayload, int, error) {
	var lastErr error
	for attempt := 1; attempt <= s.config.MaxAttempts; attempt++ {
		s.metrics.ObserveSeedAttempt()

		payloads, err := s.fetchOnce(ctx)
		if err == nil {
			return payloads, attempt, nil
		}
		lastErr = err

		if !errors.Is(err, domain.ErrCatalogTransport) {
			return nil, attempt, err
		}

		s.logger.Warn("catalog fetch failed",
			zap.Int("attempt", attempt),
			zap.Int("maxAttempts", s.config.MaxAttempts),
			zap.Error(err),
		)

		if attempt < s.config.MaxAttempts {
			if err := s.sleep(ctx, s.config.RetryDelay); err != nil {
				return nil, attempt, err
			}
		}
	}
	return nil, s.config.MaxAttempts, lastErr
}

func (s *Seeder) fetchOnce(ctx context.Context) ([]domain.RawProductPayload, error) {
	ctx, cancel := context.WithTimeout(ctx, s.config.FetchTimeout)
	defer cancel()
	return s.client.Search(ctx, s.config.PageSize)
}

func (s *Seeder) finish(report SeedReport) SeedReport {
	s.metrics.ObserveSeedOutcome(string(report.Outcome))
	return report
}
