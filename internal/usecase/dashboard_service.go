package usecase

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/moodbite/backend/internal/domain"
)

// DashboardServiceConfig holds configuration for the dashboard service
type DashboardServiceConfig struct {
	SugarLimit  float64
	DailyValues domain.DailyValues
}

// DashboardService combines a user's diet records with their moods.
type DashboardService struct {
	records     domain.RecordStore
	moods       domain.MoodStore
	aggregator  Aggregator
	dailyValues domain.DailyValues
}

// NewDashboardService creates a dashboard service. Zero config values fall
// back to DefaultSugarLimit and domain.DefaultDailyValues.
func NewDashboardService(records domain.RecordStore, moods domain.MoodStore, config DashboardServiceConfig) *DashboardService {
	dv := config.DailyValues
	if dv == (domain.DailyValues{}) {
		dv = domain.DefaultDailyValues
	}
	return &DashboardService{
		records:     records,
		moods:       moods,
		aggregator:  NewAggregator(config.SugarLimit),
		dailyValues: dv,
	}
}

// Build loads the diet collection and the mood entries concurrently and
// aggregates them into per-day summaries in chronological order.
func (s *DashboardService) Build(ctx context.Context, userID string) (*domain.Dashboard, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", domain.ErrInvalidRequest)
	}

	var (
		records []domain.NutritionRecord
		moods   []domain.MoodRecord
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		records, err = s.records.List(gctx, userID, domain.CollectionDiet)
		return err
	})
	g.Go(func() error {
		var err error
		moods, err = s.moods.ListMoods(gctx, userID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return s.Aggregate(userID, records, moods), nil
}

// Aggregate builds a dashboard from already loaded data.
func (s *DashboardService) Aggregate(userID string, records []domain.NutritionRecord, moods []domain.MoodRecord) *domain.Dashboard {
	buckets := BucketByDate(records)
	moodByDate := MoodsByDate(moods)
	totals := ComputeTotals(records)

	days := make([]domain.DaySummary, 0, len(buckets))
	for _, date := range SortedDates(buckets) {
		bucket := buckets[date]
		dayTotals := ComputeTotals(bucket)
		days = append(days, domain.DaySummary{
			Date:         date,
			Records:      bucket,
			Sugar:        dayTotals.Sugar,
			Energy:       dayTotals.Energy,
			ExceedsLimit: s.aggregator.SugarExceedsLimit(bucket, date),
			Mood:         moodByDate[date],
			Tip:          s.aggregator.TipFor(bucket, moodByDate, date),
		})
	}

	return &domain.Dashboard{
		UserID:       userID,
		Days:         days,
		Totals:       totals,
		PercentDaily: PercentOfDailyValue(totals, s.dailyValues),
		SugarLimit:   s.aggregator.SugarLimit,
	}
}
