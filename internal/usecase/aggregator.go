package usecase

import (
	"sort"
	"time"

	"github.com/moodbite/backend/internal/domain"
)

// DefaultSugarLimit is the daily sugar threshold in grams.
const DefaultSugarLimit = 50.0

// Advisory tips, keyed by mood and by whether the daily sugar limit is exceeded.
const (
	TipGoodOver      = "Even when you're feeling good, watch your sugar intake!"
	TipGoodWithin    = "Keep up the good work!"
	TipRegularOver   = "Try cutting back on sugar to boost your mood."
	TipRegularWithin = "You're doing fine, keep balancing your meals!"
	TipBadOver       = "High sugar may be affecting your mood. Consider reducing it."
	TipBadWithin     = "Your sugar intake is fine. Try some exercise or rest to feel better."
	TipFallback      = "Track your mood and diet to get personalized tips."
)

// NormalizeDate converts a yyyy-MM-dd date to dd-MM-yyyy. Dates already in
// dd-MM-yyyy and unparsable strings are returned unchanged; an empty string
// becomes domain.NoDateKey.
func NormalizeDate(s string) string {
	if s == "" {
		return domain.NoDateKey
	}
	if t, err := time.Parse(domain.ScanDateLayout, s); err == nil {
		return t.Format(domain.DisplayDateLayout)
	}
	return s
}

// BucketByDate groups records by normalized scan date, keeping input order
// inside each bucket.
func BucketByDate(records []domain.NutritionRecord) map[string][]domain.NutritionRecord {
	buckets := make(map[string][]domain.NutritionRecord)
	for _, r := range records {
		key := NormalizeDate(r.ScanDate)
		buckets[key] = append(buckets[key], r)
	}
	return buckets
}

// DailySugarTotal sums the sugars of the bucket for date. date may be given
// in either layout.
func DailySugarTotal(records []domain.NutritionRecord, date string) float64 {
	key := NormalizeDate(date)
	var total float64
	for _, r := range records {
		if NormalizeDate(r.ScanDate) == key {
			total += r.Sugars
		}
	}
	return total
}

// ComputeTotals sums nutrients across all records, regardless of date.
func ComputeTotals(records []domain.NutritionRecord) domain.Totals {
	var t domain.Totals
	for _, r := range records {
		t.Energy += r.EnergyKcal
		t.Sugar += r.Sugars
		t.Carbohydrates += r.Carbohydrates
		t.Fat += r.Fat
		t.Protein += r.Proteins
	}
	return t
}

// PercentOfDailyValue expresses totals as percentages of the reference values.
// A zero reference yields 0.
func PercentOfDailyValue(t domain.Totals, dv domain.DailyValues) domain.Totals {
	pct := func(v, ref float64) float64 {
		if ref <= 0 {
			return 0
		}
		return v / ref * 100
	}
	return domain.Totals{
		Energy:        pct(t.Energy, dv.Energy),
		Sugar:         pct(t.Sugar, dv.Sugar),
		Carbohydrates: pct(t.Carbohydrates, dv.Carbohydrates),
		Fat:           pct(t.Fat, dv.Fat),
		Protein:       pct(t.Protein, dv.Protein),
	}
}

// SortedDates returns the bucket keys in ascending chronological order.
// Keys that do not parse as dd-MM-yyyy sort as the Unix epoch; ties are
// ordered by key so the result is deterministic.
func SortedDates(buckets map[string][]domain.NutritionRecord) []string {
	type keyed struct {
		key string
		at  time.Time
	}

	keys := make([]keyed, 0, len(buckets))
	for k := range buckets {
		at, err := time.Parse(domain.DisplayDateLayout, k)
		if err != nil {
			at = time.Unix(0, 0).UTC()
		}
		keys = append(keys, keyed{key: k, at: at})
	}

	sort.Slice(keys, func(i, j int) bool {
		if !keys[i].at.Equal(keys[j].at) {
			return keys[i].at.Before(keys[j].at)
		}
		return keys[i].key < keys[j].key
	})

	dates := make([]string, len(keys))
	for i, k := range keys {
		dates[i] = k.key
	}
	return dates
}

// Aggregator evaluates the sugar limit and advisory tips.
type Aggregator struct {
	SugarLimit float64
}

// NewAggregator returns an aggregator; a non-positive limit falls back to
// DefaultSugarLimit.
func NewAggregator(sugarLimit float64) Aggregator {
	if sugarLimit <= 0 {
		sugarLimit = DefaultSugarLimit
	}
	return Aggregator{SugarLimit: sugarLimit}
}

// SugarExceedsLimit reports whether the sugar total of date is strictly above the limit.
func (a Aggregator) SugarExceedsLimit(records []domain.NutritionRecord, date string) bool {
	return DailySugarTotal(records, date) > a.SugarLimit
}

// TipFor returns the advisory tip for date. moods is keyed by normalized date.
func (a Aggregator) TipFor(records []domain.NutritionRecord, moods map[string]string, date string) string {
	return tip(moods[NormalizeDate(date)], a.SugarExceedsLimit(records, date))
}

func tip(mood string, exceeds bool) string {
	switch mood {
	case domain.MoodGood:
		if exceeds {
			return TipGoodOver
		}
		return TipGoodWithin
	case domain.MoodRegular:
		if exceeds {
			return TipRegularOver
		}
		return TipRegularWithin
	case domain.MoodBad:
		if exceeds {
			return TipBadOver
		}
		return TipBadWithin
	default:
		return TipFallback
	}
}

// MoodsByDate indexes mood entries by normalized date. Later entries win.
func MoodsByDate(moods []domain.MoodRecord) map[string]string {
	byDate := make(map[string]string, len(moods))
	for _, m := range moods {
		byDate[NormalizeDate(m.Date)] = m.Mood
	}
	return byDate
}
