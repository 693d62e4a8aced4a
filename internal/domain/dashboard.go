package domain

// Totals sums nutrient quantities over a set of records.
// Energy is expressed in kcal, everything else in grams.
type Totals struct {
	Energy        float64 `json:"energy"`
	Sugar         float64 `json:"sugar"`
	Carbohydrates float64 `json:"carbohydrates"`
	Fat           float64 `json:"fat"`
	Protein       float64 `json:"protein"`
}

// DailyValues are the reference daily intakes used for percent-of-daily-value.
type DailyValues struct {
	Energy        float64 `json:"energy"`
	Sugar         float64 `json:"sugar"`
	Carbohydrates float64 `json:"carbohydrates"`
	Fat           float64 `json:"fat"`
	Protein       float64 `json:"protein"`
}

// DefaultDailyValues is a 2000 kcal reference diet.
var DefaultDailyValues = DailyValues{
	Energy:        2000,
	Sugar:         50,
	Carbohydrates: 275,
	Fat:           78,
	Protein:       50,
}

// DaySummary aggregates the records of one date bucket.
type DaySummary struct {
	Date         string            `json:"date"`
	Records      []NutritionRecord `json:"records"`
	Sugar        float64           `json:"sugar"`
	Energy       float64           `json:"energy"`
	ExceedsLimit bool              `json:"exceedsLimit"`
	Mood         string            `json:"mood,omitempty"`
	Tip          string            `json:"tip"`
}

// Dashboard is the per-user diet overview, days in chronological order.
type Dashboard struct {
	UserID       string       `json:"userId"`
	Days         []DaySummary `json:"days"`
	Totals       Totals       `json:"totals"`
	PercentDaily Totals       `json:"percentDaily"`
	SugarLimit   float64      `json:"sugarLimit"`
}
