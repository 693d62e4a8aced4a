package domain

// NoDateKey is the bucket key for records scanned without a date.
const NoDateKey = "No Date"

// UnknownProductName is used when the catalog payload carries no product name.
const UnknownProductName = "Unknown"

// ScanDateLayout is the storage layout of NutritionRecord.ScanDate (yyyy-MM-dd).
const ScanDateLayout = "2006-01-02"

// DisplayDateLayout is the layout of dashboard bucket keys (dd-MM-yyyy).
const DisplayDateLayout = "02-01-2006"

// NutritionRecord is the canonical, default-filled nutrition record of a product.
// All quantities are per 100g. A record is never updated once created.
type NutritionRecord struct {
	Barcode       string  `json:"barcode" dynamodbav:"Barcode" validate:"required"`
	ProductName   string  `json:"productName" dynamodbav:"ProductName"`
	EnergyKj      float64 `json:"energyKj" dynamodbav:"EnergyKj" validate:"gte=0"`
	EnergyKcal    float64 `json:"energyKcal" dynamodbav:"EnergyKcal" validate:"gte=0"`
	Carbohydrates float64 `json:"carbohydrates" dynamodbav:"Carbohydrates" validate:"gte=0"`
	Sugars        float64 `json:"sugars" dynamodbav:"Sugars" validate:"gte=0"`
	Fat           float64 `json:"fat" dynamodbav:"Fat" validate:"gte=0"`
	Proteins      float64 `json:"proteins" dynamodbav:"Proteins" validate:"gte=0"`
	ScanDate      string  `json:"scanDate" dynamodbav:"ScanDate" validate:"omitempty,datetime=2006-01-02"`
}

// WithScanDate returns a copy of the record stamped with the given date.
func (r NutritionRecord) WithScanDate(date string) NutritionRecord {
	r.ScanDate = date
	return r
}

// Collection names a per-user record collection.
type Collection string

const (
	// CollectionScanned holds every product a user scanned.
	CollectionScanned Collection = "scanned_foods"
	// CollectionDiet holds the products a user actually ate; dashboards read it.
	CollectionDiet Collection = "diet_foods"
)

// Valid reports whether c is a known collection.
func (c Collection) Valid() bool {
	return c == CollectionScanned || c == CollectionDiet
}

// Mood labels recognised by the advisory tips. Any other string is accepted
// and stored as-is.
const (
	MoodGood    = "Good"
	MoodRegular = "Regular"
	MoodBad     = "Bad"
)

// MoodRecord is the mood a user reported for one date.
type MoodRecord struct {
	Date string `json:"date" dynamodbav:"Date" validate:"required"`
	Mood string `json:"mood" dynamodbav:"Mood" validate:"required"`
}
