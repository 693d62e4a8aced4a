package openfoodfacts

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/moodbite/backend/internal/domain"
)

// Open Food Facts nutriment keys for the per-100g values we keep
const (
	NutrimentEnergyKj      = "energy-kj_100g"
	NutrimentEnergyKcal    = "energy-kcal_100g"
	NutrimentCarbohydrates = "carbohydrates_100g"
	NutrimentSugars        = "sugars_100g"
	NutrimentFat           = "fat_100g"
	NutrimentProteins      = "proteins_100g"
)

// Normalize converts a catalog payload to the canonical record. It never
// fails: missing, null or unusable values become 0 and a missing name
// becomes "Unknown". The scan date is left empty.
func Normalize(raw domain.RawProductPayload) domain.NutritionRecord {
	record := domain.NutritionRecord{
		Barcode:     strings.TrimSpace(raw.Code),
		ProductName: domain.UnknownProductName,
	}

	product := raw.Product
	if product == nil {
		return record
	}

	if record.Barcode == "" {
		record.Barcode = strings.TrimSpace(product.Code)
	}
	if product.ProductName != nil && strings.TrimSpace(*product.ProductName) != "" {
		record.ProductName = *product.ProductName
	}

	n := product.Nutriments
	record.EnergyKj = nutrimentValue(n, NutrimentEnergyKj)
	record.EnergyKcal = nutrimentValue(n, NutrimentEnergyKcal)
	record.Carbohydrates = nutrimentValue(n, NutrimentCarbohydrates)
	record.Sugars = nutrimentValue(n, NutrimentSugars)
	record.Fat = nutrimentValue(n, NutrimentFat)
	record.Proteins = nutrimentValue(n, NutrimentProteins)

	return record
}

// PayloadFromSearchResult wraps a search result entry in the lookup payload
// shape so both ingestion paths go through Normalize.
func PayloadFromSearchResult(product domain.RawProduct) domain.RawProductPayload {
	p := product
	return domain.RawProductPayload{
		Code:    product.Code,
		Product: &p,
	}
}

// nutrimentValue coerces a nutriments entry to a non-negative float.
func nutrimentValue(nutriments map[string]any, key string) float64 {
	raw, ok := nutriments[key]
	if !ok || raw == nil {
		return 0
	}

	var v float64
	switch x := raw.(type) {
	case float64:
		v = x
	case float32:
		v = float64(x)
	case int:
		v = float64(x)
	case int64:
		v = float64(x)
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return 0
		}
		v = f
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0
		}
		v = f
	default:
		return 0
	}

	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}
