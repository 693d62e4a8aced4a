package domain

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// ValidateRecord checks a record before it is written to any store.
func ValidateRecord(record NutritionRecord) error {
	if err := validate.Struct(record); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	return nil
}

// ValidateBatch checks every record of a catalog batch. A batch may name
// each barcode only once.
func ValidateBatch(records []NutritionRecord) error {
	seen := make(map[string]struct{}, len(records))
	for _, r := range records {
		if err := ValidateRecord(r); err != nil {
			return err
		}
		if _, ok := seen[r.Barcode]; ok {
			return fmt.Errorf("%w: barcode %q appears more than once in batch", ErrInvalidRequest, r.Barcode)
		}
		seen[r.Barcode] = struct{}{}
	}
	return nil
}

// ValidateMood checks a mood entry before it is written.
func ValidateMood(mood MoodRecord) error {
	if err := validate.Struct(mood); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	return nil
}

// ValidateScope checks the user id and collection of a per-user operation.
func ValidateScope(userID string, collection Collection) error {
	if userID == "" {
		return fmt.Errorf("%w: user id is required", ErrInvalidRequest)
	}
	if !collection.Valid() {
		return fmt.Errorf("%w: unknown collection %q", ErrInvalidRequest, collection)
	}
	return nil
}
