package shared

import (
	"fmt"
	"math"
)

// Cents converts a money amount to integer cents, rounding half away from zero.
func Cents(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

// FromCents converts integer cents back to a money amount.
func FromCents(cents int64) float64 {
	return float64(cents) / 100
}

// ValidateAmount accepts positive amounts with at most two decimals, the
// precision money columns are stored with.
func ValidateAmount(field string, amount float64) error {
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return fmt.Errorf("%w: %s must be a number", ErrValidation, field)
	}
	cents := Cents(amount)
	if cents <= 0 {
		return fmt.Errorf("%w: %s must be at least 0.01", ErrValidation, field)
	}
	if FromCents(cents) != amount {
		return fmt.Errorf("%w: %s has more than two decimals", ErrValidation, field)
	}
	return nil
}
