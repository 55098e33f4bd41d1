package money

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Minor-unit scale per supported currency. UGX has no minor unit.
var scales = map[string]int32{
	"UGX": 0,
	"KES": 2,
	"TZS": 2,
	"USD": 2,
	"EUR": 2,
}

func Scale(currency string) (int32, bool) {
	s, ok := scales[currency]
	return s, ok
}

// Validate checks that amount is positive and does not carry more decimal
// places than the currency allows.
func Validate(amount decimal.Decimal, currency string) error {
	scale, ok := scales[currency]
	if !ok {
		return fmt.Errorf("unsupported currency %q", currency)
	}
	if !amount.IsPositive() {
		return fmt.Errorf("amount must be positive, got %s", amount)
	}
	if !amount.Equal(amount.Truncate(scale)) {
		return fmt.Errorf("amount %s has more than %d decimal places for %s", amount, scale, currency)
	}
	return nil
}

// Format renders an amount with its currency code for logs and receipts.
func Format(amount decimal.Decimal, currency string) string {
	scale, ok := scales[currency]
	if !ok {
		scale = 2
	}
	return amount.StringFixed(scale) + " " + currency
}
