// Package payment holds the payment gateway adapters.
package payment

import (
	"strings"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/gstbill/internal/integration/domain"
)

const defaultCurrency = "INR"

var hundred = decimal.NewFromInt(100)

// minorUnits converts a major-unit amount (rupees) into the smallest currency
// unit (paise), rejecting non-positive values.
func minorUnits(amount decimal.Decimal) (int64, error) {
	if !amount.IsPositive() {
		return 0, domain.ErrInvalidAmount
	}
	return amount.Mul(hundred).Round(0).IntPart(), nil
}

func currencyOr(currency string) string {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency == "" {
		return defaultCurrency
	}
	return currency
}
