package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Money is an amount tagged with its ISO currency code.
type Money struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
}

// ConversionRequest asks for Amount expressed in From to be restated in To.
// An empty To means the canonical currency.
type ConversionRequest struct {
	Amount decimal.Decimal
	From   string
	To     string
}

// NormalizeCurrency upper-cases and trims a currency code.
func NormalizeCurrency(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Amount limits. Anything outside them is rejected before arithmetic so a
// tiny payload cannot force an enormous rescale.
const (
	MaxAmountScale    = 18 // digits after the decimal point
	MaxAmountExponent = 18
)

// MaxAmount caps the magnitude of a single amount.
var MaxAmount = decimal.New(1, 15)

// AmountInBounds reports whether d has a sane exponent and magnitude.
func AmountInBounds(d decimal.Decimal) bool {
	if exp := d.Exponent(); exp < -MaxAmountScale || exp > MaxAmountExponent {
		return false
	}
	return d.Abs().LessThanOrEqual(MaxAmount)
}
