package service

import (
	"fmt"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/pkg/apperror"

	"github.com/shopspring/decimal"
)

// FixedRateConverter implements ports.CurrencyConverter for one canonical
// currency and one foreign currency at a fixed rate.
type FixedRateConverter struct {
	canonical string
	foreign   string
	rate      decimal.Decimal // canonical units per foreign unit
}

// NewFixedRateConverter parses rate and builds the converter.
func NewFixedRateConverter(canonical, foreign, rate string) (*FixedRateConverter, error) {
	r, err := decimal.NewFromString(rate)
	if err != nil {
		return nil, fmt.Errorf("parse conversion rate %q: %w", rate, err)
	}
	if !r.IsPositive() {
		return nil, fmt.Errorf("conversion rate must be positive, got %s", r)
	}

	canonical = domain.NormalizeCurrency(canonical)
	foreign = domain.NormalizeCurrency(foreign)
	if canonical == "" || foreign == "" || canonical == foreign {
		return nil, fmt.Errorf("invalid currency pair %q/%q", canonical, foreign)
	}

	return &FixedRateConverter{canonical: canonical, foreign: foreign, rate: r}, nil
}

// Canonical returns the currency balances are stored in.
func (c *FixedRateConverter) Canonical() string { return c.canonical }

// Foreign returns the one other currency the converter accepts.
func (c *FixedRateConverter) Foreign() string { return c.foreign }

// Convert restates req.Amount from req.From into req.To. Results are not
// rounded; division carries decimal.DivisionPrecision digits.
func (c *FixedRateConverter) Convert(req domain.ConversionRequest) (decimal.Decimal, error) {
	from := domain.NormalizeCurrency(req.From)
	to := domain.NormalizeCurrency(req.To)
	if to == "" {
		to = c.canonical
	}

	switch {
	case from == c.canonical && to == c.canonical:
		return req.Amount, nil
	case from == c.foreign && to == c.canonical:
		return req.Amount.Mul(c.rate), nil
	case from == c.canonical && to == c.foreign:
		return req.Amount.Div(c.rate), nil
	default:
		return decimal.Zero, apperror.ErrUnsupportedCurrencyPair(from, to)
	}
}
