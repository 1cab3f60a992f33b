package dto

import (
	"errors"

	"wallet-ledger/internal/core/domain"

	"github.com/shopspring/decimal"
)

var (
	// ErrNotANumber is returned while decoding an amount that is not numeric.
	ErrNotANumber = errors.New("amount is not a number")
	// ErrAmountOutOfRange is returned for amounts past domain.AmountInBounds.
	ErrAmountOutOfRange = errors.New("amount out of range")
)

// Amount decodes a JSON number or numeric string into an exact decimal.
type Amount struct {
	decimal.Decimal
}

// UnmarshalJSON implements json.Unmarshaler.
func (a *Amount) UnmarshalJSON(b []byte) error {
	var d decimal.Decimal
	if err := d.UnmarshalJSON(b); err != nil {
		return ErrNotANumber
	}
	if !domain.AmountInBounds(d) {
		return ErrAmountOutOfRange
	}
	a.Decimal = d
	return nil
}

// OrZero returns the decimal, or zero when a is nil.
func (a *Amount) OrZero() decimal.Decimal {
	if a == nil {
		return decimal.Zero
	}
	return a.Decimal
}
