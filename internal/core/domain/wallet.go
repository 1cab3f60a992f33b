package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Wallet holds a single user's balance, always denominated in the canonical currency.
type Wallet struct {
	ID                 uuid.UUID       `json:"id"`
	UserID             uuid.UUID       `json:"user_id"`
	Balance            decimal.Decimal `json:"balance"`
	Currency           string          `json:"currency"`
	RecentTransactions int             `json:"recent_transactions"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

// CanCover reports whether the balance is at least amount.
func (w *Wallet) CanCover(amount decimal.Decimal) bool {
	return w.Balance.GreaterThanOrEqual(amount)
}

// Balances is a presentation view of a wallet in both supported currencies.
type Balances struct {
	UserID    uuid.UUID `json:"user_id"`
	Canonical Money     `json:"canonical"`
	Foreign   Money     `json:"foreign"`
}
