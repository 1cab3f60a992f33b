package service

import (
	"context"
	"fmt"

	"wallet-ledger/internal/core/ports"
	"wallet-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// BalanceValidatorImpl implements ports.BalanceValidator.
type BalanceValidatorImpl struct {
	walletRepo ports.WalletRepository
}

// NewBalanceValidator creates a new BalanceValidatorImpl.
func NewBalanceValidator(walletRepo ports.WalletRepository) *BalanceValidatorImpl {
	return &BalanceValidatorImpl{walletRepo: walletRepo}
}

// HasSufficientBalance reads the wallet under the caller's row lock and
// reports whether its balance covers amount. amount is never converted.
// It re-reads the row even when the caller already holds the lock, which
// costs one extra query per withdrawal on Postgres.
func (v *BalanceValidatorImpl) HasSufficientBalance(ctx context.Context, tx pgx.Tx, walletID uuid.UUID, amount decimal.Decimal) (bool, error) {
	wallet, err := v.walletRepo.GetByIDForUpdate(ctx, tx, walletID)
	if err != nil {
		return false, apperror.InternalError(fmt.Errorf("read wallet for balance check: %w", err))
	}
	if wallet == nil {
		return false, apperror.ErrWalletNotFound()
	}
	return wallet.CanCover(amount), nil
}
