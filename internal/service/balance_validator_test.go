package service

import (
	"context"
	"errors"
	"testing"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports/mocks"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestBalanceValidator_HasSufficientBalance(t *testing.T) {
	tests := []struct {
		name    string
		balance string
		amount  string
		want    bool
	}{
		{"greater", "500", "100", true},
		{"equal", "100.00", "100", true},
		{"short by a cent", "99.99", "100", false},
		{"empty wallet", "0", "0.01", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			walletRepo := mocks.NewMockWalletRepository(ctrl)
			v := NewBalanceValidator(walletRepo)

			ctx := context.Background()
			tx := &mockTx{}
			walletID := uuid.New()

			walletRepo.EXPECT().GetByIDForUpdate(ctx, tx, walletID).
				Return(&domain.Wallet{ID: walletID, Balance: decimal.RequireFromString(tt.balance)}, nil)

			ok, err := v.HasSufficientBalance(ctx, tx, walletID, decimal.RequireFromString(tt.amount))
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
		})
	}
}

func TestBalanceValidator_WalletNotFound(t *testing.T) {
	ctrl := gomock.NewController(t)
	walletRepo := mocks.NewMockWalletRepository(ctrl)
	v := NewBalanceValidator(walletRepo)

	ctx := context.Background()
	tx := &mockTx{}
	walletID := uuid.New()

	walletRepo.EXPECT().GetByIDForUpdate(ctx, tx, walletID).Return(nil, nil)

	ok, err := v.HasSufficientBalance(ctx, tx, walletID, decimal.NewFromInt(1))
	assert.False(t, ok)
	assertAppError(t, err, "WAL_001")
}

func TestBalanceValidator_StorageFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	walletRepo := mocks.NewMockWalletRepository(ctrl)
	v := NewBalanceValidator(walletRepo)

	ctx := context.Background()
	tx := &mockTx{}
	walletID := uuid.New()
	dbErr := errors.New("connection reset")

	walletRepo.EXPECT().GetByIDForUpdate(ctx, tx, walletID).Return(nil, dbErr)

	_, err := v.HasSufficientBalance(ctx, tx, walletID, decimal.NewFromInt(1))
	assertAppError(t, err, "SYS_001")
	assert.ErrorIs(t, err, dbErr)
}
