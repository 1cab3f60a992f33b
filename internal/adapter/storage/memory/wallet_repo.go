package memory

import (
	"context"
	"fmt"

	"wallet-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// WalletRepo implements ports.WalletRepository on a Store.
type WalletRepo struct {
	store *Store
}

// NewWalletRepo creates a WalletRepo backed by s.
func NewWalletRepo(s *Store) *WalletRepo {
	return &WalletRepo{store: s}
}

// Create inserts a wallet. The owner must exist and must not own a wallet yet.
func (r *WalletRepo) Create(_ context.Context, wallet *domain.Wallet) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[wallet.UserID]; !ok {
		return fmt.Errorf("memory: wallet owner %s does not exist", wallet.UserID)
	}
	if _, ok := s.owners[wallet.UserID]; ok {
		return domain.ErrUniqueViolation
	}
	if _, ok := s.wallets[wallet.ID]; ok {
		return domain.ErrUniqueViolation
	}

	w := *wallet
	s.wallets[w.ID] = &w
	s.owners[w.UserID] = w.ID
	return nil
}

func (r *WalletRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Wallet, error) {
	w, ok := r.store.wallet(id)
	if !ok {
		return nil, nil
	}
	return &w, nil
}

func (r *WalletRepo) GetByUserID(ctx context.Context, userID uuid.UUID) (*domain.Wallet, error) {
	id, ok := r.store.walletIDByOwner(userID)
	if !ok {
		return nil, nil
	}
	return r.GetByID(ctx, id)
}

// GetByIDForUpdate locks the wallet for the lifetime of tx and returns it
// as tx sees it, including balance writes staged earlier in tx.
func (r *WalletRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Wallet, error) {
	t, err := asTx(tx)
	if err != nil {
		return nil, err
	}
	if _, ok := r.store.wallet(id); !ok {
		return nil, nil
	}

	if err := t.lock(ctx, id); err != nil {
		return nil, fmt.Errorf("memory: lock wallet %s: %w", id, err)
	}

	w, ok := r.store.wallet(id)
	if !ok {
		return nil, nil
	}
	w.Balance, w.RecentTransactions = t.view(id, w.Balance, w.RecentTransactions)
	return &w, nil
}

func (r *WalletRepo) GetByUserIDForUpdate(ctx context.Context, tx pgx.Tx, userID uuid.UUID) (*domain.Wallet, error) {
	if _, err := asTx(tx); err != nil {
		return nil, err
	}
	id, ok := r.store.walletIDByOwner(userID)
	if !ok {
		return nil, nil
	}
	return r.GetByIDForUpdate(ctx, tx, id)
}

// UpdateBalance stages a new balance. The wallet must be locked by tx.
func (r *WalletRepo) UpdateBalance(_ context.Context, tx pgx.Tx, walletID uuid.UUID, balance decimal.Decimal) error {
	t, err := asTx(tx)
	if err != nil {
		return err
	}
	if _, ok := r.store.wallet(walletID); !ok {
		return fmt.Errorf("wallet not found: %s", walletID)
	}
	return t.stage(walletID, balance)
}
