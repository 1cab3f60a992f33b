package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const (
	idempotencyTTL = 24 * time.Hour
	// idempotencyClaimTTL bounds how long a crashed request can hold a key.
	idempotencyClaimTTL = 30 * time.Second
)

// WalletServiceImpl implements ports.WalletService.
type WalletServiceImpl struct {
	directory  ports.Directory
	walletRepo ports.WalletRepository
	validator  ports.BalanceValidator
	converter  ports.CurrencyConverter
	transactor ports.DBTransactor
	idempCache ports.IdempotencyCache // optional
	log        zerolog.Logger
}

// NewWalletService creates a new WalletServiceImpl. idempCache may be nil,
// in which case idempotency keys are ignored.
func NewWalletService(
	directory ports.Directory,
	walletRepo ports.WalletRepository,
	validator ports.BalanceValidator,
	converter ports.CurrencyConverter,
	transactor ports.DBTransactor,
	idempCache ports.IdempotencyCache,
	log zerolog.Logger,
) *WalletServiceImpl {
	return &WalletServiceImpl{
		directory:  directory,
		walletRepo: walletRepo,
		validator:  validator,
		converter:  converter,
		transactor: transactor,
		idempCache: idempCache,
		log:        log,
	}
}

// CreateWallet opens a wallet through the directory.
func (s *WalletServiceImpl) CreateWallet(ctx context.Context, req ports.CreateWalletRequest) (*domain.Wallet, error) {
	return s.directory.CreateWallet(ctx, req.UserID, req.InitialBalance, req.Currency)
}

// Fund credits the user's wallet with amount converted to the canonical currency.
func (s *WalletServiceImpl) Fund(ctx context.Context, req ports.FundRequest) (*domain.Wallet, error) {
	if !req.Amount.IsPositive() || !domain.AmountInBounds(req.Amount) {
		return nil, apperror.ErrInvalidAmount()
	}

	idempKey := s.idempotencyKey(req.UserID, domain.OperationFund, req.IdempotencyKey)
	return s.once(ctx, idempKey, func() (*domain.Wallet, error) {
		return s.fund(ctx, req)
	})
}

func (s *WalletServiceImpl) fund(ctx context.Context, req ports.FundRequest) (*domain.Wallet, error) {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	wallet, err := s.lockWallet(ctx, dbTx, req.UserID)
	if err != nil {
		return nil, err
	}

	converted, err := s.toCanonical(req.Amount, req.Currency)
	if err != nil {
		return nil, err
	}

	newBalance := wallet.Balance.Add(converted)
	if err := s.commitBalance(ctx, dbTx, wallet, newBalance); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("wallet_id", wallet.ID.String()).
		Str("user_id", req.UserID.String()).
		Str("amount", req.Amount.String()).
		Str("currency", req.Currency).
		Str("credited", converted.String()).
		Msg("wallet funded")

	return wallet, nil
}

// Withdraw debits the user's wallet. An inactive owner and an insufficient
// balance both yield the same OperationNotAllowed error.
func (s *WalletServiceImpl) Withdraw(ctx context.Context, req ports.WithdrawRequest) (*domain.Wallet, error) {
	if !req.Amount.IsPositive() || !domain.AmountInBounds(req.Amount) {
		return nil, apperror.ErrInvalidAmount()
	}

	converted, err := s.toCanonical(req.Amount, req.Currency)
	if err != nil {
		return nil, err
	}

	idempKey := s.idempotencyKey(req.UserID, domain.OperationWithdraw, req.IdempotencyKey)
	return s.once(ctx, idempKey, func() (*domain.Wallet, error) {
		return s.withdraw(ctx, req, converted)
	})
}

func (s *WalletServiceImpl) withdraw(ctx context.Context, req ports.WithdrawRequest, converted decimal.Decimal) (*domain.Wallet, error) {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	wallet, err := s.lockWallet(ctx, dbTx, req.UserID)
	if err != nil {
		return nil, err
	}

	active, err := s.directory.IsActiveUser(ctx, wallet.UserID)
	if err != nil {
		return nil, err
	}
	if !active {
		s.denyWithdrawal(wallet, "inactive_user")
		return nil, apperror.ErrOperationNotAllowed()
	}

	sufficient, err := s.validator.HasSufficientBalance(ctx, dbTx, wallet.ID, converted)
	if err != nil {
		return nil, err
	}
	if !sufficient {
		s.denyWithdrawal(wallet, "insufficient_balance")
		return nil, apperror.ErrOperationNotAllowed()
	}

	newBalance := wallet.Balance.Sub(converted)
	if err := s.commitBalance(ctx, dbTx, wallet, newBalance); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("wallet_id", wallet.ID.String()).
		Str("user_id", req.UserID.String()).
		Str("amount", req.Amount.String()).
		Str("currency", req.Currency).
		Str("debited", converted.String()).
		Msg("wallet withdrawn")

	return wallet, nil
}

// Convert quotes req for an active user. No wallet is read or written.
func (s *WalletServiceImpl) Convert(ctx context.Context, userID uuid.UUID, req domain.ConversionRequest) (*domain.Money, error) {
	if !domain.AmountInBounds(req.Amount) {
		return nil, apperror.ErrInvalidAmount()
	}
	if _, err := s.requireActiveUser(ctx, userID); err != nil {
		return nil, err
	}

	amount, err := s.converter.Convert(req)
	if err != nil {
		return nil, err
	}

	to := domain.NormalizeCurrency(req.To)
	if to == "" {
		to = s.converter.Canonical()
	}
	return &domain.Money{Amount: amount, Currency: to}, nil
}

// GetBalances returns the canonical balance and its foreign equivalent,
// both rounded to two decimals.
func (s *WalletServiceImpl) GetBalances(ctx context.Context, userID uuid.UUID) (*domain.Balances, error) {
	if _, err := s.requireActiveUser(ctx, userID); err != nil {
		return nil, err
	}

	wallet, err := s.directory.GetWalletByOwner(ctx, userID)
	if err != nil {
		return nil, err
	}
	if wallet == nil {
		return nil, apperror.ErrWalletNotFound()
	}

	foreign, err := s.converter.Convert(domain.ConversionRequest{
		Amount: wallet.Balance,
		From:   s.converter.Canonical(),
		To:     s.converter.Foreign(),
	})
	if err != nil {
		return nil, err
	}

	return &domain.Balances{
		UserID:    userID,
		Canonical: domain.Money{Amount: wallet.Balance.Round(2), Currency: s.converter.Canonical()},
		Foreign:   domain.Money{Amount: foreign.Round(2), Currency: s.converter.Foreign()},
	}, nil
}

func (s *WalletServiceImpl) requireActiveUser(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	user, err := s.directory.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, apperror.ErrUserNotFound()
	}
	if !user.IsActive() {
		return nil, apperror.ErrInactiveUser()
	}
	return user, nil
}

func (s *WalletServiceImpl) lockWallet(ctx context.Context, dbTx pgx.Tx, userID uuid.UUID) (*domain.Wallet, error) {
	wallet, err := s.walletRepo.GetByUserIDForUpdate(ctx, dbTx, userID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock wallet: %w", err))
	}
	if wallet == nil {
		return nil, apperror.ErrWalletNotFound()
	}
	return wallet, nil
}

func (s *WalletServiceImpl) toCanonical(amount decimal.Decimal, currency string) (decimal.Decimal, error) {
	from := domain.NormalizeCurrency(currency)
	if from == "" {
		from = s.converter.Canonical()
	}
	return s.converter.Convert(domain.ConversionRequest{
		Amount: amount,
		From:   from,
		To:     s.converter.Canonical(),
	})
}

// commitBalance persists newBalance, commits dbTx and updates wallet in place.
func (s *WalletServiceImpl) commitBalance(ctx context.Context, dbTx pgx.Tx, wallet *domain.Wallet, newBalance decimal.Decimal) error {
	if err := s.walletRepo.UpdateBalance(ctx, dbTx, wallet.ID, newBalance); err != nil {
		return apperror.InternalError(fmt.Errorf("update balance: %w", err))
	}
	if err := dbTx.Commit(ctx); err != nil {
		return apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	wallet.Balance = newBalance
	wallet.RecentTransactions++
	wallet.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *WalletServiceImpl) denyWithdrawal(wallet *domain.Wallet, reason string) {
	s.log.Debug().
		Str("wallet_id", wallet.ID.String()).
		Str("user_id", wallet.UserID.String()).
		Str("reason", reason).
		Msg("withdrawal denied")
}

func (s *WalletServiceImpl) idempotencyKey(userID uuid.UUID, op domain.Operation, clientKey string) string {
	if s.idempCache == nil || clientKey == "" {
		return ""
	}
	return domain.BuildIdempotencyKey(userID, op, clientKey)
}

// once runs mutate at most once per key. The key is claimed before any
// storage work, so a concurrent duplicate sees the claim and is turned away
// instead of mutating again. A failed mutation releases the claim; a
// committed one replaces it with the result for later replays. When Redis
// is unreachable the mutation runs unguarded.
func (s *WalletServiceImpl) once(ctx context.Context, key string, mutate func() (*domain.Wallet, error)) (*domain.Wallet, error) {
	if key == "" {
		return mutate()
	}

	claimed, err := s.idempCache.Claim(ctx, key, idempotencyClaimTTL)
	if err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("redis idempotency claim failed, processing request")
		return mutate()
	}
	if !claimed {
		return s.replay(ctx, key)
	}

	wallet, err := mutate()
	if err != nil {
		if relErr := s.idempCache.Release(ctx, key); relErr != nil {
			s.log.Warn().Err(relErr).Str("key", key).Msg("failed to release idempotency claim")
		}
		return nil, err
	}

	s.remember(ctx, key, wallet)
	return wallet, nil
}

// replay returns the wallet recorded for an already claimed key. A key whose
// mutation has not committed yet is reported as in progress.
func (s *WalletServiceImpl) replay(ctx context.Context, key string) (*domain.Wallet, error) {
	cached, err := s.idempCache.Get(ctx, key)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("idempotency lookup: %w", err))
	}
	if cached == nil || bytes.Equal(cached, domain.IdempotencyPending) {
		return nil, apperror.ErrIdempotencyInProgress()
	}

	var rec domain.IdempotencyRecord
	if err := json.Unmarshal(cached, &rec); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("decode idempotency record: %w", err))
	}

	s.log.Info().Str("key", key).Str("wallet_id", rec.Wallet.ID.String()).Msg("idempotent replay")
	return &rec.Wallet, nil
}

// remember replaces the claim with the committed result (best-effort).
func (s *WalletServiceImpl) remember(ctx context.Context, key string, wallet *domain.Wallet) {
	payload, err := json.Marshal(domain.IdempotencyRecord{Key: key, Wallet: *wallet, CreatedAt: time.Now().UTC()})
	if err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("failed to encode idempotency record")
		return
	}
	if err := s.idempCache.Set(ctx, key, payload, idempotencyTTL); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("failed to cache idempotency in redis")
	}
}
