package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// DirectoryServiceImpl implements ports.Directory over the user and wallet repositories.
// Lookups return (nil, nil) when nothing matches.
type DirectoryServiceImpl struct {
	userRepo   ports.UserRepository
	walletRepo ports.WalletRepository
	converter  ports.CurrencyConverter
	log        zerolog.Logger
}

// NewDirectoryService creates a new DirectoryServiceImpl.
func NewDirectoryService(
	userRepo ports.UserRepository,
	walletRepo ports.WalletRepository,
	converter ports.CurrencyConverter,
	log zerolog.Logger,
) *DirectoryServiceImpl {
	return &DirectoryServiceImpl{
		userRepo:   userRepo,
		walletRepo: walletRepo,
		converter:  converter,
		log:        log,
	}
}

func (s *DirectoryServiceImpl) GetUser(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get user: %w", err))
	}
	return user, nil
}

// IsActiveUser is true iff the user exists and is flagged active.
func (s *DirectoryServiceImpl) IsActiveUser(ctx context.Context, userID uuid.UUID) (bool, error) {
	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return false, err
	}
	return user.IsActive(), nil
}

func (s *DirectoryServiceImpl) GetWalletByOwner(ctx context.Context, userID uuid.UUID) (*domain.Wallet, error) {
	wallet, err := s.walletRepo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get wallet by owner: %w", err))
	}
	return wallet, nil
}

func (s *DirectoryServiceImpl) GetWalletByID(ctx context.Context, walletID uuid.UUID) (*domain.Wallet, error) {
	wallet, err := s.walletRepo.GetByID(ctx, walletID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get wallet: %w", err))
	}
	return wallet, nil
}

// CreateUser inserts a new user. The email must not be registered yet.
func (s *DirectoryServiceImpl) CreateUser(ctx context.Context, params ports.CreateUserParams) (*domain.User, error) {
	email := domain.NormalizeEmail(params.Email)

	existing, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("check email: %w", err))
	}
	if existing != nil {
		return nil, apperror.ErrEmailExists()
	}

	now := time.Now().UTC()
	user := &domain.User{
		ID:           uuid.New(),
		Name:         params.Name,
		Email:        email,
		PasswordHash: params.PasswordHash,
		Age:          params.Age,
		Active:       params.Active,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, domain.ErrUniqueViolation) {
			return nil, apperror.ErrEmailExists()
		}
		return nil, apperror.InternalError(fmt.Errorf("create user: %w", err))
	}

	s.log.Info().Str("user_id", user.ID.String()).Msg("user created")
	return user, nil
}

// CreateWallet opens the single wallet a user may own. initialBalance is
// expressed in currency and stored converted to the canonical currency.
func (s *DirectoryServiceImpl) CreateWallet(ctx context.Context, userID uuid.UUID, initialBalance decimal.Decimal, currency string) (*domain.Wallet, error) {
	if initialBalance.IsNegative() || !domain.AmountInBounds(initialBalance) {
		return nil, apperror.ErrInvalidAmount()
	}

	currency = domain.NormalizeCurrency(currency)
	if currency == "" {
		currency = s.converter.Canonical()
	}
	balance, err := s.converter.Convert(domain.ConversionRequest{
		Amount: initialBalance,
		From:   currency,
		To:     s.converter.Canonical(),
	})
	if err != nil {
		return nil, err
	}

	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, apperror.ErrUserNotFound()
	}

	existing, err := s.GetWalletByOwner(ctx, userID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, apperror.ErrWalletExists()
	}

	now := time.Now().UTC()
	wallet := &domain.Wallet{
		ID:        uuid.New(),
		UserID:    userID,
		Balance:   balance,
		Currency:  s.converter.Canonical(),
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.walletRepo.Create(ctx, wallet); err != nil {
		// Lost a race with a concurrent create for the same owner.
		if errors.Is(err, domain.ErrUniqueViolation) {
			return nil, apperror.ErrWalletExists()
		}
		return nil, apperror.InternalError(fmt.Errorf("create wallet: %w", err))
	}

	s.log.Info().
		Str("wallet_id", wallet.ID.String()).
		Str("user_id", userID.String()).
		Str("balance", wallet.Balance.String()).
		Msg("wallet created")

	return wallet, nil
}
