package ports

import (
	"context"
	"time"

	"wallet-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

//go:generate mockgen -destination=mocks/mock_services.go -package=mocks wallet-ledger/internal/core/ports CurrencyConverter,BalanceValidator,Directory,WalletService,AuthService,HashService,TokenService,IdempotencyCache,RateLimitStore

// CurrencyConverter restates amounts across the fixed currency pair.
type CurrencyConverter interface {
	Convert(req domain.ConversionRequest) (decimal.Decimal, error)
	Canonical() string
	Foreign() string
}

// BalanceValidator checks a wallet's balance inside the caller's transaction.
// amount must already be in the canonical currency.
type BalanceValidator interface {
	HasSufficientBalance(ctx context.Context, tx pgx.Tx, walletID uuid.UUID, amount decimal.Decimal) (bool, error)
}

// Directory resolves and creates users and wallets.
type Directory interface {
	GetUser(ctx context.Context, userID uuid.UUID) (*domain.User, error)
	IsActiveUser(ctx context.Context, userID uuid.UUID) (bool, error)
	GetWalletByOwner(ctx context.Context, userID uuid.UUID) (*domain.Wallet, error)
	GetWalletByID(ctx context.Context, walletID uuid.UUID) (*domain.Wallet, error)
	CreateUser(ctx context.Context, params CreateUserParams) (*domain.User, error)
	CreateWallet(ctx context.Context, userID uuid.UUID, initialBalance decimal.Decimal, currency string) (*domain.Wallet, error)
}

// CreateUserParams holds validated input for user creation.
// PasswordHash is already hashed by the caller.
type CreateUserParams struct {
	Name         string
	Email        string
	PasswordHash string
	Age          *int
	Active       bool
}

// HashService handles password hashing (Argon2id).
type HashService interface {
	Hash(password string) (string, error)
	Verify(password string, hash string) (bool, error)
}

// TokenService handles JWT token operations.
type TokenService interface {
	Generate(userID uuid.UUID, email string) (string, time.Time, error)
	Validate(tokenString string) (*TokenClaims, error)
}

// TokenClaims holds the parsed JWT claims.
type TokenClaims struct {
	UserID uuid.UUID
	Email  string
}

// IdempotencyCache is the Redis-layer replay cache for mutations.
type IdempotencyCache interface {
	// Claim atomically reserves key with domain.IdempotencyPending. It
	// reports false when the key is already claimed or recorded.
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
	Get(ctx context.Context, key string) ([]byte, error) // Returns cached record JSON, the pending marker or nil
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// RateLimitStore counts requests per key in fixed windows.
type RateLimitStore interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (*RateLimitResult, error)
}

// RateLimitResult reports the outcome of a rate limit check.
type RateLimitResult struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// --- Service Ports (Business Logic) ---

// WalletService is the balance mutation engine.
type WalletService interface {
	CreateWallet(ctx context.Context, req CreateWalletRequest) (*domain.Wallet, error)
	Fund(ctx context.Context, req FundRequest) (*domain.Wallet, error)
	Withdraw(ctx context.Context, req WithdrawRequest) (*domain.Wallet, error)
	Convert(ctx context.Context, userID uuid.UUID, req domain.ConversionRequest) (*domain.Money, error)
	GetBalances(ctx context.Context, userID uuid.UUID) (*domain.Balances, error)
}

// CreateWalletRequest holds validated input for wallet creation.
// An empty Currency means the canonical currency.
type CreateWalletRequest struct {
	UserID         uuid.UUID
	InitialBalance decimal.Decimal
	Currency       string
}

// FundRequest holds validated input for a deposit.
type FundRequest struct {
	UserID         uuid.UUID
	Amount         decimal.Decimal
	Currency       string
	IdempotencyKey string // optional
}

// WithdrawRequest holds validated input for a withdrawal.
type WithdrawRequest struct {
	UserID         uuid.UUID
	Amount         decimal.Decimal
	Currency       string
	IdempotencyKey string // optional
}

// AuthService defines registration and login.
type AuthService interface {
	Register(ctx context.Context, req RegisterRequest) (*domain.User, error)
	Login(ctx context.Context, email, password string) (string, time.Time, error) // token, expiry, error
}

// RegisterRequest holds input for user registration.
type RegisterRequest struct {
	Name     string
	Email    string
	Password string
	Age      *int
	Active   *bool // nil = active
}
