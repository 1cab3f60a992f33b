package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"wallet-ledger/internal/adapter/storage/memory"
	redisStore "wallet-ledger/internal/adapter/storage/redis"
	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/internal/core/ports/mocks"
	"wallet-ledger/pkg/apperror"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

// mockTx implements pgx.Tx for testing
type mockTx struct{ pgx.Tx }

func (m *mockTx) Rollback(_ context.Context) error { return nil }
func (m *mockTx) Commit(_ context.Context) error   { return nil }

func assertAppError(t *testing.T, err error, expectedCode string) {
	t.Helper()
	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, expectedCode, appErr.Code)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// ==================== Ledger scenarios (memory store) ====================

type ledger struct {
	svc     *WalletServiceImpl
	dir     *DirectoryServiceImpl
	wallets *memory.WalletRepo
}

func newLedger(t *testing.T) *ledger {
	t.Helper()
	store := memory.NewStore()
	users := memory.NewUserRepo(store)
	wallets := memory.NewWalletRepo(store)
	conv := newTestConverter(t)
	dir := NewDirectoryService(users, wallets, conv, zerolog.Nop())

	return &ledger{
		svc:     NewWalletService(dir, wallets, NewBalanceValidator(wallets), conv, store, nil, zerolog.Nop()),
		dir:     dir,
		wallets: wallets,
	}
}

func (l *ledger) user(t *testing.T, active bool) *domain.User {
	t.Helper()
	u, err := l.dir.CreateUser(context.Background(), ports.CreateUserParams{
		Name:         "Test User",
		Email:        uuid.NewString() + "@example.com",
		PasswordHash: "hash",
		Active:       active,
	})
	require.NoError(t, err)
	return u
}

func (l *ledger) walletFor(t *testing.T, active bool, balance string) (*domain.User, *domain.Wallet) {
	t.Helper()
	u := l.user(t, active)
	w, err := l.svc.CreateWallet(context.Background(), ports.CreateWalletRequest{UserID: u.ID, InitialBalance: dec(balance)})
	require.NoError(t, err)
	return u, w
}

func (l *ledger) balance(t *testing.T, userID uuid.UUID) decimal.Decimal {
	t.Helper()
	w, err := l.wallets.GetByUserID(context.Background(), userID)
	require.NoError(t, err)
	require.NotNil(t, w)
	return w.Balance
}

func TestWalletService_Fund_ForeignCurrency(t *testing.T) {
	l := newLedger(t)
	u, _ := l.walletFor(t, true, "500")

	w, err := l.svc.Fund(context.Background(), ports.FundRequest{UserID: u.ID, Amount: dec("1000"), Currency: "USD"})
	require.NoError(t, err)

	assert.True(t, dec("19200").Equal(w.Balance), "got %s", w.Balance)
	assert.Equal(t, 1, w.RecentTransactions)
	assert.True(t, dec("19200").Equal(l.balance(t, u.ID)))
}

func TestWalletService_Fund_AppliedExactlyOnce(t *testing.T) {
	l := newLedger(t)
	ctx := context.Background()
	u, _ := l.walletFor(t, true, "10")

	_, err := l.svc.Fund(ctx, ports.FundRequest{UserID: u.ID, Amount: dec("5.25"), Currency: "MXN"})
	require.NoError(t, err)

	b, err := l.svc.GetBalances(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, dec("15.25").Equal(b.Canonical.Amount), "got %s", b.Canonical.Amount)
}

func TestWalletService_Fund_Rejections(t *testing.T) {
	l := newLedger(t)
	u, _ := l.walletFor(t, true, "100")

	tests := []struct {
		name string
		req  ports.FundRequest
		code string
	}{
		{"zero amount", ports.FundRequest{UserID: u.ID, Amount: decimal.Zero, Currency: "MXN"}, "VAL_003"},
		{"negative amount", ports.FundRequest{UserID: u.ID, Amount: dec("-5"), Currency: "MXN"}, "VAL_003"},
		{"huge exponent", ports.FundRequest{UserID: u.ID, Amount: dec("1e30000000"), Currency: "MXN"}, "VAL_003"},
		{"above cap", ports.FundRequest{UserID: u.ID, Amount: dec("1000000000000001"), Currency: "USD"}, "VAL_003"},
		{"unsupported currency", ports.FundRequest{UserID: u.ID, Amount: dec("5"), Currency: "EUR"}, "FX_001"},
		{"no wallet", ports.FundRequest{UserID: uuid.New(), Amount: dec("5"), Currency: "MXN"}, "WAL_001"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := l.svc.Fund(context.Background(), tt.req)
			assertAppError(t, err, tt.code)
			assert.True(t, dec("100").Equal(l.balance(t, u.ID)))
		})
	}
}

func TestWalletService_Withdraw_ForeignCurrency(t *testing.T) {
	l := newLedger(t)
	u, _ := l.walletFor(t, true, "1870")

	w, err := l.svc.Withdraw(context.Background(), ports.WithdrawRequest{UserID: u.ID, Amount: dec("100"), Currency: "USD"})
	require.NoError(t, err)

	assert.True(t, w.Balance.IsZero(), "got %s", w.Balance)
	assert.True(t, l.balance(t, u.ID).IsZero())
}

func TestWalletService_Withdraw_EmptyWallet(t *testing.T) {
	l := newLedger(t)
	u, _ := l.walletFor(t, true, "0")

	_, err := l.svc.Withdraw(context.Background(), ports.WithdrawRequest{UserID: u.ID, Amount: dec("0.01"), Currency: "MXN"})
	assertAppError(t, err, "WAL_003")
	assert.True(t, l.balance(t, u.ID).IsZero())
}

func TestWalletService_Withdraw_InactiveOwnerIsIndistinguishable(t *testing.T) {
	l := newLedger(t)
	ctx := context.Background()

	inactive, _ := l.walletFor(t, false, "1000")
	broke, _ := l.walletFor(t, true, "1")

	_, errInactive := l.svc.Withdraw(ctx, ports.WithdrawRequest{UserID: inactive.ID, Amount: dec("10"), Currency: "MXN"})
	_, errBroke := l.svc.Withdraw(ctx, ports.WithdrawRequest{UserID: broke.ID, Amount: dec("10"), Currency: "MXN"})

	assertAppError(t, errInactive, "WAL_003")
	assertAppError(t, errBroke, "WAL_003")
	assert.Equal(t, errInactive.Error(), errBroke.Error())
	assert.True(t, dec("1000").Equal(l.balance(t, inactive.ID)))
}

func TestWalletService_Withdraw_Rejections(t *testing.T) {
	l := newLedger(t)
	u, _ := l.walletFor(t, true, "100")

	tests := []struct {
		name string
		req  ports.WithdrawRequest
		code string
	}{
		{"zero amount", ports.WithdrawRequest{UserID: u.ID, Amount: decimal.Zero, Currency: "MXN"}, "VAL_003"},
		{"negative amount", ports.WithdrawRequest{UserID: u.ID, Amount: dec("-1"), Currency: "MXN"}, "VAL_003"},
		{"too many decimals", ports.WithdrawRequest{UserID: u.ID, Amount: dec("1e-30000000"), Currency: "MXN"}, "VAL_003"},
		{"unsupported currency", ports.WithdrawRequest{UserID: u.ID, Amount: dec("1"), Currency: "JPY"}, "FX_001"},
		{"no wallet", ports.WithdrawRequest{UserID: uuid.New(), Amount: dec("1"), Currency: "MXN"}, "WAL_001"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := l.svc.Withdraw(context.Background(), tt.req)
			assertAppError(t, err, tt.code)
			assert.True(t, dec("100").Equal(l.balance(t, u.ID)))
		})
	}
}

func TestWalletService_Withdraw_ConcurrentNeverOverdraws(t *testing.T) {
	l := newLedger(t)
	u, _ := l.walletFor(t, true, "1000")

	const attempts = 25
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		denied    int
	)
	wg.Add(attempts)
	for i := 0; i < attempts; i++ {
		go func() {
			defer wg.Done()
			_, err := l.svc.Withdraw(context.Background(), ports.WithdrawRequest{UserID: u.ID, Amount: dec("100"), Currency: "MXN"})
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				succeeded++
				return
			}
			if apperror.Is(err, "WAL_003") {
				denied++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, succeeded)
	assert.Equal(t, attempts-10, denied)
	assert.True(t, l.balance(t, u.ID).IsZero(), "got %s", l.balance(t, u.ID))
}

func TestWalletService_Fund_ConcurrentSameKeyAppliesOnce(t *testing.T) {
	store := memory.NewStore()
	users := memory.NewUserRepo(store)
	wallets := memory.NewWalletRepo(store)
	conv := newTestConverter(t)
	dir := NewDirectoryService(users, wallets, conv, zerolog.Nop())

	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	l := &ledger{
		svc:     NewWalletService(dir, wallets, NewBalanceValidator(wallets), conv, store, redisStore.NewIdempotencyCache(rdb), zerolog.Nop()),
		dir:     dir,
		wallets: wallets,
	}
	u, _ := l.walletFor(t, true, "0")

	const attempts = 10
	var (
		wg         sync.WaitGroup
		mu         sync.Mutex
		applied    int
		inProgress int
	)
	wg.Add(attempts)
	for i := 0; i < attempts; i++ {
		go func() {
			defer wg.Done()
			w, err := l.svc.Fund(context.Background(), ports.FundRequest{
				UserID: u.ID, Amount: dec("100"), Currency: "MXN", IdempotencyKey: "same-key",
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				assert.True(t, dec("100").Equal(w.Balance), "got %s", w.Balance)
				applied++
			case apperror.Is(err, "IDEM_001"):
				inProgress++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, attempts, applied+inProgress)
	assert.True(t, dec("100").Equal(l.balance(t, u.ID)), "got %s", l.balance(t, u.ID))

	// Once settled, the key replays the committed result.
	w, err := l.svc.Fund(context.Background(), ports.FundRequest{
		UserID: u.ID, Amount: dec("100"), Currency: "MXN", IdempotencyKey: "same-key",
	})
	require.NoError(t, err)
	assert.True(t, dec("100").Equal(w.Balance))
	assert.True(t, dec("100").Equal(l.balance(t, u.ID)))
}

func TestWalletService_Convert(t *testing.T) {
	l := newLedger(t)
	ctx := context.Background()
	active := l.user(t, true)
	inactive := l.user(t, false)

	money, err := l.svc.Convert(ctx, active.ID, domain.ConversionRequest{Amount: dec("100"), From: "USD"})
	require.NoError(t, err)
	assert.True(t, dec("1870").Equal(money.Amount))
	assert.Equal(t, "MXN", money.Currency)

	money, err = l.svc.Convert(ctx, active.ID, domain.ConversionRequest{Amount: dec("1870"), From: "mxn", To: "usd"})
	require.NoError(t, err)
	assert.True(t, dec("100").Equal(money.Amount))
	assert.Equal(t, "USD", money.Currency)

	_, err = l.svc.Convert(ctx, active.ID, domain.ConversionRequest{Amount: dec("1e30000000"), From: "USD"})
	assertAppError(t, err, "VAL_003")

	_, err = l.svc.Convert(ctx, active.ID, domain.ConversionRequest{Amount: dec("1"), From: "EUR", To: "MXN"})
	assertAppError(t, err, "FX_001")

	_, err = l.svc.Convert(ctx, inactive.ID, domain.ConversionRequest{Amount: dec("1"), From: "USD"})
	assertAppError(t, err, "AUTH_003")

	_, err = l.svc.Convert(ctx, uuid.New(), domain.ConversionRequest{Amount: dec("1"), From: "USD"})
	assertAppError(t, err, "USR_001")
}

func TestWalletService_GetBalances(t *testing.T) {
	l := newLedger(t)
	ctx := context.Background()

	u, _ := l.walletFor(t, true, "1870")
	b, err := l.svc.GetBalances(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "MXN", b.Canonical.Currency)
	assert.Equal(t, "USD", b.Foreign.Currency)
	assert.True(t, dec("1870").Equal(b.Canonical.Amount))
	assert.True(t, dec("100").Equal(b.Foreign.Amount))

	// 100 / 18.70 = 5.3475... presented as 5.35
	u2, _ := l.walletFor(t, true, "100")
	b, err = l.svc.GetBalances(ctx, u2.ID)
	require.NoError(t, err)
	assert.True(t, dec("5.35").Equal(b.Foreign.Amount), "got %s", b.Foreign.Amount)

	inactive, _ := l.walletFor(t, false, "1")
	_, err = l.svc.GetBalances(ctx, inactive.ID)
	assertAppError(t, err, "AUTH_003")

	noWallet := l.user(t, true)
	_, err = l.svc.GetBalances(ctx, noWallet.ID)
	assertAppError(t, err, "WAL_001")
}

// ==================== Failure paths (gomock) ====================

type walletTestDeps struct {
	svc        *WalletServiceImpl
	directory  *mocks.MockDirectory
	walletRepo *mocks.MockWalletRepository
	validator  *mocks.MockBalanceValidator
	transactor *mocks.MockDBTransactor
	idempCache *mocks.MockIdempotencyCache
}

func setupWalletService(t *testing.T) *walletTestDeps {
	ctrl := gomock.NewController(t)
	d := &walletTestDeps{
		directory:  mocks.NewMockDirectory(ctrl),
		walletRepo: mocks.NewMockWalletRepository(ctrl),
		validator:  mocks.NewMockBalanceValidator(ctrl),
		transactor: mocks.NewMockDBTransactor(ctrl),
		idempCache: mocks.NewMockIdempotencyCache(ctrl),
	}
	d.svc = NewWalletService(d.directory, d.walletRepo, d.validator, newTestConverter(t), d.transactor, d.idempCache, zerolog.Nop())
	return d
}

func TestWalletService_Fund_BeginFails(t *testing.T) {
	d := setupWalletService(t)
	ctx := context.Background()

	d.transactor.EXPECT().Begin(ctx).Return(nil, errors.New("pool exhausted"))

	_, err := d.svc.Fund(ctx, ports.FundRequest{UserID: uuid.New(), Amount: dec("1"), Currency: "MXN"})
	assertAppError(t, err, "SYS_001")
}

func TestWalletService_Fund_UpdateFails(t *testing.T) {
	d := setupWalletService(t)
	ctx := context.Background()
	tx := &mockTx{}
	userID := uuid.New()
	wallet := &domain.Wallet{ID: uuid.New(), UserID: userID, Balance: dec("10")}

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.walletRepo.EXPECT().GetByUserIDForUpdate(ctx, tx, userID).Return(wallet, nil)
	d.walletRepo.EXPECT().UpdateBalance(ctx, tx, wallet.ID, gomock.Any()).Return(errors.New("disk full"))

	_, err := d.svc.Fund(ctx, ports.FundRequest{UserID: userID, Amount: dec("1"), Currency: "MXN"})
	assertAppError(t, err, "SYS_001")
}

func TestWalletService_Fund_CachesResult(t *testing.T) {
	d := setupWalletService(t)
	ctx := context.Background()
	tx := &mockTx{}
	userID := uuid.New()
	wallet := &domain.Wallet{ID: uuid.New(), UserID: userID, Balance: dec("10")}
	key := domain.BuildIdempotencyKey(userID, domain.OperationFund, "req-1")

	d.idempCache.EXPECT().Claim(ctx, key, idempotencyClaimTTL).Return(true, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.walletRepo.EXPECT().GetByUserIDForUpdate(ctx, tx, userID).Return(wallet, nil)
	d.walletRepo.EXPECT().UpdateBalance(ctx, tx, wallet.ID, gomock.Any()).
		DoAndReturn(func(_ context.Context, _ pgx.Tx, _ uuid.UUID, balance decimal.Decimal) error {
			assert.True(t, dec("28.7").Equal(balance), "got %s", balance)
			return nil
		})
	d.idempCache.EXPECT().Set(ctx, key, gomock.Any(), idempotencyTTL).Return(nil)

	got, err := d.svc.Fund(ctx, ports.FundRequest{UserID: userID, Amount: dec("1"), Currency: "USD", IdempotencyKey: "req-1"})
	require.NoError(t, err)
	assert.True(t, dec("28.7").Equal(got.Balance))
}

func TestWalletService_Fund_ReplaysCachedResult(t *testing.T) {
	d := setupWalletService(t)
	ctx := context.Background()
	userID := uuid.New()
	key := domain.BuildIdempotencyKey(userID, domain.OperationFund, "req-1")

	cached, err := json.Marshal(domain.IdempotencyRecord{
		Key:    key,
		Wallet: domain.Wallet{ID: uuid.New(), UserID: userID, Balance: dec("42"), Currency: "MXN"},
	})
	require.NoError(t, err)

	d.idempCache.EXPECT().Claim(ctx, key, idempotencyClaimTTL).Return(false, nil)
	d.idempCache.EXPECT().Get(ctx, key).Return(cached, nil)
	// No Begin: a replay must not touch storage.

	got, err := d.svc.Fund(ctx, ports.FundRequest{UserID: userID, Amount: dec("1"), Currency: "MXN", IdempotencyKey: "req-1"})
	require.NoError(t, err)
	assert.True(t, dec("42").Equal(got.Balance))
}

func TestWalletService_Fund_CacheDownFallsThrough(t *testing.T) {
	d := setupWalletService(t)
	ctx := context.Background()
	tx := &mockTx{}
	userID := uuid.New()
	wallet := &domain.Wallet{ID: uuid.New(), UserID: userID, Balance: dec("0")}
	key := domain.BuildIdempotencyKey(userID, domain.OperationFund, "req-2")

	d.idempCache.EXPECT().Claim(ctx, key, idempotencyClaimTTL).Return(false, errors.New("redis down"))
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.walletRepo.EXPECT().GetByUserIDForUpdate(ctx, tx, userID).Return(wallet, nil)
	d.walletRepo.EXPECT().UpdateBalance(ctx, tx, wallet.ID, gomock.Any()).Return(nil)
	// Unclaimed: nothing is written back to the cache.

	got, err := d.svc.Fund(ctx, ports.FundRequest{UserID: userID, Amount: dec("3"), Currency: "MXN", IdempotencyKey: "req-2"})
	require.NoError(t, err)
	assert.True(t, dec("3").Equal(got.Balance))
}

func TestWalletService_Fund_KeyInProgress(t *testing.T) {
	d := setupWalletService(t)
	ctx := context.Background()
	userID := uuid.New()
	key := domain.BuildIdempotencyKey(userID, domain.OperationFund, "req-3")

	d.idempCache.EXPECT().Claim(ctx, key, idempotencyClaimTTL).Return(false, nil)
	d.idempCache.EXPECT().Get(ctx, key).Return(domain.IdempotencyPending, nil)

	_, err := d.svc.Fund(ctx, ports.FundRequest{UserID: userID, Amount: dec("1"), Currency: "MXN", IdempotencyKey: "req-3"})
	assertAppError(t, err, "IDEM_001")
}

func TestWalletService_Withdraw_FailureReleasesClaim(t *testing.T) {
	d := setupWalletService(t)
	ctx := context.Background()
	userID := uuid.New()
	key := domain.BuildIdempotencyKey(userID, domain.OperationWithdraw, "req-4")

	d.idempCache.EXPECT().Claim(ctx, key, idempotencyClaimTTL).Return(true, nil)
	d.transactor.EXPECT().Begin(ctx).Return(nil, errors.New("pool exhausted"))
	d.idempCache.EXPECT().Release(ctx, key).Return(nil)

	_, err := d.svc.Withdraw(ctx, ports.WithdrawRequest{UserID: userID, Amount: dec("1"), Currency: "MXN", IdempotencyKey: "req-4"})
	assertAppError(t, err, "SYS_001")
}

func TestWalletService_Withdraw_ValidatorFailurePropagates(t *testing.T) {
	d := setupWalletService(t)
	ctx := context.Background()
	tx := &mockTx{}
	userID := uuid.New()
	wallet := &domain.Wallet{ID: uuid.New(), UserID: userID, Balance: dec("50")}

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.walletRepo.EXPECT().GetByUserIDForUpdate(ctx, tx, userID).Return(wallet, nil)
	d.directory.EXPECT().IsActiveUser(ctx, userID).Return(true, nil)
	d.validator.EXPECT().HasSufficientBalance(ctx, tx, wallet.ID, dec("10")).
		Return(false, apperror.InternalError(errors.New("timeout")))

	_, err := d.svc.Withdraw(ctx, ports.WithdrawRequest{UserID: userID, Amount: dec("10"), Currency: "MXN"})
	assertAppError(t, err, "SYS_001")
}

func TestWalletService_Withdraw_InactiveSkipsBalanceCheck(t *testing.T) {
	d := setupWalletService(t)
	ctx := context.Background()
	tx := &mockTx{}
	userID := uuid.New()
	wallet := &domain.Wallet{ID: uuid.New(), UserID: userID, Balance: dec("50")}

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.walletRepo.EXPECT().GetByUserIDForUpdate(ctx, tx, userID).Return(wallet, nil)
	d.directory.EXPECT().IsActiveUser(ctx, userID).Return(false, nil)

	_, err := d.svc.Withdraw(ctx, ports.WithdrawRequest{UserID: userID, Amount: dec("10"), Currency: "MXN"})
	assertAppError(t, err, "WAL_003")
}

func TestWalletService_CreateWallet_Delegates(t *testing.T) {
	d := setupWalletService(t)
	ctx := context.Background()
	userID := uuid.New()
	want := &domain.Wallet{ID: uuid.New(), UserID: userID}

	d.directory.EXPECT().CreateWallet(ctx, userID, dec("5"), "USD").Return(want, nil)

	got, err := d.svc.CreateWallet(ctx, ports.CreateWalletRequest{UserID: userID, InitialBalance: dec("5"), Currency: "USD"})
	require.NoError(t, err)
	assert.Equal(t, want, got)
}
