package memory

import (
	"context"
	"sync"

	"wallet-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Store is a process-local backend for users and wallets. It honours the same
// contract as the Postgres adapter: a wallet read ...ForUpdate stays locked
// until the owning transaction commits or rolls back, and balance writes only
// become visible on commit.
type Store struct {
	mu      sync.RWMutex
	users   map[uuid.UUID]*domain.User
	emails  map[string]uuid.UUID
	wallets map[uuid.UUID]*domain.Wallet
	owners  map[uuid.UUID]uuid.UUID // user id -> wallet id
	locks   map[uuid.UUID]chan struct{}
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{
		users:   make(map[uuid.UUID]*domain.User),
		emails:  make(map[string]uuid.UUID),
		wallets: make(map[uuid.UUID]*domain.Wallet),
		owners:  make(map[uuid.UUID]uuid.UUID),
		locks:   make(map[uuid.UUID]chan struct{}),
	}
}

// Begin starts a transaction. It implements ports.DBTransactor.
func (s *Store) Begin(_ context.Context) (pgx.Tx, error) {
	return newTx(s), nil
}

// Ping implements ports.HealthChecker. The store is always reachable.
func (s *Store) Ping(_ context.Context) error {
	return nil
}

// Name implements ports.HealthChecker.
func (s *Store) Name() string {
	return "memory"
}

// lockFor returns the row lock for a wallet, creating it on first use.
func (s *Store) lockFor(walletID uuid.UUID) chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[walletID]
	if !ok {
		l = make(chan struct{}, 1)
		s.locks[walletID] = l
	}
	return l
}

func (s *Store) wallet(id uuid.UUID) (domain.Wallet, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.wallets[id]
	if !ok {
		return domain.Wallet{}, false
	}
	return *w, true
}

func (s *Store) walletIDByOwner(userID uuid.UUID) (uuid.UUID, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.owners[userID]
	return id, ok
}
