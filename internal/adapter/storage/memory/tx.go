package memory

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

var errForeignTx = errors.New("memory: transaction was not started by this store")

type stagedWrite struct {
	balance decimal.Decimal
	writes  int
}

// Tx is a Store transaction. Only Commit and Rollback are supported; the
// remaining pgx.Tx methods belong to SQL backends and panic if called.
type Tx struct {
	pgx.Tx

	store  *Store
	mu     sync.Mutex
	held   map[uuid.UUID]chan struct{}
	staged map[uuid.UUID]*stagedWrite
	closed bool
}

func newTx(s *Store) *Tx {
	return &Tx{
		store:  s,
		held:   make(map[uuid.UUID]chan struct{}),
		staged: make(map[uuid.UUID]*stagedWrite),
	}
}

// Commit applies staged balance writes and releases every row lock.
func (t *Tx) Commit(_ context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return pgx.ErrTxClosed
	}

	now := time.Now().UTC()
	t.store.mu.Lock()
	for id, w := range t.staged {
		if wallet, ok := t.store.wallets[id]; ok {
			wallet.Balance = w.balance
			wallet.RecentTransactions += w.writes
			wallet.UpdatedAt = now
		}
	}
	t.store.mu.Unlock()

	t.finish()
	return nil
}

// Rollback discards staged writes and releases every row lock.
func (t *Tx) Rollback(_ context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return pgx.ErrTxClosed
	}
	t.finish()
	return nil
}

func (t *Tx) finish() {
	for id, l := range t.held {
		<-l
		delete(t.held, id)
	}
	t.staged = nil
	t.closed = true
}

// lock acquires the row lock for walletID unless this transaction already
// holds it. It blocks until the lock is free or ctx is done.
func (t *Tx) lock(ctx context.Context, walletID uuid.UUID) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return pgx.ErrTxClosed
	}
	if _, ok := t.held[walletID]; ok {
		t.mu.Unlock()
		return nil
	}
	t.mu.Unlock()

	l := t.store.lockFor(walletID)
	select {
	case l <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		<-l
		return pgx.ErrTxClosed
	}
	t.held[walletID] = l
	return nil
}

// view overlays any staged balance on a committed wallet snapshot.
func (t *Tx) view(walletID uuid.UUID, balance decimal.Decimal, recent int) (decimal.Decimal, int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if w, ok := t.staged[walletID]; ok {
		return w.balance, recent + w.writes
	}
	return balance, recent
}

func (t *Tx) stage(walletID uuid.UUID, balance decimal.Decimal) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return pgx.ErrTxClosed
	}
	if _, ok := t.held[walletID]; !ok {
		return errors.New("memory: wallet row is not locked by this transaction")
	}
	w, ok := t.staged[walletID]
	if !ok {
		w = &stagedWrite{}
		t.staged[walletID] = w
	}
	w.balance = balance
	w.writes++
	return nil
}

func asTx(tx pgx.Tx) (*Tx, error) {
	t, ok := tx.(*Tx)
	if !ok || t == nil {
		return nil, errForeignTx
	}
	return t, nil
}
