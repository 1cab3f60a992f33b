package memory

import (
	"context"

	"wallet-ledger/internal/core/domain"

	"github.com/google/uuid"
)

// UserRepo implements ports.UserRepository on a Store.
type UserRepo struct {
	store *Store
}

// NewUserRepo creates a UserRepo backed by s.
func NewUserRepo(s *Store) *UserRepo {
	return &UserRepo{store: s}
}

func (r *UserRepo) Create(_ context.Context, user *domain.User) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.emails[user.Email]; ok {
		return domain.ErrUniqueViolation
	}
	if _, ok := s.users[user.ID]; ok {
		return domain.ErrUniqueViolation
	}

	u := *user
	s.users[u.ID] = &u
	s.emails[u.Email] = u.ID
	return nil
}

func (r *UserRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.User, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (r *UserRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.emails[email]
	if !ok {
		return nil, nil
	}
	cp := *s.users[id]
	return &cp, nil
}
