package memory

import (
	"context"
	"sync"

	auth "cartsync/internal/usecase/auth_usecase"
)

// スタブAPI用のユーザー置き場（プロセス内のみ）
type UserStore struct {
	mu      sync.RWMutex
	byEmail map[string]auth.User
}

// DI
func NewUserStore() *UserStore {
	return &UserStore{byEmail: map[string]auth.User{}}
}

func (s *UserStore) Create(_ context.Context, u auth.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byEmail[u.Email]; ok {
		return auth.ErrEmailAlreadyExists
	}
	s.byEmail[u.Email] = u
	return nil
}

func (s *UserStore) FindByEmail(_ context.Context, email string) (auth.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.byEmail[email]
	if !ok {
		return auth.User{}, auth.ErrUserNotFound
	}
	return u, nil
}
