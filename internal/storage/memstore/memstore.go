// Package memstore keeps user memory in process memory. It backs tests
// and ephemeral runs where no database path is configured.
package memstore

import (
	"context"
	"sort"
	"sync"

	"github.com/sandevgo/memora/internal/core"
)

type Store struct {
	mu    sync.RWMutex
	users map[string]*core.UserMemory
}

func New() *Store {
	return &Store{users: make(map[string]*core.UserMemory)}
}

func (s *Store) Get(_ context.Context, userID string) (*core.UserMemory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	mem, ok := s.users[userID]
	if !ok {
		return nil, nil
	}
	return mem.Clone(), nil
}

func (s *Store) Put(_ context.Context, userID string, mem *core.UserMemory) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.users[userID] = mem.Clone()
	return nil
}

func (s *Store) ListUsers(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]string, 0, len(s.users))
	for id := range s.users {
		users = append(users, id)
	}
	sort.Strings(users)
	return users, nil
}
