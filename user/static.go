package user

import (
	"context"
	"fmt"
	"sync"
)

// Static is an in-memory Directory, useful for tests and single-node setups.
type Static struct {
	mu     sync.RWMutex
	byName map[string]*User
}

// NewStatic creates a directory holding users.
func NewStatic(users ...*User) *Static {
	s := &Static{byName: make(map[string]*User, len(users))}
	for _, u := range users {
		s.Put(u)
	}
	return s
}

// Put adds or replaces a user.
func (s *Static) Put(u *User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *u
	s.byName[u.Name] = &cp
}

// Delete removes a user by name.
func (s *Static) Delete(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byName, name)
}

// GetByName implements Directory.
func (s *Static) GetByName(_ context.Context, name string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.byName[name]
	if !ok {
		return nil, fmt.Errorf("user %q: %w", name, ErrNotFound)
	}
	cp := *u
	return &cp, nil
}
