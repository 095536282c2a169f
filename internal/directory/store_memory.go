package directory

import (
	"context"
	"sort"
	"sync"
	"time"

	"certflow/pkg/domain"
	"certflow/pkg/platform/sentinel"
)

// InMemoryStore keeps users in process memory. Reads return deep copies so
// callers never alias store-owned state.
type InMemoryStore struct {
	mu      sync.RWMutex
	users   map[domain.UserID]*User
	byEmail map[string]domain.UserID
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		users:   make(map[domain.UserID]*User),
		byEmail: make(map[string]domain.UserID),
	}
}

func (s *InMemoryStore) Create(_ context.Context, user *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[user.ID]; ok {
		return sentinel.ErrConflict
	}
	if _, ok := s.byEmail[user.Email]; ok {
		return sentinel.ErrConflict
	}
	s.users[user.ID] = user.Clone()
	s.byEmail[user.Email] = user.ID
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, id domain.UserID) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return user.Clone(), nil
}

func (s *InMemoryStore) GetByEmail(_ context.Context, email string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byEmail[email]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return s.users[id].Clone(), nil
}

func (s *InMemoryStore) List(_ context.Context) ([]*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*User, 0, len(s.users))
	for _, user := range s.users {
		out = append(out, user.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out, nil
}

func (s *InMemoryStore) Update(_ context.Context, user *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, ok := s.users[user.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if prev.Email != user.Email {
		if _, taken := s.byEmail[user.Email]; taken {
			return sentinel.ErrConflict
		}
		delete(s.byEmail, prev.Email)
		s.byEmail[user.Email] = user.ID
	}
	s.users[user.ID] = user.Clone()
	return nil
}

func (s *InMemoryStore) StampLogin(_ context.Context, id domain.UserID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	t := at
	user.LastLoginAt = &t
	return nil
}
