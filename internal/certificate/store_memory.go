package certificate

import (
	"context"
	"sync"

	"certflow/pkg/domain"
	"certflow/pkg/platform/sentinel"
)

// MemoryStore is an in-memory Store keyed by application ID. One certificate
// per application; a second Save for the same application overwrites.
type MemoryStore struct {
	mu    sync.RWMutex
	byApp map[domain.ApplicationID]*Certificate
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byApp: make(map[domain.ApplicationID]*Certificate)}
}

func (s *MemoryStore) Save(_ context.Context, c *Certificate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *c
	s.byApp[c.ApplicationID] = &cp
	return nil
}

func (s *MemoryStore) GetByApplication(_ context.Context, appID domain.ApplicationID) (*Certificate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.byApp[appID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (s *MemoryStore) DeleteByApplication(_ context.Context, appID domain.ApplicationID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byApp, appID)
	return nil
}
