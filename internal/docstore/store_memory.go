package docstore

import (
	"context"
	"sync"

	"certflow/pkg/domain"
	"certflow/pkg/platform/sentinel"
)

// InMemoryStore keeps uploaded files in process memory. Reads return deep
// copies so callers never alias store-owned state.
type InMemoryStore struct {
	mu    sync.RWMutex
	files map[domain.FileID]*File
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{files: make(map[domain.FileID]*File)}
}

func (s *InMemoryStore) Save(_ context.Context, file *File) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[file.ID] = file.Clone()
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, id domain.FileID) (*File, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	file, ok := s.files[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return file.Clone(), nil
}

// ListByIDs resolves the given IDs in order; unknown IDs are skipped.
func (s *InMemoryStore) ListByIDs(_ context.Context, ids []domain.FileID) ([]*File, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*File, 0, len(ids))
	for _, id := range ids {
		if file, ok := s.files[id]; ok {
			out = append(out, file.Clone())
		}
	}
	return out, nil
}

func (s *InMemoryStore) Delete(_ context.Context, id domain.FileID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.files[id]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.files, id)
	return nil
}
