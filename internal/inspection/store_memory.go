package inspection

import (
	"context"
	"sort"
	"sync"

	"certflow/pkg/domain"
	"certflow/pkg/platform/sentinel"
)

// InMemoryStore keeps inspection records in process memory. Reads return deep
// copies so callers never alias store-owned state.
type InMemoryStore struct {
	mu      sync.RWMutex
	records map[domain.InspectionID]*Inspection
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{records: make(map[domain.InspectionID]*Inspection)}
}

func (s *InMemoryStore) Save(_ context.Context, i *Inspection) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[i.ID] = i.Clone()
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, id domain.InspectionID) (*Inspection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return rec.Clone(), nil
}

func (s *InMemoryStore) Delete(_ context.Context, id domain.InspectionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[id]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.records, id)
	return nil
}

func (s *InMemoryStore) List(_ context.Context) ([]*Inspection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Inspection, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, rec.Clone())
	}
	sortByCreatedAt(out)
	return out, nil
}

func (s *InMemoryStore) ListByApplication(_ context.Context, appID domain.ApplicationID) ([]*Inspection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Inspection
	for _, rec := range s.records {
		if rec.ApplicationID == appID {
			out = append(out, rec.Clone())
		}
	}
	sortByCreatedAt(out)
	return out, nil
}

func sortByCreatedAt(records []*Inspection) {
	sort.Slice(records, func(i, j int) bool {
		return records[i].CreatedAt.Before(records[j].CreatedAt)
	})
}
