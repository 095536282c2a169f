package workflow

import (
	"context"
	"sort"
	"sync"
	"time"

	"certflow/pkg/domain"
	"certflow/pkg/platform/sentinel"
)

// InMemoryStore keeps applications in process memory. Reads return deep
// copies so callers never alias store-owned state.
type InMemoryStore struct {
	mu    sync.RWMutex
	apps  map[domain.ApplicationID]*Application
	tests map[domain.ApplicationID][]*Test
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		apps:  make(map[domain.ApplicationID]*Application),
		tests: make(map[domain.ApplicationID][]*Test),
	}
}

func (s *InMemoryStore) Create(_ context.Context, app *Application) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.apps[app.ID]; ok {
		return sentinel.ErrConflict
	}
	s.apps[app.ID] = app.Clone()
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, id domain.ApplicationID) (*Application, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	app, ok := s.apps[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return app.Clone(), nil
}

func (s *InMemoryStore) Update(_ context.Context, app *Application) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.apps[app.ID]; !ok {
		return sentinel.ErrNotFound
	}
	s.apps[app.ID] = app.Clone()
	return nil
}

func (s *InMemoryStore) Delete(_ context.Context, id domain.ApplicationID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.apps[id]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.apps, id)
	delete(s.tests, id)
	return nil
}

func (s *InMemoryStore) List(_ context.Context) ([]*Application, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Application, 0, len(s.apps))
	for _, app := range s.apps {
		out = append(out, app.Clone())
	}
	sortByCreatedAt(out)
	return out, nil
}

func (s *InMemoryStore) ListByApplicant(_ context.Context, applicantID domain.UserID) ([]*Application, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Application
	for _, app := range s.apps {
		if app.ApplicantID == applicantID {
			out = append(out, app.Clone())
		}
	}
	sortByCreatedAt(out)
	return out, nil
}

func (s *InMemoryStore) UpsertTest(_ context.Context, t *Test) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	records := s.tests[t.ApplicationID]
	for i := range records {
		if records[i].Key == t.Key {
			cp := *t
			cp.ID = records[i].ID
			cp.CreatedAt = records[i].CreatedAt
			cp.UpdatedAt = time.Now().UTC()
			records[i] = &cp
			return nil
		}
	}
	cp := *t
	s.tests[t.ApplicationID] = append(records, &cp)
	return nil
}

func (s *InMemoryStore) ListTests(_ context.Context, appID domain.ApplicationID) ([]*Test, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	records := s.tests[appID]
	out := make([]*Test, 0, len(records))
	for _, t := range records {
		cp := *t
		out = append(out, &cp)
	}
	return out, nil
}

func (s *InMemoryStore) DeleteTests(_ context.Context, appID domain.ApplicationID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tests, appID)
	return nil
}

func sortByCreatedAt(apps []*Application) {
	sort.Slice(apps, func(i, j int) bool {
		return apps[i].CreatedAt.Before(apps[j].CreatedAt)
	})
}
