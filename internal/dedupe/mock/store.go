package mock

import (
	"context"
	"sync"

	"github.com/bakkerme/digestbot/internal/core"
)

// Store is an in-memory core.Store. LoadErr is returned alongside an empty set,
// mirroring how real stores degrade.
type Store struct {
	LoadErr error
	SaveErr error

	mu    sync.Mutex
	links core.SeenSet
	loads int
	saves int
}

func NewStore(links ...string) *Store {
	return &Store{links: core.NewSeenSet(links...)}
}

func (s *Store) Load(ctx context.Context) (core.SeenSet, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loads++
	if s.LoadErr != nil {
		return core.NewSeenSet(), s.LoadErr
	}
	if s.links == nil {
		return core.NewSeenSet(), nil
	}
	return s.links.Clone(), nil
}

func (s *Store) Save(ctx context.Context, seen core.SeenSet) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves++
	if s.SaveErr != nil {
		return s.SaveErr
	}
	s.links = seen.Clone()
	return nil
}

// Links returns the persisted contents.
func (s *Store) Links() core.SeenSet {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.links == nil {
		return core.NewSeenSet()
	}
	return s.links.Clone()
}

func (s *Store) Loads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loads
}

func (s *Store) Saves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}
