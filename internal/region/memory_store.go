package region

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore - хранилище регионов в памяти процесса
type MemoryStore struct {
	mu      sync.RWMutex
	regions map[string]map[string]Region // world -> region name -> region
}

// NewMemoryStore создаёт пустое хранилище
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{regions: make(map[string]map[string]Region)}
}

func (s *MemoryStore) Put(_ context.Context, worldName string, r Region) error {
	if err := r.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	byName, ok := s.regions[worldName]
	if !ok {
		byName = make(map[string]Region)
		s.regions[worldName] = byName
	}
	byName[r.Name] = r.clone()
	return nil
}

// List возвращает регионы мира, отсортированные по имени
func (s *MemoryStore) List(_ context.Context, worldName string) ([]Region, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byName := s.regions[worldName]
	out := make([]Region, 0, len(byName))
	for _, r := range byName {
		out = append(out, r.clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *MemoryStore) Remove(_ context.Context, worldName, regionName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.regions[worldName], regionName)
	return nil
}

func (s *MemoryStore) Replace(_ context.Context, worldName string, regions []Region) error {
	byName := make(map[string]Region, len(regions))
	for _, r := range regions {
		if err := r.Validate(); err != nil {
			return err
		}
		byName[r.Name] = r.clone()
	}

	s.mu.Lock()
	s.regions[worldName] = byName
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Drop(_ context.Context, worldName string) error {
	s.mu.Lock()
	delete(s.regions, worldName)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Close() error { return nil }
