package infra

import (
	"context"
	"maps"
	"sync"

	"reqstream-gateway/middleware/reqstream/domain"
)

// MemoryStatsStore conta descartes em memória. Útil para testes e desenvolvimento.
//
// Não faz expiração e não é indicada para produção.
type MemoryStatsStore struct {
	mu       sync.Mutex
	total    int64
	byRoute  map[string]int64
	bySource map[string]int64
	last     domain.StatsEvent
}

func NewMemoryStatsStore() *MemoryStatsStore {
	return &MemoryStatsStore{
		byRoute:  make(map[string]int64),
		bySource: make(map[string]int64),
	}
}

func (s *MemoryStatsStore) Record(_ context.Context, ev domain.StatsEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.total++
	s.byRoute[ev.Method+" "+ev.Path]++
	s.bySource[ev.Source]++
	s.last = ev
	return nil
}

func (s *MemoryStatsStore) Total() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total
}

func (s *MemoryStatsStore) Last() domain.StatsEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

func (s *MemoryStatsStore) ByRoute() map[string]int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return maps.Clone(s.byRoute)
}

func (s *MemoryStatsStore) BySource() map[string]int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return maps.Clone(s.bySource)
}
