package service

import (
	"sync"

	"github.com/jose-valero/group-guard-bot/internal/domain"
)

// Stats mantiene los contadores por grupo y el global. Cada Increment toca ambos, el
// global nunca se recalcula a partir de los grupos.
type Stats struct {
	mu     sync.Mutex
	global domain.Counters
	groups map[int64]*domain.Counters
}

func NewStats() *Stats {
	return &Stats{groups: map[int64]*domain.Counters{}}
}

func (s *Stats) Increment(groupID int64, c domain.Counter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.groups[groupID]
	if !ok {
		g = &domain.Counters{}
		s.groups[groupID] = g
	}
	g.Inc(c)
	s.global.Inc(c)
}

// ResetGroup pone en cero los contadores del grupo. El global sigue siendo un total
// acumulado y sólo se resetea con ResetAll.
func (s *Stats) ResetGroup(groupID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.groups[groupID] = &domain.Counters{}
}

func (s *Stats) ResetAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.global = domain.Counters{}
	s.groups = map[int64]*domain.Counters{}
}

// Group devuelve una copia; un grupo nunca visto devuelve ceros.
func (s *Stats) Group(groupID int64) domain.Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	if g, ok := s.groups[groupID]; ok {
		return *g
	}
	return domain.Counters{}
}

func (s *Stats) Global() domain.Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.global
}

func (s *Stats) Snapshot() domain.StatsDocument {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc := domain.StatsDocument{Global: s.global, Groups: make(map[int64]domain.Counters, len(s.groups))}
	for gid, c := range s.groups {
		doc.Groups[gid] = *c
	}
	return doc
}

func (s *Stats) Restore(doc domain.StatsDocument) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.global = doc.Global
	s.groups = make(map[int64]*domain.Counters, len(doc.Groups))
	for gid, c := range doc.Groups {
		c := c
		s.groups[gid] = &c
	}
}
