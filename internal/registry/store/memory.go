package store

import (
	"context"
	"sync"
)

type swarm struct {
	// peers maps each member to whether it has the complete payload.
	peers    map[string]bool
	complete int
}

// MemoryStore is a Store for single-instance deployments.
type MemoryStore struct {
	mu     sync.RWMutex
	swarms map[string]*swarm
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{swarms: make(map[string]*swarm)}
}

func (m *MemoryStore) Join(_ context.Context, infoHash, member string, complete bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.swarms[infoHash]
	if !ok {
		s = &swarm{peers: make(map[string]bool)}
		m.swarms[infoHash] = s
	}

	if was, exists := s.peers[member]; exists && was {
		s.complete--
	}

	s.peers[member] = complete
	if complete {
		s.complete++
	}

	return nil
}

func (m *MemoryStore) Leave(_ context.Context, infoHash, member string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.swarms[infoHash]
	if !ok {
		return nil
	}

	complete, exists := s.peers[member]
	if !exists {
		return nil
	}

	delete(s.peers, member)

	if complete {
		s.complete--
	}

	if len(s.peers) == 0 {
		delete(m.swarms, infoHash)
	}

	return nil
}

func (m *MemoryStore) Counts(_ context.Context, infoHash string) (Counts, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.swarms[infoHash]
	if !ok {
		return Counts{}, nil
	}

	return Counts{Complete: s.complete, Incomplete: len(s.peers) - s.complete}, nil
}

func (m *MemoryStore) Stats(context.Context) (Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := Stats{Swarms: len(m.swarms)}
	for _, s := range m.swarms {
		stats.Peers += len(s.peers)
	}

	return stats, nil
}

func (m *MemoryStore) Close() error {
	return nil
}
