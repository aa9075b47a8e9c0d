package battle

import (
	"sync"

	"github.com/park285/vocab-battle-bot/internal/domain"
)

// Store holds active matches. Implementations must be safe for concurrent use.
type Store interface {
	// Put registers a match; it fails with ErrPlayerBusy if either participant
	// is already indexed to another active match.
	Put(m *Match) error
	Get(id string) (*Match, bool)
	Delete(id string)
	ByPlayer(playerID string) (*Match, bool)
	ByHandle(h domain.OutboundHandle) []*Match
	List() []*Match
	Len() int
}

type memoryStore struct {
	mu       sync.RWMutex
	byID     map[string]*Match
	byPlayer map[string]string
	byHandle map[domain.OutboundHandle]map[string]struct{}
}

// NewMemoryStore returns the process-local active match registry.
func NewMemoryStore() Store {
	return &memoryStore{
		byID:     make(map[string]*Match),
		byPlayer: make(map[string]string),
		byHandle: make(map[domain.OutboundHandle]map[string]struct{}),
	}
}

func (s *memoryStore) Put(m *Match) error {
	if m == nil || m.ID == "" {
		return ErrInvalidArgs
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range m.order {
		if id, ok := s.byPlayer[p.PlayerID]; ok && id != m.ID {
			return ErrPlayerBusy
		}
	}
	s.byID[m.ID] = m
	for _, p := range m.order {
		s.byPlayer[p.PlayerID] = m.ID
		if p.Handle == "" {
			continue
		}
		set := s.byHandle[p.Handle]
		if set == nil {
			set = make(map[string]struct{})
			s.byHandle[p.Handle] = set
		}
		set[m.ID] = struct{}{}
	}
	return nil
}

func (s *memoryStore) Get(id string) (*Match, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.byID[id]
	return m, ok
}

func (s *memoryStore) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.byID[id]
	if !ok {
		return
	}
	delete(s.byID, id)
	for _, p := range m.order {
		if s.byPlayer[p.PlayerID] == id {
			delete(s.byPlayer, p.PlayerID)
		}
		if set := s.byHandle[p.Handle]; set != nil {
			delete(set, id)
			if len(set) == 0 {
				delete(s.byHandle, p.Handle)
			}
		}
	}
}

func (s *memoryStore) ByPlayer(playerID string) (*Match, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byPlayer[playerID]
	if !ok {
		return nil, false
	}
	m, ok := s.byID[id]
	return m, ok
}

func (s *memoryStore) ByHandle(h domain.OutboundHandle) []*Match {
	s.mu.RLock()
	defer s.mu.RUnlock()
	set := s.byHandle[h]
	out := make([]*Match, 0, len(set))
	for id := range set {
		if m, ok := s.byID[id]; ok {
			out = append(out, m)
		}
	}
	return out
}

func (s *memoryStore) List() []*Match {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Match, 0, len(s.byID))
	for _, m := range s.byID {
		out = append(out, m)
	}
	return out
}

func (s *memoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}
