package rematch

import (
	"context"
	"sync"
	"time"
)

// Store keeps pending tickets until they are taken or expire.
type Store interface {
	// Create fails with ErrAlreadyPending while a live ticket exists for the
	// same requester, opponent and config.
	Create(ctx context.Context, t *Ticket) error
	// Get returns nil, nil for unknown or expired tickets.
	Get(ctx context.Context, id string) (*Ticket, error)
	// Take removes the ticket if check accepts it. A rejected check leaves the
	// ticket in place.
	Take(ctx context.Context, id string, check func(*Ticket) error) (*Ticket, error)
	// Expire drops tickets past their deadline and returns them.
	Expire(ctx context.Context, now time.Time) ([]*Ticket, error)
}

type memoryStore struct {
	mu     sync.Mutex
	byID   map[string]*Ticket
	byPair map[string]string
	now    func() time.Time
}

func NewMemoryStore() Store {
	return &memoryStore{byID: make(map[string]*Ticket), byPair: make(map[string]string), now: time.Now}
}

func (s *memoryStore) Create(_ context.Context, t *Ticket) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.byPair[t.pairKey()]; ok {
		if cur := s.liveLocked(id); cur != nil {
			return ErrAlreadyPending
		}
	}
	cp := *t
	s.byID[t.ID] = &cp
	s.byPair[t.pairKey()] = t.ID
	return nil
}

func (s *memoryStore) Get(_ context.Context, id string) (*Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.liveLocked(id)
	if t == nil {
		return nil, nil
	}
	cp := *t
	return &cp, nil
}

func (s *memoryStore) Take(_ context.Context, id string, check func(*Ticket) error) (*Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.liveLocked(id)
	if t == nil {
		return nil, ErrTicketNotFound
	}
	cp := *t
	if check != nil {
		if err := check(&cp); err != nil {
			return nil, err
		}
	}
	s.removeLocked(t)
	return &cp, nil
}

func (s *memoryStore) Expire(_ context.Context, now time.Time) ([]*Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Ticket
	for _, t := range s.byID {
		if t.Expired(now) {
			s.removeLocked(t)
			cp := *t
			out = append(out, &cp)
		}
	}
	return out, nil
}

// liveLocked returns the ticket, dropping it if it has expired.
func (s *memoryStore) liveLocked(id string) *Ticket {
	t, ok := s.byID[id]
	if !ok {
		return nil
	}
	if t.Expired(s.now()) {
		s.removeLocked(t)
		return nil
	}
	return t
}

func (s *memoryStore) removeLocked(t *Ticket) {
	delete(s.byID, t.ID)
	if s.byPair[t.pairKey()] == t.ID {
		delete(s.byPair, t.pairKey())
	}
}
