package matchqueue

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/park285/vocab-battle-bot/internal/domain"
)

// MemoryQueue keeps pending entries in process. A single mutex serializes
// all configs.
type MemoryQueue struct {
	mu       sync.Mutex
	byConfig map[string][]*PendingEntry
	byPlayer map[string]*PendingEntry
	now      func() time.Time
}

func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{
		byConfig: make(map[string][]*PendingEntry),
		byPlayer: make(map[string]*PendingEntry),
		now:      time.Now,
	}
}

func (q *MemoryQueue) EnqueueOrPair(_ context.Context, playerID string, handle domain.OutboundHandle, cfg domain.BattleConfig) (*Result, error) {
	playerID = strings.TrimSpace(playerID)
	if playerID == "" || !cfg.Valid() {
		return nil, ErrInvalidArgs
	}
	q.mu.Lock()
	defer q.mu.Unlock()

	res := &Result{}
	if old, ok := q.byPlayer[playerID]; ok {
		q.removeLocked(old)
		res.Replaced = true
	}
	key := cfg.Key()
	if list := q.byConfig[key]; len(list) > 0 {
		opp := list[0]
		q.removeLocked(opp)
		res.Paired = true
		cp := *opp
		res.Opponent = &cp
		return res, nil
	}
	e := &PendingEntry{PlayerID: playerID, Handle: handle, Config: cfg, EnqueuedAt: q.now()}
	q.byConfig[key] = append(q.byConfig[key], e)
	q.byPlayer[playerID] = e
	return res, nil
}

func (q *MemoryQueue) Cancel(_ context.Context, playerID string) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	e, ok := q.byPlayer[strings.TrimSpace(playerID)]
	if !ok {
		return false, nil
	}
	q.removeLocked(e)
	return true, nil
}

func (q *MemoryQueue) Pending(_ context.Context, playerID string) (*PendingEntry, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	e, ok := q.byPlayer[strings.TrimSpace(playerID)]
	if !ok {
		return nil, nil
	}
	cp := *e
	return &cp, nil
}

func (q *MemoryQueue) Expire(_ context.Context, cutoff time.Time) ([]PendingEntry, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []PendingEntry
	for _, list := range q.byConfig {
		for _, e := range list {
			if !e.EnqueuedAt.After(cutoff) {
				out = append(out, *e)
			}
		}
	}
	for i := range out {
		if e, ok := q.byPlayer[out[i].PlayerID]; ok {
			q.removeLocked(e)
		}
	}
	return out, nil
}

func (q *MemoryQueue) Len(_ context.Context) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.byPlayer), nil
}

func (q *MemoryQueue) removeLocked(e *PendingEntry) {
	delete(q.byPlayer, e.PlayerID)
	key := e.Config.Key()
	list := q.byConfig[key]
	for i, cur := range list {
		if cur == e {
			list = append(list[:i], list[i+1:]...)
			break
		}
	}
	if len(list) == 0 {
		delete(q.byConfig, key)
		return
	}
	q.byConfig[key] = list
}
