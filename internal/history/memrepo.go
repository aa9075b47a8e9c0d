package history

import (
    "context"
    "sort"
    "strconv"
    "sync"
    "time"

    "github.com/park285/vocab-battle-bot/internal/domain"
)

// memrepo is a development-only in-memory repository used when no DB is configured.
type memrepo struct {
    mu sync.RWMutex

    outcomes []*domain.BattleOutcome
    byMatch  map[string]struct{}
    profiles map[string]*domain.PlayerProfile
    progress map[string]*domain.WordProgress // player|word -> progress
}

func NewMemoryRepository() Repository {
    return &memrepo{
        byMatch:  make(map[string]struct{}),
        profiles: make(map[string]*domain.PlayerProfile),
        progress: make(map[string]*domain.WordProgress),
    }
}

func (m *memrepo) InsertOutcome(ctx context.Context, o *domain.BattleOutcome) error {
    if o == nil {
        return ErrDuplicateOutcome
    }
    m.mu.Lock()
    defer m.mu.Unlock()
    if _, exists := m.byMatch[o.MatchID]; exists {
        return ErrDuplicateOutcome
    }
    copy := *o
    m.byMatch[o.MatchID] = struct{}{}
    m.outcomes = append(m.outcomes, &copy)
    return nil
}

func (m *memrepo) RecentOutcomes(ctx context.Context, playerID string, limit int) ([]*domain.BattleOutcome, error) {
    m.mu.RLock()
    defer m.mu.RUnlock()
    items := make([]*domain.BattleOutcome, 0)
    for _, o := range m.outcomes {
        if o.Player1ID == playerID || o.Player2ID == playerID {
            copy := *o
            items = append(items, &copy)
        }
    }
    sort.SliceStable(items, func(i, j int) bool { return items[i].CompletedAt.After(items[j].CompletedAt) })
    if limit <= 0 {
        limit = 10
    }
    if len(items) > limit {
        items = items[:limit]
    }
    return items, nil
}

func (m *memrepo) HeadToHead(ctx context.Context, playerID, opponentID string) (*domain.HeadToHead, error) {
    m.mu.RLock()
    defer m.mu.RUnlock()
    h := &domain.HeadToHead{PlayerID: playerID, OpponentID: opponentID}
    for _, o := range m.outcomes {
        pair := (o.Player1ID == playerID && o.Player2ID == opponentID) || (o.Player1ID == opponentID && o.Player2ID == playerID)
        if !pair {
            continue
        }
        h.Total++
        switch o.WinnerID {
        case "":
            h.Draws++
        case playerID:
            h.Wins++
        case opponentID:
            h.Losses++
        }
    }
    return h, nil
}

func (m *memrepo) GetProfile(ctx context.Context, playerID string) (*domain.PlayerProfile, error) {
    m.mu.RLock()
    defer m.mu.RUnlock()
    if p, ok := m.profiles[playerID]; ok {
        copy := *p
        return &copy, nil
    }
    return nil, nil
}

func (m *memrepo) UpsertProfile(ctx context.Context, p *domain.PlayerProfile) error {
    if p == nil {
        return nil
    }
    copy := *p
    m.mu.Lock()
    defer m.mu.Unlock()
    if prev, ok := m.profiles[p.PlayerID]; ok && !prev.CreatedAt.IsZero() {
        copy.CreatedAt = prev.CreatedAt
    }
    m.profiles[p.PlayerID] = &copy
    return nil
}

func (m *memrepo) RecordAnswer(ctx context.Context, playerID string, wordID int64, correct bool, at time.Time) (*domain.WordProgress, error) {
    key := progressKey(playerID, wordID)
    m.mu.Lock()
    defer m.mu.Unlock()
    p, ok := m.progress[key]
    if !ok {
        p = &domain.WordProgress{PlayerID: playerID, WordID: wordID}
        m.progress[key] = p
    }
    p.ApplyAnswer(correct, at)
    copy := *p
    return &copy, nil
}

func (m *memrepo) GetWordProgress(ctx context.Context, playerID string, wordID int64) (*domain.WordProgress, error) {
    m.mu.RLock()
    defer m.mu.RUnlock()
    if p, ok := m.progress[progressKey(playerID, wordID)]; ok {
        copy := *p
        return &copy, nil
    }
    return nil, nil
}

func progressKey(playerID string, wordID int64) string {
    return playerID + "|" + strconv.FormatInt(wordID, 10)
}
