package content

import (
	"context"
	"sync"

	"github.com/park285/vocab-battle-bot/internal/domain"
)

type memoryWord struct {
	topicID  int64
	question domain.Question
}

// Memory is a development catalog and question bank used when no database
// is configured.
type Memory struct {
	mu          sync.RWMutex
	bookOf      map[int64]int64 // topic -> book
	topicOrder  []int64
	words       map[int64]memoryWord
	wordOrder   []int64
	sessions    map[string][]domain.Session
	nextSession int64

	SessionSize int
	perm        func(int) []int
	intN        func(int) int
}

func NewMemory() *Memory {
	return &Memory{
		bookOf:      make(map[int64]int64),
		words:       make(map[int64]memoryWord),
		sessions:    make(map[string][]domain.Session),
		SessionSize: DefaultSessionSize,
		perm:        defaultPerm,
		intN:        defaultIntN,
	}
}

// AddTopic registers a topic of a book with its words. Questions keep their
// WordID; invalid ones are stored but never resolved.
func (m *Memory) AddTopic(bookID, topicID int64, questions ...domain.Question) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.bookOf[topicID]; !ok {
		m.topicOrder = append(m.topicOrder, topicID)
	}
	m.bookOf[topicID] = bookID
	for _, q := range questions {
		if _, ok := m.words[q.WordID]; !ok {
			m.wordOrder = append(m.wordOrder, q.WordID)
		}
		m.words[q.WordID] = memoryWord{topicID: topicID, question: q}
	}
}

// AddSession stores a fixed session and returns it.
func (m *Memory) AddSession(cfg domain.BattleConfig, wordIDs []int64) domain.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextSession++
	s := domain.Session{ID: m.nextSession, ScopeKind: cfg.ScopeKind, ScopeID: cfg.ScopeID, WordIDs: append([]int64(nil), wordIDs...)}
	m.sessions[cfg.Key()] = append(m.sessions[cfg.Key()], s)
	return s
}

func (m *Memory) RandomSession(_ context.Context, cfg domain.BattleConfig, exclude ...int64) (*domain.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return pickSession(m.sessions[cfg.Key()], exclude, m.intN), nil
}

func (m *Memory) Resolve(_ context.Context, wordIDs []int64) ([]domain.Question, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.Question, 0, len(wordIDs))
	for _, id := range wordIDs {
		w, ok := m.words[id]
		if !ok {
			continue
		}
		if q, ok := buildQuestion(id, w.question.Prompt, w.question.CorrectAnswer, w.question.Distractors); ok {
			out = append(out, q)
		}
	}
	return out, nil
}

// GenerateSessions replaces the scope's sessions with count fresh samples.
func (m *Memory) GenerateSessions(_ context.Context, cfg domain.BattleConfig, count int) (int, error) {
	if !cfg.Valid() || count <= 0 {
		return 0, ErrSessionNotFound
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := m.scopeWordsLocked(cfg)
	if len(ids) < m.SessionSize {
		return 0, ErrSessionNotFound
	}
	list := make([]domain.Session, 0, count)
	for _, sample := range sampleSessions(ids, count, m.SessionSize, m.perm) {
		m.nextSession++
		list = append(list, domain.Session{ID: m.nextSession, ScopeKind: cfg.ScopeKind, ScopeID: cfg.ScopeID, WordIDs: sample})
	}
	m.sessions[cfg.Key()] = list
	return len(list), nil
}

func (m *Memory) scopeWordsLocked(cfg domain.BattleConfig) []int64 {
	var out []int64
	for _, id := range m.wordOrder {
		w := m.words[id]
		switch cfg.ScopeKind {
		case domain.ScopeTopic:
			if w.topicID == cfg.ScopeID {
				out = append(out, id)
			}
		case domain.ScopeBook:
			if m.bookOf[w.topicID] == cfg.ScopeID {
				out = append(out, id)
			}
		}
	}
	return out
}
