package content

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"
	"github.com/park285/vocab-battle-bot/internal/domain"
)

// Postgres reads sessions and words from the content tables.
type Postgres struct {
	db *sql.DB

	SessionSize int
	perm        func(int) []int
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db, SessionSize: DefaultSessionSize, perm: defaultPerm}
}

func (p *Postgres) RandomSession(ctx context.Context, cfg domain.BattleConfig, exclude ...int64) (*domain.Session, error) {
	if exclude == nil {
		exclude = []int64{}
	}
	const query = `
		SELECT id, scope_kind, scope_id, word_ids
		FROM battle_sessions
		WHERE scope_kind = $1
		  AND scope_id = $2
		  AND NOT (id = ANY($3))
		ORDER BY random()
		LIMIT 1`

	var (
		s    domain.Session
		kind string
	)
	err := p.db.QueryRowContext(ctx, query, string(cfg.ScopeKind), cfg.ScopeID, pq.Array(exclude)).
		Scan(&s.ID, &kind, &s.ScopeID, pq.Array(&s.WordIDs))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select battle session: %w", err)
	}
	s.ScopeKind = domain.ScopeKind(kind)
	return &s, nil
}

func (p *Postgres) Resolve(ctx context.Context, wordIDs []int64) ([]domain.Question, error) {
	if len(wordIDs) == 0 {
		return []domain.Question{}, nil
	}
	const query = `
		SELECT
			w.id,
			w.term,
			w.translation,
			wd.distractor_1,
			wd.distractor_2,
			wd.distractor_3
		FROM words w
		LEFT JOIN word_distractors wd ON wd.word_id = w.id
		WHERE w.id = ANY($1)`

	rows, err := p.db.QueryContext(ctx, query, pq.Array(wordIDs))
	if err != nil {
		return nil, fmt.Errorf("select words: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Question, 0, len(wordIDs))
	for rows.Next() {
		var (
			id                int64
			term, translation string
			d1, d2, d3        sql.NullString
		)
		if err := rows.Scan(&id, &term, &translation, &d1, &d2, &d3); err != nil {
			return nil, fmt.Errorf("scan word: %w", err)
		}
		if q, ok := buildQuestion(id, term, translation, []string{d1.String, d2.String, d3.String}); ok {
			out = append(out, q)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate words: %w", err)
	}
	return out, nil
}

// GenerateSessions replaces the scope's sessions with count random samples
// in one transaction.
func (p *Postgres) GenerateSessions(ctx context.Context, cfg domain.BattleConfig, count int) (int, error) {
	if !cfg.Valid() || count <= 0 {
		return 0, ErrSessionNotFound
	}
	ids, err := p.scopeWordIDs(ctx, cfg)
	if err != nil {
		return 0, err
	}
	if len(ids) < p.SessionSize {
		return 0, ErrSessionNotFound
	}

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM battle_sessions WHERE scope_kind = $1 AND scope_id = $2`, string(cfg.ScopeKind), cfg.ScopeID); err != nil {
		return 0, fmt.Errorf("clear sessions: %w", err)
	}
	const insert = `
		INSERT INTO battle_sessions (scope_kind, scope_id, session_number, word_ids)
		VALUES ($1, $2, $3, $4)`
	for i, sample := range sampleSessions(ids, count, p.SessionSize, p.perm) {
		if _, err := tx.ExecContext(ctx, insert, string(cfg.ScopeKind), cfg.ScopeID, i+1, pq.Array(sample)); err != nil {
			return 0, fmt.Errorf("insert session %d: %w", i+1, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit sessions: %w", err)
	}
	return count, nil
}

func (p *Postgres) scopeWordIDs(ctx context.Context, cfg domain.BattleConfig) ([]int64, error) {
	var query string
	switch cfg.ScopeKind {
	case domain.ScopeTopic:
		query = `SELECT id FROM words WHERE topic_id = $1 ORDER BY word_order, id`
	case domain.ScopeBook:
		query = `
			SELECT w.id
			FROM words w
			JOIN topics t ON w.topic_id = t.id
			WHERE t.book_id = $1
			ORDER BY t.topic_order, w.word_order, w.id`
	default:
		return nil, fmt.Errorf("unknown scope kind %q", cfg.ScopeKind)
	}
	rows, err := p.db.QueryContext(ctx, query, cfg.ScopeID)
	if err != nil {
		return nil, fmt.Errorf("select scope words: %w", err)
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan word id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
