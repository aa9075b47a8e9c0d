// Package history persists finished battles and the per-player records
// derived from them.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/park285/vocab-battle-bot/internal/domain"
)

var ErrDuplicateOutcome = errors.New("battle outcome already recorded")

type Repository interface {
	InsertOutcome(ctx context.Context, outcome *domain.BattleOutcome) error
	RecentOutcomes(ctx context.Context, playerID string, limit int) ([]*domain.BattleOutcome, error)
	HeadToHead(ctx context.Context, playerID, opponentID string) (*domain.HeadToHead, error)
	GetProfile(ctx context.Context, playerID string) (*domain.PlayerProfile, error)
	UpsertProfile(ctx context.Context, profile *domain.PlayerProfile) error
	// RecordAnswer folds one answer into the player's progress on the word
	// and returns the updated row.
	RecordAnswer(ctx context.Context, playerID string, wordID int64, correct bool, at time.Time) (*domain.WordProgress, error)
	GetWordProgress(ctx context.Context, playerID string, wordID int64) (*domain.WordProgress, error)
}

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

func (r *repository) InsertOutcome(ctx context.Context, o *domain.BattleOutcome) error {
	if o == nil {
		return fmt.Errorf("nil battle outcome payload")
	}
	const query = `
		INSERT INTO battle_history (
			match_id,
			scope_kind,
			scope_id,
			session_id,
			player1_id,
			player2_id,
			winner_id,
			player1_score,
			player2_score,
			player1_elapsed_ms,
			player2_elapsed_ms,
			reason,
			completed_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (match_id) DO NOTHING
		RETURNING id`

	var id sql.NullInt64
	err := r.db.QueryRowContext(
		ctx,
		query,
		o.MatchID,
		string(o.Config.ScopeKind),
		o.Config.ScopeID,
		o.SessionID,
		o.Player1ID,
		o.Player2ID,
		sql.NullString{String: o.WinnerID, Valid: o.WinnerID != ""},
		o.Player1Score,
		o.Player2Score,
		o.Player1Elapsed.Milliseconds(),
		o.Player2Elapsed.Milliseconds(),
		o.Reason,
		o.CompletedAt,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && !id.Valid) {
		return ErrDuplicateOutcome
	}
	if err != nil {
		return fmt.Errorf("insert battle outcome: %w", err)
	}
	return nil
}

func (r *repository) RecentOutcomes(ctx context.Context, playerID string, limit int) ([]*domain.BattleOutcome, error) {
	if limit <= 0 {
		limit = 10
	}
	const query = `
		SELECT
			match_id,
			scope_kind,
			scope_id,
			session_id,
			player1_id,
			player2_id,
			winner_id,
			player1_score,
			player2_score,
			player1_elapsed_ms,
			player2_elapsed_ms,
			reason,
			completed_at
		FROM battle_history
		WHERE player1_id = $1 OR player2_id = $1
		ORDER BY completed_at DESC
		LIMIT $2`

	rows, err := r.db.QueryContext(ctx, query, playerID, limit)
	if err != nil {
		return nil, fmt.Errorf("select battle history: %w", err)
	}
	defer rows.Close()

	out := make([]*domain.BattleOutcome, 0, limit)
	for rows.Next() {
		var (
			o          domain.BattleOutcome
			kind       string
			winner     sql.NullString
			p1MS, p2MS int64
		)
		if err := rows.Scan(
			&o.MatchID,
			&kind,
			&o.Config.ScopeID,
			&o.SessionID,
			&o.Player1ID,
			&o.Player2ID,
			&winner,
			&o.Player1Score,
			&o.Player2Score,
			&p1MS,
			&p2MS,
			&o.Reason,
			&o.CompletedAt,
		); err != nil {
			return nil, fmt.Errorf("scan battle history: %w", err)
		}
		o.Config.ScopeKind = domain.ScopeKind(kind)
		o.WinnerID = winner.String
		o.Player1Elapsed = time.Duration(p1MS) * time.Millisecond
		o.Player2Elapsed = time.Duration(p2MS) * time.Millisecond
		out = append(out, &o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate battle history: %w", err)
	}
	return out, nil
}

func (r *repository) HeadToHead(ctx context.Context, playerID, opponentID string) (*domain.HeadToHead, error) {
	const query = `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE winner_id = $1),
			COUNT(*) FILTER (WHERE winner_id = $2),
			COUNT(*) FILTER (WHERE winner_id IS NULL)
		FROM battle_history
		WHERE (player1_id = $1 AND player2_id = $2)
		   OR (player1_id = $2 AND player2_id = $1)`

	h := &domain.HeadToHead{PlayerID: playerID, OpponentID: opponentID}
	if err := r.db.QueryRowContext(ctx, query, playerID, opponentID).Scan(&h.Total, &h.Wins, &h.Losses, &h.Draws); err != nil {
		return nil, fmt.Errorf("select head to head: %w", err)
	}
	return h, nil
}

func (r *repository) GetProfile(ctx context.Context, playerID string) (*domain.PlayerProfile, error) {
	const query = `
		SELECT
			player_id,
			games_played,
			wins,
			losses,
			draws,
			total_score,
			streak,
			streak_type,
			last_played_at,
			created_at,
			updated_at
		FROM battle_profiles
		WHERE player_id = $1`

	var (
		p          domain.PlayerProfile
		lastPlayed sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, query, playerID).Scan(
		&p.PlayerID,
		&p.GamesPlayed,
		&p.Wins,
		&p.Losses,
		&p.Draws,
		&p.TotalScore,
		&p.Streak,
		&p.StreakType,
		&lastPlayed,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select battle profile: %w", err)
	}
	if lastPlayed.Valid {
		p.LastPlayedAt = lastPlayed.Time
	}
	return &p, nil
}

func (r *repository) UpsertProfile(ctx context.Context, p *domain.PlayerProfile) error {
	if p == nil {
		return fmt.Errorf("nil battle profile payload")
	}
	const query = `
		INSERT INTO battle_profiles (
			player_id,
			games_played,
			wins,
			losses,
			draws,
			total_score,
			streak,
			streak_type,
			last_played_at,
			created_at,
			updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (player_id) DO UPDATE SET
			games_played = EXCLUDED.games_played,
			wins = EXCLUDED.wins,
			losses = EXCLUDED.losses,
			draws = EXCLUDED.draws,
			total_score = EXCLUDED.total_score,
			streak = EXCLUDED.streak,
			streak_type = EXCLUDED.streak_type,
			last_played_at = EXCLUDED.last_played_at,
			updated_at = EXCLUDED.updated_at`

	createdAt := p.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	updatedAt := p.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}
	_, err := r.db.ExecContext(
		ctx,
		query,
		p.PlayerID,
		p.GamesPlayed,
		p.Wins,
		p.Losses,
		p.Draws,
		p.TotalScore,
		p.Streak,
		p.StreakType,
		sql.NullTime{Time: p.LastPlayedAt, Valid: !p.LastPlayedAt.IsZero()},
		createdAt,
		updatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert battle profile: %w", err)
	}
	return nil
}

func (r *repository) RecordAnswer(ctx context.Context, playerID string, wordID int64, correct bool, at time.Time) (*domain.WordProgress, error) {
	const query = `
		INSERT INTO word_progress (
			player_id,
			word_id,
			correct_count,
			total_attempts,
			mastery_level,
			last_seen
		)
		VALUES ($1, $2, $3, 1, LEAST($5, $3 / 2), $4)
		ON CONFLICT (player_id, word_id) DO UPDATE SET
			correct_count = word_progress.correct_count + EXCLUDED.correct_count,
			total_attempts = word_progress.total_attempts + 1,
			mastery_level = LEAST($5, (word_progress.correct_count + EXCLUDED.correct_count) / 2),
			last_seen = EXCLUDED.last_seen
		RETURNING correct_count, total_attempts, mastery_level, last_seen`

	p := &domain.WordProgress{PlayerID: playerID, WordID: wordID}
	err := r.db.QueryRowContext(ctx, query, playerID, wordID, boolToInt(correct), at, domain.MaxMastery).
		Scan(&p.CorrectCount, &p.TotalAttempts, &p.MasteryLevel, &p.LastSeen)
	if err != nil {
		return nil, fmt.Errorf("upsert word progress: %w", err)
	}
	return p, nil
}

func (r *repository) GetWordProgress(ctx context.Context, playerID string, wordID int64) (*domain.WordProgress, error) {
	const query = `
		SELECT correct_count, total_attempts, mastery_level, last_seen
		FROM word_progress
		WHERE player_id = $1 AND word_id = $2`

	p := &domain.WordProgress{PlayerID: playerID, WordID: wordID}
	err := r.db.QueryRowContext(ctx, query, playerID, wordID).
		Scan(&p.CorrectCount, &p.TotalAttempts, &p.MasteryLevel, &p.LastSeen)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select word progress: %w", err)
	}
	return p, nil
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
