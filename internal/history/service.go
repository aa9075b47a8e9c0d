package history

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/park285/vocab-battle-bot/internal/domain"
	"github.com/park285/vocab-battle-bot/internal/obslog"
	"github.com/park285/vocab-battle-bot/internal/service/cache"
	"go.uber.org/zap"
)

const defaultStatsTTL = 10 * time.Minute

type Config struct {
	StatsTTL    time.Duration
	RecentLimit int
}

// Service derives profiles, stats and head-to-head records from finished
// battles. The cache is optional.
type Service struct {
	repo   Repository
	cache  *cache.CacheService
	cfg    Config
	logger *zap.Logger
	now    func() time.Time
}

func NewService(repo Repository, cacheSvc *cache.CacheService, cfg Config, logger *zap.Logger) (*Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("history repository is required")
	}
	if cfg.StatsTTL <= 0 {
		cfg.StatsTTL = defaultStatsTTL
	}
	if cfg.RecentLimit <= 0 {
		cfg.RecentLimit = 10
	}
	if logger == nil {
		logger = obslog.L()
	}
	return &Service{repo: repo, cache: cacheSvc, cfg: cfg, logger: logger, now: time.Now}, nil
}

// RecordOutcome stores the outcome and updates both players' profiles. An
// outcome already stored for the same match is ignored.
func (s *Service) RecordOutcome(ctx context.Context, o domain.BattleOutcome) error {
	if strings.TrimSpace(o.MatchID) == "" {
		return fmt.Errorf("battle outcome without match id")
	}
	if err := s.repo.InsertOutcome(ctx, &o); err != nil {
		if errors.Is(err, ErrDuplicateOutcome) {
			s.logger.Warn("outcome_duplicate", zap.String("match_id", o.MatchID))
			return nil
		}
		return err
	}
	now := s.now()
	for _, id := range []string{o.Player1ID, o.Player2ID} {
		profile, err := s.repo.GetProfile(ctx, id)
		if err != nil {
			return err
		}
		profile = applyOutcome(profile, id, &o, now)
		if err := s.repo.UpsertProfile(ctx, profile); err != nil {
			return err
		}
		s.invalidateStats(ctx, id)
	}
	return nil
}

func (s *Service) Stats(ctx context.Context, playerID string) (*domain.PlayerStats, error) {
	playerID = strings.TrimSpace(playerID)
	if playerID == "" {
		return nil, fmt.Errorf("player id must be provided")
	}
	if s.cache != nil {
		cached := &domain.PlayerStats{}
		if err := s.cache.Get(ctx, statsCacheKey(playerID), cached); err != nil {
			s.logger.Warn("stats_cache_read_error", zap.String("player_id", playerID), zap.Error(err))
		} else if cached.PlayerID != "" {
			return cached, nil
		}
	}
	profile, err := s.repo.GetProfile(ctx, playerID)
	if err != nil {
		return nil, err
	}
	st := statsFromProfile(playerID, profile)
	if s.cache != nil {
		if err := s.cache.Set(ctx, statsCacheKey(playerID), st, s.cfg.StatsTTL); err != nil {
			s.logger.Warn("stats_cache_write_error", zap.String("player_id", playerID), zap.Error(err))
		}
	}
	return st, nil
}

func (s *Service) HeadToHead(ctx context.Context, playerID, opponentID string) (*domain.HeadToHead, error) {
	playerID, opponentID = strings.TrimSpace(playerID), strings.TrimSpace(opponentID)
	if playerID == "" || opponentID == "" || playerID == opponentID {
		return nil, fmt.Errorf("two distinct player ids must be provided")
	}
	return s.repo.HeadToHead(ctx, playerID, opponentID)
}

func (s *Service) Recent(ctx context.Context, playerID string) ([]*domain.BattleOutcome, error) {
	return s.repo.RecentOutcomes(ctx, strings.TrimSpace(playerID), s.cfg.RecentLimit)
}

func (s *Service) RecordAnswer(ctx context.Context, playerID string, wordID int64, correct bool, at time.Time) (*domain.WordProgress, error) {
	if strings.TrimSpace(playerID) == "" || wordID <= 0 {
		return nil, fmt.Errorf("invalid word progress key %q/%d", playerID, wordID)
	}
	return s.repo.RecordAnswer(ctx, playerID, wordID, correct, at)
}

func (s *Service) WordProgress(ctx context.Context, playerID string, wordID int64) (*domain.WordProgress, error) {
	return s.repo.GetWordProgress(ctx, playerID, wordID)
}

func (s *Service) invalidateStats(ctx context.Context, playerID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, statsCacheKey(playerID)); err != nil {
		s.logger.Warn("stats_cache_invalidate_error", zap.String("player_id", playerID), zap.Error(err))
	}
}

func statsCacheKey(playerID string) string { return "battle:stats:" + playerID }
