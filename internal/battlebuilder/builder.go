// Package battlebuilder wires the battle services from AppConfig.
package battlebuilder

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/park285/vocab-battle-bot/internal/adapter/battlepresenter"
	"github.com/park285/vocab-battle-bot/internal/battle"
	"github.com/park285/vocab-battle-bot/internal/config"
	"github.com/park285/vocab-battle-bot/internal/content"
	"github.com/park285/vocab-battle-bot/internal/domain"
	"github.com/park285/vocab-battle-bot/internal/history"
	"github.com/park285/vocab-battle-bot/internal/matchqueue"
	"github.com/park285/vocab-battle-bot/internal/metrics"
	"github.com/park285/vocab-battle-bot/internal/msgcat"
	"github.com/park285/vocab-battle-bot/internal/obslog"
	"github.com/park285/vocab-battle-bot/internal/rematch"
	"github.com/park285/vocab-battle-bot/internal/service/arena"
	"github.com/park285/vocab-battle-bot/internal/service/cache"
	"github.com/park285/vocab-battle-bot/internal/storage"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// ContentStore is the catalog and question bank in one.
type ContentStore interface {
	battle.SessionCatalog
	battle.QuestionBank
	GenerateSessions(ctx context.Context, cfg domain.BattleConfig, count int) (int, error)
}

type Deps struct {
	Arena       *arena.Arena
	Coordinator *battle.Coordinator
	Broker      *rematch.Broker
	Queue       matchqueue.Queue
	Content     ContentStore
	History     *history.Service
	Recorder    *history.Recorder
	Presenter   *battlepresenter.Presenter
	Metrics     *metrics.Metrics
	Cache       *cache.CacheService
	DB          *sql.DB
}

// Sender posts one text message to a room.
type Sender func(ctx context.Context, room, message string) error

// New builds the full battle stack. With REDIS_URL the queue, rematch tickets
// and stats cache live in Redis; with DATABASE_URL content and history live in
// PostgreSQL. Anything unset falls back to process memory. Active matches are
// always process-local, so run a single bot per Redis database.
func New(ctx context.Context, cfg *config.AppConfig, send Sender, reg *prometheus.Registry, logger *zap.Logger) (*Deps, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	if logger == nil {
		logger = obslog.L()
	}
	d := &Deps{Metrics: metrics.New(reg)}
	ok := false
	defer func() {
		if !ok {
			_ = d.Close(context.Background())
		}
	}()

	var queue matchqueue.Queue = matchqueue.NewMemoryQueue()
	var tickets rematch.Store = rematch.NewMemoryStore()
	if strings.TrimSpace(cfg.RedisURL) != "" {
		cconf, err := parseRedisURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		d.Cache, err = cache.NewCacheService(*cconf, logger)
		if err != nil {
			return nil, fmt.Errorf("init cache: %w", err)
		}
		queue = matchqueue.NewRedisQueue(d.Cache.Client(), 2*cfg.PendingTTL)
		tickets = rematch.NewRedisStore(d.Cache.Client())
	}
	d.Queue = queue

	var repo history.Repository
	if strings.TrimSpace(cfg.DatabaseURL) != "" {
		db, err := storage.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		d.DB = db
		d.Content = content.NewPostgres(db)
		repo = history.NewRepository(db)
	} else {
		mem := content.NewMemory()
		if path := strings.TrimSpace(cfg.ContentSeedFile); path != "" {
			n, err := content.LoadSeedFile(ctx, mem, path)
			if err != nil {
				return nil, err
			}
			logger.Info("content_seed_loaded", zap.String("path", path), zap.Int("sessions", n))
		} else {
			logger.Warn("content_memory_empty")
		}
		d.Content = mem
		repo = history.NewMemoryRepository()
	}

	var err error
	d.History, err = history.NewService(repo, d.Cache, history.Config{StatsTTL: cfg.StatsCacheTTL}, logger)
	if err != nil {
		return nil, err
	}
	d.Recorder = history.NewRecorder(d.History, history.RecorderOptions{Logger: logger})

	d.Coordinator, err = battle.NewCoordinator(d.Content, d.Content, battle.NewMemoryStore(), d.Recorder, battle.Options{
		QuestionsPerMatch: cfg.QuestionsPerMatch,
		CountdownSteps:    cfg.CountdownSteps,
		CountdownInterval: cfg.CountdownInterval,
		AbandonAfter:      cfg.AbandonAfter,
		Logger:            logger,
	})
	if err != nil {
		return nil, err
	}

	catalog, err := msgcat.New(cfg.MessagesDir)
	if err != nil {
		return nil, fmt.Errorf("load messages: %w", err)
	}
	d.Presenter = battlepresenter.NewPresenter(send,
		battlepresenter.NewFormatter(catalog, battlepresenter.StaticPrefix(cfg.BotPrefix)),
		battlepresenter.NewDirectory())

	d.Broker = rematch.NewBroker(tickets, d.Coordinator, d.Presenter, rematch.Options{TTL: cfg.RematchTTL, Logger: logger})

	d.Arena, err = arena.New(queue, d.Coordinator, d.Broker, d.Presenter, d.Recorder, d.Metrics, arena.Options{
		PendingTTL:    cfg.PendingTTL,
		RecentTTL:     cfg.RematchTTL,
		SweepInterval: cfg.SweepInterval,
		Logger:        logger,
	})
	if err != nil {
		return nil, err
	}
	ok = true
	return d, nil
}

// Close stops the arena, drains the recorder and releases connections, in
// that order.
func (d *Deps) Close(ctx context.Context) error {
	var errs []error
	if d.Arena != nil {
		errs = append(errs, d.Arena.Close(ctx))
	}
	if d.Recorder != nil {
		errs = append(errs, d.Recorder.Close(ctx))
	}
	if d.Cache != nil {
		errs = append(errs, d.Cache.Close())
	}
	if d.DB != nil {
		errs = append(errs, d.DB.Close())
	}
	return errors.Join(errs...)
}

func parseRedisURL(raw string) (*cache.CacheConfig, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "redis" && u.Scheme != "rediss" {
		return nil, fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	host := u.Hostname()
	portStr := u.Port()
	if portStr == "" {
		portStr = "6379"
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, err
	}
	db := 0
	if p := strings.TrimPrefix(u.Path, "/"); p != "" {
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid redis db %q", p)
		}
		db = n
	}
	pass, _ := u.User.Password()
	return &cache.CacheConfig{Host: host, Port: port, Password: pass, DB: db, TLS: u.Scheme == "rediss"}, nil
}
