// Package cache is a small JSON-over-Redis cache shared by the bot services.
package cache

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type CacheConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
	// TLS selects rediss://.
	TLS bool
}

// Addr returns host:port, defaulting the port to 6379.
func (c CacheConfig) Addr() string {
	port := c.Port
	if port <= 0 {
		port = 6379
	}
	return c.Host + ":" + strconv.Itoa(port)
}

type CacheService struct {
	rdb    *redis.Client
	logger *zap.Logger
	owned  bool
}

// NewCacheService dials Redis and verifies the connection with PING.
func NewCacheService(cfg CacheConfig, logger *zap.Logger) (*CacheService, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	opts := &redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	}
	if cfg.TLS {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	logger.Info("cache_connected", zap.String("addr", opts.Addr), zap.Int("db", cfg.DB))
	return &CacheService{rdb: rdb, logger: logger, owned: true}, nil
}

// NewCacheServiceFromClient wraps an existing client. Close leaves it open.
func NewCacheServiceFromClient(rdb *redis.Client, logger *zap.Logger) *CacheService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CacheService{rdb: rdb, logger: logger}
}

// Client exposes the underlying connection for components that need
// transactions.
func (s *CacheService) Client() *redis.Client { return s.rdb }

// Get decodes the value at key into dest. A missing key is not an error and
// leaves dest untouched.
func (s *CacheService) Get(ctx context.Context, key string, dest any) error {
	raw, err := s.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("cache get %s: %w", key, err)
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		s.logger.Warn("cache_decode_error", zap.String("key", key), zap.Error(err))
		return fmt.Errorf("cache decode %s: %w", key, err)
	}
	return nil
}

// Set stores value as JSON. A non-positive ttl stores without expiry.
func (s *CacheService) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache encode %s: %w", key, err)
	}
	if ttl < 0 {
		ttl = 0
	}
	if err := s.rdb.Set(ctx, key, raw, ttl).Err(); err != nil {
		return fmt.Errorf("cache set %s: %w", key, err)
	}
	return nil
}

func (s *CacheService) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := s.rdb.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("cache del: %w", err)
	}
	return nil
}

func (s *CacheService) Close() error {
	if !s.owned {
		return nil
	}
	return s.rdb.Close()
}
