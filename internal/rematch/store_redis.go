package rematch

import (
    "context"
    "encoding/json"
    "errors"
    "strings"
    "time"

    "github.com/park285/vocab-battle-bot/internal/obslog"
    "github.com/redis/go-redis/v9"
    "go.uber.org/zap"
)

const maxTxAttempts = 16

// RedisStore keeps tickets as JSON with a TTL matching ExpiresAt, so expired
// tickets disappear without a sweep.
type RedisStore struct {
    rdb *redis.Client
    now func() time.Time
}

func NewRedisStore(rdb *redis.Client) *RedisStore { return &RedisStore{rdb: rdb, now: time.Now} }

func keyTicket(id string) string   { return "rm:ticket:" + strings.TrimSpace(id) }
func keyPair(pair string) string   { return "rm:pair:" + pair }

func (s *RedisStore) Create(ctx context.Context, t *Ticket) error {
    ttl := t.ExpiresAt.Sub(s.now())
    if ttl <= 0 { return ErrInvalidArgs }
    raw, err := json.Marshal(t)
    if err != nil { return err }
    pairK := keyPair(t.pairKey())
    return s.retry(ctx, func() error {
        return s.rdb.Watch(ctx, func(tx *redis.Tx) error {
            cur, err := tx.Get(ctx, pairK).Result()
            if err != nil && err != redis.Nil { return err }
            if cur != "" {
                n, err := tx.Exists(ctx, keyTicket(cur)).Result()
                if err != nil { return err }
                if n > 0 { return ErrAlreadyPending }
            }
            pipe := tx.TxPipeline()
            pipe.Set(ctx, keyTicket(t.ID), raw, ttl)
            pipe.Set(ctx, pairK, t.ID, ttl)
            _, err = pipe.Exec(ctx)
            return err
        }, pairK)
    })
}

// Expire is a no-op: Redis evicts ticket and pair keys at ExpiresAt.
func (s *RedisStore) Expire(context.Context, time.Time) ([]*Ticket, error) { return nil, nil }

func (s *RedisStore) Get(ctx context.Context, id string) (*Ticket, error) {
    t, err := s.load(ctx, s.rdb, id)
    if err != nil || t == nil { return nil, err }
    if t.Expired(s.now()) { return nil, nil }
    return t, nil
}

func (s *RedisStore) Take(ctx context.Context, id string, check func(*Ticket) error) (*Ticket, error) {
    var taken *Ticket
    ticketK := keyTicket(id)
    err := s.retry(ctx, func() error {
        taken = nil
        return s.rdb.Watch(ctx, func(tx *redis.Tx) error {
            t, err := s.load(ctx, tx, id)
            if err != nil { return err }
            if t == nil || t.Expired(s.now()) { return ErrTicketNotFound }
            if check != nil {
                if err := check(t); err != nil { return err }
            }
            pairK := keyPair(t.pairKey())
            cur, err := tx.Get(ctx, pairK).Result()
            if err != nil && err != redis.Nil { return err }
            pipe := tx.TxPipeline()
            pipe.Del(ctx, ticketK)
            if cur == t.ID { pipe.Del(ctx, pairK) }
            if _, err := pipe.Exec(ctx); err != nil { return err }
            taken = t
            return nil
        }, ticketK)
    })
    if err != nil { return nil, err }
    return taken, nil
}

type getter interface {
    Get(ctx context.Context, key string) *redis.StringCmd
}

func (s *RedisStore) load(ctx context.Context, c getter, id string) (*Ticket, error) {
    if strings.TrimSpace(id) == "" { return nil, nil }
    raw, err := c.Get(ctx, keyTicket(id)).Bytes()
    if err == redis.Nil { return nil, nil }
    if err != nil { return nil, err }
    var t Ticket
    if err := json.Unmarshal(raw, &t); err != nil { return nil, err }
    return &t, nil
}

func (s *RedisStore) retry(ctx context.Context, fn func() error) error {
    for attempt := 0; attempt < maxTxAttempts; attempt++ {
        err := fn()
        if !errors.Is(err, redis.TxFailedErr) { return err }
        if ctx.Err() != nil { return ctx.Err() }
    }
    obslog.L().Warn("rematch_contention", zap.Int("attempts", maxTxAttempts))
    return ErrContention
}
