package matchqueue

import (
    "context"
    "encoding/json"
    "errors"
    "strconv"
    "strings"
    "time"

    "github.com/park285/vocab-battle-bot/internal/domain"
    "github.com/park285/vocab-battle-bot/internal/obslog"
    "github.com/redis/go-redis/v9"
    "go.uber.org/zap"
)

const (
    defaultEntryTTL    = time.Hour
    defaultMaxAttempts = 16
)

// RedisQueue keeps the waiting list in Redis so it survives a bot restart.
// Active matches stay in process memory, so one bot instance owns a Redis
// database at a time.
//
// Keys:
//   mq:cfg:<config>    zset of player ids scored by enqueue time (ms)
//   mq:entry:<player>  PendingEntry JSON, expires as a safety net
//   mq:configs         set of config keys that ever had a waiter
type RedisQueue struct {
    rdb         *redis.Client
    entryTTL    time.Duration
    maxAttempts int
    now         func() time.Time
}

// NewRedisQueue keeps entry keys for entryTTL; Expire should run with a
// shorter cutoff so waiters are notified before Redis drops them.
func NewRedisQueue(rdb *redis.Client, entryTTL time.Duration) *RedisQueue {
    if entryTTL <= 0 { entryTTL = defaultEntryTTL }
    return &RedisQueue{rdb: rdb, entryTTL: entryTTL, maxAttempts: defaultMaxAttempts, now: time.Now}
}

func keyConfig(cfgKey string) string { return "mq:cfg:" + cfgKey }
func keyEntry(playerID string) string { return "mq:entry:" + strings.TrimSpace(playerID) }
func keyConfigs() string             { return "mq:configs" }

func (q *RedisQueue) EnqueueOrPair(ctx context.Context, playerID string, handle domain.OutboundHandle, cfg domain.BattleConfig) (*Result, error) {
    playerID = strings.TrimSpace(playerID)
    if playerID == "" || !cfg.Valid() { return nil, ErrInvalidArgs }
    entry := PendingEntry{PlayerID: playerID, Handle: handle, Config: cfg}
    var res *Result
    err := q.retry(ctx, func() error {
        entry.EnqueuedAt = q.now()
        r, err := q.tryEnqueue(ctx, entry)
        res = r
        return err
    }, keyEntry(playerID), keyConfig(cfg.Key()))
    if err != nil {
        if !errors.Is(err, ErrContention) {
            obslog.L().Warn("queue_enqueue_error", zap.String("player_id", playerID), zap.String("config", cfg.Key()), zap.Error(err))
        }
        return nil, err
    }
    if res.Paired {
        obslog.L().Info("queue_pair", zap.String("config", cfg.Key()), zap.String("player_id", playerID), zap.String("opponent_id", res.Opponent.PlayerID))
    } else {
        obslog.L().Info("queue_wait", zap.String("config", cfg.Key()), zap.String("player_id", playerID), zap.Bool("replaced", res.Replaced))
    }
    return res, nil
}

func (q *RedisQueue) tryEnqueue(ctx context.Context, entry PendingEntry) (*Result, error) {
    cfgK := keyConfig(entry.Config.Key())
    res := &Result{}
    err := q.rdb.Watch(ctx, func(tx *redis.Tx) error {
        old, err := loadEntry(ctx, tx, entry.PlayerID)
        if err != nil { return err }

        ids, err := tx.ZRange(ctx, cfgK, 0, -1).Result()
        if err != nil && err != redis.Nil { return err }
        var opp *PendingEntry
        var stale []string
        for _, id := range ids {
            if id == entry.PlayerID { continue }
            e, err := loadEntry(ctx, tx, id)
            if err != nil { return err }
            if e == nil || e.Config != entry.Config {
                stale = append(stale, id)
                continue
            }
            opp = e
            break
        }

        pipe := tx.TxPipeline()
        if old != nil {
            pipe.ZRem(ctx, keyConfig(old.Config.Key()), entry.PlayerID)
            pipe.Del(ctx, keyEntry(entry.PlayerID))
            res.Replaced = true
        }
        for _, id := range stale {
            pipe.ZRem(ctx, cfgK, id)
        }
        if opp != nil {
            pipe.ZRem(ctx, cfgK, opp.PlayerID)
            pipe.Del(ctx, keyEntry(opp.PlayerID))
            res.Paired, res.Opponent = true, opp
        } else {
            raw, err := json.Marshal(&entry)
            if err != nil { return err }
            pipe.ZAdd(ctx, cfgK, redis.Z{Score: float64(entry.EnqueuedAt.UnixMilli()), Member: entry.PlayerID})
            pipe.Set(ctx, keyEntry(entry.PlayerID), raw, q.entryTTL)
            pipe.SAdd(ctx, keyConfigs(), entry.Config.Key())
        }
        _, err = pipe.Exec(ctx)
        return err
    }, keyEntry(entry.PlayerID), cfgK)
    if err != nil { return nil, err }
    return res, nil
}

func (q *RedisQueue) Cancel(ctx context.Context, playerID string) (bool, error) {
    playerID = strings.TrimSpace(playerID)
    if playerID == "" { return false, nil }
    removed := false
    err := q.retry(ctx, func() error {
        removed = false
        return q.rdb.Watch(ctx, func(tx *redis.Tx) error {
            e, err := loadEntry(ctx, tx, playerID)
            if err != nil || e == nil { return err }
            pipe := tx.TxPipeline()
            pipe.ZRem(ctx, keyConfig(e.Config.Key()), playerID)
            pipe.Del(ctx, keyEntry(playerID))
            if _, err := pipe.Exec(ctx); err != nil { return err }
            removed = true
            return nil
        }, keyEntry(playerID))
    }, keyEntry(playerID))
    if err != nil { return false, err }
    if removed {
        obslog.L().Info("queue_cancel", zap.String("player_id", playerID))
    }
    return removed, nil
}

func (q *RedisQueue) Pending(ctx context.Context, playerID string) (*PendingEntry, error) {
    return loadEntry(ctx, q.rdb, playerID)
}

func (q *RedisQueue) Expire(ctx context.Context, cutoff time.Time) ([]PendingEntry, error) {
    cfgs, err := q.rdb.SMembers(ctx, keyConfigs()).Result()
    if err != nil { return nil, err }
    var out []PendingEntry
    for _, c := range cfgs {
        cfgK := keyConfig(c)
        ids, err := q.rdb.ZRangeByScore(ctx, cfgK, &redis.ZRangeBy{Min: "-inf", Max: strconv.FormatInt(cutoff.UnixMilli(), 10)}).Result()
        if err != nil { return out, err }
        for _, id := range ids {
            var expired *PendingEntry
            err := q.retry(ctx, func() error {
                expired = nil
                return q.rdb.Watch(ctx, func(tx *redis.Tx) error {
                    e, err := loadEntry(ctx, tx, id)
                    if err != nil { return err }
                    // re-enqueued on the same config since the scan
                    if e != nil && e.Config.Key() == c && e.EnqueuedAt.After(cutoff) { return nil }
                    pipe := tx.TxPipeline()
                    pipe.ZRem(ctx, cfgK, id)
                    if e != nil && e.Config.Key() == c {
                        pipe.Del(ctx, keyEntry(id))
                        expired = e
                    }
                    _, err = pipe.Exec(ctx)
                    if err != nil { expired = nil }
                    return err
                }, keyEntry(id), cfgK)
            }, keyEntry(id))
            if err != nil { return out, err }
            if expired != nil { out = append(out, *expired) }
        }
    }
    if len(out) > 0 {
        obslog.L().Info("queue_expire", zap.Int("count", len(out)), zap.Time("cutoff", cutoff))
    }
    return out, nil
}

func (q *RedisQueue) Len(ctx context.Context) (int, error) {
    cfgs, err := q.rdb.SMembers(ctx, keyConfigs()).Result()
    if err != nil { return 0, err }
    total := 0
    for _, c := range cfgs {
        n, err := q.rdb.ZCard(ctx, keyConfig(c)).Result()
        if err != nil { return 0, err }
        total += int(n)
    }
    return total, nil
}

// retry re-runs fn while the optimistic transaction loses a race.
func (q *RedisQueue) retry(ctx context.Context, fn func() error, keys ...string) error {
    for attempt := 0; attempt < q.maxAttempts; attempt++ {
        err := fn()
        if !errors.Is(err, redis.TxFailedErr) { return err }
        if ctx.Err() != nil { return ctx.Err() }
    }
    obslog.L().Warn("queue_contention", zap.Strings("keys", keys), zap.Int("attempts", q.maxAttempts))
    return ErrContention
}

type getter interface {
    Get(ctx context.Context, key string) *redis.StringCmd
}

func loadEntry(ctx context.Context, c getter, playerID string) (*PendingEntry, error) {
    raw, err := c.Get(ctx, keyEntry(playerID)).Bytes()
    if err == redis.Nil { return nil, nil }
    if err != nil { return nil, err }
    var e PendingEntry
    if err := json.Unmarshal(raw, &e); err != nil { return nil, err }
    return &e, nil
}
