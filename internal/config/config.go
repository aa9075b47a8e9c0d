package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type AppConfig struct {
	IrisBaseURL  string
	IrisWSURL    string
	EgressMode   string
	EgressDryRun bool

	BotPrefix string

	XUserID    string
	XUserEmail string
	XSessionID string

	RedisURL    string
	DatabaseURL string

	AllowedRooms []string

	QuestionsPerMatch int
	CountdownSteps    int
	CountdownInterval time.Duration
	AbandonAfter      time.Duration
	PendingTTL        time.Duration
	RematchTTL        time.Duration
	SweepInterval     time.Duration
	StatsCacheTTL     time.Duration

	MetricsAddr     string
	MessagesDir     string
	ContentSeedFile string
}

// LoadDotenv reads .env (or the files named by DOTENV_FILES) into the
// process environment. Variables already set win; a missing file is ignored.
func LoadDotenv() {
	files := []string{".env"}
	if v := strings.TrimSpace(os.Getenv("DOTENV_FILES")); v != "" {
		files = splitList(v)
	}
	for _, f := range files {
		_ = godotenv.Load(f)
	}
}

func Load() (*AppConfig, error) {
	cfg := &AppConfig{
		EgressMode:        "http",
		QuestionsPerMatch: 10,
		CountdownSteps:    3,
		CountdownInterval: time.Second,
		AbandonAfter:      10 * time.Minute,
		PendingTTL:        30 * time.Minute,
		RematchTTL:        5 * time.Minute,
		SweepInterval:     30 * time.Second,
		StatsCacheTTL:     10 * time.Minute,
	}

	cfg.IrisBaseURL = strings.TrimSpace(os.Getenv("IRIS_BASE_URL"))
	cfg.IrisWSURL = strings.TrimSpace(os.Getenv("IRIS_WS_URL"))
	cfg.BotPrefix = strings.TrimSpace(os.Getenv("BOT_PREFIX"))
	if v := strings.ToLower(strings.TrimSpace(os.Getenv("EGRESS_MODE"))); v != "" {
		cfg.EgressMode = v
	}
	cfg.EgressDryRun = strings.EqualFold(strings.TrimSpace(os.Getenv("EGRESS_DRYRUN")), "true")

	cfg.XUserID = strings.TrimSpace(os.Getenv("X_USER_ID"))
	cfg.XUserEmail = strings.TrimSpace(os.Getenv("X_USER_EMAIL"))
	cfg.XSessionID = strings.TrimSpace(os.Getenv("X_SESSION_ID"))

	cfg.RedisURL = strings.TrimSpace(os.Getenv("REDIS_URL"))
	cfg.DatabaseURL = strings.TrimSpace(os.Getenv("DATABASE_URL"))
	cfg.MetricsAddr = strings.TrimSpace(os.Getenv("METRICS_ADDR"))
	cfg.MessagesDir = strings.TrimSpace(os.Getenv("MESSAGES_DIR"))
	cfg.ContentSeedFile = strings.TrimSpace(os.Getenv("CONTENT_SEED_FILE"))

	if v := strings.TrimSpace(os.Getenv("ALLOWED_ROOMS")); v != "" {
		cfg.AllowedRooms = splitList(v)
	}

	var errs []error
	intVar := func(key string, dst *int, min int) {
		v := strings.TrimSpace(os.Getenv(key))
		if v == "" {
			return
		}
		n, err := strconv.Atoi(v)
		if err != nil || n < min {
			errs = append(errs, fmt.Errorf("%s: invalid value %q", key, v))
			return
		}
		*dst = n
	}
	durVar := func(key string, dst *time.Duration) {
		v := strings.TrimSpace(os.Getenv(key))
		if v == "" {
			return
		}
		d, err := ParseDuration(v)
		if err != nil || d <= 0 {
			errs = append(errs, fmt.Errorf("%s: invalid duration %q", key, v))
			return
		}
		*dst = d
	}

	intVar("BATTLE_QUESTIONS", &cfg.QuestionsPerMatch, 1)
	intVar("BATTLE_COUNTDOWN_STEPS", &cfg.CountdownSteps, 0)
	durVar("BATTLE_COUNTDOWN_INTERVAL", &cfg.CountdownInterval)
	durVar("BATTLE_ABANDON_AFTER", &cfg.AbandonAfter)
	durVar("QUEUE_PENDING_TTL", &cfg.PendingTTL)
	durVar("REMATCH_TTL", &cfg.RematchTTL)
	durVar("SWEEP_INTERVAL", &cfg.SweepInterval)
	durVar("STATS_CACHE_TTL", &cfg.StatsCacheTTL)

	if cfg.IrisBaseURL == "" {
		errs = append(errs, errors.New("IRIS_BASE_URL is required"))
	}
	if cfg.IrisWSURL == "" {
		errs = append(errs, errors.New("IRIS_WS_URL is required"))
	}
	if cfg.BotPrefix == "" {
		errs = append(errs, errors.New("BOT_PREFIX is required"))
	}
	switch cfg.EgressMode {
	case "http", "ws", "auto":
	default:
		errs = append(errs, fmt.Errorf("EGRESS_MODE: unknown mode %q", cfg.EgressMode))
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return cfg, nil
}

// RoomAllowed reports whether room passes the ALLOWED_ROOMS filter.
func (c *AppConfig) RoomAllowed(room string) bool {
	if len(c.AllowedRooms) == 0 {
		return true
	}
	for _, r := range c.AllowedRooms {
		if r == room {
			return true
		}
	}
	return false
}

// Headers returns the Iris auth header provider.
func (c *AppConfig) Headers() func() map[string]string {
	return IrisHeaders(c.XUserID, c.XUserEmail, c.XSessionID)
}

func IrisHeaders(userID, email, sessionID string) func() map[string]string {
	return func() map[string]string {
		h := map[string]string{}
		if v := strings.TrimSpace(userID); v != "" {
			h["X-User-Id"] = v
		}
		if v := strings.TrimSpace(email); v != "" {
			h["X-User-Email"] = v
		}
		if v := strings.TrimSpace(sessionID); v != "" {
			h["X-Session-Id"] = v
		}
		return h
	}
}

// ParseDuration accepts Go duration syntax ("90s", "5m") or a bare number of seconds.
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	return time.ParseDuration(s)
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
