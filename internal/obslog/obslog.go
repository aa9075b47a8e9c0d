package obslog

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// 전역 로거. 초기화 전에는 Nop 로거를 돌려준다.
var globalLogger atomic.Pointer[zap.Logger]

func init() { globalLogger.Store(zap.NewNop()) }

// L는 전역 로거를 반환.
func L() *zap.Logger { return globalLogger.Load() }

// Replace swaps the global logger and returns a func restoring the previous one.
func Replace(l *zap.Logger) func() {
	if l == nil {
		l = zap.NewNop()
	}
	prev := globalLogger.Swap(l)
	return func() { globalLogger.Store(prev) }
}

type Options struct {
	Level    zapcore.Level
	Console  bool
	ToFile   bool
	FilePath string
	Caller   bool
	Format   string // legacy | json | console
}

// OptionsFromEnv reads LOG_LEVEL, LOG_TO_CONSOLE, LOG_TO_FILE, LOG_FILE,
// LOG_CALLER and LOG_FORMAT.
func OptionsFromEnv() Options {
	o := Options{
		Level:    parseLevel(getenvDefault("LOG_LEVEL", "info")),
		Console:  strings.EqualFold(getenvDefault("LOG_TO_CONSOLE", "true"), "true"),
		ToFile:   strings.EqualFold(getenvDefault("LOG_TO_FILE", "true"), "true"),
		FilePath: strings.TrimSpace(getenvDefault("LOG_FILE", filepath.Join("logs", "battle.log"))),
		Caller:   strings.EqualFold(getenvDefault("LOG_CALLER", "false"), "true"),
		Format:   strings.ToLower(strings.TrimSpace(getenvDefault("LOG_FORMAT", "legacy"))),
	}
	return o
}

// InitFromEnv는 환경설정으로 zap 로거를 초기화.
func InitFromEnv() error {
	l, err := Build(OptionsFromEnv())
	if err != nil {
		return err
	}
	globalLogger.Store(l)
	return nil
}

// Build assembles a console and/or file logger.
func Build(o Options) (*zap.Logger, error) {
	if o.Format != "legacy" && o.Format != "json" && o.Format != "console" {
		o.Format = "legacy"
	}
	var cores []zapcore.Core
	if o.Console {
		cores = append(cores, zapcore.NewCore(encoderFor(o.Format), zapcore.AddSync(os.Stdout), o.Level))
	}
	if o.ToFile && o.FilePath != "" {
		if err := ensureDir(filepath.Dir(o.FilePath)); err != nil {
			return nil, err
		}
		f, err := os.OpenFile(o.FilePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		cores = append(cores, zapcore.NewCore(encoderFor(o.Format), zapcore.AddSync(f), o.Level))
	}
	if len(cores) == 0 {
		enc := zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
		cores = append(cores, zapcore.NewCore(enc, zapcore.AddSync(os.Stdout), o.Level))
	}

	logger := zap.New(zapcore.NewTee(cores...))
	if o.Caller || o.Format == "legacy" {
		logger = logger.WithOptions(zap.AddCaller())
	}
	return logger.WithOptions(zap.AddStacktrace(zapcore.ErrorLevel)), nil
}

func encoderFor(format string) zapcore.Encoder {
	switch format {
	case "json":
		return zapcore.NewJSONEncoder(jsonEncoderConfig())
	case "console":
		return zapcore.NewConsoleEncoder(consoleEncoderConfig(false))
	default:
		return zapcore.NewConsoleEncoder(legacyEncoderConfig())
	}
}

func ensureDir(dir string) error {
	if strings.TrimSpace(dir) == "" || dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

func parseLevel(s string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func getenvDefault(k, def string) string {
	v := os.Getenv(k)
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

// 인코더 설정들
func legacyEncoderConfig() zapcore.EncoderConfig {
	cfg := zap.NewProductionEncoderConfig()
	cfg.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05")
	cfg.EncodeLevel = zapcore.CapitalLevelEncoder
	cfg.ConsoleSeparator = " | "
	return cfg
}

func consoleEncoderConfig(color bool) zapcore.EncoderConfig {
	cfg := zap.NewProductionEncoderConfig()
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	if color {
		cfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		cfg.EncodeLevel = zapcore.CapitalLevelEncoder
	}
	return cfg
}

func jsonEncoderConfig() zapcore.EncoderConfig {
	cfg := zap.NewProductionEncoderConfig()
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncodeLevel = zapcore.LowercaseLevelEncoder
	return cfg
}
