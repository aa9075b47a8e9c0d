// Package storage opens the PostgreSQL pool and applies the embedded schema.
package storage

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrations embed.FS

const migrationsDir = "migrations"

var gooseMu sync.Mutex

// Open connects to PostgreSQL with the bot's pool settings and pings it.
func Open(ctx context.Context, databaseURL string) (*sql.DB, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(16)
	db.SetMaxIdleConns(8)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// Migrate applies every pending migration.
func Migrate(ctx context.Context, db *sql.DB) error {
	return withGoose(func() error {
		if err := goose.UpContext(ctx, db, migrationsDir); err != nil {
			return fmt.Errorf("migrate up: %w", err)
		}
		return nil
	})
}

// Status prints the applied/pending state of each migration via goose's logger.
func Status(ctx context.Context, db *sql.DB) error {
	return withGoose(func() error {
		return goose.StatusContext(ctx, db, migrationsDir)
	})
}

// Version returns the current schema version.
func Version(ctx context.Context, db *sql.DB) (int64, error) {
	var v int64
	err := withGoose(func() error {
		var err error
		v, err = goose.GetDBVersionContext(ctx, db)
		return err
	})
	return v, err
}

// goose keeps its settings in package globals.
func withGoose(fn func() error) error {
	gooseMu.Lock()
	defer gooseMu.Unlock()
	goose.SetBaseFS(migrations)
	goose.SetTableName("goose_db_version")
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("goose dialect: %w", err)
	}
	return fn()
}

// MigrationNames lists the embedded migration files in order.
func MigrationNames() ([]string, error) {
	entries, err := migrations.ReadDir(migrationsDir)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".sql") {
			out = append(out, e.Name())
		}
	}
	return out, nil
}
