// Package cli implements battlectl, the operator CLI for the battle bot's
// PostgreSQL store.
package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/park285/vocab-battle-bot/internal/config"
	"github.com/park285/vocab-battle-bot/internal/content"
	"github.com/park285/vocab-battle-bot/internal/domain"
	"github.com/park285/vocab-battle-bot/internal/history"
	"github.com/park285/vocab-battle-bot/internal/storage"
	"github.com/spf13/cobra"
)

// Backend is what battlectl needs from the database.
type Backend interface {
	Migrate(ctx context.Context) error
	Status(ctx context.Context) error
	Version(ctx context.Context) (int64, error)
	GenerateSessions(ctx context.Context, cfg domain.BattleConfig, count int) (int, error)
	Stats(ctx context.Context, playerID string) (*domain.PlayerStats, error)
	HeadToHead(ctx context.Context, playerID, opponentID string) (*domain.HeadToHead, error)
	Close() error
}

// Opener connects a Backend for databaseURL.
type Opener func(ctx context.Context, databaseURL string) (Backend, error)

// Execute runs battlectl against PostgreSQL.
func Execute(ctx context.Context) error {
	config.LoadDotenv()
	return NewRootCmd(OpenPostgres).ExecuteContext(ctx)
}

func NewRootCmd(open Opener) *cobra.Command {
	var databaseURL string
	cmd := &cobra.Command{
		Use:           "battlectl",
		Short:         "Operate the vocabulary battle store",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&databaseURL, "database-url", strings.TrimSpace(os.Getenv("DATABASE_URL")), "PostgreSQL connection URL")

	connect := func(cmd *cobra.Command) (Backend, error) {
		if strings.TrimSpace(databaseURL) == "" {
			return nil, errors.New("database url not configured (--database-url or DATABASE_URL)")
		}
		return open(cmd.Context(), databaseURL)
	}
	cmd.AddCommand(newMigrateCmd(connect))
	cmd.AddCommand(newSessionsCmd(connect))
	cmd.AddCommand(newStatsCmd(connect))
	cmd.AddCommand(newHeadToHeadCmd(connect))
	return cmd
}

type connectFunc func(cmd *cobra.Command) (Backend, error)

// withBackend opens the backend for one command run and closes it afterwards.
func withBackend(connect connectFunc, run func(cmd *cobra.Command, b Backend, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		b, err := connect(cmd)
		if err != nil {
			return err
		}
		defer b.Close()
		return run(cmd, b, args)
	}
}

type pgBackend struct {
	db      *sql.DB
	content *content.Postgres
	history *history.Service
}

// OpenPostgres connects the content and history stores. The stats cache is
// not used; battlectl always reads through to the database.
func OpenPostgres(ctx context.Context, databaseURL string) (Backend, error) {
	db, err := storage.Open(ctx, databaseURL)
	if err != nil {
		return nil, err
	}
	svc, err := history.NewService(history.NewRepository(db), nil, history.Config{}, nil)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("history service: %w", err)
	}
	return &pgBackend{db: db, content: content.NewPostgres(db), history: svc}, nil
}

func (b *pgBackend) Migrate(ctx context.Context) error {
	return storage.Migrate(ctx, b.db)
}

func (b *pgBackend) Status(ctx context.Context) error {
	return storage.Status(ctx, b.db)
}

func (b *pgBackend) Version(ctx context.Context) (int64, error) {
	return storage.Version(ctx, b.db)
}

func (b *pgBackend) GenerateSessions(ctx context.Context, cfg domain.BattleConfig, count int) (int, error) {
	return b.content.GenerateSessions(ctx, cfg, count)
}

func (b *pgBackend) Stats(ctx context.Context, playerID string) (*domain.PlayerStats, error) {
	return b.history.Stats(ctx, playerID)
}

func (b *pgBackend) HeadToHead(ctx context.Context, playerID, opponentID string) (*domain.HeadToHead, error) {
	return b.history.HeadToHead(ctx, playerID, opponentID)
}

func (b *pgBackend) Close() error { return b.db.Close() }
