package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/park285/vocab-battle-bot/internal/battlebuilder"
	"github.com/park285/vocab-battle-bot/internal/command"
	appcfg "github.com/park285/vocab-battle-bot/internal/config"
	"github.com/park285/vocab-battle-bot/internal/irisfast"
	"github.com/park285/vocab-battle-bot/internal/obslog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
)

func main() {
	if err := run(); err != nil {
		obslog.L().Error("battle_bot_exit", zap.Error(err))
		_ = obslog.L().Sync()
		fmt.Fprintln(os.Stderr, "battle-bot:", err)
		os.Exit(1)
	}
}

func run() error {
	appcfg.LoadDotenv()
	if err := obslog.InitFromEnv(); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	logger := obslog.L()
	defer func() { _ = logger.Sync() }()

	cfg, err := appcfg.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	headers := cfg.Headers()
	client := irisfast.NewClient(cfg.IrisBaseURL,
		irisfast.WithHeaderProvider(headers),
		irisfast.WithTimeout(8*time.Second),
	)
	ws := irisfast.NewWebSocket(cfg.IrisWSURL, 5, time.Second)
	ws.SetLogger(logger)
	ws.SetHeaderProvider(headers)
	ws.OnStateChange(func(state irisfast.WebSocketState) {
		logger.Info("ws_state", zap.String("state", state.String()))
	})
	egress := irisfast.NewEgress(cfg.EgressMode, cfg.EgressDryRun, client, ws, logger)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	deps, err := battlebuilder.New(ctx, cfg, egress.SendText, reg, logger)
	if err != nil {
		return fmt.Errorf("build battle services: %w", err)
	}
	handler, err := command.NewHandler(cfg.BotPrefix, deps.Arena, deps.History, deps.Presenter, logger)
	if err != nil {
		_ = deps.Close(context.Background())
		return err
	}
	mailbox := command.NewMailbox(handler.Handle, command.MailboxOptions{Logger: logger})

	ws.OnMessage(func(msg *irisfast.Message) {
		if msg == nil || msg.Msg == "" {
			return
		}
		if !cfg.RoomAllowed(msg.Room) {
			logger.Debug("room_ignored", zap.String("room", msg.Room))
			return
		}
		// one worker per player keeps the WS read loop free and answers in order
		if err := mailbox.Post(command.FromMessage(msg)); err != nil {
			logger.Debug("command_dropped", zap.String("room", msg.Room), zap.Error(err))
		}
	})

	go deps.Arena.Run(ctx)
	if cfg.MetricsAddr != "" {
		go func() {
			if err := deps.Metrics.Serve(ctx, cfg.MetricsAddr); err != nil {
				logger.Error("metrics_server_failed", zap.String("addr", cfg.MetricsAddr), zap.Error(err))
			}
		}()
	}

	cctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	err = ws.Connect(cctx)
	cancel()
	if err != nil {
		_ = deps.Close(context.Background())
		return fmt.Errorf("ws connect: %w", err)
	}
	logger.Info("battle_bot_started",
		zap.String("prefix", cfg.BotPrefix),
		zap.String("egress", cfg.EgressMode),
		zap.Bool("redis", cfg.RedisURL != ""),
		zap.Bool("postgres", cfg.DatabaseURL != ""),
	)

	<-ctx.Done()
	logger.Info("battle_bot_stopping")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	wsErr := ws.Close(shutdownCtx)
	return errors.Join(wsErr, mailbox.Close(shutdownCtx), deps.Close(shutdownCtx))
}
