package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/park285/vocab-battle-bot/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := cli.Execute(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "battlectl:", err)
		os.Exit(1)
	}
}
