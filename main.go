package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"eve-marketscan/internal/cli"
	"eve-marketscan/internal/logger"
)

var version = "dev"

func main() {
	logger.Banner(version)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cli.NewRootCommand(version).ExecuteContext(ctx); err != nil {
		logger.Error("MAIN", err.Error())
		stop()
		os.Exit(1)
	}
}
