package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/cvsouth/onion-keygen/cmd/onion-keygen/commands"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := commands.NewRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
