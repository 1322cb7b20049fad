package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/joho/godotenv"

	"shop-ledger/internal/adapters/cli"
)

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := cli.Execute(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
