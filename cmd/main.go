package main

import (
	"context"
	"fmt"
	"os"

	"github.com/yungbote/custrisk-backend/internal/app"
	"github.com/yungbote/custrisk-backend/internal/platform/logger"
	"github.com/yungbote/custrisk-backend/internal/platform/shutdown"
)

func main() {
	cfg, err := app.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.LogMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to init logger: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := shutdown.NotifyContext(context.Background())
	defer stop()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Error("Failed to initialize app", "error", err)
		log.Sync()
		os.Exit(1)
	}
	defer a.Close()

	if err := a.Run(ctx); err != nil {
		log.Error("Server exited with error", "error", err)
		a.Close()
		os.Exit(1)
	}
	log.Info("Server stopped")
}
