// cmd/bot/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/adwave/ads-bot/internal/bot"
	"github.com/adwave/ads-bot/internal/config"
	"github.com/adwave/ads-bot/internal/logger"
)

func main() {
	configPath := flag.String("config", "configs/config.json", "path to configuration file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logCfg := logger.DefaultConfig()
	logCfg.Development = cfg.DebugLogging
	log, err := logger.New(logCfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	log.Info("Starting ads bot")

	runner, err := bot.NewRunner(cfg, log)
	if err != nil {
		log.Fatal("Failed to initialize service", zap.Error(err))
	}

	if err := runner.Run(context.Background()); err != nil {
		log.Fatal("Service terminated", zap.Error(err))
	}
}
