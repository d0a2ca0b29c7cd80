package main

import (
	"context"
	"flag"
	"log"

	"marketbrief/internal/config"
	"marketbrief/internal/engine"
	"marketbrief/internal/feed"
	"marketbrief/internal/logger"
	"marketbrief/internal/report"
	"marketbrief/internal/telegram"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	// 1. load and validate config before any network activity
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	// 2. init logging
	if err := logger.Init(cfg.Log.Level, cfg.Log.File); err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	logger.Log.Info("starting marketbrief run")

	ctx := context.Background()

	// 3. wire components
	fetcher := feed.NewFetcher(cfg)
	generator, err := report.NewGenerator(ctx, cfg, fetcher)
	if err != nil {
		logger.Log.Fatalf("failed to init report generator: %v", err)
	}
	notifier := telegram.NewClient(cfg.Telegram.Token, cfg.Telegram.ChatID)

	// 4. one full run, then exit
	eng := engine.New(generator, notifier)
	if err := eng.Run(ctx); err != nil {
		logger.Log.Errorf("run failed: %v", err)
	}
	logger.Log.Info("run complete")
}
