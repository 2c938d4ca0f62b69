package main

import (
	"flag"
	"log"
	"os"

	"github.com/jshorterFG/market-analyzer-tv/internal/di"
	"github.com/jshorterFG/market-analyzer-tv/pkg/config"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "config file path")
	flag.Parse()

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	log.Printf("env=%s cache_enabled=%t hot_tier_days=%d",
		cfg.Environment, cfg.Cache.Enabled, cfg.Cache.HotTierDays)

	app, err := di.InitializeApp(cfg)
	if err != nil {
		log.Fatalf("app initialization failed: %v", err)
	}

	if err := app.Run(); err != nil {
		log.Printf("app error: %v", err)
		os.Exit(1)
	}
}
