package main

import (
	"flag"
	"log"
	"os"

	"ChainPilot/internal/di"
	"ChainPilot/pkg/config"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "config file path")
	flag.Parse()

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	log.Printf("env=%s ingest=%s executor=%s", cfg.Environment, cfg.Ingest.Backend, cfg.Executor.Mode)

	store := config.NewStore(*configPath, cfg)

	app, err := di.InitializeApp(cfg, store)
	if err != nil {
		log.Fatalf("app initialization failed: %v", err)
	}

	if err := app.Run(); err != nil {
		log.Printf("app error: %v", err)
		os.Exit(1)
	}
}
