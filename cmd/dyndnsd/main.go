package main

import (
	"flag"
	"log"

	"go.uber.org/zap"

	"dyndnsd/internal/config"
	"dyndnsd/internal/logging"
	"dyndnsd/internal/server"
)

var version = "dev"

func main() {
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer logger.Sync()

	if err := server.Start(cfg, logger, version); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}
