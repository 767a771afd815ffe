// The pipe backend speaks the PowerDNS pipe protocol on stdin/stdout.
// All logging goes to stderr; stdout belongs to the protocol.
package main

import (
	"flag"
	"log"
	"os"

	"go.uber.org/zap"

	"dyndnsd/internal/config"
	"dyndnsd/internal/database"
	"dyndnsd/internal/logging"
	"dyndnsd/internal/pdns"
	"dyndnsd/web"
)

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

	db, err := database.Open(cfg.Database.DSN, web.MigrationsFS())
	if err != nil {
		logger.Fatal("failed to open database", zap.Error(err))
	}
	defer db.Close()

	resolver := pdns.NewResolver(db, cfg.DNS, logger)
	pipe := pdns.NewPipe(resolver, os.Stdin, os.Stdout, logger)
	if err := pipe.Run(); err != nil {
		logger.Fatal("pipe terminated", zap.Error(err))
	}
}
