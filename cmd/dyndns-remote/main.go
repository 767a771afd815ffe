// The remote backend answers PowerDNS remote-backend lookups over HTTP.
// It runs standalone so the DNS path stays up while the portal restarts.
package main

import (
	"flag"
	"log"
	"net/http"

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

	remoteH := pdns.NewRemoteHandler(pdns.NewResolver(db, cfg.DNS, logger), logger)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /dnsapi/lookup/{qname}/{qtype}", remoteH.Lookup)

	logger.Info("remote backend listening", zap.String("addr", cfg.DNS.RemoteListen))
	if err := http.ListenAndServe(cfg.DNS.RemoteListen, mux); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}
