package main

import (
	"fmt"
	"os"

	"github.com/portal-dev/portal/internal/config"
	"github.com/portal-dev/portal/internal/logger"
	"github.com/portal-dev/portal/internal/server"
)

var version = "dev" // Set during build with -ldflags

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	log := logger.GetLogger()

	srv, err := server.New(cfg, log, version)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create server")
	}

	log.Info().
		Str("version", version).
		Str("backend", cfg.Backend.BaseURL).
		Str("site", cfg.Site.URL).
		Msg("Starting portal server...")

	// Blocks until shutdown
	if err := srv.Start(); err != nil {
		log.Fatal().Err(err).Msg("Server failed to start")
	}
}
