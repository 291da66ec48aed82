// Package main is the entry point for the dashwatch application: a client
// for a system-metrics dashboard backend that keeps a live push channel, a
// stale-while-revalidate cache of dashboard data, and a debug HTTP surface
// for introspection.
package main

import (
	"context"

	"github.com/guttosm/dashwatch/config"
	"github.com/guttosm/dashwatch/internal/app"
	"github.com/rs/zerolog/log"
)

func main() {
	cfg := config.Load()

	application, err := app.InitializeApp(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Initialization error")
	}
	defer application.Shutdown()

	if err := application.Watcher.Run(context.Background()); err != nil {
		// The watcher still serves cached and pull-based data; push
		// updates resume once a later Connect succeeds.
		log.Warn().Err(err).Msg("Push channel unavailable at startup")
	}

	server := app.NewServer(application.Router, cfg.Server.Port)
	if err := server.Run(); err != nil {
		log.Fatal().Err(err).Msg("Server error")
	}
}
