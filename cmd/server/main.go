package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/codyseavey/mtg-value-bot/internal/app"
	"github.com/codyseavey/mtg-value-bot/internal/config"
	"github.com/codyseavey/mtg-value-bot/internal/logging"
)

func main() {
	configPath := flag.String("config", os.Getenv("MTGVALUE_CONFIG"), "Path to configuration file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		log.Fatal().Err(err).Msg("server terminated with error")
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger := logging.NewLogger(cfg.Logging)
	log.Logger = logger

	// Cancelled on SIGINT/SIGTERM; stops the tracker and drains the HTTP server
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer application.Close()

	return application.Serve(ctx)
}
