package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"bourse/internal/config"
	"bourse/internal/logging"
	"bourse/internal/session"
	"bourse/internal/store"

	"github.com/rs/zerolog/log"
)

func main() {
	configPath := flag.String("config", "configs/bourse.yaml", "Path to the YAML configuration")
	trials := flag.Int("trials", 0, "Override the number of sessions to run")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Str("config", *configPath).Msg("failed to load configuration")
	}
	if *trials > 0 {
		cfg.Session.Trials = *trials
	}

	closer, err := logging.Setup(cfg.Logging)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to set up logging")
	}
	defer closer.Close()

	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGTERM,
		syscall.SIGINT,
	)
	defer stop()

	sink, err := store.Open(cfg.Store)
	if err != nil {
		log.Fatal().Err(err).Str("backend", cfg.Store.Backend).Msg("failed to open store")
	}
	defer sink.Close()

	log.Info().
		Int("trials", cfg.Session.Trials).
		Int("workers", cfg.Session.Workers).
		Str("store", cfg.Store.Backend).
		Msg("starting sessions")

	results, err := session.RunTrials(ctx, cfg, sink)
	if err != nil {
		log.Error().Err(err).Msg("run aborted")
		stop()
		sink.Close()
		closer.Close()
		os.Exit(1)
	}

	for _, res := range results {
		for _, sum := range res.Summaries {
			log.Info().
				Str("session", res.ID).
				Str("type", sum.Type).
				Int("traders", sum.Traders).
				Int64("balance", sum.Balance).
				Str("average", sum.Average().StringFixed(2)).
				Msg("session summary")
		}
	}
}
