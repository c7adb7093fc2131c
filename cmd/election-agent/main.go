// Election agent: answers "who won <state> in <year>" from a table of U.S.
// presidential results.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/boltzchat/agents/internal/config"
	"github.com/boltzchat/agents/pkg/server"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	cfg := config.Load(config.KindElection)
	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(level)
	}
	if err := cfg.Validate(config.KindElection); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	log.Info().Str("agent", cfg.Name).Msg("🗳️ Election agent starting...")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := server.Run(ctx, cfg, config.KindElection); err != nil {
		log.Fatal().Err(err).Msg("Agent failed")
	}
}
