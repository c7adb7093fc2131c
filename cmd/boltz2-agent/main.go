// Boltz-2 structure agent.
//
// Turns a chat request such as "fold this protein with ATP" into a validated
// Boltz-2 prediction, hosts each predicted structure and replies with links to
// a 3D viewer.
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

	cfg := config.Load(config.KindStructure)
	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(level)
	}
	if err := cfg.Validate(config.KindStructure); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	log.Info().Str("agent", cfg.Name).Msg("🧬 Boltz-2 agent starting...")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := server.Run(ctx, cfg, config.KindStructure); err != nil {
		log.Fatal().Err(err).Msg("Agent failed")
	}
}
