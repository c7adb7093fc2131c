// Package server assembles a ready-to-run agent process from configuration.
//
// Usage:
//
//	srv, err := server.New(ctx, config.Load(config.KindElection), config.KindElection)
//	http.ListenAndServe(":8000", srv.Handler)
//	srv.Shutdown(ctx)
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/boltzchat/agents/internal/agent"
	"github.com/boltzchat/agents/internal/api"
	"github.com/boltzchat/agents/internal/api/handlers"
	"github.com/boltzchat/agents/internal/artifacts"
	"github.com/boltzchat/agents/internal/boltz"
	"github.com/boltzchat/agents/internal/config"
	"github.com/boltzchat/agents/internal/election"
	"github.com/boltzchat/agents/internal/extract"
	"github.com/boltzchat/agents/internal/metrics"
	"github.com/boltzchat/agents/internal/sessions"
	"github.com/boltzchat/agents/internal/telemetry"
	"github.com/boltzchat/agents/internal/transport"
	"github.com/boltzchat/agents/pkg/models"
)

// Server holds an initialized agent.
type Server struct {
	// Handler is the HTTP handler with all routes and middleware.
	Handler http.Handler

	// Agent is the turn engine behind the handlers.
	Agent *agent.Agent

	// Port is the port the server should listen on.
	Port int

	closers []func(context.Context) error
}

// New initializes every component of the agent of the given kind.
func New(ctx context.Context, cfg *config.Config, kind config.Kind) (_ *Server, err error) {
	srv := &Server{Port: cfg.Port}
	defer func() {
		if err != nil {
			_ = srv.closeAll(context.Background())
		}
	}()

	shutdown, err := telemetry.Init(ctx, cfg.Telemetry, cfg.Version)
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}
	srv.closers = append(srv.closers, shutdown)

	m := metrics.New(cfg.Name)

	store, err := newSessionStore(ctx, cfg.Sessions)
	if err != nil {
		return nil, err
	}
	srv.closers = append(srv.closers, func(context.Context) error { return store.Close() })
	if mem, ok := store.(*sessions.MemoryStore); ok && cfg.Sessions.TTL > 0 {
		jctx, stop := context.WithCancel(context.Background())
		go sessions.NewJanitor(mem, cfg.Sessions.TTL, 0).Start(jctx)
		srv.closers = append(srv.closers, func(context.Context) error { stop(); return nil })
	}

	client := transport.New()

	var responder agent.Responder
	switch kind {
	case config.KindStructure:
		responder, err = newStructureResponder(ctx, cfg, m)
	case config.KindElection:
		var db *election.Store
		db, err = openElectionStore(ctx, cfg.Election)
		if err == nil {
			srv.closers = append(srv.closers, func(context.Context) error { return db.Close() })
			responder = election.NewResponder(db, m)
		}
	default:
		err = fmt.Errorf("unknown agent kind %q", kind)
	}
	if err != nil {
		return nil, err
	}

	var extractor agent.Extractor
	var gemini *extract.Gemini
	switch cfg.Extractor.Backend {
	case "gemini":
		gemini, err = extract.NewGemini(ctx, cfg.Extractor.GeminiAPIKey, extract.WithModel(cfg.Extractor.GeminiModel))
		if err != nil {
			return nil, err
		}
		extractor = gemini
		log.Info().Str("model", cfg.Extractor.GeminiModel).Msg("✅ Gemini extractor initialized")
	default:
		extractor = extract.NewPeer(cfg.Extractor.PeerAddress, cfg.Extractor.ReplyAddress, client)
		log.Info().Str("peer", cfg.Extractor.PeerAddress).Msg("✅ Peer extractor initialized")
	}

	a := agent.New(cfg.Name, responder, extractor, store, client, agent.WithMetrics(m))
	if gemini != nil {
		gemini.Bind(a)
	}
	srv.Agent = a
	srv.closers = append(srv.closers, a.Wait)

	h := handlers.New(a, agentCard(cfg, kind))
	srv.Handler = api.NewRouter(cfg, h, m)

	log.Info().Str("agent", cfg.Name).Str("kind", string(kind)).Msg("✅ Agent initialized")
	return srv, nil
}

// Shutdown waits for in-flight turns, then releases stores and flushes
// telemetry, in reverse order of construction.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.closeAll(ctx)
}

func (s *Server) closeAll(ctx context.Context) error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}

// ══════════════════════════════════════════════════════════════
// ── Component wiring ─────────────────────────────────────────
// ══════════════════════════════════════════════════════════════

func newSessionStore(ctx context.Context, cfg config.SessionConfig) (sessions.Store, error) {
	if cfg.Backend != "redis" {
		log.Info().Msg("✅ In-memory session store initialized")
		return sessions.NewMemoryStore(), nil
	}
	store, err := sessions.NewRedisStore(ctx, sessions.RedisConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
		TTL:      cfg.TTL,
	})
	if err != nil {
		return nil, fmt.Errorf("connect session store: %w", err)
	}
	log.Info().Str("addr", cfg.RedisAddr).Msg("✅ Redis session store initialized")
	return store, nil
}

func newStructureResponder(ctx context.Context, cfg *config.Config, m *metrics.Metrics) (*boltz.Responder, error) {
	var pub artifacts.Publisher
	switch cfg.Artifacts.Backend {
	case "s3":
		s3pub, err := artifacts.NewS3Publisher(ctx, artifacts.S3Config{
			Bucket:    cfg.Artifacts.S3Bucket,
			Region:    cfg.Artifacts.S3Region,
			Endpoint:  cfg.Artifacts.S3Endpoint,
			PathStyle: cfg.Artifacts.S3PathStyle,
			URLExpiry: cfg.Artifacts.S3URLExpiry,
		})
		if err != nil {
			return nil, err
		}
		pub = s3pub
		log.Info().Str("bucket", cfg.Artifacts.S3Bucket).Msg("✅ S3 artifact host initialized")
	default:
		if cfg.Artifacts.GitHubToken == "" {
			log.Warn().Msg("GITHUB_PAT is not set; structure uploads will fail")
		}
		pub = artifacts.NewGistPublisher(cfg.Artifacts.GitHubToken, artifacts.WithGistEndpoint(cfg.Artifacts.GistEndpoint))
		log.Info().Msg("✅ Gist artifact host initialized")
	}

	client := boltz.NewClient(cfg.Boltz.APIKey,
		boltz.WithEndpoint(cfg.Boltz.Endpoint),
		boltz.WithTimeout(cfg.Boltz.Timeout),
	)
	return boltz.NewResponder(client, pub, m), nil
}

// openElectionStore opens the results database. A configured CSV replaces
// its contents; otherwise an empty database is seeded from the built-in sample.
func openElectionStore(ctx context.Context, cfg config.ElectionConfig) (*election.Store, error) {
	db, err := election.OpenStore(ctx, cfg.DBPath)
	if err != nil {
		return nil, err
	}

	switch {
	case cfg.DataPath != "":
		f, err := os.Open(cfg.DataPath)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("open election data: %w", err)
		}
		defer f.Close()
		if err := db.Load(ctx, f); err != nil {
			db.Close()
			return nil, err
		}
		log.Info().Str("path", cfg.DataPath).Msg("✅ Election results loaded")
	default:
		n, err := db.Count(ctx)
		if err != nil {
			db.Close()
			return nil, err
		}
		if n == 0 {
			if err := db.Load(ctx, election.SampleData()); err != nil {
				db.Close()
				return nil, err
			}
			log.Info().Msg("✅ Election results seeded from built-in sample")
		}
	}
	return db, nil
}

func agentCard(cfg *config.Config, kind config.Kind) models.AgentCard {
	card := models.AgentCard{
		Name:     cfg.Name,
		URL:      cfg.Extractor.ReplyAddress,
		Version:  cfg.Version,
		Provider: models.AgentCardProvider{Organization: "boltzchat"},
		Capabilities: models.AgentCapabilities{
			Sessions:         true,
			StructuredOutput: true,
		},
		InputModes:  []string{"text"},
		OutputModes: []string{"text"},
		Protocols:   []string{"chat", "structured-output"},
	}
	switch kind {
	case config.KindStructure:
		card.Description = "Predicts biomolecular structures with Boltz-2 from a natural-language request."
		card.Skills = []models.AgentSkill{{
			ID:          "boltz2-predict",
			Name:        "Structure prediction",
			Description: "Folds proteins, nucleic acids and ligands and links each structure to a 3D viewer.",
			Tags:        []string{"biology", "protein", "structure"},
			Examples:    []string{"Predict the structure of MKTVRQERLKSIVRILERSKEPVSGAQLAEELSVSRQVIVQDIAYLRSLGYNIVATPRGYVLAGG"},
		}}
	case config.KindElection:
		card.Description = "Answers who won a U.S. state in a presidential election year."
		card.Skills = []models.AgentSkill{{
			ID:          "election-results",
			Name:        "Election results",
			Description: "Looks up state-level presidential vote totals.",
			Tags:        []string{"elections", "politics"},
			Examples:    []string{"Who won Georgia in 2020?"},
		}}
	}
	return card
}

// ══════════════════════════════════════════════════════════════
// ── Run ──────────────────────────────────────────────────────
// ══════════════════════════════════════════════════════════════

// Run serves the agent until ctx is cancelled, then shuts down gracefully.
func Run(ctx context.Context, cfg *config.Config, kind config.Kind) error {
	srv, err := New(ctx, cfg, kind)
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", srv.Port),
		Handler:      srv.Handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.Info().Str("agent", cfg.Name).Int("port", srv.Port).Msg("🔥 Agent is ready!")
		errc <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errc:
		_ = srv.Shutdown(context.Background())
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	log.Info().Msg("🛑 Shutting down gracefully...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("HTTP shutdown incomplete")
	}
	return srv.Shutdown(shutdownCtx)
}
