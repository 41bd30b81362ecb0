package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/kmerritt/scorecard/internal/api"
	"github.com/kmerritt/scorecard/internal/cache"
	"github.com/kmerritt/scorecard/internal/classifier"
	"github.com/kmerritt/scorecard/internal/config"
	"github.com/kmerritt/scorecard/internal/entsync"
	"github.com/kmerritt/scorecard/internal/merge"
	"github.com/kmerritt/scorecard/internal/metrics"
	"github.com/kmerritt/scorecard/internal/pipeline"
	"github.com/kmerritt/scorecard/internal/resolver"
	"github.com/kmerritt/scorecard/internal/storage"
	"github.com/kmerritt/scorecard/internal/ticker"
	"github.com/kmerritt/scorecard/internal/websocket"
	"github.com/kmerritt/scorecard/pkg/middleware"
)

func main() {
	// Configure logger
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	// Set log level
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Warn().Str("level", cfg.LogLevel).Msg("invalid log level, using info")
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	log.Info().
		Str("port", cfg.Port).
		Strs("allowed_origins", cfg.AllowedOrigins).
		Str("log_level", cfg.LogLevel).
		Msg("starting scorecard server")

	// Create context for services
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Open the store
	storeCfg := storage.LoadConfig()
	store, err := storage.NewStore(ctx, storeCfg, log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open store")
	}
	log.Info().Str("mode", string(storeCfg.Mode)).Msg("store ready")

	// Create WebSocket hub
	hub := websocket.NewHub(log.Logger)
	go hub.Run()

	// Create WebSocket handler
	wsHandler := websocket.NewHandler(hub, cfg, log.Logger)

	// Build the report classifier: heuristic always, remote with
	// heuristic fallback when configured
	var batchClassifier classifier.Classifier = classifier.NewHeuristic()
	if cfg.ClassifierURL != "" {
		remote := classifier.NewRemote(cfg.ClassifierURL, &http.Client{Timeout: cfg.ClassifierTimeout})
		batchClassifier = classifier.NewFallback(remote, classifier.NewHeuristic(), log.Logger)
	}

	// Create the core engines
	res := resolver.New(resolver.Config{
		AcceptConfidence: cfg.ResolverThreshold,
		BatchWorkers:     cfg.ResolverWorkers,
	}, resolver.DefaultNicknames(), log.Logger)
	merger := merge.New(store, log.Logger)
	syncEngine := entsync.New(store, log.Logger)
	uploadPipeline := pipeline.New(batchClassifier, res, merger, syncEngine, log.Logger)

	// In-memory caches
	roster := cache.NewRoster()
	outcomes := cache.NewOutcomeCache()

	// Periodic dashboard heartbeat
	statsTicker := ticker.NewTicker(hub, roster, 5*time.Second, log.Logger)
	go statsTicker.Start(ctx)

	// Create handlers
	uploadHandler := api.NewUploadHandler(uploadPipeline, roster, hub, log.Logger)
	rosterHandler := api.NewRosterHandler(roster, res, log.Logger)
	syncHandler := api.NewSyncHandler(store, syncEngine, outcomes, hub, log.Logger)
	historyHandler := api.NewAgentHistoryHandler(store, syncEngine, log.Logger)

	// Create router
	r := chi.NewRouter()

	// Add middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logger(log.Logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.AllowedOrigins))

	// Register public routes
	r.Get("/health", healthHandler)
	r.Get("/metrics", metrics.Get().Handler())

	// Internal routes for the workforce system
	r.Route("/internal", func(r chi.Router) {
		r.Post("/agents/roster", rosterHandler.HandleReplace)
	})

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Post("/uploads", uploadHandler.HandleUpload)
		r.Post("/resolve", rosterHandler.HandleResolve)
		r.Get("/agents", rosterHandler.HandleList)
		r.Route("/agents/{agentId}", func(r chi.Router) {
			r.Get("/metrics", historyHandler.GetMetrics)
			r.Get("/sessions", historyHandler.GetSessions)
			r.Get("/audits", historyHandler.GetAudits)
			r.Get("/attendance", historyHandler.GetAttendance)
			r.Get("/alerts", historyHandler.GetAlerts)
			r.Get("/availability", historyHandler.GetAvailability)
		})
		r.Post("/leaves", syncHandler.HandleLeave)
		r.Post("/audits", syncHandler.HandleAudit)
		r.Post("/sessions", syncHandler.HandleSession)
		r.Get("/sync/outcomes", syncHandler.HandleRecentOutcomes)
	})

	// Dashboard push channel
	r.Get("/ws", wsHandler.ServeHTTP)

	// Create HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info().Msgf("server listening on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server...")

	cancel()

	// Create shutdown context with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// Attempt graceful shutdown
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}

// healthHandler handles health check requests
func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"status":"ok","service":"scorecard"}`)
}
