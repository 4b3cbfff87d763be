package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/issuelens/backend/internal/ai"
	"github.com/issuelens/backend/internal/config"
	"github.com/issuelens/backend/internal/db"
	httpapi "github.com/issuelens/backend/internal/http"
	"github.com/issuelens/backend/internal/http/handlers"
	"github.com/issuelens/backend/internal/metrics"
	"github.com/issuelens/backend/internal/service"
	"github.com/issuelens/backend/internal/tracker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	zerolog.TimeFieldFormat = time.RFC3339
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	logger := log.Level(level).With().Str("service", "issuelens").Logger()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	ctx := context.Background()
	svc := &service.AnalysisService{
		Analyzer: ai.NewAnalyzer(cfg, logger, m),
		Tracker:  tracker.NewGitHubClient(cfg.GitHubAPIURL, cfg.GitHubToken, cfg.GitHubMaxComments, logger),
		Logger:   logger,
		Workers:  cfg.BatchWorkers,
	}

	var store handlers.Store
	if cfg.DatabaseURL != "" {
		pg, err := db.New(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect db")
		}
		defer pg.Close()
		if err := pg.Migrate(ctx); err != nil {
			logger.Fatal().Err(err).Msg("failed to migrate db")
		}
		svc.Store = pg
		store = pg
	} else {
		logger.Info().Msg("DATABASE_URL not set, analyses will not be persisted")
	}

	router := httpapi.Router(cfg, svc, store, reg, logger)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           http.TimeoutHandler(router, cfg.RequestTimeout, `{"error":{"code":"TIMEOUT","message":"Request timed out","details":null}}`),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info().Str("port", cfg.Port).Msg("server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctxShutdown)
	logger.Info().Msg("server stopped")
}
