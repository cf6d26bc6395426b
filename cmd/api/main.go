package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"example.com/spring/internal/api"
	"example.com/spring/internal/auth"
	"example.com/spring/internal/bootstrap"
	"example.com/spring/internal/config"
	"example.com/spring/internal/feed"
	"example.com/spring/internal/store"
	httptransport "example.com/spring/internal/transport/http"
)

func main() {
	_ = godotenv.Load()

	logger := zerolog.New(os.Stdout).With().
		Timestamp().
		Str("service", "spring-api").
		Logger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	backend, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("backend setup failed")
	}
	defer backend.Close()

	feeds := feed.NewRegistry(func(userID string) *feed.Engine {
		engine := feed.NewEngine(backend.Gateway, store.NewActivityStore(), userID, logger,
			feed.WithFetchLimit(cfg.FeedLimit))
		if err := engine.Subscribe(ctx); err != nil {
			logger.Error().Err(err).Str("user_id", userID).Msg("feed subscription failed")
		}
		return engine
	})

	var authClient *auth.Client
	if cfg.BackendURL != "" {
		authClient = auth.NewClient(cfg.BackendURL, cfg.BackendKey, cfg.HTTPTimeout)
	}
	handler := api.NewHandler(backend.Gateway, authClient, feeds, logger)
	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)
	mux.Handle("GET /metrics", promhttp.Handler())

	bearer := auth.NewBearerMiddleware(
		auth.Config{Secret: cfg.JWTSecret, Issuer: cfg.JWTIssuer},
		func(r *http.Request) bool {
			return r.URL.Path == "/healthz" ||
				r.URL.Path == "/v1/auth/refresh" ||
				strings.HasPrefix(r.URL.Path, "/metrics")
		},
	)

	server := httptransport.NewServer(httptransport.ServerConfig{
		Address:      cfg.HTTPAddress,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}, bearer.Wrap(mux))

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info().Str("address", cfg.HTTPAddress).Msg("spring-api listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	<-shutdownCh
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
}
