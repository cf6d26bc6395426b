package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"example.com/spring/internal/auth"
	"example.com/spring/internal/bootstrap"
	"example.com/spring/internal/config"
	"example.com/spring/internal/feed"
	"example.com/spring/internal/store"
	httptransport "example.com/spring/internal/transport/http"
	"example.com/spring/internal/web"
)

func main() {
	_ = godotenv.Load()

	logger := zerolog.New(os.Stdout).With().
		Timestamp().
		Str("service", "spring-web").
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

	// Sign-in always goes through the hosted auth service, even when data
	// access runs against Postgres directly.
	if cfg.BackendURL == "" {
		logger.Fatal().Msg("SPRING_BACKEND_URL is required for sign-in")
	}
	authClient := auth.NewClient(cfg.BackendURL, cfg.BackendKey, cfg.HTTPTimeout)
	authCfg := auth.Config{Secret: cfg.JWTSecret, Issuer: cfg.JWTIssuer}

	handler, err := web.NewHandler(backend.Gateway, authClient, authCfg, feeds, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("template setup failed")
	}

	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)
	mux.Handle("GET /metrics", promhttp.Handler())

	guard := auth.NewGuard(authCfg, web.ProtectedPrefixes)

	server := httptransport.NewServer(httptransport.ServerConfig{
		Address:     cfg.HTTPAddress,
		ReadTimeout: 5 * time.Second,
		// WriteTimeout stays zero; /ws/ handlers hold connections open.
		IdleTimeout: 60 * time.Second,
	}, guard.Wrap(requestLogger(logger, mux)))

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info().Str("address", cfg.HTTPAddress).Msg("spring-web listening")
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

func requestLogger(logger zerolog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger.Debug().Str("method", r.Method).Str("path", r.URL.Path).Msg("request")
		next.ServeHTTP(w, r)
	})
}
