// Command messenger runs the chat service: the JSON API and the realtime
// WebSocket endpoint in a single process.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/messenger-chat/messenger/internal/api"
	"github.com/messenger-chat/messenger/internal/auth"
	"github.com/messenger-chat/messenger/internal/config"
	"github.com/messenger-chat/messenger/internal/logging"
	"github.com/messenger-chat/messenger/internal/server"
	"github.com/messenger-chat/messenger/internal/store"
)

func main() {
	// A missing .env file is fine; real deployments set the environment
	// directly.
	_ = godotenv.Load()

	logger := logging.New(os.Getenv("MESSENGER_LOG_LEVEL"))

	cfg, err := config.Load(logger, "config")
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load configuration")
	}
	logger = logging.New(cfg.Log.Level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(ctx, cfg.Database.DSN, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open database")
	}
	defer st.Close()

	if err := st.Migrate(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to migrate database")
	}

	authService, err := auth.NewService(st, cfg.Auth.JWTSecret, cfg.Auth.TokenTTL, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create auth service")
	}

	hub := server.NewHub(authService, st, cfg.WebSocket, logger)

	mux := http.NewServeMux()
	api.New(authService, st, logger).Register(mux)
	mux.HandleFunc("/ws", hub.ServeWS)
	mux.Handle("GET /metrics", promhttp.Handler())

	httpServer := server.NewHTTPServer(cfg.Server.Addr, api.WithCORS(mux))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		hub.Run()
		return nil
	})
	g.Go(func() error {
		logger.Info().Str("addr", cfg.Server.Addr).Msg("server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("shutting down")
		_ = server.ShutdownHTTPServer(httpServer, cfg.Server.ShutdownTimeout, logger)
		return hub.Shutdown(cfg.Server.ShutdownTimeout)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		logger.Error().Err(err).Msg("server exited with error")
		os.Exit(1)
	}
	logger.Info().Msg("shutdown complete")
}
