package server

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// NewHTTPServer creates the HTTP server with production timeout defaults.
// The read timeout only covers the upgrade handshake for WebSocket requests;
// hijacked connections manage their own deadlines.
func NewHTTPServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// ShutdownHTTPServer gracefully shuts the HTTP server down, waiting for
// active requests up to the timeout.
func ShutdownHTTPServer(server *http.Server, timeout time.Duration, logger zerolog.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Warn().Err(err).Msg("http server shutdown error")
		return err
	}
	logger.Info().Msg("http server shutdown complete")
	return nil
}
