// Package main provides an in-memory Corbo backend for local development.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nomdev/corbo/internal/server"
)

func main() {
	code := flag.String("code", server.DefaultCode, "verification code accepted for every phone number")
	frameDelay := flag.Duration("frame-delay", 50*time.Millisecond, "pause between streamed answer frames")
	tokenLifetime := flag.Duration("token-lifetime", time.Hour, "access token lifetime")
	flag.Parse()

	// Get server port from environment or default
	port := os.Getenv("CORBO_DEVSERVER_PORT")
	if port == "" {
		port = "8485"
	}

	level := slog.LevelInfo
	if os.Getenv("LOG_LEVEL") == "debug" {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	slog.Info("starting corbo-devserver", "port", port)

	backend := server.NewBackend(
		server.WithLogger(logger),
		server.WithVerificationCode(*code),
		server.WithFrameDelay(*frameDelay),
		server.WithTokenLifetime(*tokenLifetime),
	)

	httpServer := &http.Server{
		Addr:         ":" + port,
		Handler:      backend.Handler(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 60 * time.Second, // Long for streamed answers
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		slog.Info("API available", "url", fmt.Sprintf("http://localhost:%s/api/core", port))
		slog.Info("point the CLI at it", "env", fmt.Sprintf("CORBO_BASE_URL=http://localhost:%s", port))

		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("server stopped")
}
