package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/avollmer/chatrelay/internal/broadcast"
	"github.com/avollmer/chatrelay/internal/config"
	"github.com/avollmer/chatrelay/internal/logging"
	"github.com/avollmer/chatrelay/internal/registry"
	"github.com/avollmer/chatrelay/internal/server"
	"github.com/avollmer/chatrelay/internal/session"
	"github.com/avollmer/chatrelay/internal/translate"
	"github.com/avollmer/chatrelay/internal/version"
)

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func runGracefulShutdown(srv *server.Server, reg *registry.Registry) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, cleaning up...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		drained := reg.Drain()
		for _, e := range drained {
			_ = e.Conn.Close()
		}
		slog.Info("Closed remaining connections", "count", len(drained))

		close(done)
	}()

	return done
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()

	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Application starting", "env", cfg.AppEnv, "port", cfg.Port, "version", version.Get().Version)

	var translator translate.Translator
	if cfg.TranslationAPIURL != "" {
		translator = translate.NewClient(cfg.TranslationAPIURL, cfg.TranslationTimeout)
		slog.Info("Translation enrichment enabled", "url", cfg.TranslationAPIURL)
	} else {
		slog.Info("Translation enrichment disabled")
	}

	reg := registry.New()
	broadcaster := broadcast.New(reg)
	sessions := session.NewHandler(reg, broadcaster, translator)

	srv, err := server.NewServer(cfg, reg, sessions, clock)
	if err != nil {
		slog.Error("Failed to create server", "error", err)
		os.Exit(1)
	}

	done := runGracefulShutdown(srv, reg)

	slog.Info("Server starting", "port", cfg.Port)
	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	<-done
}
