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

	"github.com/alienxp03/gempt/internal/config"
	"github.com/alienxp03/gempt/internal/storage"
	"github.com/alienxp03/gempt/web/handlers"
)

func main() {
	port := flag.Int("port", 0, "Server port (default: from config, 8182)")
	dbPath := flag.String("db", "", "Database path (default: ~/.gempt/gempt.db)")
	cfgPath := flag.String("config", "", "Config file path (default: ~/.gempt/config.yaml)")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	// Initialize slog
	opts := &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}
	if *debug {
		opts.Level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, opts))
	slog.SetDefault(logger)

	// Load configuration
	path := *cfgPath
	if path == "" {
		path = config.DefaultConfigPath()
	}
	cfg, err := config.LoadFrom(path)
	if err != nil {
		slog.Error("Failed to load config", "path", path, "error", err)
		os.Exit(1)
	}
	if *dbPath != "" {
		cfg.Storage.Path = *dbPath
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}

	// Initialize storage
	slog.Info("Initializing storage", "path", cfg.StoragePath())
	store, err := storage.NewSQLiteStorage(cfg.StoragePath())
	if err != nil {
		slog.Error("Failed to initialize storage", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	if err := store.Initialize(); err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}

	// Wire oracles, ledger and engine
	orch, oracles, err := cfg.CreateOrchestrator(store)
	if err != nil {
		slog.Error("Failed to initialize orchestrator", "error", err)
		os.Exit(1)
	}
	for _, o := range oracles.Registry.List() {
		if !o.Available() {
			slog.Warn("Oracle not available", "oracle", o.Name())
		}
	}

	h := handlers.New(orch, oracles.Registry)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	server := &http.Server{
		Addr:    addr,
		Handler: h.Routes(),
	}

	// Handle shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		<-sigCh
		slog.Info("Shutting down...")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			slog.Error("Graceful shutdown failed", "error", err)
			server.Close()
		}
	}()

	slog.Info("Starting gempt API server", "url", fmt.Sprintf("http://localhost%s", addr))
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}
}
