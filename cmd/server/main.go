package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/rs/zerolog"

	"github.com/fenggwsx/SlashRelay/internal/config"
	"github.com/fenggwsx/SlashRelay/internal/logging"
	"github.com/fenggwsx/SlashRelay/internal/relay"
	"github.com/fenggwsx/SlashRelay/internal/server"
	"github.com/fenggwsx/SlashRelay/internal/storage"
	"github.com/fenggwsx/SlashRelay/internal/storage/filelog"
	"github.com/fenggwsx/SlashRelay/internal/storage/sqlite"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg := config.LoadServerConfig()
	logger := logging.New(cfg.Log)

	store, err := openStore(cfg)
	if err != nil {
		logger.Fatal().Err(err).Str("store", cfg.Store).Msg("init storage")
	}

	r := relay.New(store, relay.Options{
		HistorySize:     cfg.HistorySize,
		ReplayCount:     cfg.HistoryOnSubscribe,
		DeliveryTimeout: cfg.DeliveryTimeout,
		Logger:          logger,
	})
	app := server.NewApp(cfg, r, logger)

	logger.Info().
		Str("addr", cfg.ListenAddr()).
		Str("store", cfg.Store).
		Str("log_dir", cfg.LogDir).
		Int("history_size", cfg.HistorySize).
		Int("history_on_subscribe", cfg.HistoryOnSubscribe).
		Msg("starting relay")

	ctx, cancel := context.WithCancel(context.Background())
	var runErr error
	runDone := make(chan struct{})
	go func() {
		runErr = app.Run(ctx)
		close(runDone)
	}()

	wait := gfshutdown.GracefulShutdown(context.Background(), shutdownTimeout, map[string]gfshutdown.Operation{
		"relay": func(shutdownCtx context.Context) error {
			logger.Info().Msg("graceful shutdown initiated")
			cancel()
			select {
			case <-runDone:
			case <-shutdownCtx.Done():
				return shutdownCtx.Err()
			}
			if err := store.Close(); err != nil {
				logger.Error().Err(err).Msg("close storage")
			}
			return runErr
		},
	})

	select {
	case exitCode := <-wait:
		logger.Info().Int("code", exitCode).Msg("relay exited")
		os.Exit(exitCode)
	case <-runDone:
		if ctx.Err() != nil {
			exitCode := <-wait
			logger.Info().Int("code", exitCode).Msg("relay exited")
			os.Exit(exitCode)
		}
		cancel()
		_ = store.Close()
		exit(logger, runErr)
	}
}

func openStore(cfg config.ServerConfig) (storage.Log, error) {
	switch cfg.Store {
	case config.StoreSQLite:
		if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
			return nil, fmt.Errorf("create database dir: %w", err)
		}
		return sqlite.NewStore(context.Background(), cfg.Database)
	default:
		return filelog.NewStore(cfg.LogDir)
	}
}

func exit(logger zerolog.Logger, err error) {
	if err != nil {
		logger.Error().Err(err).Msg("server stopped")
		os.Exit(1)
	}
	os.Exit(0)
}
