package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"gamehost/internal/archive"
	"gamehost/internal/backup"
	"gamehost/internal/config"
	"gamehost/internal/engine"
	"gamehost/internal/games/connectfour"
	"gamehost/internal/games/snakesladders"
	"gamehost/internal/games/splendor"
	"gamehost/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	var logger *zap.Logger
	if cfg.Debug {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	backups, err := backup.Open(cfg.DBPath)
	if err != nil {
		logger.Fatal("open backup store", zap.Error(err), zap.String("path", cfg.DBPath))
	}
	defer backups.Close()

	archives, err := archive.New(backups.DB())
	if err != nil {
		logger.Fatal("open archive store", zap.Error(err))
	}

	registry := engine.NewRegistry()
	registry.Register(connectfour.Game{})
	registry.Register(snakesladders.Game{})
	registry.Register(splendor.Game{})

	hub := server.NewHub()
	sessions := engine.NewSessionRegistry(registry, engine.Deps{
		Channel:      hub,
		Backups:      backups,
		Archive:      archives,
		Logger:       logger,
		PokeAfter:    cfg.PokeAfter,
		ForfeitAfter: cfg.ForfeitAfter,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go sessions.SweepLoop(ctx, cfg.SweepInterval, cfg.Retention)

	srv := &http.Server{
		Addr:    cfg.Addr,
		Handler: server.New(registry, sessions, hub, logger, stop),
	}

	go func() {
		logger.Info("listening", zap.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("serve", zap.Error(err))
		}
	}()

	<-ctx.Done()

	// Persist the open-games manifest before the process exits so the next
	// startup can restore every session that was still in flight.
	if err := sessions.Shutdown(); err != nil {
		logger.Error("write shutdown manifest", zap.Error(err))
	}
	if err := srv.Shutdown(context.Background()); err != nil {
		logger.Error("http shutdown", zap.Error(err))
	}
	logger.Info("stopped")
}
