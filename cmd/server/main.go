package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"inkwell/internal/cache"
	"inkwell/internal/config"
	"inkwell/internal/db"
	"inkwell/internal/logging"
	"inkwell/internal/router"
	"inkwell/internal/services"
	"inkwell/internal/views"

	"github.com/gin-gonic/gin"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load config")
	}
	logging.Init(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	// Initialize Database
	if err := db.Init(cfg); err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize database")
	}

	// Load Templates using Multitemplate to avoid collision and allow handler names
	tmpl, err := views.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load templates")
	}

	r := router.New(router.Deps{
		Config:  cfg,
		Cache:   cache.New(cfg),
		Storage: services.NewImageStorage(cfg),
		Views:   tmpl,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logging.Info().Str("port", cfg.Port).Str("env", cfg.AppEnv).Msg("Inkwell server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Fatal().Err(err).Msg("Server failed")
		}
	}()

	<-ctx.Done()
	logging.Info().Msg("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Error().Err(err).Msg("Graceful shutdown failed")
	}
}
