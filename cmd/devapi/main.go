// Package main starts a local stand-in for the forum REST API.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/emilythestrangee/forum-web/internal/config"
	"github.com/emilythestrangee/forum-web/internal/database"
	"github.com/emilythestrangee/forum-web/internal/devapi"
	"github.com/emilythestrangee/forum-web/internal/logging"
)

func main() {
	cfg, err := config.LoadDevAPI()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	log := logging.Init(cfg.LogLevel, "forum-devapi")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.New(cfg.Database, log, devapi.Models()...)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer db.Close()

	api := devapi.New(db.GetDB(), devapi.Options{
		Secret:             []byte(cfg.JWTSecret),
		TokenTTL:           cfg.TokenTTL,
		AdminEmails:        cfg.AdminEmails,
		GoogleTokenInfoURL: cfg.GoogleTokenInfoURL,
		Logger:             log,
	})

	srv := &http.Server{
		Addr:         "0.0.0.0:" + cfg.Port,
		Handler:      api.RegisterRoutes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info().Str("port", cfg.Port).Msg("🚀 Dev API starting")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("dev API stopped")
	}
}
