// Package main starts the web tier: the browser-facing server that keeps
// per-session state and talks to the forum API.
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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/emilythestrangee/forum-web/internal/config"
	"github.com/emilythestrangee/forum-web/internal/database"
	"github.com/emilythestrangee/forum-web/internal/forumapi"
	"github.com/emilythestrangee/forum-web/internal/logging"
	"github.com/emilythestrangee/forum-web/internal/metrics"
	"github.com/emilythestrangee/forum-web/internal/models"
	"github.com/emilythestrangee/forum-web/internal/server"
	"github.com/emilythestrangee/forum-web/internal/session"
	"github.com/emilythestrangee/forum-web/internal/sessioncache"
)

func main() {
	cfg, err := config.LoadWeb()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	log := logging.Init(cfg.LogLevel, "forum-web")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal().Err(err).Msg("web tier stopped")
	}
}

func run(ctx context.Context, cfg *config.Web, log zerolog.Logger) error {
	metrics.Register(prometheus.DefaultRegisterer)

	db, err := database.New(cfg.Database, log, &models.Session{})
	if err != nil {
		return err
	}
	defer db.Close()

	redisCache := sessioncache.NewRedis(cfg.RedisURL, cfg.SessionTTL, log)
	defer redisCache.Close()

	var cache sessioncache.Store = redisCache
	var cacheHealth server.HealthChecker = redisCache
	if !redisCache.Enabled() {
		cache, cacheHealth = sessioncache.NewMemory(), nil
	}

	api := forumapi.New(cfg.ForumAPIURL,
		forumapi.WithTimeout(cfg.APITimeout),
		forumapi.WithRateLimit(cfg.APIRateLimit, cfg.APIBurst),
	)

	sessions := session.NewManager(session.NewGormStore(db.GetDB()), cache, api, session.Options{
		TTL:          cfg.SessionTTL,
		FetchTimeout: cfg.APITimeout,
		Secret:       []byte(cfg.JWTSecret),
		Logger:       log,
	})
	go sessions.Run(ctx, 10*time.Minute)

	srv := server.NewServer(server.Deps{
		Config:   cfg,
		DB:       db,
		Cache:    cacheHealth,
		Sessions: sessions,
		API:      api,
		Logger:   log,
	})
	return serve(ctx, srv, log)
}

// serve runs srv until ctx is done, then drains in-flight requests.
func serve(ctx context.Context, srv *http.Server, log zerolog.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
