package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/cbegin/stemdeck-go"
	"github.com/cbegin/stemdeck-go/internal/catalog"
	"github.com/cbegin/stemdeck-go/internal/config"
	"github.com/cbegin/stemdeck-go/internal/logger"
	"github.com/cbegin/stemdeck-go/internal/server"
)

func main() {
	cfg := config.Load()
	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Fatal(err)
	}
	logger.SetLogLevel(level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var songs catalog.Source = catalog.NewFileSource(cfg.SongsDir)
	if cfg.DatabaseURL != "" {
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatalf("stemdeckd: postgres: %v", err)
		}
		defer pool.Close()
		if err := catalog.AutoMigrate(ctx, pool); err != nil {
			logger.Fatalf("stemdeckd: migrate: %v", err)
		}
		songs = catalog.NewPGSource(pool)
	}

	var rdb *redis.Client
	if cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Fatalf("stemdeckd: invalid STEMDECK_REDIS_URL: %v", err)
		}
		rdb = redis.NewClient(opt)
		defer rdb.Close()
		songs = catalog.NewCachedSource(songs, rdb, cfg.CacheTTL)
	}

	policy := stemdeck.NoAudibleError
	if strings.EqualFold(cfg.NoAudible, "ignore") {
		policy = stemdeck.NoAudibleIgnore
	}

	hub := server.NewHub()
	srv := server.NewServer(ctx, songs, hub, rdb, server.Options{
		TickInterval: cfg.TickInterval,
		AllowOrigin:  cfg.AllowOrigin,
		SessionOptions: []stemdeck.SessionOption{
			stemdeck.WithSampleRate(cfg.SampleRate),
			stemdeck.WithDriftTolerance(cfg.DriftTolerance),
			stemdeck.WithDriftCheckInterval(cfg.DriftInterval),
			stemdeck.WithNoAudiblePolicy(policy),
		},
	})

	go hub.Run()
	go srv.RunBroadcaster(ctx)
	go srv.RunPublisher(ctx)

	r := srv.Router(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Logger,
		middleware.Recoverer,
		middleware.Timeout(60*time.Second),
	)
	httpSrv := &http.Server{Addr: fmt.Sprintf(":%d", cfg.Port), Handler: r}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			logger.Errorf("stemdeckd: shutdown: %v", err)
		}
	}()

	logger.Infof("stemdeckd listening on :%d", cfg.Port)
	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatalf("stemdeckd: %v", err)
	}
	if err := srv.Close(); err != nil {
		logger.Warnf("stemdeckd: closing sessions: %v", err)
	}
	hub.Stop()
}
