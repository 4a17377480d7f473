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

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"vibecall/backend/internal/api/handler"
	"vibecall/backend/internal/complaint"
	"vibecall/backend/internal/config"
	"vibecall/backend/internal/icebreaker"
	"vibecall/backend/internal/matchhub"
	"vibecall/backend/internal/notify"
	"vibecall/backend/internal/stats"
	"vibecall/backend/internal/storage"
	"vibecall/backend/internal/video"
)

const shutdownTimeout = 10 * time.Second

func setupLogger(cfg *config.Config) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if cfg.Mode == gin.DebugMode {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
}

func setupDependencies(ctx context.Context, cfg *config.Config) (*gorm.DB, *redis.Client, error) {
	// 1. PostgreSQL
	db, err := gorm.Open(postgres.Open(cfg.DatabaseDSN), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("connect PostgreSQL: %w", err)
	}

	// 2. Redis
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, nil, fmt.Errorf("connect Redis: %w", err)
	}

	log.Info().Str("module", "main").Msg("database and redis connections established")
	return db, rdb, nil
}

func newProvisioner(cfg *config.Config) video.Provisioner {
	tokens := video.NewTokenIssuer(cfg.VideoTokenSecret, nil)
	roomTTL := cfg.Session.TokenTTL()
	if cfg.VideoAPIURL != "" {
		log.Info().Str("module", "main").Str("url", cfg.VideoAPIURL).Msg("using video provider API")
		return video.NewHTTPProvisioner(cfg.VideoAPIURL, cfg.VideoAPIKey, tokens, roomTTL)
	}
	log.Warn().Str("module", "main").Msg("VIDEO_API_URL not set, using local room provisioner")
	return video.NewLocalProvisioner(cfg.VideoDomain, tokens, roomTTL, nil)
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	setupLogger(cfg)
	gin.SetMode(cfg.Mode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 1. Ініціалізація залежностей
	db, rdb, err := setupDependencies(ctx, cfg)
	if err != nil {
		return err
	}
	defer rdb.Close()

	s := storage.NewStorageService(db, rdb)
	if err := s.Migrate(); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	if err := s.SeedIcebreakers(ctx, icebreaker.DefaultPrompts); err != nil {
		return fmt.Errorf("seed icebreakers: %w", err)
	}
	prompts, err := icebreaker.LoadSelector(ctx, s)
	if err != nil {
		return fmt.Errorf("load icebreakers: %w", err)
	}

	// 2. Двигун підбору та сповіщення
	fanout := notify.NewFanout(s)
	engine := matchhub.NewService(cfg.Session, matchhub.Deps{
		Rooms:       newProvisioner(cfg),
		Icebreakers: prompts,
		Notifier:    fanout,
		Results:     s,
		Archive:     s,
		Stats:       stats.NewService(s),
		Reports:     complaint.NewService(s),
		Profiles:    s,
		Bans:        s,
	})

	// 3. HTTP
	h := handler.NewHandler(engine, fanout, handler.NewAuthenticator(cfg.JWTSecret))
	server := &http.Server{
		Addr:           fmt.Sprintf(":%d", cfg.Port),
		Handler:        handler.NewRouter(h, cfg.Mode),
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	// 4. Запуск основних Goroutines
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return fanout.Run(gctx) })
	g.Go(func() error { return engine.RunMatcher(gctx) })
	g.Go(func() error { return engine.RunSweeper(gctx) })
	g.Go(func() error {
		log.Info().Str("module", "main").Str("addr", server.Addr).Msg("http server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	engine.Shutdown()
	log.Info().Str("module", "main").Msg("shutdown complete")
	return err
}

func main() {
	log.Info().Str("module", "main").Msg("Starting VibeCall Backend...")
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("backend stopped")
	}
}
