package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/chesslive/coordinator/internal/archive"
	appcfg "github.com/chesslive/coordinator/internal/config"
	"github.com/chesslive/coordinator/internal/coordinator"
	"github.com/chesslive/coordinator/internal/httpapi"
	"github.com/chesslive/coordinator/internal/msgcat"
	"github.com/chesslive/coordinator/internal/obslog"
	"github.com/chesslive/coordinator/internal/registry"
	"github.com/chesslive/coordinator/internal/rules"
	"github.com/chesslive/coordinator/internal/store"
	"github.com/chesslive/coordinator/internal/webhook"
)

func main() {
	_ = godotenv.Load()

	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if err := obslog.InitFromEnv(); err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	defer obslog.Sync()

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		obslog.L().Fatal("invalid REDIS_URL", zap.Error(err))
	}
	rdb := redis.NewClient(opts)
	pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		cancelPing()
		obslog.L().Fatal("redis unreachable", zap.Error(err))
	}
	cancelPing()

	st := store.NewRedis(rdb)

	cat, err := msgcat.New(cfg.MessageTemplateDir)
	if err != nil {
		obslog.L().Fatal("message catalog init failed", zap.Error(err))
	}

	dispatcher := webhook.NewDispatcher(st, cfg.WebhookMaxConcurrent, cfg.WebhookTimeout)
	coord := coordinator.New(st, st, dispatcher, registry.New(), rules.NewEngine(), cat)

	var repo *archive.Repository
	if cfg.DatabaseURL != "" {
		repo, err = archive.NewRepository(cfg.DatabaseURL)
		if err != nil {
			obslog.L().Fatal("archive init failed", zap.Error(err))
		}
		coord.AttachArchiver(repo)
	}

	srv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: httpapi.NewServer(coord, cfg.WSPingInterval).Router(),
	}

	go func() {
		obslog.L().Info("listening", zap.String("addr", cfg.ListenAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			obslog.L().Fatal("server error", zap.Error(err))
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	obslog.L().Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		obslog.L().Warn("shutdown incomplete", zap.Error(err))
	}

	dispatcher.Wait()
	if repo != nil {
		_ = repo.Close()
	}
	_ = rdb.Close()
}
