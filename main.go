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
	"go.uber.org/zap"

	"student-records/internal/config"
	"student-records/internal/database"
	"student-records/internal/logger"
	"student-records/internal/metrics"
	"student-records/internal/router"
	"student-records/internal/store"
)

func main() {
	// .env is optional
	_ = godotenv.Load()

	cfgPath := os.Getenv("SRM_CONFIG")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	zl, err := logger.New(cfg.Log)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	if err := run(cfg, zl); err != nil {
		zl.Fatal("server failed", zap.Error(err))
	}
}

func run(cfg *config.Config, zl *zap.Logger) error {
	db, err := database.Init(cfg.Database)
	if err != nil {
		return err
	}
	if err := database.AutoMigrate(db); err != nil {
		return err
	}
	created, err := database.EnsureAdmin(db, cfg.Auth.AdminName, cfg.Auth.AdminEmail, cfg.Auth.AdminPassword, cfg.Auth.BcryptCost)
	if err != nil {
		return err
	}
	if created {
		zl.Info("bootstrap admin created", zap.String("email", cfg.Auth.AdminEmail))
	}

	var (
		redis    *store.Redis
		renewals store.RenewalStore
	)
	switch cfg.Auth.RenewalStore {
	case "redis":
		redis = store.NewRedis(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		defer redis.Client.Close()
		if !redis.Healthy(context.Background()) {
			zl.Warn("redis not reachable at startup", zap.String("addr", cfg.Redis.Addr))
		}
		renewals = store.NewRedisRenewalStore(redis)
	default:
		gormRenewals := store.NewGormRenewalStore(db)
		if n, err := gormRenewals.PurgeExpired(context.Background(), time.Now()); err != nil {
			zl.Warn("purge expired renewal credentials", zap.Error(err))
		} else if n > 0 {
			zl.Info("purged expired renewal credentials", zap.Int64("count", n))
		}
		renewals = gormRenewals
	}

	r := router.SetupRouter(cfg, router.Deps{
		DB:       db,
		Redis:    redis,
		Renewals: renewals,
		Log:      zl,
		Metrics:  metrics.New(),
	})

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		zl.Info("server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		zl.Info("shutting down", zap.String("signal", sig.String()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return err
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	zl.Info("server exited")
	return nil
}
