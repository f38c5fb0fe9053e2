package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/challenges/scheduler/internal/orm"
	"github.com/challenges/scheduler/pkg/config"
	"github.com/challenges/scheduler/pkg/logger"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "configs/config.yaml", "path to config file")
	flag.Parse()

	// Load rejects a bad vault key or a short cron secret; neither is
	// recoverable at runtime.
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	zapLogger, err := logger.New(cfg.Log.Level, cfg.Log.Format, cfg.Log.Output)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer zapLogger.Sync()

	zapLogger.Info("Starting challenge scheduler",
		zap.Int("port", cfg.Server.Port))

	db, err := orm.New(orm.Config{
		Host:                  cfg.Database.Host,
		Port:                  cfg.Database.Port,
		Database:              cfg.Database.Database,
		User:                  cfg.Database.User,
		Password:              cfg.Database.Password,
		MaxConnections:        cfg.Database.MaxConnections,
		MaxIdleConnections:    cfg.Database.MaxIdleConnections,
		ConnectionMaxLifetime: cfg.Database.ConnectionMaxLifetime,
	})
	if err != nil {
		zapLogger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	app, err := InitializeApp(*cfg, zapLogger, db)
	if err != nil {
		zapLogger.Fatal("Failed to initialize application", zap.Error(err))
	}

	// Optional in-process trigger for deployments without an external cron
	// service. The HTTP endpoint stays available either way.
	var internalCron *cron.Cron
	if cfg.Trigger.InternalCron {
		internalCron = cron.New()
		_, err := internalCron.AddFunc(cfg.Trigger.CronSpec, func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
			defer cancel()

			summary, err := app.Executor.Run(ctx)
			if err != nil {
				zapLogger.Error("internal trigger batch failed", zap.Error(err))
				return
			}
			zapLogger.Info("internal trigger batch done",
				zap.Int("processed", summary.Processed),
				zap.Int("successful", summary.Successful),
				zap.Int("failed", summary.Failed))
		})
		if err != nil {
			zapLogger.Fatal("Failed to schedule internal trigger",
				zap.String("cron_spec", cfg.Trigger.CronSpec),
				zap.Error(err))
		}
		internalCron.Start()
		zapLogger.Info("internal trigger enabled",
			zap.String("cron_spec", cfg.Trigger.CronSpec))
	}

	httpServer := &http.Server{
		Addr:           fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:        app.Server.Router(),
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		MaxHeaderBytes: cfg.Server.MaxHeaderBytes,
	}

	go func() {
		zapLogger.Info("Starting API server", zap.Int("port", cfg.Server.Port))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLogger.Fatal("Failed to start API server", zap.Error(err))
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	zapLogger.Info("Shutting down...")

	if internalCron != nil {
		// lets an in-flight batch finish
		<-internalCron.Stop().Done()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		zapLogger.Error("Failed to shutdown API server", zap.Error(err))
	}

	zapLogger.Info("Shutdown complete")
}
