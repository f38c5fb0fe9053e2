package main

import (
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/challenges/scheduler/internal/api"
	"github.com/challenges/scheduler/internal/executor"
	"github.com/challenges/scheduler/internal/orm"
	"github.com/challenges/scheduler/internal/platform"
	"github.com/challenges/scheduler/internal/store"
	"github.com/challenges/scheduler/internal/vault"
	"github.com/challenges/scheduler/pkg/config"
)

// App bundles everything main needs to serve and shut down.
type App struct {
	Config   config.Config
	Logger   *zap.Logger
	Storage  *orm.Storage
	Store    *store.Store
	Server   *api.Server
	Executor *executor.Executor
}

func NewApp(
	cfg config.Config,
	logger *zap.Logger,
	storage *orm.Storage,
	st *store.Store,
	server *api.Server,
	exec *executor.Executor,
) *App {
	return &App{
		Config:   cfg,
		Logger:   logger,
		Storage:  storage,
		Store:    st,
		Server:   server,
		Executor: exec,
	}
}

func ProvideDB(storage *orm.Storage) *gorm.DB {
	return storage.DB()
}

func ProvideVault(cfg config.Config) (*vault.Vault, error) {
	return vault.New([]byte(cfg.Security.EncryptionKey))
}

func ProvidePlatformClient(cfg config.Config, logger *zap.Logger) *platform.Client {
	return platform.NewClient(cfg.Platform.APIBaseURL, cfg.Platform.RequestTimeout, logger)
}

func ProvideRefresher(cfg config.Config, logger *zap.Logger) *platform.Refresher {
	return platform.NewRefresher(
		cfg.Platform.OAuthTokenURL,
		cfg.Platform.OAuthClientID,
		cfg.Platform.OAuthClientSecret,
		cfg.Platform.RequestTimeout,
		logger,
	)
}

func ProvideExecutorConfig(cfg config.Config) executor.Config {
	return executor.Config{
		GracePeriod:   cfg.Executor.GracePeriod,
		RefreshBuffer: cfg.Executor.RefreshBuffer,
		MaxAttempts:   cfg.Executor.MaxAttempts,
		BackoffBase:   cfg.Executor.BackoffBase,
	}
}

func ProvideCronSecret(cfg config.Config) api.CronSecret {
	return api.CronSecret(cfg.Security.CronSecret)
}
