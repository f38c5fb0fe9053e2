//go:build wireinject
// +build wireinject

package main

//go:generate go run -mod=mod github.com/google/wire/cmd/wire

import (
	"github.com/google/wire"
	"go.uber.org/zap"

	"github.com/challenges/scheduler/internal/api"
	"github.com/challenges/scheduler/internal/executor"
	"github.com/challenges/scheduler/internal/orm"
	"github.com/challenges/scheduler/internal/platform"
	"github.com/challenges/scheduler/internal/store"
	"github.com/challenges/scheduler/pkg/config"
)

func InitializeApp(cfg config.Config, logger *zap.Logger, storage *orm.Storage) (*App, error) {
	wire.Build(
		NewApp,

		ProvideDB,
		ProvideVault,
		ProvidePlatformClient,
		ProvideRefresher,
		ProvideExecutorConfig,
		ProvideCronSecret,

		wire.Bind(new(executor.RoomService), new(*platform.Client)),
		wire.Bind(new(executor.ChatService), new(*platform.Client)),
		wire.Bind(new(executor.OwnerDirectory), new(*platform.Client)),
		wire.Bind(new(executor.TokenRefresher), new(*platform.Refresher)),

		store.Provider,
		executor.Provider,
		api.Provider,
	)
	return nil, nil
}
