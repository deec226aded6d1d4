//go:build wireinject
// +build wireinject

package di

import (
	"github.com/google/wire"

	"FinGAN/pkg/config"
	"FinGAN/pkg/server"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideKafkaProducer,
		ProvideRedisClient,
		ProvideQueue,
		ProvideHub,

		// Repositories
		ProvideFeatureStore,
		ProvideCheckpointStore,
		ProvideReportPublisher,
		ProvideForecastCache,

		// Use cases
		ProvideTrainConfig,
		ProvideTrainUseCase,
		ProvideTrainScheduler,
		ProvideForecastUseCase,

		// HTTP
		ProvideHTTPHandler,
		ProvideHTTPServer,

		ProvideApp,
	)
	return &server.App{}, nil
}
