//go:build wireinject
// +build wireinject

package di

import (
	"ChainPilot/pkg/config"
	"ChainPilot/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config, store *config.Store) (*server.App, error) {
	wire.Build(
		// Observability
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideHTTPClient,
		ProvideClickHouseClient,
		ProvideKafkaProducer,
		ProvideKafkaConsumer,

		// Repositories
		ProvideStorage,
		ProvidePublisher,
		ProvideMonitorAPI,
		ProvidePortfolio,
		ProvideTradeExecutor,
		ProvideSignalStream,

		// Services
		ProvideAlertSink,
		ProvideReputationCache,
		ProvideBank,
		ProvideExecutor,

		// Use cases
		ProvideSignalFilter,
		ProvideSignalProcessor,
		ProvideSignalCollector,

		// Handler and application
		ProvideOpsHandler,
		ProvideApp,
	)
	return &server.App{}, nil
}
