//go:build wireinject
// +build wireinject

package di

import (
	"ScanRunner/pkg/config"
	"ScanRunner/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Ambient
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideRedisClient,
		ProvideCache,
		ProvideClickHouseClient,
		ProvideKafkaProducer,
		ProvideKafkaConsumer,

		// Market data
		ProvideMarketData,
		ProvideQuoteStream,

		// Execution core
		ProvideRegistry,
		ProvideLoader,
		ProvideEngine,
		ProvideExecuteUseCase,

		// Delivery
		ProvideSignalStore,
		ProvideSignalPublisher,
		ProvidePipeline,
		ProvideRequestsHandler,
		ProvideJobQueue,

		// HTTP and application server
		ProvideHTTPHandler,
		ProvideApp,
	)
	return &server.App{}, nil
}
