//go:build wireinject
// +build wireinject

package di

import (
	"PredPull/pkg/config"
	"PredPull/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideRedisClient,
		ProvideKafkaProducer,
		ProvideHTTPClient,
		ProvideRateLimiter,

		// Repositories
		ProvideStorage,
		ProvideCheckpointStore,
		ProvidePublisher,

		// Venue clients
		ProvideKalshiCredentials,
		ProvidePolymarketClient,
		ProvideKalshiClient,
		ProvideStream,

		// Use cases
		ProvidePipeline,
		ProvideRealtimeIngestor,
		ProvideTokenCatalog,
		ProvideRunQueue,

		// HTTP surface
		ProvideHandler,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
