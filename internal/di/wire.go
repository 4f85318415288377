//go:build wireinject
// +build wireinject

package di

import (
	"github.com/google/wire"

	"ForecastDrill/pkg/config"
	"ForecastDrill/pkg/server"
)

// InitializeApp wires up all dependencies and returns the application.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		ProvideLogger,
		ProvideMetrics,
		ProvideCache,

		ProvideScenarioProvider,
		ProvideProgressTracker,
		ProvideKafkaProducer,
		ProvideResultSink,
		ProvideResultPipeline,

		ProvideTrainer,
		ProvideResultsHandler,
		ProvideKafkaConsumer,

		ProvideRateLimiter,
		ProvideHTTPHandler,
		ProvideHTTPServer,

		ProvideApp,
	)
	return &server.App{}, nil
}
