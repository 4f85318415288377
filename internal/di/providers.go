package di

import (
	"fmt"

	"github.com/labstack/echo/v4"

	domrepo "ForecastDrill/internal/domain/repository"
	"ForecastDrill/internal/handler/api"
	mid "ForecastDrill/internal/middleware"
	"ForecastDrill/internal/progress"
	internalrepo "ForecastDrill/internal/repository"
	"ForecastDrill/internal/service/ratelimit"
	"ForecastDrill/internal/usecase"
	"ForecastDrill/pkg/cache"
	"ForecastDrill/pkg/config"
	xhttp "ForecastDrill/pkg/http"
	httpmw "ForecastDrill/pkg/http/middleware"
	pkgkafka "ForecastDrill/pkg/kafka"
	"ForecastDrill/pkg/logger"
	"ForecastDrill/pkg/metrics"
	"ForecastDrill/pkg/server"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*logger.Logger, error) {
	l, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l, nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics(cfg *config.Config) domrepo.Metrics {
	if !cfg.Metrics.Enabled {
		return metrics.Nop{}
	}
	return metrics.New()
}

// ProvideCache creates the cache service in front of the scenario source.
// Type "none" yields a nil service.
func ProvideCache(cfg *config.Config) (cache.Service, error) {
	switch cfg.Cache.Type {
	case "none":
		return nil, nil
	case "memory":
		return cache.NewMemoryCache(cache.WithMemoryMaxSize(cfg.Cache.MaxSize)), nil
	}

	rc, err := cache.NewRedisCache(
		cache.WithRedisAddr(cfg.Cache.Addr),
		cache.WithRedisPassword(cfg.Cache.Password),
		cache.WithRedisDB(cfg.Cache.DB),
		cache.WithRedisPrefix(cfg.Cache.Prefix),
	)
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	if cfg.Cache.Type == "layered" {
		return cache.NewLayeredCache(rc,
			cache.WithLayeredMemorySize(cfg.Cache.MaxSize),
			cache.WithLayeredMemoryTTL(cfg.Cache.TTL),
		), nil
	}
	return rc, nil
}

// ProvideScenarioProvider builds the scenario source, cached when a cache
// service is configured.
func ProvideScenarioProvider(cfg *config.Config, c cache.Service, log *logger.Logger) domrepo.ScenarioProvider {
	var upstream domrepo.ScenarioProvider
	if cfg.Scenarios.Source == "http" {
		upstream = internalrepo.NewHTTPScenarioProvider(cfg.Scenarios.URL,
			xhttp.NewClient(xhttp.WithTimeout(cfg.Scenarios.Timeout)))
	} else {
		upstream = internalrepo.NewFileScenarioProvider(cfg.Scenarios.Path, log)
	}

	if c == nil {
		return upstream
	}
	return internalrepo.NewCachedScenarioProvider(upstream, c, cfg.Cache.TTL, log)
}

// ProvideProgressTracker creates the in-memory progress tracker.
func ProvideProgressTracker(cfg *config.Config) *progress.Tracker {
	return progress.NewTracker(cfg.Attempts.StartLevel)
}

// ProvideKafkaProducer creates a Kafka producer, or nil when Kafka is off.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatching(cfg.Kafka.Producer.BatchSize, cfg.Kafka.Producer.BatchBytes, cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideResultSink picks where completed results go. With Kafka on,
// results are published; the tracker is then fed either by the consumer or
// directly alongside the publish.
func ProvideResultSink(cfg *config.Config, producer *pkgkafka.Producer, tracker *progress.Tracker) domrepo.ResultSink {
	direct := internalrepo.NewProgressSink(tracker)
	if producer == nil {
		return direct
	}
	published := internalrepo.NewKafkaResultSink(producer, cfg.Kafka.Topic)
	if cfg.Kafka.Consumer.Enabled {
		return published
	}
	return internalrepo.MultiSink{direct, published}
}

// ProvideResultPipeline wraps the sink with buffering and redelivery.
func ProvideResultPipeline(cfg *config.Config, sink domrepo.ResultSink, m domrepo.Metrics, log *logger.Logger) *mid.ResultPipeline {
	return mid.NewResultPipeline(sink, m, log,
		mid.WithBufferSize(cfg.Results.BufferSize),
		mid.WithBackoff(cfg.Results.RetryMin, cfg.Results.RetryMax),
	)
}

// ProvideTrainer creates the attempt use case.
func ProvideTrainer(
	cfg *config.Config,
	scenarios domrepo.ScenarioProvider,
	pipeline *mid.ResultPipeline,
	tracker *progress.Tracker,
	m domrepo.Metrics,
	log *logger.Logger,
) *usecase.Trainer {
	return usecase.NewTrainer(scenarios, pipeline, tracker, m, log, cfg.Attempts.TTL)
}

// ProvideRateLimiter creates the per-client limiter, or nil when disabled.
func ProvideRateLimiter(cfg *config.Config) *ratelimit.Limiter {
	if !cfg.RateLimit.Enabled {
		return nil
	}
	return ratelimit.New(cfg.RateLimit.RPS, cfg.RateLimit.Burst)
}

// ProvideHTTPHandler creates the API routes.
func ProvideHTTPHandler(log *logger.Logger, trainer *usecase.Trainer, limiter *ratelimit.Limiter) xhttp.Handler {
	var mw []echo.MiddlewareFunc
	if limiter != nil {
		mw = append(mw, httpmw.RateLimit(limiter, httpmw.RealIPKey, api.RateLimited))
	}
	return api.NewExerciseEchoHandler(log, trainer, mw...)
}

// ProvideHTTPServer creates the Echo server.
func ProvideHTTPServer(cfg *config.Config, handler xhttp.Handler, log *logger.Logger) *xhttp.Server {
	opts := []xhttp.ServerOption{
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
	}
	if len(cfg.Server.CORSOrigins) > 0 {
		opts = append(opts, xhttp.WithCORSOrigins(cfg.Server.CORSOrigins))
	}
	if !cfg.Metrics.Enabled {
		opts = append(opts, xhttp.WithMetrics("", nil, nil))
	} else {
		opts = append(opts, xhttp.WithMetrics(cfg.Metrics.Path, nil, nil))
	}
	return xhttp.NewServer(handler, log, opts...)
}

// ProvideKafkaConsumer creates the results consumer, or nil unless both
// Kafka and the consumer are enabled.
func ProvideKafkaConsumer(cfg *config.Config, log *logger.Logger) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Enabled || !cfg.Kafka.Consumer.Enabled {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
		pkgkafka.WithConsumerLogger(log),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	return consumer, nil
}

// ProvideResultsHandler handles the results topic.
func ProvideResultsHandler(cfg *config.Config, tracker *progress.Tracker, m domrepo.Metrics, log *logger.Logger) *usecase.ResultsHandler {
	return usecase.NewResultsHandler(cfg.Kafka.Topic, tracker, m, log)
}

// ProvideApp assembles the application.
func ProvideApp(
	cfg *config.Config,
	log *logger.Logger,
	srv *xhttp.Server,
	trainer *usecase.Trainer,
	pipeline *mid.ResultPipeline,
	sink domrepo.ResultSink,
	c cache.Service,
	limiter *ratelimit.Limiter,
	consumer *pkgkafka.Consumer,
	kh *usecase.ResultsHandler,
) *server.App {
	return server.New(cfg, log, server.Deps{
		Server:         srv,
		Trainer:        trainer,
		Pipeline:       pipeline,
		Sink:           sink,
		Cache:          c,
		Limiter:        limiter,
		Consumer:       consumer,
		ResultsHandler: kh,
	})
}
