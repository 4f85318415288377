package server

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	domrepo "ForecastDrill/internal/domain/repository"
	mid "ForecastDrill/internal/middleware"
	"ForecastDrill/internal/service/ratelimit"
	"ForecastDrill/internal/usecase"
	"ForecastDrill/pkg/cache"
	"ForecastDrill/pkg/config"
	xhttp "ForecastDrill/pkg/http"
	pkgkafka "ForecastDrill/pkg/kafka"
	applogger "ForecastDrill/pkg/logger"
)

// limiterIdle is how long a client's rate-limit bucket may sit unused
// before it is dropped.
const limiterIdle = 10 * time.Minute

// App encapsulates the entire application lifecycle.
type App struct {
	cfg        *config.Config
	log        *applogger.Logger
	httpServer *xhttp.Server
	trainer    *usecase.Trainer
	pipeline   *mid.ResultPipeline
	sink       domrepo.ResultSink
	cache      cache.Service
	limiter    *ratelimit.Limiter
	consumer   *pkgkafka.Consumer
	kh         pkgkafka.MessageHandler

	wg sync.WaitGroup
}

// Deps groups what New needs. Cache, Limiter, Consumer and ResultsHandler
// are optional.
type Deps struct {
	Server         *xhttp.Server
	Trainer        *usecase.Trainer
	Pipeline       *mid.ResultPipeline
	Sink           domrepo.ResultSink
	Cache          cache.Service
	Limiter        *ratelimit.Limiter
	Consumer       *pkgkafka.Consumer
	ResultsHandler pkgkafka.MessageHandler
}

// New creates a new App instance with all dependencies.
func New(cfg *config.Config, log *applogger.Logger, d Deps) *App {
	return &App{
		cfg:        cfg,
		log:        log.With(applogger.String("component", "app")),
		httpServer: d.Server,
		trainer:    d.Trainer,
		pipeline:   d.Pipeline,
		sink:       d.Sink,
		cache:      d.Cache,
		limiter:    d.Limiter,
		consumer:   d.Consumer,
		kh:         d.ResultsHandler,
	}
}

// Run starts the application and blocks until SIGINT or SIGTERM.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return a.RunContext(ctx)
}

// RunContext starts every component and blocks until ctx is done or the
// HTTP listener fails, then shuts down.
func (a *App) RunContext(ctx context.Context) error {
	bg, cancel := context.WithCancel(context.Background())
	defer cancel()

	a.pipeline.Start(bg)

	a.goRun(func() { a.trainer.RunJanitor(bg, a.cfg.Attempts.CleanupInterval) })
	if a.limiter != nil {
		a.goRun(func() { a.forgetIdleClients(bg) })
	}

	if a.consumer != nil && a.kh != nil {
		a.consumer.RegisterHandler(a.kh)
		a.consumer.WithConsumerHook(pkgkafka.NewHookChain(pkgkafka.TraceHook(), pkgkafka.LoggingHook(a.log)))
		if err := a.consumer.Start(); err != nil {
			a.log.Error("kafka consumer start error", applogger.Error(err))
			a.shutdown(cancel)
			return err
		}
		a.log.Info("kafka consumer started", applogger.String("topic", a.kh.Topic()))
	}

	if err := a.httpServer.Start(); err != nil {
		a.log.Error("http server start error", applogger.Error(err))
		a.shutdown(cancel)
		return err
	}
	a.log.Info("forecastdrill started",
		applogger.String("env", a.cfg.Environment),
		applogger.Int("port", a.cfg.Server.Port),
		applogger.Bool("kafka", a.cfg.Kafka.Enabled),
	)

	var runErr error
	select {
	case <-ctx.Done():
		a.log.Info("shutdown signal received")
	case runErr = <-a.httpServer.Errors():
	}

	a.shutdown(cancel)
	return runErr
}

func (a *App) goRun(fn func()) {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		fn()
	}()
}

func (a *App) forgetIdleClients(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := a.limiter.Forget(limiterIdle); n > 0 {
				a.log.Debug("idle rate-limit buckets dropped", applogger.Int("count", n))
			}
		}
	}
}

// shutdown stops intake first, then flushes buffered results before the
// sinks they flow into are closed.
func (a *App) shutdown(cancel context.CancelFunc) {
	a.log.Info("shutting down...")
	ctx := context.Background()

	if err := a.httpServer.Stop(ctx); err != nil {
		a.log.Error("http shutdown error", applogger.Error(err))
	}

	if a.consumer != nil {
		stopCtx, stopCancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
		if err := a.consumer.Stop(stopCtx); err != nil && !errors.Is(err, context.Canceled) {
			a.log.Warn("kafka consumer stop error", applogger.Error(err))
		}
		stopCancel()
	}

	cancel()
	a.wg.Wait()

	flushCtx, flushCancel := context.WithTimeout(ctx, a.cfg.Results.FlushTimeout)
	if lost := a.pipeline.Stop(flushCtx); lost > 0 {
		a.log.Warn("results not delivered", applogger.Int("lost", lost))
	}
	flushCancel()

	if a.sink != nil {
		if err := a.sink.Close(); err != nil {
			a.log.Warn("result sink close error", applogger.Error(err))
		}
	}
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			a.log.Warn("cache close error", applogger.Error(err))
		}
	}

	a.log.Info("shutdown complete")
}
