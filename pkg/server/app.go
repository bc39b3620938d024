package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"PredPull/internal/handler/api"
	"PredPull/internal/usecase"
	pkgch "PredPull/pkg/clickhouse"
	"PredPull/pkg/config"
	xhttp "PredPull/pkg/http"
	pkgkafka "PredPull/pkg/kafka"
	xlogger "PredPull/pkg/logger"
	"PredPull/pkg/queue"
)

// App encapsulates the application lifecycle: the HTTP surface, the
// deferred-run queue worker, and infrastructure client teardown. The
// batch pipeline itself runs on demand via the handler.
type App struct {
	cfg        *config.Config
	logger     *xlogger.Logger
	handler    *api.PipelineEchoHandler
	realtime   *usecase.RealtimeIngestor
	runQueue   *queue.RedisQueue
	chClient   *pkgch.Client
	producer   *pkgkafka.Producer
	redis      *redis.Client
	httpServer *xhttp.Server
}

// New creates an App with all dependencies.
func New(
	cfg *config.Config,
	logger *xlogger.Logger,
	handler *api.PipelineEchoHandler,
	realtime *usecase.RealtimeIngestor,
	runQueue *queue.RedisQueue,
	chClient *pkgch.Client,
	producer *pkgkafka.Producer,
	redisClient *redis.Client,
) *App {
	return &App{
		cfg:      cfg,
		logger:   logger,
		handler:  handler,
		realtime: realtime,
		runQueue: runQueue,
		chClient: chClient,
		producer: producer,
		redis:    redisClient,
	}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a.httpServer = xhttp.NewServer(a.handler,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
		xhttp.WithMetricsLogging(a.logger, time.Second),
		xhttp.WithMetricsEndpoint(a.cfg.Metrics.Enabled, a.cfg.Metrics.Path),
	)

	if a.runQueue != nil {
		if err := a.runQueue.Start(); err != nil {
			a.logger.Error("run queue start error", xlogger.Error(err))
			return err
		}
		a.runQueue.StartRetryProcessor()
		a.logger.Info("run queue started")

		// Aggregate repeated log lines and ship them through the queue.
		a.logger.AddCollector(&xlogger.CollectionConfig{
			TimeInterval:   30 * time.Second,
			CountThreshold: 100,
			Topic:          usecase.LogSummaryTopic,
			Publisher:      a.runQueue,
		})
	}

	if err := a.httpServer.Start(); err != nil {
		a.logger.Error("http server start error", xlogger.Error(err))
		return err
	}
	a.logger.Info("http server started", xlogger.Int("port", a.cfg.Server.Port))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.logger.Info("shutdown signal received")
	return a.shutdown(ctx)
}

func (a *App) shutdown(ctx context.Context) error {
	if a.realtime != nil && a.realtime.IsConnected() {
		if err := a.realtime.Disconnect(); err != nil {
			a.logger.Warn("realtime disconnect error", xlogger.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		a.logger.Error("http shutdown error", xlogger.Error(err))
	}

	if a.runQueue != nil {
		a.logger.RemoveCollector()
		if err := a.runQueue.Stop(shutdownCtx); err != nil {
			a.logger.Warn("run queue stop error", xlogger.Error(err))
		}
	}

	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Warn("kafka producer close error", xlogger.Error(err))
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("redis close error", xlogger.Error(err))
		}
	}
	if a.chClient != nil {
		if err := a.chClient.Close(); err != nil {
			a.logger.Warn("clickhouse close error", xlogger.Error(err))
		}
	}

	a.logger.Info("shutdown complete")
	return nil
}
