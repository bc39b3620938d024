package di

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"PredPull/internal/domain/repository"
	"PredPull/internal/handler/api"
	mid "PredPull/internal/middleware"
	internalrepo "PredPull/internal/repository"
	"PredPull/internal/service/kalshi"
	"PredPull/internal/service/polymarket"
	"PredPull/internal/service/ratelimit"
	"PredPull/internal/usecase"
	"PredPull/pkg/cache"
	pkgch "PredPull/pkg/clickhouse"
	"PredPull/pkg/config"
	xhttp "PredPull/pkg/http"
	pkgkafka "PredPull/pkg/kafka"
	xlogger "PredPull/pkg/logger"
	"PredPull/pkg/metrics"
	"PredPull/pkg/queue"
	"PredPull/pkg/server"
)

// schemaStatements is the full ClickHouse schema. Data tables are
// ReplacingMergeTree keyed by record identity so batch re-inserts after a
// resume deduplicate in the background merge. pipeline_runs is append-only.
func schemaStatements(database string) []string {
	d := database
	return []string{
		"CREATE DATABASE IF NOT EXISTS " + d,
		`CREATE TABLE IF NOT EXISTS ` + d + `.events (
			protocol LowCardinality(String), event_id String, slug String, title String,
			category String, start_date DateTime, end_date DateTime,
			market_count UInt32, active_count UInt32, closed_count UInt32,
			total_volume Float64, total_liquidity Float64, fetched_at DateTime
		) ENGINE=ReplacingMergeTree(fetched_at) ORDER BY (protocol, event_id)`,
		`CREATE TABLE IF NOT EXISTS ` + d + `.markets (
			protocol LowCardinality(String), market_id String, event_id String,
			slug String, question String, outcomes String, token_ids String,
			outcome_prices String, best_bid Float64, best_ask Float64,
			mid_price Float64, spread Float64, last_price Float64,
			volume_24h Float64, liquidity Float64, active UInt8, closed UInt8,
			end_date DateTime, fetched_at DateTime
		) ENGINE=ReplacingMergeTree(fetched_at) ORDER BY (protocol, market_id)`,
		`CREATE TABLE IF NOT EXISTS ` + d + `.trades (
			protocol LowCardinality(String), trade_id String, market_id String,
			asset_id String, maker String, taker String, side LowCardinality(String),
			outcome String, price Float64, size Float64, value_usd Float64,
			ts DateTime64(3), fetched_at DateTime
		) ENGINE=ReplacingMergeTree(fetched_at) ORDER BY (protocol, market_id, trade_id, ts)`,
		`CREATE TABLE IF NOT EXISTS ` + d + `.orderbooks (
			protocol LowCardinality(String), market_id String, asset_id String,
			bids String, asks String, best_bid Float64, best_ask Float64,
			mid_price Float64, spread Float64, fetched_at DateTime
		) ENGINE=ReplacingMergeTree(fetched_at) ORDER BY (protocol, asset_id)`,
		`CREATE TABLE IF NOT EXISTS ` + d + `.traders (
			protocol LowCardinality(String), address String, name String,
			volume Float64, profit Float64, trader_rank UInt32, fetched_at DateTime
		) ENGINE=ReplacingMergeTree(fetched_at) ORDER BY (protocol, address)`,
		`CREATE TABLE IF NOT EXISTS ` + d + `.positions (
			protocol LowCardinality(String), address String, market_id String,
			asset_id String, outcome String, size Float64, avg_price Float64,
			value_usd Float64, fetched_at DateTime
		) ENGINE=ReplacingMergeTree(fetched_at) ORDER BY (protocol, address, market_id, asset_id)`,
		`CREATE TABLE IF NOT EXISTS ` + d + `.pipeline_runs (
			run_id String, protocol LowCardinality(String), status LowCardinality(String),
			started_at DateTime, completed_at DateTime,
			events_stored UInt64, markets_stored UInt64, trades_stored UInt64,
			error_message String
		) ENGINE=MergeTree ORDER BY (protocol, started_at)`,
	}
}

// ProvideLogger builds the application logger from config.
func ProvideLogger(cfg *config.Config) (*xlogger.Logger, error) {
	return xlogger.New(&xlogger.Config{
		Level:  cfg.Logger.Level,
		Format: cfg.Logger.Format,
		Output: cfg.Logger.Output,
	})
}

// ProvideClickHouseClient creates a ClickHouse client and applies the schema.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := client.InitSchema(ctx, schemaStatements(cfg.ClickHouse.Database)); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return client, nil
}

// ProvideStorage creates the ClickHouse-backed storage repository.
func ProvideStorage(chClient *pkgch.Client, cfg *config.Config) repository.Storage {
	return internalrepo.NewClickHouseStore(chClient.DB(), cfg.ClickHouse.Database)
}

// ProvideRedisClient returns nil when redis is disabled; dependents fall
// back to in-memory implementations.
func ProvideRedisClient(cfg *config.Config) *redis.Client {
	if !cfg.Redis.Enabled {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
}

// ProvideCheckpointStore prefers redis so resume survives process restarts.
func ProvideCheckpointStore(client *redis.Client, cfg *config.Config) repository.CheckpointStore {
	if client == nil {
		return internalrepo.NewMemoryCheckpointStore()
	}
	return internalrepo.NewRedisCheckpointStore(client, cfg.Redis.KeyPrefix, cfg.Redis.TTL)
}

// ProvideKafkaProducer returns nil when kafka is disabled.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvidePublisher creates the trade publisher, nil when kafka is disabled.
func ProvidePublisher(producer *pkgkafka.Producer, cfg *config.Config) repository.Publisher {
	if producer == nil {
		return nil
	}
	return internalrepo.NewKafkaPublisher(producer, cfg.Kafka.Topic)
}

// ProvideMetrics creates the Prometheus recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

func ProvideHTTPClient() *xhttp.Client {
	return xhttp.NewClient(xhttp.WithTimeout(30 * time.Second))
}

func ProvideRateLimiter() *ratelimit.Limiter {
	return ratelimit.New()
}

func ProvidePolymarketClient(httpc *xhttp.Client, limiter *ratelimit.Limiter, logger *xlogger.Logger, cfg *config.Config) *polymarket.Client {
	return polymarket.New(httpc, limiter, logger,
		cfg.Polymarket.GammaURL, cfg.Polymarket.ClobURL, cfg.Polymarket.DataURL,
		polymarket.WithRate(cfg.Polymarket.RatePerSec),
		polymarket.WithPageSize(cfg.Polymarket.PageSize),
	)
}

// ProvideKalshiCredentials signs requests when a key is configured;
// otherwise only public endpoints are reachable.
func ProvideKalshiCredentials(cfg *config.Config) (repository.CredentialProvider, error) {
	if cfg.Kalshi.APIKeyID == "" || cfg.Kalshi.PrivateKeyPath == "" {
		return kalshi.AnonymousCredentials{}, nil
	}
	return kalshi.NewSignedCredentials(cfg.Kalshi.APIKeyID, cfg.Kalshi.PrivateKeyPath)
}

func ProvideKalshiClient(httpc *xhttp.Client, limiter *ratelimit.Limiter, logger *xlogger.Logger, creds repository.CredentialProvider, cfg *config.Config) *kalshi.Client {
	return kalshi.New(httpc, limiter, logger, creds, cfg.Kalshi.BaseURL,
		kalshi.WithRate(cfg.Kalshi.RatePerSec),
		kalshi.WithPageSize(cfg.Kalshi.PageSize),
	)
}

// ProvidePipeline registers one venue adapter per protocol.
func ProvidePipeline(
	store repository.Storage,
	pub repository.Publisher,
	cps repository.CheckpointStore,
	m repository.Metrics,
	logger *xlogger.Logger,
	pm *polymarket.Client,
	ks *kalshi.Client,
	cfg *config.Config,
) *usecase.Pipeline {
	return usecase.NewPipeline(store, cps, m, logger, cfg.Pipeline.BatchSize,
		usecase.NewPolymarketVenue(pm, logger),
		usecase.NewKalshiVenue(ks, logger),
	).WithPublisher(pub).
		WithRunDefaults(cfg.Pipeline.TradesPerMarket, cfg.Pipeline.InterMarketDelay)
}

func ProvideStream(logger *xlogger.Logger, cfg *config.Config) *polymarket.Stream {
	return polymarket.NewStream(cfg.Polymarket.WebSocketURL, logger,
		polymarket.WithMaxReconnects(cfg.Realtime.MaxReconnects),
		polymarket.WithReconnectWait(cfg.Realtime.ReconnectWait),
		polymarket.WithPingInterval(cfg.Polymarket.PingInterval),
		polymarket.WithSubscribeChunks(cfg.Realtime.SubChunkSize, cfg.Realtime.SubChunkDelay),
	)
}

// ProvideRealtimeIngestor builds the stream-to-storage path: validation and
// per-asset throttling in the middleware, then the write-through proc.
func ProvideRealtimeIngestor(
	stream *polymarket.Stream,
	store repository.Storage,
	pub repository.Publisher,
	m repository.Metrics,
	logger *xlogger.Logger,
	cfg *config.Config,
) *usecase.RealtimeIngestor {
	proc := usecase.NewStoreProc(store, pub, logger)
	pipe := mid.NewRealtimePipeline(proc, m,
		mid.WithMaxRPS(cfg.Realtime.MaxRPS),
		mid.WithBufferSize(cfg.Realtime.BufferSize),
	)
	return usecase.NewRealtimeIngestor(stream, pipe, m, logger)
}

// ProvideTokenCatalog caches active token ids for bulk resubscription.
// Layered over redis when available, plain memory otherwise.
func ProvideTokenCatalog(pm *polymarket.Client, client *redis.Client, logger *xlogger.Logger, cfg *config.Config) *usecase.TokenCatalog {
	var svc cache.Service
	if client != nil {
		host, port := splitAddr(cfg.Redis.Addr)
		rc, err := cache.NewRedisCache(
			cache.WithRedisHost(host),
			cache.WithRedisPort(port),
			cache.WithRedisPassword(cfg.Redis.Password),
			cache.WithRedisDB(cfg.Redis.DB),
			cache.WithRedisPrefix(cfg.Redis.KeyPrefix),
		)
		if err == nil {
			svc = cache.NewLayeredCache(rc)
		}
	}
	if svc == nil {
		svc = cache.NewMemoryCache()
	}
	return usecase.NewTokenCatalog(pm, svc, cfg.Redis.TTL, 0, logger)
}

func splitAddr(addr string) (string, int) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return addr, 6379
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		port = 6379
	}
	return host, port
}

// ProvideRunQueue builds the redis-backed deferred-run queue; nil without
// redis. Runs rejected by the single-flight guard are retried with backoff.
func ProvideRunQueue(client *redis.Client, pipe *usecase.Pipeline, logger *xlogger.Logger) *queue.RedisQueue {
	if client == nil {
		return nil
	}
	return queue.NewRedisConsumer(logger, &queue.QueueConfig{
		Workers:    1,
		QueueSize:  100,
		RetryLimit: 5,
		RetryDelay: 30 * time.Second,
	}, client, []queue.Job{
		usecase.NewPipelineRunJob(pipe, logger),
		usecase.NewLogSummaryJob(logger),
	})
}

// ProvideHandler builds the HTTP handler for all pipeline routes.
func ProvideHandler(
	logger *xlogger.Logger,
	pipe *usecase.Pipeline,
	rt *usecase.RealtimeIngestor,
	catalog *usecase.TokenCatalog,
	store repository.Storage,
	redisClient *redis.Client,
	runQueue *queue.RedisQueue,
) *api.PipelineEchoHandler {
	var qs queue.QueueService
	if runQueue != nil {
		qs = runQueue
	}
	return api.NewPipelineEchoHandler(logger, pipe, rt, catalog, store, redisClient, qs)
}

// ProvideApp assembles the application server.
func ProvideApp(
	cfg *config.Config,
	logger *xlogger.Logger,
	handler *api.PipelineEchoHandler,
	rt *usecase.RealtimeIngestor,
	runQueue *queue.RedisQueue,
	chClient *pkgch.Client,
	producer *pkgkafka.Producer,
	redisClient *redis.Client,
) *server.App {
	return server.New(cfg, logger, handler, rt, runQueue, chClient, producer, redisClient)
}
