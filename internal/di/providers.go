package di

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"ScanRunner/internal/domain/repository"
	"ScanRunner/internal/domain/service"
	"ScanRunner/internal/engine"
	"ScanRunner/internal/handler/api"
	"ScanRunner/internal/loader"
	internalrepo "ScanRunner/internal/repository"
	"ScanRunner/internal/scanners"
	"ScanRunner/internal/service/marketdata"
	"ScanRunner/internal/usecase"
	"ScanRunner/pkg/cache"
	pkgch "ScanRunner/pkg/clickhouse"
	"ScanRunner/pkg/config"
	xhttp "ScanRunner/pkg/http"
	pkgkafka "ScanRunner/pkg/kafka"
	applogger "ScanRunner/pkg/logger"
	"ScanRunner/pkg/metrics"
	"ScanRunner/pkg/queue"
	"ScanRunner/pkg/server"

	"github.com/redis/go-redis/v9"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	format := "json"
	if cfg.Environment == "development" || cfg.Environment == "test" {
		format = "console"
	}
	return applogger.New(&applogger.Config{Level: "info", Format: format, Output: "stdout"})
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideRedisClient connects to Redis, or returns nil when disabled.
func ProvideRedisClient(cfg *config.Config) (*redis.Client, error) {
	if !cfg.Redis.Enabled {
		return nil, nil
	}
	host, portStr, err := net.SplitHostPort(cfg.Redis.Addr)
	if err != nil {
		return nil, fmt.Errorf("redis addr: %w", err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("redis port: %w", err)
	}
	rc, err := cache.NewRedisCache(
		cache.WithRedisHost(host),
		cache.WithRedisPort(port),
		cache.WithRedisPassword(cfg.Redis.Password),
		cache.WithRedisDB(cfg.Redis.DB),
	)
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	return rc.Client(), nil
}

// ProvideCache builds the market-data cache: layered over Redis when
// available, in-memory otherwise.
func ProvideCache(cfg *config.Config) cache.Service {
	if cfg.Redis.Enabled {
		host, portStr, err := net.SplitHostPort(cfg.Redis.Addr)
		if err == nil {
			if port, perr := strconv.Atoi(portStr); perr == nil {
				rc, rerr := cache.NewRedisCache(
					cache.WithRedisHost(host),
					cache.WithRedisPort(port),
					cache.WithRedisPassword(cfg.Redis.Password),
					cache.WithRedisDB(cfg.Redis.DB),
				)
				if rerr == nil {
					return cache.NewLayeredCache(rc)
				}
			}
		}
	}
	return cache.NewMemoryCache()
}

// ProvideMarketData creates the upstream REST client.
func ProvideMarketData(cfg *config.Config, c cache.Service, log *applogger.Logger) repository.MarketData {
	return marketdata.New(
		cfg.MarketData.BaseURL,
		cfg.MarketData.APIKey,
		cfg.MarketData.Timeout,
		marketdata.WithCache(c, cfg.MarketData.CacheTTL.Candles, cfg.MarketData.CacheTTL.Grouped),
		marketdata.WithRateLimit(cfg.MarketData.RatePerSecond, cfg.MarketData.RateBurst),
		marketdata.WithLogger(log),
	)
}

// ProvideQuoteStream creates the live quote stream, or nil when no
// WebSocket endpoint is configured.
func ProvideQuoteStream(cfg *config.Config) repository.QuoteStream {
	if cfg.MarketData.WebSocketURL == "" {
		return nil
	}
	return marketdata.NewStream(
		cfg.MarketData.APIKey,
		cfg.MarketData.WebSocketURL,
		cfg.Execution.Symbols,
		cfg.MarketData.ReconnectDelay,
		cfg.MarketData.PingInterval,
	)
}

// ProvideRegistry builds the built-in scanner catalog.
func ProvideRegistry(data repository.MarketData, stream repository.QuoteStream) service.Registry {
	return scanners.NewRegistry(data, stream)
}

// ProvideLoader creates the isolation loader.
func ProvideLoader(registry service.Registry, log *applogger.Logger) *loader.Loader {
	return loader.New(registry, log)
}

// ProvideEngine creates the execution engine.
func ProvideEngine(log *applogger.Logger, m repository.Metrics) *engine.Engine {
	return engine.New(log, m)
}

// ProvideExecuteUseCase creates the execution boundary.
func ProvideExecuteUseCase(l *loader.Loader, e *engine.Engine, log *applogger.Logger, m repository.Metrics) *usecase.ExecuteUseCase {
	return usecase.NewExecuteUseCase(l, e, log, m)
}

// ProvideClickHouseClient creates a ClickHouse client, or nil when disabled.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if !cfg.ClickHouse.Enabled {
		return nil, nil
	}
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
	return client, nil
}

// ProvideSignalStore creates the signal store, or nil without ClickHouse.
func ProvideSignalStore(chClient *pkgch.Client, log *applogger.Logger) (repository.SignalStore, error) {
	if chClient == nil {
		return nil, nil
	}
	store := internalrepo.NewCHSignalStore(chClient)
	store.SetLogger(log)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := store.Init(ctx); err != nil {
		return nil, fmt.Errorf("signal store schema: %w", err)
	}
	return store, nil
}

// ProvideKafkaProducer creates a Kafka producer, or nil when disabled.
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

// ProvideSignalPublisher creates the Kafka signal publisher, or nil
// without a producer.
func ProvideSignalPublisher(producer *pkgkafka.Producer, cfg *config.Config) repository.SignalPublisher {
	if producer == nil {
		return nil
	}
	return internalrepo.NewKafkaSignalPublisher(producer, cfg.Kafka.SignalsTopic)
}

// ProvidePipeline wires execution with post-run delivery.
func ProvidePipeline(exec *usecase.ExecuteUseCase, pub repository.SignalPublisher, store repository.SignalStore, log *applogger.Logger) *usecase.Pipeline {
	return usecase.NewPipeline(exec, pub, store, log)
}

// ProvideKafkaConsumer creates a Kafka consumer for execution requests,
// or nil when disabled.
func ProvideKafkaConsumer(cfg *config.Config) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Enabled || cfg.Kafka.Consumer.RequestsTopic == "" {
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
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	return consumer, nil
}

// ProvideRequestsHandler handles execution requests from Kafka.
func ProvideRequestsHandler(pipeline *usecase.Pipeline, cfg *config.Config, log *applogger.Logger, m repository.Metrics) pkgkafka.MessageHandler {
	return usecase.NewExecutionRequestsHandler(cfg.Kafka.Consumer.RequestsTopic, pipeline, cfg, log, m)
}

// ProvideJobQueue builds the redis-backed async execution queue, or nil
// without Redis.
func ProvideJobQueue(log *applogger.Logger, client *redis.Client, pipeline *usecase.Pipeline, cfg *config.Config) *queue.RedisQueue {
	if client == nil {
		return nil
	}
	qcfg := &queue.QueueConfig{
		Workers:    cfg.Redis.Queue.Workers,
		QueueSize:  1024,
		RetryLimit: cfg.Redis.Queue.MaxRetries,
		RetryDelay: cfg.Redis.Queue.PollInterval,
	}
	job := usecase.NewExecutionJob(pipeline, cfg, log)
	q := queue.NewRedisQueue(log, qcfg, client, queue.ModeProducerConsumer, queue.WithKeyPrefix("scanrunner:queue"))
	q.RegisterJobs([]queue.Job{job})
	return q
}

// ProvideHTTPHandler builds the API surface.
func ProvideHTTPHandler(log *applogger.Logger, pipeline *usecase.Pipeline, jobQueue *queue.RedisQueue, cfg *config.Config, registry service.Registry) xhttp.Handler {
	var q queue.QueueService
	if jobQueue != nil {
		q = jobQueue
	}
	return api.NewExecutionsHandler(log, pipeline, q, cfg, registry)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	log *applogger.Logger,
	httpHandler xhttp.Handler,
	consumer *pkgkafka.Consumer,
	kh pkgkafka.MessageHandler,
	jobQueue *queue.RedisQueue,
	chClient *pkgch.Client,
	producer *pkgkafka.Producer,
) *server.App {
	if consumer != nil {
		consumer.WithConsumerHook(pkgkafka.NoopHook{})
	}
	if producer != nil {
		log.AddCollector(&applogger.CollectionConfig{
			TimeInterval:   30 * time.Second,
			CountThreshold: 100,
			Topic:          "scanrunner.logs",
			Publisher:      kafkaLogPublisher{producer: producer},
		})
	}
	app := server.New(cfg, log, httpHandler, consumer, kh, jobQueue, chClient)
	if producer != nil {
		app.AddCloser(producer.Close)
	}
	app.AddCloser(func() error {
		log.RemoveCollector()
		return nil
	})
	return app
}

// kafkaLogPublisher bridges the log collector's publisher contract onto
// the kafka producer.
type kafkaLogPublisher struct {
	producer *pkgkafka.Producer
}

func (p kafkaLogPublisher) PublishMessage(ctx context.Context, topic string, payload interface{}) error {
	return p.producer.Publish(ctx, topic, nil, payload)
}
