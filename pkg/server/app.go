package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	pkgch "ScanRunner/pkg/clickhouse"
	"ScanRunner/pkg/config"
	xhttp "ScanRunner/pkg/http"
	pkgkafka "ScanRunner/pkg/kafka"
	applogger "ScanRunner/pkg/logger"
	"ScanRunner/pkg/queue"
)

// App encapsulates the entire application lifecycle: HTTP boundary,
// queue workers for async executions, and the Kafka request consumer.
type App struct {
	cfg         *config.Config
	log         *applogger.Logger
	httpHandler xhttp.Handler
	httpServer  *xhttp.Server
	consumer    *pkgkafka.Consumer
	kh          pkgkafka.MessageHandler
	jobQueue    *queue.RedisQueue
	chClient    *pkgch.Client
	closers     []func() error
}

// New creates a new App instance. Any of consumer, jobQueue and chClient
// may be nil when the corresponding backend is disabled.
func New(
	cfg *config.Config,
	log *applogger.Logger,
	httpHandler xhttp.Handler,
	consumer *pkgkafka.Consumer,
	kh pkgkafka.MessageHandler,
	jobQueue *queue.RedisQueue,
	chClient *pkgch.Client,
) *App {
	return &App{
		cfg:         cfg,
		log:         log,
		httpHandler: httpHandler,
		consumer:    consumer,
		kh:          kh,
		jobQueue:    jobQueue,
		chClient:    chClient,
	}
}

// AddCloser registers extra resources to release on shutdown.
func (a *App) AddCloser(fn func() error) { a.closers = append(a.closers, fn) }

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a.httpServer = xhttp.NewServer(a.httpHandler,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
	)

	if a.chClient != nil {
		if err := a.chClient.Health(ctx); err != nil {
			a.log.Warn("clickhouse not reachable at startup", applogger.Error(err))
		}
	}

	if a.jobQueue != nil {
		if err := a.jobQueue.Start(); err != nil {
			a.log.Error("queue start error", applogger.Error(err))
			return err
		}
		a.log.Info("execution queue workers started",
			applogger.Int("workers", a.cfg.Redis.Queue.Workers))
	}

	if a.consumer != nil && a.kh != nil {
		a.consumer.RegisterHandler(a.kh)
		go func() {
			if err := a.consumer.Start(); err != nil {
				a.log.Error("kafka consumer error", applogger.Error(err))
			}
		}()
		a.log.Info("kafka consumer started", applogger.String("topic", a.kh.Topic()))
	}

	if err := a.httpServer.Start(); err != nil {
		a.log.Error("http server start error", applogger.Error(err))
		return err
	}
	a.log.Info("http server listening", applogger.Int("port", a.cfg.Server.Port))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.log.Info("shutdown signal received")
	return a.shutdown(ctx)
}

// shutdown gracefully stops all services.
func (a *App) shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		a.log.Error("http shutdown error", applogger.Error(err))
	}

	if a.consumer != nil {
		if err := a.consumer.Stop(shutdownCtx); err != nil {
			a.log.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}

	if a.jobQueue != nil {
		if err := a.jobQueue.Stop(shutdownCtx); err != nil {
			a.log.Warn("queue stop error", applogger.Error(err))
		}
	}

	if a.chClient != nil {
		if err := a.chClient.Close(); err != nil {
			a.log.Warn("clickhouse close error", applogger.Error(err))
		}
	}

	for _, fn := range a.closers {
		if err := fn(); err != nil {
			a.log.Warn("resource close error", applogger.Error(err))
		}
	}

	a.log.Info("shutdown complete")
	return nil
}
