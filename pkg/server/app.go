package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ChainPilot/internal/domain/repository"
	"ChainPilot/internal/handler/api"
	"ChainPilot/internal/services/execution"
	"ChainPilot/internal/usecase"
	pkgch "ChainPilot/pkg/clickhouse"
	"ChainPilot/pkg/config"
	xhttp "ChainPilot/pkg/http"
	applogger "ChainPilot/pkg/logger"
	pkgqueue "ChainPilot/pkg/queue"
)

// App encapsulates the entire application lifecycle.
type App struct {
	cfg        *config.Config
	store      *config.Store
	log        *applogger.Logger
	collector  *usecase.SignalCollector
	exec       *execution.Executor
	handler    *api.OpsHandler
	alertQueue *pkgqueue.RedisQueue
	chClient   *pkgch.Client
	pub        repository.Publisher
	storage    repository.Storage
	httpServer *xhttp.Server
}

// New creates a new App instance with all dependencies.
func New(
	cfg *config.Config,
	store *config.Store,
	log *applogger.Logger,
	collector *usecase.SignalCollector,
	exec *execution.Executor,
	handler *api.OpsHandler,
	alertQueue *pkgqueue.RedisQueue,
	chClient *pkgch.Client,
	pub repository.Publisher,
	storage repository.Storage,
) *App {
	return &App{
		cfg:        cfg,
		store:      store,
		log:        log,
		collector:  collector,
		exec:       exec,
		handler:    handler,
		alertQueue: alertQueue,
		chClient:   chClient,
		pub:        pub,
		storage:    storage,
	}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a.httpServer = xhttp.NewServer(a.handler,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
		xhttp.WithRequestMetrics(a.log, time.Second),
	)

	// Config changes apply without a restart.
	go a.store.Watch(ctx, 10*time.Second)

	if a.alertQueue != nil {
		if err := a.alertQueue.Start(); err != nil {
			a.log.Warn("alert queue start error", applogger.Error(err))
		}
	}

	a.exec.Start(ctx)
	a.log.Info("executor started",
		applogger.Int("max_concurrent", a.cfg.Executor.MaxConcurrent),
		applogger.String("mode", a.cfg.Executor.Mode),
	)

	go func() {
		if err := a.collector.Start(ctx); err != nil {
			a.log.Error("collector error", applogger.Error(err))
		}
	}()
	a.log.Info("collector started",
		applogger.String("backend", a.cfg.Ingest.Backend),
		applogger.Int("wallets", len(a.cfg.Ingest.Monitor.Wallets)),
	)

	if err := a.httpServer.Start(); err != nil {
		a.log.Error("http server start error", applogger.Error(err))
		return err
	}
	a.log.Info("ops api listening", applogger.Int("port", a.cfg.Server.Port))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.log.Info("shutdown signal received")
	return a.shutdown(ctx)
}

// shutdown stops intake first, drains in-flight orders, then closes
// infrastructure.
func (a *App) shutdown(ctx context.Context) error {
	if err := a.collector.Shutdown(ctx); err != nil {
		a.log.Warn("collector stop error", applogger.Error(err))
	}

	a.exec.Shutdown(a.cfg.Executor.DrainDeadline)
	a.log.Info("executor drained")

	shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		a.log.Error("http shutdown error", applogger.Error(err))
	}

	if a.alertQueue != nil {
		if err := a.alertQueue.Stop(shutdownCtx); err != nil {
			a.log.Warn("alert queue stop error", applogger.Error(err))
		}
	}

	if err := a.pub.Close(); err != nil {
		a.log.Warn("publisher close error", applogger.Error(err))
	}
	if err := a.storage.Close(); err != nil {
		a.log.Warn("storage close error", applogger.Error(err))
	}
	if a.chClient != nil {
		if err := a.chClient.Close(); err != nil {
			a.log.Warn("clickhouse close error", applogger.Error(err))
		}
	}

	a.log.RemoveCollector()
	a.log.Info("shutdown complete")
	return nil
}
