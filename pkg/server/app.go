package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/jshorterFG/market-analyzer-tv/internal/usecase"
	"github.com/jshorterFG/market-analyzer-tv/pkg/cache"
	pkgch "github.com/jshorterFG/market-analyzer-tv/pkg/clickhouse"
	"github.com/jshorterFG/market-analyzer-tv/pkg/config"
	xhttp "github.com/jshorterFG/market-analyzer-tv/pkg/http"
	applogger "github.com/jshorterFG/market-analyzer-tv/pkg/logger"
)

// App encapsulates the application lifecycle: HTTP server, background
// warmer and infrastructure clients.
type App struct {
	cfg        *config.Config
	log        *applogger.Logger
	handler    xhttp.Handler
	warmer     *usecase.Warmer
	kv         cache.Service
	chClient   *pkgch.Client
	httpServer *xhttp.Server
}

// New creates an App with all dependencies.
func New(
	cfg *config.Config,
	log *applogger.Logger,
	handler xhttp.Handler,
	warmer *usecase.Warmer,
	kv cache.Service,
	chClient *pkgch.Client,
) *App {
	return &App{
		cfg:      cfg,
		log:      log,
		handler:  handler,
		warmer:   warmer,
		kv:       kv,
		chClient: chClient,
	}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	a.httpServer = xhttp.NewServer(a.handler,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
	)

	if err := a.httpServer.Start(); err != nil {
		a.log.Error("http server start error", applogger.Error(err))
		return err
	}
	a.log.Info("http server started", applogger.Int("port", a.cfg.Server.Port))

	a.warmer.Start()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.log.Info("shutdown signal received")
	return a.shutdown()
}

// shutdown gracefully stops all services.
func (a *App) shutdown() error {
	a.warmer.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		a.log.Error("http shutdown error", applogger.Error(err))
	}

	if a.kv != nil {
		if err := a.kv.Close(); err != nil {
			a.log.Warn("redis close error", applogger.Error(err))
		}
	}
	if a.chClient != nil {
		if err := a.chClient.Close(); err != nil {
			a.log.Warn("clickhouse close error", applogger.Error(err))
		}
	}

	a.log.Info("shutdown complete")
	return nil
}
