// Package server wires the identity service together: configuration,
// storage, credential codec, mail dispatch and the HTTP endpoint. It also
// handles graceful shutdown.
package server

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/woodraft/draftauth/internal/logging"
	"github.com/woodraft/draftauth/internal/server/auth"
	"github.com/woodraft/draftauth/internal/server/config"
	"github.com/woodraft/draftauth/internal/server/mail"
	"github.com/woodraft/draftauth/internal/server/metrics"
	"github.com/woodraft/draftauth/internal/server/repositories/repomanager"
	"github.com/woodraft/draftauth/internal/server/rest"
	"github.com/woodraft/draftauth/internal/server/services"
	"github.com/woodraft/draftauth/internal/server/worker"
)

// MemoryDSN selects the in-process store instead of PostgreSQL. Data is
// lost on exit.
const MemoryDSN = "memory:"

const dispatcherStopTimeout = 15 * time.Second

type App struct {
	config      *config.Config
	logger      logging.Logger
	repomanager repomanager.RepositoryManager
	registry    *prometheus.Registry
	dispatcher  *worker.Dispatcher
	bootstrap   *services.BootstrapService
	server      *rest.Server
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {

	logger := logging.Setup("draftauth", c.LogFormat, c.LogLevel, nil)

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	rm, err := openRepositoryManager(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	if err := rm.RunMigrations(ctx); err != nil {
		_ = rm.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}

	registry := metrics.NewRegistry()
	mt := metrics.New(registry)

	hasher, err := auth.NewHasher(c.BcryptCost, c.HashWorkers, mt.PasswordHashSeconds)
	if err != nil {
		_ = rm.Close()
		return nil, fmt.Errorf("password hasher: %w", err)
	}
	tokens := auth.NewTokenCodec(c.SecretKey, c.TokenValidityDuration)

	mailer, err := mail.New(ctx, c, logger)
	if err != nil {
		_ = rm.Close()
		return nil, fmt.Errorf("mailer: %w", err)
	}
	dispatcher := worker.NewDispatcher(mailer, logger, mt, worker.Options{
		Workers:    c.MailWorkers,
		QueueSize:  c.MailQueueSize,
		MaxRetries: c.MailMaxRetries,
		BaseDelay:  c.MailRetryBaseDelay,
	})

	as := services.NewAuthService(rm, hasher, tokens, logger, mt)
	is := services.NewInviteService(rm, dispatcher, c, logger, mt)
	rs := services.NewRegistrationService(rm, hasher, c, logger, mt)
	bs := services.NewBootstrapService(rm, is, c, logger)

	router := rest.NewRouter(rest.Deps{
		Auth:          as,
		Invites:       is,
		Registrations: rs,
		Gatherer:      registry,
		Logger:        logger,
	}, rest.Options{
		CORSOrigins:    c.CORSOrigins,
		RequestTimeout: c.RequestTimeout,
	})

	return &App{
		config:      c,
		logger:      logger,
		repomanager: rm,
		registry:    registry,
		dispatcher:  dispatcher,
		bootstrap:   bs,
		server:      rest.NewServer(c.EndpointAddrHTTP, logger, router),
	}, nil
}

func openRepositoryManager(ctx context.Context, dsn string) (repomanager.RepositoryManager, error) {
	if strings.HasPrefix(dsn, MemoryDSN) {
		return repomanager.NewMemoryRepositoryManager(), nil
	}

	db, err := repomanager.OpenPostgres(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return repomanager.NewPostgresRepositoryManager(db), nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	if err := app.server.Run(ctx); err != nil {
		app.logger.Error(ctx, "http server failed", "error", err)
		cancelFunc()
	}
}

// Run serves until ctx is cancelled or a termination signal arrives, then
// drains the mail queue and closes the store.
func (app *App) Run(ctx context.Context) error {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	app.dispatcher.Start(ctx)
	defer app.shutdown(ctx)

	if err := app.bootstrap.BootstrapAdmins(ctx); err != nil {
		return fmt.Errorf("admin bootstrap: %w", err)
	}

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	wg.Wait()

	return nil
}

func (app *App) shutdown(ctx context.Context) {
	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), dispatcherStopTimeout)
	defer cancel()

	if err := app.dispatcher.Stop(sctx); err != nil {
		app.logger.Warn(sctx, "mail queue not drained", "error", err)
	}
	if err := app.repomanager.Close(); err != nil {
		app.logger.Error(sctx, "closing store", "error", err)
	}
	app.logger.Info(sctx, "App stopped")
}
