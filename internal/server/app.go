// Package server wires the gophauth server together: it loads the
// credential store, starts the session sweeper and runs the gRPC and HTTP
// surfaces until a shutdown signal arrives.
package server

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/gophauth/internal/kdf"
	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/authn"
	"github.com/dmitrijs2005/gophauth/internal/server/config"
	"github.com/dmitrijs2005/gophauth/internal/server/credentials"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/gophauth/internal/server/services"
	"github.com/dmitrijs2005/gophauth/internal/server/sessions"
	"github.com/dmitrijs2005/gophauth/internal/server/web"

	gs "github.com/dmitrijs2005/gophauth/internal/server/grpc"
)

type App struct {
	config      *config.Config
	logger      logging.Logger
	repos       *repomanager.Manager
	store       *credentials.Store
	sessions    *sessions.Manager
	userService *services.UserService
}

// NewApp opens the configured repository and loads all credentials into
// memory. Corruption is logged: unusable records are skipped and the
// durable source is left untouched until a new record has to be saved.
func NewApp(ctx context.Context, c *config.Config, logger logging.Logger) (*App, error) {
	repos, err := repomanager.Open(ctx, c, logger)
	if err != nil {
		return nil, fmt.Errorf("storage init error: %w", err)
	}

	store := credentials.New(repos.Credentials(), logger)
	if err := store.Load(ctx); err != nil {
		_ = repos.Close()
		return nil, fmt.Errorf("credential load error: %w", err)
	}

	deriver := kdf.NewDeriver(int64(c.MaxConcurrentDerivations), c.DerivationTimeout)
	a := authn.New(store, deriver, logger)
	sm := sessions.NewManager(c.SessionTTL, logger)

	return &App{
		config:      c,
		logger:      logger,
		repos:       repos,
		store:       store,
		sessions:    sm,
		userService: services.NewUserService(a, sm, c.SecretKey, logger),
	}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := gs.NewGRPCServer(app.config.EndpointAddrGRPC, app.logger, app.userService)
	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, "gRPC server failed", "error", err)
		cancelFunc()
	}
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := web.NewServer(app.config.EndpointAddrHTTP, app.logger, app.userService)
	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, "HTTP server failed", "error", err)
		cancelFunc()
	}
}

// Run blocks until ctx is cancelled, a signal arrives or a server fails.
// Unsaved credential records are persisted on the way out.
func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...",
		"storage", app.repos.Backend(),
		"users", app.store.Len(),
	)

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.sessions.Run(ctx, app.config.SessionSweepInterval)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startGRPCServer(ctx, cancelFunc)
	}()

	if app.config.EndpointAddrHTTP != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			app.startHTTPServer(ctx, cancelFunc)
		}()
	}

	wg.Wait()

	app.logger.Info(context.Background(), "Stopping app...")
	return app.shutdown()
}

func (app *App) shutdown() error {
	ctx := context.Background()
	var errs []error
	if err := app.store.Flush(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := app.repos.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
