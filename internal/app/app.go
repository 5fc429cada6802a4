// =============================
// File: internal/app/app.go
// =============================
package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rovshanmuradov/bondcurve/internal/api"
	"github.com/rovshanmuradov/bondcurve/internal/config"
	"github.com/rovshanmuradov/bondcurve/internal/engine"
	"github.com/rovshanmuradov/bondcurve/internal/events"
	"github.com/rovshanmuradov/bondcurve/internal/ledger"
	"github.com/rovshanmuradov/bondcurve/internal/metrics"
	"github.com/rovshanmuradov/bondcurve/internal/storage"
	"github.com/rovshanmuradov/bondcurve/internal/storage/gormstore"
	"github.com/rovshanmuradov/bondcurve/internal/venue"
)

const connectRetryDelay = 500 * time.Millisecond

// App is a fully wired curve service.
type App struct {
	cfg      *config.Config
	logger   *zap.Logger
	engine   *engine.Engine
	handler  http.Handler
	server   *http.Server
	shutdown *ShutdownHandler

	mu   sync.Mutex
	addr net.Addr
}

// New builds storage, the event bus, the engine and the HTTP surface from cfg.
// On error everything opened so far is closed.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	params, err := cfg.Params()
	if err != nil {
		return nil, err
	}

	a := &App{
		cfg:      cfg,
		logger:   logger.Named("app"),
		shutdown: NewShutdownHandler(logger),
	}

	store, history, err := a.openStorage(ctx, params.ProgramID, logger)
	if err != nil {
		return nil, err
	}

	bus := events.NewBus(logger, cfg.EventBuffer)
	recorder := storage.NewRecorder(bus, history, logger)
	m := metrics.New()
	m.Subscribe(bus)
	a.shutdown.AddCloser("subscribers", func() error {
		recorder.Close()
		m.Unsubscribe()
		return nil
	})
	// drained before subscribers detach
	a.shutdown.Add("event bus", bus.Shutdown)

	eng, err := engine.New(store, venue.NewStatic(params.VenueProgramID, logger), params, events.NewPublisher(bus, logger), logger)
	if err != nil {
		_ = a.shutdown.Shutdown(ctx)
		return nil, fmt.Errorf("failed to create engine: %w", err)
	}
	a.engine = eng

	a.handler = api.New(api.Config{
		Engine:  eng,
		History: history,
		Metrics: m,
		Logger:  logger,
	}).Handler()
	a.server = &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           a.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	a.shutdown.Add("http server", a.server.Shutdown)

	return a, nil
}

// openStorage returns the ledger and history for the configured driver and
// registers their shutdown.
func (a *App) openStorage(ctx context.Context, programID solana.PublicKey, logger *zap.Logger) (ledger.Store, storage.History, error) {
	if a.cfg.StorageDriver == config.StorageMemory {
		a.logger.Warn("Using in-memory storage; state is lost on exit")
		return ledger.NewMemoryStore(programID), storage.NewMemoryHistory(), nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = connectRetryDelay
	policy.MaxInterval = connectRetryDelay * 10

	notify := func(err error, d time.Duration) {
		a.logger.Warn("Storage not ready, retrying", zap.Error(err), zap.Duration("backoff", d))
	}

	operation := func() (*gormstore.Store, error) {
		s, err := gormstore.Open(a.cfg.StorageDriver, a.cfg.StorageDSN, programID, logger)
		if err != nil {
			return nil, err
		}
		if err := s.Migrate(ctx); err != nil {
			_ = s.Close()
			return nil, err
		}
		return s, nil
	}

	s, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(policy),
		backoff.WithMaxTries(uint(a.cfg.ConnectRetries)+1),
		backoff.WithNotify(notify))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open %s storage: %w", a.cfg.StorageDriver, err)
	}

	a.logger.Info("Storage ready", zap.String("driver", a.cfg.StorageDriver))
	a.shutdown.AddCloser("storage", s.Close)
	return s, s, nil
}

// Engine returns the wired engine.
func (a *App) Engine() *engine.Engine { return a.engine }

// Handler returns the HTTP handler served by Run.
func (a *App) Handler() http.Handler { return a.handler }

// Addr returns the bound listener address once Run has started listening.
func (a *App) Addr() net.Addr {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.addr
}

// Run serves HTTP until ctx is cancelled, then shuts every service down
// within the configured timeout.
func (a *App) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.cfg.ListenAddr)
	if err != nil {
		_ = a.Close()
		return fmt.Errorf("failed to listen on %s: %w", a.cfg.ListenAddr, err)
	}
	a.mu.Lock()
	a.addr = ln.Addr()
	a.mu.Unlock()

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.logger.Info("HTTP server listening", zap.String("addr", ln.Addr().String()))
		if err := a.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()
		return a.Close()
	})

	return g.Wait()
}

// Close stops the HTTP server, drains the bus into its subscribers and then
// closes storage.
func (a *App) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()
	return a.shutdown.Shutdown(ctx)
}
