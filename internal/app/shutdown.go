// internal/app/shutdown.go
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// CloseFunc stops one service within the deadline carried by ctx.
type CloseFunc func(ctx context.Context) error

// ShutdownHandler closes registered services in reverse registration order.
// Services depend on the ones registered before them, so each must finish
// before the next is closed.
type ShutdownHandler struct {
	logger   *zap.Logger
	services []namedService
	mu       sync.Mutex
	once     sync.Once
	err      error
}

type namedService struct {
	name  string
	close CloseFunc
}

func NewShutdownHandler(logger *zap.Logger) *ShutdownHandler {
	return &ShutdownHandler{logger: logger.Named("shutdown")}
}

// Add registers a service for shutdown
func (sh *ShutdownHandler) Add(name string, fn CloseFunc) {
	sh.mu.Lock()
	defer sh.mu.Unlock()

	sh.services = append(sh.services, namedService{name: name, close: fn})
	sh.logger.Debug("Registered service for shutdown", zap.String("service", name))
}

// AddCloser registers a service whose Close takes no context.
func (sh *ShutdownHandler) AddCloser(name string, fn func() error) {
	sh.Add(name, func(context.Context) error { return fn() })
}

// Shutdown closes all registered services once; later calls return the
// first result.
func (sh *ShutdownHandler) Shutdown(ctx context.Context) error {
	sh.once.Do(func() {
		sh.err = sh.shutdown(ctx)
	})
	return sh.err
}

func (sh *ShutdownHandler) shutdown(ctx context.Context) error {
	sh.mu.Lock()
	services := make([]namedService, len(sh.services))
	copy(services, sh.services)
	sh.mu.Unlock()

	sh.logger.Info("Starting graceful shutdown", zap.Int("services", len(services)))

	var errs []error
	for i := len(services) - 1; i >= 0; i-- {
		if err := sh.closeOne(ctx, services[i]); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		sh.logger.Error("Shutdown completed with errors", zap.Int("errorCount", len(errs)))
		return errors.Join(errs...)
	}
	sh.logger.Info("Graceful shutdown completed successfully")
	return nil
}

func (sh *ShutdownHandler) closeOne(ctx context.Context, s namedService) error {
	sh.logger.Info("Shutting down service", zap.String("service", s.name))

	done := make(chan error, 1)
	go func() {
		done <- s.close(ctx)
	}()

	select {
	case err := <-done:
		if err != nil {
			sh.logger.Error("Failed to shutdown service",
				zap.String("service", s.name),
				zap.Error(err))
			return fmt.Errorf("%s: %w", s.name, err)
		}
		sh.logger.Info("Service shutdown complete", zap.String("service", s.name))
		return nil
	case <-ctx.Done():
		sh.logger.Error("Shutdown timeout for service", zap.String("service", s.name))
		return fmt.Errorf("%s: shutdown timeout: %w", s.name, ctx.Err())
	}
}
