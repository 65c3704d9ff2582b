// Package base provides the scaffolding shared by all backend connectors:
// a logging/metrics call wrapper applied at each operation call site, and
// the validation guards every variant runs before touching the network.
package base

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/polystore/polystore/pkg/logger"
	"github.com/polystore/polystore/pkg/metrics"
)

// Base carries the per-connector logger and identity. Connector variants
// embed it.
type Base struct {
	backend string
	log     *zap.Logger
}

// NewBase creates scaffolding for a connector of the named backend kind.
func NewBase(backend string) Base {
	return Base{
		backend: backend,
		log:     logger.Get().With(zap.String("backend", backend)),
	}
}

// Backend returns the backend kind this connector serves.
func (b *Base) Backend() string {
	return b.backend
}

// Logger returns the connector's logger.
func (b *Base) Logger() *zap.Logger {
	return b.log
}

// Observe runs one backend operation through the shared logging and metrics
// wrapper, annotating the context so downstream log lines carry the backend
// and operation names. Every public connector operation calls through here.
func (b *Base) Observe(ctx context.Context, op string, fn func(context.Context) error) error {
	ctx = context.WithValue(ctx, logger.BackendKey, b.backend)
	ctx = context.WithValue(ctx, logger.OperationKey, op)
	log := logger.WithContext(ctx)

	start := time.Now()
	log.Debug("operation started")

	err := fn(ctx)
	metrics.ObserveOperation(b.backend, op, start, err)

	if err != nil {
		log.Warn("operation failed",
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return err
	}

	log.Debug("operation completed",
		zap.Duration("elapsed", time.Since(start)))
	return nil
}
