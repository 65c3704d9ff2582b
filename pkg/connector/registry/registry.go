// Package registry manages backend connector registration and
// instantiation. Backend packages register a factory under their backend
// name in init(); the session facade resolves through the registry once at
// open time.
package registry

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/polystore/polystore/pkg/connector/core"
	"github.com/polystore/polystore/pkg/errors"
	"github.com/polystore/polystore/pkg/logger"
	"github.com/polystore/polystore/pkg/pool"
)

// Factory creates a connector instance for a resolved credential set.
type Factory func(ctx context.Context, creds pool.Credentials) (core.Connector, error)

// Registry maps backend names to connector factories.
type Registry struct {
	factories map[pool.Backend]Factory
	mu        sync.RWMutex
	logger    *zap.Logger
}

var globalRegistry = NewRegistry()

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[pool.Backend]Factory),
		logger:    logger.Get().With(zap.String("component", "connector_registry")),
	}
}

// GetRegistry returns the global registry instance.
func GetRegistry() *Registry {
	return globalRegistry
}

// Register registers a connector factory for a backend.
func (r *Registry) Register(backend pool.Backend, factory Factory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[backend]; exists {
		return errors.Newf(errors.ErrorTypeConfig, "backend %s already registered", backend)
	}

	r.factories[backend] = factory
	r.logger.Debug("backend registered", zap.String("backend", string(backend)))
	return nil
}

// Create instantiates a connector for the backend.
func (r *Registry) Create(ctx context.Context, backend pool.Backend, creds pool.Credentials) (core.Connector, error) {
	r.mu.RLock()
	factory, exists := r.factories[backend]
	r.mu.RUnlock()

	if !exists {
		return nil, errors.Newf(errors.ErrorTypeUnsupportedBackend, "backend %s is not registered", backend)
	}

	conn, err := factory(ctx, creds)
	if err != nil {
		return nil, err
	}

	r.logger.Debug("connector created", zap.String("backend", string(backend)))
	return conn, nil
}
