// Package pool manages reusable relational database connections. A
// process-wide registry hands out one Pool per distinct credential set;
// each Pool bounds the number of live connections and recycles them across
// short-lived sessions, amortizing the auth handshake cost.
package pool

import (
	"context"
	"database/sql"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/go-sql-driver/mysql"
	"go.uber.org/zap"

	"github.com/polystore/polystore/pkg/errors"
	"github.com/polystore/polystore/pkg/logger"
	"github.com/polystore/polystore/pkg/metrics"
)

// Config bounds a Pool's connection usage.
type Config struct {
	// MinCached is the number of idle connections kept open at startup
	MinCached int `yaml:"min_cached" json:"min_cached"`
	// MaxCached is the maximum number of idle connections retained
	MaxCached int `yaml:"max_cached" json:"max_cached"`
	// MaxShared is accepted for configuration compatibility; handles from
	// Acquire are always exclusive
	MaxShared int `yaml:"max_shared" json:"max_shared"`
	// MaxConnections caps live connections outstanding at once
	MaxConnections int `yaml:"max_connections" json:"max_connections"`
}

// DefaultConfig returns the default pool sizing.
func DefaultConfig() Config {
	return Config{
		MinCached:      1,
		MaxCached:      5,
		MaxShared:      3,
		MaxConnections: 10,
	}
}

// Pool is a bounded set of reusable connections for one credential set.
// Acquire yields an exclusive physical connection; Release returns it for
// reuse rather than closing it.
type Pool struct {
	creds  Credentials
	config Config
	db     *sql.DB
	logger *zap.Logger

	mu     sync.Mutex
	closed bool
}

// New constructs a Pool for the given credential set. Construction fails
// with a config error when required credential fields are missing.
func New(creds Credentials, config Config) (*Pool, error) {
	if err := creds.Validate(BackendRelational); err != nil {
		return nil, err
	}
	if config.MaxConnections <= 0 {
		config = DefaultConfig()
	}

	db, err := sql.Open("mysql", DSN(creds))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to initialize pool")
	}

	db.SetMaxOpenConns(config.MaxConnections)
	db.SetMaxIdleConns(config.MaxCached)
	db.SetConnMaxIdleTime(5 * time.Minute)

	p := &Pool{
		creds:  creds,
		config: config,
		db:     db,
		logger: logger.Get().With(zap.String("component", "pool"), zap.String("host", creds.Host)),
	}

	p.warm(config.MinCached)

	p.logger.Info("connection pool created",
		zap.Int("max_connections", config.MaxConnections),
		zap.Int("max_cached", config.MaxCached))

	return p, nil
}

// warm pre-opens n connections and releases them idle into the pool, so the
// first sessions skip the auth handshake. Failures are non-fatal; the
// backend may simply not be reachable yet.
func (p *Pool) warm(n int) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conns := make([]*sql.Conn, 0, n)
	for i := 0; i < n; i++ {
		conn, err := p.db.Conn(ctx)
		if err != nil {
			p.logger.Debug("pool warm-up stopped", zap.Int("opened", len(conns)), zap.Error(err))
			break
		}
		conns = append(conns, conn)
	}
	for _, conn := range conns {
		_ = conn.Close()
	}
}

// DSN builds the driver connection string for a credential set.
func DSN(creds Credentials) string {
	cfg := mysql.NewConfig()
	cfg.User = creds.User
	cfg.Passwd = creds.Password
	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort(creds.Host, strconv.Itoa(creds.Port))
	cfg.DBName = creds.Database
	cfg.ParseTime = true
	return cfg.FormatDSN()
}

// Acquire returns an exclusive live connection. No two in-flight operations
// share the same physical connection until it is released.
func (p *Pool) Acquire(ctx context.Context) (*sql.Conn, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, errors.New(errors.ErrorTypeConnection, "pool is closed")
	}
	p.mu.Unlock()

	conn, err := p.db.Conn(ctx)
	if err != nil {
		metrics.PoolAcquires.WithLabelValues("error").Inc()
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "failed to acquire connection")
	}

	metrics.PoolAcquires.WithLabelValues("hit").Inc()
	return conn, nil
}

// Release returns a connection to the pool for reuse.
func (p *Pool) Release(conn *sql.Conn) {
	if conn == nil {
		return
	}
	if err := conn.Close(); err != nil {
		p.logger.Warn("failed to release connection", zap.Error(err))
		return
	}
	metrics.PoolReleases.Inc()
}

// Credentials returns the credential set this pool was built from.
func (p *Pool) Credentials() Credentials {
	return p.creds
}

// Ping verifies the pool can reach the backend.
func (p *Pool) Ping(ctx context.Context) error {
	if err := p.db.PingContext(ctx); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConnection, "pool ping failed")
	}
	return nil
}

// Stats reports driver-level pool statistics.
func (p *Pool) Stats() sql.DBStats {
	return p.db.Stats()
}

// Close tears down the pool and all of its connections. Pools normally live
// for the whole process; Close is for tests and shutdown.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	p.logger.Info("connection pool closed")
	return p.db.Close()
}

// Registry is a process-wide cache of Pools keyed by credential identity.
// The check-then-create sequence runs under one mutex so concurrent first
// requests for the same credential set construct exactly one Pool.
type Registry struct {
	config Config
	pools  map[string]*Pool
	mu     sync.Mutex
}

// NewRegistry creates a Registry whose pools use the given sizing.
func NewRegistry(config Config) *Registry {
	if config.MaxConnections <= 0 {
		config = DefaultConfig()
	}
	return &Registry{
		config: config,
		pools:  make(map[string]*Pool),
	}
}

// SetConfig applies sizing to pools this registry constructs from now on.
// Pools already constructed keep the sizing they were built with.
func (r *Registry) SetConfig(config Config) {
	if config.MaxConnections <= 0 {
		config = DefaultConfig()
	}
	r.mu.Lock()
	r.config = config
	r.mu.Unlock()
}

// Get returns the Pool for the exact credential set, constructing it on
// first request. Identical credential sets always map to the same Pool.
func (r *Registry) Get(creds Credentials) (*Pool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := creds.Key()
	if p, ok := r.pools[key]; ok {
		return p, nil
	}

	p, err := New(creds, r.config)
	if err != nil {
		return nil, err
	}
	r.pools[key] = p
	return p, nil
}

// Close closes every pool in the registry.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var firstErr error
	for key, p := range r.pools {
		if err := p.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(r.pools, key)
	}
	return firstErr
}

var defaultRegistry = NewRegistry(DefaultConfig())

// SetDefaultConfig applies sizing to pools the process-wide default
// registry constructs from now on. Loaded configuration calls this before
// any session opens.
func SetDefaultConfig(config Config) {
	defaultRegistry.SetConfig(config)
}

// GetPool returns a pool from the process-wide default registry.
func GetPool(creds Credentials) (*Pool, error) {
	return defaultRegistry.Get(creds)
}
