// Package session is the dispatch facade over the three backend
// connectors. Opening a session resolves credentials for a logical
// database name, selects the matching connector variant once, and exposes
// uniform select/insert/delete operations that validate the argument
// subset the resolved variant requires.
package session

import (
	"context"

	"go.uber.org/zap"

	"github.com/polystore/polystore/pkg/connector/core"
	"github.com/polystore/polystore/pkg/connector/registry"
	"github.com/polystore/polystore/pkg/errors"
	"github.com/polystore/polystore/pkg/logger"
	"github.com/polystore/polystore/pkg/pool"
	"github.com/polystore/polystore/pkg/secrets"
)

// Logical database names and the backend each maps to.
var backends = map[string]pool.Backend{
	"signal":   pool.BackendRelational,
	"record":   pool.BackendRelational,
	"sequence": pool.BackendDocument,
	"azure":    pool.BackendTable,
}

// Option configures Open.
type Option func(*openConfig)

type openConfig struct {
	secretOpts secrets.Options
	creds      *pool.Credentials
}

// WithOverride resolves credentials from the file named by the
// database_<name> environment variable instead of the vault.
func WithOverride() Option {
	return func(c *openConfig) { c.secretOpts.Override = true }
}

// WithCredentialFile resolves credentials from an explicit file path.
func WithCredentialFile(path string) Option {
	return func(c *openConfig) { c.secretOpts.Path = path }
}

// WithCredentials bypasses secret resolution with an already-resolved
// credential set.
func WithCredentials(creds pool.Credentials) Option {
	return func(c *openConfig) { c.creds = &creds }
}

// Session is one scoped connection to a logical database. It is acquired
// by Open and must be closed; use With for guaranteed release.
type Session struct {
	name    string
	backend pool.Backend
	conn    core.Connector
	log     *zap.Logger
	closed  bool

	relational core.Relational
	document   core.Document
	table      core.Table
}

// Open resolves the logical name to a backend, resolves credentials, and
// constructs the matching connector variant.
func Open(ctx context.Context, name string, opts ...Option) (*Session, error) {
	backend, ok := backends[name]
	if !ok {
		return nil, errors.Newf(errors.ErrorTypeUnsupportedBackend, "invalid database: %s", name)
	}

	var cfg openConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	var creds pool.Credentials
	if cfg.creds != nil {
		creds = *cfg.creds
	} else {
		var err error
		creds, err = secrets.Resolve(ctx, name, cfg.secretOpts)
		if err != nil {
			return nil, err
		}
	}

	conn, err := registry.GetRegistry().Create(ctx, backend, creds)
	if err != nil {
		return nil, err
	}

	s := &Session{
		name:    name,
		backend: backend,
		conn:    conn,
		log: logger.Get().With(
			zap.String("session", name),
			zap.String("backend", string(backend))),
	}

	// The variant is fixed here; operations dispatch through the capability
	// interface, never on the name again.
	switch backend {
	case pool.BackendRelational:
		s.relational = conn.(core.Relational)
	case pool.BackendDocument:
		s.document = conn.(core.Document)
	case pool.BackendTable:
		s.table = conn.(core.Table)
	}

	s.log.Debug("session opened")
	return s, nil
}

// With opens a session, runs fn, and guarantees the session is closed on
// every exit path.
func With(ctx context.Context, name string, fn func(*Session) error, opts ...Option) error {
	s, err := Open(ctx, name, opts...)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := s.Close(); cerr != nil {
			s.log.Warn("failed to close session", zap.Error(cerr))
		}
	}()
	return fn(s)
}

// Name returns the logical database name the session was opened with.
func (s *Session) Name() string {
	return s.name
}

// Backend returns the backend kind serving this session.
func (s *Session) Backend() pool.Backend {
	return s.backend
}

// Args carries the union of per-variant operation arguments. Each
// operation validates the subset its resolved variant requires.
type Args struct {
	// Relational
	Query    string
	Database string
	Data     []core.Row
	Table    string
	// MergeMode selects upsert semantics for relational and document
	// inserts
	MergeMode bool

	// Document
	Filter     core.Filter
	Collection string
	// Override gates document deletion
	Override bool

	// Wide-column table
	Features   []string
	Parameters map[string]interface{}
	NameFilter string
	Entities   []core.Entity
}

// annotate stamps the session name into the context so connector log
// lines can attribute the operation.
func (s *Session) annotate(ctx context.Context) context.Context {
	return context.WithValue(ctx, logger.SessionKey, s.name)
}

// Select reads rows, documents, or entities depending on the variant.
func (s *Session) Select(ctx context.Context, args Args) ([]core.Row, error) {
	if err := s.ensureOpen(); err != nil {
		return nil, err
	}
	ctx = s.annotate(ctx)

	switch {
	case s.relational != nil:
		if args.Query == "" {
			return nil, invalidArgs("query is required for a relational select")
		}
		return s.relational.Select(ctx, args.Query, core.QueryOptions{Database: args.Database})

	case s.document != nil:
		if len(args.Filter) == 0 || args.Collection == "" {
			return nil, invalidArgs("filter and collection name are required for a document find")
		}
		return s.document.Find(ctx, args.Filter, args.Collection, args.Database)

	default:
		if len(args.Features) == 0 || len(args.Parameters) == 0 || args.NameFilter == "" {
			return nil, invalidArgs("features, parameters and name filter are required for an entity query")
		}
		if args.Table == "" {
			return nil, invalidArgs("table name is required for an entity query")
		}
		return s.table.QueryEntity(ctx, args.Features, args.Parameters, args.NameFilter, args.Table)
	}
}

// Insert writes rows, documents, or entities depending on the variant.
func (s *Session) Insert(ctx context.Context, args Args) error {
	if err := s.ensureOpen(); err != nil {
		return err
	}
	ctx = s.annotate(ctx)

	switch {
	case s.relational != nil:
		if len(args.Data) == 0 || args.Table == "" {
			return invalidArgs("data and table name are required for a relational insert")
		}
		opts := core.QueryOptions{Database: args.Database}
		if args.MergeMode {
			return s.relational.Merge(ctx, args.Data, args.Table, opts, core.MergeOptions{})
		}
		return s.relational.Insert(ctx, args.Data, args.Table, opts)

	case s.document != nil:
		if len(args.Data) == 0 || args.Collection == "" {
			return invalidArgs("data and collection name are required for a document insert")
		}
		return s.document.Insert(ctx, args.Data, args.Collection, args.Database, args.MergeMode)

	default:
		if len(args.Entities) == 0 || args.Table == "" {
			return invalidArgs("entities and table name are required for an entity insert")
		}
		return s.table.InsertEntity(ctx, args.Entities, args.Table)
	}
}

// Delete removes rows, documents, or entities depending on the variant.
func (s *Session) Delete(ctx context.Context, args Args) error {
	if err := s.ensureOpen(); err != nil {
		return err
	}
	ctx = s.annotate(ctx)

	switch {
	case s.relational != nil:
		if args.Query == "" {
			return invalidArgs("query is required for a relational delete")
		}
		return s.relational.Delete(ctx, args.Query, core.QueryOptions{Database: args.Database})

	case s.document != nil:
		if len(args.Filter) == 0 || args.Collection == "" {
			return invalidArgs("filter and collection name are required for a document delete")
		}
		return s.document.Delete(ctx, args.Filter, args.Collection, args.Database, args.Override)

	default:
		if len(args.Entities) == 0 || args.Table == "" {
			return invalidArgs("entities and table name are required for an entity delete")
		}
		return s.table.DeleteEntity(ctx, args.Entities, args.Table)
	}
}

// Close releases the underlying connector. It is idempotent.
func (s *Session) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.log.Debug("session closed")
	return s.conn.Close()
}

func (s *Session) ensureOpen() error {
	if s.closed {
		return errors.New(errors.ErrorTypeConnection, "session is closed")
	}
	return nil
}

func invalidArgs(msg string) error {
	return errors.New(errors.ErrorTypeValidation, "invalid input arguments: "+msg)
}
