// Package core defines the uniform contracts every backend connector
// implements. The session facade holds one of the capability interfaces,
// selected once at open time; it never switches on a backend name after
// construction.
package core

import (
	"context"
)

// Row is one result row or input row for the relational backend.
type Row = map[string]interface{}

// Entity is one wide-column table entity. A defined partition/row-key pair
// is expected by the table backend.
type Entity = map[string]interface{}

// Filter is a document-store query filter.
type Filter = map[string]interface{}

// Connector is the capability set common to all backends.
type Connector interface {
	// Reconnect re-establishes the underlying connection using the same
	// credential set or pool it was built from.
	Reconnect(ctx context.Context) error

	// Close releases the underlying connection. Pooled connections return
	// to their pool; direct connections close outright. The connector is
	// unusable afterward.
	Close() error
}

// QueryOptions carries the optional per-call settings for relational
// operations.
type QueryOptions struct {
	// Database switches the active database before the operation runs
	Database string
	// ChunkSize is the page size for select accumulation (default 1_000_000)
	ChunkSize int
}

// MergeOptions controls relational conflict resolution.
type MergeOptions struct {
	// UpdateTargets lists the fields overwritten on key conflict. Empty
	// means every supplied field. In increment mode it must name exactly
	// one field.
	UpdateTargets []string
	// Increment selects increment mode: on conflict the single target
	// field is atomically incremented by 1.
	Increment bool
}

// Relational is the MySQL/MariaDB capability set.
type Relational interface {
	Connector

	Select(ctx context.Context, query string, opts QueryOptions) ([]Row, error)
	Insert(ctx context.Context, rows []Row, table string, opts QueryOptions) error
	Merge(ctx context.Context, rows []Row, table string, opts QueryOptions, merge MergeOptions) error
	Delete(ctx context.Context, query string, opts QueryOptions) error
	Truncate(ctx context.Context, table string, opts QueryOptions) error
}

// Document is the MongoDB capability set.
type Document interface {
	Connector

	Find(ctx context.Context, filter Filter, collection, database string) ([]Row, error)
	Insert(ctx context.Context, rows []Row, collection, database string, mergeMode bool) error
	// Delete only proceeds when override is true; without it the call is a
	// deliberate no-op guarding against accidental mass deletion.
	Delete(ctx context.Context, filter Filter, collection, database string, override bool) error
}

// Table is the Azure Table Storage capability set. Operations may be issued
// concurrently; each scopes a fresh client for its own lifetime.
type Table interface {
	Connector

	CreateTable(ctx context.Context, table string) error
	DeleteTable(ctx context.Context, table string) error
	InsertEntity(ctx context.Context, entities []Entity, table string) error
	DeleteEntity(ctx context.Context, entities []Entity, table string) error
	QueryEntity(ctx context.Context, selectFields []string, parameters map[string]interface{}, nameFilter, table string) ([]Entity, error)
}
