// Package relational implements the MySQL/MariaDB backend connector. It
// wraps database/sql over the go-sql-driver, either on a direct connection
// or on a handle acquired from the shared pool, and enforces the layer's
// query-safety and idempotency rules (INSERT IGNORE, upsert-on-conflict,
// commit only when rows were affected).
package relational

import (
	"context"
	"database/sql"

	"go.uber.org/zap"

	"github.com/polystore/polystore/pkg/connector/base"
	"github.com/polystore/polystore/pkg/connector/core"
	"github.com/polystore/polystore/pkg/errors"
	"github.com/polystore/polystore/pkg/metrics"
	"github.com/polystore/polystore/pkg/pool"
)

// DefaultChunkSize is the select page size when none is given.
const DefaultChunkSize = 1_000_000

// Connector is one live relational session. It is not safe for concurrent
// use; callers needing concurrency open one connector per goroutine, each
// drawing its own pooled connection.
type Connector struct {
	base.Base

	creds pool.Credentials
	p     *pool.Pool // set when pooled
	db    *sql.DB    // owned when direct
	conn  *sql.Conn

	closed bool
}

var _ core.Relational = (*Connector)(nil)

// Connect opens a direct (unpooled) connector for the credential set.
func Connect(ctx context.Context, creds pool.Credentials) (*Connector, error) {
	if err := creds.Validate(pool.BackendRelational); err != nil {
		return nil, err
	}

	db, err := sql.Open("mysql", pool.DSN(creds))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "failed to open database")
	}

	c := &Connector{
		Base:  base.NewBase(string(pool.BackendRelational)),
		creds: creds,
		db:    db,
	}
	if err := c.Reconnect(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return c, nil
}

// ConnectPooled opens a connector whose handle is drawn from the given pool
// and returned to it on Close.
func ConnectPooled(ctx context.Context, p *pool.Pool) (*Connector, error) {
	c := &Connector{
		Base:  base.NewBase(string(pool.BackendRelational)),
		creds: p.Credentials(),
		p:     p,
	}
	if err := c.Reconnect(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

// Reconnect discards the current handle, if any, and establishes a fresh one
// from the same pool or credential set.
func (c *Connector) Reconnect(ctx context.Context) error {
	if c.closed {
		return errors.New(errors.ErrorTypeConnection, "connector is closed")
	}

	if c.conn != nil {
		// The stale handle may already be broken; discard regardless.
		_ = c.conn.Close()
		c.conn = nil
	}

	var (
		conn *sql.Conn
		err  error
	)
	if c.p != nil {
		conn, err = c.p.Acquire(ctx)
	} else {
		conn, err = c.db.Conn(ctx)
		if err != nil {
			err = errors.Wrap(err, errors.ErrorTypeConnection, "failed to connect to the database")
		}
	}
	if err != nil {
		return err
	}

	c.conn = conn
	return nil
}

// ensure verifies the handle is live before an operation, transparently
// reconnecting once when it is stale. A failed reconnect surfaces as a
// connection error; there is no further retry.
func (c *Connector) ensure(ctx context.Context) error {
	if c.closed {
		return errors.New(errors.ErrorTypeConnection, "connector is closed")
	}
	if c.conn != nil {
		if err := c.conn.PingContext(ctx); err == nil {
			return nil
		}
		c.Logger().Info("stale connection detected, reconnecting")
		metrics.Reconnects.WithLabelValues(c.Backend()).Inc()
	}
	return c.Reconnect(ctx)
}

// useDatabase switches the active database on the connection handle.
func (c *Connector) useDatabase(ctx context.Context, database string) error {
	if database == "" {
		return nil
	}
	if err := guardIdent(database); err != nil {
		return err
	}
	if _, err := c.conn.ExecContext(ctx, "USE "+quoteIdent(database)); err != nil {
		return errors.Wrap(err, errors.ErrorTypeQuery, "failed to switch database")
	}
	return nil
}

// Select runs a SELECT query and accumulates the full result, fetching in
// pages of opts.ChunkSize rows until a page comes back short.
func (c *Connector) Select(ctx context.Context, query string, opts core.QueryOptions) ([]core.Row, error) {
	var result []core.Row

	err := c.Observe(ctx, "select", func(ctx context.Context) error {
		if err := base.GuardStatement(query, "SELECT"); err != nil {
			return err
		}
		if err := c.ensure(ctx); err != nil {
			return err
		}
		if err := c.useDatabase(ctx, opts.Database); err != nil {
			return err
		}

		chunkSize := opts.ChunkSize
		if chunkSize <= 0 {
			chunkSize = DefaultChunkSize
		}

		rows, err := c.conn.QueryContext(ctx, query)
		if err != nil {
			return errors.Wrap(err, errors.ErrorTypeQuery, "error while fetching data from the database")
		}
		defer rows.Close()

		cols, err := rows.Columns()
		if err != nil {
			return errors.Wrap(err, errors.ErrorTypeQuery, "failed to read result columns")
		}

		for {
			page, err := scanPage(rows, cols, chunkSize)
			if err != nil {
				return err
			}
			result = append(result, page...)
			if len(page) < chunkSize {
				break
			}
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// scanPage reads up to limit rows from the cursor.
func scanPage(rows *sql.Rows, cols []string, limit int) ([]core.Row, error) {
	page := make([]core.Row, 0, min(limit, 1024))

	for len(page) < limit && rows.Next() {
		values := make([]interface{}, len(cols))
		ptrs := make([]interface{}, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}

		if err := rows.Scan(ptrs...); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeQuery, "failed to scan row")
		}

		row := make(core.Row, len(cols))
		for i, col := range cols {
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)
			} else {
				row[col] = values[i]
			}
		}
		page = append(page, row)
	}

	return page, nil
}

// Insert writes a batch of uniform-keyed rows with a single bulk
// INSERT IGNORE statement inside a transaction. The transaction commits only
// when at least one row was affected; otherwise it rolls back and the call
// fails with a no-effect error.
func (c *Connector) Insert(ctx context.Context, rows []core.Row, table string, opts core.QueryOptions) error {
	return c.Observe(ctx, "insert", func(ctx context.Context) error {
		fields, err := base.FieldsOf(rows)
		if err != nil {
			return err
		}
		qualified, err := qualifyTable(opts.Database, table)
		if err != nil {
			return err
		}
		query, err := buildInsert(qualified, fields, len(rows))
		if err != nil {
			return err
		}
		if err := c.ensure(ctx); err != nil {
			return err
		}
		return c.execChecked(ctx, query, flattenArgs(rows, fields), "no data inserted")
	})
}

// Merge upserts a batch of uniform-keyed rows. See core.MergeOptions for
// the two conflict-resolution modes.
func (c *Connector) Merge(ctx context.Context, rows []core.Row, table string, opts core.QueryOptions, merge core.MergeOptions) error {
	return c.Observe(ctx, "merge", func(ctx context.Context) error {
		fields, err := base.FieldsOf(rows)
		if err != nil {
			return err
		}
		qualified, err := qualifyTable(opts.Database, table)
		if err != nil {
			return err
		}
		query, err := buildMerge(qualified, fields, len(rows), merge)
		if err != nil {
			return err
		}
		if err := c.ensure(ctx); err != nil {
			return err
		}
		return c.execChecked(ctx, query, flattenArgs(rows, fields), "no data merged")
	})
}

// Delete runs a DELETE query; commits only when rows were affected.
func (c *Connector) Delete(ctx context.Context, query string, opts core.QueryOptions) error {
	return c.Observe(ctx, "delete", func(ctx context.Context) error {
		if err := base.GuardStatement(query, "DELETE"); err != nil {
			return err
		}
		if err := c.ensure(ctx); err != nil {
			return err
		}
		if err := c.useDatabase(ctx, opts.Database); err != nil {
			return err
		}
		return c.execChecked(ctx, query, nil, "no data deleted")
	})
}

// Truncate empties a table unconditionally.
func (c *Connector) Truncate(ctx context.Context, table string, opts core.QueryOptions) error {
	return c.Observe(ctx, "truncate", func(ctx context.Context) error {
		qualified, err := qualifyTable(opts.Database, table)
		if err != nil {
			return err
		}
		if err := c.ensure(ctx); err != nil {
			return err
		}
		if _, err := c.conn.ExecContext(ctx, "TRUNCATE TABLE "+qualified); err != nil {
			return errors.Wrap(err, errors.ErrorTypeQuery, "error while truncating the table")
		}
		return nil
	})
}

// execChecked runs one write statement in a transaction, committing only
// when it affected at least one row.
func (c *Connector) execChecked(ctx context.Context, query string, args []interface{}, noEffectMsg string) error {
	tx, err := c.conn.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeQuery, "failed to begin transaction")
	}

	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		_ = tx.Rollback()
		return errors.Wrap(err, errors.ErrorTypeQuery, "error while writing data to the database")
	}

	affected, err := res.RowsAffected()
	if err != nil {
		_ = tx.Rollback()
		return errors.Wrap(err, errors.ErrorTypeQuery, "failed to read affected row count")
	}

	if affected == 0 {
		_ = tx.Rollback()
		return errors.New(errors.ErrorTypeNoEffect, noEffectMsg).WithDetail("query", query)
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeQuery, "failed to commit transaction")
	}

	metrics.RowsWritten.WithLabelValues(c.Backend(), "write").Add(float64(affected))
	return nil
}

// Close releases the connection: back to the pool when pooled, closed
// outright otherwise. The connector is unusable afterward.
func (c *Connector) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true

	if c.p != nil {
		c.p.Release(c.conn)
		c.conn = nil
		return nil
	}

	if c.conn != nil {
		if err := c.conn.Close(); err != nil {
			c.Logger().Warn("failed to close connection", zap.Error(err))
		}
		c.conn = nil
	}
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}
