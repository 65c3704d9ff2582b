// Package sqlite implements the embedded relational connector backed by a
// local SQLite database file. It serves scratch and staging workloads that
// need relational semantics without a provisioned server: table creation
// from a column specification, duplicate-skipping bulk insert,
// replace-on-conflict merge, and conditional select.
package sqlite

import (
	"context"
	"database/sql"

	_ "github.com/mattn/go-sqlite3"

	"github.com/polystore/polystore/pkg/connector/base"
	"github.com/polystore/polystore/pkg/connector/core"
	"github.com/polystore/polystore/pkg/errors"
	"github.com/polystore/polystore/pkg/metrics"
)

const backendName = "sqlite"

// Connector is one open database file. Like the server-backed relational
// connector it is not safe for concurrent use.
type Connector struct {
	base.Base

	path   string
	db     *sql.DB
	closed bool
}

var _ core.Connector = (*Connector)(nil)

// Connect opens the database file, creating it when absent. The path
// ":memory:" yields a private in-memory database.
func Connect(ctx context.Context, path string) (*Connector, error) {
	if path == "" {
		return nil, errors.New(errors.ErrorTypeConfig, "database path is required")
	}

	c := &Connector{
		Base: base.NewBase(backendName),
		path: path,
	}
	if err := c.Reconnect(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

// Reconnect reopens the database file.
func (c *Connector) Reconnect(ctx context.Context) error {
	if c.closed {
		return errors.New(errors.ErrorTypeConnection, "connector is closed")
	}

	if c.db != nil {
		_ = c.db.Close()
		c.db = nil
	}

	db, err := sql.Open("sqlite3", c.path)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeConnection, "failed to open database file")
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return errors.Wrap(err, errors.ErrorTypeConnection, "failed to open database file")
	}

	c.db = db
	return nil
}

func (c *Connector) ensure() error {
	if c.closed || c.db == nil {
		return errors.New(errors.ErrorTypeConnection, "connector is closed")
	}
	return nil
}

// CreateTable creates the table when it does not already exist, with the
// given column name to type mapping.
func (c *Connector) CreateTable(ctx context.Context, table string, columns map[string]string) error {
	return c.Observe(ctx, "create_table", func(ctx context.Context) error {
		query, err := buildCreateTable(table, columns)
		if err != nil {
			return err
		}
		if err := c.ensure(); err != nil {
			return err
		}
		if _, err := c.db.ExecContext(ctx, query); err != nil {
			return errors.Wrap(err, errors.ErrorTypeQuery, "error while creating table")
		}
		return nil
	})
}

// Insert writes a batch of uniform-keyed rows, silently skipping rows whose
// key already exists.
func (c *Connector) Insert(ctx context.Context, rows []core.Row, table string) error {
	return c.write(ctx, "insert", upsertIgnore, rows, table)
}

// Merge writes a batch of uniform-keyed rows, replacing rows whose key
// already exists.
func (c *Connector) Merge(ctx context.Context, rows []core.Row, table string) error {
	return c.write(ctx, "merge", upsertReplace, rows, table)
}

func (c *Connector) write(ctx context.Context, op string, verb upsertVerb, rows []core.Row, table string) error {
	return c.Observe(ctx, op, func(ctx context.Context) error {
		fields, err := base.FieldsOf(rows)
		if err != nil {
			return err
		}
		query, err := buildUpsert(verb, table, fields, len(rows))
		if err != nil {
			return err
		}
		if err := c.ensure(); err != nil {
			return err
		}

		res, err := c.db.ExecContext(ctx, query, flattenArgs(rows, fields)...)
		if err != nil {
			return errors.Wrap(err, errors.ErrorTypeQuery, "error while writing data to the database")
		}
		if affected, err := res.RowsAffected(); err == nil {
			metrics.RowsWritten.WithLabelValues(c.Backend(), op).Add(float64(affected))
		}
		return nil
	})
}

// Select returns the named columns of every row matching all of the equality
// conditions.
func (c *Connector) Select(ctx context.Context, table string, columns []string, conditions core.Filter) ([]core.Row, error) {
	var result []core.Row

	err := c.Observe(ctx, "select", func(ctx context.Context) error {
		query, args, err := buildSelect(table, columns, conditions)
		if err != nil {
			return err
		}
		if err := c.ensure(); err != nil {
			return err
		}

		rows, err := c.db.QueryContext(ctx, query, args...)
		if err != nil {
			return errors.Wrap(err, errors.ErrorTypeQuery, "error while fetching data from the database")
		}
		defer rows.Close()

		for rows.Next() {
			values := make([]interface{}, len(columns))
			ptrs := make([]interface{}, len(columns))
			for i := range values {
				ptrs[i] = &values[i]
			}
			if err := rows.Scan(ptrs...); err != nil {
				return errors.Wrap(err, errors.ErrorTypeQuery, "failed to scan row")
			}

			row := make(core.Row, len(columns))
			for i, col := range columns {
				if b, ok := values[i].([]byte); ok {
					row[col] = string(b)
				} else {
					row[col] = values[i]
				}
			}
			result = append(result, row)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Close closes the database file. The connector is unusable afterward.
func (c *Connector) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true

	if c.db != nil {
		err := c.db.Close()
		c.db = nil
		if err != nil {
			return errors.Wrap(err, errors.ErrorTypeConnection, "failed to close database file")
		}
	}
	return nil
}
