// Package document implements the MongoDB backend connector. It mirrors the
// relational contract against a document store: find over a verified
// database/collection pair, bulk insert with duplicate-key merge recovery,
// and a safety-gated delete.
package document

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/polystore/polystore/pkg/connector/base"
	"github.com/polystore/polystore/pkg/connector/core"
	"github.com/polystore/polystore/pkg/errors"
	"github.com/polystore/polystore/pkg/metrics"
	"github.com/polystore/polystore/pkg/pool"
)

// DefaultDatabase is the database used when a call does not name one.
const DefaultDatabase = "ift_sequence"

const closeTimeout = 10 * time.Second

// Connector is one live MongoDB session.
type Connector struct {
	base.Base

	creds  pool.Credentials
	client *mongo.Client
	closed bool
}

var _ core.Document = (*Connector)(nil)

// Connect builds a client from the credential set and verifies liveness.
func Connect(ctx context.Context, creds pool.Credentials) (*Connector, error) {
	if err := creds.Validate(pool.BackendDocument); err != nil {
		return nil, err
	}

	c := &Connector{
		Base:  base.NewBase(string(pool.BackendDocument)),
		creds: creds,
	}
	if err := c.Reconnect(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

// Reconnect replaces the client with a freshly connected one built from the
// same credential set.
func (c *Connector) Reconnect(ctx context.Context) error {
	if c.closed {
		return errors.New(errors.ErrorTypeConnection, "connector is closed")
	}

	if c.client != nil {
		_ = c.client.Disconnect(ctx)
		c.client = nil
	}

	opts := options.Client().
		SetHosts([]string{fmt.Sprintf("%s:%d", c.creds.Host, c.creds.Port)}).
		SetAuth(options.Credential{
			Username: c.creds.User,
			Password: c.creds.Password,
		})

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeConnection, "error connecting to the database")
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return errors.Wrap(err, errors.ErrorTypeConnection, "error connecting to the database")
	}

	c.client = client
	return nil
}

// ping probes the connection and transparently reconnects once when the
// probe fails.
func (c *Connector) ping(ctx context.Context) error {
	if c.closed {
		return errors.New(errors.ErrorTypeConnection, "connector is closed")
	}
	if err := c.client.Ping(ctx, nil); err != nil {
		c.Logger().Info("stale connection detected, reconnecting")
		metrics.Reconnects.WithLabelValues(c.Backend()).Inc()
		return c.Reconnect(ctx)
	}
	return nil
}

// collection verifies the database and collection exist and returns the
// collection handle.
func (c *Connector) collection(ctx context.Context, collection, database string) (*mongo.Collection, error) {
	if database == "" {
		database = DefaultDatabase
	}

	names, err := c.client.ListDatabaseNames(ctx, bson.D{{Key: "name", Value: database}})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeQuery, "failed to list databases")
	}
	if len(names) == 0 {
		return nil, errors.Newf(errors.ErrorTypeNotFound, "database %q does not exist", database)
	}

	db := c.client.Database(database)
	colls, err := db.ListCollectionNames(ctx, bson.D{{Key: "name", Value: collection}})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeQuery, "failed to list collections")
	}
	if len(colls) == 0 {
		return nil, errors.Newf(errors.ErrorTypeNotFound, "collection %q does not exist", collection)
	}

	return db.Collection(collection), nil
}

// Find returns all documents matching the filter.
func (c *Connector) Find(ctx context.Context, filter core.Filter, collection, database string) ([]core.Row, error) {
	var result []core.Row

	err := c.Observe(ctx, "find", func(ctx context.Context) error {
		if len(filter) == 0 {
			return errors.New(errors.ErrorTypeValidation, "query filter is required")
		}
		if collection == "" {
			return errors.New(errors.ErrorTypeValidation, "collection name is required")
		}
		if err := c.ping(ctx); err != nil {
			return err
		}

		coll, err := c.collection(ctx, collection, database)
		if err != nil {
			return err
		}

		cursor, err := coll.Find(ctx, bson.M(filter))
		if err != nil {
			return errors.Wrap(err, errors.ErrorTypeQuery, "error while fetching data from the database")
		}

		var docs []bson.M
		if err := cursor.All(ctx, &docs); err != nil {
			return errors.Wrap(err, errors.ErrorTypeQuery, "failed to decode documents")
		}

		result = make([]core.Row, len(docs))
		for i, doc := range docs {
			result[i] = core.Row(doc)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Insert writes a batch of documents. On a duplicate-key bulk failure with
// mergeMode set, the batch is partitioned into replacements for existing ids
// and inserts for new ones, executed as a single mixed bulk write. Without
// mergeMode the duplicate failure is fatal.
func (c *Connector) Insert(ctx context.Context, rows []core.Row, collection, database string, mergeMode bool) error {
	return c.Observe(ctx, "insert", func(ctx context.Context) error {
		if len(rows) == 0 {
			return errors.New(errors.ErrorTypeValidation, "input data is empty")
		}
		if collection == "" {
			return errors.New(errors.ErrorTypeValidation, "collection name is required")
		}
		if err := c.ping(ctx); err != nil {
			return err
		}

		coll, err := c.collection(ctx, collection, database)
		if err != nil {
			return err
		}

		docs := make([]interface{}, len(rows))
		for i, row := range rows {
			docs[i] = bson.M(row)
		}

		_, err = coll.InsertMany(ctx, docs)
		if err == nil {
			metrics.RowsWritten.WithLabelValues(c.Backend(), "insert").Add(float64(len(rows)))
			return nil
		}
		if !mongo.IsDuplicateKeyError(err) {
			return errors.Wrap(err, errors.ErrorTypeQuery, "error while inserting data into the database")
		}
		if !mergeMode {
			return errors.Wrap(err, errors.ErrorTypeQuery,
				"duplicate record found and merge mode is not enabled")
		}

		return c.mergeWrite(ctx, coll, rows)
	})
}

// mergeWrite recovers from a duplicate-key failure by finding which ids
// already exist and issuing one mixed replace/insert bulk write.
func (c *Connector) mergeWrite(ctx context.Context, coll *mongo.Collection, rows []core.Row) error {
	ids, err := idsOf(rows)
	if err != nil {
		return err
	}

	cursor, err := coll.Find(ctx,
		bson.M{"_id": bson.M{"$in": ids}},
		options.Find().SetProjection(bson.M{"_id": 1}))
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeQuery, "failed to query existing documents")
	}

	var found []bson.M
	if err := cursor.All(ctx, &found); err != nil {
		return errors.Wrap(err, errors.ErrorTypeQuery, "failed to decode existing documents")
	}

	existing := make(map[interface{}]bool, len(found))
	for _, doc := range found {
		existing[doc["_id"]] = true
	}

	c.Logger().Debug("merging batch with existing documents",
		zap.Int("batch", len(rows)),
		zap.Int("existing", len(existing)))

	if _, err := coll.BulkWrite(ctx, planBulkWrite(rows, existing)); err != nil {
		return errors.Wrap(err, errors.ErrorTypeQuery, "error while merging data into the database")
	}

	metrics.RowsWritten.WithLabelValues(c.Backend(), "merge").Add(float64(len(rows)))
	return nil
}

// Delete removes all documents matching the filter, but only when override
// is set. Without it the call is a deliberate no-op guarding against
// accidental mass deletion.
func (c *Connector) Delete(ctx context.Context, filter core.Filter, collection, database string, override bool) error {
	return c.Observe(ctx, "delete", func(ctx context.Context) error {
		if len(filter) == 0 {
			return errors.New(errors.ErrorTypeValidation, "query filter is required")
		}
		if collection == "" {
			return errors.New(errors.ErrorTypeValidation, "collection name is required")
		}
		if err := c.ping(ctx); err != nil {
			return err
		}

		coll, err := c.collection(ctx, collection, database)
		if err != nil {
			return err
		}

		if !override {
			c.Logger().Warn("delete called without override; not deleting",
				zap.String("collection", collection))
			return nil
		}

		if _, err := coll.DeleteMany(ctx, bson.M(filter)); err != nil {
			return errors.Wrap(err, errors.ErrorTypeQuery, "error while deleting data from the database")
		}
		return nil
	})
}

// Close disconnects the client. The connector is unusable afterward.
func (c *Connector) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true

	if c.client != nil {
		ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
		defer cancel()
		if err := c.client.Disconnect(ctx); err != nil {
			return errors.Wrap(err, errors.ErrorTypeConnection, "failed to close connection")
		}
		c.client = nil
	}
	return nil
}
