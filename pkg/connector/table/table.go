// Package table implements the Azure Table Storage backend connector.
// Unlike the relational and document variants it is safe for concurrent
// use: every operation scopes a fresh table client to its own lifetime, so
// no connection state crosses between in-flight calls.
package table

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
	"github.com/goccy/go-json"

	"github.com/polystore/polystore/pkg/connector/base"
	"github.com/polystore/polystore/pkg/connector/core"
	"github.com/polystore/polystore/pkg/errors"
	"github.com/polystore/polystore/pkg/metrics"
	"github.com/polystore/polystore/pkg/pool"
)

// Connector holds the storage account service client from which per-call
// table clients are derived.
type Connector struct {
	base.Base

	creds  pool.Credentials
	svc    *aztables.ServiceClient
	closed bool
}

var _ core.Table = (*Connector)(nil)

// Connect builds the service client from the storage account credentials.
func Connect(creds pool.Credentials) (*Connector, error) {
	if err := creds.Validate(pool.BackendTable); err != nil {
		return nil, err
	}

	c := &Connector{
		Base:  base.NewBase(string(pool.BackendTable)),
		creds: creds,
	}
	if err := c.Reconnect(context.Background()); err != nil {
		return nil, err
	}
	return c, nil
}

// Reconnect rebuilds the service client from the same credentials.
func (c *Connector) Reconnect(_ context.Context) error {
	if c.closed {
		return errors.New(errors.ErrorTypeConnection, "connector is closed")
	}

	cred, err := aztables.NewSharedKeyCredential(c.creds.StorageName, c.creds.AccountKey)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeConnection, "invalid storage account credentials")
	}

	serviceURL := fmt.Sprintf("https://%s.table.core.windows.net/", c.creds.StorageName)
	svc, err := aztables.NewServiceClientWithSharedKey(serviceURL, cred, nil)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeConnection, "error connecting to the table service")
	}

	c.svc = svc
	return nil
}

// classify maps a service response error onto the error taxonomy by its
// HTTP status code.
func classify(err error, message string) error {
	var respErr *azcore.ResponseError
	if stderrors.As(err, &respErr) {
		switch respErr.StatusCode {
		case http.StatusNotFound:
			return errors.Wrap(err, errors.ErrorTypeNotFound, message)
		case http.StatusConflict:
			return errors.Wrap(err, errors.ErrorTypeData, message)
		case http.StatusUnauthorized, http.StatusForbidden:
			return errors.Wrap(err, errors.ErrorTypeConnection, message)
		}
	}
	return errors.Wrap(err, errors.ErrorTypeQuery, message)
}

// client scopes a fresh table client to one operation.
func (c *Connector) client(table string) (*aztables.Client, error) {
	if c.closed {
		return nil, errors.New(errors.ErrorTypeConnection, "connector is closed")
	}
	if table == "" {
		return nil, errors.New(errors.ErrorTypeValidation, "table name is required")
	}
	return c.svc.NewClient(table), nil
}

// CreateTable creates a table within the storage account.
func (c *Connector) CreateTable(ctx context.Context, table string) error {
	return c.Observe(ctx, "create_table", func(ctx context.Context) error {
		client, err := c.client(table)
		if err != nil {
			return err
		}
		if _, err := client.CreateTable(ctx, nil); err != nil {
			return classify(err, "error while creating table")
		}
		return nil
	})
}

// DeleteTable removes a table within the storage account.
func (c *Connector) DeleteTable(ctx context.Context, table string) error {
	return c.Observe(ctx, "delete_table", func(ctx context.Context) error {
		client, err := c.client(table)
		if err != nil {
			return err
		}
		if _, err := client.Delete(ctx, nil); err != nil {
			return classify(err, "error while deleting table")
		}
		return nil
	})
}

// InsertEntity upserts entities in merge mode. A single entity is a direct
// upsert; a larger batch is submitted as one atomic transaction, so partial
// failure surfaces as a single transaction error with nothing applied.
func (c *Connector) InsertEntity(ctx context.Context, entities []core.Entity, table string) error {
	return c.Observe(ctx, "insert_entity", func(ctx context.Context) error {
		if len(entities) == 0 {
			return errors.New(errors.ErrorTypeValidation, "no entities to insert")
		}
		client, err := c.client(table)
		if err != nil {
			return err
		}

		if len(entities) == 1 {
			if _, _, err := entityKeys(entities[0]); err != nil {
				return err
			}
			payload, err := json.Marshal(entities[0])
			if err != nil {
				return errors.Wrap(err, errors.ErrorTypeData, "failed to encode entity")
			}

			mode := aztables.UpdateModeMerge
			if _, err := client.UpsertEntity(ctx, payload, &aztables.UpsertEntityOptions{UpdateMode: mode}); err != nil {
				return classify(err, "error while upserting entity")
			}
		} else {
			actions, err := formatBatchActions(entities, aztables.TransactionTypeInsertMerge)
			if err != nil {
				return err
			}
			if _, err := client.SubmitTransaction(ctx, actions, nil); err != nil {
				return classify(err, "entity transaction failed")
			}
		}

		metrics.RowsWritten.WithLabelValues(c.Backend(), "insert_entity").Add(float64(len(entities)))
		return nil
	})
}

// DeleteEntity deletes entities; batches of more than one run as a single
// atomic transaction.
func (c *Connector) DeleteEntity(ctx context.Context, entities []core.Entity, table string) error {
	return c.Observe(ctx, "delete_entity", func(ctx context.Context) error {
		if len(entities) == 0 {
			return errors.New(errors.ErrorTypeValidation, "no entities to delete")
		}
		client, err := c.client(table)
		if err != nil {
			return err
		}

		if len(entities) == 1 {
			partition, row, err := entityKeys(entities[0])
			if err != nil {
				return err
			}
			if _, err := client.DeleteEntity(ctx, partition, row, nil); err != nil {
				return classify(err, "error while deleting entity")
			}
			return nil
		}

		actions, err := formatBatchActions(entities, aztables.TransactionTypeDelete)
		if err != nil {
			return err
		}
		if _, err := client.SubmitTransaction(ctx, actions, nil); err != nil {
			return classify(err, "entity transaction failed")
		}
		return nil
	})
}

// QueryEntity returns matching entities. All four arguments are required:
// the fields to select, the filter parameters, the filter expression, and
// the table name.
func (c *Connector) QueryEntity(ctx context.Context, selectFields []string, parameters map[string]interface{}, nameFilter, table string) ([]core.Entity, error) {
	var result []core.Entity

	err := c.Observe(ctx, "query_entity", func(ctx context.Context) error {
		switch {
		case len(selectFields) == 0:
			return errors.New(errors.ErrorTypeValidation, "select fields are required")
		case len(parameters) == 0:
			return errors.New(errors.ErrorTypeValidation, "filter parameters are required")
		case nameFilter == "":
			return errors.New(errors.ErrorTypeValidation, "filter expression is required")
		}
		client, err := c.client(table)
		if err != nil {
			return err
		}

		filter := substituteParameters(nameFilter, parameters)
		sel := strings.Join(selectFields, ",")

		pager := client.NewListEntitiesPager(&aztables.ListEntitiesOptions{
			Filter: &filter,
			Select: &sel,
		})
		for pager.More() {
			resp, err := pager.NextPage(ctx)
			if err != nil {
				return classify(err, "error while querying entities")
			}
			for _, raw := range resp.Entities {
				var entity core.Entity
				if err := json.Unmarshal(raw, &entity); err != nil {
					return errors.Wrap(err, errors.ErrorTypeData, "failed to decode entity")
				}
				result = append(result, entity)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Close marks the connector unusable. Per-call clients hold no persistent
// connection of their own.
func (c *Connector) Close() error {
	c.closed = true
	c.svc = nil
	return nil
}
