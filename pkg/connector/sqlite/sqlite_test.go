package sqlite

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polystore/polystore/pkg/connector/base"
	"github.com/polystore/polystore/pkg/connector/core"
	"github.com/polystore/polystore/pkg/errors"
)

func newMockConnector(t *testing.T) (*Connector, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	c := &Connector{
		Base: base.NewBase(backendName),
		path: ":memory:",
		db:   db,
	}
	t.Cleanup(func() { _ = c.Close() })
	return c, mock
}

func TestCreateTable(t *testing.T) {
	c, mock := newMockConnector(t)

	mock.ExpectExec(regexp.QuoteMeta(
		`CREATE TABLE IF NOT EXISTS "staging" ("id" INTEGER PRIMARY KEY, "name" TEXT)`)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := c.CreateTable(context.Background(), "staging", map[string]string{
		"id":   "INTEGER PRIMARY KEY",
		"name": "TEXT",
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertSkipsDuplicates(t *testing.T) {
	c, mock := newMockConnector(t)

	mock.ExpectExec(regexp.QuoteMeta(
		`INSERT OR IGNORE INTO "staging" ("id", "name") VALUES (?, ?), (?, ?)`)).
		WithArgs(1, "a", 2, "b").
		WillReturnResult(sqlmock.NewResult(2, 2))

	err := c.Insert(context.Background(), []core.Row{
		{"id": 1, "name": "a"},
		{"id": 2, "name": "b"},
	}, "staging")
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMergeReplacesDuplicates(t *testing.T) {
	c, mock := newMockConnector(t)

	mock.ExpectExec(regexp.QuoteMeta(
		`INSERT OR REPLACE INTO "staging" ("id") VALUES (?)`)).
		WithArgs(7).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := c.Merge(context.Background(), []core.Row{{"id": 7}}, "staging")
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertEmptyBatch(t *testing.T) {
	c, _ := newMockConnector(t)

	err := c.Insert(context.Background(), nil, "staging")
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
}

func TestSelectScansRows(t *testing.T) {
	c, mock := newMockConnector(t)

	mock.ExpectQuery(regexp.QuoteMeta(
		`SELECT "id", "name" FROM "staging" WHERE "name" = ?`)).
		WithArgs("a").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).
			AddRow(int64(1), []byte("a")))

	rows, err := c.Select(context.Background(), "staging",
		[]string{"id", "name"}, core.Filter{"name": "a"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(1), rows[0]["id"])
	assert.Equal(t, "a", rows[0]["name"]) // byte columns come back as strings
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOperationsAfterClose(t *testing.T) {
	c, mock := newMockConnector(t)
	mock.ExpectClose()

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())

	err := c.Insert(context.Background(), []core.Row{{"id": 1}}, "staging")
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConnection))

	err = c.Reconnect(context.Background())
	assert.True(t, errors.IsType(err, errors.ErrorTypeConnection))
}

func TestConnectRequiresPath(t *testing.T) {
	_, err := Connect(context.Background(), "")
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}
