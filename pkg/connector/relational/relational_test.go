package relational

import (
	"context"
	"fmt"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polystore/polystore/pkg/connector/base"
	"github.com/polystore/polystore/pkg/connector/core"
	"github.com/polystore/polystore/pkg/errors"
	"github.com/polystore/polystore/pkg/metrics"
)

// newMockConnector builds a connector over a mock driver with ping
// monitoring on, so every liveness ping must be expected explicitly.
func newMockConnector(t *testing.T) (*Connector, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)

	c := &Connector{
		Base: base.NewBase("relational"),
		db:   db,
	}
	c.conn, err = db.Conn(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	return c, mock
}

func TestInsertCommitsWhenRowsAffected(t *testing.T) {
	c, mock := newMockConnector(t)

	mock.ExpectPing()
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(
		"INSERT IGNORE INTO `signal_log` (`id`, `name`) VALUES (?, ?), (?, ?)")).
		WithArgs(1, "a", 2, "b").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	err := c.Insert(context.Background(), []core.Row{
		{"id": 1, "name": "a"},
		{"id": 2, "name": "b"},
	}, "signal_log", core.QueryOptions{})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertZeroAffectedRollsBack(t *testing.T) {
	c, mock := newMockConnector(t)

	mock.ExpectPing()
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(
		"INSERT IGNORE INTO `signal_log` (`id`) VALUES (?)")).
		WithArgs(1).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := c.Insert(context.Background(), []core.Row{{"id": 1}}, "signal_log", core.QueryOptions{})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeNoEffect))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteZeroAffectedRollsBack(t *testing.T) {
	c, mock := newMockConnector(t)

	mock.ExpectPing()
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM signal_log WHERE id = 99")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := c.Delete(context.Background(), "DELETE FROM signal_log WHERE id = 99", core.QueryOptions{})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeNoEffect))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStalePingReconnectsOnce(t *testing.T) {
	c, mock := newMockConnector(t)

	before := testutil.ToFloat64(metrics.Reconnects.WithLabelValues("relational"))

	// The stale handle fails its ping; a fresh handle from the same pool
	// serves the operation without a second ping.
	mock.ExpectPing().WillReturnError(fmt.Errorf("driver: bad connection"))
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM signal_log WHERE id = 1")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := c.Delete(context.Background(), "DELETE FROM signal_log WHERE id = 1", core.QueryOptions{})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())

	after := testutil.ToFloat64(metrics.Reconnects.WithLabelValues("relational"))
	assert.Equal(t, before+1, after)
}

func TestSelectScansAndPages(t *testing.T) {
	c, mock := newMockConnector(t)

	mock.ExpectPing()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, name FROM signal_log")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).
			AddRow(int64(1), []byte("alpha")).
			AddRow(int64(2), []byte("beta")))

	rows, err := c.Select(context.Background(), "SELECT id, name FROM signal_log", core.QueryOptions{})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, int64(1), rows[0]["id"])
	assert.Equal(t, "alpha", rows[0]["name"]) // byte columns come back as strings
	assert.Equal(t, "beta", rows[1]["name"])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSelectSwitchesDatabase(t *testing.T) {
	c, mock := newMockConnector(t)

	mock.ExpectPing()
	mock.ExpectExec(regexp.QuoteMeta("USE `signal`")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1")).
		WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(int64(1)))

	_, err := c.Select(context.Background(), "SELECT 1", core.QueryOptions{Database: "signal"})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOperationsAfterClose(t *testing.T) {
	c, mock := newMockConnector(t)
	mock.ExpectClose()

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())

	_, err := c.Select(context.Background(), "SELECT 1", core.QueryOptions{})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConnection))
}
