package secrets

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polystore/polystore/pkg/errors"
)

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestResolveFromYAMLFile(t *testing.T) {
	path := writeTemp(t, "signal.yaml", `
host: db.internal
user: worker
password: secret
port: 3306
database: signal
`)

	creds, err := Resolve(context.Background(), "signal", Options{Path: path})
	require.NoError(t, err)
	assert.Equal(t, "db.internal", creds.Host)
	assert.Equal(t, "worker", creds.User)
	assert.Equal(t, 3306, creds.Port)
	assert.Equal(t, "signal", creds.Database)
}

func TestResolveFromJSONFile(t *testing.T) {
	path := writeTemp(t, "azure.json",
		`{"storage_name": "acct", "account_key": "key=="}`)

	creds, err := Resolve(context.Background(), "azure", Options{Path: path})
	require.NoError(t, err)
	assert.Equal(t, "acct", creds.StorageName)
	assert.Equal(t, "key==", creds.AccountKey)
}

func TestResolveFileMissing(t *testing.T) {
	_, err := Resolve(context.Background(), "signal", Options{Path: "/nonexistent/creds.yaml"})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeNotFound))
}

func TestResolveOverride(t *testing.T) {
	path := writeTemp(t, "record.json",
		`{"host": "db.internal", "user": "worker", "password": "pw", "port": 3306}`)
	t.Setenv("database_record", path)

	creds, err := Resolve(context.Background(), "record", Options{Override: true})
	require.NoError(t, err)
	assert.Equal(t, "db.internal", creds.Host)
	assert.Equal(t, 3306, creds.Port)
}

func TestResolveOverrideMissingEnv(t *testing.T) {
	t.Setenv("database_missing", "")

	_, err := Resolve(context.Background(), "missing", Options{Override: true})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeNotFound))
}

func TestResolveVaultNotConfigured(t *testing.T) {
	t.Setenv(EnvVaultName, "")

	_, err := Resolve(context.Background(), "signal", Options{})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}
