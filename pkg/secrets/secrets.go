// Package secrets resolves credential sets for logical database names.
// Resolution tries one of three sources: an explicit credential file, a
// file named by an environment variable, or a managed Azure Key Vault
// lookup. The rest of the layer only sees the resolved pool.Credentials.
package secrets

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/security/keyvault/azsecrets"
	"github.com/goccy/go-json"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/polystore/polystore/pkg/errors"
	"github.com/polystore/polystore/pkg/logger"
	"github.com/polystore/polystore/pkg/pool"
)

const (
	// EnvVaultName names the Key Vault used for managed lookups
	EnvVaultName = "database_vault_name"
	// envPathPrefix prefixes per-database environment variables that point
	// at a local credential file
	envPathPrefix = "database_"
)

// Options selects the resolution path.
type Options struct {
	// Path reads credentials from an explicit file (YAML or JSON)
	Path string
	// Override reads credentials from the JSON file named by the
	// database_<name> environment variable instead of the vault
	Override bool
}

// Resolve returns the credential set for a logical database name.
func Resolve(ctx context.Context, name string, opts Options) (pool.Credentials, error) {
	log := logger.Get().With(zap.String("component", "secrets"), zap.String("name", name))

	switch {
	case opts.Path != "":
		log.Debug("resolving credentials from file", zap.String("path", opts.Path))
		return fromFile(opts.Path)

	case opts.Override:
		path := os.Getenv(envPathPrefix + name)
		if path == "" {
			return pool.Credentials{}, errors.Newf(errors.ErrorTypeNotFound,
				"secret path not found: environment variable %s%s is not set", envPathPrefix, name)
		}
		log.Debug("resolving credentials from override file", zap.String("path", path))
		return fromJSONFile(path)

	default:
		vault := os.Getenv(EnvVaultName)
		if vault == "" {
			return pool.Credentials{}, errors.Newf(errors.ErrorTypeConfig,
				"key vault name is not set; set it with %q", EnvVaultName)
		}
		log.Debug("resolving credentials from key vault", zap.String("vault", vault))
		return fromVault(ctx, vault, name)
	}
}

func fromFile(path string) (pool.Credentials, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return pool.Credentials{}, errors.Wrap(err, errors.ErrorTypeNotFound, "failed to read credential file")
	}

	var creds pool.Credentials
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		err = json.Unmarshal(data, &creds)
	default:
		err = yaml.Unmarshal(data, &creds)
	}
	if err != nil {
		return pool.Credentials{}, errors.Wrap(err, errors.ErrorTypeConfig, "failed to parse credential file")
	}
	return creds, nil
}

func fromJSONFile(path string) (pool.Credentials, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return pool.Credentials{}, errors.Wrap(err, errors.ErrorTypeNotFound, "failed to read credential file")
	}

	var creds pool.Credentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return pool.Credentials{}, errors.Wrap(err, errors.ErrorTypeConfig, "failed to parse credential file")
	}
	return creds, nil
}

func fromVault(ctx context.Context, vault, name string) (pool.Credentials, error) {
	cred, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return pool.Credentials{}, errors.Wrap(err, errors.ErrorTypeConfig, "failed to build vault credential")
	}

	vaultURL := fmt.Sprintf("https://%s.vault.azure.net/", vault)
	client, err := azsecrets.NewClient(vaultURL, cred, nil)
	if err != nil {
		return pool.Credentials{}, errors.Wrap(err, errors.ErrorTypeConfig, "failed to build vault client")
	}

	resp, err := client.GetSecret(ctx, name, "", nil)
	if err != nil {
		return pool.Credentials{}, errors.Wrap(err, errors.ErrorTypeNotFound,
			fmt.Sprintf("secret %q not found in vault", name))
	}
	if resp.Value == nil {
		return pool.Credentials{}, errors.Newf(errors.ErrorTypeNotFound, "secret %q has no value", name)
	}

	var creds pool.Credentials
	if err := json.Unmarshal([]byte(*resp.Value), &creds); err != nil {
		return pool.Credentials{}, errors.Wrap(err, errors.ErrorTypeConfig, "failed to parse secret value")
	}
	return creds, nil
}
