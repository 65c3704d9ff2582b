// Package config provides runtime configuration loading
package config

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/polystore/polystore/pkg/errors"
	"github.com/polystore/polystore/pkg/logger"
	"github.com/polystore/polystore/pkg/pool"
	"github.com/polystore/polystore/pkg/secrets"
)

// Config is the runtime configuration for the data-access layer.
type Config struct {
	Environment string        `yaml:"environment"`
	Logging     logger.Config `yaml:"logging"`
	Pool        pool.Config   `yaml:"pool"`
	Secrets     SecretsConfig `yaml:"secrets"`
}

// SecretsConfig controls credential resolution for sessions.
type SecretsConfig struct {
	// VaultName overrides the database_vault_name environment variable
	VaultName string `yaml:"vault_name"`
	// Override resolves credentials from local files named by
	// database_<name> environment variables instead of the vault
	Override bool `yaml:"override"`
}

// Default returns the configuration used when no file is supplied.
func Default() Config {
	return Config{
		Environment: "production",
		Logging: logger.Config{
			Level:    "info",
			Encoding: "json",
		},
		Pool: pool.DefaultConfig(),
	}
}

// Load reads a YAML configuration file, substituting ${VAR} references
// with environment variable values before parsing.
func Load(filePath string, config interface{}) error {
	data, err := os.ReadFile(filePath) //nolint:gosec // G304: path is caller-controlled
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "failed to read config file")
	}

	content := substituteEnvVars(string(data))

	if err := yaml.Unmarshal([]byte(content), config); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "failed to parse YAML")
	}

	return nil
}

// LoadFile reads a runtime Config, applying defaults for absent fields.
// The pool sizing it carries becomes the sizing of every pool the default
// registry constructs afterward.
func LoadFile(filePath string) (Config, error) {
	cfg := Default()
	if err := Load(filePath, &cfg); err != nil {
		return Config{}, err
	}
	if cfg.Secrets.VaultName != "" {
		if err := os.Setenv(secrets.EnvVaultName, cfg.Secrets.VaultName); err != nil {
			return Config{}, errors.Wrap(err, errors.ErrorTypeConfig, "failed to set vault name")
		}
	}
	pool.SetDefaultConfig(cfg.Pool)
	return cfg, nil
}

// Save writes a configuration to a YAML file.
func Save(filePath string, config interface{}) error {
	data, err := yaml.Marshal(config)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "failed to marshal YAML")
	}

	if err := os.WriteFile(filePath, data, 0o644); err != nil { //nolint:gosec
		return errors.Wrap(err, errors.ErrorTypeConfig, "failed to write config file")
	}

	return nil
}

// LoadEnv loads .env files into the process environment. Missing files
// are ignored so a bare environment still works.
func LoadEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, path := range paths {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			return errors.Wrap(err, errors.ErrorTypeConfig, "failed to load env file")
		}
	}
	return nil
}

// substituteEnvVars replaces ${VAR_NAME} with environment variable values
func substituteEnvVars(content string) string {
	for {
		start := strings.Index(content, "${")
		if start == -1 {
			break
		}
		end := strings.Index(content[start:], "}")
		if end == -1 {
			break
		}
		end += start

		varName := content[start+2 : end]
		envValue := os.Getenv(varName)
		content = content[:start] + envValue + content[end+1:]
	}
	return content
}
