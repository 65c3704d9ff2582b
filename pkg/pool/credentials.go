package pool

import (
	"fmt"

	"github.com/polystore/polystore/pkg/errors"
)

// Backend identifies one of the three storage systems behind the uniform
// connector contract.
type Backend string

const (
	// BackendRelational is the MySQL/MariaDB backend
	BackendRelational Backend = "relational"
	// BackendDocument is the MongoDB backend
	BackendDocument Backend = "mongodb"
	// BackendTable is the Azure Table Storage backend
	BackendTable Backend = "azure"
)

// Credentials is a resolved credential set for one backend session.
// It is immutable once resolved and never persisted by this layer;
// retrieval is the secrets collaborator's responsibility.
type Credentials struct {
	Host     string `json:"host" yaml:"host"`
	User     string `json:"user" yaml:"user"`
	Password string `json:"password" yaml:"password"`
	Port     int    `json:"port" yaml:"port"`
	Database string `json:"database,omitempty" yaml:"database,omitempty"`

	// Azure Table Storage fields
	StorageName string `json:"storage_name,omitempty" yaml:"storage_name,omitempty"`
	AccountKey  string `json:"account_key,omitempty" yaml:"account_key,omitempty"`
}

// Key returns a canonical serialization of the credential set, used as the
// registry key. Field order is fixed so that identical credentials always
// produce identical keys.
func (c Credentials) Key() string {
	return fmt.Sprintf("host=%s|user=%s|password=%s|port=%d|database=%s|storage=%s",
		c.Host, c.User, c.Password, c.Port, c.Database, c.StorageName)
}

// Validate checks that the fields required by the given backend are present.
func (c Credentials) Validate(backend Backend) error {
	var missing []string

	switch backend {
	case BackendRelational, BackendDocument:
		if c.Host == "" {
			missing = append(missing, "host")
		}
		if c.User == "" {
			missing = append(missing, "user")
		}
		if c.Password == "" {
			missing = append(missing, "password")
		}
		if c.Port == 0 {
			missing = append(missing, "port")
		}
	case BackendTable:
		if c.StorageName == "" {
			missing = append(missing, "storage_name")
		}
		if c.AccountKey == "" {
			missing = append(missing, "account_key")
		}
	default:
		return errors.Newf(errors.ErrorTypeConfig, "unknown backend %q", backend)
	}

	if len(missing) > 0 {
		return errors.Newf(errors.ErrorTypeConfig,
			"credential set for %s backend is missing required fields %v", backend, missing)
	}
	return nil
}
