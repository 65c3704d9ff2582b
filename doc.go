// Package polystore provides a unified data-access layer over MySQL/MariaDB,
// MongoDB and Azure Table Storage.
//
// A logical database name selects the backend and its credentials: relational
// names are served from a pooled MySQL/MariaDB connection, document names from
// MongoDB, and wide-column names from Azure Table Storage. Credentials resolve
// from Azure Key Vault by default, with local-file overrides for development.
//
// # Quick Start
//
// Open a scoped session by logical name and release it deterministically:
//
//	import (
//	    "context"
//	    "github.com/polystore/polystore/pkg/session"
//
//	    _ "github.com/polystore/polystore/pkg/connector/relational"
//	)
//
//	err := session.With(ctx, "signal", func(s *session.Session) error {
//	    rows, err := s.Select(ctx, session.Args{Query: "SELECT * FROM signal"})
//	    if err != nil {
//	        return err
//	    }
//	    // use rows
//	    return nil
//	})
//
// # Key Packages
//
//	pkg/session      - Dispatch facade mapping logical names to backends
//	pkg/connector    - Backend connectors and their shared contracts
//	pkg/pool         - Relational connection pooling keyed by credentials
//	pkg/secrets      - Credential resolution (Key Vault, env, files)
//	pkg/chunk        - Chunked codec for values above backend size limits
//	pkg/compression  - Compression for chunked payloads
//	pkg/errors       - Structured error handling
//	pkg/logger       - Structured logging
//	pkg/metrics      - Operation and pool metrics
//
// # Large Values
//
// Values exceeding a backend's item size limit are split into ordered chunks
// by pkg/chunk and reassembled on read. MongoDB documents carry 300,000-byte
// chunks; Azure Table entities carry 60,000-byte chunks.
//
// # Configuration
//
// Runtime configuration is a YAML file with ${VAR_NAME} environment
// substitution; see pkg/config. Credentials are never stored in it.
package polystore
