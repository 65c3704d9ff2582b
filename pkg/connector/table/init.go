package table

import (
	"context"

	"github.com/polystore/polystore/pkg/connector/core"
	"github.com/polystore/polystore/pkg/connector/registry"
	"github.com/polystore/polystore/pkg/pool"
)

func init() {
	_ = registry.GetRegistry().Register(pool.BackendTable,
		func(_ context.Context, creds pool.Credentials) (core.Connector, error) {
			return Connect(creds)
		})
}
