package relational

import (
	"context"

	"github.com/polystore/polystore/pkg/connector/core"
	"github.com/polystore/polystore/pkg/connector/registry"
	"github.com/polystore/polystore/pkg/pool"
)

func init() {
	// Sessions opened through the facade always use the shared pool; the
	// auth handshake is too expensive to pay per short-lived session.
	_ = registry.GetRegistry().Register(pool.BackendRelational,
		func(ctx context.Context, creds pool.Credentials) (core.Connector, error) {
			p, err := pool.GetPool(creds)
			if err != nil {
				return nil, err
			}
			return ConnectPooled(ctx, p)
		})
}
