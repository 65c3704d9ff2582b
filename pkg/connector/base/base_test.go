package base

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polystore/polystore/pkg/errors"
	"github.com/polystore/polystore/pkg/logger"
)

func TestObserveAnnotatesContext(t *testing.T) {
	b := NewBase("relational")

	var seen context.Context
	err := b.Observe(context.Background(), "select", func(ctx context.Context) error {
		seen = ctx
		return nil
	})
	require.NoError(t, err)
	require.NotNil(t, seen)
	assert.Equal(t, "relational", seen.Value(logger.BackendKey))
	assert.Equal(t, "select", seen.Value(logger.OperationKey))
}

func TestObservePassesErrorThrough(t *testing.T) {
	b := NewBase("document")

	want := errors.New(errors.ErrorTypeQuery, "boom")
	err := b.Observe(context.Background(), "find", func(ctx context.Context) error {
		return want
	})
	assert.Equal(t, want, err)
}
