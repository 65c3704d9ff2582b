package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorMessage(t *testing.T) {
	err := New(ErrorTypeValidation, "query must start with SELECT")
	assert.Equal(t, "validation: query must start with SELECT", err.Error())

	wrapped := Wrap(fmt.Errorf("driver: bad connection"), ErrorTypeConnection, "reconnect failed")
	assert.Equal(t, "connection: reconnect failed: driver: bad connection", wrapped.Error())
}

func TestWrapNil(t *testing.T) {
	assert.Nil(t, Wrap(nil, ErrorTypeQuery, "ignored"))
}

func TestUnwrapChain(t *testing.T) {
	cause := fmt.Errorf("duplicate entry '1' for key 'PRIMARY'")
	err := Wrap(cause, ErrorTypeQuery, "insert rejected")

	require.True(t, stderrors.Is(err, cause))
	assert.True(t, IsType(err, ErrorTypeQuery))
	assert.False(t, IsType(err, ErrorTypeConnection))

	// A second wrap still resolves to the outermost type.
	outer := Wrap(err, ErrorTypeNoEffect, "no data inserted")
	assert.True(t, IsType(outer, ErrorTypeNoEffect))
	assert.True(t, stderrors.Is(outer, cause))
}

func TestIsTypeOnForeignError(t *testing.T) {
	assert.False(t, IsType(fmt.Errorf("plain"), ErrorTypeQuery))
	assert.False(t, IsType(nil, ErrorTypeQuery))
}

func TestWithDetail(t *testing.T) {
	err := New(ErrorTypeNoEffect, "no data deleted").
		WithDetail("table", "signal_log").
		WithDetail("affected", 0)

	assert.Equal(t, "signal_log", err.Details["table"])
	assert.Equal(t, 0, err.Details["affected"])
}

func TestStackCaptured(t *testing.T) {
	err := New(ErrorTypeInternal, "boom")
	require.NotEmpty(t, err.Stack)
	assert.Contains(t, err.Stack[0].Function, "TestStackCaptured")
}
