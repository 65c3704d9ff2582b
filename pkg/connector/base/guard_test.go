package base

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polystore/polystore/pkg/connector/core"
	"github.com/polystore/polystore/pkg/errors"
)

func TestGuardStatement(t *testing.T) {
	cases := []struct {
		name    string
		query   string
		verb    string
		wantErr bool
	}{
		{"valid select", "SELECT * FROM signal_log", "SELECT", false},
		{"lowercase verb", "select id from t", "SELECT", false},
		{"leading whitespace", "  SELECT 1", "SELECT", false},
		{"wrong verb", "DELETE FROM t", "SELECT", true},
		{"empty", "", "SELECT", true},
		{"comment marker", "SELECT * FROM t -- WHERE id = 1", "SELECT", true},
		{"comment marker mid-token", "SELECT a--b FROM t", "SELECT", true},
		{"valid delete", "DELETE FROM t WHERE id = 1", "DELETE", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := GuardStatement(tc.query, tc.verb)
			if tc.wantErr {
				require.Error(t, err)
				assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestFieldsOf(t *testing.T) {
	rows := []core.Row{
		{"id": 1, "name": "a"},
		{"name": "b", "id": 2},
	}

	fields, err := FieldsOf(rows)
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "name"}, fields)
}

func TestFieldsOfEmpty(t *testing.T) {
	_, err := FieldsOf(nil)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
}

func TestFieldsOfMismatch(t *testing.T) {
	_, err := FieldsOf([]core.Row{
		{"id": 1, "name": "a"},
		{"id": 2, "label": "b"},
	})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))

	_, err = FieldsOf([]core.Row{
		{"id": 1, "name": "a"},
		{"id": 2},
	})
	require.Error(t, err)
}

func TestObservePropagatesError(t *testing.T) {
	b := NewBase("relational")

	sentinel := fmt.Errorf("boom")
	err := b.Observe(context.Background(), "select", func(context.Context) error {
		return sentinel
	})
	assert.Equal(t, sentinel, err)

	assert.NoError(t, b.Observe(context.Background(), "select", func(context.Context) error {
		return nil
	}))
}
