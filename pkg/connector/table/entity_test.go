package table

import (
	"testing"

	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polystore/polystore/pkg/connector/core"
	"github.com/polystore/polystore/pkg/errors"
)

func TestEntityKeys(t *testing.T) {
	partition, row, err := entityKeys(core.Entity{
		"PartitionKey": "NC_000001",
		"RowKey":       "0",
		"sequence":     "ACGT",
	})
	require.NoError(t, err)
	assert.Equal(t, "NC_000001", partition)
	assert.Equal(t, "0", row)
}

func TestEntityKeysMissing(t *testing.T) {
	_, _, err := entityKeys(core.Entity{"RowKey": "0"})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))

	_, _, err = entityKeys(core.Entity{"PartitionKey": "p"})
	require.Error(t, err)

	// Non-string keys are rejected too.
	_, _, err = entityKeys(core.Entity{"PartitionKey": 1, "RowKey": "0"})
	require.Error(t, err)
}

func TestFormatBatchActions(t *testing.T) {
	entities := []core.Entity{
		{"PartitionKey": "p", "RowKey": "0", "v": 1},
		{"PartitionKey": "p", "RowKey": "1", "v": 2},
	}

	actions, err := formatBatchActions(entities, aztables.TransactionTypeInsertMerge)
	require.NoError(t, err)
	require.Len(t, actions, 2)

	for i, action := range actions {
		assert.Equal(t, aztables.TransactionTypeInsertMerge, action.ActionType)

		var decoded map[string]interface{}
		require.NoError(t, json.Unmarshal(action.Entity, &decoded))
		assert.Equal(t, entities[i]["RowKey"], decoded["RowKey"])
	}
}

func TestFormatBatchActionsMalformedEntityFailsWhole(t *testing.T) {
	entities := []core.Entity{
		{"PartitionKey": "p", "RowKey": "0"},
		{"PartitionKey": "p", "RowKey": "1"},
		{"RowKey": "2"}, // no partition key
		{"PartitionKey": "p", "RowKey": "3"},
		{"PartitionKey": "p", "RowKey": "4"},
	}

	// One malformed entity fails the whole batch before submission: nothing
	// is sent, nothing is applied.
	actions, err := formatBatchActions(entities, aztables.TransactionTypeInsertMerge)
	require.Error(t, err)
	assert.Nil(t, actions)
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
}

func TestSubstituteParameters(t *testing.T) {
	filter := substituteParameters(
		"PartitionKey eq @accession and ChunkNumber ge @n",
		map[string]interface{}{"accession": "NC_000001.11", "n": 2},
	)
	assert.Equal(t, "PartitionKey eq 'NC_000001.11' and ChunkNumber ge 2", filter)
}

func TestSubstituteParametersQuoting(t *testing.T) {
	filter := substituteParameters(
		"Name eq @name",
		map[string]interface{}{"name": "o'brien"},
	)
	assert.Equal(t, "Name eq 'o''brien'", filter)
}

func TestSubstituteParametersPrefixNames(t *testing.T) {
	filter := substituteParameters(
		"A eq @seq and B eq @seq10",
		map[string]interface{}{"seq": "x", "seq10": "y"},
	)
	assert.Equal(t, "A eq 'x' and B eq 'y'", filter)
}
