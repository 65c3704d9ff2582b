package table

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
	"github.com/goccy/go-json"

	"github.com/polystore/polystore/pkg/connector/core"
	"github.com/polystore/polystore/pkg/errors"
)

// entityKeys extracts the partition/row-key pair an entity must carry.
func entityKeys(entity core.Entity) (partition, row string, err error) {
	partition, ok := entity["PartitionKey"].(string)
	if !ok || partition == "" {
		return "", "", errors.New(errors.ErrorTypeValidation, "entity has no PartitionKey")
	}
	row, ok = entity["RowKey"].(string)
	if !ok || row == "" {
		return "", "", errors.New(errors.ErrorTypeValidation, "entity has no RowKey")
	}
	return partition, row, nil
}

// formatBatchActions translates a list of entities into transaction actions
// of one kind, submitted together as a single atomic batch.
func formatBatchActions(entities []core.Entity, kind aztables.TransactionType) ([]aztables.TransactionAction, error) {
	actions := make([]aztables.TransactionAction, 0, len(entities))
	for i, entity := range entities {
		if _, _, err := entityKeys(entity); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeValidation,
				fmt.Sprintf("entity %d is malformed", i))
		}

		payload, err := json.Marshal(entity)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeData,
				fmt.Sprintf("failed to encode entity %d", i))
		}

		actions = append(actions, aztables.TransactionAction{
			ActionType: kind,
			Entity:     payload,
		})
	}
	return actions, nil
}

// substituteParameters expands @name placeholders in a filter expression
// with literal values. String values are single-quoted with embedded quotes
// doubled, the OData way.
func substituteParameters(filter string, parameters map[string]interface{}) string {
	// Longest names first so @seq10 is not clobbered by @seq1.
	names := make([]string, 0, len(parameters))
	for name := range parameters {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return len(names[i]) > len(names[j]) })

	for _, name := range names {
		filter = strings.ReplaceAll(filter, "@"+name, literal(parameters[name]))
	}
	return filter
}

func literal(v interface{}) string {
	switch t := v.(type) {
	case string:
		return "'" + strings.ReplaceAll(t, "'", "''") + "'"
	case bool:
		return fmt.Sprintf("%t", t)
	default:
		return fmt.Sprintf("%v", t)
	}
}
