package base

import (
	"sort"
	"strings"

	"github.com/polystore/polystore/pkg/connector/core"
	"github.com/polystore/polystore/pkg/errors"
)

// GuardStatement validates query text before any network call: the query
// must be non-empty, must case-insensitively start with the expected verb,
// and must not contain an SQL line-comment marker.
func GuardStatement(query, verb string) error {
	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		return errors.New(errors.ErrorTypeValidation, "query is required")
	}
	if !strings.HasPrefix(strings.ToUpper(trimmed), strings.ToUpper(verb)) {
		return errors.Newf(errors.ErrorTypeValidation, "query must start with %s", strings.ToUpper(verb))
	}
	if strings.Contains(trimmed, "--") {
		return errors.New(errors.ErrorTypeValidation, "query contains a line-comment marker and is rejected as unsafe")
	}
	return nil
}

// FieldsOf validates that every row in a batch carries an identical key set
// and returns those keys sorted. An empty batch or a schema mismatch is a
// validation error.
func FieldsOf(rows []core.Row) ([]string, error) {
	if len(rows) == 0 {
		return nil, errors.New(errors.ErrorTypeValidation, "input data is empty")
	}

	fields := make([]string, 0, len(rows[0]))
	for k := range rows[0] {
		fields = append(fields, k)
	}
	sort.Strings(fields)

	for i, row := range rows[1:] {
		if len(row) != len(fields) {
			return nil, errors.Newf(errors.ErrorTypeValidation,
				"row %d has a different field set; all fields must be identical", i+1)
		}
		for _, k := range fields {
			if _, ok := row[k]; !ok {
				return nil, errors.Newf(errors.ErrorTypeValidation,
					"row %d is missing field %q; all fields must be identical", i+1, k)
			}
		}
	}

	return fields, nil
}
