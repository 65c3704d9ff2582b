package sqlite

import (
	"regexp"
	"sort"
	"strings"

	"github.com/polystore/polystore/pkg/connector/core"
	"github.com/polystore/polystore/pkg/errors"
)

var (
	identPattern = regexp.MustCompile(`^[A-Za-z0-9_$]+$`)
	// column types like "TEXT", "INTEGER PRIMARY KEY", "VARCHAR(16)"
	typePattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_ ()]*$`)
)

// upsertVerb selects the conflict behavior of a bulk write.
type upsertVerb string

const (
	upsertIgnore  upsertVerb = "INSERT OR IGNORE"
	upsertReplace upsertVerb = "INSERT OR REPLACE"
)

func guardIdent(name string) error {
	if !identPattern.MatchString(name) {
		return errors.Newf(errors.ErrorTypeValidation, "invalid identifier %q", name)
	}
	return nil
}

func quoteIdent(name string) string {
	return `"` + name + `"`
}

// buildCreateTable produces a CREATE TABLE IF NOT EXISTS statement with the
// columns in sorted name order.
//
//	CREATE TABLE IF NOT EXISTS "t" ("id" INTEGER PRIMARY KEY, "name" TEXT)
func buildCreateTable(table string, columns map[string]string) (string, error) {
	if err := guardIdent(table); err != nil {
		return "", err
	}
	if len(columns) == 0 {
		return "", errors.New(errors.ErrorTypeValidation, "column specification is empty")
	}

	names := make([]string, 0, len(columns))
	for name := range columns {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		if err := guardIdent(name); err != nil {
			return "", err
		}
		colType := columns[name]
		if !typePattern.MatchString(colType) {
			return "", errors.Newf(errors.ErrorTypeValidation, "invalid column type %q", colType)
		}
		parts = append(parts, quoteIdent(name)+" "+colType)
	}

	return "CREATE TABLE IF NOT EXISTS " + quoteIdent(table) +
		" (" + strings.Join(parts, ", ") + ")", nil
}

// buildUpsert produces a single multi-row parameterized write statement
// with the given conflict behavior.
//
//	INSERT OR IGNORE INTO "t" ("a", "b") VALUES (?, ?), (?, ?)
func buildUpsert(verb upsertVerb, table string, fields []string, rowCount int) (string, error) {
	if err := guardIdent(table); err != nil {
		return "", err
	}
	if rowCount <= 0 {
		return "", errors.New(errors.ErrorTypeValidation, "input data is empty")
	}
	for _, f := range fields {
		if err := guardIdent(f); err != nil {
			return "", err
		}
	}

	var b strings.Builder
	b.WriteString(string(verb))
	b.WriteString(" INTO ")
	b.WriteString(quoteIdent(table))
	b.WriteString(" (")
	for i, f := range fields {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(quoteIdent(f))
	}
	b.WriteString(") VALUES ")

	row := "(" + strings.TrimSuffix(strings.Repeat("?, ", len(fields)), ", ") + ")"
	for i := 0; i < rowCount; i++ {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(row)
	}

	return b.String(), nil
}

// buildSelect produces a parameterized equality select over the named
// columns, condition fields in sorted order, with the bind arguments in the
// same order.
//
//	SELECT "id", "name" FROM "t" WHERE "name" = ? AND "seen" = ?
func buildSelect(table string, columns []string, conditions core.Filter) (string, []interface{}, error) {
	if err := guardIdent(table); err != nil {
		return "", nil, err
	}
	if len(columns) == 0 {
		return "", nil, errors.New(errors.ErrorTypeValidation, "select columns are required")
	}
	if len(conditions) == 0 {
		return "", nil, errors.New(errors.ErrorTypeValidation, "select conditions are required")
	}

	for _, col := range columns {
		if err := guardIdent(col); err != nil {
			return "", nil, err
		}
	}

	keys := make([]string, 0, len(conditions))
	for k := range conditions {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	args := make([]interface{}, 0, len(keys))
	clauses := make([]string, 0, len(keys))
	for _, k := range keys {
		if err := guardIdent(k); err != nil {
			return "", nil, err
		}
		clauses = append(clauses, quoteIdent(k)+" = ?")
		args = append(args, conditions[k])
	}

	quoted := make([]string, len(columns))
	for i, col := range columns {
		quoted[i] = quoteIdent(col)
	}

	query := "SELECT " + strings.Join(quoted, ", ") +
		" FROM " + quoteIdent(table) +
		" WHERE " + strings.Join(clauses, " AND ")
	return query, args, nil
}

// flattenArgs orders every row's values by the shared field list into one
// flat argument slice.
func flattenArgs(rows []core.Row, fields []string) []interface{} {
	args := make([]interface{}, 0, len(rows)*len(fields))
	for _, row := range rows {
		for _, f := range fields {
			args = append(args, row[f])
		}
	}
	return args
}
