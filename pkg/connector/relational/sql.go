package relational

import (
	"regexp"
	"strings"

	"github.com/polystore/polystore/pkg/connector/core"
	"github.com/polystore/polystore/pkg/errors"
)

var identPattern = regexp.MustCompile(`^[A-Za-z0-9_$]+$`)

// guardIdent rejects table and field names that cannot be safely quoted.
func guardIdent(name string) error {
	if !identPattern.MatchString(name) {
		return errors.Newf(errors.ErrorTypeValidation, "invalid identifier %q", name)
	}
	return nil
}

func quoteIdent(name string) string {
	return "`" + name + "`"
}

// qualifyTable prefixes the table with the database when one is given.
func qualifyTable(database, table string) (string, error) {
	if err := guardIdent(table); err != nil {
		return "", err
	}
	if database == "" {
		return quoteIdent(table), nil
	}
	if err := guardIdent(database); err != nil {
		return "", err
	}
	return quoteIdent(database) + "." + quoteIdent(table), nil
}

// buildInsert produces a single multi-row parameterized statement that
// silently skips duplicate keys.
//
//	INSERT IGNORE INTO `t` (`a`, `b`) VALUES (?, ?), (?, ?)
func buildInsert(table string, fields []string, rowCount int) (string, error) {
	if rowCount <= 0 {
		return "", errors.New(errors.ErrorTypeValidation, "input data is empty")
	}
	for _, f := range fields {
		if err := guardIdent(f); err != nil {
			return "", err
		}
	}

	var b strings.Builder
	b.WriteString("INSERT IGNORE INTO ")
	b.WriteString(table)
	b.WriteString(" (")
	writeFieldList(&b, fields)
	b.WriteString(") VALUES ")
	writePlaceholders(&b, len(fields), rowCount)

	return b.String(), nil
}

// buildMerge produces an upsert statement. In increment mode the single
// target field is incremented by 1 on key conflict; in field-merge mode the
// listed target fields (or every field when none are listed) are overwritten
// with the incoming values.
func buildMerge(table string, fields []string, rowCount int, merge core.MergeOptions) (string, error) {
	if rowCount <= 0 {
		return "", errors.New(errors.ErrorTypeValidation, "input data is empty")
	}
	for _, f := range fields {
		if err := guardIdent(f); err != nil {
			return "", err
		}
	}

	var update string
	if merge.Increment {
		if len(merge.UpdateTargets) != 1 {
			return "", errors.New(errors.ErrorTypeValidation,
				"increment mode requires exactly one update target")
		}
		target := merge.UpdateTargets[0]
		if err := guardIdent(target); err != nil {
			return "", err
		}
		update = quoteIdent(target) + "=" + quoteIdent(target) + "+1"
	} else {
		targets := fields
		if len(merge.UpdateTargets) > 0 {
			// Keep only targets present in the supplied fields, preserving
			// field order.
			wanted := make(map[string]bool, len(merge.UpdateTargets))
			for _, t := range merge.UpdateTargets {
				wanted[t] = true
			}
			targets = make([]string, 0, len(fields))
			for _, f := range fields {
				if wanted[f] {
					targets = append(targets, f)
				}
			}
			if len(targets) == 0 {
				return "", errors.New(errors.ErrorTypeValidation,
					"none of the update targets match the supplied fields")
			}
		}

		parts := make([]string, len(targets))
		for i, f := range targets {
			parts[i] = quoteIdent(f) + "=VALUES(" + quoteIdent(f) + ")"
		}
		update = strings.Join(parts, ", ")
	}

	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(table)
	b.WriteString(" (")
	writeFieldList(&b, fields)
	b.WriteString(") VALUES ")
	writePlaceholders(&b, len(fields), rowCount)
	b.WriteString(" ON DUPLICATE KEY UPDATE ")
	b.WriteString(update)

	return b.String(), nil
}

// flattenArgs orders every row's values by the shared field list into one
// flat argument slice for bulk parameter binding.
func flattenArgs(rows []core.Row, fields []string) []interface{} {
	args := make([]interface{}, 0, len(rows)*len(fields))
	for _, row := range rows {
		for _, f := range fields {
			args = append(args, row[f])
		}
	}
	return args
}

func writeFieldList(b *strings.Builder, fields []string) {
	for i, f := range fields {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(quoteIdent(f))
	}
}

func writePlaceholders(b *strings.Builder, fieldCount, rowCount int) {
	row := "(" + strings.TrimSuffix(strings.Repeat("?, ", fieldCount), ", ") + ")"
	for i := 0; i < rowCount; i++ {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(row)
	}
}
