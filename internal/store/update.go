package store

import (
	"fmt"
	"strings"
)

// Clause is one column assignment in a partial update. Values travel as
// bind parameters; expressions are fixed SQL fragments chosen by this
// package's callers, never caller data, so nothing is string-interpolated
// into the statement.
type Clause struct {
	column string
	value  any
	expr   string
}

// Set assigns a parameterized value to a column.
func Set(column string, value any) Clause {
	return Clause{column: column, value: value}
}

// SetExpr assigns a computed SQL expression to a column, e.g.
// SetExpr("message_count", "message_count + 1").
func SetExpr(column, expr string) Clause {
	return Clause{column: column, expr: expr}
}

// buildUpdate assembles "UPDATE <table> SET ... WHERE <where>" from tagged
// clauses. An empty clause set is rejected: a zero-column SET is invalid
// SQL and always a caller bug.
func buildUpdate(table string, clauses []Clause, where string, whereArgs ...any) (string, []any, error) {
	if len(clauses) == 0 {
		return "", nil, ErrNoFields
	}

	var sb strings.Builder
	args := make([]any, 0, len(clauses)+len(whereArgs))

	fmt.Fprintf(&sb, "UPDATE %s SET ", table)
	for i, c := range clauses {
		if i > 0 {
			sb.WriteString(", ")
		}
		if c.expr != "" {
			fmt.Fprintf(&sb, "%s = %s", c.column, c.expr)
		} else {
			fmt.Fprintf(&sb, "%s = ?", c.column)
			args = append(args, c.value)
		}
	}
	sb.WriteString(" WHERE ")
	sb.WriteString(where)
	args = append(args, whereArgs...)

	return sb.String(), args, nil
}
