package structured

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrNotSQL is returned when a value is not a non-empty sequence of mappings.
var ErrNotSQL = errors.New("data is not convertible to SQL")

var plainIdent = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// MarshalSQL emits a CREATE TABLE statement with one TEXT column per key,
// followed by one INSERT per row. Missing cells and nulls become NULL.
func MarshalSQL(v Value, table string) ([]byte, error) {
	if v.Kind != Sequence || len(v.Items) == 0 {
		return nil, ErrNotSQL
	}
	for _, row := range v.Items {
		if row.Kind != Mapping {
			return nil, ErrNotSQL
		}
	}
	cols := columns(v.Items)
	if len(cols) == 0 {
		return nil, ErrNotSQL
	}

	idents := make([]string, len(cols))
	defs := make([]string, len(cols))
	for i, c := range cols {
		idents[i] = sqlIdent(c)
		defs[i] = idents[i] + " TEXT"
	}
	table = sqlIdent(table)

	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE %s (%s);\n", table, strings.Join(defs, ", "))
	colList := strings.Join(idents, ", ")
	for _, row := range v.Items {
		values := make([]string, len(cols))
		for i, c := range cols {
			values[i] = sqlLiteral(row, c)
		}
		fmt.Fprintf(&b, "INSERT INTO %s (%s) VALUES (%s);\n", table, colList, strings.Join(values, ", "))
	}
	return []byte(b.String()), nil
}

func sqlLiteral(row Value, col string) string {
	cell, ok := row.Get(col)
	if !ok || cell.Kind == Null {
		return "NULL"
	}
	return "'" + strings.ReplaceAll(cell.Scalar(), "'", "''") + "'"
}

func sqlIdent(name string) string {
	if plainIdent.MatchString(name) {
		return name
	}
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
