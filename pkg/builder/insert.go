package builder

import (
	"strings"

	"github.com/marshallshelly/memra/pkg/schema"
)

// insert binds the non-key fields in declared order and returns the row.
func insert(e *schema.Entity) Statement {
	data := e.DataFields()

	binds := make([]Bind, len(data))
	placeholders := make([]string, len(data))
	for i := range data {
		binds[i] = bindOf(&data[i])
		placeholders[i] = placeholder(i + 1)
	}

	var sql strings.Builder
	sql.WriteString("INSERT INTO ")
	sql.WriteString(quote(e.Table))
	sql.WriteString(" (")
	sql.WriteString(columnList(data))
	sql.WriteString(") VALUES (")
	sql.WriteString(strings.Join(placeholders, ", "))
	sql.WriteString(") RETURNING ")
	sql.WriteString(columnList(e.Fields))

	return Statement{SQL: sql.String(), Binds: binds}
}
