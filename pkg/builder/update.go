package builder

import (
	"strings"

	"github.com/marshallshelly/memra/pkg/schema"
)

// update sets c1 = $1 ... cn = $n and matches the key on $n+1.
func update(e *schema.Entity) Statement {
	sql, binds := updatePrefix(e)
	return Statement{
		SQL:   sql + " RETURNING " + columnList(e.Fields),
		Binds: binds,
	}
}

func updateIfOwner(e *schema.Entity, owner *schema.Field) Statement {
	sql, binds := updatePrefix(e)
	binds = append(binds, bindOf(owner))
	sql += " AND " + quote(owner.Name) + " = " + placeholder(len(binds))
	return Statement{
		SQL:   sql + " RETURNING " + columnList(e.Fields),
		Binds: binds,
	}
}

func updatePrefix(e *schema.Entity) (string, []Bind) {
	data := e.DataFields()

	binds := make([]Bind, 0, len(data)+2)
	sets := make([]string, len(data))
	for i := range data {
		binds = append(binds, bindOf(&data[i]))
		sets[i] = quote(data[i].Name) + " = " + placeholder(i+1)
	}
	binds = append(binds, bindOf(e.PrimaryKey()))

	var sql strings.Builder
	sql.WriteString("UPDATE ")
	sql.WriteString(quote(e.Table))
	sql.WriteString(" SET ")
	sql.WriteString(strings.Join(sets, ", "))
	sql.WriteString(" WHERE ")
	sql.WriteString(quote(schema.PrimaryKeyColumn))
	sql.WriteString(" = ")
	sql.WriteString(placeholder(len(binds)))

	return sql.String(), binds
}
