package builder

import (
	"github.com/marshallshelly/memra/pkg/schema"
)

func deleteBy(e *schema.Entity) Statement {
	return Statement{
		SQL:   "DELETE FROM " + quote(e.Table) + " WHERE " + quote(schema.PrimaryKeyColumn) + " = $1",
		Binds: []Bind{bindOf(e.PrimaryKey())},
	}
}

func deleteIfOwner(e *schema.Entity, owner *schema.Field) Statement {
	st := deleteBy(e)
	st.SQL += " AND " + quote(owner.Name) + " = $2"
	st.Binds = append(st.Binds, bindOf(owner))
	return st
}
