package builder

import (
	"fmt"
	"strings"

	"github.com/marshallshelly/memra/pkg/schema"
)

// Order is one ORDER BY term.
type Order struct {
	Column string
	Desc   bool
}

// Asc orders by a column ascending.
func Asc(column string) Order { return Order{Column: column} }

// Desc orders by a column descending.
func Desc(column string) Order { return Order{Column: column, Desc: true} }

// FindByColumn selects the rows whose column equals $1.
func (s *Statements) FindByColumn(column string, orderBy ...Order) (Statement, error) {
	return FindByColumn(s.entity, column, orderBy...)
}

// FindByColumn selects every column of e where column = $1. Without an
// order the row order is whatever the store returns.
func FindByColumn(e *schema.Entity, column string, orderBy ...Order) (Statement, error) {
	f, ok := e.Field(column)
	if !ok {
		return Statement{}, fmt.Errorf("entity %s has no column %s", e.Name, column)
	}

	st := findBy(e, f)
	if len(orderBy) == 0 {
		return st, nil
	}

	terms := make([]string, len(orderBy))
	for i, o := range orderBy {
		if _, ok := e.Field(o.Column); !ok {
			return Statement{}, fmt.Errorf("entity %s has no column %s to order by", e.Name, o.Column)
		}
		terms[i] = quote(o.Column)
		if o.Desc {
			terms[i] += " DESC"
		}
	}
	st.SQL += " ORDER BY " + strings.Join(terms, ", ")
	return st, nil
}

// ForwardLookup resolves a foreign key to the single target row.
func ForwardLookup(target *schema.Entity) Statement {
	return findBy(target, target.PrimaryKey())
}

// ReverseLookup selects every source row referencing a target id through
// the given foreign key column.
func ReverseLookup(source *schema.Entity, foreignKey string, orderBy ...Order) (Statement, error) {
	f, ok := source.Field(foreignKey)
	if !ok || f.Relation == nil {
		return Statement{}, fmt.Errorf("entity %s has no foreign key %s", source.Name, foreignKey)
	}
	return FindByColumn(source, foreignKey, orderBy...)
}

func findBy(e *schema.Entity, f *schema.Field) Statement {
	var sql strings.Builder
	sql.WriteString("SELECT ")
	sql.WriteString(columnList(e.Fields))
	sql.WriteString(" FROM ")
	sql.WriteString(quote(e.Table))
	sql.WriteString(" WHERE ")
	sql.WriteString(quote(f.Name))
	sql.WriteString(" = $1")

	return Statement{
		SQL:   sql.String(),
		Binds: []Bind{bindOf(f)},
	}
}
