package migration

import (
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/marshallshelly/memra/pkg/schema"
)

// Order sorts entities so that every foreign key target is created before
// the tables referencing it. Ties keep declaration order. Self references
// are ignored; a cycle between distinct entities is an error.
func Order(entities []*schema.Entity) ([]*schema.Entity, error) {
	byName := make(map[string]*schema.Entity, len(entities))
	for _, e := range entities {
		byName[e.Name] = e
	}

	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[string]int, len(entities))
	ordered := make([]*schema.Entity, 0, len(entities))

	var visit func(e *schema.Entity) error
	visit = func(e *schema.Entity) error {
		switch state[e.Name] {
		case done:
			return nil
		case visiting:
			return fmt.Errorf("foreign key cycle through %s", e.Name)
		}
		state[e.Name] = visiting
		for _, f := range e.ForeignKeys() {
			if f.Relation.Target == e.Name {
				continue
			}
			target, ok := byName[f.Relation.Target]
			if !ok {
				return &schema.StructuralError{
					Kind:   schema.MissingRelationTarget,
					Entity: e.Name,
					Field:  f.Name,
					Msg:    fmt.Sprintf("unknown entity %s", f.Relation.Target),
				}
			}
			if err := visit(target); err != nil {
				return err
			}
		}
		state[e.Name] = done
		ordered = append(ordered, e)
		return nil
	}

	for _, e := range entities {
		if err := visit(e); err != nil {
			return nil, err
		}
	}
	return ordered, nil
}

// CreateTable renders the CREATE TABLE statement of e. targets resolves
// foreign keys to their tables.
func CreateTable(e *schema.Entity, targets map[string]*schema.Entity) string {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE %s (\n", quote(e.Table))

	lines := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		if f.PrimaryKey {
			lines = append(lines, fmt.Sprintf("    %s bigserial PRIMARY KEY", quote(f.Name)))
			continue
		}
		col := fmt.Sprintf("    %s %s", quote(f.Name), f.Type.SQLType())
		if !f.Nullable {
			col += " NOT NULL"
		}
		if f.Relation != nil {
			if target, ok := targets[f.Relation.Target]; ok {
				col += fmt.Sprintf(" REFERENCES %s (%s)", quote(target.Table), quote(schema.PrimaryKeyColumn))
			}
		}
		lines = append(lines, col)
	}
	b.WriteString(strings.Join(lines, ",\n"))
	b.WriteString("\n);")
	return b.String()
}

// DropTable renders the DROP TABLE statement of e.
func DropTable(e *schema.Entity) string {
	return fmt.Sprintf("DROP TABLE IF EXISTS %s;", quote(e.Table))
}

// Plan renders the up and down scripts creating every entity's table.
// Up creates referenced tables first; down drops in reverse.
func Plan(entities []*schema.Entity) (up, down string, err error) {
	ordered, err := Order(entities)
	if err != nil {
		return "", "", err
	}

	targets := make(map[string]*schema.Entity, len(ordered))
	for _, e := range ordered {
		targets[e.Name] = e
	}

	creates := make([]string, 0, len(ordered))
	drops := make([]string, 0, len(ordered))
	for i, e := range ordered {
		creates = append(creates, CreateTable(e, targets))
		drops = append(drops, DropTable(ordered[len(ordered)-1-i]))
	}
	return strings.Join(creates, "\n\n") + "\n", strings.Join(drops, "\n") + "\n", nil
}

func quote(name string) string {
	return pgx.Identifier{name}.Sanitize()
}
