// Package relation derives navigation accessors from foreign-key fields.
//
// Every foreign key yields one edge with two directions: a forward
// many-to-one lookup named get_<field> on the source and a reverse
// one-to-many lookup named find_<alias or source> on the target.
package relation

import (
	"fmt"
	"strings"

	"github.com/marshallshelly/memra/pkg/builder"
	"github.com/marshallshelly/memra/pkg/schema"
)

// Edge is one derived relation between two entities.
type Edge struct {
	Source *schema.Entity
	Field  *schema.Field
	Target *schema.Entity

	// Forward is the accessor on the source returning exactly one target.
	Forward string
	// Reverse is the accessor on the target returning all referencing sources.
	Reverse string

	forward builder.Statement
	reverse builder.Statement
}

// ForwardGoName is the exported Go method name of the forward accessor.
func (e Edge) ForwardGoName() string { return schema.Pascal(e.Forward) }

// ReverseGoName is the exported Go method name of the reverse accessor.
func (e Edge) ReverseGoName() string { return schema.Pascal(e.Reverse) }

// ForwardStatement selects the target row by the source's key value.
func (e Edge) ForwardStatement() builder.Statement { return e.forward }

// ReverseStatement selects every source row referencing a target id.
func (e Edge) ReverseStatement() builder.Statement { return e.reverse }

func (e Edge) String() string {
	return fmt.Sprintf("%s.%s -> %s (%s / %s)", e.Source.Name, e.Field.Name, e.Target.Name, e.Forward, e.Reverse)
}

// ForwardName is the forward accessor name for a foreign key column.
func ForwardName(column string) string {
	return "get_" + strings.TrimSuffix(column, "_id")
}

// ReverseName is the reverse accessor name for a source entity.
func ReverseName(source *schema.Entity, rel *schema.Relation) string {
	if rel.Alias != "" {
		return "find_" + rel.Alias
	}
	return "find_" + schema.Snake(source.Name)
}

// Link derives every edge of the entity set, in declaration order.
// A relation naming an unknown entity is MissingRelationTarget; two
// edges producing the same accessor on one entity are AmbiguousRelation.
func Link(entities []*schema.Entity) ([]Edge, error) {
	byName := make(map[string]*schema.Entity, len(entities))
	for _, e := range entities {
		byName[e.Name] = e
	}

	type key struct{ entity, name string }
	claimed := make(map[key]string)
	claim := func(entity, name, by string) error {
		k := key{entity, name}
		if prev, ok := claimed[k]; ok {
			return &schema.StructuralError{
				Kind:   schema.AmbiguousRelation,
				Entity: entity,
				Field:  by,
				Msg:    fmt.Sprintf("accessor %s already derived from %s; give one relation a distinct alias", name, prev),
			}
		}
		claimed[k] = by
		return nil
	}

	var edges []Edge
	for _, source := range entities {
		for i := range source.Fields {
			f := &source.Fields[i]
			if f.Relation == nil {
				continue
			}

			target, ok := byName[f.Relation.Target]
			if !ok {
				return nil, &schema.StructuralError{
					Kind:   schema.MissingRelationTarget,
					Entity: source.Name,
					Field:  f.Name,
					Msg:    fmt.Sprintf("unknown entity %s", f.Relation.Target),
				}
			}

			edge := Edge{
				Source:  source,
				Field:   f,
				Target:  target,
				Forward: ForwardName(f.Name),
				Reverse: ReverseName(source, f.Relation),
			}
			if err := claim(source.Name, edge.Forward, source.Name+"."+f.Name); err != nil {
				return nil, err
			}
			if err := claim(target.Name, edge.Reverse, source.Name+"."+f.Name); err != nil {
				return nil, err
			}

			edge.forward = builder.ForwardLookup(target)
			rev, err := builder.ReverseLookup(source, f.Name)
			if err != nil {
				return nil, fmt.Errorf("failed to compile reverse lookup %s: %w", edge.Reverse, err)
			}
			edge.reverse = rev
			edges = append(edges, edge)
		}
	}
	return edges, nil
}
