package schema

import (
	"reflect"
	"strings"
)

// PrimaryKeyColumn is the name of the implicit primary key.
const PrimaryKeyColumn = "id"

// Entity is the build-time descriptor of one persisted type.
// Entities are immutable once a registry has been built.
type Entity struct {
	Name   string
	Table  string
	Fields []Field

	// GoType is nil for entities declared only in a definition file.
	GoType reflect.Type
}

// Field describes one column of an entity.
type Field struct {
	Name       string // column name
	GoName     string
	Type       ScalarType
	Nullable   bool
	PrimaryKey bool
	Owner      bool
	Visibility bool
	Relation   *Relation

	// Index is the reflect field index path on GoType.
	Index []int
}

// IsForeignKey reports whether the field references another entity.
func (f *Field) IsForeignKey() bool {
	return f.Relation != nil
}

// RelationKind tags the variants of a relation annotation.
type RelationKind int

const (
	// BelongsTo is a plain many-to-one link with a one-to-many reverse.
	BelongsTo RelationKind = iota + 1
	// SelfReference links an entity to another row of the same entity.
	// Both ends need a role alias.
	SelfReference
)

func (k RelationKind) String() string {
	switch k {
	case BelongsTo:
		return "belongs_to"
	case SelfReference:
		return "self_reference"
	}
	return "unknown"
}

// Relation is the typed foreign-key annotation of a field.
type Relation struct {
	Kind   RelationKind
	Target string
	// Alias names the reverse accessor (the role of the source rows).
	Alias string
}

// PrimaryKey returns the implicit primary key field.
func (e *Entity) PrimaryKey() *Field {
	return &e.Fields[0]
}

// DataFields returns every field except the primary key, in declared order.
func (e *Entity) DataFields() []Field {
	return e.Fields[1:]
}

// Columns returns all column names, primary key first.
func (e *Entity) Columns() []string {
	cols := make([]string, len(e.Fields))
	for i := range e.Fields {
		cols[i] = e.Fields[i].Name
	}
	return cols
}

// Field returns the field with the given column name.
func (e *Entity) Field(name string) (*Field, bool) {
	for i := range e.Fields {
		if e.Fields[i].Name == name {
			return &e.Fields[i], true
		}
	}
	return nil, false
}

// OwnerField returns the field holding the authorizing principal's id, or nil.
func (e *Entity) OwnerField() *Field {
	for i := range e.Fields {
		if e.Fields[i].Owner {
			return &e.Fields[i]
		}
	}
	return nil
}

// VisibilityField returns the private/public flag, or nil.
func (e *Entity) VisibilityField() *Field {
	for i := range e.Fields {
		if e.Fields[i].Visibility {
			return &e.Fields[i]
		}
	}
	return nil
}

// ForeignKeys returns the fields carrying a relation, in declared order.
func (e *Entity) ForeignKeys() []Field {
	var fks []Field
	for _, f := range e.Fields {
		if f.Relation != nil {
			fks = append(fks, f)
		}
	}
	return fks
}

// Prefix is the route prefix of the entity's handlers.
func (e *Entity) Prefix() string {
	return "/" + strings.ToLower(e.Name)
}

// NewEntity assembles a descriptor from its data fields, prepending the
// synthesized primary key, and validates it. An empty table takes the
// default name derived from the entity name.
func NewEntity(name, table string, fields []Field) (*Entity, error) {
	if table == "" {
		table = TableName(name)
	}
	e := &Entity{
		Name:   name,
		Table:  table,
		Fields: append([]Field{primaryKey(nil)}, fields...),
	}
	if err := Validate(e); err != nil {
		return nil, err
	}
	return e, nil
}
