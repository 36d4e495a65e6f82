package schema

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Definition is the declarative form of a set of entities, read from YAML.
//
//	entities:
//	  - name: Course
//	    fields:
//	      - {name: user_id, type: bigint, foreign: User, owner: true}
//	      - {name: visibility, type: bool, nullable: true, visibility: true}
//	      - {name: name, type: text}
//	    policies: [create_as_owner, read_if_visible]
type Definition struct {
	Package  string             `yaml:"package"`
	Entities []EntityDefinition `yaml:"entities"`
}

// EntityDefinition declares one entity.
type EntityDefinition struct {
	Name     string            `yaml:"name"`
	Table    string            `yaml:"table,omitempty"`
	Fields   []FieldDefinition `yaml:"fields"`
	Policies []string          `yaml:"policies,omitempty"`
}

// FieldDefinition declares one non-key field.
type FieldDefinition struct {
	Name       string     `yaml:"name"`
	Type       ScalarType `yaml:"type"`
	Nullable   bool       `yaml:"nullable,omitempty"`
	Foreign    string     `yaml:"foreign,omitempty"`
	As         string     `yaml:"as,omitempty"`
	Owner      bool       `yaml:"owner,omitempty"`
	Visibility bool       `yaml:"visibility,omitempty"`
}

// ParseDefinition decodes a YAML definition and builds its entities in
// document order.
func ParseDefinition(r io.Reader) (*Definition, []*Entity, error) {
	var def Definition
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&def); err != nil {
		return nil, nil, fmt.Errorf("failed to decode definition: %w", err)
	}

	entities := make([]*Entity, 0, len(def.Entities))
	for _, ed := range def.Entities {
		e, err := ed.Build()
		if err != nil {
			return nil, nil, err
		}
		entities = append(entities, e)
	}
	return &def, entities, nil
}

// LoadDefinitionFile reads and builds a definition from a file.
func LoadDefinitionFile(path string) (*Definition, []*Entity, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open definition: %w", err)
	}
	defer f.Close()

	return ParseDefinition(f)
}

// Build turns the declaration into a validated descriptor.
func (ed EntityDefinition) Build() (*Entity, error) {
	if ed.Name == "" {
		return nil, structural(NotNamedFields, "", "", "entity has no name")
	}
	if len(ed.Fields) == 0 {
		return nil, structural(NotNamedFields, ed.Name, "", "entity declares no fields")
	}

	fields := make([]Field, 0, len(ed.Fields))
	for _, fd := range ed.Fields {
		if fd.Name == "" {
			return nil, structural(NotNamedFields, ed.Name, "", "field has no name")
		}
		if !fd.Type.Valid() {
			return nil, structural(InvalidField, ed.Name, fd.Name, "unknown scalar type %q", fd.Type)
		}
		if fd.As != "" && fd.Foreign == "" {
			return nil, structural(InvalidField, ed.Name, fd.Name, "as requires foreign")
		}
		f := Field{
			Name:       fd.Name,
			GoName:     Pascal(fd.Name),
			Type:       fd.Type,
			Nullable:   fd.Nullable,
			Owner:      fd.Owner,
			Visibility: fd.Visibility,
		}
		if fd.Foreign != "" {
			f.Relation = NewRelation(ed.Name, fd.Foreign, fd.As)
		}
		fields = append(fields, f)
	}
	return NewEntity(ed.Name, ed.Table, fields)
}
