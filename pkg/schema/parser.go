package schema

import (
	"fmt"
	"reflect"
	"strings"
	"sync"
)

const (
	// StructTagKey is the key used in struct tags (e.g., `memra:"..."`).
	StructTagKey = "memra"
)

// Tabler is implemented by entity structs that choose their own table name.
type Tabler interface {
	TableName() string
}

// Parser builds entity descriptors from Go struct types.
type Parser struct {
	typeMapper *TypeMapper

	mu    sync.Mutex
	cache map[reflect.Type]*Entity
}

// NewParser creates a new Parser instance.
func NewParser() *Parser {
	return &Parser{
		typeMapper: DefaultTypeMapper,
		cache:      make(map[reflect.Type]*Entity),
	}
}

var defaultParser = NewParser()

// Parse builds an entity descriptor from a Go struct type using the
// default parser.
func Parse(t reflect.Type) (*Entity, error) {
	return defaultParser.Parse(t)
}

// Parse extracts an Entity from a Go struct type. The struct must embed
// Model; the primary key is synthesized from it and always comes first.
// Either the whole descriptor is returned or an error, never a partial one.
func (p *Parser) Parse(modelType reflect.Type) (*Entity, error) {
	for modelType.Kind() == reflect.Ptr {
		modelType = modelType.Elem()
	}

	name := modelType.Name()
	if modelType.Kind() != reflect.Struct {
		return nil, structural(NotNamedFields, name, "", "must be a struct, got %s", modelType.Kind())
	}

	p.mu.Lock()
	cached, ok := p.cache[modelType]
	p.mu.Unlock()
	if ok {
		return cached, nil
	}

	entity := &Entity{
		Name:   name,
		Table:  p.extractTableName(modelType),
		GoType: modelType,
	}

	var keyIndex []int
	fields := make([]Field, 0, modelType.NumField())
	for i := 0; i < modelType.NumField(); i++ {
		sf := modelType.Field(i)

		if sf.Anonymous && sf.Type == embeddedModel {
			keyIndex = []int{i, 0}
			continue
		}
		if !sf.IsExported() {
			continue
		}

		tagValue := sf.Tag.Get(StructTagKey)
		if tagValue == "-" {
			continue
		}
		if sf.Anonymous {
			return nil, structural(InvalidField, name, sf.Name, "embedded structs other than schema.Model are not supported")
		}

		field, err := p.createField(name, sf, tagValue)
		if err != nil {
			return nil, err
		}
		fields = append(fields, field)
	}

	if keyIndex == nil {
		return nil, structural(InvalidField, name, PrimaryKeyColumn, "struct must embed schema.Model")
	}
	if len(fields) == 0 {
		return nil, structural(NotNamedFields, name, "", "struct declares no persisted fields")
	}

	entity.Fields = append([]Field{primaryKey(keyIndex)}, fields...)
	if err := Validate(entity); err != nil {
		return nil, err
	}

	p.mu.Lock()
	p.cache[modelType] = entity
	p.mu.Unlock()
	return entity, nil
}

func primaryKey(index []int) Field {
	return Field{
		Name:       PrimaryKeyColumn,
		GoName:     "ID",
		Type:       BigInt,
		Nullable:   true,
		PrimaryKey: true,
		Index:      index,
	}
}

// extractTableName determines the table name for a struct type.
func (p *Parser) extractTableName(modelType reflect.Type) string {
	if t, ok := reflect.New(modelType).Interface().(Tabler); ok {
		return t.TableName()
	}
	return TableName(modelType.Name())
}

// createField builds a field descriptor from a struct field and its tag.
func (p *Parser) createField(entity string, sf reflect.StructField, tagValue string) (Field, error) {
	scalar, mapped := p.typeMapper.ScalarOf(sf.Type)
	field, err := TaggedField(entity, sf.Name, tagValue, IsNullable(sf.Type), scalar, mapped)
	if err != nil {
		return Field{}, err
	}
	field.Index = sf.Index
	return field, nil
}

// TaggedField builds a field descriptor from a Go field name and its memra
// tag. scalar is what the Go type maps to; mapped is false when it maps to
// nothing, in which case the tag must name a type.
func TaggedField(entity, goName, tag string, nullable bool, scalar ScalarType, mapped bool) (Field, error) {
	opts, err := parseTag(tag)
	if err != nil {
		return Field{}, structural(InvalidField, entity, goName, "%v", err)
	}

	field := Field{
		Name:     opts.Name,
		GoName:   goName,
		Nullable: nullable,
	}
	if field.Name == "" {
		field.Name = Snake(goName)
	}

	for key := range opts.Options {
		switch key {
		case "foreign", "as", "owner", "visibility", "type":
		default:
			return Field{}, structural(InvalidField, entity, goName, "unknown tag option %q", key)
		}
	}

	if opts.Has("type") {
		field.Type = ScalarType(opts.Get("type"))
		if !field.Type.Valid() {
			return Field{}, structural(InvalidField, entity, goName, "unknown scalar type %q", opts.Get("type"))
		}
	} else {
		if !mapped {
			return Field{}, structural(InvalidField, entity, goName, "no storage type for its Go type")
		}
		field.Type = scalar
	}

	field.Owner = opts.Has("owner")
	field.Visibility = opts.Has("visibility")

	if opts.Has("as") && !opts.Has("foreign") {
		return Field{}, structural(InvalidField, entity, goName, "as(...) requires foreign(...)")
	}
	if opts.Has("foreign") {
		target := opts.Get("foreign")
		if target == "" {
			return Field{}, structural(InvalidField, entity, goName, "foreign(...) needs a target entity")
		}
		field.Relation = NewRelation(entity, target, opts.Get("as"))
	}

	return field, nil
}

// NewRelation builds a relation annotation, choosing the kind from
// whether the target is the source entity itself.
func NewRelation(source, target, alias string) *Relation {
	kind := BelongsTo
	if source == target {
		kind = SelfReference
	}
	return &Relation{Kind: kind, Target: target, Alias: alias}
}

// Validate checks the rules every descriptor must satisfy regardless of
// which front-end produced it.
func Validate(e *Entity) error {
	if !ValidIdentifier(e.Table) {
		return structural(InvalidField, e.Name, "", "table name %q is not a valid identifier", e.Table)
	}
	if len(e.Fields) < 2 || !e.Fields[0].PrimaryKey || e.Fields[0].Name != PrimaryKeyColumn {
		return structural(NotNamedFields, e.Name, "", "entity needs a primary key followed by at least one field")
	}

	seen := make(map[string]bool, len(e.Fields))
	var owner, visibility string
	for i, f := range e.Fields {
		if !ValidIdentifier(f.Name) {
			return structural(InvalidField, e.Name, f.Name, "column name is not a valid identifier")
		}
		if seen[f.Name] {
			return structural(InvalidField, e.Name, f.Name, "duplicate column")
		}
		seen[f.Name] = true

		if i > 0 && f.PrimaryKey {
			return structural(InvalidField, e.Name, f.Name, "only the implicit id may be a primary key")
		}

		if f.Owner {
			if owner != "" {
				return structural(InvalidField, e.Name, f.Name, "owner already declared on %s", owner)
			}
			if !f.Type.Integer() {
				return structural(InvalidField, e.Name, f.Name, "owner field must be an integer, got %s", f.Type)
			}
			owner = f.Name
		}
		if f.Visibility {
			if visibility != "" {
				return structural(InvalidField, e.Name, f.Name, "visibility already declared on %s", visibility)
			}
			if f.Type != Bool {
				return structural(InvalidField, e.Name, f.Name, "visibility field must be bool, got %s", f.Type)
			}
			visibility = f.Name
		}

		if f.Relation == nil {
			continue
		}
		if !strings.HasSuffix(f.Name, "_id") || f.Name == "_id" {
			return structural(InvalidField, e.Name, f.Name, "foreign key column must end in _id")
		}
		if !f.Type.Integer() {
			return structural(InvalidField, e.Name, f.Name, "foreign key must be an integer, got %s", f.Type)
		}
		if f.Relation.Alias != "" && !ValidIdentifier(f.Relation.Alias) {
			return structural(InvalidField, e.Name, f.Name, "alias %q is not a valid identifier", f.Relation.Alias)
		}
		if f.Relation.Kind == SelfReference && f.Relation.Alias == "" {
			return structural(AmbiguousRelation, e.Name, f.Name, "self reference to %s needs as(alias)", f.Relation.Target)
		}
	}
	return nil
}

// TagOptions represents parsed tag options.
type TagOptions struct {
	Name    string            // Column name (first element)
	Options map[string]string // Other options
}

// parseTag parses a struct tag value into TagOptions.
// Format: "column_name,option1,option2(value)"
func parseTag(tag string) (*TagOptions, error) {
	parts := splitTag(tag)
	opts := &TagOptions{Options: make(map[string]string)}
	if len(parts) == 0 {
		return opts, nil
	}
	opts.Name = parts[0]

	for _, opt := range parts[1:] {
		if opt == "" {
			continue
		}
		if idx := strings.Index(opt, "("); idx != -1 {
			if !strings.HasSuffix(opt, ")") {
				return nil, fmt.Errorf("invalid option format: %s", opt)
			}
			opts.Options[opt[:idx]] = strings.TrimSpace(opt[idx+1 : len(opt)-1])
			continue
		}
		opts.Options[opt] = ""
	}
	return opts, nil
}

// Has checks if an option exists.
func (t *TagOptions) Has(key string) bool {
	_, ok := t.Options[key]
	return ok
}

// Get returns the value of an option.
func (t *TagOptions) Get(key string) string {
	return t.Options[key]
}

// splitTag splits a tag value by commas, handling nested parentheses.
func splitTag(tag string) []string {
	if strings.TrimSpace(tag) == "" {
		return nil
	}
	var parts []string
	var current strings.Builder
	depth := 0
	for _, ch := range tag {
		switch ch {
		case '(':
			depth++
		case ')':
			depth--
		case ',':
			if depth == 0 {
				parts = append(parts, strings.TrimSpace(current.String()))
				current.Reset()
				continue
			}
		}
		current.WriteRune(ch)
	}
	parts = append(parts, strings.TrimSpace(current.String()))
	return parts
}
