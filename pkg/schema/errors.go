package schema

import (
	"errors"
	"fmt"
)

// ErrorKind classifies structural problems found while building descriptors.
type ErrorKind int

const (
	// NotNamedFields means the entity is not a struct with named fields.
	NotNamedFields ErrorKind = iota + 1
	// AmbiguousRelation means two relations would produce the same accessor.
	AmbiguousRelation
	// MissingRelationTarget means a relation names an unknown entity.
	MissingRelationTarget
	// InvalidField covers malformed tags, unmapped types and bad identifiers.
	InvalidField
)

func (k ErrorKind) String() string {
	switch k {
	case NotNamedFields:
		return "not named fields"
	case AmbiguousRelation:
		return "ambiguous relation"
	case MissingRelationTarget:
		return "missing relation target"
	case InvalidField:
		return "invalid field"
	}
	return "unknown"
}

// Sentinels for errors.Is matching on the kind of a StructuralError.
var (
	ErrNotNamedFields        = &StructuralError{Kind: NotNamedFields}
	ErrAmbiguousRelation     = &StructuralError{Kind: AmbiguousRelation}
	ErrMissingRelationTarget = &StructuralError{Kind: MissingRelationTarget}
	ErrInvalidField          = &StructuralError{Kind: InvalidField}
)

// StructuralError reports an entity definition that cannot be compiled.
type StructuralError struct {
	Kind   ErrorKind
	Entity string
	Field  string
	Msg    string
}

func (e *StructuralError) Error() string {
	switch {
	case e.Entity == "":
		return e.Kind.String()
	case e.Field == "":
		return fmt.Sprintf("%s: entity %s: %s", e.Kind, e.Entity, e.Msg)
	default:
		return fmt.Sprintf("%s: entity %s, field %s: %s", e.Kind, e.Entity, e.Field, e.Msg)
	}
}

// Is matches any StructuralError of the same kind.
func (e *StructuralError) Is(target error) bool {
	var t *StructuralError
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

func structural(kind ErrorKind, entity, field, format string, args ...any) *StructuralError {
	return &StructuralError{
		Kind:   kind,
		Entity: entity,
		Field:  field,
		Msg:    fmt.Sprintf(format, args...),
	}
}
