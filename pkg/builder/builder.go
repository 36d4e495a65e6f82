package builder

import (
	"github.com/marshallshelly/memra/pkg/schema"
)

// Statements holds the persistence statements of one entity.
type Statements struct {
	entity *schema.Entity

	// FindByID selects one row by primary key.
	FindByID Statement
	// Insert writes every non-key field and returns the stored row.
	Insert Statement
	// Update rewrites every non-key field of the row with the record's id.
	Update Statement
	// DeleteByID removes one row; callers read rows affected.
	DeleteByID Statement
}

// For compiles the statements of an entity. The entity must already have
// passed schema validation.
func For(e *schema.Entity) *Statements {
	return &Statements{
		entity:     e,
		FindByID:   findBy(e, e.PrimaryKey()),
		Insert:     insert(e),
		Update:     update(e),
		DeleteByID: deleteBy(e),
	}
}

// Entity returns the descriptor the statements were compiled from.
func (s *Statements) Entity() *schema.Entity {
	return s.entity
}

// UpdateIfOwner is Update with an extra owner predicate, so the ownership
// check and the write are one statement.
func (s *Statements) UpdateIfOwner() (Statement, error) {
	owner := s.entity.OwnerField()
	if owner == nil {
		return Statement{}, ErrNoOwner
	}
	return updateIfOwner(s.entity, owner), nil
}

// DeleteIfOwner deletes by id only when the owner column matches.
// The record id is bound first and the principal second.
func (s *Statements) DeleteIfOwner() (Statement, error) {
	owner := s.entity.OwnerField()
	if owner == nil {
		return Statement{}, ErrNoOwner
	}
	return deleteIfOwner(s.entity, owner), nil
}
