package relation

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"github.com/marshallshelly/memra/pkg/builder"
	"github.com/marshallshelly/memra/pkg/runtime"
	"github.com/marshallshelly/memra/pkg/schema"
)

// ErrUnpersisted is returned when a reverse lookup starts from a record
// that has no primary key yet.
var ErrUnpersisted = errors.New("record has no primary key")

// Get follows the edge forward from src and returns the single target.
// A dangling key yields runtime.ErrNotFound, which callers treat as a
// normal outcome.
func Get[T any](ctx context.Context, q runtime.Querier, e Edge, src any) (*T, error) {
	if err := checkModel(src, e.Source); err != nil {
		return nil, err
	}
	args, err := builder.Statement{Binds: []builder.Bind{{Column: e.Field.Name, Index: e.Field.Index}}}.Args(src)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", e.Field.Name, err)
	}
	if args[0] == nil {
		return nil, runtime.ErrNotFound
	}
	return runtime.QueryOne[T](ctx, q, e.Target, e.forward.SQL, args...)
}

// Find follows the edge in reverse from dst and returns every source row
// referencing it. Rows come back in store order unless orderBy is given.
func Find[T any](ctx context.Context, q runtime.Querier, e Edge, dst schema.Identifiable, orderBy ...builder.Order) ([]T, error) {
	if err := checkModel(dst, e.Target); err != nil {
		return nil, err
	}
	id, ok := dst.Key()
	if !ok {
		return nil, ErrUnpersisted
	}

	st := e.reverse
	if len(orderBy) > 0 {
		var err error
		st, err = builder.ReverseLookup(e.Source, e.Field.Name, orderBy...)
		if err != nil {
			return nil, err
		}
	}
	return runtime.QueryAll[T](ctx, q, e.Source, st.SQL, id)
}

// checkModel rejects nil records and records of another Go type than the
// entity's. Entities built from definitions have no Go type to compare.
func checkModel(v any, e *schema.Entity) error {
	rv := reflect.ValueOf(v)
	if !rv.IsValid() || (rv.Kind() == reflect.Ptr && rv.IsNil()) {
		return fmt.Errorf("%w: nil %s", runtime.ErrInvalidModel, e.Name)
	}
	if e.GoType != nil {
		if t := reflect.Indirect(rv).Type(); t != e.GoType {
			return fmt.Errorf("%w: %s is not %s", runtime.ErrInvalidModel, t, e.Name)
		}
	}
	return nil
}
