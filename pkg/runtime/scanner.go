package runtime

import (
	"context"
	"database/sql"
	"fmt"
	"reflect"

	"github.com/marshallshelly/memra/pkg/schema"
)

// ScanTargets returns pointers to the fields of dest in the entity's
// column order, matching statements that select every column.
func ScanTargets(e *schema.Entity, dest any) ([]any, error) {
	v := reflect.ValueOf(dest)
	if v.Kind() != reflect.Ptr || v.IsNil() || v.Elem().Kind() != reflect.Struct {
		return nil, fmt.Errorf("%w: dest must be a pointer to struct, got %T", ErrInvalidModel, dest)
	}
	v = v.Elem()
	if e.GoType != nil && v.Type() != e.GoType {
		return nil, fmt.Errorf("%w: dest is %s, entity %s is %s", ErrInvalidModel, v.Type(), e.Name, e.GoType)
	}

	targets := make([]any, len(e.Fields))
	for i, f := range e.Fields {
		if f.Index == nil {
			return nil, fmt.Errorf("%w: column %s has no Go field", ErrInvalidModel, f.Name)
		}
		targets[i] = v.FieldByIndex(f.Index).Addr().Interface()
	}
	return targets, nil
}

// QueryOne runs query and scans the first row into a new T. No row is
// ErrNotFound.
func QueryOne[T any](ctx context.Context, q Querier, e *schema.Entity, query string, args ...any) (*T, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, Wrap(query, err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, Wrap(query, err)
		}
		return nil, ErrNotFound
	}

	out := new(T)
	if err := scanRow(rows, e, out); err != nil {
		return nil, Wrap(query, err)
	}
	return out, nil
}

// QueryAll runs query and scans every row.
func QueryAll[T any](ctx context.Context, q Querier, e *schema.Entity, query string, args ...any) ([]T, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, Wrap(query, err)
	}
	defer rows.Close()

	var out []T
	for rows.Next() {
		var item T
		if err := scanRow(rows, e, &item); err != nil {
			return nil, Wrap(query, err)
		}
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, Wrap(query, err)
	}
	return out, nil
}

// Exec runs a statement and returns the number of affected rows.
func Exec(ctx context.Context, q Querier, query string, args ...any) (int64, error) {
	res, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, Wrap(query, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, Wrap(query, err)
	}
	return n, nil
}

func scanRow(rows *sql.Rows, e *schema.Entity, dest any) error {
	targets, err := ScanTargets(e, dest)
	if err != nil {
		return err
	}
	if err := rows.Scan(targets...); err != nil {
		return fmt.Errorf("failed to scan row: %w", err)
	}
	return nil
}
