// Package builder compiles entity descriptors into fixed SQL statements.
//
// Identifiers are validated and quoted into the SQL text at build time.
// Only data values are ever bound, using PostgreSQL $n placeholders.
package builder

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/marshallshelly/memra/pkg/schema"
)

// ErrNoOwner is returned when an owner-conditional statement is requested
// for an entity without an owner field.
var ErrNoOwner = errors.New("entity has no owner field")

// Bind names the field whose value fills one placeholder.
type Bind struct {
	Column string
	Index  []int
}

// Statement is a compiled SQL template and its ordered bind sequence.
// Placeholder $k is filled by Binds[k-1].
type Statement struct {
	SQL   string
	Binds []Bind
}

// Columns returns the bound column names in placeholder order.
func (s Statement) Columns() []string {
	cols := make([]string, len(s.Binds))
	for i, b := range s.Binds {
		cols[i] = b.Column
	}
	return cols
}

// Args replays the bind sequence against a record. The record is either a
// struct (or pointer to one) of the entity's Go type, or a map keyed by
// column name. Nil pointers become NULL.
func (s Statement) Args(record any) ([]any, error) {
	if m, ok := record.(map[string]any); ok {
		args := make([]any, len(s.Binds))
		for i, b := range s.Binds {
			v, ok := m[b.Column]
			if !ok {
				return nil, fmt.Errorf("missing value for column %s", b.Column)
			}
			args[i] = v
		}
		return args, nil
	}

	v := reflect.ValueOf(record)
	for v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return nil, fmt.Errorf("record is a nil pointer")
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return nil, fmt.Errorf("record must be a struct or map, got %s", v.Kind())
	}

	args := make([]any, len(s.Binds))
	for i, b := range s.Binds {
		if b.Index == nil {
			return nil, fmt.Errorf("column %s has no Go field", b.Column)
		}
		args[i] = fieldValue(v.FieldByIndex(b.Index))
	}
	return args, nil
}

func fieldValue(fv reflect.Value) any {
	if fv.Kind() == reflect.Ptr {
		if fv.IsNil() {
			return nil
		}
		return fv.Elem().Interface()
	}
	return fv.Interface()
}

func bindOf(f *schema.Field) Bind {
	return Bind{Column: f.Name, Index: f.Index}
}

func quote(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

func columnList(fields []schema.Field) string {
	quoted := make([]string, len(fields))
	for i := range fields {
		quoted[i] = quote(fields[i].Name)
	}
	return strings.Join(quoted, ", ")
}

func placeholder(n int) string {
	return fmt.Sprintf("$%d", n)
}
