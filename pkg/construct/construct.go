// Package construct builds new, unpersisted entity records whose foreign
// keys are taken from references to already persisted rows.
package construct

import (
	"reflect"

	"github.com/marshallshelly/memra/pkg/registry"
	"github.com/marshallshelly/memra/pkg/schema"
)

// Ref points a foreign key at a row, either by raw id or by a loaded
// record. A record reference only resolves once the record is persisted.
type Ref struct {
	id    int64
	model schema.Identifiable
	raw   bool
}

// ID references a row by its primary key.
func ID(id int64) Ref {
	return Ref{id: id, raw: true}
}

// To references a loaded record.
func To(model schema.Identifiable) Ref {
	return Ref{model: model}
}

// Resolve returns the referenced id, or false when the reference points
// at nothing or at a record without a key.
func (r Ref) Resolve() (int64, bool) {
	if r.raw {
		return r.id, true
	}
	if r.model == nil {
		return 0, false
	}
	v := reflect.ValueOf(r.model)
	if v.Kind() == reflect.Ptr && v.IsNil() {
		return 0, false
	}
	return r.model.Key()
}

func (r Ref) modelType() reflect.Type {
	if r.raw || r.model == nil {
		return nil
	}
	t := reflect.TypeOf(r.model)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t
}

// Constructor creates records of T with every foreign key resolved.
type Constructor[T any] struct {
	entity  *schema.Entity
	targets map[string]*schema.Entity // foreign key column -> target
}

// For prepares the constructor of T from a built registry.
func For[T any](reg *registry.Registry) (*Constructor[T], error) {
	e, err := registry.Of[T](reg)
	if err != nil {
		return nil, err
	}

	c := &Constructor[T]{
		entity:  e,
		targets: make(map[string]*schema.Entity),
	}
	for _, f := range e.ForeignKeys() {
		target, err := reg.GetByName(f.Relation.Target)
		if err != nil {
			return nil, err
		}
		c.targets[f.Name] = target
	}
	return c, nil
}

// References lists the foreign key columns New expects, in declared order.
func (c *Constructor[T]) References() []string {
	var out []string
	for _, f := range c.entity.ForeignKeys() {
		out = append(out, f.Name)
	}
	return out
}

// New copies fields, clears its primary key and fills each foreign key
// from refs, keyed by column name. It returns false when a reference is
// missing, unknown, of the wrong entity, or not yet persisted.
func (c *Constructor[T]) New(fields T, refs map[string]Ref) (*T, bool) {
	if len(refs) != len(c.targets) {
		return nil, false
	}

	out := fields
	v := reflect.ValueOf(&out).Elem()
	v.FieldByIndex(c.entity.PrimaryKey().Index).SetZero()

	for _, f := range c.entity.ForeignKeys() {
		ref, ok := refs[f.Name]
		if !ok {
			return nil, false
		}
		target := c.targets[f.Name]
		if t := ref.modelType(); t != nil && target.GoType != nil && t != target.GoType {
			return nil, false
		}
		id, ok := ref.Resolve()
		if !ok {
			return nil, false
		}
		if !setInt(v.FieldByIndex(f.Index), id) {
			return nil, false
		}
	}
	return &out, true
}

func setInt(fv reflect.Value, id int64) bool {
	if fv.Kind() == reflect.Ptr {
		p := reflect.New(fv.Type().Elem())
		if !setInt(p.Elem(), id) {
			return false
		}
		fv.Set(p)
		return true
	}
	switch fv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if fv.OverflowInt(id) {
			return false
		}
		fv.SetInt(id)
		return true
	case reflect.Uint8, reflect.Uint16, reflect.Uint32:
		if id < 0 || fv.OverflowUint(uint64(id)) {
			return false
		}
		fv.SetUint(uint64(id))
		return true
	}
	return false
}
