package handler

import (
	"errors"
	"reflect"

	"github.com/marshallshelly/memra/pkg/auth"
	"github.com/marshallshelly/memra/pkg/schema"
)

// Rule decisions. A rule returns allow or ErrDenied to stop evaluation,
// or skip to defer to the next rule. A chain that only skips denies.
var (
	allow = errors.New("allow")
	skip  = errors.New("skip")
)

// row is what read rules can see of a stored record.
// A NULL owner matches no principal.
type row struct {
	owner    int64
	ownerSet bool
	private  bool
}

type rule func(p auth.Principal, r row) error

func denyGuest(p auth.Principal, _ row) error {
	if p.IsGuest() {
		return ErrDenied
	}
	return skip
}

func allowOwner(p auth.Principal, r row) error {
	if id, ok := p.ID(); ok && r.ownerSet && id == r.owner {
		return allow
	}
	return skip
}

func allowPublic(_ auth.Principal, r row) error {
	if !r.private {
		return allow
	}
	return skip
}

func allowAll(auth.Principal, row) error {
	return allow
}

// readRules is the rule chain of each read policy.
var readRules = map[Policy][]rule{
	Read:          {allowAll},
	ReadIfOwner:   {denyGuest, allowOwner},
	ReadIfVisible: {allowPublic, denyGuest, allowOwner},
}

func evaluate(rules []rule, p auth.Principal, r row) error {
	for _, rl := range rules {
		switch err := rl(p, r); {
		case errors.Is(err, allow):
			return nil
		case errors.Is(err, skip):
			continue
		default:
			return ErrDenied
		}
	}
	return ErrDenied
}

// rowOf extracts the rule inputs from a record.
func rowOf(e *schema.Entity, v reflect.Value) row {
	var r row
	if f := e.OwnerField(); f != nil {
		r.owner, r.ownerSet = intValue(v.FieldByIndex(f.Index))
	}
	if f := e.VisibilityField(); f != nil {
		fv := v.FieldByIndex(f.Index)
		if fv.Kind() == reflect.Ptr {
			r.private = !fv.IsNil() && fv.Elem().Bool()
		} else {
			r.private = fv.Bool()
		}
	}
	return r
}

func intValue(fv reflect.Value) (int64, bool) {
	if fv.Kind() == reflect.Ptr {
		if fv.IsNil() {
			return 0, false
		}
		fv = fv.Elem()
	}
	switch fv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return fv.Int(), true
	case reflect.Uint8, reflect.Uint16, reflect.Uint32:
		return int64(fv.Uint()), true
	}
	return 0, false
}

func setIntValue(fv reflect.Value, id int64) {
	if fv.Kind() == reflect.Ptr {
		p := reflect.New(fv.Type().Elem())
		setIntValue(p.Elem(), id)
		fv.Set(p)
		return
	}
	switch fv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		fv.SetInt(id)
	case reflect.Uint8, reflect.Uint16, reflect.Uint32:
		fv.SetUint(uint64(id))
	}
}
