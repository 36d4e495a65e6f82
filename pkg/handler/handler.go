// Package handler synthesizes ownership and visibility gated operations
// for an entity from its descriptor and a set of policies.
//
// Every operation acquires one connection from the pool and releases it
// before returning. Internally the outcomes stay distinct (not found,
// denied, storage failure) and are logged; over HTTP not found and denied
// look the same.
package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"

	"github.com/marshallshelly/memra/pkg/auth"
	"github.com/marshallshelly/memra/pkg/builder"
	"github.com/marshallshelly/memra/pkg/registry"
	"github.com/marshallshelly/memra/pkg/runtime"
	"github.com/marshallshelly/memra/pkg/schema"
)

var (
	// ErrDenied is returned when the caller may not perform the operation.
	ErrDenied = errors.New("denied")

	// ErrPolicyDisabled is returned when calling an operation whose policy
	// was not enabled for the set.
	ErrPolicyDisabled = errors.New("policy not enabled")
)

// Set is the synthesized handler set of one entity.
type Set[T any] struct {
	entity   *schema.Entity
	stmts    *builder.Statements
	updateIf builder.Statement
	deleteIf builder.Statement
	db       runtime.Pool
	policies []Policy
	enabled  map[Policy]bool
	logger   *slog.Logger
}

// For synthesizes the handlers of T. It fails when the entity lacks the
// owner or visibility field an enabled policy needs, or when two policies
// would serve the same route.
func For[T any](reg *registry.Registry, db runtime.Pool, policies ...Policy) (*Set[T], error) {
	e, err := registry.Of[T](reg)
	if err != nil {
		return nil, err
	}

	s := &Set[T]{
		entity:  e,
		stmts:   builder.For(e),
		db:      db,
		enabled: make(map[Policy]bool, len(policies)),
		logger:  slog.Default(),
	}

	routes := make(map[string]Policy)
	for _, p := range policies {
		if _, ok := policyNames[p]; !ok {
			return nil, fmt.Errorf("entity %s: %s is not a policy", e.Name, p)
		}
		if s.enabled[p] {
			continue
		}
		if p.NeedsOwner() && e.OwnerField() == nil {
			return nil, &schema.StructuralError{Kind: schema.InvalidField, Entity: e.Name, Msg: fmt.Sprintf("policy %s needs an owner field", p)}
		}
		if p.NeedsVisibility() && e.VisibilityField() == nil {
			return nil, &schema.StructuralError{Kind: schema.InvalidField, Entity: e.Name, Msg: fmt.Sprintf("policy %s needs a visibility field", p)}
		}
		route := p.Method() + " " + p.Path()
		if prev, ok := routes[route]; ok {
			return nil, fmt.Errorf("entity %s: policies %s and %s both serve %s", e.Name, prev, p, route)
		}
		routes[route] = p
		s.enabled[p] = true
		s.policies = append(s.policies, p)
	}

	if s.enabled[UpdateIfOwner] {
		if s.updateIf, err = s.stmts.UpdateIfOwner(); err != nil {
			return nil, err
		}
	}
	if s.enabled[DeleteIfOwner] {
		if s.deleteIf, err = s.stmts.DeleteIfOwner(); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// WithLogger replaces the outcome logger. A nil logger keeps the default.
func (s *Set[T]) WithLogger(logger *slog.Logger) *Set[T] {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// Entity returns the descriptor the set was synthesized from.
func (s *Set[T]) Entity() *schema.Entity {
	return s.entity
}

// Policies returns the enabled policies in the order given.
func (s *Set[T]) Policies() []Policy {
	out := make([]Policy, len(s.policies))
	copy(out, s.policies)
	return out
}

// Create inserts fields as a new record owned by the caller. Any id in
// fields is ignored and the owner field is overwritten.
func (s *Set[T]) Create(ctx context.Context, p auth.Principal, fields T) (*T, error) {
	if !s.enabled[CreateAsOwner] {
		return nil, ErrPolicyDisabled
	}
	uid, ok := p.ID()
	if !ok {
		return nil, s.outcome(ctx, CreateAsOwner, p, nil, ErrDenied)
	}

	rec := fields
	v := reflect.ValueOf(&rec).Elem()
	v.FieldByIndex(s.entity.PrimaryKey().Index).SetZero()
	setIntValue(v.FieldByIndex(s.entity.OwnerField().Index), uid)

	out, err := withConn(ctx, s.db, func(conn runtime.Querier) (*T, error) {
		args, err := s.stmts.Insert.Args(&rec)
		if err != nil {
			return nil, err
		}
		return runtime.QueryOne[T](ctx, conn, s.entity, s.stmts.Insert.SQL, args...)
	})
	if err != nil {
		return nil, s.outcome(ctx, CreateAsOwner, p, nil, err)
	}
	return out, nil
}

// Read finds a record by id for any caller.
func (s *Set[T]) Read(ctx context.Context, id int64) (*T, error) {
	return s.read(ctx, Read, auth.Guest(), id)
}

// ReadIfOwner finds a record by id when the caller owns it.
func (s *Set[T]) ReadIfOwner(ctx context.Context, p auth.Principal, id int64) (*T, error) {
	return s.read(ctx, ReadIfOwner, p, id)
}

// ReadIfVisible finds a record by id when it is public, or when the caller
// owns it.
func (s *Set[T]) ReadIfVisible(ctx context.Context, p auth.Principal, id int64) (*T, error) {
	return s.read(ctx, ReadIfVisible, p, id)
}

func (s *Set[T]) read(ctx context.Context, policy Policy, p auth.Principal, id int64) (*T, error) {
	if !s.enabled[policy] {
		return nil, ErrPolicyDisabled
	}
	if policy.RequiresAuth() && p.IsGuest() {
		return nil, s.outcome(ctx, policy, p, &id, ErrDenied)
	}

	out, err := withConn(ctx, s.db, func(conn runtime.Querier) (*T, error) {
		return runtime.QueryOne[T](ctx, conn, s.entity, s.stmts.FindByID.SQL, id)
	})
	if err != nil {
		return nil, s.outcome(ctx, policy, p, &id, err)
	}

	if err := evaluate(readRules[policy], p, rowOf(s.entity, reflect.ValueOf(out).Elem())); err != nil {
		return nil, s.outcome(ctx, policy, p, &id, err)
	}
	return out, nil
}

// UpdateIfOwner rewrites the record with rec's id when the caller owns it.
// Ownership is checked by the UPDATE itself. The owner field is forced to
// the caller, so a record can never be handed to someone else.
func (s *Set[T]) UpdateIfOwner(ctx context.Context, p auth.Principal, rec T) (*T, error) {
	if !s.enabled[UpdateIfOwner] {
		return nil, ErrPolicyDisabled
	}
	uid, ok := p.ID()
	if !ok {
		return nil, s.outcome(ctx, UpdateIfOwner, p, nil, ErrDenied)
	}

	v := reflect.ValueOf(&rec).Elem()
	id, ok := intValue(v.FieldByIndex(s.entity.PrimaryKey().Index))
	if !ok {
		return nil, s.outcome(ctx, UpdateIfOwner, p, nil, runtime.ErrNotFound)
	}
	setIntValue(v.FieldByIndex(s.entity.OwnerField().Index), uid)

	var miss error
	out, err := withConn(ctx, s.db, func(conn runtime.Querier) (*T, error) {
		args, err := s.updateIf.Args(&rec)
		if err != nil {
			return nil, err
		}
		out, err := runtime.QueryOne[T](ctx, conn, s.entity, s.updateIf.SQL, args...)
		if errors.Is(err, runtime.ErrNotFound) {
			miss = s.classifyMiss(ctx, conn, id)
		}
		return out, err
	})
	if miss != nil {
		err = miss
	}
	if err != nil {
		return nil, s.outcome(ctx, UpdateIfOwner, p, &id, err)
	}
	return out, nil
}

// DeleteIfOwner removes the record with id when the caller owns it and
// reports whether a row was removed. The record id is bound before the
// caller's id.
func (s *Set[T]) DeleteIfOwner(ctx context.Context, p auth.Principal, id int64) (bool, error) {
	if !s.enabled[DeleteIfOwner] {
		return false, ErrPolicyDisabled
	}
	uid, ok := p.ID()
	if !ok {
		return false, s.outcome(ctx, DeleteIfOwner, p, &id, ErrDenied)
	}

	owner := s.entity.OwnerField().Name
	args, err := s.deleteIf.Args(map[string]any{schema.PrimaryKeyColumn: id, owner: uid})
	if err != nil {
		return false, err
	}

	var miss error
	_, err = withConn(ctx, s.db, func(conn runtime.Querier) (*int64, error) {
		n, err := runtime.Exec(ctx, conn, s.deleteIf.SQL, args...)
		if err == nil && n == 0 {
			miss = s.classifyMiss(ctx, conn, id)
		}
		return &n, err
	})
	if err == nil {
		err = miss
	}
	if err != nil {
		return false, s.outcome(ctx, DeleteIfOwner, p, &id, err)
	}
	return true, nil
}

// classifyMiss tells a missing row from a row owned by someone else after
// a conditional statement matched nothing. The answer is only used for
// logging and the Go API; the write already happened or did not.
func (s *Set[T]) classifyMiss(ctx context.Context, conn runtime.Querier, id int64) error {
	_, err := runtime.QueryOne[T](ctx, conn, s.entity, s.stmts.FindByID.SQL, id)
	switch {
	case err == nil:
		return ErrDenied
	case errors.Is(err, runtime.ErrNotFound):
		return runtime.ErrNotFound
	default:
		return err
	}
}

// outcome logs a failed operation at a level matching its kind and
// returns err unchanged.
func (s *Set[T]) outcome(ctx context.Context, policy Policy, p auth.Principal, id *int64, err error) error {
	attrs := []any{
		"entity", s.entity.Name,
		"policy", policy.String(),
		"principal", p.String(),
	}
	if id != nil {
		attrs = append(attrs, "id", *id)
	}

	switch {
	case errors.Is(err, runtime.ErrNotFound):
		s.logger.DebugContext(ctx, "record not found", attrs...)
	case errors.Is(err, ErrDenied):
		s.logger.InfoContext(ctx, "access denied", attrs...)
	default:
		s.logger.ErrorContext(ctx, "storage failure", append(attrs, "error", err)...)
	}
	return err
}

// withConn runs fn on a dedicated connection and always releases it.
func withConn[R any](ctx context.Context, pool runtime.Pool, fn func(runtime.Querier) (*R, error)) (*R, error) {
	conn, err := pool.Conn(ctx)
	if err != nil {
		return nil, &runtime.StorageError{Err: errors.Join(runtime.ErrNoConnection, err)}
	}
	defer conn.Close()

	return fn(conn)
}
