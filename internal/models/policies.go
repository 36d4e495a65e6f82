package models

import (
	"fmt"
	"log/slog"

	"github.com/marshallshelly/memra/pkg/handler"
	"github.com/marshallshelly/memra/pkg/registry"
	"github.com/marshallshelly/memra/pkg/routes"
	"github.com/marshallshelly/memra/pkg/runtime"
)

var (
	owned   = []handler.Policy{handler.CreateAsOwner, handler.ReadIfOwner, handler.UpdateIfOwner, handler.DeleteIfOwner}
	visible = []handler.Policy{handler.CreateAsOwner, handler.ReadIfVisible, handler.UpdateIfOwner, handler.DeleteIfOwner}
	joined  = []handler.Policy{handler.CreateAsOwner, handler.ReadIfOwner, handler.DeleteIfOwner}
)

// Policies maps entity names to the operations served for them. Entities
// absent from the map get no routes.
var Policies = map[string][]handler.Policy{
	"User":               {handler.Read},
	"Course":             visible,
	"Deck":               visible,
	"Card":               owned,
	"History":            joined,
	"Settings":           {handler.CreateAsOwner, handler.ReadIfOwner, handler.UpdateIfOwner},
	"Notification":       {handler.ReadIfOwner, handler.DeleteIfOwner},
	"Addon":              visible,
	"CourseDeck":         {handler.Read},
	"Follower":           {handler.CreateAsOwner, handler.Read, handler.DeleteIfOwner},
	"CourseSubscription": joined,
	"DeckSubscription":   joined,
}

// Registry registers every entity and builds the registry.
func Registry() (*registry.Registry, error) {
	reg := registry.NewRegistry()
	if err := reg.Register(All()...); err != nil {
		return nil, err
	}
	if err := reg.Build(); err != nil {
		return nil, err
	}
	return reg, nil
}

func set[T any](reg *registry.Registry, db runtime.Pool, logger *slog.Logger) (handler.HandlerSet, error) {
	e, err := registry.Of[T](reg)
	if err != nil {
		return nil, err
	}
	s, err := handler.For[T](reg, db, Policies[e.Name]...)
	if err != nil {
		return nil, fmt.Errorf("handlers of %s: %w", e.Name, err)
	}
	return s.WithLogger(logger), nil
}

// HandlerSets synthesizes the handler set of every served entity.
func HandlerSets(reg *registry.Registry, db runtime.Pool, logger *slog.Logger) ([]handler.HandlerSet, error) {
	builders := []func(*registry.Registry, runtime.Pool, *slog.Logger) (handler.HandlerSet, error){
		set[User],
		set[Course],
		set[Deck],
		set[Card],
		set[History],
		set[Settings],
		set[Notification],
		set[Addon],
		set[CourseDeck],
		set[Follower],
		set[CourseSubscription],
		set[DeckSubscription],
	}

	sets := make([]handler.HandlerSet, 0, len(builders))
	for _, build := range builders {
		s, err := build(reg, db, logger)
		if err != nil {
			return nil, err
		}
		sets = append(sets, s)
	}
	return sets, nil
}

// Routes assembles the route table of the whole application.
func Routes(reg *registry.Registry, db runtime.Pool, logger *slog.Logger) (*routes.Table, error) {
	sets, err := HandlerSets(reg, db, logger)
	if err != nil {
		return nil, err
	}
	return routes.Assemble(sets...)
}
