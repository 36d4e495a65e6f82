package registry

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/marshallshelly/memra/pkg/schema"
)

type User struct {
	schema.Model
	Username string
}

type Deck struct {
	schema.Model
	UserID int64 `memra:"user_id,foreign(User),owner"`
	Name   string
}

type Card struct {
	schema.Model
	DeckID int64 `memra:"deck_id,foreign(Deck)"`
	Front  string
}

type Dangling struct {
	schema.Model
	TeamID int64 `memra:"team_id,foreign(Team)"`
}

type Broken struct {
	Name string
}

func TestRegistry_Register(t *testing.T) {
	registry := NewRegistry()

	t.Run("register new model", func(t *testing.T) {
		if err := registry.Register(User{}); err != nil {
			t.Fatalf("Register failed: %v", err)
		}
		if !registry.Has(reflect.TypeOf(User{})) {
			t.Error("expected model to be registered")
		}
	})

	t.Run("register duplicate and pointer model", func(t *testing.T) {
		if err := registry.Register(User{}, &User{}); err != nil {
			t.Errorf("duplicate register failed: %v", err)
		}
		if n := len(registry.Entities()); n != 1 {
			t.Errorf("expected 1 entity, got %d", n)
		}
	})

	t.Run("invalid model", func(t *testing.T) {
		err := registry.Register(Broken{})
		if !errors.Is(err, schema.ErrInvalidField) {
			t.Errorf("expected invalid field error, got %v", err)
		}
	})

	t.Run("get by name", func(t *testing.T) {
		e, err := registry.GetByName("User")
		if err != nil {
			t.Fatalf("GetByName failed: %v", err)
		}
		if e.Table != "users" {
			t.Errorf("expected table users, got %s", e.Table)
		}
		if _, err := registry.GetByName("Nope"); err == nil {
			t.Error("expected error for unknown entity")
		}
	})
}

func TestRegistry_Build(t *testing.T) {
	registry := NewRegistry()
	if err := registry.Register(User{}, Deck{}, Card{}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	if _, err := Of[Deck](registry); !errors.Is(err, ErrNotBuilt) {
		t.Errorf("expected ErrNotBuilt before build, got %v", err)
	}

	if err := registry.Build(); err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	names := []string{}
	for _, e := range registry.Entities() {
		names = append(names, e.Name)
	}
	if strings.Join(names, ",") != "User,Deck,Card" {
		t.Errorf("expected declaration order, got %v", names)
	}

	if n := len(registry.Edges()); n != 2 {
		t.Errorf("expected 2 edges, got %d", n)
	}

	edge, err := registry.Edge("Deck", "find_card")
	if err != nil {
		t.Fatalf("Edge failed: %v", err)
	}
	if edge.Source.Name != "Card" {
		t.Errorf("expected Card source, got %s", edge.Source.Name)
	}
	if _, err := registry.Edge("Card", "get_deck"); err != nil {
		t.Errorf("expected forward accessor, got %v", err)
	}

	e, err := Of[Deck](registry)
	if err != nil || e.Name != "Deck" {
		t.Errorf("Of[Deck] = %v, %v", e, err)
	}

	t.Run("frozen", func(t *testing.T) {
		type Late struct {
			schema.Model
			X string
		}
		if err := registry.Register(Late{}); !errors.Is(err, ErrFrozen) {
			t.Errorf("expected ErrFrozen, got %v", err)
		}
		if err := registry.Build(); !errors.Is(err, ErrFrozen) {
			t.Errorf("expected ErrFrozen on rebuild, got %v", err)
		}
	})
}

func TestRegistry_BuildMissingTarget(t *testing.T) {
	registry := NewRegistry()
	if err := registry.Register(Dangling{}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	err := registry.Build()
	if !errors.Is(err, schema.ErrMissingRelationTarget) {
		t.Fatalf("expected missing relation target, got %v", err)
	}
	if registry.Built() {
		t.Error("registry should not be frozen after a failed build")
	}
}

func TestRegistry_RegisterEntity(t *testing.T) {
	registry := NewRegistry()

	doc := "entities:\n  - name: Tag\n    fields:\n      - {name: label, type: text}\n  - name: Label\n    table: tags\n    fields:\n      - {name: x, type: text}\n"
	_, entities, err := schema.ParseDefinition(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("ParseDefinition failed: %v", err)
	}

	if err := registry.RegisterEntity(entities[0]); err != nil {
		t.Fatalf("RegisterEntity failed: %v", err)
	}
	if err := registry.RegisterEntity(entities[0]); err == nil {
		t.Error("expected duplicate name error")
	}
	if err := registry.RegisterEntity(entities[1]); err == nil {
		t.Error("expected duplicate table error")
	}
}
