// Package routes aggregates generated handler sets into one route table.
package routes

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"

	"github.com/marshallshelly/memra/pkg/handler"
)

// ErrMounted is returned when a table is mounted a second time.
var ErrMounted = errors.New("route table already mounted")

// Route is one assembled route.
type Route struct {
	Method  string
	Path    string
	Entity  string
	Policy  handler.Policy
	Handler gin.HandlerFunc
}

func (r Route) String() string {
	return fmt.Sprintf("%-6s %s -> %s.%s", r.Method, r.Path, r.Entity, r.Policy)
}

// Table is an immutable set of routes. Routes cannot be added or removed
// after assembly.
type Table struct {
	routes []Route

	mu      sync.Mutex
	mounted bool
}

// Assemble prefixes each set's specs with /<lowercase entity name> and
// rejects duplicate method and path pairs.
func Assemble(sets ...handler.HandlerSet) (*Table, error) {
	seen := make(map[string]Route)
	t := &Table{}

	for _, set := range sets {
		prefix := set.Entity().Prefix()
		for _, spec := range set.Specs() {
			r := Route{
				Method:  spec.Method,
				Path:    join(prefix, spec.Path),
				Entity:  spec.Entity,
				Policy:  spec.Policy,
				Handler: spec.Handler,
			}
			key := r.Method + " " + r.Path
			if prev, ok := seen[key]; ok {
				return nil, fmt.Errorf("duplicate route %s: %s.%s and %s.%s", key, prev.Entity, prev.Policy, r.Entity, r.Policy)
			}
			seen[key] = r
			t.routes = append(t.routes, r)
		}
	}
	return t, nil
}

// Routes returns a copy of the assembled routes in assembly order.
func (t *Table) Routes() []Route {
	out := make([]Route, len(t.routes))
	copy(out, t.routes)
	return out
}

// Len returns the number of routes.
func (t *Table) Len() int {
	return len(t.routes)
}

// Mount registers every route on router. A table mounts at most once.
func (t *Table) Mount(router gin.IRouter) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.mounted {
		return ErrMounted
	}
	for _, r := range t.routes {
		router.Handle(r.Method, r.Path, r.Handler)
	}
	t.mounted = true
	return nil
}

func join(prefix, path string) string {
	if path == "/" {
		return prefix + "/"
	}
	return strings.TrimSuffix(prefix, "/") + "/" + strings.TrimPrefix(path, "/")
}
