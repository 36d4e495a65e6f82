// Package codegen renders entity descriptors as Go source: entity structs,
// their statement constants, typed relation accessors and constructors.
package codegen

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"sync"

	"github.com/dave/jennifer/jen"
	"golang.org/x/sync/errgroup"

	"github.com/marshallshelly/memra/pkg/relation"
	"github.com/marshallshelly/memra/pkg/schema"
)

const (
	modulePath   = "github.com/marshallshelly/memra"
	schemaPkg    = modulePath + "/pkg/schema"
	runtimePkg   = modulePath + "/pkg/runtime"
	relationPkg  = modulePath + "/pkg/relation"
	constructPkg = modulePath + "/pkg/construct"
	handlerPkg   = modulePath + "/pkg/handler"

	header = "Code generated by memra. DO NOT EDIT."
)

// Config controls where and how code is generated.
type Config struct {
	// Package is the name of the generated package.
	Package string
	// OutDir is the directory files are written to.
	OutDir string
	// Workers bounds parallel rendering. Zero means GOMAXPROCS.
	Workers int
}

// Generator renders one package for a linked set of entities.
type Generator struct {
	cfg      Config
	entities []*schema.Entity
	edges    []relation.Edge
	policies map[string][]string

	mu      sync.Mutex
	written []string
}

// New links the entities and prepares a generator. Linking errors are
// returned unchanged so callers can inspect the structural kind.
func New(cfg Config, entities []*schema.Entity) (*Generator, error) {
	if cfg.Package == "" {
		return nil, fmt.Errorf("package name is required")
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.GOMAXPROCS(0)
	}

	edges, err := relation.Link(entities)
	if err != nil {
		return nil, err
	}
	return &Generator{
		cfg:      cfg,
		entities: entities,
		edges:    edges,
		policies: make(map[string][]string),
	}, nil
}

// FromDefinition builds a generator from a parsed definition, carrying
// over its package name and per-entity policies.
func FromDefinition(cfg Config, def *schema.Definition, entities []*schema.Entity) (*Generator, error) {
	if cfg.Package == "" {
		cfg.Package = def.Package
	}
	g, err := New(cfg, entities)
	if err != nil {
		return nil, err
	}
	for _, ed := range def.Entities {
		if len(ed.Policies) > 0 {
			g.policies[ed.Name] = ed.Policies
		}
	}
	return g, nil
}

// Files returns the generated files keyed by file name.
func (g *Generator) Files() (map[string]*jen.File, error) {
	files := make(map[string]*jen.File, len(g.entities)+1)
	for _, e := range g.entities {
		files[schema.Snake(e.Name)+".go"] = g.entityFile(e)
	}
	shared, err := g.sharedFile()
	if err != nil {
		return nil, err
	}
	files["memra.go"] = shared
	return files, nil
}

// Render renders every file to source text.
func (g *Generator) Render(ctx context.Context) (map[string][]byte, error) {
	files, err := g.Files()
	if err != nil {
		return nil, err
	}

	var mu sync.Mutex
	out := make(map[string][]byte, len(files))

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(g.cfg.Workers)
	for name, f := range files {
		eg.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			var buf bytes.Buffer
			if err := f.Render(&buf); err != nil {
				return fmt.Errorf("render %s: %w", name, err)
			}
			mu.Lock()
			out[name] = buf.Bytes()
			mu.Unlock()
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Generate renders and writes every file into OutDir.
func (g *Generator) Generate(ctx context.Context) error {
	if err := os.MkdirAll(g.cfg.OutDir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	rendered, err := g.Render(ctx)
	if err != nil {
		return err
	}

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(g.cfg.Workers)
	for name, src := range rendered {
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			path := filepath.Join(g.cfg.OutDir, name)
			if err := os.WriteFile(path, src, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", path, err)
			}
			g.mu.Lock()
			g.written = append(g.written, path)
			g.mu.Unlock()
			return nil
		})
	}
	return eg.Wait()
}

// Written lists the files written by the last Generate, sorted.
func (g *Generator) Written() []string {
	g.mu.Lock()
	defer g.mu.Unlock()

	out := make([]string, len(g.written))
	copy(out, g.written)
	sort.Strings(out)
	return out
}

// Edges returns the linked relation edges.
func (g *Generator) Edges() []relation.Edge {
	return g.edges
}

func newFile(pkg string) *jen.File {
	f := jen.NewFile(pkg)
	f.HeaderComment(header)
	return f
}
