package commands

import (
	"context"
	"log/slog"
	"os"

	"github.com/marshallshelly/memra/internal/config"
	"github.com/marshallshelly/memra/pkg/loader"
	"github.com/marshallshelly/memra/pkg/registry"
	"github.com/marshallshelly/memra/pkg/runtime"
	"github.com/marshallshelly/memra/pkg/schema"
)

// source is where entity descriptors come from: a YAML definition, or Go
// sources scanned by the loader. Setting modelsPath or fromModels selects
// the loader; fromModels alone uses the configured models directory.
type source struct {
	schemaPath string
	modelsPath string
	fromModels bool
}

// load builds the descriptors and, for a YAML definition, the definition
// itself. Loaded entities come back without policies.
func (s source) load() (*schema.Definition, []*schema.Entity, error) {
	if s.modelsPath != "" || s.fromModels {
		path := resolveString(s.modelsPath, cfg.Models)
		entities, err := loader.Load(path)
		if err != nil {
			return nil, nil, config.SchemaError("loading models from "+path, err)
		}
		return nil, entities, nil
	}

	path := resolveString(s.schemaPath, cfg.Schema)
	def, entities, err := schema.LoadDefinitionFile(path)
	if err != nil {
		return nil, nil, config.SchemaError("loading definition "+path, err)
	}
	return def, entities, nil
}

// build loads the descriptors into a built registry.
func (s source) build() (*schema.Definition, *registry.Registry, error) {
	def, entities, err := s.load()
	if err != nil {
		return nil, nil, err
	}
	reg := registry.NewRegistry()
	for _, e := range entities {
		if err := reg.RegisterEntity(e); err != nil {
			return nil, nil, config.SchemaError("registering "+e.Name, err)
		}
	}
	if err := reg.Build(); err != nil {
		return nil, nil, config.SchemaError("linking relations", err)
	}
	return def, reg, nil
}

func newLogger() (*slog.Logger, error) {
	logger, err := cfg.Log.Logger(os.Stderr)
	if err != nil {
		return nil, config.ConfigError("configuring logger", err)
	}
	return logger, nil
}

func connect(ctx context.Context) (*runtime.DB, error) {
	dsn, err := cfg.DSN()
	if err != nil {
		return nil, config.ConfigError("resolving database", err)
	}
	db, err := runtime.Connect(ctx, &runtime.Config{
		URL:      dsn,
		MaxConns: cfg.Database.MaxConns,
		MinConns: cfg.Database.MinConns,
	})
	if err != nil {
		return nil, config.DBConnectError("connecting to database", err)
	}
	return db, nil
}
