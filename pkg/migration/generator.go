package migration

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/marshallshelly/memra/pkg/schema"
)

// Generator writes and reads migration files in one directory.
type Generator struct {
	migrationsDir string
	version       func() string
}

// NewGenerator creates a new migration file generator.
func NewGenerator(migrationsDir string) *Generator {
	return &Generator{
		migrationsDir: migrationsDir,
		version:       GenerateVersion,
	}
}

// Generate writes a migration creating the tables of entities.
func (g *Generator) Generate(name string, entities []*schema.Entity) (*MigrationFile, error) {
	up, down, err := Plan(entities)
	if err != nil {
		return nil, err
	}
	return g.write(name, up, down)
}

// GenerateEmpty creates empty migration files for manual editing.
func (g *Generator) GenerateEmpty(name string) (*MigrationFile, error) {
	return g.write(name, "-- Write your UP migration here\n", "-- Write your DOWN migration here\n")
}

func (g *Generator) write(name, up, down string) (*MigrationFile, error) {
	if !schema.ValidIdentifier(name) {
		return nil, fmt.Errorf("migration name %q must be snake_case", name)
	}
	if err := os.MkdirAll(g.migrationsDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create migrations directory: %w", err)
	}

	version := g.version()
	mf := &MigrationFile{
		Version:  version,
		Name:     name,
		UpPath:   filepath.Join(g.migrationsDir, GenerateFileName(version, name, "up")),
		DownPath: filepath.Join(g.migrationsDir, GenerateFileName(version, name, "down")),
	}

	header := fmt.Sprintf("-- Migration: %s\n-- Version: %s\n\n", name, version)
	if err := os.WriteFile(mf.UpPath, []byte(header+up), 0o644); err != nil {
		return nil, fmt.Errorf("failed to write up migration: %w", err)
	}
	if err := os.WriteFile(mf.DownPath, []byte(header+down), 0o644); err != nil {
		return nil, fmt.Errorf("failed to write down migration: %w", err)
	}
	return mf, nil
}

// ListMigrations lists the complete up/down pairs in the directory,
// oldest first. A missing directory has no migrations.
func (g *Generator) ListMigrations() ([]MigrationFile, error) {
	entries, err := os.ReadDir(g.migrationsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []MigrationFile{}, nil
		}
		return nil, fmt.Errorf("failed to read migrations directory: %w", err)
	}

	files := make(map[string]*MigrationFile)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		fileName := entry.Name()

		version, rest, ok := strings.Cut(fileName, "_")
		if !ok {
			continue
		}

		var name string
		up := false
		if before, ok := strings.CutSuffix(rest, ".up.sql"); ok {
			name, up = before, true
		} else if before, ok := strings.CutSuffix(rest, ".down.sql"); ok {
			name = before
		} else {
			continue
		}

		mf, exists := files[version]
		if !exists {
			mf = &MigrationFile{Version: version, Name: name}
			files[version] = mf
		}
		if up {
			mf.UpPath = filepath.Join(g.migrationsDir, fileName)
		} else {
			mf.DownPath = filepath.Join(g.migrationsDir, fileName)
		}
	}

	migrations := make([]MigrationFile, 0, len(files))
	for _, mf := range files {
		if mf.UpPath != "" && mf.DownPath != "" {
			migrations = append(migrations, *mf)
		}
	}
	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})
	return migrations, nil
}

// ReadMigration reads the SQL content of a migration file pair.
func (g *Generator) ReadMigration(file MigrationFile) (*Migration, error) {
	up, err := os.ReadFile(file.UpPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read up migration: %w", err)
	}
	down, err := os.ReadFile(file.DownPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read down migration: %w", err)
	}

	return &Migration{
		Version: file.Version,
		Name:    file.Name,
		UpSQL:   string(up),
		DownSQL: string(down),
	}, nil
}

// LoadAll reads every migration in the directory, oldest first.
func (g *Generator) LoadAll() ([]Migration, error) {
	files, err := g.ListMigrations()
	if err != nil {
		return nil, err
	}
	out := make([]Migration, 0, len(files))
	for _, f := range files {
		m, err := g.ReadMigration(f)
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	return out, nil
}
