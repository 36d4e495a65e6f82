package loader

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/marshallshelly/memra/pkg/registry"
	"github.com/marshallshelly/memra/pkg/schema"
)

const modelsSource = `package models

import (
	"database/sql"
	"time"

	"github.com/marshallshelly/memra/pkg/schema"
)

type User struct {
	schema.Model
	Username string ` + "`memra:\"username\"`" + `
	RealName sql.NullString
	Verified *bool
	cache    string
}

type History struct {
	schema.Model
	UserID       int64 ` + "`memra:\"user_id,foreign(User),owner\"`" + `
	Ts           time.Time
	NumCorrect   int32
	Notes        string ` + "`memra:\"-\"`" + `
}

func (History) TableName() string { return "history" }

// helper is not a model.
type helper struct {
	Name string
}
`

func writeFile(t *testing.T, dir, name, src string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "models.go", modelsSource)
	writeFile(t, dir, "models_test.go", "package models\n\nthis is not go")

	entities, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(entities) != 2 {
		t.Fatalf("Expected 2 entities, got %d", len(entities))
	}

	user := entities[0]
	if user.Name != "User" || user.Table != "users" {
		t.Errorf("Unexpected user entity %s/%s", user.Name, user.Table)
	}
	wantCols := []string{"id", "username", "real_name", "verified"}
	if got := user.Columns(); len(got) != len(wantCols) {
		t.Fatalf("Expected columns %v, got %v", wantCols, got)
	} else {
		for i := range wantCols {
			if got[i] != wantCols[i] {
				t.Errorf("Column %d = %s, want %s", i, got[i], wantCols[i])
			}
		}
	}
	if f, _ := user.Field("real_name"); f.Type != schema.Text || !f.Nullable {
		t.Errorf("real_name should be nullable text, got %s nullable=%v", f.Type, f.Nullable)
	}
	if f, _ := user.Field("verified"); f.Type != schema.Bool || !f.Nullable {
		t.Errorf("verified should be nullable bool, got %s nullable=%v", f.Type, f.Nullable)
	}

	history := entities[1]
	if history.Table != "history" {
		t.Errorf("Expected TableName override, got %s", history.Table)
	}
	if _, ok := history.Field("notes"); ok {
		t.Error("Skipped field should not be a column")
	}
	if f, _ := history.Field("ts"); f.Type != schema.Timestamp {
		t.Errorf("ts should be a timestamp, got %s", f.Type)
	}
	if f, _ := history.Field("num_correct"); f.Type != schema.Int {
		t.Errorf("num_correct should be int, got %s", f.Type)
	}
	if owner := history.OwnerField(); owner == nil || owner.Name != "user_id" {
		t.Error("user_id should be the owner field")
	}
}

func TestLoadInto(t *testing.T) {
	path := writeFile(t, t.TempDir(), "models.go", modelsSource)

	reg := registry.NewRegistry()
	n, err := LoadInto(path, reg)
	if err != nil {
		t.Fatalf("LoadInto failed: %v", err)
	}
	if n != 2 {
		t.Errorf("Expected 2 registered, got %d", n)
	}
	if err := reg.Build(); err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if len(reg.Edges()) != 1 {
		t.Errorf("Expected 1 edge, got %d", len(reg.Edges()))
	}

	// Descriptors are rebuilt on every load.
	if _, err := LoadInto(path, registry.NewRegistry()); err != nil {
		t.Errorf("Fresh registry should accept the models: %v", err)
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		kind error
	}{
		{
			name: "unmapped type",
			src:  "package m\n\ntype A struct {\n\tModel\n\tTags []string\n}\n",
			kind: schema.ErrInvalidField,
		},
		{
			name: "no fields",
			src:  "package m\n\ntype A struct {\n\tModel\n\tname string\n}\n",
			kind: schema.ErrNotNamedFields,
		},
		{
			name: "foreign key not integer",
			src:  "package m\n\ntype A struct {\n\tModel\n\tBID string `memra:\"b_id,foreign(B)\"`\n}\n",
			kind: schema.ErrInvalidField,
		},
		{
			name: "other embedding",
			src:  "package m\n\ntype A struct {\n\tModel\n\tBase\n\tName string\n}\n",
			kind: schema.ErrInvalidField,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, t.TempDir(), "m.go", tt.src)
			_, err := Load(path)
			if !errors.Is(err, tt.kind) {
				t.Errorf("Expected %v, got %v", tt.kind, err)
			}
		})
	}

	t.Run("not go", func(t *testing.T) {
		path := writeFile(t, t.TempDir(), "m.txt", "")
		if _, err := Load(path); err == nil {
			t.Error("Expected error for non-Go file")
		}
	})

	t.Run("empty dir", func(t *testing.T) {
		if _, err := Load(t.TempDir()); err == nil {
			t.Error("Expected error for empty directory")
		}
	})
}
