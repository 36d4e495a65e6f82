package codegen

import (
	"context"
	"go/types"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/tools/go/packages"

	"github.com/marshallshelly/memra/pkg/schema"
)

// The application definition renders to a package that type-checks
// against the memra libraries.
func TestGenerate_TypeChecks(t *testing.T) {
	if testing.Short() {
		t.Skip("type-checking invokes the go command")
	}
	if _, err := exec.LookPath("go"); err != nil {
		t.Skip("go command not available")
	}

	def, entities, err := schema.LoadDefinitionFile(filepath.Join("..", "..", "schema", "memra.yaml"))
	require.NoError(t, err)

	// Inside the module so imports of memra packages resolve.
	require.NoError(t, os.MkdirAll("testdata", 0o755))
	dir, err := os.MkdirTemp("testdata", "generated")
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = os.RemoveAll(dir)
		_ = os.Remove("testdata")
	})

	g, err := FromDefinition(Config{OutDir: dir, Workers: 4}, def, entities)
	require.NoError(t, err)
	require.NoError(t, g.Generate(context.Background()))

	abs, err := filepath.Abs(dir)
	require.NoError(t, err)
	pkgs, err := packages.Load(&packages.Config{
		Mode: packages.NeedName | packages.NeedTypes | packages.NeedSyntax | packages.NeedTypesInfo,
		Dir:  abs,
	}, ".")
	require.NoError(t, err)
	require.Len(t, pkgs, 1)

	pkg := pkgs[0]
	for _, e := range pkg.Errors {
		t.Errorf("generated code: %v", e)
	}
	require.Empty(t, pkg.Errors)
	assert.Equal(t, "models", pkg.Name)

	scope := pkg.Types.Scope()
	t.Run("constructor", func(t *testing.T) {
		obj, ok := scope.Lookup("NewCourse").(*types.Func)
		require.True(t, ok)
		sig := obj.Type().(*types.Signature)
		require.Equal(t, 2, sig.Params().Len())
		assert.Equal(t, "github.com/marshallshelly/memra/pkg/construct.Ref", sig.Params().At(1).Type().String())
		require.Equal(t, 2, sig.Results().Len())
		assert.Equal(t, "*"+pkg.PkgPath+".Course", sig.Results().At(0).Type().String())
		assert.Equal(t, "bool", sig.Results().At(1).Type().String())
	})

	t.Run("accessors", func(t *testing.T) {
		card := scope.Lookup("Card")
		require.NotNil(t, card)
		m, _, _ := types.LookupFieldOrMethod(types.NewPointer(card.Type()), false, pkg.Types, "GetDeck")
		require.NotNil(t, m)
		assert.Equal(t, "*"+pkg.PkgPath+".Deck", m.Type().(*types.Signature).Results().At(0).Type().String())

		user := scope.Lookup("User")
		require.NotNil(t, user)
		m, _, _ = types.LookupFieldOrMethod(types.NewPointer(user.Type()), false, pkg.Types, "FindFollowers")
		assert.NotNil(t, m)
	})

	t.Run("shared", func(t *testing.T) {
		assert.NotNil(t, scope.Lookup("Models"))
		assert.NotNil(t, scope.Lookup("Policies"))
	})
}
