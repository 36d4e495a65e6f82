package commands

import (
	"bytes"
	"os"
	"path/filepath"
	goruntime "runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marshallshelly/memra/cmd/memra/output"
	"github.com/marshallshelly/memra/internal/config"
)

func repoRoot(t *testing.T) string {
	t.Helper()
	_, file, _, ok := goruntime.Caller(0)
	require.True(t, ok)
	return filepath.Join(filepath.Dir(file), "..", "..", "..")
}

// writeConfig points the command at the repository's schema definition.
func writeConfig(t *testing.T) string {
	t.Helper()
	root := repoRoot(t)
	path := filepath.Join(t.TempDir(), "memra.yaml")
	body := "schema: " + filepath.Join(root, "schema", "memra.yaml") + "\n" +
		"models: " + filepath.Join(root, "internal", "models") + "\n" +
		"migrations_dir: " + filepath.Join(t.TempDir(), "migrations") + "\n" +
		"auth:\n  keys:\n    - {id: k1, algorithm: HS256, secret: test}\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	output.Out = &buf
	t.Cleanup(func() { output.Out = os.Stdout })

	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs(append([]string{"--config", writeConfig(t)}, args...))
	err := rootCmd.Execute()
	return buf.String(), err
}

func TestDDL(t *testing.T) {
	out, err := run(t, "ddl")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(out, `CREATE TABLE "users" (`))
	assert.Contains(t, out, `"user_id" bigint NOT NULL REFERENCES "users" ("id")`)
	assert.Contains(t, out, `CREATE TABLE "coursedecks" (`)
	assert.Less(t, strings.Index(out, `"decks"`), strings.Index(out, `"cards"`))
}

func TestDDL_FromSources(t *testing.T) {
	fromDefinition, err := run(t, "ddl")
	require.NoError(t, err)

	fromSources, err := run(t, "ddl", "--go")
	t.Cleanup(func() { ddlGo = false })
	require.NoError(t, err)
	assert.Equal(t, fromDefinition, fromSources)
}

func TestInspectApp(t *testing.T) {
	out, err := run(t, "inspect", "--app")
	require.NoError(t, err)

	assert.Contains(t, out, "coursedecks")
	assert.Contains(t, out, "find_followers")
	assert.Contains(t, out, "/api/course/:id")
	assert.Contains(t, out, "read_if_visible")
	assert.NotContains(t, out, "/api/credentials")
}

func TestGenerate(t *testing.T) {
	dir := t.TempDir()
	out, err := run(t, "generate", "--output", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "13 entities")

	for _, name := range []string{"memra.go", "course.go", "course_deck.go", "follower.go"} {
		assert.FileExists(t, filepath.Join(dir, name))
	}
}

func TestTokenByID(t *testing.T) {
	out, err := run(t, "token", "--id", "7")
	t.Cleanup(func() { tokenUserID = 0 })
	require.NoError(t, err)
	assert.Len(t, strings.Split(strings.TrimSpace(out), "."), 3, "a compact JWT")
}

func TestToken_NeedsUser(t *testing.T) {
	_, err := run(t, "token")
	require.Error(t, err)
	assert.Equal(t, config.ExitGeneral, config.ExitCode(err))
}

func TestConfigShow(t *testing.T) {
	out, err := run(t, "config", "show", "--source")
	require.NoError(t, err)
	assert.Contains(t, out, "Config file: ")
	assert.Contains(t, out, "api_prefix: /api")
}

func TestBadConfig(t *testing.T) {
	rootCmd.SetArgs([]string{"--config", filepath.Join(t.TempDir(), "missing.yaml"), "ddl"})
	err := rootCmd.Execute()
	require.Error(t, err)
	assert.Equal(t, config.ExitConfig, config.ExitCode(err))
}
