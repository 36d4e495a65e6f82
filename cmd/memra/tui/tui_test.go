package tui

import (
	"context"
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marshallshelly/memra/pkg/migration"
)

type fakeMigrator struct {
	status []migration.MigrationRecord
	upErr  error
	ups    int
	downs  int
}

func (f *fakeMigrator) Up(context.Context, []migration.Migration, bool) ([]string, error) {
	f.ups++
	var done []string
	for _, r := range f.status {
		if r.Status != migration.StatusApplied {
			done = append(done, r.Version)
		}
	}
	return done, f.upErr
}

func (f *fakeMigrator) Down(context.Context, []migration.Migration, bool) (string, error) {
	f.downs++
	return "20250101000000", nil
}

func (f *fakeMigrator) Status(context.Context, []migration.Migration) ([]migration.MigrationRecord, error) {
	return f.status, nil
}

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

// step feeds msg and runs the returned command once, feeding its result.
func step(t *testing.T, m tea.Model, msg tea.Msg) tea.Model {
	t.Helper()
	m, cmd := m.Update(msg)
	if cmd != nil {
		if next := cmd(); next != nil {
			if _, quit := next.(tea.QuitMsg); !quit {
				m, _ = m.Update(next)
			}
		}
	}
	return m
}

func newMigrate(t *testing.T, f *fakeMigrator, action Action) tea.Model {
	t.Helper()
	m := NewMigrateModel(context.Background(), f, nil, action)
	var model tea.Model = m
	model, _ = model.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	return step(t, model, m.loadStatus())
}

func TestMigrateModel_Up(t *testing.T) {
	f := &fakeMigrator{status: []migration.MigrationRecord{
		{Version: "20250101000000", Name: "create_tables", Status: migration.StatusApplied},
		{Version: "20250102000000", Name: "backfill", Status: migration.StatusPending},
	}}
	m := newMigrate(t, f, ActionUp)

	m = step(t, m, key("enter"))
	require.Equal(t, ModeConfirm, m.(MigrateModel).mode)
	assert.Contains(t, m.View(), "20250102000000")

	// No is preselected.
	m = step(t, m, key("enter"))
	assert.Equal(t, ModeList, m.(MigrateModel).mode)
	assert.Zero(t, f.ups)

	m = step(t, m, key("enter"))
	m = step(t, m, key("y"))
	m = step(t, m, key("enter"))
	require.Equal(t, ModeComplete, m.(MigrateModel).mode)
	assert.Equal(t, 1, f.ups)
	assert.Equal(t, []string{"20250102000000"}, m.(MigrateModel).done)
	assert.Contains(t, m.View(), "Migration Complete!")
}

func TestMigrateModel_Failure(t *testing.T) {
	f := &fakeMigrator{
		status: []migration.MigrationRecord{{Version: "20250101000000", Name: "create_tables", Status: migration.StatusPending}},
		upErr:  errors.New("syntax error"),
	}
	m := newMigrate(t, f, ActionUp)

	m = step(t, m, key("enter"))
	m = step(t, m, key("y"))
	m = step(t, m, key("enter"))
	require.Equal(t, ModeError, m.(MigrateModel).mode)
	assert.EqualError(t, m.(MigrateModel).Err(), "syntax error")
}

func TestMigrateModel_NothingToRollBack(t *testing.T) {
	f := &fakeMigrator{status: []migration.MigrationRecord{
		{Version: "20250101000000", Name: "create_tables", Status: migration.StatusPending},
	}}
	m := newMigrate(t, f, ActionDown)

	m = step(t, m, key("enter"))
	assert.Equal(t, ModeList, m.(MigrateModel).mode)
	assert.Zero(t, f.downs)
}

func TestInspectModel(t *testing.T) {
	views := []EntityView{
		{
			Name:   "Course",
			Table:  "courses",
			Fields: Table{Headers: []string{"COLUMN", "TYPE", "FLAGS"}, Rows: [][]string{{"id", "bigint", "primary key"}}},
			Routes: Table{Headers: []string{"METHOD", "PATH", "POLICY"}, Rows: [][]string{{"GET", "/api/course/:id", "read_if_visible"}}},
		},
	}
	var m tea.Model = NewInspectModel(views)
	m, _ = m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	assert.Contains(t, m.View(), "Course")

	m, _ = m.Update(key("enter"))
	require.True(t, m.(InspectModel).open)
	view := m.View()
	assert.Contains(t, view, "/api/course/:id")
	assert.True(t, strings.Contains(view, "Relations"))

	m, _ = m.Update(key("esc"))
	assert.False(t, m.(InspectModel).open)
}

func TestStyles(t *testing.T) {
	assert.Contains(t, FormatStatus(string(migration.StatusFailed)), "✗ failed")
	assert.Contains(t, FormatStatus(string(migration.StatusPending)), "○ pending")
	assert.Contains(t, FormatKey("q", "quit"), "quit")

	out := renderTable([]string{"METHOD", "PATH"}, [][]string{{"GET", "/course/:id"}})
	assert.Contains(t, out, "METHOD")
	assert.Contains(t, out, "/course/:id")
}
