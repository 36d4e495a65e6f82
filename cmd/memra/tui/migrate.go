// Package tui holds the interactive terminal views of the memra command.
package tui

import (
	"context"
	"fmt"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/marshallshelly/memra/pkg/migration"
)

// Action is the direction of an interactive migration run.
type Action string

const (
	ActionUp   Action = "up"
	ActionDown Action = "down"
)

// Migrator is the part of migration.Executor the UI drives.
type Migrator interface {
	Up(ctx context.Context, migrations []migration.Migration, dryRun bool) ([]string, error)
	Down(ctx context.Context, migrations []migration.Migration, dryRun bool) (string, error)
	Status(ctx context.Context, migrations []migration.Migration) ([]migration.MigrationRecord, error)
}

// MigrateMode represents the current mode of the migration UI
type MigrateMode int

const (
	ModeList MigrateMode = iota
	ModeConfirm
	ModeExecuting
	ModeComplete
	ModeError
)

// MigrateModel lists migrations and runs one up or down pass after
// confirmation.
type MigrateModel struct {
	ctx          context.Context
	migrator     Migrator
	migrations   []migration.Migration
	action       Action
	mode         MigrateMode
	list         list.Model
	confirmation ConfirmationDialog
	logs         LogView
	status       []migration.MigrationRecord
	done         []string
	err          error
	width        int
	height       int
}

// NewMigrateModel creates a new migration UI model
func NewMigrateModel(ctx context.Context, m Migrator, migrations []migration.Migration, action Action) MigrateModel {
	return MigrateModel{
		ctx:        ctx,
		migrator:   m,
		migrations: migrations,
		action:     action,
		mode:       ModeList,
		list:       newList("Database Migrations", nil),
		logs:       NewLogView(10),
	}
}

type statusLoadedMsg struct {
	status []migration.MigrationRecord
}

type migrationsRanMsg struct {
	done []string
	err  error
}

type errorMsg struct {
	err error
}

func (m MigrateModel) loadStatus() tea.Msg {
	status, err := m.migrator.Status(m.ctx, m.migrations)
	if err != nil {
		return errorMsg{err: fmt.Errorf("failed to get migration status: %w", err)}
	}
	return statusLoadedMsg{status: status}
}

func (m MigrateModel) run() tea.Msg {
	if m.action == ActionUp {
		done, err := m.migrator.Up(m.ctx, m.migrations, false)
		return migrationsRanMsg{done: done, err: err}
	}
	version, err := m.migrator.Down(m.ctx, m.migrations, false)
	var done []string
	if version != "" {
		done = []string{version}
	}
	return migrationsRanMsg{done: done, err: err}
}

// Init loads the status of every migration.
func (m MigrateModel) Init() tea.Cmd {
	return m.loadStatus
}

// pending returns the versions the action would touch.
func (m MigrateModel) pending() []string {
	var out []string
	for _, r := range m.status {
		if m.action == ActionUp && r.Status != migration.StatusApplied {
			out = append(out, r.Version)
		}
		if m.action == ActionDown && r.Status == migration.StatusApplied {
			out = []string{r.Version}
		}
	}
	return out
}

// Update handles messages
func (m MigrateModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.list.SetSize(msg.Width-4, msg.Height-8)
		return m, nil

	case statusLoadedMsg:
		m.status = msg.status
		items := make([]list.Item, len(msg.status))
		for i, s := range msg.status {
			desc := "Not applied"
			if s.AppliedAt != nil {
				desc = "Applied: " + s.AppliedAt.Format("2006-01-02 15:04:05")
			}
			items[i] = item{
				title:       fmt.Sprintf("%s %s - %s", FormatStatus(string(s.Status)), s.Version, s.Name),
				description: desc,
				filter:      s.Name,
			}
		}
		m.list.SetItems(items)
		return m, nil

	case migrationsRanMsg:
		m.done = msg.done
		for _, v := range msg.done {
			m.logs.AddLog(successStyle.Render("✓ " + v))
		}
		if msg.err != nil {
			m.mode = ModeError
			m.err = msg.err
			return m, nil
		}
		m.mode = ModeComplete
		return m, nil

	case errorMsg:
		m.mode = ModeError
		m.err = msg.err
		return m, nil

	case tea.KeyMsg:
		switch m.mode {
		case ModeList:
			if m.list.FilterState() == list.Filtering {
				break
			}
			switch msg.String() {
			case "ctrl+c", "q":
				return m, tea.Quit
			case "enter", " ":
				targets := m.pending()
				if len(targets) == 0 {
					return m, nil
				}
				m.confirmation = NewConfirmationDialog(
					fmt.Sprintf("Confirm Migration %s", m.action),
					fmt.Sprintf("Run %s on %d migration(s), ending at %s?", m.action, len(targets), targets[len(targets)-1]),
				)
				m.mode = ModeConfirm
				return m, nil
			}

		case ModeConfirm:
			switch msg.String() {
			case "ctrl+c", "esc", "q":
				m.mode = ModeList
				return m, nil
			}
			decided, yes := m.confirmation.Update(msg)
			switch {
			case decided && yes:
				m.mode = ModeExecuting
				return m, m.run
			case decided:
				m.mode = ModeList
			}
			return m, nil

		case ModeComplete, ModeError:
			switch msg.String() {
			case "ctrl+c", "q", "enter":
				return m, tea.Quit
			}
		}
	}

	if m.mode == ModeList {
		var cmd tea.Cmd
		m.list, cmd = m.list.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m MigrateModel) centered(s string) string {
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, s)
}

// View renders the UI
func (m MigrateModel) View() string {
	switch m.mode {
	case ModeList:
		help := helpStyle.Render(
			FormatKey("↑/↓", "navigate") + " • " +
				FormatKey("enter", "migrate "+string(m.action)) + " • " +
				FormatKey("q", "quit"),
		)
		return lipgloss.JoinVertical(lipgloss.Left, m.list.View(), help)

	case ModeConfirm:
		return m.centered(m.confirmation.View())

	case ModeExecuting:
		return m.centered(boxStyle.Render(infoStyle.Render(fmt.Sprintf("Running migrate %s...", m.action))))

	case ModeComplete:
		msg := titleStyle.Render("Migration Complete!") + "\n\n" +
			successStyle.Render(fmt.Sprintf("Executed %d migration(s)", len(m.done))) + "\n" +
			m.logs.View() + "\n" +
			helpStyle.Render(FormatKey("enter/q", "exit"))
		return m.centered(boxStyle.Render(msg))

	case ModeError:
		msg := titleStyle.Render("Migration Failed") + "\n\n" +
			errorStyle.Render(m.err.Error()) + "\n" +
			m.logs.View() + "\n" +
			helpStyle.Render(FormatKey("enter/q", "exit"))
		return m.centered(boxStyle.Render(msg))
	}
	return "Unknown mode"
}

// Err returns the failure that ended the run, if any.
func (m MigrateModel) Err() error {
	return m.err
}

// RunMigrateUI starts the interactive migration UI
func RunMigrateUI(ctx context.Context, m Migrator, migrations []migration.Migration, action Action) error {
	final, err := tea.NewProgram(NewMigrateModel(ctx, m, migrations, action), tea.WithAltScreen()).Run()
	if err != nil {
		return err
	}
	if mm, ok := final.(MigrateModel); ok {
		return mm.Err()
	}
	return nil
}
