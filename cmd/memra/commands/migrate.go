package commands

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marshallshelly/memra/cmd/memra/output"
	"github.com/marshallshelly/memra/cmd/memra/tui"
	"github.com/marshallshelly/memra/internal/config"
	"github.com/marshallshelly/memra/pkg/migration"
)

var (
	migrationsDir  string
	dryRun         bool
	interactive    bool
	emptyMigration bool
	migrateSource  source
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Generate and run database migrations",
	Long: `Generate versioned migrations from the entity set and apply them.

Subcommands:
  generate - Write a new migration pair
  up       - Apply pending migrations
  down     - Roll back the last applied migration
  status   - Show migration status`,
}

var migrateGenerateCmd = &cobra.Command{
	Use:   "generate <name>",
	Short: "Write a new migration pair",
	Long: `Write {version}_{name}.up.sql and .down.sql creating (and dropping) every
table of the entity set.`,
	Example: `  memra migrate generate create_tables
  memra migrate generate create_tables --go
  memra migrate generate backfill --empty`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		gen := migration.NewGenerator(migrationsDirectory())

		var (
			file *migration.MigrationFile
			err  error
		)
		if emptyMigration {
			file, err = gen.GenerateEmpty(args[0])
		} else {
			_, reg, lerr := migrateSource.build()
			if lerr != nil {
				return lerr
			}
			file, err = gen.Generate(args[0], reg.Entities())
		}
		if err != nil {
			return config.GeneralError("generating migration", err)
		}

		output.Success("Created %s", file.UpPath)
		output.Success("Created %s", file.DownPath)
		return nil
	},
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply pending migrations",
	Example: `  memra migrate up
  memra migrate up --dry-run
  memra migrate up -i`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withExecutor(cmd.Context(), func(ctx context.Context, exec *migration.Executor, migrations []migration.Migration) error {
			if interactive {
				return tui.RunMigrateUI(ctx, exec, migrations, tui.ActionUp)
			}

			done, err := exec.Up(ctx, migrations, dryRun)
			if err != nil {
				output.Error("Migration failed: %v", err)
				return config.GeneralError("applying migrations", err)
			}
			if len(done) == 0 {
				output.Info("No pending migrations")
				return nil
			}

			verb := "Applied"
			if dryRun {
				output.Section("DRY RUN - Preview")
				verb = "Would apply"
			}
			for _, v := range done {
				output.Success("%s %s", verb, v)
			}
			return nil
		})
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back the last applied migration",
	Example: `  memra migrate down
  memra migrate down --dry-run`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withExecutor(cmd.Context(), func(ctx context.Context, exec *migration.Executor, migrations []migration.Migration) error {
			if interactive {
				return tui.RunMigrateUI(ctx, exec, migrations, tui.ActionDown)
			}

			version, err := exec.Down(ctx, migrations, dryRun)
			if err != nil {
				output.Error("Rollback failed: %v", err)
				return config.GeneralError("rolling back", err)
			}
			switch {
			case version == "":
				output.Info("No migrations to roll back")
			case dryRun:
				output.Warning("Would roll back %s", version)
			default:
				output.Success("Rolled back %s", version)
			}
			return nil
		})
	},
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show migration status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withExecutor(cmd.Context(), func(ctx context.Context, exec *migration.Executor, migrations []migration.Migration) error {
			status, err := exec.Status(ctx, migrations)
			if err != nil {
				return config.GeneralError("reading migration status", err)
			}

			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(status)
			}

			if len(status) == 0 {
				output.Warning("No migrations found in %s", migrationsDirectory())
				return nil
			}

			counts := make(map[migration.MigrationStatus]int)
			rows := make([][]string, 0, len(status))
			for _, r := range status {
				appliedAt := "N/A"
				if r.AppliedAt != nil {
					appliedAt = r.AppliedAt.Format("2006-01-02 15:04:05")
				}
				counts[r.Status]++
				rows = append(rows, []string{r.Version, r.Name, output.StatusIcon(string(r.Status)) + " " + string(r.Status), appliedAt})
			}
			output.PrintTable([]string{"VERSION", "NAME", "STATUS", "APPLIED AT"}, rows)

			summary := fmt.Sprintf("%d applied, %d pending", counts[migration.StatusApplied], counts[migration.StatusPending])
			if n := counts[migration.StatusFailed]; n > 0 {
				summary += fmt.Sprintf(", %d failed", n)
			}
			output.Muted("Summary: %s", summary)
			return nil
		})
	},
}

func init() {
	migrateCmd.AddCommand(migrateGenerateCmd, migrateUpCmd, migrateDownCmd, migrateStatusCmd)
	migrateCmd.PersistentFlags().StringVar(&migrationsDir, "migrations-dir", "", "directory for migration files (default: config migrations_dir)")

	migrateGenerateCmd.Flags().BoolVar(&emptyMigration, "empty", false, "write empty up and down files")
	migrateGenerateCmd.Flags().StringVar(&migrateSource.schemaPath, "schema", "", "schema definition (default: config schema)")
	migrateGenerateCmd.Flags().StringVar(&migrateSource.modelsPath, "models", "", "read entities from Go sources under this path")
	migrateGenerateCmd.Flags().BoolVar(&migrateSource.fromModels, "go", false, "read entities from the configured models package")

	for _, c := range []*cobra.Command{migrateUpCmd, migrateDownCmd} {
		c.Flags().BoolVar(&dryRun, "dry-run", false, "preview without executing")
		c.Flags().BoolVarP(&interactive, "interactive", "i", false, "run in interactive mode")
	}
}

func migrationsDirectory() string {
	return resolveString(migrationsDir, cfg.MigrationsDir)
}

// withExecutor connects, prepares the tracking table and loads the
// migrations on disk before running fn.
func withExecutor(ctx context.Context, fn func(context.Context, *migration.Executor, []migration.Migration) error) error {
	migrations, err := migration.NewGenerator(migrationsDirectory()).LoadAll()
	if err != nil {
		return config.GeneralError("loading migrations", err)
	}

	db, err := connect(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	exec := migration.NewExecutor(db.Pool())
	if err := exec.Initialize(ctx); err != nil {
		return config.DBConnectError("preparing migration table", err)
	}
	return fn(ctx, exec, migrations)
}
