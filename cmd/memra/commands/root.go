package commands

import (
	"github.com/spf13/cobra"

	"github.com/marshallshelly/memra/cmd/memra/output"
	"github.com/marshallshelly/memra/internal/config"
)

// Version is stamped at build time.
var Version = "0.1.0"

var (
	// Set during PersistentPreRunE.
	cfg        *config.Config
	configPath string

	// Persistent flags
	cfgFile    string
	quiet      bool
	jsonOutput bool
)

var rootCmd = &cobra.Command{
	Use:   "memra",
	Short: "Schema-to-handler compiler for PostgreSQL backed APIs",
	Long: `memra compiles entity definitions into SQL statements, relation accessors,
ownership-gated handlers and a route table.

Features:
  - Go source generation from a YAML schema
  - DDL and versioned migrations from entity descriptors
  - Owner and visibility policies per entity
  - A gin server for the built-in application entities
  - Interactive browser for entities, relations and routes`,
	Version: Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "help" || cmd.Name() == "completion" || cmd.Name() == "version" {
			return nil
		}
		output.Quiet = quiet

		var err error
		cfg, configPath, err = config.Load(cfgFile)
		if err != nil {
			return config.ConfigError("loading configuration", err)
		}
		return nil
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Command group IDs
const (
	groupSchema   = "schema"
	groupDatabase = "database"
	groupServer   = "server"
	groupUtility  = "utility"
)

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: auto-discover memra.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress non-error output")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format where supported")

	rootCmd.AddGroup(
		&cobra.Group{ID: groupSchema, Title: "Schema:"},
		&cobra.Group{ID: groupDatabase, Title: "Database:"},
		&cobra.Group{ID: groupServer, Title: "Server:"},
		&cobra.Group{ID: groupUtility, Title: "Utility:"},
	)

	generateCmd.GroupID = groupSchema
	ddlCmd.GroupID = groupSchema
	inspectCmd.GroupID = groupSchema
	rootCmd.AddCommand(generateCmd, ddlCmd, inspectCmd)

	migrateCmd.GroupID = groupDatabase
	rootCmd.AddCommand(migrateCmd)

	serveCmd.GroupID = groupServer
	tokenCmd.GroupID = groupServer
	rootCmd.AddCommand(serveCmd, tokenCmd)

	configCmd.GroupID = groupUtility
	versionCmd.GroupID = groupUtility
	rootCmd.AddCommand(configCmd, versionCmd)
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		config.ExitWithError(err)
	}
}

// resolveString returns the first non-empty value, so flags can take
// precedence over configuration.
func resolveString(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
