package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marshallshelly/memra/internal/config"
	"github.com/marshallshelly/memra/pkg/migration"
)

var (
	ddlSchema string
	ddlModels string
	ddlGo     bool
	ddlDown   bool
)

var ddlCmd = &cobra.Command{
	Use:   "ddl",
	Short: "Print the DDL for the entity set",
	Long: `Print CREATE TABLE statements for every entity, foreign key targets first.
With --down, print the DROP statements in reverse order instead.`,
	Example: `  # Tables of the schema definition
  memra ddl

  # Tables of the configured models package, read from source
  memra ddl --go`,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, reg, err := source{schemaPath: ddlSchema, modelsPath: ddlModels, fromModels: ddlGo}.build()
		if err != nil {
			return err
		}

		up, down, err := migration.Plan(reg.Entities())
		if err != nil {
			return config.SchemaError("planning tables", err)
		}
		if ddlDown {
			fmt.Fprint(cmd.OutOrStdout(), down)
			return nil
		}
		fmt.Fprint(cmd.OutOrStdout(), up)
		return nil
	},
}

func init() {
	ddlCmd.Flags().StringVar(&ddlSchema, "schema", "", "schema definition (default: config schema)")
	ddlCmd.Flags().StringVar(&ddlModels, "models", "", "read entities from Go sources under this path")
	ddlCmd.Flags().BoolVar(&ddlGo, "go", false, "read entities from the configured models package")
	ddlCmd.Flags().BoolVar(&ddlDown, "down", false, "print DROP statements")
}
