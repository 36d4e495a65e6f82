package commands

import (
	"github.com/spf13/cobra"

	"github.com/marshallshelly/memra/cmd/memra/output"
	"github.com/marshallshelly/memra/internal/config"
	"github.com/marshallshelly/memra/pkg/codegen"
)

var (
	generateSchema  string
	generateOutput  string
	generatePackage string
	generateWorkers int
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate Go models from a schema definition",
	Long: `Generate Go source from a YAML schema definition: one file per entity with
its struct, statement constants, relation accessors and constructor, plus a
shared file listing the models and their policies.`,
	Example: `  # Generate into the configured output directory
  memra generate

  # Generate from another definition into ./gen
  memra generate --schema schema/app.yaml --output gen --package gen`,
	RunE: func(cmd *cobra.Command, args []string) error {
		def, entities, err := source{schemaPath: generateSchema}.load()
		if err != nil {
			return err
		}

		gen, err := codegen.FromDefinition(codegen.Config{
			Package: resolveString(generatePackage, cfg.Generate.Package),
			OutDir:  resolveString(generateOutput, cfg.Generate.Output),
			Workers: max(generateWorkers, cfg.Generate.Workers),
		}, def, entities)
		if err != nil {
			return config.SchemaError("preparing generator", err)
		}

		if err := gen.Generate(cmd.Context()); err != nil {
			return config.GeneralError("generating code", err)
		}

		for _, path := range gen.Written() {
			output.Success("Wrote %s", path)
		}
		output.Info("%d entities, %d relations", len(entities), len(gen.Edges()))
		return nil
	},
}

func init() {
	generateCmd.Flags().StringVar(&generateSchema, "schema", "", "schema definition (default: config schema)")
	generateCmd.Flags().StringVarP(&generateOutput, "output", "o", "", "output directory (default: config generate.output)")
	generateCmd.Flags().StringVar(&generatePackage, "package", "", "package name (default: definition package)")
	generateCmd.Flags().IntVar(&generateWorkers, "workers", 0, "parallel render workers (default: GOMAXPROCS)")
}
