package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/marshallshelly/memra/cmd/memra/output"
	"github.com/marshallshelly/memra/cmd/memra/tui"
	"github.com/marshallshelly/memra/internal/config"
	"github.com/marshallshelly/memra/internal/models"
	"github.com/marshallshelly/memra/pkg/handler"
	"github.com/marshallshelly/memra/pkg/registry"
	"github.com/marshallshelly/memra/pkg/relation"
	"github.com/marshallshelly/memra/pkg/schema"
)

var (
	inspectSource      source
	inspectApp         bool
	inspectInteractive bool
)

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Show entities, relations and routes",
	Long: `Show every entity with its fields, the relation accessors it gains and the
routes its policies produce.

Entities come from the schema definition by default, from Go sources with
--models or --go, or from the built-in application with --app.`,
	Example: `  memra inspect
  memra inspect --app -i
  memra inspect --models internal/models`,
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, policies, err := inspectTarget()
		if err != nil {
			return err
		}

		views, err := entityViews(reg, policies, cfg.APIPrefix)
		if err != nil {
			return err
		}

		if inspectInteractive {
			return tui.RunInspectUI(views)
		}

		output.Section("Entities")
		rows := make([][]string, 0, len(views))
		for _, v := range views {
			rows = append(rows, []string{v.Name, v.Table, fmt.Sprint(len(v.Fields.Rows)), fmt.Sprint(len(v.Relations.Rows)), fmt.Sprint(len(v.Routes.Rows))})
		}
		output.PrintTable([]string{"ENTITY", "TABLE", "FIELDS", "RELATIONS", "ROUTES"}, rows)

		output.Section("Relations")
		rows = rows[:0]
		for _, e := range reg.Edges() {
			rows = append(rows, []string{e.Source.Name + "." + e.Field.Name, e.Target.Name, e.Forward, e.Reverse})
		}
		output.PrintTable([]string{"FOREIGN KEY", "TARGET", "FORWARD", "REVERSE"}, rows)

		output.Section("Routes")
		rows = rows[:0]
		for _, v := range views {
			rows = append(rows, v.Routes.Rows...)
		}
		if len(rows) == 0 {
			output.Muted("No policies declared")
			return nil
		}
		output.PrintTable([]string{"METHOD", "PATH", "POLICY"}, rows)
		return nil
	},
}

func init() {
	inspectCmd.Flags().StringVar(&inspectSource.schemaPath, "schema", "", "schema definition (default: config schema)")
	inspectCmd.Flags().StringVar(&inspectSource.modelsPath, "models", "", "read entities from Go sources under this path")
	inspectCmd.Flags().BoolVar(&inspectSource.fromModels, "go", false, "read entities from the configured models package")
	inspectCmd.Flags().BoolVar(&inspectApp, "app", false, "inspect the built-in application entities")
	inspectCmd.Flags().BoolVarP(&inspectInteractive, "interactive", "i", false, "browse interactively")
	inspectCmd.MarkFlagsMutuallyExclusive("app", "models", "go", "schema")
}

// inspectTarget resolves the registry and the policies per entity name.
func inspectTarget() (*registry.Registry, map[string][]handler.Policy, error) {
	if inspectApp {
		reg, err := models.Registry()
		if err != nil {
			return nil, nil, config.SchemaError("building application registry", err)
		}
		return reg, models.Policies, nil
	}

	def, reg, err := inspectSource.build()
	if err != nil {
		return nil, nil, err
	}
	policies, err := definitionPolicies(def)
	if err != nil {
		return nil, nil, config.SchemaError("reading policies", err)
	}
	return reg, policies, nil
}

func definitionPolicies(def *schema.Definition) (map[string][]handler.Policy, error) {
	out := make(map[string][]handler.Policy)
	if def == nil {
		return out, nil
	}
	for _, ed := range def.Entities {
		for _, name := range ed.Policies {
			p, err := handler.ParsePolicy(name)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", ed.Name, err)
			}
			out[ed.Name] = append(out[ed.Name], p)
		}
	}
	return out, nil
}

// entityViews describes every entity in registration order. Policies an
// entity cannot carry are reported as schema errors.
func entityViews(reg *registry.Registry, policies map[string][]handler.Policy, prefix string) ([]tui.EntityView, error) {
	edges := reg.Edges()
	views := make([]tui.EntityView, 0, len(reg.Entities()))

	for _, e := range reg.Entities() {
		v := tui.EntityView{
			Name:      e.Name,
			Table:     e.Table,
			Fields:    tui.Table{Headers: []string{"COLUMN", "TYPE", "FLAGS"}},
			Relations: tui.Table{Headers: []string{"ACCESSOR", "RETURNS", "VIA"}},
			Routes:    tui.Table{Headers: []string{"METHOD", "PATH", "POLICY"}},
		}
		for _, f := range e.Fields {
			v.Fields.Rows = append(v.Fields.Rows, []string{f.Name, string(f.Type), fieldFlags(f)})
		}
		v.Relations.Rows = relationRows(e, edges)

		for _, p := range policies[e.Name] {
			if p.NeedsOwner() && e.OwnerField() == nil {
				return nil, config.SchemaError(fmt.Sprintf("policy %s on %s", p, e.Name), schema.ErrInvalidField)
			}
			if p.NeedsVisibility() && e.VisibilityField() == nil {
				return nil, config.SchemaError(fmt.Sprintf("policy %s on %s", p, e.Name), schema.ErrInvalidField)
			}
			path := strings.TrimSuffix(prefix, "/") + e.Prefix() + p.Path()
			v.Routes.Rows = append(v.Routes.Rows, []string{p.Method(), path, p.String()})
		}
		views = append(views, v)
	}
	return views, nil
}

func relationRows(e *schema.Entity, edges []relation.Edge) [][]string {
	var rows [][]string
	for _, edge := range edges {
		if edge.Source.Name == e.Name {
			rows = append(rows, []string{edge.Forward, edge.Target.Name, edge.Field.Name})
		}
	}
	for _, edge := range edges {
		if edge.Target.Name == e.Name {
			rows = append(rows, []string{edge.Reverse, "[]" + edge.Source.Name, edge.Source.Name + "." + edge.Field.Name})
		}
	}
	return rows
}

func fieldFlags(f schema.Field) string {
	var flags []string
	if f.PrimaryKey {
		flags = append(flags, "primary key")
	}
	if f.Nullable {
		flags = append(flags, "nullable")
	}
	if f.Relation != nil {
		flags = append(flags, "→ "+f.Relation.Target)
	}
	if f.Owner {
		flags = append(flags, "owner")
	}
	if f.Visibility {
		flags = append(flags, "visibility")
	}
	return strings.Join(flags, ", ")
}
