// Package loader builds entity descriptors straight from Go source files,
// without compiling them, so the CLI can inspect a models package.
package loader

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"

	"github.com/marshallshelly/memra/pkg/schema"
)

// EntityRegistrar accepts descriptors, as registry.Registry does.
type EntityRegistrar interface {
	RegisterEntity(e *schema.Entity) error
}

// LoadInto loads every entity under path and registers it.
func LoadInto(path string, registrar EntityRegistrar) (int, error) {
	entities, err := Load(path)
	if err != nil {
		return 0, err
	}
	for i, e := range entities {
		if err := registrar.RegisterEntity(e); err != nil {
			return i, fmt.Errorf("failed to register %s: %w", e.Name, err)
		}
	}
	return len(entities), nil
}

// Load scans a .go file or a directory tree for structs embedding
// schema.Model and returns their descriptors in file then declaration
// order. Test files are skipped. A TableName method returning a string
// literal overrides the default table name.
func Load(path string) ([]*schema.Entity, error) {
	files, err := goFiles(path)
	if err != nil {
		return nil, err
	}

	fset := token.NewFileSet()
	var structs []model
	tables := make(map[string]string)

	for _, file := range files {
		node, err := parser.ParseFile(fset, file, nil, parser.SkipObjectResolution)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", file, err)
		}
		structs = append(structs, models(node)...)
		for name, table := range tableNames(node) {
			tables[name] = table
		}
	}

	entities := make([]*schema.Entity, 0, len(structs))
	for _, m := range structs {
		e, err := m.entity(tables[m.name])
		if err != nil {
			return nil, err
		}
		entities = append(entities, e)
	}
	return entities, nil
}

func goFiles(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat path: %w", err)
	}

	if !info.IsDir() {
		if !strings.HasSuffix(path, ".go") {
			return nil, fmt.Errorf("file must have .go extension")
		}
		return []string{path}, nil
	}

	var files []string
	err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(d.Name(), ".go") && !strings.HasSuffix(d.Name(), "_test.go") {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk directory: %w", err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no .go files found in %s", path)
	}
	return files, nil
}

type model struct {
	name   string
	fields []*ast.Field
}

// models returns the struct types of a file that embed schema.Model.
func models(file *ast.File) []model {
	var out []model
	for _, decl := range file.Decls {
		gen, ok := decl.(*ast.GenDecl)
		if !ok || gen.Tok != token.TYPE {
			continue
		}
		for _, spec := range gen.Specs {
			ts, ok := spec.(*ast.TypeSpec)
			if !ok {
				continue
			}
			st, ok := ts.Type.(*ast.StructType)
			if !ok || !embedsModel(st) {
				continue
			}
			out = append(out, model{name: ts.Name.Name, fields: st.Fields.List})
		}
	}
	return out
}

func embedsModel(st *ast.StructType) bool {
	for _, f := range st.Fields.List {
		if len(f.Names) == 0 && isModel(f.Type) {
			return true
		}
	}
	return false
}

func isModel(expr ast.Expr) bool {
	switch t := expr.(type) {
	case *ast.Ident:
		return t.Name == "Model"
	case *ast.SelectorExpr:
		return t.Sel.Name == "Model"
	}
	return false
}

// tableNames collects TableName methods whose body returns a literal.
func tableNames(file *ast.File) map[string]string {
	out := make(map[string]string)
	for _, decl := range file.Decls {
		fn, ok := decl.(*ast.FuncDecl)
		if !ok || fn.Recv == nil || fn.Name.Name != "TableName" || fn.Body == nil || len(fn.Body.List) != 1 {
			continue
		}
		ret, ok := fn.Body.List[0].(*ast.ReturnStmt)
		if !ok || len(ret.Results) != 1 {
			continue
		}
		lit, ok := ret.Results[0].(*ast.BasicLit)
		if !ok || lit.Kind != token.STRING {
			continue
		}
		value, err := strconv.Unquote(lit.Value)
		if err != nil {
			continue
		}
		if recv := receiverName(fn.Recv.List[0].Type); recv != "" {
			out[recv] = value
		}
	}
	return out
}

func receiverName(expr ast.Expr) string {
	switch t := expr.(type) {
	case *ast.Ident:
		return t.Name
	case *ast.StarExpr:
		return receiverName(t.X)
	}
	return ""
}

func (m model) entity(table string) (*schema.Entity, error) {
	var fields []schema.Field
	for _, f := range m.fields {
		if len(f.Names) == 0 {
			if isModel(f.Type) {
				continue
			}
			return nil, &schema.StructuralError{
				Kind:   schema.InvalidField,
				Entity: m.name,
				Msg:    "embedded structs other than schema.Model are not supported",
			}
		}

		var tag string
		if f.Tag != nil {
			raw, err := strconv.Unquote(f.Tag.Value)
			if err != nil {
				return nil, fmt.Errorf("%s: malformed struct tag %s", m.name, f.Tag.Value)
			}
			tag = reflect.StructTag(raw).Get(schema.StructTagKey)
		}
		if tag == "-" {
			continue
		}

		scalar, nullable, mapped := scalarOf(f.Type)
		for _, name := range f.Names {
			if !name.IsExported() {
				continue
			}
			field, err := schema.TaggedField(m.name, name.Name, tag, nullable, scalar, mapped)
			if err != nil {
				return nil, err
			}
			fields = append(fields, field)
		}
	}

	if len(fields) == 0 {
		return nil, &schema.StructuralError{
			Kind:   schema.NotNamedFields,
			Entity: m.name,
			Msg:    "struct declares no persisted fields",
		}
	}
	return schema.NewEntity(m.name, table, fields)
}

var identScalars = map[string]schema.ScalarType{
	"int8":    schema.Int,
	"int16":   schema.Int,
	"int32":   schema.Int,
	"uint8":   schema.Int,
	"byte":    schema.Int,
	"uint16":  schema.Int,
	"int":     schema.BigInt,
	"int64":   schema.BigInt,
	"uint32":  schema.BigInt,
	"float32": schema.Float,
	"float64": schema.Float,
	"string":  schema.Text,
	"bool":    schema.Bool,
}

var nullScalars = map[string]schema.ScalarType{
	"NullString":  schema.Text,
	"NullInt64":   schema.BigInt,
	"NullInt32":   schema.Int,
	"NullFloat64": schema.Float,
	"NullBool":    schema.Bool,
	"NullTime":    schema.Timestamp,
}

// scalarOf mirrors schema.TypeMapper for source-level type expressions.
func scalarOf(expr ast.Expr) (scalar schema.ScalarType, nullable, ok bool) {
	switch t := expr.(type) {
	case *ast.StarExpr:
		scalar, _, ok = scalarOf(t.X)
		return scalar, true, ok
	case *ast.Ident:
		scalar, ok = identScalars[t.Name]
		return scalar, false, ok
	case *ast.ArrayType:
		if t.Len == nil {
			if elt, isIdent := t.Elt.(*ast.Ident); isIdent && (elt.Name == "byte" || elt.Name == "uint8") {
				return schema.Bytes, false, true
			}
		}
	case *ast.SelectorExpr:
		pkg, isIdent := t.X.(*ast.Ident)
		if !isIdent {
			break
		}
		switch {
		case pkg.Name == "time" && t.Sel.Name == "Time":
			return schema.Timestamp, false, true
		case pkg.Name == "sql":
			scalar, ok = nullScalars[t.Sel.Name]
			return scalar, ok, ok
		}
	}
	return "", false, false
}
