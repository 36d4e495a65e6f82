package codegen

import (
	"strings"
	"unicode"

	"github.com/dave/jennifer/jen"

	"github.com/marshallshelly/memra/pkg/builder"
	"github.com/marshallshelly/memra/pkg/relation"
	"github.com/marshallshelly/memra/pkg/schema"
)

// entityFile renders the struct, statements, accessors and constructor of e.
func (g *Generator) entityFile(e *schema.Entity) *jen.File {
	f := newFile(g.cfg.Package)

	f.Commentf("%s is a record of table %s.", e.Name, e.Table)
	f.Type().Id(e.Name).StructFunc(func(s *jen.Group) {
		s.Qual(schemaPkg, "Model")
		for _, fd := range e.DataFields() {
			s.Id(fd.GoName).Add(goType(fd)).Tag(tags(fd))
		}
	})

	f.Line()
	f.Commentf("TableName returns %q.", e.Table)
	f.Func().Params(jen.Id(e.Name)).Id("TableName").Params().String().Block(
		jen.Return(jen.Lit(e.Table)),
	)

	f.Line()
	f.Var().Id(entityVar(e)).Op("=").Id("mustEntity").Types(jen.Id(e.Name)).Call()

	stmts := builder.For(e)
	defs := []jen.Code{
		jen.Id(stmtName(e, "find_by_id")).Op("=").Lit(stmts.FindByID.SQL),
		jen.Id(stmtName(e, "insert")).Op("=").Lit(stmts.Insert.SQL),
		jen.Id(stmtName(e, "update")).Op("=").Lit(stmts.Update.SQL),
		jen.Id(stmtName(e, "delete_by_id")).Op("=").Lit(stmts.DeleteByID.SQL),
	}
	outgoing, incoming := g.edgesOf(e)
	for _, edge := range outgoing {
		defs = append(defs, jen.Id(stmtName(e, edge.Forward)).Op("=").Lit(edge.ForwardStatement().SQL))
	}
	for _, edge := range incoming {
		defs = append(defs, jen.Id(stmtName(e, edge.Reverse)).Op("=").Lit(edge.ReverseStatement().SQL))
	}
	f.Line()
	f.Commentf("Statements of %s.", e.Name)
	f.Const().Defs(defs...)

	for _, edge := range outgoing {
		f.Line()
		forwardAccessor(f, edge)
	}
	for _, edge := range incoming {
		f.Line()
		reverseAccessor(f, edge)
	}

	f.Line()
	constructor(f, e)
	return f
}

// edgesOf splits the edges into those leaving e and those arriving at it.
func (g *Generator) edgesOf(e *schema.Entity) (outgoing, incoming []relation.Edge) {
	for _, edge := range g.edges {
		if edge.Source.Name == e.Name {
			outgoing = append(outgoing, edge)
		}
		if edge.Target.Name == e.Name {
			incoming = append(incoming, edge)
		}
	}
	return outgoing, incoming
}

// forwardAccessor emits the many-to-one lookup on the source.
//
//	func (m *Card) GetDeck(ctx context.Context, q runtime.Querier) (*Deck, error)
func forwardAccessor(f *jen.File, edge relation.Edge) {
	src, fd := edge.Source, edge.Field
	arg := jen.Id("m").Dot(fd.GoName)

	var guard []jen.Code
	if fd.Nullable {
		guard = append(guard,
			jen.If(jen.Id("m").Dot(fd.GoName).Op("==").Nil()).Block(
				jen.Return(jen.Nil(), jen.Qual(runtimePkg, "ErrNotFound")),
			),
		)
		arg = jen.Op("*").Id("m").Dot(fd.GoName)
	}

	f.Commentf("%s follows %s to its %s.", edge.ForwardGoName(), fd.Name, edge.Target.Name)
	f.Func().Params(jen.Id("m").Op("*").Id(src.Name)).Id(edge.ForwardGoName()).
		Params(
			jen.Id("ctx").Qual("context", "Context"),
			jen.Id("q").Qual(runtimePkg, "Querier"),
		).
		Params(jen.Op("*").Id(edge.Target.Name), jen.Error()).
		Block(append(guard,
			jen.Return(jen.Qual(runtimePkg, "QueryOne").Types(jen.Id(edge.Target.Name)).Call(
				jen.Id("ctx"), jen.Id("q"), jen.Id(entityVar(edge.Target)), jen.Id(stmtName(src, edge.Forward)), arg,
			)),
		)...)
}

// reverseAccessor emits the one-to-many lookup on the target.
func reverseAccessor(f *jen.File, edge relation.Edge) {
	dst := edge.Target

	f.Commentf("%s lists every %s whose %s references m.", edge.ReverseGoName(), edge.Source.Name, edge.Field.Name)
	f.Func().Params(jen.Id("m").Op("*").Id(dst.Name)).Id(edge.ReverseGoName()).
		Params(
			jen.Id("ctx").Qual("context", "Context"),
			jen.Id("q").Qual(runtimePkg, "Querier"),
		).
		Params(jen.Index().Id(edge.Source.Name), jen.Error()).
		Block(
			jen.List(jen.Id("id"), jen.Id("ok")).Op(":=").Id("m").Dot("Key").Call(),
			jen.If(jen.Op("!").Id("ok")).Block(
				jen.Return(jen.Nil(), jen.Qual(relationPkg, "ErrUnpersisted")),
			),
			jen.Return(jen.Qual(runtimePkg, "QueryAll").Types(jen.Id(edge.Source.Name)).Call(
				jen.Id("ctx"), jen.Id("q"), jen.Id(entityVar(edge.Source)), jen.Id(stmtName(dst, edge.Reverse)), jen.Id("id"),
			)),
		)
}

// constructor emits New<Entity>, taking one reference per foreign key.
func constructor(f *jen.File, e *schema.Entity) {
	fks := e.ForeignKeys()

	params := []jen.Code{jen.Id("fields").Id(e.Name)}
	for _, fd := range fks {
		params = append(params, jen.Id(refParam(fd)).Qual(constructPkg, "Ref"))
	}

	body := []jen.Code{
		jen.Id("out").Op(":=").Id("fields"),
		jen.Id("out").Dot("ClearKey").Call(),
	}
	for _, fd := range fks {
		id := schema.Camel(fd.Name)
		body = append(body,
			jen.List(jen.Id(id), jen.Id("ok")).Op(":=").Id(refParam(fd)).Dot("Resolve").Call(),
			jen.If(jen.Op("!").Id("ok")).Block(jen.Return(jen.Nil(), jen.False())),
		)
		value := jen.Id(id)
		if fd.Type == schema.Int {
			body = append(body,
				jen.If(jen.Int64().Call(jen.Int32().Call(jen.Id(id))).Op("!=").Id(id)).Block(
					jen.Return(jen.Nil(), jen.False()),
				),
			)
			value = jen.Int32().Call(jen.Id(id))
		}
		if fd.Nullable {
			v := "v" + schema.Pascal(fd.Name)
			body = append(body,
				jen.Id(v).Op(":=").Add(value),
				jen.Id("out").Dot(fd.GoName).Op("=").Op("&").Id(v),
			)
		} else {
			body = append(body, jen.Id("out").Dot(fd.GoName).Op("=").Add(value))
		}
	}
	body = append(body, jen.Return(jen.Op("&").Id("out"), jen.True()))

	if len(fks) == 0 {
		f.Commentf("New%s copies fields into an unpersisted %s.", e.Name, e.Name)
	} else {
		f.Commentf("New%s copies fields into an unpersisted %s with every foreign key taken\n"+
			"from a reference. It returns false when a reference does not resolve.", e.Name, e.Name)
	}
	f.Func().Id("New"+e.Name).Params(params...).
		Params(jen.Op("*").Id(e.Name), jen.Bool()).
		Block(body...)
}

func goType(fd schema.Field) *jen.Statement {
	var t *jen.Statement
	switch fd.Type {
	case schema.Int:
		t = jen.Int32()
	case schema.BigInt:
		t = jen.Int64()
	case schema.Float:
		t = jen.Float64()
	case schema.Text:
		t = jen.String()
	case schema.Bool:
		t = jen.Bool()
	case schema.Bytes:
		t = jen.Index().Byte()
	case schema.Timestamp:
		t = jen.Qual("time", "Time")
	}
	if fd.Nullable {
		return jen.Op("*").Add(t)
	}
	return t
}

func tags(fd schema.Field) map[string]string {
	opts := []string{fd.Name}
	if fd.Relation != nil {
		opts = append(opts, "foreign("+fd.Relation.Target+")")
		if fd.Relation.Alias != "" {
			opts = append(opts, "as("+fd.Relation.Alias+")")
		}
	}
	if fd.Owner {
		opts = append(opts, "owner")
	}
	if fd.Visibility {
		opts = append(opts, "visibility")
	}

	json := fd.Name
	if fd.Nullable {
		json += ",omitempty"
	}
	return map[string]string{
		"memra": strings.Join(opts, ","),
		"json":  json,
	}
}

// entityVar is the package variable holding e's parsed descriptor.
func entityVar(e *schema.Entity) string {
	return lowerFirst(e.Name) + "Entity"
}

// stmtName is the unexported constant holding one of e's statements.
func stmtName(e *schema.Entity, name string) string {
	return lowerFirst(e.Name) + schema.Pascal(name)
}

func refParam(fd schema.Field) string {
	return schema.Camel(strings.TrimSuffix(fd.Name, "_id")) + "Ref"
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	r[0] = unicode.ToLower(r[0])
	return string(r)
}
