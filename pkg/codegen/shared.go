package codegen

import (
	"fmt"

	"github.com/dave/jennifer/jen"

	"github.com/marshallshelly/memra/pkg/handler"
	"github.com/marshallshelly/memra/pkg/schema"
)

// sharedFile renders the package-level model list, declared policies and
// the descriptor helper used by every entity file.
func (g *Generator) sharedFile() (*jen.File, error) {
	f := newFile(g.cfg.Package)
	f.PackageComment(fmt.Sprintf("Package %s holds the generated memra models.", g.cfg.Package))

	f.Comment("Models lists every entity in declaration order, ready for registry.Register.")
	f.Func().Id("Models").Params().Index().Id("any").Block(
		jen.Return(jen.Index().Id("any").ValuesFunc(func(vals *jen.Group) {
			for _, e := range g.entities {
				vals.Id(e.Name).Values()
			}
		})),
	)

	if len(g.policies) > 0 {
		dict := jen.Dict{}
		for _, e := range g.entities {
			names, ok := g.policies[e.Name]
			if !ok {
				continue
			}
			var list []jen.Code
			for _, name := range names {
				p, err := handler.ParsePolicy(name)
				if err != nil {
					return nil, &schema.StructuralError{Kind: schema.InvalidField, Entity: e.Name, Msg: err.Error()}
				}
				list = append(list, jen.Qual(handlerPkg, schema.Pascal(p.String())))
			}
			dict[jen.Lit(e.Name)] = jen.Index().Qual(handlerPkg, "Policy").Values(list...)
		}

		f.Line()
		f.Comment("Policies maps entity names to their declared handler policies.")
		f.Func().Id("Policies").Params().Map(jen.String()).Index().Qual(handlerPkg, "Policy").Block(
			jen.Return(jen.Map(jen.String()).Index().Qual(handlerPkg, "Policy").Values(dict)),
		)
	}

	f.Line()
	f.Func().Id("mustEntity").Types(jen.Id("T").Id("any")).Params().Op("*").Qual(schemaPkg, "Entity").Block(
		jen.List(jen.Id("e"), jen.Err()).Op(":=").Qual(schemaPkg, "Parse").Call(
			jen.Qual("reflect", "TypeFor").Types(jen.Id("T")).Call(),
		),
		jen.If(jen.Err().Op("!=").Nil()).Block(jen.Panic(jen.Err())),
		jen.Return(jen.Id("e")),
	)
	return f, nil
}
