package grapht

import (
	"strings"

	"github.com/graphql-go/graphql"
	"github.com/graphql-go/graphql/language/ast"
)

// schemaBuilder lowers the synthesized type dictionary into graphql-go
// types. Objects and inputs are created as shells whose field maps are
// thunks, so the cyclic references between generated types resolve only
// after every shell exists.
type schemaBuilder struct {
	defs          map[string]*NodeTypeDef
	objects       map[string]*graphql.Object
	inputs        map[string]*graphql.InputObject
	unions        map[string]*graphql.Union
	filterScalars map[string]*graphql.Scalar
}

// buildSchema generates the executable GraphQL schema from the type
// dictionary. Field thunks panic on dangling type references; the panic
// is recovered here and surfaced as a schema error, since thunks run
// inside the graphql library's schema construction.
func buildSchema(defs map[string]*NodeTypeDef) (schema graphql.Schema, err error) {
	defer func() {
		if r := recover(); r != nil {
			if rerr, ok := r.(error); ok {
				schema, err = graphql.Schema{}, rerr
				return
			}
			schema, err = graphql.Schema{}, NewError(ErrSchemaItemNotFound, "%v", r)
		}
	}()
	return buildSchemaTypes(defs)
}

func buildSchemaTypes(defs map[string]*NodeTypeDef) (graphql.Schema, error) {
	b := &schemaBuilder{
		defs:          defs,
		objects:       map[string]*graphql.Object{},
		inputs:        map[string]*graphql.InputObject{},
		unions:        map[string]*graphql.Union{},
		filterScalars: map[string]*graphql.Scalar{},
	}

	for _, name := range []string{"Int", "Float", "String", "Boolean", "ID"} {
		b.filterScalars[name] = newFilterScalar(name + "QueryInput")
	}

	// First pass: object and input shells.
	for name, def := range defs {
		if name == "Query" || name == "Mutation" {
			continue
		}
		switch def.Kind {
		case KindObject, KindRel:
			b.objects[name] = b.newObject(def)
		case KindInput:
			b.inputs[name] = b.newInputObject(def)
		}
	}

	// Second pass: unions, which need their member objects in hand.
	for name, def := range defs {
		if def.Kind != KindUnion {
			continue
		}
		union, err := b.newUnion(def)
		if err != nil {
			return graphql.Schema{}, err
		}
		b.unions[name] = union
	}

	queryDef, ok := defs["Query"]
	if !ok {
		return graphql.Schema{}, NewError(ErrSchemaItemNotFound, "Query")
	}
	schemaConfig := graphql.SchemaConfig{
		Query: graphql.NewObject(graphql.ObjectConfig{
			Name:   "Query",
			Fields: b.rootFieldsThunk(queryDef),
		}),
	}

	if mutationDef, ok := defs["Mutation"]; ok && len(mutationDef.Props) > 0 {
		schemaConfig.Mutation = graphql.NewObject(graphql.ObjectConfig{
			Name:   "Mutation",
			Fields: b.rootFieldsThunk(mutationDef),
		})
	}

	return graphql.NewSchema(schemaConfig)
}

// newFilterScalar creates the scalar-position filter type used in query
// inputs. It admits either a bare scalar literal, shorthand for an EQ
// comparison, or an object of operator names to operands.
func newFilterScalar(name string) *graphql.Scalar {
	return graphql.NewScalar(graphql.ScalarConfig{
		Name:        name,
		Description: "A scalar filter: a bare value matches by equality; an object maps operators (EQ, NEQ, LT, LTE, GT, GTE, IN, CONTAINS) to operands.",
		Serialize:   func(v any) any { return v },
		ParseValue:  func(v any) any { return v },
		ParseLiteral: func(v ast.Value) any {
			return astToValue(v)
		},
	})
}

func scalarOutput(name string) graphql.Output {
	switch name {
	case "Int":
		return graphql.Int
	case "Float":
		return graphql.Float
	case "String":
		return graphql.String
	case "Boolean":
		return graphql.Boolean
	case "ID":
		return graphql.ID
	default:
		return nil
	}
}

// outputType resolves a property's output type from the dictionary.
func (b *schemaBuilder) outputType(prop *Property) (graphql.Output, error) {
	var t graphql.Output
	if s := scalarOutput(prop.TypeName); s != nil {
		t = s
	} else if obj, ok := b.objects[prop.TypeName]; ok {
		t = obj
	} else if u, ok := b.unions[prop.TypeName]; ok {
		t = u
	} else {
		return nil, NewError(ErrSchemaItemNotFound, "%s", prop.TypeName)
	}
	if prop.List {
		t = graphql.NewList(t)
	}
	if prop.Required {
		t = graphql.NewNonNull(t)
	}
	return t, nil
}

// inputType resolves a property's input type. Scalar fields of query
// inputs use the filter scalars; everywhere else scalars stay plain.
func (b *schemaBuilder) inputType(prop *Property, inQueryInput bool) (graphql.Input, error) {
	var t graphql.Input
	if scalarNames[prop.TypeName] {
		if inQueryInput {
			t = b.filterScalars[prop.TypeName]
		} else {
			t = scalarOutput(prop.TypeName)
		}
	} else if in, ok := b.inputs[prop.TypeName]; ok {
		t = in
	} else {
		return nil, NewError(ErrSchemaItemNotFound, "%s", prop.TypeName)
	}
	if prop.List {
		t = graphql.NewList(t)
	}
	if prop.Required {
		t = graphql.NewNonNull(t)
	}
	return t, nil
}

// newObject creates an object shell whose fields resolve lazily. Model
// objects and relationship objects wire the per-kind resolvers.
func (b *schemaBuilder) newObject(def *NodeTypeDef) *graphql.Object {
	return graphql.NewObject(graphql.ObjectConfig{
		Name: def.Name,
		Fields: (graphql.FieldsThunk)(func() graphql.Fields {
			fields := graphql.Fields{}
			for name, prop := range def.Props {
				t, err := b.outputType(prop)
				if err != nil {
					panic(err)
				}
				field := &graphql.Field{Type: t}

				if def.Kind == KindRel {
					switch name {
					case "id":
						field.Resolve = resolveRelIDField()
					case "props":
						field.Resolve = resolveRelPropsField()
					case "src":
						field.Resolve = resolveRelSrcField()
					case "dst":
						field.Resolve = resolveRelDstField()
					}
				} else {
					switch prop.Kind {
					case PropScalar:
						field.Resolve = resolveScalarField(prop)
					case PropDynamicScalar:
						field.Resolve = resolveDynamicScalar(prop)
					case PropRel:
						field.Resolve = resolveRelField(def.Name, prop)
						if prop.InputName != "" {
							argType, err := b.argType(prop)
							if err != nil {
								panic(err)
							}
							field.Args = graphql.FieldConfigArgument{
								"input": &graphql.ArgumentConfig{Type: argType},
							}
						}
					}
				}
				fields[name] = field
			}
			return fields
		}),
	})
}

// newInputObject creates an input shell whose fields resolve lazily.
func (b *schemaBuilder) newInputObject(def *NodeTypeDef) *graphql.InputObject {
	inQueryInput := strings.HasSuffix(def.Name, "QueryInput")
	return graphql.NewInputObject(graphql.InputObjectConfig{
		Name: def.Name,
		Fields: (graphql.InputObjectConfigFieldMapThunk)(func() graphql.InputObjectConfigFieldMap {
			fields := graphql.InputObjectConfigFieldMap{}
			for name, prop := range def.Props {
				t, err := b.inputType(prop, inQueryInput)
				if err != nil {
					panic(err)
				}
				fields[name] = &graphql.InputObjectFieldConfig{Type: t}
			}
			return fields
		}),
	})
}

// newUnion creates a destination union. The concrete type of a value is
// recovered from the node's label, which relationships carry on their
// endpoint references.
func (b *schemaBuilder) newUnion(def *NodeTypeDef) (*graphql.Union, error) {
	members := make([]*graphql.Object, 0, len(def.UnionTypes))
	for _, name := range def.UnionTypes {
		obj, ok := b.objects[name]
		if !ok {
			return nil, NewError(ErrSchemaItemNotFound, "%s", name)
		}
		members = append(members, obj)
	}
	return graphql.NewUnion(graphql.UnionConfig{
		Name:  def.Name,
		Types: members,
		ResolveType: func(p graphql.ResolveTypeParams) *graphql.Object {
			node, ok := p.Value.(*Node)
			if !ok {
				return nil
			}
			return b.objects[node.Label]
		},
	}), nil
}

// argType resolves the type of a field's input argument.
func (b *schemaBuilder) argType(prop *Property) (graphql.Input, error) {
	var t graphql.Input
	if s := scalarOutput(prop.InputName); s != nil {
		t = s
	} else if in, ok := b.inputs[prop.InputName]; ok {
		t = in
	} else {
		return nil, NewError(ErrSchemaItemNotFound, "%s", prop.InputName)
	}
	if prop.InputRequired {
		t = graphql.NewNonNull(t)
	}
	return t, nil
}

// rootFieldsThunk builds the fields of the root Query or Mutation type,
// wiring the endpoint resolver that matches each property's kind. The
// dispatch is total over the PropertyKind taxonomy's root-level kinds.
func (b *schemaBuilder) rootFieldsThunk(def *NodeTypeDef) graphql.FieldsThunk {
	return func() graphql.Fields {
		fields := graphql.Fields{}
		for name, prop := range def.Props {
			t, err := b.outputType(prop)
			if err != nil {
				panic(err)
			}
			field := &graphql.Field{Type: t}

			if prop.InputName != "" {
				argType, err := b.argType(prop)
				if err != nil {
					panic(err)
				}
				field.Args = graphql.FieldConfigArgument{
					"input": &graphql.ArgumentConfig{Type: argType},
				}
			}

			switch prop.Kind {
			case PropObject:
				field.Resolve = resolveNodeReadQuery(prop.TypeName)
			case PropRel:
				field.Resolve = resolveRelReadQuery(prop.SrcLabel, prop.RelName)
			case PropNodeCreateMutation:
				field.Resolve = resolveNodeCreateMutation(prop.TypeName)
			case PropNodeUpdateMutation:
				field.Resolve = resolveNodeUpdateMutation(prop.TypeName)
			case PropNodeDeleteMutation:
				field.Resolve = resolveNodeDeleteMutation(prop.SrcLabel)
			case PropRelCreateMutation:
				field.Resolve = resolveRelCreateMutation(prop.SrcLabel, prop.RelName, prop.List)
			case PropRelUpdateMutation:
				field.Resolve = resolveRelUpdateMutation(prop.SrcLabel, prop.RelName)
			case PropRelDeleteMutation:
				field.Resolve = resolveRelDeleteMutation(prop.SrcLabel, prop.RelName)
			case PropCustomResolver:
				field.Resolve = resolveCustomEndpoint(prop.Name)
			case PropVersionQuery:
				field.Resolve = resolveVersionQuery()
			default:
				panic(NewError(ErrSchemaItemNotFound, "no resolver for root field %s", name))
			}
			fields[name] = field
		}
		return fields
	}
}
