package grapht

import (
	"context"

	"github.com/graphql-go/graphql"
)

// ResolverFunc is the signature of registered resolver functions, both
// custom endpoint resolvers and dynamic property resolvers. The facade
// carries the request's arguments, parent value, and transactional CRUD
// surface.
type ResolverFunc func(rf *ResolverFacade) (any, error)

// ValidatorFunc is the signature of registered property validators. A
// returned error surfaces to the client as a validation failure and
// aborts the write that carried the value.
type ValidatorFunc func(value Value) error

// ResolverFacade is handed to registered resolver functions.
type ResolverFacade struct {
	params graphql.ResolveParams
	rc     *resolverContext
}

// Args returns the field's arguments.
func (rf *ResolverFacade) Args() map[string]any {
	return rf.params.Args
}

// Parent returns the parent value of the resolved field, a *Node for
// fields on model objects.
func (rf *ResolverFacade) Parent() any {
	return rf.params.Source
}

// Context returns the request context.
func (rf *ResolverFacade) Context() context.Context {
	return rf.params.Context
}

// RequestContext returns the opaque per-request metadata value.
func (rf *ResolverFacade) RequestContext() any {
	return rf.rc.requestCtx
}

// Events returns a facade for transactional CRUD from inside the
// resolver.
func (rf *ResolverFacade) Events() *EventFacade {
	return &EventFacade{ctx: rf.params.Context, rc: rf.rc}
}

// contextKey is a private type for context keys to avoid collisions.
type contextKey string

const resolverContextKey = contextKey("resolverContext")

// rcFromParams recovers the per-request resolver context the engine
// attached before execution began.
func rcFromParams(p graphql.ResolveParams) (*resolverContext, error) {
	if p.Context == nil {
		return nil, NewError(ErrResolverNotFound, "no resolver context attached to the request")
	}
	rc, ok := p.Context.Value(resolverContextKey).(*resolverContext)
	if !ok {
		return nil, NewError(ErrResolverNotFound, "no resolver context attached to the request")
	}
	return rc, nil
}

func facadeFor(p graphql.ResolveParams, rc *resolverContext) *EventFacade {
	return &EventFacade{ctx: p.Context, rc: rc}
}

// resolveScalarField reads a static scalar from the parent entity's field
// map and projects it through the scalar decision tree.
func resolveScalarField(prop *Property) graphql.FieldResolveFn {
	return func(p graphql.ResolveParams) (any, error) {
		switch parent := p.Source.(type) {
		case *Node:
			return projectScalar(prop.Name, parent.Fields[prop.Name])
		case map[string]any:
			return projectScalar(prop.Name, parent[prop.Name])
		case nil:
			return nil, nil
		default:
			return nil, NewError(ErrTypeNotExpected, "field %s resolved against %T", prop.Name, p.Source)
		}
	}
}

// resolveDynamicScalar dispatches a scalar field to the registered prop
// resolver named in the configuration.
func resolveDynamicScalar(prop *Property) graphql.FieldResolveFn {
	return func(p graphql.ResolveParams) (any, error) {
		rc, err := rcFromParams(p)
		if err != nil {
			return nil, err
		}
		f, ok := rc.engine.resolvers[prop.Resolver]
		if !ok {
			return nil, NewError(ErrResolverNotFound, "no resolver registered under %s", prop.Resolver)
		}
		return f(&ResolverFacade{params: p, rc: rc})
	}
}

// resolveNodeReadQuery handles the root read endpoint for a node type.
func resolveNodeReadQuery(typeName string) graphql.FieldResolveFn {
	return func(p graphql.ResolveParams) (any, error) {
		rc, err := rcFromParams(p)
		if err != nil {
			return nil, err
		}
		ef := facadeFor(p, rc)

		input, err := runBeforeQuery(rc.handlers().beforeNodeRead[typeName], p.Args["input"], ef)
		if err != nil {
			return nil, err
		}

		sg := NewSuffixGenerator()
		nodeVar := NewNodeQueryVar(typeName, "node", sg.Suffix())
		info := NewInfo(typeName+"QueryInput", rc.typeDefs())
		frag, err := visitNodeQueryInput(p.Context, nodeVar, nil, info, input, sg, rc)
		if err != nil {
			return nil, err
		}
		nodes, err := rc.tx.ReadNodes(p.Context, nodeVar, frag, rc.partitionKey, NewInfo(typeName, rc.typeDefs()))
		if err != nil {
			return nil, err
		}

		return runAfterNode(rc.handlers().afterNodeRead[typeName], nodes, ef)
	}
}

// resolveNodeCreateMutation handles the root create endpoint for a node
// type.
func resolveNodeCreateMutation(typeName string) graphql.FieldResolveFn {
	return func(p graphql.ResolveParams) (any, error) {
		rc, err := rcFromParams(p)
		if err != nil {
			return nil, err
		}
		ef := facadeFor(p, rc)

		input, err := runBeforeMutation(rc.handlers().beforeNodeCreate[typeName], p.Args["input"], ef)
		if err != nil {
			return nil, err
		}

		info := NewInfo(typeName+"CreateMutationInput", rc.typeDefs())
		node, err := visitNodeCreateMutationInput(p.Context, typeName, info, input, rc)
		if err != nil {
			return nil, err
		}

		nodes, err := runAfterNode(rc.handlers().afterNodeCreate[typeName], []*Node{node}, ef)
		if err != nil {
			return nil, err
		}
		if len(nodes) == 0 {
			return nil, nil
		}
		return nodes[0], nil
	}
}

// resolveNodeUpdateMutation handles the root update endpoint for a node
// type.
func resolveNodeUpdateMutation(typeName string) graphql.FieldResolveFn {
	return func(p graphql.ResolveParams) (any, error) {
		rc, err := rcFromParams(p)
		if err != nil {
			return nil, err
		}
		ef := facadeFor(p, rc)

		input, err := runBeforeMutation(rc.handlers().beforeNodeUpdate[typeName], p.Args["input"], ef)
		if err != nil {
			return nil, err
		}

		info := NewInfo(typeName+"UpdateInput", rc.typeDefs())
		nodes, err := visitNodeUpdateInput(p.Context, typeName, info, input, rc)
		if err != nil {
			return nil, err
		}

		return runAfterNode(rc.handlers().afterNodeUpdate[typeName], nodes, ef)
	}
}

// resolveNodeDeleteMutation handles the root delete endpoint for a node
// type. The client receives the count deleted; after-delete handlers see
// the matched nodes.
func resolveNodeDeleteMutation(typeName string) graphql.FieldResolveFn {
	return func(p graphql.ResolveParams) (any, error) {
		rc, err := rcFromParams(p)
		if err != nil {
			return nil, err
		}
		ef := facadeFor(p, rc)

		input, err := runBeforeMutation(rc.handlers().beforeNodeDelete[typeName], p.Args["input"], ef)
		if err != nil {
			return nil, err
		}

		info := NewInfo(typeName+"DeleteInput", rc.typeDefs())
		count, nodes, err := visitNodeDeleteInput(p.Context, typeName, info, input, rc)
		if err != nil {
			return nil, err
		}

		if _, err := runAfterNode(rc.handlers().afterNodeDelete[typeName], nodes, ef); err != nil {
			return nil, err
		}
		return count, nil
	}
}

// resolveRelReadQuery handles the root read endpoint for a relationship.
func resolveRelReadQuery(srcLabel, relName string) graphql.FieldResolveFn {
	return func(p graphql.ResolveParams) (any, error) {
		rc, err := rcFromParams(p)
		if err != nil {
			return nil, err
		}
		ef := facadeFor(p, rc)

		input, err := runBeforeQuery(rc.handlers().beforeRelRead[relName], p.Args["input"], ef)
		if err != nil {
			return nil, err
		}

		sg := NewSuffixGenerator()
		relVar := NewRelQueryVar(relName, sg.Suffix(),
			NewNodeQueryVar(srcLabel, "src", sg.Suffix()),
			NewNodeQueryVar("", "dst", sg.Suffix()))
		info := NewInfo(relPrefix(srcLabel, relName)+"QueryInput", rc.typeDefs())
		frag, err := visitRelQueryInput(p.Context, relVar, nil, info, input, sg, rc)
		if err != nil {
			return nil, err
		}
		rels, err := rc.tx.ReadRels(p.Context, frag, relVar, relPropsTypeName(rc.typeDefs(), srcLabel, relName), rc.partitionKey)
		if err != nil {
			return nil, err
		}

		return runAfterRel(rc.handlers().afterRelRead[relName], rels, ef)
	}
}

// resolveRelField handles a relationship projection field on a node
// object. Unfiltered loads go through the request's relationship batcher;
// a filter argument or a registered read handler forces a direct query.
func resolveRelField(srcLabel string, prop *Property) graphql.FieldResolveFn {
	return func(p graphql.ResolveParams) (any, error) {
		rc, err := rcFromParams(p)
		if err != nil {
			return nil, err
		}
		parent, ok := p.Source.(*Node)
		if !ok {
			return nil, NewError(ErrTypeNotExpected, "field %s resolved against %T", prop.Name, p.Source)
		}
		srcID, err := parent.ID()
		if err != nil {
			return nil, err
		}

		relName := prop.RelName
		propsType := relPropsTypeName(rc.typeDefs(), srcLabel, relName)
		bag := rc.handlers()
		input := p.Args["input"]

		var rels []*Rel
		if input == nil && len(bag.beforeRelRead[relName]) == 0 && len(bag.afterRelRead[relName]) == 0 {
			// Hand the executor a thunk so sibling loads join one batch.
			thunk := rc.relLoader.LoadThunk(p.Context, srcID, srcLabel, relName, propsType)
			return func() (any, error) {
				rels, err := thunk()
				if err != nil {
					return nil, err
				}
				if prop.List {
					return rels, nil
				}
				if len(rels) == 0 {
					return nil, nil
				}
				return rels[0], nil
			}, nil
		} else {
			ef := facadeFor(p, rc)
			input, err = runBeforeQuery(bag.beforeRelRead[relName], input, ef)
			if err != nil {
				return nil, err
			}
			sg := NewSuffixGenerator()
			relVar := NewRelQueryVar(relName, sg.Suffix(),
				NewNodeQueryVar(srcLabel, "src", sg.Suffix()),
				NewNodeQueryVar("", "dst", sg.Suffix()))
			info := NewInfo(relPrefix(srcLabel, relName)+"QueryInput", rc.typeDefs())
			frag, err := visitRelQueryInput(p.Context, relVar, []string{srcID}, info, input, sg, rc)
			if err != nil {
				return nil, err
			}
			rels, err = rc.tx.ReadRels(p.Context, frag, relVar, propsType, rc.partitionKey)
			if err != nil {
				return nil, err
			}
			rels, err = runAfterRel(bag.afterRelRead[relName], rels, ef)
			if err != nil {
				return nil, err
			}
		}

		if prop.List {
			return rels, nil
		}
		if len(rels) == 0 {
			return nil, nil
		}
		return rels[0], nil
	}
}

// resolveRelCreateMutation handles the root create endpoint for a
// relationship.
func resolveRelCreateMutation(srcLabel, relName string, list bool) graphql.FieldResolveFn {
	return func(p graphql.ResolveParams) (any, error) {
		rc, err := rcFromParams(p)
		if err != nil {
			return nil, err
		}
		ef := facadeFor(p, rc)

		input, err := runBeforeMutation(rc.handlers().beforeRelCreate[relName], p.Args["input"], ef)
		if err != nil {
			return nil, err
		}

		info := NewInfo(relPrefix(srcLabel, relName)+"CreateInput", rc.typeDefs())
		rels, err := visitRelCreateInput(p.Context, srcLabel, relName, !list,
			relPropsTypeName(rc.typeDefs(), srcLabel, relName), info, input, rc)
		if err != nil {
			return nil, err
		}

		rels, err = runAfterRel(rc.handlers().afterRelCreate[relName], rels, ef)
		if err != nil {
			return nil, err
		}
		if list {
			return rels, nil
		}
		if len(rels) == 0 {
			return nil, nil
		}
		return rels[0], nil
	}
}

// resolveRelUpdateMutation handles the root update endpoint for a
// relationship.
func resolveRelUpdateMutation(srcLabel, relName string) graphql.FieldResolveFn {
	return func(p graphql.ResolveParams) (any, error) {
		rc, err := rcFromParams(p)
		if err != nil {
			return nil, err
		}
		ef := facadeFor(p, rc)

		input, err := runBeforeMutation(rc.handlers().beforeRelUpdate[relName], p.Args["input"], ef)
		if err != nil {
			return nil, err
		}

		info := NewInfo(relPrefix(srcLabel, relName)+"UpdateInput", rc.typeDefs())
		rels, err := visitRelUpdateInput(p.Context, srcLabel, nil, relName,
			relPropsTypeName(rc.typeDefs(), srcLabel, relName), info, input, rc)
		if err != nil {
			return nil, err
		}

		return runAfterRel(rc.handlers().afterRelUpdate[relName], rels, ef)
	}
}

// resolveRelDeleteMutation handles the root delete endpoint for a
// relationship. The client receives the count deleted; after-delete
// handlers see the matched relationships.
func resolveRelDeleteMutation(srcLabel, relName string) graphql.FieldResolveFn {
	return func(p graphql.ResolveParams) (any, error) {
		rc, err := rcFromParams(p)
		if err != nil {
			return nil, err
		}
		ef := facadeFor(p, rc)

		input, err := runBeforeMutation(rc.handlers().beforeRelDelete[relName], p.Args["input"], ef)
		if err != nil {
			return nil, err
		}

		info := NewInfo(relPrefix(srcLabel, relName)+"DeleteInput", rc.typeDefs())
		count, rels, err := visitRelDeleteInput(p.Context, srcLabel, nil, relName,
			relPropsTypeName(rc.typeDefs(), srcLabel, relName), info, input, rc)
		if err != nil {
			return nil, err
		}

		if _, err := runAfterRel(rc.handlers().afterRelDelete[relName], rels, ef); err != nil {
			return nil, err
		}
		return count, nil
	}
}

// resolveRelIDField projects a relationship's identifier.
func resolveRelIDField() graphql.FieldResolveFn {
	return func(p graphql.ResolveParams) (any, error) {
		rel, ok := p.Source.(*Rel)
		if !ok {
			return nil, NewError(ErrTypeNotExpected, "id resolved against %T", p.Source)
		}
		return rel.ID, nil
	}
}

// resolveRelPropsField projects a relationship's property bag.
func resolveRelPropsField() graphql.FieldResolveFn {
	return func(p graphql.ResolveParams) (any, error) {
		rel, ok := p.Source.(*Rel)
		if !ok {
			return nil, NewError(ErrTypeNotExpected, "props resolved against %T", p.Source)
		}
		if rel.Props == nil {
			return nil, nil
		}
		return rel.Props, nil
	}
}

// resolveRelSrcField loads a relationship's source node through the node
// batcher.
func resolveRelSrcField() graphql.FieldResolveFn {
	return func(p graphql.ResolveParams) (any, error) {
		rc, err := rcFromParams(p)
		if err != nil {
			return nil, err
		}
		rel, ok := p.Source.(*Rel)
		if !ok {
			return nil, NewError(ErrTypeNotExpected, "src resolved against %T", p.Source)
		}
		return rc.nodeLoader.LoadThunk(p.Context, rel.Src.ID, rel.Src.Label), nil
	}
}

// resolveRelDstField loads a relationship's destination node through the
// node batcher. The recorded endpoint label makes the union resolvable
// without refetching.
func resolveRelDstField() graphql.FieldResolveFn {
	return func(p graphql.ResolveParams) (any, error) {
		rc, err := rcFromParams(p)
		if err != nil {
			return nil, err
		}
		rel, ok := p.Source.(*Rel)
		if !ok {
			return nil, NewError(ErrTypeNotExpected, "dst resolved against %T", p.Source)
		}
		return rc.nodeLoader.LoadThunk(p.Context, rel.Dst.ID, rel.Dst.Label), nil
	}
}

// resolveCustomEndpoint dispatches a configured endpoint to the
// registered resolver of the same name.
func resolveCustomEndpoint(name string) graphql.FieldResolveFn {
	return func(p graphql.ResolveParams) (any, error) {
		rc, err := rcFromParams(p)
		if err != nil {
			return nil, err
		}
		f, ok := rc.engine.resolvers[name]
		if !ok {
			return nil, NewError(ErrResolverNotFound, "no resolver registered under %s", name)
		}
		return f(&ResolverFacade{params: p, rc: rc})
	}
}

// resolveVersionQuery serves the static _version field.
func resolveVersionQuery() graphql.FieldResolveFn {
	return func(p graphql.ResolveParams) (any, error) {
		rc, err := rcFromParams(p)
		if err != nil {
			return nil, err
		}
		if rc.engine.version == "" {
			return nil, nil
		}
		return rc.engine.version, nil
	}
}
