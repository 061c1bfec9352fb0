package grapht

import (
	"context"
)

// BeforeMutationFunc transforms the input of a create, update, or delete
// before the base resolver runs. The returned value feeds the next
// handler in the pipeline, or the resolver itself when the pipeline is
// exhausted.
type BeforeMutationFunc func(input Value, ef *EventFacade) (Value, error)

// BeforeQueryFunc transforms the (possibly nil) filter input of a read.
type BeforeQueryFunc func(input Value, ef *EventFacade) (Value, error)

// AfterNodeFunc transforms the node results of an operation before they
// are returned to the client.
type AfterNodeFunc func(nodes []*Node, ef *EventFacade) ([]*Node, error)

// AfterRelFunc transforms the relationship results of an operation before
// they are returned to the client.
type AfterRelFunc func(rels []*Rel, ef *EventFacade) ([]*Rel, error)

// EventHandlerBag collects event handlers keyed by operation and by type
// or relationship name. Node and relationship handlers live in separate
// maps, so a node type and a relationship sharing a name never conflate
// their pipelines. The bag is immutable once the engine is constructed.
type EventHandlerBag struct {
	beforeNodeCreate map[string][]BeforeMutationFunc
	beforeNodeRead   map[string][]BeforeQueryFunc
	beforeNodeUpdate map[string][]BeforeMutationFunc
	beforeNodeDelete map[string][]BeforeMutationFunc
	afterNodeCreate  map[string][]AfterNodeFunc
	afterNodeRead    map[string][]AfterNodeFunc
	afterNodeUpdate  map[string][]AfterNodeFunc
	afterNodeDelete  map[string][]AfterNodeFunc

	beforeRelCreate map[string][]BeforeMutationFunc
	beforeRelRead   map[string][]BeforeQueryFunc
	beforeRelUpdate map[string][]BeforeMutationFunc
	beforeRelDelete map[string][]BeforeMutationFunc
	afterRelCreate  map[string][]AfterRelFunc
	afterRelRead    map[string][]AfterRelFunc
	afterRelUpdate  map[string][]AfterRelFunc
	afterRelDelete  map[string][]AfterRelFunc
}

// NewEventHandlerBag creates an empty handler bag.
func NewEventHandlerBag() *EventHandlerBag {
	return &EventHandlerBag{
		beforeNodeCreate: map[string][]BeforeMutationFunc{},
		beforeNodeRead:   map[string][]BeforeQueryFunc{},
		beforeNodeUpdate: map[string][]BeforeMutationFunc{},
		beforeNodeDelete: map[string][]BeforeMutationFunc{},
		afterNodeCreate:  map[string][]AfterNodeFunc{},
		afterNodeRead:    map[string][]AfterNodeFunc{},
		afterNodeUpdate:  map[string][]AfterNodeFunc{},
		afterNodeDelete:  map[string][]AfterNodeFunc{},
		beforeRelCreate:  map[string][]BeforeMutationFunc{},
		beforeRelRead:    map[string][]BeforeQueryFunc{},
		beforeRelUpdate:  map[string][]BeforeMutationFunc{},
		beforeRelDelete:  map[string][]BeforeMutationFunc{},
		afterRelCreate:   map[string][]AfterRelFunc{},
		afterRelRead:     map[string][]AfterRelFunc{},
		afterRelUpdate:   map[string][]AfterRelFunc{},
		afterRelDelete:   map[string][]AfterRelFunc{},
	}
}

// RegisterBeforeNodeCreate appends f to the before-create pipeline of
// each named node type.
func (b *EventHandlerBag) RegisterBeforeNodeCreate(typeNames []string, f BeforeMutationFunc) {
	for _, n := range typeNames {
		b.beforeNodeCreate[n] = append(b.beforeNodeCreate[n], f)
	}
}

// RegisterBeforeNodeRead appends f to the before-read pipeline of each
// named node type.
func (b *EventHandlerBag) RegisterBeforeNodeRead(typeNames []string, f BeforeQueryFunc) {
	for _, n := range typeNames {
		b.beforeNodeRead[n] = append(b.beforeNodeRead[n], f)
	}
}

// RegisterBeforeNodeUpdate appends f to the before-update pipeline of
// each named node type.
func (b *EventHandlerBag) RegisterBeforeNodeUpdate(typeNames []string, f BeforeMutationFunc) {
	for _, n := range typeNames {
		b.beforeNodeUpdate[n] = append(b.beforeNodeUpdate[n], f)
	}
}

// RegisterBeforeNodeDelete appends f to the before-delete pipeline of
// each named node type.
func (b *EventHandlerBag) RegisterBeforeNodeDelete(typeNames []string, f BeforeMutationFunc) {
	for _, n := range typeNames {
		b.beforeNodeDelete[n] = append(b.beforeNodeDelete[n], f)
	}
}

// RegisterAfterNodeCreate appends f to the after-create pipeline of each
// named node type.
func (b *EventHandlerBag) RegisterAfterNodeCreate(typeNames []string, f AfterNodeFunc) {
	for _, n := range typeNames {
		b.afterNodeCreate[n] = append(b.afterNodeCreate[n], f)
	}
}

// RegisterAfterNodeRead appends f to the after-read pipeline of each
// named node type.
func (b *EventHandlerBag) RegisterAfterNodeRead(typeNames []string, f AfterNodeFunc) {
	for _, n := range typeNames {
		b.afterNodeRead[n] = append(b.afterNodeRead[n], f)
	}
}

// RegisterAfterNodeUpdate appends f to the after-update pipeline of each
// named node type.
func (b *EventHandlerBag) RegisterAfterNodeUpdate(typeNames []string, f AfterNodeFunc) {
	for _, n := range typeNames {
		b.afterNodeUpdate[n] = append(b.afterNodeUpdate[n], f)
	}
}

// RegisterAfterNodeDelete appends f to the after-delete pipeline of each
// named node type. After-delete handlers receive the nodes that were
// matched for deletion; the client still receives the deletion count.
func (b *EventHandlerBag) RegisterAfterNodeDelete(typeNames []string, f AfterNodeFunc) {
	for _, n := range typeNames {
		b.afterNodeDelete[n] = append(b.afterNodeDelete[n], f)
	}
}

// RegisterBeforeRelCreate appends f to the before-create pipeline of each
// named relationship.
func (b *EventHandlerBag) RegisterBeforeRelCreate(relNames []string, f BeforeMutationFunc) {
	for _, n := range relNames {
		b.beforeRelCreate[n] = append(b.beforeRelCreate[n], f)
	}
}

// RegisterBeforeRelRead appends f to the before-read pipeline of each
// named relationship.
func (b *EventHandlerBag) RegisterBeforeRelRead(relNames []string, f BeforeQueryFunc) {
	for _, n := range relNames {
		b.beforeRelRead[n] = append(b.beforeRelRead[n], f)
	}
}

// RegisterBeforeRelUpdate appends f to the before-update pipeline of each
// named relationship.
func (b *EventHandlerBag) RegisterBeforeRelUpdate(relNames []string, f BeforeMutationFunc) {
	for _, n := range relNames {
		b.beforeRelUpdate[n] = append(b.beforeRelUpdate[n], f)
	}
}

// RegisterBeforeRelDelete appends f to the before-delete pipeline of each
// named relationship.
func (b *EventHandlerBag) RegisterBeforeRelDelete(relNames []string, f BeforeMutationFunc) {
	for _, n := range relNames {
		b.beforeRelDelete[n] = append(b.beforeRelDelete[n], f)
	}
}

// RegisterAfterRelCreate appends f to the after-create pipeline of each
// named relationship.
func (b *EventHandlerBag) RegisterAfterRelCreate(relNames []string, f AfterRelFunc) {
	for _, n := range relNames {
		b.afterRelCreate[n] = append(b.afterRelCreate[n], f)
	}
}

// RegisterAfterRelRead appends f to the after-read pipeline of each named
// relationship.
func (b *EventHandlerBag) RegisterAfterRelRead(relNames []string, f AfterRelFunc) {
	for _, n := range relNames {
		b.afterRelRead[n] = append(b.afterRelRead[n], f)
	}
}

// RegisterAfterRelUpdate appends f to the after-update pipeline of each
// named relationship.
func (b *EventHandlerBag) RegisterAfterRelUpdate(relNames []string, f AfterRelFunc) {
	for _, n := range relNames {
		b.afterRelUpdate[n] = append(b.afterRelUpdate[n], f)
	}
}

// RegisterAfterRelDelete appends f to the after-delete pipeline of each
// named relationship.
func (b *EventHandlerBag) RegisterAfterRelDelete(relNames []string, f AfterRelFunc) {
	for _, n := range relNames {
		b.afterRelDelete[n] = append(b.afterRelDelete[n], f)
	}
}

// Pipelines are ordered folds: each handler receives the previous
// handler's output and its result feeds the next.

func runBeforeMutation(handlers []BeforeMutationFunc, input Value, ef *EventFacade) (Value, error) {
	v := input
	var err error
	for _, h := range handlers {
		if v, err = h(v, ef); err != nil {
			return nil, err
		}
	}
	return v, nil
}

func runBeforeQuery(handlers []BeforeQueryFunc, input Value, ef *EventFacade) (Value, error) {
	v := input
	var err error
	for _, h := range handlers {
		if v, err = h(v, ef); err != nil {
			return nil, err
		}
	}
	return v, nil
}

func runAfterNode(handlers []AfterNodeFunc, nodes []*Node, ef *EventFacade) ([]*Node, error) {
	v := nodes
	var err error
	for _, h := range handlers {
		if v, err = h(v, ef); err != nil {
			return nil, err
		}
	}
	return v, nil
}

func runAfterRel(handlers []AfterRelFunc, rels []*Rel, ef *EventFacade) ([]*Rel, error) {
	v := rels
	var err error
	for _, h := range handlers {
		if v, err = h(v, ef); err != nil {
			return nil, err
		}
	}
	return v, nil
}

// EventFacade gives event handlers and custom resolvers the same CRUD
// surface the planner uses, executed on the request's open transaction,
// so business rules run inside the same all-or-nothing scope as the
// operation that triggered them.
type EventFacade struct {
	ctx context.Context
	rc  *resolverContext
}

// Context returns the request's context.
func (ef *EventFacade) Context() context.Context {
	return ef.ctx
}

// RequestContext returns the opaque per-request metadata value.
func (ef *EventFacade) RequestContext() any {
	return ef.rc.requestCtx
}

// ExecuteQuery runs a raw statement on the open transaction.
func (ef *EventFacade) ExecuteQuery(query string, params map[string]any) ([]map[string]any, error) {
	return ef.rc.tx.ExecuteQuery(ef.ctx, query, params)
}

// CreateNode creates a node of the named type from a create-mutation
// shaped input, including any nested relationship payloads.
func (ef *EventFacade) CreateNode(typeName string, input map[string]any) (*Node, error) {
	info := NewInfo(typeName+"CreateMutationInput", ef.rc.typeDefs())
	return visitNodeCreateMutationInput(ef.ctx, typeName, info, input, ef.rc)
}

// ReadNodes returns the nodes of the named type matching a query-shaped
// input; a nil input matches every node of the type.
func (ef *EventFacade) ReadNodes(typeName string, matchInput map[string]any) ([]*Node, error) {
	rc := ef.rc
	sg := NewSuffixGenerator()
	nodeVar := NewNodeQueryVar(typeName, "node", sg.Suffix())
	info := NewInfo(typeName+"QueryInput", rc.typeDefs())
	var input any
	if matchInput != nil {
		input = matchInput
	}
	frag, err := visitNodeQueryInput(ef.ctx, nodeVar, nil, info, input, sg, rc)
	if err != nil {
		return nil, err
	}
	return rc.tx.ReadNodes(ef.ctx, nodeVar, frag, rc.partitionKey, NewInfo(typeName, rc.typeDefs()))
}

// UpdateNodes updates the nodes matching matchInput with modifyInput and
// returns them.
func (ef *EventFacade) UpdateNodes(typeName string, matchInput, modifyInput map[string]any) ([]*Node, error) {
	info := NewInfo(typeName+"UpdateInput", ef.rc.typeDefs())
	input := map[string]any{"modify": modifyInput}
	if matchInput != nil {
		input["match"] = matchInput
	}
	return visitNodeUpdateInput(ef.ctx, typeName, info, input, ef.rc)
}

// DeleteNodes deletes the nodes matching matchInput, honoring the force
// and cascade semantics of deleteInput, and returns the count deleted.
func (ef *EventFacade) DeleteNodes(typeName string, matchInput, deleteInput map[string]any) (int, error) {
	info := NewInfo(typeName+"DeleteInput", ef.rc.typeDefs())
	input := map[string]any{}
	if matchInput != nil {
		input["match"] = matchInput
	}
	if deleteInput != nil {
		input["delete"] = deleteInput
	}
	count, _, err := visitNodeDeleteInput(ef.ctx, typeName, info, input, ef.rc)
	return count, err
}

// CreateRels creates relationships from a create-shaped input: match
// selects source nodes, create carries the destination and properties.
func (ef *EventFacade) CreateRels(srcType, relName string, input map[string]any) ([]*Rel, error) {
	rc := ef.rc
	prefix := relPrefix(srcType, relName)
	info := NewInfo(prefix+"CreateInput", rc.typeDefs())
	single, err := relIsSingle(rc.typeDefs(), srcType, relName)
	if err != nil {
		return nil, err
	}
	return visitRelCreateInput(ef.ctx, srcType, relName, single, relPropsTypeName(rc.typeDefs(), srcType, relName), info, input, rc)
}

// ReadRels returns the relationships matching a rel-query-shaped input;
// a nil input matches every relationship of the name.
func (ef *EventFacade) ReadRels(srcType, relName string, matchInput map[string]any) ([]*Rel, error) {
	rc := ef.rc
	prefix := relPrefix(srcType, relName)
	sg := NewSuffixGenerator()
	relVar := NewRelQueryVar(relName, sg.Suffix(),
		NewNodeQueryVar(srcType, "src", sg.Suffix()),
		NewNodeQueryVar("", "dst", sg.Suffix()))
	info := NewInfo(prefix+"QueryInput", rc.typeDefs())
	var input any
	if matchInput != nil {
		input = matchInput
	}
	frag, err := visitRelQueryInput(ef.ctx, relVar, nil, info, input, sg, rc)
	if err != nil {
		return nil, err
	}
	return rc.tx.ReadRels(ef.ctx, frag, relVar, relPropsTypeName(rc.typeDefs(), srcType, relName), rc.partitionKey)
}

// UpdateRels updates the relationships matching matchInput with
// updateInput and returns them.
func (ef *EventFacade) UpdateRels(srcType, relName string, matchInput, updateInput map[string]any) ([]*Rel, error) {
	rc := ef.rc
	prefix := relPrefix(srcType, relName)
	info := NewInfo(prefix+"UpdateInput", rc.typeDefs())
	input := map[string]any{"update": updateInput}
	if matchInput != nil {
		input["match"] = matchInput
	}
	return visitRelUpdateInput(ef.ctx, srcType, nil, relName, relPropsTypeName(rc.typeDefs(), srcType, relName), info, input, rc)
}

// DeleteRels deletes the relationships matching matchInput, with
// optional src and dst cascade subtrees, and returns the count deleted.
func (ef *EventFacade) DeleteRels(srcType, relName string, input map[string]any) (int, error) {
	rc := ef.rc
	prefix := relPrefix(srcType, relName)
	info := NewInfo(prefix+"DeleteInput", rc.typeDefs())
	count, _, err := visitRelDeleteInput(ef.ctx, srcType, nil, relName, relPropsTypeName(rc.typeDefs(), srcType, relName), info, input, rc)
	return count, err
}
