package grapht

import (
	"context"
)

// The planner is a family of mutually recursive visitor functions, one
// per input type the schema synthesizer emits. Each visitor descends one
// level of the nested input value: filter positions compile to a
// QueryFragment, mutation positions execute CRUD calls on the request's
// open transaction and return the resulting nodes or relationships.
// GraphQL's own type system routes requests to the right entry visitor
// through the PropertyKind dispatch in the resolvers.

// asInputObject checks that a visitor received the object shape its input
// type declares.
func asInputObject(info *Info, input any) (map[string]any, error) {
	m, ok := input.(map[string]any)
	if !ok {
		return nil, NewError(ErrInputTypeMismatch, "%s expects an object, got %T", info.Name, input)
	}
	return m, nil
}

// asInputList normalizes a list-or-single input position into a slice.
func asInputList(input any) []any {
	if list, ok := input.([]any); ok {
		return list
	}
	return []any{input}
}

// validateInput runs the named registered validator against a raw scalar
// value before the write that carries it is issued.
func validateInput(rc *resolverContext, validatorName string, value any) error {
	v, ok := rc.engine.validators[validatorName]
	if !ok {
		return NewError(ErrValidatorNotFound, "no validator registered under %s", validatorName)
	}
	if err := v(value); err != nil {
		if IsKind(err, ErrValidationError) {
			return err
		}
		return WrapError(ErrValidationError, err, "%s", err.Error())
	}
	return nil
}

// relIsSingle reports whether the relationship is declared
// single-cardinality, from the rel field on the source node object.
func relIsSingle(defs map[string]*NodeTypeDef, srcLabel, relName string) (bool, error) {
	td, ok := defs[srcLabel]
	if !ok {
		return false, NewError(ErrSchemaItemNotFound, "%s", srcLabel)
	}
	p, err := td.Prop(relName)
	if err != nil {
		return false, err
	}
	return !p.List, nil
}

// relPropsTypeName returns the name of the relationship's props object,
// or the empty string when the relationship declares no properties.
func relPropsTypeName(defs map[string]*NodeTypeDef, srcLabel, relName string) string {
	td, ok := defs[relPrefix(srcLabel, relName)+"Rel"]
	if !ok {
		return ""
	}
	if p, ok := td.Props["props"]; ok {
		return p.TypeName
	}
	return ""
}

// splitMutationProps walks a mutation input one level, returning the
// scalar properties (validated) and the relationship sub-inputs keyed by
// field name.
func splitMutationProps(itd *NodeTypeDef, m map[string]any, rc *resolverContext) (map[string]any, map[string]*Property, error) {
	props := map[string]any{}
	relInputs := map[string]*Property{}
	for k, v := range m {
		p, err := itd.Prop(k)
		if err != nil {
			return nil, nil, err
		}
		switch p.Kind {
		case PropScalar, PropDynamicScalar:
			if p.Validator != "" {
				if err := validateInput(rc, p.Validator, v); err != nil {
					return nil, nil, err
				}
			}
			props[k] = normalizeValue(v)
		case PropInput:
			relInputs[k] = p
		default:
			return nil, nil, NewError(ErrInvalidProperty, "%s::%s is not writable here", itd.Name, k)
		}
	}
	return props, relInputs, nil
}

// visitNodeCreateMutationInput creates one node of the labeled type,
// including any nested relationship payloads, and returns it.
func visitNodeCreateMutationInput(ctx context.Context, label string, info *Info, input any, rc *resolverContext) (*Node, error) {
	rc.logger.Trace().Str("label", label).Str("info", info.Name).Msg("visit node create mutation input")

	itd, err := info.TypeDef()
	if err != nil {
		return nil, err
	}
	m, err := asInputObject(info, input)
	if err != nil {
		return nil, err
	}
	props, relInputs, err := splitMutationProps(itd, m, rc)
	if err != nil {
		return nil, err
	}

	sg := NewSuffixGenerator()
	nodeVar := NewNodeQueryVar(label, "node", sg.Suffix())
	node, err := rc.tx.CreateNode(ctx, nodeVar, props, rc.partitionKey, NewInfo(label, info.TypeDefs), sg)
	if err != nil {
		return nil, err
	}
	id, err := node.ID()
	if err != nil {
		return nil, err
	}

	for k, p := range relInputs {
		single, err := relIsSingle(info.TypeDefs, label, p.RelName)
		if err != nil {
			return nil, err
		}
		for _, elem := range asInputList(m[k]) {
			if elem == nil {
				continue
			}
			if _, err := visitRelCreateMutationInput(ctx, label, []string{id}, p.RelName, single,
				relPropsTypeName(info.TypeDefs, label, p.RelName), info.For(p.TypeName), elem, rc); err != nil {
				return nil, err
			}
		}
	}
	return node, nil
}

// visitNodeQueryInput compiles a node filter subtree into a fragment.
// restrictIDs, when non-nil, narrows the match to the given ids in
// addition to the filter.
func visitNodeQueryInput(ctx context.Context, nodeVar *NodeQueryVar, restrictIDs []string, info *Info, input any, sg *SuffixGenerator, rc *resolverContext) (QueryFragment, error) {
	rc.logger.Trace().Str("var", nodeVar.Name()).Str("info", info.Name).Msg("visit node query input")

	itd, err := info.TypeDef()
	if err != nil {
		return nil, err
	}

	comparisons := map[string][]Comparison{}
	var relFragments []QueryFragment

	if input != nil {
		m, err := asInputObject(info, input)
		if err != nil {
			return nil, err
		}
		for k, v := range m {
			p, err := itd.Prop(k)
			if err != nil {
				return nil, err
			}
			switch p.Kind {
			case PropScalar, PropDynamicScalar:
				comps, err := comparisonsFromFilter(k, v)
				if err != nil {
					return nil, err
				}
				comparisons[k] = append(comparisons[k], comps...)
			case PropInput:
				// A relationship filter nested in a node filter shares
				// the node's variable as the relationship source, which
				// is what joins the two patterns. A to-many relationship's
				// filter arrives as a list; each element adds its own pattern.
				for _, elem := range asInputList(v) {
					relVar := NewRelQueryVar(p.RelName, sg.Suffix(), nodeVar,
						NewNodeQueryVar("", "dst", sg.Suffix()))
					frag, err := visitRelQueryInput(ctx, relVar, nil, info.For(p.TypeName), elem, sg, rc)
					if err != nil {
						return nil, err
					}
					relFragments = append(relFragments, frag)
				}
			default:
				return nil, NewError(ErrInvalidProperty, "%s::%s cannot appear in a filter", info.Name, k)
			}
		}
	}

	if restrictIDs != nil {
		comparisons["id"] = append(comparisons["id"], Comparison{Operator: OpIN, Operand: stringsToAny(restrictIDs)})
	}

	return rc.tx.NodeReadFragment(relFragments, nodeVar, comparisons, sg)
}

func stringsToAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

// visitNodeInput resolves a NEW/EXISTING choice to destination node ids:
// NEW creates the node, EXISTING compiles and runs the filter. Exactly
// one of the two keys must be present.
func visitNodeInput(ctx context.Context, label string, info *Info, input any, rc *resolverContext) ([]string, error) {
	rc.logger.Trace().Str("label", label).Str("info", info.Name).Msg("visit node input")

	itd, err := info.TypeDef()
	if err != nil {
		return nil, err
	}
	m, err := asInputObject(info, input)
	if err != nil {
		return nil, err
	}
	if len(m) != 1 {
		return nil, NewError(ErrMissingProperty, "%s requires exactly one of NEW or EXISTING", info.Name)
	}

	for k, v := range m {
		p, err := itd.Prop(k)
		if err != nil {
			return nil, err
		}
		switch k {
		case "NEW":
			node, err := visitNodeCreateMutationInput(ctx, label, info.For(p.TypeName), v, rc)
			if err != nil {
				return nil, err
			}
			id, err := node.ID()
			if err != nil {
				return nil, err
			}
			return []string{id}, nil
		case "EXISTING":
			sg := NewSuffixGenerator()
			nodeVar := NewNodeQueryVar(label, "node", sg.Suffix())
			frag, err := visitNodeQueryInput(ctx, nodeVar, nil, info.For(p.TypeName), v, sg, rc)
			if err != nil {
				return nil, err
			}
			nodes, err := rc.tx.ReadNodes(ctx, nodeVar, frag, rc.partitionKey, NewInfo(label, info.TypeDefs))
			if err != nil {
				return nil, err
			}
			return nodeIDs(nodes)
		default:
			return nil, NewError(ErrInvalidProperty, "%s::%s", info.Name, k)
		}
	}
	return nil, NewError(ErrMissingProperty, "%s requires NEW or EXISTING", info.Name)
}

// visitRelNodesMutationInputUnion picks the destination type of a
// relationship creation and resolves its NEW/EXISTING payload to ids.
func visitRelNodesMutationInputUnion(ctx context.Context, info *Info, input any, rc *resolverContext) (string, []string, error) {
	rc.logger.Trace().Str("info", info.Name).Msg("visit rel nodes mutation input union")

	itd, err := info.TypeDef()
	if err != nil {
		return "", nil, err
	}
	m, err := asInputObject(info, input)
	if err != nil {
		return "", nil, err
	}
	if len(m) != 1 {
		return "", nil, NewError(ErrMissingProperty, "%s requires exactly one destination type", info.Name)
	}
	for k, v := range m {
		p, err := itd.Prop(k)
		if err != nil {
			return "", nil, err
		}
		ids, err := visitNodeInput(ctx, k, info.For(p.TypeName), v, rc)
		if err != nil {
			return "", nil, err
		}
		return k, ids, nil
	}
	return "", nil, NewError(ErrMissingProperty, "%s is empty", info.Name)
}

// relPropsFromInput extracts and validates the props payload of a
// relationship mutation.
func relPropsFromInput(info *Info, itd *NodeTypeDef, m map[string]any, rc *resolverContext) (map[string]any, error) {
	props := map[string]any{}
	raw, ok := m["props"]
	if !ok || raw == nil {
		return props, nil
	}
	p, err := itd.Prop("props")
	if err != nil {
		return nil, err
	}
	ptd, err := info.TypeDefByName(p.TypeName)
	if err != nil {
		return nil, err
	}
	pm, ok := raw.(map[string]any)
	if !ok {
		return nil, NewError(ErrInputTypeMismatch, "%s::props expects an object", info.Name)
	}
	for k, v := range pm {
		pp, err := ptd.Prop(k)
		if err != nil {
			return nil, err
		}
		if pp.Validator != "" {
			if err := validateInput(rc, pp.Validator, v); err != nil {
				return nil, err
			}
		}
		props[k] = normalizeValue(v)
	}
	return props, nil
}

// visitRelCreateMutationInput creates relationships from each source id
// to the destinations named by the payload's dst subtree.
func visitRelCreateMutationInput(ctx context.Context, srcLabel string, srcIDs []string, relName string, single bool, propsTypeName string, info *Info, input any, rc *resolverContext) ([]*Rel, error) {
	rc.logger.Trace().Str("src", srcLabel).Str("rel", relName).Str("info", info.Name).Msg("visit rel create mutation input")

	itd, err := info.TypeDef()
	if err != nil {
		return nil, err
	}
	m, err := asInputObject(info, input)
	if err != nil {
		return nil, err
	}
	dstInput, ok := m["dst"]
	if !ok {
		return nil, NewError(ErrMissingProperty, "%s::dst", info.Name)
	}
	dstProp, err := itd.Prop("dst")
	if err != nil {
		return nil, err
	}
	dstLabel, dstIDs, err := visitRelNodesMutationInputUnion(ctx, info.For(dstProp.TypeName), dstInput, rc)
	if err != nil {
		return nil, err
	}

	props, err := relPropsFromInput(info, itd, m, rc)
	if err != nil {
		return nil, err
	}

	sg := NewSuffixGenerator()
	srcVar := NewNodeQueryVar(srcLabel, "src", sg.Suffix())
	dstVar := NewNodeQueryVar(dstLabel, "dst", sg.Suffix())
	relVar := NewRelQueryVar(relName, sg.Suffix(), srcVar, dstVar)

	srcFrag, err := rc.tx.NodeReadByIDsFragment(srcVar, srcIDs)
	if err != nil {
		return nil, err
	}
	dstFrag, err := rc.tx.NodeReadByIDsFragment(dstVar, dstIDs)
	if err != nil {
		return nil, err
	}
	return rc.tx.CreateRels(ctx, srcFrag, dstFrag, relVar, props, propsTypeName, single, rc.partitionKey, sg)
}

// visitRelCreateInput matches source nodes, then creates one batch of
// relationships per element of the create subtree.
func visitRelCreateInput(ctx context.Context, srcLabel, relName string, single bool, propsTypeName string, info *Info, input any, rc *resolverContext) ([]*Rel, error) {
	rc.logger.Trace().Str("src", srcLabel).Str("rel", relName).Str("info", info.Name).Msg("visit rel create input")

	itd, err := info.TypeDef()
	if err != nil {
		return nil, err
	}
	m, err := asInputObject(info, input)
	if err != nil {
		return nil, err
	}

	sg := NewSuffixGenerator()
	srcVar := NewNodeQueryVar(srcLabel, "src", sg.Suffix())
	matchProp, err := itd.Prop("match")
	if err != nil {
		return nil, err
	}
	frag, err := visitNodeQueryInput(ctx, srcVar, nil, info.For(matchProp.TypeName), m["match"], sg, rc)
	if err != nil {
		return nil, err
	}
	srcNodes, err := rc.tx.ReadNodes(ctx, srcVar, frag, rc.partitionKey, NewInfo(srcLabel, info.TypeDefs))
	if err != nil {
		return nil, err
	}
	srcIDs, err := nodeIDs(srcNodes)
	if err != nil {
		return nil, err
	}

	createInput, ok := m["create"]
	if !ok {
		return nil, NewError(ErrMissingProperty, "%s::create", info.Name)
	}
	createProp, err := itd.Prop("create")
	if err != nil {
		return nil, err
	}

	var rels []*Rel
	for _, elem := range asInputList(createInput) {
		batch, err := visitRelCreateMutationInput(ctx, srcLabel, srcIDs, relName, single, propsTypeName,
			info.For(createProp.TypeName), elem, rc)
		if err != nil {
			return nil, err
		}
		rels = append(rels, batch...)
	}
	return rels, nil
}

// visitRelQueryInput compiles a relationship filter subtree into a
// fragment. srcIDs, when non-nil, narrows the source endpoint.
func visitRelQueryInput(ctx context.Context, relVar *RelQueryVar, srcIDs []string, info *Info, input any, sg *SuffixGenerator, rc *resolverContext) (QueryFragment, error) {
	rc.logger.Trace().Str("rel", relVar.RelName).Str("info", info.Name).Msg("visit rel query input")

	itd, err := info.TypeDef()
	if err != nil {
		return nil, err
	}

	comparisons := map[string][]Comparison{}
	var srcFrag, dstFrag QueryFragment
	var srcSub, dstSub any

	if input != nil {
		m, err := asInputObject(info, input)
		if err != nil {
			return nil, err
		}
		for k, v := range m {
			if _, err := itd.Prop(k); err != nil {
				return nil, err
			}
			switch k {
			case "id":
				comps, err := comparisonsFromFilter(k, v)
				if err != nil {
					return nil, err
				}
				comparisons[k] = append(comparisons[k], comps...)
			case "props":
				pm, ok := v.(map[string]any)
				if !ok {
					return nil, NewError(ErrInputTypeMismatch, "%s::props expects an object", info.Name)
				}
				for pk, pv := range pm {
					comps, err := comparisonsFromFilter(pk, pv)
					if err != nil {
						return nil, err
					}
					comparisons[pk] = append(comparisons[pk], comps...)
				}
			case "src":
				srcSub = v
			case "dst":
				dstSub = v
			default:
				return nil, NewError(ErrInvalidProperty, "%s::%s", info.Name, k)
			}
		}
	}

	if srcSub != nil {
		p, err := itd.Prop("src")
		if err != nil {
			return nil, err
		}
		srcFrag, err = visitRelSrcQueryInput(ctx, relVar.Src, srcIDs, info.For(p.TypeName), srcSub, sg, rc)
		if err != nil {
			return nil, err
		}
	} else if srcIDs != nil {
		srcFrag, err = rc.tx.NodeReadByIDsFragment(relVar.Src, srcIDs)
		if err != nil {
			return nil, err
		}
	}

	if dstSub != nil {
		p, err := itd.Prop("dst")
		if err != nil {
			return nil, err
		}
		dstFrag, err = visitRelDstQueryInput(ctx, relVar.Dst, info.For(p.TypeName), dstSub, sg, rc)
		if err != nil {
			return nil, err
		}
	}

	return rc.tx.RelReadFragment(srcFrag, dstFrag, relVar, comparisons, sg)
}

// visitRelSrcQueryInput descends the source-side filter carrier, whose
// single key names the source type.
func visitRelSrcQueryInput(ctx context.Context, srcVar *NodeQueryVar, srcIDs []string, info *Info, input any, sg *SuffixGenerator, rc *resolverContext) (QueryFragment, error) {
	itd, err := info.TypeDef()
	if err != nil {
		return nil, err
	}
	m, err := asInputObject(info, input)
	if err != nil {
		return nil, err
	}
	for k, v := range m {
		p, err := itd.Prop(k)
		if err != nil {
			return nil, err
		}
		return visitNodeQueryInput(ctx, srcVar, srcIDs, info.For(p.TypeName), v, sg, rc)
	}
	// An empty src subtree still narrows by ids when requested.
	if srcIDs != nil {
		return rc.tx.NodeReadByIDsFragment(srcVar, srcIDs)
	}
	return nil, nil
}

// visitRelDstQueryInput descends the destination-side filter carrier,
// whose single key names the destination type and fixes the destination
// variable's label.
func visitRelDstQueryInput(ctx context.Context, dstVar *NodeQueryVar, info *Info, input any, sg *SuffixGenerator, rc *resolverContext) (QueryFragment, error) {
	itd, err := info.TypeDef()
	if err != nil {
		return nil, err
	}
	m, err := asInputObject(info, input)
	if err != nil {
		return nil, err
	}
	for k, v := range m {
		p, err := itd.Prop(k)
		if err != nil {
			return nil, err
		}
		dstVar.Label = k
		return visitNodeQueryInput(ctx, dstVar, nil, info.For(p.TypeName), v, sg, rc)
	}
	return nil, nil
}

// visitNodeUpdateInput matches the target nodes, then applies the modify
// subtree to them.
func visitNodeUpdateInput(ctx context.Context, label string, info *Info, input any, rc *resolverContext) ([]*Node, error) {
	rc.logger.Trace().Str("label", label).Str("info", info.Name).Msg("visit node update input")

	itd, err := info.TypeDef()
	if err != nil {
		return nil, err
	}
	m, err := asInputObject(info, input)
	if err != nil {
		return nil, err
	}

	sg := NewSuffixGenerator()
	nodeVar := NewNodeQueryVar(label, "node", sg.Suffix())
	matchProp, err := itd.Prop("match")
	if err != nil {
		return nil, err
	}
	frag, err := visitNodeQueryInput(ctx, nodeVar, nil, info.For(matchProp.TypeName), m["match"], sg, rc)
	if err != nil {
		return nil, err
	}
	nodes, err := rc.tx.ReadNodes(ctx, nodeVar, frag, rc.partitionKey, NewInfo(label, info.TypeDefs))
	if err != nil {
		return nil, err
	}
	ids, err := nodeIDs(nodes)
	if err != nil {
		return nil, err
	}

	modify, ok := m["modify"]
	if !ok {
		return nil, NewError(ErrMissingProperty, "%s::modify", info.Name)
	}
	modifyProp, err := itd.Prop("modify")
	if err != nil {
		return nil, err
	}
	return visitNodeUpdateMutationInput(ctx, label, ids, info.For(modifyProp.TypeName), modify, rc)
}

// visitNodeUpdateMutationInput sets scalar properties on the identified
// nodes, then re-enters the planner for each relationship change subtree.
func visitNodeUpdateMutationInput(ctx context.Context, label string, ids []string, info *Info, input any, rc *resolverContext) ([]*Node, error) {
	rc.logger.Trace().Str("label", label).Str("info", info.Name).Msg("visit node update mutation input")

	itd, err := info.TypeDef()
	if err != nil {
		return nil, err
	}
	m, err := asInputObject(info, input)
	if err != nil {
		return nil, err
	}
	props, relInputs, err := splitMutationProps(itd, m, rc)
	if err != nil {
		return nil, err
	}

	sg := NewSuffixGenerator()
	nodeVar := NewNodeQueryVar(label, "node", sg.Suffix())
	frag, err := rc.tx.NodeReadByIDsFragment(nodeVar, ids)
	if err != nil {
		return nil, err
	}
	nodes, err := rc.tx.UpdateNodes(ctx, frag, nodeVar, props, rc.partitionKey, NewInfo(label, info.TypeDefs))
	if err != nil {
		return nil, err
	}
	updatedIDs, err := nodeIDs(nodes)
	if err != nil {
		return nil, err
	}

	for k, p := range relInputs {
		single, err := relIsSingle(info.TypeDefs, label, p.RelName)
		if err != nil {
			return nil, err
		}
		for _, elem := range asInputList(m[k]) {
			if elem == nil {
				continue
			}
			if err := visitRelChangeInput(ctx, label, updatedIDs, p.RelName, single,
				relPropsTypeName(info.TypeDefs, label, p.RelName), info.For(p.TypeName), elem, rc); err != nil {
				return nil, err
			}
		}
	}
	return nodes, nil
}

// visitRelChangeInput selects exactly one of ADD, UPDATE, or DELETE and
// delegates. Supplying more than one change at once is an error.
func visitRelChangeInput(ctx context.Context, srcLabel string, srcIDs []string, relName string, single bool, propsTypeName string, info *Info, input any, rc *resolverContext) error {
	rc.logger.Trace().Str("src", srcLabel).Str("rel", relName).Str("info", info.Name).Msg("visit rel change input")

	itd, err := info.TypeDef()
	if err != nil {
		return err
	}
	m, err := asInputObject(info, input)
	if err != nil {
		return err
	}
	if len(m) > 1 {
		return NewError(ErrInvalidProperty, "%s accepts only one of ADD, UPDATE, or DELETE at a time", info.Name)
	}

	if v, ok := m["ADD"]; ok {
		p, err := itd.Prop("ADD")
		if err != nil {
			return err
		}
		for _, elem := range asInputList(v) {
			if _, err := visitRelCreateMutationInput(ctx, srcLabel, srcIDs, relName, single, propsTypeName,
				info.For(p.TypeName), elem, rc); err != nil {
				return err
			}
		}
		return nil
	}
	if v, ok := m["UPDATE"]; ok {
		p, err := itd.Prop("UPDATE")
		if err != nil {
			return err
		}
		for _, elem := range asInputList(v) {
			if _, err := visitRelUpdateInput(ctx, srcLabel, srcIDs, relName, propsTypeName,
				info.For(p.TypeName), elem, rc); err != nil {
				return err
			}
		}
		return nil
	}
	if v, ok := m["DELETE"]; ok {
		p, err := itd.Prop("DELETE")
		if err != nil {
			return err
		}
		for _, elem := range asInputList(v) {
			if _, _, err := visitRelDeleteInput(ctx, srcLabel, srcIDs, relName, propsTypeName,
				info.For(p.TypeName), elem, rc); err != nil {
				return err
			}
		}
		return nil
	}
	return NewError(ErrMissingProperty, "%s::ADD|UPDATE|DELETE", info.Name)
}

// visitRelUpdateInput matches the target relationships, then applies the
// update subtree to them.
func visitRelUpdateInput(ctx context.Context, srcLabel string, srcIDs []string, relName, propsTypeName string, info *Info, input any, rc *resolverContext) ([]*Rel, error) {
	rc.logger.Trace().Str("src", srcLabel).Str("rel", relName).Str("info", info.Name).Msg("visit rel update input")

	itd, err := info.TypeDef()
	if err != nil {
		return nil, err
	}
	m, err := asInputObject(info, input)
	if err != nil {
		return nil, err
	}

	sg := NewSuffixGenerator()
	relVar := NewRelQueryVar(relName, sg.Suffix(),
		NewNodeQueryVar(srcLabel, "src", sg.Suffix()),
		NewNodeQueryVar("", "dst", sg.Suffix()))
	matchProp, err := itd.Prop("match")
	if err != nil {
		return nil, err
	}
	frag, err := visitRelQueryInput(ctx, relVar, srcIDs, info.For(matchProp.TypeName), m["match"], sg, rc)
	if err != nil {
		return nil, err
	}
	rels, err := rc.tx.ReadRels(ctx, frag, relVar, propsTypeName, rc.partitionKey)
	if err != nil {
		return nil, err
	}

	update, ok := m["update"]
	if !ok {
		return nil, NewError(ErrMissingProperty, "%s::update", info.Name)
	}
	updateProp, err := itd.Prop("update")
	if err != nil {
		return nil, err
	}
	return visitRelUpdateMutationInput(ctx, srcLabel, relName, propsTypeName, rels, info.For(updateProp.TypeName), update, rc)
}

// visitRelUpdateMutationInput sets relationship properties, then recurses
// into the src and dst update subtrees against the endpoints of the
// matched relationships.
func visitRelUpdateMutationInput(ctx context.Context, srcLabel, relName, propsTypeName string, rels []*Rel, info *Info, input any, rc *resolverContext) ([]*Rel, error) {
	rc.logger.Trace().Str("src", srcLabel).Str("rel", relName).Str("info", info.Name).Msg("visit rel update mutation input")

	itd, err := info.TypeDef()
	if err != nil {
		return nil, err
	}
	m, err := asInputObject(info, input)
	if err != nil {
		return nil, err
	}
	props, err := relPropsFromInput(info, itd, m, rc)
	if err != nil {
		return nil, err
	}

	sg := NewSuffixGenerator()
	relVar := NewRelQueryVar(relName, sg.Suffix(),
		NewNodeQueryVar(srcLabel, "src", sg.Suffix()),
		NewNodeQueryVar("", "dst", sg.Suffix()))
	frag, err := rc.tx.RelReadByIDsFragment(relVar, relIDs(rels))
	if err != nil {
		return nil, err
	}
	updated, err := rc.tx.UpdateRels(ctx, frag, relVar, props, propsTypeName, rc.partitionKey)
	if err != nil {
		return nil, err
	}

	if v, ok := m["src"]; ok && v != nil {
		p, err := itd.Prop("src")
		if err != nil {
			return nil, err
		}
		if err := visitRelSrcUpdateMutationInput(ctx, srcLabel, relSrcIDs(rels), info.For(p.TypeName), v, rc); err != nil {
			return nil, err
		}
	}
	if v, ok := m["dst"]; ok && v != nil {
		p, err := itd.Prop("dst")
		if err != nil {
			return nil, err
		}
		if err := visitRelDstUpdateMutationInput(ctx, relDstIDs(rels), info.For(p.TypeName), v, rc); err != nil {
			return nil, err
		}
	}
	return updated, nil
}

// visitRelSrcUpdateMutationInput applies a node update to the matched
// relationships' source nodes.
func visitRelSrcUpdateMutationInput(ctx context.Context, srcLabel string, ids []string, info *Info, input any, rc *resolverContext) error {
	itd, err := info.TypeDef()
	if err != nil {
		return err
	}
	m, err := asInputObject(info, input)
	if err != nil {
		return err
	}
	for k, v := range m {
		p, err := itd.Prop(k)
		if err != nil {
			return err
		}
		if _, err := visitNodeUpdateMutationInput(ctx, srcLabel, ids, info.For(p.TypeName), v, rc); err != nil {
			return err
		}
	}
	return nil
}

// visitRelDstUpdateMutationInput applies a node update to the matched
// relationships' destination nodes, keyed by destination type.
func visitRelDstUpdateMutationInput(ctx context.Context, ids []string, info *Info, input any, rc *resolverContext) error {
	itd, err := info.TypeDef()
	if err != nil {
		return err
	}
	m, err := asInputObject(info, input)
	if err != nil {
		return err
	}
	for k, v := range m {
		p, err := itd.Prop(k)
		if err != nil {
			return err
		}
		if _, err := visitNodeUpdateMutationInput(ctx, k, ids, info.For(p.TypeName), v, rc); err != nil {
			return err
		}
	}
	return nil
}

// visitRelDeleteInput matches the target relationships, deletes them,
// then cascades one level into the src and dst subtrees. It returns the
// count of relationships deleted and the matched relationships.
func visitRelDeleteInput(ctx context.Context, srcLabel string, srcIDs []string, relName, propsTypeName string, info *Info, input any, rc *resolverContext) (int, []*Rel, error) {
	rc.logger.Trace().Str("src", srcLabel).Str("rel", relName).Str("info", info.Name).Msg("visit rel delete input")

	itd, err := info.TypeDef()
	if err != nil {
		return 0, nil, err
	}
	m, err := asInputObject(info, input)
	if err != nil {
		return 0, nil, err
	}

	sg := NewSuffixGenerator()
	relVar := NewRelQueryVar(relName, sg.Suffix(),
		NewNodeQueryVar(srcLabel, "src", sg.Suffix()),
		NewNodeQueryVar("", "dst", sg.Suffix()))
	matchProp, err := itd.Prop("match")
	if err != nil {
		return 0, nil, err
	}
	frag, err := visitRelQueryInput(ctx, relVar, srcIDs, info.For(matchProp.TypeName), m["match"], sg, rc)
	if err != nil {
		return 0, nil, err
	}
	rels, err := rc.tx.ReadRels(ctx, frag, relVar, propsTypeName, rc.partitionKey)
	if err != nil {
		return 0, nil, err
	}

	delVar := NewRelQueryVar(relName, sg.Suffix(),
		NewNodeQueryVar(srcLabel, "src", sg.Suffix()),
		NewNodeQueryVar("", "dst", sg.Suffix()))
	delFrag, err := rc.tx.RelReadByIDsFragment(delVar, relIDs(rels))
	if err != nil {
		return 0, nil, err
	}
	count, err := rc.tx.DeleteRels(ctx, delFrag, delVar, rc.partitionKey)
	if err != nil {
		return 0, nil, err
	}

	if v, ok := m["src"]; ok && v != nil {
		p, err := itd.Prop("src")
		if err != nil {
			return 0, nil, err
		}
		if err := visitRelSrcDeleteMutationInput(ctx, srcLabel, relSrcIDs(rels), info.For(p.TypeName), v, rc); err != nil {
			return 0, nil, err
		}
	}
	if v, ok := m["dst"]; ok && v != nil {
		p, err := itd.Prop("dst")
		if err != nil {
			return 0, nil, err
		}
		if err := visitRelDstDeleteMutationInput(ctx, relDstIDs(rels), info.For(p.TypeName), v, rc); err != nil {
			return 0, nil, err
		}
	}
	return count, rels, nil
}

// visitRelSrcDeleteMutationInput cascades a delete into the matched
// relationships' source nodes.
func visitRelSrcDeleteMutationInput(ctx context.Context, srcLabel string, ids []string, info *Info, input any, rc *resolverContext) error {
	itd, err := info.TypeDef()
	if err != nil {
		return err
	}
	m, err := asInputObject(info, input)
	if err != nil {
		return err
	}
	for k, v := range m {
		p, err := itd.Prop(k)
		if err != nil {
			return err
		}
		if _, err := visitNodeDeleteMutationInput(ctx, srcLabel, ids, info.For(p.TypeName), v, rc); err != nil {
			return err
		}
	}
	return nil
}

// visitRelDstDeleteMutationInput cascades a delete into the matched
// relationships' destination nodes, keyed by destination type.
func visitRelDstDeleteMutationInput(ctx context.Context, ids []string, info *Info, input any, rc *resolverContext) error {
	itd, err := info.TypeDef()
	if err != nil {
		return err
	}
	m, err := asInputObject(info, input)
	if err != nil {
		return err
	}
	for k, v := range m {
		p, err := itd.Prop(k)
		if err != nil {
			return err
		}
		if _, err := visitNodeDeleteMutationInput(ctx, k, ids, info.For(p.TypeName), v, rc); err != nil {
			return err
		}
	}
	return nil
}

// visitNodeDeleteInput matches the target nodes, then applies the delete
// subtree to them. It returns the count of nodes deleted and the matched
// nodes.
func visitNodeDeleteInput(ctx context.Context, label string, info *Info, input any, rc *resolverContext) (int, []*Node, error) {
	rc.logger.Trace().Str("label", label).Str("info", info.Name).Msg("visit node delete input")

	itd, err := info.TypeDef()
	if err != nil {
		return 0, nil, err
	}
	m, err := asInputObject(info, input)
	if err != nil {
		return 0, nil, err
	}

	sg := NewSuffixGenerator()
	nodeVar := NewNodeQueryVar(label, "node", sg.Suffix())
	matchProp, err := itd.Prop("match")
	if err != nil {
		return 0, nil, err
	}
	frag, err := visitNodeQueryInput(ctx, nodeVar, nil, info.For(matchProp.TypeName), m["match"], sg, rc)
	if err != nil {
		return 0, nil, err
	}
	nodes, err := rc.tx.ReadNodes(ctx, nodeVar, frag, rc.partitionKey, NewInfo(label, info.TypeDefs))
	if err != nil {
		return 0, nil, err
	}
	ids, err := nodeIDs(nodes)
	if err != nil {
		return 0, nil, err
	}

	deleteProp, err := itd.Prop("delete")
	if err != nil {
		return 0, nil, err
	}
	// An omitted delete subtree means no force and no cascades.
	deleteInput := m["delete"]
	if deleteInput == nil {
		deleteInput = map[string]any{}
	}
	count, err := visitNodeDeleteMutationInput(ctx, label, ids, info.For(deleteProp.TypeName), deleteInput, rc)
	if err != nil {
		return 0, nil, err
	}
	return count, nodes, nil
}

// visitNodeDeleteMutationInput deletes the identified nodes. Explicit
// relationship subtrees cascade first; remaining relationships block the
// delete unless force is set, in which case they are detached.
func visitNodeDeleteMutationInput(ctx context.Context, label string, ids []string, info *Info, input any, rc *resolverContext) (int, error) {
	rc.logger.Trace().Str("label", label).Str("info", info.Name).Msg("visit node delete mutation input")

	itd, err := info.TypeDef()
	if err != nil {
		return 0, err
	}

	force := false
	if input != nil {
		m, err := asInputObject(info, input)
		if err != nil {
			return 0, err
		}
		for k, v := range m {
			p, err := itd.Prop(k)
			if err != nil {
				return 0, err
			}
			switch p.Kind {
			case PropScalar:
				if k == "force" && v == true {
					force = true
				}
			case PropInput:
				for _, elem := range asInputList(v) {
					if elem == nil {
						continue
					}
					if _, _, err := visitRelDeleteInput(ctx, label, ids, p.RelName,
						relPropsTypeName(info.TypeDefs, label, p.RelName), info.For(p.TypeName), elem, rc); err != nil {
						return 0, err
					}
				}
			default:
				return 0, NewError(ErrInvalidProperty, "%s::%s", info.Name, k)
			}
		}
	}

	if !force {
		if err := requireNoRemainingRels(ctx, label, ids, info, rc); err != nil {
			return 0, err
		}
	}

	sg := NewSuffixGenerator()
	nodeVar := NewNodeQueryVar(label, "node", sg.Suffix())
	frag, err := rc.tx.NodeReadByIDsFragment(nodeVar, ids)
	if err != nil {
		return 0, err
	}
	return rc.tx.DeleteNodes(ctx, frag, nodeVar, rc.partitionKey)
}

// requireNoRemainingRels refuses a non-forced node delete while any
// outgoing relationship of the type remains on a target node.
func requireNoRemainingRels(ctx context.Context, label string, ids []string, info *Info, rc *resolverContext) error {
	td, err := info.TypeDefByName(label)
	if err != nil {
		return err
	}
	for _, p := range td.Props {
		if p.Kind != PropRel {
			continue
		}
		sg := NewSuffixGenerator()
		relVar := NewRelQueryVar(p.RelName, sg.Suffix(),
			NewNodeQueryVar(label, "src", sg.Suffix()),
			NewNodeQueryVar("", "dst", sg.Suffix()))
		srcFrag, err := rc.tx.NodeReadByIDsFragment(relVar.Src, ids)
		if err != nil {
			return err
		}
		frag, err := rc.tx.RelReadFragment(srcFrag, nil, relVar, nil, sg)
		if err != nil {
			return err
		}
		rels, err := rc.tx.ReadRels(ctx, frag, relVar, "", rc.partitionKey)
		if err != nil {
			return err
		}
		if len(rels) > 0 {
			return NewError(ErrRelsRemaining, "%s still has %s relationships; set force to delete them", label, p.RelName)
		}
	}
	return nil
}
