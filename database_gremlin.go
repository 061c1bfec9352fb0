package grapht

import (
	"context"
	"fmt"
	"strings"

	gremlingo "github.com/apache/tinkerpop/gremlin-go/v3/driver"
	"github.com/google/uuid"
)

// GremlinEndpoint connects the engine to a Gremlin-speaking traversal
// store, configured the way a Cosmos DB graph account is. The store is
// partitioned: every data operation requires the request to supply a
// partition key, and fails with PartitionKeyNotFound without one.
type GremlinEndpoint struct {
	host string
	port uint16
	user string
	pass string
}

// NewGremlinEndpoint creates an endpoint from explicit settings.
func NewGremlinEndpoint(host string, port uint16, user, pass string) *GremlinEndpoint {
	return &GremlinEndpoint{host: host, port: port, user: user, pass: pass}
}

// GremlinEndpointFromEnv creates an endpoint from the environment:
//
//   - WG_COSMOS_HOST - the account hostname
//   - WG_COSMOS_PORT - the gremlin port number, typically 443
//   - WG_COSMOS_USER - the database and collection, e.g. /dbs/db/colls/coll
//   - WG_COSMOS_PASS - the read/write key
func GremlinEndpointFromEnv() (*GremlinEndpoint, error) {
	host, err := envString("WG_COSMOS_HOST")
	if err != nil {
		return nil, err
	}
	port, err := envUint16("WG_COSMOS_PORT")
	if err != nil {
		return nil, err
	}
	user, err := envString("WG_COSMOS_USER")
	if err != nil {
		return nil, err
	}
	pass, err := envString("WG_COSMOS_PASS")
	if err != nil {
		return nil, err
	}
	return NewGremlinEndpoint(host, port, user, pass), nil
}

// Pool opens a driver client shared by the pool's transactions.
func (e *GremlinEndpoint) Pool(ctx context.Context) (Pool, error) {
	url := fmt.Sprintf("wss://%s:%d/gremlin", e.host, e.port)
	client, err := gremlingo.NewClient(url, func(settings *gremlingo.ClientSettings) {
		settings.AuthInfo = gremlingo.BasicAuthInfo(e.user, e.pass)
	})
	if err != nil {
		return nil, WrapError(ErrClientRequestFailed, err, "cannot open gremlin client for %s", url)
	}
	return &gremlinPool{client: client}, nil
}

type gremlinPool struct {
	client *gremlingo.Client
}

func (p *gremlinPool) ReadTransaction(ctx context.Context) (Transaction, error) {
	return &gremlinTransaction{client: p.client}, nil
}

func (p *gremlinPool) Transaction(ctx context.Context) (Transaction, error) {
	return &gremlinTransaction{client: p.client}, nil
}

func (p *gremlinPool) Close(ctx context.Context) error {
	p.client.Close()
	return nil
}

// gremlinTransaction submits traversals through the shared client. The
// target store commits each traversal as it lands, so the transaction
// lifecycle methods are accepted and ignored; all-or-nothing semantics
// are only as strong as the store provides.
type gremlinTransaction struct {
	client *gremlingo.Client
}

func (t *gremlinTransaction) Begin(ctx context.Context) error    { return nil }
func (t *gremlinTransaction) Commit(ctx context.Context) error   { return nil }
func (t *gremlinTransaction) Rollback(ctx context.Context) error { return nil }

func (t *gremlinTransaction) submit(query string, bindings map[string]any) ([]*gremlingo.Result, error) {
	rs, err := t.client.Submit(query, bindings)
	if err != nil {
		return nil, WrapError(ErrClientRequestFailed, err, "traversal failed")
	}
	results, err := rs.All()
	if err != nil {
		return nil, WrapError(ErrClientRequestFailed, err, "cannot collect traversal result")
	}
	return results, nil
}

func (t *gremlinTransaction) ExecuteQuery(ctx context.Context, query string, params map[string]any) ([]map[string]any, error) {
	results, err := t.submit(query, params)
	if err != nil {
		return nil, err
	}
	rows := make([]map[string]any, 0, len(results))
	for _, r := range results {
		m, err := toStringKeyMap(r.GetInterface())
		if err != nil {
			return nil, err
		}
		rows = append(rows, m)
	}
	return rows, nil
}

// gremlinFragment is the Gremlin realization of a QueryFragment: a chain
// of filter steps applicable to the element kind it was built for, plus
// the bindings the steps reference.
type gremlinFragment struct {
	steps    string
	bindings map[string]any
	ids      []string
}

func (f *gremlinFragment) fragment() {}

func newGremlinFragment() *gremlinFragment {
	return &gremlinFragment{bindings: map[string]any{}}
}

func (f *gremlinFragment) absorbBindings(other *gremlinFragment) {
	for k, v := range other.bindings {
		f.bindings[k] = v
	}
}

func asGremlinFragment(f QueryFragment) (*gremlinFragment, error) {
	if f == nil {
		return nil, nil
	}
	gf, ok := f.(*gremlinFragment)
	if !ok {
		return nil, NewError(ErrTypeNotExpected, "fragment %T does not belong to the gremlin back end", f)
	}
	return gf, nil
}

func requirePartitionKey(partitionKey any) error {
	if partitionKey == nil {
		return NewError(ErrPartitionKeyNotFound, "this back end requires a partition key on every operation")
	}
	return nil
}

// vertexStart begins a vertex traversal scoped to the partition.
func vertexStart() string {
	return "g.V().has('partitionKey', pk)"
}

// appendComparisons renders property comparisons as has-steps.
func (f *gremlinFragment) appendComparisons(comparisons map[string][]Comparison, sg *SuffixGenerator) error {
	for field, comps := range comparisons {
		for _, c := range comps {
			b := "p" + strings.ReplaceAll(sg.Suffix(), "_", "")
			f.bindings[b] = c.Operand
			switch c.Operator {
			case OpEQ:
				f.steps += fmt.Sprintf(".has('%s', %s)", field, b)
			case OpNEQ:
				f.steps += fmt.Sprintf(".has('%s', neq(%s))", field, b)
			case OpLT:
				f.steps += fmt.Sprintf(".has('%s', lt(%s))", field, b)
			case OpLTE:
				f.steps += fmt.Sprintf(".has('%s', lte(%s))", field, b)
			case OpGT:
				f.steps += fmt.Sprintf(".has('%s', gt(%s))", field, b)
			case OpGTE:
				f.steps += fmt.Sprintf(".has('%s', gte(%s))", field, b)
			case OpIN:
				f.steps += fmt.Sprintf(".has('%s', within(%s))", field, b)
			case OpCONTAINS:
				f.steps += fmt.Sprintf(".has('%s', containing(%s))", field, b)
			default:
				return NewError(ErrInvalidProperty, "operator %s is not supported by the gremlin back end", c.Operator)
			}
		}
	}
	return nil
}

func (t *gremlinTransaction) NodeReadByIDsFragment(nodeVar *NodeQueryVar, ids []string) (QueryFragment, error) {
	f := newGremlinFragment()
	b := "ids_" + nodeVar.Name()
	if nodeVar.Label != "" {
		f.steps += fmt.Sprintf(".hasLabel('%s')", nodeVar.Label)
	}
	f.steps += fmt.Sprintf(".has('id', within(%s))", b)
	f.bindings[b] = ids
	f.ids = append([]string{}, ids...)
	return f, nil
}

func (t *gremlinTransaction) NodeReadFragment(relFragments []QueryFragment, nodeVar *NodeQueryVar, comparisons map[string][]Comparison, sg *SuffixGenerator) (QueryFragment, error) {
	f := newGremlinFragment()
	if nodeVar.Label != "" {
		f.steps += fmt.Sprintf(".hasLabel('%s')", nodeVar.Label)
	}
	if err := f.appendComparisons(comparisons, sg); err != nil {
		return nil, err
	}
	for _, rf := range relFragments {
		gf, err := asGremlinFragment(rf)
		if err != nil {
			return nil, err
		}
		f.steps += ".where(__.outE()" + gf.steps + ")"
		f.absorbBindings(gf)
	}
	return f, nil
}

func (t *gremlinTransaction) ReadNodes(ctx context.Context, nodeVar *NodeQueryVar, fragment QueryFragment, partitionKey any, info *Info) ([]*Node, error) {
	if err := requirePartitionKey(partitionKey); err != nil {
		return nil, err
	}
	f, err := asGremlinFragment(fragment)
	if err != nil {
		return nil, err
	}
	query := vertexStart() + f.steps + nodeProjection()
	bindings := map[string]any{"pk": partitionKey}
	for k, v := range f.bindings {
		bindings[k] = v
	}
	results, err := t.submit(query, bindings)
	if err != nil {
		return nil, err
	}
	nodes := make([]*Node, 0, len(results))
	for _, r := range results {
		n, err := gremlinNodeFromResult(r, info)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	return nodes, nil
}

func (t *gremlinTransaction) CreateNode(ctx context.Context, nodeVar *NodeQueryVar, props map[string]any, partitionKey any, info *Info, sg *SuffixGenerator) (*Node, error) {
	if err := requirePartitionKey(partitionKey); err != nil {
		return nil, err
	}
	id := uuid.NewString()
	query := fmt.Sprintf("g.addV('%s').property('partitionKey', pk).property('id', nid)", nodeVar.Label)
	bindings := map[string]any{"pk": partitionKey, "nid": id}
	i := 0
	for k, v := range props {
		if list, ok := v.([]any); ok {
			for _, e := range list {
				b := fmt.Sprintf("v%d", i)
				i++
				query += fmt.Sprintf(".property(list, '%s', %s)", k, b)
				bindings[b] = e
			}
			continue
		}
		b := fmt.Sprintf("v%d", i)
		i++
		query += fmt.Sprintf(".property('%s', %s)", k, b)
		bindings[b] = v
	}
	query += nodeProjection()
	results, err := t.submit(query, bindings)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, NewError(ErrResponseSetNotFound, "vertex creation returned no rows")
	}
	return gremlinNodeFromResult(results[0], info)
}

func (t *gremlinTransaction) CreateRels(ctx context.Context, src, dst QueryFragment, relVar *RelQueryVar, props map[string]any, propsTypeName string, singleRel bool, partitionKey any, sg *SuffixGenerator) ([]*Rel, error) {
	if err := requirePartitionKey(partitionKey); err != nil {
		return nil, err
	}
	sf, err := asGremlinFragment(src)
	if err != nil {
		return nil, err
	}
	df, err := asGremlinFragment(dst)
	if err != nil {
		return nil, err
	}
	if len(sf.ids) == 0 || len(df.ids) == 0 {
		return nil, NewError(ErrTypeNotExpected, "relationship creation requires id-selected endpoints")
	}

	if singleRel {
		// Multiple destinations for a single-cardinality relationship are
		// duplication even before any edge exists.
		if len(df.ids) > 1 {
			return nil, NewError(ErrRelDuplicated, "relationship %s is single-cardinality", relVar.RelName)
		}
		query := vertexStart() + sf.steps + fmt.Sprintf(".outE('%s').count()", relVar.RelName)
		bindings := map[string]any{"pk": partitionKey}
		for k, v := range sf.bindings {
			bindings[k] = v
		}
		results, err := t.submit(query, bindings)
		if err != nil {
			return nil, err
		}
		if len(results) > 0 {
			if n, err := results[0].GetInt(); err == nil && n > 0 {
				return nil, NewError(ErrRelDuplicated, "relationship %s already exists on a matched source", relVar.RelName)
			}
		}
	}

	rels := make([]*Rel, 0, len(sf.ids)*len(df.ids))
	for _, srcID := range sf.ids {
		for _, dstID := range df.ids {
			relID := uuid.NewString()
			query := vertexStart() + ".has('id', sid).as('s')" +
				".V().has('partitionKey', pk).has('id', did)" +
				fmt.Sprintf(".addE('%s').from('s').property('id', rid)", relVar.RelName)
			bindings := map[string]any{"pk": partitionKey, "sid": srcID, "did": dstID, "rid": relID}
			i := 0
			for k, v := range props {
				b := fmt.Sprintf("v%d", i)
				i++
				query += fmt.Sprintf(".property('%s', %s)", k, b)
				bindings[b] = v
			}
			query += ".id()"
			if _, err := t.submit(query, bindings); err != nil {
				return nil, err
			}

			rel := &Rel{
				ID:  relID,
				Src: NodeRef{ID: srcID, Label: relVar.Src.Label},
				Dst: NodeRef{ID: dstID, Label: relVar.Dst.Label},
			}
			if propsTypeName != "" {
				rel.Props = NewNode(propsTypeName, copyValue(props).(map[string]any))
			}
			rels = append(rels, rel)
		}
	}
	return rels, nil
}

func (t *gremlinTransaction) RelReadByIDsFragment(relVar *RelQueryVar, ids []string) (QueryFragment, error) {
	f := newGremlinFragment()
	b := "ids_" + relVar.Name()
	f.steps += fmt.Sprintf(".has('id', within(%s))", b)
	f.bindings[b] = ids
	f.ids = append([]string{}, ids...)
	return f, nil
}

func (t *gremlinTransaction) RelReadFragment(src, dst QueryFragment, relVar *RelQueryVar, comparisons map[string][]Comparison, sg *SuffixGenerator) (QueryFragment, error) {
	sf, err := asGremlinFragment(src)
	if err != nil {
		return nil, err
	}
	df, err := asGremlinFragment(dst)
	if err != nil {
		return nil, err
	}
	f := newGremlinFragment()
	// Node filters splice this fragment after an unlabeled outE(), so the
	// edge label is part of the fragment itself.
	f.steps += fmt.Sprintf(".hasLabel('%s')", relVar.RelName)
	if err := f.appendComparisons(comparisons, sg); err != nil {
		return nil, err
	}
	if sf != nil {
		f.steps += ".where(__.outV()" + sf.steps + ")"
		f.absorbBindings(sf)
	}
	if df != nil {
		f.steps += ".where(__.inV()" + df.steps + ")"
		f.absorbBindings(df)
	}
	return f, nil
}

func (t *gremlinTransaction) ReadRels(ctx context.Context, fragment QueryFragment, relVar *RelQueryVar, propsTypeName string, partitionKey any) ([]*Rel, error) {
	if err := requirePartitionKey(partitionKey); err != nil {
		return nil, err
	}
	f, err := asGremlinFragment(fragment)
	if err != nil {
		return nil, err
	}
	query := t.relQueryStart(relVar) + f.steps + relProjection()
	bindings := map[string]any{"pk": partitionKey}
	for k, v := range f.bindings {
		bindings[k] = v
	}
	results, err := t.submit(query, bindings)
	if err != nil {
		return nil, err
	}
	return gremlinRelsFromResults(results, propsTypeName)
}

func (t *gremlinTransaction) UpdateNodes(ctx context.Context, fragment QueryFragment, nodeVar *NodeQueryVar, props map[string]any, partitionKey any, info *Info) ([]*Node, error) {
	if err := requirePartitionKey(partitionKey); err != nil {
		return nil, err
	}
	f, err := asGremlinFragment(fragment)
	if err != nil {
		return nil, err
	}
	query := vertexStart() + f.steps
	bindings := map[string]any{"pk": partitionKey}
	for k, v := range f.bindings {
		bindings[k] = v
	}
	i := 0
	for k, v := range props {
		b := fmt.Sprintf("u%d", i)
		i++
		query += fmt.Sprintf(".property('%s', %s)", k, b)
		bindings[b] = v
	}
	query += nodeProjection()
	results, err := t.submit(query, bindings)
	if err != nil {
		return nil, err
	}
	nodes := make([]*Node, 0, len(results))
	for _, r := range results {
		n, err := gremlinNodeFromResult(r, info)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	return nodes, nil
}

func (t *gremlinTransaction) UpdateRels(ctx context.Context, fragment QueryFragment, relVar *RelQueryVar, props map[string]any, propsTypeName string, partitionKey any) ([]*Rel, error) {
	if err := requirePartitionKey(partitionKey); err != nil {
		return nil, err
	}
	f, err := asGremlinFragment(fragment)
	if err != nil {
		return nil, err
	}
	query := t.relQueryStart(relVar) + f.steps
	bindings := map[string]any{"pk": partitionKey}
	for k, v := range f.bindings {
		bindings[k] = v
	}
	i := 0
	for k, v := range props {
		b := fmt.Sprintf("u%d", i)
		i++
		query += fmt.Sprintf(".property('%s', %s)", k, b)
		bindings[b] = v
	}
	query += relProjection()
	results, err := t.submit(query, bindings)
	if err != nil {
		return nil, err
	}
	return gremlinRelsFromResults(results, propsTypeName)
}

func (t *gremlinTransaction) DeleteNodes(ctx context.Context, fragment QueryFragment, nodeVar *NodeQueryVar, partitionKey any) (int, error) {
	if err := requirePartitionKey(partitionKey); err != nil {
		return 0, err
	}
	f, err := asGremlinFragment(fragment)
	if err != nil {
		return 0, err
	}
	return t.dropCount(vertexStart()+f.steps, f.bindings, partitionKey)
}

func (t *gremlinTransaction) DeleteRels(ctx context.Context, fragment QueryFragment, relVar *RelQueryVar, partitionKey any) (int, error) {
	if err := requirePartitionKey(partitionKey); err != nil {
		return 0, err
	}
	f, err := asGremlinFragment(fragment)
	if err != nil {
		return 0, err
	}
	return t.dropCount(t.relQueryStart(relVar)+f.steps, f.bindings, partitionKey)
}

// dropCount counts the selection, then drops it. Two traversals, because
// drop() yields no rows to count.
func (t *gremlinTransaction) dropCount(selection string, fragBindings map[string]any, partitionKey any) (int, error) {
	bindings := map[string]any{"pk": partitionKey}
	for k, v := range fragBindings {
		bindings[k] = v
	}
	results, err := t.submit(selection+".count()", bindings)
	if err != nil {
		return 0, err
	}
	count := 0
	if len(results) > 0 {
		n, err := results[0].GetInt()
		if err != nil {
			return 0, WrapError(ErrTypeConversionFailed, err, "count result")
		}
		count = n
	}
	if _, err := t.submit(selection+".drop()", bindings); err != nil {
		return 0, err
	}
	return count, nil
}

func (t *gremlinTransaction) relQueryStart(relVar *RelQueryVar) string {
	start := vertexStart()
	if relVar.Src.Label != "" {
		start += fmt.Sprintf(".hasLabel('%s')", relVar.Src.Label)
	}
	return start + fmt.Sprintf(".outE('%s')", relVar.RelName)
}

func nodeProjection() string {
	return ".project('nid', 'nlabel', 'nprops').by(values('id')).by(label()).by(valueMap())"
}

func relProjection() string {
	return ".project('rid', 'rprops', 'sid', 'slabel', 'did', 'dlabel')" +
		".by(values('id')).by(valueMap())" +
		".by(outV().values('id')).by(outV().label())" +
		".by(inV().values('id')).by(inV().label())"
}

// toStringKeyMap coerces driver map results, which arrive keyed by
// interface values, into string-keyed maps.
func toStringKeyMap(v any) (map[string]any, error) {
	switch m := v.(type) {
	case map[string]any:
		return m, nil
	case map[any]any:
		out := make(map[string]any, len(m))
		for k, e := range m {
			ks, ok := k.(string)
			if !ok {
				return nil, NewError(ErrTypeConversionFailed, "map key %v is not a string", k)
			}
			out[ks] = e
		}
		return out, nil
	default:
		return nil, NewError(ErrTypeConversionFailed, "expected a map result, got %T", v)
	}
}

// gremlinNodeFromResult parses a node projection. valueMap wraps every
// property in a list; single-valued properties are unwrapped using the
// schema's list flags when a type definition is available.
func gremlinNodeFromResult(r *gremlingo.Result, info *Info) (*Node, error) {
	row, err := toStringKeyMap(r.GetInterface())
	if err != nil {
		return nil, err
	}
	label, ok := row["nlabel"].(string)
	if !ok {
		return nil, NewError(ErrResponseItemNotFound, "node projection is missing its label")
	}
	rawProps, err := toStringKeyMap(row["nprops"])
	if err != nil {
		return nil, err
	}

	var typeDef *NodeTypeDef
	if info != nil {
		typeDef, _ = info.TypeDefByName(label)
	}

	fields := map[string]any{}
	for k, v := range rawProps {
		if k == "partitionKey" {
			continue
		}
		isList := false
		if typeDef != nil {
			if p, ok := typeDef.Props[k]; ok {
				isList = p.List
			}
		}
		fields[k] = unwrapValueMapEntry(v, isList)
	}
	idv, ok := row["nid"]
	if !ok {
		return nil, NewError(ErrMissingProperty, "node projection is missing its id")
	}
	id, err := valueToIDString(idv)
	if err != nil {
		return nil, err
	}
	fields["id"] = id
	return NewNode(label, fields), nil
}

func gremlinRelsFromResults(results []*gremlingo.Result, propsTypeName string) ([]*Rel, error) {
	rels := make([]*Rel, 0, len(results))
	for _, r := range results {
		row, err := toStringKeyMap(r.GetInterface())
		if err != nil {
			return nil, err
		}
		id, err := valueToIDString(row["rid"])
		if err != nil {
			return nil, err
		}
		srcID, err := valueToIDString(row["sid"])
		if err != nil {
			return nil, err
		}
		dstID, err := valueToIDString(row["did"])
		if err != nil {
			return nil, err
		}
		srcLabel, _ := row["slabel"].(string)
		dstLabel, _ := row["dlabel"].(string)

		rel := &Rel{
			ID:  id,
			Src: NodeRef{ID: srcID, Label: srcLabel},
			Dst: NodeRef{ID: dstID, Label: dstLabel},
		}
		if propsTypeName != "" {
			rawProps, err := toStringKeyMap(row["rprops"])
			if err != nil {
				return nil, err
			}
			fields := map[string]any{}
			for k, v := range rawProps {
				if k == "id" {
					continue
				}
				fields[k] = unwrapValueMapEntry(v, false)
			}
			rel.Props = NewNode(propsTypeName, fields)
		}
		rels = append(rels, rel)
	}
	return rels, nil
}

// unwrapValueMapEntry flattens the list wrapper valueMap puts around
// property values, keeping the list for declared list properties.
func unwrapValueMapEntry(v any, isList bool) any {
	list, ok := v.([]any)
	if !ok {
		return normalizeValue(v)
	}
	if isList {
		return normalizeValue(list)
	}
	if len(list) == 1 {
		return normalizeValue(list[0])
	}
	return normalizeValue(list)
}
