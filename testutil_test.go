package grapht

import (
	"context"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// The in-memory backend implements the full Transaction capability set
// over plain maps, with copy-on-begin transactions, so the end-to-end
// behavior of the planner, resolvers, and event handlers is testable
// without a graph database.

type memNode struct {
	label  string
	fields map[string]any
}

type memRel struct {
	id      string
	relName string
	props   map[string]any
	srcID   string
	dstID   string
}

type memStore struct {
	mu    sync.Mutex
	nodes map[string]*memNode
	rels  map[string]*memRel

	readNodesCalls int
	readRelsCalls  int
}

func newMemStore() *memStore {
	return &memStore{nodes: map[string]*memNode{}, rels: map[string]*memRel{}}
}

func (s *memStore) nodeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.nodes)
}

func (s *memStore) relCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rels)
}

type memEndpoint struct {
	store *memStore
}

func newMemEndpoint() *memEndpoint {
	return &memEndpoint{store: newMemStore()}
}

func (e *memEndpoint) Pool(ctx context.Context) (Pool, error) {
	return &memPool{store: e.store}, nil
}

type memPool struct {
	store *memStore
}

func (p *memPool) ReadTransaction(ctx context.Context) (Transaction, error) {
	return &memTransaction{store: p.store}, nil
}

func (p *memPool) Transaction(ctx context.Context) (Transaction, error) {
	return &memTransaction{store: p.store}, nil
}

func (p *memPool) Close(ctx context.Context) error { return nil }

// memTransaction works on a deep copy of the store taken at Begin;
// Commit swaps the copy in, Rollback discards it.
type memTransaction struct {
	store *memStore
	nodes map[string]*memNode
	rels  map[string]*memRel
}

func (t *memTransaction) Begin(ctx context.Context) error {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	t.nodes = map[string]*memNode{}
	for id, n := range t.store.nodes {
		t.nodes[id] = &memNode{label: n.label, fields: copyValue(n.fields).(map[string]any)}
	}
	t.rels = map[string]*memRel{}
	for id, r := range t.store.rels {
		t.rels[id] = &memRel{id: r.id, relName: r.relName, props: copyValue(r.props).(map[string]any), srcID: r.srcID, dstID: r.dstID}
	}
	return nil
}

func (t *memTransaction) Commit(ctx context.Context) error {
	if t.nodes == nil {
		return nil
	}
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	t.store.nodes = t.nodes
	t.store.rels = t.rels
	t.nodes, t.rels = nil, nil
	return nil
}

func (t *memTransaction) Rollback(ctx context.Context) error {
	t.nodes, t.rels = nil, nil
	return nil
}

func (t *memTransaction) ensureBegun(ctx context.Context) error {
	if t.nodes == nil {
		return t.Begin(ctx)
	}
	return nil
}

func (t *memTransaction) ExecuteQuery(ctx context.Context, query string, params map[string]any) ([]map[string]any, error) {
	return nil, NewError(ErrClientRequestFailed, "the in-memory back end has no query language")
}

// memFragment matches nodes or relationships by predicate.
type memFragment struct {
	label       string
	relName     string
	comparisons map[string][]Comparison
	relFrags    []*memFragment
	srcFrag     *memFragment
	dstFrag     *memFragment
	ids         []string
}

func (f *memFragment) fragment() {}

func asMemFragment(f QueryFragment) (*memFragment, error) {
	if f == nil {
		return nil, nil
	}
	mf, ok := f.(*memFragment)
	if !ok {
		return nil, NewError(ErrTypeNotExpected, "fragment %T does not belong to the in-memory back end", f)
	}
	return mf, nil
}

func compareValue(field any, c Comparison) bool {
	fv := normalizeValue(field)
	ov := normalizeValue(c.Operand)
	switch c.Operator {
	case OpEQ:
		return reflect.DeepEqual(fv, ov)
	case OpNEQ:
		return !reflect.DeepEqual(fv, ov)
	case OpLT, OpLTE, OpGT, OpGTE:
		return compareOrdered(fv, ov, c.Operator)
	case OpIN:
		list, ok := ov.([]any)
		if !ok {
			return false
		}
		for _, e := range list {
			if reflect.DeepEqual(fv, normalizeValue(e)) {
				return true
			}
		}
		return false
	case OpCONTAINS:
		if s, ok := fv.(string); ok {
			sub, ok := ov.(string)
			return ok && strings.Contains(s, sub)
		}
		if list, ok := fv.([]any); ok {
			for _, e := range list {
				if reflect.DeepEqual(normalizeValue(e), ov) {
					return true
				}
			}
		}
		return false
	default:
		return false
	}
}

func compareOrdered(a, b any, op Operator) bool {
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if aok && bok {
		switch op {
		case OpLT:
			return af < bf
		case OpLTE:
			return af <= bf
		case OpGT:
			return af > bf
		case OpGTE:
			return af >= bf
		}
	}
	as, aok2 := a.(string)
	bs, bok2 := b.(string)
	if aok2 && bok2 {
		switch op {
		case OpLT:
			return as < bs
		case OpLTE:
			return as <= bs
		case OpGT:
			return as > bs
		case OpGTE:
			return as >= bs
		}
	}
	return false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

func (t *memTransaction) matchNode(f *memFragment, n *memNode) bool {
	if f == nil {
		return true
	}
	if f.label != "" && f.label != n.label {
		return false
	}
	for field, comps := range f.comparisons {
		for _, c := range comps {
			if !compareValue(n.fields[field], c) {
				return false
			}
		}
	}
	for _, rf := range f.relFrags {
		found := false
		for _, r := range t.rels {
			if r.srcID == n.fields["id"] && t.matchRel(rf, r) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func (t *memTransaction) matchRel(f *memFragment, r *memRel) bool {
	if f == nil {
		return true
	}
	if f.relName != "" && f.relName != r.relName {
		return false
	}
	for field, comps := range f.comparisons {
		for _, c := range comps {
			var v any
			if field == "id" {
				v = r.id
			} else {
				v = r.props[field]
			}
			if !compareValue(v, c) {
				return false
			}
		}
	}
	if f.srcFrag != nil {
		src, ok := t.nodes[r.srcID]
		if !ok || !t.matchNode(f.srcFrag, src) {
			return false
		}
	}
	if f.dstFrag != nil {
		dst, ok := t.nodes[r.dstID]
		if !ok || !t.matchNode(f.dstFrag, dst) {
			return false
		}
	}
	return true
}

func (t *memTransaction) NodeReadByIDsFragment(nodeVar *NodeQueryVar, ids []string) (QueryFragment, error) {
	return &memFragment{
		label:       nodeVar.Label,
		comparisons: map[string][]Comparison{"id": {{Operator: OpIN, Operand: stringsToAny(ids)}}},
		ids:         append([]string{}, ids...),
	}, nil
}

func (t *memTransaction) NodeReadFragment(relFragments []QueryFragment, nodeVar *NodeQueryVar, comparisons map[string][]Comparison, sg *SuffixGenerator) (QueryFragment, error) {
	f := &memFragment{label: nodeVar.Label, comparisons: comparisons}
	for _, rf := range relFragments {
		mf, err := asMemFragment(rf)
		if err != nil {
			return nil, err
		}
		f.relFrags = append(f.relFrags, mf)
	}
	return f, nil
}

func (t *memTransaction) ReadNodes(ctx context.Context, nodeVar *NodeQueryVar, fragment QueryFragment, partitionKey any, info *Info) ([]*Node, error) {
	if err := t.ensureBegun(ctx); err != nil {
		return nil, err
	}
	t.store.mu.Lock()
	t.store.readNodesCalls++
	t.store.mu.Unlock()
	f, err := asMemFragment(fragment)
	if err != nil {
		return nil, err
	}
	var out []*Node
	for _, n := range t.nodes {
		if t.matchNode(f, n) {
			out = append(out, NewNode(n.label, copyValue(n.fields).(map[string]any)))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, _ := out[i].ID()
		b, _ := out[j].ID()
		return a < b
	})
	return out, nil
}

func (t *memTransaction) CreateNode(ctx context.Context, nodeVar *NodeQueryVar, props map[string]any, partitionKey any, info *Info, sg *SuffixGenerator) (*Node, error) {
	if err := t.ensureBegun(ctx); err != nil {
		return nil, err
	}
	id := uuid.NewString()
	fields := copyValue(props).(map[string]any)
	fields["id"] = id
	t.nodes[id] = &memNode{label: nodeVar.Label, fields: fields}
	return NewNode(nodeVar.Label, copyValue(fields).(map[string]any)), nil
}

func (t *memTransaction) CreateRels(ctx context.Context, src, dst QueryFragment, relVar *RelQueryVar, props map[string]any, propsTypeName string, singleRel bool, partitionKey any, sg *SuffixGenerator) ([]*Rel, error) {
	if err := t.ensureBegun(ctx); err != nil {
		return nil, err
	}
	sf, err := asMemFragment(src)
	if err != nil {
		return nil, err
	}
	df, err := asMemFragment(dst)
	if err != nil {
		return nil, err
	}
	if len(sf.ids) == 0 || len(df.ids) == 0 {
		return nil, NewError(ErrTypeNotExpected, "relationship creation requires id-selected endpoints")
	}

	if singleRel {
		if len(df.ids) > 1 {
			return nil, NewError(ErrRelDuplicated, "relationship %s is single-cardinality", relVar.RelName)
		}
		for _, srcID := range sf.ids {
			for _, r := range t.rels {
				if r.srcID == srcID && r.relName == relVar.RelName {
					return nil, NewError(ErrRelDuplicated, "relationship %s already exists on a matched source", relVar.RelName)
				}
			}
		}
	}

	var out []*Rel
	for _, srcID := range sf.ids {
		srcNode, ok := t.nodes[srcID]
		if !ok {
			return nil, NewError(ErrResponseItemNotFound, "source node %s", srcID)
		}
		for _, dstID := range df.ids {
			dstNode, ok := t.nodes[dstID]
			if !ok {
				return nil, NewError(ErrResponseItemNotFound, "destination node %s", dstID)
			}
			id := uuid.NewString()
			t.rels[id] = &memRel{
				id:      id,
				relName: relVar.RelName,
				props:   copyValue(props).(map[string]any),
				srcID:   srcID,
				dstID:   dstID,
			}
			rel := &Rel{
				ID:  id,
				Src: NodeRef{ID: srcID, Label: srcNode.label},
				Dst: NodeRef{ID: dstID, Label: dstNode.label},
			}
			if propsTypeName != "" {
				rel.Props = NewNode(propsTypeName, copyValue(props).(map[string]any))
			}
			out = append(out, rel)
		}
	}
	return out, nil
}

func (t *memTransaction) RelReadByIDsFragment(relVar *RelQueryVar, ids []string) (QueryFragment, error) {
	return &memFragment{
		relName:     relVar.RelName,
		comparisons: map[string][]Comparison{"id": {{Operator: OpIN, Operand: stringsToAny(ids)}}},
		ids:         append([]string{}, ids...),
	}, nil
}

func (t *memTransaction) RelReadFragment(src, dst QueryFragment, relVar *RelQueryVar, comparisons map[string][]Comparison, sg *SuffixGenerator) (QueryFragment, error) {
	sf, err := asMemFragment(src)
	if err != nil {
		return nil, err
	}
	df, err := asMemFragment(dst)
	if err != nil {
		return nil, err
	}
	return &memFragment{relName: relVar.RelName, comparisons: comparisons, srcFrag: sf, dstFrag: df}, nil
}

func (t *memTransaction) readRels(f *memFragment, propsTypeName string) ([]*Rel, error) {
	var out []*Rel
	for _, r := range t.rels {
		if !t.matchRel(f, r) {
			continue
		}
		srcNode, ok := t.nodes[r.srcID]
		if !ok {
			return nil, NewError(ErrResponseItemNotFound, "source node %s", r.srcID)
		}
		dstNode, ok := t.nodes[r.dstID]
		if !ok {
			return nil, NewError(ErrResponseItemNotFound, "destination node %s", r.dstID)
		}
		rel := &Rel{
			ID:  r.id,
			Src: NodeRef{ID: r.srcID, Label: srcNode.label},
			Dst: NodeRef{ID: r.dstID, Label: dstNode.label},
		}
		if propsTypeName != "" {
			rel.Props = NewNode(propsTypeName, copyValue(r.props).(map[string]any))
		}
		out = append(out, rel)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (t *memTransaction) ReadRels(ctx context.Context, fragment QueryFragment, relVar *RelQueryVar, propsTypeName string, partitionKey any) ([]*Rel, error) {
	if err := t.ensureBegun(ctx); err != nil {
		return nil, err
	}
	t.store.mu.Lock()
	t.store.readRelsCalls++
	t.store.mu.Unlock()
	f, err := asMemFragment(fragment)
	if err != nil {
		return nil, err
	}
	return t.readRels(f, propsTypeName)
}

func (t *memTransaction) UpdateNodes(ctx context.Context, fragment QueryFragment, nodeVar *NodeQueryVar, props map[string]any, partitionKey any, info *Info) ([]*Node, error) {
	if err := t.ensureBegun(ctx); err != nil {
		return nil, err
	}
	f, err := asMemFragment(fragment)
	if err != nil {
		return nil, err
	}
	var out []*Node
	for _, n := range t.nodes {
		if !t.matchNode(f, n) {
			continue
		}
		for k, v := range props {
			n.fields[k] = copyValue(v)
		}
		out = append(out, NewNode(n.label, copyValue(n.fields).(map[string]any)))
	}
	sort.Slice(out, func(i, j int) bool {
		a, _ := out[i].ID()
		b, _ := out[j].ID()
		return a < b
	})
	return out, nil
}

func (t *memTransaction) UpdateRels(ctx context.Context, fragment QueryFragment, relVar *RelQueryVar, props map[string]any, propsTypeName string, partitionKey any) ([]*Rel, error) {
	if err := t.ensureBegun(ctx); err != nil {
		return nil, err
	}
	f, err := asMemFragment(fragment)
	if err != nil {
		return nil, err
	}
	for _, r := range t.rels {
		if !t.matchRel(f, r) {
			continue
		}
		for k, v := range props {
			r.props[k] = copyValue(v)
		}
	}
	return t.readRels(f, propsTypeName)
}

func (t *memTransaction) DeleteNodes(ctx context.Context, fragment QueryFragment, nodeVar *NodeQueryVar, partitionKey any) (int, error) {
	if err := t.ensureBegun(ctx); err != nil {
		return 0, err
	}
	f, err := asMemFragment(fragment)
	if err != nil {
		return 0, err
	}
	count := 0
	for id, n := range t.nodes {
		if !t.matchNode(f, n) {
			continue
		}
		delete(t.nodes, id)
		// Detach: a delete that reaches this point has either cascaded
		// its relationships or asked for force.
		for rid, r := range t.rels {
			if r.srcID == id || r.dstID == id {
				delete(t.rels, rid)
			}
		}
		count++
	}
	return count, nil
}

func (t *memTransaction) DeleteRels(ctx context.Context, fragment QueryFragment, relVar *RelQueryVar, partitionKey any) (int, error) {
	if err := t.ensureBegun(ctx); err != nil {
		return 0, err
	}
	f, err := asMemFragment(fragment)
	if err != nil {
		return 0, err
	}
	count := 0
	for id, r := range t.rels {
		if t.matchRel(f, r) {
			delete(t.rels, id)
			count++
		}
	}
	return count, nil
}

// projectConfigYAML is the shared test model: a Project with a
// single-cardinality owner relationship carrying a props bag, and a
// list-cardinality issues relationship with a union destination.
const projectConfigYAML = `
version: 1
model:
  - name: User
    props:
      - name: name
        type: String
        validator: NonEmpty
      - name: email
        type: String
  - name: Feature
    props:
      - name: title
        type: String
  - name: Bug
    props:
      - name: title
        type: String
      - name: severity
        type: Int
  - name: Project
    props:
      - name: name
        type: String
        required: true
        validator: NonEmpty
      - name: description
        type: String
    rels:
      - name: owner
        nodes: [User]
        props:
          - name: since
            type: String
      - name: issues
        list: true
        nodes: [Feature, Bug]
`

func testConfig(t interface{ Fatalf(string, ...any) }) *Config {
	c, err := ParseConfig([]byte(projectConfigYAML))
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	return c
}

func nonEmptyValidator(value Value) error {
	if s, ok := value.(string); ok && s != "" {
		return nil
	}
	return NewError(ErrValidationError, "value must be a non-empty string")
}

// newTestEngine builds an engine over a fresh in-memory store.
func newTestEngine(t interface{ Fatalf(string, ...any) }, opts ...Option) (*Engine, *memStore) {
	ep := newMemEndpoint()
	base := []Option{
		WithValidators(map[string]ValidatorFunc{"NonEmpty": nonEmptyValidator}),
	}
	engine, err := NewEngine(context.Background(), testConfig(t), ep, append(base, opts...)...)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	return engine, ep.store
}

// execute runs a request and fails the test on GraphQL errors.
func execute(t interface {
	Fatalf(string, ...any)
	Helper()
}, engine *Engine, query string, variables map[string]any) map[string]any {
	t.Helper()
	result := engine.Execute(context.Background(), Request{Query: query, Variables: variables})
	if len(result.Errors) > 0 {
		t.Fatalf("unexpected errors: %v", result.Errors)
	}
	data, ok := result.Data.(map[string]any)
	if !ok {
		t.Fatalf("unexpected data shape %T", result.Data)
	}
	return data
}

// executeExpectError runs a request and returns the first error message.
func executeExpectError(t interface {
	Fatalf(string, ...any)
	Helper()
}, engine *Engine, query string, variables map[string]any) string {
	t.Helper()
	result := engine.Execute(context.Background(), Request{Query: query, Variables: variables})
	if len(result.Errors) == 0 {
		t.Fatalf("expected errors, got none (data: %v)", result.Data)
	}
	return result.Errors[0].Message
}
