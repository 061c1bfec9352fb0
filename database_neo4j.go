package grapht

import (
	"context"
	"fmt"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"
)

// Neo4jEndpoint connects the engine to a Cypher-speaking labeled property
// graph.
type Neo4jEndpoint struct {
	host string
	port uint16
	user string
	pass string
}

// NewNeo4jEndpoint creates an endpoint from explicit settings.
func NewNeo4jEndpoint(host string, port uint16, user, pass string) *Neo4jEndpoint {
	return &Neo4jEndpoint{host: host, port: port, user: user, pass: pass}
}

// Neo4jEndpointFromEnv creates an endpoint from the environment:
//
//   - WG_NEO4J_HOST - the database hostname
//   - WG_NEO4J_PORT - the bolt port number
//   - WG_NEO4J_USER - the username
//   - WG_NEO4J_PASS - the password
func Neo4jEndpointFromEnv() (*Neo4jEndpoint, error) {
	host, err := envString("WG_NEO4J_HOST")
	if err != nil {
		return nil, err
	}
	port, err := envUint16("WG_NEO4J_PORT")
	if err != nil {
		return nil, err
	}
	user, err := envString("WG_NEO4J_USER")
	if err != nil {
		return nil, err
	}
	pass, err := envString("WG_NEO4J_PASS")
	if err != nil {
		return nil, err
	}
	return NewNeo4jEndpoint(host, port, user, pass), nil
}

// Pool opens a driver and verifies connectivity.
func (e *Neo4jEndpoint) Pool(ctx context.Context) (Pool, error) {
	uri := fmt.Sprintf("bolt://%s:%d", e.host, e.port)
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(e.user, e.pass, ""))
	if err != nil {
		return nil, WrapError(ErrClientRequestFailed, err, "cannot open driver for %s", uri)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		return nil, WrapError(ErrClientRequestFailed, err, "cannot reach %s", uri)
	}
	return &neo4jPool{driver: driver}, nil
}

type neo4jPool struct {
	driver neo4j.DriverWithContext
}

func (p *neo4jPool) ReadTransaction(ctx context.Context) (Transaction, error) {
	return p.transaction(ctx, neo4j.AccessModeRead)
}

func (p *neo4jPool) Transaction(ctx context.Context) (Transaction, error) {
	return p.transaction(ctx, neo4j.AccessModeWrite)
}

func (p *neo4jPool) transaction(ctx context.Context, mode neo4j.AccessMode) (Transaction, error) {
	session := p.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: mode})
	return &neo4jTransaction{session: session}, nil
}

func (p *neo4jPool) Close(ctx context.Context) error {
	return p.driver.Close(ctx)
}

// neo4jTransaction wraps one driver session and its explicit transaction.
// The session is closed when the transaction commits or rolls back.
type neo4jTransaction struct {
	session neo4j.SessionWithContext
	tx      neo4j.ExplicitTransaction
}

func (t *neo4jTransaction) Begin(ctx context.Context) error {
	tx, err := t.session.BeginTransaction(ctx)
	if err != nil {
		return WrapError(ErrClientRequestFailed, err, "cannot begin transaction")
	}
	t.tx = tx
	return nil
}

func (t *neo4jTransaction) Commit(ctx context.Context) error {
	if t.tx == nil {
		return nil
	}
	err := t.tx.Commit(ctx)
	t.tx = nil
	closeErr := t.session.Close(ctx)
	if err != nil {
		return WrapError(ErrClientRequestFailed, err, "commit failed")
	}
	return closeErr
}

func (t *neo4jTransaction) Rollback(ctx context.Context) error {
	if t.tx == nil {
		return nil
	}
	err := t.tx.Rollback(ctx)
	t.tx = nil
	closeErr := t.session.Close(ctx)
	if err != nil {
		return WrapError(ErrClientRequestFailed, err, "rollback failed")
	}
	return closeErr
}

func (t *neo4jTransaction) run(ctx context.Context, query string, params map[string]any) ([]*neo4j.Record, error) {
	if t.tx == nil {
		if err := t.Begin(ctx); err != nil {
			return nil, err
		}
	}
	result, err := t.tx.Run(ctx, query, params)
	if err != nil {
		return nil, WrapError(ErrClientRequestFailed, err, "statement failed")
	}
	records, err := result.Collect(ctx)
	if err != nil {
		return nil, WrapError(ErrClientRequestFailed, err, "cannot collect result")
	}
	return records, nil
}

func (t *neo4jTransaction) ExecuteQuery(ctx context.Context, query string, params map[string]any) ([]map[string]any, error) {
	records, err := t.run(ctx, query, params)
	if err != nil {
		return nil, err
	}
	rows := make([]map[string]any, 0, len(records))
	for _, r := range records {
		rows = append(rows, r.AsMap())
	}
	return rows, nil
}

// cypherFragment is the Cypher realization of a QueryFragment: MATCH
// patterns, WHERE conditions, and their parameters, waiting for a
// finishing clause.
type cypherFragment struct {
	matches []string
	wheres  []string
	params  map[string]any
	ids     []string
}

func (f *cypherFragment) fragment() {}

func newCypherFragment() *cypherFragment {
	return &cypherFragment{params: map[string]any{}}
}

func (f *cypherFragment) absorb(other *cypherFragment) {
	if other == nil {
		return
	}
	f.matches = append(f.matches, other.matches...)
	f.wheres = append(f.wheres, other.wheres...)
	for k, v := range other.params {
		f.params[k] = v
	}
}

// render assembles the fragment's clauses followed by a finishing clause.
func (f *cypherFragment) render(finish string) string {
	var b strings.Builder
	for _, m := range f.matches {
		b.WriteString("MATCH ")
		b.WriteString(m)
		b.WriteString("\n")
	}
	if len(f.wheres) > 0 {
		b.WriteString("WHERE ")
		b.WriteString(strings.Join(f.wheres, " AND "))
		b.WriteString("\n")
	}
	b.WriteString(finish)
	return b.String()
}

func asCypherFragment(f QueryFragment) (*cypherFragment, error) {
	if f == nil {
		return nil, nil
	}
	cf, ok := f.(*cypherFragment)
	if !ok {
		return nil, NewError(ErrTypeNotExpected, "fragment %T does not belong to the cypher back end", f)
	}
	return cf, nil
}

// nodePattern renders a node variable as a Cypher pattern element,
// including the label only when one is known.
func nodePattern(v *NodeQueryVar) string {
	if v.Label == "" {
		return "(" + v.Name() + ")"
	}
	return "(" + v.Name() + ":" + v.Label + ")"
}

var cypherOps = map[Operator]string{
	OpEQ:       "=",
	OpNEQ:      "<>",
	OpLT:       "<",
	OpLTE:      "<=",
	OpGT:       ">",
	OpGTE:      ">=",
	OpIN:       "IN",
	OpCONTAINS: "CONTAINS",
}

// appendComparisons renders property comparisons on varName into the
// fragment, coining a unique parameter per comparison.
func (f *cypherFragment) appendComparisons(varName string, comparisons map[string][]Comparison, sg *SuffixGenerator) error {
	for field, comps := range comparisons {
		for _, c := range comps {
			op, ok := cypherOps[c.Operator]
			if !ok {
				return NewError(ErrInvalidProperty, "operator %s is not supported by the cypher back end", c.Operator)
			}
			param := varName + "_" + field + sg.Suffix()
			f.wheres = append(f.wheres, fmt.Sprintf("%s.%s %s $%s", varName, field, op, param))
			f.params[param] = c.Operand
		}
	}
	return nil
}

func (t *neo4jTransaction) NodeReadByIDsFragment(nodeVar *NodeQueryVar, ids []string) (QueryFragment, error) {
	f := newCypherFragment()
	f.matches = append(f.matches, nodePattern(nodeVar))
	param := nodeVar.Name() + "_ids"
	f.wheres = append(f.wheres, fmt.Sprintf("%s.id IN $%s", nodeVar.Name(), param))
	f.params[param] = ids
	f.ids = append([]string{}, ids...)
	return f, nil
}

func (t *neo4jTransaction) NodeReadFragment(relFragments []QueryFragment, nodeVar *NodeQueryVar, comparisons map[string][]Comparison, sg *SuffixGenerator) (QueryFragment, error) {
	f := newCypherFragment()
	f.matches = append(f.matches, nodePattern(nodeVar))
	for _, rf := range relFragments {
		cf, err := asCypherFragment(rf)
		if err != nil {
			return nil, err
		}
		f.absorb(cf)
	}
	if err := f.appendComparisons(nodeVar.Name(), comparisons, sg); err != nil {
		return nil, err
	}
	return f, nil
}

func (t *neo4jTransaction) ReadNodes(ctx context.Context, nodeVar *NodeQueryVar, fragment QueryFragment, partitionKey any, info *Info) ([]*Node, error) {
	f, err := asCypherFragment(fragment)
	if err != nil {
		return nil, err
	}
	query := f.render("RETURN DISTINCT " + nodeVar.Name() + "\n")
	records, err := t.run(ctx, query, f.params)
	if err != nil {
		return nil, err
	}
	nodes := make([]*Node, 0, len(records))
	for _, r := range records {
		n, err := neo4jNodeFromRecord(r, nodeVar.Name(), nodeVar.Label)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	return nodes, nil
}

func (t *neo4jTransaction) CreateNode(ctx context.Context, nodeVar *NodeQueryVar, props map[string]any, partitionKey any, info *Info, sg *SuffixGenerator) (*Node, error) {
	name := nodeVar.Name()
	query := "CREATE (" + name + ":" + nodeVar.Label + " { id: randomUUID() })\n" +
		"SET " + name + " += $props\n" +
		"RETURN " + name + "\n"
	records, err := t.run(ctx, query, map[string]any{"props": props})
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, NewError(ErrResponseSetNotFound, "create returned no rows")
	}
	return neo4jNodeFromRecord(records[0], name, nodeVar.Label)
}

func (t *neo4jTransaction) CreateRels(ctx context.Context, src, dst QueryFragment, relVar *RelQueryVar, props map[string]any, propsTypeName string, singleRel bool, partitionKey any, sg *SuffixGenerator) ([]*Rel, error) {
	sf, err := asCypherFragment(src)
	if err != nil {
		return nil, err
	}
	df, err := asCypherFragment(dst)
	if err != nil {
		return nil, err
	}

	if singleRel {
		// Supplying more than one destination for a single-cardinality
		// relationship counts as duplication even before any edge exists.
		if len(df.ids) > 1 {
			return nil, NewError(ErrRelDuplicated, "relationship %s is single-cardinality", relVar.RelName)
		}
		dupVar := "dup" + sg.Suffix()
		check := newCypherFragment()
		check.absorb(sf)
		query := check.render(fmt.Sprintf("MATCH (%s)-[%s:%s]->()\nRETURN count(%s) AS c\n",
			relVar.Src.Name(), dupVar, relVar.RelName, dupVar))
		records, err := t.run(ctx, query, check.params)
		if err != nil {
			return nil, err
		}
		if len(records) > 0 {
			if c, ok := records[0].Get("c"); ok {
				if n, ok := c.(int64); ok && n > 0 {
					return nil, NewError(ErrRelDuplicated, "relationship %s already exists on a matched source", relVar.RelName)
				}
			}
		}
	}

	f := newCypherFragment()
	f.absorb(sf)
	f.absorb(df)
	srcName := relVar.Src.Name()
	dstName := relVar.Dst.Name()
	relName := relVar.Name()
	finish := fmt.Sprintf("CREATE (%s)-[%s:%s { id: randomUUID() }]->(%s)\n", srcName, relName, relVar.RelName, dstName) +
		"SET " + relName + " += $props\n" +
		relReturnClause(srcName, relName, dstName)
	f.params["props"] = props
	records, err := t.run(ctx, f.render(finish), f.params)
	if err != nil {
		return nil, err
	}
	return neo4jRelsFromRecords(records, srcName, relName, dstName, propsTypeName)
}

func (t *neo4jTransaction) RelReadByIDsFragment(relVar *RelQueryVar, ids []string) (QueryFragment, error) {
	f := newCypherFragment()
	f.matches = append(f.matches, relPattern(relVar, true, true))
	param := relVar.Name() + "_ids"
	f.wheres = append(f.wheres, fmt.Sprintf("%s.id IN $%s", relVar.Name(), param))
	f.params[param] = ids
	f.ids = append([]string{}, ids...)
	return f, nil
}

func (t *neo4jTransaction) RelReadFragment(src, dst QueryFragment, relVar *RelQueryVar, comparisons map[string][]Comparison, sg *SuffixGenerator) (QueryFragment, error) {
	sf, err := asCypherFragment(src)
	if err != nil {
		return nil, err
	}
	df, err := asCypherFragment(dst)
	if err != nil {
		return nil, err
	}
	f := newCypherFragment()
	f.absorb(sf)
	f.absorb(df)
	// Label the endpoints in the pattern only when no endpoint fragment
	// already declared them; re-binding a labeled variable would narrow
	// the fragment's own match.
	f.matches = append(f.matches, relPattern(relVar, sf == nil, df == nil))
	if err := f.appendComparisons(relVar.Name(), comparisons, sg); err != nil {
		return nil, err
	}
	return f, nil
}

func (t *neo4jTransaction) ReadRels(ctx context.Context, fragment QueryFragment, relVar *RelQueryVar, propsTypeName string, partitionKey any) ([]*Rel, error) {
	f, err := asCypherFragment(fragment)
	if err != nil {
		return nil, err
	}
	srcName := relVar.Src.Name()
	dstName := relVar.Dst.Name()
	relName := relVar.Name()
	records, err := t.run(ctx, f.render(relReturnClause(srcName, relName, dstName)), f.params)
	if err != nil {
		return nil, err
	}
	return neo4jRelsFromRecords(records, srcName, relName, dstName, propsTypeName)
}

func (t *neo4jTransaction) UpdateNodes(ctx context.Context, fragment QueryFragment, nodeVar *NodeQueryVar, props map[string]any, partitionKey any, info *Info) ([]*Node, error) {
	f, err := asCypherFragment(fragment)
	if err != nil {
		return nil, err
	}
	name := nodeVar.Name()
	param := name + "_set"
	f.params[param] = props
	finish := "SET " + name + " += $" + param + "\nRETURN DISTINCT " + name + "\n"
	records, err := t.run(ctx, f.render(finish), f.params)
	if err != nil {
		return nil, err
	}
	nodes := make([]*Node, 0, len(records))
	for _, r := range records {
		n, err := neo4jNodeFromRecord(r, name, nodeVar.Label)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	return nodes, nil
}

func (t *neo4jTransaction) UpdateRels(ctx context.Context, fragment QueryFragment, relVar *RelQueryVar, props map[string]any, propsTypeName string, partitionKey any) ([]*Rel, error) {
	f, err := asCypherFragment(fragment)
	if err != nil {
		return nil, err
	}
	srcName := relVar.Src.Name()
	dstName := relVar.Dst.Name()
	relName := relVar.Name()
	param := relName + "_set"
	f.params[param] = props
	finish := "SET " + relName + " += $" + param + "\n" + relReturnClause(srcName, relName, dstName)
	records, err := t.run(ctx, f.render(finish), f.params)
	if err != nil {
		return nil, err
	}
	return neo4jRelsFromRecords(records, srcName, relName, dstName, propsTypeName)
}

func (t *neo4jTransaction) DeleteNodes(ctx context.Context, fragment QueryFragment, nodeVar *NodeQueryVar, partitionKey any) (int, error) {
	f, err := asCypherFragment(fragment)
	if err != nil {
		return 0, err
	}
	name := nodeVar.Name()
	finish := "WITH DISTINCT " + name + "\nDETACH DELETE " + name + "\nRETURN count(*) AS c\n"
	return t.runCount(ctx, f.render(finish), f.params)
}

func (t *neo4jTransaction) DeleteRels(ctx context.Context, fragment QueryFragment, relVar *RelQueryVar, partitionKey any) (int, error) {
	f, err := asCypherFragment(fragment)
	if err != nil {
		return 0, err
	}
	name := relVar.Name()
	finish := "WITH DISTINCT " + name + "\nDELETE " + name + "\nRETURN count(*) AS c\n"
	return t.runCount(ctx, f.render(finish), f.params)
}

func (t *neo4jTransaction) runCount(ctx context.Context, query string, params map[string]any) (int, error) {
	records, err := t.run(ctx, query, params)
	if err != nil {
		return 0, err
	}
	if len(records) == 0 {
		return 0, NewError(ErrResponseSetNotFound, "count query returned no rows")
	}
	v, ok := records[0].Get("c")
	if !ok {
		return 0, NewError(ErrResponseItemNotFound, "count column missing")
	}
	n, ok := v.(int64)
	if !ok {
		return 0, NewError(ErrTypeConversionFailed, "count column holds %T", v)
	}
	return int(n), nil
}

// relPattern renders the relationship match pattern, labeling an endpoint
// only when requested and a label is known.
func relPattern(relVar *RelQueryVar, labelSrc, labelDst bool) string {
	srcPat := "(" + relVar.Src.Name() + ")"
	if labelSrc && relVar.Src.Label != "" {
		srcPat = nodePattern(relVar.Src)
	}
	dstPat := "(" + relVar.Dst.Name() + ")"
	if labelDst && relVar.Dst.Label != "" {
		dstPat = nodePattern(relVar.Dst)
	}
	return srcPat + "-[" + relVar.Name() + ":" + relVar.RelName + "]->" + dstPat
}

func relReturnClause(srcName, relName, dstName string) string {
	return "RETURN DISTINCT " + srcName + ", " + relName + ", " + dstName +
		", labels(" + srcName + ") AS " + srcName + "_labels" +
		", labels(" + dstName + ") AS " + dstName + "_labels\n"
}

func neo4jNodeFromRecord(r *neo4j.Record, key, fallbackLabel string) (*Node, error) {
	v, ok := r.Get(key)
	if !ok {
		return nil, NewError(ErrResponseItemNotFound, "column %s missing", key)
	}
	dbNode, ok := v.(dbtype.Node)
	if !ok {
		return nil, NewError(ErrTypeConversionFailed, "column %s holds %T, not a node", key, v)
	}
	label := fallbackLabel
	if len(dbNode.Labels) > 0 {
		label = dbNode.Labels[0]
	}
	fields := make(map[string]any, len(dbNode.Props))
	for k, p := range dbNode.Props {
		fields[k] = normalizeValue(p)
	}
	return NewNode(label, fields), nil
}

func neo4jRelsFromRecords(records []*neo4j.Record, srcName, relName, dstName, propsTypeName string) ([]*Rel, error) {
	rels := make([]*Rel, 0, len(records))
	for _, r := range records {
		src, err := neo4jNodeFromRecord(r, srcName, "")
		if err != nil {
			return nil, err
		}
		dst, err := neo4jNodeFromRecord(r, dstName, "")
		if err != nil {
			return nil, err
		}
		srcID, err := src.ID()
		if err != nil {
			return nil, err
		}
		dstID, err := dst.ID()
		if err != nil {
			return nil, err
		}

		v, ok := r.Get(relName)
		if !ok {
			return nil, NewError(ErrResponseItemNotFound, "column %s missing", relName)
		}
		dbRel, ok := v.(dbtype.Relationship)
		if !ok {
			return nil, NewError(ErrTypeConversionFailed, "column %s holds %T, not a relationship", relName, v)
		}
		idVal, ok := dbRel.Props["id"]
		if !ok {
			return nil, NewError(ErrMissingProperty, "relationship %s has no id property", relName)
		}
		id, err := valueToIDString(idVal)
		if err != nil {
			return nil, err
		}

		rel := &Rel{
			ID:  id,
			Src: NodeRef{ID: srcID, Label: src.Label},
			Dst: NodeRef{ID: dstID, Label: dst.Label},
		}
		if propsTypeName != "" {
			fields := map[string]any{}
			for k, p := range dbRel.Props {
				if k == "id" {
					continue
				}
				fields[k] = normalizeValue(p)
			}
			rel.Props = NewNode(propsTypeName, fields)
		}
		rels = append(rels, rel)
	}
	return rels, nil
}
