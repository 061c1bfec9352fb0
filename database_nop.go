package grapht

import "context"

// NoEndpoint is the no-op back end. Engines built on it serve schema
// introspection, the version query, and custom resolvers that do not
// touch the store; every data operation fails with DatabaseNotFound.
// It exists so that schema-only deployments and CI pipelines can run
// without a graph database.
type NoEndpoint struct{}

// NewNoEndpoint creates the no-op endpoint.
func NewNoEndpoint() *NoEndpoint {
	return &NoEndpoint{}
}

// Pool returns the no-op pool.
func (e *NoEndpoint) Pool(ctx context.Context) (Pool, error) {
	return &noPool{}, nil
}

type noPool struct{}

func (p *noPool) ReadTransaction(ctx context.Context) (Transaction, error) {
	return &noTransaction{}, nil
}

func (p *noPool) Transaction(ctx context.Context) (Transaction, error) {
	return &noTransaction{}, nil
}

func (p *noPool) Close(ctx context.Context) error {
	return nil
}

// noTransaction carries no state. Lifecycle methods succeed so that a
// request reaching only non-data fields completes; data methods fail.
type noTransaction struct{}

func errNoDatabase() error {
	return NewError(ErrDatabaseNotFound, "engine is running without a database back end")
}

func (t *noTransaction) Begin(ctx context.Context) error    { return nil }
func (t *noTransaction) Commit(ctx context.Context) error   { return nil }
func (t *noTransaction) Rollback(ctx context.Context) error { return nil }

func (t *noTransaction) ExecuteQuery(ctx context.Context, query string, params map[string]any) ([]map[string]any, error) {
	return nil, errNoDatabase()
}

func (t *noTransaction) CreateNode(ctx context.Context, nodeVar *NodeQueryVar, props map[string]any, partitionKey any, info *Info, sg *SuffixGenerator) (*Node, error) {
	return nil, errNoDatabase()
}

func (t *noTransaction) CreateRels(ctx context.Context, src, dst QueryFragment, relVar *RelQueryVar, props map[string]any, propsTypeName string, singleRel bool, partitionKey any, sg *SuffixGenerator) ([]*Rel, error) {
	return nil, errNoDatabase()
}

func (t *noTransaction) NodeReadByIDsFragment(nodeVar *NodeQueryVar, ids []string) (QueryFragment, error) {
	return nil, errNoDatabase()
}

func (t *noTransaction) NodeReadFragment(relFragments []QueryFragment, nodeVar *NodeQueryVar, comparisons map[string][]Comparison, sg *SuffixGenerator) (QueryFragment, error) {
	return nil, errNoDatabase()
}

func (t *noTransaction) ReadNodes(ctx context.Context, nodeVar *NodeQueryVar, fragment QueryFragment, partitionKey any, info *Info) ([]*Node, error) {
	return nil, errNoDatabase()
}

func (t *noTransaction) RelReadByIDsFragment(relVar *RelQueryVar, ids []string) (QueryFragment, error) {
	return nil, errNoDatabase()
}

func (t *noTransaction) RelReadFragment(src, dst QueryFragment, relVar *RelQueryVar, comparisons map[string][]Comparison, sg *SuffixGenerator) (QueryFragment, error) {
	return nil, errNoDatabase()
}

func (t *noTransaction) ReadRels(ctx context.Context, fragment QueryFragment, relVar *RelQueryVar, propsTypeName string, partitionKey any) ([]*Rel, error) {
	return nil, errNoDatabase()
}

func (t *noTransaction) UpdateNodes(ctx context.Context, fragment QueryFragment, nodeVar *NodeQueryVar, props map[string]any, partitionKey any, info *Info) ([]*Node, error) {
	return nil, errNoDatabase()
}

func (t *noTransaction) UpdateRels(ctx context.Context, fragment QueryFragment, relVar *RelQueryVar, props map[string]any, propsTypeName string, partitionKey any) ([]*Rel, error) {
	return nil, errNoDatabase()
}

func (t *noTransaction) DeleteNodes(ctx context.Context, fragment QueryFragment, nodeVar *NodeQueryVar, partitionKey any) (int, error) {
	return 0, errNoDatabase()
}

func (t *noTransaction) DeleteRels(ctx context.Context, fragment QueryFragment, relVar *RelQueryVar, partitionKey any) (int, error) {
	return 0, errNoDatabase()
}
