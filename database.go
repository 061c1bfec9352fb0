package grapht

import (
	"context"
	"os"
	"strconv"
)

// Operator is a filter predicate operator on a scalar field.
type Operator string

const (
	OpEQ       Operator = "EQ"
	OpNEQ      Operator = "NEQ"
	OpLT       Operator = "LT"
	OpLTE      Operator = "LTE"
	OpGT       Operator = "GT"
	OpGTE      Operator = "GTE"
	OpIN       Operator = "IN"
	OpCONTAINS Operator = "CONTAINS"
)

// Comparison describes a filter predicate on a scalar field: an operator
// and its operand.
type Comparison struct {
	Operator Operator
	Operand  any
}

// comparisonsFromFilter interprets a filter-position value. A bare scalar
// is shorthand for an EQ comparison; an object maps operator names to
// operands.
func comparisonsFromFilter(fieldName string, v any) ([]Comparison, error) {
	switch t := normalizeValue(v).(type) {
	case nil:
		return nil, nil
	case bool, int64, float64, string:
		return []Comparison{{Operator: OpEQ, Operand: t}}, nil
	case []any:
		return []Comparison{{Operator: OpIN, Operand: t}}, nil
	case map[string]any:
		cs := make([]Comparison, 0, len(t))
		for k, operand := range t {
			switch Operator(k) {
			case OpEQ, OpNEQ, OpLT, OpLTE, OpGT, OpGTE, OpIN, OpCONTAINS:
				cs = append(cs, Comparison{Operator: Operator(k), Operand: operand})
			default:
				return nil, NewError(ErrInvalidProperty, "unknown filter operator %s on field %s", k, fieldName)
			}
		}
		return cs, nil
	default:
		return nil, NewError(ErrInputTypeMismatch, "filter on field %s has unsupported shape %T", fieldName, v)
	}
}

// SuffixGenerator coins unique suffixes for the variable names used in a
// single compiled query plan.
type SuffixGenerator struct {
	seed int
}

// NewSuffixGenerator returns a generator whose first suffix is "_0".
func NewSuffixGenerator() *SuffixGenerator {
	return &SuffixGenerator{seed: -1}
}

// Suffix returns the next unique suffix.
func (sg *SuffixGenerator) Suffix() string {
	sg.seed++
	return "_" + strconv.Itoa(sg.seed)
}

// NodeQueryVar names a node variable within a compiled query. Label may be
// empty when the node's type is not statically known, as for the
// destination of a union-typed relationship.
type NodeQueryVar struct {
	Label  string
	Base   string
	Suffix string
}

// NewNodeQueryVar creates a node variable.
func NewNodeQueryVar(label, base, suffix string) *NodeQueryVar {
	return &NodeQueryVar{Label: label, Base: base, Suffix: suffix}
}

// Name returns the suffix-qualified variable name.
func (v *NodeQueryVar) Name() string {
	return v.Base + v.Suffix
}

// RelQueryVar names a relationship variable within a compiled query,
// together with the node variables of its endpoints.
type RelQueryVar struct {
	RelName string
	Suffix  string
	Src     *NodeQueryVar
	Dst     *NodeQueryVar
}

// NewRelQueryVar creates a relationship variable.
func NewRelQueryVar(relName, suffix string, src, dst *NodeQueryVar) *RelQueryVar {
	return &RelQueryVar{RelName: relName, Suffix: suffix, Src: src, Dst: dst}
}

// Name returns the suffix-qualified variable name.
func (v *RelQueryVar) Name() string {
	return "rel" + v.Suffix
}

// QueryFragment is a partially composed query: it declares variables and
// constraints but has not yet been finished into an executable statement.
// Fragments are back-end specific; layers above the Transaction never
// inspect one, they only thread it back into Transaction methods of the
// same back end.
type QueryFragment interface {
	fragment()
}

// Endpoint produces a connection pool for one back-end graph store.
// Endpoints are constructed from environment variables or explicit
// configuration.
type Endpoint interface {
	Pool(ctx context.Context) (Pool, error)
}

// Pool hands out transactions. Implementations are safe for concurrent
// use; each request acquires its own transaction.
type Pool interface {
	// ReadTransaction returns a transaction that may be read-optimized.
	ReadTransaction(ctx context.Context) (Transaction, error)
	// Transaction returns a read/write transaction.
	Transaction(ctx context.Context) (Transaction, error)
	// Close releases the pool's underlying connections.
	Close(ctx context.Context) error
}

// Transaction is the execution handle for one request. A request must
// call Commit on success or Rollback on failure; adapters may additionally
// roll back when the transaction is garbage-collected without either, but
// that is a safety net, not the contract.
//
// The partitionKey parameter threads an opaque per-request value through
// every data operation. Back ends that require one (the Gremlin-style
// adapter) fail with PartitionKeyNotFound when it is nil; others ignore
// it.
type Transaction interface {
	Begin(ctx context.Context) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error

	// ExecuteQuery runs a raw statement in the back end's own query
	// language. Custom resolvers use it through the event facade.
	ExecuteQuery(ctx context.Context, query string, params map[string]any) ([]map[string]any, error)

	// CreateNode creates a single node labeled nodeVar.Label with the
	// given scalar properties and a store-generated id.
	CreateNode(ctx context.Context, nodeVar *NodeQueryVar, props map[string]any, partitionKey any, info *Info, sg *SuffixGenerator) (*Node, error)

	// CreateRels creates one relationship named relVar.RelName from every
	// node matched by src to every node matched by dst. propsTypeName
	// labels the props bag on returned relationships. When singleRel is
	// true the adapter enforces single-cardinality: it fails with
	// RelDuplicated if any matched source already has an outgoing
	// relationship of that name, or if dst matches more than one node.
	CreateRels(ctx context.Context, src, dst QueryFragment, relVar *RelQueryVar, props map[string]any, propsTypeName string, singleRel bool, partitionKey any, sg *SuffixGenerator) ([]*Rel, error)

	// NodeReadByIDsFragment builds a fragment selecting the nodes with
	// the given ids.
	NodeReadByIDsFragment(nodeVar *NodeQueryVar, ids []string) (QueryFragment, error)

	// NodeReadFragment builds a fragment selecting nodes that satisfy the
	// property comparisons and are reachable through every relationship
	// fragment in relFragments.
	NodeReadFragment(relFragments []QueryFragment, nodeVar *NodeQueryVar, comparisons map[string][]Comparison, sg *SuffixGenerator) (QueryFragment, error)

	// ReadNodes finishes a node selection fragment and returns the
	// matched nodes.
	ReadNodes(ctx context.Context, nodeVar *NodeQueryVar, fragment QueryFragment, partitionKey any, info *Info) ([]*Node, error)

	// RelReadByIDsFragment builds a fragment selecting the relationships
	// with the given ids.
	RelReadByIDsFragment(relVar *RelQueryVar, ids []string) (QueryFragment, error)

	// RelReadFragment builds a fragment selecting relationships named
	// relVar.RelName whose endpoints satisfy the src and dst fragments
	// (either may be nil) and whose properties satisfy the comparisons.
	RelReadFragment(src, dst QueryFragment, relVar *RelQueryVar, comparisons map[string][]Comparison, sg *SuffixGenerator) (QueryFragment, error)

	// ReadRels finishes a relationship selection fragment and returns the
	// matched relationships. propsTypeName labels the props bag.
	ReadRels(ctx context.Context, fragment QueryFragment, relVar *RelQueryVar, propsTypeName string, partitionKey any) ([]*Rel, error)

	// UpdateNodes sets the given properties on every node matched by the
	// fragment and returns the updated nodes.
	UpdateNodes(ctx context.Context, fragment QueryFragment, nodeVar *NodeQueryVar, props map[string]any, partitionKey any, info *Info) ([]*Node, error)

	// UpdateRels sets the given properties on every relationship matched
	// by the fragment and returns the updated relationships.
	UpdateRels(ctx context.Context, fragment QueryFragment, relVar *RelQueryVar, props map[string]any, propsTypeName string, partitionKey any) ([]*Rel, error)

	// DeleteNodes deletes every node matched by the fragment and returns
	// the count deleted. Callers are responsible for detaching or
	// cascading relationships first.
	DeleteNodes(ctx context.Context, fragment QueryFragment, nodeVar *NodeQueryVar, partitionKey any) (int, error)

	// DeleteRels deletes every relationship matched by the fragment and
	// returns the count deleted.
	DeleteRels(ctx context.Context, fragment QueryFragment, relVar *RelQueryVar, partitionKey any) (int, error)
}

// envString reads a required environment variable.
func envString(name string) (string, error) {
	v, ok := os.LookupEnv(name)
	if !ok || v == "" {
		return "", NewError(ErrEnvironmentVariableNotFound, "%s", name)
	}
	return v, nil
}

// envUint16 reads a required environment variable holding a port number.
func envUint16(name string) (uint16, error) {
	s, err := envString(name)
	if err != nil {
		return 0, err
	}
	n, err := strconv.ParseUint(s, 10, 16)
	if err != nil {
		return 0, WrapError(ErrTypeConversionFailed, err, "%s is not a port number", name)
	}
	return uint16(n), nil
}
