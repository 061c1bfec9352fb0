package grapht

import (
	"context"
	"time"

	"github.com/graph-gophers/dataloader/v7"
)

// The batch loaders coalesce the node and relationship fetches the
// GraphQL executor performs while it walks a selection, so traversing a
// list of relationships costs one bulk read instead of one read per
// element. A pair of loaders lives for exactly one request: the loader's
// cache guarantees at most one in-flight fetch per distinct key, results
// are demultiplexed back to each caller, and a failed batch fails every
// waiter with the same error.

const loaderWait = 2 * time.Millisecond

// nodeKey identifies a node fetch: the id plus the label under which the
// schema reached it.
type nodeKey struct {
	ID    string
	Label string
}

// relKey identifies a relationship-list fetch: all outgoing
// relationships of one name on one source node.
type relKey struct {
	SrcID         string
	SrcLabel      string
	RelName       string
	PropsTypeName string
}

type nodeLoader struct {
	loader *dataloader.Loader[nodeKey, *Node]
}

type relLoader struct {
	loader *dataloader.Loader[relKey, []*Rel]
}

func newNodeLoader(tx Transaction, partitionKey any, defs map[string]*NodeTypeDef) *nodeLoader {
	batch := func(ctx context.Context, keys []nodeKey) []*dataloader.Result[*Node] {
		results := make([]*dataloader.Result[*Node], len(keys))

		// One bulk read per distinct label in the batch.
		byLabel := map[string][]string{}
		for _, k := range keys {
			byLabel[k.Label] = append(byLabel[k.Label], k.ID)
		}

		found := map[nodeKey]*Node{}
		for label, ids := range byLabel {
			sg := NewSuffixGenerator()
			nodeVar := NewNodeQueryVar(label, "node", sg.Suffix())
			frag, err := tx.NodeReadByIDsFragment(nodeVar, ids)
			if err != nil {
				return failNodeBatch(results, err)
			}
			nodes, err := tx.ReadNodes(ctx, nodeVar, frag, partitionKey, NewInfo(label, defs))
			if err != nil {
				return failNodeBatch(results, err)
			}
			for _, n := range nodes {
				id, err := n.ID()
				if err != nil {
					return failNodeBatch(results, err)
				}
				found[nodeKey{ID: id, Label: label}] = n
			}
		}

		for i, k := range keys {
			n, ok := found[k]
			if !ok {
				results[i] = &dataloader.Result[*Node]{
					Error: NewError(ErrResponseItemNotFound, "node %s of type %s", k.ID, k.Label),
				}
				continue
			}
			results[i] = &dataloader.Result[*Node]{Data: n}
		}
		return results
	}

	return &nodeLoader{loader: dataloader.NewBatchedLoader(batch, dataloader.WithWait[nodeKey, *Node](loaderWait))}
}

func failNodeBatch(results []*dataloader.Result[*Node], err error) []*dataloader.Result[*Node] {
	for i := range results {
		results[i] = &dataloader.Result[*Node]{Error: err}
	}
	return results
}

// Load fetches one node by id and label through the batching window.
func (l *nodeLoader) Load(ctx context.Context, id, label string) (*Node, error) {
	return l.loader.Load(ctx, nodeKey{ID: id, Label: label})()
}

// LoadThunk registers the fetch and returns a thunk that blocks until
// the batch completes. Resolvers hand the thunk to the GraphQL executor
// so sibling fields join the same batch.
func (l *nodeLoader) LoadThunk(ctx context.Context, id, label string) func() (any, error) {
	thunk := l.loader.Load(ctx, nodeKey{ID: id, Label: label})
	return func() (any, error) {
		return thunk()
	}
}

func newRelLoader(tx Transaction, partitionKey any) *relLoader {
	batch := func(ctx context.Context, keys []relKey) []*dataloader.Result[[]*Rel] {
		results := make([]*dataloader.Result[[]*Rel], len(keys))

		type relGroup struct {
			srcLabel      string
			relName       string
			propsTypeName string
		}
		byGroup := map[relGroup][]string{}
		for _, k := range keys {
			g := relGroup{srcLabel: k.SrcLabel, relName: k.RelName, propsTypeName: k.PropsTypeName}
			byGroup[g] = append(byGroup[g], k.SrcID)
		}

		found := map[relKey][]*Rel{}
		for g, srcIDs := range byGroup {
			sg := NewSuffixGenerator()
			relVar := NewRelQueryVar(g.relName, sg.Suffix(),
				NewNodeQueryVar(g.srcLabel, "src", sg.Suffix()),
				NewNodeQueryVar("", "dst", sg.Suffix()))
			srcFrag, err := tx.NodeReadByIDsFragment(relVar.Src, srcIDs)
			if err != nil {
				return failRelBatch(results, err)
			}
			frag, err := tx.RelReadFragment(srcFrag, nil, relVar, nil, sg)
			if err != nil {
				return failRelBatch(results, err)
			}
			rels, err := tx.ReadRels(ctx, frag, relVar, g.propsTypeName, partitionKey)
			if err != nil {
				return failRelBatch(results, err)
			}
			for _, r := range rels {
				k := relKey{SrcID: r.Src.ID, SrcLabel: g.srcLabel, RelName: g.relName, PropsTypeName: g.propsTypeName}
				found[k] = append(found[k], r)
			}
		}

		for i, k := range keys {
			results[i] = &dataloader.Result[[]*Rel]{Data: found[k]}
		}
		return results
	}

	return &relLoader{loader: dataloader.NewBatchedLoader(batch, dataloader.WithWait[relKey, []*Rel](loaderWait))}
}

func failRelBatch(results []*dataloader.Result[[]*Rel], err error) []*dataloader.Result[[]*Rel] {
	for i := range results {
		results[i] = &dataloader.Result[[]*Rel]{Error: err}
	}
	return results
}

// Load fetches the outgoing relationships of one name on one source node
// through the batching window.
func (l *relLoader) Load(ctx context.Context, srcID, srcLabel, relName, propsTypeName string) ([]*Rel, error) {
	return l.loader.Load(ctx, relKey{SrcID: srcID, SrcLabel: srcLabel, RelName: relName, PropsTypeName: propsTypeName})()
}

// LoadThunk registers the fetch and returns the blocking thunk.
func (l *relLoader) LoadThunk(ctx context.Context, srcID, srcLabel, relName, propsTypeName string) func() ([]*Rel, error) {
	return l.loader.Load(ctx, relKey{SrcID: srcID, SrcLabel: srcLabel, RelName: relName, PropsTypeName: propsTypeName})
}
