package grapht

// Node is a node returned from, or destined for, the graph store. Fields
// maps property names to values; every persisted node carries an "id"
// field holding its primary identity.
type Node struct {
	Label  string
	Fields map[string]any
}

// NewNode creates a node with the given label and fields. A nil fields map
// is replaced with an empty one.
func NewNode(label string, fields map[string]any) *Node {
	if fields == nil {
		fields = map[string]any{}
	}
	return &Node{Label: label, Fields: fields}
}

// ID returns the node's identifier, or a MissingProperty error if the node
// has none. A custom resolver that creates nodes without ids is the usual
// culprit.
func (n *Node) ID() (string, error) {
	v, ok := n.Fields["id"]
	if !ok || v == nil {
		return "", NewError(ErrMissingProperty, "node %s has no id field", n.Label)
	}
	return valueToIDString(v)
}

// NodeRef identifies one endpoint of a relationship. Relationships record
// the label alongside the id so that union-typed destinations resolve
// without refetching the node.
type NodeRef struct {
	ID    string
	Label string
}

// Rel is a relationship returned from the graph store. Props is nil when
// the relationship declares no properties; otherwise it is a node-shaped
// bag labeled with the relationship's props type name.
type Rel struct {
	ID    string
	Props *Node
	Src   NodeRef
	Dst   NodeRef
}

// nodeIDs extracts the id of every node in the slice, failing on the
// first node without one.
func nodeIDs(nodes []*Node) ([]string, error) {
	ids := make([]string, 0, len(nodes))
	for _, n := range nodes {
		id, err := n.ID()
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// relIDs extracts the id of every relationship in the slice.
func relIDs(rels []*Rel) []string {
	ids := make([]string, 0, len(rels))
	for _, r := range rels {
		ids = append(ids, r.ID)
	}
	return ids
}

// relSrcIDs extracts the distinct source node ids of the slice.
func relSrcIDs(rels []*Rel) []string {
	seen := make(map[string]bool, len(rels))
	ids := make([]string, 0, len(rels))
	for _, r := range rels {
		if !seen[r.Src.ID] {
			seen[r.Src.ID] = true
			ids = append(ids, r.Src.ID)
		}
	}
	return ids
}

// relDstIDs extracts the distinct destination node ids of the slice.
func relDstIDs(rels []*Rel) []string {
	seen := make(map[string]bool, len(rels))
	ids := make([]string, 0, len(rels))
	for _, r := range rels {
		if !seen[r.Dst.ID] {
			seen[r.Dst.ID] = true
			ids = append(ids, r.Dst.ID)
		}
	}
	return ids
}
