package patch

import (
	"github.com/rmax-ai/netlord/pkg/graph"
)

// Patcher translates wire-format batches into graph store commits. It also
// computes the inverse batch for undo: the store keeps full snapshots, not
// deltas, so the structural opposite of each op (with prior attributes
// captured) is the only way back.
type Patcher struct {
	store *graph.Store
}

// New creates a Patcher bound to a graph store.
func New(store *graph.Store) *Patcher {
	return &Patcher{store: store}
}

// Apply validates the batch, commits it against base, and returns the new
// version together with the inverse batch. Pre-validation failures surface as
// *SchemaError without touching the store; commit failures are the store's
// errors, unchanged.
func (p *Patcher) Apply(base int64, batch *Batch) (*graph.Version, *Batch, error) {
	if err := batch.Validate(); err != nil {
		return nil, nil, err
	}

	baseVersion, err := p.store.Get(base)
	if err != nil {
		// Base already pruned or never existed; Commit would report the same
		// condition as a stale base, which tells the caller to refetch.
		latest := p.store.Latest()
		return nil, nil, &graph.StaleBaseError{Base: base, Latest: latest.N}
	}

	ops := batch.compile()
	version, err := p.store.Commit(base, ops)
	if err != nil {
		return nil, nil, err
	}

	inverse, err := Invert(baseVersion, batch)
	if err != nil {
		// The batch just committed, so inversion cannot fail; guard anyway.
		return version, nil, err
	}
	return version, inverse, nil
}

// Invert computes the inverse of batch relative to the version it was applied
// to. Ops are inverted individually (prior state captured by simulating the
// batch) and emitted in reverse order.
func Invert(base *graph.Version, batch *Batch) (*Batch, error) {
	sim := base.EditableCopy()
	inverted := make([]Op, 0, len(batch.Ops))

	for _, op := range batch.Ops {
		inv, err := invertOp(sim, op)
		if err != nil {
			return nil, err
		}
		inverted = append(inverted, inv)
		if err := graph.ApplyOp(sim, graph.Operation{
			Kind:    graph.OpKind(op.Op),
			Node:    op.Node,
			Edge:    op.Edge,
			ID:      op.ID,
			Attrs:   op.Attrs,
			Upsert:  op.Upsert,
			Replace: op.Replace,
		}); err != nil {
			return nil, err
		}
	}

	// Reverse so the inverse batch unwinds the original back to front.
	out := &Batch{Namespace: batch.Namespace, Ops: make([]Op, 0, len(inverted))}
	for i := len(inverted) - 1; i >= 0; i-- {
		out.Ops = append(out.Ops, inverted[i])
	}
	return out, nil
}

// invertOp builds the structural opposite of op given the graph state just
// before it applies.
func invertOp(cur *graph.Version, op Op) (Op, error) {
	switch graph.OpKind(op.Op) {
	case graph.OpAddNode:
		return Op{Op: string(graph.OpRemoveNode), ID: op.Node.ID}, nil

	case graph.OpRemoveNode:
		prior, ok := cur.Nodes[op.ID]
		if !ok {
			return Op{}, &graph.StructuralError{OpIndex: -1, Reason: "cannot invert remove_node: node " + op.ID + " not found"}
		}
		return Op{Op: string(graph.OpAddNode), Node: prior.Clone()}, nil

	case graph.OpUpdateNodeAttrs:
		prior, ok := cur.Nodes[op.ID]
		if !ok {
			return Op{}, &graph.StructuralError{OpIndex: -1, Reason: "cannot invert update_node_attr: node " + op.ID + " not found"}
		}
		// Restoring with replace semantics makes upserted keys disappear.
		return Op{Op: string(graph.OpUpdateNodeAttrs), ID: op.ID, Attrs: prior.Clone().Attrs, Replace: true}, nil

	case graph.OpAddEdge:
		return Op{Op: string(graph.OpRemoveEdge), ID: op.Edge.ID}, nil

	case graph.OpRemoveEdge:
		prior, ok := cur.Edges[op.ID]
		if !ok {
			return Op{}, &graph.StructuralError{OpIndex: -1, Reason: "cannot invert remove_edge: edge " + op.ID + " not found"}
		}
		return Op{Op: string(graph.OpAddEdge), Edge: prior.Clone()}, nil

	case graph.OpUpdateEdgeAttrs:
		prior, ok := cur.Edges[op.ID]
		if !ok {
			return Op{}, &graph.StructuralError{OpIndex: -1, Reason: "cannot invert update_edge_attr: edge " + op.ID + " not found"}
		}
		return Op{Op: string(graph.OpUpdateEdgeAttrs), ID: op.ID, Attrs: prior.Clone().Attrs, Replace: true}, nil
	}
	return Op{}, &graph.StructuralError{OpIndex: -1, Reason: "cannot invert unsupported op " + op.Op}
}
