package graph

import (
	"fmt"
	"sync"
)

// OpKind tags a graph mutation operation.
type OpKind string

const (
	OpAddNode         OpKind = "add_node"
	OpRemoveNode      OpKind = "remove_node"
	OpUpdateNodeAttrs OpKind = "update_node_attr"
	OpAddEdge         OpKind = "add_edge"
	OpRemoveEdge      OpKind = "remove_edge"
	OpUpdateEdgeAttrs OpKind = "update_edge_attr"
)

// Operation is a single graph mutation. Only the fields relevant to its kind
// are set: Node for add_node, Edge for add_edge, ID plus Attrs for updates,
// ID alone for removals.
type Operation struct {
	Kind    OpKind
	Node    *Node
	Edge    *Edge
	ID      string
	Attrs   map[string]Value
	Upsert  bool // update ops: allow keys not present on the target
	Replace bool // update ops: replace the whole attr map instead of merging
}

// Store holds the published versions of the circuit graph. Versions are
// immutable once published; Commit is the only mutation path and is
// serialized internally. Readers never block writers and vice versa beyond
// the latest-pointer critical section.
type Store struct {
	mu       sync.RWMutex
	versions map[int64]*Version
	latest   *Version
	retain   int // newest versions kept in memory; 0 = unlimited
}

// NewStore creates a store holding a single empty graph as version 0.
// retain caps how many historical versions stay resident (0 = unlimited);
// this is a resource limit, not a correctness knob.
func NewStore(retain int) *Store {
	v0 := &Version{N: 0, Nodes: map[string]*Node{}, Edges: map[string]*Edge{}}
	return &Store{
		versions: map[int64]*Version{0: v0},
		latest:   v0,
		retain:   retain,
	}
}

// Restore publishes a previously archived version as the store's latest.
// Used at daemon boot; fails if the store has already advanced past it.
func (s *Store) Restore(v *Version) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v.N < s.latest.N {
		return &StaleBaseError{Base: v.N, Latest: s.latest.N}
	}
	s.versions[v.N] = v
	s.latest = v
	s.prune()
	return nil
}

// Latest returns the current latest version.
func (s *Store) Latest() *Version {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest
}

// Get returns the version with the given number, or ErrVersionNotFound.
func (s *Store) Get(n int64) (*Version, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.versions[n]
	if !ok {
		return nil, ErrVersionNotFound
	}
	return v, nil
}

// Commit applies ops in order against a working copy of base and publishes
// the result as a new version. It is all-or-nothing: any failure leaves the
// store's latest version unchanged.
//
// Failure modes: *StaleBaseError if base is not the current latest,
// *StructuralError if an operation cannot apply or the resulting graph
// breaks an invariant.
func (s *Store) Commit(base int64, ops []Operation) (*Version, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if base != s.latest.N {
		return nil, &StaleBaseError{Base: base, Latest: s.latest.N}
	}

	work := s.latest.EditableCopy()
	work.N = s.latest.N + 1

	for i, op := range ops {
		if err := ApplyOp(work, op); err != nil {
			return nil, &StructuralError{OpIndex: i, Reason: err.Error()}
		}
	}

	if reason := CheckInvariants(work); reason != "" {
		return nil, &StructuralError{OpIndex: -1, Reason: reason}
	}

	s.versions[work.N] = work
	s.latest = work
	s.prune()
	return work, nil
}

// prune drops the oldest versions beyond the retention limit. Caller holds mu.
func (s *Store) prune() {
	if s.retain <= 0 {
		return
	}
	floor := s.latest.N - int64(s.retain) + 1
	for n := range s.versions {
		if n < floor {
			delete(s.versions, n)
		}
	}
}

// EditableCopy returns an unpublished working copy of the version. The maps
// are fresh but entries are shared with the original; ApplyOp clones entries
// before mutating them, so published versions stay untouched.
func (v *Version) EditableCopy() *Version {
	work := &Version{
		N:     v.N,
		Nodes: make(map[string]*Node, len(v.Nodes)),
		Edges: make(map[string]*Edge, len(v.Edges)),
	}
	for id, n := range v.Nodes {
		work.Nodes[id] = n
	}
	for id, e := range v.Edges {
		work.Edges[id] = e
	}
	return work
}

// ApplyOp applies a single operation to an unpublished working version.
// Never call this on a published version.
func ApplyOp(v *Version, op Operation) error {
	switch op.Kind {
	case OpAddNode:
		if op.Node == nil || op.Node.ID == "" {
			return fmt.Errorf("add_node: missing node")
		}
		if _, exists := v.Nodes[op.Node.ID]; exists {
			return fmt.Errorf("add_node: duplicate node id %q", op.Node.ID)
		}
		if !op.Node.Kind.Valid() {
			return fmt.Errorf("add_node: unknown node kind %q", op.Node.Kind)
		}
		v.Nodes[op.Node.ID] = op.Node.Clone()

	case OpRemoveNode:
		if _, exists := v.Nodes[op.ID]; !exists {
			return fmt.Errorf("remove_node: node %q not found", op.ID)
		}
		delete(v.Nodes, op.ID)

	case OpUpdateNodeAttrs:
		n, exists := v.Nodes[op.ID]
		if !exists {
			return fmt.Errorf("update_node_attr: node %q not found", op.ID)
		}
		clone := n.Clone()
		if op.Replace {
			clone.Attrs = make(map[string]Value, len(op.Attrs))
		} else if clone.Attrs == nil {
			clone.Attrs = make(map[string]Value, len(op.Attrs))
		}
		for k, val := range op.Attrs {
			if !op.Upsert && !op.Replace {
				if _, ok := n.Attrs[k]; !ok {
					return fmt.Errorf("update_node_attr: node %q has no attribute %q (not an upsert)", op.ID, k)
				}
			}
			clone.Attrs[k] = val
		}
		v.Nodes[op.ID] = clone

	case OpAddEdge:
		if op.Edge == nil || op.Edge.ID == "" {
			return fmt.Errorf("add_edge: missing edge")
		}
		if _, exists := v.Edges[op.Edge.ID]; exists {
			return fmt.Errorf("add_edge: duplicate edge id %q", op.Edge.ID)
		}
		if !op.Edge.Kind.Valid() {
			return fmt.Errorf("add_edge: unknown edge kind %q", op.Edge.Kind)
		}
		v.Edges[op.Edge.ID] = op.Edge.Clone()

	case OpRemoveEdge:
		if _, exists := v.Edges[op.ID]; !exists {
			return fmt.Errorf("remove_edge: edge %q not found", op.ID)
		}
		delete(v.Edges, op.ID)

	case OpUpdateEdgeAttrs:
		e, exists := v.Edges[op.ID]
		if !exists {
			return fmt.Errorf("update_edge_attr: edge %q not found", op.ID)
		}
		clone := e.Clone()
		if op.Replace {
			clone.Attrs = make(map[string]Value, len(op.Attrs))
		} else if clone.Attrs == nil {
			clone.Attrs = make(map[string]Value, len(op.Attrs))
		}
		for k, val := range op.Attrs {
			if !op.Upsert && !op.Replace {
				if _, ok := e.Attrs[k]; !ok {
					return fmt.Errorf("update_edge_attr: edge %q has no attribute %q (not an upsert)", op.ID, k)
				}
			}
			clone.Attrs[k] = val
		}
		v.Edges[op.ID] = clone

	default:
		return fmt.Errorf("unsupported op %q", op.Kind)
	}
	return nil
}

// CheckInvariants validates the whole graph after a batch has been applied.
// Returns a human-readable reason, or "" if the graph is consistent.
func CheckInvariants(v *Version) string {
	// Referential integrity and endpoint typing.
	for _, id := range sortedEdgeIDs(v.Edges) {
		e := v.Edges[id]
		from, ok := v.Nodes[e.FromID]
		if !ok {
			return fmt.Sprintf("edge %q references missing node %q", e.ID, e.FromID)
		}
		to, ok := v.Nodes[e.ToID]
		if !ok {
			return fmt.Sprintf("edge %q references missing node %q", e.ID, e.ToID)
		}
		switch e.Kind {
		case EdgeHasPin:
			if from.Kind != NodeComponent || to.Kind != NodePin {
				return fmt.Sprintf("edge %q (has_pin) must connect component to pin, got %s to %s", e.ID, from.Kind, to.Kind)
			}
		case EdgeOnNet:
			if from.Kind != NodePin || to.Kind != NodeNet {
				return fmt.Sprintf("edge %q (on_net) must connect pin to net, got %s to %s", e.ID, from.Kind, to.Kind)
			}
		}
	}

	// Every pin has exactly one owning component.
	owners := make(map[string]int)
	for _, e := range v.Edges {
		if e.Kind == EdgeHasPin {
			owners[e.ToID]++
		}
	}
	for _, id := range sortedNodeIDs(v.Nodes) {
		n := v.Nodes[id]
		if n.Kind != NodePin {
			continue
		}
		switch owners[id] {
		case 0:
			return fmt.Sprintf("pin %q has no owning component", id)
		case 1:
		default:
			return fmt.Sprintf("pin %q has %d owning components", id, owners[id])
		}
	}

	return ""
}
