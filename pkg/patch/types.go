// Package patch holds the wire representation of graph edit batches and the
// Patcher that validates, applies, and inverts them.
package patch

import (
	"fmt"
	"strings"

	"github.com/rmax-ai/netlord/pkg/graph"
)

// Known batch namespaces, carried over from the design-graph layering of the
// surrounding pipeline (component instance graph, functional topology, etc.).
var knownNamespaces = map[string]bool{
	"DIG": true, "FTG": true, "ESG": true, "CIG": true,
	"VRG": true, "PDG": true, "MBG": true, "WMG": true,
}

// Op is one requested graph mutation. The Op tag selects which of the other
// fields are meaningful, mirroring the tagged union on the wire.
type Op struct {
	Op      string                 `json:"op"`
	Node    *graph.Node            `json:"node,omitempty"`
	Edge    *graph.Edge            `json:"edge,omitempty"`
	ID      string                 `json:"id,omitempty"`
	Attrs   map[string]graph.Value `json:"attrs,omitempty"`
	Upsert  bool                   `json:"upsert,omitempty"`
	Replace bool                   `json:"replace,omitempty"`
}

// Batch is an ordered sequence of ops submitted together; it is the unit of
// atomicity.
type Batch struct {
	Namespace string `json:"namespace,omitempty"`
	Ops       []Op   `json:"ops"`
}

// SchemaIssue describes one pre-validation failure within a batch.
type SchemaIssue struct {
	OpIndex int    `json:"op_index"`
	Reason  string `json:"reason"`
}

// SchemaError reports a malformed patch batch. Raised before the graph store
// is touched; the batch is a caller bug and must not be retried as-is.
type SchemaError struct {
	Issues []SchemaIssue
}

func (e *SchemaError) Error() string {
	parts := make([]string, 0, len(e.Issues))
	for _, iss := range e.Issues {
		if iss.OpIndex < 0 {
			parts = append(parts, iss.Reason)
			continue
		}
		parts = append(parts, fmt.Sprintf("op %d: %s", iss.OpIndex, iss.Reason))
	}
	return "patch: invalid batch: " + strings.Join(parts, "; ")
}

// Validate performs state-independent checks on the batch and returns a
// *SchemaError listing every issue found, or nil.
func (b *Batch) Validate() error {
	var issues []SchemaIssue
	if b.Namespace != "" && !knownNamespaces[b.Namespace] {
		issues = append(issues, SchemaIssue{OpIndex: -1, Reason: fmt.Sprintf("unknown namespace %q", b.Namespace)})
	}
	if len(b.Ops) == 0 {
		issues = append(issues, SchemaIssue{OpIndex: -1, Reason: "batch has no ops"})
	}
	for i, op := range b.Ops {
		for _, reason := range validateOp(op) {
			issues = append(issues, SchemaIssue{OpIndex: i, Reason: reason})
		}
	}
	if len(issues) > 0 {
		return &SchemaError{Issues: issues}
	}
	return nil
}

func validateOp(op Op) []string {
	var reasons []string
	switch graph.OpKind(op.Op) {
	case graph.OpAddNode:
		if op.Node == nil {
			return []string{"add_node requires a node"}
		}
		if op.Node.ID == "" {
			reasons = append(reasons, "add_node requires a non-empty node id")
		}
		if !op.Node.Kind.Valid() {
			reasons = append(reasons, fmt.Sprintf("unknown node kind %q", op.Node.Kind))
		}
	case graph.OpRemoveNode, graph.OpRemoveEdge:
		if op.ID == "" {
			reasons = append(reasons, op.Op+" requires a non-empty id")
		}
	case graph.OpUpdateNodeAttrs, graph.OpUpdateEdgeAttrs:
		if op.ID == "" {
			reasons = append(reasons, op.Op+" requires a non-empty id")
		}
		if len(op.Attrs) == 0 && !op.Replace {
			reasons = append(reasons, op.Op+" requires attrs (or replace)")
		}
	case graph.OpAddEdge:
		if op.Edge == nil {
			return []string{"add_edge requires an edge"}
		}
		if op.Edge.ID == "" {
			reasons = append(reasons, "add_edge requires a non-empty edge id")
		}
		if op.Edge.FromID == "" || op.Edge.ToID == "" {
			reasons = append(reasons, "add_edge requires both endpoints")
		}
		if !op.Edge.Kind.Valid() {
			reasons = append(reasons, fmt.Sprintf("unknown edge kind %q", op.Edge.Kind))
		}
	default:
		reasons = append(reasons, fmt.Sprintf("unsupported op %q", op.Op))
	}
	return reasons
}

// compile translates a validated batch into graph store operations.
func (b *Batch) compile() []graph.Operation {
	ops := make([]graph.Operation, 0, len(b.Ops))
	for _, op := range b.Ops {
		ops = append(ops, graph.Operation{
			Kind:    graph.OpKind(op.Op),
			Node:    op.Node,
			Edge:    op.Edge,
			ID:      op.ID,
			Attrs:   op.Attrs,
			Upsert:  op.Upsert,
			Replace: op.Replace,
		})
	}
	return ops
}
