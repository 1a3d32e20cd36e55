package graph

import (
	"encoding/json"
	"fmt"
	"sort"
)

// NodeKind represents the semantic type of a node in the circuit graph.
type NodeKind string

const (
	NodeComponent NodeKind = "component"
	NodePin       NodeKind = "pin"
	NodeNet       NodeKind = "net"
)

// Valid reports whether the kind is one of the known node kinds.
func (k NodeKind) Valid() bool {
	switch k {
	case NodeComponent, NodePin, NodeNet:
		return true
	}
	return false
}

// EdgeKind represents the semantic relationship between two nodes.
type EdgeKind string

const (
	EdgeHasPin EdgeKind = "has_pin" // Component -> Pin (ownership)
	EdgeOnNet  EdgeKind = "on_net"  // Pin -> Net (connectivity)
)

// Valid reports whether the kind is one of the known edge kinds.
func (k EdgeKind) Valid() bool {
	switch k {
	case EdgeHasPin, EdgeOnNet:
		return true
	}
	return false
}

// Role tags an edge or component with its electrical function.
type Role string

const (
	RolePower       Role = "power"
	RoleGround      Role = "ground"
	RoleSignal      Role = "signal"
	RolePowerSource Role = "power-source"
)

// ValueKind discriminates the typed attribute values carried by nodes.
type ValueKind string

const (
	ValueString ValueKind = "string"
	ValueNumber ValueKind = "number"
	ValueEnum   ValueKind = "enum"
)

// Value is a typed attribute value. Num is meaningful only for ValueNumber,
// Str for ValueString and ValueEnum. Unit is optional (e.g. "V", "A").
type Value struct {
	Kind ValueKind `json:"kind"`
	Str  string    `json:"str,omitempty"`
	Num  float64   `json:"num,omitempty"`
	Unit string    `json:"unit,omitempty"`
}

// Str returns a string Value.
func Str(s string) Value { return Value{Kind: ValueString, Str: s} }

// Num returns a numeric Value.
func Num(n float64) Value { return Value{Kind: ValueNumber, Num: n} }

// NumUnit returns a numeric Value with a unit.
func NumUnit(n float64, unit string) Value {
	return Value{Kind: ValueNumber, Num: n, Unit: unit}
}

// Enum returns an enum Value.
func Enum(s string) Value { return Value{Kind: ValueEnum, Str: s} }

func (v Value) String() string {
	if v.Kind == ValueNumber {
		if v.Unit != "" {
			return fmt.Sprintf("%g%s", v.Num, v.Unit)
		}
		return fmt.Sprintf("%g", v.Num)
	}
	return v.Str
}

// Node is a vertex of the circuit graph. Nodes are value types inside a
// published version and must not be mutated after publication; the store
// clones before it writes.
type Node struct {
	ID       string           `json:"id"`
	Kind     NodeKind         `json:"kind"`
	Attrs    map[string]Value `json:"attrs,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Clone returns a deep copy of the node.
func (n *Node) Clone() *Node {
	out := &Node{ID: n.ID, Kind: n.Kind}
	if n.Attrs != nil {
		out.Attrs = make(map[string]Value, len(n.Attrs))
		for k, v := range n.Attrs {
			out.Attrs[k] = v
		}
	}
	if n.Metadata != nil {
		out.Metadata = make(map[string]string, len(n.Metadata))
		for k, v := range n.Metadata {
			out.Metadata[k] = v
		}
	}
	return out
}

// Edge is a typed, directed connection between two nodes.
type Edge struct {
	ID     string           `json:"id"`
	Kind   EdgeKind         `json:"kind"`
	FromID string           `json:"from_id"`
	ToID   string           `json:"to_id"`
	Role   Role             `json:"role,omitempty"`
	Attrs  map[string]Value `json:"attrs,omitempty"`
}

// Clone returns a deep copy of the edge.
func (e *Edge) Clone() *Edge {
	out := &Edge{ID: e.ID, Kind: e.Kind, FromID: e.FromID, ToID: e.ToID, Role: e.Role}
	if e.Attrs != nil {
		out.Attrs = make(map[string]Value, len(e.Attrs))
		for k, v := range e.Attrs {
			out.Attrs[k] = v
		}
	}
	return out
}

// Version is an immutable snapshot of the circuit graph. Node and edge
// pointers are shared across versions; treat everything reachable from a
// Version as read-only.
type Version struct {
	N     int64
	Nodes map[string]*Node
	Edges map[string]*Edge
}

// NodesByKind returns the ids of all nodes of the given kind, sorted.
func (v *Version) NodesByKind(kind NodeKind) []string {
	var ids []string
	for id, n := range v.Nodes {
		if n.Kind == kind {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// EdgesByKind returns the ids of all edges of the given kind, sorted.
func (v *Version) EdgesByKind(kind EdgeKind) []string {
	var ids []string
	for id, e := range v.Edges {
		if e.Kind == kind {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// OwnerOf returns the component owning the given pin, or "" if none.
func (v *Version) OwnerOf(pinID string) string {
	for _, e := range v.Edges {
		if e.Kind == EdgeHasPin && e.ToID == pinID {
			return e.FromID
		}
	}
	return ""
}

// NetsOfPin returns the ids of nets the given pin connects to, sorted.
func (v *Version) NetsOfPin(pinID string) []string {
	var nets []string
	for _, e := range v.Edges {
		if e.Kind == EdgeOnNet && e.FromID == pinID {
			nets = append(nets, e.ToID)
		}
	}
	sort.Strings(nets)
	return nets
}

// versionPayload is the serialized form of a Version (archive + API).
type versionPayload struct {
	N     int64   `json:"version"`
	Nodes []*Node `json:"nodes"`
	Edges []*Edge `json:"edges"`
}

// MarshalJSON serializes the version with nodes and edges in id order so the
// encoding is byte-stable for identical graphs.
func (v *Version) MarshalJSON() ([]byte, error) {
	p := versionPayload{N: v.N}
	for _, id := range sortedNodeIDs(v.Nodes) {
		p.Nodes = append(p.Nodes, v.Nodes[id])
	}
	for _, id := range sortedEdgeIDs(v.Edges) {
		p.Edges = append(p.Edges, v.Edges[id])
	}
	return json.Marshal(p)
}

// UnmarshalJSON restores a version from its serialized form.
func (v *Version) UnmarshalJSON(data []byte) error {
	var p versionPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	v.N = p.N
	v.Nodes = make(map[string]*Node, len(p.Nodes))
	v.Edges = make(map[string]*Edge, len(p.Edges))
	for _, n := range p.Nodes {
		v.Nodes[n.ID] = n
	}
	for _, e := range p.Edges {
		v.Edges[e.ID] = e
	}
	return nil
}

func sortedNodeIDs(m map[string]*Node) []string {
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func sortedEdgeIDs(m map[string]*Edge) []string {
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Equal reports whether two versions describe structurally identical graphs,
// ignoring the version number. Used by undo round-trip checks.
func Equal(a, b *Version) bool {
	if len(a.Nodes) != len(b.Nodes) || len(a.Edges) != len(b.Edges) {
		return false
	}
	aj, err := (&Version{Nodes: a.Nodes, Edges: a.Edges}).MarshalJSON()
	if err != nil {
		return false
	}
	bj, err := (&Version{Nodes: b.Nodes, Edges: b.Edges}).MarshalJSON()
	if err != nil {
		return false
	}
	return string(aj) == string(bj)
}
