package patch

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/rmax-ai/netlord/pkg/graph"
)

// dividerBatch builds a resistor across two nets.
func dividerBatch() *Batch {
	return &Batch{
		Namespace: "CIG",
		Ops: []Op{
			{Op: "add_node", Node: &graph.Node{ID: "net:IN", Kind: graph.NodeNet}},
			{Op: "add_node", Node: &graph.Node{ID: "net:GND", Kind: graph.NodeNet, Attrs: map[string]graph.Value{"role": graph.Enum("ground")}}},
			{Op: "add_node", Node: &graph.Node{ID: "cmp:R1", Kind: graph.NodeComponent, Attrs: map[string]graph.Value{"class": graph.Str("Resistor"), "resistance": graph.NumUnit(1000, "Ohm")}}},
			{Op: "add_node", Node: &graph.Node{ID: "pin:R1.1", Kind: graph.NodePin}},
			{Op: "add_node", Node: &graph.Node{ID: "pin:R1.2", Kind: graph.NodePin}},
			{Op: "add_edge", Edge: &graph.Edge{ID: "pin:R1.1__of", Kind: graph.EdgeHasPin, FromID: "cmp:R1", ToID: "pin:R1.1"}},
			{Op: "add_edge", Edge: &graph.Edge{ID: "pin:R1.2__of", Kind: graph.EdgeHasPin, FromID: "cmp:R1", ToID: "pin:R1.2"}},
			{Op: "add_edge", Edge: &graph.Edge{ID: "pin:R1.1__on", Kind: graph.EdgeOnNet, FromID: "pin:R1.1", ToID: "net:IN"}},
			{Op: "add_edge", Edge: &graph.Edge{ID: "pin:R1.2__on", Kind: graph.EdgeOnNet, FromID: "pin:R1.2", ToID: "net:GND"}},
		},
	}
}

func TestApplyCommitsAndInverts(t *testing.T) {
	store := graph.NewStore(0)
	p := New(store)

	v, inverse, err := p.Apply(0, dividerBatch())
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if v.N != 1 {
		t.Fatalf("version = %d, want 1", v.N)
	}
	if inverse == nil || len(inverse.Ops) != len(dividerBatch().Ops) {
		t.Fatalf("inverse = %+v", inverse)
	}
	if inverse.Namespace != "CIG" {
		t.Errorf("inverse namespace = %q", inverse.Namespace)
	}
	// Inverse unwinds back to front: the first inverse op undoes the last
	// original op.
	if inverse.Ops[0].Op != "remove_edge" || inverse.Ops[0].ID != "pin:R1.2__on" {
		t.Errorf("inverse.Ops[0] = %+v", inverse.Ops[0])
	}

	base, _ := store.Get(0)
	v2, _, err := p.Apply(1, inverse)
	if err != nil {
		t.Fatalf("apply inverse: %v", err)
	}
	if !graph.Equal(base, v2) {
		t.Fatal("inverse did not restore the base graph")
	}
}

func TestApplySchemaErrors(t *testing.T) {
	store := graph.NewStore(0)
	p := New(store)

	cases := []struct {
		name  string
		batch *Batch
	}{
		{"empty batch", &Batch{Namespace: "CIG"}},
		{"unknown namespace", &Batch{Namespace: "XXX", Ops: []Op{{Op: "add_node", Node: &graph.Node{ID: "n", Kind: graph.NodeNet}}}}},
		{"unknown op", &Batch{Ops: []Op{{Op: "explode"}}}},
		{"add_node without node", &Batch{Ops: []Op{{Op: "add_node"}}}},
		{"add_node bad kind", &Batch{Ops: []Op{{Op: "add_node", Node: &graph.Node{ID: "n", Kind: "thing"}}}}},
		{"remove without id", &Batch{Ops: []Op{{Op: "remove_node"}}}},
		{"update without attrs", &Batch{Ops: []Op{{Op: "update_node_attr", ID: "n"}}}},
		{"add_edge missing endpoint", &Batch{Ops: []Op{{Op: "add_edge", Edge: &graph.Edge{ID: "e", Kind: graph.EdgeOnNet, FromID: "a"}}}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := p.Apply(0, tc.batch)
			var schema *SchemaError
			if !errors.As(err, &schema) {
				t.Fatalf("expected *SchemaError, got %v", err)
			}
			if len(schema.Issues) == 0 {
				t.Fatal("schema error carries no issues")
			}
			if store.Latest().N != 0 {
				t.Fatal("schema failure advanced the store")
			}
		})
	}
}

func TestApplyCollectsAllIssues(t *testing.T) {
	batch := &Batch{Ops: []Op{
		{Op: "add_node"},
		{Op: "remove_edge"},
	}}
	err := batch.Validate()
	var schema *SchemaError
	if !errors.As(err, &schema) {
		t.Fatalf("expected *SchemaError, got %v", err)
	}
	if len(schema.Issues) != 2 {
		t.Fatalf("issues = %d, want 2 (all ops reported)", len(schema.Issues))
	}
	if schema.Issues[0].OpIndex != 0 || schema.Issues[1].OpIndex != 1 {
		t.Errorf("issue indexes = %+v", schema.Issues)
	}
}

func TestApplyStaleBase(t *testing.T) {
	store := graph.NewStore(0)
	p := New(store)
	if _, _, err := p.Apply(0, dividerBatch()); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	_, _, err := p.Apply(0, &Batch{Ops: []Op{
		{Op: "add_node", Node: &graph.Node{ID: "net:X", Kind: graph.NodeNet}},
	}})
	var stale *graph.StaleBaseError
	if !errors.As(err, &stale) {
		t.Fatalf("expected *StaleBaseError, got %v", err)
	}
	if stale.Latest != 1 {
		t.Errorf("Latest = %d", stale.Latest)
	}
}

func TestApplyPrunedBaseReportsStale(t *testing.T) {
	store := graph.NewStore(2)
	p := New(store)

	base := int64(0)
	for i := 0; i < 4; i++ {
		v, _, err := p.Apply(base, &Batch{Ops: []Op{
			{Op: "add_node", Node: &graph.Node{ID: "net:N" + string(rune('A'+i)), Kind: graph.NodeNet}},
		}})
		if err != nil {
			t.Fatalf("Apply %d: %v", i, err)
		}
		base = v.N
	}

	// Version 0 is long pruned; submitting against it reads as stale.
	_, _, err := p.Apply(0, &Batch{Ops: []Op{
		{Op: "add_node", Node: &graph.Node{ID: "net:Z", Kind: graph.NodeNet}},
	}})
	var stale *graph.StaleBaseError
	if !errors.As(err, &stale) {
		t.Fatalf("expected *StaleBaseError, got %v", err)
	}
}

func TestInvertUpdateRestoresPriorAttrs(t *testing.T) {
	store := graph.NewStore(0)
	p := New(store)
	if _, _, err := p.Apply(0, dividerBatch()); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	v1, _ := store.Get(1)

	update := &Batch{Ops: []Op{
		{Op: "update_node_attr", ID: "cmp:R1", Attrs: map[string]graph.Value{
			"resistance": graph.NumUnit(2200, "Ohm"),
			"tolerance":  graph.Num(0.01),
		}, Upsert: true},
	}}
	v2, inverse, err := p.Apply(1, update)
	if err != nil {
		t.Fatalf("Apply update: %v", err)
	}
	if got := v2.Nodes["cmp:R1"].Attrs["resistance"]; got != graph.NumUnit(2200, "Ohm") {
		t.Fatalf("resistance = %v", got)
	}

	v3, _, err := p.Apply(2, inverse)
	if err != nil {
		t.Fatalf("Apply inverse: %v", err)
	}
	if !graph.Equal(v1, v3) {
		t.Fatal("inverse did not restore prior attributes")
	}
	// The upserted key must be gone, not zeroed.
	if _, ok := v3.Nodes["cmp:R1"].Attrs["tolerance"]; ok {
		t.Fatal("upserted key survived the undo")
	}
}

func TestInvertRemoveRestoresNodeAndEdges(t *testing.T) {
	store := graph.NewStore(0)
	p := New(store)
	if _, _, err := p.Apply(0, dividerBatch()); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	v1, _ := store.Get(1)

	removal := &Batch{Ops: []Op{
		{Op: "remove_edge", ID: "pin:R1.1__on"},
		{Op: "remove_edge", ID: "pin:R1.2__on"},
		{Op: "remove_edge", ID: "pin:R1.1__of"},
		{Op: "remove_edge", ID: "pin:R1.2__of"},
		{Op: "remove_node", ID: "pin:R1.1"},
		{Op: "remove_node", ID: "pin:R1.2"},
		{Op: "remove_node", ID: "cmp:R1"},
	}}
	_, inverse, err := p.Apply(1, removal)
	if err != nil {
		t.Fatalf("Apply removal: %v", err)
	}

	v3, _, err := p.Apply(2, inverse)
	if err != nil {
		t.Fatalf("Apply inverse: %v", err)
	}
	if !graph.Equal(v1, v3) {
		t.Fatal("inverse did not resurrect the removed subgraph")
	}
	if got := v3.Nodes["cmp:R1"].Attrs["resistance"]; got != graph.NumUnit(1000, "Ohm") {
		t.Fatalf("restored attrs lost: %v", got)
	}
}

func TestBatchJSONWireShape(t *testing.T) {
	raw := `{
		"namespace": "CIG",
		"ops": [
			{"op": "add_node", "node": {"id": "net:GND", "kind": "net", "attrs": {"role": {"kind": "enum", "str": "ground"}}}},
			{"op": "update_node_attr", "id": "net:GND", "attrs": {"role": {"kind": "enum", "str": "power"}}, "upsert": true}
		]
	}`
	var b Batch
	if err := json.Unmarshal([]byte(raw), &b); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if err := b.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if b.Ops[0].Node.Attrs["role"] != graph.Enum("ground") {
		t.Fatalf("decoded attr = %+v", b.Ops[0].Node.Attrs["role"])
	}
	if !b.Ops[1].Upsert {
		t.Fatal("upsert flag lost")
	}
}
