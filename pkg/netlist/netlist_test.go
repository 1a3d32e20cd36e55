package netlist

import (
	"encoding/json"
	"testing"

	"github.com/rmax-ai/netlord/pkg/graph"
	"github.com/rmax-ai/netlord/pkg/patch"
)

func buckBoost() *Netlist {
	return &Netlist{
		Version:  "1.0",
		DesignID: "design-001",
		Title:    "buck converter power stage",
		Components: []Component{
			{
				Ref:   "V1",
				Class: "Source",
				Pins: []Pin{
					{Name: "positive", PinID: "+"},
					{Name: "negative", PinID: "-"},
				},
				Params: []Param{{Name: "voltage", Value: 48, Unit: "V"}},
			},
			{
				Ref:     "Q1",
				Class:   "Transistor",
				PartRef: "IRFZ44N",
				Pins: []Pin{
					{Name: "drain", PinID: "D", Role: "D"},
					{Name: "gate", PinID: "G", Role: "G"},
					{Name: "source", PinID: "S", Role: "S"},
				},
				Params: []Param{{Name: "Vds_max", Value: 55, Unit: "V"}},
			},
			{
				Ref:   "R1",
				Class: "Resistor",
				Pins: []Pin{
					{Name: "a", PinID: "1"},
					{Name: "b", PinID: "2"},
				},
				Params: []Param{{Name: "resistance", Value: 10000, Unit: "Ohm"}},
			},
		},
		Nets: []Net{
			{ID: "VBUS", Type: NetPower},
			{ID: "SW", Type: NetSignal},
			{ID: "GND", Type: NetGround, IsReferenceGround: true},
		},
		Connections: []Connection{
			{ComponentRef: "V1", PinID: "+", Net: "VBUS"},
			{ComponentRef: "V1", PinID: "-", Net: "GND"},
			{ComponentRef: "Q1", PinID: "D", Net: "VBUS"},
			{ComponentRef: "Q1", PinID: "S", Net: "SW"},
			{ComponentRef: "Q1", PinID: "G", Net: "SW"},
			{ComponentRef: "R1", PinID: "1", Net: "SW"},
			{ComponentRef: "R1", PinID: "2", Net: "GND"},
		},
	}
}

func TestToPatchAppliesCleanly(t *testing.T) {
	nl := buckBoost()
	b, err := nl.ToPatch()
	if err != nil {
		t.Fatalf("ToPatch: %v", err)
	}
	if b.Namespace != "CIG" {
		t.Fatalf("namespace = %q, want CIG", b.Namespace)
	}

	store := graph.NewStore(8)
	p := patch.New(store)
	v, inverse, err := p.Apply(0, b)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if v.N != 1 {
		t.Fatalf("version = %d, want 1", v.N)
	}

	// 3 components + 7 pins + 3 nets.
	if got := len(v.Nodes); got != 13 {
		t.Fatalf("node count = %d, want 13", got)
	}
	// 7 ownership edges + 7 connections.
	if got := len(v.Edges); got != 14 {
		t.Fatalf("edge count = %d, want 14", got)
	}

	if reason := graph.CheckInvariants(v); reason != "" {
		t.Fatalf("invariants: %s", reason)
	}

	// The inverse batch must unwind the import back to an empty graph.
	base, _ := store.Get(0)
	v2, _, err := p.Apply(v.N, inverse)
	if err != nil {
		t.Fatalf("apply inverse: %v", err)
	}
	if !graph.Equal(base, v2) {
		t.Fatal("inverse batch did not restore the empty graph")
	}
}

func TestToPatchAttributes(t *testing.T) {
	nl := buckBoost()
	b, err := nl.ToPatch()
	if err != nil {
		t.Fatalf("ToPatch: %v", err)
	}

	store := graph.NewStore(8)
	v, _, err := patch.New(store).Apply(0, b)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}

	src := v.Nodes["cmp:V1"]
	if src == nil {
		t.Fatal("missing component node cmp:V1")
	}
	if got := src.Attrs["role"]; got != graph.Enum(string(graph.RolePowerSource)) {
		t.Fatalf("V1 role = %+v, want power-source", got)
	}
	if got := src.Attrs["voltage"]; got != graph.NumUnit(48, "V") {
		t.Fatalf("V1 voltage = %+v", got)
	}

	gnd := v.Nodes["net:GND"]
	if gnd == nil {
		t.Fatal("missing net node net:GND")
	}
	if got := gnd.Attrs["role"]; got != graph.Enum(string(graph.RoleGround)) {
		t.Fatalf("GND role = %+v, want ground", got)
	}

	if owner := v.OwnerOf("pin:Q1.D"); owner != "cmp:Q1" {
		t.Fatalf("owner of pin:Q1.D = %q", owner)
	}
	if nets := v.NetsOfPin("pin:Q1.D"); len(nets) != 1 || nets[0] != "net:VBUS" {
		t.Fatalf("nets of pin:Q1.D = %v", nets)
	}
}

func TestValidateRejectsBadDocuments(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(n *Netlist)
	}{
		{"duplicate net", func(n *Netlist) { n.Nets = append(n.Nets, Net{ID: "GND"}) }},
		{"duplicate ref", func(n *Netlist) { n.Components = append(n.Components, Component{Ref: "V1"}) }},
		{"unknown net", func(n *Netlist) {
			n.Connections = append(n.Connections, Connection{ComponentRef: "R1", PinID: "1", Net: "nope"})
		}},
		{"unknown component", func(n *Netlist) {
			n.Connections = append(n.Connections, Connection{ComponentRef: "R9", PinID: "1", Net: "GND"})
		}},
		{"unknown pin", func(n *Netlist) {
			n.Connections = append(n.Connections, Connection{ComponentRef: "R1", PinID: "3", Net: "GND"})
		}},
		{"duplicate pin_id", func(n *Netlist) {
			n.Components[0].Pins = append(n.Components[0].Pins, Pin{Name: "x", PinID: "+"})
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			nl := buckBoost()
			tc.mutate(nl)
			if err := nl.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestNetlistJSONRoundTrip(t *testing.T) {
	raw := `{
		"design_id": "d1",
		"title": "divider",
		"components": [
			{"ref": "R1", "class": "Resistor", "pins": [{"name": "a", "pin_id": "1"}, {"name": "b", "pin_id": "2"}],
			 "params": [{"name": "resistance", "value": 1000, "unit": "Ohm"}]}
		],
		"nets": [{"id": "GND", "type": "GROUND", "is_reference_ground": true}],
		"connections": [{"component_ref": "R1", "pin_id": "2", "net": "GND"}]
	}`
	var nl Netlist
	if err := json.Unmarshal([]byte(raw), &nl); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if err := nl.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if nl.Nets[0].Type != NetGround || !nl.Nets[0].IsReferenceGround {
		t.Fatalf("net decoded wrong: %+v", nl.Nets[0])
	}
	if nl.Components[0].Params[0].Unit != "Ohm" {
		t.Fatalf("param decoded wrong: %+v", nl.Components[0].Params[0])
	}
}
