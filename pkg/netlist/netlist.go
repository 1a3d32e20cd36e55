// Package netlist converts netlist documents produced by the design agents
// into patch batches for the circuit graph.
package netlist

import (
	"fmt"
	"strings"

	"github.com/rmax-ai/netlord/pkg/graph"
	"github.com/rmax-ai/netlord/pkg/patch"
)

// NetType classifies a net electrically.
type NetType string

const (
	NetAC     NetType = "AC"
	NetDC     NetType = "DC"
	NetSignal NetType = "SIGNAL"
	NetPower  NetType = "POWER"
	NetGround NetType = "GROUND"
)

// Known component classes. Free-form values are preserved as-is; these
// constants only cover the classes the converter treats specially.
const (
	ClassSource = "Source"
)

// Param is a named component parameter, optionally carrying a unit.
type Param struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
	Unit  string  `json:"unit,omitempty"`
}

// Pin is a component terminal. PinID is the stable identifier connections
// refer to; it must be unique within the component.
type Pin struct {
	Name  string `json:"name"`
	PinID string `json:"pin_id"`
	Role  string `json:"role,omitempty"` // e.g. D/G/S, A/K, +/-
}

// Component is an instance of a physical or logical part. It carries no
// connections; those live in Netlist.Connections.
type Component struct {
	Ref     string  `json:"ref"`
	Class   string  `json:"class,omitempty"`
	PartRef string  `json:"part_ref,omitempty"`
	Pins    []Pin   `json:"pins"`
	Params  []Param `json:"params,omitempty"`
}

// Net declares an electrical node.
type Net struct {
	ID                string  `json:"id"`
	Type              NetType `json:"type,omitempty"`
	IsReferenceGround bool    `json:"is_reference_ground,omitempty"`
}

// Connection joins a component pin to a net.
type Connection struct {
	ComponentRef string `json:"component_ref"`
	PinID        string `json:"pin_id"`
	Net          string `json:"net"`
}

// Netlist is the top-level document.
type Netlist struct {
	Version     string       `json:"version,omitempty"`
	DesignID    string       `json:"design_id"`
	Title       string       `json:"title,omitempty"`
	Components  []Component  `json:"components"`
	Nets        []Net        `json:"nets"`
	Connections []Connection `json:"connections"`
}

// Validate checks the internal integrity of the document: unique net ids and
// component refs, connections referencing declared nets, components, and pins.
func (n *Netlist) Validate() error {
	nets := make(map[string]bool, len(n.Nets))
	for _, net := range n.Nets {
		if net.ID == "" {
			return fmt.Errorf("netlist: net with empty id")
		}
		if nets[net.ID] {
			return fmt.Errorf("netlist: duplicate net id %q", net.ID)
		}
		nets[net.ID] = true
	}

	comps := make(map[string]map[string]bool, len(n.Components))
	for _, c := range n.Components {
		if c.Ref == "" {
			return fmt.Errorf("netlist: component with empty ref")
		}
		if _, dup := comps[c.Ref]; dup {
			return fmt.Errorf("netlist: duplicate component ref %q", c.Ref)
		}
		pins := make(map[string]bool, len(c.Pins))
		for _, p := range c.Pins {
			if p.PinID == "" {
				return fmt.Errorf("netlist: component %q has a pin with empty pin_id", c.Ref)
			}
			if pins[p.PinID] {
				return fmt.Errorf("netlist: component %q has duplicate pin_id %q", c.Ref, p.PinID)
			}
			pins[p.PinID] = true
		}
		comps[c.Ref] = pins
	}

	for _, con := range n.Connections {
		if !nets[con.Net] {
			return fmt.Errorf("netlist: connection references unknown net %q", con.Net)
		}
		pins, ok := comps[con.ComponentRef]
		if !ok {
			return fmt.Errorf("netlist: connection references unknown component %q", con.ComponentRef)
		}
		if !pins[con.PinID] {
			return fmt.Errorf("netlist: pin %q does not exist on component %q", con.PinID, con.ComponentRef)
		}
	}
	return nil
}

// Node id conventions for graph entities derived from a netlist.
func componentID(ref string) string { return "cmp:" + ref }
func pinID(ref, pin string) string  { return "pin:" + ref + "." + pin }
func netID(id string) string        { return "net:" + id }

// ToPatch converts a validated netlist into a patch batch under the CIG
// (component instance graph) namespace. The batch is ordered nets first, then
// components with their pins and ownership edges, then connections, so it
// applies cleanly against an empty graph.
func (n *Netlist) ToPatch() (*patch.Batch, error) {
	if err := n.Validate(); err != nil {
		return nil, err
	}

	b := &patch.Batch{Namespace: "CIG"}

	for _, net := range n.Nets {
		attrs := map[string]graph.Value{}
		if net.Type != "" {
			attrs["type"] = graph.Enum(string(net.Type))
		}
		if net.IsReferenceGround || net.Type == NetGround {
			attrs["role"] = graph.Enum(string(graph.RoleGround))
		}
		b.Ops = append(b.Ops, patch.Op{
			Op:   string(graph.OpAddNode),
			Node: &graph.Node{ID: netID(net.ID), Kind: graph.NodeNet, Attrs: attrs},
		})
	}

	for _, c := range n.Components {
		attrs := map[string]graph.Value{}
		if c.Class != "" {
			attrs["class"] = graph.Enum(c.Class)
		}
		if c.PartRef != "" {
			attrs["part_ref"] = graph.Str(c.PartRef)
		}
		if c.Class == ClassSource || strings.EqualFold(c.Class, "source") {
			attrs["role"] = graph.Enum(string(graph.RolePowerSource))
		}
		for _, p := range c.Params {
			attrs[p.Name] = graph.NumUnit(p.Value, p.Unit)
		}
		cid := componentID(c.Ref)
		b.Ops = append(b.Ops, patch.Op{
			Op:   string(graph.OpAddNode),
			Node: &graph.Node{ID: cid, Kind: graph.NodeComponent, Attrs: attrs},
		})

		for _, p := range c.Pins {
			pid := pinID(c.Ref, p.PinID)
			pinAttrs := map[string]graph.Value{"name": graph.Str(p.Name)}
			if p.Role != "" {
				pinAttrs["role"] = graph.Enum(p.Role)
			}
			b.Ops = append(b.Ops, patch.Op{
				Op:   string(graph.OpAddNode),
				Node: &graph.Node{ID: pid, Kind: graph.NodePin, Attrs: pinAttrs},
			})
			b.Ops = append(b.Ops, patch.Op{
				Op: string(graph.OpAddEdge),
				Edge: &graph.Edge{
					ID:     pid + "__of",
					Kind:   graph.EdgeHasPin,
					FromID: cid,
					ToID:   pid,
				},
			})
		}
	}

	for _, con := range n.Connections {
		pid := pinID(con.ComponentRef, con.PinID)
		nid := netID(con.Net)
		b.Ops = append(b.Ops, patch.Op{
			Op: string(graph.OpAddEdge),
			Edge: &graph.Edge{
				ID:     pid + "__on__" + nid,
				Kind:   graph.EdgeOnNet,
				FromID: pid,
				ToID:   nid,
			},
		})
	}

	return b, nil
}
