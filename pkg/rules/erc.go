package rules

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rmax-ai/netlord/pkg/graph"
	"github.com/rmax-ai/netlord/pkg/patch"
)

// Stable codes for the built-in electrical rules.
const (
	CodeFloatingNet    = "ERC-FLOATING-NET"
	CodeUnconnectedPin = "ERC-UNCONNECTED-PIN"
	CodeNoGroundNet    = "ERC-NO-GROUND"
)

// FloatingNet flags nets with fewer than two distinct component connections
// (counted through pin intermediaries). A net wired to a single component, or
// to nothing, cannot carry current anywhere.
func FloatingNet() Rule {
	return NewRule(CodeFloatingNet, CategoryERC, "", SeverityInfo, func(v *graph.Version) []Violation {
		var out []Violation
		for _, netID := range v.NodesByKind(graph.NodeNet) {
			comps := make(map[string]bool)
			for _, eid := range v.EdgesByKind(graph.EdgeOnNet) {
				e := v.Edges[eid]
				if e.ToID != netID {
					continue
				}
				if owner := v.OwnerOf(e.FromID); owner != "" {
					comps[owner] = true
				}
			}
			if len(comps) < 2 {
				out = append(out, Violation{
					Code:     CodeFloatingNet,
					Severity: SeverityError,
					Message:  fmt.Sprintf("net %s has %d distinct component connections (need at least 2)", netID, len(comps)),
					Nodes:    []string{netID},
					Context:  map[string]string{"degree": fmt.Sprintf("%d", len(comps))},
				})
			}
		}
		return out
	})
}

// UnconnectedPin flags pins with no net connection at all.
func UnconnectedPin() Rule {
	return NewRule(CodeUnconnectedPin, CategoryERC, "", SeverityInfo, func(v *graph.Version) []Violation {
		var out []Violation
		for _, pinID := range v.NodesByKind(graph.NodePin) {
			if len(v.NetsOfPin(pinID)) == 0 {
				out = append(out, Violation{
					Code:     CodeUnconnectedPin,
					Severity: SeverityWarning,
					Message:  fmt.Sprintf("pin %s is not connected to any net", pinID),
					Nodes:    []string{pinID},
				})
			}
		}
		return out
	})
}

// NoGroundNet warns when no net in the design looks like a ground reference.
// A net counts as ground-like when its "role" attribute says so or its id
// contains "gnd".
func NoGroundNet() Rule {
	return NewRule(CodeNoGroundNet, CategoryERC, "", SeverityInfo, func(v *graph.Version) []Violation {
		nets := v.NodesByKind(graph.NodeNet)
		if len(nets) == 0 {
			return nil
		}
		for _, netID := range nets {
			n := v.Nodes[netID]
			if role, ok := n.Attrs["role"]; ok && role.Str == string(graph.RoleGround) {
				return nil
			}
			if strings.Contains(strings.ToLower(netID), "gnd") {
				return nil
			}
		}
		return []Violation{{
			Code:     CodeNoGroundNet,
			Severity: SeverityWarning,
			Message:  "no ground-like net found in the design",
			SuggestedFixes: []SuggestedFix{{
				Description: "add a ground net",
				Patch: &patch.Batch{Ops: []patch.Op{{
					Op: string(graph.OpAddNode),
					Node: &graph.Node{
						ID:    "net:GND",
						Kind:  graph.NodeNet,
						Attrs: map[string]graph.Value{"role": graph.Enum(string(graph.RoleGround))},
					},
				}}},
			}},
		}}
	})
}

// componentTerminals returns the distinct nets a component reaches through
// its pins, sorted.
func componentTerminals(v *graph.Version, compID string) []string {
	nets := make(map[string]bool)
	for _, eid := range v.EdgesByKind(graph.EdgeHasPin) {
		e := v.Edges[eid]
		if e.FromID != compID {
			continue
		}
		for _, net := range v.NetsOfPin(e.ToID) {
			nets[net] = true
		}
	}
	out := make([]string, 0, len(nets))
	for net := range nets {
		out = append(out, net)
	}
	sort.Strings(out)
	return out
}
