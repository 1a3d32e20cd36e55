package rules

import (
	"fmt"
	"strings"

	"github.com/rmax-ai/netlord/pkg/graph"
)

// Stable codes for the built-in power design rules. Power rules carry a
// warning floor: a condition a generic rule would classify as info never
// drops below warning here.
const (
	CodeParallelSource = "DRC-PARALLEL-SOURCE"
	CodeVdsMargin      = "DRC-VDS-MARGIN"
)

// isPowerSource reports whether the component is tagged as a power source.
func isPowerSource(n *graph.Node) bool {
	role, ok := n.Attrs["role"]
	return ok && role.Str == string(graph.RolePowerSource)
}

// ParallelSource flags two or more power-source components that share both
// terminals on the same pair of nets — an ideal-source loop the solver
// downstream cannot handle.
func ParallelSource() Rule {
	return NewRule(CodeParallelSource, CategoryDRC, DomainPower, SeverityWarning, func(v *graph.Version) []Violation {
		// Group sources by their exact terminal pair.
		byTerminals := make(map[string][]string)
		for _, compID := range v.NodesByKind(graph.NodeComponent) {
			if !isPowerSource(v.Nodes[compID]) {
				continue
			}
			terminals := componentTerminals(v, compID)
			if len(terminals) != 2 {
				continue
			}
			key := terminals[0] + "|" + terminals[1]
			byTerminals[key] = append(byTerminals[key], compID)
		}

		var out []Violation
		for key, comps := range byTerminals {
			if len(comps) < 2 {
				continue
			}
			nets := strings.Split(key, "|")
			// One violation per unordered pair; comps arrive sorted because
			// NodesByKind iterates in id order.
			for i := 0; i < len(comps); i++ {
				for j := i + 1; j < len(comps); j++ {
					out = append(out, Violation{
						Code:     CodeParallelSource,
						Severity: SeverityError,
						Message:  fmt.Sprintf("power sources %s and %s are parallel across nets %s and %s", comps[i], comps[j], nets[0], nets[1]),
						Nodes:    []string{comps[i], comps[j], nets[0], nets[1]},
						Context:  map[string]string{"net_a": nets[0], "net_b": nets[1]},
					})
				}
			}
		}
		return out
	})
}

// VdsMargin checks switch ratings against the bus voltage: any component with
// a Vds_max rating below 1.1x the design's Vbus_peak is flagged. The rule is
// inert when the design context carries no Vbus_peak value.
func VdsMargin() Rule {
	return NewRule(CodeVdsMargin, CategoryDRC, DomainPower, SeverityWarning, func(v *graph.Version) []Violation {
		ctx := CollectContext(v)
		vbus, ok := ctx["Vbus_peak"]
		if !ok {
			return nil
		}
		required := 1.1 * vbus

		var out []Violation
		for _, compID := range v.NodesByKind(graph.NodeComponent) {
			n := v.Nodes[compID]
			rating, ok := n.Attrs["Vds_max"]
			if !ok || rating.Kind != graph.ValueNumber {
				continue
			}
			if rating.Num < required {
				out = append(out, Violation{
					Code:     CodeVdsMargin,
					Severity: SeverityError,
					Message:  fmt.Sprintf("Vds_max %gV < 1.1*Vbus_peak %.1fV", rating.Num, required),
					Nodes:    []string{compID},
					Context: map[string]string{
						"param":     "Vds_max",
						"Vbus_peak": fmt.Sprintf("%g", vbus),
					},
				})
			}
		}
		return out
	})
}
