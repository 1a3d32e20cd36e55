package rules

import "github.com/rmax-ai/netlord/pkg/graph"

// CollectContext flattens numeric design values from node attributes into a
// single lookup for parametric rules (e.g. Vbus_peak, T_ambient). Values set
// via spec or sizing bindings land on nodes as numeric attrs; the last node
// scanned wins on key collision, which is acceptable because design-level
// values are expected to be set once.
func CollectContext(v *graph.Version) map[string]float64 {
	ctx := make(map[string]float64)
	for _, id := range append(v.NodesByKind(graph.NodeComponent),
		append(v.NodesByKind(graph.NodeNet), v.NodesByKind(graph.NodePin)...)...) {
		n := v.Nodes[id]
		for k, val := range n.Attrs {
			if val.Kind == graph.ValueNumber {
				ctx[k] = val.Num
			}
		}
	}
	if _, ok := ctx["T_ambient"]; !ok {
		if amb, ok := ctx["ambient"]; ok {
			ctx["T_ambient"] = amb
		}
	}
	return ctx
}
