package sizing

import (
	"github.com/magnettools/magnetmesh/pkg/geom"
)

// DefaultsFor derives component-path rules from the geometry itself: each
// conductor or structural cross-section gets a characteristic length of a
// third of its radial thickness. The returned rules use the same
// underscore-joined paths the compiler registers names under, so they
// apply to every surface the node produces.
func DefaultsFor(root *geom.Node) []Rule {
	var rules []Rule
	var walk func(n *geom.Node, prefix string)
	walk = func(n *geom.Node, prefix string) {
		path := n.Name
		if prefix != "" {
			path = prefix + "_" + n.Name
		}
		switch d := n.Data.(type) {
		case geom.BitterData:
			rules = append(rules, Rule{ScopePath, path, (d.R[1] - d.R[0]) / 3})
		case geom.HelixData:
			rules = append(rules, Rule{ScopePath, path, (d.R[1] - d.R[0]) / 3})
		case geom.SupraData:
			rules = append(rules, Rule{ScopePath, path, (d.R[1] - d.R[0]) / 3})
		case geom.ScreenData:
			rules = append(rules, Rule{ScopePath, path, (d.R[1] - d.R[0]) / 3})
		case geom.RingData:
			// Rings are thin; a tenth of the radial extent keeps the
			// junction resolved.
			rules = append(rules, Rule{ScopePath, path, (d.R[1] - d.R[0]) / 10})
		}
		for _, c := range n.Children {
			walk(c, path)
		}
	}
	walk(root, "")
	return rules
}
