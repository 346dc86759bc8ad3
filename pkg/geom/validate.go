package geom

import (
	"fmt"
	"strings"
)

// ValidationError represents a validation failure in the geometry model.
// Validation errors are always caller-fixable and are never retried.
type ValidationError struct {
	Code    string
	Message string
	Path    string // slash-joined node path, e.g. "Site/M1/H2"
}

func (e ValidationError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s (node: %s)", e.Code, e.Message, e.Path)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Validate checks a geometry tree against the model invariants: unique
// non-empty sibling names, kind/data consistency, positive extents,
// consistent turn counts, slit radii inside the annulus, non-overlapping
// insert children, and resolvable MSite references. The lookup maps magnet
// names to nodes reachable in the same compilation pass; nil is allowed
// when the tree contains no MSite.
func Validate(root *Node, lookup map[string]*Node) []ValidationError {
	v := &validator{lookup: lookup}
	v.node(root, "")
	return v.errs
}

type validator struct {
	lookup map[string]*Node
	errs   []ValidationError
}

func (v *validator) add(code, path, format string, args ...interface{}) {
	v.errs = append(v.errs, ValidationError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Path:    path,
	})
}

func (v *validator) node(n *Node, parent string) {
	path := n.Name
	if parent != "" {
		path = parent + "/" + n.Name
	}
	if n.Name == "" {
		v.add("EMPTY_NAME", parent, "node must have a name")
		path = parent + "/?"
	}
	if strings.ContainsAny(n.Name, "/ ") {
		v.add("INVALID_NAME", path, "name %q contains reserved characters", n.Name)
	}

	v.data(n, path)

	seen := make(map[string]bool)
	for _, c := range n.Children {
		if c.Name != "" && seen[c.Name] {
			v.add("DUPLICATE_SIBLING", path, "duplicate child name %q", c.Name)
		}
		seen[c.Name] = true
		v.node(c, path)
	}
}

// data validates the kind-specific payload.
func (v *validator) data(n *Node, path string) {
	switch d := n.Data.(type) {
	case BitterData:
		v.kindIs(n, KindBitter, path)
		v.extent(d.R, d.Z, path)
		if len(d.Axi.Turns) == 0 {
			v.add("INCONSISTENT_TURNS", path, "bitter has no axial sections")
		}
		if len(d.Axi.Turns) != len(d.Axi.Pitch) {
			v.add("INCONSISTENT_TURNS", path, "turns (%d) and pitch (%d) differ in length",
				len(d.Axi.Turns), len(d.Axi.Pitch))
		}
		for i := range d.Axi.Turns {
			if d.Axi.Turns[i] <= 0 {
				v.add("INCONSISTENT_TURNS", path, "turns[%d] = %g is not positive", i, d.Axi.Turns[i])
			}
			if i < len(d.Axi.Pitch) && d.Axi.Pitch[i] <= 0 {
				v.add("INCONSISTENT_TURNS", path, "pitch[%d] = %g is not positive", i, d.Axi.Pitch[i])
			}
		}
		if len(d.Axi.Turns) > 0 && len(d.Axi.Turns) == len(d.Axi.Pitch) {
			stack := 0.0
			for i := range d.Axi.Turns {
				stack += d.Axi.Turns[i] * d.Axi.Pitch[i]
			}
			// Slit cracks span the envelope, so every plate must lie inside it.
			const eps = 1e-9
			if -d.Axi.H < d.Z[0]-eps || -d.Axi.H+stack > d.Z[1]+eps {
				v.add("INCONSISTENT_TURNS", path, "plate stack [%g, %g] outside envelope [%g, %g]",
					-d.Axi.H, -d.Axi.H+stack, d.Z[0], d.Z[1])
			}
		}
		for i, s := range d.CoolingSlits {
			if s <= d.R[0] || s >= d.R[1] {
				v.add("INVALID_SLIT", path, "slit[%d] radius %g outside (%g, %g)", i, s, d.R[0], d.R[1])
			}
		}
	case HelixData:
		v.kindIs(n, KindHelix, path)
		v.extent(d.R, d.Z, path)
	case SupraData:
		v.kindIs(n, KindSupra, path)
		v.extent(d.R, d.Z, path)
		switch d.Detail {
		case "", "none":
		case "dp":
			if d.NPancakes < 1 {
				v.add("INVALID_DETAIL", path, "dp detail wants npancakes >= 1, got %d", d.NPancakes)
			}
			if d.NPancakes > 1 && d.IsolationThickness <= 0 {
				v.add("INVALID_DETAIL", path, "dp detail wants positive isolation thickness")
			}
			if d.MandrelThickness < 0 || d.MandrelThickness >= d.R[1]-d.R[0] {
				v.add("INVALID_DETAIL", path, "mandrel thickness %g outside [0, %g)",
					d.MandrelThickness, d.R[1]-d.R[0])
			}
			if d.PancakeHeight() <= 0 {
				v.add("INVALID_DETAIL", path, "isolation layers leave no pancake height")
			}
		default:
			v.add("INVALID_DETAIL", path, "unknown detail %q", d.Detail)
		}
	case LeadData:
		v.kindIs(n, KindLead, path)
		if d.R[0] < 0 || d.R[1] <= d.R[0] {
			v.add("INVALID_RADII", path, "radii [%g, %g] are not increasing and non-negative", d.R[0], d.R[1])
		}
		if d.H <= 0 {
			v.add("INVALID_HEIGHT", path, "height %g is not positive", d.H)
		}
		if d.Inner && len(d.Bar) > 0 {
			v.add("DATA_MISMATCH", path, "inner lead carries a bus bar")
		}
		if !d.Inner && (len(d.Holes) > 0 || d.Fillet) {
			v.add("DATA_MISMATCH", path, "outer lead carries a hole pattern")
		}
	case RingData:
		v.kindIs(n, KindRing, path)
		v.extent(d.R, d.Z, path)
	case ScreenData:
		v.kindIs(n, KindScreen, path)
		v.extent(d.R, d.Z, path)
	case InsertData:
		v.kindIs(n, KindInsert, path)
		if d.InnerBore < 0 || d.OuterBore <= d.InnerBore {
			v.add("INVALID_RADII", path, "bores [%g, %g] are not increasing", d.InnerBore, d.OuterBore)
		}
		v.insertChildren(n, d, path)
	case BittersData:
		v.kindIs(n, KindBitters, path)
		v.childrenAre(n, KindBitter, path)
	case SuprasData:
		v.kindIs(n, KindSupras, path)
		v.childrenAre(n, KindSupra, path)
	case MSiteData:
		v.kindIs(n, KindMSite, path)
		if len(d.Magnets) == 0 {
			v.add("EMPTY_SITE", path, "msite references no magnets")
		}
		for _, name := range d.Magnets {
			if v.lookup == nil || v.lookup[name] == nil {
				v.add("UNRESOLVED_MAGNET", path, "referenced magnet %q does not resolve", name)
			}
		}
	case nil:
		v.add("MISSING_DATA", path, "node has no kind data")
	default:
		v.add("DATA_MISMATCH", path, "unknown data type %T", n.Data)
	}
}

func (v *validator) kindIs(n *Node, want Kind, path string) {
	if n.Kind != want {
		v.add("DATA_MISMATCH", path, "kind %s carries %s data", n.Kind, want)
	}
}

func (v *validator) childrenAre(n *Node, want Kind, path string) {
	if len(n.Children) == 0 {
		v.add("EMPTY_GROUP", path, "%s group has no children", n.Kind)
	}
	for _, c := range n.Children {
		if c.Kind != want {
			v.add("DATA_MISMATCH", path, "child %q has kind %s, want %s", c.Name, c.Kind, want)
		}
	}
}

func (v *validator) extent(r, z [2]float64, path string) {
	if r[0] < 0 || r[1] <= r[0] {
		v.add("INVALID_RADII", path, "radii [%g, %g] are not increasing and non-negative", r[0], r[1])
	}
	if z[1] <= z[0] {
		v.add("INVALID_HEIGHT", path, "heights [%g, %g] are not increasing", z[0], z[1])
	}
}

// insertChildren checks the helix stack of an insert: helices ordered by
// increasing radius, radially disjoint, and inside the bores.
func (v *validator) insertChildren(n *Node, d InsertData, path string) {
	var prev *HelixData
	nHelix := 0
	for _, c := range n.Children {
		switch cd := c.Data.(type) {
		case HelixData:
			nHelix++
			if cd.R[0] < d.InnerBore || cd.R[1] > d.OuterBore {
				v.add("INVALID_RADII", path+"/"+c.Name,
					"helix radii [%g, %g] outside bores [%g, %g]", cd.R[0], cd.R[1], d.InnerBore, d.OuterBore)
			}
			if prev != nil && cd.R[0] < prev.R[1] {
				v.add("OVERLAPPING_CHILDREN", path+"/"+c.Name,
					"helix overlaps previous helix radially (%g < %g)", cd.R[0], prev.R[1])
			}
			h := cd
			prev = &h
		case RingData:
			// Rings straddle helix pairs; radial overlap is expected.
		default:
			v.add("DATA_MISMATCH", path, "insert child %q has kind %s", c.Name, c.Kind)
		}
	}
	if nHelix == 0 {
		v.add("EMPTY_GROUP", path, "insert has no helices")
	}
}
