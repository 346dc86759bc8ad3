// Package geom defines the hierarchical magnet geometry model: the node
// tree describing conductors, cooling channels, insulation and enclosing
// structures. The tree is built by the caller (from YAML documents or the
// script front-end) and is read-only during compilation.
package geom

// Kind enumerates the node kinds of the geometry tree. The set is closed:
// per-kind dispatch in the compiler is an exhaustive switch, so adding a
// kind is a compile-time concern, not a runtime fallback.
type Kind int

const (
	KindBitter  Kind = iota // radially cooled Bitter plate stack
	KindBitters             // group of Bitter magnets
	KindSupra               // superconducting coil
	KindSupras              // group of Supra magnets
	KindHelix               // polyhelix conductor
	KindInsert              // helices joined by rings
	KindMSite               // magnet site referencing sibling magnets
	KindRing                // junction ring between two helices
	KindScreen              // cylindrical screen shell
	KindLead                // current lead feeding an assembly
)

func (k Kind) String() string {
	switch k {
	case KindBitter:
		return "bitter"
	case KindBitters:
		return "bitters"
	case KindSupra:
		return "supra"
	case KindSupras:
		return "supras"
	case KindHelix:
		return "helix"
	case KindInsert:
		return "insert"
	case KindMSite:
		return "msite"
	case KindRing:
		return "ring"
	case KindScreen:
		return "screen"
	case KindLead:
		return "lead"
	default:
		return "unknown"
	}
}

// Node is one element of the geometry tree. Children are owned exclusively
// by their parent; MSite nodes reference magnets they do not own, by name
// (see MSiteData).
type Node struct {
	Name     string
	Kind     Kind
	Children []*Node
	Data     NodeData
}

// NodeData is the interface for kind-specific node payloads.
type NodeData interface {
	nodeData() // marker method restricting implementations to this package
}

// Child returns the child with the given name, or nil.
func (n *Node) Child(name string) *Node {
	for _, c := range n.Children {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// Walk visits n and its descendants depth-first, children in order.
func (n *Node) Walk(visit func(*Node)) {
	visit(n)
	for _, c := range n.Children {
		c.Walk(visit)
	}
}

// BoundingBox returns the radial and axial extent [rmin rmax], [zmin zmax]
// covered by the node and its children. MSite nodes report a zero box;
// their extent is only known once references are resolved.
func (n *Node) BoundingBox() (r, z [2]float64) {
	first := true
	n.Walk(func(c *Node) {
		cr, cz, ok := extentOf(c)
		if !ok {
			return
		}
		if first {
			r, z = cr, cz
			first = false
			return
		}
		if cr[0] < r[0] {
			r[0] = cr[0]
		}
		if cr[1] > r[1] {
			r[1] = cr[1]
		}
		if cz[0] < z[0] {
			z[0] = cz[0]
		}
		if cz[1] > z[1] {
			z[1] = cz[1]
		}
	})
	return r, z
}

// extentOf returns the r-z extent of a single node, ignoring children.
func extentOf(n *Node) (r, z [2]float64, ok bool) {
	switch d := n.Data.(type) {
	case BitterData:
		return d.R, d.Z, true
	case SupraData:
		return d.R, d.Z, true
	case HelixData:
		return d.R, d.Z, true
	case RingData:
		return d.R, d.Z, true
	case ScreenData:
		return d.R, d.Z, true
	default:
		return r, z, false
	}
}
