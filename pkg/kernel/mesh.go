package kernel

// ElementType is the numeric element type code used in MSH files.
type ElementType int32

const (
	ElemLine     ElementType = 1  // 2-node line
	ElemTriangle ElementType = 2  // 3-node triangle
	ElemQuad     ElementType = 3  // 4-node quadrangle
	ElemPoint    ElementType = 15 // 1-node point
)

// NodesPerElement returns the node count for the element type, or 0 if
// the type is not supported.
func (t ElementType) NodesPerElement() int {
	switch t {
	case ElemLine:
		return 2
	case ElemTriangle:
		return 3
	case ElemQuad:
		return 4
	case ElemPoint:
		return 1
	default:
		return 0
	}
}

// Element is a single mesh element. Nodes are 0-based indices into
// Mesh.Nodes; Phys is the physical group tag the element belongs to
// (0 if untagged).
type Element struct {
	Type  ElementType
	Phys  int32
	Nodes []int32
}

// MeshGroup is the mesh-level record of a physical group.
type MeshGroup struct {
	Name string
	Dim  Dim
	Phys int32
}

// Mesh holds node coordinates, element connectivity and physical group
// membership. All coordinates are 3D: axisymmetric meshes live in the
// x-y plane with z = 0.
type Mesh struct {
	Name     string
	Nodes    []float64 // [x0,y0,z0, x1,y1,z1, ...]
	Elements []Element
	Groups   []MeshGroup
}

// NodeCount returns the number of nodes.
func (m *Mesh) NodeCount() int {
	return len(m.Nodes) / 3
}

// ElementCount returns the number of elements.
func (m *Mesh) ElementCount() int {
	return len(m.Elements)
}

// IsEmpty reports whether the mesh has no geometry.
func (m *Mesh) IsEmpty() bool {
	return len(m.Nodes) == 0
}

// GroupByName returns the named group record, or nil.
func (m *Mesh) GroupByName(name string) *MeshGroup {
	for i := range m.Groups {
		if m.Groups[i].Name == name {
			return &m.Groups[i]
		}
	}
	return nil
}

// ElementsInGroup returns the indices of all elements tagged with the
// given physical tag.
func (m *Mesh) ElementsInGroup(phys int32) []int {
	var idx []int
	for i, el := range m.Elements {
		if el.Phys == phys {
			idx = append(idx, i)
		}
	}
	return idx
}

// Clone returns a deep copy of the mesh.
func (m *Mesh) Clone() *Mesh {
	out := &Mesh{
		Name:     m.Name,
		Nodes:    append([]float64(nil), m.Nodes...),
		Elements: make([]Element, len(m.Elements)),
		Groups:   append([]MeshGroup(nil), m.Groups...),
	}
	for i, el := range m.Elements {
		out.Elements[i] = Element{
			Type:  el.Type,
			Phys:  el.Phys,
			Nodes: append([]int32(nil), el.Nodes...),
		}
	}
	return out
}
