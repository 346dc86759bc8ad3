// Package transform maps compiled geometry between coordinate layouts:
// sector reduction of a full revolution to its symmetry wedge, and rigid
// rotation of finished meshes.
package transform

import (
	"fmt"

	"github.com/magnettools/magnetmesh/pkg/compile"
	"github.com/magnettools/magnetmesh/pkg/geom"
	"github.com/magnettools/magnetmesh/pkg/kernel"
	"github.com/magnettools/magnetmesh/pkg/kernel/sdfx"
	"github.com/magnettools/magnetmesh/pkg/naming"
)

// Spec describes the target layout of a 3D export. Sectors is the number
// of symmetry sectors: 1 is the full revolution, 2 and 4 are the half and
// quarter wedges. Cells sets the tessellation resolution, 0 for the
// backend default.
type Spec struct {
	Sectors int
	Cells   int
}

// Validate checks the sector count. Only divisors of 360 that map to
// symmetry planes of the machine are accepted.
func (s Spec) Validate() error {
	switch s.Sectors {
	case 1, 2, 4:
		return nil
	default:
		return geom.ValidationError{
			Code:    "INVALID_SECTOR",
			Message: fmt.Sprintf("sector count %d not in {1, 2, 4}", s.Sectors),
		}
	}
}

// Angle returns the revolution angle of one sector in degrees.
func (s Spec) Angle() float64 {
	return 360 / float64(s.Sectors)
}

// Region is one named solid to revolve: its r-z profile and the physical
// tag its elements carry in the output mesh.
type Region struct {
	Name  string
	Boxes []kernel.Box
	Phys  int32
}

// Regions extracts the surface groups of a compilation result in group
// order, numbering physical tags from 1.
func Regions(res *compile.Result) []Region {
	var regions []Region
	phys := int32(0)
	for _, g := range res.Groups {
		if g.Dim != kernel.DimSurface {
			continue
		}
		boxes := res.Profile[naming.SemanticName(g.Name)]
		if len(boxes) == 0 {
			continue
		}
		phys++
		regions = append(regions, Region{Name: g.Name, Boxes: boxes, Phys: phys})
	}
	return regions
}

// Reduce revolves every region by the sector angle and merges the results
// into one mesh. A degenerate profile fails with kernel.OperationError;
// slivers are never silently repaired.
func Reduce(name string, regions []Region, spec Spec) (*kernel.Mesh, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	if len(regions) == 0 {
		return nil, &kernel.OperationError{Op: "reduce", Name: name,
			Err: fmt.Errorf("no regions to revolve")}
	}

	out := &kernel.Mesh{Name: name}
	if spec.Sectors > 1 {
		out.Name = fmt.Sprintf("%s-sector%d", name, spec.Sectors)
	}
	for _, reg := range regions {
		part, err := sdfx.Revolve(reg.Name, reg.Boxes, spec.Angle(), reg.Phys, spec.Cells)
		if err != nil {
			return nil, err
		}
		merge(out, part)
	}
	return out, nil
}

// merge appends the part's nodes, elements and groups, offsetting node
// indices. Parts are tessellated independently and share no nodes.
func merge(dst, src *kernel.Mesh) {
	offset := int32(dst.NodeCount())
	dst.Nodes = append(dst.Nodes, src.Nodes...)
	for _, el := range src.Elements {
		nodes := make([]int32, len(el.Nodes))
		for i, n := range el.Nodes {
			nodes[i] = n + offset
		}
		dst.Elements = append(dst.Elements, kernel.Element{
			Type: el.Type, Phys: el.Phys, Nodes: nodes,
		})
	}
	dst.Groups = append(dst.Groups, src.Groups...)
}
