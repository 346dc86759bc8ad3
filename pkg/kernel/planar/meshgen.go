package planar

import (
	"fmt"
	"math"

	"github.com/magnettools/magnetmesh/pkg/kernel"
)

// nodeKey identifies a mesh node by rounded grid coordinates.
type nodeKey struct {
	x, y int64
}

func keyOf(x, y float64) nodeKey {
	const scale = 1e9
	return nodeKey{int64(math.Round(x * scale)), int64(math.Round(y * scale))}
}

// meshBuilder accumulates deduplicated nodes and elements.
type meshBuilder struct {
	mesh  *kernel.Mesh
	index map[nodeKey]int32
	// vertical and horizontal sub-edges produced by surface meshing,
	// kept so boundary groups can pick up conforming line elements.
	vEdges []meshEdge
	hEdges []meshEdge
}

// meshEdge is a sub-quad edge lying on a grid line.
type meshEdge struct {
	fixed  float64 // x for vertical edges, y for horizontal
	lo, hi float64 // extent along the edge
	n0, n1 int32
}

func newMeshBuilder(name string) *meshBuilder {
	return &meshBuilder{
		mesh:  &kernel.Mesh{Name: name},
		index: make(map[nodeKey]int32),
	}
}

func (b *meshBuilder) node(x, y float64) int32 {
	k := keyOf(x, y)
	if idx, ok := b.index[k]; ok {
		return idx
	}
	idx := int32(len(b.mesh.Nodes) / 3)
	b.mesh.Nodes = append(b.mesh.Nodes, x, y, 0)
	b.index[k] = idx
	return idx
}

// Generate meshes every alive surface and emits elements for registered
// physical groups. Only 2D generation is supported by the planar backend;
// 3D export goes through the sdfx revolution backend.
func (s *Session) Generate(dim kernel.Dim) (*kernel.Mesh, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	if dim != kernel.DimSurface {
		return nil, s.fail("generate", fmt.Errorf("unsupported mesh dimension %d", dim))
	}

	b := newMeshBuilder(s.name)

	// Physical tag per surface entity: the first group containing it wins.
	physOf := make(map[kernel.Tag]int32)
	for gi, g := range s.groups {
		if g.Dim != kernel.DimSurface {
			continue
		}
		for _, t := range g.Tags {
			if _, ok := physOf[t]; !ok {
				physOf[t] = int32(s.physTags[gi])
			}
		}
	}

	for _, ent := range s.order {
		rec := s.entities[ent]
		if !rec.alive || rec.dim != kernel.DimSurface {
			continue
		}
		lc := rec.lc
		if lc <= 0 {
			lc = s.defaultLC
		}
		phys := physOf[ent.Tag]
		for _, c := range rec.cells {
			b.meshCell(c, lc, phys)
		}
	}

	// Boundary groups: pick up the surface sub-edges lying on each curve.
	for gi, g := range s.groups {
		if g.Dim != kernel.DimCurve {
			continue
		}
		phys := int32(s.physTags[gi])
		for _, t := range g.Tags {
			rec, err := s.lookup(kernel.Entity{Dim: kernel.DimCurve, Tag: t})
			if err != nil {
				return nil, s.fail("generate", err)
			}
			n := b.emitBoundary(rec, phys)
			if n == 0 {
				return nil, s.fail("generate",
					fmt.Errorf("boundary group %q curve %d has no conforming edges", g.Name, t))
			}
		}
	}

	for gi, g := range s.groups {
		b.mesh.Groups = append(b.mesh.Groups, kernel.MeshGroup{
			Name: g.Name,
			Dim:  g.Dim,
			Phys: int32(s.physTags[gi]),
		})
	}

	if b.mesh.IsEmpty() {
		return nil, s.fail("generate", fmt.Errorf("no surfaces to mesh"))
	}
	return b.mesh, nil
}

// meshCell subdivides one cell into quads no larger than lc and emits two
// triangles per quad.
func (b *meshBuilder) meshCell(c kernel.Box, lc float64, phys int32) {
	dx, dy := c.XMax-c.XMin, c.YMax-c.YMin
	nx := int(math.Ceil(dx / lc))
	ny := int(math.Ceil(dy / lc))
	if nx < 1 {
		nx = 1
	}
	if ny < 1 {
		ny = 1
	}
	xAt := func(i int) float64 { return c.XMin + dx*float64(i)/float64(nx) }
	yAt := func(j int) float64 { return c.YMin + dy*float64(j)/float64(ny) }

	for j := 0; j < ny; j++ {
		for i := 0; i < nx; i++ {
			x0, x1 := xAt(i), xAt(i+1)
			y0, y1 := yAt(j), yAt(j+1)
			n00 := b.node(x0, y0)
			n10 := b.node(x1, y0)
			n11 := b.node(x1, y1)
			n01 := b.node(x0, y1)
			b.mesh.Elements = append(b.mesh.Elements,
				kernel.Element{Type: kernel.ElemTriangle, Phys: phys, Nodes: []int32{n00, n10, n11}},
				kernel.Element{Type: kernel.ElemTriangle, Phys: phys, Nodes: []int32{n00, n11, n01}},
			)
			// Record cell-boundary sub-edges for boundary group emission.
			if i == 0 {
				b.vEdges = append(b.vEdges, meshEdge{fixed: x0, lo: y0, hi: y1, n0: n00, n1: n01})
			}
			if i == nx-1 {
				b.vEdges = append(b.vEdges, meshEdge{fixed: x1, lo: y0, hi: y1, n0: n10, n1: n11})
			}
			if j == 0 {
				b.hEdges = append(b.hEdges, meshEdge{fixed: y0, lo: x0, hi: x1, n0: n00, n1: n10})
			}
			if j == ny-1 {
				b.hEdges = append(b.hEdges, meshEdge{fixed: y1, lo: x0, hi: x1, n0: n01, n1: n11})
			}
		}
	}
}

// emitBoundary emits line elements for every recorded sub-edge lying on
// the given curve. Edges shared by two cells are emitted once.
func (b *meshBuilder) emitBoundary(rec *entity, phys int32) int {
	type pair struct{ a, b int32 }
	seen := make(map[pair]bool)
	count := 0
	emit := func(e meshEdge) {
		p := pair{e.n0, e.n1}
		if e.n0 > e.n1 {
			p = pair{e.n1, e.n0}
		}
		if seen[p] {
			return
		}
		seen[p] = true
		b.mesh.Elements = append(b.mesh.Elements, kernel.Element{
			Type: kernel.ElemLine, Phys: phys, Nodes: []int32{e.n0, e.n1},
		})
		count++
	}

	if almostEq(rec.x0, rec.x1) {
		for _, e := range b.vEdges {
			if almostEq(e.fixed, rec.x0) && e.lo >= rec.y0-coordTol && e.hi <= rec.y1+coordTol {
				emit(e)
			}
		}
	} else {
		for _, e := range b.hEdges {
			if almostEq(e.fixed, rec.y0) && e.lo >= rec.x0-coordTol && e.hi <= rec.x1+coordTol {
				emit(e)
			}
		}
	}
	return count
}
