package planar

import (
	"fmt"

	"github.com/magnettools/magnetmesh/pkg/kernel"
)

// opKind selects the boolean semantics shared by the grid overlay below.
type opKind int

const (
	opFuse opKind = iota
	opCut
	opFragment
)

// Fuse returns the union of all object and tool surfaces. Connected
// regions become one output entity each.
func (s *Session) Fuse(objects, tools []kernel.Entity) ([]kernel.Entity, *kernel.Ancestry, error) {
	return s.boolean("fuse", opFuse, objects, tools)
}

// Cut subtracts the tool surfaces from the object surfaces.
func (s *Session) Cut(objects, tools []kernel.Entity) ([]kernel.Entity, *kernel.Ancestry, error) {
	return s.boolean("cut", opCut, objects, tools)
}

// Fragment makes all inputs conformal: overlapping regions are split into
// non-overlapping pieces and tool curves crack the surfaces they cross.
// Ancestry traces every input to the pieces derived from it.
func (s *Session) Fragment(objects, tools []kernel.Entity) ([]kernel.Entity, *kernel.Ancestry, error) {
	return s.boolean("fragment", opFragment, objects, tools)
}

// boolean implements fuse/cut/fragment on a shared breakpoint grid.
// Every input surface is decomposed on the common grid; grid cells are
// then grouped into connected components of equal coverage signature,
// with tool curves acting as connectivity cracks.
func (s *Session) boolean(op string, kind opKind, objects, tools []kernel.Entity) ([]kernel.Entity, *kernel.Ancestry, error) {
	if err := s.check(); err != nil {
		return nil, nil, err
	}
	if len(objects) == 0 {
		return nil, nil, s.fail(op, fmt.Errorf("no object entities"))
	}

	// Partition inputs: surfaces participate in the overlay, curves crack it.
	var surfs []kernel.Entity  // objects first, then dim-2 tools
	var curves []kernel.Entity // dim-1 tools
	nObjects := 0
	for _, e := range objects {
		if e.Dim != kernel.DimSurface {
			return nil, nil, s.fail(op, fmt.Errorf("object %v is not a surface", e))
		}
		surfs = append(surfs, e)
		nObjects++
	}
	for _, e := range tools {
		switch e.Dim {
		case kernel.DimSurface:
			surfs = append(surfs, e)
		case kernel.DimCurve:
			curves = append(curves, e)
		default:
			return nil, nil, s.fail(op, fmt.Errorf("tool %v has unsupported dimension", e))
		}
	}

	surfRecs := make([]*entity, len(surfs))
	for i, e := range surfs {
		rec, err := s.lookup(e)
		if err != nil {
			return nil, nil, s.fail(op, err)
		}
		surfRecs[i] = rec
	}
	curveRecs := make([]*entity, len(curves))
	for i, e := range curves {
		rec, err := s.lookup(e)
		if err != nil {
			return nil, nil, s.fail(op, err)
		}
		curveRecs[i] = rec
	}

	// Common breakpoint grid.
	var xs, ys []float64
	for _, rec := range surfRecs {
		for _, c := range rec.cells {
			xs = append(xs, c.XMin, c.XMax)
			ys = append(ys, c.YMin, c.YMax)
		}
	}
	for _, rec := range curveRecs {
		xs = append(xs, rec.x0, rec.x1)
		ys = append(ys, rec.y0, rec.y1)
	}
	xs = dedupSorted(xs)
	ys = dedupSorted(ys)
	nx, ny := len(xs)-1, len(ys)-1
	if nx < 1 || ny < 1 {
		return nil, nil, s.fail(op, fmt.Errorf("degenerate input extent"))
	}

	// Coverage: which input surfaces cover each grid cell.
	covers := make([][]int, nx*ny)
	for j := 0; j < ny; j++ {
		cy := (ys[j] + ys[j+1]) / 2
		for i := 0; i < nx; i++ {
			cx := (xs[i] + xs[i+1]) / 2
			var cov []int
			for si, rec := range surfRecs {
				for _, c := range rec.cells {
					if cx > c.XMin && cx < c.XMax && cy > c.YMin && cy < c.YMax {
						cov = append(cov, si)
						break
					}
				}
			}
			covers[j*nx+i] = cov
		}
	}

	// Per-cell membership and union-find signature under the op semantics.
	inResult := make([]bool, nx*ny)
	sig := make([]string, nx*ny)
	for idx, cov := range covers {
		switch kind {
		case opFuse:
			inResult[idx] = len(cov) > 0
			sig[idx] = "u"
		case opCut:
			inObj, inTool := false, false
			for _, si := range cov {
				if si < nObjects {
					inObj = true
				} else {
					inTool = true
				}
			}
			inResult[idx] = inObj && !inTool
			sig[idx] = coverKey(cov, nObjects)
		case opFragment:
			inResult[idx] = len(cov) > 0
			sig[idx] = coverKey(cov, len(surfs))
		}
	}

	// Union-find over grid cells, respecting curve cracks.
	uf := newUnionFind(nx * ny)
	for j := 0; j < ny; j++ {
		for i := 0; i < nx; i++ {
			idx := j*nx + i
			if !inResult[idx] {
				continue
			}
			// Right neighbour across vertical boundary x = xs[i+1].
			if i+1 < nx && inResult[idx+1] && sig[idx] == sig[idx+1] &&
				!verticalCrack(curveRecs, xs[i+1], ys[j], ys[j+1]) {
				uf.union(idx, idx+1)
			}
			// Top neighbour across horizontal boundary y = ys[j+1].
			if j+1 < ny && inResult[idx+nx] && sig[idx] == sig[idx+nx] &&
				!horizontalCrack(curveRecs, ys[j+1], xs[i], xs[i+1]) {
				uf.union(idx, idx+nx)
			}
		}
	}

	// Build one surface entity per component, in row-major first-seen order.
	compEnt := make(map[int]kernel.Entity)
	compCells := make(map[int][]kernel.Box)
	var outOrder []int
	for j := 0; j < ny; j++ {
		for i := 0; i < nx; i++ {
			idx := j*nx + i
			if !inResult[idx] {
				continue
			}
			root := uf.find(idx)
			if _, ok := compCells[root]; !ok {
				outOrder = append(outOrder, root)
			}
			compCells[root] = append(compCells[root], kernel.Box{
				XMin: xs[i], YMin: ys[j], XMax: xs[i+1], YMax: ys[j+1],
			})
		}
	}
	if len(outOrder) == 0 {
		return nil, nil, s.fail(op, fmt.Errorf("empty result"))
	}

	var outputs []kernel.Entity
	for _, root := range outOrder {
		var area float64
		for _, c := range compCells[root] {
			area += (c.XMax - c.XMin) * (c.YMax - c.YMin)
		}
		if area < sliverTol {
			return nil, nil, s.fail(op, fmt.Errorf("degenerate sliver of area %g", area))
		}
		ent := s.newEntity(kernel.DimSurface, &entity{cells: compCells[root]})
		compEnt[root] = ent
		outputs = append(outputs, ent)
	}

	// Ancestry: each input surface maps to the components it contributed
	// at least one grid cell to.
	anc := kernel.NewAncestry()
	for si, in := range surfs {
		seen := make(map[int]bool)
		var derived []kernel.Entity
		for j := 0; j < ny; j++ {
			for i := 0; i < nx; i++ {
				idx := j*nx + i
				if !inResult[idx] || !coverHas(covers[idx], si) {
					continue
				}
				root := uf.find(idx)
				if !seen[root] {
					seen[root] = true
					derived = append(derived, compEnt[root])
				}
			}
		}
		anc.Record(in, derived...)
	}

	// Tool curves are split at grid breakpoints; the pieces embedded in
	// the result region become new curve entities.
	for ci, in := range curves {
		pieces := s.splitCurve(curveRecs[ci], xs, ys, nx, ny, inResult)
		outputs = append(outputs, pieces...)
		anc.Record(in, pieces...)
	}

	// Boolean operations consume their inputs.
	for _, e := range surfs {
		s.entities[e].alive = false
	}
	for _, e := range curves {
		s.entities[e].alive = false
	}

	return outputs, anc, nil
}

// splitCurve cuts an axis-aligned curve at the grid breakpoints and keeps
// maximal runs adjacent to the result region.
func (s *Session) splitCurve(rec *entity, xs, ys []float64, nx, ny int, inResult []bool) []kernel.Entity {
	var pieces []kernel.Entity
	if almostEq(rec.x0, rec.x1) {
		// Vertical segment at x = rec.x0: walk the row intervals.
		bi := boundaryIndex(xs, rec.x0)
		var runStart float64
		inRun := false
		flush := func(end float64) {
			if inRun {
				pieces = append(pieces, s.newEntity(kernel.DimCurve, &entity{
					x0: rec.x0, y0: runStart, x1: rec.x0, y1: end,
				}))
				inRun = false
			}
		}
		for j := 0; j < ny; j++ {
			ylo, yhi := ys[j], ys[j+1]
			if yhi <= rec.y0+coordTol || ylo >= rec.y1-coordTol {
				flush(ylo)
				continue
			}
			adjacent := (bi > 0 && inResult[j*nx+bi-1]) || (bi < nx && bi >= 0 && inResult[j*nx+bi])
			if adjacent {
				if !inRun {
					runStart = ylo
					inRun = true
				}
			} else {
				flush(ylo)
			}
		}
		flush(ys[ny])
	} else {
		// Horizontal segment at y = rec.y0.
		bj := boundaryIndex(ys, rec.y0)
		var runStart float64
		inRun := false
		flush := func(end float64) {
			if inRun {
				pieces = append(pieces, s.newEntity(kernel.DimCurve, &entity{
					x0: runStart, y0: rec.y0, x1: end, y1: rec.y0,
				}))
				inRun = false
			}
		}
		for i := 0; i < nx; i++ {
			xlo, xhi := xs[i], xs[i+1]
			if xhi <= rec.x0+coordTol || xlo >= rec.x1-coordTol {
				flush(xlo)
				continue
			}
			adjacent := (bj > 0 && inResult[(bj-1)*nx+i]) || (bj < ny && bj >= 0 && inResult[bj*nx+i])
			if adjacent {
				if !inRun {
					runStart = xlo
					inRun = true
				}
			} else {
				flush(xlo)
			}
		}
		flush(xs[nx])
	}
	return pieces
}

// boundaryIndex returns i such that vals[i] ≈ v, or -1.
func boundaryIndex(vals []float64, v float64) int {
	for i, x := range vals {
		if almostEq(x, v) {
			return i
		}
	}
	return -1
}

// verticalCrack reports whether any curve is a vertical segment at x
// covering the interval [ylo, yhi].
func verticalCrack(curves []*entity, x, ylo, yhi float64) bool {
	for _, c := range curves {
		if almostEq(c.x0, c.x1) && almostEq(c.x0, x) &&
			c.y0 <= ylo+coordTol && c.y1 >= yhi-coordTol {
			return true
		}
	}
	return false
}

// horizontalCrack reports whether any curve is a horizontal segment at y
// covering the interval [xlo, xhi].
func horizontalCrack(curves []*entity, y, xlo, xhi float64) bool {
	for _, c := range curves {
		if almostEq(c.y0, c.y1) && almostEq(c.y0, y) &&
			c.x0 <= xlo+coordTol && c.x1 >= xhi-coordTol {
			return true
		}
	}
	return false
}

func coverHas(cov []int, si int) bool {
	for _, v := range cov {
		if v == si {
			return true
		}
	}
	return false
}

// coverKey builds a signature string from covering input indices.
// For cut, only object indices below n participate in the signature.
func coverKey(cov []int, n int) string {
	b := make([]byte, 0, len(cov)*3)
	for _, si := range cov {
		if si >= n {
			continue
		}
		b = append(b, byte('a'+si%26), byte('0'+si/26), ',')
	}
	return string(b)
}

// unionFind is a plain array-based disjoint set.
type unionFind struct {
	parent []int
}

func newUnionFind(n int) *unionFind {
	p := make([]int, n)
	for i := range p {
		p[i] = i
	}
	return &unionFind{parent: p}
}

func (u *unionFind) find(i int) int {
	for u.parent[i] != i {
		u.parent[i] = u.parent[u.parent[i]]
		i = u.parent[i]
	}
	return i
}

func (u *unionFind) union(a, b int) {
	ra, rb := u.find(a), u.find(b)
	if ra != rb {
		u.parent[rb] = ra
	}
}
