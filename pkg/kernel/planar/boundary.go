package planar

import (
	"math"
	"sort"

	"github.com/magnettools/magnetmesh/pkg/kernel"
)

// edgeSig identifies a boundary segment by orientation and rounded coords.
type edgeSig struct {
	vertical bool
	fixed    int64
	lo, hi   int64
}

func sigOf(vertical bool, fixed, lo, hi float64) edgeSig {
	const scale = 1e9
	r := func(v float64) int64 { return int64(math.Round(v * scale)) }
	return edgeSig{vertical, r(fixed), r(lo), r(hi)}
}

func sortedKeys[V any](m map[int64]V) []int64 {
	keys := make([]int64, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// ensureBoundaryCurves materializes the outer boundary edges of every
// alive surface as curve entities, so bounding-box queries can locate
// them the way the external kernel exposes rectangle edges. Curves are
// created once per distinct segment and reused on later calls.
func (s *Session) ensureBoundaryCurves() {
	if s.derived == nil {
		s.derived = make(map[edgeSig]kernel.Entity)
	}

	type interval struct{ lo, hi float64 }

	for _, ent := range append([]kernel.Entity(nil), s.order...) {
		rec := s.entities[ent]
		if !rec.alive || rec.dim != kernel.DimSurface {
			continue
		}
		// Count cell edges; an edge shared by two cells of the same
		// surface is internal. Cells of one entity come from a single
		// overlay grid, so shared edges coincide exactly.
		counts := make(map[edgeSig]int)
		for _, c := range rec.cells {
			counts[sigOf(true, c.XMin, c.YMin, c.YMax)]++
			counts[sigOf(true, c.XMax, c.YMin, c.YMax)]++
			counts[sigOf(false, c.YMin, c.XMin, c.XMax)]++
			counts[sigOf(false, c.YMax, c.XMin, c.XMax)]++
		}
		// Collect boundary sub-edges grouped by line, then merge
		// contiguous runs into maximal segments.
		vert := make(map[int64][]interval)
		horiz := make(map[int64][]interval)
		for _, c := range rec.cells {
			if counts[sigOf(true, c.XMin, c.YMin, c.YMax)] == 1 {
				k := sigOf(true, c.XMin, 0, 0).fixed
				vert[k] = append(vert[k], interval{c.YMin, c.YMax})
			}
			if counts[sigOf(true, c.XMax, c.YMin, c.YMax)] == 1 {
				k := sigOf(true, c.XMax, 0, 0).fixed
				vert[k] = append(vert[k], interval{c.YMin, c.YMax})
			}
			if counts[sigOf(false, c.YMin, c.XMin, c.XMax)] == 1 {
				k := sigOf(false, c.YMin, 0, 0).fixed
				horiz[k] = append(horiz[k], interval{c.XMin, c.XMax})
			}
			if counts[sigOf(false, c.YMax, c.XMin, c.XMax)] == 1 {
				k := sigOf(false, c.YMax, 0, 0).fixed
				horiz[k] = append(horiz[k], interval{c.XMin, c.XMax})
			}
		}

		merge := func(iv []interval) []interval {
			sort.Slice(iv, func(a, b int) bool { return iv[a].lo < iv[b].lo })
			var out []interval
			for _, in := range iv {
				if len(out) > 0 && in.lo <= out[len(out)-1].hi+coordTol {
					if in.hi > out[len(out)-1].hi {
						out[len(out)-1].hi = in.hi
					}
					continue
				}
				out = append(out, in)
			}
			return out
		}

		// Sorted iteration keeps entity tags deterministic run to run.
		const scale = 1e9
		for _, fixed := range sortedKeys(vert) {
			x := float64(fixed) / scale
			for _, seg := range merge(vert[fixed]) {
				sig := sigOf(true, x, seg.lo, seg.hi)
				if _, ok := s.derived[sig]; ok {
					continue
				}
				e := s.newEntity(kernel.DimCurve, &entity{x0: x, y0: seg.lo, x1: x, y1: seg.hi})
				s.derived[sig] = e
			}
		}
		for _, fixed := range sortedKeys(horiz) {
			y := float64(fixed) / scale
			for _, seg := range merge(horiz[fixed]) {
				sig := sigOf(false, y, seg.lo, seg.hi)
				if _, ok := s.derived[sig]; ok {
					continue
				}
				e := s.newEntity(kernel.DimCurve, &entity{x0: seg.lo, y0: y, x1: seg.hi, y1: y})
				s.derived[sig] = e
			}
		}
	}
}
