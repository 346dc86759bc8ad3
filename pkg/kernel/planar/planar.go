// Package planar implements the kernel.Session interface for axisymmetric
// geometry in the r-z plane. Surfaces are unions of axis-aligned cells,
// which makes boolean fuse/cut/fragment exact and keeps full input-to-output
// tag ancestry. It is the default backend; the gmsh backend (build tag
// "gmsh") binds the same interface to the external kernel.
package planar

import (
	"fmt"
	"math"
	"sort"

	"github.com/magnettools/magnetmesh/pkg/kernel"
)

// coordTol is the coordinate merge tolerance for breakpoints and node
// deduplication.
const coordTol = 1e-9

// sliverTol is the minimum area a boolean output may have before the
// operation is reported as degenerate.
const sliverTol = 1e-12

// Compile-time interface check.
var _ kernel.Session = (*Session)(nil)

// entity is the backing record for a kernel entity.
type entity struct {
	dim   kernel.Dim
	alive bool
	lc    float64 // target mesh size, 0 = session default

	// dim 0
	px, py float64

	// dim 1: axis-aligned segment
	x0, y0, x1, y1 float64

	// dim 2: non-overlapping axis-aligned cells
	cells []kernel.Box
}

// Session is a planar kernel session. It is not safe for concurrent use;
// one compilation owns it for its whole duration.
type Session struct {
	name      string
	entities  map[kernel.Entity]*entity
	order     []kernel.Entity
	nextTag   map[kernel.Dim]kernel.Tag
	groups    []kernel.PhysicalGroup
	physTags  []kernel.Tag // parallel to groups
	nextPhys  kernel.Tag
	defaultLC float64
	derived   map[edgeSig]kernel.Entity // materialized surface boundary curves
	closed    bool
	poisoned  bool
}

// Open acquires a fresh session. The returned session must be released
// with Close on every exit path.
func Open(name string) *Session {
	return &Session{
		name:      name,
		entities:  make(map[kernel.Entity]*entity),
		nextTag:   make(map[kernel.Dim]kernel.Tag),
		nextPhys:  1,
		defaultLC: 1.0,
	}
}

// SetDefaultMeshSize sets the characteristic length used for entities
// without an explicit size.
func (s *Session) SetDefaultMeshSize(lc float64) {
	if lc > 0 {
		s.defaultLC = lc
	}
}

// Close releases the session. Further operations fail with
// kernel.ErrSessionClosed.
func (s *Session) Close() error {
	s.closed = true
	return nil
}

func (s *Session) check() error {
	if s.closed {
		return kernel.ErrSessionClosed
	}
	if s.poisoned {
		return kernel.ErrSessionPoisoned
	}
	return nil
}

// fail poisons the session and wraps the cause in an OperationError.
// Any kernel-reported failure is fatal for the current compilation; the
// session must be reopened before reuse.
func (s *Session) fail(op string, err error) error {
	s.poisoned = true
	return &kernel.OperationError{Op: op, Err: err}
}

func (s *Session) newEntity(dim kernel.Dim, e *entity) kernel.Entity {
	s.nextTag[dim]++
	ent := kernel.Entity{Dim: dim, Tag: s.nextTag[dim]}
	e.dim = dim
	e.alive = true
	s.entities[ent] = e
	s.order = append(s.order, ent)
	return ent
}

func (s *Session) lookup(e kernel.Entity) (*entity, error) {
	rec, ok := s.entities[e]
	if !ok || !rec.alive {
		return nil, fmt.Errorf("planar: no such entity %v", e)
	}
	return rec, nil
}

// AddPoint creates a point entity.
func (s *Session) AddPoint(x, y float64) (kernel.Tag, error) {
	if err := s.check(); err != nil {
		return 0, err
	}
	ent := s.newEntity(kernel.DimPoint, &entity{px: x, py: y})
	return ent.Tag, nil
}

// AddLine creates an axis-aligned curve between two existing points.
// The planar kernel only supports vertical and horizontal segments.
func (s *Session) AddLine(a, b kernel.Tag) (kernel.Tag, error) {
	if err := s.check(); err != nil {
		return 0, err
	}
	pa, err := s.lookup(kernel.Entity{Dim: kernel.DimPoint, Tag: a})
	if err != nil {
		return 0, s.fail("addLine", err)
	}
	pb, err := s.lookup(kernel.Entity{Dim: kernel.DimPoint, Tag: b})
	if err != nil {
		return 0, s.fail("addLine", err)
	}
	if !almostEq(pa.px, pb.px) && !almostEq(pa.py, pb.py) {
		return 0, s.fail("addLine", fmt.Errorf("segment (%g,%g)-(%g,%g) is not axis-aligned",
			pa.px, pa.py, pb.px, pb.py))
	}
	if almostEq(pa.px, pb.px) && almostEq(pa.py, pb.py) {
		return 0, s.fail("addLine", fmt.Errorf("zero-length segment at (%g,%g)", pa.px, pa.py))
	}
	seg := &entity{
		x0: math.Min(pa.px, pb.px), y0: math.Min(pa.py, pb.py),
		x1: math.Max(pa.px, pb.px), y1: math.Max(pa.py, pb.py),
	}
	ent := s.newEntity(kernel.DimCurve, seg)
	return ent.Tag, nil
}

// AddRectangle creates a rectangular surface with corner (x, y) and
// extents (dx, dy).
func (s *Session) AddRectangle(x, y, dx, dy float64) (kernel.Tag, error) {
	if err := s.check(); err != nil {
		return 0, err
	}
	if dx <= 0 || dy <= 0 {
		return 0, s.fail("addRectangle",
			fmt.Errorf("degenerate rectangle dx=%g dy=%g", dx, dy))
	}
	ent := s.newEntity(kernel.DimSurface, &entity{
		cells: []kernel.Box{{XMin: x, YMin: y, XMax: x + dx, YMax: y + dy}},
	})
	return ent.Tag, nil
}

// BoundingBoxOf returns the axis-aligned bounding box of an entity.
func (s *Session) BoundingBoxOf(e kernel.Entity) (kernel.Box, error) {
	if err := s.check(); err != nil {
		return kernel.Box{}, err
	}
	rec, err := s.lookup(e)
	if err != nil {
		return kernel.Box{}, err
	}
	switch rec.dim {
	case kernel.DimPoint:
		return kernel.Box{XMin: rec.px, YMin: rec.py, XMax: rec.px, YMax: rec.py}, nil
	case kernel.DimCurve:
		return kernel.Box{XMin: rec.x0, YMin: rec.y0, XMax: rec.x1, YMax: rec.y1}, nil
	default:
		bb := rec.cells[0]
		for _, c := range rec.cells[1:] {
			bb.XMin = math.Min(bb.XMin, c.XMin)
			bb.YMin = math.Min(bb.YMin, c.YMin)
			bb.XMax = math.Max(bb.XMax, c.XMax)
			bb.YMax = math.Max(bb.YMax, c.YMax)
		}
		return bb, nil
	}
}

// Mass returns the area of a surface entity or the length of a curve.
func (s *Session) Mass(e kernel.Entity) (float64, error) {
	if err := s.check(); err != nil {
		return 0, err
	}
	rec, err := s.lookup(e)
	if err != nil {
		return 0, err
	}
	switch rec.dim {
	case kernel.DimCurve:
		return (rec.x1 - rec.x0) + (rec.y1 - rec.y0), nil
	case kernel.DimSurface:
		var a float64
		for _, c := range rec.cells {
			a += (c.XMax - c.XMin) * (c.YMax - c.YMin)
		}
		return a, nil
	default:
		return 0, nil
	}
}

// CenterOfMass returns the area-weighted centroid of a surface, the
// midpoint of a curve, or the point itself.
func (s *Session) CenterOfMass(e kernel.Entity) (float64, float64, error) {
	if err := s.check(); err != nil {
		return 0, 0, err
	}
	rec, err := s.lookup(e)
	if err != nil {
		return 0, 0, err
	}
	switch rec.dim {
	case kernel.DimPoint:
		return rec.px, rec.py, nil
	case kernel.DimCurve:
		return (rec.x0 + rec.x1) / 2, (rec.y0 + rec.y1) / 2, nil
	default:
		var a, mx, my float64
		for _, c := range rec.cells {
			ca := (c.XMax - c.XMin) * (c.YMax - c.YMin)
			cx, cy := c.Center()
			a += ca
			mx += ca * cx
			my += ca * cy
		}
		if a == 0 {
			return 0, 0, fmt.Errorf("planar: entity %v has zero area", e)
		}
		return mx / a, my / a, nil
	}
}

// EntitiesInBox returns all alive entities of the given dimension whose
// bounding box lies entirely inside b, in creation order.
func (s *Session) EntitiesInBox(b kernel.Box, dim kernel.Dim) ([]kernel.Entity, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	if dim == kernel.DimCurve {
		// Rectangle edges are implicit in the cell representation;
		// materialize them so boundary queries behave like the
		// external kernel's.
		s.ensureBoundaryCurves()
	}
	var out []kernel.Entity
	for _, ent := range s.order {
		rec := s.entities[ent]
		if !rec.alive || rec.dim != dim {
			continue
		}
		bb, err := s.BoundingBoxOf(ent)
		if err != nil {
			return nil, err
		}
		if b.Contains(bb) {
			out = append(out, ent)
		}
	}
	return out, nil
}

// AddPhysicalGroup registers a named group over the given tags. Calling it
// again with an existing name replaces the group's tags, as reimported
// models rebuild groups from scratch.
func (s *Session) AddPhysicalGroup(dim kernel.Dim, tags []kernel.Tag, name string) (kernel.Tag, error) {
	if err := s.check(); err != nil {
		return 0, err
	}
	for _, t := range tags {
		if _, err := s.lookup(kernel.Entity{Dim: dim, Tag: t}); err != nil {
			return 0, s.fail("addPhysicalGroup", err)
		}
	}
	for i := range s.groups {
		if s.groups[i].Name == name && s.groups[i].Dim == dim {
			s.groups[i].Tags = append([]kernel.Tag(nil), tags...)
			return s.physTags[i], nil
		}
	}
	phys := s.nextPhys
	s.nextPhys++
	s.physTags = append(s.physTags, phys)
	s.groups = append(s.groups, kernel.PhysicalGroup{
		Name: name,
		Dim:  dim,
		Tags: append([]kernel.Tag(nil), tags...),
	})
	return phys, nil
}

// PhysicalGroups returns the registered groups in registration order.
func (s *Session) PhysicalGroups() []kernel.PhysicalGroup {
	out := make([]kernel.PhysicalGroup, len(s.groups))
	copy(out, s.groups)
	return out
}

// SetMeshSize assigns a target element size to an entity.
func (s *Session) SetMeshSize(e kernel.Entity, lc float64) error {
	if err := s.check(); err != nil {
		return err
	}
	rec, err := s.lookup(e)
	if err != nil {
		return err
	}
	if lc <= 0 {
		return s.fail("setMeshSize", fmt.Errorf("non-positive size %g for %v", lc, e))
	}
	rec.lc = lc
	return nil
}

func almostEq(a, b float64) bool {
	return math.Abs(a-b) <= coordTol
}

// dedupSorted sorts values and merges entries closer than coordTol.
func dedupSorted(vals []float64) []float64 {
	sort.Float64s(vals)
	out := vals[:0]
	for _, v := range vals {
		if len(out) == 0 || v-out[len(out)-1] > coordTol {
			out = append(out, v)
		}
	}
	return out
}
