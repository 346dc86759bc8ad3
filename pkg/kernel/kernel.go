// Package kernel defines the abstract geometry kernel interface.
// Implementations (planar, gmsh) provide primitive construction, boolean
// operations with traceable tag ancestry, and mesh generation behind this
// interface. The kernel abstraction allows swapping backends without
// changing the rest of the system.
package kernel

import (
	"errors"
	"fmt"
)

// Dim is the topological dimension of a kernel entity.
type Dim int

const (
	DimPoint   Dim = 0
	DimCurve   Dim = 1
	DimSurface Dim = 2
	DimVolume  Dim = 3
)

// Tag is a kernel-assigned entity identifier. Tags are unique per dimension
// within one session and are not stable across sessions or across file
// reimport.
type Tag int

// Entity identifies a kernel entity by dimension and tag.
type Entity struct {
	Dim Dim
	Tag Tag
}

func (e Entity) String() string {
	return fmt.Sprintf("(%d,%d)", e.Dim, e.Tag)
}

// Box is an axis-aligned bounding region in the r-z plane.
type Box struct {
	XMin, YMin float64
	XMax, YMax float64
}

// Contains reports whether other lies entirely inside b.
func (b Box) Contains(other Box) bool {
	return other.XMin >= b.XMin && other.XMax <= b.XMax &&
		other.YMin >= b.YMin && other.YMax <= b.YMax
}

// Inflate returns b grown by eps on every side.
func (b Box) Inflate(eps float64) Box {
	return Box{b.XMin - eps, b.YMin - eps, b.XMax + eps, b.YMax + eps}
}

// Center returns the box midpoint.
func (b Box) Center() (x, y float64) {
	return (b.XMin + b.XMax) / 2, (b.YMin + b.YMax) / 2
}

// Session is a single, non-reentrant kernel context. A session is acquired
// once per pipeline run and must be released via Close on all exit paths.
// After a fatal operation error the session is poisoned: further operations
// fail with ErrSessionPoisoned and the caller must open a fresh session.
// Sessions must never be shared between concurrent compilations.
type Session interface {
	// Construction primitives.
	AddPoint(x, y float64) (Tag, error)
	AddLine(a, b Tag) (Tag, error)
	AddRectangle(x, y, dx, dy float64) (Tag, error)

	// Boolean operations. Each returns the output entities together with
	// the ancestry map tracing every input entity to the outputs derived
	// from it.
	Fuse(objects, tools []Entity) ([]Entity, *Ancestry, error)
	Cut(objects, tools []Entity) ([]Entity, *Ancestry, error)
	Fragment(objects, tools []Entity) ([]Entity, *Ancestry, error)

	// Queries.
	BoundingBoxOf(e Entity) (Box, error)
	CenterOfMass(e Entity) (x, y float64, err error)
	Mass(e Entity) (float64, error)
	EntitiesInBox(b Box, dim Dim) ([]Entity, error)

	// Group tagging and meshing.
	AddPhysicalGroup(dim Dim, tags []Tag, name string) (Tag, error)
	PhysicalGroups() []PhysicalGroup
	SetMeshSize(e Entity, lc float64) error
	Generate(dim Dim) (*Mesh, error)

	Close() error
}

// GroupCategory partitions physical groups for downstream solvers.
type GroupCategory int

const (
	CatConductor GroupCategory = iota
	CatChannel
	CatIsolant
	CatStructure
	CatBoundary
	CatAir
)

func (c GroupCategory) String() string {
	switch c {
	case CatConductor:
		return "conductor"
	case CatChannel:
		return "channel"
	case CatIsolant:
		return "isolant"
	case CatStructure:
		return "structure"
	case CatBoundary:
		return "boundary"
	case CatAir:
		return "air"
	default:
		return "unknown"
	}
}

// PhysicalGroup is a named, ordered set of entity tags exposed to the
// meshing stage and to downstream solvers.
type PhysicalGroup struct {
	Name     string
	Dim      Dim
	Category GroupCategory
	Tags     []Tag
}

// Ancestry records, for a single boolean operation, which output entities
// derive from each input entity. The kernel guarantees traceable ancestry
// for fuse, cut and fragment.
type Ancestry struct {
	order []Entity
	m     map[Entity][]Entity
}

// NewAncestry returns an empty ancestry map.
func NewAncestry() *Ancestry {
	return &Ancestry{m: make(map[Entity][]Entity)}
}

// Record appends outputs derived from the given input entity.
func (a *Ancestry) Record(in Entity, outs ...Entity) {
	if _, seen := a.m[in]; !seen {
		a.order = append(a.order, in)
	}
	a.m[in] = append(a.m[in], outs...)
}

// Outputs returns the output entities derived from in, in recording order.
func (a *Ancestry) Outputs(in Entity) []Entity {
	return a.m[in]
}

// Lookup returns the outputs derived from in and whether in participated
// in the operation at all. An input that participated but produced no
// outputs (fully consumed) returns (nil, true).
func (a *Ancestry) Lookup(in Entity) ([]Entity, bool) {
	outs, ok := a.m[in]
	return outs, ok
}

// Inputs returns every recorded input entity in recording order.
func (a *Ancestry) Inputs() []Entity {
	return a.order
}

// Sentinel errors for session lifecycle misuse.
var (
	ErrSessionClosed   = errors.New("kernel: session closed")
	ErrSessionPoisoned = errors.New("kernel: session poisoned by earlier failure")
)

// OperationError reports a failed kernel operation (degenerate boolean,
// meshing non-convergence). It carries the semantic name or path of the
// offending solid when the caller knows it. Operation errors are fatal for
// the current compilation; there is no automatic retry.
type OperationError struct {
	Op   string // kernel operation, e.g. "fragment", "generate"
	Name string // semantic name/path of the offending solid, if known
	Err  error
}

func (e *OperationError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("kernel: %s failed for %q: %v", e.Op, e.Name, e.Err)
	}
	return fmt.Sprintf("kernel: %s failed: %v", e.Op, e.Err)
}

func (e *OperationError) Unwrap() error { return e.Err }
