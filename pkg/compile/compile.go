// Package compile walks a geometry tree and drives the kernel session:
// per-kind construction, boolean operations with lineage reconciliation,
// boundary group extraction and mesh-size assignment. It is the top-level
// pipeline; the transform and interchange packages are alternate entries
// reusing the same registry and lineage machinery.
package compile

import (
	"fmt"
	"strconv"

	"github.com/magnettools/magnetmesh/pkg/geom"
	"github.com/magnettools/magnetmesh/pkg/kernel"
	"github.com/magnettools/magnetmesh/pkg/naming"
	"github.com/magnettools/magnetmesh/pkg/sizing"
)

// Mode selects the target geometry of a compilation.
type Mode int

const (
	ModeAxi    Mode = iota // 2D axisymmetric r-z cross-section
	ModeSector             // 3D sector of 360/k degrees
	ModeFull3D             // full 3D revolution
)

// AirOptions enables an enclosing air region: the bounding box of the
// assembly scaled by the radial and axial expansion factors.
type AirOptions struct {
	RadialFactor float64
	AxialFactor  float64
}

// Options configures one compilation.
type Options struct {
	Mode    Mode
	Sectors int                   // ModeSector: 2 or 4
	Air     *AirOptions           // nil = no air region
	Magnets map[string]*geom.Node // resolves MSite references
}

// UnsupportedKindError reports a node kind outside the compilable set for
// the requested mode. Fatal for that node.
type UnsupportedKindError struct {
	Kind geom.Kind
	Path string
}

func (e *UnsupportedKindError) Error() string {
	return fmt.Sprintf("compile: unsupported geometry kind %s at %q", e.Kind, e.Path)
}

// Result is the output of a compilation: the categorized physical groups
// plus the populated registry and lineage, returned so sizing and group
// tagging can reuse them without recomputation.
type Result struct {
	Mode     Mode
	Sectors  int
	Groups   []kernel.PhysicalGroup
	Registry *naming.Registry
	Lineage  *naming.Lineage
	Warnings []string

	// Profile holds, per surface-bearing name, the r-z bounding boxes of
	// its pieces; the revolution pipeline consumes it for 3D export.
	Profile map[naming.SemanticName][]kernel.Box
}

// GroupsByCategory returns the groups of one category, in group order.
func (r *Result) GroupsByCategory(cat kernel.GroupCategory) []kernel.PhysicalGroup {
	var out []kernel.PhysicalGroup
	for _, g := range r.Groups {
		if g.Category == cat {
			out = append(out, g)
		}
	}
	return out
}

// compiler carries the per-compilation state. It owns the session
// exclusively for the duration of the call.
type compiler struct {
	sess     kernel.Session
	reg      *naming.Registry
	lin      *naming.Lineage
	opts     Options
	category map[naming.SemanticName]kernel.GroupCategory
	alive    map[kernel.Entity]bool
	airBox   *kernel.Box
	warnings []string
}

// Compile builds the geometry for the tree rooted at root. The session
// must be freshly opened; it is left open for the subsequent meshing
// stage and must be closed by the caller on every exit path.
func Compile(sess kernel.Session, root *geom.Node, opts Options) (*Result, error) {
	if errs := geom.Validate(root, opts.Magnets); len(errs) > 0 {
		return nil, errs[0]
	}
	switch opts.Mode {
	case ModeAxi, ModeFull3D:
	case ModeSector:
		if opts.Sectors != 2 && opts.Sectors != 4 {
			return nil, geom.ValidationError{
				Code:    "INVALID_SECTOR",
				Message: fmt.Sprintf("sector count %d not in {2, 4}", opts.Sectors),
				Path:    root.Name,
			}
		}
	default:
		return nil, geom.ValidationError{
			Code:    "INVALID_MODE",
			Message: fmt.Sprintf("unknown mode %d", opts.Mode),
		}
	}

	c := &compiler{
		sess:     sess,
		reg:      naming.NewRegistry(),
		lin:      naming.NewLineage(),
		opts:     opts,
		category: make(map[naming.SemanticName]kernel.GroupCategory),
		alive:    make(map[kernel.Entity]bool),
	}

	solids, err := c.compileNode(root, "")
	if err != nil {
		return nil, err
	}

	if opts.Air != nil {
		if err := c.buildAir(solids); err != nil {
			return nil, err
		}
	}

	if err := c.buildBoundaries(root, ""); err != nil {
		return nil, err
	}
	if err := c.airBoundaries(); err != nil {
		return nil, err
	}

	// Reachability invariant: every surviving construction tag must be
	// reachable from a name unless explicitly discarded.
	var all []kernel.Entity
	for ent := range c.alive {
		all = append(all, ent)
	}
	if orphans := c.lin.Orphans(all); len(orphans) > 0 {
		return nil, fmt.Errorf("compile: %d entities unreachable from any name (first: %v)",
			len(orphans), orphans[0])
	}

	groups, profile, err := c.buildGroups()
	if err != nil {
		return nil, err
	}

	return &Result{
		Mode:     opts.Mode,
		Sectors:  opts.Sectors,
		Groups:   groups,
		Registry: c.reg,
		Lineage:  c.lin,
		Warnings: c.warnings,
		Profile:  profile,
	}, nil
}

// track records construction outputs and retires consumed inputs.
func (c *compiler) track(anc *kernel.Ancestry, outputs []kernel.Entity) {
	if anc != nil {
		for _, in := range anc.Inputs() {
			delete(c.alive, in)
		}
	}
	for _, out := range outputs {
		c.alive[out] = true
	}
}

// bind names entities with a category.
func (c *compiler) bind(name naming.SemanticName, cat kernel.GroupCategory, ents ...kernel.Entity) {
	c.lin.Bind(name, ents...)
	c.category[name] = cat
}

// register builds and records a semantic name, attaching the node path to
// collision faults for diagnosability.
func (c *compiler) register(parts ...string) (naming.SemanticName, error) {
	name, err := c.reg.Register(parts...)
	if err != nil {
		return "", err
	}
	return name, nil
}

// buildGroups flattens the lineage into kernel physical groups, one per
// name, partitioned by category.
func (c *compiler) buildGroups() ([]kernel.PhysicalGroup, map[naming.SemanticName][]kernel.Box, error) {
	var groups []kernel.PhysicalGroup
	profile := make(map[naming.SemanticName][]kernel.Box)

	for _, name := range c.lin.Names() {
		ents, err := c.lin.Resolve(name)
		if err != nil {
			return nil, nil, err
		}
		if len(ents) == 0 {
			c.warnings = append(c.warnings, fmt.Sprintf("name %q resolves to no entities", name))
			continue
		}
		dim := ents[0].Dim
		var tags []kernel.Tag
		for _, ent := range ents {
			if ent.Dim != dim {
				return nil, nil, fmt.Errorf("compile: name %q mixes dimensions %d and %d",
					name, dim, ent.Dim)
			}
			tags = append(tags, ent.Tag)
			if dim == kernel.DimSurface {
				bb, err := c.sess.BoundingBoxOf(ent)
				if err != nil {
					return nil, nil, &kernel.OperationError{Op: "boundingBox", Name: string(name), Err: err}
				}
				profile[name] = append(profile[name], bb)
			}
		}
		if _, err := c.sess.AddPhysicalGroup(dim, tags, string(name)); err != nil {
			return nil, nil, &kernel.OperationError{Op: "addPhysicalGroup", Name: string(name), Err: err}
		}
		groups = append(groups, kernel.PhysicalGroup{
			Name:     string(name),
			Dim:      dim,
			Category: c.category[name],
			Tags:     tags,
		})
	}
	return groups, profile, nil
}

// GenerateMesh resolves a target size for every surface and triggers 2D
// mesh generation on the kernel. Only axisymmetric results are meshed
// here; sector and full-3D export goes through the transform package's
// revolution pipeline.
func GenerateMesh(sess kernel.Session, res *Result, policy *sizing.Policy) (*kernel.Mesh, error) {
	if res.Mode != ModeAxi {
		return nil, fmt.Errorf("compile: mode %d meshes through the revolution pipeline", res.Mode)
	}
	for _, g := range res.Groups {
		if g.Dim != kernel.DimSurface {
			continue
		}
		for _, tag := range g.Tags {
			ent := kernel.Entity{Dim: kernel.DimSurface, Tag: tag}
			lc := policy.Resolve(strconv.Itoa(int(tag)), g.Name)
			if err := sess.SetMeshSize(ent, lc); err != nil {
				return nil, &kernel.OperationError{Op: "setMeshSize", Name: g.Name, Err: err}
			}
		}
	}
	mesh, err := sess.Generate(kernel.DimSurface)
	if err != nil {
		return nil, err
	}
	return mesh, nil
}
