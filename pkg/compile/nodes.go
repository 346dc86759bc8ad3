package compile

import (
	"fmt"
	"sort"

	"github.com/magnettools/magnetmesh/pkg/geom"
	"github.com/magnettools/magnetmesh/pkg/kernel"
	"github.com/magnettools/magnetmesh/pkg/naming"
)

// compileNode dispatches on the node kind and returns the surface entities
// the subtree produced, in construction order.
func (c *compiler) compileNode(n *geom.Node, parent string) ([]kernel.Entity, error) {
	path := joinPath(parent, n.Name)
	switch n.Kind {
	case geom.KindBitter:
		return c.compileBitter(n, path)
	case geom.KindHelix:
		return c.compileHelix(n, path)
	case geom.KindSupra:
		return c.compileSupra(n, path)
	case geom.KindRing:
		return c.compileRing(n, path)
	case geom.KindScreen:
		return c.compileScreen(n, path)
	case geom.KindInsert:
		return c.compileInsert(n, path)
	case geom.KindBitters, geom.KindSupras:
		var solids []kernel.Entity
		for _, child := range n.Children {
			sub, err := c.compileNode(child, path)
			if err != nil {
				return nil, err
			}
			solids = append(solids, sub...)
		}
		return solids, nil
	case geom.KindMSite:
		return c.compileMSite(n, path)
	default:
		return nil, &UnsupportedKindError{Kind: n.Kind, Path: path}
	}
}

// compileBitter builds the plate stack and fragments it with the cooling
// slit curves. Plates are named <path>_B1.. when the axial build has more
// than one section, <path> otherwise; slits are <path>_Slit1.. and survive
// fragmentation as curve groups.
func (c *compiler) compileBitter(n *geom.Node, path string) ([]kernel.Entity, error) {
	d := n.Data.(geom.BitterData)

	var solids []kernel.Entity
	multi := len(d.Axi.Turns) > 1
	y := -d.Axi.H
	for i := range d.Axi.Turns {
		dz := d.Axi.Turns[i] * d.Axi.Pitch[i]
		tag, err := c.sess.AddRectangle(d.R[0], y, d.R[1]-d.R[0], dz)
		if err != nil {
			return nil, err
		}
		ent := kernel.Entity{Dim: kernel.DimSurface, Tag: tag}
		c.track(nil, []kernel.Entity{ent})

		var name naming.SemanticName
		if multi {
			name, err = c.register(path, fmt.Sprintf("B%d", i+1))
		} else {
			name, err = c.register(path)
		}
		if err != nil {
			return nil, err
		}
		c.bind(name, kernel.CatConductor, ent)
		solids = append(solids, ent)
		y += dz
	}

	if len(d.CoolingSlits) == 0 {
		return solids, nil
	}

	z0, z1 := -d.Axi.H, y
	var tools []kernel.Entity
	for i, r := range d.CoolingSlits {
		curve, err := c.addSegment(r, z0, r, z1)
		if err != nil {
			return nil, err
		}
		c.track(nil, []kernel.Entity{curve})
		name, err := c.register(path, fmt.Sprintf("Slit%d", i+1))
		if err != nil {
			return nil, err
		}
		c.bind(name, kernel.CatChannel, curve)
		tools = append(tools, curve)
	}

	outs, anc, err := c.sess.Fragment(solids, tools)
	if err != nil {
		return nil, &kernel.OperationError{Op: "fragment", Name: path, Err: err}
	}
	c.track(anc, outs)
	c.lin.RebindAfterOperation(anc)
	return surfacesOf(outs), nil
}

func (c *compiler) compileHelix(n *geom.Node, path string) ([]kernel.Entity, error) {
	d := n.Data.(geom.HelixData)
	tag, err := c.sess.AddRectangle(d.R[0], d.Z[0], d.R[1]-d.R[0], d.Z[1]-d.Z[0])
	if err != nil {
		return nil, err
	}
	ent := kernel.Entity{Dim: kernel.DimSurface, Tag: tag}
	c.track(nil, []kernel.Entity{ent})
	name, err := c.register(path)
	if err != nil {
		return nil, err
	}
	c.bind(name, kernel.CatConductor, ent)
	return []kernel.Entity{ent}, nil
}

// compileSupra builds either a monolithic coil cross-section or, under
// "dp" detail, the pancake stack with isolant layers and mandrel. The
// isolant layers and mandrel form a connected solid; fusing them collapses
// their names onto the largest-area operand.
func (c *compiler) compileSupra(n *geom.Node, path string) ([]kernel.Entity, error) {
	d := n.Data.(geom.SupraData)

	if d.Detail == "" || d.Detail == "none" {
		tag, err := c.sess.AddRectangle(d.R[0], d.Z[0], d.R[1]-d.R[0], d.Z[1]-d.Z[0])
		if err != nil {
			return nil, err
		}
		ent := kernel.Entity{Dim: kernel.DimSurface, Tag: tag}
		c.track(nil, []kernel.Entity{ent})
		name, err := c.register(path)
		if err != nil {
			return nil, err
		}
		c.bind(name, kernel.CatConductor, ent)
		return []kernel.Entity{ent}, nil
	}

	r0 := d.R[0] + d.MandrelThickness
	p := d.PancakeHeight()

	var solids []kernel.Entity
	var isolants []kernel.Entity
	var isoNames []naming.SemanticName
	z := d.Z[0]
	for i := 0; i < d.NPancakes; i++ {
		tag, err := c.sess.AddRectangle(r0, z, d.R[1]-r0, p)
		if err != nil {
			return nil, err
		}
		ent := kernel.Entity{Dim: kernel.DimSurface, Tag: tag}
		c.track(nil, []kernel.Entity{ent})
		name, err := c.register(path, fmt.Sprintf("P%d", i+1))
		if err != nil {
			return nil, err
		}
		c.bind(name, kernel.CatConductor, ent)
		solids = append(solids, ent)
		z += p

		if i < d.NPancakes-1 {
			tag, err := c.sess.AddRectangle(r0, z, d.R[1]-r0, d.IsolationThickness)
			if err != nil {
				return nil, err
			}
			iso := kernel.Entity{Dim: kernel.DimSurface, Tag: tag}
			c.track(nil, []kernel.Entity{iso})
			name, err := c.register(path, fmt.Sprintf("Isolant%d", i+1))
			if err != nil {
				return nil, err
			}
			c.bind(name, kernel.CatIsolant, iso)
			isolants = append(isolants, iso)
			isoNames = append(isoNames, name)
			z += d.IsolationThickness
		}
	}

	if d.MandrelThickness > 0 {
		tag, err := c.sess.AddRectangle(d.R[0], d.Z[0], d.MandrelThickness, d.Z[1]-d.Z[0])
		if err != nil {
			return nil, err
		}
		mandrel := kernel.Entity{Dim: kernel.DimSurface, Tag: tag}
		c.track(nil, []kernel.Entity{mandrel})
		name, err := c.register(path, "Mandrel")
		if err != nil {
			return nil, err
		}
		c.bind(name, kernel.CatIsolant, mandrel)

		// The mandrel touches every isolant layer: fuse them into one
		// solid and keep the name of the largest operand.
		inputs := append(append([]kernel.Entity(nil), isolants...), mandrel)
		names := append(append([]naming.SemanticName(nil), isoNames...), name)
		fused, err := c.fuseNamed(path, inputs, names)
		if err != nil {
			return nil, err
		}
		solids = append(solids, fused...)
		return solids, nil
	}

	solids = append(solids, isolants...)
	return solids, nil
}

// fuseNamed fuses the named inputs and resolves the resulting name clash:
// the operand with the largest area keeps its name, ties break in favor of
// the earliest-registered operand.
func (c *compiler) fuseNamed(path string, inputs []kernel.Entity, names []naming.SemanticName) ([]kernel.Entity, error) {
	winner := 0
	best := -1.0
	for i, ent := range inputs {
		m, err := c.sess.Mass(ent)
		if err != nil {
			return nil, &kernel.OperationError{Op: "mass", Name: string(names[i]), Err: err}
		}
		if m > best {
			best = m
			winner = i
		}
	}

	outs, anc, err := c.sess.Fuse(inputs, nil)
	if err != nil {
		return nil, &kernel.OperationError{Op: "fuse", Name: path, Err: err}
	}
	c.track(anc, outs)
	c.lin.RebindAfterOperation(anc)

	var losers []naming.SemanticName
	for i, name := range names {
		if i == winner {
			continue
		}
		losers = append(losers, name)
	}
	c.lin.Collapse(names[winner], losers...)
	for _, loser := range losers {
		c.reg.Remove(loser)
		delete(c.category, loser)
	}
	return surfacesOf(outs), nil
}

func (c *compiler) compileRing(n *geom.Node, path string) ([]kernel.Entity, error) {
	d := n.Data.(geom.RingData)
	tag, err := c.sess.AddRectangle(d.R[0], d.Z[0], d.R[1]-d.R[0], d.Z[1]-d.Z[0])
	if err != nil {
		return nil, err
	}
	ent := kernel.Entity{Dim: kernel.DimSurface, Tag: tag}
	c.track(nil, []kernel.Entity{ent})
	name, err := c.register(path)
	if err != nil {
		return nil, err
	}
	c.bind(name, kernel.CatStructure, ent)
	return []kernel.Entity{ent}, nil
}

func (c *compiler) compileScreen(n *geom.Node, path string) ([]kernel.Entity, error) {
	d := n.Data.(geom.ScreenData)
	tag, err := c.sess.AddRectangle(d.R[0], d.Z[0], d.R[1]-d.R[0], d.Z[1]-d.Z[0])
	if err != nil {
		return nil, err
	}
	ent := kernel.Entity{Dim: kernel.DimSurface, Tag: tag}
	c.track(nil, []kernel.Entity{ent})
	name, err := c.register(path)
	if err != nil {
		return nil, err
	}
	c.bind(name, kernel.CatStructure, ent)
	return []kernel.Entity{ent}, nil
}

// compileInsert builds the helix and ring children, then fragments the
// bore envelope against them. Envelope pieces not derived from any child
// are the cooling channels, numbered bottom-up.
func (c *compiler) compileInsert(n *geom.Node, path string) ([]kernel.Entity, error) {
	d := n.Data.(geom.InsertData)

	var children []kernel.Entity
	for _, child := range n.Children {
		sub, err := c.compileNode(child, path)
		if err != nil {
			return nil, err
		}
		children = append(children, sub...)
	}

	_, z := n.BoundingBox()
	envTag, err := c.sess.AddRectangle(d.InnerBore, z[0], d.OuterBore-d.InnerBore, z[1]-z[0])
	if err != nil {
		return nil, err
	}
	env := kernel.Entity{Dim: kernel.DimSurface, Tag: envTag}
	c.track(nil, []kernel.Entity{env})

	outs, anc, err := c.sess.Fragment(children, []kernel.Entity{env})
	if err != nil {
		return nil, &kernel.OperationError{Op: "fragment", Name: path, Err: err}
	}
	c.track(anc, outs)
	c.lin.RebindAfterOperation(anc)

	// Pieces derived from a child keep the child's name; the rest of the
	// envelope is channel.
	fromChild := make(map[kernel.Entity]bool)
	for _, child := range children {
		for _, out := range anc.Outputs(child) {
			fromChild[out] = true
		}
	}
	var channels []kernel.Entity
	for _, out := range anc.Outputs(env) {
		if !fromChild[out] {
			channels = append(channels, out)
		}
	}
	if err := c.sortByCentroid(channels); err != nil {
		return nil, err
	}
	for i, ch := range channels {
		name, err := c.register(path, fmt.Sprintf("Channel%d", i))
		if err != nil {
			return nil, err
		}
		c.bind(name, kernel.CatChannel, ch)
	}

	return surfacesOf(outs), nil
}

// compileMSite compiles every referenced magnet under the site prefix.
// References resolve against Options.Magnets; validation has already
// checked that each one exists.
func (c *compiler) compileMSite(n *geom.Node, path string) ([]kernel.Entity, error) {
	d := n.Data.(geom.MSiteData)
	var solids []kernel.Entity
	for _, ref := range d.Magnets {
		magnet := c.opts.Magnets[ref]
		if magnet == nil {
			return nil, geom.ValidationError{
				Code:    "UNRESOLVED_MAGNET",
				Message: fmt.Sprintf("magnet %q not found", ref),
				Path:    path,
			}
		}
		if magnet.Kind == geom.KindMSite {
			return nil, &UnsupportedKindError{Kind: magnet.Kind, Path: joinPath(path, magnet.Name)}
		}
		sub, err := c.compileNode(magnet, path)
		if err != nil {
			return nil, err
		}
		solids = append(solids, sub...)
	}
	return solids, nil
}

// buildAir encloses the assembly in an air rectangle spanning from the
// axis to RadialFactor times the outer radius, expanded axially by
// AxialFactor, and fragments it against the solids. Envelope pieces not
// derived from a solid become the Air group.
func (c *compiler) buildAir(solids []kernel.Entity) error {
	if len(solids) == 0 {
		return fmt.Errorf("compile: air region around empty assembly")
	}
	var bb kernel.Box
	for i, ent := range solids {
		b, err := c.sess.BoundingBoxOf(ent)
		if err != nil {
			return &kernel.OperationError{Op: "boundingBox", Name: "Air", Err: err}
		}
		if i == 0 {
			bb = b
			continue
		}
		if b.XMin < bb.XMin {
			bb.XMin = b.XMin
		}
		if b.XMax > bb.XMax {
			bb.XMax = b.XMax
		}
		if b.YMin < bb.YMin {
			bb.YMin = b.YMin
		}
		if b.YMax > bb.YMax {
			bb.YMax = b.YMax
		}
	}

	r1 := bb.XMax * c.opts.Air.RadialFactor
	y0 := bb.YMin * c.opts.Air.AxialFactor
	y1 := bb.YMax * c.opts.Air.AxialFactor
	tag, err := c.sess.AddRectangle(0, y0, r1, y1-y0)
	if err != nil {
		return err
	}
	env := kernel.Entity{Dim: kernel.DimSurface, Tag: tag}
	c.track(nil, []kernel.Entity{env})

	outs, anc, err := c.sess.Fragment(solids, []kernel.Entity{env})
	if err != nil {
		return &kernel.OperationError{Op: "fragment", Name: "Air", Err: err}
	}
	c.track(anc, outs)
	c.lin.RebindAfterOperation(anc)

	fromSolid := make(map[kernel.Entity]bool)
	for _, s := range solids {
		for _, out := range anc.Outputs(s) {
			fromSolid[out] = true
		}
	}
	var air []kernel.Entity
	for _, out := range anc.Outputs(env) {
		if !fromSolid[out] {
			air = append(air, out)
		}
	}
	if len(air) == 0 {
		return fmt.Errorf("compile: air envelope fully covered by solids")
	}
	name, err := c.register("Air")
	if err != nil {
		return err
	}
	c.bind(name, kernel.CatAir, air...)

	c.airBox = &kernel.Box{XMin: 0, YMin: y0, XMax: r1, YMax: y1}
	return nil
}

// addSegment creates an axis-aligned curve between two points.
func (c *compiler) addSegment(x0, y0, x1, y1 float64) (kernel.Entity, error) {
	a, err := c.sess.AddPoint(x0, y0)
	if err != nil {
		return kernel.Entity{}, err
	}
	b, err := c.sess.AddPoint(x1, y1)
	if err != nil {
		return kernel.Entity{}, err
	}
	tag, err := c.sess.AddLine(a, b)
	if err != nil {
		return kernel.Entity{}, err
	}
	return kernel.Entity{Dim: kernel.DimCurve, Tag: tag}, nil
}

// sortByCentroid orders entities bottom-up, then inward-out.
func (c *compiler) sortByCentroid(ents []kernel.Entity) error {
	type keyed struct {
		ent  kernel.Entity
		x, y float64
	}
	ks := make([]keyed, len(ents))
	for i, ent := range ents {
		x, y, err := c.sess.CenterOfMass(ent)
		if err != nil {
			return &kernel.OperationError{Op: "centerOfMass", Err: err}
		}
		ks[i] = keyed{ent, x, y}
	}
	sort.SliceStable(ks, func(i, j int) bool {
		if ks[i].y != ks[j].y {
			return ks[i].y < ks[j].y
		}
		return ks[i].x < ks[j].x
	})
	for i := range ks {
		ents[i] = ks[i].ent
	}
	return nil
}

func surfacesOf(ents []kernel.Entity) []kernel.Entity {
	var out []kernel.Entity
	for _, e := range ents {
		if e.Dim == kernel.DimSurface {
			out = append(out, e)
		}
	}
	return out
}

func joinPath(parent, name string) string {
	if parent == "" {
		return name
	}
	return parent + "_" + name
}
