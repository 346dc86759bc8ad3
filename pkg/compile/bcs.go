package compile

import (
	"fmt"

	"github.com/magnettools/magnetmesh/pkg/geom"
	"github.com/magnettools/magnetmesh/pkg/kernel"
)

// bcsEps inflates the locator boxes used to pick up boundary curves.
// Large enough to swallow kernel tolerance, small against any real
// geometric feature.
const bcsEps = 1e-6

// buildBoundaries walks the tree a second time and tags the pressure and
// radial boundary curves of every solid: <path>_HP and <path>_BP on the
// upper and lower faces, <path>_Rint and <path>_Rext on the inner and
// outer radius. With an air region, ZAxis and Infty close the domain.
func (c *compiler) buildBoundaries(n *geom.Node, parent string) error {
	path := joinPath(parent, n.Name)
	switch n.Kind {
	case geom.KindBitter:
		d := n.Data.(geom.BitterData)
		z1 := -d.Axi.H
		for i := range d.Axi.Turns {
			z1 += d.Axi.Turns[i] * d.Axi.Pitch[i]
		}
		return c.solidBoundaries(path, d.R[0], d.R[1], -d.Axi.H, z1)
	case geom.KindHelix:
		d := n.Data.(geom.HelixData)
		return c.solidBoundaries(path, d.R[0], d.R[1], d.Z[0], d.Z[1])
	case geom.KindSupra:
		d := n.Data.(geom.SupraData)
		return c.solidBoundaries(path, d.R[0], d.R[1], d.Z[0], d.Z[1])
	case geom.KindRing:
		d := n.Data.(geom.RingData)
		return c.solidBoundaries(path, d.R[0], d.R[1], d.Z[0], d.Z[1])
	case geom.KindScreen:
		d := n.Data.(geom.ScreenData)
		return c.solidBoundaries(path, d.R[0], d.R[1], d.Z[0], d.Z[1])
	case geom.KindInsert, geom.KindBitters, geom.KindSupras:
		for _, child := range n.Children {
			if err := c.buildBoundaries(child, path); err != nil {
				return err
			}
		}
		return nil
	case geom.KindMSite:
		d := n.Data.(geom.MSiteData)
		for _, ref := range d.Magnets {
			if magnet := c.opts.Magnets[ref]; magnet != nil {
				if err := c.buildBoundaries(magnet, path); err != nil {
					return err
				}
			}
		}
		return nil
	default:
		return nil
	}
}

// solidBoundaries locates the four boundary-curve groups of one solid
// from its nominal r-z extent. A face swallowed by a neighbouring solid
// or by fragmentation yields no curves; that is reported as a warning,
// not an error, since interior faces legitimately disappear.
func (c *compiler) solidBoundaries(path string, r0, r1, z0, z1 float64) error {
	faces := []struct {
		suffix string
		box    kernel.Box
	}{
		{"HP", kernel.Box{XMin: r0, YMin: z1, XMax: r1, YMax: z1}},
		{"BP", kernel.Box{XMin: r0, YMin: z0, XMax: r1, YMax: z0}},
		{"Rint", kernel.Box{XMin: r0, YMin: z0, XMax: r0, YMax: z1}},
		{"Rext", kernel.Box{XMin: r1, YMin: z0, XMax: r1, YMax: z1}},
	}
	for _, f := range faces {
		curves, err := c.sess.EntitiesInBox(f.box.Inflate(bcsEps), kernel.DimCurve)
		if err != nil {
			return &kernel.OperationError{Op: "entitiesInBox", Name: path, Err: err}
		}
		if len(curves) == 0 {
			c.warnings = append(c.warnings,
				fmt.Sprintf("no boundary curves for %s_%s", path, f.suffix))
			continue
		}
		name, err := c.register(path, f.suffix)
		if err != nil {
			return err
		}
		c.bind(name, kernel.CatBoundary, curves...)
	}
	return nil
}

// airBoundaries tags the symmetry axis and the far-field boundary of the
// air region. No-op without an air region, and after the first call.
func (c *compiler) airBoundaries() error {
	if c.airBox == nil || c.reg.Has("ZAxis") {
		return nil
	}
	bb := *c.airBox

	axis, err := c.sess.EntitiesInBox(
		kernel.Box{XMin: 0, YMin: bb.YMin, XMax: 0, YMax: bb.YMax}.Inflate(bcsEps),
		kernel.DimCurve)
	if err != nil {
		return &kernel.OperationError{Op: "entitiesInBox", Name: "ZAxis", Err: err}
	}
	if len(axis) > 0 {
		name, err := c.register("ZAxis")
		if err != nil {
			return err
		}
		c.bind(name, kernel.CatBoundary, axis...)
	}

	outer := []kernel.Box{
		{XMin: bb.XMax, YMin: bb.YMin, XMax: bb.XMax, YMax: bb.YMax},
		{XMin: 0, YMin: bb.YMin, XMax: bb.XMax, YMax: bb.YMin},
		{XMin: 0, YMin: bb.YMax, XMax: bb.XMax, YMax: bb.YMax},
	}
	var far []kernel.Entity
	seen := make(map[kernel.Entity]bool)
	for _, box := range outer {
		curves, err := c.sess.EntitiesInBox(box.Inflate(bcsEps), kernel.DimCurve)
		if err != nil {
			return &kernel.OperationError{Op: "entitiesInBox", Name: "Infty", Err: err}
		}
		for _, curve := range curves {
			if !seen[curve] {
				seen[curve] = true
				far = append(far, curve)
			}
		}
	}
	if len(far) > 0 {
		name, err := c.register("Infty")
		if err != nil {
			return err
		}
		c.bind(name, kernel.CatBoundary, far...)
	}
	return nil
}
