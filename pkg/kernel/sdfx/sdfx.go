// Package sdfx realizes compiled r-z profiles as 3D triangle meshes using
// the github.com/deadsy/sdfx SDF CAD library. The profile of a named
// region is a union of axis-aligned boxes in the r-z plane; it is revolved
// about the machine axis, a full turn or a sector, and tessellated with
// marching cubes.
package sdfx

import (
	"fmt"
	"math"

	"github.com/deadsy/sdfx/render"
	"github.com/deadsy/sdfx/sdf"
	v2 "github.com/deadsy/sdfx/vec/v2"
	v3 "github.com/deadsy/sdfx/vec/v3"

	"github.com/magnettools/magnetmesh/pkg/kernel"
)

// DefaultCells is the marching cubes resolution along the longest axis.
const DefaultCells = 200

// profileSDF builds the 2D signed distance field of a region given as a
// union of axis-aligned boxes.
func profileSDF(boxes []kernel.Box) (sdf.SDF2, error) {
	var acc sdf.SDF2
	for _, b := range boxes {
		dx, dy := b.XMax-b.XMin, b.YMax-b.YMin
		if dx <= 0 || dy <= 0 {
			return nil, fmt.Errorf("degenerate profile box [%g,%g]x[%g,%g]",
				b.XMin, b.XMax, b.YMin, b.YMax)
		}
		s := sdf.Box2D(v2.Vec{X: dx, Y: dy}, 0)
		cx, cy := (b.XMin+b.XMax)/2, (b.YMin+b.YMax)/2
		s = sdf.Transform2D(s, sdf.Translate2d(v2.Vec{X: cx, Y: cy}))
		if acc == nil {
			acc = s
		} else {
			acc = sdf.Union2D(acc, s)
		}
	}
	if acc == nil {
		return nil, fmt.Errorf("empty profile")
	}
	return acc, nil
}

// Revolve revolves the named profile by thetaDeg about the machine axis
// and tessellates the result. The triangles carry the given physical tag;
// vertices shared between triangles are merged.
func Revolve(name string, boxes []kernel.Box, thetaDeg float64, phys int32, cells int) (*kernel.Mesh, error) {
	if cells <= 0 {
		cells = DefaultCells
	}
	s2, err := profileSDF(boxes)
	if err != nil {
		return nil, &kernel.OperationError{Op: "revolve", Name: name, Err: err}
	}

	var s3 sdf.SDF3
	if thetaDeg >= 360 {
		s3, err = sdf.Revolve3D(s2)
	} else {
		s3, err = sdf.RevolveTheta3D(s2, thetaDeg*math.Pi/180)
	}
	if err != nil {
		return nil, &kernel.OperationError{Op: "revolve", Name: name, Err: err}
	}

	triangles := render.ToTriangles(s3, render.NewMarchingCubesUniform(cells))
	if len(triangles) == 0 {
		return nil, &kernel.OperationError{Op: "tessellate", Name: name,
			Err: fmt.Errorf("marching cubes produced no triangles")}
	}

	mesh := &kernel.Mesh{Name: name}
	index := make(map[[3]int64]int32)
	node := func(v v3.Vec) int32 {
		const scale = 1e9
		k := [3]int64{
			int64(math.Round(v.X * scale)),
			int64(math.Round(v.Y * scale)),
			int64(math.Round(v.Z * scale)),
		}
		if id, ok := index[k]; ok {
			return id
		}
		id := int32(mesh.NodeCount())
		mesh.Nodes = append(mesh.Nodes, v.X, v.Y, v.Z)
		index[k] = id
		return id
	}
	for _, tri := range triangles {
		el := kernel.Element{Type: kernel.ElemTriangle, Phys: phys}
		for j := 0; j < 3; j++ {
			el.Nodes = append(el.Nodes, node(tri[j]))
		}
		mesh.Elements = append(mesh.Elements, el)
	}
	mesh.Groups = append(mesh.Groups, kernel.MeshGroup{
		Name: name, Dim: kernel.DimVolume, Phys: phys,
	})
	return mesh, nil
}
