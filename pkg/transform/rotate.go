package transform

import (
	"fmt"
	"math"

	"github.com/magnettools/magnetmesh/pkg/kernel"
)

// Rotate returns a copy of the mesh rigidly rotated by angleDeg about the
// machine axis. Connectivity and group membership are untouched; the
// output name carries the rotation angle. A zero angle returns an
// unchanged copy under the original name.
func Rotate(m *kernel.Mesh, angleDeg float64) *kernel.Mesh {
	out := m.Clone()
	if angleDeg == 0 {
		return out
	}
	rad := angleDeg * math.Pi / 180
	cos, sin := math.Cos(rad), math.Sin(rad)
	for i := 0; i < len(out.Nodes); i += 3 {
		x, y := out.Nodes[i], out.Nodes[i+1]
		out.Nodes[i] = x*cos - y*sin
		out.Nodes[i+1] = x*sin + y*cos
	}
	out.Name = fmt.Sprintf("%s-rotate-%.1fdeg", m.Name, angleDeg)
	return out
}
