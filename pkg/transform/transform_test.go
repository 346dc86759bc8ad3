package transform

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/magnettools/magnetmesh/pkg/compile"
	"github.com/magnettools/magnetmesh/pkg/geom"
	"github.com/magnettools/magnetmesh/pkg/kernel"
	"github.com/magnettools/magnetmesh/pkg/kernel/planar"
)

func TestSpecValidate(t *testing.T) {
	for _, n := range []int{1, 2, 4} {
		if err := (Spec{Sectors: n}).Validate(); err != nil {
			t.Errorf("Validate(%d) error = %v", n, err)
		}
	}
	for _, n := range []int{0, 3, 8, -1} {
		err := (Spec{Sectors: n}).Validate()
		ve, ok := err.(geom.ValidationError)
		if !ok || ve.Code != "INVALID_SECTOR" {
			t.Errorf("Validate(%d) error = %v, want INVALID_SECTOR", n, err)
		}
	}
}

func TestSpecAngle(t *testing.T) {
	tests := []struct {
		sectors int
		want    float64
	}{
		{1, 360},
		{2, 180},
		{4, 90},
	}
	for _, tt := range tests {
		if got := (Spec{Sectors: tt.sectors}).Angle(); got != tt.want {
			t.Errorf("Angle(%d) = %g, want %g", tt.sectors, got, tt.want)
		}
	}
}

func TestRegions(t *testing.T) {
	sess := planar.Open("regions")
	defer sess.Close()

	root := geom.NewInsert("I1", 1, 6,
		geom.NewHelix("H1", [2]float64{2, 3}, [2]float64{-2, 2}),
		geom.NewHelix("H2", [2]float64{4, 5}, [2]float64{-2, 2}),
	)
	res, err := compile.Compile(sess, root, compile.Options{Mode: compile.ModeFull3D})
	if err != nil {
		t.Fatalf("Compile error = %v", err)
	}

	regions := Regions(res)
	if len(regions) == 0 {
		t.Fatal("no regions extracted")
	}
	seen := make(map[string]Region)
	for i, reg := range regions {
		if reg.Phys != int32(i+1) {
			t.Errorf("region %q phys = %d, want %d", reg.Name, reg.Phys, i+1)
		}
		if len(reg.Boxes) == 0 {
			t.Errorf("region %q has no profile boxes", reg.Name)
		}
		seen[reg.Name] = reg
	}
	for _, name := range []string{"I1_H1", "I1_H2", "I1_Channel0"} {
		if _, ok := seen[name]; !ok {
			t.Errorf("region %q missing", name)
		}
	}
	// Boundary curve groups never revolve.
	for name := range seen {
		if strings.HasSuffix(name, "_HP") || strings.HasSuffix(name, "_Rint") {
			t.Errorf("curve group %q leaked into regions", name)
		}
	}
}

func TestReduceRejects(t *testing.T) {
	t.Run("bad sector count", func(t *testing.T) {
		_, err := Reduce("m", []Region{{Name: "x"}}, Spec{Sectors: 3})
		if err == nil {
			t.Error("Reduce with 3 sectors: error = nil, want failure")
		}
	})
	t.Run("no regions", func(t *testing.T) {
		_, err := Reduce("m", nil, Spec{Sectors: 1})
		var oe *kernel.OperationError
		if !errors.As(err, &oe) {
			t.Errorf("Reduce error = %v, want OperationError", err)
		}
	})
}

func TestReduceSector(t *testing.T) {
	regions := []Region{{
		Name:  "H1",
		Boxes: []kernel.Box{{XMin: 1, YMin: -1, XMax: 2, YMax: 1}},
		Phys:  1,
	}}
	mesh, err := Reduce("insert", regions, Spec{Sectors: 4, Cells: 24})
	if err != nil {
		t.Fatalf("Reduce error = %v", err)
	}
	if mesh.Name != "insert-sector4" {
		t.Errorf("name = %q, want insert-sector4", mesh.Name)
	}
	if mesh.IsEmpty() {
		t.Fatal("sector mesh is empty")
	}
	if g := mesh.GroupByName("H1"); g == nil || g.Phys != 1 {
		t.Errorf("group H1 = %+v", g)
	}
	// Every vertex stays within the profile radius plus tessellation slack.
	for i := 0; i < len(mesh.Nodes); i += 3 {
		r := math.Hypot(mesh.Nodes[i], mesh.Nodes[i+1])
		if r > 2.2 {
			t.Fatalf("node %d at radius %g outside profile", i/3, r)
		}
	}
}

func TestReduceFullRevolutionName(t *testing.T) {
	regions := []Region{{
		Name:  "H1",
		Boxes: []kernel.Box{{XMin: 1, YMin: -1, XMax: 2, YMax: 1}},
		Phys:  1,
	}}
	mesh, err := Reduce("insert", regions, Spec{Sectors: 1, Cells: 24})
	if err != nil {
		t.Fatalf("Reduce error = %v", err)
	}
	if mesh.Name != "insert" {
		t.Errorf("name = %q, want insert", mesh.Name)
	}
}

// envelope reports the radial and axial extent of a mesh's nodes.
func envelope(m *kernel.Mesh) (rMin, rMax, zMin, zMax float64) {
	rMin, zMin = math.Inf(1), math.Inf(1)
	rMax, zMax = math.Inf(-1), math.Inf(-1)
	for i := 0; i < len(m.Nodes); i += 3 {
		r := math.Hypot(m.Nodes[i], m.Nodes[i+1])
		rMin, rMax = math.Min(rMin, r), math.Max(rMax, r)
		zMin, zMax = math.Min(zMin, m.Nodes[i+2]), math.Max(zMax, m.Nodes[i+2])
	}
	return rMin, rMax, zMin, zMax
}

func groupNames(m *kernel.Mesh) map[string]bool {
	set := make(map[string]bool)
	for _, g := range m.Groups {
		set[g.Name] = true
	}
	return set
}

func TestReduceQuarterSectorReconstruction(t *testing.T) {
	regions := []Region{{
		Name:  "H1",
		Boxes: []kernel.Box{{XMin: 1, YMin: -1, XMax: 2, YMax: 1}},
		Phys:  1,
	}}

	full, err := Reduce("insert", regions, Spec{Sectors: 1, Cells: 24})
	if err != nil {
		t.Fatalf("Reduce full error = %v", err)
	}
	quarter, err := Reduce("insert", regions, Spec{Sectors: 4, Cells: 24})
	if err != nil {
		t.Fatalf("Reduce quarter error = %v", err)
	}

	// Four copies of the wedge, swept a quarter turn apart, tile the
	// revolution.
	whole := &kernel.Mesh{Name: "insert"}
	for _, deg := range []float64{0, 90, 180, 270} {
		merge(whole, Rotate(quarter, deg))
	}

	wantGroups, gotGroups := groupNames(full), groupNames(whole)
	for name := range wantGroups {
		if !gotGroups[name] {
			t.Errorf("group %q missing from reassembly", name)
		}
	}
	for name := range gotGroups {
		if !wantGroups[name] {
			t.Errorf("group %q not in full revolution", name)
		}
	}

	// Boundary extents agree up to a marching cubes cell.
	const tol = 0.2
	fr0, fr1, fz0, fz1 := envelope(full)
	wr0, wr1, wz0, wz1 := envelope(whole)
	for _, d := range []struct {
		what       string
		full, want float64
	}{
		{"radial min", fr0, wr0},
		{"radial max", fr1, wr1},
		{"axial min", fz0, wz0},
		{"axial max", fz1, wz1},
	} {
		if math.Abs(d.full-d.want) > tol {
			t.Errorf("%s: full %g vs reassembly %g", d.what, d.full, d.want)
		}
	}
}

func TestRotate(t *testing.T) {
	base := &kernel.Mesh{
		Name:  "m",
		Nodes: []float64{0, 1, 0, 2, 0, 3},
		Elements: []kernel.Element{
			{Type: kernel.ElemLine, Phys: 1, Nodes: []int32{0, 1}},
		},
		Groups: []kernel.MeshGroup{{Name: "g", Dim: kernel.DimCurve, Phys: 1}},
	}

	t.Run("identity at zero", func(t *testing.T) {
		out := Rotate(base, 0)
		if out.Name != "m" {
			t.Errorf("name = %q, want m", out.Name)
		}
		for i := range base.Nodes {
			if out.Nodes[i] != base.Nodes[i] {
				t.Fatalf("node coord %d changed: %g", i, out.Nodes[i])
			}
		}
	})

	t.Run("input untouched", func(t *testing.T) {
		Rotate(base, 90)
		if base.Nodes[0] != 0 || base.Nodes[1] != 1 {
			t.Errorf("input mesh mutated: %v", base.Nodes)
		}
	})

	t.Run("quarter turn", func(t *testing.T) {
		out := Rotate(base, 90)
		if out.Name != "m-rotate-90.0deg" {
			t.Errorf("name = %q, want m-rotate-90.0deg", out.Name)
		}
		// (x=0, y=1) -> (x=-1, y=0); the axial coordinate is untouched.
		if math.Abs(out.Nodes[0]+1) > 1e-12 || math.Abs(out.Nodes[1]) > 1e-12 || out.Nodes[2] != 0 {
			t.Errorf("rotated node = (%g, %g, %g)", out.Nodes[0], out.Nodes[1], out.Nodes[2])
		}
	})

	t.Run("composes mod 360", func(t *testing.T) {
		a := Rotate(Rotate(base, 120), 240)
		b := Rotate(base, 360)
		for i := range a.Nodes {
			if math.Abs(a.Nodes[i]-b.Nodes[i]) > 1e-9 {
				t.Fatalf("coord %d: %g vs %g", i, a.Nodes[i], b.Nodes[i])
			}
		}
		for i := range b.Nodes {
			if math.Abs(b.Nodes[i]-base.Nodes[i]) > 1e-9 {
				t.Fatalf("full turn moved coord %d: %g vs %g", i, b.Nodes[i], base.Nodes[i])
			}
		}
	})
}
