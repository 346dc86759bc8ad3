package compile

import (
	"errors"
	"testing"

	"github.com/magnettools/magnetmesh/pkg/geom"
	"github.com/magnettools/magnetmesh/pkg/kernel"
	"github.com/magnettools/magnetmesh/pkg/kernel/planar"
	"github.com/magnettools/magnetmesh/pkg/naming"
	"github.com/magnettools/magnetmesh/pkg/sizing"
)

// slittedBitter spans r 1..4, z -1..1, with cooling slits at r=2 and r=3.
func slittedBitter(name string) *geom.Node {
	return geom.NewBitter(name, [2]float64{1, 4}, [2]float64{-1, 1},
		geom.BitterAxi{H: 1, Turns: []float64{20}, Pitch: []float64{0.1}},
		[]float64{2, 3})
}

func mustCompile(t *testing.T, root *geom.Node, opts Options) (*planar.Session, *Result) {
	t.Helper()
	sess := planar.Open(root.Name)
	t.Cleanup(func() { sess.Close() })
	res, err := Compile(sess, root, opts)
	if err != nil {
		t.Fatalf("Compile error = %v", err)
	}
	return sess, res
}

func groupByName(res *Result, name string) *kernel.PhysicalGroup {
	for i := range res.Groups {
		if res.Groups[i].Name == name {
			return &res.Groups[i]
		}
	}
	return nil
}

func TestCompileBitterWithSlits(t *testing.T) {
	_, res := mustCompile(t, slittedBitter("Bit"), Options{Mode: ModeAxi})

	if len(res.Warnings) != 0 {
		t.Errorf("warnings = %v, want none", res.Warnings)
	}

	wantOrder := []string{"Bit", "Bit_Slit1", "Bit_Slit2", "Bit_HP", "Bit_BP", "Bit_Rint", "Bit_Rext"}
	if len(res.Groups) != len(wantOrder) {
		t.Fatalf("got %d groups, want %d: %+v", len(res.Groups), len(wantOrder), res.Groups)
	}
	for i, want := range wantOrder {
		if res.Groups[i].Name != want {
			t.Errorf("groups[%d] = %q, want %q", i, res.Groups[i].Name, want)
		}
	}

	tests := []struct {
		name string
		dim  kernel.Dim
		cat  kernel.GroupCategory
		n    int
	}{
		{"Bit", kernel.DimSurface, kernel.CatConductor, 3},
		{"Bit_Slit1", kernel.DimCurve, kernel.CatChannel, 1},
		{"Bit_Slit2", kernel.DimCurve, kernel.CatChannel, 1},
		{"Bit_HP", kernel.DimCurve, kernel.CatBoundary, 3},
		{"Bit_BP", kernel.DimCurve, kernel.CatBoundary, 3},
		{"Bit_Rint", kernel.DimCurve, kernel.CatBoundary, 1},
		{"Bit_Rext", kernel.DimCurve, kernel.CatBoundary, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := groupByName(res, tt.name)
			if g == nil {
				t.Fatalf("group %q missing", tt.name)
			}
			if g.Dim != tt.dim || g.Category != tt.cat || len(g.Tags) != tt.n {
				t.Errorf("group = dim %d cat %s %d tags, want dim %d cat %s %d tags",
					g.Dim, g.Category, len(g.Tags), tt.dim, tt.cat, tt.n)
			}
		})
	}

	// The slits split the conductor into three annuli.
	boxes := res.Profile[naming.SemanticName("Bit")]
	want := []kernel.Box{
		{XMin: 1, YMin: -1, XMax: 2, YMax: 1},
		{XMin: 2, YMin: -1, XMax: 3, YMax: 1},
		{XMin: 3, YMin: -1, XMax: 4, YMax: 1},
	}
	if len(boxes) != len(want) {
		t.Fatalf("profile boxes = %d, want %d", len(boxes), len(want))
	}
	for i := range want {
		if boxes[i] != want[i] {
			t.Errorf("profile[%d] = %+v, want %+v", i, boxes[i], want[i])
		}
	}
}

func TestCompileBitterPlateNames(t *testing.T) {
	root := geom.NewBitter("Bit", [2]float64{1, 3}, [2]float64{-1, 1},
		geom.BitterAxi{H: 1, Turns: []float64{10, 10}, Pitch: []float64{0.1, 0.1}}, nil)
	_, res := mustCompile(t, root, Options{Mode: ModeAxi})

	for _, name := range []string{"Bit_B1", "Bit_B2"} {
		g := groupByName(res, name)
		if g == nil {
			t.Fatalf("group %q missing", name)
		}
		if g.Category != kernel.CatConductor || len(g.Tags) != 1 {
			t.Errorf("group %q = cat %s %d tags, want one conductor surface", name, g.Category, len(g.Tags))
		}
	}
	// Plates stack upward from -H.
	b1 := res.Profile[naming.SemanticName("Bit_B1")]
	b2 := res.Profile[naming.SemanticName("Bit_B2")]
	if len(b1) != 1 || b1[0] != (kernel.Box{XMin: 1, YMin: -1, XMax: 3, YMax: 0}) {
		t.Errorf("B1 profile = %+v", b1)
	}
	if len(b2) != 1 || b2[0] != (kernel.Box{XMin: 1, YMin: 0, XMax: 3, YMax: 1}) {
		t.Errorf("B2 profile = %+v", b2)
	}
}

func TestCompileSupraDoublePancake(t *testing.T) {
	root := geom.NewSupra("S1", [2]float64{1, 2}, [2]float64{0, 1})
	d := root.Data.(geom.SupraData)
	d.Detail = "dp"
	d.NPancakes = 2
	d.IsolationThickness = 0.1
	d.MandrelThickness = 0.2
	root.Data = d

	_, res := mustCompile(t, root, Options{Mode: ModeAxi})

	for _, name := range []string{"S1_P1", "S1_P2"} {
		g := groupByName(res, name)
		if g == nil || g.Category != kernel.CatConductor {
			t.Errorf("group %q = %+v, want conductor", name, g)
		}
	}

	// The mandrel outweighs every isolant layer, so the fuse keeps its
	// name and the isolant names collapse into it.
	g := groupByName(res, "S1_Mandrel")
	if g == nil {
		t.Fatal("group S1_Mandrel missing")
	}
	if g.Category != kernel.CatIsolant || len(g.Tags) != 1 {
		t.Errorf("S1_Mandrel = cat %s %d tags, want one isolant surface", g.Category, len(g.Tags))
	}
	if groupByName(res, "S1_Isolant1") != nil {
		t.Error("S1_Isolant1 survived the fuse")
	}
	if res.Registry.Has("S1_Isolant1") {
		t.Error("registry still holds S1_Isolant1")
	}
}

func TestCompileInsertChannels(t *testing.T) {
	root := geom.NewInsert("I1", 1, 6,
		geom.NewHelix("H1", [2]float64{2, 3}, [2]float64{-2, 2}),
		geom.NewHelix("H2", [2]float64{4, 5}, [2]float64{-2, 2}),
	)
	_, res := mustCompile(t, root, Options{Mode: ModeAxi})

	// Three radial gaps between bore and helices, numbered inward-out.
	want := []struct {
		name string
		box  kernel.Box
	}{
		{"I1_Channel0", kernel.Box{XMin: 1, YMin: -2, XMax: 2, YMax: 2}},
		{"I1_Channel1", kernel.Box{XMin: 3, YMin: -2, XMax: 4, YMax: 2}},
		{"I1_Channel2", kernel.Box{XMin: 5, YMin: -2, XMax: 6, YMax: 2}},
	}
	for _, tt := range want {
		g := groupByName(res, tt.name)
		if g == nil {
			t.Fatalf("group %q missing", tt.name)
		}
		if g.Category != kernel.CatChannel || len(g.Tags) != 1 {
			t.Errorf("%s = cat %s %d tags, want one channel surface", tt.name, g.Category, len(g.Tags))
		}
		boxes := res.Profile[naming.SemanticName(tt.name)]
		if len(boxes) != 1 || boxes[0] != tt.box {
			t.Errorf("%s profile = %+v, want %+v", tt.name, boxes, tt.box)
		}
	}
	for _, name := range []string{"I1_H1", "I1_H2"} {
		if g := groupByName(res, name); g == nil || g.Category != kernel.CatConductor {
			t.Errorf("group %q = %+v, want conductor", name, g)
		}
	}
}

func TestCompileAirRegion(t *testing.T) {
	root := geom.NewHelix("H1", [2]float64{1, 2}, [2]float64{-1, 1})
	_, res := mustCompile(t, root, Options{
		Mode: ModeAxi,
		Air:  &AirOptions{RadialFactor: 2, AxialFactor: 1.5},
	})

	air := groupByName(res, "Air")
	if air == nil {
		t.Fatal("group Air missing")
	}
	if air.Category != kernel.CatAir || len(air.Tags) != 1 {
		t.Errorf("Air = cat %s %d tags, want one air surface", air.Category, len(air.Tags))
	}
	boxes := res.Profile[naming.SemanticName("Air")]
	if len(boxes) != 1 || boxes[0] != (kernel.Box{XMin: 0, YMin: -1.5, XMax: 4, YMax: 1.5}) {
		t.Errorf("Air profile = %+v", boxes)
	}

	axis := groupByName(res, "ZAxis")
	if axis == nil || axis.Category != kernel.CatBoundary || len(axis.Tags) != 1 {
		t.Errorf("ZAxis = %+v, want one boundary curve", axis)
	}
	far := groupByName(res, "Infty")
	if far == nil || far.Category != kernel.CatBoundary || len(far.Tags) != 3 {
		t.Errorf("Infty = %+v, want three boundary curves", far)
	}

	// The conductor keeps its identity through the air fragment.
	if g := groupByName(res, "H1"); g == nil || len(g.Tags) != 1 {
		t.Errorf("H1 = %+v, want one surface", g)
	}
}

func TestCompileMSite(t *testing.T) {
	magnets := map[string]*geom.Node{
		"M1": geom.NewBitters("M1", slittedBitter("B1")),
		"M2": geom.NewHelix("M2", [2]float64{4, 5}, [2]float64{-1, 1}),
	}
	root := geom.NewMSite("Site", "M1", "M2")
	_, res := mustCompile(t, root, Options{Mode: ModeAxi, Magnets: magnets})

	for _, name := range []string{"Site_M1_B1", "Site_M2", "Site_M1_B1_Slit1"} {
		if g := groupByName(res, name); g == nil {
			t.Errorf("group %q missing", name)
		}
	}
}

func TestCompileDeterminism(t *testing.T) {
	run := func() *Result {
		root := geom.NewInsert("I1", 1, 6,
			geom.NewHelix("H1", [2]float64{2, 3}, [2]float64{-2, 2}),
			geom.NewHelix("H2", [2]float64{4, 5}, [2]float64{-2, 2}),
		)
		_, res := mustCompile(t, root, Options{Mode: ModeAxi, Air: &AirOptions{RadialFactor: 2, AxialFactor: 2}})
		return res
	}
	a, b := run(), run()
	if len(a.Groups) != len(b.Groups) {
		t.Fatalf("group counts differ: %d vs %d", len(a.Groups), len(b.Groups))
	}
	for i := range a.Groups {
		ga, gb := a.Groups[i], b.Groups[i]
		if ga.Name != gb.Name || ga.Dim != gb.Dim || ga.Category != gb.Category {
			t.Errorf("group %d differs: %+v vs %+v", i, ga, gb)
		}
		if len(ga.Tags) != len(gb.Tags) {
			t.Errorf("group %q tag counts differ: %d vs %d", ga.Name, len(ga.Tags), len(gb.Tags))
			continue
		}
		for j := range ga.Tags {
			if ga.Tags[j] != gb.Tags[j] {
				t.Errorf("group %q tag %d differs: %d vs %d", ga.Name, j, ga.Tags[j], gb.Tags[j])
			}
		}
	}
}

func TestCompileRejections(t *testing.T) {
	t.Run("invalid geometry", func(t *testing.T) {
		sess := planar.Open("bad")
		defer sess.Close()
		root := geom.NewHelix("H1", [2]float64{2, 1}, [2]float64{0, 1})
		_, err := Compile(sess, root, Options{Mode: ModeAxi})
		ve, ok := err.(geom.ValidationError)
		if !ok || ve.Code != "INVALID_RADII" {
			t.Errorf("Compile error = %v, want INVALID_RADII", err)
		}
	})

	t.Run("bad sector count", func(t *testing.T) {
		sess := planar.Open("bad")
		defer sess.Close()
		root := geom.NewHelix("H1", [2]float64{1, 2}, [2]float64{0, 1})
		_, err := Compile(sess, root, Options{Mode: ModeSector, Sectors: 3})
		ve, ok := err.(geom.ValidationError)
		if !ok || ve.Code != "INVALID_SECTOR" {
			t.Errorf("Compile error = %v, want INVALID_SECTOR", err)
		}
	})

	t.Run("unknown mode", func(t *testing.T) {
		sess := planar.Open("bad")
		defer sess.Close()
		root := geom.NewHelix("H1", [2]float64{1, 2}, [2]float64{0, 1})
		_, err := Compile(sess, root, Options{Mode: Mode(99)})
		ve, ok := err.(geom.ValidationError)
		if !ok || ve.Code != "INVALID_MODE" {
			t.Errorf("Compile error = %v, want INVALID_MODE", err)
		}
	})

	t.Run("nested site", func(t *testing.T) {
		sess := planar.Open("bad")
		defer sess.Close()
		magnets := map[string]*geom.Node{
			"Inner": geom.NewMSite("Inner", "M1"),
			"M1":    geom.NewHelix("M1", [2]float64{1, 2}, [2]float64{0, 1}),
		}
		root := geom.NewMSite("Site", "Inner")
		_, err := Compile(sess, root, Options{Mode: ModeAxi, Magnets: magnets})
		var uk *UnsupportedKindError
		if !errors.As(err, &uk) {
			t.Fatalf("Compile error = %v, want UnsupportedKindError", err)
		}
		if uk.Kind != geom.KindMSite {
			t.Errorf("kind = %s, want msite", uk.Kind)
		}
	})

	t.Run("current lead has no mesh path", func(t *testing.T) {
		sess := planar.Open("bad")
		defer sess.Close()
		root := geom.NewLead("Inner", geom.LeadData{
			R: [2]float64{19.3, 24.2}, H: 480, Inner: true,
		})
		_, err := Compile(sess, root, Options{Mode: ModeAxi})
		var uk *UnsupportedKindError
		if !errors.As(err, &uk) {
			t.Fatalf("Compile error = %v, want UnsupportedKindError", err)
		}
		if uk.Kind != geom.KindLead {
			t.Errorf("kind = %s, want lead", uk.Kind)
		}
	})
}

func TestGenerateMesh(t *testing.T) {
	root := geom.NewBitter("Bit", [2]float64{1, 3}, [2]float64{-1, 1},
		geom.BitterAxi{H: 1, Turns: []float64{20}, Pitch: []float64{0.1}}, nil)
	sess, res := mustCompile(t, root, Options{Mode: ModeAxi})

	policy, err := sizing.NewPolicy(0.5)
	if err != nil {
		t.Fatal(err)
	}
	mesh, err := GenerateMesh(sess, res, policy)
	if err != nil {
		t.Fatalf("GenerateMesh error = %v", err)
	}
	if mesh.IsEmpty() {
		t.Fatal("mesh is empty")
	}

	cond := mesh.GroupByName("Bit")
	if cond == nil {
		t.Fatal("mesh group Bit missing")
	}
	// 2x2 section at lc 0.5: a 4x4 quad grid split into triangles.
	if got := len(mesh.ElementsInGroup(cond.Phys)); got != 32 {
		t.Errorf("conductor elements = %d, want 32", got)
	}
	hp := mesh.GroupByName("Bit_HP")
	if hp == nil {
		t.Fatal("mesh group Bit_HP missing")
	}
	for _, i := range mesh.ElementsInGroup(hp.Phys) {
		if mesh.Elements[i].Type != kernel.ElemLine {
			t.Errorf("element %d in Bit_HP has type %d, want line", i, mesh.Elements[i].Type)
		}
	}
	if got := len(mesh.ElementsInGroup(hp.Phys)); got != 4 {
		t.Errorf("top boundary lines = %d, want 4", got)
	}
}

func TestGenerateMeshRefusesNonAxi(t *testing.T) {
	root := geom.NewHelix("H1", [2]float64{1, 2}, [2]float64{0, 1})
	sess, res := mustCompile(t, root, Options{Mode: ModeSector, Sectors: 2})
	policy, err := sizing.NewPolicy(0.5)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := GenerateMesh(sess, res, policy); err == nil {
		t.Error("GenerateMesh on sector result: error = nil, want refusal")
	}
}
