package interchange

import (
	"errors"
	"strings"
	"testing"

	"github.com/magnettools/magnetmesh/pkg/kernel"
	"github.com/magnettools/magnetmesh/pkg/kernel/planar"
)

// twoRects opens a session holding two unit squares at x 1..2 and 3..4.
func twoRects(t *testing.T) *planar.Session {
	t.Helper()
	sess := planar.Open("reimport")
	t.Cleanup(func() { sess.Close() })
	if _, err := sess.AddRectangle(1, 0, 1, 1); err != nil {
		t.Fatal(err)
	}
	if _, err := sess.AddRectangle(3, 0, 1, 1); err != nil {
		t.Fatal(err)
	}
	return sess
}

func TestParseManifest(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		src := []byte(`{"groups": [
			{"name": "Cond", "dim": 2, "bbox": [1, 0, 2, 1], "required": true},
			{"name": "Channel0", "dim": 2, "bbox": [3, 0, 4, 1], "category": "channel",
			 "centroid": [3.5, 0.5]}
		]}`)
		groups, err := ParseManifest(src)
		if err != nil {
			t.Fatalf("ParseManifest error = %v", err)
		}
		if len(groups) != 2 {
			t.Fatalf("got %d groups, want 2", len(groups))
		}
		if groups[0].Name != "Cond" || !groups[0].Required {
			t.Errorf("groups[0] = %+v", groups[0])
		}
		if groups[1].Category != "channel" || len(groups[1].Centroid) != 2 {
			t.Errorf("groups[1] = %+v", groups[1])
		}
	})
	t.Run("no groups", func(t *testing.T) {
		if _, err := ParseManifest([]byte(`{"groups": []}`)); err == nil {
			t.Error("ParseManifest of empty manifest: error = nil, want failure")
		}
	})
	t.Run("malformed", func(t *testing.T) {
		if _, err := ParseManifest([]byte(`{"groups": `)); err == nil {
			t.Error("ParseManifest of truncated input: error = nil, want failure")
		}
	})
}

func TestReconcileByBox(t *testing.T) {
	sess := twoRects(t)
	groups := []Group{
		{Name: "Cond", Dim: kernel.DimSurface, BBox: [4]float64{1, 0, 2, 1}, Required: true},
		{Name: "Channel0", Dim: kernel.DimSurface, BBox: [4]float64{3, 0, 4, 1}, Category: "channel"},
	}
	res, err := Reconcile(sess, groups, Options{})
	if err != nil {
		t.Fatalf("Reconcile error = %v", err)
	}
	if len(res.Warnings) != 0 {
		t.Errorf("warnings = %v, want none", res.Warnings)
	}
	if len(res.Groups) != 2 {
		t.Fatalf("got %d groups, want 2", len(res.Groups))
	}
	if res.Groups[0].Name != "Cond" || res.Groups[0].Category != kernel.CatConductor {
		t.Errorf("groups[0] = %+v", res.Groups[0])
	}
	if res.Groups[1].Category != kernel.CatChannel || len(res.Groups[1].Tags) != 1 {
		t.Errorf("groups[1] = %+v", res.Groups[1])
	}
	// The session side mirrors the resolution.
	if got := sess.PhysicalGroups(); len(got) != 2 {
		t.Errorf("session groups = %+v, want 2", got)
	}
}

func TestReconcileCentroidDisambiguation(t *testing.T) {
	sess := twoRects(t)
	// The box covers both squares; the centroid picks the right one.
	groups := []Group{{
		Name: "Channel0", Dim: kernel.DimSurface,
		BBox:     [4]float64{0, 0, 5, 1},
		Centroid: []float64{3.5, 0.5},
		Required: true,
	}}
	res, err := Reconcile(sess, groups, Options{})
	if err != nil {
		t.Fatalf("Reconcile error = %v", err)
	}
	if len(res.Groups) != 1 || len(res.Groups[0].Tags) != 1 {
		t.Fatalf("groups = %+v, want one single-tag group", res.Groups)
	}
	x, _, err := sess.CenterOfMass(kernel.Entity{Dim: kernel.DimSurface, Tag: res.Groups[0].Tags[0]})
	if err != nil {
		t.Fatal(err)
	}
	if x != 3.5 {
		t.Errorf("matched centroid x = %g, want 3.5", x)
	}
}

func TestReconcileRequiredFailureRegistersNothing(t *testing.T) {
	sess := twoRects(t)
	groups := []Group{
		{Name: "Cond", Dim: kernel.DimSurface, BBox: [4]float64{1, 0, 2, 1}},
		{Name: "Ghost", Dim: kernel.DimSurface, BBox: [4]float64{10, 10, 11, 11}, Required: true},
	}
	_, err := Reconcile(sess, groups, Options{})
	var gre *GroupResolutionError
	if !errors.As(err, &gre) {
		t.Fatalf("Reconcile error = %v, want GroupResolutionError", err)
	}
	if gre.Name != "Ghost" {
		t.Errorf("failed group = %q, want Ghost", gre.Name)
	}
	// Even the matchable group must not have been registered.
	if got := sess.PhysicalGroups(); len(got) != 0 {
		t.Errorf("session groups = %+v, want none", got)
	}
}

func TestReconcileOptionalFailureWarns(t *testing.T) {
	sess := twoRects(t)
	groups := []Group{
		{Name: "Cond", Dim: kernel.DimSurface, BBox: [4]float64{1, 0, 2, 1}},
		{Name: "Ghost", Dim: kernel.DimSurface, BBox: [4]float64{10, 10, 11, 11}},
		{Name: "Far", Dim: kernel.DimSurface, BBox: [4]float64{0, 0, 5, 1},
			Centroid: []float64{100, 100}},
	}
	res, err := Reconcile(sess, groups, Options{})
	if err != nil {
		t.Fatalf("Reconcile error = %v", err)
	}
	if len(res.Groups) != 1 || res.Groups[0].Name != "Cond" {
		t.Fatalf("groups = %+v, want only Cond", res.Groups)
	}
	if len(res.Warnings) != 2 {
		t.Fatalf("warnings = %v, want 2", res.Warnings)
	}
	for _, w := range res.Warnings {
		if !strings.Contains(w, "skipped") {
			t.Errorf("warning %q lacks skip reason", w)
		}
	}
}

func TestMesh(t *testing.T) {
	t.Run("refuses empty resolution", func(t *testing.T) {
		sess := twoRects(t)
		if _, err := Mesh(sess, nil); err == nil {
			t.Error("Mesh(nil): error = nil, want refusal")
		}
		if _, err := Mesh(sess, &Resolution{}); err == nil {
			t.Error("Mesh(empty): error = nil, want refusal")
		}
	})

	t.Run("meshes reconciled groups", func(t *testing.T) {
		sess := twoRects(t)
		sess.SetDefaultMeshSize(0.5)
		groups := []Group{
			{Name: "Cond", Dim: kernel.DimSurface, BBox: [4]float64{1, 0, 2, 1}, Required: true},
			{Name: "Channel0", Dim: kernel.DimSurface, BBox: [4]float64{3, 0, 4, 1}, Category: "channel"},
		}
		res, err := Reconcile(sess, groups, Options{})
		if err != nil {
			t.Fatalf("Reconcile error = %v", err)
		}
		mesh, err := Mesh(sess, res)
		if err != nil {
			t.Fatalf("Mesh error = %v", err)
		}
		if mesh.IsEmpty() {
			t.Fatal("mesh is empty")
		}
		for _, name := range []string{"Cond", "Channel0"} {
			if mesh.GroupByName(name) == nil {
				t.Errorf("mesh group %q missing", name)
			}
		}
	})
}
