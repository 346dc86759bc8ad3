package kernel

import (
	"bytes"
	"strings"
	"testing"
)

// twoTriangleMesh is a 2x1 rectangle split into two triangles, with one
// boundary line along the bottom edge.
func twoTriangleMesh() *Mesh {
	return &Mesh{
		Name: "strip",
		Nodes: []float64{
			0, 0, 0,
			2, 0, 0,
			2, 1, 0,
			0, 1, 0,
		},
		Elements: []Element{
			{Type: ElemTriangle, Phys: 1, Nodes: []int32{0, 1, 2}},
			{Type: ElemTriangle, Phys: 1, Nodes: []int32{0, 2, 3}},
			{Type: ElemLine, Phys: 2, Nodes: []int32{0, 1}},
		},
		Groups: []MeshGroup{
			{Name: "Cond", Dim: DimSurface, Phys: 1},
			{Name: "Cond_BP", Dim: DimCurve, Phys: 2},
		},
	}
}

func TestWriteReadMSH(t *testing.T) {
	src := twoTriangleMesh()

	var buf bytes.Buffer
	if err := src.WriteMSH(&buf); err != nil {
		t.Fatalf("WriteMSH error = %v", err)
	}

	got, err := ReadMSH(&buf)
	if err != nil {
		t.Fatalf("ReadMSH error = %v", err)
	}

	if got.NodeCount() != src.NodeCount() {
		t.Errorf("NodeCount = %d, want %d", got.NodeCount(), src.NodeCount())
	}
	for i := range src.Nodes {
		if got.Nodes[i] != src.Nodes[i] {
			t.Fatalf("node coordinate %d = %g, want %g", i, got.Nodes[i], src.Nodes[i])
		}
	}
	if got.ElementCount() != src.ElementCount() {
		t.Fatalf("ElementCount = %d, want %d", got.ElementCount(), src.ElementCount())
	}
	for i, el := range src.Elements {
		g := got.Elements[i]
		if g.Type != el.Type || g.Phys != el.Phys {
			t.Errorf("element %d = {%d %d}, want {%d %d}", i, g.Type, g.Phys, el.Type, el.Phys)
		}
		for j := range el.Nodes {
			if g.Nodes[j] != el.Nodes[j] {
				t.Errorf("element %d node %d = %d, want %d", i, j, g.Nodes[j], el.Nodes[j])
			}
		}
	}
	if len(got.Groups) != 2 || got.Groups[0].Name != "Cond" || got.Groups[1].Name != "Cond_BP" {
		t.Errorf("groups = %v, want Cond and Cond_BP", got.Groups)
	}
}

func TestReadMSHRejectsUnsupportedVersion(t *testing.T) {
	src := "$MeshFormat\n4.1 0 8\n$EndMeshFormat\n"
	if _, err := ReadMSH(strings.NewReader(src)); err == nil {
		t.Error("ReadMSH(format 4.1): error = nil, want unsupported version")
	}
}

func TestMeshHelpers(t *testing.T) {
	m := twoTriangleMesh()

	if m.IsEmpty() {
		t.Error("IsEmpty = true for a populated mesh")
	}
	if g := m.GroupByName("Cond_BP"); g == nil || g.Phys != 2 {
		t.Errorf("GroupByName(Cond_BP) = %v, want phys 2", g)
	}
	if g := m.GroupByName("nope"); g != nil {
		t.Errorf("GroupByName(nope) = %v, want nil", g)
	}
	if idx := m.ElementsInGroup(1); len(idx) != 2 {
		t.Errorf("ElementsInGroup(1) = %v, want two triangles", idx)
	}

	clone := m.Clone()
	clone.Nodes[0] = 99
	clone.Elements[0].Nodes[0] = 99
	if m.Nodes[0] == 99 || m.Elements[0].Nodes[0] == 99 {
		t.Error("Clone shares backing storage with the original")
	}
}

func TestElementTypeNodeCounts(t *testing.T) {
	tests := []struct {
		typ  ElementType
		want int
	}{
		{ElemLine, 2},
		{ElemTriangle, 3},
		{ElemQuad, 4},
		{ElemPoint, 1},
		{ElementType(99), 0},
	}
	for _, tt := range tests {
		if got := tt.typ.NodesPerElement(); got != tt.want {
			t.Errorf("NodesPerElement(%d) = %d, want %d", tt.typ, got, tt.want)
		}
	}
}

func TestAncestryLookup(t *testing.T) {
	a := NewAncestry()
	in := Entity{Dim: DimSurface, Tag: 1}
	out := Entity{Dim: DimSurface, Tag: 2}
	a.Record(in, out)
	a.Record(Entity{Dim: DimSurface, Tag: 3}) // participated, consumed

	if outs, ok := a.Lookup(in); !ok || len(outs) != 1 || outs[0] != out {
		t.Errorf("Lookup(in) = (%v, %v), want ([%v], true)", outs, ok, out)
	}
	if outs, ok := a.Lookup(Entity{Dim: DimSurface, Tag: 3}); !ok || len(outs) != 0 {
		t.Errorf("Lookup(consumed) = (%v, %v), want (nil, true)", outs, ok)
	}
	if _, ok := a.Lookup(Entity{Dim: DimSurface, Tag: 4}); ok {
		t.Error("Lookup(stranger) participated = true, want false")
	}
	if ins := a.Inputs(); len(ins) != 2 || ins[0] != in {
		t.Errorf("Inputs = %v, want recording order starting with %v", ins, in)
	}
}
