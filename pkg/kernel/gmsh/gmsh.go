//go:build gmsh

// Package gmsh binds the kernel.Session interface to the Gmsh C API
// (https://gmsh.info), using the OpenCASCADE factory for construction and
// booleans. It requires the gmsh shared library and headers.
//
// Build with: go build -tags=gmsh
package gmsh

/*
#cgo CFLAGS: -I/usr/local/include
#cgo LDFLAGS: -L/usr/local/lib -lgmsh

#include <stdlib.h>
#include <gmshc.h>
*/
import "C"

import (
	"fmt"
	"os"
	"path/filepath"
	"unsafe"

	"github.com/magnettools/magnetmesh/pkg/kernel"
)

// Compile-time interface check.
var _ kernel.Session = (*Session)(nil)

// Session drives one gmsh model. Gmsh keeps global state, so at most one
// session may be open per process.
type Session struct {
	name     string
	groups   []kernel.PhysicalGroup
	closed   bool
	poisoned bool
}

// Open initializes gmsh and creates a named model.
func Open(name string) (kernel.Session, error) {
	var ierr C.int
	C.gmshInitialize(0, nil, 1, 0, &ierr)
	if ierr != 0 {
		return nil, fmt.Errorf("gmsh: initialize failed (code %d)", int(ierr))
	}
	cname := C.CString(name)
	defer C.free(unsafe.Pointer(cname))
	C.gmshModelAdd(cname, &ierr)
	if ierr != 0 {
		C.gmshFinalize(&ierr)
		return nil, fmt.Errorf("gmsh: model add failed (code %d)", int(ierr))
	}
	// The rotation pipeline and the MSH reader speak format 2.2.
	copt := C.CString("Mesh.MshFileVersion")
	defer C.free(unsafe.Pointer(copt))
	C.gmshOptionSetNumber(copt, 2.2, &ierr)
	return &Session{name: name}, nil
}

func (s *Session) check() error {
	if s.closed {
		return kernel.ErrSessionClosed
	}
	if s.poisoned {
		return kernel.ErrSessionPoisoned
	}
	return nil
}

// fail poisons the session and wraps the fault.
func (s *Session) fail(op string, err error) error {
	s.poisoned = true
	return &kernel.OperationError{Op: op, Err: err}
}

// ierrOf converts a gmsh error code.
func ierrOf(op string, ierr C.int) error {
	return fmt.Errorf("%s: gmsh error code %d", op, int(ierr))
}

func (s *Session) AddPoint(x, y float64) (kernel.Tag, error) {
	if err := s.check(); err != nil {
		return 0, err
	}
	var ierr C.int
	tag := C.gmshModelOccAddPoint(C.double(x), C.double(y), 0, 0, -1, &ierr)
	if ierr != 0 {
		return 0, s.fail("addPoint", ierrOf("addPoint", ierr))
	}
	return kernel.Tag(tag), nil
}

func (s *Session) AddLine(a, b kernel.Tag) (kernel.Tag, error) {
	if err := s.check(); err != nil {
		return 0, err
	}
	var ierr C.int
	tag := C.gmshModelOccAddLine(C.int(a), C.int(b), -1, &ierr)
	if ierr != 0 {
		return 0, s.fail("addLine", ierrOf("addLine", ierr))
	}
	return kernel.Tag(tag), nil
}

func (s *Session) AddRectangle(x, y, dx, dy float64) (kernel.Tag, error) {
	if err := s.check(); err != nil {
		return 0, err
	}
	var ierr C.int
	tag := C.gmshModelOccAddRectangle(C.double(x), C.double(y), 0,
		C.double(dx), C.double(dy), -1, 0, &ierr)
	if ierr != 0 {
		return 0, s.fail("addRectangle", ierrOf("addRectangle", ierr))
	}
	s.synchronize()
	return kernel.Tag(tag), nil
}

func (s *Session) synchronize() {
	var ierr C.int
	C.gmshModelOccSynchronize(&ierr)
}

// dimTags flattens entities into gmsh (dim, tag) pairs.
func dimTags(ents []kernel.Entity) []C.int {
	out := make([]C.int, 0, len(ents)*2)
	for _, e := range ents {
		out = append(out, C.int(e.Dim), C.int(e.Tag))
	}
	return out
}

func (s *Session) Fuse(objects, tools []kernel.Entity) ([]kernel.Entity, *kernel.Ancestry, error) {
	return s.boolean("fuse", objects, tools, func(obj, tool []C.int, out *booleanOut, ierr *C.int) {
		C.gmshModelOccFuse(cints(obj), C.size_t(len(obj)), cints(tool), C.size_t(len(tool)),
			&out.dimTags, &out.dimTagsN, &out.m, &out.mN, &out.mNN, -1, 1, 1, ierr)
	})
}

func (s *Session) Cut(objects, tools []kernel.Entity) ([]kernel.Entity, *kernel.Ancestry, error) {
	return s.boolean("cut", objects, tools, func(obj, tool []C.int, out *booleanOut, ierr *C.int) {
		C.gmshModelOccCut(cints(obj), C.size_t(len(obj)), cints(tool), C.size_t(len(tool)),
			&out.dimTags, &out.dimTagsN, &out.m, &out.mN, &out.mNN, -1, 1, 1, ierr)
	})
}

func (s *Session) Fragment(objects, tools []kernel.Entity) ([]kernel.Entity, *kernel.Ancestry, error) {
	return s.boolean("fragment", objects, tools, func(obj, tool []C.int, out *booleanOut, ierr *C.int) {
		C.gmshModelOccFragment(cints(obj), C.size_t(len(obj)), cints(tool), C.size_t(len(tool)),
			&out.dimTags, &out.dimTagsN, &out.m, &out.mN, &out.mNN, -1, 1, 1, ierr)
	})
}

// booleanOut mirrors the out-params of the occ boolean calls: the result
// dim-tags plus the per-input ancestry map.
type booleanOut struct {
	dimTags  *C.int
	dimTagsN C.size_t
	m        **C.int
	mN       *C.size_t
	mNN      C.size_t
}

func cints(v []C.int) *C.int {
	if len(v) == 0 {
		return nil
	}
	return &v[0]
}

func (s *Session) boolean(op string, objects, tools []kernel.Entity,
	call func(obj, tool []C.int, out *booleanOut, ierr *C.int)) ([]kernel.Entity, *kernel.Ancestry, error) {
	if err := s.check(); err != nil {
		return nil, nil, err
	}
	obj := dimTags(objects)
	tool := dimTags(tools)

	var out booleanOut
	var ierr C.int
	call(obj, tool, &out, &ierr)
	if ierr != 0 {
		return nil, nil, s.fail(op, ierrOf(op, ierr))
	}
	defer C.gmshFree(unsafe.Pointer(out.dimTags))

	outs := entitiesOf(out.dimTags, out.dimTagsN)

	anc := kernel.NewAncestry()
	inputs := append(append([]kernel.Entity(nil), objects...), tools...)
	maps := unsafe.Slice(out.m, int(out.mNN))
	lens := unsafe.Slice(out.mN, int(out.mNN))
	for i, in := range inputs {
		if i >= int(out.mNN) {
			break
		}
		derived := entitiesOf(maps[i], lens[i])
		anc.Record(in, derived...)
		C.gmshFree(unsafe.Pointer(maps[i]))
	}
	C.gmshFree(unsafe.Pointer(out.m))
	C.gmshFree(unsafe.Pointer(out.mN))

	s.synchronize()
	return outs, anc, nil
}

// entitiesOf converts a flat C dim-tag array.
func entitiesOf(p *C.int, n C.size_t) []kernel.Entity {
	if p == nil || n == 0 {
		return nil
	}
	flat := unsafe.Slice(p, int(n))
	ents := make([]kernel.Entity, 0, len(flat)/2)
	for i := 0; i+1 < len(flat); i += 2 {
		ents = append(ents, kernel.Entity{Dim: kernel.Dim(flat[i]), Tag: kernel.Tag(flat[i+1])})
	}
	return ents
}

func (s *Session) BoundingBoxOf(e kernel.Entity) (kernel.Box, error) {
	if err := s.check(); err != nil {
		return kernel.Box{}, err
	}
	var xmin, ymin, zmin, xmax, ymax, zmax C.double
	var ierr C.int
	C.gmshModelGetBoundingBox(C.int(e.Dim), C.int(e.Tag),
		&xmin, &ymin, &zmin, &xmax, &ymax, &zmax, &ierr)
	if ierr != 0 {
		return kernel.Box{}, s.fail("boundingBox", ierrOf("boundingBox", ierr))
	}
	return kernel.Box{
		XMin: float64(xmin), YMin: float64(ymin),
		XMax: float64(xmax), YMax: float64(ymax),
	}, nil
}

func (s *Session) CenterOfMass(e kernel.Entity) (float64, float64, error) {
	if err := s.check(); err != nil {
		return 0, 0, err
	}
	var x, y, z C.double
	var ierr C.int
	C.gmshModelOccGetCenterOfMass(C.int(e.Dim), C.int(e.Tag), &x, &y, &z, &ierr)
	if ierr != 0 {
		return 0, 0, s.fail("centerOfMass", ierrOf("centerOfMass", ierr))
	}
	return float64(x), float64(y), nil
}

func (s *Session) Mass(e kernel.Entity) (float64, error) {
	if err := s.check(); err != nil {
		return 0, err
	}
	var mass C.double
	var ierr C.int
	C.gmshModelOccGetMass(C.int(e.Dim), C.int(e.Tag), &mass, &ierr)
	if ierr != 0 {
		return 0, s.fail("mass", ierrOf("mass", ierr))
	}
	return float64(mass), nil
}

func (s *Session) EntitiesInBox(b kernel.Box, dim kernel.Dim) ([]kernel.Entity, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	var p *C.int
	var n C.size_t
	var ierr C.int
	C.gmshModelGetEntitiesInBoundingBox(
		C.double(b.XMin), C.double(b.YMin), -1e-9,
		C.double(b.XMax), C.double(b.YMax), 1e-9,
		&p, &n, C.int(dim), &ierr)
	if ierr != 0 {
		return nil, s.fail("entitiesInBox", ierrOf("entitiesInBox", ierr))
	}
	defer C.gmshFree(unsafe.Pointer(p))
	return entitiesOf(p, n), nil
}

func (s *Session) AddPhysicalGroup(dim kernel.Dim, tags []kernel.Tag, name string) (kernel.Tag, error) {
	if err := s.check(); err != nil {
		return 0, err
	}
	ctags := make([]C.int, len(tags))
	for i, t := range tags {
		ctags[i] = C.int(t)
	}
	cname := C.CString(name)
	defer C.free(unsafe.Pointer(cname))
	var ierr C.int
	phys := C.gmshModelAddPhysicalGroup(C.int(dim), cints(ctags), C.size_t(len(ctags)), -1, cname, &ierr)
	if ierr != 0 {
		return 0, s.fail("addPhysicalGroup", ierrOf("addPhysicalGroup", ierr))
	}
	s.groups = append(s.groups, kernel.PhysicalGroup{Name: name, Dim: dim, Tags: tags})
	return kernel.Tag(phys), nil
}

func (s *Session) PhysicalGroups() []kernel.PhysicalGroup {
	return append([]kernel.PhysicalGroup(nil), s.groups...)
}

func (s *Session) SetMeshSize(e kernel.Entity, lc float64) error {
	if err := s.check(); err != nil {
		return err
	}
	// Sizes attach to the corner points of the entity.
	var p *C.int
	var n C.size_t
	var ierr C.int
	C.gmshModelGetBoundary((*C.int)(unsafe.Pointer(&[2]C.int{C.int(e.Dim), C.int(e.Tag)})), 2,
		&p, &n, 0, 0, 1, &ierr)
	if ierr != 0 {
		return s.fail("setMeshSize", ierrOf("setMeshSize", ierr))
	}
	defer C.gmshFree(unsafe.Pointer(p))
	C.gmshModelMeshSetSize(p, n, C.double(lc), &ierr)
	if ierr != 0 {
		return s.fail("setMeshSize", ierrOf("setMeshSize", ierr))
	}
	return nil
}

// Generate meshes the model up to the given dimension and reads the
// result back through the MSH representation.
func (s *Session) Generate(dim kernel.Dim) (*kernel.Mesh, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	var ierr C.int
	C.gmshModelMeshGenerate(C.int(dim), &ierr)
	if ierr != 0 {
		return nil, s.fail("generate", ierrOf("generate", ierr))
	}

	tmp, err := os.CreateTemp("", "magnetmesh-*.msh")
	if err != nil {
		return nil, s.fail("generate", err)
	}
	path := tmp.Name()
	tmp.Close()
	defer os.Remove(path)

	cpath := C.CString(path)
	defer C.free(unsafe.Pointer(cpath))
	C.gmshWrite(cpath, &ierr)
	if ierr != 0 {
		return nil, s.fail("generate", ierrOf("write", ierr))
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, s.fail("generate", err)
	}
	defer f.Close()
	mesh, err := kernel.ReadMSH(f)
	if err != nil {
		return nil, s.fail("generate", err)
	}
	mesh.Name = filepath.Base(s.name)
	return mesh, nil
}

func (s *Session) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	var ierr C.int
	C.gmshFinalize(&ierr)
	if ierr != 0 {
		return ierrOf("close", ierr)
	}
	return nil
}
