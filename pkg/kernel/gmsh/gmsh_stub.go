//go:build !gmsh

// Package gmsh binds the kernel.Session interface to the Gmsh C API.
// When the "gmsh" build tag is not set, this stub is compiled instead and
// Open returns an error.
//
// Build with: go build -tags=gmsh
package gmsh

import (
	"errors"

	"github.com/magnettools/magnetmesh/pkg/kernel"
)

// Open returns an error indicating the gmsh binding is not available.
// Build with -tags=gmsh to enable.
func Open(name string) (kernel.Session, error) {
	return nil, errors.New("gmsh kernel not available: build with -tags=gmsh")
}
