// Package sizing resolves per-surface target element sizes from a layered
// override hierarchy: specific surface > component path > global default.
// The policy is purely functional; it is consulted once per surface before
// mesh generation is triggered on the kernel.
package sizing

import (
	"fmt"
	"strings"

	"github.com/magnettools/magnetmesh/pkg/geom"
)

// Scope is the specificity level of a sizing rule.
type Scope int

const (
	ScopeGlobal  Scope = iota // fallback for every surface
	ScopePath                 // component path prefix, e.g. "M1" or "M1_B2"
	ScopeSurface              // one specific surface id
)

func (s Scope) String() string {
	switch s {
	case ScopeGlobal:
		return "global"
	case ScopePath:
		return "path"
	case ScopeSurface:
		return "surface"
	default:
		return "unknown"
	}
}

// Rule assigns a target element length to a scope. Target is the component
// path for ScopePath, the surface id for ScopeSurface, and ignored for
// ScopeGlobal.
type Rule struct {
	Scope  Scope
	Target string
	Length float64
}

// Policy holds the registered rules. Resolution order: specific surface
// first, then the longest matching component-path prefix, then the global
// default. Among path rules of equal length the last registered wins.
type Policy struct {
	global  float64
	surface map[string]float64
	paths   []Rule // registration order preserved
}

// NewPolicy creates a policy with the given global default length.
func NewPolicy(defaultLength float64) (*Policy, error) {
	if defaultLength <= 0 {
		return nil, geom.ValidationError{
			Code:    "INVALID_SIZING",
			Message: fmt.Sprintf("global default length %g is not positive", defaultLength),
		}
	}
	return &Policy{
		global:  defaultLength,
		surface: make(map[string]float64),
	}, nil
}

// Register adds a rule. Non-positive lengths are rejected here, at
// registration time, so malformed external rule sets fail fast rather
// than at resolution.
func (p *Policy) Register(r Rule) error {
	if r.Length <= 0 {
		return geom.ValidationError{
			Code:    "INVALID_SIZING",
			Message: fmt.Sprintf("rule length %g is not positive", r.Length),
			Path:    r.Target,
		}
	}
	switch r.Scope {
	case ScopeGlobal:
		p.global = r.Length
	case ScopeSurface:
		if r.Target == "" {
			return geom.ValidationError{Code: "INVALID_SIZING", Message: "surface rule without target"}
		}
		p.surface[r.Target] = r.Length // last registration wins
	case ScopePath:
		if r.Target == "" {
			return geom.ValidationError{Code: "INVALID_SIZING", Message: "path rule without target"}
		}
		p.paths = append(p.paths, r)
	default:
		return geom.ValidationError{
			Code:    "INVALID_SIZING",
			Message: fmt.Sprintf("unknown scope %d", r.Scope),
		}
	}
	return nil
}

// Resolve returns the target element length for a surface. The result is
// always positive and depends only on the registered rule set, so repeated
// resolution of the same surface is stable.
func (p *Policy) Resolve(surfaceID, componentPath string) float64 {
	if lc, ok := p.surface[surfaceID]; ok {
		return lc
	}
	best := -1
	bestLen := -1
	for i, r := range p.paths {
		if !pathMatches(r.Target, componentPath) {
			continue
		}
		// Longest prefix wins; later registration wins ties.
		if len(r.Target) >= bestLen {
			best, bestLen = i, len(r.Target)
		}
	}
	if best >= 0 {
		return p.paths[best].Length
	}
	return p.global
}

// pathMatches reports whether target is componentPath or one of its
// ancestors on underscore boundaries.
func pathMatches(target, path string) bool {
	return path == target || strings.HasPrefix(path, target+"_")
}
