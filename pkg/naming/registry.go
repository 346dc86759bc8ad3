// Package naming assigns collision-free semantic names to CAD entities and
// tracks the name-to-tag mapping across boolean fragmentation. Registry and
// Lineage are created fresh per compilation and discarded with it; they are
// never shared between compilations.
package naming

import (
	"fmt"
	"strings"
)

// SemanticName is a path-qualified entity name, unique within one compiled
// assembly, e.g. "M1_B2" for the second plate of magnet M1.
type SemanticName string

// CollisionError reports that two independent registrations produced the
// same semantic name. This is an internal invariant violation (the tree
// guarantees unique sibling names), not a user error.
type CollisionError struct {
	Name SemanticName
}

func (e *CollisionError) Error() string {
	return fmt.Sprintf("naming: semantic name %q registered twice", e.Name)
}

// Registry deterministically builds unique semantic names from hierarchical
// path segments.
type Registry struct {
	names map[SemanticName]bool
	order []SemanticName
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{names: make(map[SemanticName]bool)}
}

// Register joins the path components with underscores and records the
// resulting name. Empty components are dropped, so a root magnet with no
// parent prefix registers cleanly. Registering a name twice fails with
// CollisionError.
func (r *Registry) Register(parts ...string) (SemanticName, error) {
	kept := parts[:0:0]
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	if len(kept) == 0 {
		return "", fmt.Errorf("naming: empty path")
	}
	name := SemanticName(strings.Join(kept, "_"))
	if r.names[name] {
		return "", &CollisionError{Name: name}
	}
	r.names[name] = true
	r.order = append(r.order, name)
	return name, nil
}

// Has reports whether the name is registered.
func (r *Registry) Has(name SemanticName) bool {
	return r.names[name]
}

// Names returns all registered names in registration order.
func (r *Registry) Names() []SemanticName {
	return append([]SemanticName(nil), r.order...)
}

// Remove unregisters a name. Used when a fuse collapses several names into
// the surviving operand's.
func (r *Registry) Remove(name SemanticName) {
	if !r.names[name] {
		return
	}
	delete(r.names, name)
	for i, n := range r.order {
		if n == name {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}
