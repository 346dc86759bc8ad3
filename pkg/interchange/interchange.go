// Package interchange reconciles named groups read from an interchange
// manifest against a kernel session that reimported the geometry. Kernel
// tags are not stable across reimport, so groups are relocated by
// geometry: bounding box first, centroid to disambiguate.
package interchange

import (
	"fmt"
	"math"

	"github.com/goccy/go-json"

	"github.com/magnettools/magnetmesh/pkg/kernel"
)

// Group is one named region from an interchange manifest. BBox locates
// the region; Centroid disambiguates when several entities fall inside
// the box. Required groups must resolve for meshing to proceed.
type Group struct {
	Name     string     `json:"name"`
	Dim      kernel.Dim `json:"dim"`
	BBox     [4]float64 `json:"bbox"` // xmin, ymin, xmax, ymax
	Centroid []float64  `json:"centroid,omitempty"`
	Category string     `json:"category,omitempty"`
	Required bool       `json:"required,omitempty"`
}

// manifest is the on-disk JSON layout.
type manifest struct {
	Groups []Group `json:"groups"`
}

// ParseManifest decodes an interchange manifest.
func ParseManifest(data []byte) ([]Group, error) {
	var m manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("interchange: parse manifest: %w", err)
	}
	if len(m.Groups) == 0 {
		return nil, fmt.Errorf("interchange: manifest contains no groups")
	}
	return m.Groups, nil
}

// Options tunes the reconciliation.
type Options struct {
	// Tolerance inflates the locator boxes and bounds the accepted
	// centroid distance. Zero means DefaultTolerance.
	Tolerance float64
}

// DefaultTolerance absorbs kernel round-trip noise without ever crossing
// a real geometric feature.
const DefaultTolerance = 1e-6

// GroupResolutionError reports a required group that could not be matched
// to any kernel entity. Fatal: no mesh may be generated from a session
// with unresolved required groups.
type GroupResolutionError struct {
	Name   string
	Reason string
}

func (e *GroupResolutionError) Error() string {
	return fmt.Sprintf("interchange: required group %q unresolved: %s", e.Name, e.Reason)
}

// Resolution is the outcome of a reconciliation: the rebuilt physical
// groups and a warning per skipped optional group.
type Resolution struct {
	Groups   []kernel.PhysicalGroup
	Warnings []string
}

// Reconcile matches every manifest group against the session and rebuilds
// the kernel physical groups. Optional groups that fail to match are
// reported as warnings; a required failure aborts with
// GroupResolutionError before any group is registered.
func Reconcile(sess kernel.Session, groups []Group, opts Options) (*Resolution, error) {
	tol := opts.Tolerance
	if tol == 0 {
		tol = DefaultTolerance
	}

	type match struct {
		group Group
		ents  []kernel.Entity
	}
	var matches []match
	res := &Resolution{}

	for _, g := range groups {
		ents, reason, err := locate(sess, g, tol)
		if err != nil {
			return nil, err
		}
		if len(ents) == 0 {
			if g.Required {
				return nil, &GroupResolutionError{Name: g.Name, Reason: reason}
			}
			res.Warnings = append(res.Warnings,
				fmt.Sprintf("optional group %q skipped: %s", g.Name, reason))
			continue
		}
		matches = append(matches, match{g, ents})
	}

	for _, m := range matches {
		var tags []kernel.Tag
		for _, ent := range m.ents {
			tags = append(tags, ent.Tag)
		}
		if _, err := sess.AddPhysicalGroup(m.group.Dim, tags, m.group.Name); err != nil {
			return nil, &kernel.OperationError{Op: "addPhysicalGroup", Name: m.group.Name, Err: err}
		}
		res.Groups = append(res.Groups, kernel.PhysicalGroup{
			Name:     m.group.Name,
			Dim:      m.group.Dim,
			Category: categoryOf(m.group.Category),
			Tags:     tags,
		})
	}
	return res, nil
}

// locate finds the session entities for one group. With a centroid the
// nearest in-box candidate within tolerance wins; without one, every
// in-box candidate belongs to the group.
func locate(sess kernel.Session, g Group, tol float64) ([]kernel.Entity, string, error) {
	box := kernel.Box{XMin: g.BBox[0], YMin: g.BBox[1], XMax: g.BBox[2], YMax: g.BBox[3]}
	candidates, err := sess.EntitiesInBox(box.Inflate(tol), g.Dim)
	if err != nil {
		return nil, "", &kernel.OperationError{Op: "entitiesInBox", Name: g.Name, Err: err}
	}
	if len(candidates) == 0 {
		return nil, "no entities inside locator box", nil
	}
	if len(g.Centroid) != 2 {
		return candidates, "", nil
	}

	best := -1
	bestDist := math.Inf(1)
	for i, ent := range candidates {
		x, y, err := sess.CenterOfMass(ent)
		if err != nil {
			return nil, "", &kernel.OperationError{Op: "centerOfMass", Name: g.Name, Err: err}
		}
		d := math.Hypot(x-g.Centroid[0], y-g.Centroid[1])
		if d < bestDist {
			bestDist = d
			best = i
		}
	}
	if bestDist > tol {
		return nil, fmt.Sprintf("nearest centroid off by %g", bestDist), nil
	}
	return []kernel.Entity{candidates[best]}, "", nil
}

// Mesh generates the surface mesh after a successful reconciliation.
func Mesh(sess kernel.Session, res *Resolution) (*kernel.Mesh, error) {
	if res == nil || len(res.Groups) == 0 {
		return nil, fmt.Errorf("interchange: nothing reconciled, refusing to mesh")
	}
	return sess.Generate(kernel.DimSurface)
}

// categoryOf maps a manifest category label to the kernel category.
// Unknown labels fall back to conductor, the most common region kind.
func categoryOf(label string) kernel.GroupCategory {
	switch label {
	case "channel":
		return kernel.CatChannel
	case "isolant":
		return kernel.CatIsolant
	case "structure":
		return kernel.CatStructure
	case "boundary":
		return kernel.CatBoundary
	case "air":
		return kernel.CatAir
	default:
		return kernel.CatConductor
	}
}
