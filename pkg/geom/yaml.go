package geom

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// document is the on-disk YAML shape of a geometry node. The kind field
// selects which of the remaining fields are meaningful.
type document struct {
	Kind string `yaml:"kind"`
	Name string `yaml:"name"`

	R            []float64 `yaml:"r,omitempty"`
	Z            []float64 `yaml:"z,omitempty"`
	Axi          BitterAxi `yaml:"axi,omitempty"`
	CoolingSlits []float64 `yaml:"coolingslits,omitempty"`
	HighPressure bool      `yaml:"hp,omitempty"`

	InnerBore float64 `yaml:"innerbore,omitempty"`
	OuterBore float64 `yaml:"outerbore,omitempty"`

	H       float64   `yaml:"h,omitempty"`
	Inner   bool      `yaml:"inner,omitempty"`
	Holes   []float64 `yaml:"holes,omitempty"`
	Bar     []float64 `yaml:"bar,omitempty"`
	Support []float64 `yaml:"support,omitempty"`
	Fillet  bool      `yaml:"fillet,omitempty"`

	Detail             string  `yaml:"detail,omitempty"`
	NPancakes          int     `yaml:"npancakes,omitempty"`
	IsolationThickness float64 `yaml:"isolation,omitempty"`
	MandrelThickness   float64 `yaml:"mandrel,omitempty"`

	Helices  []document `yaml:"helices,omitempty"`
	Rings    []document `yaml:"rings,omitempty"`
	Children []document `yaml:"children,omitempty"`
	Magnets  []string   `yaml:"magnets,omitempty"`
}

// Load decodes a geometry document into a node tree. The document format
// mirrors the magnet description files: one kind-tagged mapping per node,
// assemblies nesting their children.
func Load(data []byte) (*Node, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("geom: %w", err)
	}
	return doc.toNode("")
}

func (d *document) toNode(parent string) (*Node, error) {
	path := d.Name
	if parent != "" {
		path = parent + "/" + d.Name
	}

	pair := func(vals []float64, field string) ([2]float64, error) {
		if len(vals) != 2 {
			return [2]float64{}, ValidationError{
				Code:    "INVALID_DOCUMENT",
				Message: fmt.Sprintf("%s wants 2 values, got %d", field, len(vals)),
				Path:    path,
			}
		}
		return [2]float64{vals[0], vals[1]}, nil
	}

	switch d.Kind {
	case "bitter":
		r, err := pair(d.R, "r")
		if err != nil {
			return nil, err
		}
		z, err := pair(d.Z, "z")
		if err != nil {
			return nil, err
		}
		return NewBitter(d.Name, r, z, d.Axi, d.CoolingSlits), nil

	case "helix":
		r, err := pair(d.R, "r")
		if err != nil {
			return nil, err
		}
		z, err := pair(d.Z, "z")
		if err != nil {
			return nil, err
		}
		return NewHelix(d.Name, r, z), nil

	case "supra":
		r, err := pair(d.R, "r")
		if err != nil {
			return nil, err
		}
		z, err := pair(d.Z, "z")
		if err != nil {
			return nil, err
		}
		n := NewSupra(d.Name, r, z)
		sd := n.Data.(SupraData)
		sd.Detail = d.Detail
		sd.NPancakes = d.NPancakes
		sd.IsolationThickness = d.IsolationThickness
		sd.MandrelThickness = d.MandrelThickness
		n.Data = sd
		return n, nil

	case "ring":
		r, err := pair(d.R, "r")
		if err != nil {
			return nil, err
		}
		z, err := pair(d.Z, "z")
		if err != nil {
			return nil, err
		}
		return NewRing(d.Name, r, z, d.HighPressure), nil

	case "screen":
		r, err := pair(d.R, "r")
		if err != nil {
			return nil, err
		}
		z, err := pair(d.Z, "z")
		if err != nil {
			return nil, err
		}
		return NewScreen(d.Name, r, z), nil

	case "lead":
		r, err := pair(d.R, "r")
		if err != nil {
			return nil, err
		}
		return NewLead(d.Name, LeadData{
			R: r, H: d.H, Inner: d.Inner,
			Holes: d.Holes, Bar: d.Bar, Support: d.Support, Fillet: d.Fillet,
		}), nil

	case "insert":
		// Helices and rings interleave in construction order: the ring
		// after helix i joins helices i and i+1.
		var children []*Node
		for i := range d.Helices {
			h, err := d.Helices[i].toNode(path)
			if err != nil {
				return nil, err
			}
			children = append(children, h)
			if i < len(d.Rings) {
				rg, err := d.Rings[i].toNode(path)
				if err != nil {
					return nil, err
				}
				children = append(children, rg)
			}
		}
		return NewInsert(d.Name, d.InnerBore, d.OuterBore, children...), nil

	case "bitters", "supras":
		var children []*Node
		for i := range d.Children {
			c, err := d.Children[i].toNode(path)
			if err != nil {
				return nil, err
			}
			children = append(children, c)
		}
		if d.Kind == "bitters" {
			return NewBitters(d.Name, children...), nil
		}
		return NewSupras(d.Name, children...), nil

	case "msite":
		return NewMSite(d.Name, d.Magnets...), nil

	default:
		return nil, ValidationError{
			Code:    "UNKNOWN_KIND",
			Message: fmt.Sprintf("unknown kind %q", d.Kind),
			Path:    path,
		}
	}
}
