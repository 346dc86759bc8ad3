package geom

// ---------------------------------------------------------------------------
// Conductors
// ---------------------------------------------------------------------------

// BitterAxi describes the axial build of a Bitter plate stack: the stack
// spans [-H, -H + sum(turns*pitch)] and each (turns, pitch) pair is one
// plate section.
type BitterAxi struct {
	H     float64   `yaml:"h"`
	Turns []float64 `yaml:"turns"`
	Pitch []float64 `yaml:"pitch"`
}

// BitterData is a radially cooled Bitter magnet: an annular cross-section
// [R0,R1] x [Z0,Z1] split axially per Axi section and radially by cooling
// slits.
type BitterData struct {
	R            [2]float64 `yaml:"r"`
	Z            [2]float64 `yaml:"z"`
	Axi          BitterAxi  `yaml:"axi"`
	CoolingSlits []float64  `yaml:"coolingslits,omitempty"` // slit radii, R0 < r < R1
}

func (BitterData) nodeData() {}

// HelixData is one polyhelix conductor cross-section.
type HelixData struct {
	R [2]float64 `yaml:"r"`
	Z [2]float64 `yaml:"z"`
}

func (HelixData) nodeData() {}

// SupraData is a superconducting coil cross-section. With Detail set to
// "dp" the coil is built as NPancakes double pancakes separated by isolant
// layers of IsolationThickness, plus an optional inner mandrel isolant of
// radial thickness MandrelThickness fused with the layer stack.
type SupraData struct {
	R [2]float64 `yaml:"r"`
	Z [2]float64 `yaml:"z"`

	Detail             string  `yaml:"detail,omitempty"` // "" or "none": monolithic, "dp": double pancakes
	NPancakes          int     `yaml:"npancakes,omitempty"`
	IsolationThickness float64 `yaml:"isolation,omitempty"`
	MandrelThickness   float64 `yaml:"mandrel,omitempty"`
}

func (SupraData) nodeData() {}

// PancakeHeight returns the axial height of one pancake under "dp" detail.
func (d SupraData) PancakeHeight() float64 {
	if d.NPancakes < 1 {
		return 0
	}
	total := d.Z[1] - d.Z[0] - float64(d.NPancakes-1)*d.IsolationThickness
	return total / float64(d.NPancakes)
}

// ---------------------------------------------------------------------------
// Structures
// ---------------------------------------------------------------------------

// RingData is a junction ring joining two helices. HighPressure marks the
// rings sitting on the high-pressure (upper) side of the helix pair.
type RingData struct {
	R            [2]float64 `yaml:"r"`
	Z            [2]float64 `yaml:"z"`
	HighPressure bool       `yaml:"hp,omitempty"`
}

func (RingData) nodeData() {}

// ScreenData is a thin cylindrical screen shell around an assembly.
type ScreenData struct {
	R [2]float64 `yaml:"r"`
	Z [2]float64 `yaml:"z"`
}

func (ScreenData) nodeData() {}

// LeadData is a current lead feeding an assembly. Inner leads sit in the
// bore and may carry a drilled cooling-hole pattern; outer leads clamp to
// a bus bar. Holes, Bar and Support keep the flat parameter layout of the
// source documents.
type LeadData struct {
	R     [2]float64 `yaml:"r"`
	H     float64    `yaml:"h"`
	Inner bool       `yaml:"inner,omitempty"`

	Holes   []float64 `yaml:"holes,omitempty"` // inner only
	Bar     []float64 `yaml:"bar,omitempty"`   // outer only
	Support []float64 `yaml:"support,omitempty"`
	Fillet  bool      `yaml:"fillet,omitempty"` // inner only
}

func (LeadData) nodeData() {}

// ---------------------------------------------------------------------------
// Assemblies
// ---------------------------------------------------------------------------

// InsertData is a stack of helices joined by rings. Children of an Insert
// node are its Helix and Ring nodes; InnerBore and OuterBore bound the
// cooling channels between them.
type InsertData struct {
	InnerBore float64 `yaml:"innerbore"`
	OuterBore float64 `yaml:"outerbore"`
}

func (InsertData) nodeData() {}

// BittersData groups several Bitter magnets compiled as one unit.
type BittersData struct{}

func (BittersData) nodeData() {}

// SuprasData groups several Supra magnets compiled as one unit.
type SuprasData struct{}

func (SuprasData) nodeData() {}

// MSiteData is a magnet site: it references magnets it does not own, by
// name. Every referenced magnet must resolve against the lookup supplied
// to the same compilation pass.
type MSiteData struct {
	Magnets []string `yaml:"magnets"`
}

func (MSiteData) nodeData() {}
