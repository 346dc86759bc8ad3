package geom

// Constructors for geometry nodes. The YAML loader and the script
// front-end both build trees through these.

// NewBitter creates a Bitter magnet node.
func NewBitter(name string, r, z [2]float64, axi BitterAxi, slits []float64) *Node {
	return &Node{Name: name, Kind: KindBitter, Data: BitterData{
		R: r, Z: z, Axi: axi, CoolingSlits: slits,
	}}
}

// NewHelix creates a Helix conductor node.
func NewHelix(name string, r, z [2]float64) *Node {
	return &Node{Name: name, Kind: KindHelix, Data: HelixData{R: r, Z: z}}
}

// NewSupra creates a superconducting coil node.
func NewSupra(name string, r, z [2]float64) *Node {
	return &Node{Name: name, Kind: KindSupra, Data: SupraData{R: r, Z: z}}
}

// NewRing creates a junction ring node.
func NewRing(name string, r, z [2]float64, hp bool) *Node {
	return &Node{Name: name, Kind: KindRing, Data: RingData{R: r, Z: z, HighPressure: hp}}
}

// NewScreen creates a screen shell node.
func NewScreen(name string, r, z [2]float64) *Node {
	return &Node{Name: name, Kind: KindScreen, Data: ScreenData{R: r, Z: z}}
}

// NewLead creates a current lead node from its kind-specific payload.
func NewLead(name string, d LeadData) *Node {
	return &Node{Name: name, Kind: KindLead, Data: d}
}

// NewInsert creates an Insert node owning the given Helix and Ring children.
func NewInsert(name string, innerBore, outerBore float64, children ...*Node) *Node {
	return &Node{Name: name, Kind: KindInsert, Children: children,
		Data: InsertData{InnerBore: innerBore, OuterBore: outerBore}}
}

// NewBitters groups Bitter children under one magnet.
func NewBitters(name string, children ...*Node) *Node {
	return &Node{Name: name, Kind: KindBitters, Children: children, Data: BittersData{}}
}

// NewSupras groups Supra children under one magnet.
func NewSupras(name string, children ...*Node) *Node {
	return &Node{Name: name, Kind: KindSupras, Children: children, Data: SuprasData{}}
}

// NewMSite creates a magnet site referencing sibling magnets by name.
func NewMSite(name string, magnets ...string) *Node {
	return &Node{Name: name, Kind: KindMSite, Data: MSiteData{Magnets: magnets}}
}
