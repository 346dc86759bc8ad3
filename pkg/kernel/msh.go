package kernel

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// WriteMSH writes the mesh in MSH 2.2 ASCII format, the interchange
// representation consumed by downstream solvers and by the mesh rotation
// pipeline.
func (m *Mesh) WriteMSH(w io.Writer) error {
	bw := bufio.NewWriter(w)

	fmt.Fprintf(bw, "$MeshFormat\n2.2 0 8\n$EndMeshFormat\n")

	if len(m.Groups) > 0 {
		fmt.Fprintf(bw, "$PhysicalNames\n%d\n", len(m.Groups))
		for _, g := range m.Groups {
			fmt.Fprintf(bw, "%d %d \"%s\"\n", g.Dim, g.Phys, g.Name)
		}
		fmt.Fprintf(bw, "$EndPhysicalNames\n")
	}

	fmt.Fprintf(bw, "$Nodes\n%d\n", m.NodeCount())
	for i := 0; i < m.NodeCount(); i++ {
		fmt.Fprintf(bw, "%d %.16g %.16g %.16g\n",
			i+1, m.Nodes[i*3], m.Nodes[i*3+1], m.Nodes[i*3+2])
	}
	fmt.Fprintf(bw, "$EndNodes\n")

	fmt.Fprintf(bw, "$Elements\n%d\n", len(m.Elements))
	for i, el := range m.Elements {
		// Two tags: physical group and elementary entity. The planar
		// backend does not track elementary tags separately, so the
		// physical tag is used for both.
		fmt.Fprintf(bw, "%d %d 2 %d %d", i+1, el.Type, el.Phys, el.Phys)
		for _, n := range el.Nodes {
			fmt.Fprintf(bw, " %d", n+1)
		}
		fmt.Fprintf(bw, "\n")
	}
	fmt.Fprintf(bw, "$EndElements\n")

	return bw.Flush()
}

// ReadMSH parses a mesh in MSH 2.2 ASCII format.
func ReadMSH(r io.Reader) (*Mesh, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 1024*1024), 16*1024*1024)

	m := &Mesh{}
	idToIndex := make(map[int]int32)

	for sc.Scan() {
		switch strings.TrimSpace(sc.Text()) {
		case "$MeshFormat":
			if !sc.Scan() {
				return nil, fmt.Errorf("msh: truncated MeshFormat section")
			}
			fields := strings.Fields(sc.Text())
			if len(fields) < 1 || !strings.HasPrefix(fields[0], "2.") {
				return nil, fmt.Errorf("msh: unsupported format version %q", sc.Text())
			}
			if err := skipToEnd(sc, "$EndMeshFormat"); err != nil {
				return nil, err
			}

		case "$PhysicalNames":
			n, err := scanCount(sc)
			if err != nil {
				return nil, err
			}
			for i := 0; i < n; i++ {
				if !sc.Scan() {
					return nil, fmt.Errorf("msh: truncated PhysicalNames section")
				}
				var dim, phys int
				rest := sc.Text()
				if _, err := fmt.Sscanf(rest, "%d %d", &dim, &phys); err != nil {
					return nil, fmt.Errorf("msh: bad physical name line %q", rest)
				}
				start := strings.Index(rest, "\"")
				end := strings.LastIndex(rest, "\"")
				if start < 0 || end <= start {
					return nil, fmt.Errorf("msh: unquoted physical name in %q", rest)
				}
				m.Groups = append(m.Groups, MeshGroup{
					Name: rest[start+1 : end],
					Dim:  Dim(dim),
					Phys: int32(phys),
				})
			}
			if err := skipToEnd(sc, "$EndPhysicalNames"); err != nil {
				return nil, err
			}

		case "$Nodes":
			n, err := scanCount(sc)
			if err != nil {
				return nil, err
			}
			m.Nodes = make([]float64, 0, n*3)
			for i := 0; i < n; i++ {
				if !sc.Scan() {
					return nil, fmt.Errorf("msh: truncated Nodes section")
				}
				fields := strings.Fields(sc.Text())
				if len(fields) != 4 {
					return nil, fmt.Errorf("msh: bad node line %q", sc.Text())
				}
				id, err := strconv.Atoi(fields[0])
				if err != nil {
					return nil, fmt.Errorf("msh: bad node id %q", fields[0])
				}
				var xyz [3]float64
				for j := 0; j < 3; j++ {
					xyz[j], err = strconv.ParseFloat(fields[j+1], 64)
					if err != nil {
						return nil, fmt.Errorf("msh: bad coordinate %q", fields[j+1])
					}
				}
				idToIndex[id] = int32(len(m.Nodes) / 3)
				m.Nodes = append(m.Nodes, xyz[0], xyz[1], xyz[2])
			}
			if err := skipToEnd(sc, "$EndNodes"); err != nil {
				return nil, err
			}

		case "$Elements":
			n, err := scanCount(sc)
			if err != nil {
				return nil, err
			}
			m.Elements = make([]Element, 0, n)
			for i := 0; i < n; i++ {
				if !sc.Scan() {
					return nil, fmt.Errorf("msh: truncated Elements section")
				}
				fields := strings.Fields(sc.Text())
				if len(fields) < 3 {
					return nil, fmt.Errorf("msh: bad element line %q", sc.Text())
				}
				etype, err := strconv.Atoi(fields[1])
				if err != nil {
					return nil, fmt.Errorf("msh: bad element type %q", fields[1])
				}
				ntags, err := strconv.Atoi(fields[2])
				if err != nil {
					return nil, fmt.Errorf("msh: bad tag count %q", fields[2])
				}
				el := Element{Type: ElementType(etype)}
				want := el.Type.NodesPerElement()
				if want == 0 {
					return nil, fmt.Errorf("msh: unsupported element type %d", etype)
				}
				if ntags > 0 {
					phys, err := strconv.Atoi(fields[3])
					if err != nil {
						return nil, fmt.Errorf("msh: bad physical tag %q", fields[3])
					}
					el.Phys = int32(phys)
				}
				nodeFields := fields[3+ntags:]
				if len(nodeFields) != want {
					return nil, fmt.Errorf("msh: element type %d wants %d nodes, got %d",
						etype, want, len(nodeFields))
				}
				for _, f := range nodeFields {
					id, err := strconv.Atoi(f)
					if err != nil {
						return nil, fmt.Errorf("msh: bad node reference %q", f)
					}
					idx, ok := idToIndex[id]
					if !ok {
						return nil, fmt.Errorf("msh: element references unknown node %d", id)
					}
					el.Nodes = append(el.Nodes, idx)
				}
				m.Elements = append(m.Elements, el)
			}
			if err := skipToEnd(sc, "$EndElements"); err != nil {
				return nil, err
			}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("msh: %w", err)
	}
	return m, nil
}

func scanCount(sc *bufio.Scanner) (int, error) {
	if !sc.Scan() {
		return 0, fmt.Errorf("msh: missing count line")
	}
	n, err := strconv.Atoi(strings.TrimSpace(sc.Text()))
	if err != nil {
		return 0, fmt.Errorf("msh: bad count %q", sc.Text())
	}
	return n, nil
}

func skipToEnd(sc *bufio.Scanner, marker string) error {
	for sc.Scan() {
		if strings.TrimSpace(sc.Text()) == marker {
			return nil
		}
	}
	return fmt.Errorf("msh: missing %s", marker)
}
