package script

import (
	"fmt"
	"strings"

	zygo "github.com/glycerine/zygomys/zygo"

	"github.com/magnettools/magnetmesh/pkg/geom"
)

// ---------------------------------------------------------------------------
// Source preprocessing
// ---------------------------------------------------------------------------

// preprocessSource transforms the Lisp source before passing it to
// zygomys:
//
//  1. Keyword conversion: :keyword -> "__kw_keyword" (string literal),
//     avoiding keyword symbols that would conflict with user variables.
//  2. ; line comments become // comments, which is what zygomys parses.
//
// Both transformations respect string literal boundaries.
func preprocessSource(source string) string {
	result := make([]byte, 0, len(source)+len(source)/4)
	b := []byte(source)
	i := 0
	for i < len(b) {
		// Skip double-quoted string literals.
		if b[i] == '"' {
			result = append(result, b[i])
			i++
			for i < len(b) && b[i] != '"' {
				if b[i] == '\\' && i+1 < len(b) {
					result = append(result, b[i], b[i+1])
					i += 2
					continue
				}
				result = append(result, b[i])
				i++
			}
			if i < len(b) {
				result = append(result, b[i])
				i++
			}
			continue
		}
		// Convert ; line comments to // comments.
		if b[i] == ';' {
			result = append(result, '/', '/')
			i++
			for i < len(b) && b[i] == ';' {
				i++
			}
			for i < len(b) && b[i] != '\n' {
				result = append(result, b[i])
				i++
			}
			continue
		}
		// Transform :keyword to "__kw_keyword".
		if b[i] == ':' && i+1 < len(b) {
			if b[i+1] == '=' {
				result = append(result, b[i], b[i+1])
				i += 2
				continue
			}
			if isLetter(b[i+1]) {
				j := i + 1
				for j < len(b) && isKWChar(b[j]) {
					j++
				}
				result = append(result, '"')
				result = append(result, []byte(kwPrefix)...)
				result = append(result, b[i+1:j]...)
				result = append(result, '"')
				i = j
				continue
			}
		}
		result = append(result, b[i])
		i++
	}
	return string(result)
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isKWChar(c byte) bool {
	return isLetter(c) || (c >= '0' && c <= '9') || c == '_'
}

// ---------------------------------------------------------------------------
// Keyword argument parsing
// ---------------------------------------------------------------------------

// kwPrefix is the marker prepended to keyword names by preprocessSource.
const kwPrefix = "__kw_"

// isKW checks if a Sexp is a preprocessed keyword string and returns the
// keyword name without the prefix.
func isKW(s zygo.Sexp) (string, bool) {
	str, ok := s.(*zygo.SexpStr)
	if !ok {
		return "", false
	}
	if strings.HasPrefix(str.S, kwPrefix) {
		return str.S[len(kwPrefix):], true
	}
	return "", false
}

// kwArgs holds the result of parsing a mixed positional+keyword argument
// list.
type kwArgs struct {
	kw         map[string]zygo.Sexp
	positional []zygo.Sexp
}

func parseArgs(args []zygo.Sexp) kwArgs {
	result := kwArgs{kw: make(map[string]zygo.Sexp)}
	i := 0
	for i < len(args) {
		if name, ok := isKW(args[i]); ok {
			if i+1 < len(args) {
				result.kw[name] = args[i+1]
				i += 2
			} else {
				result.kw[name] = zygo.SexpNull
				i++
			}
		} else {
			result.positional = append(result.positional, args[i])
			i++
		}
	}
	return result
}

// ---------------------------------------------------------------------------
// Value extraction helpers
// ---------------------------------------------------------------------------

func toFloat64(s zygo.Sexp) (float64, error) {
	switch v := s.(type) {
	case *zygo.SexpInt:
		return float64(v.Val), nil
	case *zygo.SexpFloat:
		return v.Val, nil
	}
	return 0, fmt.Errorf("expected number, got %T (%s)", s, s.SexpString(nil))
}

func toInt(s zygo.Sexp) (int, error) {
	if v, ok := s.(*zygo.SexpInt); ok {
		return int(v.Val), nil
	}
	return 0, fmt.Errorf("expected integer, got %T (%s)", s, s.SexpString(nil))
}

func toString(s zygo.Sexp) (string, error) {
	if str, ok := s.(*zygo.SexpStr); ok {
		return str.S, nil
	}
	return "", fmt.Errorf("expected string, got %T (%s)", s, s.SexpString(nil))
}

func toBool(s zygo.Sexp) (bool, error) {
	if v, ok := s.(*zygo.SexpBool); ok {
		return v.Val, nil
	}
	return false, fmt.Errorf("expected bool, got %T (%s)", s, s.SexpString(nil))
}

// sexpListToSlice converts a Lisp list or array to a Go slice.
func sexpListToSlice(s zygo.Sexp) ([]zygo.Sexp, error) {
	switch v := s.(type) {
	case *zygo.SexpPair:
		return zygo.ListToArray(v)
	case *zygo.SexpArray:
		return v.Val, nil
	case *zygo.SexpSentinel:
		if v == zygo.SexpNull {
			return nil, nil
		}
	}
	return nil, fmt.Errorf("expected list or array, got %T", s)
}

// toFloats converts a list of numbers.
func toFloats(s zygo.Sexp) ([]float64, error) {
	items, err := sexpListToSlice(s)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(items))
	for i, item := range items {
		if out[i], err = toFloat64(item); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// toPair converts a two-element number list to a [lo, hi] pair.
func toPair(s zygo.Sexp) ([2]float64, error) {
	vals, err := toFloats(s)
	if err != nil {
		return [2]float64{}, err
	}
	if len(vals) != 2 {
		return [2]float64{}, fmt.Errorf("expected [lo hi] pair, got %d values", len(vals))
	}
	return [2]float64{vals[0], vals[1]}, nil
}

func toStrings(s zygo.Sexp) ([]string, error) {
	items, err := sexpListToSlice(s)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(items))
	for i, item := range items {
		if out[i], err = toString(item); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// ---------------------------------------------------------------------------
// Geometry node wrapper
// ---------------------------------------------------------------------------

// sexpNode wraps a geom.Node so it can be passed between builtins.
type sexpNode struct {
	node *geom.Node
}

func (n *sexpNode) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(%s %q)", n.node.Kind, n.node.Name)
}
func (n *sexpNode) Type() *zygo.RegisteredType { return nil }

func toNode(s zygo.Sexp) (*geom.Node, error) {
	if n, ok := s.(*sexpNode); ok {
		return n.node, nil
	}
	return nil, fmt.Errorf("expected geometry node, got %T (%s)", s, s.SexpString(nil))
}

// builder accumulates the nodes defined during one evaluation. Nodes
// passed as children of another node are owned and not reported as roots.
type builder struct {
	defined []*geom.Node
	owned   map[*geom.Node]bool
}

func (b *builder) add(n *geom.Node) *sexpNode {
	b.defined = append(b.defined, n)
	return &sexpNode{node: n}
}

func (b *builder) own(children []*geom.Node) {
	for _, c := range children {
		b.owned[c] = true
	}
}

func (b *builder) roots() []*geom.Node {
	var roots []*geom.Node
	for _, n := range b.defined {
		if !b.owned[n] {
			roots = append(roots, n)
		}
	}
	return roots
}

// ---------------------------------------------------------------------------
// Builtin registration
// ---------------------------------------------------------------------------

// registerBuiltins installs the geometry DSL into a zygomys environment.
// Source code must be preprocessed with preprocessSource() first so that
// :keyword tokens arrive as recognizable string literals.
func registerBuiltins(env *zygo.Zlisp, b *builder) {

	// -----------------------------------------------------------------------
	// (bitter "B" :r [200 300] :z [-120 120] :h 120
	//             :turns [100 100] :pitch [1.2 1.2] :slits [240 270])
	// -----------------------------------------------------------------------
	env.AddFunction("bitter", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		if len(pa.positional) < 1 {
			return zygo.SexpNull, fmt.Errorf("bitter requires a name argument")
		}
		nodeName, err := toString(pa.positional[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("bitter: name: %w", err)
		}
		var r, z [2]float64
		var axi geom.BitterAxi
		var slits []float64
		if v, ok := pa.kw["r"]; ok {
			if r, err = toPair(v); err != nil {
				return zygo.SexpNull, fmt.Errorf("bitter: r: %w", err)
			}
		}
		if v, ok := pa.kw["z"]; ok {
			if z, err = toPair(v); err != nil {
				return zygo.SexpNull, fmt.Errorf("bitter: z: %w", err)
			}
		}
		if v, ok := pa.kw["h"]; ok {
			if axi.H, err = toFloat64(v); err != nil {
				return zygo.SexpNull, fmt.Errorf("bitter: h: %w", err)
			}
		}
		if v, ok := pa.kw["turns"]; ok {
			if axi.Turns, err = toFloats(v); err != nil {
				return zygo.SexpNull, fmt.Errorf("bitter: turns: %w", err)
			}
		}
		if v, ok := pa.kw["pitch"]; ok {
			if axi.Pitch, err = toFloats(v); err != nil {
				return zygo.SexpNull, fmt.Errorf("bitter: pitch: %w", err)
			}
		}
		if v, ok := pa.kw["slits"]; ok {
			if slits, err = toFloats(v); err != nil {
				return zygo.SexpNull, fmt.Errorf("bitter: slits: %w", err)
			}
		}
		return b.add(geom.NewBitter(nodeName, r, z, axi, slits)), nil
	})

	// -----------------------------------------------------------------------
	// (helix "H1" :r [19 24] :z [-150 150])
	// -----------------------------------------------------------------------
	env.AddFunction("helix", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		nodeName, r, z, err := nameAndExtent("helix", args)
		if err != nil {
			return zygo.SexpNull, err
		}
		return b.add(geom.NewHelix(nodeName, r, z)), nil
	})

	// -----------------------------------------------------------------------
	// (supra "S" :r [400 500] :z [-300 300]
	//            :detail "dp" :npancakes 6 :isolation 2 :mandrel 5)
	// -----------------------------------------------------------------------
	env.AddFunction("supra", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		nodeName, r, z, err := nameAndExtent("supra", args)
		if err != nil {
			return zygo.SexpNull, err
		}
		node := geom.NewSupra(nodeName, r, z)
		d := node.Data.(geom.SupraData)
		pa := parseArgs(args)
		if v, ok := pa.kw["detail"]; ok {
			if d.Detail, err = toString(v); err != nil {
				return zygo.SexpNull, fmt.Errorf("supra: detail: %w", err)
			}
		}
		if v, ok := pa.kw["npancakes"]; ok {
			if d.NPancakes, err = toInt(v); err != nil {
				return zygo.SexpNull, fmt.Errorf("supra: npancakes: %w", err)
			}
		}
		if v, ok := pa.kw["isolation"]; ok {
			if d.IsolationThickness, err = toFloat64(v); err != nil {
				return zygo.SexpNull, fmt.Errorf("supra: isolation: %w", err)
			}
		}
		if v, ok := pa.kw["mandrel"]; ok {
			if d.MandrelThickness, err = toFloat64(v); err != nil {
				return zygo.SexpNull, fmt.Errorf("supra: mandrel: %w", err)
			}
		}
		node.Data = d
		return b.add(node), nil
	})

	// -----------------------------------------------------------------------
	// (ring "R1" :r [15 26] :z [150 170] :hp true)
	// -----------------------------------------------------------------------
	env.AddFunction("ring", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		nodeName, r, z, err := nameAndExtent("ring", args)
		if err != nil {
			return zygo.SexpNull, err
		}
		hp := false
		if v, ok := parseArgs(args).kw["hp"]; ok {
			if hp, err = toBool(v); err != nil {
				return zygo.SexpNull, fmt.Errorf("ring: hp: %w", err)
			}
		}
		return b.add(geom.NewRing(nodeName, r, z, hp)), nil
	})

	// -----------------------------------------------------------------------
	// (screen "Scr" :r [350 352] :z [-400 400])
	// -----------------------------------------------------------------------
	env.AddFunction("screen", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		nodeName, r, z, err := nameAndExtent("screen", args)
		if err != nil {
			return zygo.SexpNull, err
		}
		return b.add(geom.NewScreen(nodeName, r, z)), nil
	})

	// -----------------------------------------------------------------------
	// (insert "I" :innerbore 15 :outerbore 80 h1 r1 h2 ...)
	// -----------------------------------------------------------------------
	env.AddFunction("insert", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		if len(pa.positional) < 1 {
			return zygo.SexpNull, fmt.Errorf("insert requires a name argument")
		}
		nodeName, err := toString(pa.positional[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("insert: name: %w", err)
		}
		var inner, outer float64
		if v, ok := pa.kw["innerbore"]; ok {
			if inner, err = toFloat64(v); err != nil {
				return zygo.SexpNull, fmt.Errorf("insert: innerbore: %w", err)
			}
		}
		if v, ok := pa.kw["outerbore"]; ok {
			if outer, err = toFloat64(v); err != nil {
				return zygo.SexpNull, fmt.Errorf("insert: outerbore: %w", err)
			}
		}
		children, err := childNodes("insert", pa.positional[1:])
		if err != nil {
			return zygo.SexpNull, err
		}
		b.own(children)
		return b.add(geom.NewInsert(nodeName, inner, outer, children...)), nil
	})

	// -----------------------------------------------------------------------
	// (bitters "Bext" b1 b2 ...) / (supras "Sc" s1 s2 ...)
	// -----------------------------------------------------------------------
	env.AddFunction("bitters", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		nodeName, children, err := nameAndChildren("bitters", args)
		if err != nil {
			return zygo.SexpNull, err
		}
		b.own(children)
		return b.add(geom.NewBitters(nodeName, children...)), nil
	})
	env.AddFunction("supras", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		nodeName, children, err := nameAndChildren("supras", args)
		if err != nil {
			return zygo.SexpNull, err
		}
		b.own(children)
		return b.add(geom.NewSupras(nodeName, children...)), nil
	})

	// -----------------------------------------------------------------------
	// (msite "Site" :magnets ["I" "Bext"])
	// -----------------------------------------------------------------------
	env.AddFunction("msite", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		if len(pa.positional) < 1 {
			return zygo.SexpNull, fmt.Errorf("msite requires a name argument")
		}
		nodeName, err := toString(pa.positional[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("msite: name: %w", err)
		}
		var magnets []string
		if v, ok := pa.kw["magnets"]; ok {
			if magnets, err = toStrings(v); err != nil {
				return zygo.SexpNull, fmt.Errorf("msite: magnets: %w", err)
			}
		}
		return b.add(geom.NewMSite(nodeName, magnets...)), nil
	})
}

// nameAndExtent parses the common (name :r [..] :z [..]) argument shape.
func nameAndExtent(fn string, args []zygo.Sexp) (string, [2]float64, [2]float64, error) {
	var r, z [2]float64
	pa := parseArgs(args)
	if len(pa.positional) < 1 {
		return "", r, z, fmt.Errorf("%s requires a name argument", fn)
	}
	name, err := toString(pa.positional[0])
	if err != nil {
		return "", r, z, fmt.Errorf("%s: name: %w", fn, err)
	}
	if v, ok := pa.kw["r"]; ok {
		if r, err = toPair(v); err != nil {
			return "", r, z, fmt.Errorf("%s: r: %w", fn, err)
		}
	}
	if v, ok := pa.kw["z"]; ok {
		if z, err = toPair(v); err != nil {
			return "", r, z, fmt.Errorf("%s: z: %w", fn, err)
		}
	}
	return name, r, z, nil
}

// nameAndChildren parses a name followed by node references.
func nameAndChildren(fn string, args []zygo.Sexp) (string, []*geom.Node, error) {
	pa := parseArgs(args)
	if len(pa.positional) < 1 {
		return "", nil, fmt.Errorf("%s requires a name argument", fn)
	}
	name, err := toString(pa.positional[0])
	if err != nil {
		return "", nil, fmt.Errorf("%s: name: %w", fn, err)
	}
	children, err := childNodes(fn, pa.positional[1:])
	if err != nil {
		return "", nil, err
	}
	return name, children, nil
}

func childNodes(fn string, args []zygo.Sexp) ([]*geom.Node, error) {
	var children []*geom.Node
	for _, arg := range args {
		node, err := toNode(arg)
		if err != nil {
			return nil, fmt.Errorf("%s: child: %w", fn, err)
		}
		children = append(children, node)
	}
	return children, nil
}
