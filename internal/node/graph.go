package node

import "hsd-scene-io/internal/hsd"

// Build decodes the graph rooted at the named symbol. Graph.Root is the Symbol
// node; its joint roots and animation roots hang off it.
func Build(a *hsd.Archive, symbol string, kind DataKind) (*Graph, error) {
	sym, err := a.Lookup(symbol)
	if err != nil {
		return nil, err
	}

	d := NewDecoder(a)
	g := d.Graph()
	switch kind {
	case DataBone:
		j, err := d.Decode(sym.Offset, KindJoint)
		if err != nil {
			return nil, err
		}
		g.Root = Ref(len(g.Nodes))
		g.Nodes = append(g.Nodes, &Symbol{base: base{sym.Offset}, Name: sym.Name, DataKind: DataBone, Joint: j})
	default:
		r, err := d.Decode(sym.Offset, KindSymbol)
		if err != nil {
			return nil, err
		}
		g.Symbol(r).Name = sym.Name
		g.Root = r
	}
	if err := d.Finish(); err != nil {
		return nil, err
	}
	return g, nil
}

// Chain follows Next links from r and returns every node on the chain,
// including r. Works for joints, display objects, polygons, textures, anim
// joints and anim keys.
func (g *Graph) Chain(r Ref) []Ref {
	var out []Ref
	seen := make(map[Ref]bool)
	for r.Valid() && !seen[r] {
		seen[r] = true
		out = append(out, r)
		switch n := g.Node(r).(type) {
		case *Joint:
			r = n.Next
		case *DisplayObject:
			r = n.Next
		case *Polygon:
			r = n.Next
		case *TextureImage:
			r = n.Next
		case *AnimJoint:
			r = n.Next
		case *AnimKey:
			r = n.Next
		default:
			r = NilRef
		}
	}
	return out
}

// Children returns the child joints of a joint in file order.
func (g *Graph) Children(r Ref) []Ref {
	j := g.Joint(r)
	if j == nil {
		return nil
	}
	return g.Chain(j.Child)
}

// Objects returns the display objects attached to a joint.
func (g *Graph) Objects(r Ref) []Ref {
	j := g.Joint(r)
	if j == nil {
		return nil
	}
	return g.Chain(j.Object)
}

// Roots returns the model roots of the graph: the bare joint for DataBone
// symbols, otherwise the joint of every joint set.
func (g *Graph) Roots() []Ref {
	s := g.Symbol(g.Root)
	if s == nil {
		return nil
	}
	if s.DataKind == DataBone {
		return []Ref{s.Joint}
	}
	var out []Ref
	for _, set := range s.Sets {
		if set.Joint.Valid() {
			out = append(out, set.Joint)
		}
	}
	return out
}

// ParentsOf returns how many parents reference each node, counting joint
// child/next links and joint-to-object links. Shared sub-trees have a count
// above one.
func (g *Graph) ParentsOf() map[Ref]int {
	counts := make(map[Ref]int)
	for _, n := range g.Nodes {
		switch n := n.(type) {
		case *Joint:
			for _, r := range []Ref{n.Child, n.Next, n.Object} {
				if r.Valid() {
					counts[r]++
				}
			}
		case *DisplayObject:
			for _, r := range []Ref{n.Next, n.Material, n.Polygon} {
				if r.Valid() {
					counts[r]++
				}
			}
		}
	}
	return counts
}
