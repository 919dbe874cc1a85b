// Package memgraph is an in-memory property graph and a social.Store built on
// it. It backs development, tests and single-node deployments.
package memgraph

import (
	"fmt"
	"iter"
)

// Direction selects which edges Neighbors follows.
type Direction int

const (
	Outgoing Direction = iota
	Incoming
	Both
)

// Node is a labeled property map.
type Node struct {
	ID    int64
	Label string
	Props map[string]any
}

// String returns a string property or "".
func (n *Node) String(attr string) string {
	s, _ := n.Props[attr].(string)
	return s
}

// Float returns a float property.
func (n *Node) Float(attr string) (float64, bool) {
	f, ok := n.Props[attr].(float64)
	return f, ok
}

// Has reports whether attr is set.
func (n *Node) Has(attr string) bool {
	_, ok := n.Props[attr]
	return ok
}

// Edge is a typed, directed relationship.
type Edge struct {
	ID    int64
	Type  string
	From  *Node
	To    *Node
	Props map[string]any
}

type keyIndex struct {
	label string
	attr  string
}

type edgeKey struct {
	from int64
	typ  string
	to   int64
}

// Graph is not safe for concurrent use; Store serializes access.
type Graph struct {
	nextID  int64
	nodes   map[int64]*Node
	byLabel map[string][]*Node
	unique  map[keyIndex]map[any]*Node
	out     map[int64][]*Edge
	in      map[int64][]*Edge
	merged  map[edgeKey]*Edge
}

// NewGraph creates an empty graph.
func NewGraph() *Graph {
	return &Graph{
		nodes:   make(map[int64]*Node),
		byLabel: make(map[string][]*Node),
		unique:  make(map[keyIndex]map[any]*Node),
		out:     make(map[int64][]*Edge),
		in:      make(map[int64][]*Edge),
		merged:  make(map[edgeKey]*Edge),
	}
}

// Unique declares a uniqueness constraint on label.attr. It must be called
// before nodes with that label are written.
func (g *Graph) Unique(label, attr string) {
	k := keyIndex{label, attr}
	if _, ok := g.unique[k]; !ok {
		g.unique[k] = make(map[any]*Node)
	}
}

// CreateNode adds a node. It fails if attrs violates a uniqueness constraint.
func (g *Graph) CreateNode(label string, attrs map[string]any) (*Node, error) {
	for attr, v := range attrs {
		if idx, ok := g.unique[keyIndex{label, attr}]; ok {
			if _, taken := idx[v]; taken {
				return nil, fmt.Errorf("constraint %s.%s violated by %v", label, attr, v)
			}
		}
	}

	g.nextID++
	n := &Node{ID: g.nextID, Label: label, Props: make(map[string]any, len(attrs))}
	for attr, v := range attrs {
		n.Props[attr] = v
		if idx, ok := g.unique[keyIndex{label, attr}]; ok {
			idx[v] = n
		}
	}
	g.nodes[n.ID] = n
	g.byLabel[label] = append(g.byLabel[label], n)
	return n, nil
}

// UpsertNode finds the node with label and keyAttr = keyValue, creating it if
// absent, then sets attrs on it.
func (g *Graph) UpsertNode(label, keyAttr string, keyValue any, attrs map[string]any) (*Node, error) {
	if n := g.FindOne(label, keyAttr, keyValue); n != nil {
		for attr, v := range attrs {
			if err := g.SetProp(n, attr, v); err != nil {
				return nil, err
			}
		}
		return n, nil
	}

	all := make(map[string]any, len(attrs)+1)
	for attr, v := range attrs {
		all[attr] = v
	}
	all[keyAttr] = keyValue
	return g.CreateNode(label, all)
}

// SetProp sets one property, keeping unique indices current.
func (g *Graph) SetProp(n *Node, attr string, v any) error {
	idx, indexed := g.unique[keyIndex{n.Label, attr}]
	if indexed {
		if other, taken := idx[v]; taken && other != n {
			return fmt.Errorf("constraint %s.%s violated by %v", n.Label, attr, v)
		}
		if old, ok := n.Props[attr]; ok {
			delete(idx, old)
		}
		idx[v] = n
	}
	n.Props[attr] = v
	return nil
}

// DeleteProp removes one property.
func (g *Graph) DeleteProp(n *Node, attr string) {
	old, ok := n.Props[attr]
	if !ok {
		return
	}
	if idx, indexed := g.unique[keyIndex{n.Label, attr}]; indexed {
		delete(idx, old)
	}
	delete(n.Props, attr)
}

// FindOne returns the node with label and attr = value, or nil.
func (g *Graph) FindOne(label, attr string, value any) *Node {
	if idx, ok := g.unique[keyIndex{label, attr}]; ok {
		return idx[value]
	}
	for _, n := range g.byLabel[label] {
		if v, ok := n.Props[attr]; ok && v == value {
			return n
		}
	}
	return nil
}

// CreateEdge always adds a new edge.
func (g *Graph) CreateEdge(from *Node, typ string, to *Node, attrs map[string]any) *Edge {
	g.nextID++
	e := &Edge{ID: g.nextID, Type: typ, From: from, To: to, Props: attrs}
	g.out[from.ID] = append(g.out[from.ID], e)
	g.in[to.ID] = append(g.in[to.ID], e)
	k := edgeKey{from.ID, typ, to.ID}
	if _, ok := g.merged[k]; !ok {
		g.merged[k] = e
	}
	return e
}

// MergeEdge returns the existing (from, typ, to) edge or creates it. The bool
// is true when a new edge was created.
func (g *Graph) MergeEdge(from *Node, typ string, to *Node, attrs map[string]any) (*Edge, bool) {
	if e, ok := g.merged[edgeKey{from.ID, typ, to.ID}]; ok {
		return e, false
	}
	return g.CreateEdge(from, typ, to, attrs), true
}

// HasEdge reports whether a typ edge links a and b in dir, relative to a.
func (g *Graph) HasEdge(a *Node, typ string, b *Node, dir Direction) bool {
	if dir != Incoming {
		if _, ok := g.merged[edgeKey{a.ID, typ, b.ID}]; ok {
			return true
		}
	}
	if dir != Outgoing {
		if _, ok := g.merged[edgeKey{b.ID, typ, a.ID}]; ok {
			return true
		}
	}
	return false
}

// RemoveNode deletes n and its edges. It is only used to undo a write whose
// later step failed.
func (g *Graph) RemoveNode(n *Node) {
	edges := append(append([]*Edge(nil), g.out[n.ID]...), g.in[n.ID]...)
	for _, e := range edges {
		g.dropEdge(e)
	}
	delete(g.out, n.ID)
	delete(g.in, n.ID)

	for attr, v := range n.Props {
		if idx, ok := g.unique[keyIndex{n.Label, attr}]; ok && idx[v] == n {
			delete(idx, v)
		}
	}
	nodes := g.byLabel[n.Label]
	for i, m := range nodes {
		if m == n {
			g.byLabel[n.Label] = append(nodes[:i], nodes[i+1:]...)
			break
		}
	}
	delete(g.nodes, n.ID)
}

func (g *Graph) dropEdge(e *Edge) {
	g.out[e.From.ID] = without(g.out[e.From.ID], e)
	g.in[e.To.ID] = without(g.in[e.To.ID], e)
	k := edgeKey{e.From.ID, e.Type, e.To.ID}
	if g.merged[k] == e {
		delete(g.merged, k)
	}
}

func without(edges []*Edge, e *Edge) []*Edge {
	out := edges[:0]
	for _, x := range edges {
		if x != e {
			out = append(out, x)
		}
	}
	return out
}

// Nodes lazily yields every node with label, in insertion order.
func (g *Graph) Nodes(label string) iter.Seq[*Node] {
	return func(yield func(*Node) bool) {
		for _, n := range g.byLabel[label] {
			if !yield(n) {
				return
			}
		}
	}
}

// Edges lazily yields the edges of n of type typ in dir. An empty typ
// matches every type.
func (g *Graph) Edges(n *Node, typ string, dir Direction) iter.Seq[*Edge] {
	return func(yield func(*Edge) bool) {
		if dir != Incoming {
			for _, e := range g.out[n.ID] {
				if (typ == "" || e.Type == typ) && !yield(e) {
					return
				}
			}
		}
		if dir != Outgoing {
			for _, e := range g.in[n.ID] {
				if (typ == "" || e.Type == typ) && !yield(e) {
					return
				}
			}
		}
	}
}

// Neighbors lazily yields the node at the other end of every matching edge.
// A node linked by several edges is yielded once per edge.
func (g *Graph) Neighbors(n *Node, typ string, dir Direction) iter.Seq[*Node] {
	return func(yield func(*Node) bool) {
		for e := range g.Edges(n, typ, dir) {
			other := e.To
			if other == n {
				other = e.From
			}
			if !yield(other) {
				return
			}
		}
	}
}

// Distinct folds repeated nodes of seq, keeping first-seen order.
func Distinct(seq iter.Seq[*Node]) iter.Seq[*Node] {
	return func(yield func(*Node) bool) {
		seen := make(map[int64]struct{})
		for n := range seq {
			if _, ok := seen[n.ID]; ok {
				continue
			}
			seen[n.ID] = struct{}{}
			if !yield(n) {
				return
			}
		}
	}
}

// Filter yields the nodes of seq for which keep returns true.
func Filter(seq iter.Seq[*Node], keep func(*Node) bool) iter.Seq[*Node] {
	return func(yield func(*Node) bool) {
		for n := range seq {
			if keep(n) && !yield(n) {
				return
			}
		}
	}
}

// HasLabel returns a Filter predicate matching label.
func HasLabel(label string) func(*Node) bool {
	return func(n *Node) bool { return n.Label == label }
}
