package compiler

import (
	"fmt"
	"sort"
)

type declKind int

const (
	declInput declKind = iota
	declOutput
	declNode
	declList
	declSet
	declMap
	declScalar
)

func (k declKind) String() string {
	switch k {
	case declInput:
		return "input"
	case declOutput:
		return "output"
	case declNode:
		return "node"
	case declList:
		return "list"
	case declSet:
		return "set"
	case declMap:
		return "map"
	case declScalar:
		return "scalar"
	default:
		panic("unreachable")
	}
}

// Decl is one value on a declaration surface: an entity, a container
// of further declarations, or an inert scalar. Build them with the
// *Decl constructors.
type Decl struct {
	kind    declKind
	input   *Input
	output  *Output
	node    *Node
	items   []*Decl
	entries []MapEntry
	scalar  string
}

// MapEntry is a key/value pair inside a MapDecl. Both sides are walked.
type MapEntry struct {
	Key   *Decl
	Value *Decl
}

func InputDecl(in *Input) *Decl { return &Decl{kind: declInput, input: in} }

func OutputDecl(out *Output) *Decl { return &Decl{kind: declOutput, output: out} }

func NodeDecl(n *Node) *Decl { return &Decl{kind: declNode, node: n} }

func ListDecl(items ...*Decl) *Decl {
	return &Decl{kind: declList, items: items}
}

// SetDecl is walked like a list; element order is the order given.
func SetDecl(items ...*Decl) *Decl {
	return &Decl{kind: declSet, items: items}
}

// MapDecl walks every key, then every value.
func MapDecl(entries ...MapEntry) *Decl {
	return &Decl{kind: declMap, entries: entries}
}

// ScalarDecl is an inert value, typically a map key.
func ScalarDecl(s any) *Decl {
	return &Decl{kind: declScalar, scalar: fmt.Sprint(s)}
}

// identity is the pointer the visited set is keyed on: the entity for
// leaves, the Decl itself for containers.
func (d *Decl) identity() any {
	switch {
	case d.kind == declInput && d.input != nil:
		return d.input
	case d.kind == declOutput && d.output != nil:
		return d.output
	case d.kind == declNode && d.node != nil:
		return d.node
	case d.kind == declInput, d.kind == declOutput, d.kind == declNode:
		return nil
	default:
		return d
	}
}

// label names d when it is used as a map key.
func (d *Decl) label(index int) string {
	switch d.kind {
	case declScalar:
		return d.scalar
	case declInput:
		if d.input != nil && d.input.name != "" {
			return d.input.name
		}
	case declOutput:
		if d.output != nil && d.output.name != "" {
			return d.output.name
		}
	case declNode:
		if d.node != nil && d.node.id != "" {
			return d.node.id
		}
	}
	return fmt.Sprint(index)
}

// Surface is the top-level set of named declarations a workflow is
// discovered from.
type Surface struct {
	attrs map[string]*Decl
}

// NewSurface returns an empty surface.
func NewSurface() *Surface {
	return &Surface{attrs: map[string]*Decl{}}
}

// Set binds a top-level attribute, replacing any previous value.
func (s *Surface) Set(name string, d *Decl) *Surface {
	s.attrs[name] = d
	return s
}

// Names returns the attribute names in traversal order.
func (s *Surface) Names() []string {
	names := make([]string, 0, len(s.attrs))
	for name := range s.attrs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Discovered is the result of walking a surface.
type Discovered struct {
	Inputs  []*Input
	Outputs []*Output
	Nodes   []*Node
}

type pending struct {
	name      string
	attribute string
	depth     int
	decl      *Decl
}

// Discover walks the surface breadth first, attribute by attribute in
// name order, and collects every Input, Output and Node. Nodes are
// given the synthesized path they were first found at ("attr",
// "attr[0]", "attr[key]"); inputs and outputs must sit directly on the
// surface and are renamed to their attribute. An entity reachable by
// several paths is collected once, under the first path; with BFS that
// is the shallowest, not necessarily the one declared first.
func Discover(s *Surface) (*Discovered, error) {
	found := &Discovered{}
	visited := map[any]bool{}
	queue := make([]pending, 0, len(s.attrs))
	for _, name := range s.Names() {
		queue = append(queue, pending{name: name, attribute: name, decl: s.attrs[name]})
	}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		d := cur.decl
		if d == nil || d.kind == declScalar {
			continue
		}
		key := d.identity()
		if key == nil || visited[key] {
			continue
		}
		visited[key] = true

		switch d.kind {
		case declNode:
			if err := d.node.SetID(cur.name); err != nil {
				return nil, err
			}
			found.Nodes = append(found.Nodes, d.node)
		case declInput:
			if cur.depth > 0 {
				return nil, ErrorPlacement(d.kind.String(), cur.name, cur.attribute)
			}
			d.input.name = cur.name
			found.Inputs = append(found.Inputs, d.input)
		case declOutput:
			if cur.depth > 0 {
				return nil, ErrorPlacement(d.kind.String(), cur.name, cur.attribute)
			}
			d.output.name = cur.name
			found.Outputs = append(found.Outputs, d.output)
		case declList, declSet:
			for i, item := range d.items {
				queue = append(queue, pending{
					name:      fmt.Sprintf("%s[%d]", cur.name, i),
					attribute: cur.attribute,
					depth:     cur.depth + 1,
					decl:      item,
				})
			}
		case declMap:
			for i, e := range d.entries {
				if e.Key == nil {
					continue
				}
				queue = append(queue, pending{
					name:      fmt.Sprintf("%s[%s]", cur.name, e.Key.label(i)),
					attribute: cur.attribute,
					depth:     cur.depth + 1,
					decl:      e.Key,
				})
			}
			for i, e := range d.entries {
				label := fmt.Sprint(i)
				if e.Key != nil {
					label = e.Key.label(i)
				}
				queue = append(queue, pending{
					name:      fmt.Sprintf("%s[%s]", cur.name, label),
					attribute: cur.attribute,
					depth:     cur.depth + 1,
					decl:      e.Value,
				})
			}
		default:
			panic("unreachable")
		}
	}
	return found, nil
}
