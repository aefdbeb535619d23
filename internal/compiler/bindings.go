package compiler

import (
	"fmt"
	"sort"

	"github.com/me/flowc/pkg/flow"
)

// Arg is a call-time argument. It is a closed union of Lit(...),
// *Promise, *Input, ArgList and ArgMap.
type Arg interface {
	isArg()
}

type literalArg struct {
	lit flow.Literal
}

func (literalArg) isArg() {}

// Lit wraps a literal value as an argument.
func Lit(l flow.Literal) Arg { return literalArg{lit: l} }

// ArgList binds a collection input element by element.
type ArgList []Arg

func (ArgList) isArg() {}

// ArgMap binds a map input entry by entry.
type ArgMap map[string]Arg

func (ArgMap) isArg() {}

// Promise is a reference to a named output of a node. Promises created
// from in-memory nodes resolve the node id lazily, so they may be made
// before discovery names the node.
type Promise struct {
	node   *Node
	nodeID string
	Var    string
}

func (*Promise) isArg() {}

// Node returns the referenced node, or nil for promises rebuilt from a
// serialized template before linking.
func (p *Promise) Node() *Node { return p.node }

// NodeID returns the id of the referenced node.
func (p *Promise) NodeID() string {
	if p.node != nil {
		return p.node.id
	}
	return p.nodeID
}

// Type returns the declared type of the referenced output. An unknown
// callee interface yields "any".
func (p *Promise) Type() (flow.LiteralType, error) {
	if p.node == nil {
		return flow.Simple(flow.SimpleAny), nil
	}
	iface, known := p.node.exec.Interface()
	if !known {
		return flow.Simple(flow.SimpleAny), nil
	}
	v, ok := iface.Outputs[p.Var]
	if !ok {
		return flow.LiteralType{}, ErrorReference(p.String(), "node does not declare this output")
	}
	return v.Type, nil
}

func (p *Promise) String() string {
	id := p.NodeID()
	if id == "" {
		id = "<unnamed>"
	}
	return id + "." + p.Var
}

// InputRef refers to a workflow-level input. Authoring-time refs track
// the *Input so renames made by discovery are observed.
type InputRef struct {
	input *Input
	name  string
}

// Name returns the referenced input name.
func (r *InputRef) Name() string {
	if r.input != nil {
		return r.input.name
	}
	return r.name
}

// BindingData is the in-memory source of a value. Exactly one field is
// set; an empty but non-nil Collection or Map is a valid empty value.
type BindingData struct {
	Scalar     *flow.Literal
	Promise    *Promise
	Input      *InputRef
	Collection []BindingData
	Map        map[string]BindingData
}

// Binding assigns a source to a named variable.
type Binding struct {
	Var  string
	Data BindingData
}

// Promises returns every promise in d, depth first.
func (d BindingData) Promises() []*Promise {
	var out []*Promise
	d.walk(func(b BindingData) {
		if b.Promise != nil {
			out = append(out, b.Promise)
		}
	})
	return out
}

func (d BindingData) walk(fn func(BindingData)) {
	fn(d)
	switch {
	case d.Collection != nil:
		for _, item := range d.Collection {
			item.walk(fn)
		}
	case d.Map != nil:
		keys := make([]string, 0, len(d.Map))
		for k := range d.Map {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			d.Map[k].walk(fn)
		}
	}
}

// ToWire renders d in its serialized form.
func (d BindingData) ToWire() flow.BindingData {
	switch {
	case d.Scalar != nil:
		lit := *d.Scalar
		return flow.BindingData{Scalar: &lit}
	case d.Promise != nil:
		return flow.BindingData{Promise: &flow.OutputReference{NodeID: d.Promise.NodeID(), Var: d.Promise.Var}}
	case d.Input != nil:
		return flow.BindingData{Input: &flow.InputReference{Name: d.Input.Name()}}
	case d.Collection != nil:
		items := make([]flow.BindingData, 0, len(d.Collection))
		for _, item := range d.Collection {
			items = append(items, item.ToWire())
		}
		return flow.BindingData{Collection: &flow.BindingCollection{Bindings: items}}
	case d.Map != nil:
		items := make(map[string]flow.BindingData, len(d.Map))
		for k, item := range d.Map {
			items[k] = item.ToWire()
		}
		return flow.BindingData{Map: &flow.BindingMap{Bindings: items}}
	default:
		return flow.BindingData{}
	}
}

func bindingFromWire(d flow.BindingData) BindingData {
	switch {
	case d.Scalar != nil:
		lit := *d.Scalar
		return BindingData{Scalar: &lit}
	case d.Promise != nil:
		return BindingData{Promise: &Promise{nodeID: d.Promise.NodeID, Var: d.Promise.Var}}
	case d.Input != nil:
		return BindingData{Input: &InputRef{name: d.Input.Name}}
	case d.Collection != nil:
		items := make([]BindingData, 0, len(d.Collection.Bindings))
		for _, item := range d.Collection.Bindings {
			items = append(items, bindingFromWire(item))
		}
		return BindingData{Collection: items}
	case d.Map != nil:
		items := make(map[string]BindingData, len(d.Map.Bindings))
		for k, item := range d.Map.Bindings {
			items[k] = bindingFromWire(item)
		}
		return BindingData{Map: items}
	default:
		return BindingData{}
	}
}

func bindingsToWire(bs []Binding) []flow.Binding {
	out := make([]flow.Binding, 0, len(bs))
	for _, b := range bs {
		out = append(out, flow.Binding{Var: b.Var, Binding: b.Data.ToWire()})
	}
	flow.SortBindings(out)
	return out
}

func bindingsFromWire(bs []flow.Binding) []Binding {
	out := make([]Binding, 0, len(bs))
	for _, b := range bs {
		out = append(out, Binding{Var: b.Var, Data: bindingFromWire(b.Binding)})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Var < out[j].Var })
	return out
}

// ResolveBindings type-checks args against the inputs of iface and
// returns one binding per argument, sorted by variable name, plus the
// distinct nodes the arguments depend on.
func ResolveBindings(iface flow.TypedInterface, args map[string]Arg) ([]Binding, []*Node, error) {
	names := make([]string, 0, len(args))
	for name := range args {
		if _, ok := iface.Inputs[name]; !ok {
			return nil, nil, ErrorReference(name, "not an input of the callee interface")
		}
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range iface.InputNames() {
		if _, ok := args[name]; !ok {
			return nil, nil, ErrorReference(name, "required input has no argument")
		}
	}

	r := &resolver{seen: map[*Node]bool{}}
	bindings := make([]Binding, 0, len(names))
	for _, name := range names {
		data, err := r.resolve(name, iface.Inputs[name].Type, args[name])
		if err != nil {
			return nil, nil, err
		}
		bindings = append(bindings, Binding{Var: name, Data: data})
	}
	return bindings, r.upstream, nil
}

type resolver struct {
	upstream []*Node
	seen     map[*Node]bool
}

func (r *resolver) resolve(name string, declared flow.LiteralType, a Arg) (BindingData, error) {
	switch arg := a.(type) {
	case literalArg:
		if !declared.Accepts(arg.lit) {
			return BindingData{}, ErrorType(name, declared.String(), arg.lit.Type().String())
		}
		lit := arg.lit
		return BindingData{Scalar: &lit}, nil
	case *Promise:
		if arg == nil {
			return BindingData{}, ErrorType(name, declared.String(), "nil")
		}
		actual, err := arg.Type()
		if err != nil {
			return BindingData{}, err
		}
		if !flow.Compatible(declared, actual) {
			return BindingData{}, ErrorType(name, declared.String(), actual.String())
		}
		if arg.node != nil && !r.seen[arg.node] {
			r.seen[arg.node] = true
			r.upstream = append(r.upstream, arg.node)
		}
		return BindingData{Promise: arg}, nil
	case *Input:
		if arg == nil {
			return BindingData{}, ErrorType(name, declared.String(), "nil")
		}
		if !flow.Compatible(declared, arg.typ) {
			return BindingData{}, ErrorType(name, declared.String(), arg.typ.String())
		}
		return BindingData{Input: &InputRef{input: arg}}, nil
	case ArgList:
		elem := flow.Simple(flow.SimpleAny)
		switch {
		case declared.CollectionType != nil:
			elem = *declared.CollectionType
		case !declared.IsAny():
			return BindingData{}, ErrorType(name, declared.String(), "list")
		}
		items := make([]BindingData, 0, len(arg))
		for i, item := range arg {
			d, err := r.resolve(fmt.Sprintf("%s[%d]", name, i), elem, item)
			if err != nil {
				return BindingData{}, err
			}
			items = append(items, d)
		}
		return BindingData{Collection: items}, nil
	case ArgMap:
		value := flow.Simple(flow.SimpleAny)
		switch {
		case declared.MapValueType != nil:
			value = *declared.MapValueType
		case !declared.IsAny():
			return BindingData{}, ErrorType(name, declared.String(), "map")
		}
		keys := make([]string, 0, len(arg))
		for k := range arg {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		items := make(map[string]BindingData, len(arg))
		for _, k := range keys {
			d, err := r.resolve(fmt.Sprintf("%s[%s]", name, k), value, arg[k])
			if err != nil {
				return BindingData{}, err
			}
			items[k] = d
		}
		return BindingData{Map: items}, nil
	case nil:
		return BindingData{}, ErrorType(name, declared.String(), "nil")
	default:
		panic("unreachable")
	}
}
