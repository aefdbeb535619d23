package flow

import "sort"

// OutputReference points at a named output of another node.
type OutputReference struct {
	NodeID string `json:"node_id" yaml:"node_id"`
	Var    string `json:"var" yaml:"var"`
}

// InputReference points at a workflow-level input.
type InputReference struct {
	Name string `json:"name" yaml:"name"`
}

// BindingCollection is an ordered list of binding sources.
type BindingCollection struct {
	Bindings []BindingData `json:"bindings" yaml:"bindings"`
}

// BindingMap is a string-keyed map of binding sources.
type BindingMap struct {
	Bindings map[string]BindingData `json:"bindings" yaml:"bindings"`
}

// BindingData is the source of a single value. Exactly one field is set.
type BindingData struct {
	Scalar     *Literal           `json:"scalar,omitempty" yaml:"scalar,omitempty"`
	Promise    *OutputReference   `json:"promise,omitempty" yaml:"promise,omitempty"`
	Input      *InputReference    `json:"input,omitempty" yaml:"input,omitempty"`
	Collection *BindingCollection `json:"collection,omitempty" yaml:"collection,omitempty"`
	Map        *BindingMap        `json:"map,omitempty" yaml:"map,omitempty"`
}

// Promises returns every node output referenced by d, depth first.
func (d BindingData) Promises() []OutputReference {
	var out []OutputReference
	d.walk(func(b BindingData) {
		if b.Promise != nil {
			out = append(out, *b.Promise)
		}
	})
	return out
}

// InputRefs returns every workflow input referenced by d, depth first.
func (d BindingData) InputRefs() []InputReference {
	var out []InputReference
	d.walk(func(b BindingData) {
		if b.Input != nil {
			out = append(out, *b.Input)
		}
	})
	return out
}

func (d BindingData) walk(fn func(BindingData)) {
	fn(d)
	switch {
	case d.Collection != nil:
		for _, item := range d.Collection.Bindings {
			item.walk(fn)
		}
	case d.Map != nil:
		for _, k := range sortedKeys(d.Map.Bindings) {
			d.Map.Bindings[k].walk(fn)
		}
	}
}

// Binding assigns a source to a named variable.
type Binding struct {
	Var     string      `json:"var" yaml:"var"`
	Binding BindingData `json:"binding" yaml:"binding"`
}

// SortBindings orders bindings by variable name in place.
func SortBindings(bs []Binding) {
	sort.SliceStable(bs, func(i, j int) bool { return bs[i].Var < bs[j].Var })
}
