package flow

import "sort"

// Variable is a typed, described slot in an interface.
type Variable struct {
	Type        LiteralType `json:"type" yaml:"type"`
	Description string      `json:"description,omitempty" yaml:"description,omitempty"`
}

// TypedInterface is the set of named inputs and outputs exposed by a
// workflow, task, or node. The two namespaces are independent.
type TypedInterface struct {
	Inputs  map[string]Variable `json:"inputs" yaml:"inputs"`
	Outputs map[string]Variable `json:"outputs" yaml:"outputs"`
}

// NewInterface returns an interface with non-nil maps.
func NewInterface() TypedInterface {
	return TypedInterface{Inputs: map[string]Variable{}, Outputs: map[string]Variable{}}
}

// InputNames returns the input names in sorted order.
func (ti TypedInterface) InputNames() []string {
	return sortedKeys(ti.Inputs)
}

// OutputNames returns the output names in sorted order.
func (ti TypedInterface) OutputNames() []string {
	return sortedKeys(ti.Outputs)
}

// Parameter is a launch-time input: its variable, an optional default,
// and whether it must be supplied.
type Parameter struct {
	Var      Variable `json:"var" yaml:"var"`
	Default  *Literal `json:"default,omitempty" yaml:"default,omitempty"`
	Required bool     `json:"required" yaml:"required"`
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
