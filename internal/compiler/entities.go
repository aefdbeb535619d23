package compiler

import (
	"fmt"

	"github.com/dop251/goja"

	"github.com/me/flowc/pkg/flow"
)

// Input is a workflow-level input declared at authoring time. Passing
// an *Input as an argument binds the callee variable to it.
type Input struct {
	name string
	typ  flow.LiteralType
	help string
	def  *flow.Literal
}

func (*Input) isArg() {}

// InputOption configures an Input.
type InputOption func(*Input)

// WithDefault makes the input optional with the given default.
func WithDefault(l flow.Literal) InputOption {
	return func(in *Input) { in.def = &l }
}

// WithHelp sets the input description.
func WithHelp(help string) InputOption {
	return func(in *Input) { in.help = help }
}

// NewInput declares an input. The name may be left empty and assigned
// by discovery. A default must be accepted by typ.
func NewInput(name string, typ flow.LiteralType, opts ...InputOption) (*Input, error) {
	if typ.IsZero() {
		return nil, ErrorType(name, "unset", "unset")
	}
	in := &Input{name: name, typ: typ}
	for _, opt := range opts {
		opt(in)
	}
	if in.def != nil && !typ.Accepts(*in.def) {
		return nil, ErrorType(name, typ.String(), in.def.Type().String())
	}
	return in, nil
}

func (in *Input) Name() string { return in.name }
func (in *Input) Type() flow.LiteralType { return in.typ }
func (in *Input) Help() string { return in.help }

// Required reports whether callers must supply a value.
func (in *Input) Required() bool { return in.def == nil }

// Default returns the default value, if any.
func (in *Input) Default() (flow.Literal, bool) {
	if in.def == nil {
		return flow.Literal{}, false
	}
	return *in.def, true
}

// Var returns the interface variable for this input.
func (in *Input) Var() flow.Variable {
	return flow.Variable{Type: in.typ, Description: in.help}
}

// Parameter returns the launch-time parameter for this input.
func (in *Input) Parameter() flow.Parameter {
	p := flow.Parameter{Var: in.Var(), Required: in.Required()}
	if in.def != nil {
		d := *in.def
		p.Default = &d
	}
	return p
}

// Output is a workflow-level output declared at authoring time.
type Output struct {
	name string
	data BindingData
	v    flow.Variable
}

// OutputOption configures an Output.
type OutputOption func(*outputConfig)

type outputConfig struct {
	typ  *flow.LiteralType
	help string
}

// OfType declares the output type. It is required.
func OfType(t flow.LiteralType) OutputOption {
	return func(c *outputConfig) { c.typ = &t }
}

// WithDescription sets the output description.
func WithDescription(help string) OutputOption {
	return func(c *outputConfig) { c.help = help }
}

// NewOutput declares a workflow output bound to value. The type must be
// given with OfType; there is no inference.
func NewOutput(name string, value Arg, opts ...OutputOption) (*Output, error) {
	var cfg outputConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.typ == nil || cfg.typ.IsZero() {
		return nil, ErrorMissingType(name)
	}
	r := &resolver{seen: map[*Node]bool{}}
	data, err := r.resolve(name, *cfg.typ, value)
	if err != nil {
		return nil, err
	}
	return &Output{name: name, data: data, v: flow.Variable{Type: *cfg.typ, Description: cfg.help}}, nil
}

func (o *Output) Name() string { return o.name }
func (o *Output) Var() flow.Variable { return o.v }
func (o *Output) Data() BindingData { return o.data }
func (o *Output) Binding() Binding { return Binding{Var: o.name, Data: o.data} }

// Task is a callable task template.
type Task struct {
	template flow.TaskTemplate
}

// NewTask wraps a task template so it can be called into nodes.
func NewTask(tpl flow.TaskTemplate) *Task {
	return &Task{template: tpl}
}

func (t *Task) ID() flow.Identifier { return t.template.ID }
func (t *Task) Template() flow.TaskTemplate { return t.template }
func (t *Task) Interface() flow.TypedInterface { return t.template.Interface }

// Call creates an unnamed node running the task with the given
// arguments. Every task input must be bound.
func (t *Task) Call(args map[string]Arg, opts ...NodeOption) (*Node, error) {
	bindings, upstream, err := ResolveBindings(t.template.Interface, args)
	if err != nil {
		return nil, err
	}
	tpl := t.template
	return newNode(&TaskExecutable{ID: tpl.ID, Template: &tpl}, bindings, upstream, opts...), nil
}

// Branch creates an unnamed node that runs the first case whose
// condition holds, or otherwise when none does. Conditions are
// JavaScript boolean expressions; only their syntax is checked here.
// The branch depends on everything its case nodes depend on.
func Branch(cases []BranchCase, otherwise *Node, opts ...NodeOption) (*Node, error) {
	if len(cases) == 0 {
		return nil, ErrorStructural("branch", "at least one case is required")
	}
	exec := &BranchExecutable{Cases: append([]BranchCase(nil), cases...), Else: otherwise}
	if otherwise == nil {
		exec.Error = "no branch condition matched"
	}
	for i, c := range cases {
		if c.Then == nil {
			return nil, ErrorStructural("branch", fmt.Sprintf("case %d has no node", i))
		}
		if err := checkCondition(c.Condition); err != nil {
			return nil, ErrorStructural("branch", fmt.Sprintf("case %d: %v", i, err))
		}
	}
	var upstream []*Node
	for _, inner := range exec.innerNodes() {
		upstream = append(upstream, inner.upstream...)
	}
	return newNode(exec, nil, upstream, opts...), nil
}

func checkCondition(cond string) error {
	if cond == "" {
		return fmt.Errorf("empty condition")
	}
	if _, err := goja.Compile("condition", "("+cond+")", true); err != nil {
		return fmt.Errorf("invalid condition %q: %w", cond, err)
	}
	return nil
}
