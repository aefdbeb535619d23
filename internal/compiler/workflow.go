package compiler

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/me/flowc/internal/config"
	"github.com/me/flowc/pkg/flow"
	"github.com/me/flowc/pkg/model"
)

// Compiler builds workflows in a compile context. The context supplies
// the project, domain and version of default identifiers and the
// default version for Fetch.
type Compiler struct {
	cfg    config.CompileConfig
	logger *slog.Logger
}

// New creates a Compiler.
func New(cfg config.CompileConfig, logger *slog.Logger) *Compiler {
	return &Compiler{
		cfg:    cfg,
		logger: logger.With("component", "compiler"),
	}
}

// Workflow is a compiled workflow graph.
//
// Everything but the id is fixed at construction. The id changes only
// through Register, which guards it with a mutex so concurrent ID
// readers are safe; Register itself must not run concurrently with
// another Register on the same workflow.
type Workflow struct {
	mu      sync.RWMutex
	id      flow.Identifier
	phase   model.RegistrationPhase
	pending *pendingRegistration

	metadata         flow.WorkflowMetadata
	metadataDefaults flow.WorkflowMetadataDefaults
	iface            flow.TypedInterface
	nodes            []*Node
	outputBindings   []Binding
	inputs           []*Input
	logger           *slog.Logger
}

// Option configures Construct.
type Option func(*constructOptions)

type constructOptions struct {
	id               *flow.Identifier
	metadata         *flow.WorkflowMetadata
	metadataDefaults *flow.WorkflowMetadataDefaults
	iface            *flow.TypedInterface
	outputBindings   []Binding
	hasBindings      bool
}

// WithID sets the workflow id instead of generating one.
func WithID(id flow.Identifier) Option {
	return func(o *constructOptions) { o.id = &id }
}

// WithMetadata sets workflow metadata. The failure policy defaults to
// FAIL_IMMEDIATELY.
func WithMetadata(md flow.WorkflowMetadata) Option {
	return func(o *constructOptions) { o.metadata = &md }
}

// WithMetadataDefaults sets node-level defaults.
func WithMetadataDefaults(md flow.WorkflowMetadataDefaults) Option {
	return func(o *constructOptions) { o.metadataDefaults = &md }
}

// WithInterface overrides the interface derived from inputs and outputs.
func WithInterface(iface flow.TypedInterface) Option {
	return func(o *constructOptions) { o.iface = &iface }
}

// WithOutputBindings overrides the bindings derived from outputs.
func WithOutputBindings(bs []Binding) Option {
	return func(o *constructOptions) {
		o.outputBindings = bs
		o.hasBindings = true
	}
}

// Build discovers the entities on s and constructs a workflow from them,
// with inputs and outputs sorted by name and nodes by id.
func (c *Compiler) Build(s *Surface, opts ...Option) (*Workflow, error) {
	found, err := Discover(s)
	if err != nil {
		return nil, err
	}
	sort.Slice(found.Inputs, func(i, j int) bool { return found.Inputs[i].name < found.Inputs[j].name })
	sort.Slice(found.Outputs, func(i, j int) bool { return found.Outputs[i].name < found.Outputs[j].name })
	sort.Slice(found.Nodes, func(i, j int) bool { return found.Nodes[i].id < found.Nodes[j].id })
	c.logger.Debug("discovered entities",
		"inputs", len(found.Inputs), "outputs", len(found.Outputs), "nodes", len(found.Nodes))
	return c.Construct(found.Inputs, found.Outputs, found.Nodes, opts...)
}

// Construct assembles a workflow from already-named entities. Every node
// that another node depends on must have an id; this is checked before
// anything else.
func (c *Compiler) Construct(inputs []*Input, outputs []*Output, nodes []*Node, opts ...Option) (*Workflow, error) {
	if err := checkUpstreamAssigned(nodes); err != nil {
		return nil, err
	}

	var o constructOptions
	for _, opt := range opts {
		opt(&o)
	}

	id := c.defaultID()
	if o.id != nil {
		id = *o.id
	}
	metadata := flow.WorkflowMetadata{OnFailure: flow.FailImmediately}
	if o.metadata != nil {
		metadata = *o.metadata
		if metadata.OnFailure == "" {
			metadata.OnFailure = flow.FailImmediately
		}
	}
	var defaults flow.WorkflowMetadataDefaults
	if o.metadataDefaults != nil {
		defaults = *o.metadataDefaults
	}

	var iface flow.TypedInterface
	if o.iface != nil {
		iface = copyInterface(*o.iface)
	} else {
		iface = flow.NewInterface()
		for _, in := range inputs {
			if _, dup := iface.Inputs[in.name]; dup {
				return nil, ErrorStructural(in.name, "input declared more than once")
			}
			iface.Inputs[in.name] = in.Var()
		}
		for _, out := range outputs {
			if _, dup := iface.Outputs[out.name]; dup {
				return nil, ErrorStructural(out.name, "output declared more than once")
			}
			iface.Outputs[out.name] = out.v
		}
	}

	var bindings []Binding
	if o.hasBindings {
		bindings = append(bindings, o.outputBindings...)
	} else {
		for _, out := range outputs {
			bindings = append(bindings, out.Binding())
		}
	}
	sort.SliceStable(bindings, func(i, j int) bool { return bindings[i].Var < bindings[j].Var })
	for _, b := range bindings {
		if _, ok := iface.Outputs[b.Var]; !ok {
			return nil, ErrorStructural(b.Var, "output binding does not match any interface output")
		}
	}

	w := &Workflow{
		id:               id,
		phase:            model.RegistrationUnregistered,
		metadata:         metadata,
		metadataDefaults: defaults,
		iface:            iface,
		nodes:            append([]*Node(nil), nodes...),
		outputBindings:   bindings,
		inputs:           append([]*Input(nil), inputs...),
		logger:           c.logger,
	}
	c.logger.Debug("constructed workflow", "id", id.String(), "nodes", len(nodes))
	return w, nil
}

func (c *Compiler) defaultID() flow.Identifier {
	return flow.Identifier{
		ResourceType: flow.ResourceWorkflow,
		Project:      c.cfg.Project,
		Domain:       c.cfg.Domain,
		Name:         uuidHex(),
		Version:      c.cfg.Version,
	}
}

func uuidHex() string {
	u := uuid.New()
	return fmt.Sprintf("%x", u[:])
}

// ID returns the current workflow id.
func (w *Workflow) ID() flow.Identifier {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.id
}

// Phase returns the registration phase.
func (w *Workflow) Phase() model.RegistrationPhase {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.phase
}

func (w *Workflow) Metadata() flow.WorkflowMetadata { return w.metadata }

func (w *Workflow) MetadataDefaults() flow.WorkflowMetadataDefaults { return w.metadataDefaults }

// Interface returns a copy of the workflow interface.
func (w *Workflow) Interface() flow.TypedInterface { return copyInterface(w.iface) }

// Nodes returns the nodes in declaration order.
func (w *Workflow) Nodes() []*Node { return append([]*Node(nil), w.nodes...) }

// Node looks a node up by id.
func (w *Workflow) Node(id string) (*Node, bool) {
	for _, n := range w.nodes {
		if n.id == id {
			return n, true
		}
	}
	return nil, false
}

// OutputBindings returns the output bindings sorted by variable name.
func (w *Workflow) OutputBindings() []Binding { return append([]Binding(nil), w.outputBindings...) }

// Inputs returns the authoring-time inputs. It is nil for workflows
// rebuilt from a serialized template.
func (w *Workflow) Inputs() []*Input { return append([]*Input(nil), w.inputs...) }

// Template renders the wire form of the workflow.
func (w *Workflow) Template() flow.WorkflowTemplate {
	nodes := make([]flow.NodeTemplate, 0, len(w.nodes))
	for _, n := range w.nodes {
		nodes = append(nodes, n.Template())
	}
	return flow.WorkflowTemplate{
		ID:               w.ID(),
		Metadata:         w.metadata,
		MetadataDefaults: w.metadataDefaults,
		Interface:        copyInterface(w.iface),
		Nodes:            nodes,
		Outputs:          bindingsToWire(w.outputBindings),
	}
}

// Serialize returns the workflow and every sub-workflow it transitively
// references, ready for submission. It has no side effects.
func (w *Workflow) Serialize() (flow.WorkflowSpec, error) {
	subs, err := w.SubWorkflows()
	if err != nil {
		return flow.WorkflowSpec{}, err
	}
	spec := flow.WorkflowSpec{
		Template:     w.Template(),
		SubWorkflows: make([]flow.WorkflowTemplate, 0, len(subs)),
	}
	for _, sub := range subs {
		spec.SubWorkflows = append(spec.SubWorkflows, sub.Template())
	}
	return spec, nil
}

// Call creates an unnamed node that runs w as a sub-workflow. Optional
// inputs not given in args take their declared defaults.
func (w *Workflow) Call(args map[string]Arg, opts ...NodeOption) (*Node, error) {
	merged := make(map[string]Arg, len(args))
	for _, in := range w.inputs {
		if def, ok := in.Default(); ok {
			merged[in.name] = Lit(def)
		}
	}
	for k, v := range args {
		merged[k] = v
	}
	bindings, upstream, err := ResolveBindings(w.iface, merged)
	if err != nil {
		return nil, err
	}
	return newNode(&SubWorkflowExecutable{ID: w.ID(), Workflow: w}, bindings, upstream, opts...), nil
}

func copyInterface(ti flow.TypedInterface) flow.TypedInterface {
	out := flow.NewInterface()
	for k, v := range ti.Inputs {
		out.Inputs[k] = v
	}
	for k, v := range ti.Outputs {
		out.Outputs[k] = v
	}
	return out
}
