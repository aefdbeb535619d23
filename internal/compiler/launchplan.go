package compiler

import (
	"fmt"
	"sort"

	"github.com/me/flowc/pkg/flow"
)

// LaunchPlanOptions parameterizes a launch plan.
type LaunchPlanOptions struct {
	// FixedInputs pins inputs to values. Values may be flow.Literal or
	// decoded YAML/JSON values, which are packed against the input type.
	FixedInputs map[string]any
	// DefaultInputs adds or overrides launch-time defaults. The map key
	// names the workflow input; the Input's own name is ignored.
	DefaultInputs map[string]*Input
	Schedule      flow.Schedule
	Notifications []flow.Notification
	Labels        map[string]string
	Annotations   map[string]string
	// Role is the deprecated spelling of AssumableIAMRole and cannot be
	// combined with either auth field.
	Role                     string
	AssumableIAMRole         string
	KubernetesServiceAccount string
}

// LaunchPlan is a reusable way to run a workflow with some inputs fixed
// and others defaulted.
type LaunchPlan struct {
	workflow      *Workflow
	DefaultInputs map[string]flow.Parameter
	FixedInputs   map[string]flow.Literal
	Schedule      flow.Schedule
	Notifications []flow.Notification
	Labels        map[string]string
	Annotations   map[string]string
	AuthRole      flow.AuthRole
}

// CreateLaunchPlan builds a launch plan for w.
//
// Defaults start from the workflow's authoring-time inputs, minus any
// that are fixed, and caller defaults are laid over them. Naming an
// input that the workflow does not declare, or naming one input as both
// fixed and defaulted, is a reference error.
func (w *Workflow) CreateLaunchPlan(opts LaunchPlanOptions) (*LaunchPlan, error) {
	auth, err := resolveAuthRole(opts)
	if err != nil {
		return nil, err
	}

	for _, name := range sortedNames(opts.DefaultInputs) {
		if _, fixed := opts.FixedInputs[name]; fixed {
			return nil, ErrorReference(name, "input is both fixed and given a default")
		}
	}

	fixed := make(map[string]flow.Literal, len(opts.FixedInputs))
	for _, name := range sortedNames(opts.FixedInputs) {
		v, ok := w.iface.Inputs[name]
		if !ok {
			return nil, ErrorReference(name, "fixed input is not an input of the workflow")
		}
		lit, err := flow.PackLiteral(opts.FixedInputs[name], v.Type)
		if err != nil {
			return nil, ErrorType(name, v.Type.String(), describeValue(opts.FixedInputs[name]))
		}
		fixed[name] = lit
	}

	defaults := make(map[string]flow.Parameter, len(w.inputs)+len(opts.DefaultInputs))
	for _, in := range w.inputs {
		if _, ok := fixed[in.name]; !ok {
			defaults[in.name] = in.Parameter()
		}
	}
	for _, name := range sortedNames(opts.DefaultInputs) {
		in := opts.DefaultInputs[name]
		v, ok := w.iface.Inputs[name]
		if !ok {
			return nil, ErrorReference(name, "default input is not an input of the workflow")
		}
		if in == nil {
			return nil, ErrorReference(name, "default input is nil")
		}
		if !flow.Compatible(v.Type, in.typ) {
			return nil, ErrorType(name, v.Type.String(), in.typ.String())
		}
		defaults[name] = in.Parameter()
	}

	lp := &LaunchPlan{
		workflow:      w,
		DefaultInputs: defaults,
		FixedInputs:   fixed,
		Schedule:      opts.Schedule,
		Notifications: append([]flow.Notification{}, opts.Notifications...),
		Labels:        copyStrings(opts.Labels),
		Annotations:   copyStrings(opts.Annotations),
		AuthRole:      auth,
	}
	w.logger.Debug("created launch plan", "workflow", w.ID().String(),
		"defaults", len(defaults), "fixed", len(fixed))
	return lp, nil
}

// Workflow returns the workflow the plan launches.
func (lp *LaunchPlan) Workflow() *Workflow { return lp.workflow }

// Spec renders the wire form, using the workflow's current id.
func (lp *LaunchPlan) Spec() flow.LaunchPlanSpec {
	return flow.LaunchPlanSpec{
		WorkflowID:    lp.workflow.ID(),
		DefaultInputs: lp.DefaultInputs,
		FixedInputs:   lp.FixedInputs,
		Schedule:      lp.Schedule,
		Notifications: lp.Notifications,
		Labels:        lp.Labels,
		Annotations:   lp.Annotations,
		AuthRole:      lp.AuthRole,
	}
}

func resolveAuthRole(opts LaunchPlanOptions) (flow.AuthRole, error) {
	if opts.Role != "" {
		if opts.AssumableIAMRole != "" || opts.KubernetesServiceAccount != "" {
			return flow.AuthRole{}, ErrorReference("role",
				"cannot be combined with assumable_iam_role or kubernetes_service_account")
		}
		return flow.AuthRole{AssumableIAMRole: opts.Role}, nil
	}
	return flow.AuthRole{
		AssumableIAMRole:         opts.AssumableIAMRole,
		KubernetesServiceAccount: opts.KubernetesServiceAccount,
	}, nil
}

func describeValue(v any) string {
	if l, ok := v.(flow.Literal); ok {
		return l.Type().String()
	}
	if l, err := flow.LiteralFromGo(v); err == nil {
		return l.Type().String()
	}
	return fmt.Sprintf("%T", v)
}

func sortedNames[V any](m map[string]V) []string {
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

func copyStrings(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
