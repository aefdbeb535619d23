package compiler

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/me/flowc/pkg/flow"
)

// twoInputs builds a workflow with a required input x and an optional
// input scale defaulting to 2.
func twoInputs(t *testing.T) *Workflow {
	t.Helper()
	x := mustInput(t, "", intType)
	scale := mustInput(t, "", intType, WithDefault(intLit(2)))
	n := mustCall(t, makeTask("mul", []string{"a", "b"}, []string{"y"}), map[string]Arg{"a": x, "b": scale})
	out := mustOutput(t, "", n.Output("y"), intType)
	w, err := testCompiler().Build(NewSurface().
		Set("x", InputDecl(x)).
		Set("scale", InputDecl(scale)).
		Set("mul", NodeDecl(n)).
		Set("out", OutputDecl(out)),
		WithID(flow.Identifier{ResourceType: flow.ResourceWorkflow, Project: "proj", Domain: "dev", Name: "scaled", Version: "v1"}))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return w
}

func TestCreateLaunchPlan_DefaultsFromInputs(t *testing.T) {
	lp, err := twoInputs(t).CreateLaunchPlan(LaunchPlanOptions{})
	if err != nil {
		t.Fatalf("CreateLaunchPlan: %v", err)
	}
	two := intLit(2)
	want := map[string]flow.Parameter{
		"x":     {Var: flow.Variable{Type: intType}, Required: true},
		"scale": {Var: flow.Variable{Type: intType}, Default: &two},
	}
	if diff := cmp.Diff(want, lp.DefaultInputs); diff != "" {
		t.Errorf("DefaultInputs mismatch (-want +got):\n%s", diff)
	}
	if len(lp.FixedInputs) != 0 {
		t.Errorf("FixedInputs = %v, want none", lp.FixedInputs)
	}
}

func TestCreateLaunchPlan_FixedRemovesDefault(t *testing.T) {
	lp, err := twoInputs(t).CreateLaunchPlan(LaunchPlanOptions{
		FixedInputs: map[string]any{"scale": 10},
	})
	if err != nil {
		t.Fatalf("CreateLaunchPlan: %v", err)
	}
	if _, ok := lp.DefaultInputs["scale"]; ok {
		t.Error("fixed input should not also be a default")
	}
	if _, ok := lp.DefaultInputs["x"]; !ok {
		t.Error("x should remain a default input")
	}
	if got := lp.FixedInputs["scale"]; got.Scalar == nil || *got.Scalar.Integer != 10 {
		t.Errorf("FixedInputs[scale] = %+v, want 10", got)
	}
}

func TestCreateLaunchPlan_CallerDefaultOverrides(t *testing.T) {
	override := mustInput(t, "ignored", intType, WithDefault(intLit(5)))
	lp, err := twoInputs(t).CreateLaunchPlan(LaunchPlanOptions{
		DefaultInputs: map[string]*Input{"x": override},
	})
	if err != nil {
		t.Fatalf("CreateLaunchPlan: %v", err)
	}
	p := lp.DefaultInputs["x"]
	if p.Required || p.Default == nil || *p.Default.Scalar.Integer != 5 {
		t.Errorf("DefaultInputs[x] = %+v, want optional default 5", p)
	}
}

func TestCreateLaunchPlan_Errors(t *testing.T) {
	tests := []struct {
		name string
		opts LaunchPlanOptions
		code string
		ref  string
	}{
		{
			name: "fixed and default overlap",
			opts: LaunchPlanOptions{
				FixedInputs:   map[string]any{"x": 1},
				DefaultInputs: map[string]*Input{"x": mustInput(t, "", intType)},
			},
			code: CodeReference, ref: "x",
		},
		{
			name: "unknown fixed input",
			opts: LaunchPlanOptions{FixedInputs: map[string]any{"nope": 1}},
			code: CodeReference, ref: "nope",
		},
		{
			name: "unknown default input",
			opts: LaunchPlanOptions{DefaultInputs: map[string]*Input{"nope": mustInput(t, "", intType)}},
			code: CodeReference, ref: "nope",
		},
		{
			name: "fixed value of wrong type",
			opts: LaunchPlanOptions{FixedInputs: map[string]any{"x": "ten"}},
			code: CodeType,
		},
		{
			name: "default of wrong type",
			opts: LaunchPlanOptions{DefaultInputs: map[string]*Input{"x": mustInput(t, "", strType)}},
			code: CodeType,
		},
		{
			name: "role with explicit auth",
			opts: LaunchPlanOptions{Role: "arn:aws:iam::1:role/a", KubernetesServiceAccount: "runner"},
			code: CodeReference, ref: "role",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := twoInputs(t).CreateLaunchPlan(tt.opts)
			assertCode(t, err, tt.code)
			if tt.ref != "" {
				if got := detail(err, "name"); got != tt.ref {
					t.Errorf("name = %q, want %q", got, tt.ref)
				}
			}
		})
	}
}

func TestLaunchPlanSpec(t *testing.T) {
	w := twoInputs(t)
	lp, err := w.CreateLaunchPlan(LaunchPlanOptions{
		Role:          "arn:aws:iam::1:role/runner",
		Schedule:      flow.Schedule{CronExpression: "0 * * * *"},
		Labels:        map[string]string{"team": "genomics"},
		Notifications: []flow.Notification{{Phases: []string{"FAILED"}, Email: []string{"ops@example.com"}}},
	})
	if err != nil {
		t.Fatalf("CreateLaunchPlan: %v", err)
	}
	if lp.Workflow() != w {
		t.Error("Workflow() should return the source workflow")
	}

	spec := lp.Spec()
	if spec.WorkflowID != w.ID() {
		t.Errorf("WorkflowID = %v, want %v", spec.WorkflowID, w.ID())
	}
	if spec.AuthRole.AssumableIAMRole != "arn:aws:iam::1:role/runner" {
		t.Errorf("AuthRole = %+v", spec.AuthRole)
	}
	if spec.Annotations == nil || len(spec.Annotations) != 0 {
		t.Errorf("Annotations = %v, want empty map", spec.Annotations)
	}
	if spec.Labels["team"] != "genomics" || spec.Schedule.CronExpression != "0 * * * *" {
		t.Errorf("spec = %+v", spec)
	}
}
