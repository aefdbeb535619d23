package compiler

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/me/flowc/pkg/flow"
)

func workflowIDs(ws []*Workflow) []string {
	ids := make([]string, 0, len(ws))
	for _, w := range ws {
		ids = append(ids, w.ID().Name)
	}
	return ids
}

func TestSubWorkflows_TaskOnly(t *testing.T) {
	w := singleStep(t, testCompiler(), "flat")
	subs, err := w.SubWorkflows()
	if err != nil {
		t.Fatalf("SubWorkflows: %v", err)
	}
	if len(subs) != 0 {
		t.Errorf("SubWorkflows() = %v, want none", workflowIDs(subs))
	}
	spec, err := w.Serialize()
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	if spec.SubWorkflows == nil || len(spec.SubWorkflows) != 0 {
		t.Errorf("spec.SubWorkflows = %v, want empty", spec.SubWorkflows)
	}
}

func TestSubWorkflows_ParentBeforeChildren(t *testing.T) {
	c := testCompiler()
	w2 := singleStep(t, c, "w2")

	wrap := func(name string, inner *Workflow) *Workflow {
		x := mustInput(t, "", intType)
		call, err := inner.Call(map[string]Arg{"x": x})
		if err != nil {
			t.Fatalf("Call: %v", err)
		}
		out := mustOutput(t, "", call.Output("result"), intType)
		w, err := c.Build(NewSurface().
			Set("x", InputDecl(x)).
			Set("call", NodeDecl(call)).
			Set("result", OutputDecl(out)),
			WithID(flow.Identifier{ResourceType: flow.ResourceWorkflow, Project: "proj", Domain: "dev", Name: name, Version: "v1"}))
		if err != nil {
			t.Fatalf("Build(%s): %v", name, err)
		}
		return w
	}
	w1 := wrap("w1", w2)
	top := wrap("top", w1)

	subs, err := top.SubWorkflows()
	if err != nil {
		t.Fatalf("SubWorkflows: %v", err)
	}
	if diff := cmp.Diff([]string{"w1", "w2"}, workflowIDs(subs)); diff != "" {
		t.Errorf("SubWorkflows mismatch (-want +got):\n%s", diff)
	}

	spec, err := top.Serialize()
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	if spec.Template.ID.Name != "top" || len(spec.SubWorkflows) != 2 || spec.SubWorkflows[1].ID.Name != "w2" {
		t.Errorf("spec = %s with %d sub-workflows", spec.Template.ID, len(spec.SubWorkflows))
	}
}

func TestSubWorkflows_UnhydratedIsInternal(t *testing.T) {
	parent, _ := nestedWorkflow(t)
	promoted, err := testCompiler().Promote(parent.Template(), nil, nil)
	if err != nil {
		t.Fatalf("Promote: %v", err)
	}
	_, err = promoted.SubWorkflows()
	assertCode(t, err, CodeInternal)
	_, err = promoted.Serialize()
	assertCode(t, err, CodeInternal)
}

func TestSubWorkflows_InsideBranch(t *testing.T) {
	c := testCompiler()
	child := singleStep(t, c, "child")
	src := mustCall(t, makeTask("src", nil, []string{"y"}), nil)
	call, err := child.Call(map[string]Arg{"x": src.Output("y")})
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	b, err := Branch([]BranchCase{{Condition: "y > 0", Then: call}}, nil)
	if err != nil {
		t.Fatalf("Branch: %v", err)
	}
	w := makeGraph(t, map[string]*Node{"src": src, "pick": b})

	subs, err := w.SubWorkflows()
	if err != nil {
		t.Fatalf("SubWorkflows: %v", err)
	}
	if diff := cmp.Diff([]string{"child"}, workflowIDs(subs)); diff != "" {
		t.Errorf("SubWorkflows mismatch (-want +got):\n%s", diff)
	}
}
