package compiler

import (
	"testing"

	"github.com/serum-errors/go-serum"

	"github.com/me/flowc/internal/config"
	"github.com/me/flowc/internal/logging"
	"github.com/me/flowc/pkg/flow"
)

var (
	intType = flow.Simple(flow.SimpleInteger)
	strType = flow.Simple(flow.SimpleString)
)

func intLit(v int64) flow.Literal { return flow.IntLiteral(v) }

func testCompiler() *Compiler {
	return New(config.CompileConfig{Project: "proj", Domain: "dev", Version: "v1"}, logging.Discard())
}

// makeTask returns a task whose inputs and outputs are all integers.
func makeTask(name string, inputs, outputs []string) *Task {
	iface := flow.NewInterface()
	for _, in := range inputs {
		iface.Inputs[in] = flow.Variable{Type: intType}
	}
	for _, out := range outputs {
		iface.Outputs[out] = flow.Variable{Type: intType}
	}
	return NewTask(flow.TaskTemplate{
		ID:        flow.Identifier{ResourceType: flow.ResourceTask, Project: "proj", Domain: "dev", Name: name, Version: "v1"},
		Type:      "container",
		Interface: iface,
	})
}

func mustInput(t *testing.T, name string, typ flow.LiteralType, opts ...InputOption) *Input {
	t.Helper()
	in, err := NewInput(name, typ, opts...)
	if err != nil {
		t.Fatalf("NewInput(%s): %v", name, err)
	}
	return in
}

func mustOutput(t *testing.T, name string, value Arg, typ flow.LiteralType) *Output {
	t.Helper()
	out, err := NewOutput(name, value, OfType(typ))
	if err != nil {
		t.Fatalf("NewOutput(%s): %v", name, err)
	}
	return out
}

func mustCall(t *testing.T, task *Task, args map[string]Arg) *Node {
	t.Helper()
	n, err := task.Call(args)
	if err != nil {
		t.Fatalf("Call(%s): %v", task.ID().Name, err)
	}
	return n
}

// singleStep builds the canonical workflow: input x, node n1 doubling x
// into y, output result bound to n1.y.
func singleStep(t *testing.T, c *Compiler, name string) *Workflow {
	t.Helper()
	x := mustInput(t, "", intType)
	n1 := mustCall(t, makeTask("double", []string{"a"}, []string{"y"}), map[string]Arg{"a": x})
	result := mustOutput(t, "", n1.Output("y"), intType)
	s := NewSurface().
		Set("x", InputDecl(x)).
		Set("n1", NodeDecl(n1)).
		Set("result", OutputDecl(result))
	w, err := c.Build(s, WithID(flow.Identifier{ResourceType: flow.ResourceWorkflow, Project: "proj", Domain: "dev", Name: name, Version: "v1"}))
	if err != nil {
		t.Fatalf("Build(%s): %v", name, err)
	}
	return w
}

func assertCode(t *testing.T, err error, code string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error with code %s, got nil", code)
	}
	if got := serum.Code(err); got != code {
		t.Fatalf("code = %q, want %q (err: %v)", got, code, err)
	}
}

func detail(err error, key string) string {
	for _, d := range serum.Details(err) {
		if d[0] == key {
			return d[1]
		}
	}
	return ""
}

func nodeIDs(w *Workflow) []string {
	var ids []string
	for _, n := range w.Nodes() {
		ids = append(ids, n.ID())
	}
	return ids
}
