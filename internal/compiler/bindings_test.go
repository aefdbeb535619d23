package compiler

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/me/flowc/pkg/flow"
)

func mixedInterface() flow.TypedInterface {
	iface := flow.NewInterface()
	iface.Inputs["zeta"] = flow.Variable{Type: intType}
	iface.Inputs["alpha"] = flow.Variable{Type: strType}
	iface.Inputs["items"] = flow.Variable{Type: flow.CollectionOf(intType)}
	iface.Inputs["labels"] = flow.Variable{Type: flow.MapOf(strType)}
	return iface
}

func TestResolveBindings_SortedAndDeterministic(t *testing.T) {
	src := mustCall(t, makeTask("src", nil, []string{"y", "z"}), nil)
	if err := src.SetID("src"); err != nil {
		t.Fatalf("SetID: %v", err)
	}
	x := mustInput(t, "x", intType)
	args := map[string]Arg{
		"zeta":   src.Output("y"),
		"alpha":  Lit(flow.StringLiteral("hello")),
		"items":  ArgList{x, src.Output("z"), Lit(intLit(3))},
		"labels": ArgMap{"b": Lit(flow.StringLiteral("2")), "a": Lit(flow.StringLiteral("1"))},
	}

	first, up1, err := ResolveBindings(mixedInterface(), args)
	if err != nil {
		t.Fatalf("ResolveBindings: %v", err)
	}
	second, up2, err := ResolveBindings(mixedInterface(), args)
	if err != nil {
		t.Fatalf("ResolveBindings: %v", err)
	}

	var vars []string
	for _, b := range first {
		vars = append(vars, b.Var)
	}
	if diff := cmp.Diff([]string{"alpha", "items", "labels", "zeta"}, vars); diff != "" {
		t.Errorf("binding order mismatch (-want +got):\n%s", diff)
	}

	a, err := json.Marshal(bindingsToWire(first))
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	b, err := json.Marshal(bindingsToWire(second))
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if string(a) != string(b) {
		t.Errorf("serialized bindings differ:\n%s\n%s", a, b)
	}

	if len(up1) != 1 || up1[0] != src || len(up2) != 1 {
		t.Errorf("upstream = %v, want [src] once", up1)
	}
}

func TestResolveBindings_TypeMismatch(t *testing.T) {
	iface := mixedInterface()
	_, _, err := ResolveBindings(iface, map[string]Arg{
		"zeta":   Lit(flow.StringLiteral("not a number")),
		"alpha":  Lit(flow.StringLiteral("a")),
		"items":  ArgList{},
		"labels": ArgMap{},
	})
	assertCode(t, err, CodeType)
	if got := detail(err, "variable"); got != "zeta" {
		t.Errorf("variable = %q, want zeta", got)
	}
	if got := detail(err, "declared"); got != "integer" {
		t.Errorf("declared = %q, want integer", got)
	}
	if got := detail(err, "actual"); got != "string" {
		t.Errorf("actual = %q, want string", got)
	}
}

func TestResolveBindings_PromiseTypeMismatch(t *testing.T) {
	iface := flow.NewInterface()
	iface.Inputs["name"] = flow.Variable{Type: strType}
	src := mustCall(t, makeTask("src", nil, []string{"y"}), nil)

	_, _, err := ResolveBindings(iface, map[string]Arg{"name": src.Output("y")})
	assertCode(t, err, CodeType)
}

func TestResolveBindings_UnknownOutput(t *testing.T) {
	iface := flow.NewInterface()
	iface.Inputs["a"] = flow.Variable{Type: intType}
	src := mustCall(t, makeTask("src", nil, []string{"y"}), nil)

	_, _, err := ResolveBindings(iface, map[string]Arg{"a": src.Output("nope")})
	assertCode(t, err, CodeReference)
}

func TestResolveBindings_References(t *testing.T) {
	iface := flow.NewInterface()
	iface.Inputs["a"] = flow.Variable{Type: intType}

	tests := []struct {
		name string
		args map[string]Arg
		ref  string
	}{
		{"unknown argument", map[string]Arg{"a": Lit(intLit(1)), "b": Lit(intLit(2))}, "b"},
		{"missing required", map[string]Arg{}, "a"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := ResolveBindings(iface, tt.args)
			assertCode(t, err, CodeReference)
			if got := detail(err, "name"); got != tt.ref {
				t.Errorf("name = %q, want %q", got, tt.ref)
			}
		})
	}
}

func TestResolveBindings_ContainerShape(t *testing.T) {
	iface := flow.NewInterface()
	iface.Inputs["a"] = flow.Variable{Type: intType}

	_, _, err := ResolveBindings(iface, map[string]Arg{"a": ArgList{Lit(intLit(1))}})
	assertCode(t, err, CodeType)

	iface.Inputs["a"] = flow.Variable{Type: flow.CollectionOf(intType)}
	_, _, err = ResolveBindings(iface, map[string]Arg{"a": ArgList{Lit(flow.BoolLiteral(true))}})
	assertCode(t, err, CodeType)
	if got := detail(err, "variable"); got != "a[0]" {
		t.Errorf("variable = %q, want a[0]", got)
	}
}

func TestResolveBindings_InputReferenceFollowsRename(t *testing.T) {
	iface := flow.NewInterface()
	iface.Inputs["a"] = flow.Variable{Type: intType}
	in := mustInput(t, "", intType)

	bindings, _, err := ResolveBindings(iface, map[string]Arg{"a": in})
	if err != nil {
		t.Fatalf("ResolveBindings: %v", err)
	}
	if _, err := Discover(NewSurface().Set("count", InputDecl(in))); err != nil {
		t.Fatalf("Discover: %v", err)
	}
	wire := bindingsToWire(bindings)
	if wire[0].Binding.Input == nil || wire[0].Binding.Input.Name != "count" {
		t.Errorf("binding = %+v, want input ref to count", wire[0].Binding)
	}
}

func TestNewOutput_RequiresType(t *testing.T) {
	_, err := NewOutput("result", Lit(intLit(1)))
	assertCode(t, err, CodeType)
}

func TestNewInput_DefaultMustMatchType(t *testing.T) {
	_, err := NewInput("n", intType, WithDefault(flow.StringLiteral("x")))
	assertCode(t, err, CodeType)

	in := mustInput(t, "n", intType, WithDefault(intLit(4)), WithHelp("count"))
	if in.Required() {
		t.Error("input with default should be optional")
	}
	p := in.Parameter()
	if p.Default == nil || *p.Default.Scalar.Integer != 4 || p.Var.Description != "count" {
		t.Errorf("Parameter() = %+v", p)
	}
}
