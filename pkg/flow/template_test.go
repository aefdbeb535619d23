package flow

import (
	"encoding/json"
	"testing"
)

func taskID(name string) Identifier {
	return Identifier{ResourceType: ResourceTask, Project: "p", Domain: "d", Name: name, Version: "v1"}
}

func TestTaskRefs(t *testing.T) {
	elseNode := NodeTemplate{ID: "pick-else", TaskNode: &TaskNode{ReferenceID: taskID("large")}}
	tpl := WorkflowTemplate{Nodes: []NodeTemplate{
		{ID: "a", TaskNode: &TaskNode{ReferenceID: taskID("src")}},
		{ID: "b", TaskNode: &TaskNode{ReferenceID: taskID("src")}},
		{ID: "sub", WorkflowNode: &WorkflowNode{SubWorkflowRef: Identifier{ResourceType: ResourceWorkflow, Name: "child"}}},
		{ID: "pick", BranchNode: &BranchNode{IfElse: IfElseBlock{
			Cases:    []IfBlock{{Condition: "x > 1", ThenNode: NodeTemplate{ID: "pick-case0", TaskNode: &TaskNode{ReferenceID: taskID("small")}}}},
			ElseNode: &elseNode,
		}}},
	}}

	refs := tpl.TaskRefs()
	want := []string{"src", "small", "large"}
	if len(refs) != len(want) {
		t.Fatalf("TaskRefs() = %v, want %v", refs, want)
	}
	for i, r := range refs {
		if r.Name != want[i] {
			t.Errorf("TaskRefs()[%d] = %s, want %s", i, r.Name, want[i])
		}
	}
}

func TestIsSystemNode(t *testing.T) {
	for id, want := range map[string]bool{StartNodeID: true, EndNodeID: true, "n1": false, "": false} {
		if got := IsSystemNode(id); got != want {
			t.Errorf("IsSystemNode(%q) = %v, want %v", id, got, want)
		}
	}
}

func TestSortBindings(t *testing.T) {
	one := IntLiteral(1)
	bs := []Binding{
		{Var: "b", Binding: BindingData{Scalar: &one}},
		{Var: "a", Binding: BindingData{Input: &InputReference{Name: "x"}}},
	}
	SortBindings(bs)
	if bs[0].Var != "a" || bs[1].Var != "b" {
		t.Errorf("order = %s, %s", bs[0].Var, bs[1].Var)
	}
}

func TestBindingData_Walk(t *testing.T) {
	d := BindingData{Map: &BindingMap{Bindings: map[string]BindingData{
		"z": {Promise: &OutputReference{NodeID: "n2", Var: "y"}},
		"a": {Collection: &BindingCollection{Bindings: []BindingData{
			{Promise: &OutputReference{NodeID: "n1", Var: "y"}},
			{Input: &InputReference{Name: "x"}},
		}}},
	}}}

	promises := d.Promises()
	if len(promises) != 2 || promises[0].NodeID != "n1" || promises[1].NodeID != "n2" {
		t.Errorf("Promises() = %v, want n1 then n2", promises)
	}
	if refs := d.InputRefs(); len(refs) != 1 || refs[0].Name != "x" {
		t.Errorf("InputRefs() = %v, want [x]", refs)
	}

	raw, err := json.Marshal(d)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var back BindingData
	if err := json.Unmarshal(raw, &back); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if len(back.Promises()) != 2 {
		t.Errorf("decoded promises = %v", back.Promises())
	}
}
