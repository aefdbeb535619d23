package compiler

import "github.com/me/flowc/pkg/flow"

// Executable is what a node runs. It is a closed union of
// *TaskExecutable, *SubWorkflowExecutable and *BranchExecutable; every
// consumer switches over all three.
type Executable interface {
	// Interface returns the callee interface and whether it is known.
	// Unhydrated references and branches report false.
	Interface() (flow.TypedInterface, bool)
	isExecutable()
}

// TaskExecutable targets a task by id. Template is nil when the task
// was referenced by a serialized workflow but not supplied to promotion.
type TaskExecutable struct {
	ID       flow.Identifier
	Template *flow.TaskTemplate
}

func (t *TaskExecutable) Interface() (flow.TypedInterface, bool) {
	if t.Template == nil {
		return flow.TypedInterface{}, false
	}
	return t.Template.Interface, true
}

// Hydrated reports whether the task template is available.
func (t *TaskExecutable) Hydrated() bool { return t.Template != nil }

func (*TaskExecutable) isExecutable() {}

// SubWorkflowExecutable targets another workflow. Workflow is nil when
// the sub-workflow template was not available during promotion; such a
// node cannot take part in closure extraction.
type SubWorkflowExecutable struct {
	ID       flow.Identifier
	Workflow *Workflow
}

func (s *SubWorkflowExecutable) Interface() (flow.TypedInterface, bool) {
	if s.Workflow == nil {
		return flow.TypedInterface{}, false
	}
	return s.Workflow.Interface(), true
}

// Hydrated reports whether the sub-workflow is available.
func (s *SubWorkflowExecutable) Hydrated() bool { return s.Workflow != nil }

// Ref returns the id the node should reference on the wire.
func (s *SubWorkflowExecutable) Ref() flow.Identifier {
	if s.Workflow != nil {
		return s.Workflow.ID()
	}
	return s.ID
}

func (*SubWorkflowExecutable) isExecutable() {}

// BranchCase runs Then when Condition evaluates to true.
type BranchCase struct {
	Condition string
	Then      *Node
}

// BranchExecutable picks the first case whose condition holds, else
// Else. With no Else, Error is reported at run time.
type BranchExecutable struct {
	Cases []BranchCase
	Else  *Node
	Error string
}

func (*BranchExecutable) Interface() (flow.TypedInterface, bool) {
	return flow.TypedInterface{}, false
}

func (*BranchExecutable) isExecutable() {}

// innerNodes returns the case nodes followed by the else node.
func (b *BranchExecutable) innerNodes() []*Node {
	nodes := make([]*Node, 0, len(b.Cases)+1)
	for _, c := range b.Cases {
		nodes = append(nodes, c.Then)
	}
	if b.Else != nil {
		nodes = append(nodes, b.Else)
	}
	return nodes
}
