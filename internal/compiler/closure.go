package compiler

import "fmt"

// SubWorkflows returns every workflow w transitively runs as a node,
// depth first with each parent before its own children. A workflow used
// by several nodes appears once per use. A sub-workflow node whose
// workflow was never hydrated is an internal error, since its children
// cannot be known.
func (w *Workflow) SubWorkflows() ([]*Workflow, error) {
	var out []*Workflow
	for _, n := range w.nodes {
		subs, err := subWorkflowsOf(n)
		if err != nil {
			return nil, err
		}
		out = append(out, subs...)
	}
	return out, nil
}

func subWorkflowsOf(n *Node) ([]*Workflow, error) {
	switch e := n.exec.(type) {
	case *TaskExecutable:
		return nil, nil
	case *SubWorkflowExecutable:
		if e.Workflow == nil {
			return nil, ErrorInternal(fmt.Sprintf("node %s references sub-workflow %s which was not hydrated", n.id, e.ID))
		}
		children, err := e.Workflow.SubWorkflows()
		if err != nil {
			return nil, err
		}
		return append([]*Workflow{e.Workflow}, children...), nil
	case *BranchExecutable:
		var out []*Workflow
		for _, inner := range e.innerNodes() {
			subs, err := subWorkflowsOf(inner)
			if err != nil {
				return nil, err
			}
			out = append(out, subs...)
		}
		return out, nil
	default:
		panic("unreachable")
	}
}
