package compiler

import (
	"fmt"
	"sort"

	"github.com/me/flowc/pkg/flow"
)

// Validate checks the whole graph and returns every problem found,
// folded into one error that carries the code of the first.
//
// It checks node ids (present, unique, not reserved), upstream ids,
// every promise target and output name, binding types against the
// callee interface where that is known, workflow output coverage,
// branch conditions, and acyclicity.
func (w *Workflow) Validate() error {
	v := &validator{w: w, index: map[string]*Node{}}
	v.checkNodes()
	v.checkOutputs()
	if len(v.problems) == 0 {
		if _, err := BuildDAG(w); err != nil {
			v.problems = append(v.problems, err)
		}
	}
	if len(v.problems) > 0 {
		w.logger.Debug("workflow failed validation", "id", w.ID().String(), "problems", len(v.problems))
		return errorInvalidWorkflow(w.ID().String(), v.problems)
	}
	return nil
}

type validator struct {
	w        *Workflow
	index    map[string]*Node
	problems []error
}

func (v *validator) add(err error) {
	v.problems = append(v.problems, err)
}

func (v *validator) checkNodes() {
	for _, n := range v.w.nodes {
		switch {
		case n.id == "":
			v.add(ErrorStructural("<unnamed>", "node has no id"))
			continue
		case flow.IsSystemNode(n.id):
			v.add(ErrorStructural(n.id, "node id is reserved"))
		case v.index[n.id] != nil:
			v.add(ErrorStructural(n.id, "node id is used more than once"))
			continue
		}
		v.index[n.id] = n
	}

	for _, n := range v.w.nodes {
		for _, id := range n.UpstreamIDs() {
			if _, ok := v.index[id]; !ok {
				v.add(ErrorStructural(n.id, fmt.Sprintf("upstream node %q is not part of the workflow", id)))
			}
		}
		v.checkNode(n, n.id)
	}
}

// checkNode validates a node's executable and bindings. Branch case
// nodes are checked recursively under the branch's name.
func (v *validator) checkNode(n *Node, where string) {
	iface, known := n.exec.Interface()
	switch e := n.exec.(type) {
	case *TaskExecutable, *SubWorkflowExecutable:
	case *BranchExecutable:
		if len(e.Cases) == 0 {
			v.add(ErrorStructural(where, "branch has no cases"))
		}
		for i, c := range e.Cases {
			if err := checkCondition(c.Condition); err != nil {
				v.add(ErrorStructural(where, fmt.Sprintf("case %d: %v", i, err)))
			}
			if c.Then == nil {
				v.add(ErrorStructural(where, fmt.Sprintf("case %d has no node", i)))
				continue
			}
			v.checkNode(c.Then, fmt.Sprintf("%s/%s", where, c.Then.id))
		}
		if e.Else != nil {
			v.checkNode(e.Else, fmt.Sprintf("%s/%s", where, e.Else.id))
		}
	default:
		panic("unreachable")
	}

	for _, b := range n.bindings {
		name := where + "." + b.Var
		declared := flow.Simple(flow.SimpleAny)
		if known {
			vr, ok := iface.Inputs[b.Var]
			if !ok {
				v.add(ErrorReference(name, "not an input of the callee interface"))
				continue
			}
			declared = vr.Type
		}
		v.checkData(name, declared, b.Data)
	}
	if known {
		bound := make(map[string]bool, len(n.bindings))
		for _, b := range n.bindings {
			bound[b.Var] = true
		}
		for _, in := range iface.InputNames() {
			if !bound[in] {
				v.add(ErrorReference(where+"."+in, "required input has no binding"))
			}
		}
	}
}

func (v *validator) checkOutputs() {
	bound := make(map[string]bool, len(v.w.outputBindings))
	for _, b := range v.w.outputBindings {
		vr, ok := v.w.iface.Outputs[b.Var]
		if !ok {
			v.add(ErrorStructural(b.Var, "output binding does not match any interface output"))
			continue
		}
		if bound[b.Var] {
			v.add(ErrorStructural(b.Var, "output is bound more than once"))
		}
		bound[b.Var] = true
		v.checkData("outputs."+b.Var, vr.Type, b.Data)
	}
	for _, name := range v.w.iface.OutputNames() {
		if !bound[name] {
			v.add(ErrorStructural(name, "interface output is not bound"))
		}
	}
}

// checkData type-checks one binding source against declared.
func (v *validator) checkData(name string, declared flow.LiteralType, d BindingData) {
	switch {
	case d.Scalar != nil:
		if !declared.Accepts(*d.Scalar) {
			v.add(ErrorType(name, declared.String(), d.Scalar.Type().String()))
		}
	case d.Promise != nil:
		target, ok := v.index[d.Promise.NodeID()]
		if !ok {
			v.add(ErrorStructural(name, fmt.Sprintf("references unknown node %q", d.Promise.NodeID())))
			return
		}
		iface, known := target.exec.Interface()
		if !known {
			return
		}
		out, ok := iface.Outputs[d.Promise.Var]
		if !ok {
			v.add(ErrorReference(d.Promise.String(), "node does not declare this output"))
			return
		}
		if !flow.Compatible(declared, out.Type) {
			v.add(ErrorType(name, declared.String(), out.Type.String()))
		}
	case d.Input != nil:
		in, ok := v.w.iface.Inputs[d.Input.Name()]
		if !ok {
			v.add(ErrorReference(d.Input.Name(), "not an input of the workflow"))
			return
		}
		if !flow.Compatible(declared, in.Type) {
			v.add(ErrorType(name, declared.String(), in.Type.String()))
		}
	case d.Collection != nil:
		elem := flow.Simple(flow.SimpleAny)
		switch {
		case declared.CollectionType != nil:
			elem = *declared.CollectionType
		case !declared.IsAny():
			v.add(ErrorType(name, declared.String(), "list"))
			return
		}
		for i, item := range d.Collection {
			v.checkData(fmt.Sprintf("%s[%d]", name, i), elem, item)
		}
	case d.Map != nil:
		value := flow.Simple(flow.SimpleAny)
		switch {
		case declared.MapValueType != nil:
			value = *declared.MapValueType
		case !declared.IsAny():
			v.add(ErrorType(name, declared.String(), "map"))
			return
		}
		keys := make([]string, 0, len(d.Map))
		for k := range d.Map {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			v.checkData(fmt.Sprintf("%s[%s]", name, k), value, d.Map[k])
		}
	default:
		v.add(ErrorStructural(name, "binding has no source"))
	}
}
