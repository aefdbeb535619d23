package compiler

import (
	"context"
	"fmt"

	"github.com/me/flowc/internal/controlplane"
	"github.com/me/flowc/pkg/flow"
	"github.com/me/flowc/pkg/model"
)

// Promote rebuilds an in-memory workflow from its serialized template.
//
// Sub-workflow nodes are promoted recursively from subWorkflows and task
// nodes are hydrated from tasks; a reference missing from its table
// leaves the executable unhydrated rather than failing. The reserved
// start and end nodes are dropped. An upstream id that names no node in
// the template is an internal error.
func (c *Compiler) Promote(tpl flow.WorkflowTemplate, subWorkflows map[flow.Identifier]flow.WorkflowTemplate, tasks map[flow.Identifier]flow.TaskTemplate) (*Workflow, error) {
	p := &promoter{
		c:        c,
		subs:     subWorkflows,
		tasks:    tasks,
		done:     map[flow.Identifier]*Workflow{},
		visiting: map[flow.Identifier]bool{},
	}
	return p.workflow(tpl)
}

type promoter struct {
	c        *Compiler
	subs     map[flow.Identifier]flow.WorkflowTemplate
	tasks    map[flow.Identifier]flow.TaskTemplate
	done     map[flow.Identifier]*Workflow
	visiting map[flow.Identifier]bool
}

func (p *promoter) workflow(tpl flow.WorkflowTemplate) (*Workflow, error) {
	if p.visiting[tpl.ID] {
		return nil, ErrorInternal(fmt.Sprintf("workflow %s references itself through its sub-workflows", tpl.ID))
	}
	p.visiting[tpl.ID] = true
	defer delete(p.visiting, tpl.ID)

	var nodes []*Node
	index := map[string]*Node{}
	upstream := map[*Node][]string{}
	for _, nt := range tpl.Nodes {
		if flow.IsSystemNode(nt.ID) {
			continue
		}
		n, err := p.node(nt, upstream)
		if err != nil {
			return nil, err
		}
		if _, dup := index[n.id]; dup {
			return nil, ErrorInternal(fmt.Sprintf("workflow %s has more than one node with id %s", tpl.ID, n.id))
		}
		index[n.id] = n
		nodes = append(nodes, n)
	}

	// Link after every node exists so edges may point forward.
	for _, n := range nodes {
		if err := p.link(n, upstream, index); err != nil {
			return nil, err
		}
	}

	iface := copyInterface(tpl.Interface)
	w := &Workflow{
		id:               tpl.ID,
		phase:            model.RegistrationUnregistered,
		metadata:         tpl.Metadata,
		metadataDefaults: tpl.MetadataDefaults,
		iface:            iface,
		nodes:            nodes,
		outputBindings:   bindingsFromWire(tpl.Outputs),
		logger:           p.c.logger,
	}
	for _, b := range w.outputBindings {
		for _, pr := range b.Data.Promises() {
			if target, ok := index[pr.nodeID]; ok {
				pr.node = target
			}
		}
	}
	p.c.logger.Debug("promoted workflow", "id", tpl.ID.String(), "nodes", len(nodes))
	return w, nil
}

// link resolves n's serialized upstream ids, then those of any branch
// case nodes, against the workflow's node index.
func (p *promoter) link(n *Node, upstream map[*Node][]string, index map[string]*Node) error {
	if err := linkUpstream(n, upstream[n], index); err != nil {
		return err
	}
	if b, ok := n.exec.(*BranchExecutable); ok {
		for _, inner := range b.innerNodes() {
			if err := p.link(inner, upstream, index); err != nil {
				return err
			}
		}
	}
	return nil
}

func (p *promoter) node(nt flow.NodeTemplate, upstream map[*Node][]string) (*Node, error) {
	if nt.ID == "" {
		return nil, ErrorInternal("serialized node has no id")
	}
	var exec Executable
	switch {
	case nt.TaskNode != nil:
		te := &TaskExecutable{ID: nt.TaskNode.ReferenceID}
		if tpl, ok := p.tasks[te.ID]; ok {
			te.Template = &tpl
		}
		exec = te
	case nt.WorkflowNode != nil:
		se := &SubWorkflowExecutable{ID: nt.WorkflowNode.SubWorkflowRef}
		if sub, ok := p.done[se.ID]; ok {
			se.Workflow = sub
		} else if tpl, ok := p.subs[se.ID]; ok {
			sub, err := p.workflow(tpl)
			if err != nil {
				return nil, err
			}
			p.done[se.ID] = sub
			se.Workflow = sub
		}
		exec = se
	case nt.BranchNode != nil:
		be := &BranchExecutable{Error: nt.BranchNode.IfElse.Error}
		for _, c := range nt.BranchNode.IfElse.Cases {
			then, err := p.node(c.ThenNode, upstream)
			if err != nil {
				return nil, err
			}
			be.Cases = append(be.Cases, BranchCase{Condition: c.Condition, Then: then})
		}
		if nt.BranchNode.IfElse.ElseNode != nil {
			elseNode, err := p.node(*nt.BranchNode.IfElse.ElseNode, upstream)
			if err != nil {
				return nil, err
			}
			be.Else = elseNode
		}
		exec = be
	default:
		return nil, ErrorInternal(fmt.Sprintf("node %s has no task, workflow or branch target", nt.ID))
	}

	n := &Node{
		id:       nt.ID,
		metadata: nt.Metadata,
		bindings: bindingsFromWire(nt.Inputs),
		exec:     exec,
	}
	upstream[n] = nt.UpstreamNodeIDs
	return n, nil
}

// Fetch retrieves a registered workflow from cp and promotes it. An
// empty version means the compile context's version.
func (c *Compiler) Fetch(ctx context.Context, cp controlplane.ControlPlane, project, domain, name, version string) (*Workflow, error) {
	if version == "" {
		version = c.cfg.Version
	}
	id := flow.Identifier{
		ResourceType: flow.ResourceWorkflow,
		Project:      project,
		Domain:       domain,
		Name:         name,
		Version:      version,
	}
	closure, err := cp.GetWorkflow(ctx, id)
	if err != nil {
		return nil, err
	}

	subs := make(map[flow.Identifier]flow.WorkflowTemplate, len(closure.SubWorkflows))
	for _, s := range closure.SubWorkflows {
		subs[s.ID] = s
	}
	tasks := make(map[flow.Identifier]flow.TaskTemplate, len(closure.Tasks))
	for _, t := range closure.Tasks {
		tasks[t.ID] = t
	}

	w, err := c.Promote(closure.Primary, subs, tasks)
	if err != nil {
		return nil, err
	}
	w.mu.Lock()
	w.id = id
	w.phase = model.RegistrationRegistered
	w.mu.Unlock()
	c.logger.Debug("fetched workflow", "id", id.String(), "sub_workflows", len(subs), "tasks", len(tasks))
	return w, nil
}
