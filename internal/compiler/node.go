package compiler

import (
	"fmt"
	"sort"
	"time"

	"github.com/me/flowc/pkg/flow"
)

// Node is one unit of work in a workflow graph. Its id is empty until
// discovery (or promotion) assigns it, and never changes afterwards.
type Node struct {
	id         string
	metadata   flow.NodeMetadata
	bindings   []Binding
	upstream   []*Node
	downstream []*Node
	exec       Executable
}

// NodeOption adjusts a node's metadata at creation.
type NodeOption func(*flow.NodeMetadata)

// WithNodeName sets the display name. It defaults to the node id.
func WithNodeName(name string) NodeOption {
	return func(m *flow.NodeMetadata) { m.Name = name }
}

// WithTimeout sets the node timeout.
func WithTimeout(d time.Duration) NodeOption {
	return func(m *flow.NodeMetadata) { m.Timeout = d }
}

// WithRetries sets the retry budget.
func WithRetries(n int) NodeOption {
	return func(m *flow.NodeMetadata) { m.Retries = n }
}

// WithInterruptible overrides the workflow-level interruptible default.
func WithInterruptible(v bool) NodeOption {
	return func(m *flow.NodeMetadata) { m.Interruptible = &v }
}

func newNode(exec Executable, bindings []Binding, upstream []*Node, opts ...NodeOption) *Node {
	n := &Node{exec: exec, bindings: bindings}
	for _, opt := range opts {
		opt(&n.metadata)
	}
	for _, up := range upstream {
		n.link(up)
	}
	return n
}

// ID returns the node id, or "" if not yet assigned.
func (n *Node) ID() string { return n.id }

// SetID assigns the node id. Assigning the same id again is a no-op;
// assigning a different one fails. Unnamed branch case nodes are named
// after the branch.
func (n *Node) SetID(id string) error {
	switch {
	case id == "":
		return ErrorStructural(n.id, "node id must not be empty")
	case flow.IsSystemNode(id):
		return ErrorStructural(id, "node id is reserved")
	case n.id == id:
		return nil
	case n.id != "":
		return ErrorStructural(n.id, fmt.Sprintf("node id is already assigned, cannot rename to %q", id))
	}
	n.id = id
	if n.metadata.Name == "" {
		n.metadata.Name = id
	}
	if b, ok := n.exec.(*BranchExecutable); ok {
		for i, c := range b.Cases {
			if c.Then.id == "" {
				if err := c.Then.SetID(fmt.Sprintf("%s-case%d", id, i)); err != nil {
					return err
				}
			}
		}
		if b.Else != nil && b.Else.id == "" {
			if err := b.Else.SetID(id + "-else"); err != nil {
				return err
			}
		}
	}
	return nil
}

func (n *Node) Metadata() flow.NodeMetadata { return n.metadata }

func (n *Node) Executable() Executable { return n.exec }

// Bindings returns the input bindings sorted by variable name.
func (n *Node) Bindings() []Binding {
	return append([]Binding(nil), n.bindings...)
}

// Upstream returns the nodes this node depends on.
func (n *Node) Upstream() []*Node {
	return append([]*Node(nil), n.upstream...)
}

// Downstream returns the nodes that depend on this node.
func (n *Node) Downstream() []*Node {
	return append([]*Node(nil), n.downstream...)
}

// UpstreamIDs returns the sorted, distinct ids of the upstream nodes.
func (n *Node) UpstreamIDs() []string {
	seen := make(map[string]bool, len(n.upstream))
	ids := make([]string, 0, len(n.upstream))
	for _, up := range n.upstream {
		if !seen[up.id] {
			seen[up.id] = true
			ids = append(ids, up.id)
		}
	}
	sort.Strings(ids)
	return ids
}

// Output returns a reference to one of this node's outputs, for use as
// an argument to another node or a workflow Output.
func (n *Node) Output(name string) *Promise {
	return &Promise{node: n, Var: name}
}

// RunsAfter adds explicit ordering dependencies that carry no data.
func (n *Node) RunsAfter(others ...*Node) {
	for _, o := range others {
		n.link(o)
	}
}

// link records up -> n in both directions, once.
func (n *Node) link(up *Node) {
	for _, existing := range n.upstream {
		if existing == up {
			return
		}
	}
	n.upstream = append(n.upstream, up)
	up.downstream = append(up.downstream, n)
}

// Template renders the wire form of the node.
func (n *Node) Template() flow.NodeTemplate {
	t := flow.NodeTemplate{
		ID:              n.id,
		Metadata:        n.metadata,
		Inputs:          bindingsToWire(n.bindings),
		UpstreamNodeIDs: n.UpstreamIDs(),
	}
	switch e := n.exec.(type) {
	case *TaskExecutable:
		t.TaskNode = &flow.TaskNode{ReferenceID: e.ID}
	case *SubWorkflowExecutable:
		t.WorkflowNode = &flow.WorkflowNode{SubWorkflowRef: e.Ref()}
	case *BranchExecutable:
		block := flow.IfElseBlock{Cases: make([]flow.IfBlock, 0, len(e.Cases)), Error: e.Error}
		for _, c := range e.Cases {
			block.Cases = append(block.Cases, flow.IfBlock{Condition: c.Condition, ThenNode: c.Then.Template()})
		}
		if e.Else != nil {
			elseNode := e.Else.Template()
			block.ElseNode = &elseNode
		}
		t.BranchNode = &flow.BranchNode{IfElse: block}
	default:
		panic("unreachable")
	}
	return t
}
