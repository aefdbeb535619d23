package flow

import "time"

// Reserved node ids. They never appear in user-visible node lists and
// are stripped on promotion.
const (
	StartNodeID = "start-node"
	EndNodeID   = "end-node"
)

// IsSystemNode reports whether id is one of the reserved node ids.
func IsSystemNode(id string) bool {
	return id == StartNodeID || id == EndNodeID
}

// NodeMetadata carries per-node execution hints.
type NodeMetadata struct {
	Name          string        `json:"name" yaml:"name"`
	Timeout       time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	Retries       int           `json:"retries,omitempty" yaml:"retries,omitempty"`
	Interruptible *bool         `json:"interruptible,omitempty" yaml:"interruptible,omitempty"`
}

// TaskNode targets a registered task.
type TaskNode struct {
	ReferenceID Identifier `json:"reference_id" yaml:"reference_id"`
}

// WorkflowNode targets a sub-workflow.
type WorkflowNode struct {
	SubWorkflowRef Identifier `json:"sub_workflow_ref" yaml:"sub_workflow_ref"`
}

// IfBlock runs ThenNode when Condition holds.
type IfBlock struct {
	Condition string       `json:"condition" yaml:"condition"`
	ThenNode  NodeTemplate `json:"then_node" yaml:"then_node"`
}

// IfElseBlock is an ordered list of cases with an optional fallback.
// When no case matches and ElseNode is nil, Error is reported.
type IfElseBlock struct {
	Cases    []IfBlock     `json:"cases" yaml:"cases"`
	ElseNode *NodeTemplate `json:"else_node,omitempty" yaml:"else_node,omitempty"`
	Error    string        `json:"error,omitempty" yaml:"error,omitempty"`
}

// BranchNode selects one of several nodes at run time.
type BranchNode struct {
	IfElse IfElseBlock `json:"if_else" yaml:"if_else"`
}

// NodeTemplate is the serialized form of a node. Exactly one of
// TaskNode, WorkflowNode and BranchNode is set.
type NodeTemplate struct {
	ID              string        `json:"id" yaml:"id"`
	Metadata        NodeMetadata  `json:"metadata" yaml:"metadata"`
	Inputs          []Binding     `json:"inputs" yaml:"inputs"`
	UpstreamNodeIDs []string      `json:"upstream_node_ids" yaml:"upstream_node_ids"`
	TaskNode        *TaskNode     `json:"task_node,omitempty" yaml:"task_node,omitempty"`
	WorkflowNode    *WorkflowNode `json:"workflow_node,omitempty" yaml:"workflow_node,omitempty"`
	BranchNode      *BranchNode   `json:"branch_node,omitempty" yaml:"branch_node,omitempty"`
}

// FailurePolicy controls how a workflow reacts to a failed node.
type FailurePolicy string

const (
	FailImmediately                  FailurePolicy = "FAIL_IMMEDIATELY"
	FailAfterExecutableNodesComplete FailurePolicy = "FAIL_AFTER_EXECUTABLE_NODES_COMPLETE"
)

// WorkflowMetadata holds workflow-wide settings.
type WorkflowMetadata struct {
	OnFailure FailurePolicy `json:"on_failure,omitempty" yaml:"on_failure,omitempty"`
}

// WorkflowMetadataDefaults are applied to every node unless overridden.
type WorkflowMetadataDefaults struct {
	Interruptible bool `json:"interruptible,omitempty" yaml:"interruptible,omitempty"`
}

// WorkflowTemplate is the serialized form of a single workflow.
type WorkflowTemplate struct {
	ID               Identifier               `json:"id" yaml:"id"`
	Metadata         WorkflowMetadata         `json:"metadata" yaml:"metadata"`
	MetadataDefaults WorkflowMetadataDefaults `json:"metadata_defaults" yaml:"metadata_defaults"`
	Interface        TypedInterface           `json:"interface" yaml:"interface"`
	Nodes            []NodeTemplate           `json:"nodes" yaml:"nodes"`
	Outputs          []Binding                `json:"outputs" yaml:"outputs"`
}

// TaskMetadata carries task execution hints.
type TaskMetadata struct {
	Timeout          time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	Retries          int           `json:"retries,omitempty" yaml:"retries,omitempty"`
	Discoverable     bool          `json:"discoverable,omitempty" yaml:"discoverable,omitempty"`
	DiscoveryVersion string        `json:"discovery_version,omitempty" yaml:"discovery_version,omitempty"`
}

// TaskTemplate describes a registered task. Custom is opaque to the
// compiler.
type TaskTemplate struct {
	ID        Identifier     `json:"id" yaml:"id"`
	Type      string         `json:"type" yaml:"type"`
	Metadata  TaskMetadata   `json:"metadata" yaml:"metadata"`
	Interface TypedInterface `json:"interface" yaml:"interface"`
	Custom    map[string]any `json:"custom,omitempty" yaml:"custom,omitempty"`
}

// WorkflowSpec is what gets submitted to the control plane: the primary
// template plus every sub-workflow it transitively references.
type WorkflowSpec struct {
	Template     WorkflowTemplate   `json:"template" yaml:"template"`
	SubWorkflows []WorkflowTemplate `json:"sub_workflows" yaml:"sub_workflows"`
}

// CompiledWorkflowClosure is what the control plane returns for a
// registered workflow.
type CompiledWorkflowClosure struct {
	Primary      WorkflowTemplate   `json:"primary" yaml:"primary"`
	SubWorkflows []WorkflowTemplate `json:"sub_workflows" yaml:"sub_workflows"`
	Tasks        []TaskTemplate     `json:"tasks" yaml:"tasks"`
}

// TaskRefs returns the distinct task ids referenced by t, including
// nodes nested in branches, in first-seen order.
func (t WorkflowTemplate) TaskRefs() []Identifier {
	seen := map[Identifier]bool{}
	var out []Identifier
	var visit func(n NodeTemplate)
	visit = func(n NodeTemplate) {
		switch {
		case n.TaskNode != nil:
			if !seen[n.TaskNode.ReferenceID] {
				seen[n.TaskNode.ReferenceID] = true
				out = append(out, n.TaskNode.ReferenceID)
			}
		case n.BranchNode != nil:
			for _, c := range n.BranchNode.IfElse.Cases {
				visit(c.ThenNode)
			}
			if n.BranchNode.IfElse.ElseNode != nil {
				visit(*n.BranchNode.IfElse.ElseNode)
			}
		}
	}
	for _, n := range t.Nodes {
		visit(n)
	}
	return out
}
