package model

import (
	"time"

	"github.com/me/flowc/pkg/flow"
)

// WorkflowSummary is the list-view representation of a registered
// workflow.
type WorkflowSummary struct {
	ID           string    `json:"id"`
	Project      string    `json:"project"`
	Domain       string    `json:"domain"`
	Name         string    `json:"name"`
	Version      string    `json:"version"`
	NodeCount    int       `json:"node_count"`
	SubWorkflows int       `json:"sub_workflows"`
	CreatedAt    time.Time `json:"created_at"`
}

// CreateWorkflowRequest is the body of POST /api/v1/workflows.
type CreateWorkflowRequest struct {
	ID   flow.Identifier   `json:"id"`
	Spec flow.WorkflowSpec `json:"spec"`
}
