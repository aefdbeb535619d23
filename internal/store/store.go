package store

import (
	"context"
	"errors"
	"time"

	"github.com/me/flowc/pkg/flow"
	"github.com/me/flowc/pkg/model"
)

// ErrAlreadyExists is returned by the Create methods when the id is
// already stored. Stored entities are immutable.
var ErrAlreadyExists = errors.New("already exists")

// WorkflowRecord is a registered workflow spec.
type WorkflowRecord struct {
	ID        flow.Identifier
	Spec      flow.WorkflowSpec
	CreatedAt time.Time
}

// TaskRecord is a registered task template.
type TaskRecord struct {
	Template  flow.TaskTemplate
	CreatedAt time.Time
}

// Store defines the persistence layer for the flowc control plane.
type Store interface {
	// Workflows
	CreateWorkflow(ctx context.Context, rec *WorkflowRecord) error
	GetWorkflow(ctx context.Context, id flow.Identifier) (*WorkflowRecord, error)
	ListWorkflows(ctx context.Context, opts model.ListOptions) ([]*model.WorkflowSummary, int, error)

	// Tasks
	CreateTask(ctx context.Context, rec *TaskRecord) error
	GetTask(ctx context.Context, id flow.Identifier) (*TaskRecord, error)

	// Lifecycle
	Close() error
	Migrate(ctx context.Context) error
}
