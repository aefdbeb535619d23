package controlplane

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/me/flowc/internal/store"
	"github.com/me/flowc/pkg/flow"
	"github.com/me/flowc/pkg/model"
)

// Local is a ControlPlane backed directly by a store. The server uses
// it behind its HTTP handlers; the CLI uses it when no server is
// configured.
type Local struct {
	store  store.Store
	logger *slog.Logger
}

// NewLocal returns a control plane over st.
func NewLocal(st store.Store, logger *slog.Logger) *Local {
	return &Local{store: st, logger: logger.With("component", "controlplane")}
}

// CreateWorkflow stores spec under id.
func (l *Local) CreateWorkflow(ctx context.Context, id flow.Identifier, spec flow.WorkflowSpec) error {
	err := l.store.CreateWorkflow(ctx, &store.WorkflowRecord{ID: id, Spec: spec, CreatedAt: time.Now().UTC()})
	switch {
	case err == nil:
		l.logger.Info("workflow created", "id", id.String(), "nodes", len(spec.Template.Nodes))
		return nil
	case errors.Is(err, store.ErrAlreadyExists):
		return ErrorAlreadyExists(id)
	default:
		return ErrorIO("create workflow", err)
	}
}

// GetWorkflow assembles the closure of a stored workflow. Task
// templates referenced by the workflow but never created are left out
// of the closure.
func (l *Local) GetWorkflow(ctx context.Context, id flow.Identifier) (*flow.CompiledWorkflowClosure, error) {
	rec, err := l.store.GetWorkflow(ctx, id)
	if err != nil {
		return nil, ErrorIO("get workflow", err)
	}
	if rec == nil {
		return nil, ErrorNotFound(id)
	}

	closure := &flow.CompiledWorkflowClosure{
		Primary:      rec.Spec.Template,
		SubWorkflows: rec.Spec.SubWorkflows,
		Tasks:        []flow.TaskTemplate{},
	}
	if closure.SubWorkflows == nil {
		closure.SubWorkflows = []flow.WorkflowTemplate{}
	}

	seen := map[flow.Identifier]bool{}
	templates := append([]flow.WorkflowTemplate{closure.Primary}, closure.SubWorkflows...)
	for _, tpl := range templates {
		for _, ref := range tpl.TaskRefs() {
			if seen[ref] {
				continue
			}
			seen[ref] = true
			task, err := l.store.GetTask(ctx, ref)
			if err != nil {
				return nil, ErrorIO("get task", err)
			}
			if task == nil {
				l.logger.Debug("task not in store", "workflow", id.String(), "task", ref.String())
				continue
			}
			closure.Tasks = append(closure.Tasks, task.Template)
		}
	}
	return closure, nil
}

// CreateTask stores a task template under its own id.
func (l *Local) CreateTask(ctx context.Context, tpl flow.TaskTemplate) error {
	err := l.store.CreateTask(ctx, &store.TaskRecord{Template: tpl, CreatedAt: time.Now().UTC()})
	switch {
	case err == nil:
		l.logger.Info("task created", "id", tpl.ID.String())
		return nil
	case errors.Is(err, store.ErrAlreadyExists):
		return ErrorAlreadyExists(tpl.ID)
	default:
		return ErrorIO("create task", err)
	}
}

// GetTask returns a stored task template.
func (l *Local) GetTask(ctx context.Context, id flow.Identifier) (*flow.TaskTemplate, error) {
	rec, err := l.store.GetTask(ctx, id)
	if err != nil {
		return nil, ErrorIO("get task", err)
	}
	if rec == nil {
		return nil, ErrorNotFound(id)
	}
	return &rec.Template, nil
}

// ListWorkflows returns one page of stored workflow summaries.
func (l *Local) ListWorkflows(ctx context.Context, opts model.ListOptions) ([]*model.WorkflowSummary, *model.Pagination, error) {
	opts.Clamp()
	workflows, total, err := l.store.ListWorkflows(ctx, opts)
	if err != nil {
		return nil, nil, ErrorIO("list workflows", err)
	}
	if workflows == nil {
		workflows = []*model.WorkflowSummary{}
	}
	return workflows, model.NewPagination(opts, len(workflows), total), nil
}
