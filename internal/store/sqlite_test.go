package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/me/flowc/pkg/flow"
	"github.com/me/flowc/pkg/model"
)

func testStore(t *testing.T) *SQLiteStore {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelError}))
	st, err := NewSQLiteStore(":memory:", logger)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	if err := st.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func workflowID(project, name string) flow.Identifier {
	return flow.Identifier{ResourceType: flow.ResourceWorkflow, Project: project, Domain: "dev", Name: name, Version: "v1"}
}

func sampleTask() *TaskRecord {
	iface := flow.NewInterface()
	iface.Inputs["reads"] = flow.Variable{Type: flow.Simple(flow.SimpleBlob)}
	iface.Outputs["contigs"] = flow.Variable{Type: flow.Simple(flow.SimpleBlob)}
	return &TaskRecord{Template: flow.TaskTemplate{
		ID:        flow.Identifier{ResourceType: flow.ResourceTask, Project: "genomics", Domain: "dev", Name: "assemble", Version: "v1"},
		Type:      "container",
		Interface: iface,
		Custom:    map[string]any{"image": "assembler:2.1"},
	}}
}

func sampleWorkflow(id flow.Identifier) *WorkflowRecord {
	task := sampleTask().Template
	iface := flow.NewInterface()
	iface.Inputs["reads"] = flow.Variable{Type: flow.Simple(flow.SimpleBlob)}
	iface.Outputs["contigs"] = flow.Variable{Type: flow.Simple(flow.SimpleBlob)}
	return &WorkflowRecord{
		ID: id,
		Spec: flow.WorkflowSpec{
			Template: flow.WorkflowTemplate{
				ID:        id,
				Metadata:  flow.WorkflowMetadata{OnFailure: flow.FailImmediately},
				Interface: iface,
				Nodes: []flow.NodeTemplate{{
					ID:              "assemble",
					Metadata:        flow.NodeMetadata{Name: "assemble", Retries: 2},
					Inputs:          []flow.Binding{{Var: "reads", Binding: flow.BindingData{Input: &flow.InputReference{Name: "reads"}}}},
					UpstreamNodeIDs: []string{},
					TaskNode:        &flow.TaskNode{ReferenceID: task.ID},
				}},
				Outputs: []flow.Binding{{Var: "contigs", Binding: flow.BindingData{Promise: &flow.OutputReference{NodeID: "assemble", Var: "contigs"}}}},
			},
			SubWorkflows: []flow.WorkflowTemplate{},
		},
		CreatedAt: time.Now().UTC().Truncate(time.Millisecond),
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	st := testStore(t)
	if err := st.Migrate(context.Background()); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
}

func TestCreateAndGetWorkflow(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	rec := sampleWorkflow(workflowID("genomics", "assembly"))

	if err := st.CreateWorkflow(ctx, rec); err != nil {
		t.Fatalf("create: %v", err)
	}
	got, err := st.GetWorkflow(ctx, rec.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil {
		t.Fatal("got nil workflow")
	}
	if diff := cmp.Diff(rec.Spec, got.Spec); diff != "" {
		t.Errorf("spec mismatch (-want +got):\n%s", diff)
	}
	if !got.CreatedAt.Equal(rec.CreatedAt) {
		t.Errorf("created_at = %v, want %v", got.CreatedAt, rec.CreatedAt)
	}
}

func TestCreateWorkflow_AlreadyExists(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	rec := sampleWorkflow(workflowID("genomics", "assembly"))
	if err := st.CreateWorkflow(ctx, rec); err != nil {
		t.Fatalf("create: %v", err)
	}

	changed := sampleWorkflow(rec.ID)
	changed.Spec.Template.Nodes = nil
	if err := st.CreateWorkflow(ctx, changed); !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("second create err = %v, want ErrAlreadyExists", err)
	}
	got, _ := st.GetWorkflow(ctx, rec.ID)
	if len(got.Spec.Template.Nodes) != 1 {
		t.Errorf("stored workflow was overwritten")
	}
}

func TestGetWorkflow_NotFound(t *testing.T) {
	st := testStore(t)
	got, err := st.GetWorkflow(context.Background(), workflowID("genomics", "missing"))
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil, got %+v", got)
	}
}

func TestListWorkflows_Empty(t *testing.T) {
	st := testStore(t)
	workflows, total, err := st.ListWorkflows(context.Background(), model.DefaultListOptions())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 0 {
		t.Errorf("total = %d, want 0", total)
	}
	if len(workflows) != 0 {
		t.Errorf("len = %d, want 0", len(workflows))
	}
}

func TestListWorkflows_PaginationAndFilter(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()

	base := time.Now().UTC()
	for i := 0; i < 3; i++ {
		rec := sampleWorkflow(workflowID("genomics", fmt.Sprintf("wf-%d", i)))
		rec.CreatedAt = base.Add(time.Duration(i) * time.Second)
		if err := st.CreateWorkflow(ctx, rec); err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
	}
	other := sampleWorkflow(workflowID("proteomics", "wf-x"))
	other.CreatedAt = base.Add(-time.Minute)
	if err := st.CreateWorkflow(ctx, other); err != nil {
		t.Fatalf("create other: %v", err)
	}

	page, total, err := st.ListWorkflows(ctx, model.ListOptions{Limit: 2, Project: "genomics"})
	if err != nil {
		t.Fatalf("list page 1: %v", err)
	}
	if total != 3 {
		t.Errorf("total = %d, want 3", total)
	}
	if len(page) != 2 || page[0].Name != "wf-2" {
		t.Fatalf("page 1 = %v, want newest first", page)
	}
	if page[0].NodeCount != 1 || page[0].SubWorkflows != 0 || page[0].Project != "genomics" {
		t.Errorf("summary = %+v", page[0])
	}

	page, _, err = st.ListWorkflows(ctx, model.ListOptions{Limit: 2, Offset: 2, Project: "genomics"})
	if err != nil {
		t.Fatalf("list page 2: %v", err)
	}
	if len(page) != 1 || page[0].Name != "wf-0" {
		t.Errorf("page 2 = %v, want [wf-0]", page)
	}

	_, total, err = st.ListWorkflows(ctx, model.ListOptions{})
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if total != 4 {
		t.Errorf("unfiltered total = %d, want 4", total)
	}
}

func TestCreateAndGetTask(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	rec := sampleTask()

	if err := st.CreateTask(ctx, rec); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := st.CreateTask(ctx, rec); !errors.Is(err, ErrAlreadyExists) {
		t.Errorf("second create err = %v, want ErrAlreadyExists", err)
	}

	got, err := st.GetTask(ctx, rec.Template.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil {
		t.Fatal("got nil task")
	}
	if diff := cmp.Diff(rec.Template, got.Template); diff != "" {
		t.Errorf("template mismatch (-want +got):\n%s", diff)
	}

	missing, err := st.GetTask(ctx, flow.Identifier{ResourceType: flow.ResourceTask, Name: "nope"})
	if err != nil || missing != nil {
		t.Errorf("GetTask(missing) = %v, %v; want nil, nil", missing, err)
	}
}
