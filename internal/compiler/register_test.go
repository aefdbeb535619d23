package compiler

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/me/flowc/internal/config"
	"github.com/me/flowc/internal/controlplane"
	"github.com/me/flowc/pkg/flow"
	"github.com/me/flowc/pkg/model"
)

// fakeControlPlane records submissions and fails with err when set.
type fakeControlPlane struct {
	mu      sync.Mutex
	err     error
	created map[flow.Identifier]flow.WorkflowSpec
	calls   int
	// during runs inside CreateWorkflow, before the result is returned.
	during func()
}

func newFakeControlPlane() *fakeControlPlane {
	return &fakeControlPlane{created: map[flow.Identifier]flow.WorkflowSpec{}}
}

func (f *fakeControlPlane) CreateWorkflow(_ context.Context, id flow.Identifier, spec flow.WorkflowSpec) error {
	f.mu.Lock()
	f.calls++
	during := f.during
	f.mu.Unlock()
	if during != nil {
		during()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	if _, ok := f.created[id]; ok {
		return controlplane.ErrorAlreadyExists(id)
	}
	f.created[id] = spec
	return nil
}

func (f *fakeControlPlane) GetWorkflow(_ context.Context, id flow.Identifier) (*flow.CompiledWorkflowClosure, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	spec, ok := f.created[id]
	if !ok {
		return nil, controlplane.ErrorNotFound(id)
	}
	return &flow.CompiledWorkflowClosure{Primary: spec.Template, SubWorkflows: spec.SubWorkflows}, nil
}

var registeredID = flow.Identifier{ResourceType: flow.ResourceWorkflow, Project: "p2", Domain: "prod", Name: "pipeline", Version: "v7"}

func register(w *Workflow, cp controlplane.ControlPlane) (flow.Identifier, error) {
	return w.Register(context.Background(), cp, "p2", "prod", "pipeline", "v7")
}

func TestRegister_Success(t *testing.T) {
	w := singleStep(t, testCompiler(), "local")
	cp := newFakeControlPlane()

	id, err := register(w, cp)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if id != registeredID || w.ID() != registeredID {
		t.Errorf("id = %v, ID() = %v, want %v", id, w.ID(), registeredID)
	}
	if w.Phase() != model.RegistrationRegistered {
		t.Errorf("Phase() = %s, want REGISTERED", w.Phase())
	}
	spec, ok := cp.created[registeredID]
	if !ok {
		t.Fatal("control plane did not receive the workflow")
	}
	if spec.Template.ID != registeredID {
		t.Errorf("submitted template id = %v, want %v", spec.Template.ID, registeredID)
	}
}

func TestRegister_AlreadyExists(t *testing.T) {
	cp := newFakeControlPlane()
	if _, err := register(singleStep(t, testCompiler(), "first"), cp); err != nil {
		t.Fatalf("Register first: %v", err)
	}

	w := singleStep(t, testCompiler(), "second")
	id, err := register(w, cp)
	if err != nil {
		t.Fatalf("Register second: %v", err)
	}
	if id != registeredID || w.ID() != registeredID {
		t.Errorf("ID() = %v, want %v", w.ID(), registeredID)
	}
	if w.Phase() != model.RegistrationRegistered {
		t.Errorf("Phase() = %s, want REGISTERED", w.Phase())
	}
}

func TestRegister_FailureRestoresState(t *testing.T) {
	w := singleStep(t, testCompiler(), "local")
	before := w.ID()
	cause := controlplane.ErrorIO("create workflow", errors.New("connection refused"))
	cp := newFakeControlPlane()
	cp.err = cause

	var during flow.Identifier
	var duringPhase model.RegistrationPhase
	cp.during = func() {
		during = w.ID()
		duringPhase = w.Phase()
	}

	_, err := register(w, cp)
	if !errors.Is(err, cause) {
		t.Fatalf("err = %v, want the control plane error", err)
	}
	if during != registeredID || duringPhase != model.RegistrationRegistering {
		t.Errorf("in flight: ID() = %v phase %s, want %v REGISTERING", during, duringPhase, registeredID)
	}
	if w.ID() != before {
		t.Errorf("ID() = %v, want restored %v", w.ID(), before)
	}
	if w.Phase() != model.RegistrationUnregistered {
		t.Errorf("Phase() = %s, want UNREGISTERED", w.Phase())
	}

	cp.err = nil
	cp.during = nil
	if _, err := register(w, cp); err != nil {
		t.Fatalf("retry Register: %v", err)
	}
	if w.Phase() != model.RegistrationRegistered {
		t.Errorf("Phase() after retry = %s, want REGISTERED", w.Phase())
	}
}

func TestRegister_ReRegisterFailureKeepsRegisteredID(t *testing.T) {
	w := singleStep(t, testCompiler(), "local")
	cp := newFakeControlPlane()
	if _, err := register(w, cp); err != nil {
		t.Fatalf("Register: %v", err)
	}

	cp.err = controlplane.ErrorIO("create workflow", errors.New("timeout"))
	if _, err := w.Register(context.Background(), cp, "p2", "prod", "pipeline", "v8"); err == nil {
		t.Fatal("expected error")
	}
	if w.ID() != registeredID || w.Phase() != model.RegistrationRegistered {
		t.Errorf("ID() = %v phase %s, want %v REGISTERED", w.ID(), w.Phase(), registeredID)
	}
}

func TestRegister_InvalidWorkflowNeverSubmitted(t *testing.T) {
	w := singleStep(t, testCompiler(), "broken")
	tpl := w.Template()
	tpl.Outputs = nil
	broken, err := testCompiler().Promote(tpl, nil, nil)
	if err != nil {
		t.Fatalf("Promote: %v", err)
	}
	before := broken.ID()
	cp := newFakeControlPlane()

	_, err = register(broken, cp)
	assertCode(t, err, CodeStructural)
	if cp.calls != 0 {
		t.Errorf("control plane called %d times, want 0", cp.calls)
	}
	if broken.ID() != before {
		t.Errorf("ID() = %v, want unchanged %v", broken.ID(), before)
	}
}

func TestRegister_RejectsOverlappingRegistration(t *testing.T) {
	var logs bytes.Buffer
	c := New(config.CompileConfig{Project: "proj", Domain: "dev", Version: "v1"}, slog.New(slog.NewTextHandler(&logs, nil)))
	w := singleStep(t, c, "local")
	cp := newFakeControlPlane()

	var nested error
	cp.during = func() {
		_, nested = w.Register(context.Background(), newFakeControlPlane(), "p3", "prod", "other", "v1")
	}
	if _, err := register(w, cp); err != nil {
		t.Fatalf("Register: %v", err)
	}
	var te *model.InvalidTransitionError
	if !errors.As(nested, &te) {
		t.Fatalf("nested Register err = %v, want InvalidTransitionError", nested)
	}
	if te.From != "REGISTERING" {
		t.Errorf("From = %q, want REGISTERING", te.From)
	}
	if w.ID() != registeredID {
		t.Errorf("ID() = %v, want %v", w.ID(), registeredID)
	}
	if !strings.Contains(logs.String(), "registration already in flight") {
		t.Errorf("expected in-flight warning in logs, got: %s", logs.String())
	}
}

func TestRegister_RejectsSeparatorInIdentifier(t *testing.T) {
	tests := []struct {
		name                             string
		project, domain, wfName, version string
	}{
		{"project", "a:b", "prod", "pipeline", "v1"},
		{"domain", "p2", "pr:od", "pipeline", "v1"},
		{"name", "p2", "prod", "pipe:line", "v1"},
		{"version", "p2", "prod", "pipeline", "sha:1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := singleStep(t, testCompiler(), "local")
			before := w.ID()
			cp := newFakeControlPlane()

			_, err := w.Register(context.Background(), cp, tt.project, tt.domain, tt.wfName, tt.version)
			assertCode(t, err, CodeReference)
			if cp.calls != 0 {
				t.Errorf("control plane called %d times, want 0", cp.calls)
			}
			if w.ID() != before || w.Phase() != model.RegistrationUnregistered {
				t.Errorf("ID() = %v phase %s, want unchanged %v UNREGISTERED", w.ID(), w.Phase(), before)
			}
		})
	}
}

func TestFetch_RoundTrip(t *testing.T) {
	parent, _ := nestedWorkflow(t)
	cp := newFakeControlPlane()
	if _, err := register(parent, cp); err != nil {
		t.Fatalf("Register: %v", err)
	}

	c := testCompiler()
	c.cfg.Version = "v7"
	fetched, err := c.Fetch(context.Background(), cp, "p2", "prod", "pipeline", "")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if fetched.ID() != registeredID || fetched.Phase() != model.RegistrationRegistered {
		t.Errorf("fetched %v phase %s", fetched.ID(), fetched.Phase())
	}
	sub, ok := fetched.Node("sub")
	if !ok || !sub.Executable().(*SubWorkflowExecutable).Hydrated() {
		t.Error("sub-workflow should be hydrated from the closure")
	}

	_, err = c.Fetch(context.Background(), cp, "p2", "prod", "missing", "v1")
	if !controlplane.IsNotFound(err) {
		t.Errorf("err = %v, want not found", err)
	}
}
