package compiler

import (
	"context"

	"github.com/me/flowc/internal/controlplane"
	"github.com/me/flowc/pkg/flow"
	"github.com/me/flowc/pkg/model"
)

// Register validates w, binds it to the new identifier and submits its
// closure to cp.
//
// The new id is bound before the submission so the serialized template
// carries it, and ID readers observe it while the call is in flight. If
// the control plane already has the id, registration is treated as
// successful. Any other failure restores the previous id and phase.
// Identifier components containing ':' are rejected before anything is
// bound.
func (w *Workflow) Register(ctx context.Context, cp controlplane.ControlPlane, project, domain, name, version string) (flow.Identifier, error) {
	if err := w.Validate(); err != nil {
		return flow.Identifier{}, err
	}
	newID := flow.Identifier{
		ResourceType: flow.ResourceWorkflow,
		Project:      project,
		Domain:       domain,
		Name:         name,
		Version:      version,
	}
	if err := newID.Validate(); err != nil {
		return flow.Identifier{}, ErrorReference(newID.String(), err.Error())
	}
	if err := w.beginRegistration(newID); err != nil {
		return flow.Identifier{}, err
	}

	spec, err := w.Serialize()
	if err == nil {
		err = cp.CreateWorkflow(ctx, newID, spec)
	}
	switch {
	case err == nil:
		w.logger.Info("registered workflow", "id", newID.String())
	case controlplane.IsAlreadyExists(err):
		w.logger.Info("workflow already registered", "id", newID.String())
	default:
		restored := w.abortRegistration()
		w.logger.Warn("workflow registration failed", "id", newID.String(), "restored", restored.String(), "error", err)
		return flow.Identifier{}, err
	}
	w.completeRegistration()
	return newID, nil
}

// pendingRegistration is what Registering remembers of the state it
// was entered from.
type pendingRegistration struct {
	id    flow.Identifier
	phase model.RegistrationPhase
}

func (w *Workflow) beginRegistration(id flow.Identifier) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.phase.CanTransitionTo(model.RegistrationRegistering) {
		if !w.phase.IsSettled() {
			w.logger.Warn("registration already in flight", "id", w.id.String(), "requested", id.String())
		}
		return &model.InvalidTransitionError{
			Entity: "Workflow",
			ID:     w.id.String(),
			From:   w.phase.String(),
			To:     model.RegistrationRegistering.String(),
		}
	}
	w.pending = &pendingRegistration{id: w.id, phase: w.phase}
	w.phase = model.RegistrationRegistering
	w.id = id
	w.logger.Debug("registration started", "id", id.String(), "previous", w.pending.id.String())
	return nil
}

func (w *Workflow) completeRegistration() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.phase = model.RegistrationRegistered
	w.pending = nil
}

// abortRegistration restores the id and phase held before
// beginRegistration and returns the restored id.
func (w *Workflow) abortRegistration() flow.Identifier {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.id = w.pending.id
	w.phase = w.pending.phase
	w.pending = nil
	return w.id
}
