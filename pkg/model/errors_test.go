package model

import "testing"

func TestAPIError_Error(t *testing.T) {
	err := &APIError{Code: ErrNotFound, Message: "Workflow 'workflow:p:d:wf:v1' not found"}
	want := "NOT_FOUND: Workflow 'workflow:p:d:wf:v1' not found"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestNewNotFoundError(t *testing.T) {
	err := NewNotFoundError("Task", "task:p:d:double:v1")
	if err.Code != ErrNotFound {
		t.Errorf("Code = %q, want %q", err.Code, ErrNotFound)
	}
	if err.Message != "Task 'task:p:d:double:v1' not found" {
		t.Errorf("Message = %q, want %q", err.Message, "Task 'task:p:d:double:v1' not found")
	}
}

func TestNewConflictError(t *testing.T) {
	err := NewConflictError("Workflow", "workflow:p:d:wf:v1")
	if err.Code != ErrConflict {
		t.Errorf("Code = %q, want %q", err.Code, ErrConflict)
	}
	if err.Message != "Workflow 'workflow:p:d:wf:v1' already exists" {
		t.Errorf("Message = %q", err.Message)
	}
}

func TestNewValidationError(t *testing.T) {
	err := NewValidationError("Invalid workflow",
		FieldError{Field: "nodes.n1", Message: "unknown upstream node"},
		FieldError{Field: "outputs.result", Message: "not bound"},
	)
	if err.Code != ErrValidation {
		t.Errorf("Code = %q, want %q", err.Code, ErrValidation)
	}
	if len(err.Details) != 2 {
		t.Errorf("Details length = %d, want 2", len(err.Details))
	}
}

func TestInvalidTransitionError(t *testing.T) {
	err := &InvalidTransitionError{
		Entity: "Workflow",
		ID:     "workflow:p:d:wf:v1",
		From:   "REGISTERING",
		To:     "REGISTERING",
	}
	want := "invalid Workflow state transition: REGISTERING → REGISTERING (entity workflow:p:d:wf:v1)"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}
