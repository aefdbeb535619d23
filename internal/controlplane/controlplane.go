// Package controlplane defines the two control-plane operations the
// compiler consumes, with an HTTP client and a store-backed local
// implementation.
package controlplane

import (
	"context"
	"errors"

	"github.com/serum-errors/go-serum"

	"github.com/me/flowc/pkg/flow"
)

const (
	CodeAlreadyExists = "flowc-error-already-exists"
	CodeNotFound      = "flowc-error-not-found"
	CodeIO            = "flowc-error-io"
)

// ControlPlane stores compiled workflows and hands them back as closures.
type ControlPlane interface {
	// CreateWorkflow registers spec under id. If id is already
	// registered the error carries CodeAlreadyExists.
	CreateWorkflow(ctx context.Context, id flow.Identifier, spec flow.WorkflowSpec) error
	// GetWorkflow returns the closure of a registered workflow: its
	// template, its sub-workflows, and the task templates it uses.
	GetWorkflow(ctx context.Context, id flow.Identifier) (*flow.CompiledWorkflowClosure, error)
}

// ErrorAlreadyExists is returned when an entity id is already registered.
//
// Errors:
//
//   - flowc-error-already-exists --
func ErrorAlreadyExists(id flow.Identifier) error {
	return serum.Error(CodeAlreadyExists,
		serum.WithMessageTemplate("{{id}} is already registered"),
		serum.WithDetail("id", id.String()),
	)
}

// ErrorNotFound is returned when an entity id is not registered.
//
// Errors:
//
//   - flowc-error-not-found --
func ErrorNotFound(id flow.Identifier) error {
	return serum.Error(CodeNotFound,
		serum.WithMessageTemplate("{{id}} is not registered"),
		serum.WithDetail("id", id.String()),
	)
}

// ErrorIO wraps transport and storage failures.
//
// Errors:
//
//   - flowc-error-io --
func ErrorIO(op string, cause error) error {
	result := serum.Errorf(CodeIO, "control plane error: %s: %w", op, cause)
	addDetails(result, [][2]string{{"context", op}})
	return result
}

func addDetails(err error, details [][2]string) {
	if s, ok := err.(*serum.ErrorValue); ok {
		s.Data.Details = append(s.Data.Details, details...)
	}
}

// IsAlreadyExists reports whether err, or anything it wraps, carries
// CodeAlreadyExists.
func IsAlreadyExists(err error) bool {
	return hasCode(err, CodeAlreadyExists)
}

// IsNotFound reports whether err, or anything it wraps, carries
// CodeNotFound.
func IsNotFound(err error) bool {
	return hasCode(err, CodeNotFound)
}

func hasCode(err error, code string) bool {
	for e := err; e != nil; e = errors.Unwrap(e) {
		if serum.Code(e) == code {
			return true
		}
	}
	return false
}
