package compiler

import (
	"fmt"
	"strings"

	"github.com/serum-errors/go-serum"
)

const (
	CodePlacement     = "flowc-error-placement"
	CodeStructural    = "flowc-error-structural"
	CodeType          = "flowc-error-type"
	CodeReference     = "flowc-error-reference"
	CodeInternal      = "flowc-error-internal"
	CodeSerialization = "flowc-error-serialization"
)

// ErrorPlacement is returned when an Input or Output is found anywhere
// other than directly on the declaration surface.
//
// Errors:
//
//   - flowc-error-placement --
func ErrorPlacement(kind, path, attribute string) error {
	return serum.Error(CodePlacement,
		serum.WithMessageTemplate("{{kind}} {{path}} must be declared at the top level, found under attribute {{attribute}}"),
		serum.WithDetail("kind", kind),
		serum.WithDetail("path", path),
		serum.WithDetail("attribute", attribute),
	)
}

// ErrorStructural is returned when the graph shape is invalid: a missing
// node id, an edge to an unknown node, an unbound output, a cycle.
//
// Errors:
//
//   - flowc-error-structural --
func ErrorStructural(node, reason string) error {
	return serum.Error(CodeStructural,
		serum.WithMessageTemplate("invalid workflow structure at {{node}}: {{reason}}"),
		serum.WithDetail("node", node),
		serum.WithDetail("reason", reason),
	)
}

// ErrorType is returned when a value cannot be bound to a variable of
// the declared type.
//
// Errors:
//
//   - flowc-error-type --
func ErrorType(variable, declared, actual string) error {
	return serum.Error(CodeType,
		serum.WithMessageTemplate("type mismatch for {{variable}}: declared {{declared}}, got {{actual}}"),
		serum.WithDetail("variable", variable),
		serum.WithDetail("declared", declared),
		serum.WithDetail("actual", actual),
	)
}

// ErrorMissingType is returned when an Output is declared without a type.
//
// Errors:
//
//   - flowc-error-type --
func ErrorMissingType(variable string) error {
	return serum.Error(CodeType,
		serum.WithMessageTemplate("output {{variable}} has no declared type"),
		serum.WithDetail("variable", variable),
		serum.WithDetail("declared", "unset"),
	)
}

// ErrorReference is returned when a name does not resolve: an argument
// the callee does not declare, a missing required input, an unknown
// launch plan input.
//
// Errors:
//
//   - flowc-error-reference --
func ErrorReference(name, reason string) error {
	return serum.Error(CodeReference,
		serum.WithMessageTemplate("unresolved reference {{name}}: {{reason}}"),
		serum.WithDetail("name", name),
		serum.WithDetail("reason", reason),
	)
}

// ErrorInternal is returned when the compiler's own invariants are
// broken, typically by a malformed serialized template.
//
// Errors:
//
//   - flowc-error-internal --
func ErrorInternal(reason string) error {
	return serum.Error(CodeInternal,
		serum.WithMessageTemplate("internal consistency error: {{reason}}"),
		serum.WithDetail("reason", reason),
	)
}

// ErrorSerialization wraps encoding failures.
//
// Errors:
//
//   - flowc-error-serialization --
func ErrorSerialization(context string, cause error) error {
	result := serum.Errorf(CodeSerialization, "serialization error: %s: %w", context, cause)
	addDetails(result, [][2]string{{"context", context}})
	return result
}

// errorInvalidWorkflow folds several validation problems into one error
// carrying the code of the first.
func errorInvalidWorkflow(workflow string, problems []error) error {
	if len(problems) == 1 {
		return problems[0]
	}
	msgs := make([]string, len(problems))
	deets := make([][2]string, 0, len(problems)+1)
	deets = append(deets, [2]string{"workflow", workflow})
	for i, p := range problems {
		msgs[i] = p.Error()
		deets = append(deets, [2]string{fmt.Sprintf("problem.%d", i), msgs[i]})
	}
	result := serum.Error(serum.Code(problems[0]),
		serum.WithMessageLiteral(fmt.Sprintf("workflow %s has %d problems: %s", workflow, len(problems), strings.Join(msgs, "; "))),
		serum.WithCause(problems[0]),
	)
	addDetails(result, deets)
	return result
}

func addDetails(err error, deets [][2]string) {
	ev, ok := err.(*serum.ErrorValue)
	if !ok {
		return
	}
	ev.Data.Details = append(ev.Data.Details, deets...)
}
