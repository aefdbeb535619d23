package flow

import (
	"fmt"
	"strings"
)

// ResourceType names the kind of entity an Identifier refers to.
type ResourceType string

const (
	ResourceTask       ResourceType = "task"
	ResourceWorkflow   ResourceType = "workflow"
	ResourceLaunchPlan ResourceType = "launch_plan"
)

// Identifier addresses a registered entity. It is comparable and used
// as a map key for lookup tables.
type Identifier struct {
	ResourceType ResourceType `json:"resource_type" yaml:"resource_type"`
	Project      string       `json:"project" yaml:"project"`
	Domain       string       `json:"domain" yaml:"domain"`
	Name         string       `json:"name" yaml:"name"`
	Version      string       `json:"version" yaml:"version"`
}

// String renders resource_type:project:domain:name:version.
func (id Identifier) String() string {
	return strings.Join([]string{string(id.ResourceType), id.Project, id.Domain, id.Name, id.Version}, ":")
}

// IsZero reports whether id is unset.
func (id Identifier) IsZero() bool {
	return id == Identifier{}
}

// Validate rejects components that contain the ':' separator, since
// String would render them ambiguously.
func (id Identifier) Validate() error {
	for _, c := range []struct{ field, value string }{
		{"project", id.Project},
		{"domain", id.Domain},
		{"name", id.Name},
		{"version", id.Version},
	} {
		if strings.Contains(c.value, ":") {
			return fmt.Errorf("identifier %s %q must not contain ':'", c.field, c.value)
		}
	}
	return nil
}

// ParseIdentifier is the inverse of Identifier.String.
func ParseIdentifier(s string) (Identifier, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 5 {
		return Identifier{}, fmt.Errorf("identifier %q: expected 5 colon-separated parts, got %d", s, len(parts))
	}
	switch rt := ResourceType(parts[0]); rt {
	case ResourceTask, ResourceWorkflow, ResourceLaunchPlan:
	default:
		return Identifier{}, fmt.Errorf("identifier %q: unknown resource type %q", s, rt)
	}
	return Identifier{
		ResourceType: ResourceType(parts[0]),
		Project:      parts[1],
		Domain:       parts[2],
		Name:         parts[3],
		Version:      parts[4],
	}, nil
}
