package flow

import "testing"

func TestIdentifier_RoundTrip(t *testing.T) {
	id := Identifier{ResourceType: ResourceWorkflow, Project: "genomics", Domain: "prod", Name: "assemble", Version: "v3"}
	s := id.String()
	if s != "workflow:genomics:prod:assemble:v3" {
		t.Errorf("String() = %q", s)
	}
	got, err := ParseIdentifier(s)
	if err != nil {
		t.Fatalf("ParseIdentifier: %v", err)
	}
	if got != id {
		t.Errorf("ParseIdentifier(%q) = %+v, want %+v", s, got, id)
	}
	if id.IsZero() || !(Identifier{}).IsZero() {
		t.Error("IsZero mismatch")
	}
}

func TestParseIdentifier_Errors(t *testing.T) {
	for _, s := range []string{"", "workflow:p:d:n", "dataset:p:d:n:v", "task:p:d:n:v:extra"} {
		if _, err := ParseIdentifier(s); err == nil {
			t.Errorf("ParseIdentifier(%q) succeeded, want error", s)
		}
	}
}

func TestIdentifier_Validate(t *testing.T) {
	ok := Identifier{ResourceType: ResourceTask, Project: "p", Domain: "d", Name: "n", Version: "2024.05.01-1"}
	if err := ok.Validate(); err != nil {
		t.Errorf("Validate(%v) = %v, want nil", ok, err)
	}
	for _, id := range []Identifier{
		{ResourceType: ResourceTask, Project: "a:b", Domain: "d", Name: "n", Version: "v"},
		{ResourceType: ResourceTask, Project: "p", Domain: "d:", Name: "n", Version: "v"},
		{ResourceType: ResourceWorkflow, Project: "p", Domain: "d", Name: "a:b", Version: "v"},
		{ResourceType: ResourceWorkflow, Project: "p", Domain: "d", Name: "n", Version: "sha:abc"},
	} {
		if err := id.Validate(); err == nil {
			t.Errorf("Validate(%+v) succeeded, want error", id)
		}
		if _, err := ParseIdentifier(id.String()); err == nil {
			t.Errorf("ParseIdentifier(%q) succeeded; Validate and ParseIdentifier disagree", id.String())
		}
	}
}
