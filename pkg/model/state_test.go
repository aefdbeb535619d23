package model

import "testing"

func TestRegistrationPhase_IsSettled(t *testing.T) {
	tests := []struct {
		phase   RegistrationPhase
		settled bool
	}{
		{RegistrationUnregistered, true},
		{RegistrationRegistering, false},
		{RegistrationRegistered, true},
	}
	for _, tt := range tests {
		if got := tt.phase.IsSettled(); got != tt.settled {
			t.Errorf("RegistrationPhase(%q).IsSettled() = %v, want %v", tt.phase, got, tt.settled)
		}
	}
}

func TestRegistrationPhase_CanTransitionTo(t *testing.T) {
	tests := []struct {
		from  RegistrationPhase
		to    RegistrationPhase
		valid bool
	}{
		// Valid transitions
		{RegistrationUnregistered, RegistrationRegistering, true},
		{RegistrationRegistered, RegistrationRegistering, true},
		{RegistrationRegistering, RegistrationRegistered, true},
		{RegistrationRegistering, RegistrationUnregistered, true},

		// Invalid transitions
		{RegistrationUnregistered, RegistrationRegistered, false},
		{RegistrationRegistered, RegistrationUnregistered, false},
		{RegistrationRegistering, RegistrationRegistering, false},
		{RegistrationUnregistered, RegistrationUnregistered, false},
	}
	for _, tt := range tests {
		if got := tt.from.CanTransitionTo(tt.to); got != tt.valid {
			t.Errorf("RegistrationPhase(%q).CanTransitionTo(%q) = %v, want %v", tt.from, tt.to, got, tt.valid)
		}
	}
}
