package model

// RegistrationPhase is the registration lifecycle of a compiled workflow.
//
// A workflow starts Unregistered (or Registered when fetched from the
// control plane). Register moves it to Registering while the new id is
// tentatively bound, then either to Registered or back to the phase it
// came from.
type RegistrationPhase string

const (
	RegistrationUnregistered RegistrationPhase = "UNREGISTERED"
	RegistrationRegistering  RegistrationPhase = "REGISTERING"
	RegistrationRegistered   RegistrationPhase = "REGISTERED"
)

// String returns the string representation of the phase.
func (p RegistrationPhase) String() string {
	return string(p)
}

// IsSettled returns true unless a registration call is in flight.
func (p RegistrationPhase) IsSettled() bool {
	return p != RegistrationRegistering
}

// ValidRegistrationTransitions defines the allowed phase transitions.
var ValidRegistrationTransitions = map[RegistrationPhase][]RegistrationPhase{
	RegistrationUnregistered: {RegistrationRegistering},
	RegistrationRegistered:   {RegistrationRegistering},
	RegistrationRegistering:  {RegistrationRegistered, RegistrationUnregistered},
}

// CanTransitionTo returns true if moving from the current phase to next is valid.
func (p RegistrationPhase) CanTransitionTo(next RegistrationPhase) bool {
	for _, allowed := range ValidRegistrationTransitions[p] {
		if allowed == next {
			return true
		}
	}
	return false
}
