package viva

// Phase is the examination phase, derived from how many exchanges have
// completed. It is never stored on the session.
type Phase string

const (
	PhaseIntro     Phase = "intro"
	PhaseTechnical Phase = "technical"
)

// introRounds is how many warm-up exchanges precede technical questioning.
const introRounds = 4

// PhaseFor maps a completed-round count to the phase governing the next
// exchange.
func PhaseFor(completedRounds int) Phase {
	if completedRounds < introRounds {
		return PhaseIntro
	}
	return PhaseTechnical
}
