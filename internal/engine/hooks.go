package engine

import "github.com/daydemir/agentcore/internal/types"

// Hooks lets a caller (the display package is the one wired in) observe a
// run without the engine knowing anything about terminals or files. No
// NDJSON event sink is attached to these hooks.
type Hooks struct {
	OnStatus      func(phase string, detail string)
	OnStep        func(step types.Step)
	OnVerification func(outcome types.VerificationCheck)
}

func (h Hooks) status(phase, detail string) {
	if h.OnStatus != nil {
		h.OnStatus(phase, detail)
	}
}

func (h Hooks) step(s types.Step) {
	if h.OnStep != nil {
		h.OnStep(s)
	}
}

func (h Hooks) verification(v types.VerificationCheck) {
	if h.OnVerification != nil {
		h.OnVerification(v)
	}
}
