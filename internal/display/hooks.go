package display

import (
	"fmt"

	"github.com/daydemir/agentcore/internal/engine"
	"github.com/daydemir/agentcore/internal/types"
)

// EngineHooks wires a Display into engine.Hooks so run status, steps, and
// verification outcomes print as the Iteration Engine produces them.
func (d *Display) EngineHooks() engine.Hooks {
	return engine.Hooks{
		OnStatus: func(phase, detail string) {
			d.Info(phase, detail)
		},
		OnStep: func(s types.Step) {
			label := s.Summary
			if s.Action != nil {
				label = fmt.Sprintf("%s: %s", s.Action.Type, Truncate(s.Summary, 160))
			}
			if s.Ok {
				d.Action(label, 1)
			} else {
				d.Error(label)
			}
		},
		OnVerification: func(v types.VerificationCheck) {
			d.Verification(fmt.Sprintf("%s (attempt %d)", v.Command.String(), v.Attempt), v.Ok)
		},
	}
}
