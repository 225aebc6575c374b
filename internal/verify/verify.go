// Package verify implements the Verification Runner: it
// executes the resolved verification commands through the Tool Executor,
// records a VerificationCheck per command, and assembles feedback text fed
// back into context on failure.
package verify

import (
	"context"
	"fmt"
	"time"

	"github.com/daydemir/agentcore/internal/toolexec"
	"github.com/daydemir/agentcore/internal/types"
)

// MaxFeedbackChars is the clip applied to the PASS/FAIL feedback
// message folded back into the model's context. This is a secondary,
// display-oriented limit layered on top of types.MaxStepOutputBytes, the
// canonical per-output truncation limit.
const MaxFeedbackChars = 1500

// Runner executes an ordered list of verification commands.
type Runner struct {
	Executor *toolexec.Executor
}

// Outcome is the aggregate result of running every configured command.
type Outcome struct {
	Checks   []types.VerificationCheck
	Steps    []types.Step
	Passed   bool
	Feedback string
}

// Run executes every command in order — verification commands always run
// sequentially and in full, never short-circuited — and records one
// VerificationCheck plus one synthetic verification-phase Step per command.
// attempt is recorded on each check for the auto-fix retry loop. The
// strict flag does not change which commands run; it only changes what
// the Iteration Engine does once Run returns.
func (r *Runner) Run(ctx context.Context, commands []types.Command, attempt int, iteration int) Outcome {
	var checks []types.VerificationCheck
	var steps []types.Step
	allPassed := true
	var feedbackLines []string

	for i, cmd := range commands {
		start := time.Now()
		result := r.Executor.Execute(ctx, types.Action{Type: types.ActionRunCommand, Command: &cmd})
		duration := time.Since(start)

		check := types.VerificationCheck{
			Attempt:    attempt,
			Command:    cmd,
			Ok:         result.Ok,
			Output:     result.Output,
			DurationMs: duration.Milliseconds(),
		}
		checks = append(checks, check)
		steps = append(steps, types.Step{
			Iteration:  iteration,
			Phase:      types.PhaseVerification,
			Action:     &types.Action{Type: types.ActionRunCommand, Command: &cmd},
			Ok:         result.Ok,
			Summary:    result.Summary,
			Output:     result.Output,
			DurationMs: duration.Milliseconds(),
		})

		status := "PASS"
		if !result.Ok {
			status = "FAIL"
			allPassed = false
		}
		line := fmt.Sprintf("%d. %s %s", i+1, status, cmd.String())
		if !result.Ok {
			line += "\n" + types.TruncateTo(result.Output, MaxFeedbackChars)
		}
		feedbackLines = append(feedbackLines, line)
	}

	out := Outcome{Checks: checks, Steps: steps, Passed: allPassed}
	if !allPassed {
		out.Feedback = joinFeedback(feedbackLines)
	}
	return out
}

// Preflight runs verification commands at iteration 0 / attempt 0 before
// the model sees any guidance, purely to seed context; a failure here
// never aborts the run.
func (r *Runner) Preflight(ctx context.Context, commands []types.Command) Outcome {
	return r.Run(ctx, commands, 0, 0)
}

func joinFeedback(parts []string) string {
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += "\n"
		}
		out += p
	}
	return out
}
