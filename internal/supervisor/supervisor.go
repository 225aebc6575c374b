// Package supervisor drives one or more execution cycles against a
// completion contract derived from the run's goal: it runs up to a fixed
// number of cycles, falling back from multi-agent execution to the
// single-agent Iteration Engine when multi-agent execution can't be
// trusted to finish, and building recovery requests between cycles.
package supervisor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/daydemir/agentcore/internal/engine"
	"github.com/daydemir/agentcore/internal/llm"
	"github.com/daydemir/agentcore/internal/types"
)

// Cycle/runtime caps.
const (
	MaxCycles          = 6
	MaxRuntime         = 20 * time.Minute
	MaxNoProgressCycles = 2
)

// MultiAgentRunner is the capability the Supervisor delegates to when
// ExecutionMode is multi. It is intentionally minimal: given a request it
// returns a RunResult the same shape as the single-agent Engine's, so the
// Supervisor's cycle/fallback logic never needs to know which one ran.
type MultiAgentRunner interface {
	Run(ctx context.Context, req types.RunRequest) (*types.RunResult, error)
}

// Supervisor drives one or more Engine/MultiAgentRunner cycles to
// completion against a completion contract derived from the goal.
type Supervisor struct {
	Backend llm.Backend
	Hooks   engine.Hooks
	Multi   MultiAgentRunner
}

// Run executes req, escalating across cycles until the completion
// contract is satisfied, the cycle/runtime caps are hit, or no-progress
// exhaustion forces a coerced failure.
func (s *Supervisor) Run(ctx context.Context, req types.RunRequest) (*types.RunResult, error) {
	deadline := time.Now().Add(MaxRuntime)
	runCtx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	contract := extractCompletionContract(req.Goal)
	usedFallback := false
	noProgressCycles := 0
	var lastResult *types.RunResult
	var fallbackNote string

	currentReq := req
	for cycle := 1; cycle <= MaxCycles; cycle++ {
		if time.Now().After(deadline) {
			break
		}

		result, err := s.runOneCycle(runCtx, currentReq, usedFallback)
		if err != nil {
			// A multi-agent throw falls back to single-agent unless the run
			// was canceled, dry-run, or the goal isn't mutation-like — those
			// cases rethrow instead.
			if !usedFallback && currentReq.ExecutionMode == types.ExecutionMulti &&
				runCtx.Err() == nil && !currentReq.DryRun && types.GoalLooksMutationLike(currentReq.Goal) {
				usedFallback = true
				currentReq = buildSingleFallbackRequest(currentReq, nil, nil)
				fallbackNote = "Auto-fallback triggered"
				cycle--
				continue
			}
			return nil, fmt.Errorf("supervisor: cycle %d: %w", cycle, err)
		}
		result.Cycles = cycle
		result.UsedFallback = usedFallback
		if usedFallback && fallbackNote != "" {
			result.Notes = append(result.Notes, fallbackNote)
		}
		lastResult = result

		// needs_clarification and canceled are non-retryable — the
		// Supervisor returns them as-is, without opening another cycle or
		// coercing their status on exhaustion.
		if result.Status == types.StatusNeedsClarify || result.Status == types.StatusCanceled {
			return result, nil
		}

		satisfied, gaps := contract.isSatisfied(currentReq, result)
		if satisfied {
			return result, nil
		}

		// A mutation-like goal whose cycle moved nothing forward — no
		// steps, no files, no commands, no checks — counts toward
		// exhaustion.
		if types.GoalLooksMutationLike(currentReq.Goal) && len(result.Steps) == 0 &&
			len(result.FilesChanged) == 0 && len(result.CommandsRun) == 0 &&
			len(result.VerificationChecks) == 0 {
			noProgressCycles++
		} else {
			noProgressCycles = 0
		}

		if s.shouldFallbackToSingle(currentReq, result, usedFallback) {
			usedFallback = true
			currentReq = buildSingleFallbackRequest(currentReq, result, gaps)
			fallbackNote = "Auto-fallback triggered"
			continue
		}

		if noProgressCycles >= MaxNoProgressCycles {
			break
		}

		currentReq = buildRecoveryRequest(currentReq, result, gaps, cycle, usedFallback)
	}

	if lastResult == nil {
		return nil, fmt.Errorf("supervisor: no cycle produced a result")
	}
	// Exhaustion coerces a completed terminal result to failed and
	// attaches an explanatory message. This is the Supervisor's own
	// exhaustion coercion, distinct from the Engine's unbounded-iteration
	// coercion — each owns exactly one "never finished" -> failed path.
	// Exhaustion coerces completed->failed only (the contract wasn't
	// satisfied, so a "completed" cycle can't stand); every other terminal
	// status already reads as a failure and is left alone — the Supervisor
	// owns exactly this one coercion path.
	if lastResult.Status == types.StatusCompleted {
		lastResult.Status = types.StatusFailed
	}
	lastResult.Notes = append(lastResult.Notes, "Supervisor exhausted autonomous recovery cycles before reaching acceptance criteria.")
	return lastResult, nil
}

func (s *Supervisor) runOneCycle(ctx context.Context, req types.RunRequest, usedFallback bool) (*types.RunResult, error) {
	if req.ExecutionMode == types.ExecutionMulti && s.Multi != nil && !usedFallback {
		return s.Multi.Run(ctx, req)
	}
	e := engine.New(req, s.Backend, s.Hooks)
	return e.Run(ctx)
}

// shouldFallbackToSingle reports whether a multi-agent cycle should give
// way to the single-agent Engine:
// multi-mode, not dry-run, not canceled, a mutation-like goal, zero files
// written, and a terminal status that implies the cycle actually ran to
// completion rather than being blocked on something else.
func (s *Supervisor) shouldFallbackToSingle(req types.RunRequest, result *types.RunResult, alreadyFallback bool) bool {
	if alreadyFallback || req.ExecutionMode != types.ExecutionMulti || s.Multi == nil {
		return false
	}
	if req.DryRun || result.Status == types.StatusCanceled {
		return false
	}
	if !types.GoalLooksMutationLike(req.Goal) {
		return false
	}
	if result.FileWriteCount != 0 {
		return false
	}
	switch result.Status {
	case types.StatusCompleted, types.StatusFailed, types.StatusMaxIterations, types.StatusVerificationFail:
		return true
	default:
		return false
	}
}

// buildSingleFallbackRequest narrows a multi-agent request down to a
// single-agent one: no resume, preflight/strict/rollback/
// clarification gating disabled, iterations clamped to [6, min(req, 24)].
func buildSingleFallbackRequest(req types.RunRequest, result *types.RunResult, gaps []string) types.RunRequest {
	next := req
	next.ExecutionMode = types.ExecutionSingle
	next.TeamSize = 1
	next.ResumeFromLastCheckpoint = false
	next.ResumeRunId = ""
	next.RunPreflightChecks = false
	next.StrictVerification = false
	next.RollbackOnFailure = false
	next.RequireClarificationBeforeEdits = false

	maxIter := req.MaxIterations
	if maxIter == 0 || maxIter > 24 {
		maxIter = 24
	}
	if maxIter < 6 {
		maxIter = 6
	}
	next.MaxIterations = maxIter

	if len(gaps) > 0 {
		next.Goal = req.Goal + "\n\nRemaining work from the prior attempt: " + strings.Join(gaps, "; ")
	}
	return next
}

// buildRecoveryRequest builds the next cycle's request after a contract
// failure: resume from the last checkpoint
// unless the cycle completed, disable rollback-on-failure, clear
// clarification gating, bump iteration/file/command budgets by 25%
// (capped), switch to single mode once the run has ever used fallback or
// is already single, and rewrite the goal with a gap-list block.
func buildRecoveryRequest(req types.RunRequest, result *types.RunResult, gaps []string, cycle int, usedFallback bool) types.RunRequest {
	next := req
	next.ResumeFromLastCheckpoint = result.Status != types.StatusCompleted
	next.RollbackOnFailure = false
	next.RequireClarificationBeforeEdits = false

	next.MaxFileWrites = bumpPercent(req.MaxFileWrites, 120)
	next.MaxCommandRuns = bumpPercent(req.MaxCommandRuns, 140)
	if req.MaxIterations != 0 {
		next.MaxIterations = bumpPercent(req.MaxIterations, 40)
	}

	if usedFallback || req.ExecutionMode == types.ExecutionSingle {
		next.ExecutionMode = types.ExecutionSingle
		next.TeamSize = 1
	}

	if len(gaps) > 0 {
		next.Goal = fmt.Sprintf("%s\n\nSupervisor cycle %d — completion contract gaps: %s", req.Goal, cycle, strings.Join(gaps, "; "))
	}
	return next
}

// bumpPercent raises a budget by 25%, always advancing by at least 1, and
// clamps to cap.
func bumpPercent(current, cap int) int {
	bumped := current + current/4
	if bumped <= current {
		bumped = current + 1
	}
	if bumped > cap {
		bumped = cap
	}
	return bumped
}
