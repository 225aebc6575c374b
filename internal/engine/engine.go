// Package engine implements the Iteration Engine: the
// perceive-decide-act loop that turns a RunRequest into a RunResult,
// coordinating the Context Window Manager, Decision Parser, Tool
// Executor, Verification Runner, Rollback Journal, Checkpoint Store, and
// Memory Store for one run.
package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/daydemir/agentcore/internal/checkpoint"
	"github.com/daydemir/agentcore/internal/ctxwindow"
	"github.com/daydemir/agentcore/internal/decision"
	"github.com/daydemir/agentcore/internal/llm"
	"github.com/daydemir/agentcore/internal/memory"
	"github.com/daydemir/agentcore/internal/rollback"
	"github.com/daydemir/agentcore/internal/toolexec"
	"github.com/daydemir/agentcore/internal/types"
	"github.com/daydemir/agentcore/internal/verify"
	"github.com/google/uuid"
)

// Stagnation and safety constants.
const (
	noMutationStagnationLimit     = 4
	repeatedActionStagnationLimit = 3
	maxStagnationInterventions    = 4
	decisionHeartbeatInterval     = 10 * time.Second
	maxVerificationAutoFixAttempts = 3
	unboundedSafetyCapIterations  = 500
	checkpointEveryNIterations    = 2
)

// Engine runs one RunRequest to completion.
type Engine struct {
	Request types.RunRequest
	Backend llm.Backend
	Hooks   Hooks

	Memory     *memory.Store
	Checkpoint *checkpoint.Store

	runId            string
	resumedFromRunId string
}

// New builds an Engine for request, wiring its own Memory/Checkpoint
// stores rooted at the request's workspace.
func New(request types.RunRequest, backend llm.Backend, hooks Hooks) *Engine {
	return &Engine{
		Request:    request,
		Backend:    backend,
		Hooks:      hooks,
		Memory:     memory.NewStore(request.Workspace),
		Checkpoint: checkpoint.NewStore(request.Workspace),
	}
}

// Run executes the perceive-decide-act loop, resuming from an existing
// checkpoint when the request asks for it and one is found.
func (e *Engine) Run(ctx context.Context) (*types.RunResult, error) {
	req := e.Request.ApplyDefaults()
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("engine: invalid request: %w", err)
	}

	state, err := e.setup(ctx, req)
	if err != nil {
		return nil, err
	}

	result := e.loop(ctx, state)
	return result, nil
}

// runState is the Engine's full working state for one run, mirroring the
// Checkpoint shape closely enough to serialize directly into one.
type runState struct {
	req types.RunRequest

	ctxMgr   *ctxwindow.Manager
	executor *toolexec.Executor
	journal  *rollback.Journal
	parser   *decision.Parser
	verifier *verify.Runner
	budget   *toolexec.Budget

	iteration      int
	degradeIndex   int
	steps          []types.Step
	verifications  []types.VerificationCheck
	preflights     []types.VerificationCheck
	status         types.RunStatus
	startedAt      time.Time

	lastMutationIteration int
	lastSignature         string
	repeatSignatureCount  int
	interventionCount     int

	clarificationQuestions []string
	clarificationAnswers   map[string]string

	requiresEvidenceBeforeMutation bool
	lastEvidenceIteration          int

	projectDigest        string
	intelligenceSnapshot string
}

func (e *Engine) setup(ctx context.Context, req types.RunRequest) (*runState, error) {
	e.runId = uuid.NewString()
	resumeKey := checkpoint.ResumeKey(req.Workspace, req.Goal)

	var resumed *types.Checkpoint
	if req.ResumeFromLastCheckpoint {
		cp, err := e.Checkpoint.FindResumable(resumeKey, time.Now())
		if err == nil {
			resumed = cp
		}
	}
	if req.ResumeRunId != "" {
		if cp, err := e.Checkpoint.Load(req.ResumeRunId); err == nil {
			resumed = cp
		}
	}

	budget := &toolexec.Budget{MaxFileWrites: req.MaxFileWrites, MaxCommandRuns: req.MaxCommandRuns}
	journal := rollback.NewJournal(req.DryRun)
	executor := toolexec.NewExecutor(req.Workspace, req.DryRun, budget, journal)
	verifier := &verify.Runner{Executor: executor}
	parser := &decision.Parser{Backend: e.Backend}

	st := &runState{
		req:                  req,
		executor:             executor,
		journal:              journal,
		parser:               parser,
		verifier:             verifier,
		budget:               budget,
		status:               types.StatusInProgress,
		startedAt:            time.Now(),
		clarificationAnswers: req.ClarificationAnswers,
	}

	var preflight verify.Outcome
	if req.RunPreflightChecks {
		preflight = verifier.Preflight(ctx, req.VerificationCommands)
		st.preflights = preflight.Checks
	}

	digest := projectDigest(ctx, executor)
	intelligence := deeperIntelligence(executor)
	retrieval, _ := e.Memory.Retrieve(memory.Query{Text: req.Goal, TopK: 10})
	guidance := memoryGuidance(retrieval)
	st.projectDigest = digest
	st.intelligenceSnapshot = intelligence
	st.requiresEvidenceBeforeMutation = retrieval.RequiresVerificationBeforeMutation
	st.lastEvidenceIteration = -1000

	if resumed != nil {
		st.iteration = resumed.LastIteration + 1
		st.steps = resumed.Steps
		st.verifications = resumed.VerificationChecks
		st.clarificationQuestions = resumed.ClarificationQuestions
		e.resumedFromRunId = resumed.RunId
		sys := types.Message{Role: "system", Content: systemPrompt(req, digest, intelligence, guidance)}
		st.ctxMgr = &ctxwindow.Manager{History: resumed.History, Compaction: resumed.Compaction}
		st.ctxMgr.History[0] = sys
		st.startedAt = resumed.StartedAt
	} else {
		sys := types.Message{Role: "system", Content: systemPrompt(req, digest, intelligence, guidance)}
		initial := types.Message{Role: "user", Content: fmt.Sprintf("Goal: %s\nWorkspace: %s", req.Goal, req.Workspace)}
		st.ctxMgr = ctxwindow.NewManager(sys, initial)

		if req.RequireClarificationBeforeEdits && needsClarification(req.Goal) {
			st.clarificationQuestions = []string{
				"The goal as written doesn't specify enough detail to safely make file changes. What exactly should change, and where?",
			}
			st.status = types.StatusNeedsClarify
		}
	}

	return st, nil
}

func systemPrompt(req types.RunRequest, digest, intelligence, guidance string) string {
	var b strings.Builder
	b.WriteString("You are an autonomous coding agent. Decide one action per turn, ")
	b.WriteString("respond with a single JSON object describing that action, and use the ")
	b.WriteString("\"final\" action only once the goal is fully satisfied and verified.\n\n")
	b.WriteString(digest)
	b.WriteString("\n\n")
	b.WriteString(intelligence)
	b.WriteString("\n\n")
	b.WriteString(guidance)
	if req.StrictVerification {
		b.WriteString("\n\nVerification is strict: every configured check must pass before finishing.")
	}
	return b.String()
}

// needsClarification is a coarse heuristic: goals under a handful of words
// with no concrete noun are unlikely to specify enough to safely mutate
// files.
func needsClarification(goal string) bool {
	words := strings.Fields(goal)
	return len(words) < 3
}

func (e *Engine) loop(ctx context.Context, st *runState) *types.RunResult {
	if st.status == types.StatusNeedsClarify {
		return e.finalize(ctx, st, "", nil, nil)
	}

	maxIterations := st.req.MaxIterations
	if maxIterations == 0 {
		maxIterations = unboundedSafetyCapIterations
	}

	for st.iteration < maxIterations {
		select {
		case <-ctx.Done():
			st.status = types.StatusCanceled
			return e.finalize(ctx, st, "run canceled", nil, nil)
		default:
		}

		e.Hooks.status("awaiting_model", fmt.Sprintf("iteration %d", st.iteration))

		intervention := e.checkStagnation(st)

		prompt := iterationPrompt(st, intervention)
		assemble := func(degradeIndex int) []types.Message {
			return st.ctxMgr.Assemble(ctxwindow.AssembleOptions{
				OperationalMemory: operationalMemorySummary(st),
				IterationPrompt:   prompt,
				DegradeIndex:      degradeIndex,
			})
		}

		decideCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
		heartbeat := time.NewTicker(decisionHeartbeatInterval)
		go func() {
			for {
				select {
				case <-heartbeat.C:
					e.Hooks.status("awaiting_model", "still waiting on a decision")
				case <-decideCtx.Done():
					return
				}
			}
		}()

		action, thinking, err := st.parser.Decide(decideCtx, assemble, llm.ChatOptions{Model: st.req.Model})
		st.degradeIndex = st.parser.DegradeIndex
		heartbeat.Stop()
		cancel()
		if err != nil && action.Type == "" {
			st.status = types.StatusFailed
			return e.finalize(ctx, st, "decision parser failed: "+err.Error(), nil, nil)
		}

		if action.Type == types.ActionFinal && !st.req.DryRun && types.GoalLooksMutationLike(st.req.Goal) && st.budget.FileWrites == 0 {
			// Premature-final guard: a mutation-like
			// goal can't be declared done before any file write happened.
			rejection := types.Step{
				Iteration: st.iteration,
				Phase:     types.PhaseAction,
				Thinking:  thinking,
				Action:    &action,
				Ok:        false,
				Summary:   "Premature final blocked before any file writes",
			}
			st.steps = append(st.steps, rejection)
			e.Hooks.step(rejection)
			st.ctxMgr.Append(types.Message{Role: "assistant", Content: thinking})
			st.ctxMgr.Append(types.Message{
				Role:    "user",
				Content: "Premature final blocked before any file writes. Make a concrete edit before declaring the goal complete.",
			})
			st.iteration++
			continue
		}

		if action.Type == types.ActionFinal {
			return e.runFinal(ctx, st, action)
		}

		if action.IsMutation() && st.requiresEvidenceBeforeMutation && st.iteration-st.lastEvidenceIteration > 2 {
			// Memory evidence gate: conflicting
			// memory entries were retrieved and no recent evidence-
			// producing action has run; block the mutation synthetically.
			gateResult := toolexec.Result{
				Ok:      false,
				Summary: "Memory evidence gate: retrieved memory entries disagree; gather fresh evidence (read/search/run a command) before mutating",
			}
			step := types.Step{
				Iteration: st.iteration,
				Phase:     types.PhaseAction,
				Thinking:  thinking,
				Action:    &action,
				Ok:        false,
				Summary:   gateResult.Summary,
			}
			st.steps = append(st.steps, step)
			e.Hooks.step(step)
			st.ctxMgr.Append(types.Message{Role: "assistant", Content: thinking})
			st.ctxMgr.Append(types.Message{Role: "user", Content: feedbackMessage(action, gateResult)})
			st.iteration++
			continue
		}

		start := time.Now()
		result := st.executor.Execute(ctx, action)
		duration := time.Since(start)

		step := types.Step{
			Iteration:  st.iteration,
			Phase:      types.PhaseAction,
			Thinking:   thinking,
			Action:     &action,
			Ok:         result.Ok,
			Summary:    result.Summary,
			Output:     result.Output,
			DurationMs: duration.Milliseconds(),
		}
		st.steps = append(st.steps, step)
		e.Hooks.step(step)

		if action.IsMutation() && result.Ok {
			st.lastMutationIteration = st.iteration
		}
		if action.IsEvidenceProducing() && result.Ok {
			st.lastEvidenceIteration = st.iteration
		}
		if action.Signature() == st.lastSignature {
			st.repeatSignatureCount++
		} else {
			st.repeatSignatureCount = 0
			st.lastSignature = action.Signature()
		}

		st.ctxMgr.Append(types.Message{Role: "assistant", Content: thinking})
		st.ctxMgr.Append(types.Message{Role: "user", Content: feedbackMessage(action, result)})

		if st.ctxMgr.NeedsCompaction() {
			st.ctxMgr.Compact(summarizeSteps(st.steps), st.iteration)
		}

		st.iteration++
		if st.iteration%checkpointEveryNIterations == 0 {
			e.saveCheckpoint(st)
		}
	}

	st.status = types.StatusMaxIterations
	return e.finalize(ctx, st, "", nil, nil)
}

// checkStagnation applies the two stagnation guards and returns an
// intervention message to fold into the next prompt, or "" if none is
// needed.
func (e *Engine) checkStagnation(st *runState) string {
	if st.interventionCount >= maxStagnationInterventions {
		return ""
	}
	if types.GoalLooksMutationLike(st.req.Goal) && st.iteration-st.lastMutationIteration >= noMutationStagnationLimit {
		st.interventionCount++
		return fmt.Sprintf("You haven't made a file change in %d iterations. Execute one concrete mutation now.", noMutationStagnationLimit)
	}
	if st.repeatSignatureCount >= repeatedActionStagnationLimit {
		st.interventionCount++
		return "You've repeated the same action several times without new information. Try a different action."
	}
	return ""
}

func iterationPrompt(st *runState, intervention string) string {
	p := "Decide the next action."
	if intervention != "" {
		p = intervention + "\n" + p
	}
	return p
}

func feedbackMessage(a types.Action, r toolexec.Result) string {
	status := "ok"
	if !r.Ok {
		status = "failed"
	}
	return fmt.Sprintf("[%s:%s] %s\n%s", a.Type, status, r.Summary, r.Output)
}

func summarizeSteps(steps []types.Step) string {
	var b strings.Builder
	start := 0
	if len(steps) > 40 {
		start = len(steps) - 40
	}
	for _, s := range steps[start:] {
		if s.Action == nil {
			continue
		}
		fmt.Fprintf(&b, "iter %d: %s -> %s\n", s.Iteration, s.Action.Type, s.Summary)
	}
	return b.String()
}

// operationalMemorySummary builds the per-call "operational memory"
// message: goal, progress, compaction
// stats, the last 24 changed files, the last 8 step summaries, and the
// last 6 failing check outputs, each clipped.
func operationalMemorySummary(st *runState) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Goal: %s\n", types.TruncateTo(st.req.Goal, 400))
	if st.req.MaxIterations > 0 {
		fmt.Fprintf(&b, "Progress: iteration %d of %d\n", st.iteration, st.req.MaxIterations)
	} else {
		fmt.Fprintf(&b, "Progress: iteration %d (unbounded)\n", st.iteration)
	}
	fmt.Fprintf(&b, "Compaction: %d messages dropped so far, last compacted at iteration %d\n",
		st.ctxMgr.Compaction.DroppedMessages, st.ctxMgr.Compaction.LastCompactedIteration)

	changed := st.executor.ChangedFiles()
	if len(changed) > 24 {
		changed = changed[len(changed)-24:]
	}
	if len(changed) > 0 {
		fmt.Fprintf(&b, "Recently changed files: %s\n", strings.Join(changed, ", "))
	}

	if len(st.steps) > 0 {
		b.WriteString("Recent steps:\n")
		b.WriteString(summarizeSteps(lastSteps(st.steps, 8)))
	}

	failing := lastFailingChecks(st.verifications, 6)
	if len(failing) > 0 {
		b.WriteString("Recent failing checks:\n")
		for _, c := range failing {
			fmt.Fprintf(&b, "- %s: %s\n", c.Command.String(), types.TruncateTo(c.Output, 300))
		}
	}
	return b.String()
}

func lastSteps(steps []types.Step, n int) []types.Step {
	if len(steps) <= n {
		return steps
	}
	return steps[len(steps)-n:]
}

func lastFailingChecks(checks []types.VerificationCheck, n int) []types.VerificationCheck {
	var failing []types.VerificationCheck
	for _, c := range checks {
		if !c.Ok {
			failing = append(failing, c)
		}
	}
	if len(failing) > n {
		failing = failing[len(failing)-n:]
	}
	return failing
}

func (e *Engine) saveCheckpoint(st *runState) {
	cp := e.buildCheckpoint(st)
	_ = e.Checkpoint.Save(cp)
}

func (e *Engine) buildCheckpoint(st *runState) *types.Checkpoint {
	return &types.Checkpoint{
		RunId:                  e.runId,
		ResumeKey:              checkpoint.ResumeKey(st.req.Workspace, st.req.Goal),
		Workspace:              st.req.Workspace,
		Goal:                   st.req.Goal,
		Status:                 st.status,
		ResumedFromRunId:       e.resumedFromRunId,
		History:                st.ctxMgr.History,
		Compaction:             st.ctxMgr.Compaction,
		Steps:                  st.steps,
		ChangedFiles:           st.executor.ChangedFiles(),
		FileWriteCount:         st.budget.FileWrites,
		CommandRunCount:        st.budget.CommandRuns,
		VerificationChecks:     st.verifications,
		PreflightChecks:        st.preflights,
		Snapshots:              st.journal.Snapshots(),
		ChangeJournal:          st.executor.ChangeJournal(),
		ClarificationAnswers:   st.clarificationAnswers,
		ClarificationQuestions: st.clarificationQuestions,
		ProjectDigest:          st.projectDigest,
		IntelligenceSnapshot:   st.intelligenceSnapshot,
		LastIteration:          st.iteration,
		UpdatedAt:              time.Now(),
		StartedAt:              st.startedAt,
	}
}

// runFinal handles a "final" decision: verifies, auto-fixes if asked, and
// finalizes the run.
func (e *Engine) runFinal(ctx context.Context, st *runState, action types.Action) *types.RunResult {
	attempt := 0
	for {
		outcome := st.verifier.Run(ctx, st.req.VerificationCommands, attempt, st.iteration)
		st.verifications = append(st.verifications, outcome.Checks...)
		st.steps = append(st.steps, outcome.Steps...)
		for _, c := range outcome.Checks {
			e.Hooks.verification(c)
		}
		for _, s := range outcome.Steps {
			e.Hooks.step(s)
		}

		if outcome.Passed || len(st.req.VerificationCommands) == 0 || !st.req.StrictVerification {
			st.status = types.StatusCompleted
			return e.finalize(ctx, st, action.Summary, action.Verification, action.RemainingWork)
		}

		if !st.req.AutoFixVerification || attempt >= maxVerificationAutoFixAttempts {
			st.status = types.StatusVerificationFail
			if st.req.RollbackOnFailure {
				summary := st.journal.Revert(st.req.Workspace)
				return e.finalize(ctx, st, action.Summary, action.Verification, action.RemainingWork, summary...)
			}
			return e.finalize(ctx, st, action.Summary, action.Verification, action.RemainingWork)
		}

		attempt++
		st.ctxMgr.Append(types.Message{
			Role:    "user",
			Content: fmt.Sprintf("Verification failed:\n%s\nFix it, then declare final again.", outcome.Feedback),
		})
		assembleFix := func(degradeIndex int) []types.Message {
			return st.ctxMgr.Assemble(ctxwindow.AssembleOptions{IterationPrompt: "Decide the next action.", DegradeIndex: degradeIndex})
		}
		fixAction, thinking, err := st.parser.Decide(ctx, assembleFix, llm.ChatOptions{Model: st.req.Model})
		st.degradeIndex = st.parser.DegradeIndex
		if err != nil && fixAction.Type == "" {
			st.status = types.StatusFailed
			return e.finalize(ctx, st, "decision parser failed during auto-fix: "+err.Error(), nil, nil)
		}
		if fixAction.Type == types.ActionFinal {
			continue
		}
		result := st.executor.Execute(ctx, fixAction)
		step := types.Step{Iteration: st.iteration, Phase: types.PhaseAction, Thinking: thinking, Action: &fixAction, Ok: result.Ok, Summary: result.Summary, Output: result.Output}
		st.steps = append(st.steps, step)
		e.Hooks.step(step)
		st.ctxMgr.Append(types.Message{Role: "user", Content: feedbackMessage(fixAction, result)})
		st.iteration++
	}
}

func (e *Engine) finalize(ctx context.Context, st *runState, summary string, verification, remaining []string, rollbackSummary ...string) *types.RunResult {
	if st.status == types.StatusInProgress {
		st.status = types.StatusFailed
	}
	// Only this path coerces a terminal status to failed on exhaustion;
	// nothing else in the Engine re-coerces status.
	if st.status == types.StatusMaxIterations && st.req.MaxIterations == 0 {
		st.status = types.StatusFailed
	}

	endedAt := time.Now()
	cp := e.buildCheckpoint(st)
	_ = e.Checkpoint.Save(cp)

	if st.status == types.StatusCompleted {
		_ = e.Memory.SaveContinuation(types.ContinuationPacket{
			RunId: e.runId, ExecutionMode: st.req.ExecutionMode, Goal: st.req.Goal,
			Summary: summary, PendingWork: remaining, CreatedAt: endedAt,
		})
	}

	result := &types.RunResult{
		Status:                 st.status,
		RunId:                  e.runId,
		ResumedFromRunId:       e.resumedFromRunId,
		StartedAt:              st.startedAt,
		EndedAt:                endedAt,
		Summary:                summary,
		Verification:           verification,
		RemainingWork:          remaining,
		Steps:                  st.steps,
		VerificationChecks:     st.verifications,
		PreflightChecks:        st.preflights,
		VerificationAttempts:   len(st.verifications),
		VerificationPassed:     allPassed(st.verifications),
		FilesChanged:           st.executor.ChangedFiles(),
		CommandsRun:            st.executor.CommandsRun(),
		FileWriteCount:         st.budget.FileWrites,
		CommandRunCount:        st.budget.CommandRuns,
		RollbackSummary:        rollbackSummary,
		ChangeJournal:          st.executor.ChangeJournal(),
		ClarificationQuestions: st.clarificationQuestions,
		ClarificationAnswers:   st.clarificationAnswers,
		ProjectDigest:          st.projectDigest,
		IntelligenceSnapshot:   st.intelligenceSnapshot,
	}
	return result
}

func allPassed(checks []types.VerificationCheck) bool {
	if len(checks) == 0 {
		return true
	}
	for _, c := range checks {
		if !c.Ok {
			return false
		}
	}
	return true
}
