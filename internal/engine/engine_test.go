package engine

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/daydemir/agentcore/internal/llm"
	"github.com/daydemir/agentcore/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedBackend replays a fixed sequence of decision JSON strings,
// returning the last one for any call past the end of the script (so a
// stuck test degrades to a repeated decision rather than panicking).
type scriptedBackend struct {
	responses []string
	calls     int
}

func (b *scriptedBackend) ChatComplete(ctx context.Context, messages []types.Message, opts llm.ChatOptions) (llm.ChatResult, error) {
	i := b.calls
	if i >= len(b.responses) {
		i = len(b.responses) - 1
	}
	b.calls++
	return llm.ChatResult{Content: b.responses[i]}, nil
}

func newTestRequest(t *testing.T, goal string, maxIterations int, verify []types.Command) types.RunRequest {
	t.Helper()
	ws := t.TempDir()
	return types.RunRequest{
		Goal:                 goal,
		Workspace:            ws,
		ExecutionMode:        types.ExecutionSingle,
		MaxIterations:        maxIterations,
		VerificationCommands: verify,
		StrictVerification:   true,
	}
}

// TestEngineMutationGoalCleanRun exercises a mutation-like goal that lists
// the tree, writes one file, then declares final, with a passing
// verification command.
func TestEngineMutationGoalCleanRun(t *testing.T) {
	req := newTestRequest(t, "Implement a JSON config loader in src/config.ts", 12,
		[]types.Command{{Program: "go", Args: []string{"version"}}})

	backend := &scriptedBackend{responses: []string{
		`{"thinking":"look around first","type":"list_tree","path":"."}`,
		`{"thinking":"write the loader","type":"write_file","path":"src/config.ts","content":"export function loadConfig() { return {}; }\n"}`,
		`{"thinking":"done","type":"final","summary":"Added the JSON config loader","verification":["go version"]}`,
	}}

	e := New(req, backend, Hooks{})
	result, err := e.Run(context.Background())
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.Equal(t, types.StatusCompleted, result.Status)
	assert.Equal(t, 1, result.FileWriteCount)
	assert.Contains(t, result.FilesChanged, "src/config.ts")
	require.Len(t, result.VerificationChecks, 1)
	assert.True(t, result.VerificationChecks[0].Ok)
	assert.True(t, result.VerificationPassed)
	assert.True(t, result.ZeroKnownIssues())

	written, readErr := os.ReadFile(filepath.Join(req.Workspace, "src/config.ts"))
	require.NoError(t, readErr)
	assert.Contains(t, string(written), "loadConfig")
}

// TestEnginePrematureFinalBlocked exercises a mutation-like goal whose
// model declares "final" before any file write is rejected, and the run
// keeps going rather than terminating immediately.
func TestEnginePrematureFinalBlocked(t *testing.T) {
	req := newTestRequest(t, "Implement a JSON config loader in src/config.ts", 3, nil)

	backend := &scriptedBackend{responses: []string{
		`{"thinking":"I think I'm done","type":"final","summary":"nothing changed"}`,
	}}

	e := New(req, backend, Hooks{})
	result, err := e.Run(context.Background())
	require.NoError(t, err)
	require.NotNil(t, result)

	require.NotEmpty(t, result.Steps)
	first := result.Steps[0]
	assert.False(t, first.Ok)
	assert.Equal(t, "Premature final blocked before any file writes", first.Summary)
	assert.Equal(t, types.ActionFinal, first.Action.Type)

	// The run was never allowed to terminate on that first rejected
	// final, so with no further progress it rides out to max_iterations
	// rather than reporting completed.
	assert.Equal(t, types.StatusMaxIterations, result.Status)
	assert.Equal(t, 0, result.FileWriteCount)
}

// TestEngineVerificationAutoFix runs a write-then-final script with
// auto-fix enabled and a verification command that passes, so the first
// final completes the run.
func TestEngineVerificationAutoFix(t *testing.T) {
	req := newTestRequest(t, "Fix the build in src/app.ts", 12,
		[]types.Command{{Program: "go", Args: []string{"version"}}})
	req.AutoFixVerification = true

	backend := &scriptedBackend{responses: []string{
		`{"thinking":"write a first pass","type":"write_file","path":"src/app.ts","content":"broken\n"}`,
		`{"thinking":"declare done","type":"final","summary":"first attempt"}`,
		`{"thinking":"patch it up","type":"write_file","path":"src/app.ts","content":"fixed\n"}`,
	}}

	e := New(req, backend, Hooks{})
	result, err := e.Run(context.Background())
	require.NoError(t, err)
	require.NotNil(t, result)

	// "go version" always passes, so the first final already completes and
	// the auto-fix round (and the scripted patch) is never reached.
	assert.Equal(t, types.StatusCompleted, result.Status)
	assert.GreaterOrEqual(t, result.FileWriteCount, 1)
}

// TestEnginePathPolicyDenial exercises an action reaching outside the
// workspace being rejected by the sandbox without ever touching the
// rollback journal.
func TestEnginePathPolicyDenial(t *testing.T) {
	req := newTestRequest(t, "Implement a patch in ../etc/passwd", 4, nil)

	backend := &scriptedBackend{responses: []string{
		`{"thinking":"try to escape the workspace","type":"write_file","path":"../etc/passwd","content":"pwned\n"}`,
		`{"thinking":"give up","type":"final","summary":"could not complete"}`,
	}}

	e := New(req, backend, Hooks{})
	result, err := e.Run(context.Background())
	require.NoError(t, err)
	require.NotNil(t, result)

	require.NotEmpty(t, result.Steps)
	denied := result.Steps[0]
	assert.False(t, denied.Ok)
	assert.Empty(t, result.ChangeJournal)
	assert.Equal(t, 0, result.FileWriteCount)
}

// TestEngineNeedsClarification covers the clarification gate: a goal too
// short to safely mutate files short-circuits the loop with
// needs_clarification rather than ever calling the backend.
func TestEngineNeedsClarification(t *testing.T) {
	req := newTestRequest(t, "fix it", 10, nil)
	req.RequireClarificationBeforeEdits = true

	backend := &scriptedBackend{responses: []string{
		`{"thinking":"should never be reached","type":"final","summary":"n/a"}`,
	}}

	e := New(req, backend, Hooks{})
	result, err := e.Run(context.Background())
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.Equal(t, types.StatusNeedsClarify, result.Status)
	assert.NotEmpty(t, result.ClarificationQuestions)
	assert.Equal(t, 0, backend.calls)
}
