package verify

import (
	"context"
	"testing"

	"github.com/daydemir/agentcore/internal/rollback"
	"github.com/daydemir/agentcore/internal/toolexec"
	"github.com/daydemir/agentcore/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRunner(t *testing.T) *Runner {
	t.Helper()
	budget := &toolexec.Budget{MaxFileWrites: 10, MaxCommandRuns: 10}
	journal := rollback.NewJournal(false)
	executor := toolexec.NewExecutor(t.TempDir(), false, budget, journal)
	return &Runner{Executor: executor}
}

func TestRunAllCommandsPassed(t *testing.T) {
	r := newRunner(t)
	commands := []types.Command{
		{Program: "go", Args: []string{"version"}},
		{Program: "gofmt", Args: []string{"-l", "."}},
	}
	outcome := r.Run(context.Background(), commands, 0, 3)
	require.True(t, outcome.Passed)
	require.Len(t, outcome.Checks, 2)
	require.Len(t, outcome.Steps, 2)
	assert.Empty(t, outcome.Feedback)
	for _, s := range outcome.Steps {
		assert.Equal(t, 3, s.Iteration)
		assert.Equal(t, types.PhaseVerification, s.Phase)
		assert.True(t, s.Ok)
	}
}

func TestRunRunsSequentiallyAndRecordsFailures(t *testing.T) {
	r := newRunner(t)
	commands := []types.Command{
		{Program: "go", Args: []string{"version"}},
		{Program: "git", Args: []string{"status"}},
		{Program: "gofmt", Args: []string{"-l", "."}},
	}
	outcome := r.Run(context.Background(), commands, 2, 5)
	require.False(t, outcome.Passed)
	require.Len(t, outcome.Checks, 3)
	assert.True(t, outcome.Checks[0].Ok)
	assert.False(t, outcome.Checks[1].Ok)
	assert.True(t, outcome.Checks[2].Ok)
	for _, c := range outcome.Checks {
		assert.Equal(t, 2, c.Attempt)
	}
	assert.Contains(t, outcome.Feedback, "1. PASS")
	assert.Contains(t, outcome.Feedback, "2. FAIL")
	assert.Contains(t, outcome.Feedback, "3. PASS")
}

func TestRunEmptyCommandsPasses(t *testing.T) {
	r := newRunner(t)
	outcome := r.Run(context.Background(), nil, 0, 0)
	assert.True(t, outcome.Passed)
	assert.Empty(t, outcome.Checks)
	assert.Empty(t, outcome.Steps)
}

func TestPreflightRunsAtIterationZero(t *testing.T) {
	r := newRunner(t)
	outcome := r.Preflight(context.Background(), []types.Command{{Program: "go", Args: []string{"version"}}})
	require.Len(t, outcome.Steps, 1)
	assert.Equal(t, 0, outcome.Steps[0].Iteration)
	assert.Equal(t, 0, outcome.Checks[0].Attempt)
}
