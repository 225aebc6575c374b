package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunRequestValidate(t *testing.T) {
	base := RunRequest{
		Goal:                 "fix the bug",
		Workspace:            "/tmp/ws",
		ExecutionMode:        ExecutionSingle,
		MaxFileWrites:        10,
		MaxCommandRuns:       10,
		TeamSize:             1,
		CriticPassThreshold:  0.5,
		MaxParallelWorkUnits: 1,
	}
	require.NoError(t, base.Validate())

	bad := base
	bad.Goal = ""
	assert.Error(t, bad.Validate())

	bad = base
	bad.MaxIterations = 1
	assert.Error(t, bad.Validate())

	bad = base
	bad.MaxIterations = 0
	assert.NoError(t, bad.Validate())

	bad = base
	bad.CriticPassThreshold = 0.1
	assert.Error(t, bad.Validate())
}

func TestActionSignatureDistinguishesVariants(t *testing.T) {
	a := Action{Type: ActionWriteFile, Path: "a.go", Content: "x"}
	b := Action{Type: ActionWriteFile, Path: "b.go", Content: "x"}
	assert.NotEqual(t, a.Signature(), b.Signature())
	assert.True(t, a.IsMutation())
	assert.False(t, Action{Type: ActionReadFile}.IsMutation())
}

func TestCheckpointIsResumable(t *testing.T) {
	now := time.Now()
	c := &Checkpoint{Status: StatusInProgress, UpdatedAt: now.Add(-4 * time.Minute)}
	assert.True(t, c.IsResumable(now))

	c.UpdatedAt = now.Add(-6 * time.Minute)
	assert.False(t, c.IsResumable(now))

	c.Status = StatusCompleted
	c.UpdatedAt = now
	assert.False(t, c.IsResumable(now))
}

func TestZeroKnownIssues(t *testing.T) {
	r := &RunResult{Status: StatusCompleted, VerificationChecks: []VerificationCheck{{Ok: true}}}
	assert.True(t, r.ZeroKnownIssues())

	r.RemainingWork = []string{"finish docs"}
	assert.False(t, r.ZeroKnownIssues())
}
