package supervisor

import (
	"testing"

	"github.com/daydemir/agentcore/internal/types"
	"github.com/stretchr/testify/assert"
)

func TestCompletionContractSatisfiedWithEvidence(t *testing.T) {
	c := extractCompletionContract("fix the login bug")
	req := types.RunRequest{Goal: "fix the login bug", StrictVerification: true}
	result := &types.RunResult{
		Status:             types.StatusCompleted,
		VerificationPassed: true,
		FileWriteCount:     1,
		Summary:            "fixed the login bug by validating the session token",
	}
	ok, gaps := c.isSatisfied(req, result)
	assert.True(t, ok)
	assert.Empty(t, gaps)
}

func TestCompletionContractRejectsIncompleteStatus(t *testing.T) {
	c := extractCompletionContract("fix the login bug")
	req := types.RunRequest{Goal: "fix the login bug"}
	result := &types.RunResult{Status: types.StatusFailed}
	ok, _ := c.isSatisfied(req, result)
	assert.False(t, ok)
}

func TestCompletionContractFlagsMissingClaims(t *testing.T) {
	c := extractCompletionContract("implement the checkout flow")
	req := types.RunRequest{Goal: "implement the checkout flow"}
	result := &types.RunResult{
		Status:             types.StatusCompleted,
		VerificationPassed: true,
		FileWriteCount:     1,
		Summary:            "did some unrelated cleanup",
	}
	ok, gaps := c.isSatisfied(req, result)
	assert.False(t, ok)
	assert.NotEmpty(t, gaps)
}

func TestCompletionContractRejectsMutationGoalWithNoWrites(t *testing.T) {
	c := extractCompletionContract("fix the login bug")
	req := types.RunRequest{Goal: "fix the login bug"}
	result := &types.RunResult{
		Status:             types.StatusCompleted,
		VerificationPassed: true,
		FileWriteCount:     0,
		Summary:            "fixed the login bug by validating the session token",
	}
	ok, _ := c.isSatisfied(req, result)
	assert.False(t, ok)
}

func TestCompletionContractRejectsRemainingWork(t *testing.T) {
	c := extractCompletionContract("fix the login bug")
	req := types.RunRequest{Goal: "fix the login bug"}
	result := &types.RunResult{
		Status:             types.StatusCompleted,
		VerificationPassed: true,
		FileWriteCount:     1,
		RemainingWork:      []string{"add a regression test"},
		Summary:            "fixed the login bug by validating the session token",
	}
	ok, _ := c.isSatisfied(req, result)
	assert.False(t, ok)
}
