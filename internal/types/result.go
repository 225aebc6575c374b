package types

import "time"

// RunResult is the terminal snapshot returned to the caller by the
// Iteration Engine and the Supervisor.
type RunResult struct {
	Status RunStatus `json:"status"`

	RunId            string `json:"runId"`
	ResumedFromRunId string `json:"resumedFromRunId,omitempty"`

	StartedAt time.Time `json:"startedAt"`
	EndedAt   time.Time `json:"endedAt"`

	Summary       string   `json:"summary"`
	Verification  []string `json:"verification,omitempty"`
	RemainingWork []string `json:"remainingWork,omitempty"`

	Steps               []Step               `json:"steps"`
	VerificationChecks   []VerificationCheck  `json:"verificationChecks"`
	PreflightChecks      []VerificationCheck  `json:"preflightChecks"`
	VerificationAttempts int                  `json:"verificationAttempts"`
	VerificationPassed   bool                 `json:"verificationPassed"`

	FilesChanged    []string `json:"filesChanged"`
	CommandsRun     []Command `json:"commandsRun"`
	FileWriteCount  int      `json:"fileWriteCount"`
	CommandRunCount int      `json:"commandRunCount"`

	RollbackSummary []string `json:"rollbackSummary,omitempty"`
	ChangeJournal   []ChangeJournalEntry `json:"changeJournal"`

	ClarificationQuestions []string          `json:"clarificationQuestions,omitempty"`
	ClarificationAnswers   map[string]string `json:"clarificationAnswers,omitempty"`

	ProjectDigest        string `json:"projectDigest,omitempty"`
	IntelligenceSnapshot string `json:"intelligenceSnapshot,omitempty"`

	Error string `json:"error,omitempty"`

	// Notes carries synthesized context lines the Supervisor attaches to
	// the result — e.g. "Auto-fallback triggered" and the exhaustion
	// explanation — distinct from Error, which is reserved
	// for a terminal failure's cause.
	Notes []string `json:"notes,omitempty"`

	UsedFallback bool `json:"usedFallback,omitempty"`
	Cycles       int  `json:"cycles,omitempty"`
}

// ZeroKnownIssues derives the RunResult.zeroKnownIssues field:
// true when the run completed, every resolved verification command passed,
// and no remaining work was reported.
func (r *RunResult) ZeroKnownIssues() bool {
	if r.Status != StatusCompleted {
		return false
	}
	if len(r.RemainingWork) > 0 {
		return false
	}
	for _, c := range r.VerificationChecks {
		if !c.Ok {
			return false
		}
	}
	return true
}
