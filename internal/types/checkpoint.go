package types

import "time"

// Checkpoint is the full resumable state of one run.
//
// Invariants: a status=in_progress checkpoint older than 5 minutes
// (StaleCheckpointAge) is not resumable; ResumeKey must match exactly for a
// resume to be considered.
type Checkpoint struct {
	RunId     string    `json:"runId"`
	ResumeKey string    `json:"resumeKey"`
	Workspace string    `json:"workspace"`
	Goal      string    `json:"goal"`
	Status    RunStatus `json:"status"`

	ResumedFromRunId string `json:"resumedFromRunId,omitempty"`

	History     []Message            `json:"history"`
	Compaction  CompactionState      `json:"compaction"`
	Steps       []Step               `json:"steps"`
	ChangedFiles []string            `json:"changedFiles"`

	FileWriteCount  int `json:"fileWriteCount"`
	CommandRunCount int `json:"commandRunCount"`

	VerificationChecks []VerificationCheck `json:"verificationChecks"`
	PreflightChecks    []VerificationCheck `json:"preflightChecks"`

	RollbackSummary []string             `json:"rollbackSummary,omitempty"`
	Snapshots       map[string]FileSnapshot `json:"snapshots"`
	ChangeJournal   []ChangeJournalEntry `json:"changeJournal"`

	ClarificationAnswers   map[string]string `json:"clarificationAnswers"`
	ClarificationQuestions []string          `json:"clarificationQuestions,omitempty"`

	ProjectDigest      string `json:"projectDigest,omitempty"`
	IntelligenceSnapshot string `json:"intelligenceSnapshot,omitempty"`

	LastIteration int       `json:"lastIteration"`
	UpdatedAt     time.Time `json:"updatedAt"`
	StartedAt     time.Time `json:"startedAt"`
}

// StaleCheckpointAge is the 5 minute window past which an in_progress
// checkpoint is no longer considered resumable.
const StaleCheckpointAge = 5 * time.Minute

// IsResumable reports whether this checkpoint can be the source of a
// resume at time `now`.
func (c *Checkpoint) IsResumable(now time.Time) bool {
	if c.Status != StatusInProgress {
		return false
	}
	return now.Sub(c.UpdatedAt) <= StaleCheckpointAge
}

// CheckpointMeta is the small, cheap-to-scan sidecar written alongside the
// full checkpoint.
type CheckpointMeta struct {
	RunId            string    `json:"runId"`
	ResumeKey        string    `json:"resumeKey"`
	Workspace        string    `json:"workspace"`
	Goal             string    `json:"goal"`
	StartedAt        time.Time `json:"startedAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
	Status           RunStatus `json:"status"`
	ResumedFromRunId string    `json:"resumedFromRunId,omitempty"`
	LastIteration    int       `json:"lastIteration"`
}
