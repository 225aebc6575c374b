package types

import "time"

// MaxStepOutputBytes is the single canonical truncation limit (≤6 KB)
// applied everywhere tool/command output is stored or fed back into
// context.
const MaxStepOutputBytes = 6 * 1024

// Step records one iteration's action (or a synthetic verification step)
// for the run's audit trail.
type Step struct {
	Iteration int       `json:"iteration"`
	Phase     StepPhase `json:"phase"`
	Thinking  string    `json:"thinking,omitempty"`
	Action    *Action   `json:"action,omitempty"`
	Ok        bool      `json:"ok"`
	Summary   string    `json:"summary"`
	Output    string    `json:"output,omitempty"`
	DurationMs int64    `json:"durationMs"`
}

// VerificationCheck is one executed quality-gate command.
type VerificationCheck struct {
	Attempt    int     `json:"attempt"`
	Command    Command `json:"command"`
	Ok         bool    `json:"ok"`
	Output     string  `json:"output"`
	DurationMs int64   `json:"durationMs"`
}

// ChangeJournalEntry is one append-only mutation record.
type ChangeJournalEntry struct {
	Op        JournalOp `json:"op"`
	Path      string    `json:"path"`
	Timestamp time.Time `json:"timestamp"`
	Details   string    `json:"details"`
}

// FileSnapshot is the pre-mutation state captured by the Rollback Journal,
// at most one per path per run.
type FileSnapshot struct {
	Path            string `json:"path"`
	Existed         bool   `json:"existed"`
	PreviousContent string `json:"previousContent"`
}

// CompactionState tracks the Context Window Manager's rewrite history
//. Counters are monotonic.
type CompactionState struct {
	Summary               string `json:"summary"`
	LastCompactedIteration int   `json:"lastCompactedIteration"`
	DroppedMessages       int    `json:"droppedMessages"`
}

// Truncate clips s to MaxStepOutputBytes, the canonical limit.
func Truncate(s string) string {
	return TruncateTo(s, MaxStepOutputBytes)
}

// TruncateTo clips s to at most n bytes, appending a marker when clipped.
func TruncateTo(s string, n int) string {
	if len(s) <= n {
		return s
	}
	if n <= 3 {
		return s[:n]
	}
	return s[:n-3] + "..."
}
