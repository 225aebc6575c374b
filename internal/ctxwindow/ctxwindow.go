// Package ctxwindow implements the Context Window Manager:
// token estimation, degrade-level budget selection, per-call message
// assembly, and compaction of an overgrown conversation history.
package ctxwindow

import (
	"fmt"
	"math"

	"github.com/daydemir/agentcore/internal/types"
)

// perMessageOverheadTokens approximates the role/formatting tokens added on
// top of a message's raw character count: ceil(chars/4) + per-message
// overhead, not a model-tokenizer-accurate count by design.
const perMessageOverheadTokens = 4

// BudgetLevels are the four descending token budgets the Manager steps
// through as degradeIndex increases.
var BudgetLevels = []int{52000, 36000, 24000, 16000}

// CompactionMessageThreshold and CompactionTokenThreshold trigger a
// history rewrite.
const (
	CompactionMessageThreshold = 180
	CompactionTokenThreshold   = 68000
)

// CompactionTailSize is how many trailing messages survive a compaction,
// alongside the system/initial-context anchors and the memory summary.
const CompactionTailSize = 28

// MaxMemorySummaryChars bounds the summary folded into a compacted history.
const MaxMemorySummaryChars = 5200

// MinRecentMessages is the floor below which Assemble will not drop tail
// messages — it clips content instead. At least 10 most-recent messages
// are always present when history is long enough.
const MinRecentMessages = 10

// EstimateTokens approximates a message's token cost.
func EstimateTokens(content string) int {
	return int(math.Ceil(float64(len(content))/4)) + perMessageOverheadTokens
}

// EstimateHistoryTokens sums EstimateTokens across a message slice.
func EstimateHistoryTokens(history []types.Message) int {
	total := 0
	for _, m := range history {
		total += EstimateTokens(m.Content)
	}
	return total
}

// BudgetForDegradeIndex clamps an increasing degrade counter into one of
// the four descending budget levels.
func BudgetForDegradeIndex(degradeIndex int) int {
	if degradeIndex < 0 {
		degradeIndex = 0
	}
	if degradeIndex >= len(BudgetLevels) {
		degradeIndex = len(BudgetLevels) - 1
	}
	return BudgetLevels[degradeIndex]
}

// Manager owns one run's conversation history and compaction state.
type Manager struct {
	History    []types.Message
	Compaction types.CompactionState
}

// NewManager seeds a Manager with the system and initial-context anchor
// messages — these two are never dropped by compaction or degrade-level
// truncation.
func NewManager(systemMessage, initialContext types.Message) *Manager {
	return &Manager{History: []types.Message{systemMessage, initialContext}}
}

// Append adds a message to the tail of history.
func (m *Manager) Append(msg types.Message) {
	m.History = append(m.History, msg)
}

// NeedsCompaction reports whether the history has grown past either
// compaction trigger.
func (m *Manager) NeedsCompaction() bool {
	if len(m.History) > CompactionMessageThreshold {
		return true
	}
	return EstimateHistoryTokens(m.History) > CompactionTokenThreshold
}

// Compact rewrites history to [system, initial-context, memorySummary,
// ...last CompactionTailSize]. summary is produced by the
// caller (typically the engine, from recent steps) and is clamped to
// MaxMemorySummaryChars.
func (m *Manager) Compact(summary string, iteration int) {
	if len(summary) > MaxMemorySummaryChars {
		summary = summary[:MaxMemorySummaryChars-3] + "..."
	}
	if len(m.History) < 2 {
		return
	}
	anchors := m.History[:2]
	body := m.History[2:]
	tail := body
	dropped := 0
	if len(body) > CompactionTailSize {
		dropped = len(body) - CompactionTailSize
		tail = body[dropped:]
	}
	summaryMsg := types.Message{Role: "system", Content: fmt.Sprintf("[compacted summary of %d earlier messages]\n%s", dropped, summary)}
	rewritten := make([]types.Message, 0, len(anchors)+1+len(tail))
	rewritten = append(rewritten, anchors...)
	rewritten = append(rewritten, summaryMsg)
	rewritten = append(rewritten, tail...)

	m.History = rewritten
	m.Compaction = types.CompactionState{
		Summary:                summary,
		LastCompactedIteration: iteration,
		DroppedMessages:        m.Compaction.DroppedMessages + dropped,
	}
}

// AssembleOptions parameterizes one call's message assembly.
type AssembleOptions struct {
	OperationalMemory string
	IterationPrompt   string
	DegradeIndex      int
}

// Assemble builds the per-call message list in the Manager's fixed order:
// anchors, an operational-memory message (if any), a dropped-notice (if
// compaction has occurred), the tail of history, and finally the
// iteration prompt. The result is
// trimmed from the middle (oldest non-anchor messages first) until it fits
// the degrade level's token budget.
func (m *Manager) Assemble(opts AssembleOptions) []types.Message {
	budget := BudgetForDegradeIndex(opts.DegradeIndex)

	var out []types.Message
	if len(m.History) >= 2 {
		out = append(out, m.History[:2]...)
	} else {
		out = append(out, m.History...)
	}
	if opts.OperationalMemory != "" {
		out = append(out, types.Message{Role: "system", Content: opts.OperationalMemory})
	}
	if m.Compaction.DroppedMessages > 0 {
		out = append(out, types.Message{
			Role:    "system",
			Content: fmt.Sprintf("[%d earlier messages were summarized above and are no longer verbatim]", m.Compaction.DroppedMessages),
		})
	}
	var tail []types.Message
	if len(m.History) > 2 {
		tail = append(tail, m.History[2:]...)
	}
	out = append(out, tail...)
	out = append(out, types.Message{Role: "user", Content: opts.IterationPrompt})

	anchors := m.History[:min(2, len(m.History))]
	for EstimateHistoryTokens(out) > budget && len(tail) > MinRecentMessages {
		tail = tail[1:]
		out = rebuild(anchors, opts, m.Compaction, tail)
	}
	// Floor reached but still over budget: clip the oldest surviving tail
	// message's content rather than dropping it.
	for EstimateHistoryTokens(out) > budget && len(tail) > 0 {
		if !clipOldest(&tail) {
			break
		}
		out = rebuild(anchors, opts, m.Compaction, tail)
	}
	return out
}

// clipOldest truncates the oldest message in tail by a third, returning
// false once it can no longer be shrunk further.
func clipOldest(tail *[]types.Message) bool {
	t := *tail
	if len(t) == 0 {
		return false
	}
	content := t[0].Content
	if len(content) <= 64 {
		return false
	}
	newLen := len(content) * 2 / 3
	t[0].Content = content[:newLen] + "...[clipped]"
	return true
}

func rebuild(anchors []types.Message, opts AssembleOptions, comp types.CompactionState, tail []types.Message) []types.Message {
	var out []types.Message
	out = append(out, anchors...)
	if opts.OperationalMemory != "" {
		out = append(out, types.Message{Role: "system", Content: opts.OperationalMemory})
	}
	if comp.DroppedMessages > 0 {
		out = append(out, types.Message{
			Role:    "system",
			Content: fmt.Sprintf("[%d earlier messages were summarized above and are no longer verbatim]", comp.DroppedMessages),
		})
	}
	out = append(out, tail...)
	out = append(out, types.Message{Role: "user", Content: opts.IterationPrompt})
	return out
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
